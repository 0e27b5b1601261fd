package modifier

import (
	"fmt"
	"strconv"
	"strings"
)

// Category is a stage kind. The numeric order is the evaluation order.
type Category int

const (
	CategoryStart Category = iota
	CategoryTimeWindow
	CategoryRoi
	CategoryAverage
	CategoryBlComp
	CategoryScale
	CategoryDifImage
	CategoryInvert
	CategoryTagMaker
	CategoryEnd
)

var categoryNames = [...]string{
	CategoryStart:      "Start",
	CategoryTimeWindow: "TimeWindow",
	CategoryRoi:        "Roi",
	CategoryAverage:    "Average",
	CategoryBlComp:     "BlComp",
	CategoryScale:      "Scale",
	CategoryDifImage:   "DifImage",
	CategoryInvert:     "Invert",
	CategoryTagMaker:   "TagMaker",
	CategoryEnd:        "End",
}

func (c Category) String() string {
	if c < CategoryStart || c > CategoryEnd {
		return "Category(" + strconv.Itoa(int(c)) + ")"
	}
	return categoryNames[c]
}

// ParseCategory maps a category name to its Category. The Start and End
// sentinels are not user stages and are rejected.
func ParseCategory(name string) (Category, error) {
	for c := CategoryTimeWindow; c < CategoryEnd; c++ {
		if categoryNames[c] == name {
			return c, nil
		}
	}
	return 0, fmt.Errorf("unknown stage category %q", name)
}

// ParseStageName splits "Roi1" into (CategoryRoi, 1, true) and "Roi" into
// (CategoryRoi, 0, false)
func ParseStageName(name string) (cat Category, index int, indexed bool, err error) {
	prefix := strings.TrimRight(name, "0123456789")
	cat, err = ParseCategory(prefix)
	if err != nil {
		return 0, 0, false, err
	}
	if prefix == name {
		return cat, 0, false, nil
	}
	index, err = strconv.Atoi(name[len(prefix):])
	if err != nil {
		return 0, 0, false, fmt.Errorf("bad stage index in %q: %w", name, err)
	}
	return cat, index, true, nil
}

func stageName(c Category, index int) string {
	return c.String() + strconv.Itoa(index)
}
