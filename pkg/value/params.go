package value

import (
	"fmt"
	"strconv"
)

// ParameterValidationError reports a stage parameter outside its domain
type ParameterValidationError struct {
	Param  string
	Value  string
	Reason string
}

func (e *ParameterValidationError) Error() string {
	return fmt.Sprintf("invalid %s %s: %s", e.Param, e.Value, e.Reason)
}

// RoiVal is a rectangle (x, y, width, height) in pixels
type RoiVal struct {
	x, y, w, h int
}

func NewRoiVal(x, y, width, height int) (RoiVal, error) {
	r := RoiVal{x, y, width, height}
	if x < 0 || y < 0 {
		return RoiVal{}, &ParameterValidationError{Param: "roi", Value: r.String(), Reason: "x and y must be 0 or more"}
	}
	if width < 1 || height < 1 {
		return RoiVal{}, &ParameterValidationError{Param: "roi", Value: r.String(), Reason: "width and height must be 1 or more"}
	}
	return r, nil
}

func (r RoiVal) X() int      { return r.x }
func (r RoiVal) Y() int      { return r.y }
func (r RoiVal) Width() int  { return r.w }
func (r RoiVal) Height() int { return r.h }

// Values returns (x, y, width, height)
func (r RoiVal) Values() [4]int { return [4]int{r.x, r.y, r.w, r.h} }

func (r RoiVal) Add(o RoiVal) (RoiVal, error) {
	return NewRoiVal(r.x+o.x, r.y+o.y, r.w+o.w, r.h+o.h)
}

func (r RoiVal) Sub(o RoiVal) (RoiVal, error) {
	return NewRoiVal(r.x-o.x, r.y-o.y, r.w-o.w, r.h-o.h)
}

func (r RoiVal) String() string {
	return fmt.Sprintf("[%d %d %d %d]", r.x, r.y, r.w, r.h)
}

// ToEndWidth is the width sentinel meaning "through the end of the axis"
const ToEndWidth = -1

// TimeWindowVal is a (start, width) range along a time axis.
// A width of -1 or 0 runs to the end of the axis.
type TimeWindowVal struct {
	start, width int
}

func NewTimeWindowVal(start, width int) (TimeWindowVal, error) {
	w := TimeWindowVal{start, width}
	if start < 0 {
		return TimeWindowVal{}, &ParameterValidationError{Param: "time window", Value: w.String(), Reason: "start must be 0 or more"}
	}
	if width < ToEndWidth {
		return TimeWindowVal{}, &ParameterValidationError{Param: "time window", Value: w.String(), Reason: "width must be -1 or more"}
	}
	return w, nil
}

// WholeAxis selects every sample
func WholeAxis() TimeWindowVal { return TimeWindowVal{0, ToEndWidth} }

func (w TimeWindowVal) Start() int { return w.start }
func (w TimeWindowVal) Width() int { return w.width }

// ToEnd reports whether the window runs through the end of the axis
func (w TimeWindowVal) ToEnd() bool { return w.width == ToEndWidth || w.width == 0 }

func (w TimeWindowVal) Add(o TimeWindowVal) (TimeWindowVal, error) {
	return NewTimeWindowVal(w.start+o.start, w.width+o.width)
}

func (w TimeWindowVal) Sub(o TimeWindowVal) (TimeWindowVal, error) {
	return NewTimeWindowVal(w.start-o.start, w.width-o.width)
}

// Bounds resolves the window against an axis of the given length into a
// half-open index range
func (w TimeWindowVal) Bounds(length int) (start, end int, err error) {
	if w.start >= length {
		return 0, 0, &ParameterValidationError{
			Param:  "time window",
			Value:  w.String(),
			Reason: "start " + strconv.Itoa(w.start) + " is past axis length " + strconv.Itoa(length),
		}
	}
	if w.ToEnd() {
		return w.start, length, nil
	}
	if w.start+w.width > length {
		return 0, 0, &ParameterValidationError{
			Param:  "time window",
			Value:  w.String(),
			Reason: fmt.Sprintf("start+width = %d exceeds axis length %d", w.start+w.width, length),
		}
	}
	return w.start, w.start + w.width, nil
}

func (w TimeWindowVal) String() string {
	return fmt.Sprintf("[%d %d]", w.start, w.width)
}
