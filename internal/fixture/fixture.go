// Package fixture writes small synthetic recordings for tests.
package fixture

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// Recording describes a synthetic file. Pixel is the dark-corrected value the
// decoder should produce; writers add Dark to it on disk. Nil funcs yield 0.
type Recording struct {
	Rows, Cols, Frames int
	Pixel              func(x, y, t int) int16
	Dark               func(x, y int) int16

	// TSM only, seconds
	Exposure float64
	// DA only, microseconds
	IntervalUS int

	Ratio        int
	ElecChannels int
	// Elec returns the raw sample as stored on disk
	Elec func(ch, i int) float64
}

func (r Recording) pixel(x, y, t int) int16 {
	var v, d int16
	if r.Pixel != nil {
		v = r.Pixel(x, y, t)
	}
	if r.Dark != nil {
		d = r.Dark(x, y)
	}
	return v + d
}

func (r Recording) dark(x, y int) int16 {
	if r.Dark == nil {
		return 0
	}
	return r.Dark(x, y)
}

func (r Recording) elec(ch, i int) float64 {
	if r.Elec == nil {
		return 0
	}
	return r.Elec(ch, i)
}

func writeFile(path string, fn func(w *bufio.Writer) error) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	w := bufio.NewWriter(f)
	if err := fn(w); err != nil {
		f.Close()
		return err
	}
	if err := w.Flush(); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func card(key, val string) string {
	c := fmt.Sprintf("%-8s= %20s", key, val)
	return c + strings.Repeat(" ", 80-len(c))
}

// WriteTSM writes path and, when ElecChannels > 0, the .tbn sidecar next to it
func WriteTSM(path string, r Recording) error {
	err := writeFile(path, func(w *bufio.Writer) error {
		var hdr strings.Builder
		for _, c := range [][2]string{
			{"SIMPLE", "T"},
			{"BITPIX", "16"},
			{"NAXIS", "3"},
			{"NAXIS1", strconv.Itoa(r.Cols)},
			{"NAXIS2", strconv.Itoa(r.Rows)},
			{"NAXIS3", strconv.Itoa(r.Frames)},
			{"EXPOSURE", strconv.FormatFloat(r.Exposure, 'g', -1, 64)},
		} {
			hdr.WriteString(card(c[0], c[1]))
		}
		hdr.WriteString("END" + strings.Repeat(" ", 77))
		out := hdr.String() + strings.Repeat(" ", 2880-hdr.Len())
		if _, err := w.WriteString(out); err != nil {
			return err
		}

		for t := 0; t <= r.Frames; t++ {
			for x := 0; x < r.Rows; x++ {
				for y := 0; y < r.Cols; y++ {
					v := r.dark(x, y)
					if t < r.Frames {
						v = r.pixel(x, y, t)
					}
					if err := binary.Write(w, binary.LittleEndian, v); err != nil {
						return err
					}
				}
			}
		}
		return nil
	})
	if err != nil || r.ElecChannels == 0 {
		return err
	}

	side := strings.TrimSuffix(path, filepath.Ext(path)) + ".tbn"
	return writeFile(side, func(w *bufio.Writer) error {
		if err := binary.Write(w, binary.LittleEndian, []int16{int16(-r.ElecChannels), int16(r.Ratio)}); err != nil {
			return err
		}
		n := r.Frames * r.Ratio
		for ch := 0; ch < r.ElecChannels; ch++ {
			for i := 0; i < n; i++ {
				if err := binary.Write(w, binary.LittleEndian, r.elec(ch, i)); err != nil {
					return err
				}
			}
		}
		return nil
	})
}

// WriteDA writes a .da file with eight electrophysiology slots, of which the
// first ElecChannels come from Elec
func WriteDA(path string, r Recording) error {
	return writeFile(path, func(w *bufio.Writer) error {
		h := make([]int16, 2560)
		h[4] = int16(r.Frames)
		h[384] = int16(r.Rows)
		h[385] = int16(r.Cols)
		h[388] = int16(r.IntervalUS)
		h[391] = int16(r.Ratio)
		if err := binary.Write(w, binary.LittleEndian, h); err != nil {
			return err
		}

		for x := 0; x < r.Rows; x++ {
			for y := 0; y < r.Cols; y++ {
				for t := 0; t < r.Frames; t++ {
					if err := binary.Write(w, binary.LittleEndian, r.pixel(x, y, t)); err != nil {
						return err
					}
				}
			}
		}

		n := r.Frames * r.Ratio
		for ch := 0; ch < 8; ch++ {
			for i := 0; i < n; i++ {
				var v int16
				if ch < r.ElecChannels {
					v = int16(r.elec(ch, i))
				}
				if err := binary.Write(w, binary.LittleEndian, v); err != nil {
					return err
				}
			}
		}

		for x := 0; x < r.Rows; x++ {
			for y := 0; y < r.Cols; y++ {
				if err := binary.Write(w, binary.LittleEndian, r.dark(x, y)); err != nil {
					return err
				}
			}
		}
		return nil
	})
}

// Truncate drops the last n bytes of path
func Truncate(path string, n int64) error {
	st, err := os.Stat(path)
	if err != nil {
		return err
	}
	return os.Truncate(path, st.Size()-n)
}
