// Package decoder reads raw recording files into numeric arrays with timing
// metadata. Two layouts are supported: TSM (FITS-style text header, int16
// frames, paired .tbn electrophysiology sidecar) and DA (int16 header with
// imaging, electrophysiology and dark frame packed into one file).
//
// Decoders hold their file handles only for the duration of a call so an
// acquisition process may keep writing to the source.
package decoder

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"os"

	"golang.org/x/sync/errgroup"
)

// Format names
const (
	FormatTSM = "tsm"
	FormatDA  = "da"
)

// Params are the per-format settings a decode needs
type Params struct {
	// Channels is the number of optical channels multiplexed in the full stack
	Channels int
	// ElecChannels is the number of electrophysiology traces to read
	ElecChannels int
}

// Validate checks the parameters before any file is touched
func (p Params) Validate(format string) error {
	if p.Channels < 1 {
		return fieldError(format, "channel_count", fmt.Errorf("must be at least 1, got %d", p.Channels))
	}
	if p.ElecChannels < 0 {
		return fieldError(format, "electrophysiology_channel_count", fmt.Errorf("must not be negative, got %d", p.ElecChannels))
	}
	return nil
}

// Header is the structural metadata of a recording
type Header struct {
	Format        string            `yaml:"format"`
	Rows          int               `yaml:"rows"`
	Cols          int               `yaml:"cols"`
	Frames        int               `yaml:"frames"`
	FrameInterval float64           `yaml:"frame_interval_ms"`
	Ratio         int               `yaml:"ratio"`
	Channels      int               `yaml:"channels"`
	ElecChannels  int               `yaml:"electrophysiology_channels"`
	Fields        map[string]string `yaml:"fields,omitempty"`
}

// Stack is a frame-major (t, x, y) array: index = t*NX*NY + x*NY + y
type Stack struct {
	Data     []float64
	NX, NY   int
	NT       int
	Interval float64 // ms between frames
}

// Signal is a 1-D electrophysiology trace
type Signal struct {
	Data     []float64
	Interval float64 // ms between samples
}

// Recording is the complete result of one decode
type Recording struct {
	Header Header
	// Full is the multiplexed, dark-corrected stack
	Full Stack
	// Channels[i] holds logical channel i+1
	Channels []Stack
	Elec     []Signal
}

// Deinterleave splits a multiplexed stack into n channels. Channel i takes
// frames i, i+n, i+2n, ... and its interval is n times the full interval.
func Deinterleave(format string, full Stack, n int) ([]Stack, error) {
	if n < 1 {
		return nil, fieldError(format, "channel_count", fmt.Errorf("must be at least 1, got %d", n))
	}
	if full.NT%n != 0 {
		return nil, fieldError(format, "channel_count",
			fmt.Errorf("%d frames do not divide into %d channels", full.NT, n))
	}

	plane := full.NX * full.NY
	per := full.NT / n
	out := make([]Stack, n)

	var g errgroup.Group
	for ch := 0; ch < n; ch++ {
		g.Go(func() error {
			data := make([]float64, 0, plane*per)
			for t := ch; t < full.NT; t += n {
				data = append(data, full.Data[t*plane:(t+1)*plane]...)
			}
			out[ch] = Stack{Data: data, NX: full.NX, NY: full.NY, NT: per, Interval: full.Interval * float64(n)}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

// SubtractDark subtracts the dark frame from every frame of data in place
func SubtractDark(format string, data, dark []float64) error {
	if len(dark) == 0 || len(data)%len(dark) != 0 {
		return fieldError(format, "dark_frame",
			fmt.Errorf("dark frame of %d values does not tile %d samples", len(dark), len(data)))
	}
	for i := range data {
		data[i] -= dark[i%len(dark)]
	}
	return nil
}

// fileReader is a buffered file reader that tracks the bytes left in the
// file, so sections sized by header fields are checked before allocation
type fileReader struct {
	*bufio.Reader
	left int64
}

// withFile opens path, hands a buffered reader to fn and closes the file
// before returning
func withFile(path string, fn func(r *fileReader) error) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()
	info, err := f.Stat()
	if err != nil {
		return err
	}
	return fn(&fileReader{Reader: bufio.NewReaderSize(f, 1<<16), left: info.Size()})
}

// sectionLen multiplies header dimensions into an element count and checks
// that many elements of size bytes are still in the file
func (r *fileReader) sectionLen(format, field string, size int, dims ...int) (int, error) {
	n := 1
	for _, d := range dims {
		if d < 0 || (d > 0 && n > math.MaxInt/d) {
			return 0, fieldError(format, field, fmt.Errorf("section of %v elements overflows", dims))
		}
		n *= d
	}
	if n > math.MaxInt/size || int64(n*size) > r.left {
		return 0, readError(format, field, ErrTruncated)
	}
	return n, nil
}

func (r *fileReader) readBytes(n int) ([]byte, error) {
	if int64(n) > r.left {
		return nil, io.ErrUnexpectedEOF
	}
	buf := make([]byte, n)
	if _, err := io.ReadFull(r.Reader, buf); err != nil {
		return nil, err
	}
	r.left -= int64(n)
	return buf, nil
}

func readInt16s(r *fileReader, n int) ([]int16, error) {
	if n < 0 || int64(n)*2 > r.left {
		return nil, io.ErrUnexpectedEOF
	}
	buf := make([]int16, n)
	if err := binary.Read(r.Reader, binary.LittleEndian, buf); err != nil {
		return nil, err
	}
	r.left -= int64(n) * 2
	return buf, nil
}

func readFloat64s(r *fileReader, n int) ([]float64, error) {
	if n < 0 || int64(n)*8 > r.left {
		return nil, io.ErrUnexpectedEOF
	}
	buf := make([]float64, n)
	if err := binary.Read(r.Reader, binary.LittleEndian, buf); err != nil {
		return nil, err
	}
	r.left -= int64(n) * 8
	return buf, nil
}

// finish subtracts the dark frame and de-interleaves
func finish(rec *Recording, dark []float64, p Params) error {
	format := rec.Header.Format
	if err := SubtractDark(format, rec.Full.Data, dark); err != nil {
		return err
	}
	chans, err := Deinterleave(format, rec.Full, p.Channels)
	if err != nil {
		return err
	}
	rec.Channels = chans
	return nil
}
