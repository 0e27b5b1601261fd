package decoder

import (
	"errors"
	"fmt"
	"path/filepath"
	"strconv"
	"strings"
)

const (
	tsmHeaderSize = 2880
	tsmCardSize   = 80
	// card value columns
	tsmValueStart = 10
	tsmValueEnd   = 30
)

// tbnGain converts sidecar channel readings to physical units. Fixed by the amplifier.
var tbnGain = [...]float64{1, 20, 1, 1, 1, 1, 1, 1}

// SidecarPath returns the .tbn file paired with a .tsm recording
func SidecarPath(path string) string {
	return strings.TrimSuffix(path, filepath.Ext(path)) + ".tbn"
}

// DecodeTSM reads a .tsm recording and, when electrophysiology channels are
// requested, its .tbn sidecar
func DecodeTSM(path string, p Params) (*Recording, error) {
	if err := p.Validate(FormatTSM); err != nil {
		return nil, err
	}

	var rec *Recording
	var dark []float64
	err := withFile(path, func(r *fileReader) error {
		var err error
		rec, dark, err = readTSM(r, p)
		return err
	})
	if err != nil {
		return nil, wrapOpen(FormatTSM, "file", err)
	}

	if p.ElecChannels > 0 {
		side := SidecarPath(path)
		err := withFile(side, func(r *fileReader) error {
			elec, ratio, err := readTBN(r, rec.Header, p)
			rec.Elec, rec.Header.Ratio = elec, ratio
			return err
		})
		if err != nil {
			return nil, wrapOpen(FormatTSM, "sidecar", err)
		}
	}

	if err := finish(rec, dark, p); err != nil {
		return nil, err
	}
	return rec, nil
}

// wrapOpen keeps DecodeErrors as they are and labels file system errors
func wrapOpen(format, field string, err error) error {
	var de *DecodeError
	if errors.As(err, &de) {
		return err
	}
	return fieldError(format, field, err)
}

// readTSM parses the header and payload. The returned full stack still
// includes the dark offset.
func readTSM(r *fileReader, p Params) (*Recording, []float64, error) {
	raw, err := r.readBytes(tsmHeaderSize)
	if err != nil {
		return nil, nil, readError(FormatTSM, "header", err)
	}
	fields := parseCards(raw)

	cols, err := cardInt(fields, "NAXIS1")
	if err != nil {
		return nil, nil, err
	}
	rows, err := cardInt(fields, "NAXIS2")
	if err != nil {
		return nil, nil, err
	}
	frames, err := cardInt(fields, "NAXIS3")
	if err != nil {
		return nil, nil, err
	}
	exposure, err := cardFloat(fields, "EXPOSURE")
	if err != nil {
		return nil, nil, err
	}
	if frames%p.Channels != 0 {
		return nil, nil, fieldError(FormatTSM, "NAXIS3",
			fmt.Errorf("%d frames do not divide into %d channels", frames, p.Channels))
	}

	h := Header{
		Format:        FormatTSM,
		Rows:          rows,
		Cols:          cols,
		Frames:        frames,
		FrameInterval: 1000 * exposure,
		Channels:      p.Channels,
		ElecChannels:  p.ElecChannels,
		Fields:        fields,
	}

	// frames plus one dark frame; rows are the x axis
	n, err := r.sectionLen(FormatTSM, "payload", 2, rows, cols, frames+1)
	if err != nil {
		return nil, nil, err
	}
	plane := rows * cols
	buf, err := readInt16s(r, n)
	if err != nil {
		return nil, nil, readError(FormatTSM, "payload", err)
	}

	data := make([]float64, plane*frames)
	for i := range data {
		data[i] = float64(buf[i])
	}
	dark := make([]float64, plane)
	for i := range dark {
		dark[i] = float64(buf[plane*frames+i])
	}

	rec := &Recording{
		Header: h,
		Full:   Stack{Data: data, NX: rows, NY: cols, NT: frames, Interval: h.FrameInterval},
	}
	return rec, dark, nil
}

// parseCards splits the header into keyword/value pairs
func parseCards(raw []byte) map[string]string {
	fields := make(map[string]string)
	for off := 0; off+tsmCardSize <= len(raw); off += tsmCardSize {
		card := string(raw[off : off+tsmCardSize])
		key := strings.TrimSpace(card[:8])
		if key == "END" {
			break
		}
		if key == "" || card[8] != '=' {
			continue
		}
		val := strings.TrimSpace(card[tsmValueStart:tsmValueEnd])
		fields[key] = strings.Trim(val, "'")
	}
	return fields
}

func cardInt(fields map[string]string, key string) (int, error) {
	s, ok := fields[key]
	if !ok {
		return 0, fieldError(FormatTSM, key, errors.New("missing"))
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, fieldError(FormatTSM, key, err)
	}
	if n < 1 {
		return 0, fieldError(FormatTSM, key, fmt.Errorf("must be positive, got %d", n))
	}
	return n, nil
}

func cardFloat(fields map[string]string, key string) (float64, error) {
	s, ok := fields[key]
	if !ok {
		return 0, fieldError(FormatTSM, key, errors.New("missing"))
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fieldError(FormatTSM, key, err)
	}
	if v <= 0 {
		return 0, fieldError(FormatTSM, key, fmt.Errorf("must be positive, got %g", v))
	}
	return v, nil
}

// readTBN decodes the sidecar: int16 -channels, int16 ratio, then float64
// samples channel after channel
func readTBN(r *fileReader, h Header, p Params) ([]Signal, int, error) {
	head, err := readInt16s(r, 2)
	if err != nil {
		return nil, 0, readError(FormatTSM, "sidecar header", err)
	}
	numCh, ratio := -int(head[0]), int(head[1])
	if numCh < p.ElecChannels || numCh > len(tbnGain) {
		return nil, 0, fieldError(FormatTSM, "sidecar channels",
			fmt.Errorf("file has %d channels, %d requested (max %d)", numCh, p.ElecChannels, len(tbnGain)))
	}
	if ratio < 1 {
		return nil, 0, fieldError(FormatTSM, "sidecar ratio", fmt.Errorf("must be positive, got %d", ratio))
	}

	n, err := r.sectionLen(FormatTSM, "sidecar payload", 8, h.Frames, ratio, p.ElecChannels)
	if err != nil {
		return nil, 0, err
	}
	perCh := h.Frames * ratio
	buf, err := readFloat64s(r, n)
	if err != nil {
		return nil, 0, readError(FormatTSM, "sidecar payload", err)
	}

	interval := h.FrameInterval / float64(ratio)
	out := make([]Signal, p.ElecChannels)
	for ch := range out {
		data := buf[ch*perCh : (ch+1)*perCh]
		for i, v := range data {
			data[i] = v / 10 * tbnGain[ch] * 1000
		}
		out[ch] = Signal{Data: data, Interval: interval}
	}
	return out, ratio, nil
}
