package decoder

import "fmt"

// DA header layout: int16 words
const (
	daHeaderWords = 2560
	daFramesAt    = 4
	daRowsAt      = 384
	daColsAt      = 385
	daIntervalAt  = 388 // frame interval in us
	daRatioAt     = 391

	// daElecSlots is the number of electrophysiology channels always present in the file
	daElecSlots = 8
	// daElecScale converts raw electrophysiology words to mV
	daElecScale = 1000.0 / 32678
)

// DecodeDA reads a .da recording
func DecodeDA(path string, p Params) (*Recording, error) {
	if err := p.Validate(FormatDA); err != nil {
		return nil, err
	}
	if p.ElecChannels > daElecSlots {
		return nil, fieldError(FormatDA, "electrophysiology_channel_count",
			fmt.Errorf("file holds %d channels, %d requested", daElecSlots, p.ElecChannels))
	}

	var rec *Recording
	var dark []float64
	err := withFile(path, func(r *fileReader) error {
		var err error
		rec, dark, err = readDA(r, p)
		return err
	})
	if err != nil {
		return nil, wrapOpen(FormatDA, "file", err)
	}
	if err := finish(rec, dark, p); err != nil {
		return nil, err
	}
	return rec, nil
}

func daField(h []int16, at int, name string) (int, error) {
	v := int(h[at])
	if v < 1 {
		return 0, fieldError(FormatDA, name, fmt.Errorf("must be positive, got %d (word %d)", v, at))
	}
	return v, nil
}

func readDA(r *fileReader, p Params) (*Recording, []float64, error) {
	h, err := readInt16s(r, daHeaderWords)
	if err != nil {
		return nil, nil, readError(FormatDA, "header", err)
	}

	frames, err := daField(h, daFramesAt, "frames")
	if err != nil {
		return nil, nil, err
	}
	rows, err := daField(h, daRowsAt, "rows")
	if err != nil {
		return nil, nil, err
	}
	cols, err := daField(h, daColsAt, "cols")
	if err != nil {
		return nil, nil, err
	}
	intervalUS, err := daField(h, daIntervalAt, "frame_interval")
	if err != nil {
		return nil, nil, err
	}
	ratio, err := daField(h, daRatioAt, "ratio")
	if err != nil {
		return nil, nil, err
	}
	if frames%p.Channels != 0 {
		return nil, nil, fieldError(FormatDA, "frames",
			fmt.Errorf("%d frames do not divide into %d channels", frames, p.Channels))
	}

	hdr := Header{
		Format:        FormatDA,
		Rows:          rows,
		Cols:          cols,
		Frames:        frames,
		FrameInterval: float64(intervalUS) / 1000,
		Ratio:         ratio,
		Channels:      p.Channels,
		ElecChannels:  p.ElecChannels,
	}

	// pixel-major: the time axis is innermost
	n, err := r.sectionLen(FormatDA, "payload", 2, rows, cols, frames)
	if err != nil {
		return nil, nil, err
	}
	plane := rows * cols
	pix, err := readInt16s(r, n)
	if err != nil {
		return nil, nil, readError(FormatDA, "payload", err)
	}
	data := make([]float64, plane*frames)
	for px := 0; px < plane; px++ {
		series := pix[px*frames : (px+1)*frames]
		for t, v := range series {
			data[t*plane+px] = float64(v)
		}
	}

	n, err = r.sectionLen(FormatDA, "electrophysiology payload", 2, frames, ratio, daElecSlots)
	if err != nil {
		return nil, nil, err
	}
	perCh := frames * ratio
	raw, err := readInt16s(r, n)
	if err != nil {
		return nil, nil, readError(FormatDA, "electrophysiology payload", err)
	}
	elec := make([]Signal, p.ElecChannels)
	for ch := range elec {
		sig := make([]float64, perCh)
		for i, v := range raw[ch*perCh : (ch+1)*perCh] {
			sig[i] = float64(v) * daElecScale
		}
		elec[ch] = Signal{Data: sig, Interval: hdr.FrameInterval / float64(ratio)}
	}

	if _, err := r.sectionLen(FormatDA, "dark_frame", 2, plane); err != nil {
		return nil, nil, err
	}
	darkRaw, err := readInt16s(r, plane)
	if err != nil {
		return nil, nil, readError(FormatDA, "dark_frame", err)
	}
	dark := make([]float64, plane)
	for i, v := range darkRaw {
		dark[i] = float64(v)
	}

	rec := &Recording{
		Header: hdr,
		Full:   Stack{Data: data, NX: rows, NY: cols, NT: frames, Interval: hdr.FrameInterval},
		Elec:   elec,
	}
	return rec, dark, nil
}
