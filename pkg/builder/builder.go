// Package builder turns a recording file into the initial set of tagged value
// objects for a repository.
package builder

import (
	"fmt"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"github.com/vjranagit/scandata/internal/config"
	"github.com/vjranagit/scandata/pkg/decoder"
	"github.com/vjranagit/scandata/pkg/types"
	"github.com/vjranagit/scandata/pkg/value"
)

// UnsupportedFormatError reports a file extension no decoder handles
type UnsupportedFormatError struct {
	Path string
	Ext  string
	Hint string
}

func (e *UnsupportedFormatError) Error() string {
	msg := fmt.Sprintf("unsupported format %q for %s", e.Ext, e.Path)
	if e.Hint != "" {
		msg += ": " + e.Hint
	}
	return msg
}

type decodeFunc func(path string, p decoder.Params) (*decoder.Recording, error)

var decoders = map[string]struct {
	format string
	decode decodeFunc
}{
	".tsm": {decoder.FormatTSM, decoder.DecodeTSM},
	".da":  {decoder.FormatDA, decoder.DecodeDA},
}

// hints for extensions that belong to a supported recording
var hints = map[string]string{
	".tbn": "electrophysiology sidecar; open the paired .tsm file",
}

// Result is what Build produces for one file
type Result struct {
	Path     string
	Format   string
	Settings config.FormatSettings
	Header   decoder.Header
	Objects  []value.Object
}

// Format returns the format name for path, or an UnsupportedFormatError
func Format(path string) (string, error) {
	ext := strings.ToLower(filepath.Ext(path))
	d, ok := decoders[ext]
	if !ok {
		return "", &UnsupportedFormatError{Path: path, Ext: ext, Hint: hints[ext]}
	}
	return d.format, nil
}

// Build decodes path and wraps every array in a tagged value object. The
// decoder has released the file by the time Build returns.
func Build(path string, settings *config.Settings, logger *zap.Logger) (*Result, error) {
	if logger == nil {
		logger = zap.L()
	}
	ext := strings.ToLower(filepath.Ext(path))
	d, ok := decoders[ext]
	if !ok {
		return nil, &UnsupportedFormatError{Path: path, Ext: ext, Hint: hints[ext]}
	}

	fs, err := settings.Format(d.format)
	if err != nil {
		return nil, err
	}

	rec, err := d.decode(path, decoder.Params{Channels: fs.ChannelCount, ElecChannels: fs.ElecChannelCount})
	if err != nil {
		return nil, err
	}

	objs, err := wrap(filepath.Base(path), rec, fs)
	if err != nil {
		return nil, err
	}

	logger.Info("built recording",
		zap.String("path", path),
		zap.String("format", d.format),
		zap.Int("rows", rec.Header.Rows),
		zap.Int("cols", rec.Header.Cols),
		zap.Int("frames", rec.Header.Frames),
		zap.Int("channels", len(rec.Channels)),
		zap.Int("elec_channels", len(rec.Elec)),
		zap.Int("objects", len(objs)))

	return &Result{
		Path:     path,
		Format:   d.format,
		Settings: fs,
		Header:   rec.Header,
		Objects:  objs,
	}, nil
}

func wrap(source string, rec *decoder.Recording, fs config.FormatSettings) ([]value.Object, error) {
	base := types.Descriptor{Source: source, Category: types.CategoryData, Provenance: types.ProvenanceRaw}
	objs := make([]value.Object, 0, 3+len(rec.Channels)+len(rec.Elec))

	frames := func(s decoder.Stack, ch int) error {
		d := base
		d.Kind = types.KindFluoFrames
		d.Channel = types.ChannelOf(ch)
		f, err := value.NewFrames(s.Data, s.NX, s.NY, s.NT, d, s.Interval, 0)
		if err != nil {
			return fmt.Errorf("failed to wrap %s: %w", d.Label(), err)
		}
		objs = append(objs, f)
		return nil
	}

	if err := frames(rec.Full, 0); err != nil {
		return nil, err
	}
	for i, s := range rec.Channels {
		if err := frames(s, i+1); err != nil {
			return nil, err
		}
	}
	for i, s := range rec.Elec {
		d := base
		d.Kind = types.KindElecTrace
		d.Channel = types.ChannelOf(i + 1)
		tr, err := value.NewTrace(s.Data, d, s.Interval)
		if err != nil {
			return nil, fmt.Errorf("failed to wrap %s: %w", d.Label(), err)
		}
		objs = append(objs, tr)
	}

	objs = append(objs,
		value.NewText(rec.Header, types.Descriptor{Source: source, Category: types.CategoryHeader, Kind: types.KindText}),
		value.NewText(fs, types.Descriptor{Source: source, Category: types.CategoryDefault, Kind: types.KindText}),
	)
	return objs, nil
}
