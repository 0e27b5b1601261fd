// Package experiment is the entry point for working with a recording: it
// decodes the file into a repository, builds the default modifier chain from
// the format settings and serves transformed value objects on request.
package experiment

import (
	"errors"
	"fmt"
	"path/filepath"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/vjranagit/scandata/internal/config"
	"github.com/vjranagit/scandata/pkg/builder"
	"github.com/vjranagit/scandata/pkg/decoder"
	"github.com/vjranagit/scandata/pkg/modifier"
	"github.com/vjranagit/scandata/pkg/repository"
	"github.com/vjranagit/scandata/pkg/storage"
	"github.com/vjranagit/scandata/pkg/types"
	"github.com/vjranagit/scandata/pkg/value"
)

// ErrClosed is returned by operations on a closed experiment
var ErrClosed = errors.New("experiment closed")

// Experiment is one open recording
type Experiment struct {
	id       uuid.UUID
	path     string
	source   string
	format   string
	settings *config.Settings
	logger   *zap.Logger

	repo  *repository.Repository
	chain *modifier.Chain
	cache *storage.ResultCache

	mu       sync.Mutex
	header   decoder.Header
	closed   bool
	watching bool
	stop     func()
	wg       sync.WaitGroup
	debounce time.Duration
}

type options struct {
	logger   *zap.Logger
	cfg      *config.Config
	settings *config.Settings
	debounce time.Duration
}

// Option configures Open
type Option func(*options)

// WithLogger sets the logger
func WithLogger(l *zap.Logger) Option {
	return func(o *options) { o.logger = l }
}

// WithConfig sets the runtime configuration. Without it the environment
// defaults from config.DefaultConfig apply.
func WithConfig(cfg *config.Config) Option {
	return func(o *options) { o.cfg = cfg }
}

// WithSettings sets the format settings, overriding Config.SettingsPath
func WithSettings(s *config.Settings) Option {
	return func(o *options) { o.settings = s }
}

// WithDebounce sets how long Watch waits for writes to settle before reloading
func WithDebounce(d time.Duration) Option {
	return func(o *options) { o.debounce = d }
}

// Open decodes the recording at path. Decoding is all or nothing: on error no
// experiment is returned.
func Open(path string, opts ...Option) (*Experiment, error) {
	o := options{debounce: 200 * time.Millisecond}
	for _, opt := range opts {
		opt(&o)
	}
	if o.logger == nil {
		o.logger = zap.L()
	}
	if o.cfg == nil {
		o.cfg = config.DefaultConfig()
	}
	if err := o.cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	if o.settings == nil {
		s, err := loadSettings(o.cfg)
		if err != nil {
			return nil, err
		}
		o.settings = s
	}

	id := uuid.New()
	logger := o.logger.With(zap.String("experiment", id.String()))

	res, err := build(path, o.settings, logger)
	if err != nil {
		return nil, err
	}

	repo := repository.New(repository.WithLogger(logger))
	repo.SaveAll(res.Objects)

	chain, err := modifier.NewChainFrom(res.Settings.Chain.Stages, res.Settings.Chain.Defaults, modifier.WithLogger(logger))
	if err != nil {
		return nil, fmt.Errorf("failed to build default chain: %w", err)
	}

	cache, err := storage.NewResultCache(o.cfg.ToCacheConfig(), logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create result cache: %w", err)
	}

	e := &Experiment{
		id:       id,
		path:     path,
		source:   filepath.Base(path),
		format:   res.Format,
		settings: o.settings,
		logger:   logger,
		repo:     repo,
		chain:    chain,
		cache:    cache,
		header:   res.Header,
		debounce: o.debounce,
	}
	logger.Info("experiment opened",
		zap.String("path", path),
		zap.Int("items", repo.Len()),
		zap.Strings("stages", chain.Names()))
	return e, nil
}

func loadSettings(cfg *config.Config) (*config.Settings, error) {
	if cfg.SettingsPath != "" {
		return config.LoadSettings(cfg.SettingsPath)
	}
	return config.DefaultSettings()
}

// build decodes path and records decode metrics
func build(path string, settings *config.Settings, logger *zap.Logger) (*builder.Result, error) {
	format, err := builder.Format(path)
	if err != nil {
		format = "unknown"
	}
	start := time.Now()
	res, err := builder.Build(path, settings, logger)
	decodeDuration.WithLabelValues(format).Observe(time.Since(start).Seconds())
	if err != nil {
		decodeTotal.WithLabelValues(format, resultError).Inc()
		return nil, err
	}
	decodeTotal.WithLabelValues(format, resultOK).Inc()
	return res, nil
}

// ID identifies this experiment in logs and snapshots
func (e *Experiment) ID() string { return e.id.String() }

// Path returns the recording path
func (e *Experiment) Path() string { return e.path }

// Format returns the recording format name
func (e *Experiment) Format() string { return e.format }

// Header returns the decoded header of the current data
func (e *Experiment) Header() decoder.Header {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.header
}

// Get finds the items matching target and runs each through the named
// stages. A FluoTrace or FluoImage query with no stored match falls back to
// the channel's FluoFrames, which the stages then reduce. No match is not an
// error: the result is empty and the miss is logged.
func (e *Experiment) Get(target types.Descriptor, stages []string) ([]value.Object, error) {
	if e.isClosed() {
		return nil, ErrClosed
	}

	items := e.repo.Find(target)
	if len(items) == 0 {
		if src := target.Kind.SourceKind(); src != target.Kind {
			fallback := target
			fallback.Kind = src
			e.logger.Debug("resolving derived kind from source kind",
				zap.String("kind", string(target.Kind)),
				zap.String("source_kind", string(src)))
			items = e.repo.Find(fallback)
		}
	}
	if len(items) == 0 {
		return nil, nil
	}

	chainVersion, repoVersion := e.chain.Version(), e.repo.Version()
	useCache := e.cache != nil && !e.fitsBaseline(stages)
	out := make([]value.Object, 0, len(items))
	for _, item := range items {
		key := storage.Key{
			Descriptor:   item.Descriptor(),
			Stages:       slices.Clone(stages),
			ChainVersion: chainVersion,
			RepoVersion:  repoVersion,
		}
		if useCache {
			if tr, ok := e.cache.Get(key); ok {
				resultCacheTotal.WithLabelValues(resultHit).Inc()
				out = append(out, tr)
				continue
			}
			resultCacheTotal.WithLabelValues(resultMiss).Inc()
		}

		v, err := e.chain.Apply(item, stages)
		if err != nil {
			chainApplyTotal.WithLabelValues(resultError).Inc()
			return nil, err
		}
		chainApplyTotal.WithLabelValues(resultOK).Inc()

		if tr, ok := v.(*value.Trace); ok && useCache {
			if err := e.cache.Put(key, tr); err != nil {
				e.logger.Warn("failed to cache result", zap.Stringer("descriptor", item.Descriptor()), zap.Error(err))
			}
		}
		out = append(out, v)
	}
	return out, nil
}

// fitsBaseline reports whether stages run an enabled BlComp. Those results
// skip the cache so the stage's LastFit always belongs to the latest Get.
func (e *Experiment) fitsBaseline(stages []string) bool {
	for _, name := range stages {
		s, err := e.chain.Stage(name)
		if err != nil {
			continue
		}
		if bl, ok := s.(*modifier.BlComp); ok && bl.Params().(modifier.BlCompParams).Mode != modifier.BlCompDisable {
			return true
		}
	}
	return false
}

// Put stores obj, replacing items whose descriptors it covers
func (e *Experiment) Put(obj value.Object) error {
	if e.isClosed() {
		return ErrClosed
	}
	e.repo.Save(obj)
	return nil
}

// Descriptors lists stored descriptors matching target, minus those sharing
// a field with any except descriptor
func (e *Experiment) Descriptors(target types.Descriptor, except ...types.Descriptor) []types.Descriptor {
	return e.repo.Descriptors(target, except...)
}

// SetParameter sets a stage parameter
func (e *Experiment) SetParameter(stage string, param any) error {
	return e.chain.Set(stage, param)
}

// ResetStage restores a stage's default parameter
func (e *Experiment) ResetStage(stage string) error {
	return e.chain.Reset(stage)
}

// AddStage adds a stage by category or explicit name and returns its name
func (e *Experiment) AddStage(name string) (string, error) {
	return e.chain.Add(name)
}

// RemoveStage removes a stage
func (e *Experiment) RemoveStage(name string) error {
	return e.chain.Remove(name)
}

// RegisterListener subscribes l to a stage's change notifications and
// returns a func that unsubscribes it
func (e *Experiment) RegisterListener(stage string, l modifier.Listener) (func(), error) {
	return e.chain.Listen(stage, l)
}

// RegisterSecondObjectProvider sets the provider a BlComp or DifImage stage
// pulls its second object from
func (e *Experiment) RegisterSecondObjectProvider(stage string, p modifier.Provider) error {
	return e.chain.SetProvider(stage, p)
}

// ChainProvider returns a Provider that looks the requested kind up in this
// experiment's repository, restricts it to the request window when one is
// given and runs it through stages. stages must not include the requesting
// stage.
func (e *Experiment) ChainProvider(stages []string) modifier.Provider {
	stages = slices.Clone(stages)
	return func(req modifier.Request) (value.Object, error) {
		if slices.Contains(stages, req.Stage) {
			return nil, &modifier.ChainConsistencyError{
				Op:     "provide",
				Names:  []string{req.Stage},
				Reason: "provider stages include the requesting stage",
			}
		}

		query := types.Descriptor{
			Source:   req.Target.Source,
			Category: types.CategoryData,
			Kind:     req.Kind,
			Channel:  req.Channel,
		}
		items := e.repo.Find(query)
		if len(items) == 0 {
			return nil, fmt.Errorf("no %s to provide for %s", query.Label(), req.Stage)
		}
		src := items[0]

		if req.Window != nil {
			var err error
			src, err = window(src, *req.Window)
			if err != nil {
				return nil, fmt.Errorf("second object window: %w", err)
			}
		}
		return e.chain.Apply(src, stages)
	}
}

func window(v value.Object, w value.TimeWindowVal) (value.Object, error) {
	switch x := v.(type) {
	case *value.Frames:
		return x.Window(w, x.Descriptor())
	case *value.Trace:
		return x.Window(w, x.Descriptor())
	}
	return v, nil
}

// Snapshot is a value copy of the experiment state
type Snapshot struct {
	ID     string             `json:"id" yaml:"id"`
	Path   string             `json:"path" yaml:"path"`
	Format string             `json:"format" yaml:"format"`
	Header decoder.Header     `json:"header" yaml:"header"`
	Items  int                `json:"items" yaml:"items"`
	Chain  modifier.Snapshot  `json:"chain" yaml:"chain"`
	Cache  storage.CacheStats `json:"cache" yaml:"cache"`
}

// Snapshot captures the current state
func (e *Experiment) Snapshot() Snapshot {
	return Snapshot{
		ID:     e.ID(),
		Path:   e.path,
		Format: e.format,
		Header: e.Header(),
		Items:  e.repo.Len(),
		Chain:  e.chain.Snapshot(),
		Cache:  e.cache.Stats(),
	}
}

// Close stops any watcher and releases the result cache. It is safe to call
// more than once.
func (e *Experiment) Close() error {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return nil
	}
	e.closed = true
	stop := e.stop
	e.mu.Unlock()

	if stop != nil {
		stop()
	}
	e.wg.Wait()

	if err := e.cache.Close(); err != nil {
		return fmt.Errorf("failed to close result cache: %w", err)
	}
	e.logger.Debug("experiment closed")
	return nil
}

func (e *Experiment) isClosed() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.closed
}
