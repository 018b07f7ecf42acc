package vcable

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/opd-ai/vcable/abi"
	"github.com/opd-ai/vcable/config"
	"github.com/opd-ai/vcable/loader"
	"github.com/sirupsen/logrus"
)

// SessionConfig controls how a Session discovers its plugins.
type SessionConfig struct {
	// SearchPaths are scanned in order; earlier directories fill slots first.
	SearchPaths []string
	// Prefix identifies candidate files; empty selects loader.DefaultPrefix.
	Prefix string
	// Opener loads candidate files; nil selects loader.DefaultOpener.
	Opener loader.Opener
	// Builtins are registered before any directory is scanned.
	Builtins []loader.Builtin
}

// NewSessionConfig returns a configuration searching VCABLE_PATH and then
// the build-time default directory.
func NewSessionConfig() *SessionConfig {
	return &SessionConfig{
		SearchPaths: config.SearchPaths(),
		Prefix:      loader.DefaultPrefix,
	}
}

// PluginInfo describes one registered plugin. Index is the value to pass to
// SetPlugin.
type PluginInfo struct {
	Index       int
	Name        string
	Description string
	Version     string
	Path        string
	Active      bool
}

// Stats are counters maintained by the dispatch path.
type Stats struct {
	// Dispatched counts writes forwarded to an active plugin.
	Dispatched uint64
	// Faults counts plugin panics contained by the session.
	Faults uint64
}

// Session owns a plugin registry and routes frames to at most one active
// plugin.
//
// Control operations (SetOptions, SetPlugin, Scan, Load, Release) are
// serialized internally. Write never locks: it only loads the published
// activation. Callers must still quiesce their audio callback before a
// control operation closes the plugin a concurrent Write may be inside.
//
// Create sessions with New. A zero Session reports itself inactive but has
// no registry to scan into.
type Session struct {
	id string

	mu         sync.Mutex
	scanner    *loader.Scanner
	registry   *loader.Registry
	options    abi.Options
	optionsSet bool
	released   bool
	report     loader.Report

	current    atomic.Pointer[activation]
	dispatched atomic.Uint64
	faults     atomic.Uint64
}

// New creates a session, registers cfg.Builtins and scans cfg.SearchPaths.
// Candidates that fail to load are skipped; see Report. A nil cfg selects
// NewSessionConfig.
func New(cfg *SessionConfig) *Session {
	if cfg == nil {
		cfg = NewSessionConfig()
	}

	s := &Session{
		id:       uuid.NewString(),
		scanner:  loader.NewScanner(cfg.Opener, cfg.Prefix),
		registry: loader.NewRegistry(),
	}
	s.current.Store(inactive)

	logrus.WithFields(logrus.Fields{
		"function":     "New",
		"session_id":   s.id,
		"search_paths": cfg.SearchPaths,
		"builtins":     len(cfg.Builtins),
	}).Info("Creating vcable session")

	for _, b := range cfg.Builtins {
		s.report.Results = append(s.report.Results, s.scanner.LoadBuiltin(s.registry, b))
	}
	scan := s.scanner.Scan(s.registry, cfg.SearchPaths)
	s.report.Results = append(s.report.Results, scan.Results...)
	s.report.SkippedDirs = append(s.report.SkippedDirs, scan.SkippedDirs...)

	logrus.WithFields(logrus.Fields{
		"function":   "New",
		"session_id": s.id,
		"registered": s.registry.Len(),
		"skipped":    len(s.report.Skipped()),
	}).Info("vcable session created")

	return s
}

// ID returns the session's unique identifier.
func (s *Session) ID() string {
	return s.id
}

// SetOptions validates and stores opts. If a plugin is active it is closed
// and opened again with the new options; should that open fail the session
// becomes inactive and ErrOpenFailed is returned.
func (s *Session) SetOptions(opts abi.Options) error {
	if err := opts.Validate(); err != nil {
		logrus.WithFields(logrus.Fields{
			"function":   "Session.SetOptions",
			"session_id": s.id,
			"error":      err.Error(),
		}).Error("Rejected session options")
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.released {
		return ErrReleased
	}

	s.options = opts
	s.optionsSet = true

	logrus.WithFields(logrus.Fields{
		"function":    "Session.SetOptions",
		"session_id":  s.id,
		"name":        opts.Name,
		"ports":       opts.Ports,
		"sample_size": opts.SampleSize,
	}).Info("Session options updated")

	cur := s.activation()
	if cur.state != StateActive {
		return nil
	}

	s.deactivateLocked()
	return s.activateLocked(cur.slot)
}

// SetPlugin selects the active plugin. Index 0 deactivates; index i in
// [1, Len()] closes the current plugin and opens registry slot i-1 with the
// stored options. An index outside [0, Len()] returns ErrIndexOutOfRange and
// a non-zero index before SetOptions returns ErrOptionsNotSet; neither
// changes the active plugin. If the new plugin fails to open the session is
// left inactive and ErrOpenFailed is returned.
func (s *Session) SetPlugin(index int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.released {
		return ErrReleased
	}

	if index < 0 || index > s.registry.Len() {
		logrus.WithFields(logrus.Fields{
			"function":   "Session.SetPlugin",
			"session_id": s.id,
			"index":      index,
			"registered": s.registry.Len(),
		}).Error("Plugin index out of range")
		return fmt.Errorf("%w: %d not in [0, %d]", ErrIndexOutOfRange, index, s.registry.Len())
	}

	if index > 0 && !s.optionsSet {
		logrus.WithFields(logrus.Fields{
			"function":   "Session.SetPlugin",
			"session_id": s.id,
			"index":      index,
		}).Error("SetPlugin called before SetOptions")
		return ErrOptionsNotSet
	}

	s.deactivateLocked()
	if index == 0 {
		return nil
	}
	return s.activateLocked(index - 1)
}

// Write forwards one block for port to the active plugin. Without an active
// plugin the frames are dropped. This is the real-time path: it takes no
// lock, performs no allocation of its own and contains plugin panics.
func (s *Session) Write(port int, samples []byte, count int, sampleRate uint32) {
	cur := s.activation()
	if cur.state != StateActive {
		return
	}
	s.dispatched.Add(1)
	s.dispatch(cur, port, samples, count, sampleRate)
}

func (s *Session) dispatch(cur *activation, port int, samples []byte, count int, sampleRate uint32) {
	defer func() {
		if r := recover(); r != nil {
			s.faults.Add(1)
			logrus.WithFields(logrus.Fields{
				"function":    "Session.Write",
				"session_id":  s.id,
				"plugin":      cur.name,
				"port":        port,
				"count":       count,
				"sample_rate": sampleRate,
				"panic":       fmt.Sprint(r),
			}).Error("Plugin write panicked, frames dropped")
		}
	}()
	cur.plugin.Write(port, samples, count, sampleRate)
}

// Release closes the active plugin, releases every registered module and
// empties the registry. It is idempotent and safe on a nil session.
func (s *Session) Release() error {
	if s == nil {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var errs []error
	if cur := s.activation(); cur.state == StateActive {
		s.current.Store(inactive)
		if err := closePlugin(cur); err != nil {
			errs = append(errs, err)
		}
	}
	s.current.Store(inactive)

	if s.registry != nil {
		if err := s.registry.Release(); err != nil {
			errs = append(errs, err)
		}
	}

	if !s.released {
		logrus.WithFields(logrus.Fields{
			"function":   "Session.Release",
			"session_id": s.id,
			"dispatched": s.dispatched.Load(),
			"faults":     s.faults.Load(),
		}).Info("vcable session released")
	}

	s.options = abi.Options{}
	s.optionsSet = false
	s.released = true

	return errors.Join(errs...)
}

// Scan loads every candidate in paths into free slots.
func (s *Session) Scan(paths ...string) loader.Report {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.released {
		return loader.Report{}
	}

	report := s.scanner.Scan(s.registry, paths)
	s.report.Results = append(s.report.Results, report.Results...)
	s.report.SkippedDirs = append(s.report.SkippedDirs, report.SkippedDirs...)
	return report
}

// Load registers a single candidate file.
func (s *Session) Load(path string) loader.Result {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.released {
		return loader.Result{Path: path, Outcome: loader.SkippedOpen, Slot: -1, Err: ErrReleased}
	}

	res := s.scanner.Load(s.registry, path)
	s.report.Results = append(s.report.Results, res)
	return res
}

// Report returns every load result recorded by the session so far.
func (s *Session) Report() loader.Report {
	s.mu.Lock()
	defer s.mu.Unlock()

	return loader.Report{
		Results:     append([]loader.Result(nil), s.report.Results...),
		SkippedDirs: append([]string(nil), s.report.SkippedDirs...),
	}
}

// Len returns the number of registered plugins.
func (s *Session) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.registry.Len()
}

// Plugins lists the registered plugins in slot order.
func (s *Session) Plugins() []PluginInfo {
	s.mu.Lock()
	defer s.mu.Unlock()

	cur := s.activation()
	entries := s.registry.Entries()
	infos := make([]PluginInfo, 0, len(entries))
	for i, e := range entries {
		infos = append(infos, PluginInfo{
			Index:       i + 1,
			Name:        e.Descriptor.Name,
			Description: e.Descriptor.Description,
			Version:     e.Descriptor.Version,
			Path:        e.Path,
			Active:      cur.state == StateActive && cur.slot == i,
		})
	}
	return infos
}

// Active returns the SetPlugin index of the active plugin.
func (s *Session) Active() (int, bool) {
	cur := s.activation()
	if cur.state != StateActive {
		return 0, false
	}
	return cur.slot + 1, true
}

// State returns the current activation state.
func (s *Session) State() State {
	return s.activation().state
}

// Stats returns the dispatch counters.
func (s *Session) Stats() Stats {
	return Stats{
		Dispatched: s.dispatched.Load(),
		Faults:     s.faults.Load(),
	}
}

// activation returns the published activation, treating a session that
// never stored one as inactive.
func (s *Session) activation() *activation {
	if cur := s.current.Load(); cur != nil {
		return cur
	}
	return inactive
}

// deactivateLocked publishes the inactive state, then closes the plugin that
// was active.
func (s *Session) deactivateLocked() {
	cur := s.activation()
	if cur.state != StateActive {
		return
	}
	s.current.Store(inactive)

	if err := closePlugin(cur); err != nil {
		logrus.WithFields(logrus.Fields{
			"function":   "Session.deactivate",
			"session_id": s.id,
			"plugin":     cur.name,
			"error":      err.Error(),
		}).Warn("Plugin close reported an error")
		return
	}

	logrus.WithFields(logrus.Fields{
		"function":   "Session.deactivate",
		"session_id": s.id,
		"plugin":     cur.name,
		"slot":       cur.slot,
	}).Info("Plugin deactivated")
}

// activateLocked opens slot with the stored options and publishes it. On
// failure the session stays inactive.
func (s *Session) activateLocked(slot int) error {
	entry, ok := s.registry.Get(slot)
	if !ok {
		return fmt.Errorf("%w: slot %d is empty", ErrIndexOutOfRange, slot)
	}

	// Each open gets its own copy; plugins may keep the pointer.
	opts := s.options
	if err := openPlugin(entry.Descriptor.Plugin, &opts); err != nil {
		logrus.WithFields(logrus.Fields{
			"function":   "Session.activate",
			"session_id": s.id,
			"plugin":     entry.Descriptor.Name,
			"slot":       slot,
			"error":      err.Error(),
		}).Error("Failed to open plugin")
		return fmt.Errorf("%w: %s: %w", ErrOpenFailed, entry.Descriptor.Name, err)
	}

	s.current.Store(active(slot, entry.Descriptor))

	logrus.WithFields(logrus.Fields{
		"function":   "Session.activate",
		"session_id": s.id,
		"plugin":     entry.Descriptor.Name,
		"slot":       slot,
	}).Info("Plugin activated")

	return nil
}

func openPlugin(p abi.CablePlugin, opts *abi.Options) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("open panicked: %v", r)
		}
	}()
	return p.Open(opts)
}

func closePlugin(cur *activation) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("close %s panicked: %v", cur.name, r)
		}
	}()
	return cur.plugin.Close()
}
