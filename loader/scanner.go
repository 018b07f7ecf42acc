package loader

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/opd-ai/vcable/abi"
	"github.com/sirupsen/logrus"
)

// DefaultPrefix is the file name prefix identifying plugin candidates.
const DefaultPrefix = "vcable-"

// Outcome classifies what happened to one candidate.
type Outcome uint8

const (
	// Registered means the candidate now occupies a registry slot.
	Registered Outcome = iota
	// SkippedOpen means the opener could not load the file.
	SkippedOpen
	// SkippedSymbol means the registration entry point is missing or mistyped.
	SkippedSymbol
	// SkippedVersion means the ABI version did not match.
	SkippedVersion
	// SkippedEntryPoints means the descriptor carried no plugin.
	SkippedEntryPoints
	// SkippedCapacity means the registry was full.
	SkippedCapacity
	// SkippedDuplicate means the path was already registered.
	SkippedDuplicate
	// SkippedPanic means the registration entry point panicked.
	SkippedPanic
)

// String returns a short label for the outcome.
func (o Outcome) String() string {
	switch o {
	case Registered:
		return "registered"
	case SkippedOpen:
		return "open failed"
	case SkippedSymbol:
		return "missing registration symbol"
	case SkippedVersion:
		return "version mismatch"
	case SkippedEntryPoints:
		return "missing entry points"
	case SkippedCapacity:
		return "registry full"
	case SkippedDuplicate:
		return "duplicate"
	case SkippedPanic:
		return "registration panicked"
	default:
		return fmt.Sprintf("Outcome(%d)", uint8(o))
	}
}

// Result describes one candidate.
type Result struct {
	Path    string
	Outcome Outcome
	// Slot is the registry slot on success and -1 otherwise.
	Slot       int
	Descriptor abi.Descriptor
	Err        error
}

// Report is the outcome of a scan.
type Report struct {
	Results     []Result
	SkippedDirs []string
}

// Registered returns the results that ended up in the registry.
func (r Report) Registered() []Result {
	var out []Result
	for _, res := range r.Results {
		if res.Outcome == Registered {
			out = append(out, res)
		}
	}
	return out
}

// Skipped returns the results that were rejected.
func (r Report) Skipped() []Result {
	var out []Result
	for _, res := range r.Results {
		if res.Outcome != Registered {
			out = append(out, res)
		}
	}
	return out
}

// Scanner discovers and loads plugin candidates into a registry.
type Scanner struct {
	opener Opener
	prefix string
}

// NewScanner creates a scanner. A nil opener selects DefaultOpener and an
// empty prefix selects DefaultPrefix.
func NewScanner(opener Opener, prefix string) *Scanner {
	if opener == nil {
		opener = DefaultOpener()
	}
	if prefix == "" {
		prefix = DefaultPrefix
	}
	return &Scanner{opener: opener, prefix: prefix}
}

// Prefix returns the candidate file name prefix.
func (s *Scanner) Prefix() string {
	return s.prefix
}

// Matches reports whether a file name is a plugin candidate.
func (s *Scanner) Matches(name string) bool {
	return strings.HasPrefix(filepath.Base(name), s.prefix)
}

// Scan loads every candidate found in paths, in order. Empty paths are
// ignored, unreadable directories are recorded and skipped, and a failing
// candidate never stops the scan.
func (s *Scanner) Scan(reg *Registry, paths []string) Report {
	var report Report

	for _, dir := range paths {
		if dir == "" {
			continue
		}

		entries, err := os.ReadDir(dir)
		if err != nil {
			logrus.WithFields(logrus.Fields{
				"function": "Scanner.Scan",
				"dir":      dir,
				"error":    err.Error(),
			}).Warn("Could not open plugins directory")
			report.SkippedDirs = append(report.SkippedDirs, dir)
			continue
		}

		for _, entry := range entries {
			if entry.IsDir() || !s.Matches(entry.Name()) {
				continue
			}
			report.Results = append(report.Results, s.Load(reg, filepath.Join(dir, entry.Name())))
		}
	}

	logrus.WithFields(logrus.Fields{
		"function":     "Scanner.Scan",
		"paths":        paths,
		"candidates":   len(report.Results),
		"registered":   len(report.Registered()),
		"skipped_dirs": len(report.SkippedDirs),
	}).Info("Plugin scan completed")

	return report
}

// Load opens one candidate file and registers it.
func (s *Scanner) Load(reg *Registry, path string) Result {
	if reg.Contains(path) {
		return s.reject(Result{Path: path, Outcome: SkippedDuplicate, Slot: -1,
			Err: fmt.Errorf("%w: %s", ErrDuplicate, path)})
	}

	module, err := s.opener.Open(path)
	if err != nil {
		return s.reject(Result{Path: path, Outcome: SkippedOpen, Slot: -1,
			Err: fmt.Errorf("open %s: %w", path, err)})
	}

	return s.register(reg, path, module)
}

// LoadBuiltin registers a module linked into the binary.
func (s *Scanner) LoadBuiltin(reg *Registry, b Builtin) Result {
	if reg.Contains(b.Path()) {
		return s.reject(Result{Path: b.Path(), Outcome: SkippedDuplicate, Slot: -1,
			Err: fmt.Errorf("%w: %s", ErrDuplicate, b.Path())})
	}
	return s.register(reg, b.Path(), b)
}

// register resolves, validates and stores an already opened module. The
// module is closed on every rejection.
func (s *Scanner) register(reg *Registry, path string, module Module) Result {
	res := Result{Path: path, Slot: -1}

	register, err := resolveRegister(module)
	if err != nil {
		res.Outcome, res.Err = SkippedSymbol, err
		return s.discard(module, res)
	}

	desc, err := invokeRegister(register)
	if err != nil {
		res.Outcome, res.Err = SkippedPanic, err
		return s.discard(module, res)
	}
	res.Descriptor = desc

	if err := desc.Validate(); err != nil {
		res.Outcome, res.Err = SkippedEntryPoints, err
		if errors.Is(err, abi.ErrVersionMismatch) {
			res.Outcome = SkippedVersion
		}
		return s.discard(module, res)
	}

	slot, err := reg.Add(Entry{Path: path, Module: module, Descriptor: desc})
	if err != nil {
		res.Outcome, res.Err = SkippedCapacity, err
		return s.discard(module, res)
	}

	res.Outcome, res.Slot = Registered, slot

	logrus.WithFields(logrus.Fields{
		"function":    "Scanner.register",
		"path":        path,
		"slot":        slot,
		"plugin":      desc.Name,
		"version":     desc.Version,
		"description": desc.Description,
	}).Info("Registered plugin")

	return res
}

func (s *Scanner) discard(module Module, res Result) Result {
	if err := module.Close(); err != nil {
		logrus.WithFields(logrus.Fields{
			"function": "Scanner.discard",
			"path":     res.Path,
			"error":    err.Error(),
		}).Warn("Failed to release rejected plugin module")
	}
	return s.reject(res)
}

func (s *Scanner) reject(res Result) Result {
	logrus.WithFields(logrus.Fields{
		"function": "Scanner.Load",
		"path":     res.Path,
		"outcome":  res.Outcome.String(),
		"error":    res.Err.Error(),
	}).Warn("Skipping plugin candidate")
	return res
}

// invokeRegister calls the entry point with a zeroed descriptor, converting
// a panic into an error.
func invokeRegister(register abi.RegisterFunc) (desc abi.Descriptor, err error) {
	defer func() {
		if r := recover(); r != nil {
			desc = abi.Descriptor{}
			err = fmt.Errorf("%s panicked: %v", abi.RegisterSymbol, r)
		}
	}()
	register(&desc)
	return desc, nil
}
