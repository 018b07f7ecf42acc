package vcable

import (
	"context"
	"fmt"

	"github.com/fsnotify/fsnotify"
	"github.com/opd-ai/vcable/loader"
	"github.com/sirupsen/logrus"
)

// Watch loads plugin candidates that appear in dirs while ctx is alive.
//
// Newly created or rewritten files matching the candidate prefix are passed
// to Load; paths already registered are ignored, so the active plugin's code
// is never reloaded. onLoad, when non-nil, receives every load result. Watch
// blocks until ctx is done and returns nil, or returns an error if the
// watcher cannot be set up. Directories that cannot be watched are skipped.
func (s *Session) Watch(ctx context.Context, dirs []string, onLoad func(loader.Result)) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create plugin watcher: %w", err)
	}
	defer watcher.Close()

	watched := 0
	for _, dir := range dirs {
		if dir == "" {
			continue
		}
		if err := watcher.Add(dir); err != nil {
			logrus.WithFields(logrus.Fields{
				"function":   "Session.Watch",
				"session_id": s.id,
				"dir":        dir,
				"error":      err.Error(),
			}).Warn("Could not watch plugins directory")
			continue
		}
		watched++
	}

	logrus.WithFields(logrus.Fields{
		"function":   "Session.Watch",
		"session_id": s.id,
		"dirs":       watched,
	}).Info("Watching for new plugins")

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if !event.Has(fsnotify.Create) && !event.Has(fsnotify.Write) {
				continue
			}
			if !s.scanner.Matches(event.Name) || s.registered(event.Name) {
				continue
			}

			res := s.Load(event.Name)
			if onLoad != nil {
				onLoad(res)
			}

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			logrus.WithFields(logrus.Fields{
				"function":   "Session.Watch",
				"session_id": s.id,
				"error":      err.Error(),
			}).Warn("Plugin watcher error")
		}
	}
}

func (s *Session) registered(path string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.registry.Contains(path)
}
