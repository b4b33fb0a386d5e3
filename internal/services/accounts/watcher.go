package accounts

import (
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/linuxlewis/claude-usage/internal/logger"
)

const debounceDelay = 200 * time.Millisecond

// startWatcher watches the metadata file's directory so external edits
// (another tool rewriting accounts.json) reload the registry. Events are
// debounced because editors and atomic writers fire several per save.
func (s *Service) startWatcher() error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	if err := watcher.Add(filepath.Dir(s.filePath)); err != nil {
		_ = watcher.Close()
		return err
	}
	s.watcher = watcher

	go s.watchLoop()
	return nil
}

func (s *Service) watchLoop() {
	for {
		select {
		case event, ok := <-s.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != filepath.Clean(s.filePath) {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			s.scheduleReload()

		case err, ok := <-s.watcher.Errors:
			if !ok {
				return
			}
			logger.Warn("accounts watcher error", "error", err)

		case <-s.stop:
			return
		}
	}
}

func (s *Service) scheduleReload() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.debounceTimer != nil {
		s.debounceTimer.Stop()
	}
	s.debounceTimer = time.AfterFunc(debounceDelay, s.reload)
}

func (s *Service) reload() {
	if err := s.load(); err != nil {
		logger.Warn("failed to reload accounts file", "error", err)
		s.sendEvent(Event{Type: EventError, Error: err})
		return
	}
	s.sendEvent(Event{Type: EventChanged})
}
