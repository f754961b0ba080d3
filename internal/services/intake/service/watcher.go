package service

import (
	"context"
	"os"
	"path/filepath"
	"time"

	"rollcall/internal/platform/logger"
	"rollcall/internal/services/intake/domain"

	"github.com/fsnotify/fsnotify"
)

// Watch admits files already in the directory, then every file that lands
// there, until ctx is done. In flight admissions finish before it returns.
func (s *Svc) Watch(ctx context.Context) error {
	log := logger.Named("intake").With().Str("dir", s.cfg.Dir).Logger()
	for _, d := range []string{s.cfg.Dir, s.cfg.AcceptedDir, s.cfg.QuarantineDir} {
		if err := os.MkdirAll(d, 0o755); err != nil {
			return err
		}
	}

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer func() { _ = w.Close() }()
	if err := w.Add(s.cfg.Dir); err != nil {
		return err
	}

	n, err := s.Scan(ctx)
	if err != nil {
		return err
	}
	log.Info().Int("existing", n).Msg("intake watching")

	for {
		select {
		case <-ctx.Done():
			s.stopTimers()
			s.wg.Wait()
			return nil
		case e, ok := <-w.Events:
			if !ok {
				s.wg.Wait()
				return nil
			}
			if e.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Rename) == 0 {
				continue
			}
			s.schedule(ctx, e.Name)
		case err, ok := <-w.Errors:
			if !ok {
				continue
			}
			log.Error().Err(err).Msg("watcher error")
		}
	}
}

// Scan schedules every regular file currently in the directory
func (s *Svc) Scan(ctx context.Context) (int, error) {
	entries, err := os.ReadDir(s.cfg.Dir)
	if err != nil {
		return 0, err
	}
	n := 0
	for _, e := range entries {
		if !e.Type().IsRegular() {
			continue
		}
		s.schedule(ctx, filepath.Join(s.cfg.Dir, e.Name()))
		n++
	}
	return n, nil
}

// Drain admits the files already in the directory one at a time and returns
// how many were enqueued
func (s *Svc) Drain(ctx context.Context) (int, error) {
	for _, d := range []string{s.cfg.Dir, s.cfg.AcceptedDir, s.cfg.QuarantineDir} {
		if err := os.MkdirAll(d, 0o755); err != nil {
			return 0, err
		}
	}
	entries, err := os.ReadDir(s.cfg.Dir)
	if err != nil {
		return 0, err
	}
	n := 0
	for _, e := range entries {
		if ctx.Err() != nil {
			return n, ctx.Err()
		}
		if !e.Type().IsRegular() || ignored(e.Name()) {
			continue
		}
		if _, err := s.Handle(ctx, filepath.Join(s.cfg.Dir, e.Name())); err == nil {
			n++
		}
	}
	return n, nil
}

// schedule debounces bursts of events for one path
func (s *Svc) schedule(ctx context.Context, path string) {
	if ignored(filepath.Base(path)) {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if t, ok := s.timers[path]; ok {
		t.Stop()
	}
	if s.cfg.Debounce <= 0 {
		delete(s.timers, path)
		s.spawnLocked(ctx, path)
		return
	}
	s.timers[path] = time.AfterFunc(s.cfg.Debounce, func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.timers, path)
		s.spawnLocked(ctx, path)
	})
}

// spawnLocked starts one admission per path; later events for the same path
// are absorbed by the running stability check
func (s *Svc) spawnLocked(ctx context.Context, path string) {
	if ctx.Err() != nil {
		return
	}
	if _, busy := s.inflight[path]; busy {
		return
	}
	s.inflight[path] = struct{}{}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer func() {
			s.mu.Lock()
			delete(s.inflight, path)
			s.mu.Unlock()
		}()
		// errors are logged inside Handle and never stop the loop
		_, _ = s.Handle(ctx, path)
	}()
}

func (s *Svc) stopTimers() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for p, t := range s.timers {
		t.Stop()
		delete(s.timers, p)
	}
}

// stable waits until size and mtime hold still for StabilityChecks polls in a row
func (s *Svc) stable(ctx context.Context, path string) (os.FileInfo, error) {
	limit := time.NewTimer(s.cfg.StabilityMaxWait)
	defer limit.Stop()
	tick := time.NewTicker(s.cfg.StabilityPoll)
	defer tick.Stop()

	var last os.FileInfo
	same := 0
	for {
		fi, err := os.Stat(path)
		if err != nil {
			return nil, err
		}
		if !fi.Mode().IsRegular() {
			return nil, domain.Rejection{Reason: domain.ReasonUnreadable, Detail: "not a regular file"}
		}
		if last != nil && fi.Size() == last.Size() && fi.ModTime().Equal(last.ModTime()) {
			same++
		} else {
			same = 0
		}
		last = fi
		if same >= s.cfg.StabilityChecks {
			return fi, nil
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-limit.C:
			return nil, domain.Rejection{Reason: domain.ReasonUnstable, Detail: "still changing after " + s.cfg.StabilityMaxWait.String()}
		case <-tick.C:
		}
	}
}
