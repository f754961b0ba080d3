package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"rollcall/internal/platform/testkit"
	audit "rollcall/internal/services/audit/domain"
	"rollcall/internal/services/intake/domain"
	jobs "rollcall/internal/services/jobs/domain"
)

type fakeQueue struct {
	jobs.Queue

	mu         sync.Mutex
	enqueued   []jobs.NewJob
	recent     []jobs.Job
	enqueueErr error
}

func (q *fakeQueue) Enqueue(_ context.Context, nj jobs.NewJob) (string, bool, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.enqueueErr != nil {
		return "", false, q.enqueueErr
	}
	q.enqueued = append(q.enqueued, nj)
	return nj.JobID, true, nil
}

func (q *fakeQueue) RecentByFileName(_ context.Context, name string, _ time.Duration) ([]jobs.Job, error) {
	var out []jobs.Job
	for _, j := range q.recent {
		if j.FileName == name {
			out = append(out, j)
		}
	}
	return out, nil
}

func (q *fakeQueue) count() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.enqueued)
}

type fakeTracker struct {
	mu       sync.Mutex
	statuses map[string][]domain.Status
}

func (f *fakeTracker) Track(_ context.Context, u domain.Upload) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.statuses[u.JobID] = append(f.statuses[u.JobID], u.Status)
	return nil
}

func (f *fakeTracker) SetStatus(_ context.Context, id string, s domain.Status, _ string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.statuses[id] = append(f.statuses[id], s)
	return nil
}

type memRec struct {
	mu     sync.Mutex
	events []audit.Event
}

func (m *memRec) Record(_ context.Context, e audit.Event) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, e)
}

func testConfig(t *testing.T) Config {
	t.Helper()
	root := t.TempDir()
	return Config{
		Dir:              filepath.Join(root, "in"),
		AcceptedDir:      filepath.Join(root, "accepted"),
		QuarantineDir:    filepath.Join(root, "quarantine"),
		AllowedExts:      []string{".xlsx", ".xls"},
		MinBytes:         8,
		MaxBytes:         1024,
		StabilityPoll:    5 * time.Millisecond,
		StabilityChecks:  2,
		StabilityMaxWait: 300 * time.Millisecond,
		DuplicateWindow:  24 * time.Hour,
		Priority:         jobs.PriorityWatcher,
		Submitter:        "intake",
	}
}

type harness struct {
	svc     *Svc
	queue   *fakeQueue
	tracker *fakeTracker
	rec     *memRec
	cfg     Config
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	cfg := testConfig(t)
	for _, d := range []string{cfg.Dir, cfg.AcceptedDir, cfg.QuarantineDir} {
		if err := os.MkdirAll(d, 0o755); err != nil {
			t.Fatal(err)
		}
	}
	h := &harness{queue: &fakeQueue{}, tracker: &fakeTracker{statuses: map[string][]domain.Status{}}, rec: &memRec{}, cfg: cfg}
	h.svc = New(cfg, h.queue, h.tracker, h.rec)
	var n atomic.Int32
	h.svc.newID = func() string { return fmt.Sprintf("8a4f6c1e-1111-4000-8000-%012d", n.Add(1)) }
	return h
}

func (h *harness) drop(t *testing.T, name string, size int) string {
	t.Helper()
	p := filepath.Join(h.cfg.Dir, name)
	if err := os.WriteFile(p, []byte(strings.Repeat("x", size)), 0o644); err != nil {
		t.Fatal(err)
	}
	return p
}

func (h *harness) quarantined(t *testing.T) domain.Rejection {
	t.Helper()
	notes, _ := filepath.Glob(filepath.Join(h.cfg.QuarantineDir, "*.error.json"))
	if len(notes) != 1 {
		t.Fatalf("rejection notes = %v, want 1", notes)
	}
	body, err := os.ReadFile(notes[0])
	if err != nil {
		t.Fatal(err)
	}
	var rej domain.Rejection
	if err := json.Unmarshal(body, &rej); err != nil {
		t.Fatalf("note: %v", err)
	}
	if _, err := os.Stat(strings.TrimSuffix(notes[0], ".error.json")); err != nil {
		t.Fatalf("quarantined file missing: %v", err)
	}
	return rej
}

func TestHandle_AcceptsAndEnqueues(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	p := h.drop(t, "branch-a.xlsx", 64)

	id, err := h.svc.Handle(context.Background(), p)
	if err != nil {
		t.Fatalf("Handle: %v", err)
	}
	if _, err := os.Stat(p); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("file still in the watched dir")
	}

	nj := h.queue.enqueued[0]
	if nj.JobID != id || nj.FileName != "branch-a.xlsx" || nj.Source != jobs.SourceWatcher || nj.Priority != jobs.PriorityWatcher {
		t.Fatalf("enqueued = %+v", nj)
	}
	if filepath.Dir(nj.FilePath) != h.cfg.AcceptedDir {
		t.Fatalf("job path %s not under accepted dir", nj.FilePath)
	}
	if got := h.tracker.statuses[id]; len(got) != 2 || got[0] != domain.StatusPending || got[1] != domain.StatusQueued {
		t.Fatalf("tracking = %v", got)
	}
	if len(h.rec.events) != 1 || h.rec.events[0].Type != audit.FileDetected {
		t.Fatalf("events = %+v", h.rec.events)
	}
}

func TestHandle_Rejections(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name string
		file string
		size int
		want domain.Reason
	}{
		{"extension", "notes.csv", 64, domain.ReasonExtension},
		{"too small", "tiny.xlsx", 2, domain.ReasonTooSmall},
		{"too large", "huge.xls", 4096, domain.ReasonTooLarge},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			h := newHarness(t)
			_, err := h.svc.Handle(context.Background(), h.drop(t, tc.file, tc.size))

			var rej domain.Rejection
			if !errors.As(err, &rej) || rej.Reason != tc.want {
				t.Fatalf("err = %v, want %s", err, tc.want)
			}
			if note := h.quarantined(t); note.Reason != tc.want || note.File != tc.file {
				t.Fatalf("note = %+v", note)
			}
			if h.queue.count() != 0 {
				t.Fatalf("rejected file was enqueued")
			}
			if len(h.rec.events) != 1 || h.rec.events[0].Type != audit.FileRejected {
				t.Fatalf("events = %+v", h.rec.events)
			}
		})
	}
}

func TestHandle_DuplicateWithinWindow(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	h.queue.recent = []jobs.Job{{JobID: "earlier", FileName: "branch-a.xlsx", State: jobs.StateCompleted}}

	_, err := h.svc.Handle(context.Background(), h.drop(t, "branch-a.xlsx", 64))
	var rej domain.Rejection
	if !errors.As(err, &rej) || rej.Reason != domain.ReasonDuplicate {
		t.Fatalf("err = %v, want duplicate", err)
	}
	testkit.MustContain(t, h.quarantined(t).Detail, "earlier")
}

func TestHandle_EnqueueFailureIsTracked(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	h.queue.enqueueErr = errors.New("db down")

	id, err := h.svc.Handle(context.Background(), h.drop(t, "branch-a.xlsx", 64))
	if err == nil {
		t.Fatalf("expected enqueue error")
	}
	if got := h.tracker.statuses[id]; len(got) != 2 || got[1] != domain.StatusEnqueueFailed {
		t.Fatalf("tracking = %v", got)
	}
}

func TestHandle_UnstableFileIsRejected(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	h.svc.cfg.StabilityMaxWait = 60 * time.Millisecond
	p := h.drop(t, "growing.xlsx", 16)

	stop := make(chan struct{})
	done := make(chan struct{})
	go func() {
		defer close(done)
		f, err := os.OpenFile(p, os.O_APPEND|os.O_WRONLY, 0o644)
		if err != nil {
			return
		}
		defer func() { _ = f.Close() }()
		for {
			select {
			case <-stop:
				return
			case <-time.After(time.Millisecond):
				_, _ = f.WriteString("x")
			}
		}
	}()

	_, err := h.svc.Handle(context.Background(), p)
	close(stop)
	<-done

	var rej domain.Rejection
	if !errors.As(err, &rej) || rej.Reason != domain.ReasonUnstable {
		t.Fatalf("err = %v, want unstable", err)
	}
}

func TestHandle_VanishedFileIsIgnored(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	_, err := h.svc.Handle(context.Background(), filepath.Join(h.cfg.Dir, "gone.txt"))
	if !errors.Is(err, errVanished) {
		t.Fatalf("err = %v", err)
	}
	if notes, _ := filepath.Glob(filepath.Join(h.cfg.QuarantineDir, "*")); len(notes) != 0 {
		t.Fatalf("quarantine = %v", notes)
	}
}

func TestWatch_ScansThenFollowsNewFiles(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	h.svc.cfg.Debounce = 10 * time.Millisecond
	h.drop(t, "existing.xlsx", 64)
	h.drop(t, "~$existing.xlsx", 64)

	ctx, cancel := context.WithCancel(context.Background())
	errc := make(chan error, 1)
	go func() { errc <- h.svc.Watch(ctx) }()

	waitFor(t, func() bool { return h.queue.count() == 1 })
	h.drop(t, "later.xlsx", 64)
	waitFor(t, func() bool { return h.queue.count() == 2 })

	cancel()
	if err := <-errc; err != nil {
		t.Fatalf("Watch: %v", err)
	}
	if _, err := os.Stat(filepath.Join(h.cfg.Dir, "~$existing.xlsx")); err != nil {
		t.Fatalf("lock file should be left alone: %v", err)
	}
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("condition not met in time")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestDrain_AdmitsExistingFiles(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	h.drop(t, "a.xlsx", 64)
	h.drop(t, "b.xls", 64)
	h.drop(t, "c.pdf", 64)
	h.drop(t, ".hidden.xlsx", 64)

	n, err := h.svc.Drain(context.Background())
	if err != nil {
		t.Fatalf("Drain: %v", err)
	}
	if n != 2 || h.queue.count() != 2 {
		t.Fatalf("admitted %d, enqueued %d", n, h.queue.count())
	}
	if note := h.quarantined(t); note.File != "c.pdf" {
		t.Fatalf("note = %+v", note)
	}
}
