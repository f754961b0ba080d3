package service

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"rollcall/internal/adapters/ingest/sheet"
	"rollcall/internal/core/idnumber"
	perr "rollcall/internal/platform/errors"
	audit "rollcall/internal/services/audit/domain"
	jobs "rollcall/internal/services/jobs/domain"
	lookup "rollcall/internal/services/lookup/domain"
	lookupsvc "rollcall/internal/services/lookup/service"
	members "rollcall/internal/services/members/domain"
	membersvc "rollcall/internal/services/members/service"
	"rollcall/internal/services/pipeline/domain"
	verify "rollcall/internal/services/verify/domain"
)

type progressCall struct {
	stage string
	pct   int
}

// fakeQueue records what the pipeline and worker write back
type fakeQueue struct {
	jobs.Queue

	mu        sync.Mutex
	leasable  []jobs.Job
	progress  []progressCall
	completed map[string]json.RawMessage
	failed    map[string]bool
}

func newFakeQueue(leasable ...jobs.Job) *fakeQueue {
	return &fakeQueue{leasable: leasable, completed: map[string]json.RawMessage{}, failed: map[string]bool{}}
}

func (q *fakeQueue) Lease(_ context.Context, _ string, limit int) ([]jobs.Job, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	n := min(limit, len(q.leasable))
	out := q.leasable[:n]
	q.leasable = q.leasable[n:]
	return out, nil
}

func (q *fakeQueue) Heartbeat(context.Context, string, string) error { return nil }

func (q *fakeQueue) Progress(_ context.Context, _, _, stage string, pct int, _ string) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.progress = append(q.progress, progressCall{stage, pct})
	return nil
}

func (q *fakeQueue) Complete(_ context.Context, id, _ string, result json.RawMessage, _ string) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.completed[id] = result
	return nil
}

func (q *fakeQueue) Fail(_ context.Context, id, _, _ string, retryable bool) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.failed[id] = retryable
	return nil
}

func (q *fakeQueue) stages() []string {
	q.mu.Lock()
	defer q.mu.Unlock()
	var out []string
	for _, p := range q.progress {
		if len(out) == 0 || out[len(out)-1] != p.stage {
			out = append(out, p.stage)
		}
	}
	return out
}

type fakeLoader struct {
	res lookup.Resolver
	err error
}

func (l fakeLoader) Load(context.Context) (lookup.Resolver, error) { return l.res, l.err }

type fakeVerifier struct {
	out   verify.BatchResult
	calls int
}

func (v *fakeVerifier) Verify(_ context.Context, ids []string, progress verify.Progress) verify.BatchResult {
	v.calls++
	if progress != nil {
		progress(len(ids)/2, len(ids))
		progress(len(ids), len(ids))
	}
	return v.out
}

func (v *fakeVerifier) Status(context.Context) (verify.RateLimitState, error) {
	return verify.RateLimitState{}, nil
}

type fakeWriter struct {
	stored map[string]members.Stored
	got    *membersvc.Input
	err    error
}

func (w *fakeWriter) LookupExisting(_ context.Context, ids []string) (map[string]members.Stored, error) {
	out := map[string]members.Stored{}
	for _, id := range ids {
		if s, ok := w.stored[id]; ok {
			out[id] = s
		}
	}
	return out, nil
}

func (w *fakeWriter) Persist(_ context.Context, in membersvc.Input) ([]members.Outcome, error) {
	w.got = &in
	if w.err != nil {
		return nil, w.err
	}
	var outs []members.Outcome
	for i, v := range in.New {
		_, ok := in.Results[v.IDNumber()]
		outs = append(outs, members.Outcome{RowNumber: v.Record.RowNumber, IDNumber: v.IDNumber(), Op: members.OpInsert, OK: true, MemberID: int64(i + 1), Verified: ok})
	}
	for _, e := range in.Existing {
		_, ok := in.Results[e.IDNumber()]
		outs = append(outs, members.Outcome{RowNumber: e.Record.RowNumber, IDNumber: e.IDNumber(), Op: members.OpUpdate, OK: true, MemberID: e.MemberID, Verified: ok})
	}
	return outs, nil
}

type memSink struct {
	mu     sync.Mutex
	events []audit.Event
	finals []audit.Final
}

func (s *memSink) Record(_ context.Context, e audit.Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, e)
}

func (s *memSink) Progress(context.Context, audit.Progress) {}

func (s *memSink) Final(_ context.Context, f audit.Final) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.finals = append(s.finals, f)
}

func (s *memSink) has(t audit.EventType) (audit.Event, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, e := range s.events {
		if e.Type == t {
			return e, true
		}
	}
	return audit.Event{}, false
}

func catalog() lookup.Resolver {
	return lookupsvc.NewCatalog(lookup.Snapshot{
		Codes: []lookup.Code{
			{Table: lookup.VoterStatus, ID: 1, Code: "Registered", Label: "Registered"},
			{Table: lookup.VoterStatus, ID: 2, Code: "Not Verified", Label: "Not Verified"},
		},
		Wards: []lookup.Geo{{Ward: "79800056", Municipality: "JHB", District: "JHB", Province: "GT"}},
	})
}

func validID(t *testing.T, prefix string) string {
	t.Helper()
	d, err := idnumber.CheckDigit(prefix)
	if err != nil {
		t.Fatalf("check digit %q: %v", prefix, err)
	}
	return prefix + string(d)
}

type fixture struct {
	p      *Pipeline
	queue  *fakeQueue
	ver    *fakeVerifier
	writer *fakeWriter
	sink   *memSink
}

func newFixture(t *testing.T, recs []sheet.Record, readErr error) *fixture {
	t.Helper()
	f := &fixture{
		queue:  newFakeQueue(),
		ver:    &fakeVerifier{},
		writer: &fakeWriter{stored: map[string]members.Stored{}},
		sink:   &memSink{},
	}
	f.p = New(f.queue, fakeLoader{res: catalog()}, f.ver, f.writer, f.sink, Config{ReportDir: t.TempDir()})
	f.p.read = func(context.Context, string) ([]sheet.Record, error) { return recs, readErr }
	return f
}

func job() jobs.Job {
	return jobs.Job{JobID: "3f1c2d4e-0000-4000-8000-000000000001", FileName: "members.xlsx", FilePath: "/in/members.xlsx", Attempts: 1}
}

func TestProcess_RateLimitStillPersistsAndCompletes(t *testing.T) {
	t.Parallel()

	a := validID(t, "800101500908")
	b := validID(t, "750505012308")
	c := validID(t, "910230400108")
	recs := []sheet.Record{
		{RowNumber: 2, IDNumber: a, WardCode: "79800056"},
		{RowNumber: 3, IDNumber: b},
		{RowNumber: 4, IDNumber: c},
		{RowNumber: 5, IDNumber: a},
		{RowNumber: 6, IDNumber: "80010150090871"},
	}
	f := newFixture(t, recs, nil)
	f.writer.stored[c] = members.Stored{MemberID: 77, IDNumber: c}

	reset := time.Date(2026, 10, 17, 13, 0, 0, 0, time.UTC)
	f.ver.out = verify.BatchResult{
		Results:                  map[string]verify.Result{a: {IDNumber: a, Registered: true, Ward: "79800056", VotingDistrict: "11110000"}},
		RateLimitHit:             true,
		RowsProcessedBeforeLimit: 1,
		ResetAt:                  &reset,
		Requested:                3,
		Attempted:                1,
	}

	res, err := f.p.Process(context.Background(), job(), "w1")
	if err != nil {
		t.Fatalf("Process: %v", err)
	}

	if f.writer.got == nil {
		t.Fatalf("persist was skipped after the rate limit")
	}
	if len(f.writer.got.New) != 2 || len(f.writer.got.Existing) != 1 {
		t.Fatalf("persist got new=%d existing=%d, want 2 and 1", len(f.writer.got.New), len(f.writer.got.Existing))
	}
	if res.Persist.Counts.Inserted != 2 || res.Persist.Counts.Updated != 1 || res.Persist.Counts.Unverified != 2 {
		t.Fatalf("counts = %+v", res.Persist.Counts)
	}
	if !res.Verification.RateLimitHit || len(res.Verification.Unverified) != 2 || res.Verification.Verified != 1 {
		t.Fatalf("verification = %+v", res.Verification)
	}
	if !strings.Contains(res.Advisory, "rate limit") || !strings.Contains(res.Advisory, "2026-10-17T13:00:00Z") {
		t.Fatalf("advisory = %q", res.Advisory)
	}
	if res.Batch.Stats.Invalid != 1 || len(res.Batch.Duplicates) != 2 {
		t.Fatalf("batch = %+v", res.Batch.Stats)
	}
	if _, err := os.Stat(res.ReportPath); err != nil {
		t.Fatalf("report missing: %v", err)
	}

	ev, ok := f.sink.has(audit.RateLimitReached)
	if !ok {
		t.Fatalf("no %s event", audit.RateLimitReached)
	}
	if ev.Metadata["rows_processed_before_limit"] != 1 {
		t.Fatalf("rate limit metadata = %v", ev.Metadata)
	}
	for _, want := range []audit.EventType{audit.ProcessingStarted, audit.DuplicateDetected, audit.ValidationFailed, audit.ProcessingCompleted} {
		if _, ok := f.sink.has(want); !ok {
			t.Fatalf("no %s event", want)
		}
	}
	if len(f.sink.finals) != 1 || !f.sink.finals[0].Success {
		t.Fatalf("finals = %+v", f.sink.finals)
	}

	want := []string{"initializing", "reading", "validating", "verifying", "persisting", "reporting", "completed"}
	if got := f.queue.stages(); strings.Join(got, ",") != strings.Join(want, ",") {
		t.Fatalf("stages = %v, want %v", got, want)
	}
	for _, p := range f.queue.progress {
		if p.stage == "verifying" && (p.pct < domain.VerifyFloor || p.pct > domain.VerifyCeiling) {
			t.Fatalf("verifying progress %d outside band", p.pct)
		}
	}
}

func TestProcess_EmptyFileFailsWithoutRetry(t *testing.T) {
	t.Parallel()

	f := newFixture(t, nil, sheet.ErrEmptyFile)
	_, err := f.p.Process(context.Background(), job(), "w1")
	if !perr.IsCode(err, perr.ErrorCodeValidation) {
		t.Fatalf("err = %v, want validation", err)
	}
	if perr.Retryable(err) {
		t.Fatalf("empty file must not be retried")
	}
	if f.writer.got != nil || f.ver.calls != 0 {
		t.Fatalf("later stages ran after a read failure")
	}
	if len(f.sink.finals) != 1 || f.sink.finals[0].Success {
		t.Fatalf("finals = %+v", f.sink.finals)
	}
	if f.sink.finals[0].Summary["stage"] != "reading" {
		t.Fatalf("failed stage = %v", f.sink.finals[0].Summary["stage"])
	}
	if f.sink.finals[0].Summary["code"] != "validation" {
		t.Fatalf("failed code = %v", f.sink.finals[0].Summary["code"])
	}
	ev, ok := f.sink.has(audit.ProcessingFailed)
	if !ok || ev.Metadata["code"] != "validation" {
		t.Fatalf("failure event = %+v", ev)
	}
	stages := f.queue.stages()
	if stages[len(stages)-1] != "error" {
		t.Fatalf("last stage = %v", stages)
	}
}

func TestProcess_LookupLoadFailureIsRetryable(t *testing.T) {
	t.Parallel()

	f := newFixture(t, []sheet.Record{{RowNumber: 2, IDNumber: validID(t, "800101500908")}}, nil)
	f.p.lookups = fakeLoader{err: errors.New("connection refused")}

	_, err := f.p.Process(context.Background(), job(), "w1")
	if !perr.IsCode(err, perr.ErrorCodeUnavailable) || !perr.Retryable(err) {
		t.Fatalf("err = %v (%v), want retryable unavailable", err, perr.CodeOf(err))
	}
}

func TestProcess_PersistFailureIsFatal(t *testing.T) {
	t.Parallel()

	f := newFixture(t, []sheet.Record{{RowNumber: 2, IDNumber: validID(t, "800101500908")}}, nil)
	f.writer.err = perr.DBf("commit failed")

	res, err := f.p.Process(context.Background(), job(), "w1")
	if !perr.IsCode(err, perr.ErrorCodeDB) {
		t.Fatalf("err = %v, want db", err)
	}
	if res.ReportPath != "" {
		t.Fatalf("report written for a failed job")
	}
	if _, ok := f.sink.has(audit.ProcessingFailed); !ok {
		t.Fatalf("no %s event", audit.ProcessingFailed)
	}
}
