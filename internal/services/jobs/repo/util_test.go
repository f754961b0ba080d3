package repo

import (
	"testing"
	"time"

	"rollcall/internal/services/jobs/domain"
)

func TestSortByPriority_UrgentThenOldest(t *testing.T) {
	t.Parallel()

	t0 := time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)
	jobs := []domain.Job{
		{JobID: "watch-new", Priority: 5, CreatedAt: t0.Add(time.Minute)},
		{JobID: "ui-new", Priority: 1, CreatedAt: t0.Add(2 * time.Minute)},
		{JobID: "watch-old", Priority: 5, CreatedAt: t0},
		{JobID: "ui-old", Priority: 1, CreatedAt: t0.Add(time.Second)},
	}
	sortByPriority(jobs)

	want := []string{"ui-old", "ui-new", "watch-old", "watch-new"}
	for i, id := range want {
		if jobs[i].JobID != id {
			t.Fatalf("order[%d] = %s, want %s", i, jobs[i].JobID, id)
		}
	}
}
