package repo

import (
	"sort"

	perr "rollcall/internal/platform/errors"
	"rollcall/internal/services/jobs/domain"
)

// sortByPriority restores lease order; UPDATE ... RETURNING does not keep the CTE order
func sortByPriority(jobs []domain.Job) {
	sort.SliceStable(jobs, func(a, b int) bool {
		if jobs[a].Priority != jobs[b].Priority {
			return jobs[a].Priority < jobs[b].Priority
		}
		return jobs[a].CreatedAt.Before(jobs[b].CreatedAt)
	})
}

func isNotFound(err error) bool { return perr.IsCode(err, perr.ErrorCodeNotFound) }
