package service

import (
	"sort"
	"time"

	"github.com/tracklight/tracklight-api/internal/models"
)

// intervalBoundaries returns the ascending, duplicate-free set of start
// and end instants across the given events. Consecutive boundaries
// delimit atomic slices during which the active event set is constant.
func intervalBoundaries(events []models.Event) []time.Time {
	seen := make(map[int64]time.Time, len(events)*2)
	for i := range events {
		e := &events[i]
		if !e.Timed() {
			continue
		}
		seen[e.StartTime.UnixNano()] = *e.StartTime
		seen[e.EndTime.UnixNano()] = *e.EndTime
	}

	boundaries := make([]time.Time, 0, len(seen))
	for _, t := range seen {
		boundaries = append(boundaries, t)
	}
	sort.Slice(boundaries, func(i, j int) bool { return boundaries[i].Before(boundaries[j]) })
	return boundaries
}
