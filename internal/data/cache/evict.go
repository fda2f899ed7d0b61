package cache

import (
	"sort"
	"time"
)

// Summary is the metadata the eviction policy needs about one stored record.
type Summary struct {
	Key           string
	FormatVersion int
	CapturedAt    time.Time
	ExpiresAt     time.Time
	SizeBytes     int64
}

// EvictionReason tags why a key appears in the delete-set.
type EvictionReason string

const (
	ReasonExpired EvictionReason = "expired"
	ReasonVersion EvictionReason = "version"
	ReasonOverCap EvictionReason = "size"
)

// PlanEvictions computes the delete-set for the current store contents:
// stale and wrong-version records unconditionally, then oldest-captured
// records until total size fits under maxBytes. maxBytes <= 0 disables the
// size cap. The function is pure; callers apply the plan.
func PlanEvictions(records []Summary, now time.Time, version int, maxBytes int64) map[string]EvictionReason {
	plan := make(map[string]EvictionReason)

	var total int64
	live := make([]Summary, 0, len(records))
	for _, rec := range records {
		switch {
		case rec.FormatVersion != version:
			plan[rec.Key] = ReasonVersion
		case !rec.ExpiresAt.After(now):
			plan[rec.Key] = ReasonExpired
		default:
			live = append(live, rec)
			total += rec.SizeBytes
		}
	}

	if maxBytes <= 0 || total <= maxBytes {
		return plan
	}

	sort.Slice(live, func(i, j int) bool {
		return live[i].CapturedAt.Before(live[j].CapturedAt)
	})
	for _, rec := range live {
		if total <= maxBytes {
			break
		}
		plan[rec.Key] = ReasonOverCap
		total -= rec.SizeBytes
	}
	return plan
}
