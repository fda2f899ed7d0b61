package cache

import (
	"fmt"
	"time"

	"github.com/cespare/xxhash/v2"

	"atlas/internal/engine/classify"
	"atlas/internal/fetch"
)

// FormatVersion is bumped whenever the serialized record shape changes;
// records written under any other version are treated as absent.
const FormatVersion = 2

// Record is one cached analysis result. Records are immutable once written:
// a repeat analysis replaces the whole row. The run counts are carried so a
// replayed record summarizes exactly like the run that produced it.
type Record struct {
	Key           string              `json:"key"`
	FormatVersion int                 `json:"formatVersion"`
	CapturedAt    time.Time           `json:"capturedAt"`
	ExpiresAt     time.Time           `json:"expiresAt"`
	Entities      []*classify.Entity  `json:"entities"`
	Files         []fetch.FileRecord  `json:"files"`
	Coords        fetch.Coords        `json:"coords"`
	TotalFiles    int                 `json:"totalFiles"`
	AnalyzedFiles int                 `json:"analyzedFiles"`
}

// Fingerprint derives the stable cache key for a repository snapshot.
func Fingerprint(coords fetch.Coords) string {
	return fmt.Sprintf("%016x", xxhash.Sum64String(coords.Slug()+"#"+coords.Branch))
}

// Stats is the aggregate management view of the store.
type Stats struct {
	Count      int       `json:"count"`
	TotalBytes int64     `json:"totalBytes"`
	Oldest     time.Time `json:"oldest,omitzero"`
	Newest     time.Time `json:"newest,omitzero"`
}
