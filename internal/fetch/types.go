package fetch

import (
	"context"
	"fmt"
	"strings"

	"atlas/internal/core/errors"
)

// Coords identifies a repository snapshot: owner/name at a branch.
type Coords struct {
	Owner  string `json:"owner"`
	Repo   string `json:"repo"`
	Branch string `json:"branch"`
}

func (c Coords) Slug() string {
	return c.Owner + "/" + c.Repo
}

func (c Coords) String() string {
	return fmt.Sprintf("%s/%s@%s", c.Owner, c.Repo, c.Branch)
}

// Validate checks coordinates before any network work and defaults the branch.
func (c *Coords) Validate() error {
	c.Owner = strings.TrimSpace(c.Owner)
	c.Repo = strings.TrimSpace(c.Repo)
	c.Branch = strings.TrimSpace(c.Branch)
	if c.Owner == "" || c.Repo == "" {
		return errors.New(errors.CodeValidationError, "repository owner and name are required")
	}
	if strings.ContainsAny(c.Owner, "/\\") || strings.ContainsAny(c.Repo, "/\\") {
		return errors.New(errors.CodeValidationError, "owner and name must be single path segments")
	}
	if c.Branch == "" {
		c.Branch = "main"
	}
	return nil
}

// FileRecord is one entry of the repository tree, independent of whether the
// file later classifies as an entity.
type FileRecord struct {
	Path string `json:"path"`
	Kind string `json:"type"` // "blob" or "tree"
	URL  string `json:"url"`
}

// Fetcher lists a repository tree and retrieves file bodies by path.
// Implementations are bound to one Coords for their lifetime.
type Fetcher interface {
	Coords() Coords
	ListTree(ctx context.Context) ([]FileRecord, error)
	FileContent(ctx context.Context, path string) (string, error)
	Close() error
}
