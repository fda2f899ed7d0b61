package fetch

import (
	"archive/tar"
	"compress/gzip"
	"context"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"atlas/internal/core/errors"
)

// ArchiveFetcher downloads the whole repository tarball into a scratch
// directory and serves tree/content reads from local disk. The scratch
// directory is removed on Close and on every failed construction path.
type ArchiveFetcher struct {
	coords     Coords
	scratchDir string
}

type ArchiveOptions struct {
	CodeLoadBase string
	Token        string
	Client       *http.Client
}

func NewArchiveFetcher(ctx context.Context, coords Coords, opts ArchiveOptions) (*ArchiveFetcher, error) {
	client := opts.Client
	if client == nil {
		client = http.DefaultClient
	}

	dir, err := os.MkdirTemp("", "atlas-repo-*")
	if err != nil {
		return nil, errors.Wrap(err, errors.CodeInternal, "create scratch directory")
	}

	if err := downloadTarball(ctx, client, opts, coords, dir); err != nil {
		if rmErr := os.RemoveAll(dir); rmErr != nil {
			slog.Warn("failed to remove scratch directory", "dir", dir, "error", rmErr)
		}
		return nil, err
	}

	return &ArchiveFetcher{coords: coords, scratchDir: dir}, nil
}

func (f *ArchiveFetcher) Coords() Coords { return f.coords }

func (f *ArchiveFetcher) Close() error {
	if f == nil || f.scratchDir == "" {
		return nil
	}
	err := os.RemoveAll(f.scratchDir)
	f.scratchDir = ""
	return err
}

func (f *ArchiveFetcher) ListTree(_ context.Context) ([]FileRecord, error) {
	var records []FileRecord
	err := filepath.WalkDir(f.scratchDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel, relErr := filepath.Rel(f.scratchDir, path)
		if relErr != nil {
			return relErr
		}
		if rel == "." {
			return nil
		}
		rel = filepath.ToSlash(rel)
		kind := "blob"
		if d.IsDir() {
			kind = "tree"
		}
		records = append(records, FileRecord{Path: rel, Kind: kind, URL: "file://" + path})
		return nil
	})
	if err != nil {
		return nil, errors.Wrap(err, errors.CodeInternal, "walk scratch directory")
	}
	return records, nil
}

func (f *ArchiveFetcher) FileContent(_ context.Context, path string) (string, error) {
	clean := filepath.Clean(filepath.FromSlash(path))
	if strings.HasPrefix(clean, "..") || filepath.IsAbs(clean) {
		return "", errors.AddContext(
			errors.New(errors.CodeValidationError, "path escapes repository root"), errors.CtxPath, path)
	}
	raw, err := os.ReadFile(filepath.Join(f.scratchDir, clean))
	if err != nil {
		return "", errors.AddContext(
			errors.Wrap(err, errors.CodeInternal, "read extracted file"), errors.CtxPath, path)
	}
	return string(raw), nil
}

func downloadTarball(ctx context.Context, client *http.Client, opts ArchiveOptions, coords Coords, destDir string) error {
	endpoint := fmt.Sprintf("%s/%s/%s/tar.gz/%s",
		opts.CodeLoadBase, coords.Owner, coords.Repo, url.PathEscape(coords.Branch))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return errors.Wrap(err, errors.CodeInternal, "build tarball request")
	}
	if opts.Token != "" {
		req.Header.Set("Authorization", "Bearer "+opts.Token)
	}

	resp, err := client.Do(req)
	if err != nil {
		return errors.Wrap(err, errors.CodeUpstream, "tarball download failed")
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusNotFound:
		return errors.AddContext(
			errors.New(errors.CodeNotFound, "repository or branch not found"),
			errors.CtxRepo, coords.Slug())
	default:
		return errors.New(errors.CodeUpstream, fmt.Sprintf("tarball download returned status %d", resp.StatusCode))
	}

	return extractTarball(resp.Body, destDir)
}

// extractTarball unpacks a GitHub tarball, stripping the single top-level
// "<repo>-<ref>/" directory that wraps every entry.
func extractTarball(r io.Reader, destDir string) error {
	gz, err := gzip.NewReader(r)
	if err != nil {
		return errors.Wrap(err, errors.CodeUpstream, "open gzip stream")
	}
	defer gz.Close()

	tr := tar.NewReader(gz)
	for {
		header, err := tr.Next()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return errors.Wrap(err, errors.CodeUpstream, "read tar entry")
		}

		rel := stripTopLevel(header.Name)
		if rel == "" {
			continue
		}
		clean := filepath.Clean(filepath.FromSlash(rel))
		if strings.HasPrefix(clean, "..") || filepath.IsAbs(clean) {
			slog.Warn("skipping tar entry escaping destination", "name", header.Name)
			continue
		}
		target := filepath.Join(destDir, clean)

		switch header.Typeflag {
		case tar.TypeDir:
			if err := os.MkdirAll(target, 0o755); err != nil {
				return errors.Wrap(err, errors.CodeInternal, "create extracted directory")
			}
		case tar.TypeReg:
			if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
				return errors.Wrap(err, errors.CodeInternal, "create extracted parent directory")
			}
			out, err := os.OpenFile(target, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o644)
			if err != nil {
				return errors.Wrap(err, errors.CodeInternal, "create extracted file")
			}
			if _, err := io.Copy(out, tr); err != nil {
				_ = out.Close()
				return errors.Wrap(err, errors.CodeUpstream, "write extracted file")
			}
			if err := out.Close(); err != nil {
				return errors.Wrap(err, errors.CodeInternal, "close extracted file")
			}
		default:
			// symlinks and the rest are dropped; analysis only needs regular files
		}
	}
}

func stripTopLevel(name string) string {
	name = strings.TrimPrefix(name, "./")
	if idx := strings.IndexByte(name, '/'); idx >= 0 {
		return name[idx+1:]
	}
	return ""
}
