package fetch

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"

	"atlas/internal/core/errors"
	"atlas/internal/shared/observability"
)

// RemoteFetcher lists the tree through the GitHub API and fetches file bodies
// from the raw mirror first, falling back to the authenticated contents API.
type RemoteFetcher struct {
	coords  Coords
	apiBase string
	rawBase string
	token   string
	client  *http.Client
}

type RemoteOptions struct {
	APIBase string
	RawBase string
	Token   string
	Client  *http.Client
}

func NewRemoteFetcher(coords Coords, opts RemoteOptions) *RemoteFetcher {
	client := opts.Client
	if client == nil {
		client = http.DefaultClient
	}
	return &RemoteFetcher{
		coords:  coords,
		apiBase: opts.APIBase,
		rawBase: opts.RawBase,
		token:   opts.Token,
		client:  client,
	}
}

func (f *RemoteFetcher) Coords() Coords { return f.coords }

func (f *RemoteFetcher) Close() error { return nil }

type treeResponse struct {
	Tree []struct {
		Path string `json:"path"`
		Type string `json:"type"`
		URL  string `json:"url"`
	} `json:"tree"`
	Truncated bool `json:"truncated"`
}

func (f *RemoteFetcher) ListTree(ctx context.Context) ([]FileRecord, error) {
	endpoint := fmt.Sprintf("%s/repos/%s/%s/git/trees/%s?recursive=1",
		f.apiBase, f.coords.Owner, f.coords.Repo, url.PathEscape(f.coords.Branch))

	body, status, err := f.get(ctx, endpoint, true)
	if err != nil {
		return nil, errors.Wrap(err, errors.CodeUpstream, "tree listing request failed")
	}
	switch status {
	case http.StatusOK:
	case http.StatusNotFound:
		return nil, errors.AddContext(
			errors.New(errors.CodeNotFound, "repository or branch not found"),
			errors.CtxRepo, f.coords.Slug())
	default:
		observability.FetchFailuresTotal.WithLabelValues("tree").Inc()
		return nil, errors.New(errors.CodeUpstream, fmt.Sprintf("tree listing returned status %d", status))
	}

	var resp treeResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, errors.Wrap(err, errors.CodeUpstream, "malformed tree listing")
	}
	if resp.Truncated {
		slog.Warn("tree listing truncated by upstream", "repo", f.coords.Slug())
	}

	records := make([]FileRecord, 0, len(resp.Tree))
	for _, node := range resp.Tree {
		records = append(records, FileRecord{Path: node.Path, Kind: node.Type, URL: node.URL})
	}
	return records, nil
}

func (f *RemoteFetcher) FileContent(ctx context.Context, path string) (string, error) {
	rawURL := fmt.Sprintf("%s/%s/%s/%s/%s",
		f.rawBase, f.coords.Owner, f.coords.Repo, url.PathEscape(f.coords.Branch), escapePath(path))

	body, status, err := f.get(ctx, rawURL, false)
	if err == nil && status == http.StatusOK {
		return string(body), nil
	}
	if err != nil {
		slog.Debug("raw mirror fetch failed, falling back to api", "path", path, "error", err)
	} else {
		slog.Debug("raw mirror fetch failed, falling back to api", "path", path, "status", status)
	}

	apiURL := fmt.Sprintf("%s/repos/%s/%s/contents/%s?ref=%s",
		f.apiBase, f.coords.Owner, f.coords.Repo, escapePath(path), url.QueryEscape(f.coords.Branch))
	body, status, err = f.getWithAccept(ctx, apiURL, true, "application/vnd.github.raw+json")
	if err != nil {
		observability.FetchFailuresTotal.WithLabelValues("file").Inc()
		return "", errors.AddContext(
			errors.Wrap(err, errors.CodeUpstream, "file fetch failed"), errors.CtxPath, path)
	}
	if status != http.StatusOK {
		observability.FetchFailuresTotal.WithLabelValues("file").Inc()
		return "", errors.AddContext(
			errors.New(errors.CodeUpstream, fmt.Sprintf("file fetch returned status %d", status)),
			errors.CtxPath, path)
	}
	return string(body), nil
}

func (f *RemoteFetcher) get(ctx context.Context, endpoint string, authed bool) ([]byte, int, error) {
	return f.getWithAccept(ctx, endpoint, authed, "")
}

func (f *RemoteFetcher) getWithAccept(ctx context.Context, endpoint string, authed bool, accept string) ([]byte, int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, 0, err
	}
	if authed && f.token != "" {
		req.Header.Set("Authorization", "Bearer "+f.token)
	}
	if accept != "" {
		req.Header.Set("Accept", accept)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, 0, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, resp.StatusCode, err
	}
	return body, resp.StatusCode, nil
}

// escapePath escapes each path segment individually; raw URLs keep the
// slashes between segments.
func escapePath(p string) string {
	segments := make([]string, 0, 8)
	for _, seg := range splitPath(p) {
		segments = append(segments, url.PathEscape(seg))
	}
	return joinPath(segments)
}

func splitPath(p string) []string {
	var out []string
	start := 0
	for i := 0; i < len(p); i++ {
		if p[i] == '/' {
			out = append(out, p[start:i])
			start = i + 1
		}
	}
	return append(out, p[start:])
}

func joinPath(segments []string) string {
	out := ""
	for i, seg := range segments {
		if i > 0 {
			out += "/"
		}
		out += seg
	}
	return out
}
