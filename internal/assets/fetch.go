package assets

import (
	"context"
	"encoding/base64"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
)

// Fetcher returns the encoded bytes behind a source reference.
type Fetcher interface {
	Fetch(ctx context.Context, ref string) ([]byte, error)
}

// FetcherFunc adapts a function to Fetcher.
type FetcherFunc func(ctx context.Context, ref string) ([]byte, error)

func (f FetcherFunc) Fetch(ctx context.Context, ref string) ([]byte, error) { return f(ctx, ref) }

// DataURLFetcher decodes embedded "data:" references.
type DataURLFetcher struct{}

func (DataURLFetcher) Fetch(_ context.Context, ref string) ([]byte, error) {
	rest, ok := strings.CutPrefix(ref, "data:")
	if !ok {
		return nil, fmt.Errorf("not a data URL")
	}
	meta, payload, ok := strings.Cut(rest, ",")
	if !ok {
		return nil, fmt.Errorf("data URL without payload")
	}
	if strings.HasSuffix(meta, ";base64") {
		data, err := base64.StdEncoding.DecodeString(payload)
		if err != nil {
			// Some producers drop the padding.
			data, err = base64.RawStdEncoding.DecodeString(strings.TrimRight(payload, "="))
		}
		if err != nil {
			return nil, fmt.Errorf("data URL: %w", err)
		}
		return data, nil
	}
	s, err := url.PathUnescape(payload)
	if err != nil {
		return nil, fmt.Errorf("data URL: %w", err)
	}
	return []byte(s), nil
}

// HTTPFetcher downloads http(s) references.
type HTTPFetcher struct {
	Client   *http.Client
	MaxBytes int64
}

func (f HTTPFetcher) Fetch(ctx context.Context, ref string) ([]byte, error) {
	client := f.Client
	if client == nil {
		client = http.DefaultClient
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, ref, nil)
	if err != nil {
		return nil, err
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("GET %s: %s", ref, resp.Status)
	}
	limit := f.MaxBytes
	if limit <= 0 {
		limit = 64 << 20
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, limit+1))
	if err != nil {
		return nil, err
	}
	if int64(len(data)) > limit {
		return nil, fmt.Errorf("GET %s: body exceeds %d bytes", ref, limit)
	}
	return data, nil
}

// FileFetcher reads local files. Relative paths are resolved against Root.
type FileFetcher struct {
	Root string
}

func (f FileFetcher) Fetch(ctx context.Context, ref string) ([]byte, error) {
	path := strings.TrimPrefix(ref, "file://")
	if !filepath.IsAbs(path) && f.Root != "" {
		path = filepath.Join(f.Root, path)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return os.ReadFile(path)
}

// MultiFetcher routes a reference to the fetcher for its scheme.
type MultiFetcher struct {
	Data Fetcher
	HTTP Fetcher
	File Fetcher
}

// DefaultFetcher handles data URLs, http(s) and local files under root.
func DefaultFetcher(root string) *MultiFetcher {
	return &MultiFetcher{
		Data: DataURLFetcher{},
		HTTP: HTTPFetcher{},
		File: FileFetcher{Root: root},
	}
}

func (m *MultiFetcher) Fetch(ctx context.Context, ref string) ([]byte, error) {
	var f Fetcher
	switch {
	case strings.HasPrefix(ref, "data:"):
		f = m.Data
	case strings.HasPrefix(ref, "http://"), strings.HasPrefix(ref, "https://"):
		f = m.HTTP
	case strings.Contains(ref, "://") && !strings.HasPrefix(ref, "file://"):
		return nil, fmt.Errorf("unsupported source scheme in %q", ref)
	default:
		f = m.File
	}
	if f == nil {
		return nil, fmt.Errorf("no fetcher configured for %q", ref)
	}
	return f.Fetch(ctx, ref)
}
