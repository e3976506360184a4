// Package assets fetches, decodes and caches the raster sources referenced
// by image elements.
//
// Resolution never fails loudly: a source that cannot be fetched, decoded or
// loaded within the timeout resolves to an Asset whose Err is set, and the
// compositor paints nothing for it.
package assets

import (
	"context"
	"errors"
	"fmt"
	"image"
	"image/gif"
	"log/slog"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"
)

// ErrUnavailable is wrapped by every failed resolution.
var ErrUnavailable = errors.New("asset unavailable")

// ErrTooLarge marks a source whose pixel count is over the resolver limit.
var ErrTooLarge = errors.New("image too large")

// Mode selects how a source is kept in memory.
type Mode int

const (
	// Normalized sources are redrawn into sRGB RGBA for compositing.
	Normalized Mode = iota
	// Raw sources keep the decoded image as-is plus the original bytes, and
	// every frame for GIFs.
	Raw
)

func (m Mode) String() string {
	if m == Raw {
		return "raw"
	}
	return "normalized"
}

// Defaults.
const (
	DefaultTimeout   = 10 * time.Second
	DefaultCacheSize = 256
	DefaultPDFDPI    = 150
	DefaultMaxPixels = 50_000_000
	preloadLimit     = 4
)

// Asset is a resolved (or failed) source.
type Asset struct {
	Ref       string
	Mode      Mode
	Format    string
	Image     image.Image
	Bytes     []byte
	Animation *gif.GIF
	Err       error
}

// Available reports whether the asset can be painted.
func (a *Asset) Available() bool {
	return a != nil && a.Err == nil && a.Image != nil
}

// Resolver memoizes sources per mode in bounded LRU caches.
type Resolver struct {
	fetcher   Fetcher
	cacheSize int
	timeout   time.Duration
	pdfDPI    float64
	maxPixels int
	logger    *slog.Logger

	caches [2]*lru.Cache[string, *Asset]
	group  singleflight.Group
}

// Option configures a Resolver.
type Option func(*Resolver)

// WithCacheSize bounds each mode's cache separately.
func WithCacheSize(n int) Option {
	return func(r *Resolver) {
		if n > 0 {
			r.cacheSize = n
		}
	}
}

// WithTimeout bounds how long one resolution may take.
func WithTimeout(d time.Duration) Option {
	return func(r *Resolver) {
		if d > 0 {
			r.timeout = d
		}
	}
}

// WithPDFDPI sets the rasterization density for PDF sources.
func WithPDFDPI(dpi float64) Option {
	return func(r *Resolver) {
		if dpi > 0 {
			r.pdfDPI = dpi
		}
	}
}

// WithMaxPixels bounds width*height of a decoded source.
func WithMaxPixels(n int) Option {
	return func(r *Resolver) {
		if n > 0 {
			r.maxPixels = n
		}
	}
}

// WithLogger sets the logger used for failed resolutions.
func WithLogger(l *slog.Logger) Option {
	return func(r *Resolver) {
		if l != nil {
			r.logger = l
		}
	}
}

// New creates a resolver on top of fetcher.
func New(fetcher Fetcher, opts ...Option) (*Resolver, error) {
	r := &Resolver{
		fetcher:   fetcher,
		cacheSize: DefaultCacheSize,
		timeout:   DefaultTimeout,
		pdfDPI:    DefaultPDFDPI,
		maxPixels: DefaultMaxPixels,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	for i := range r.caches {
		c, err := lru.New[string, *Asset](r.cacheSize)
		if err != nil {
			return nil, fmt.Errorf("asset cache: %w", err)
		}
		r.caches[i] = c
	}
	return r, nil
}

// Lookup returns a cached asset without loading anything.
func (r *Resolver) Lookup(ref string, mode Mode) (*Asset, bool) {
	return r.caches[mode].Get(ref)
}

// Image implements the compositor's asset lookup: the normalized raster of
// an already resolved, available source.
func (r *Resolver) Image(ref string) (image.Image, bool) {
	a, ok := r.Lookup(ref, Normalized)
	if !ok || !a.Available() {
		return nil, false
	}
	return a.Image, true
}

// Resolve loads a source, sharing in-flight loads of the same ref and mode.
// The result is never nil. Failures are cached like successes until Forget.
func (r *Resolver) Resolve(ctx context.Context, ref string, mode Mode) *Asset {
	if a, ok := r.Lookup(ref, mode); ok {
		return a
	}

	key := mode.String() + "\x00" + ref
	ch := r.group.DoChan(key, func() (any, error) {
		if a, ok := r.Lookup(ref, mode); ok {
			return a, nil
		}
		// The load outlives any single waiter; only the timeout bounds it.
		loadCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), r.timeout)
		defer cancel()

		a := r.load(loadCtx, ref, mode)
		r.caches[mode].Add(ref, a)
		return a, nil
	})

	select {
	case res := <-ch:
		return res.Val.(*Asset)
	case <-ctx.Done():
		return &Asset{Ref: ref, Mode: mode, Err: fmt.Errorf("%w: %s: %w", ErrUnavailable, ref, ctx.Err())}
	}
}

func (r *Resolver) load(ctx context.Context, ref string, mode Mode) *Asset {
	fail := func(err error) *Asset {
		r.logger.Warn("asset unavailable", "ref", truncateRef(ref), "mode", mode.String(), "error", err)
		return &Asset{Ref: ref, Mode: mode, Err: fmt.Errorf("%w: %s: %w", ErrUnavailable, truncateRef(ref), err)}
	}
	if ref == "" {
		return fail(errors.New("empty source reference"))
	}
	if r.fetcher == nil {
		return fail(errors.New("no fetcher configured"))
	}

	type result struct {
		asset *Asset
		err   error
	}
	done := make(chan result, 1)
	go func() {
		data, err := r.fetcher.Fetch(ctx, ref)
		if err != nil {
			done <- result{err: err}
			return
		}
		a, err := decode(ref, data, mode, r.pdfDPI, r.maxPixels)
		done <- result{asset: a, err: err}
	}()

	select {
	case res := <-done:
		if res.err != nil {
			return fail(res.err)
		}
		return res.asset
	case <-ctx.Done():
		return fail(fmt.Errorf("gave up after %s: %w", r.timeout, ctx.Err()))
	}
}

// EnsureLoaded resolves refs with bounded parallelism and returns them in
// input order.
func (r *Resolver) EnsureLoaded(ctx context.Context, refs []string, mode Mode) ([]*Asset, error) {
	out := make([]*Asset, len(refs))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(preloadLimit)
	for i, ref := range refs {
		g.Go(func() error {
			out[i] = r.Resolve(gctx, ref, mode)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return out, err
	}
	return out, ctx.Err()
}

// Forget evicts a source from both caches so the next Resolve reloads it.
func (r *Resolver) Forget(ref string) {
	for _, c := range r.caches {
		c.Remove(ref)
	}
}

// Purge empties both caches.
func (r *Resolver) Purge() {
	for _, c := range r.caches {
		c.Purge()
	}
}

// Len reports the number of cached entries for a mode.
func (r *Resolver) Len(mode Mode) int {
	return r.caches[mode].Len()
}

func truncateRef(ref string) string {
	const max = 80
	if len(ref) <= max {
		return ref
	}
	return ref[:max] + "..."
}
