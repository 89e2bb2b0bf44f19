package assets

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/starford/cardsmith/internal/storage"
)

// RemotePolicy controls how http(s) sources are treated.
type RemotePolicy string

const (
	// PolicyFetch downloads remote images.
	PolicyFetch RemotePolicy = "fetch"
	// PolicyOmit skips remote images; the card renders without them.
	PolicyOmit RemotePolicy = "omit"
	// PolicyTaint refuses remote images and fails the capture, the way a
	// canvas tainted by a cross-origin image refuses to export.
	PolicyTaint RemotePolicy = "taint"
)

// AssetPrefix is the path prefix of uploaded asset sources.
const AssetPrefix = "/assets/"

const (
	defaultMaxBytes     = 10 << 20
	defaultFetchTimeout = 15 * time.Second
	preloadLimit        = 4
)

var (
	// ErrTainted is returned for sources whose pixels may not be read.
	ErrTainted = errors.New("assets: source pixels are not readable")
	// ErrOmitted is returned for sources skipped by policy.
	ErrOmitted = errors.New("assets: source omitted")
)

// Resolver turns sources into decoded images and caches the results.
type Resolver struct {
	store     storage.Provider
	policy    RemotePolicy
	client    *http.Client
	maxBytes  int64
	timeout   time.Duration
	hostCheck func(host string) error
	logger    *slog.Logger

	mu    sync.Mutex
	cache map[string]*Image
}

// Option configures a Resolver.
type Option func(*Resolver)

// WithRemotePolicy sets the policy for http(s) sources.
func WithRemotePolicy(p RemotePolicy) Option {
	return func(r *Resolver) { r.policy = p }
}

// WithHTTPClient overrides the client used for remote fetches.
func WithHTTPClient(c *http.Client) Option {
	return func(r *Resolver) { r.client = c }
}

// WithMaxBytes caps the size of a single source.
func WithMaxBytes(n int64) Option {
	return func(r *Resolver) { r.maxBytes = n }
}

// WithFetchTimeout sets the timeout of the default remote client.
func WithFetchTimeout(d time.Duration) Option {
	return func(r *Resolver) { r.timeout = d }
}

// WithHostCheck replaces the remote host filter. nil disables it.
func WithHostCheck(fn func(host string) error) Option {
	return func(r *Resolver) { r.hostCheck = fn }
}

// WithLogger sets the logger used for omitted sources.
func WithLogger(l *slog.Logger) Option {
	return func(r *Resolver) { r.logger = l }
}

// NewResolver creates a Resolver. store may be nil when no asset directory
// is configured.
func NewResolver(store storage.Provider, opts ...Option) *Resolver {
	r := &Resolver{
		store:     store,
		policy:    PolicyFetch,
		maxBytes:  defaultMaxBytes,
		timeout:   defaultFetchTimeout,
		hostCheck: checkBlockedHost,
		logger:    slog.Default(),
		cache:     make(map[string]*Image),
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.client == nil {
		r.client = &http.Client{
			Timeout: r.timeout,
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				if len(via) >= 5 {
					return fmt.Errorf("too many redirects (max 5)")
				}
				if r.hostCheck != nil {
					return r.hostCheck(req.URL.Hostname())
				}
				return nil
			},
		}
	}
	return r
}

// Resolve returns the decoded image for src. Successful results are cached
// until Reset; failures are retried on the next call.
func (r *Resolver) Resolve(ctx context.Context, src string) (*Image, error) {
	r.mu.Lock()
	img, ok := r.cache[src]
	r.mu.Unlock()
	if ok {
		return img, nil
	}

	data, err := r.load(ctx, src)
	if err != nil {
		return nil, err
	}
	if int64(len(data)) > r.maxBytes {
		return nil, fmt.Errorf("assets: source too large: %d bytes (max %d)", len(data), r.maxBytes)
	}
	img, err = Decode(data)
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	r.cache[src] = img
	r.mu.Unlock()
	return img, nil
}

// Preload resolves every source concurrently. Sources that fail to load are
// left out of the result and logged, slow remote hosts included. Only
// ErrTainted and the cancellation of ctx are returned.
func (r *Resolver) Preload(ctx context.Context, sources []string) (map[string]*Image, error) {
	var mu sync.Mutex
	out := make(map[string]*Image, len(sources))

	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(preloadLimit)
	seen := make(map[string]struct{}, len(sources))
	for _, src := range sources {
		if src == "" {
			continue
		}
		if _, dup := seen[src]; dup {
			continue
		}
		seen[src] = struct{}{}

		g.Go(func() error {
			img, err := r.Resolve(gCtx, src)
			switch {
			case err == nil:
				mu.Lock()
				out[src] = img
				mu.Unlock()
				return nil
			case errors.Is(err, ErrTainted):
				return err
			case gCtx.Err() != nil:
				// The caller gave up. A client timeout on one source
				// leaves gCtx alive and falls through to omission.
				return gCtx.Err()
			default:
				r.logger.Warn("assets: source omitted",
					slog.String("source", describe(src)),
					slog.String("error", err.Error()))
				return nil
			}
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

// Download returns the raw bytes of a data URI or http(s) source. It applies
// the size cap and host filter but ignores the remote policy, since the
// caller asked for the bytes explicitly.
func (r *Resolver) Download(ctx context.Context, src string) ([]byte, error) {
	var (
		data []byte
		err  error
	)
	switch {
	case strings.HasPrefix(src, "data:"):
		data, err = decodeDataURI(src)
	case strings.HasPrefix(src, "http://"), strings.HasPrefix(src, "https://"):
		data, err = r.fetch(ctx, src)
	default:
		return nil, fmt.Errorf("assets: unsupported source %s (only data: and http(s) URLs)", describe(src))
	}
	if err != nil {
		return nil, err
	}
	if int64(len(data)) > r.maxBytes {
		return nil, fmt.Errorf("assets: source too large: %d bytes (max %d)", len(data), r.maxBytes)
	}
	return data, nil
}

// Reset drops every cached image.
func (r *Resolver) Reset() {
	r.mu.Lock()
	r.cache = make(map[string]*Image)
	r.mu.Unlock()
}

func (r *Resolver) load(ctx context.Context, src string) ([]byte, error) {
	switch {
	case strings.HasPrefix(src, "data:"):
		return decodeDataURI(src)
	case strings.HasPrefix(src, "http://"), strings.HasPrefix(src, "https://"):
		switch r.policy {
		case PolicyOmit:
			return nil, ErrOmitted
		case PolicyTaint:
			return nil, fmt.Errorf("%w: %s", ErrTainted, describe(src))
		}
		return r.fetch(ctx, src)
	default:
		if r.store == nil {
			return nil, fmt.Errorf("assets: no asset store for %s", src)
		}
		return r.store.Read(strings.TrimPrefix(strings.TrimPrefix(src, AssetPrefix), "assets/"))
	}
}

// decodeDataURI parses a data:[<mediatype>];base64,<data> URI.
func decodeDataURI(uri string) ([]byte, error) {
	rest := strings.TrimPrefix(uri, "data:")
	commaIdx := strings.Index(rest, ",")
	if commaIdx < 0 {
		return nil, fmt.Errorf("assets: invalid data URI: missing comma separator")
	}

	meta := rest[:commaIdx]
	encoded := rest[commaIdx+1:]

	if !strings.HasSuffix(meta, ";base64") {
		return nil, fmt.Errorf("assets: only base64 data URIs are supported")
	}
	if !strings.HasPrefix(meta, "image/") {
		return nil, fmt.Errorf("assets: unsupported data URI type: %s", strings.TrimSuffix(meta, ";base64"))
	}

	data, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		data, err = base64.RawStdEncoding.DecodeString(encoded)
		if err != nil {
			return nil, fmt.Errorf("assets: invalid base64 data: %w", err)
		}
	}
	return data, nil
}

// fetch downloads a remote image with host and size checks.
func (r *Resolver) fetch(ctx context.Context, rawURL string) ([]byte, error) {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("assets: invalid URL: %w", err)
	}
	if r.hostCheck != nil {
		if err := r.hostCheck(parsed.Hostname()); err != nil {
			return nil, err
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("assets: build request: %w", err)
	}
	resp, err := r.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("assets: download failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("assets: download failed: HTTP %d", resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, r.maxBytes+1))
	if err != nil {
		return nil, fmt.Errorf("assets: read body failed: %w", err)
	}
	return data, nil
}

// checkBlockedHost rejects loopback and cloud metadata addresses.
func checkBlockedHost(host string) error {
	if host == "metadata.google.internal" {
		return fmt.Errorf("assets: blocked host: %s", host)
	}

	ip := net.ParseIP(host)
	if ip == nil {
		ips, lookupErr := net.LookupIP(host)
		if lookupErr != nil || len(ips) == 0 {
			return nil //nolint:nilerr // let http.Client handle DNS failures
		}
		ip = ips[0]
	}

	if ip.IsLoopback() {
		return fmt.Errorf("assets: blocked host: loopback address %s", host)
	}
	if ip.Equal(net.ParseIP("169.254.169.254")) {
		return fmt.Errorf("assets: blocked host: cloud metadata address %s", host)
	}
	return nil
}

// describe shortens data URIs for logs.
func describe(src string) string {
	if strings.HasPrefix(src, "data:") {
		if i := strings.Index(src, ","); i >= 0 {
			return src[:i] + ",…"
		}
	}
	return src
}
