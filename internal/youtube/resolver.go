package youtube

import (
	"context"
	"errors"
	"net/http"
	"time"

	"go.uber.org/zap"
)

// Resolver defaults
const (
	DefaultResolveTimeout = 60 * time.Second
	PlaylistFetchTimeout  = 10 * time.Second
)

// Stream is a playable direct media URL
type Stream struct {
	VideoID    string    `json:"video_id"`
	URL        string    `json:"url"`
	Format     string    `json:"format"`
	FormatSpec string    `json:"format_spec"`
	HLS        bool      `json:"hls"`
	ResolvedAt time.Time `json:"resolved_at"`
}

// Resolver walks the format chain until the extractor yields a URL
type Resolver struct {
	extractor  Extractor
	formats    []Format
	cache      Cache
	httpClient *http.Client
	timeout    time.Duration
	maxHeight  int
	logger     *zap.Logger
}

// ResolverOption configures a Resolver
type ResolverOption func(*Resolver)

// WithCache sets the resolved URL cache
func WithCache(c Cache) ResolverOption {
	return func(r *Resolver) { r.cache = c }
}

// WithTimeout bounds a whole resolve run
func WithTimeout(d time.Duration) ResolverOption {
	return func(r *Resolver) {
		if d > 0 {
			r.timeout = d
		}
	}
}

// WithMaxHeight sets the resolution cap of the format chain and HLS variants
func WithMaxHeight(h int) ResolverOption {
	return func(r *Resolver) {
		if h > 0 {
			r.maxHeight = h
		}
	}
}

// WithHTTPClient sets the client used to fetch HLS playlists
func WithHTTPClient(c *http.Client) ResolverOption {
	return func(r *Resolver) { r.httpClient = c }
}

// WithLogger sets the logger
func WithLogger(l *zap.Logger) ResolverOption {
	return func(r *Resolver) { r.logger = l }
}

// NewResolver creates a resolver around an extractor
func NewResolver(extractor Extractor, opts ...ResolverOption) *Resolver {
	r := &Resolver{
		extractor:  extractor,
		httpClient: &http.Client{Timeout: PlaylistFetchTimeout},
		timeout:    DefaultResolveTimeout,
		maxHeight:  DefaultMaxHeight,
		logger:     zap.NewNop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	r.formats = FormatChain(r.maxHeight)
	return r
}

// Formats returns the chain this resolver tries
func (r *Resolver) Formats() []Format {
	out := make([]Format, len(r.formats))
	copy(out, r.formats)
	return out
}

// Resolve validates the URL and returns the first stream the chain produces
func (r *Resolver) Resolve(ctx context.Context, rawURL string) (*Stream, error) {
	if err := ValidateURL(rawURL); err != nil {
		return nil, &ResolveError{URL: rawURL, Category: CategoryInvalidURL, Cause: err}
	}
	videoID := VideoID(rawURL)
	canonical := CanonicalURL(rawURL)

	if r.cache != nil {
		if s, ok := r.cache.Get(ctx, videoID); ok {
			r.logger.Debug("stream cache hit", zap.String("video_id", videoID))
			return s, nil
		}
	}

	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	var attempts []Attempt
	for _, f := range r.formats {
		if ctx.Err() != nil {
			break
		}

		streamURL, err := r.extractor.Extract(ctx, canonical, f.Spec)
		if err == nil && streamURL == "" {
			err = ErrEmptyURL
		}
		if err == nil {
			stream, vErr := r.finish(ctx, videoID, f, streamURL)
			if vErr == nil {
				return stream, nil
			}
			err = vErr
		}

		attempts = append(attempts, Attempt{Format: f.Name, Err: err})
		r.logger.Info("format attempt failed",
			zap.String("video_id", videoID),
			zap.String("format", f.Name),
			zap.Error(err))
	}

	var cause error
	if ctxErr := ctx.Err(); ctxErr != nil {
		cause = ctxErr
		if errors.Is(ctxErr, context.DeadlineExceeded) {
			r.logger.Warn("resolve timed out", zap.String("video_id", videoID), zap.Duration("timeout", r.timeout))
		}
	}
	return nil, newResolveError(rawURL, attempts, cause)
}

// Invalidate forgets the cached stream for a URL so the next Resolve extracts
// it again
func (r *Resolver) Invalidate(ctx context.Context, rawURL string) {
	if r.cache == nil {
		return
	}
	videoID := VideoID(rawURL)
	if videoID == "" {
		return
	}
	r.cache.Delete(ctx, videoID)
	r.logger.Debug("stream cache entry dropped", zap.String("video_id", videoID))
}

// finish narrows HLS playlists and caches the result
func (r *Resolver) finish(ctx context.Context, videoID string, f Format, streamURL string) (*Stream, error) {
	stream := &Stream{
		VideoID:    videoID,
		URL:        streamURL,
		Format:     f.Name,
		FormatSpec: f.Spec,
		ResolvedAt: time.Now(),
	}
	if isHLS(streamURL) {
		variantURL, err := selectVariant(ctx, r.httpClient, streamURL, r.maxHeight)
		if err != nil {
			return nil, err
		}
		stream.URL = variantURL
		stream.HLS = true
	}

	if r.cache != nil {
		r.cache.Set(ctx, videoID, stream)
	}
	r.logger.Info("stream resolved",
		zap.String("video_id", videoID),
		zap.String("format", f.Name),
		zap.Bool("hls", stream.HLS))
	return stream, nil
}
