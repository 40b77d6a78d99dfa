package download

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/liuran001/TrackFetch-Go/engine"
)

// ErrAllAttemptsFailed wraps the last error once every attempt was used.
var ErrAllAttemptsFailed = errors.New("all download attempts failed")

const defaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36"

const audioAccept = "audio/webm,audio/ogg,audio/wav,audio/*;q=0.9,application/ogg;q=0.7,video/*;q=0.6,*/*;q=0.5"

// ProgressFunc receives the bytes written so far and the expected total
// (zero when the server did not announce a length).
type ProgressFunc func(written, total int64)

// Options configures the connection pool.
type Options struct {
	Timeout    time.Duration
	Proxy      string
	UserAgent  string
	Attempts   int
	RetryDelay time.Duration
	// ProgressInterval throttles progress callbacks.
	ProgressInterval time.Duration
	Logger           engine.Logger
}

// Pool is a shared HTTP client with a retry policy that alternates between
// browser-like and minimal request headers.
type Pool struct {
	client           *http.Client
	userAgent        string
	attempts         int
	retryDelay       time.Duration
	progressInterval time.Duration
	logger           engine.Logger
}

// NewPool builds the shared client. The proxy comes from opts only; the
// process environment is never consulted.
func NewPool(opts Options) (*Pool, error) {
	if opts.Timeout <= 0 {
		opts.Timeout = 30 * time.Second
	}
	if opts.Attempts <= 0 {
		opts.Attempts = 3
	}
	if opts.RetryDelay < 0 {
		opts.RetryDelay = 0
	}
	if strings.TrimSpace(opts.UserAgent) == "" {
		opts.UserAgent = defaultUserAgent
	}
	if opts.ProgressInterval <= 0 {
		opts.ProgressInterval = 500 * time.Millisecond
	}

	transport := &http.Transport{
		Proxy: nil,
		DialContext: (&net.Dialer{
			Timeout:   minDuration(opts.Timeout, 10*time.Second),
			KeepAlive: 30 * time.Second,
		}).DialContext,
		ForceAttemptHTTP2:     true,
		MaxIdleConns:          100,
		MaxIdleConnsPerHost:   10,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   minDuration(opts.Timeout, 10*time.Second),
		ResponseHeaderTimeout: opts.Timeout,
		ExpectContinueTimeout: 1 * time.Second,
	}
	if proxy := strings.TrimSpace(opts.Proxy); proxy != "" {
		proxyURL, err := url.Parse(proxy)
		if err != nil {
			return nil, fmt.Errorf("parse proxy: %w", err)
		}
		transport.Proxy = http.ProxyURL(proxyURL)
	}

	return &Pool{
		client:           &http.Client{Transport: transport},
		userAgent:        opts.UserAgent,
		attempts:         opts.Attempts,
		retryDelay:       opts.RetryDelay,
		progressInterval: opts.ProgressInterval,
		logger:           opts.Logger,
	}, nil
}

// Client exposes the shared client so provider clients reuse its connections.
func (p *Pool) Client() *http.Client {
	return p.client
}

// UserAgent returns the agent string sent on every request.
func (p *Pool) UserAgent() string {
	return p.userAgent
}

// Fetch downloads url into memory.
func (p *Pool) Fetch(ctx context.Context, rawURL string) ([]byte, error) {
	var buf bytes.Buffer
	if _, err := p.FetchWithProgress(ctx, rawURL, &buf, nil); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// FetchWithProgress streams url into w. Even attempts send browser headers and
// odd attempts send only a User-Agent. When an attempt fails after writing
// part of the body, the next attempt only runs if w can be rewound.
func (p *Pool) FetchWithProgress(ctx context.Context, rawURL string, w io.Writer, progress ProgressFunc) (int64, error) {
	if strings.TrimSpace(rawURL) == "" {
		return 0, errors.New("url missing")
	}
	if w == nil {
		return 0, errors.New("writer missing")
	}

	var lastErr error
	for attempt := 0; attempt < p.attempts; attempt++ {
		if attempt > 0 {
			if !rewind(w) {
				break
			}
			select {
			case <-ctx.Done():
				return 0, fmt.Errorf("%w: %w", ErrAllAttemptsFailed, ctx.Err())
			case <-time.After(p.retryDelay):
			}
		}

		written, err := p.fetchOnce(ctx, rawURL, w, progress, attempt%2 == 0)
		if err == nil {
			if p.logger != nil {
				p.logger.Debug("fetch complete", "url", rawURL, "size", humanize.IBytes(uint64(written)), "attempt", attempt+1)
			}
			return written, nil
		}
		lastErr = err
		if p.logger != nil {
			p.logger.Warn("fetch attempt failed", "url", rawURL, "attempt", attempt+1, "error", err)
		}
		if ctx.Err() != nil {
			break
		}
		if written > 0 && !canRewind(w) {
			break
		}
	}
	return 0, fmt.Errorf("%w: %w", ErrAllAttemptsFailed, lastErr)
}

func (p *Pool) fetchOnce(ctx context.Context, rawURL string, w io.Writer, progress ProgressFunc, browser bool) (int64, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return 0, err
	}
	if browser {
		setBrowserHeaders(req, p.userAgent)
	} else {
		req.Header.Set("User-Agent", p.userAgent)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusPartialContent {
		return 0, fmt.Errorf("download failed with status %d", resp.StatusCode)
	}

	return copyWithProgress(w, resp.Body, resp.ContentLength, progress, p.progressInterval)
}

func setBrowserHeaders(req *http.Request, userAgent string) {
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", audioAccept)
	req.Header.Set("Accept-Language", "en-US,en;q=0.9")
	req.Header.Set("Cache-Control", "no-cache")
	req.Header.Set("Pragma", "no-cache")
	req.Header.Set("Range", "bytes=0-")
	req.Header.Set("Sec-Fetch-Dest", "audio")
	req.Header.Set("Sec-Fetch-Mode", "no-cors")
	req.Header.Set("Sec-Fetch-Site", "cross-site")
}

type truncateSeeker interface {
	io.Seeker
	Truncate(size int64) error
}

type resetter interface {
	Reset()
}

func canRewind(w io.Writer) bool {
	switch w.(type) {
	case truncateSeeker, resetter:
		return true
	}
	return false
}

func rewind(w io.Writer) bool {
	switch v := w.(type) {
	case resetter:
		v.Reset()
		return true
	case truncateSeeker:
		if err := v.Truncate(0); err != nil {
			return false
		}
		_, err := v.Seek(0, io.SeekStart)
		return err == nil
	}
	return true
}

func copyWithProgress(dst io.Writer, src io.Reader, total int64, progress ProgressFunc, interval time.Duration) (int64, error) {
	if total < 0 {
		total = 0
	}
	buf := make([]byte, 128*1024)
	var written int64
	lastUpdate := time.Now()

	for {
		n, err := src.Read(buf)
		if n > 0 {
			if _, werr := dst.Write(buf[:n]); werr != nil {
				return written, werr
			}
			written += int64(n)
			if progress != nil && time.Since(lastUpdate) >= interval {
				progress(written, total)
				lastUpdate = time.Now()
			}
		}
		if err != nil {
			if err == io.EOF {
				if progress != nil {
					progress(written, total)
				}
				return written, nil
			}
			return written, err
		}
	}
}

func minDuration(a, b time.Duration) time.Duration {
	if a == 0 || a > b {
		return b
	}
	return a
}
