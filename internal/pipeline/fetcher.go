package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/ppiankov/chronicle/internal/ingest"
	"github.com/ppiankov/chronicle/internal/model"
	"github.com/ppiankov/chronicle/internal/util"
)

// fetchSleepFunc is replaced in tests
var fetchSleepFunc = time.Sleep

// Fetcher downloads source documents into the raw input directory
type Fetcher struct {
	httpClient *http.Client
	userAgent  string
	maxBytes   int64
	retries    int
	robots     *util.RobotsChecker // nil when robots.txt is ignored
	logger     *slog.Logger
}

// NewFetcher creates a fetcher from the fetch configuration
func NewFetcher(cfg model.FetchConfig, logger *slog.Logger) *Fetcher {
	if logger == nil {
		logger = slog.Default()
	}
	client := &http.Client{
		Timeout:   cfg.Timeout,
		Transport: &http.Transport{Proxy: util.NewProxyFunc(cfg.HTTPProxy, cfg.HTTPSProxy)},
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			if len(via) >= 3 {
				return fmt.Errorf("stopped after 3 redirects")
			}
			return nil
		},
	}

	f := &Fetcher{
		httpClient: client,
		userAgent:  cfg.UserAgent,
		maxBytes:   cfg.MaxBytes,
		retries:    cfg.Retries,
		logger:     logger,
	}
	if cfg.RespectRobots {
		f.robots = util.NewRobotsChecker(client, cfg.UserAgent)
	}
	return f
}

// retryableError marks a response worth another attempt
type retryableError struct {
	status int
}

func (e *retryableError) Error() string {
	return fmt.Sprintf("unexpected status: %d %s", e.status, http.StatusText(e.status))
}

// Download saves the document at rawURL into dir and returns the written path. The file
// name comes from the last URL path segment; a missing extension is derived from the
// Content-Type.
func (f *Fetcher) Download(ctx context.Context, rawURL, dir string) (string, error) {
	var (
		body        []byte
		contentType string
		finalURL    string
		err         error
	)

	if f.robots != nil {
		delay, err := f.robots.Check(ctx, rawURL)
		if err != nil {
			return "", err
		}
		if delay > 0 {
			fetchSleepFunc(delay)
		}
	}

	for attempt := 0; attempt <= f.retries; attempt++ {
		if attempt > 0 {
			fetchSleepFunc(time.Duration(attempt) * time.Second)
		}
		body, contentType, finalURL, err = f.fetch(ctx, rawURL)
		if err == nil {
			break
		}
		var re *retryableError
		if !errors.As(err, &re) || ctx.Err() != nil {
			return "", err
		}
		f.logger.Debug("Retrying download", "url", rawURL, "attempt", attempt+1, "error", err)
	}
	if err != nil {
		return "", err
	}

	name := documentName(finalURL, contentType)
	if _, err := ingest.Detect(name); err != nil {
		return "", err
	}

	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("create raw dir: %w", err)
	}
	out := filepath.Join(dir, name)
	if err := os.WriteFile(out, body, 0644); err != nil {
		return "", fmt.Errorf("write %s: %w", out, err)
	}
	return out, nil
}

func (f *Fetcher) fetch(ctx context.Context, rawURL string) ([]byte, string, string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, "", "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", f.userAgent)
	req.Header.Set("Accept", "application/pdf,text/html,text/plain;q=0.9,*/*;q=0.8")

	resp, err := f.httpClient.Do(req)
	if err != nil {
		return nil, "", "", fmt.Errorf("fetch: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
		return nil, "", "", &retryableError{status: resp.StatusCode}
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, "", "", fmt.Errorf("unexpected status: %d %s", resp.StatusCode, resp.Status)
	}

	var reader io.Reader = resp.Body
	if f.maxBytes > 0 {
		reader = io.LimitReader(resp.Body, f.maxBytes+1)
	}
	body, err := io.ReadAll(reader)
	if err != nil {
		return nil, "", "", fmt.Errorf("read body: %w", err)
	}
	if f.maxBytes > 0 && int64(len(body)) > f.maxBytes {
		return nil, "", "", fmt.Errorf("document exceeds %d bytes", f.maxBytes)
	}

	return body, resp.Header.Get("Content-Type"), resp.Request.URL.String(), nil
}

// FetchAll downloads every URL in order. A failed download is recorded and the batch
// moves on.
func (f *Fetcher) FetchAll(ctx context.Context, urls []string, dir string) *model.BatchReport {
	report := model.NewBatchReport("fetch")
	for _, u := range urls {
		f.logger.Info("Downloading document", "url", u)
		out, err := f.Download(ctx, u, dir)
		if err != nil {
			f.logger.Error("Download failed", "url", u, "error", model.Truncate(err.Error(), 100))
			report.Add(model.ItemResult{Label: u, Path: u, Status: model.StatusFailed, Error: err.Error()})
			continue
		}
		base := filepath.Base(out)
		report.Add(model.ItemResult{
			Label:      strings.TrimSuffix(base, filepath.Ext(base)),
			Path:       u,
			Status:     model.StatusSuccess,
			OutputPath: out,
		})
	}
	return report.Finish()
}

// documentName derives a safe file name from the URL and content type
func documentName(rawURL, contentType string) string {
	name := "document"
	if parsed, err := url.Parse(rawURL); err == nil {
		if last := path.Base(strings.Trim(parsed.Path, "/")); last != "" && last != "." && last != "/" {
			name = last
		} else if parsed.Host != "" {
			name = parsed.Host
		}
	}
	name = sanitizeFilename(name)

	if filepath.Ext(name) == "" || !hasKnownExt(name) {
		mediaType, _, _ := mime.ParseMediaType(contentType)
		switch mediaType {
		case "application/pdf":
			name += ".pdf"
		case "text/html", "application/xhtml+xml":
			name += ".html"
		case "text/plain":
			name += ".txt"
		}
	}
	return name
}

func hasKnownExt(name string) bool {
	_, err := ingest.Detect(name)
	return err == nil
}

// sanitizeFilename replaces characters that are unsafe in file names and bounds the length
func sanitizeFilename(s string) string {
	s = strings.NewReplacer(
		"/", "_", "\\", "_", ":", "_", "*", "_", "?", "_",
		"\"", "_", "<", "_", ">", "_", "|", "_", " ", "-",
	).Replace(s)
	if len(s) > 100 {
		s = s[:100]
	}
	return s
}
