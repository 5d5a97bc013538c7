package ics

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"time"

	appLog "planview/internal/log"
)

// ErrNotModifiedWithoutCache is returned when the server answers 304 for a
// feed we have no cached copy of.
var ErrNotModifiedWithoutCache = errors.New("ics: 304 Not Modified but no cached body")

// Feed is one ICS subscription.
type Feed struct {
	ID  string
	URL string
}

// Body is the payload of a fetched feed.
type Body struct {
	Feed      Feed
	Data      []byte
	FromCache bool
}

type cacheMeta struct {
	URL          string    `json:"url"`
	ETag         string    `json:"etag,omitempty"`
	LastModified string    `json:"last_modified,omitempty"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// Fetcher downloads ICS feeds with conditional requests and keeps the last
// good body on disk so a flaky planning server does not blank the timeline.
type Fetcher struct {
	client   *http.Client
	cacheDir string
}

// NewFetcher creates a Fetcher caching under cacheDir. A nil client gets a
// 15 second timeout.
func NewFetcher(cacheDir string, client *http.Client) *Fetcher {
	if cacheDir == "" {
		cacheDir = filepath.Join(os.TempDir(), "planview-ics")
	}
	if client == nil {
		client = &http.Client{Timeout: 15 * time.Second}
	}
	return &Fetcher{client: client, cacheDir: cacheDir}
}

// Fetch returns the current body of feed. Network errors and non-OK answers
// fall back to the cached body when there is one.
func (f *Fetcher) Fetch(ctx context.Context, feed Feed) (Body, error) {
	if feed.URL == "" {
		return Body{}, fmt.Errorf("ics feed %s: url is empty", feed.ID)
	}
	if err := os.MkdirAll(f.cacheDir, 0o700); err != nil {
		return Body{}, err
	}

	base := f.cacheBase(feed.URL)
	meta, _ := readMeta(base)
	cached, _ := os.ReadFile(base + ".ics")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, feed.URL, nil)
	if err != nil {
		return Body{}, err
	}
	if meta.ETag != "" {
		req.Header.Set("If-None-Match", meta.ETag)
	}
	if meta.LastModified != "" {
		req.Header.Set("If-Modified-Since", meta.LastModified)
	}

	appLog.Debug("ics fetch start", "id", feed.ID, "url", redactURL(feed.URL))

	resp, err := f.client.Do(req)
	if err != nil {
		if len(cached) > 0 {
			appLog.Warn("ics fetch failed, using cached body", "id", feed.ID, "url", redactURL(feed.URL), "err", err.Error())
			return Body{Feed: feed, Data: cached, FromCache: true}, nil
		}
		return Body{}, fmt.Errorf("ics feed %s: %w", feed.ID, err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
		data, err := io.ReadAll(resp.Body)
		if err != nil {
			return Body{}, fmt.Errorf("ics feed %s: read body: %w", feed.ID, err)
		}
		meta = cacheMeta{
			URL:          feed.URL,
			ETag:         resp.Header.Get("ETag"),
			LastModified: resp.Header.Get("Last-Modified"),
			UpdatedAt:    time.Now().UTC(),
		}
		if err := writeCache(base, meta, data); err != nil {
			appLog.Error("ics cache save failed", err, "id", feed.ID)
		}
		appLog.Info("ics fetch success", "id", feed.ID, "bytes", len(data))
		return Body{Feed: feed, Data: data}, nil

	case http.StatusNotModified:
		if len(cached) == 0 {
			return Body{}, fmt.Errorf("ics feed %s: %w", feed.ID, ErrNotModifiedWithoutCache)
		}
		appLog.Debug("ics feed not modified", "id", feed.ID)
		return Body{Feed: feed, Data: cached, FromCache: true}, nil

	default:
		if len(cached) > 0 {
			appLog.Warn("ics fetch non-OK, using cached body", "id", feed.ID, "status", resp.StatusCode)
			return Body{Feed: feed, Data: cached, FromCache: true}, nil
		}
		return Body{}, fmt.Errorf("ics feed %s: unexpected status %s", feed.ID, resp.Status)
	}
}

// cacheBase is the cache path without extension, keyed by a hash of the URL
// so credentials in query strings never reach the file system.
func (f *Fetcher) cacheBase(u string) string {
	sum := sha256.Sum256([]byte(u))
	return filepath.Join(f.cacheDir, hex.EncodeToString(sum[:8]))
}

func readMeta(base string) (cacheMeta, error) {
	var meta cacheMeta
	data, err := os.ReadFile(base + ".json")
	if err != nil {
		return meta, err
	}
	err = json.Unmarshal(data, &meta)
	return meta, err
}

func writeCache(base string, meta cacheMeta, data []byte) error {
	// Body first so the metadata never points at a missing body.
	if err := os.WriteFile(base+".ics", data, 0o600); err != nil {
		return err
	}
	raw, err := json.MarshalIndent(&meta, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(base+".json", raw, 0o600)
}

// redactURL keeps scheme and host only; planning feeds usually carry a token
// in the path or query.
func redactURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return "ics://(redacted)"
	}
	return u.Scheme + "://" + u.Host + "/(redacted)"
}
