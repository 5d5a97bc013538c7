// Package capture screenshots the timeline page with headless Chromium.
package capture

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"
)

const (
	DefaultWidth   = 1600
	DefaultHeight  = 900
	DefaultTimeout = 30 * time.Second

	// ReadySelector matches the page once the timeline is in the DOM.
	ReadySelector = `[data-ready="true"]`
)

// Options defines one capture.
type Options struct {
	// URL of the timeline page, e.g. "http://127.0.0.1:8080/".
	URL        string
	OutputPath string

	// Width and Height are the viewport size. Zero uses the defaults.
	Width  int
	Height int

	// Timeout bounds the whole capture. Zero uses DefaultTimeout.
	Timeout time.Duration

	// Username and Password are sent as basic auth when set.
	Username string
	Password string
}

func (o Options) validate() error {
	var errs []error
	if o.URL == "" {
		errs = append(errs, errors.New("capture: URL is required"))
	}
	if o.OutputPath == "" {
		errs = append(errs, errors.New("capture: OutputPath is required"))
	}
	return errors.Join(errs...)
}

func (o Options) withDefaults() Options {
	if o.Width <= 0 {
		o.Width = DefaultWidth
	}
	if o.Height <= 0 {
		o.Height = DefaultHeight
	}
	if o.Timeout <= 0 {
		o.Timeout = DefaultTimeout
	}
	return o
}

// PNG navigates to opts.URL, waits for ReadySelector and writes a full-page
// screenshot to opts.OutputPath. The file is replaced atomically so the web
// server never serves a half-written preview.
func PNG(parentCtx context.Context, opts Options) error {
	if err := opts.validate(); err != nil {
		return err
	}
	opts = opts.withDefaults()

	ctx, cancel := chromedp.NewContext(parentCtx)
	defer cancel()

	ctx, timeoutCancel := context.WithTimeout(ctx, opts.Timeout)
	defer timeoutCancel()

	var png []byte
	tasks := chromedp.Tasks{
		network.Enable(),
		network.SetExtraHTTPHeaders(opts.headers()),
		chromedp.EmulateViewport(int64(opts.Width), int64(opts.Height)),
		chromedp.Navigate(opts.URL),
		chromedp.WaitVisible(ReadySelector, chromedp.ByQuery),
		// Let the last paint land.
		chromedp.Sleep(300 * time.Millisecond),
		chromedp.FullScreenshot(&png, 100),
	}
	if err := chromedp.Run(ctx, tasks); err != nil {
		return fmt.Errorf("capture: chromedp run failed: %w", err)
	}

	return writeAtomic(opts.OutputPath, png)
}

func (o Options) headers() network.Headers {
	h := network.Headers{}
	if o.Username != "" {
		cred := base64.StdEncoding.EncodeToString([]byte(o.Username + ":" + o.Password))
		h["Authorization"] = "Basic " + cred
	}
	return h
}

func writeAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("capture: create output dir: %w", err)
	}
	tmp, err := os.CreateTemp(dir, ".preview-*.png")
	if err != nil {
		return fmt.Errorf("capture: create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("capture: write PNG: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("capture: write PNG: %w", err)
	}
	if err := os.Chmod(tmp.Name(), 0o644); err != nil {
		return fmt.Errorf("capture: chmod PNG: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("capture: replace PNG: %w", err)
	}
	return nil
}
