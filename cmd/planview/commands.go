package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"planview/internal/capture"
	"planview/internal/config"
	"planview/internal/dispatch"
	appLog "planview/internal/log"
	"planview/internal/model"
	"planview/internal/provider"
	"planview/internal/render"
	"planview/internal/scheduler"
	"planview/internal/timeline"
	"planview/internal/web"
)

func newServeCommand(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Refresh providers on a schedule and serve the timeline over HTTP",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd.Context(), opts.cfg)
		},
	}
}

func runServe(ctx context.Context, cfg *config.Config) error {
	appLog.Info("planview starting", "version", version, "listen", "http://"+cfg.Listen)

	loader, err := provider.FromConfig(ctx, cfg)
	if err != nil {
		return err
	}
	defer loader.Close()

	srv := web.NewServer(cfg, loader, dispatch.New(cfg.Activation))
	srv.Refresh(ctx)

	tasks := []scheduler.Task{{
		Name: "refresh",
		Run: func(ctx context.Context) error {
			st := srv.Refresh(ctx)
			if len(st.Errors) > 0 {
				return errors.New(strings.Join(st.Errors, "; "))
			}
			return nil
		},
	}}
	if cfg.Capture.Enabled {
		tasks = append(tasks, scheduler.Task{
			Name: "capture",
			Run: func(ctx context.Context) error {
				return capture.PNG(ctx, captureOptions(cfg, localURL(cfg.Listen), cfg.Capture.OutputPath))
			},
		})
	}
	sched, err := scheduler.New(cfg.RefreshCron, cfg.Location(), tasks...)
	if err != nil {
		return err
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return srv.Serve(ctx) })
	g.Go(func() error { return sched.Run(ctx) })
	err = g.Wait()
	appLog.Info("planview exiting")
	return err
}

type viewFlags struct {
	eventType string
	day       string
}

func (f *viewFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.eventType, "type", "OPS", "Partition to show: OPS or SIM")
	cmd.Flags().StringVar(&f.day, "day", "", "Show the hourly view of this day (YYYY-MM-DD)")
}

// show loads every provider once and renders the requested view.
func (f *viewFlags) show(ctx context.Context, cfg *config.Config) (model.LayoutResult, provider.Snapshot, error) {
	p := model.ParseEventType(f.eventType)
	if string(p) != strings.ToUpper(f.eventType) {
		return model.LayoutResult{}, provider.Snapshot{}, fmt.Errorf("--type must be OPS or SIM, got %q", f.eventType)
	}
	var day time.Time
	if f.day != "" {
		d, err := time.ParseInLocation(time.DateOnly, f.day, cfg.Location())
		if err != nil {
			return model.LayoutResult{}, provider.Snapshot{}, fmt.Errorf("--day: %w", err)
		}
		day = d
	}

	loader, err := provider.FromConfig(ctx, cfg)
	if err != nil {
		return model.LayoutResult{}, provider.Snapshot{}, err
	}
	defer loader.Close()

	snap := loader.Load(ctx)
	for _, err := range snap.Errors {
		appLog.Warn("provider failed", "error", err.Error())
	}

	ctrl := timeline.NewController(cfg.TimelineOptions())
	ctrl.SetData(snap.Ops, snap.Sim, snap.Markers)
	res, err := ctrl.RenderFull(p)
	if day.IsZero() {
		return res, snap, err
	}
	// The day view is still available when the partition has nothing to
	// derive a full scope from.
	if err != nil && !errors.Is(err, timeline.ErrEmptyInput) {
		return model.LayoutResult{}, snap, err
	}
	res, err = ctrl.SelectDay(day)
	return res, snap, err
}

func newLayoutCommand(opts *globalOptions) *cobra.Command {
	var flags viewFlags
	cmd := &cobra.Command{
		Use:   "layout",
		Short: "Load providers once and print the layout as JSON",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			res, _, err := flags.show(cmd.Context(), opts.cfg)
			if err != nil {
				return err
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(res)
		},
	}
	flags.register(cmd)
	return cmd
}

func newRenderCommand(opts *globalOptions) *cobra.Command {
	var (
		flags  viewFlags
		out    string
		pngOut string
	)
	cmd := &cobra.Command{
		Use:   "render",
		Short: "Load providers once and render the timeline as SVG or PNG",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			if pngOut != "" {
				return renderPNG(ctx, opts.cfg, flags, pngOut)
			}

			res, _, err := flags.show(ctx, opts.cfg)
			if err != nil {
				return err
			}
			svg := render.SVG(res, render.Options{})
			if out == "" || out == "-" {
				_, err := io.WriteString(cmd.OutOrStdout(), svg)
				return err
			}
			if err := os.WriteFile(out, []byte(svg), 0o644); err != nil {
				return err
			}
			appLog.Info("timeline written", "path", out, "placed", len(res.Placed))
			return nil
		},
	}
	flags.register(cmd)
	cmd.Flags().StringVar(&out, "out", "", "SVG output file (default stdout)")
	cmd.Flags().StringVar(&pngOut, "png", "", "Capture a PNG through a temporary local server instead")
	return cmd
}

// renderPNG serves the view on a loopback port for the duration of one
// headless capture.
func renderPNG(ctx context.Context, cfg *config.Config, flags viewFlags, path string) error {
	loader, err := provider.FromConfig(ctx, cfg)
	if err != nil {
		return err
	}
	defer loader.Close()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return err
	}
	srv := web.NewServer(cfg, loader, nil)
	srv.Refresh(ctx)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return srv.ServeListener(ctx, ln) })

	base := "http://" + ln.Addr().String()
	g.Go(func() error {
		defer cancel()
		if err := selectView(ctx, cfg, base, flags); err != nil {
			return err
		}
		if err := capture.PNG(ctx, captureOptions(cfg, base+"/", path)); err != nil {
			return err
		}
		appLog.Info("preview written", "path", path)
		return nil
	})
	return g.Wait()
}

// selectView drives the temporary server to the requested view.
func selectView(ctx context.Context, cfg *config.Config, base string, flags viewFlags) error {
	steps := []string{"/api/full?type=" + url.QueryEscape(strings.ToUpper(flags.eventType))}
	if flags.day != "" {
		steps = append(steps, "/api/day?date="+url.QueryEscape(flags.day))
	}
	for _, step := range steps {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, base+step, nil)
		if err != nil {
			return err
		}
		if cfg.BasicAuth != nil {
			req.SetBasicAuth(cfg.BasicAuth.Username, cfg.BasicAuth.Password)
		}
		resp, err := http.DefaultClient.Do(req)
		if err != nil {
			return err
		}
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			return fmt.Errorf("%s: %s: %s", step, resp.Status, strings.TrimSpace(string(body)))
		}
	}
	return nil
}

func captureOptions(cfg *config.Config, pageURL, path string) capture.Options {
	o := capture.Options{
		URL:        pageURL,
		OutputPath: path,
		Width:      cfg.Capture.Width,
		Height:     cfg.Capture.Height,
	}
	if cfg.BasicAuth != nil {
		o.Username = cfg.BasicAuth.Username
		o.Password = cfg.BasicAuth.Password
	}
	return o
}

// localURL turns a listen address into a URL the capture browser can reach.
func localURL(listen string) string {
	host, port, err := net.SplitHostPort(listen)
	if err != nil {
		return "http://" + listen + "/"
	}
	if host == "" || host == "0.0.0.0" || host == "::" {
		host = "127.0.0.1"
	}
	return "http://" + net.JoinHostPort(host, port) + "/"
}
