package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"runtime"
	"time"

	"github.com/spf13/cobra"

	"github.com/jonwraymond/healthops/health"
	"github.com/jonwraymond/healthops/internal/app"
	"github.com/jonwraymond/healthops/observe"
)

// Set at build time with -ldflags "-X main.buildVersion=... -X main.buildCommit=...".
var (
	buildVersion = "dev"
	buildCommit  = ""
)

// errDegraded makes the process exit non-zero after a degraded report has
// already been printed.
var errDegraded = errors.New("health report is degraded")

type rootOptions struct {
	configPath string
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}

	root := &cobra.Command{
		Use:           "healthd",
		Short:         "Dependency health reporting service",
		Long:          "healthd aggregates database, auth and configuration probes into one health report.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVarP(&opts.configPath, "config", "c", "", "path to the YAML config file (default $HEALTHD_CONFIG)")

	root.AddCommand(newServeCmd(opts))
	root.AddCommand(newCheckCmd(opts))
	root.AddCommand(newStatusCmd())
	root.AddCommand(newVersionCmd())
	return root
}

func newServeCmd(opts *rootOptions) *cobra.Command {
	var (
		listen          string
		shutdownTimeout time.Duration
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve /health and /health/detailed over HTTP",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			container, err := app.BuildContainer(ctx, app.Options{ConfigPath: opts.configPath})
			if err != nil {
				return err
			}
			defer func() {
				closeCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
				defer cancel()
				_ = container.Close(closeCtx)
			}()

			addr := container.Config.Listen
			if listen != "" {
				addr = listen
			}
			srv := &http.Server{
				Addr:              addr,
				Handler:           container.Handler(),
				ReadHeaderTimeout: 5 * time.Second,
				WriteTimeout:      container.Config.Timeout + 5*time.Second,
			}

			errCh := make(chan error, 1)
			go func() {
				container.Logger.Info(ctx, "listening", observe.Field{Key: "addr", Value: addr})
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					errCh <- err
				}
				close(errCh)
			}()

			select {
			case err := <-errCh:
				return err
			case <-ctx.Done():
			}

			container.Logger.Info(context.Background(), "shutting down")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		},
	}
	cmd.Flags().StringVar(&listen, "listen", "", "listen address (overrides config)")
	cmd.Flags().DurationVar(&shutdownTimeout, "shutdown-timeout", 10*time.Second, "graceful shutdown timeout")
	return cmd
}

func newCheckCmd(opts *rootOptions) *cobra.Command {
	var (
		basic  bool
		pretty bool
	)

	cmd := &cobra.Command{
		Use:   "check",
		Short: "Run the probes once and print the report",
		Long:  "check runs every probe once, prints the JSON report and exits 1 if the report is degraded.",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			container, err := app.BuildContainer(ctx, app.Options{ConfigPath: opts.configPath})
			if err != nil {
				return err
			}
			defer func() { _ = container.Close(context.Background()) }()

			var report health.Report
			if basic {
				report = container.Service.Basic(ctx)
			} else {
				report, err = container.Service.Detailed(ctx)
				if err != nil {
					return err
				}
			}
			if err := writeReportJSON(cmd.OutOrStdout(), report, pretty); err != nil {
				return err
			}
			if report.Status != health.StatusOK {
				return errDegraded
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&basic, "basic", false, "liveness only, no probes")
	cmd.Flags().BoolVar(&pretty, "pretty", true, "indent the JSON output")
	return cmd
}

func newStatusCmd() *cobra.Command {
	var (
		url     string
		asJSON  bool
		timeout time.Duration
	)

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Fetch a running service's detailed report and render it",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
			defer cancel()

			report, err := fetchReport(ctx, url)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if asJSON {
				err = writeReportJSON(out, report, true)
			} else {
				err = renderReport(out, report)
			}
			if err != nil {
				return err
			}
			if report.Status != health.StatusOK {
				return errDegraded
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&url, "url", "http://localhost:8080"+health.DetailedPath, "report URL")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the raw JSON report")
	cmd.Flags().DurationVar(&timeout, "timeout", 15*time.Second, "request timeout")
	return cmd
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show healthd build information",
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "healthd %s\n", buildVersion)
			if buildCommit != "" {
				fmt.Fprintf(out, "Commit: %s\n", buildCommit)
			}
			fmt.Fprintf(out, "Report version: %s\n", health.DefaultVersion)
			fmt.Fprintf(out, "Go version: %s\n", runtime.Version())
			return nil
		},
	}
}

func fetchReport(ctx context.Context, url string) (health.Report, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return health.Report{}, err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return health.Report{}, err
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return health.Report{}, err
	}
	if resp.StatusCode != http.StatusOK {
		var errResp health.ErrorResponse
		if json.Unmarshal(body, &errResp) == nil && errResp.Error.Message != "" {
			return health.Report{}, fmt.Errorf("%s responded %d: %s", url, resp.StatusCode, errResp.Error.Message)
		}
		return health.Report{}, fmt.Errorf("%s responded %d", url, resp.StatusCode)
	}

	var report health.Report
	if err := json.Unmarshal(body, &report); err != nil {
		return health.Report{}, fmt.Errorf("decode report: %w", err)
	}
	return report, nil
}
