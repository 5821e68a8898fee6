package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"path/filepath"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/shehryarbajwa/browserkube-console/internal/api"
	"github.com/shehryarbajwa/browserkube-console/internal/artifacts"
	"github.com/shehryarbajwa/browserkube-console/internal/logging"
	"github.com/shehryarbajwa/browserkube-console/internal/ratelimit"
	"github.com/shehryarbajwa/browserkube-console/internal/stream"
	"github.com/shehryarbajwa/browserkube-console/internal/tui"
	"github.com/shehryarbajwa/browserkube-console/pkg/models"
)

var tuiCmd = &cobra.Command{
	Use:   "tui",
	Short: "Interactive session list with live details",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		c, cfg, closer, err := startConsole(ctx, true)
		if err != nil {
			return err
		}
		defer closer.Close()
		defer c.Close()

		p := tea.NewProgram(tui.NewModel(ctx, c, cfg.SessionDuration), tea.WithAltScreen(), tea.WithContext(ctx))
		if _, err := p.Run(); err != nil && !errors.Is(err, tea.ErrProgramKilled) {
			return fmt.Errorf("terminal ui failed: %w", err)
		}
		return nil
	},
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Expose the console over a local HTTP API",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		c, cfg, closer, err := startConsole(ctx, false)
		if err != nil {
			return err
		}
		defer closer.Close()
		defer c.Close()
		log := logging.For("server")

		rateLimiter := ratelimit.NewLimiter(cfg.RequestsPerMinute, 10)
		log.Info().Int("requests_per_minute", cfg.RequestsPerMinute).Msg("✓ Rate limiter initialized")

		router := api.NewHandler(c).SetupRoutes(stream.NewRelay(), rateLimiter, cfg.RequestsPerMinute)

		srv := &http.Server{
			Addr:        cfg.ListenAddr,
			Handler:     router,
			ReadTimeout: 15 * time.Second,
			IdleTimeout: 60 * time.Second,
		}

		go func() {
			ticker := time.NewTicker(time.Minute)
			defer ticker.Stop()
			for {
				select {
				case <-ctx.Done():
					return
				case <-ticker.C:
					if n := rateLimiter.Prune(); n > 0 {
						log.Debug().Int("pruned", n).Msg("Idle rate limiters dropped")
					}
				}
			}
		}()

		errCh := make(chan error, 1)
		go func() {
			log.Info().Str("addr", cfg.ListenAddr).Msg("🚀 Server starting")
			log.Info().Msgf("📍 API endpoints available at http://%s/v1", cfg.ListenAddr)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				errCh <- err
			}
			close(errCh)
		}()

		select {
		case err := <-errCh:
			if err != nil {
				return fmt.Errorf("server error: %w", err)
			}
			return nil
		case <-ctx.Done():
		}

		log.Info().Msg("⏳ Shutting down server gracefully...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server forced to shutdown: %w", err)
		}
		log.Info().Msg("✅ Server stopped cleanly")
		return nil
	},
}

var createReq models.CreateSessionRequest

var createCmd = &cobra.Command{
	Use:   "create",
	Short: "Request a manual browser session",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		c, cfg, closer, err := startConsole(ctx, false)
		if err != nil {
			return err
		}
		defer closer.Close()
		defer c.Close()

		callCtx, cancel := context.WithTimeout(ctx, cfg.CreateSessionTimeout)
		defer cancel()
		id, err := c.Create(callCtx, createReq)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), id)
		return nil
	},
}

var deleteCmd = &cobra.Command{
	Use:   "delete <session-id>",
	Short: "Terminate a running session",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		c, cfg, closer, err := startConsole(ctx, false)
		if err != nil {
			return err
		}
		defer closer.Close()
		defer c.Close()

		callCtx, cancel := context.WithTimeout(ctx, cfg.DeleteSessionTimeout)
		defer cancel()
		return c.Delete(callCtx, args[0])
	},
}

var (
	downloadDir     string
	downloadExtract bool
)

var downloadCmd = &cobra.Command{
	Use:   "download <session-id>",
	Short: "Bundle the logs, video and command history of a finished session",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		c, _, closer, err := startConsole(ctx, false)
		if err != nil {
			return err
		}
		defer closer.Close()
		defer c.Close()

		path, manifest, err := c.Download(ctx, args[0], downloadDir)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s (%d files, %d commands)\n", path, len(manifest.Files), manifest.Commands)
		for _, missing := range manifest.Missing {
			fmt.Fprintf(cmd.ErrOrStderr(), "missing: %s\n", missing)
		}

		if downloadExtract {
			target := filepath.Join(downloadDir, args[0])
			if err := artifacts.Extract(path, target); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), target)
		}
		return nil
	},
}

func init() {
	createCmd.Flags().StringVar(&createReq.Browser, "browser", "", "browser name, e.g. chrome")
	createCmd.Flags().StringVar(&createReq.BrowserVersion, "version", "", "browser version (defaults to the newest)")
	createCmd.Flags().StringVar(&createReq.PlatformName, "platform", "", "platform name (defaults to the first offering the browser)")
	createCmd.Flags().StringVar(&createReq.ScreenResolution, "resolution", "", "screen resolution, e.g. 1920x1080")
	createCmd.Flags().StringVar(&createReq.Name, "name", "", "session name")
	createCmd.Flags().BoolVar(&createReq.RecordVideo, "record-video", false, "record a video of the session")
	createCmd.MarkFlagRequired("browser")

	downloadCmd.Flags().StringVarP(&downloadDir, "out", "o", ".", "directory the bundle is written to")
	downloadCmd.Flags().BoolVar(&downloadExtract, "extract", false, "also unpack the bundle next to it")
}
