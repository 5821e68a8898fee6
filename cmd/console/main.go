package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/shehryarbajwa/browserkube-console/internal/config"
	"github.com/shehryarbajwa/browserkube-console/internal/console"
	"github.com/shehryarbajwa/browserkube-console/internal/logging"
)

var (
	configPath string
	logLevel   string
)

var rootCmd = &cobra.Command{
	Use:           "browserkube-console",
	Short:         "Live console for a BrowserKube browser farm",
	SilenceUsage:  true,
	SilenceErrors: true,
	Run: func(cmd *cobra.Command, args []string) {
		cmd.Help()
	},
}

func main() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "YAML config profile")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "override LOG_LEVEL (debug, info, warn, error)")

	rootCmd.AddCommand(tuiCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(createCmd)
	rootCmd.AddCommand(deleteCmd)
	rootCmd.AddCommand(downloadCmd)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		stop()
		os.Exit(1)
	}
}

// loadConfig reads the profile and sets up logging. toFile sends logs to a file so
// they do not draw over the terminal UI.
func loadConfig(toFile bool) (config.Config, io.Closer, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return config.Config{}, nil, fmt.Errorf("failed to load config: %w", err)
	}
	if logLevel != "" {
		cfg.LogLevel = logLevel
	}

	opts := logging.Options{Level: cfg.LogLevel, File: cfg.LogFile}
	if toFile && opts.File == "" {
		opts.File = filepath.Join(os.TempDir(), "browserkube-console.log")
	}
	closer, err := logging.Setup(opts)
	if err != nil {
		return config.Config{}, nil, err
	}
	return cfg, closer, nil
}

// startConsole loads config, then starts a console against the farm
func startConsole(ctx context.Context, toFile bool) (*console.Console, config.Config, io.Closer, error) {
	cfg, closer, err := loadConfig(toFile)
	if err != nil {
		return nil, config.Config{}, nil, err
	}
	c := console.New(cfg)
	if err := c.Start(ctx); err != nil {
		closer.Close()
		return nil, config.Config{}, nil, err
	}
	return c, cfg, closer, nil
}
