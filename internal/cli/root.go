// Package cli 实现 inferkit 命令行：classify / labels / bench / batch / history。
package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/rushteam/inferkit/config"
	"github.com/rushteam/inferkit/config/builders"
	"github.com/rushteam/inferkit/core"
)

var (
	cfgFile  string
	logLevel string

	cfg    *config.Config
	logger = slog.Default()
)

var rootCmd = &cobra.Command{
	Use:   "inferkit",
	Short: "Multi-modal inference adapter (image, audio, pose)",
	Long: `inferkit classifies images, audio clips and poses with a configured model,
falling back to heuristics or a random demo ranking when no model is available.

Example usage:
  inferkit classify -m image photo.jpg        # Classify one image
  inferkit labels                             # Show label sets per modality
  inferkit batch 'image=photos/**/*.jpg'      # Classify many files
  inferkit bench -m audio -n 200              # Measure latency`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.Load(cfgFile)
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}
		if logLevel != "" {
			cfg.Logging.Level = logLevel
		}
		logger, err = newLogger(cmd.ErrOrStderr(), cfg.Logging)
		if err != nil {
			return err
		}
		slog.SetDefault(logger)
		return nil
	},
}

// Execute 运行根命令。
func Execute(ctx context.Context) {
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", config.DefaultPath, "config file")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level: debug, info, warn, error (overrides config)")
}

// newLogger 按配置创建 slog 日志；format 为 json 时输出 JSON。
func newLogger(w io.Writer, lc config.LoggingConfig) (*slog.Logger, error) {
	var level slog.Level
	if lc.Level != "" {
		if err := level.UnmarshalText([]byte(strings.ToLower(lc.Level))); err != nil {
			return nil, fmt.Errorf("invalid log level %q: %w", lc.Level, err)
		}
	}
	opts := &slog.HandlerOptions{Level: level}
	if lc.Format == "json" {
		return slog.New(slog.NewJSONHandler(w, opts)), nil
	}
	return slog.New(slog.NewTextHandler(w, opts)), nil
}

func openRuntime(ctx context.Context) (*builders.Runtime, error) {
	rt, err := builders.Build(ctx, cfg, builders.WithLogger(logger))
	if err != nil {
		return nil, fmt.Errorf("failed to build runtime: %w", err)
	}
	return rt, nil
}

func parseModality(s string) (core.Modality, error) {
	return core.ParseModality(strings.ToLower(strings.TrimSpace(s)))
}
