package commands

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/wonny/rsboard/internal/viewconfig"
	"github.com/wonny/rsboard/pkg/config"
	"github.com/wonny/rsboard/pkg/logger"
)

var (
	// Global flags
	storeBackend string
	viewConfig   string
	verbose      bool
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "rsboard",
	Short: "rsboard - 실시간 RS 모멘텀 대시보드 백엔드",
	Long: `rsboard Unified CLI

문서 저장소(Redis / PostgreSQL / memory)의 5개 토픽을 구독해
금융 보드, 뉴스 탭, 모멘텀 차트, 히트맵을 HTTP/WebSocket 으로 제공합니다.

Usage:
  go run ./cmd/rsboard [command]

Examples:
  go run ./cmd/rsboard serve
  go run ./cmd/rsboard collect news --market KR
  go run ./cmd/rsboard publish rs_data/latest rankings.json
  go run ./cmd/rsboard snapshot --market US --view RANK_TABLE`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	// Global flags
	rootCmd.PersistentFlags().StringVar(&storeBackend, "store", "", "document store backend (redis|postgres|memory), overrides STORE_BACKEND")
	rootCmd.PersistentFlags().StringVar(&viewConfig, "view-config", "", "view config YAML, overrides VIEW_CONFIG")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "debug logging")
}

// setup loads env config, applies global flags and builds the logger and view config
func setup() (*config.Config, *logger.Logger, *viewconfig.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, nil, fmt.Errorf("load config: %w", err)
	}

	if storeBackend != "" {
		cfg.Store.Backend = storeBackend
	}
	if viewConfig != "" {
		cfg.ViewConfigPath = viewConfig
	}
	if verbose {
		cfg.LogLevel = "debug"
	}

	// stdout is reserved for command output
	log := logger.NewWithWriter(cfg, os.Stderr)

	view, err := viewconfig.Load(cfg.ViewConfigPath)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("load view config: %w", err)
	}

	return cfg, log, view, nil
}
