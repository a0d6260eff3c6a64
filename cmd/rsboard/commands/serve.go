package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/wonny/rsboard/internal/api"
	"github.com/wonny/rsboard/internal/api/handlers"
	"github.com/wonny/rsboard/internal/dashboard"
	"github.com/wonny/rsboard/internal/model"
	"github.com/wonny/rsboard/internal/scheduler"
	"github.com/wonny/rsboard/internal/scheduler/jobs"
	"github.com/wonny/rsboard/internal/subscription"
	"github.com/wonny/rsboard/internal/viewconfig"
	"github.com/wonny/rsboard/pkg/config"
	"github.com/wonny/rsboard/pkg/logger"
)

// serveCmd represents the serve command
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "대시보드 API 서버 시작",
	Long: `5개 토픽을 구독하고 대시보드 API 서버를 시작합니다.

Endpoints:
  GET  /health                          - Health check
  GET  /api/view                        - 현재 화면
  POST /api/nav/market/{market}         - FINANCE | KR | US
  POST /api/nav/subview/{subview}       - NEWS | RANK_TABLE | RANK_GRAPH
  POST /api/news/{market}/tab/{key}     - 뉴스 탭 선택
  GET  /api/finance                     - 금융 보드
  GET  /api/markets/{market}/series     - 모멘텀 차트
  GET  /api/markets/{market}/heatmap    - 히트맵 (?width=&height=)
  GET  /api/markets/{market}/table      - 순위 테이블
  GET  /api/markets/{market}/news       - 뉴스
  GET  /api/topics                      - 구독 상태
  GET  /ws                              - 실시간 화면 스트림

Example:
  go run ./cmd/rsboard serve
  go run ./cmd/rsboard serve --port 8080 --collect`,
	RunE: runServe,
}

var (
	servePort    string
	serveCollect bool
)

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().StringVar(&servePort, "port", "", "API 서버 포트 (default PORT)")
	serveCmd.Flags().BoolVar(&serveCollect, "collect", false, "뉴스/금융 수집 스케줄러를 함께 실행")
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, log, view, err := setup()
	if err != nil {
		return err
	}
	if servePort != "" {
		cfg.Port = servePort
	}

	log.WithFields(map[string]interface{}{
		"port":  cfg.Port,
		"env":   cfg.Env,
		"store": cfg.Store.Backend,
	}).Info("Initializing dashboard server")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// 1. Document store
	b, err := openBackend(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer b.Close()

	// 2. Subscriptions + shared session
	manager := subscription.NewManager(b.Store, view.Decoder(), log)
	defer manager.Close()

	session := dashboard.NewSession(manager, view, log)
	if err := session.Start(ctx); err != nil {
		return fmt.Errorf("start session: %w", err)
	}
	defer session.Close()

	// 3. Handlers
	hub := handlers.NewStreamHub(session, log)
	hub.Start()

	health := handlers.NewHealthHandler(session.Stats)
	b.addHealthChecks(health)
	health.SetInfo("store", cfg.Store.Backend)
	if hash, err := viewconfig.Hash(view); err == nil {
		health.SetInfo("view_config", hash)
	}

	router := api.NewRouter(api.Handlers{
		Dashboard: handlers.NewDashboardHandler(session, log),
		Health:    health,
		Stream:    hub,
	}, log)

	// 4. Optional in-process collector
	var sched *scheduler.Scheduler
	if serveCollect {
		sched, err = newCollectionScheduler(cfg, log, b, view, []model.Market{model.MarketKR, model.MarketUS}, collectionSchedules{
			News:    cfg.News.Schedule,
			Finance: cfg.Finance.Schedule,
		})
		if err != nil {
			hub.Stop()
			return err
		}
		sched.Start()
	}

	// 5. Server with graceful shutdown
	server := api.New(cfg, log, router)
	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Start()
	}()

	fmt.Printf("\n✅ Server running on http://localhost:%s (store=%s)\n", cfg.Port, cfg.Store.Backend)
	fmt.Println("\nPress Ctrl+C to stop")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)

	var serveErr error
	select {
	case <-quit:
	case serveErr = <-errCh:
	}

	log.Info("Shutting down server...")

	if sched != nil {
		sched.Stop()
	}
	hub.Stop()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}
	if serveErr != nil {
		return serveErr
	}

	log.Info("Server stopped")
	return nil
}

// collectionSchedules holds the cron expression of each collector; empty skips it
type collectionSchedules struct {
	News    string
	Finance string
}

// newCollectionScheduler registers the collection jobs on a new scheduler
func newCollectionScheduler(cfg *config.Config, log *logger.Logger, b *backend, view *viewconfig.Config, markets []model.Market, schedules collectionSchedules) (*scheduler.Scheduler, error) {
	sched := scheduler.New(log)

	if schedules.News != "" {
		if err := scheduler.ValidateSchedule(schedules.News); err != nil {
			return nil, err
		}
		col := newNewsCollector(cfg, log, b, view)
		if err := sched.AddJob(jobs.NewNewsCollectionJob(col, markets, schedules.News, log)); err != nil {
			return nil, fmt.Errorf("schedule news collection: %w", err)
		}
	}

	if schedules.Finance != "" {
		if err := scheduler.ValidateSchedule(schedules.Finance); err != nil {
			return nil, err
		}
		col := newFinanceCollector(cfg, log, b)
		if err := sched.AddJob(jobs.NewFinanceCollectionJob(col, schedules.Finance, log)); err != nil {
			return nil, fmt.Errorf("schedule finance collection: %w", err)
		}
	}

	return sched, nil
}
