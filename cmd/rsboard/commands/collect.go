package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/wonny/rsboard/internal/collector"
	"github.com/wonny/rsboard/internal/model"
	"github.com/wonny/rsboard/internal/scheduler"
	"github.com/wonny/rsboard/internal/viewconfig"
	"github.com/wonny/rsboard/pkg/config"
	"github.com/wonny/rsboard/pkg/logger"
	"github.com/wonny/rsboard/pkg/redis"
)

// collectCmd represents the collect command
var collectCmd = &cobra.Command{
	Use:   "collect",
	Short: "데이터 수집",
	Long: `대시보드 문서를 생성합니다.

Subcommands:
  news     - 순위 종목별 구글 뉴스 수집 후 뉴스 토픽 발행
  finance  - 미국채 금리와 주요 지표 시세 수집 후 금융 토픽 발행`,
}

var collectNewsCmd = &cobra.Command{
	Use:   "news",
	Short: "종목 뉴스 수집",
	Long: `순위 문서(rs_data/latest, rs_data/us_latest)의 종목마다 Google News RSS 를
검색해 최신 20개 기사를 stock_news/news_kr, stock_news/news_us 로 발행합니다.

--schedule 지정 시 크론 주기로 반복 실행하며 Ctrl+C 로 종료합니다.

Example:
  go run ./cmd/rsboard collect news
  go run ./cmd/rsboard collect news --market US
  go run ./cmd/rsboard collect news --schedule "0 */10 * * * *"`,
	RunE: runCollectNews,
}

var collectFinanceCmd = &cobra.Command{
	Use:   "finance",
	Short: "금융 지표 수집",
	Long: `미국채 2Y/10Y/30Y 금리와 13개 주요 지표(지수, 선물, 원자재, 환율, 비트코인)의
최근 두 종가를 조회해 market_data/global_indices 로 발행합니다.

--schedule 지정 시 크론 주기로 반복 실행하며 Ctrl+C 로 종료합니다.

Example:
  go run ./cmd/rsboard collect finance
  go run ./cmd/rsboard collect finance --schedule "0 */10 * * * *"`,
	RunE: runCollectFinance,
}

var (
	collectMarket   string
	collectSchedule string
)

func init() {
	rootCmd.AddCommand(collectCmd)
	collectCmd.AddCommand(collectNewsCmd)
	collectCmd.AddCommand(collectFinanceCmd)

	collectNewsCmd.Flags().StringVar(&collectMarket, "market", "all", "KR | US | all")
	collectNewsCmd.Flags().StringVar(&collectSchedule, "schedule", "", "cron 주기 (초 필드 포함), 비우면 1회 실행")
	collectFinanceCmd.Flags().StringVar(&collectSchedule, "schedule", "", "cron 주기 (초 필드 포함), 비우면 1회 실행")
}

// parseMarkets resolves the --market flag
func parseMarkets(s string) ([]model.Market, error) {
	if strings.EqualFold(s, "all") || s == "" {
		return []model.Market{model.MarketKR, model.MarketUS}, nil
	}
	m, err := model.ParseMarket(s)
	if err != nil {
		return nil, err
	}
	return []model.Market{m}, nil
}

func runCollectNews(cmd *cobra.Command, args []string) error {
	markets, err := parseMarkets(collectMarket)
	if err != nil {
		return err
	}

	cfg, log, view, err := setup()
	if err != nil {
		return err
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	b, err := openBackend(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer b.Close()

	if collectSchedule != "" {
		return runScheduled(ctx, "News", func() (*scheduler.Scheduler, error) {
			return newCollectionScheduler(cfg, log, b, view, markets, collectionSchedules{News: collectSchedule})
		})
	}

	PrintDoubleSeparator()
	fmt.Printf("  News collection  %s\n", time.Now().Format("2006-01-02 15:04:05"))
	PrintSeparator()

	col := newNewsCollector(cfg, log, b, view)
	results, err := col.CollectAll(ctx, markets)

	for _, r := range results {
		PrintKeyValue("market", string(r.Market), 10)
		PrintKeyValue("entities", fmt.Sprintf("%d (fetched %d, cached %d, failed %d)", r.Entities, r.Collected, r.Cached, r.Failed), 10)
		PrintKeyValue("articles", fmt.Sprintf("%d", r.Articles), 10)
		PrintKeyValue("duration", r.Duration.Round(time.Millisecond).String(), 10)
		PrintSeparator()
	}

	if err != nil {
		PrintError(err.Error())
		return err
	}
	PrintSuccess("News feeds published")
	return nil
}

// newNewsCollector wires the collector to the backend: Redis caches and
// rate-limits across processes when enabled.
func newNewsCollector(cfg *config.Config, log *logger.Logger, b *backend, view *viewconfig.Config) *collector.NewsCollector {
	var limiter *redis.RateLimiter
	var cache *redis.Cache
	if b.Redis.Enabled() {
		limiter = redis.NewRateLimiter(b.Redis, cfg.Store.Prefix)
		cache = redis.NewCache(b.Redis, cfg.Store.Prefix)
	}

	fetcher := collector.NewFetcher(cfg.News, limiter, log)
	return collector.NewNewsCollector(fetcher, b.Store, view.Decoder(), cache, cfg.News, log)
}

func runCollectFinance(cmd *cobra.Command, args []string) error {
	cfg, log, view, err := setup()
	if err != nil {
		return err
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	b, err := openBackend(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer b.Close()

	if collectSchedule != "" {
		return runScheduled(ctx, "Finance", func() (*scheduler.Scheduler, error) {
			return newCollectionScheduler(cfg, log, b, view, nil, collectionSchedules{Finance: collectSchedule})
		})
	}

	PrintDoubleSeparator()
	fmt.Printf("  Finance collection  %s\n", time.Now().Format("2006-01-02 15:04:05"))
	PrintSeparator()

	res, err := newFinanceCollector(cfg, log, b).Collect(ctx)

	PrintKeyValue("bonds", fmt.Sprintf("%d", res.Bonds), 10)
	PrintKeyValue("items", fmt.Sprintf("%d", res.Items), 10)
	PrintKeyValue("failed", fmt.Sprintf("%d", res.Failed), 10)
	PrintKeyValue("duration", res.Duration.Round(time.Millisecond).String(), 10)
	PrintSeparator()

	if err != nil {
		PrintError(err.Error())
		return err
	}
	PrintSuccess("Finance summary published")
	return nil
}

// runScheduled starts the scheduler and blocks until ctx is cancelled
func runScheduled(ctx context.Context, what string, build func() (*scheduler.Scheduler, error)) error {
	sched, err := build()
	if err != nil {
		return err
	}
	sched.Start()
	PrintInfo(fmt.Sprintf("%s collection scheduled (%s), Ctrl+C to stop", what, collectSchedule))

	<-ctx.Done()
	sched.Stop()
	return nil
}

// newFinanceCollector wires the finance collector; Redis shares the rate budget when enabled
func newFinanceCollector(cfg *config.Config, log *logger.Logger, b *backend) *collector.FinanceCollector {
	var limiter *redis.RateLimiter
	if b.Redis.Enabled() {
		limiter = redis.NewRateLimiter(b.Redis, cfg.Store.Prefix)
	}

	fetcher := collector.NewFinanceFetcher(cfg.Finance, limiter, log)
	return collector.NewFinanceCollector(fetcher, b.Store, cfg.Finance, log)
}
