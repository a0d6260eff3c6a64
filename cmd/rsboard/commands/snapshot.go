package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/wonny/rsboard/internal/dashboard"
	"github.com/wonny/rsboard/internal/finance"
	"github.com/wonny/rsboard/internal/navigation"
	"github.com/wonny/rsboard/internal/subscription"
)

// snapshotCmd represents the snapshot command
var snapshotCmd = &cobra.Command{
	Use:   "snapshot",
	Short: "현재 화면 1회 출력",
	Long: `토픽을 구독해 첫 값을 받은 뒤 지정한 화면을 출력하고 종료합니다.

Example:
  go run ./cmd/rsboard snapshot
  go run ./cmd/rsboard snapshot --market KR --view RANK_TABLE
  go run ./cmd/rsboard snapshot --market US --view NEWS --tab news_AAPL --json`,
	RunE: runSnapshot,
}

var (
	snapshotMarket  string
	snapshotView    string
	snapshotTab     string
	snapshotJSON    bool
	snapshotTimeout time.Duration
)

func init() {
	rootCmd.AddCommand(snapshotCmd)

	snapshotCmd.Flags().StringVar(&snapshotMarket, "market", "FINANCE", "FINANCE | KR | US")
	snapshotCmd.Flags().StringVar(&snapshotView, "view", "NEWS", "NEWS | RANK_TABLE | RANK_GRAPH (KR/US only)")
	snapshotCmd.Flags().StringVar(&snapshotTab, "tab", "", "뉴스 탭 키")
	snapshotCmd.Flags().BoolVar(&snapshotJSON, "json", false, "JSON 출력")
	snapshotCmd.Flags().DurationVar(&snapshotTimeout, "timeout", 10*time.Second, "첫 값 대기 시간")
}

func runSnapshot(cmd *cobra.Command, args []string) error {
	market, err := navigation.ParseMarket(snapshotMarket)
	if err != nil {
		return err
	}
	subview, err := navigation.ParseSubView(snapshotView)
	if err != nil {
		return err
	}

	cfg, log, view, err := setup()
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	b, err := openBackend(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer b.Close()

	manager := subscription.NewManager(b.Store, view.Decoder(), log)
	defer manager.Close()

	session := dashboard.NewSession(manager, view, log)
	if err := session.Start(ctx); err != nil {
		return fmt.Errorf("start session: %w", err)
	}
	defer session.Close()

	session.SelectMarket(market)
	session.SelectSubview(subview)

	active := navigation.ActiveFor(session.Navigation())
	if !waitDelivered(manager, active, snapshotTimeout) {
		PrintWarning("timed out waiting for the first document; showing pending state")
	}

	if snapshotTab != "" && active.Market != "" {
		if !session.SelectTab(active.Market, snapshotTab) {
			PrintWarning(fmt.Sprintf("tab %q not found", snapshotTab))
		}
	}

	v := session.View()
	if snapshotJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	}

	printView(v)
	return nil
}

// waitDelivered polls until every active topic left the pending state
func waitDelivered(m *subscription.Manager, active navigation.Active, timeout time.Duration) bool {
	deadline := time.Now().Add(timeout)
	for {
		done := true
		for _, t := range active.Topics {
			if m.Current(t).State == subscription.StatePending {
				done = false
				break
			}
		}
		if done {
			return true
		}
		if time.Now().After(deadline) {
			return false
		}
		time.Sleep(20 * time.Millisecond)
	}
}

func printView(v dashboard.View) {
	PrintDoubleSeparator()
	fmt.Printf("  %s\n", v.Navigation)
	PrintSeparator()

	switch {
	case v.Finance != nil:
		printFinance(v.Finance)
	case v.News != nil:
		printNews(v.News)
	case v.Series != nil:
		printSeries(v.Series)
	case v.Table != nil:
		printTable(v.Table)
	}
}

func printFinance(f *dashboard.FinanceView) {
	PrintKeyValue("state", f.State.String(), 8)
	PrintKeyValue("updated", f.Board.UpdateTime, 8)
	fmt.Println()

	widths := []int{12, 12, 10}
	PrintTableHeader([]string{"BOND", "YIELD", "CHANGE"}, widths)
	for _, r := range f.Board.Bonds {
		PrintTableRow([]string{r.Maturity, r.ValueText, mark(r.ChangeText, r.Volatile)}, widths)
	}
	fmt.Println()

	widths = []int{24, 14, 10}
	PrintTableHeader([]string{"INDICATOR", "PRICE", "CHANGE"}, widths)
	for _, group := range [][]finance.ItemRow{f.Board.GroupI, f.Board.GroupII} {
		for _, r := range group {
			PrintTableRow([]string{r.Name, r.PriceText, mark(r.ChangeText, r.Volatile)}, widths)
		}
	}
}

func printNews(n *dashboard.NewsView) {
	PrintKeyValue("state", n.State.String(), 8)
	for _, tab := range n.Grouping.Tabs {
		selected := " "
		if n.HasSelected && tab.Key == n.Selected {
			selected = "*"
		}
		fmt.Printf(" %s %s (%d)\n", selected, tab.Label, tab.Articles)
	}
	PrintSeparator()

	widths := []int{16, 18, 60}
	PrintTableHeader([]string{"TIME", "PUBLISHER", "TITLE"}, widths)
	for _, a := range n.Articles {
		PrintTableRow([]string{a.Time, a.Publisher, a.Title}, widths)
	}
}

func printSeries(s *dashboard.SeriesView) {
	PrintKeyValue("state", s.State.String(), 8)
	PrintKeyValue("updated", s.UpdateTime, 8)
	fmt.Println()

	widths := []int{24, 10, 8}
	PrintTableHeader([]string{"ENTITY", "CODE", "RS AVG"}, widths)
	for _, e := range s.Series.Entities {
		PrintTableRow([]string{e.Key, e.Code, fmt.Sprintf("%.1f", e.RSAvg)}, widths)
	}
}

func printTable(t *dashboard.TableView) {
	PrintKeyValue("state", t.State.String(), 8)
	PrintKeyValue("updated", t.Table.UpdateTime, 8)
	fmt.Println()

	columns := []string{"#", "NAME", "CODE"}
	widths := []int{4, 20, 10}
	for _, p := range t.Table.Periods {
		columns = append(columns, p)
		widths = append(widths, 6)
	}
	columns = append(columns, "AVG", "DISP")
	widths = append(widths, 6, 6)

	PrintTableHeader(columns, widths)
	for _, r := range t.Table.Rows {
		values := []string{fmt.Sprintf("%d", r.Rank), r.Name, r.Code}
		for _, p := range t.Table.Periods {
			values = append(values, score(r.Scores[p]))
		}
		values = append(values, score(r.RSAvg), score(r.Disparity))
		PrintTableRow(values, widths)
	}
}

func score(v *float64) string {
	if v == nil {
		return "-"
	}
	return fmt.Sprintf("%.1f", *v)
}

func mark(s string, volatile bool) string {
	if volatile {
		return s + " !"
	}
	return s
}
