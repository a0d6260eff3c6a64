package commands

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/wonny/rsboard/internal/model"
)

// publishCmd represents the publish command
var publishCmd = &cobra.Command{
	Use:   "publish <topic> [file.json|-]",
	Short: "토픽 문서 발행",
	Long: `JSON 문서를 토픽에 발행합니다 (전체 값 교체).
파일을 생략하거나 "-" 이면 stdin 을 읽습니다. --delete 는 문서를 삭제합니다.

Topics:
  market_data/global_indices
  stock_news/news_kr
  stock_news/news_us
  rs_data/latest
  rs_data/us_latest

Example:
  go run ./cmd/rsboard publish rs_data/latest rankings.json
  go run ./cmd/rsboard publish stock_news/news_us --delete`,
	Args: cobra.RangeArgs(1, 2),
	RunE: runPublish,
}

var (
	publishDelete bool
	publishForce  bool
)

func init() {
	rootCmd.AddCommand(publishCmd)

	publishCmd.Flags().BoolVar(&publishDelete, "delete", false, "문서 삭제")
	publishCmd.Flags().BoolVar(&publishForce, "force", false, "디코딩 실패 문서도 발행")
}

func runPublish(cmd *cobra.Command, args []string) error {
	topic := model.Topic(args[0])
	if _, ok := model.LookupTopic(topic); !ok {
		return fmt.Errorf("%w: %s", model.ErrUnknownTopic, topic)
	}

	cfg, log, view, err := setup()
	if err != nil {
		return err
	}

	var data []byte
	if !publishDelete {
		data, err = readInput(cmd.InOrStdin(), args[1:])
		if err != nil {
			return err
		}

		if !json.Valid(data) {
			return errors.New("input is not valid JSON")
		}

		doc, err := view.Decoder().Decode(topic, data)
		if err != nil && !publishForce {
			return fmt.Errorf("document does not decode as %s (use --force): %w", topic, err)
		}
		if err == nil && doc.Empty() {
			PrintWarning("document decodes to an empty value")
		}
	}

	ctx := context.Background()
	b, err := openBackend(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer b.Close()

	if err := b.Store.Put(ctx, topic, data); err != nil {
		return fmt.Errorf("publish %s: %w", topic, err)
	}

	if publishDelete {
		PrintSuccess(fmt.Sprintf("Deleted %s", topic))
	} else {
		PrintSuccess(fmt.Sprintf("Published %s (%d bytes)", topic, len(data)))
	}
	return nil
}

func readInput(stdin io.Reader, args []string) ([]byte, error) {
	if len(args) == 0 || args[0] == "-" {
		data, err := io.ReadAll(stdin)
		if err != nil {
			return nil, fmt.Errorf("read stdin: %w", err)
		}
		return data, nil
	}

	data, err := os.ReadFile(args[0])
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", args[0], err)
	}
	return data, nil
}
