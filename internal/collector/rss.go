package collector

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/wonny/rsboard/internal/model"
)

// DefaultPublisher is used when an item names no source
const DefaultPublisher = "Google News"

// ArticleTimeLayout is the display format of Article.Time
const ArticleTimeLayout = "2006-01-02 15:04"

// pubDate layouts seen in Google News feeds
var pubDateLayouts = []string{
	time.RFC1123,
	time.RFC1123Z,
	"Mon, 2 Jan 2006 15:04:05 MST",
	"Mon, 2 Jan 2006 15:04:05 -0700",
}

type rssResponse struct {
	Channel struct {
		Items []rssItem `xml:"item"`
	} `xml:"channel"`
}

type rssItem struct {
	Title   string `xml:"title"`
	Link    string `xml:"link"`
	PubDate string `xml:"pubDate"`
	Source  string `xml:"source"`
	Desc    string `xml:"description"`
}

// Locale is the Google News edition queried for a market
type Locale struct {
	HL   string
	GL   string
	CEID string
}

// Locales per market
var Locales = map[model.Market]Locale{
	model.MarketKR: {HL: "ko", GL: "KR", CEID: "KR:ko"},
	model.MarketUS: {HL: "en-US", GL: "US", CEID: "US:en"},
}

// SearchURL builds the RSS search URL of one query
func SearchURL(base string, market model.Market, query string) (string, error) {
	loc, ok := Locales[market]
	if !ok {
		return "", fmt.Errorf("%w: %q", model.ErrInvalidMarket, market)
	}

	u, err := url.Parse(base)
	if err != nil {
		return "", fmt.Errorf("invalid news base url: %w", err)
	}

	q := u.Query()
	q.Set("q", query)
	q.Set("hl", loc.HL)
	q.Set("gl", loc.GL)
	q.Set("ceid", loc.CEID)
	u.RawQuery = q.Encode()

	return u.String(), nil
}

func parseFeed(data []byte) ([]rssItem, error) {
	var rss rssResponse
	if err := xml.NewDecoder(bytes.NewReader(data)).Decode(&rss); err != nil {
		return nil, fmt.Errorf("failed to parse rss: %w", err)
	}
	return rss.Channel.Items, nil
}

// BuildArticles turns feed items into at most limit articles:
// duplicate titles dropped (first wins), newest first, unparseable dates as now.
func BuildArticles(items []rssItem, now time.Time, limit int) []model.Article {
	type dated struct {
		article model.Article
		at      time.Time
	}

	seen := make(map[string]bool, len(items))
	list := make([]dated, 0, len(items))

	for _, item := range items {
		title := strings.TrimSpace(item.Title)
		if title == "" || seen[title] {
			continue
		}
		seen[title] = true

		at := parsePubDate(item.PubDate, now)
		list = append(list, dated{
			article: model.Article{
				Title:     title,
				Link:      strings.TrimSpace(item.Link),
				Publisher: publisher(item),
				Time:      at.Format(ArticleTimeLayout),
			},
			at: at,
		})
	}

	sort.SliceStable(list, func(i, j int) bool {
		return list[i].at.After(list[j].at)
	})

	if limit > 0 && len(list) > limit {
		list = list[:limit]
	}

	articles := make([]model.Article, len(list))
	for i, d := range list {
		articles[i] = d.article
	}
	return articles
}

func parsePubDate(s string, now time.Time) time.Time {
	s = strings.TrimSpace(s)
	for _, layout := range pubDateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.In(now.Location())
		}
	}
	return now
}

// publisher: <source>, else the <font> text of the description HTML
func publisher(item rssItem) string {
	if src := strings.TrimSpace(item.Source); src != "" {
		return src
	}

	if item.Desc != "" {
		doc, err := goquery.NewDocumentFromReader(strings.NewReader(item.Desc))
		if err == nil {
			if font := strings.TrimSpace(doc.Find("font").Last().Text()); font != "" {
				return font
			}
		}
	}

	return DefaultPublisher
}
