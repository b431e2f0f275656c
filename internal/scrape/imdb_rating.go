package scrape

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/user/cinesync/internal/fetch"
)

// IMDbRating IMDb 评分信息
type IMDbRating struct {
	Value float64
	Votes int
	Best  float64
	Worst float64
}

// IMDbTitleURL IMDb 影片详情页地址
func IMDbTitleURL(imdbID string) string {
	return fmt.Sprintf("https://www.imdb.com/title/%s/", imdbID)
}

// IMDbHeaders 抓取 IMDb 时的请求头，英文优先
func IMDbHeaders() fetch.Headers {
	return fetch.Headers{
		AcceptLanguage: "en-US,en;q=0.5",
		Referer:        "https://www.imdb.com/",
	}
}

// NormalizeIMDbID 补齐 tt 前缀
func NormalizeIMDbID(id string) string {
	id = strings.TrimSpace(id)
	if id != "" && !strings.HasPrefix(id, "tt") {
		return "tt" + id
	}
	return id
}

// IMDbRatingDetail 从影片页内嵌的 JSON-LD 结构化数据中提取评分。
// 结构化数据比扫描标签稳定得多，页面改版基本不影响。
func IMDbRatingDetail(body []byte, imdbID string) (*IMDbRating, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("解析 HTML 失败: %w", err)
	}

	var found *IMDbRating
	doc.Find("script[type='application/ld+json']").EachWithBreak(func(i int, s *goquery.Selection) bool {
		var ld struct {
			AggregateRating *struct {
				RatingValue float64 `json:"ratingValue"`
				RatingCount int     `json:"ratingCount"`
				BestRating  float64 `json:"bestRating"`
				WorstRating float64 `json:"worstRating"`
			} `json:"aggregateRating"`
		}
		if err := json.Unmarshal([]byte(s.Text()), &ld); err != nil || ld.AggregateRating == nil {
			return true
		}
		r := &IMDbRating{
			Value: ld.AggregateRating.RatingValue,
			Votes: ld.AggregateRating.RatingCount,
			Best:  ld.AggregateRating.BestRating,
			Worst: ld.AggregateRating.WorstRating,
		}
		// 缺省评分区间按 1~10 处理
		if r.Best == 0 {
			r.Best = 10
		}
		if r.Worst == 0 {
			r.Worst = 1
		}
		found = r
		return false
	})

	if found == nil {
		return nil, &fetch.Error{Kind: fetch.KindParse, URL: IMDbTitleURL(imdbID),
			Err: fmt.Errorf("页面缺少评分结构化数据")}
	}
	return found, nil
}
