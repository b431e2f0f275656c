package scrape

import (
	"bytes"
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/user/cinesync/internal/fetch"
	"github.com/user/cinesync/internal/model"
)

var (
	reAlias     = regexp.MustCompile(`又名:\s*(.+)`)
	reLanguage  = regexp.MustCompile(`语言:\s*(.+)`)
	reWriterTxt = regexp.MustCompile(`编剧:\s*(.+)`)
	reInfoIMDb  = regexp.MustCompile(`IMDb:\s*(tt\d+)`)
	reHrefIMDb  = regexp.MustCompile(`imdb\.com/title/(tt\d+)`)
	reDoubanID  = regexp.MustCompile(`^\d{6,9}$`)
)

// DoubanURL 豆瓣电影详情页地址
func DoubanURL(doubanID string) string {
	return fmt.Sprintf("https://movie.douban.com/subject/%s/", doubanID)
}

// DoubanHeaders 抓取豆瓣时的请求头：中文优先，Referer 指向站内减少被标记概率
func DoubanHeaders() fetch.Headers {
	return fetch.Headers{
		AcceptLanguage: "zh-CN,zh;q=0.9,en;q=0.8",
		Referer:        "https://movie.douban.com/",
	}
}

// IsValidDoubanID 豆瓣 ID 为 6~9 位纯数字
func IsValidDoubanID(id string) bool {
	return reDoubanID.MatchString(id)
}

// DoubanDetail 解析豆瓣电影详情页，产出本次抓取会话的 SourceRecord。
// 页面缺少标题标记视为解析失败而不是静默返回空记录。
func DoubanDetail(body []byte, doubanID string) (*model.SourceRecord, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("解析 HTML 失败: %w", err)
	}

	rec := &model.SourceRecord{DoubanID: doubanID}

	// 组合标题拆分：中文段是标题，拉丁起始的尾段是原名
	combined := strings.TrimSpace(doc.Find("h1 span[property='v:itemreviewed']").Text())
	if combined == "" {
		combined = strings.TrimSpace(doc.Find("h1 span:first-child").Text())
	}
	rec.Title, rec.OriginalTitle = splitTitle(combined)

	infoText := doc.Find("#info").Text()

	// 拆不出原名时扫"又名"列表，取第一个拉丁字母开头的别名
	if rec.OriginalTitle == "" {
		if m := reAlias.FindStringSubmatch(infoText); len(m) > 1 {
			rec.OriginalTitle = firstLatinAlias(m[1])
		}
	}

	// 年份
	rec.Year = strings.Trim(doc.Find("h1 .year").Text(), "()")

	// 上映日期：可能有多条地区限定日期，取最早的一条作为首映日
	var dates []string
	doc.Find("span[property='v:initialReleaseDate']").Each(func(i int, s *goquery.Selection) {
		if v, ok := s.Attr("content"); ok && v != "" {
			dates = append(dates, v)
		} else {
			dates = append(dates, s.Text())
		}
	})
	rec.ReleaseDate = earliestReleaseDate(dates)

	// 片长
	rec.Duration = parseDuration(doc.Find("span[property='v:runtime']").Text())
	if rec.Duration == 0 {
		if m := regexp.MustCompile(`片长:\s*(\S+)`).FindStringSubmatch(infoText); len(m) > 1 {
			rec.Duration = parseDuration(m[1])
		}
	}

	// 海报：缩略图换中等分辨率，webp 换 jpg
	if poster, ok := doc.Find("#mainpic img").Attr("src"); ok {
		rec.Poster = normalizePosterURL(poster)
	}

	// 评分与评分人数
	if ratingText := strings.TrimSpace(doc.Find("strong.rating_num").Text()); ratingText != "" {
		rec.Rating, _ = strconv.ParseFloat(ratingText, 64)
	}
	if votesText := strings.TrimSpace(doc.Find("span[property='v:votes']").Text()); votesText != "" {
		rec.VotesCount, _ = strconv.Atoi(votesText)
	}

	// 导演
	rec.Director = strings.TrimSpace(doc.Find("a[rel='v:directedBy']").First().Text())

	// 编剧：优先取"编剧"标签后的链接元素，取不到再退化为文本列表
	rec.Writers = extractWriters(doc, infoText)

	// 主演，限制数量
	doc.Find("a[rel='v:starring']").EachWithBreak(func(i int, s *goquery.Selection) bool {
		if i >= model.MaxActors {
			return false
		}
		rec.Actors = append(rec.Actors, strings.TrimSpace(s.Text()))
		return true
	})

	// 类型
	doc.Find("span[property='v:genre']").Each(func(i int, s *goquery.Selection) {
		rec.Genres = append(rec.Genres, strings.TrimSpace(s.Text()))
	})

	// 语言
	if m := reLanguage.FindStringSubmatch(infoText); len(m) > 1 {
		rec.Language = strings.TrimSpace(strings.Split(m[1], "\n")[0])
	}

	// 剧情简介
	rec.Summary = cleanText(doc.Find("span[property='v:summary']").Text())

	// 剧集识别：info 块里出现集数或单集片长说明是剧集而不是电影
	if strings.Contains(infoText, "集数:") || strings.Contains(infoText, "单集片长:") {
		rec.IsSeries = true
	}

	// IMDb ID：优先显式的 "IMDb: ttXXXX" 标记，退化为扫描 IMDb 链接
	if m := reInfoIMDb.FindStringSubmatch(infoText); len(m) > 1 {
		rec.IMDbID = m[1]
	} else {
		doc.Find("a[href*='imdb.com/title/']").EachWithBreak(func(i int, s *goquery.Selection) bool {
			href, _ := s.Attr("href")
			if m := reHrefIMDb.FindStringSubmatch(href); len(m) > 1 {
				rec.IMDbID = m[1]
				return false
			}
			return true
		})
	}

	// JSON-LD 兜底（通常最稳定，不受 span 嵌套影响）
	applyJSONLD(doc, rec)

	if rec.Title == "" {
		return nil, &fetch.Error{Kind: fetch.KindParse, URL: DoubanURL(doubanID),
			Err: fmt.Errorf("无法解析出电影标题，页面可能结构变化")}
	}
	return rec, nil
}

// extractWriters 提取编剧列表
func extractWriters(doc *goquery.Document, infoText string) []string {
	var writers []string
	doc.Find("#info span.pl").EachWithBreak(func(i int, s *goquery.Selection) bool {
		if !strings.Contains(s.Text(), "编剧") {
			return true
		}
		s.NextFiltered("span.attrs").Find("a").Each(func(j int, a *goquery.Selection) {
			if name := strings.TrimSpace(a.Text()); name != "" {
				writers = append(writers, name)
			}
		})
		return false
	})
	if len(writers) > 0 {
		return writers
	}

	// 结构化链接取不到时退化为解析文本列表，
	// 上限 10 条，超长的 token 说明切分失配，丢弃
	if m := reWriterTxt.FindStringSubmatch(infoText); len(m) > 1 {
		for _, name := range strings.Split(m[1], "/") {
			name = strings.TrimSpace(name)
			if name == "" || len([]rune(name)) > 50 {
				continue
			}
			writers = append(writers, name)
			if len(writers) >= 10 {
				break
			}
		}
	}
	return writers
}

// applyJSONLD 用页面内嵌的 JSON-LD 补齐缺失字段
func applyJSONLD(doc *goquery.Document, rec *model.SourceRecord) {
	doc.Find("script[type='application/ld+json']").Each(func(i int, s *goquery.Selection) {
		ldString := strings.ReplaceAll(strings.TrimSpace(s.Text()), "\n", "")

		var ld struct {
			Name        string `json:"name"`
			Description string `json:"description"`
			Image       string `json:"image"`
		}
		if err := json.Unmarshal([]byte(ldString), &ld); err != nil {
			return
		}
		if rec.Title == "" && ld.Name != "" {
			rec.Title, rec.OriginalTitle = splitTitle(strings.TrimSpace(ld.Name))
		}
		if rec.Summary == "" && ld.Description != "" {
			rec.Summary = cleanText(ld.Description)
		}
		if rec.Poster == "" && ld.Image != "" {
			rec.Poster = normalizePosterURL(ld.Image)
		}
	})
}
