package scrape

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/user/cinesync/internal/fetch"
	"github.com/user/cinesync/internal/model"
)

// 家长指南页五个固定类别的节锚点
var guideSectionIDs = []string{"nudity", "violence", "profanity", "alcohol", "frightening"}

var (
	reGuideTitle    = regexp.MustCompile(`data-testid="subtitle"[^>]*>([^<]+)`)
	rePageTitle     = regexp.MustCompile(`<title>([^<]+)</title>`)
	rePageTitleYear = regexp.MustCompile(`^(.+?)\s*\(\d{4}\)`)
	reContentRating = regexp.MustCompile(`(?s)data-testid="content-rating".*?Motion Picture Rating.*?ipc-html-content-inner-div[^>]*>([^<]+)`)
	reSeverity      = regexp.MustCompile(`ipc-signpost__text[^>]*>([^<]+)`)
	reGuideItem     = regexp.MustCompile(`(?s)data-testid="item-html".*?ipc-html-content-inner-div[^>]*>([^<]+)`)
	reCertSection   = regexp.MustCompile(`(?s)data-testid="certificates-container"(.*?)(?:</section>|<footer)`)
	reCertSplit     = regexp.MustCompile(`data-testid="certificates-item"`)
	reCertCountry   = regexp.MustCompile(`ipc-metadata-list-item__label[^>]*>([^<]+)`)
	reCertRating    = regexp.MustCompile(`(?s)ipc-metadata-list-item__list-content-item--link[^>]*>([^<]+)</a>(?:<span class="ipc-metadata-list-item__list-content-item--subText">([^<]*)</span>)?`)
)

// IMDbGuideURL IMDb 家长指南页地址
func IMDbGuideURL(imdbID string) string {
	return fmt.Sprintf("https://www.imdb.com/title/%s/parentalguide/", imdbID)
}

// IMDbGuideDetail 解析 IMDb 家长指南页。
// 页面节结构多变，这里用节锚点之间的文本切片 + 正则提取，
// 缺失的类别产出 severity=None 与空条目列表，不视为失败。
func IMDbGuideDetail(body []byte, imdbID string) (*model.ParentalGuide, error) {
	htmlContent := string(body)

	guide := &model.ParentalGuide{
		IMDbID: imdbID,
		URL:    IMDbGuideURL(imdbID),
		Title:  extractGuideTitle(htmlContent),
	}

	if m := reContentRating.FindStringSubmatch(htmlContent); m != nil {
		guide.ContentRating = cleanText(m[1])
	}

	cats := guide.Categories()
	for i, sectionID := range guideSectionIDs {
		*cats[i] = extractGuideCategory(htmlContent, sectionID)
	}

	guide.Certifications = extractCertifications(htmlContent)

	// 五个类别全空且没有分级信息，说明页面结构不对或抓到了错误页面
	empty := guide.ContentRating == "" && len(guide.Certifications) == 0
	for _, c := range guide.Categories() {
		if c.Severity != model.SeverityNone || len(c.Items) > 0 {
			empty = false
		}
	}
	if empty {
		return nil, &fetch.Error{Kind: fetch.KindParse, URL: guide.URL,
			Err: fmt.Errorf("页面缺少家长指南结构")}
	}
	return guide, nil
}

func extractGuideTitle(htmlContent string) string {
	if m := reGuideTitle.FindStringSubmatch(htmlContent); m != nil {
		return cleanText(m[1])
	}
	// 退化为页面 title，去掉年份后缀
	if m := rePageTitle.FindStringSubmatch(htmlContent); m != nil {
		if t := rePageTitleYear.FindStringSubmatch(m[1]); t != nil {
			return cleanText(t[1])
		}
	}
	return ""
}

var reSectionAnchor = regexp.MustCompile(`id="(?:nudity|violence|profanity|alcohol|frightening|certificates)"`)

// findSection 截取某类别锚点到下一个锚点（或文档末尾）之间的片段
func findSection(htmlContent, sectionID string) string {
	start := strings.Index(htmlContent, fmt.Sprintf(`id="%s"`, sectionID))
	if start < 0 {
		return ""
	}
	rest := htmlContent[start:]
	// 跳过自身锚点再找下一个节锚点
	if next := reSectionAnchor.FindStringIndex(rest[1:]); next != nil {
		return rest[:next[0]+1]
	}
	return rest
}

// extractGuideCategory 提取单个类别：分级标签大小写不敏感地归一到四级序数，
// 缺失时默认 None
func extractGuideCategory(htmlContent, sectionID string) model.GuideCategory {
	cat := model.GuideCategory{Severity: model.SeverityNone}
	section := findSection(htmlContent, sectionID)
	if section == "" {
		return cat
	}

	if m := reSeverity.FindStringSubmatch(section); m != nil {
		cat.Severity = model.ParseSeverity(cleanText(m[1]))
	}
	for _, m := range reGuideItem.FindAllStringSubmatch(section, -1) {
		if text := cleanText(m[1]); text != "" {
			cat.Items = append(cat.Items, text)
		}
	}
	return cat
}

// extractCertifications 提取各国家/地区的分级表
func extractCertifications(htmlContent string) []model.Certification {
	var certs []model.Certification

	section := reCertSection.FindString(htmlContent)
	if section == "" {
		return certs
	}

	// 按 certificates-item 切出每个国家块
	indexes := reCertSplit.FindAllStringIndex(section, -1)
	for i, idx := range indexes {
		end := len(section)
		if i+1 < len(indexes) {
			end = indexes[i+1][0]
		}
		block := section[idx[0]:end]

		country := ""
		if m := reCertCountry.FindStringSubmatch(block); m != nil {
			country = cleanText(m[1])
		}
		if country == "" {
			continue
		}

		var ratings []model.CertRating
		for _, m := range reCertRating.FindAllStringSubmatch(block, -1) {
			rating := cleanText(m[1])
			note := ""
			if len(m) > 2 {
				note = cleanText(m[2])
			}
			if rating != "" {
				ratings = append(ratings, model.CertRating{Rating: rating, Note: note})
			}
		}
		if len(ratings) > 0 {
			certs = append(certs, model.Certification{Country: country, Ratings: ratings})
		}
	}
	return certs
}
