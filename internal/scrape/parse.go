package scrape

import (
	"html"
	"regexp"
	"strconv"
	"strings"
)

var (
	reWhitespace = regexp.MustCompile(`\s+`)
	reLatinTail  = regexp.MustCompile(`^(\S.*?)\s+([A-Za-z].*)$`)
	reCJK        = regexp.MustCompile(`[\p{Han}\p{Hiragana}\p{Katakana}\p{Hangul}]`)
	reFullDate   = regexp.MustCompile(`^(\d{4})-(\d{2})-(\d{2})`)
	reYearMonth  = regexp.MustCompile(`^(\d{4})-(\d{2})`)
	reBareYear   = regexp.MustCompile(`^(\d{4})`)
	reHourMin    = regexp.MustCompile(`(\d+)\s*小时(?:\s*(\d+)\s*分钟?)?`)
	reMinutes    = regexp.MustCompile(`(\d+)\s*(?:分钟|min)`)
)

// cleanText 反转义 HTML 实体并压缩空白
func cleanText(s string) string {
	s = html.UnescapeString(s)
	return strings.TrimSpace(reWhitespace.ReplaceAllString(s, " "))
}

// splitTitle 拆分豆瓣的组合标题。
// 豆瓣详情页只给一条 "中文名 原名" 形式的组合标题，中文段是标题，
// 拉丁字母起始的尾段是原名。组合标题不含中文段时不拆分。
func splitTitle(combined string) (title, originalTitle string) {
	combined = strings.TrimSpace(combined)
	m := reLatinTail.FindStringSubmatch(combined)
	if m != nil && reCJK.MatchString(m[1]) {
		return strings.TrimSpace(m[1]), strings.TrimSpace(m[2])
	}
	return combined, ""
}

// firstLatinAlias 从"又名"列表中找第一个以拉丁字母开头的别名作为原名
func firstLatinAlias(aliases string) string {
	for _, sep := range []string{"|", "/"} {
		if strings.Contains(aliases, sep) {
			for _, alias := range strings.Split(aliases, sep) {
				alias = strings.TrimSpace(alias)
				if alias != "" && isLatinStart(alias) {
					return alias
				}
			}
			return ""
		}
	}
	alias := strings.TrimSpace(aliases)
	if isLatinStart(alias) {
		return alias
	}
	return ""
}

func isLatinStart(s string) bool {
	if s == "" {
		return false
	}
	c := s[0]
	return (c >= 'A' && c <= 'Z') || (c >= 'a' && c <= 'z')
}

// releaseDate 一条解析后的上映日期。value 保留原始精度（完整日期或年份），
// sortKey 用于挑选最早日期：年份按年底折算，同年的完整日期优先。
type releaseDate struct {
	value   string
	sortKey string
}

// parseReleaseDate 解析单条地区限定的上映日期，如 "1980-05-23(美国)" 或 "2026(中国大陆)"
func parseReleaseDate(raw string) (releaseDate, bool) {
	raw = strings.TrimSpace(raw)
	if i := strings.IndexAny(raw, "(（"); i >= 0 {
		raw = strings.TrimSpace(raw[:i])
	}

	if m := reFullDate.FindStringSubmatch(raw); m != nil {
		v := m[0]
		return releaseDate{value: v, sortKey: v}, true
	}
	if m := reYearMonth.FindStringSubmatch(raw); m != nil {
		return releaseDate{value: m[0], sortKey: m[0] + "-31"}, true
	}
	if m := reBareYear.FindStringSubmatch(raw); m != nil {
		return releaseDate{value: m[1], sortKey: m[1] + "-12-31"}, true
	}
	return releaseDate{}, false
}

// earliestReleaseDate 从多条地区限定日期中取最早的一条。
// 源站会把重映或待映日期排在前面，最早日期才是真正的首映。
func earliestReleaseDate(raws []string) string {
	var best releaseDate
	for _, raw := range raws {
		d, ok := parseReleaseDate(raw)
		if !ok {
			continue
		}
		if best.value == "" || d.sortKey < best.sortKey {
			best = d
		}
	}
	return best.value
}

// parseDuration 解析片长文本为分钟数。
// 支持 "142分钟" 与 "2小时22分钟" 两种形式，解析不出来返回 0 而不是报错，
// 片长按尽力而为处理。
func parseDuration(raw string) int {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0
	}
	if m := reHourMin.FindStringSubmatch(raw); m != nil {
		hours, _ := strconv.Atoi(m[1])
		minutes := 0
		if m[2] != "" {
			minutes, _ = strconv.Atoi(m[2])
		}
		return hours*60 + minutes
	}
	if m := reMinutes.FindStringSubmatch(raw); m != nil {
		minutes, _ := strconv.Atoi(m[1])
		return minutes
	}
	return 0
}

// normalizePosterURL 规范化海报地址：缩略图换成中等分辨率，
// webp 换成 jpg 以兼容下游处理。
func normalizePosterURL(u string) string {
	u = strings.Replace(u, "/s_ratio_poster/", "/m_ratio_poster/", 1)
	if strings.HasSuffix(u, ".webp") {
		u = strings.TrimSuffix(u, ".webp") + ".jpg"
	}
	return u
}
