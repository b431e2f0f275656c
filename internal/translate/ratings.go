package translate

import (
	"context"
	"regexp"
	"strings"
)

// ratingTable 常见分级字符串的固定译法。
// 先查表再走模型：分级标签数量有限，查表又快又稳定。
var ratingTable = map[string]string{
	"G":         "G级（大众级，适合所有年龄）",
	"PG":        "PG级（辅导级，建议家长指导）",
	"PG-13":     "PG-13级（特别辅导级，13岁以下建议家长陪同）",
	"R":         "R级（限制级，17岁以下须家长陪同）",
	"NC-17":     "NC-17级（17岁及以下不得观看）",
	"X":         "X级（成人级）",
	"M":         "M级（成熟级，历史分级）",
	"GP":        "GP级（辅导级，历史分级）",
	"Passed":    "审查通过（历史分级）",
	"Approved":  "审查通过（历史分级）",
	"Not Rated": "未分级",
	"Unrated":   "未分级",
	"TV-Y":      "TV-Y级（适合所有儿童）",
	"TV-Y7":     "TV-Y7级（适合7岁以上儿童）",
	"TV-G":      "TV-G级（适合所有年龄）",
	"TV-PG":     "TV-PG级（建议家长指导）",
	"TV-14":     "TV-14级（14岁以下建议家长陪同）",
	"TV-MA":     "TV-MA级（仅限成年观众）",
}

// 形如 "Rated R for strong violence" 的完整分级句
var reRatedPhrase = regexp.MustCompile(`^Rated\s+([A-Za-z0-9-]+)(?:\s+(for\s+.+))?$`)

// TranslateContentRating 翻译分级字符串。
// 已知标签直接查表；带自由文本限定语的只把限定语交给模型，拼在标签译文后；
// 完全未知的整句走单条翻译。
func (t *Translator) TranslateContentRating(ctx context.Context, rating string) string {
	rating = strings.TrimSpace(rating)
	if rating == "" {
		return ""
	}

	if zh, ok := ratingTable[rating]; ok {
		return zh
	}

	if m := reRatedPhrase.FindStringSubmatch(rating); m != nil {
		label, ok := ratingTable[m[1]]
		if !ok {
			label = m[1]
		}
		if m[2] == "" {
			return label
		}
		qualifier := t.TranslateOne(ctx, m[2])
		return label + "，" + qualifier
	}

	return t.TranslateOne(ctx, rating)
}
