package model

import (
	"encoding/json"
	"strings"
)

// Severity 家长指南类别的分级程度，序数关系 None < Mild < Moderate < Severe
type Severity int

const (
	SeverityNone Severity = iota
	SeverityMild
	SeverityModerate
	SeveritySevere
)

var severityNames = [...]string{"None", "Mild", "Moderate", "Severe"}

func (s Severity) String() string {
	if s < SeverityNone || s > SeveritySevere {
		return "None"
	}
	return severityNames[s]
}

// ParseSeverity 大小写不敏感地解析分级标签，未知标签一律视为 None
func ParseSeverity(label string) Severity {
	switch strings.ToLower(strings.TrimSpace(label)) {
	case "mild":
		return SeverityMild
	case "moderate":
		return SeverityModerate
	case "severe":
		return SeveritySevere
	default:
		return SeverityNone
	}
}

// MarshalJSON 以字符串形式存储，保持 JSONB 内容可读
func (s Severity) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.String())
}

func (s *Severity) UnmarshalJSON(data []byte) error {
	var label string
	if err := json.Unmarshal(data, &label); err != nil {
		// 兼容历史上以数字存储的数据
		var n int
		if err2 := json.Unmarshal(data, &n); err2 != nil {
			return err
		}
		*s = Severity(n)
		return nil
	}
	*s = ParseSeverity(label)
	return nil
}

// GuideCategory 单个家长指南类别。
// 翻译成功时 ItemsZh 与 Items 等长且一一对应；翻译缺失时 ItemsZh 为空，
// 不允许出现长度不一致的部分翻译。
type GuideCategory struct {
	Severity Severity `json:"severity"`
	Items    []string `json:"items"`
	ItemsZh  []string `json:"items_zh,omitempty"`
}

// CertRating 某国家/地区的一条分级（如 "16" + 备注 "original rating"）
type CertRating struct {
	Rating string `json:"rating"`
	Note   string `json:"note,omitempty"`
}

// Certification 某国家/地区的分级信息
type Certification struct {
	Country string       `json:"country"`
	Ratings []CertRating `json:"ratings"`
}

// ParentalGuide IMDb 家长指南完整信息
type ParentalGuide struct {
	IMDbID          string          `json:"imdb_id"`
	Title           string          `json:"title"`
	URL             string          `json:"url"`
	ContentRating   string          `json:"content_rating"`
	ContentRatingZh string          `json:"content_rating_zh,omitempty"`
	Nudity          GuideCategory   `json:"sex_nudity"`
	Violence        GuideCategory   `json:"violence_gore"`
	Profanity       GuideCategory   `json:"profanity"`
	Alcohol         GuideCategory   `json:"alcohol_drugs_smoking"`
	Frightening     GuideCategory   `json:"frightening_intense"`
	Certifications  []Certification `json:"certifications,omitempty"`
}

// Categories 按固定顺序返回五个类别的可写引用，便于统一遍历
func (g *ParentalGuide) Categories() []*GuideCategory {
	return []*GuideCategory{&g.Nudity, &g.Violence, &g.Profanity, &g.Alcohol, &g.Frightening}
}

// CategoryKeys 与 Categories 顺序一致的类别标识
var CategoryKeys = []string{"sex_nudity", "violence_gore", "profanity", "alcohol_drugs_smoking", "frightening_intense"}
