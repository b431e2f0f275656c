package scrape

import "testing"

func TestSplitTitle(t *testing.T) {
	tests := []struct {
		combined string
		title    string
		original string
	}{
		{"闪灵 The Shining", "闪灵", "The Shining"},
		{"肖申克的救赎 The Shawshank Redemption", "肖申克的救赎", "The Shawshank Redemption"},
		{"让子弹飞", "让子弹飞", ""},
		{"2001太空漫游 2001: A Space Odyssey", "2001太空漫游", "2001: A Space Odyssey"},
		{"The Shining", "The Shining", ""},
		{"", "", ""},
	}
	for _, tt := range tests {
		title, original := splitTitle(tt.combined)
		if title != tt.title || original != tt.original {
			t.Errorf("splitTitle(%q) = (%q, %q)，期望 (%q, %q)",
				tt.combined, title, original, tt.title, tt.original)
		}
	}
}

func TestFirstLatinAlias(t *testing.T) {
	tests := []struct {
		aliases string
		want    string
	}{
		{"幽光 / The Shining / 鬼店", "The Shining"},
		{"幽光 | 鬼店", ""},
		{"The Big Lebowski", "The Big Lebowski"},
		{"谋杀绿脚趾", ""},
		{"", ""},
	}
	for _, tt := range tests {
		if got := firstLatinAlias(tt.aliases); got != tt.want {
			t.Errorf("firstLatinAlias(%q) = %q，期望 %q", tt.aliases, got, tt.want)
		}
	}
}

func TestEarliestReleaseDate(t *testing.T) {
	tests := []struct {
		name string
		raws []string
		want string
	}{
		{
			// 重映日期排在前面，应取最早的首映日
			name: "重映与首映混排",
			raws: []string{"2026(中国大陆)", "1980-05-23(美国)", "1980-06-13(英国)"},
			want: "1980-05-23",
		},
		{
			name: "单条完整日期",
			raws: []string{"1994-09-10(多伦多电影节)"},
			want: "1994-09-10",
		},
		{
			// 同年的完整日期应胜过裸年份
			name: "裸年份与同年完整日期",
			raws: []string{"1980(美国)", "1980-05-23(美国)"},
			want: "1980-05-23",
		},
		{
			name: "只有年份",
			raws: []string{"2026(中国大陆)"},
			want: "2026",
		},
		{
			name: "无可解析日期",
			raws: []string{"待定", ""},
			want: "",
		},
		{
			name: "空列表",
			raws: nil,
			want: "",
		},
	}
	for _, tt := range tests {
		if got := earliestReleaseDate(tt.raws); got != tt.want {
			t.Errorf("%s: earliestReleaseDate(%v) = %q，期望 %q", tt.name, tt.raws, got, tt.want)
		}
	}
}

func TestParseDuration(t *testing.T) {
	tests := []struct {
		raw  string
		want int
	}{
		{"142分钟", 142},
		{"2小时22分钟", 142},
		{"2小时", 120},
		{"95 min", 95},
		{"146分钟(剧场版)", 146},
		{"garbage", 0},
		{"", 0},
	}
	for _, tt := range tests {
		if got := parseDuration(tt.raw); got != tt.want {
			t.Errorf("parseDuration(%q) = %d，期望 %d", tt.raw, got, tt.want)
		}
	}
}

func TestNormalizePosterURL(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{
			"https://img1.doubanio.com/view/photo/s_ratio_poster/public/p123.webp",
			"https://img1.doubanio.com/view/photo/m_ratio_poster/public/p123.jpg",
		},
		{
			"https://img1.doubanio.com/view/photo/m_ratio_poster/public/p123.jpg",
			"https://img1.doubanio.com/view/photo/m_ratio_poster/public/p123.jpg",
		},
		{"", ""},
	}
	for _, tt := range tests {
		if got := normalizePosterURL(tt.in); got != tt.want {
			t.Errorf("normalizePosterURL(%q) = %q，期望 %q", tt.in, got, tt.want)
		}
	}
}

func TestCleanText(t *testing.T) {
	got := cleanText("  a &amp; b\n\tc  ")
	if got != "a & b c" {
		t.Errorf("cleanText 结果 %q，期望 %q", got, "a & b c")
	}
}
