package service

import (
	"testing"

	"github.com/lib/pq"

	"github.com/user/cinesync/internal/model"
	"github.com/user/cinesync/internal/scrape"
)

func storedShining() *model.Movie {
	imdbID := "tt0081505"
	imdbURL := "https://www.imdb.com/title/tt0081505/"
	return &model.Movie{
		ID:            1,
		DoubanID:      "1292226",
		IMDbID:        &imdbID,
		IMDbURL:       &imdbURL,
		Title:         "闪灵",
		OriginalTitle: "The Shining",
		Year:          "1980",
		Poster:        "/static/posters/1292226.jpg",
		Director:      "斯坦利·库布里克",
		Writers:       pq.StringArray{"斯坦利·库布里克", "黛安·约翰逊"},
		Actors:        pq.StringArray{"杰克·尼科尔森", "谢莉·杜瓦尔"},
		Genres:        pq.StringArray{"剧情", "惊悚", "恐怖"},
		Language:      "英语",
		ReleaseDate:   "1980-05-23",
		Duration:      146,
		Summary:       "冬季封闭酒店里的故事。",
		Rating:        7.8,
		VotesCount:    512345,
	}
}

func freshShining() *model.SourceRecord {
	return &model.SourceRecord{
		DoubanID:      "1292226",
		Title:         "闪灵",
		OriginalTitle: "The Shining",
		Year:          "1980",
		Poster:        "https://img1.doubanio.com/view/photo/m_ratio_poster/public/p456.jpg",
		Director:      "斯坦利·库布里克",
		Writers:       []string{"斯坦利·库布里克", "黛安·约翰逊"},
		Actors:        []string{"杰克·尼科尔森", "谢莉·杜瓦尔"},
		Genres:        []string{"剧情", "惊悚", "恐怖"},
		Language:      "英语",
		ReleaseDate:   "1980-05-23",
		Duration:      146,
		Summary:       "冬季封闭酒店里的故事。",
		Rating:        7.8,
		VotesCount:    512345,
		IMDbID:        "tt0081505",
	}
}

func TestDiffMovieNoChange(t *testing.T) {
	// 已本地化的海报不应被远程地址再次覆盖，其余字段全部一致
	patch := DiffMovie(storedShining(), freshShining())
	if len(patch) != 0 {
		t.Errorf("无变化时补丁应为空，实际 %v", patch)
	}
}

func TestDiffMovieRatingOnly(t *testing.T) {
	stored := storedShining()
	fresh := freshShining()
	fresh.Rating = 8.0

	patch := DiffMovie(stored, fresh)
	if len(patch) != 1 {
		t.Fatalf("只有评分变化时补丁应只含一个字段，实际 %v", patch)
	}
	if patch["rating"] != 8.0 {
		t.Errorf("patch[rating] = %v，期望 8.0", patch["rating"])
	}
}

func TestDiffMovieEmptyFreshGuards(t *testing.T) {
	// 页面抓取缺字段时不应把已存储的值清空
	stored := storedShining()
	fresh := freshShining()
	fresh.Summary = ""
	fresh.Duration = 0
	fresh.Rating = 0
	fresh.VotesCount = 0
	fresh.Actors = nil
	fresh.IMDbID = ""

	patch := DiffMovie(stored, fresh)
	if len(patch) != 0 {
		t.Errorf("空的抓取字段不应生成补丁，实际 %v", patch)
	}
}

func TestDiffMovieListOrderSensitive(t *testing.T) {
	stored := storedShining()
	fresh := freshShining()
	fresh.Actors = []string{"谢莉·杜瓦尔", "杰克·尼科尔森"}

	patch := DiffMovie(stored, fresh)
	got, ok := patch["actors"].(pq.StringArray)
	if !ok {
		t.Fatalf("列表顺序变化应生成补丁，实际 %v", patch)
	}
	if got[0] != "谢莉·杜瓦尔" {
		t.Errorf("patch[actors] = %v", got)
	}
}

func TestDiffMoviePosterMonotonic(t *testing.T) {
	// 远程海报 → 标记落地
	stored := storedShining()
	stored.Poster = "https://img1.doubanio.com/old.jpg"
	fresh := freshShining()

	patch := DiffMovie(stored, fresh)
	if patch["poster"] != fresh.Poster {
		t.Errorf("远程海报变化应进入补丁，实际 %v", patch)
	}

	// 已本地化 → 不再被远程地址覆盖
	stored.Poster = "/static/posters/1292226.jpg"
	patch = DiffMovie(stored, fresh)
	if _, ok := patch["poster"]; ok {
		t.Errorf("本地化后的海报不应回退为远程地址，实际 %v", patch)
	}
}

func TestDiffMovieIMDbIDAddOnly(t *testing.T) {
	stored := storedShining()
	stored.IMDbID = nil
	stored.IMDbURL = nil
	fresh := freshShining()

	patch := DiffMovie(stored, fresh)
	if patch["imdb_id"] != "tt0081505" {
		t.Errorf("补上 IMDb ID 应进入补丁，实际 %v", patch)
	}
	if patch["imdb_url"] != "https://www.imdb.com/title/tt0081505/" {
		t.Errorf("imdb_url 应与 imdb_id 一起写入，实际 %v", patch["imdb_url"])
	}
}

func TestDiffMovieIdempotent(t *testing.T) {
	// 把补丁应用回存储记录后再 Diff 一次，应得到空补丁
	stored := storedShining()
	fresh := freshShining()
	fresh.Rating = 8.0
	fresh.Summary = "冬季封闭酒店里，看门人一家逐渐陷入疯狂。"

	patch := DiffMovie(stored, fresh)
	if v, ok := patch["rating"].(float64); ok {
		stored.Rating = v
	}
	if v, ok := patch["summary"].(string); ok {
		stored.Summary = v
	}

	again := DiffMovie(stored, fresh)
	if len(again) != 0 {
		t.Errorf("补丁应用后再次比较应为空，实际 %v", again)
	}
}

func TestDiffRating(t *testing.T) {
	stored := storedShining()
	stored.IMDbRating = 8.4
	stored.IMDbVotes = 1000000

	patch := Patch{}
	DiffRating(patch, stored, &scrape.IMDbRating{Value: 8.4, Votes: 1000000})
	if len(patch) != 0 {
		t.Errorf("评分未变时不应生成补丁，实际 %v", patch)
	}

	DiffRating(patch, stored, &scrape.IMDbRating{Value: 8.5, Votes: 1100000})
	if patch["imdb_rating"] != 8.5 || patch["imdb_votes"] != 1100000 {
		t.Errorf("评分变化应进入补丁，实际 %v", patch)
	}

	// nil 评分（未抓取）不应影响补丁
	patch = Patch{}
	DiffRating(patch, stored, nil)
	if len(patch) != 0 {
		t.Errorf("nil 评分不应生成补丁，实际 %v", patch)
	}
}

func sampleGuide() *model.ParentalGuide {
	return &model.ParentalGuide{
		IMDbID:        "tt0081505",
		ContentRating: "Rated R",
		Nudity:        model.GuideCategory{Severity: model.SeverityModerate, Items: []string{"A bathtub scene."}},
		Violence:      model.GuideCategory{Severity: model.SeveritySevere, Items: []string{"An axe attack."}},
	}
}

func TestGuideChanged(t *testing.T) {
	stored := sampleGuide()
	stored.ContentRatingZh = "R级（限制级，17岁以下须家长陪同）"
	stored.Nudity.ItemsZh = []string{"一个浴缸场景。"}

	// 译文字段的差异不算变化，避免每轮都重新翻译
	fresh := sampleGuide()
	if GuideChanged(stored, fresh) {
		t.Error("只有译文差异时 GuideChanged 应为 false")
	}

	fresh = sampleGuide()
	fresh.Violence.Severity = model.SeverityModerate
	if !GuideChanged(stored, fresh) {
		t.Error("程度变化时 GuideChanged 应为 true")
	}

	fresh = sampleGuide()
	fresh.Nudity.Items = []string{"A bathtub scene.", "A new item."}
	if !GuideChanged(stored, fresh) {
		t.Error("条目变化时 GuideChanged 应为 true")
	}

	fresh = sampleGuide()
	fresh.ContentRating = "Rated PG-13"
	if !GuideChanged(stored, fresh) {
		t.Error("分级变化时 GuideChanged 应为 true")
	}

	if !GuideChanged(nil, fresh) {
		t.Error("此前没有指南时 GuideChanged 应为 true")
	}
	if GuideChanged(stored, nil) {
		t.Error("本轮未抓到指南时 GuideChanged 应为 false")
	}
}
