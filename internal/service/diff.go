package service

import (
	"github.com/lib/pq"

	"github.com/user/cinesync/internal/model"
	"github.com/user/cinesync/internal/poster"
	"github.com/user/cinesync/internal/scrape"
)

// Patch 字段名到新值的映射，只包含发生变化的字段。
// 空补丁意味着本轮无需写库。
type Patch map[string]interface{}

// DiffMovie 比较已存储的电影与本次抓取结果，产出最小字段级补丁。
// 标量按值比较，列表按顺序逐项比较（顺序变化也算变化）。
func DiffMovie(stored *model.Movie, fresh *model.SourceRecord) Patch {
	patch := Patch{}

	diffString(patch, "title", stored.Title, fresh.Title)
	diffString(patch, "original_title", stored.OriginalTitle, fresh.OriginalTitle)
	diffString(patch, "year", stored.Year, fresh.Year)
	diffString(patch, "director", stored.Director, fresh.Director)
	diffString(patch, "language", stored.Language, fresh.Language)
	diffString(patch, "release_date", stored.ReleaseDate, fresh.ReleaseDate)
	diffString(patch, "summary", stored.Summary, fresh.Summary)

	if fresh.Duration != 0 && stored.Duration != fresh.Duration {
		patch["duration"] = fresh.Duration
	}
	if fresh.Rating != 0 && stored.Rating != fresh.Rating {
		patch["rating"] = fresh.Rating
	}
	if fresh.VotesCount != 0 && stored.VotesCount != fresh.VotesCount {
		patch["votes_count"] = fresh.VotesCount
	}

	diffList(patch, "writers", stored.Writers, fresh.Writers)
	diffList(patch, "actors", stored.Actors, fresh.Actors)
	diffList(patch, "genres", stored.Genres, fresh.Genres)

	// 海报单向收敛：已本地化的海报不再被远程地址覆盖，
	// 只有仍是远程引用时才标记重新落地
	if fresh.Poster != "" && !poster.IsLocal(stored.Poster) && stored.Poster != fresh.Poster {
		patch["poster"] = fresh.Poster
	}

	// IMDb ID 只增不删：页面偶尔缺失该字段时不清掉已存储的值
	if fresh.IMDbID != "" && (stored.IMDbID == nil || *stored.IMDbID != fresh.IMDbID) {
		patch["imdb_id"] = fresh.IMDbID
		patch["imdb_url"] = scrape.IMDbTitleURL(fresh.IMDbID)
	}

	return patch
}

// DiffRating 比较 IMDb 评分，变化时并入补丁
func DiffRating(patch Patch, stored *model.Movie, fresh *scrape.IMDbRating) {
	if fresh == nil {
		return
	}
	if stored.IMDbRating != fresh.Value {
		patch["imdb_rating"] = fresh.Value
	}
	if fresh.Votes != 0 && stored.IMDbVotes != fresh.Votes {
		patch["imdb_votes"] = fresh.Votes
	}
}

// GuideChanged 判断家长指南的源内容是否发生变化。
// 只看分级字符串、各类别的程度与原文条目，完全忽略译文字段，
// 确保译文只在源内容变化时才重新生成，而不是每轮都翻。
func GuideChanged(stored, fresh *model.ParentalGuide) bool {
	if fresh == nil {
		return false
	}
	if stored == nil {
		return true
	}
	if stored.ContentRating != fresh.ContentRating {
		return true
	}

	oldCats := stored.Categories()
	newCats := fresh.Categories()
	for i := range newCats {
		if oldCats[i].Severity != newCats[i].Severity {
			return true
		}
		if !equalStrings(oldCats[i].Items, newCats[i].Items) {
			return true
		}
	}
	return false
}

func diffString(patch Patch, field, old, new string) {
	if new != "" && old != new {
		patch[field] = new
	}
}

func diffList(patch Patch, field string, old pq.StringArray, new []string) {
	if len(new) > 0 && !equalStrings(old, new) {
		patch[field] = pq.StringArray(new)
	}
}

func equalStrings(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
