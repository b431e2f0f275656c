package model

import (
	"time"

	"github.com/lib/pq"
	"github.com/pgvector/pgvector-go"
)

// Movie 电影模型（豆瓣核心信息 + IMDb 补充信息）
type Movie struct {
	ID            int            `json:"id" gorm:"primaryKey"`
	DoubanID      string         `json:"douban_id" gorm:"uniqueIndex"`
	IMDbID        *string        `json:"imdb_id,omitempty" gorm:"column:imdb_id;uniqueIndex"`
	IMDbURL       *string        `json:"imdb_url,omitempty" gorm:"column:imdb_url;uniqueIndex"`
	Title         string         `json:"title"`
	OriginalTitle string         `json:"original_title"`
	Year          string         `json:"year"`
	Poster        string         `json:"poster"`
	Director      string         `json:"director"`
	Writers       pq.StringArray `json:"writers" gorm:"type:text[]"`
	Actors        pq.StringArray `json:"actors" gorm:"type:text[]"`
	Genres        pq.StringArray `json:"genres" gorm:"type:text[]"`
	Language      string         `json:"language"`
	ReleaseDate   string         `json:"release_date"`
	Duration      int            `json:"duration"`
	Summary       string         `json:"summary"`
	Rating        float64        `json:"rating" gorm:"index"`
	VotesCount    int            `json:"votes_count"`
	IMDbRating    float64        `json:"imdb_rating" gorm:"column:imdb_rating"`
	IMDbVotes     int            `json:"imdb_votes" gorm:"column:imdb_votes"`
	PlotPoints    pq.StringArray `json:"plot_points,omitempty" gorm:"type:text[]"`
	Guide         *ParentalGuide `json:"parental_guide,omitempty" gorm:"type:jsonb;serializer:json"`

	// 向量检索用（可选，同步成功后异步刷新）
	EmbeddingContent string           `json:"-"`
	Embedding        *pgvector.Vector `json:"-" gorm:"type:vector(768)"`

	// CheckedAt 记录同步管道最后一次检查该记录的时间（无论是否产生更新）
	CheckedAt time.Time `json:"checked_at" gorm:"index"`
	UpdatedAt time.Time `json:"updated_at" gorm:"index"`
}

// SetIMDbID 设置 IMDb ID。空值保持为 nil，避免稀疏唯一索引上的空串冲突。
func (m *Movie) SetIMDbID(id string) {
	if id == "" {
		m.IMDbID = nil
		m.IMDbURL = nil
		return
	}
	u := "https://www.imdb.com/title/" + id + "/"
	m.IMDbID = &id
	m.IMDbURL = &u
}

// HasIMDbID 是否带有非空 IMDb ID
func (m *Movie) HasIMDbID() bool {
	return m.IMDbID != nil && *m.IMDbID != ""
}

// MaxActors 入库主演的数量上限
const MaxActors = 15

// MaxPlotPoints 剧情要点数量上限
const MaxPlotPoints = 20

// SourceRecord 单次抓取会话内从页面提取出的字段，不独立入库，
// 由 Diff 引擎与已存储的 Movie 比较后生成差量补丁。
type SourceRecord struct {
	DoubanID      string
	Title         string
	OriginalTitle string
	Year          string
	Poster        string
	Director      string
	Writers       []string
	Actors        []string
	Genres        []string
	Language      string
	ReleaseDate   string
	Duration      int
	Summary       string
	Rating        float64
	VotesCount    int
	IMDbID        string

	// IsSeries 为 true 时说明页面是剧集而非电影，调用方应跳过入库
	IsSeries bool
}
