package repository

import (
	"errors"
	"time"

	"github.com/pgvector/pgvector-go"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/user/cinesync/internal/model"
)

// MovieRepository 电影仓库。同步管道只通过这里读写，
// 除单条 upsert 外不做任何跨文档事务。
type MovieRepository struct {
	db *gorm.DB
}

func NewMovieRepository(db *gorm.DB) *MovieRepository {
	return &MovieRepository{db: db}
}

// FindByDoubanID 根据豆瓣 ID 查找电影，未找到返回 nil 而不是错误
func (r *MovieRepository) FindByDoubanID(doubanID string) (*model.Movie, error) {
	var movie model.Movie
	err := r.db.Where("douban_id = ?", doubanID).First(&movie).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &movie, nil
}

// FindByIMDbID 根据 IMDb ID 查找电影
func (r *MovieRepository) FindByIMDbID(imdbID string) (*model.Movie, error) {
	var movie model.Movie
	err := r.db.Where("imdb_id = ?", imdbID).First(&movie).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &movie, nil
}

// FindByIMDbURL 根据 IMDb 页面地址查找电影
func (r *MovieRepository) FindByIMDbURL(url string) (*model.Movie, error) {
	var movie model.Movie
	err := r.db.Where("imdb_url = ?", url).First(&movie).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &movie, nil
}

// Upsert 以豆瓣 ID 为冲突键创建或更新电影
func (r *MovieRepository) Upsert(movie *model.Movie) error {
	movie.UpdatedAt = time.Now()
	return r.db.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "douban_id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"imdb_id", "imdb_url", "title", "original_title", "year", "poster",
			"director", "writers", "actors", "genres", "language", "release_date",
			"duration", "summary", "rating", "votes_count", "updated_at",
		}),
	}).Create(movie).Error
}

// UpdateFields 按字段级补丁更新单条记录。补丁为空时不访问数据库。
func (r *MovieRepository) UpdateFields(id int, fields map[string]interface{}) error {
	if len(fields) == 0 {
		return nil
	}
	fields["updated_at"] = time.Now()
	return r.db.Model(&model.Movie{}).Where("id = ?", id).Updates(fields).Error
}

// TouchChecked 记录同步管道检查过该记录（无论是否有更新）
func (r *MovieRepository) TouchChecked(id int) error {
	return r.db.Model(&model.Movie{}).Where("id = ?", id).
		UpdateColumn("checked_at", time.Now()).Error
}

// Count 电影总数
func (r *MovieRepository) Count() (int64, error) {
	var count int64
	err := r.db.Model(&model.Movie{}).Count(&count).Error
	return count, err
}

// LeastRecentlyChecked 按最久未检查排序取一批，保证全量记录最终都会被轮到
func (r *MovieRepository) LeastRecentlyChecked(limit int) ([]model.Movie, error) {
	var movies []model.Movie
	err := r.db.Order("checked_at ASC NULLS FIRST").Limit(limit).Find(&movies).Error
	return movies, err
}

// RandomSample 随机抽取一批，用于及时发现当前有波动的记录
func (r *MovieRepository) RandomSample(limit int) ([]model.Movie, error) {
	if limit <= 0 {
		return nil, nil
	}
	var movies []model.Movie
	err := r.db.Order("RANDOM()").Limit(limit).Find(&movies).Error
	return movies, err
}

// List 分页列表（按评分与更新时间排序），供展示层消费
func (r *MovieRepository) List(offset, limit int) ([]model.Movie, error) {
	var movies []model.Movie
	err := r.db.Order("rating DESC, updated_at DESC").
		Offset(offset).Limit(limit).Find(&movies).Error
	return movies, err
}

// GetByID 按主键查找，供展示层消费
func (r *MovieRepository) GetByID(id int) (*model.Movie, error) {
	var movie model.Movie
	err := r.db.First(&movie, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &movie, nil
}

// Search 标题模糊搜索，供展示层消费
func (r *MovieRepository) Search(keyword string, limit int) ([]model.Movie, error) {
	var movies []model.Movie
	err := r.db.Where("title ILIKE ? OR original_title ILIKE ?",
		"%"+keyword+"%", "%"+keyword+"%").
		Order("rating DESC, updated_at DESC").
		Limit(limit).Find(&movies).Error
	return movies, err
}

// Delete 删除一条记录。同步管道从不删除，
// 这是给运维清理误入库剧集用的独立入口。
func (r *MovieRepository) Delete(doubanID string) error {
	return r.db.Where("douban_id = ?", doubanID).Delete(&model.Movie{}).Error
}

// UpdateEmbedding 更新向量与向量原文
func (r *MovieRepository) UpdateEmbedding(id int, content string, vec pgvector.Vector) error {
	return r.db.Model(&model.Movie{}).Where("id = ?", id).Updates(map[string]interface{}{
		"embedding_content": content,
		"embedding":         &vec,
	}).Error
}

// Ping 探测存储连通性。存储失联对整轮同步是致命的，开跑前先查。
func (r *MovieRepository) Ping() error {
	sqlDB, err := r.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Ping()
}
