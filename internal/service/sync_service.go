package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math/rand"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/sync/singleflight"

	"github.com/user/cinesync/internal/config"
	"github.com/user/cinesync/internal/fetch"
	"github.com/user/cinesync/internal/model"
	"github.com/user/cinesync/internal/poster"
	"github.com/user/cinesync/internal/repository"
	"github.com/user/cinesync/internal/scrape"
	"github.com/user/cinesync/internal/translate"
)

// maxRunErrors 单轮运行保留的错误上限，防止异常轮次把内存撑爆
const maxRunErrors = 100

// RunError 单部电影的失败记录
type RunError struct {
	DoubanID string `json:"douban_id"`
	Title    string `json:"title"`
	Reason   string `json:"reason"`
}

// RunStats 单轮同步的运行统计。整轮只有一个写者，不存在并发访问。
type RunStats struct {
	StartedAt  time.Time  `json:"started_at"`
	FinishedAt time.Time  `json:"finished_at"`
	DryRun     bool       `json:"dry_run"`
	Total      int        `json:"total"`   // 本轮考察的电影数
	Checked    int        `json:"checked"` // 成功走完检查流程的数量
	Updated    int        `json:"updated"` // 实际产生补丁并落库的数量
	Skipped    int        `json:"skipped"` // 无变化或无 IMDb ID 等跳过的数量
	Failed     int        `json:"failed"`  // 失败数量
	Errors     []RunError `json:"errors"`
}

func (st *RunStats) addError(doubanID, title string, err error) {
	st.Failed++
	if len(st.Errors) < maxRunErrors {
		st.Errors = append(st.Errors, RunError{
			DoubanID: doubanID,
			Title:    title,
			Reason:   classifyError(err),
		})
	}
}

// classifyError 把错误归类为统计友好的短标签
func classifyError(err error) string {
	switch {
	case errors.Is(err, fetch.ErrNotFound):
		return "not_found: " + err.Error()
	case errors.Is(err, fetch.ErrChallenge):
		return "challenge: " + err.Error()
	case errors.Is(err, fetch.ErrBlocked):
		return "blocked: " + err.Error()
	case errors.Is(err, fetch.ErrTimeout):
		return "timeout: " + err.Error()
	case errors.Is(err, fetch.ErrParse):
		return "parse_failure: " + err.Error()
	case errors.Is(err, fetch.ErrNetwork):
		return "network_error: " + err.Error()
	default:
		return err.Error()
	}
}

// SyncService 更新编排器。严格串行地处理每部电影：
// 抓豆瓣 → 解析 → 差量 → （有 IMDb ID 时）抓评分与家长指南 →
// 指南有变才翻译 → 海报落地 → 非空补丁才写库。
// 并发访问同一来源站点正是触发反爬的根源，所以串行是刻意为之。
type SyncService struct {
	movieRepo  *repository.MovieRepository
	fetcher    *fetch.Client
	translator *translate.Translator
	posters    *poster.Store
	embedder   *Embedder
	cfg        *config.Config

	// sf 确保手动触发与定时触发不会重叠运行
	sf singleflight.Group

	// lastStats 由运行协程写入、管理接口并发读取，须加锁
	statsMu   sync.Mutex
	lastStats *RunStats

	// recent 记住本日内刚检查过的豆瓣 ID，手动触发与定时轮选重叠时不重复抓
	recent *lru.Cache[string, time.Time]

	sleep func(time.Duration)
}

// NewSyncService 创建更新编排器
func NewSyncService(
	movieRepo *repository.MovieRepository,
	fetcher *fetch.Client,
	translator *translate.Translator,
	posters *poster.Store,
	embedder *Embedder,
	cfg *config.Config,
) *SyncService {
	recent, _ := lru.New[string, time.Time](1024)
	return &SyncService{
		movieRepo:  movieRepo,
		fetcher:    fetcher,
		translator: translator,
		posters:    posters,
		embedder:   embedder,
		cfg:        cfg,
		recent:     recent,
		sleep:      time.Sleep,
	}
}

// SetSleep 注入测试用的等待函数
func (s *SyncService) SetSleep(sleep func(time.Duration)) { s.sleep = sleep }

// LastStats 最近一轮的运行统计，尚未运行过返回 nil
func (s *SyncService) LastStats() *RunStats {
	s.statsMu.Lock()
	defer s.statsMu.Unlock()
	return s.lastStats
}

func (s *SyncService) setLastStats(stats *RunStats) {
	s.statsMu.Lock()
	s.lastStats = stats
	s.statsMu.Unlock()
}

// Run 执行一轮完整同步。存储失联是唯一的致命错误；
// 单部电影的失败只记入统计，不会中断整轮。
// singleflight 保证同一时刻最多一轮在跑，并发触发共享同一结果。
func (s *SyncService) Run(ctx context.Context, dryRun bool) (*RunStats, error) {
	v, err, _ := s.sf.Do("sync-run", func() (interface{}, error) {
		return s.run(ctx, dryRun)
	})
	if err != nil {
		return nil, err
	}
	return v.(*RunStats), nil
}

func (s *SyncService) run(ctx context.Context, dryRun bool) (*RunStats, error) {
	if err := s.movieRepo.Ping(); err != nil {
		return nil, fmt.Errorf("存储不可用，放弃本轮同步: %w", err)
	}

	movies, err := s.selectMovies()
	if err != nil {
		return nil, fmt.Errorf("挑选待刷新电影失败: %w", err)
	}

	stats := &RunStats{StartedAt: time.Now(), DryRun: dryRun, Total: len(movies)}
	log.Printf("[同步] 开始同步，本轮 %d 部电影 (dryRun=%v)", len(movies), dryRun)

	for i := range movies {
		if ctx.Err() != nil {
			log.Printf("[同步] 收到取消信号，提前结束本轮 (%d/%d)", i, len(movies))
			break
		}

		movie := &movies[i]
		s.syncOneInto(ctx, movie, dryRun, false, stats)

		// 每 10 部在日志里落一次计数，长轮次出问题时便于定位断点
		if (i+1)%10 == 0 {
			log.Printf("[同步] 进度 %d/%d: 更新 %d, 跳过 %d, 失败 %d",
				i+1, len(movies), stats.Updated, stats.Skipped, stats.Failed)
		}

		// 电影之间强制随机间隔，压在来源站点的限流阈值之下
		if i < len(movies)-1 {
			s.sleep(s.interMovieDelay())
		}
	}

	stats.FinishedAt = time.Now()
	s.setLastStats(stats)
	log.Printf("[同步] 本轮结束: 共 %d, 检查 %d, 更新 %d, 跳过 %d, 失败 %d",
		stats.Total, stats.Checked, stats.Updated, stats.Skipped, stats.Failed)
	return stats, nil
}

// Ingest 手动入库一部新电影（运维入口）。抓取豆瓣详情并建档，
// 剧集与重复条目拒绝入库。入库后的 IMDb 补充信息交给后续同步轮次。
func (s *SyncService) Ingest(ctx context.Context, doubanID string) (*model.Movie, error) {
	if !scrape.IsValidDoubanID(doubanID) {
		return nil, fmt.Errorf("无效的豆瓣ID: %s", doubanID)
	}
	if existing, err := s.movieRepo.FindByDoubanID(doubanID); err != nil {
		return nil, fmt.Errorf("查询电影失败: %w", err)
	} else if existing != nil {
		return nil, fmt.Errorf("电影已在库中: %s", doubanID)
	}

	resp, err := s.fetcher.Fetch(ctx, scrape.DoubanURL(doubanID), scrape.DoubanHeaders())
	if err != nil {
		return nil, err
	}
	fresh, err := scrape.DoubanDetail(resp.Body, doubanID)
	if err != nil {
		return nil, err
	}
	if fresh.IsSeries {
		return nil, fmt.Errorf("豆瓣ID %s 是剧集而非电影，拒绝入库", doubanID)
	}

	movie := &model.Movie{
		DoubanID:      fresh.DoubanID,
		Title:         fresh.Title,
		OriginalTitle: fresh.OriginalTitle,
		Year:          fresh.Year,
		Poster:        fresh.Poster,
		Director:      fresh.Director,
		Writers:       fresh.Writers,
		Actors:        fresh.Actors,
		Genres:        fresh.Genres,
		Language:      fresh.Language,
		ReleaseDate:   fresh.ReleaseDate,
		Duration:      fresh.Duration,
		Summary:       fresh.Summary,
		Rating:        fresh.Rating,
		VotesCount:    fresh.VotesCount,
	}
	movie.SetIMDbID(fresh.IMDbID)

	// 同一 IMDb ID 已挂在别的条目上说明是重复影片（不同豆瓣条目指向同一部）
	if movie.HasIMDbID() {
		if dup, err := s.movieRepo.FindByIMDbID(*movie.IMDbID); err != nil {
			return nil, fmt.Errorf("查询电影失败: %w", err)
		} else if dup != nil {
			return nil, fmt.Errorf("IMDb ID %s 已存在于豆瓣条目 %s", *movie.IMDbID, dup.DoubanID)
		}
	}

	if err := s.movieRepo.Upsert(movie); err != nil {
		return nil, fmt.Errorf("电影入库失败: %w", err)
	}
	log.Printf("[同步] 已入库新电影 %s (豆瓣ID: %s)", movie.Title, movie.DoubanID)
	return movie, nil
}

// RunOne 针对单部电影的手动同步（运维入口）
func (s *SyncService) RunOne(ctx context.Context, doubanID string, dryRun bool) (*RunStats, error) {
	if !scrape.IsValidDoubanID(doubanID) {
		return nil, fmt.Errorf("无效的豆瓣ID: %s", doubanID)
	}
	movie, err := s.movieRepo.FindByDoubanID(doubanID)
	if err != nil {
		return nil, fmt.Errorf("查询电影失败: %w", err)
	}
	if movie == nil {
		return nil, fmt.Errorf("电影不在库中: %s", doubanID)
	}

	// 运维点名的单部电影不受"刚检查过"去重限制
	stats := &RunStats{StartedAt: time.Now(), DryRun: dryRun, Total: 1}
	s.syncOneInto(ctx, movie, dryRun, true, stats)
	stats.FinishedAt = time.Now()
	return stats, nil
}

// selectMovies 挑选本轮要刷新的电影：最久未检查的一批保证最终全量覆盖，
// 再混入少量随机抽样以便及时暴露当前有波动的记录。按豆瓣 ID 去重，保序。
func (s *SyncService) selectMovies() ([]model.Movie, error) {
	stale, err := s.movieRepo.LeastRecentlyChecked(s.cfg.SyncBatchSize)
	if err != nil {
		return nil, err
	}
	sample, err := s.movieRepo.RandomSample(s.cfg.SyncSampleSize)
	if err != nil {
		return nil, err
	}

	seen := make(map[string]bool, len(stale)+len(sample))
	out := make([]model.Movie, 0, len(stale)+len(sample))
	for _, m := range append(stale, sample...) {
		if seen[m.DoubanID] {
			continue
		}
		seen[m.DoubanID] = true
		out = append(out, m)
	}
	return out, nil
}

// syncOneInto 同步单部电影并把结果计入统计。
// 任何阶段失败都在这里截获归类，不向外扩散。
// force 跳过"刚检查过"去重，供运维明确指定单部电影时使用。
func (s *SyncService) syncOneInto(ctx context.Context, movie *model.Movie, dryRun, force bool, stats *RunStats) {
	// 刚检查过的不重复抓（手动触发与定时轮选可能重叠）
	if !force {
		if checkedAt, ok := s.recent.Get(movie.DoubanID); ok && time.Since(checkedAt) < time.Hour {
			stats.Skipped++
			return
		}
	}

	updated, err := s.syncOne(ctx, movie, dryRun, stats)
	if err != nil {
		log.Printf("[同步] 电影 %s (豆瓣ID: %s) 同步失败: %v", movie.Title, movie.DoubanID, err)
		stats.addError(movie.DoubanID, movie.Title, err)
		return
	}

	stats.Checked++
	if updated {
		stats.Updated++
	} else {
		stats.Skipped++
	}
	if !dryRun {
		s.recent.Add(movie.DoubanID, time.Now())
	}
}

// syncOne 单部电影的完整状态机。返回是否产生了写库。
// 补丁在任何写操作之前完整算好，不留半截写入。
func (s *SyncService) syncOne(ctx context.Context, movie *model.Movie, dryRun bool, stats *RunStats) (bool, error) {
	// 抓取并解析豆瓣详情页
	resp, err := s.fetcher.Fetch(ctx, scrape.DoubanURL(movie.DoubanID), scrape.DoubanHeaders())
	if err != nil {
		return false, err
	}
	fresh, err := scrape.DoubanDetail(resp.Body, movie.DoubanID)
	if err != nil {
		return false, err
	}

	// 剧集不属于电影库，跳过并提示运维清理
	if fresh.IsSeries {
		log.Printf("[同步] %s (豆瓣ID: %s) 是剧集而非电影，跳过（可用清理入口移除）",
			fresh.Title, movie.DoubanID)
		if !dryRun {
			_ = s.movieRepo.TouchChecked(movie.ID)
		}
		return false, nil
	}

	patch := DiffMovie(movie, fresh)

	// 带 IMDb ID 才有二级来源可抓
	imdbID := fresh.IMDbID
	if imdbID == "" && movie.HasIMDbID() {
		imdbID = *movie.IMDbID
	}
	if imdbID != "" {
		s.sleep(s.interFetchDelay())
		rating, err := s.fetchIMDbRating(ctx, imdbID)
		if err != nil {
			return false, fmt.Errorf("抓取 IMDb 评分失败: %w", err)
		}
		DiffRating(patch, movie, rating)

		s.sleep(s.interFetchDelay())
		guide, err := s.fetchIMDbGuide(ctx, imdbID)
		if err != nil {
			return false, fmt.Errorf("抓取家长指南失败: %w", err)
		}

		// 源内容没变就一个翻译请求都不发；变了才重新翻译
		if GuideChanged(movie.Guide, guide) {
			s.translateGuide(ctx, guide)
			patch["guide"] = guide
		}
	}

	// 海报落地：补丁里还挂着远程地址时尝试下载到本地。
	// 下载失败保留远程地址，不影响其余字段落库。
	if rawURL, ok := patch["poster"].(string); ok && !dryRun {
		if localPath, perr := s.posters.Materialize(ctx, rawURL, movie.DoubanID); perr == nil {
			patch["poster"] = localPath
		} else {
			log.Printf("[同步] 海报落地失败 (豆瓣ID: %s): %v", movie.DoubanID, perr)
		}
	}

	if len(patch) == 0 {
		if !dryRun {
			_ = s.movieRepo.TouchChecked(movie.ID)
		}
		return false, nil
	}

	if dryRun {
		log.Printf("[同步] dry-run: %s (豆瓣ID: %s) 将更新字段 %v",
			movie.Title, movie.DoubanID, patchFields(patch))
		return true, nil
	}

	if err := s.movieRepo.UpdateFields(movie.ID, patch); err != nil {
		return false, fmt.Errorf("写入补丁失败: %w", err)
	}
	_ = s.movieRepo.TouchChecked(movie.ID)
	log.Printf("[同步] 已更新 %s (豆瓣ID: %s)，字段: %v",
		movie.Title, movie.DoubanID, patchFields(patch))

	// 核心文本变了才值得刷新向量，失败不影响主流程
	if s.embedder != nil && touchesEmbedding(patch) {
		if err := s.embedder.Refresh(movie.ID, movie, fresh); err != nil {
			log.Printf("[同步] 刷新向量失败 (豆瓣ID: %s): %v", movie.DoubanID, err)
		}
	}
	return true, nil
}

// fetchIMDbRating 抓取 IMDb 影片页并提取评分
func (s *SyncService) fetchIMDbRating(ctx context.Context, imdbID string) (*scrape.IMDbRating, error) {
	resp, err := s.fetcher.Fetch(ctx, scrape.IMDbTitleURL(imdbID), scrape.IMDbHeaders())
	if err != nil {
		return nil, err
	}
	return scrape.IMDbRatingDetail(resp.Body, imdbID)
}

// fetchIMDbGuide 抓取家长指南页并解析
func (s *SyncService) fetchIMDbGuide(ctx context.Context, imdbID string) (*model.ParentalGuide, error) {
	resp, err := s.fetcher.Fetch(ctx, scrape.IMDbGuideURL(imdbID), scrape.IMDbHeaders())
	if err != nil {
		return nil, err
	}
	return scrape.IMDbGuideDetail(resp.Body, imdbID)
}

// translateGuide 翻译家长指南的分级与各类别条目。
// 翻译失败退化为保留原文（译文列表与原文等长），只在日志里体现，不算错误。
func (s *SyncService) translateGuide(ctx context.Context, guide *model.ParentalGuide) {
	guide.ContentRatingZh = s.translator.TranslateContentRating(ctx, guide.ContentRating)
	for _, cat := range guide.Categories() {
		if len(cat.Items) == 0 {
			cat.ItemsZh = nil
			continue
		}
		cat.ItemsZh = s.translator.TranslateBatch(ctx, cat.Items)
	}
}

// interMovieDelay 相邻电影之间的随机间隔
func (s *SyncService) interMovieDelay() time.Duration {
	min, max := s.cfg.SyncDelayMin, s.cfg.SyncDelayMax
	if max <= min {
		return min
	}
	return min + time.Duration(rand.Int63n(int64(max-min)))
}

// interFetchDelay 同一部电影内相邻抓取之间的小间隔：
// 基准间隔的一半起步，抖动到一倍半，缺省配置下落在 [1s, 3s)
func (s *SyncService) interFetchDelay() time.Duration {
	gap := s.cfg.SyncFetchGap
	if gap <= 0 {
		return 0
	}
	return gap/2 + time.Duration(rand.Int63n(int64(gap)))
}

// touchesEmbedding 补丁是否动了参与向量生成的字段
func touchesEmbedding(patch Patch) bool {
	for _, field := range []string{"title", "genres", "director", "actors", "summary"} {
		if _, ok := patch[field]; ok {
			return true
		}
	}
	return false
}

func patchFields(patch Patch) []string {
	fields := make([]string, 0, len(patch))
	for k := range patch {
		fields = append(fields, k)
	}
	return fields
}
