package handler

import (
	"context"
	"log"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/user/cinesync/internal/utils"
)

// syncRequest 手动触发同步的请求体
type syncRequest struct {
	DoubanID string `json:"douban_id"` // 可选：只同步这一部
	DryRun   bool   `json:"dry_run"`   // 只算补丁不落库
}

// TriggerSync 手动触发一轮同步。
// 同步在后台执行，接口立即返回；进度通过状态接口查询。
func (h *Handler) TriggerSync(c *gin.Context) {
	var req syncRequest
	// 允许空请求体，全部走默认值
	_ = c.ShouldBindJSON(&req)

	if req.DoubanID != "" {
		stats, err := h.Sync.RunOne(c.Request.Context(), req.DoubanID, req.DryRun)
		if err != nil {
			utils.BadRequest(c, err.Error())
			return
		}
		utils.Success(c, stats)
		return
	}

	go func() {
		// 不挂在请求上下文上：接口返回后同步继续在后台跑
		if _, err := h.Sync.Run(context.Background(), req.DryRun); err != nil {
			log.Printf("[管理] 手动触发的同步失败: %v", err)
		}
	}()
	utils.Success(c, gin.H{"message": "同步已触发"})
}

// SyncStatus 查询调度状态与最近一轮的统计
func (h *Handler) SyncStatus(c *gin.Context) {
	state, nextRunAt := h.Scheduler.Status()

	resp := gin.H{
		"state": state,
	}
	if !nextRunAt.IsZero() {
		resp["next_run_at"] = nextRunAt.Format(time.RFC3339)
	}
	if stats := h.Sync.LastStats(); stats != nil {
		resp["last_run"] = stats
	}
	utils.Success(c, resp)
}

// ingestRequest 手动入库新电影的请求体
type ingestRequest struct {
	DoubanID string `json:"douban_id" binding:"required"`
}

// IngestMovie 运维入库入口：抓取豆瓣详情并建档一部新电影
func (h *Handler) IngestMovie(c *gin.Context) {
	var req ingestRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.BadRequest(c, "缺少豆瓣ID")
		return
	}
	movie, err := h.Sync.Ingest(c.Request.Context(), req.DoubanID)
	if err != nil {
		utils.BadRequest(c, err.Error())
		return
	}
	utils.Success(c, movie)
}

// CleanupMovie 运维清理入口：移除误入库的剧集等错误条目。
// 同步管道自身从不删除记录。
func (h *Handler) CleanupMovie(c *gin.Context) {
	doubanID := c.Param("douban_id")
	if doubanID == "" {
		utils.BadRequest(c, "缺少豆瓣ID")
		return
	}
	if err := h.Repos.Movie.Delete(doubanID); err != nil {
		utils.InternalServerError(c, err.Error())
		return
	}
	log.Printf("[管理] 已清理电影记录 (豆瓣ID: %s)", doubanID)
	utils.Success(c, gin.H{"douban_id": doubanID})
}
