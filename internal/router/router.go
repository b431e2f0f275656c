package router

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/user/cinesync/internal/handler"
)

// RegisterRoutes 注册所有路由
func RegisterRoutes(r *gin.Engine, h *handler.Handler) {
	// 健康检查
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	// ==================== 只读查询（供展示层消费）====================
	api := r.Group("/api")
	{
		api.GET("/movies", h.ListMovies)
		api.GET("/movies/imdb", h.GetMovieByIMDb)
		api.GET("/movies/:id", h.GetMovie)
		api.GET("/search", h.SearchMovies)
	}

	// ==================== 同步管理 ====================
	admin := r.Group("/admin")
	{
		admin.POST("/sync", h.TriggerSync)
		admin.GET("/sync/status", h.SyncStatus)
		admin.POST("/movies", h.IngestMovie)
		admin.DELETE("/movies/:douban_id", h.CleanupMovie)
	}
}
