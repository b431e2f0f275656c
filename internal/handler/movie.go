package handler

import (
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/user/cinesync/internal/model"
	"github.com/user/cinesync/internal/scrape"
	"github.com/user/cinesync/internal/utils"
)

// ListMovies 分页列表（展示层消费的只读接口）
func (h *Handler) ListMovies(c *gin.Context) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	size, _ := strconv.Atoi(c.DefaultQuery("size", "20"))
	if page < 1 {
		page = 1
	}
	if size < 1 || size > 100 {
		size = 20
	}

	movies, err := h.Repos.Movie.List((page-1)*size, size)
	if err != nil {
		utils.InternalServerError(c, err.Error())
		return
	}
	total, err := h.Repos.Movie.Count()
	if err != nil {
		utils.InternalServerError(c, err.Error())
		return
	}
	utils.Success(c, gin.H{"movies": movies, "total": total, "page": page})
}

// GetMovie 按主键查询单部电影
func (h *Handler) GetMovie(c *gin.Context) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		utils.BadRequest(c, "无效的电影ID")
		return
	}
	movie, err := h.Repos.Movie.GetByID(id)
	if err != nil {
		utils.InternalServerError(c, err.Error())
		return
	}
	if movie == nil {
		utils.NotFound(c, "")
		return
	}
	utils.Success(c, movie)
}

// GetMovieByIMDb 按 IMDb 标识查询。既接受 tt 开头的 ID（可省略 tt 前缀），
// 也接受完整的 IMDb 页面地址。
func (h *Handler) GetMovieByIMDb(c *gin.Context) {
	ref := c.Query("ref")
	if ref == "" {
		utils.BadRequest(c, "缺少 IMDb 标识")
		return
	}

	var movie *model.Movie
	var err error
	if strings.HasPrefix(ref, "http://") || strings.HasPrefix(ref, "https://") {
		movie, err = h.Repos.Movie.FindByIMDbURL(ref)
	} else {
		movie, err = h.Repos.Movie.FindByIMDbID(scrape.NormalizeIMDbID(ref))
	}
	if err != nil {
		utils.InternalServerError(c, err.Error())
		return
	}
	if movie == nil {
		utils.NotFound(c, "")
		return
	}
	utils.Success(c, movie)
}

// SearchMovies 标题模糊搜索
func (h *Handler) SearchMovies(c *gin.Context) {
	keyword := c.Query("q")
	if keyword == "" {
		utils.BadRequest(c, "缺少搜索关键词")
		return
	}
	movies, err := h.Repos.Movie.Search(keyword, 20)
	if err != nil {
		utils.InternalServerError(c, err.Error())
		return
	}
	utils.Success(c, gin.H{"movies": movies})
}
