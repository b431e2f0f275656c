package service

import (
	"fmt"
	"strings"

	"github.com/pgvector/pgvector-go"

	"github.com/user/cinesync/internal/model"
	"github.com/user/cinesync/internal/repository"
	"github.com/user/cinesync/internal/utils"
)

// Embedder 在核心文本更新后刷新电影的语义向量，供站内语义检索使用。
// 可选组件，未启用时编排器直接跳过。
type Embedder struct {
	repo  *repository.MovieRepository
	host  string
	model string
}

func NewEmbedder(repo *repository.MovieRepository, host, model string) *Embedder {
	return &Embedder{repo: repo, host: host, model: model}
}

// Refresh 重建单部电影的向量并落库
func (e *Embedder) Refresh(id int, stored *model.Movie, fresh *model.SourceRecord) error {
	// 按约定模板拼接原始内容
	content := fmt.Sprintf("标题: %s | 类型: %s | 导演: %s | 主演: %s | 剧情简介: %s",
		fresh.Title,
		strings.Join(fresh.Genres, ","),
		fresh.Director,
		strings.Join(topN(fresh.Actors, 5), ","),
		fresh.Summary,
	)
	// 截断过长文本，向量模型对超长输入无益
	if runes := []rune(content); len(runes) > 1000 {
		content = string(runes[:1000])
	}

	vec, err := utils.GenerateEmbedding(e.host, e.model, content)
	if err != nil {
		return err
	}
	if len(vec) != 768 {
		return fmt.Errorf("向量维度不匹配: 期望 768, 实际 %d", len(vec))
	}

	return e.repo.UpdateEmbedding(id, content, pgvector.NewVector(vec))
}

func topN(items []string, n int) []string {
	if len(items) > n {
		return items[:n]
	}
	return items
}
