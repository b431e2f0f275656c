package handler

import (
	"github.com/user/cinesync/internal/config"
	"github.com/user/cinesync/internal/repository"
	"github.com/user/cinesync/internal/service"
)

// Handler 聚合所有 HTTP 处理器的依赖
type Handler struct {
	Config    *config.Config
	Repos     *repository.Repositories
	Scheduler *service.Scheduler
	Sync      *service.SyncService
}

// NewHandler 创建处理器
func NewHandler(repos *repository.Repositories, sched *service.Scheduler, syncSvc *service.SyncService, cfg *config.Config) *Handler {
	return &Handler{
		Config:    cfg,
		Repos:     repos,
		Scheduler: sched,
		Sync:      syncSvc,
	}
}
