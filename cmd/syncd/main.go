package main

import (
	"context"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"
	_ "time/tzdata" // 确保在精简镜像中也能识别时区

	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"

	"github.com/user/cinesync/internal/config"
	"github.com/user/cinesync/internal/fetch"
	"github.com/user/cinesync/internal/handler"
	"github.com/user/cinesync/internal/middleware"
	"github.com/user/cinesync/internal/poster"
	"github.com/user/cinesync/internal/repository"
	"github.com/user/cinesync/internal/router"
	"github.com/user/cinesync/internal/service"
	"github.com/user/cinesync/internal/translate"
)

func main() {
	runNow := flag.Bool("now", false, "立即执行一轮同步后退出（不进入守护模式）")
	doubanID := flag.String("douban-id", "", "只同步指定豆瓣ID的单部电影后退出")
	dryRun := flag.Bool("dry-run", false, "只计算并打印补丁，不写库")
	flag.Parse()

	// 加载环境变量
	if err := godotenv.Load(); err != nil {
		log.Println("未找到 .env 文件，使用系统环境变量")
	}

	// 加载配置
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("加载配置失败: %v", err)
	}

	// 初始化数据库
	db, err := repository.InitDB(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("数据库连接失败: %v", err)
	}
	sqlDB, _ := db.DB()
	defer sqlDB.Close()

	repos := repository.NewRepositories(db)

	// 组装同步管道
	fetcher := fetch.NewClient(cfg.FetchTimeout, cfg.FetchRetries, cfg.DoubanCookie)
	translator := translate.New(cfg.TransAPIBase, cfg.TransAPIKey, cfg.TransModels,
		cfg.TransSystemPrompt, cfg.TransUserPrefix)
	posters, err := poster.NewStore(cfg.PosterDir)
	if err != nil {
		log.Fatalf("初始化海报存储失败: %v", err)
	}

	var embedder *service.Embedder
	if cfg.EmbeddingEnabled {
		embedder = service.NewEmbedder(repos.Movie, cfg.OllamaHost, cfg.OllamaModel)
	}

	syncSvc := service.NewSyncService(repos.Movie, fetcher, translator, posters, embedder, cfg)

	// 一次性模式：跑完即退出
	if *doubanID != "" {
		stats, err := syncSvc.RunOne(context.Background(), *doubanID, *dryRun)
		if err != nil {
			log.Fatalf("同步失败: %v", err)
		}
		log.Printf("完成: 检查 %d, 更新 %d, 跳过 %d, 失败 %d",
			stats.Checked, stats.Updated, stats.Skipped, stats.Failed)
		return
	}
	if *runNow {
		stats, err := syncSvc.Run(context.Background(), *dryRun)
		if err != nil {
			log.Fatalf("同步失败: %v", err)
		}
		log.Printf("完成: 共 %d, 检查 %d, 更新 %d, 跳过 %d, 失败 %d",
			stats.Total, stats.Checked, stats.Updated, stats.Skipped, stats.Failed)
		return
	}

	// 守护模式：每日窗口内随机时点触发
	sched := service.NewScheduler(syncSvc, cfg.SyncWindowStart, cfg.SyncWindowEnd)
	sched.Start()

	// 管理与只读查询接口
	if cfg.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.Logger())
	r.Use(gzip.Gzip(gzip.DefaultCompression))

	h := handler.NewHandler(repos, sched, syncSvc, cfg)
	router.RegisterRoutes(r, h)

	srv := &http.Server{
		Addr:           ":" + cfg.Port,
		Handler:        r,
		ReadTimeout:    10 * time.Second,
		WriteTimeout:   30 * time.Second,
		MaxHeaderBytes: 1 << 20,
	}

	go func() {
		log.Printf("管理接口启动于 http://localhost:%s", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("服务启动失败: %v", err)
		}
	}()

	// 等待中断信号。收到后不再布防新的同步轮次，
	// 进行中的一轮允许自然跑完。
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("正在关闭...")

	sched.Stop()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Printf("管理接口强制关闭: %v", err)
	}

	sched.Wait()
	log.Println("已退出")
}
