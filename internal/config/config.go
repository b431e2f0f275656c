package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
)

// Config 应用配置。所有组件只接收显式传入的 Config，不直接读环境变量，
// 便于测试时注入确定性的配置。
type Config struct {
	Env         string
	Port        string
	DatabaseURL string `validate:"required"`

	// 豆瓣抓取
	DoubanCookie string // 会话 Cookie（可选）。缺失时触发验证跳转会直接失败

	// 翻译网关（OpenAI 兼容接口）
	TransAPIBase      string   `validate:"required,url"`
	TransAPIKey       string
	TransModels       []string `validate:"min=1"`
	TransSystemPrompt string
	TransUserPrefix   string

	// 同步调度
	SyncWindowStart int           `validate:"min=0,max=23"` // 每日运行窗口起始小时
	SyncWindowEnd   int           `validate:"min=0,max=23"` // 每日运行窗口结束小时
	SyncBatchSize   int           `validate:"min=1"`        // 每轮按最久未检查挑选的数量
	SyncSampleSize  int           `validate:"min=0"`        // 每轮额外随机抽样的数量
	SyncDelayMin    time.Duration // 相邻电影之间的最小间隔
	SyncDelayMax    time.Duration // 相邻电影之间的最大间隔（含随机抖动）
	SyncFetchGap    time.Duration // 同一部电影内相邻抓取的基准间隔（含随机抖动）

	// 抓取
	FetchTimeout time.Duration
	FetchRetries int `validate:"min=0,max=10"`

	// 海报本地化
	PosterDir string

	// 向量生成（可选）
	EmbeddingEnabled bool
	OllamaHost       string
	OllamaModel      string
}

// 默认翻译提示词，与家长指南翻译任务绑定
const defaultSystemPrompt = `你是一个专业的电影内容翻译专家。请将电影家长指南内容从英文翻译成简体中文。
要求：保持原文的语气和表达方式；专业术语使用电影行业常用译法；翻译准确、自然、流畅；保持原文的分条格式；只返回翻译结果，不要添加额外的解释。`

// Load 从环境变量加载配置并校验
func Load() (*Config, error) {
	dbUser := getEnv("DB_USER", "postgres")
	dbPass := getEnv("DB_PASSWORD", "postgres")
	dbHost := getEnv("DB_HOST", "localhost")
	dbPort := getEnv("DB_PORT", "5432")
	dbName := getEnv("DB_NAME", "cinesync")
	dbSSL := getEnv("DB_SSLMODE", "disable")

	dbURL := fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=%s",
		dbUser, dbPass, dbHost, dbPort, dbName, dbSSL)

	// 模型列表：优先逗号分隔的 TRANS_MODELS，否则退化为单个 TRANS_MODEL
	var models []string
	if list := os.Getenv("TRANS_MODELS"); list != "" {
		for _, m := range strings.Split(list, ",") {
			if m = strings.TrimSpace(m); m != "" {
				models = append(models, m)
			}
		}
	}
	if len(models) == 0 {
		models = []string{getEnv("TRANS_MODEL", "gpt-4o-mini")}
	}

	cfg := &Config{
		Env:         getEnv("APP_ENV", "development"),
		Port:        getEnv("PORT", "5008"),
		DatabaseURL: dbURL,

		DoubanCookie: os.Getenv("DOUBAN_COOKIE"),

		TransAPIBase:      getEnv("TRANS_API_BASE", "https://api.openai.com/v1"),
		TransAPIKey:       os.Getenv("TRANS_API_KEY"),
		TransModels:       models,
		TransSystemPrompt: getEnv("TRANS_SYSTEM_PROMPT", defaultSystemPrompt),
		TransUserPrefix:   getEnv("TRANS_USER_PREFIX", "请翻译以下内容"),

		SyncWindowStart: getEnvInt("SYNC_WINDOW_START", 2),
		SyncWindowEnd:   getEnvInt("SYNC_WINDOW_END", 6),
		SyncBatchSize:   getEnvInt("SYNC_BATCH_SIZE", 30),
		SyncSampleSize:  getEnvInt("SYNC_SAMPLE_SIZE", 5),
		SyncDelayMin:    time.Duration(getEnvInt("SYNC_DELAY_MIN_SEC", 3)) * time.Second,
		SyncDelayMax:    time.Duration(getEnvInt("SYNC_DELAY_MAX_SEC", 8)) * time.Second,
		SyncFetchGap:    time.Duration(getEnvInt("SYNC_FETCH_GAP_SEC", 2)) * time.Second,

		FetchTimeout: time.Duration(getEnvInt("FETCH_TIMEOUT_SEC", 30)) * time.Second,
		FetchRetries: getEnvInt("FETCH_RETRIES", 2),

		PosterDir: getEnv("POSTER_DIR", "./web/static/posters"),

		EmbeddingEnabled: getEnv("EMBEDDING_ENABLED", "false") == "true",
		OllamaHost:       getEnv("OLLAMA_HOST", "http://localhost:11434"),
		OllamaModel:      getEnv("OLLAMA_MODEL", "quentinz/bge-base-zh-v1.5"),
	}

	if err := validator.New().Struct(cfg); err != nil {
		return nil, fmt.Errorf("配置校验失败: %w", err)
	}
	if cfg.SyncWindowEnd <= cfg.SyncWindowStart {
		return nil, fmt.Errorf("同步窗口无效: start=%d end=%d", cfg.SyncWindowStart, cfg.SyncWindowEnd)
	}
	if cfg.SyncDelayMax < cfg.SyncDelayMin {
		cfg.SyncDelayMax = cfg.SyncDelayMin
	}
	return cfg, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return defaultValue
}
