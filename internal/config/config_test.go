package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load 失败: %v", err)
	}

	if cfg.Port != "5008" {
		t.Errorf("Port = %q，期望默认 5008", cfg.Port)
	}
	if cfg.SyncWindowStart != 2 || cfg.SyncWindowEnd != 6 {
		t.Errorf("同步窗口 = [%d, %d)，期望默认 [2, 6)", cfg.SyncWindowStart, cfg.SyncWindowEnd)
	}
	if len(cfg.TransModels) != 1 || cfg.TransModels[0] != "gpt-4o-mini" {
		t.Errorf("TransModels = %v，期望默认单模型", cfg.TransModels)
	}
	if cfg.FetchTimeout != 30*time.Second {
		t.Errorf("FetchTimeout = %v，期望默认 30s", cfg.FetchTimeout)
	}
	if cfg.SyncFetchGap != 2*time.Second {
		t.Errorf("SyncFetchGap = %v，期望默认 2s", cfg.SyncFetchGap)
	}
	if cfg.DatabaseURL == "" {
		t.Error("DatabaseURL 不应为空")
	}
}

func TestLoadModelList(t *testing.T) {
	t.Setenv("TRANS_MODELS", "deepseek-chat, gpt-4o-mini ,,qwen-plus")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load 失败: %v", err)
	}
	want := []string{"deepseek-chat", "gpt-4o-mini", "qwen-plus"}
	if len(cfg.TransModels) != len(want) {
		t.Fatalf("TransModels = %v，期望 %v", cfg.TransModels, want)
	}
	for i := range want {
		if cfg.TransModels[i] != want[i] {
			t.Errorf("TransModels[%d] = %q，期望 %q", i, cfg.TransModels[i], want[i])
		}
	}
}

func TestLoadInvalidWindow(t *testing.T) {
	t.Setenv("SYNC_WINDOW_START", "6")
	t.Setenv("SYNC_WINDOW_END", "2")

	if _, err := Load(); err == nil {
		t.Fatal("窗口起止颠倒应校验失败")
	}
}

func TestLoadDelayClamp(t *testing.T) {
	t.Setenv("SYNC_DELAY_MIN_SEC", "10")
	t.Setenv("SYNC_DELAY_MAX_SEC", "5")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load 失败: %v", err)
	}
	if cfg.SyncDelayMax != cfg.SyncDelayMin {
		t.Errorf("SyncDelayMax = %v，max 小于 min 时应收敛到 min", cfg.SyncDelayMax)
	}
}

func TestLoadInvalidRetries(t *testing.T) {
	t.Setenv("FETCH_RETRIES", "99")

	if _, err := Load(); err == nil {
		t.Fatal("重试次数超界应校验失败")
	}
}
