package service

import (
	"context"
	"io"
	"net/http"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/user/cinesync/internal/config"
	"github.com/user/cinesync/internal/fetch"
	"github.com/user/cinesync/internal/model"
)

type countingTransport struct {
	mu       sync.Mutex
	attempts int
	status   int
}

func (ct *countingTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	ct.mu.Lock()
	ct.attempts++
	ct.mu.Unlock()
	return &http.Response{
		StatusCode: ct.status,
		Header:     http.Header{},
		Body:       io.NopCloser(strings.NewReader("")),
	}, nil
}

func (ct *countingTransport) count() int {
	ct.mu.Lock()
	defer ct.mu.Unlock()
	return ct.attempts
}

// newFailingService 组装一个抓取必然失败的同步服务，
// 不触达存储即可覆盖编排器的前置分支
func newFailingService(status int) (*SyncService, *countingTransport) {
	ct := &countingTransport{status: status}
	fetcher := fetch.NewClient(time.Second, 0, "")
	fetcher.SetTransport(ct)
	fetcher.SetSleep(func(time.Duration) {})

	svc := NewSyncService(nil, fetcher, nil, nil, nil, &config.Config{})
	svc.SetSleep(func(time.Duration) {})
	return svc, ct
}

func TestSyncOneIntoRecentDedup(t *testing.T) {
	svc, ct := newFailingService(404)
	movie := &model.Movie{ID: 1, DoubanID: "1292226", Title: "闪灵"}
	svc.recent.Add(movie.DoubanID, time.Now())

	// 批量路径：刚检查过的不重复抓
	stats := &RunStats{}
	svc.syncOneInto(context.Background(), movie, false, false, stats)
	if stats.Skipped != 1 {
		t.Errorf("Skipped = %d，一小时内检查过的应跳过", stats.Skipped)
	}
	if ct.count() != 0 {
		t.Errorf("抓取次数 = %d，去重命中不应出网", ct.count())
	}
}

func TestSyncOneIntoForceBypassesDedup(t *testing.T) {
	svc, ct := newFailingService(404)
	movie := &model.Movie{ID: 1, DoubanID: "1292226", Title: "闪灵"}
	svc.recent.Add(movie.DoubanID, time.Now())

	// 运维点名的单部电影必须真的去抓，不受去重限制
	stats := &RunStats{}
	svc.syncOneInto(context.Background(), movie, false, true, stats)
	if ct.count() == 0 {
		t.Fatal("点名同步应发起抓取，不应被去重拦下")
	}
	if stats.Failed != 1 {
		t.Errorf("Failed = %d，404 应计入失败", stats.Failed)
	}
	if stats.Skipped != 0 {
		t.Errorf("Skipped = %d，点名同步不应被计为跳过", stats.Skipped)
	}
}

func TestLastStatsConcurrentAccess(t *testing.T) {
	svc := NewSyncService(nil, nil, nil, nil, nil, &config.Config{})

	var wg sync.WaitGroup
	done := make(chan struct{})

	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < 1000; i++ {
			svc.setLastStats(&RunStats{Total: i})
		}
		close(done)
	}()

	for r := 0; r < 4; r++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-done:
					return
				default:
					_ = svc.LastStats()
				}
			}
		}()
	}
	wg.Wait()

	if stats := svc.LastStats(); stats == nil || stats.Total != 999 {
		t.Errorf("LastStats = %+v，期望最后一次写入的统计", stats)
	}
}

func TestInterFetchDelayFromConfig(t *testing.T) {
	svc := NewSyncService(nil, nil, nil, nil, nil, &config.Config{SyncFetchGap: 2 * time.Second})
	for i := 0; i < 100; i++ {
		d := svc.interFetchDelay()
		if d < time.Second || d >= 3*time.Second {
			t.Fatalf("interFetchDelay = %v，基准 2s 时应落在 [1s, 3s)", d)
		}
	}

	svc = NewSyncService(nil, nil, nil, nil, nil, &config.Config{})
	if d := svc.interFetchDelay(); d != 0 {
		t.Errorf("interFetchDelay = %v，未配置基准间隔时应为 0", d)
	}
}
