package service

import (
	"context"
	"log"
	"math/rand"
	"sync"
	"time"
)

// SchedulerState 调度器状态机：idle → armed(next-run-at) → running → idle
type SchedulerState string

const (
	StateIdle    SchedulerState = "idle"
	StateArmed   SchedulerState = "armed"
	StateRunning SchedulerState = "running"
)

// Scheduler 每日随机时点调度器。在配置的每日窗口内取一个随机时刻
// 触发一轮完整同步，完成后为次日重新布防。
// 进程重启后随机时点会重新计算，不持久化；同一天可能因此跳过或重复一轮，
// 以状态接口暴露 next-run-at 供运维核对。
type Scheduler struct {
	svc         *SyncService
	windowStart int
	windowEnd   int

	mu        sync.Mutex
	state     SchedulerState
	nextRunAt time.Time

	stopCh  chan struct{}
	stopped sync.Once
	wg      sync.WaitGroup

	// now 与 timer 便于测试注入
	now func() time.Time
}

// NewScheduler 创建调度器，窗口为每日 [startHour, endHour) 的本地时间
func NewScheduler(svc *SyncService, startHour, endHour int) *Scheduler {
	return &Scheduler{
		svc:         svc,
		windowStart: startHour,
		windowEnd:   endHour,
		state:       StateIdle,
		stopCh:      make(chan struct{}),
		now:         time.Now,
	}
}

// Start 启动调度循环（不阻塞）
func (s *Scheduler) Start() {
	s.wg.Add(1)
	go s.loop()
}

// Stop 停止布防后续轮次。进行中的一轮允许跑完，不强杀。
func (s *Scheduler) Stop() {
	s.stopped.Do(func() { close(s.stopCh) })
}

// Wait 等调度循环退出（含可能在跑的最后一轮）
func (s *Scheduler) Wait() {
	s.wg.Wait()
}

// Status 当前状态与下一次运行时间
func (s *Scheduler) Status() (SchedulerState, time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state, s.nextRunAt
}

// RunNow 立即触发一轮同步，绕过每日窗口。
// 与定时轮共用 singleflight，不会出现并行的两轮。
func (s *Scheduler) RunNow(ctx context.Context, dryRun bool) (*RunStats, error) {
	return s.svc.Run(ctx, dryRun)
}

func (s *Scheduler) loop() {
	defer s.wg.Done()
	next := s.computeNextRun(s.now())
	for {
		s.setState(StateArmed, next)
		log.Printf("[调度] 下一轮同步时间: %s", next.Format("2006-01-02 15:04:05"))

		timer := time.NewTimer(time.Until(next))
		select {
		case <-s.stopCh:
			timer.Stop()
			s.setState(StateIdle, time.Time{})
			log.Println("[调度] 收到停止信号，不再布防新的轮次")
			return
		case <-timer.C:
		}

		s.setState(StateRunning, time.Time{})
		// 定时轮不随 Stop 取消：进行中的一轮允许自然跑完
		if _, err := s.svc.Run(context.Background(), false); err != nil {
			log.Printf("[调度] 本轮同步失败: %v", err)
		}
		s.setState(StateIdle, time.Time{})

		// 每日至多一轮：跑完后直接为次日窗口布防。
		// 轮次本身在窗口内结束，按当前时间重算会大概率再落回当天。
		next = s.nextRunAfter(next)
	}
}

// computeNextRun 启动时的首次布防：在每日窗口内取一个随机时刻，
// 今天窗口内的随机时刻已过就落到明天。
func (s *Scheduler) computeNextRun(now time.Time) time.Time {
	day := time.Date(now.Year(), now.Month(), now.Day(), s.windowStart, 0, 0, 0, now.Location())
	next := day.Add(s.randomOffset())
	if !next.After(now) {
		next = day.AddDate(0, 0, 1).Add(s.randomOffset())
	}
	return next
}

// nextRunAfter 完成一轮后的重布防：在上一轮触发日的次日窗口内取随机时刻
func (s *Scheduler) nextRunAfter(prev time.Time) time.Time {
	day := time.Date(prev.Year(), prev.Month(), prev.Day(), s.windowStart, 0, 0, 0, prev.Location())
	return day.AddDate(0, 0, 1).Add(s.randomOffset())
}

func (s *Scheduler) randomOffset() time.Duration {
	windowSeconds := (s.windowEnd - s.windowStart) * 3600
	return time.Duration(rand.Intn(windowSeconds)) * time.Second
}

func (s *Scheduler) setState(state SchedulerState, nextRunAt time.Time) {
	s.mu.Lock()
	s.state = state
	s.nextRunAt = nextRunAt
	s.mu.Unlock()
}
