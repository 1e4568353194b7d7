package health

import (
	"context"
	"sync"
	"time"
)

// Aggregator 健康检查聚合器
type Aggregator struct {
	checkers []Checker
	mu       sync.RWMutex
}

// NewAggregator 创建聚合器
func NewAggregator(checkers ...Checker) *Aggregator {
	return &Aggregator{
		checkers: checkers,
	}
}

// AddChecker 添加检查器
func (a *Aggregator) AddChecker(checker Checker) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.checkers = append(a.checkers, checker)
}

// CheckAll 并发执行所有检查
func (a *Aggregator) CheckAll(ctx context.Context) map[string]CheckResult {
	a.mu.RLock()
	checkers := append([]Checker(nil), a.checkers...)
	a.mu.RUnlock()

	results := make(map[string]CheckResult, len(checkers))
	var resultsMu sync.Mutex
	var wg sync.WaitGroup

	for _, checker := range checkers {
		wg.Add(1)
		go func(c Checker) {
			defer wg.Done()
			result := c.Check(ctx)

			resultsMu.Lock()
			results[c.Name()] = result
			resultsMu.Unlock()
		}(checker)
	}

	wg.Wait()
	return results
}

// Overall 由单项结果计算总体状态：任一不健康即不健康，任一降级即降级
func Overall(results map[string]CheckResult) Status {
	status := StatusHealthy
	for _, result := range results {
		switch result.Status {
		case StatusUnhealthy:
			return StatusUnhealthy
		case StatusDegraded:
			status = StatusDegraded
		}
	}
	return status
}

// OverallStatus 执行全部检查并返回总体状态
func (a *Aggregator) OverallStatus(ctx context.Context) Status {
	return Overall(a.CheckAll(ctx))
}

// Ready 降级仍视为就绪，只有不健康才不就绪
func (a *Aggregator) Ready(ctx context.Context) bool {
	return a.OverallStatus(ctx) != StatusUnhealthy
}

// Alive 进程能响应即存活
func (a *Aggregator) Alive() bool {
	return true
}

// HealthReport 健康报告
type HealthReport struct {
	Status    Status                 `json:"status"`
	Timestamp time.Time              `json:"timestamp"`
	Checks    map[string]CheckResult `json:"checks"`
}

// Report 执行一轮检查并生成报告
func (a *Aggregator) Report(ctx context.Context) HealthReport {
	checks := a.CheckAll(ctx)
	return HealthReport{
		Status:    Overall(checks),
		Timestamp: time.Now(),
		Checks:    checks,
	}
}
