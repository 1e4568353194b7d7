package health

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

// mockChecker 模拟检查器
type mockChecker struct {
	name   string
	status Status
}

func (m *mockChecker) Name() string {
	return m.name
}

func (m *mockChecker) Check(ctx context.Context) CheckResult {
	return CheckResult{
		Status:  m.status,
		Message: "mock",
		Latency: time.Millisecond,
	}
}

func TestAggregator(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name     string
		checkers []Checker
		want     Status
		ready    bool
	}{
		{"全部健康", []Checker{&mockChecker{"mqtt", StatusHealthy}, &mockChecker{"serial", StatusHealthy}}, StatusHealthy, true},
		{"部分降级", []Checker{&mockChecker{"mqtt", StatusHealthy}, &mockChecker{"redis", StatusDegraded}}, StatusDegraded, true},
		{"部分不健康", []Checker{&mockChecker{"mqtt", StatusUnhealthy}, &mockChecker{"redis", StatusDegraded}}, StatusUnhealthy, false},
		{"没有检查器", nil, StatusHealthy, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			agg := NewAggregator(tt.checkers...)
			assert.Equal(t, tt.want, agg.OverallStatus(ctx))
			assert.Equal(t, tt.ready, agg.Ready(ctx))
		})
	}

	t.Run("CheckAll并发执行", func(t *testing.T) {
		agg := NewAggregator(
			&mockChecker{"check1", StatusHealthy},
			&mockChecker{"check2", StatusHealthy},
			&mockChecker{"check3", StatusHealthy},
		)

		results := agg.CheckAll(ctx)
		assert.Len(t, results, 3)
		for name, result := range results {
			assert.Equal(t, StatusHealthy, result.Status, name)
		}
	})

	t.Run("动态添加检查器", func(t *testing.T) {
		agg := NewAggregator(&mockChecker{"initial", StatusHealthy})
		agg.AddChecker(CheckerFunc("added", func(context.Context) CheckResult {
			return CheckResult{Status: StatusDegraded}
		}))

		report := agg.Report(ctx)
		assert.Len(t, report.Checks, 2)
		assert.Equal(t, StatusDegraded, report.Status)
		assert.False(t, report.Timestamp.IsZero())
	})

	t.Run("Alive始终返回true", func(t *testing.T) {
		assert.True(t, NewAggregator().Alive())
	})
}
