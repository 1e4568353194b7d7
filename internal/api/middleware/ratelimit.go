package middleware

import (
	"net/http"
	"sync/atomic"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
)

// RateLimiter 基于Token Bucket的速率限流器
type RateLimiter struct {
	limiter       *rate.Limiter
	ratePerSec    float64
	burst         int
	allowedCount  atomic.Int64
	rejectedCount atomic.Int64
}

// NewRateLimiter 创建速率限流器
// ratePerSec: 每秒允许的请求数（可小于1，如 0.5 表示两秒一次）
// burst: 突发容量（桶的大小）
func NewRateLimiter(ratePerSec float64, burst int) *RateLimiter {
	if ratePerSec <= 0 {
		ratePerSec = 1
	}
	if burst <= 0 {
		burst = 1
	}
	return &RateLimiter{
		limiter:    rate.NewLimiter(rate.Limit(ratePerSec), burst),
		ratePerSec: ratePerSec,
		burst:      burst,
	}
}

// Allow 检查是否允许请求（非阻塞）
func (l *RateLimiter) Allow() bool {
	if l.limiter.Allow() {
		l.allowedCount.Add(1)
		return true
	}
	l.rejectedCount.Add(1)
	return false
}

// Stats 获取统计信息
func (l *RateLimiter) Stats() RateLimiterStats {
	return RateLimiterStats{
		RatePerSecond: l.ratePerSec,
		Burst:         l.burst,
		AllowedTotal:  l.allowedCount.Load(),
		RejectedTotal: l.rejectedCount.Load(),
	}
}

// RateLimiterStats 速率限流器统计信息
type RateLimiterStats struct {
	RatePerSecond float64 `json:"rate_per_second"`
	Burst         int     `json:"burst"`
	AllowedTotal  int64   `json:"allowed_total"`
	RejectedTotal int64   `json:"rejected_total"`
}

// RateLimit 超出速率时返回 429，不排队等待
func RateLimit(l *RateLimiter) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !l.Allow() {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"error":   "too_many_requests",
				"message": "请求过于频繁，请稍后再试",
			})
			return
		}
		c.Next()
	}
}
