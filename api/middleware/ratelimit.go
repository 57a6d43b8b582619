package middleware

import (
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/anoixa/menu-storage/api/common"
	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
)

type clientLimiter struct {
	limiter  *rate.Limiter
	lastSeen atomic.Int64 // unix nano
}

// IPRateLimiter 按客户端 IP 的令牌桶限流
type IPRateLimiter struct {
	rps        rate.Limit
	burst      int
	expireTime time.Duration
	clients    sync.Map // ip -> *clientLimiter
	stopOnce   sync.Once
	stopChan   chan struct{}
}

// NewIPRateLimiter rps <= 0 时不限流
func NewIPRateLimiter(rps float64, burst int, expireTime time.Duration) *IPRateLimiter {
	if burst <= 0 {
		burst = 1
	}
	if expireTime <= 0 {
		expireTime = 10 * time.Minute
	}
	rl := &IPRateLimiter{
		rps:        rate.Limit(rps),
		burst:      burst,
		expireTime: expireTime,
		stopChan:   make(chan struct{}),
	}
	if rps > 0 {
		go rl.cleanupStaleClients()
	}
	return rl
}

// Middleware 返回 Gin 中间件
func (rl *IPRateLimiter) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if rl.rps <= 0 {
			c.Next()
			return
		}
		if !rl.allow(c.ClientIP(), time.Now()) {
			common.RespondErrorAbort(c, http.StatusTooManyRequests, "Too many requests")
			return
		}
		c.Next()
	}
}

func (rl *IPRateLimiter) allow(ip string, now time.Time) bool {
	val, ok := rl.clients.Load(ip)
	if !ok {
		val, _ = rl.clients.LoadOrStore(ip, &clientLimiter{limiter: rate.NewLimiter(rl.rps, rl.burst)})
	}
	client := val.(*clientLimiter)
	client.lastSeen.Store(now.UnixNano())
	return client.limiter.AllowN(now, 1)
}

// StopCleanup 停止后台清理，可重复调用
func (rl *IPRateLimiter) StopCleanup() {
	rl.stopOnce.Do(func() { close(rl.stopChan) })
}

func (rl *IPRateLimiter) cleanupStaleClients() {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	for {
		select {
		case now := <-ticker.C:
			rl.evict(now)
		case <-rl.stopChan:
			return
		}
	}
}

func (rl *IPRateLimiter) evict(now time.Time) {
	cutoff := now.Add(-rl.expireTime).UnixNano()
	rl.clients.Range(func(key, value interface{}) bool {
		if value.(*clientLimiter).lastSeen.Load() < cutoff {
			rl.clients.Delete(key)
		}
		return true
	})
}
