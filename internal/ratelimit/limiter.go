// Package ratelimit provides per-key token bucket rate limiting for the
// gridrun MCP tools.
package ratelimit

import (
	"errors"
	"fmt"
	"math"
	"sync"
	"time"
)

// ErrRateLimited matches any *LimitError.
var ErrRateLimited = errors.New("rate limit exceeded")

// LimitError is returned by CheckLimit when a tool's bucket is empty.
type LimitError struct {
	Tool       string
	RetryAfter time.Duration
}

func (e *LimitError) Error() string {
	if e.RetryAfter <= 0 {
		return fmt.Sprintf("rate limit exceeded for %s", e.Tool)
	}
	return fmt.Sprintf("rate limit exceeded for %s, retry in %s", e.Tool, e.RetryAfter.Round(time.Millisecond))
}

// Is reports whether target is ErrRateLimited.
func (e *LimitError) Is(target error) bool { return target == ErrRateLimited }

// Limiter implements a per-key token bucket. Every key starts with a full
// bucket of burst tokens that refills at rate tokens per second.
// It is safe for concurrent use.
type Limiter struct {
	mu      sync.Mutex
	buckets map[string]*bucket
	rate    float64
	burst   int
	nowFunc func() time.Time
}

type bucket struct {
	tokens    float64
	lastCheck time.Time
}

// NewLimiter creates a rate limiter with the given rate (tokens/sec) and burst size.
func NewLimiter(rate float64, burst int) *Limiter {
	return &Limiter{
		buckets: make(map[string]*bucket),
		rate:    rate,
		burst:   burst,
		nowFunc: time.Now,
	}
}

// Allow takes one token for key and reports whether one was available.
func (l *Limiter) Allow(key string) bool {
	ok, _ := l.take(key)
	return ok
}

// take refills the bucket for key and tries to take one token. When none is
// available it returns how long until one will be, or 0 if never.
func (l *Limiter) take(key string) (bool, time.Duration) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.nowFunc()
	b, ok := l.buckets[key]
	if !ok {
		b = &bucket{tokens: float64(l.burst), lastCheck: now}
		l.buckets[key] = b
	}

	if elapsed := now.Sub(b.lastCheck).Seconds(); elapsed > 0 {
		b.tokens = math.Min(b.tokens+l.rate*elapsed, float64(l.burst))
		b.lastCheck = now
	}

	if b.tokens >= 1.0 {
		b.tokens--
		return true, 0
	}
	if l.rate <= 0 {
		return false, 0
	}
	wait := (1.0 - b.tokens) / l.rate
	return false, time.Duration(wait * float64(time.Second))
}

// Tool names served by the MCP server.
const (
	ToolPlan    = "gridrun_plan"
	ToolResolve = "gridrun_resolve"
	ToolRuns    = "gridrun_runs"
)

// ToolLimiters maps tool names to their rate limiters.
type ToolLimiters map[string]*Limiter

// NewToolLimiters creates the default per-tool limiters. gridrun_plan can
// walk a large grid, so it gets the tightest budget.
func NewToolLimiters() ToolLimiters {
	return ToolLimiters{
		ToolPlan:    NewLimiter(20.0/60.0, 3), // 20/minute, burst 3
		ToolResolve: NewLimiter(1.0, 10),      // 60/minute, burst 10
		ToolRuns:    NewLimiter(30.0/60.0, 5), // 30/minute, burst 5
	}
}

// CheckLimit takes a token for toolName. Tools without a limiter are
// always allowed; an empty bucket yields a *LimitError.
func CheckLimit(limiters ToolLimiters, toolName string) error {
	limiter, ok := limiters[toolName]
	if !ok {
		return nil
	}
	if ok, wait := limiter.take(toolName); !ok {
		return &LimitError{Tool: toolName, RetryAfter: wait}
	}
	return nil
}
