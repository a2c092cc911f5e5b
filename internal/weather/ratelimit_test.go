package weather_test

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/skyfuse/skyfuse/internal/weather"
)

func TestRateLimiter_AdmitsUpToLimit(t *testing.T) {
	limiter := weather.NewRateLimiter(3, time.Minute)

	assert.True(t, limiter.Allow())
	assert.True(t, limiter.Allow())
	assert.True(t, limiter.Allow())
	assert.False(t, limiter.Allow(), "request over the limit is rejected")
	assert.False(t, limiter.Allow(), "rejection does not consume quota")
}

func TestRateLimiter_WindowElapses(t *testing.T) {
	limiter := weather.NewRateLimiter(2, 30*time.Millisecond)

	assert.True(t, limiter.Allow())
	assert.True(t, limiter.Allow())
	assert.False(t, limiter.Allow())

	time.Sleep(50 * time.Millisecond)

	assert.True(t, limiter.Allow(), "quota resets once the window elapses")
}

func TestRateLimiter_ConcurrentChecks(t *testing.T) {
	limiter := weather.NewRateLimiter(10, time.Minute)

	var wg sync.WaitGroup
	var mu sync.Mutex
	admitted := 0

	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if limiter.Allow() {
				mu.Lock()
				admitted++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 10, admitted, "check-and-increment is one critical section")
}
