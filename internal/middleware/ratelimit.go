package middleware

import (
	"math"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/yinchi/digital-hospitals/pkg/response"
)

// SubmitLimiter bounds how many computations one client may start within a
// sliding window. Each accepted submission spawns a background search, so
// the limit applies to POST /bim only.
type SubmitLimiter struct {
	mu          sync.Mutex
	submissions map[string][]time.Time // accepted submission times per client, oldest first
	max         int
	window      time.Duration
	now         func() time.Time

	done     chan struct{}
	stopOnce sync.Once
}

// NewSubmitLimiter allows max submissions per client within window. Clients
// idle for a full window are forgotten by a background sweep until Stop.
func NewSubmitLimiter(max int, window time.Duration) *SubmitLimiter {
	l := &SubmitLimiter{
		submissions: make(map[string][]time.Time),
		max:         max,
		window:      window,
		now:         time.Now,
		done:        make(chan struct{}),
	}
	go l.sweepLoop()
	return l
}

func (l *SubmitLimiter) sweepLoop() {
	ticker := time.NewTicker(l.window)
	defer ticker.Stop()

	for {
		select {
		case <-l.done:
			return
		case <-ticker.C:
			l.sweep()
		}
	}
}

func (l *SubmitLimiter) sweep() {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	for client, times := range l.submissions {
		if recent := l.recent(times, now); len(recent) > 0 {
			l.submissions[client] = recent
		} else {
			delete(l.submissions, client)
		}
	}
}

// recent drops the times that fell out of the window. times is sorted, so
// the kept entries are a suffix.
func (l *SubmitLimiter) recent(times []time.Time, now time.Time) []time.Time {
	i := 0
	for i < len(times) && now.Sub(times[i]) >= l.window {
		i++
	}
	return times[i:]
}

// Stop ends the background sweep
func (l *SubmitLimiter) Stop() {
	l.stopOnce.Do(func() { close(l.done) })
}

// Allow records a submission by client and reports whether it is within the
// limit
func (l *SubmitLimiter) Allow(client string) bool {
	ok, _ := l.reserve(client)
	return ok
}

// reserve is Allow that also returns, for a refused submission, how long
// until the oldest one in the window expires
func (l *SubmitLimiter) reserve(client string) (bool, time.Duration) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	times := l.recent(l.submissions[client], now)
	if len(times) >= l.max {
		if len(times) == 0 {
			return false, l.window
		}
		l.submissions[client] = times
		return false, times[0].Add(l.window).Sub(now)
	}
	l.submissions[client] = append(times, now)
	return true, 0
}

// ThrottleSubmissions rejects submissions over the limit with 429 and a
// Retry-After header. Authenticated users are counted by subject, anonymous
// clients by IP.
func ThrottleSubmissions(limiter *SubmitLimiter) gin.HandlerFunc {
	return func(c *gin.Context) {
		client := c.GetString(UserKey)
		if client == "" {
			client = c.ClientIP()
		}

		if ok, wait := limiter.reserve(client); !ok {
			c.Header("Retry-After", strconv.Itoa(int(math.Ceil(wait.Seconds()))))
			response.Abort(c, http.StatusTooManyRequests, "Too many submissions, please retry later.")
			return
		}

		c.Next()
	}
}
