package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func TestTokenRoundTrip(t *testing.T) {
	token, err := IssueToken("secret", "runner-admin", time.Hour)
	if err != nil {
		t.Fatalf("IssueToken: %v", err)
	}
	sub, err := ParseToken("secret", token)
	if err != nil {
		t.Fatalf("ParseToken: %v", err)
	}
	if sub != "runner-admin" {
		t.Errorf("subject = %q", sub)
	}

	if _, err := ParseToken("other", token); err == nil {
		t.Error("token verified with the wrong secret")
	}

	expired, err := IssueToken("secret", "x", -time.Minute)
	if err != nil {
		t.Fatalf("IssueToken: %v", err)
	}
	if _, err := ParseToken("secret", expired); err == nil {
		t.Error("expired token accepted")
	}
}

func authRouter(enabled bool) *gin.Engine {
	r := gin.New()
	r.Use(Auth("secret", enabled))
	r.GET("/whoami", func(c *gin.Context) {
		c.String(http.StatusOK, c.GetString(UserKey))
	})
	return r
}

func TestAuth(t *testing.T) {
	token, err := IssueToken("secret", "alice", time.Hour)
	if err != nil {
		t.Fatalf("IssueToken: %v", err)
	}

	tests := []struct {
		name    string
		enabled bool
		header  string
		status  int
		body    string
	}{
		{"disabled", false, "", http.StatusOK, ""},
		{"missing token", true, "", http.StatusUnauthorized, ""},
		{"bad token", true, "Bearer nope", http.StatusUnauthorized, ""},
		{"valid token", true, "Bearer " + token, http.StatusOK, "alice"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/whoami", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			w := httptest.NewRecorder()
			authRouter(tt.enabled).ServeHTTP(w, req)

			if w.Code != tt.status {
				t.Errorf("status = %d, want %d", w.Code, tt.status)
			}
			if tt.status == http.StatusOK && w.Body.String() != tt.body {
				t.Errorf("body = %q, want %q", w.Body.String(), tt.body)
			}
		})
	}
}

func TestThrottleSubmissions(t *testing.T) {
	limiter := NewSubmitLimiter(2, time.Minute)
	defer limiter.Stop()

	now := time.Unix(1000, 0)
	limiter.now = func() time.Time { return now }

	r := gin.New()
	r.Use(ThrottleSubmissions(limiter))
	r.POST("/submit", func(c *gin.Context) { c.Status(http.StatusAccepted) })

	var last *httptest.ResponseRecorder
	codes := make([]int, 0, 3)
	for i := 0; i < 3; i++ {
		last = httptest.NewRecorder()
		r.ServeHTTP(last, httptest.NewRequest(http.MethodPost, "/submit", nil))
		codes = append(codes, last.Code)
		now = now.Add(10 * time.Second)
	}
	if codes[0] != http.StatusAccepted || codes[1] != http.StatusAccepted || codes[2] != http.StatusTooManyRequests {
		t.Errorf("codes = %v", codes)
	}
	// the first submission at t=0 expires at t=60, the refusal came at t=20
	if got := last.Header().Get("Retry-After"); got != "40" {
		t.Errorf("Retry-After = %q, want 40", got)
	}
}

func TestSubmitLimiterWindow(t *testing.T) {
	limiter := NewSubmitLimiter(1, time.Minute)
	defer limiter.Stop()

	now := time.Unix(1000, 0)
	limiter.now = func() time.Time { return now }

	if !limiter.Allow("a") || limiter.Allow("a") {
		t.Fatal("expected exactly one submission in the window")
	}
	if !limiter.Allow("b") {
		t.Error("clients are limited independently")
	}
	now = now.Add(61 * time.Second)
	if !limiter.Allow("a") {
		t.Error("window did not slide")
	}
}

func TestSubmitLimiterSweep(t *testing.T) {
	limiter := NewSubmitLimiter(3, time.Minute)
	defer limiter.Stop()

	now := time.Unix(1000, 0)
	limiter.now = func() time.Time { return now }

	limiter.Allow("idle")
	now = now.Add(30 * time.Second)
	limiter.Allow("busy")
	now = now.Add(40 * time.Second)
	limiter.sweep()

	limiter.mu.Lock()
	defer limiter.mu.Unlock()
	if _, ok := limiter.submissions["idle"]; ok {
		t.Error("idle client should have been forgotten")
	}
	if got := len(limiter.submissions["busy"]); got != 1 {
		t.Errorf("busy client has %d submissions, want 1", got)
	}
}
