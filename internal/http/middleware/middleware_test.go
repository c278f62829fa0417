package middleware

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"

	"github.com/yungbote/slidedeck-backend/internal/platform/ctxutil"
)

func TestCORSAllowsConfiguredOrigins(t *testing.T) {
	t.Parallel()
	gin.SetMode(gin.TestMode)

	cases := []struct {
		configured []string
		origin     string
	}{
		{nil, "http://localhost:5173"},
		{nil, "http://127.0.0.1:3000"},
		{[]string{"https://decks.example.com"}, "https://decks.example.com"},
	}

	for _, tc := range cases {
		tc := tc
		t.Run(tc.origin, func(t *testing.T) {
			t.Parallel()
			r := gin.New()
			r.Use(CORS(tc.configured))
			r.OPTIONS("/api/materials", func(c *gin.Context) {
				c.Status(http.StatusNoContent)
			})

			req := httptest.NewRequest(http.MethodOptions, "/api/materials", nil)
			req.Header.Set("Origin", tc.origin)
			req.Header.Set("Access-Control-Request-Method", http.MethodPost)

			rec := httptest.NewRecorder()
			r.ServeHTTP(rec, req)

			if rec.Code != http.StatusNoContent {
				t.Fatalf("unexpected status: got=%d want=%d", rec.Code, http.StatusNoContent)
			}
			if got := rec.Header().Get("Access-Control-Allow-Origin"); got != tc.origin {
				t.Fatalf("unexpected allow-origin header: got=%q want=%q", got, tc.origin)
			}
		})
	}
}

func TestAttachTraceContext(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(AttachTraceContext())

	var seen *ctxutil.TraceData
	r.GET("/x", func(c *gin.Context) {
		seen = ctxutil.GetTraceData(c.Request.Context())
		c.Status(http.StatusOK)
	})

	req := httptest.NewRequest(http.MethodGet, "/x", nil)
	req.Header.Set("X-Request-Id", "req-1")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	if seen == nil || seen.RequestID != "req-1" || seen.TraceID == "" {
		t.Fatalf("trace data: got=%+v", seen)
	}
	if got := rec.Header().Get("X-Request-Id"); got != "req-1" {
		t.Fatalf("X-Request-Id: want=%q got=%q", "req-1", got)
	}
	if got := rec.Header().Get("X-Trace-Id"); got != seen.TraceID {
		t.Fatalf("X-Trace-Id: want=%q got=%q", seen.TraceID, got)
	}
}

func TestLimitBody(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(LimitBody(4))
	r.POST("/x", func(c *gin.Context) {
		buf := make([]byte, 16)
		_, err := c.Request.Body.Read(buf)
		for err == nil {
			_, err = c.Request.Body.Read(buf)
		}
		if err.Error() == "EOF" {
			c.Status(http.StatusOK)
			return
		}
		c.Status(http.StatusRequestEntityTooLarge)
	})

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/x", strings.NewReader("ok")))
	if rec.Code != http.StatusOK {
		t.Fatalf("small body: want=%d got=%d", http.StatusOK, rec.Code)
	}

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/x", strings.NewReader("too large")))
	if rec.Code != http.StatusRequestEntityTooLarge {
		t.Fatalf("large body: want=%d got=%d", http.StatusRequestEntityTooLarge, rec.Code)
	}
}
