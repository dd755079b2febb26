package api

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"

	"github.com/tripvar/search-analytics/internal/handler"
)

func TestBotFilter(t *testing.T) {
	gin.SetMode(gin.TestMode)

	tests := []struct {
		name      string
		userAgent string
		wantBot   bool
	}{
		{name: "regular browser", userAgent: "Mozilla/5.0 (X11; Linux x86_64) Firefox/133.0", wantBot: false},
		{name: "googlebot", userAgent: "Mozilla/5.0 (compatible; Googlebot/2.1; +http://www.google.com/bot.html)", wantBot: true},
		{name: "ahrefs crawler", userAgent: "Mozilla/5.0 (compatible; AhrefsBot/7.0; +http://ahrefs.com/robot/)", wantBot: true},
		{name: "bytespider", userAgent: "Bytespider; spider-feedback@bytedance.com", wantBot: true},
		{name: "empty user agent", userAgent: "", wantBot: true},
		{name: "mobile app client", userAgent: "TripvarApp/2.4.1 (iOS 19.2)", wantBot: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var gotBot bool
			r := gin.New()
			r.Use(BotFilter())
			r.GET("/", func(c *gin.Context) {
				gotBot = c.GetBool(handler.BotContextKey)
				c.Status(http.StatusOK)
			})

			w := httptest.NewRecorder()
			req := httptest.NewRequest(http.MethodGet, "/", http.NoBody)
			if tt.userAgent != "" {
				req.Header.Set("User-Agent", tt.userAgent)
			}
			r.ServeHTTP(w, req)

			if gotBot != tt.wantBot {
				t.Errorf("is_bot = %v, want %v (ua %q)", gotBot, tt.wantBot, tt.userAgent)
			}
		})
	}
}
