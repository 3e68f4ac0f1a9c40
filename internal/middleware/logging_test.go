package middleware

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"report-desk/pkg/token"
)

func TestLoggableBody(t *testing.T) {
	assert.Equal(t, "", loggableBody("application/json", nil, 0))
	assert.Equal(t, `{"a":1}`, loggableBody("application/json; charset=utf-8", []byte(`{"a":1}`), 7))
	assert.Equal(t, "<application/pdf, 12345 bytes>", loggableBody("application/pdf", []byte("%PDF"), 12345))

	long := strings.Repeat("x", maxLoggedBody+10)
	assert.True(t, strings.HasSuffix(loggableBody("application/json", []byte(long), len(long)), "...(truncated)"))
}

func TestAuthMiddlewareSetsSessionID(t *testing.T) {
	gin.SetMode(gin.TestMode)
	jwtManager := token.NewJWTManager("secret", time.Hour)
	tok, err := jwtManager.GenerateToken("s-42")
	require.NoError(t, err)

	r := gin.New()
	r.Use(RequestLogger(), AuthMiddleware(jwtManager))
	r.GET("/me", func(c *gin.Context) {
		c.String(http.StatusOK, SessionID(c))
	})

	cases := []struct {
		header string
		code   int
	}{
		{"", http.StatusUnauthorized},
		{"Token " + tok, http.StatusUnauthorized},
		{"Bearer broken", http.StatusUnauthorized},
		{"Bearer " + tok, http.StatusOK},
	}
	for _, tc := range cases {
		req := httptest.NewRequest(http.MethodGet, "/me", nil)
		if tc.header != "" {
			req.Header.Set("Authorization", tc.header)
		}
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		assert.Equal(t, tc.code, w.Code, tc.header)
		if tc.code == http.StatusOK {
			assert.Equal(t, "s-42", w.Body.String())
		}
	}
}
