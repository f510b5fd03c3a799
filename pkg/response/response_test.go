package response

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/goccy/go-json"
)

func TestEnvelope(t *testing.T) {
	gin.SetMode(gin.TestMode)

	tests := []struct {
		name        string
		write       func(c *gin.Context)
		wantStatus  int
		wantCode    int
		wantMessage string
		wantDetail  string
		wantAborted bool
	}{
		{"success", func(c *gin.Context) { Success(c, gin.H{"gold": "2000.00"}) }, http.StatusOK, 0, "success", "", false},
		{"error with status", func(c *gin.Context) {
			ErrorWithStatus(c, http.StatusNotFound, "price not available", "gold")
		}, http.StatusNotFound, http.StatusNotFound, "price not available", "gold", true},
		{"internal error", func(c *gin.Context) { Error(c, errors.New("boom")) }, http.StatusInternalServerError, http.StatusInternalServerError, "boom", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			c, _ := gin.CreateTestContext(w)
			tt.write(c)

			if w.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d", w.Code, tt.wantStatus)
			}
			if c.IsAborted() != tt.wantAborted {
				t.Fatalf("aborted = %v, want %v", c.IsAborted(), tt.wantAborted)
			}
			var body Body
			if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
				t.Fatalf("decode %s: %v", w.Body.String(), err)
			}
			if body.Code != tt.wantCode || body.Message != tt.wantMessage || body.Detail != tt.wantDetail {
				t.Fatalf("body = %+v", body)
			}
			if (body.Data != nil) != !tt.wantAborted {
				t.Fatalf("data = %v", body.Data)
			}
		})
	}
}
