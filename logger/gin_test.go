package logger

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestGinMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)

	tests := []struct {
		name      string
		status    int
		wantLevel zapcore.Level
	}{
		{name: "ok", status: http.StatusOK, wantLevel: zapcore.InfoLevel},
		{name: "clientError", status: http.StatusBadRequest, wantLevel: zapcore.WarnLevel},
		{name: "serverError", status: http.StatusInternalServerError, wantLevel: zapcore.ErrorLevel},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			core, logs := observer.New(zapcore.DebugLevel)
			router := gin.New()
			router.Use(GinMiddleware(zap.New(core).Sugar()))
			router.GET("/probe", func(c *gin.Context) { c.Status(tt.status) })

			router.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/probe", nil))

			entries := logs.All()
			if len(entries) != 1 {
				t.Fatalf("logged %d entries, want 1", len(entries))
			}
			if entries[0].Level != tt.wantLevel {
				t.Errorf("level = %v, want %v", entries[0].Level, tt.wantLevel)
			}
			ctx := entries[0].ContextMap()
			if ctx["path"] != "/probe" || ctx["status"] != int64(tt.status) {
				t.Errorf("fields = %v", ctx)
			}
		})
	}
}

func TestOrNop(t *testing.T) {
	if OrNop(nil) == nil {
		t.Fatal("OrNop(nil) returned nil")
	}
	l := Nop()
	if OrNop(l) != l {
		t.Error("OrNop(l) did not return l")
	}
}
