package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func withRecorder(t *testing.T) *tracetest.SpanRecorder {
	t.Helper()
	recorder := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	prev := otel.GetTracerProvider()
	otel.SetTracerProvider(tp)
	t.Cleanup(func() { otel.SetTracerProvider(prev) })
	return recorder
}

func TestTracing(t *testing.T) {
	gin.SetMode(gin.TestMode)
	recorder := withRecorder(t)

	router := gin.New()
	router.Use(RequestID(), TracingWithConfig(TracingConfig{ServiceName: "ledger", Enabled: true}), SpanEnricher())
	router.GET("/api/v1/summary", func(c *gin.Context) {
		c.Status(http.StatusOK)
	})
	router.POST("/api/v1/rebuild-ledger", func(c *gin.Context) {
		c.Status(http.StatusInternalServerError)
	})

	req := httptest.NewRequest("GET", "/api/v1/summary?date_from=2024-01-01", nil)
	req.Header.Set(HeaderRequestID, "req-42")
	router.ServeHTTP(httptest.NewRecorder(), req)
	router.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest("POST", "/api/v1/rebuild-ledger", nil))

	spans := recorder.Ended()
	require.Len(t, spans, 2)

	assert.Contains(t, spans[0].Name(), "/api/v1/summary")
	assert.Contains(t, spans[0].Attributes(), attribute.String("request_id", "req-42"))
	assert.NotEqual(t, codes.Error, spans[0].Status().Code)

	assert.Contains(t, spans[1].Name(), "/api/v1/rebuild-ledger")
	assert.Equal(t, codes.Error, spans[1].Status().Code)
}

func TestTracingDisabled(t *testing.T) {
	gin.SetMode(gin.TestMode)
	recorder := withRecorder(t)

	router := gin.New()
	router.Use(TracingWithConfig(TracingConfig{Enabled: false}), SpanEnricher())
	router.GET("/test", func(c *gin.Context) { c.Status(http.StatusOK) })

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest("GET", "/test", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, recorder.Ended())
}
