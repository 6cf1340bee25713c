package middleware

import (
	"crypto/subtle"
	"net/http"

	"github.com/erp/profitledger/internal/interfaces/http/dto"
	"github.com/gin-gonic/gin"
)

// HeaderAPIKey is the header checked by APIKey.
const HeaderAPIKey = "X-API-Key"

// APIKey guards a route group with a static key taken from the X-API-Key
// header or the api_key query parameter. An empty key disables the guard.
func APIKey(key string) gin.HandlerFunc {
	if key == "" {
		return func(c *gin.Context) { c.Next() }
	}
	want := []byte(key)

	return func(c *gin.Context) {
		got := c.GetHeader(HeaderAPIKey)
		if got == "" {
			got = c.Query("api_key")
		}
		if subtle.ConstantTimeCompare([]byte(got), want) != 1 {
			c.AbortWithStatusJSON(http.StatusUnauthorized, dto.NewErrorResponseWithRequestID(
				dto.ErrCodeUnauthorized,
				"Missing or invalid API key",
				GetRequestID(c),
			))
			return
		}
		c.Next()
	}
}
