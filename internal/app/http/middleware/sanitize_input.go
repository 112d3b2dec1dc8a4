package middleware

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/microcosm-cc/bluemonday"
)

var sanitizePolicy = bluemonday.StrictPolicy()

// SanitizeInput strips HTML from every string field of JSON request
// bodies before handlers bind them.
func SanitizeInput() gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.Body == nil || c.Request.Method == http.MethodGet {
			c.Next()
			return
		}

		body, err := io.ReadAll(c.Request.Body)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Failed to read request body"})
			c.Abort()
			return
		}
		c.Request.Body.Close()

		if len(bytes.TrimSpace(body)) == 0 {
			c.Request.Body = io.NopCloser(bytes.NewReader(body))
			c.Next()
			return
		}

		var payload interface{}
		if err := json.Unmarshal(body, &payload); err != nil {
			// Not JSON, pass through untouched.
			c.Request.Body = io.NopCloser(bytes.NewReader(body))
			c.Next()
			return
		}

		sanitized, err := json.Marshal(sanitizeValue(payload))
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Failed to process request body"})
			c.Abort()
			return
		}

		c.Request.Body = io.NopCloser(bytes.NewReader(sanitized))
		c.Request.ContentLength = int64(len(sanitized))
		c.Next()
	}
}

func sanitizeValue(value interface{}) interface{} {
	switch v := value.(type) {
	case string:
		return sanitizePolicy.Sanitize(v)
	case map[string]interface{}:
		for key, item := range v {
			v[key] = sanitizeValue(item)
		}
		return v
	case []interface{}:
		for i, item := range v {
			v[i] = sanitizeValue(item)
		}
		return v
	default:
		return v
	}
}
