package middleware

import (
	"bytes"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/aq2208/pixelmart-api/internal/logging"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const (
	bodyLogLimit = 8 * 1024
	maxRequestID = 64
	truncated    = "...truncated..."
)

// quietPaths are logged at debug level only.
var quietPaths = map[string]struct{}{
	"/healthz": {},
	"/metrics": {},
}

type bodyLogWriter struct {
	gin.ResponseWriter
	buf bytes.Buffer
}

func (w *bodyLogWriter) Write(b []byte) (int, error) {
	if remain := bodyLogLimit + 1 - w.buf.Len(); remain > 0 {
		w.buf.Write(b[:min(len(b), remain)])
	}
	return w.ResponseWriter.Write(b)
}

func (w *bodyLogWriter) logged() string {
	if !isJSON(w.Header().Get("Content-Type")) {
		return ""
	}
	if w.buf.Len() > bodyLogLimit {
		return truncated
	}
	return string(redactJSON(w.buf.Bytes()))
}

// peekBody reads up to bodyLogLimit bytes for logging and returns a body that
// still yields the full stream to the handlers.
func peekBody(rc io.ReadCloser) (logged string, body io.ReadCloser) {
	var head bytes.Buffer
	_, _ = io.CopyN(&head, rc, bodyLogLimit+1)
	body = struct {
		io.Reader
		io.Closer
	}{io.MultiReader(bytes.NewReader(head.Bytes()), rc), rc}
	if head.Len() > bodyLogLimit {
		// partial JSON cannot be redacted
		return truncated, body
	}
	return string(redactJSON(head.Bytes())), body
}

func isJSON(contentType string) bool {
	return strings.Contains(contentType, "application/json")
}

func requestID(c *gin.Context) string {
	id := c.GetHeader("X-Request-Id")
	if id == "" || len(id) > maxRequestID {
		id = uuid.NewString()
		c.Request.Header.Set("X-Request-Id", id)
	}
	c.Header("X-Request-Id", id)
	return id
}

// Logging injects a request-scoped slog.Logger and logs one line per request
// with redacted JSON bodies.
func Logging(base *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		l := base.With(
			"req_id", requestID(c),
			"method", c.Request.Method,
			"path", c.FullPath(), // empty when no route matched
			"remote", c.ClientIP(),
		)
		logging.With(c, l)

		var reqBody string
		if c.Request.Body != nil && isJSON(c.GetHeader("Content-Type")) {
			reqBody, c.Request.Body = peekBody(c.Request.Body)
		}
		blw := &bodyLogWriter{ResponseWriter: c.Writer}
		c.Writer = blw

		c.Next()

		status := c.Writer.Status()
		attrs := []any{
			"status", status,
			"dur_ms", time.Since(start).Milliseconds(),
			"resp_bytes", c.Writer.Size(),
		}
		if q := redactQuery(c.Request.URL.RawQuery); q != "" {
			attrs = append(attrs, "query", q)
		}
		if reqBody != "" {
			attrs = append(attrs, "req_body", reqBody)
		}
		if respBody := blw.logged(); respBody != "" {
			attrs = append(attrs, "resp_body", respBody)
		}
		if len(c.Params) > 0 {
			attrs = append(attrs, "params", c.Params)
		}
		if len(c.Errors) > 0 {
			attrs = append(attrs, "error", c.Errors.String())
		}

		level := slog.LevelInfo
		switch {
		case status >= http.StatusInternalServerError:
			level = slog.LevelError
		case status >= http.StatusBadRequest:
			level = slog.LevelWarn
		default:
			if _, ok := quietPaths[c.FullPath()]; ok {
				level = slog.LevelDebug
			}
		}
		l.Log(c.Request.Context(), level, "http_request", attrs...)
	}
}
