// Package middleware 存放 Gin 框架的中间件。
package middleware

import (
	"bytes"
	"fmt"
	"io"
	"strings"
	"time"

	"copilot-chat-go/pkg/log"

	"github.com/gin-gonic/gin"
)

// maxLoggedBody 是请求/响应体写入日志的最大字节数。
const maxLoggedBody = 4 << 10

// bodyLogWriter 用于捕获响应体
type bodyLogWriter struct {
	gin.ResponseWriter
	body *bytes.Buffer
}

// Write 实现了 io.Writer 接口，将响应写入 gin.ResponseWriter 和一个内部的 buffer
func (w bodyLogWriter) Write(b []byte) (int, error) {
	if remaining := maxLoggedBody + 1 - w.body.Len(); remaining > 0 {
		w.body.Write(b[:min(len(b), remaining)])
	}
	return w.ResponseWriter.Write(b)
}

// RequestLogger 是一个 Gin 中间件，用于记录请求和响应日志。
// multipart 请求（文档上传）的请求体不读取也不记录。
func RequestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		startTime := time.Now()

		requestBody := ""
		if c.Request.Body != nil && !isMultipart(c) {
			raw, _ := io.ReadAll(c.Request.Body)
			// 将读取的请求体重新设置回 c.Request.Body，以便后续处理函数可以正常读取
			c.Request.Body = io.NopCloser(bytes.NewReader(raw))
			requestBody = truncate(raw)
		}

		blw := &bodyLogWriter{body: &bytes.Buffer{}, ResponseWriter: c.Writer}
		c.Writer = blw

		c.Next()

		log.Infow("HTTP Request Log",
			"statusCode", c.Writer.Status(),
			"latency", time.Since(startTime).String(),
			"clientIP", c.ClientIP(),
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"requestBody", requestBody,
			"responseBody", truncate(blw.body.Bytes()),
		)
	}
}

func isMultipart(c *gin.Context) bool {
	return strings.HasPrefix(c.ContentType(), "multipart/")
}

func truncate(b []byte) string {
	if len(b) <= maxLoggedBody {
		return string(b)
	}
	return fmt.Sprintf("%s...(truncated)", b[:maxLoggedBody])
}
