// Package tika 提供了一个与 Apache Tika 服务器交互的客户端。
package tika

import (
	"context"
	"fmt"
	"io"
	"mime"
	"net/http"
	"path/filepath"

	"copilot-chat-go/internal/config"
)

// Client 是 Tika 服务器的客户端。
type Client struct {
	serverURL  string
	httpClient *http.Client
}

// NewClient 创建一个新的 Tika 客户端实例。
func NewClient(cfg config.TikaConfig) *Client {
	return &Client{serverURL: cfg.ServerURL, httpClient: http.DefaultClient}
}

// ExtractText 根据文件后缀推断 MIME 类型，并调用 Tika 提取纯文本。
func (c *Client) ExtractText(ctx context.Context, fileReader io.Reader, fileName string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, c.serverURL+"/tika", fileReader)
	if err != nil {
		return "", fmt.Errorf("创建请求失败: %w", err)
	}
	req.Header.Set("Accept", "text/plain")
	req.Header.Set("Content-Type", DetectMimeType(fileName))

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("调用 Tika 失败: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("Tika 返回错误 [%d]: %s", resp.StatusCode, string(body))
	}

	text, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("读取 Tika 响应失败: %w", err)
	}
	return string(text), nil
}

// DetectMimeType 根据文件扩展名判断 Content-Type
func DetectMimeType(fileName string) string {
	ext := filepath.Ext(fileName)
	if ext == "" {
		return "application/octet-stream"
	}
	if mimeType := mime.TypeByExtension(ext); mimeType != "" {
		return mimeType
	}
	return "application/octet-stream"
}
