// Package importer 是文档导入接口 /importDocument 的 Go 客户端。
package importer

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strings"
)

const (
	importPath = "importDocument"
	formField  = "formFile"
	// backendHint 附加在网络错误上，提示使用者检查后端是否可达。
	backendHint = "Please check that your backend is running and that it is accessible by the app"
)

// TransportError 表示请求根本没有得到响应（连接失败、超时等）。
type TransportError struct {
	URL string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("import document request to %s failed: %v\n\n%s", e.URL, e.Err, backendHint)
}

func (e *TransportError) Unwrap() error { return e.Err }

// StatusError 表示服务端返回了非 2xx 状态码。
type StatusError struct {
	StatusCode int
	Status     string
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s => %s", e.Status, e.Body)
}

// Client 通过 multipart 请求把文档上传到导入接口。
type Client struct {
	serviceURL string
	httpClient *http.Client
}

// NewClient 创建一个客户端，httpClient 为 nil 时使用 http.DefaultClient。
func NewClient(serviceURL string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	if !strings.HasSuffix(serviceURL, "/") {
		serviceURL += "/"
	}
	return &Client{serviceURL: serviceURL, httpClient: httpClient}
}

// ImportDocument 上传一个文档；chatID 非空时导入结果会以机器人消息的形式写入该会话。
func (c *Client) ImportDocument(ctx context.Context, chatID, fileName string, document io.Reader) error {
	requestURL, err := url.JoinPath(c.serviceURL, importPath)
	if err != nil {
		return fmt.Errorf("invalid service url %q: %w", c.serviceURL, err)
	}

	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	part, err := writer.CreateFormFile(formField, fileName)
	if err != nil {
		return err
	}
	if _, err := io.Copy(part, document); err != nil {
		return fmt.Errorf("failed to read document %s: %w", fileName, err)
	}
	if chatID != "" {
		if err := writer.WriteField("chatId", chatID); err != nil {
			return err
		}
	}
	if err := writer.Close(); err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, requestURL, body)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &TransportError{URL: requestURL, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		text, _ := io.ReadAll(resp.Body)
		return &StatusError{StatusCode: resp.StatusCode, Status: resp.Status, Body: string(text)}
	}
	return nil
}
