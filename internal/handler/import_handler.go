package handler

import (
	"net/http"

	"copilot-chat-go/internal/service"
	"copilot-chat-go/pkg/log"

	"github.com/gin-gonic/gin"
)

// ImportHandler 负责文档导入请求。
type ImportHandler struct {
	service service.ImportService
}

// NewImportHandler 创建一个新的 ImportHandler 实例。
func NewImportHandler(service service.ImportService) *ImportHandler {
	return &ImportHandler{service: service}
}

// ImportDocument 接收 multipart 表单中的 formFile，排队后立即返回 202。
func (h *ImportHandler) ImportDocument(c *gin.Context) {
	fileHeader, err := c.FormFile("formFile")
	if err != nil {
		log.Warnf("ImportDocument: 缺少 formFile, error: %v", err)
		badRequest(c, "invalid formFile: a file is required")
		return
	}
	chatID := c.PostForm("chatId")

	file, err := fileHeader.Open()
	if err != nil {
		writeError(c, "ImportDocument", err)
		return
	}
	defer file.Close()

	task, err := h.service.ImportDocument(c.Request.Context(), chatID, fileHeader.Filename, fileHeader.Size, file)
	if err != nil {
		writeError(c, "ImportDocument", err)
		return
	}
	c.JSON(http.StatusAccepted, gin.H{
		"code":    http.StatusAccepted,
		"message": "document import queued",
		"data": gin.H{
			"importId": task.ImportID,
			"chatId":   task.ChatID,
			"fileName": task.FileName,
		},
	})
}
