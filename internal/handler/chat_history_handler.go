// Package handler 包含了处理 HTTP 请求的控制器逻辑。
package handler

import (
	"errors"
	"net/http"
	"strconv"

	"copilot-chat-go/internal/model"
	"copilot-chat-go/internal/service"
	"copilot-chat-go/pkg/log"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// ChatHistoryHandler 负责会话与消息历史相关的 API 请求。
type ChatHistoryHandler struct {
	service service.ChatHistoryService
}

// NewChatHistoryHandler 创建一个新的 ChatHistoryHandler 实例。
func NewChatHistoryHandler(service service.ChatHistoryService) *ChatHistoryHandler {
	return &ChatHistoryHandler{service: service}
}

// CreateSessionRequest 定义了创建会话 API 的请求体结构。
type CreateSessionRequest struct {
	UserID string `json:"userId"`
	Title  string `json:"title" binding:"required"`
}

// EditSessionRequest 定义了编辑会话 API 的请求体结构，只有 title 会被修改。
type EditSessionRequest struct {
	ID    string `json:"id" binding:"required"`
	Title string `json:"title" binding:"required"`
}

// AppendMessageRequest 定义了追加消息 API 的请求体结构，authorRole 缺省为 user。
type AppendMessageRequest struct {
	ChatID     string           `json:"chatId" binding:"required"`
	AuthorRole model.AuthorRole `json:"authorRole"`
	Content    string           `json:"content" binding:"required"`
}

// CreateSession 返回访客会话；本次新建时返回 201，已存在时返回 200。
func (h *ChatHistoryHandler) CreateSession(c *gin.Context) {
	var req CreateSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		log.Warnf("CreateSession: Invalid request payload, error: %v", err)
		badRequest(c, "invalid request payload: title is required")
		return
	}

	session, created, err := h.service.GetOrCreateGuestSession(c.Request.Context(), req.UserID, req.Title)
	if err != nil {
		writeError(c, "CreateSession", err)
		return
	}

	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	c.JSON(status, gin.H{
		"code":    status,
		"message": "success",
		"data":    session,
	})
}

// GetSession 按 ID 返回会话。
func (h *ChatHistoryHandler) GetSession(c *gin.Context) {
	chatID, ok := chatIDParam(c)
	if !ok {
		return
	}

	session, err := h.service.GetSession(c.Request.Context(), chatID)
	if err != nil {
		writeError(c, "GetSession", err)
		return
	}
	ok200(c, session)
}

// GetMessages 按时间倒序分页返回会话消息。
func (h *ChatHistoryHandler) GetMessages(c *gin.Context) {
	chatID, ok := chatIDParam(c)
	if !ok {
		return
	}
	startIdx, err := strconv.Atoi(c.DefaultQuery("startIdx", "0"))
	if err != nil {
		badRequest(c, "invalid startIdx: must be an integer")
		return
	}
	count, err := strconv.Atoi(c.DefaultQuery("count", "-1"))
	if err != nil {
		badRequest(c, "invalid count: must be an integer")
		return
	}

	messages, err := h.service.ListMessages(c.Request.Context(), chatID, startIdx, count)
	if err != nil {
		writeError(c, "GetMessages", err)
		return
	}
	ok200(c, messages)
}

// EditSession 修改会话标题。
func (h *ChatHistoryHandler) EditSession(c *gin.Context) {
	var req EditSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		log.Warnf("EditSession: Invalid request payload, error: %v", err)
		badRequest(c, "invalid request payload: id and title are required")
		return
	}

	session, err := h.service.EditSessionTitle(c.Request.Context(), req.ID, req.Title)
	if err != nil {
		writeError(c, "EditSession", err)
		return
	}
	ok200(c, session)
}

// AppendMessage 向会话追加一条消息。
func (h *ChatHistoryHandler) AppendMessage(c *gin.Context) {
	var req AppendMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		log.Warnf("AppendMessage: Invalid request payload, error: %v", err)
		badRequest(c, "invalid request payload: chatId and content are required")
		return
	}
	if req.AuthorRole == "" {
		req.AuthorRole = model.AuthorRoleUser
	}

	message, err := h.service.AppendMessage(c.Request.Context(), req.ChatID, req.AuthorRole, req.Content)
	if err != nil {
		writeError(c, "AppendMessage", err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{
		"code":    http.StatusCreated,
		"message": "success",
		"data":    message,
	})
}

// chatIDParam 校验路径中的 chatId 必须是 UUID。
func chatIDParam(c *gin.Context) (string, bool) {
	chatID := c.Param("chatId")
	if _, err := uuid.Parse(chatID); err != nil {
		badRequest(c, "invalid chatId: must be a UUID")
		return "", false
	}
	return chatID, true
}

// writeError 把 service 层错误映射为 HTTP 状态码：NotFound -> 404，ValidationError -> 400，其他 -> 500。
func writeError(c *gin.Context, op string, err error) {
	var ve *service.ValidationError
	switch {
	case service.IsNotFound(err):
		log.Warnf("%s: %v", op, err)
		c.JSON(http.StatusNotFound, gin.H{
			"code":    http.StatusNotFound,
			"message": err.Error(),
			"data":    nil,
		})
	case errors.As(err, &ve):
		log.Warnf("%s: %v", op, err)
		badRequest(c, ve.Error())
	default:
		log.Errorf("%s: %v", op, err)
		c.JSON(http.StatusInternalServerError, gin.H{
			"code":    http.StatusInternalServerError,
			"message": "internal server error",
			"data":    nil,
		})
	}
}

func badRequest(c *gin.Context, message string) {
	c.JSON(http.StatusBadRequest, gin.H{
		"code":    http.StatusBadRequest,
		"message": message,
		"data":    nil,
	})
}

func ok200(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, gin.H{
		"code":    http.StatusOK,
		"message": "success",
		"data":    data,
	})
}
