// Package service 包含了应用的业务逻辑层。
package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"copilot-chat-go/internal/model"
	"copilot-chat-go/internal/repository"
	"copilot-chat-go/pkg/log"

	"github.com/google/uuid"
)

// DefaultGuestSessionID 是单访客部署下固定的会话 ID。
const DefaultGuestSessionID = "461a6d36-967e-40b1-93e1-3830fcd95e6d"

// ChatHistoryConfig 是 ChatHistoryService 依赖的配置。
// 访客会话 ID 通过配置注入，将来切换为多用户模式时只需替换 ID 的来源。
type ChatHistoryConfig struct {
	GuestSessionID    string
	GuestUserID       string
	InitialBotMessage string
}

// ChatHistoryService 定义了会话与消息历史的业务操作。
type ChatHistoryService interface {
	// GetOrCreateGuestSession 返回访客会话，不存在时创建并写入机器人欢迎语。
	// created 仅在本次调用真正创建了会话时为 true。
	GetOrCreateGuestSession(ctx context.Context, userID, title string) (session model.ChatSession, created bool, err error)
	GetSession(ctx context.Context, chatID string) (model.ChatSession, error)
	EditSessionTitle(ctx context.Context, chatID, title string) (model.ChatSession, error)
	AppendMessage(ctx context.Context, chatID string, role model.AuthorRole, content string) (model.ChatMessage, error)
	// ListMessages 按时间倒序分页返回会话消息，count 为 -1 时返回 startIndex 之后的全部消息。
	ListMessages(ctx context.Context, chatID string, startIndex, count int) ([]model.ChatMessage, error)
}

type chatHistoryService struct {
	sessions repository.ChatSessionRepository
	messages repository.ChatMessageRepository
	cfg      ChatHistoryConfig
	locks    *keyedMutex
	now      func() time.Time
	newID    func() string
}

// NewChatHistoryService 创建一个新的 ChatHistoryService 实例。
func NewChatHistoryService(sessions repository.ChatSessionRepository, messages repository.ChatMessageRepository, cfg ChatHistoryConfig) ChatHistoryService {
	if cfg.GuestSessionID == "" {
		cfg.GuestSessionID = DefaultGuestSessionID
	}
	return &chatHistoryService{
		sessions: sessions,
		messages: messages,
		cfg:      cfg,
		locks:    newKeyedMutex(),
		now:      func() time.Time { return time.Now().UTC() },
		newID:    uuid.NewString,
	}
}

// lookupSession 把仓库的 ErrNotFound 转换为显式的 found 标志。
func (s *chatHistoryService) lookupSession(ctx context.Context, chatID string) (model.ChatSession, bool, error) {
	session, err := s.sessions.FindByID(ctx, chatID)
	if errors.Is(err, repository.ErrNotFound) {
		return model.ChatSession{}, false, nil
	}
	if err != nil {
		return model.ChatSession{}, false, err
	}
	return session, true, nil
}

// GetOrCreateGuestSession 在进程内以访客会话 ID 为键串行化，
// 跨进程的竞争则由仓库的 ErrDuplicateKey 兜底：失败方重新读取胜出方的记录。
func (s *chatHistoryService) GetOrCreateGuestSession(ctx context.Context, userID, title string) (model.ChatSession, bool, error) {
	if strings.TrimSpace(title) == "" {
		return model.ChatSession{}, false, &ValidationError{Field: "title", Reason: "must not be empty"}
	}
	if userID == "" {
		userID = s.cfg.GuestUserID
	}
	chatID := s.cfg.GuestSessionID

	unlock := s.locks.Lock(chatID)
	defer unlock()

	session, found, err := s.lookupSession(ctx, chatID)
	if err != nil {
		return model.ChatSession{}, false, fmt.Errorf("failed to look up guest session: %w", err)
	}
	if found {
		// 上次创建后写欢迎语失败时，会话已存在但没有任何消息，这里补写
		if err := s.ensureGreeting(ctx, chatID); err != nil {
			return model.ChatSession{}, false, err
		}
		return session, false, nil
	}

	session = model.ChatSession{ID: chatID, UserID: userID, Title: title}
	if err := s.sessions.Create(ctx, session); err != nil {
		if !errors.Is(err, repository.ErrDuplicateKey) {
			return model.ChatSession{}, false, fmt.Errorf("failed to create guest session: %w", err)
		}
		log.Infof("[ChatHistoryService] 访客会话 %s 已由其他实例创建，重新读取", chatID)
		winner, err := s.sessions.FindByID(ctx, chatID)
		if err != nil {
			return model.ChatSession{}, false, fmt.Errorf("failed to re-read guest session: %w", err)
		}
		return winner, false, nil
	}

	if _, err := s.appendMessage(ctx, chatID, model.AuthorRoleBot, s.cfg.InitialBotMessage); err != nil {
		return model.ChatSession{}, false, fmt.Errorf("failed to seed initial bot message: %w", err)
	}

	log.Infow("Created chat session", "chatId", chatID, "userId", userID)
	return session, true, nil
}

// ensureGreeting 在会话没有任何消息时写入欢迎语，调用方需持有该会话的锁。
func (s *chatHistoryService) ensureGreeting(ctx context.Context, chatID string) error {
	messages, err := s.messages.FindByChatID(ctx, chatID)
	if err != nil {
		return fmt.Errorf("failed to load chat messages: %w", err)
	}
	if len(messages) > 0 {
		return nil
	}
	log.Warnf("[ChatHistoryService] 会话 %s 缺少欢迎语，重新写入", chatID)
	if _, err := s.appendMessage(ctx, chatID, model.AuthorRoleBot, s.cfg.InitialBotMessage); err != nil {
		return fmt.Errorf("failed to seed initial bot message: %w", err)
	}
	return nil
}

// GetSession 按 ID 获取会话。
func (s *chatHistoryService) GetSession(ctx context.Context, chatID string) (model.ChatSession, error) {
	session, found, err := s.lookupSession(ctx, chatID)
	if err != nil {
		return model.ChatSession{}, err
	}
	if !found {
		return model.ChatSession{}, chatNotFound(chatID)
	}
	return session, nil
}

// EditSessionTitle 只修改会话标题，ID 与 UserID 保持不变。
func (s *chatHistoryService) EditSessionTitle(ctx context.Context, chatID, title string) (model.ChatSession, error) {
	if strings.TrimSpace(title) == "" {
		return model.ChatSession{}, &ValidationError{Field: "title", Reason: "must not be empty"}
	}
	session, err := s.GetSession(ctx, chatID)
	if err != nil {
		return model.ChatSession{}, err
	}

	session.Title = title
	if err := s.sessions.Update(ctx, session); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return model.ChatSession{}, chatNotFound(chatID)
		}
		return model.ChatSession{}, fmt.Errorf("failed to update chat session: %w", err)
	}
	return session, nil
}

// AppendMessage 向已存在的会话追加一条消息。
func (s *chatHistoryService) AppendMessage(ctx context.Context, chatID string, role model.AuthorRole, content string) (model.ChatMessage, error) {
	if !role.Valid() {
		return model.ChatMessage{}, &ValidationError{Field: "authorRole", Reason: fmt.Sprintf("unknown role %q", role)}
	}
	if content == "" {
		return model.ChatMessage{}, &ValidationError{Field: "content", Reason: "must not be empty"}
	}
	return s.appendMessage(ctx, chatID, role, content)
}

func (s *chatHistoryService) appendMessage(ctx context.Context, chatID string, role model.AuthorRole, content string) (model.ChatMessage, error) {
	// 只做存在性检查
	if _, err := s.GetSession(ctx, chatID); err != nil {
		return model.ChatMessage{}, err
	}

	message := model.ChatMessage{
		ID:         s.newID(),
		ChatID:     chatID,
		Timestamp:  s.now(),
		Content:    content,
		AuthorRole: role,
	}
	if err := s.messages.Create(ctx, message); err != nil {
		return model.ChatMessage{}, fmt.Errorf("failed to save chat message: %w", err)
	}
	return message, nil
}

// ListMessages 区分两种情况：会话不存在返回 ErrChatNotFound，会话存在但没有消息返回 ErrNoMessages。
func (s *chatHistoryService) ListMessages(ctx context.Context, chatID string, startIndex, count int) ([]model.ChatMessage, error) {
	if _, err := s.GetSession(ctx, chatID); err != nil {
		return nil, err
	}

	messages, err := s.messages.FindByChatID(ctx, chatID)
	if err != nil {
		return nil, fmt.Errorf("failed to load chat messages: %w", err)
	}
	if len(messages) == 0 {
		return nil, fmt.Errorf("%w for chat id '%s'", ErrNoMessages, chatID)
	}
	return PaginateMessages(messages, startIndex, count), nil
}
