package service

import (
	"errors"
	"fmt"

	"copilot-chat-go/internal/repository"
)

var (
	// ErrChatNotFound 表示引用的会话不存在。
	ErrChatNotFound = errors.New("chat not found")
	// ErrNoMessages 表示会话存在但还没有任何消息。
	ErrNoMessages = errors.New("no messages found")
)

// ValidationError 描述请求中格式错误的字段。
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// IsNotFound 判断错误是否属于"不存在"一类。
func IsNotFound(err error) bool {
	return errors.Is(err, ErrChatNotFound) ||
		errors.Is(err, ErrNoMessages) ||
		errors.Is(err, repository.ErrNotFound)
}

// IsValidation 判断错误是否为 ValidationError。
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

func chatNotFound(chatID string) error {
	return fmt.Errorf("%w: chat of id '%s'", ErrChatNotFound, chatID)
}
