package service

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"copilot-chat-go/pkg/log"
	"copilot-chat-go/pkg/tasks"
	"copilot-chat-go/pkg/tika"

	"github.com/google/uuid"
)

// ObjectUploader 是导入服务写对象存储所需的最小接口，由 storage.ObjectStore 实现。
type ObjectUploader interface {
	PutObject(ctx context.Context, objectName string, reader io.Reader, size int64, contentType string) error
}

// TaskPublisher 是导入服务投递任务所需的最小接口，由 kafka.Producer 实现。
type TaskPublisher interface {
	PublishImportTask(ctx context.Context, task tasks.DocumentImportTask) error
}

// ImportService 接收上传的文档，存入对象存储后交给异步流水线处理。
type ImportService interface {
	ImportDocument(ctx context.Context, chatID, fileName string, size int64, reader io.Reader) (tasks.DocumentImportTask, error)
}

type importService struct {
	objects     ObjectUploader
	publisher   TaskPublisher
	chats       ChatHistoryService
	maxFileSize int64
	newID       func() string
}

// NewImportService 创建一个新的 ImportService，maxFileSize <= 0 表示不限制大小。
func NewImportService(objects ObjectUploader, publisher TaskPublisher, chats ChatHistoryService, maxFileSize int64) ImportService {
	return &importService{
		objects:     objects,
		publisher:   publisher,
		chats:       chats,
		maxFileSize: maxFileSize,
		newID:       uuid.NewString,
	}
}

func (s *importService) ImportDocument(ctx context.Context, chatID, fileName string, size int64, reader io.Reader) (tasks.DocumentImportTask, error) {
	fileName = filepath.Base(strings.TrimSpace(fileName))
	if fileName == "" || fileName == "." || fileName == string(filepath.Separator) {
		return tasks.DocumentImportTask{}, &ValidationError{Field: "formFile", Reason: "file name must not be empty"}
	}
	if size == 0 {
		return tasks.DocumentImportTask{}, &ValidationError{Field: "formFile", Reason: "file is empty"}
	}
	if s.maxFileSize > 0 && size > s.maxFileSize {
		return tasks.DocumentImportTask{}, &ValidationError{Field: "formFile", Reason: fmt.Sprintf("file exceeds %d bytes", s.maxFileSize)}
	}
	// 指定了会话时，会话必须已存在，导入结果会追加到该会话
	if chatID != "" {
		if _, err := s.chats.GetSession(ctx, chatID); err != nil {
			return tasks.DocumentImportTask{}, err
		}
	}

	importID := s.newID()
	objectName := fmt.Sprintf("imports/%s/%s", importID, fileName)
	if err := s.objects.PutObject(ctx, objectName, reader, size, tika.DetectMimeType(fileName)); err != nil {
		return tasks.DocumentImportTask{}, fmt.Errorf("failed to store document: %w", err)
	}

	task := tasks.DocumentImportTask{
		ImportID:   importID,
		ChatID:     chatID,
		FileName:   fileName,
		ObjectName: objectName,
		Size:       size,
	}
	if err := s.publisher.PublishImportTask(ctx, task); err != nil {
		return tasks.DocumentImportTask{}, fmt.Errorf("failed to publish import task: %w", err)
	}

	log.Infow("Document import queued", "importId", importID, "chatId", chatID, "fileName", fileName, "size", size)
	return task, nil
}
