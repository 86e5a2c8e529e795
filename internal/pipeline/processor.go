// Package pipeline 定义了文档导入的异步处理流程。
package pipeline

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"time"
	"unicode/utf8"

	"copilot-chat-go/internal/model"
	"copilot-chat-go/internal/service"
	"copilot-chat-go/pkg/log"
	"copilot-chat-go/pkg/tasks"
)

const (
	chunkSize    = 1000
	chunkOverlap = 100
)

// ObjectReader 由 storage.ObjectStore 实现。
type ObjectReader interface {
	GetObject(ctx context.Context, objectName string) (io.ReadCloser, error)
}

// TextExtractor 由 tika.Client 实现。
type TextExtractor interface {
	ExtractText(ctx context.Context, fileReader io.Reader, fileName string) (string, error)
}

// ChunkIndexer 由 es.Indexer 实现。
type ChunkIndexer interface {
	IndexChunk(ctx context.Context, chunk model.DocumentChunk) error
}

// Processor 封装了文档导入处理的所有依赖和逻辑。
type Processor struct {
	objects   ObjectReader
	extractor TextExtractor
	indexer   ChunkIndexer
	chats     service.ChatHistoryService
	now       func() time.Time
}

// NewProcessor 创建一个新的 Processor 实例。
func NewProcessor(objects ObjectReader, extractor TextExtractor, indexer ChunkIndexer, chats service.ChatHistoryService) *Processor {
	return &Processor{
		objects:   objects,
		extractor: extractor,
		indexer:   indexer,
		chats:     chats,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// Process 是导入任务的主函数：下载、提取文本、切块、索引，最后在会话中留下一条机器人通知。
func (p *Processor) Process(ctx context.Context, task tasks.DocumentImportTask) error {
	log.Infof("[Processor] 开始处理导入任务, ImportID: %s, FileName: %s", task.ImportID, task.FileName)

	// 1. 从对象存储下载文件
	object, err := p.objects.GetObject(ctx, task.ObjectName)
	if err != nil {
		return fmt.Errorf("从对象存储下载文件失败: %w", err)
	}
	defer object.Close()

	buf := new(bytes.Buffer)
	size, err := buf.ReadFrom(object)
	if err != nil {
		return fmt.Errorf("读取对象流失败: %w", err)
	}
	if size == 0 {
		log.Warnf("[Processor] 文件 '%s' 内容为空, 处理中止", task.FileName)
		return errors.New("文件内容为空")
	}

	// 2. 使用 Tika 提取文本
	textContent, err := p.extractor.ExtractText(ctx, bytes.NewReader(buf.Bytes()), task.FileName)
	if err != nil {
		return fmt.Errorf("使用 Tika 提取文本失败: %w", err)
	}
	if textContent == "" {
		log.Warnf("[Processor] Tika提取的文本内容为空, 处理中止, FileName: %s", task.FileName)
		return errors.New("提取的文本内容为空")
	}
	log.Infof("[Processor] 文本提取成功, 内容长度: %d 字符", utf8.RuneCountInString(textContent))

	// 3. 文本切块并索引到 ES
	chunks := splitText(textContent, chunkSize, chunkOverlap)
	importedAt := p.now()
	for i, chunk := range chunks {
		doc := model.DocumentChunk{
			ChunkID:     fmt.Sprintf("%s_%d", task.ImportID, i),
			ImportID:    task.ImportID,
			ChatID:      task.ChatID,
			FileName:    task.FileName,
			Index:       i,
			TextContent: chunk,
			ImportedAt:  importedAt,
		}
		// ChunkID 是确定的，重试时覆盖同一文档，索引是幂等的
		if err := p.indexer.IndexChunk(ctx, doc); err != nil {
			return fmt.Errorf("索引块 %d 到 Elasticsearch 失败: %w", i, err)
		}
	}
	log.Infof("[Processor] %d 个分块索引完成", len(chunks))

	// 4. 通知会话
	if task.ChatID != "" {
		notice := fmt.Sprintf("Imported document %s (%d chunks).", task.FileName, len(chunks))
		if _, err := p.chats.AppendMessage(ctx, task.ChatID, model.AuthorRoleBot, notice); err != nil {
			if service.IsNotFound(err) {
				// 会话在导入期间消失，重试也无济于事
				log.Warnf("[Processor] 会话 %s 不存在, 跳过导入通知", task.ChatID)
				return nil
			}
			return fmt.Errorf("写入导入通知失败: %w", err)
		}
	}

	log.Infof("[Processor] 导入任务处理成功, ImportID: %s", task.ImportID)
	return nil
}

// splitText 将长文本按指定大小和重叠进行切分。
func splitText(text string, chunkSize int, chunkOverlap int) []string {
	if chunkSize <= chunkOverlap {
		return simpleSplit(text, chunkSize)
	}

	var chunks []string
	runes := []rune(text)
	if len(runes) == 0 {
		return nil
	}

	step := chunkSize - chunkOverlap
	for i := 0; i < len(runes); i += step {
		end := min(i+chunkSize, len(runes))
		chunks = append(chunks, string(runes[i:end]))
		if end == len(runes) {
			break
		}
	}
	return chunks
}

func simpleSplit(text string, chunkSize int) []string {
	var chunks []string
	runes := []rune(text)
	for i := 0; i < len(runes); i += chunkSize {
		end := min(i+chunkSize, len(runes))
		chunks = append(chunks, string(runes[i:end]))
	}
	return chunks
}
