package model

import "time"

// DocumentChunk 是导入文档切块后写入 Elasticsearch 的结构。
type DocumentChunk struct {
	ChunkID     string    `json:"chunk_id"` // importId + 序号
	ImportID    string    `json:"import_id"`
	ChatID      string    `json:"chat_id,omitempty"`
	FileName    string    `json:"file_name"`
	Index       int       `json:"index"`
	TextContent string    `json:"text_content"`
	ImportedAt  time.Time `json:"imported_at"`
}
