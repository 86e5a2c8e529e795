// Package tasks defines the structure for tasks that are sent to Kafka.
package tasks

// DocumentImportTask represents a document waiting to be extracted and indexed.
type DocumentImportTask struct {
	ImportID   string `json:"import_id"`
	ChatID     string `json:"chat_id,omitempty"`
	FileName   string `json:"file_name"`
	ObjectName string `json:"object_name"`
	Size       int64  `json:"size"`
}
