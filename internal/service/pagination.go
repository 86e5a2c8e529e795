package service

import (
	"slices"

	"copilot-chat-go/internal/model"
)

// PaginateMessages 将按存储顺序排列的消息按时间倒序排列后分页，不修改入参。
//
// 时间戳相同时，后存入的消息视为更新的消息排在前面。
// startIndex 小于 0 时按 0 处理，越界时返回空切片；count 小于 0 表示取剩余全部。
func PaginateMessages(messages []model.ChatMessage, startIndex, count int) []model.ChatMessage {
	sorted := make([]model.ChatMessage, len(messages))
	for i, m := range messages {
		sorted[len(messages)-1-i] = m
	}
	slices.SortStableFunc(sorted, func(a, b model.ChatMessage) int {
		return b.Timestamp.Compare(a.Timestamp)
	})

	if startIndex < 0 {
		startIndex = 0
	}
	if startIndex >= len(sorted) {
		return []model.ChatMessage{}
	}
	sorted = sorted[startIndex:]
	if count >= 0 && count < len(sorted) {
		sorted = sorted[:count]
	}
	return sorted
}
