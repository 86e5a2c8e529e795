// Package kafka 提供了与 Kafka 消息队列交互的功能。
package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"copilot-chat-go/internal/config"
	"copilot-chat-go/pkg/log"
	"copilot-chat-go/pkg/tasks"

	"github.com/go-redis/redis/v8"
	"github.com/segmentio/kafka-go"
)

const (
	// maxAttempts 是单个任务允许处理的总次数上限。
	maxAttempts = 3
	// retryBackoff 是重试间隔的基数，第 n 次失败后等待 n 倍。
	retryBackoff = 2 * time.Second
)

// TaskProcessor defines the interface for any service that can process an import task.
// This decouples the Kafka consumer from the concrete pipeline implementation.
type TaskProcessor interface {
	Process(ctx context.Context, task tasks.DocumentImportTask) error
}

// Producer 把导入任务写入 Kafka。
type Producer struct {
	writer *kafka.Writer
}

// NewProducer 初始化 Kafka 生产者。
func NewProducer(cfg config.KafkaConfig) *Producer {
	log.Info("Kafka 生产者初始化成功")
	return &Producer{writer: &kafka.Writer{
		Addr:     kafka.TCP(cfg.Brokers),
		Topic:    cfg.Topic,
		Balancer: &kafka.LeastBytes{},
	}}
}

// PublishImportTask 发送一个文档导入任务到 Kafka，以 ImportID 作为消息键。
func (p *Producer) PublishImportTask(ctx context.Context, task tasks.DocumentImportTask) error {
	taskBytes, err := json.Marshal(task)
	if err != nil {
		return err
	}
	return p.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(task.ImportID),
		Value: taskBytes,
	})
}

// Close 刷新并关闭生产者。
func (p *Producer) Close() error {
	return p.writer.Close()
}

// StartConsumer 启动一个 Kafka 消费者来处理导入任务，直到 ctx 被取消。
// 失败的任务在当前会话内重试，累计次数记录在 Redis 中，达到上限后提交 offset 放弃该任务。
func StartConsumer(ctx context.Context, cfg config.KafkaConfig, rdb *redis.Client, processor TaskProcessor) {
	r := kafka.NewReader(kafka.ReaderConfig{
		Brokers:  []string{cfg.Brokers},
		Topic:    cfg.Topic,
		GroupID:  cfg.GroupID,
		MinBytes: 10e3, // 10KB
		MaxBytes: 10e6, // 10MB
	})
	defer func() {
		if err := r.Close(); err != nil {
			log.Errorf("关闭 Kafka 消费者失败: %v", err)
		}
	}()

	log.Infof("Kafka 消费者已启动，正在监听主题 '%s'", cfg.Topic)

	for {
		m, err := r.FetchMessage(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				log.Info("Kafka 消费者已停止")
				return
			}
			log.Error("从 Kafka 读取消息失败", err)
			return
		}

		log.Infof("收到 Kafka 消息: offset %d", m.Offset)

		var task tasks.DocumentImportTask
		if err := json.Unmarshal(m.Value, &task); err != nil {
			log.Errorf("无法解析 Kafka 消息: %v, value: %s", err, string(m.Value))
			// 消息格式错误，直接提交，避免阻塞队列
			commit(ctx, r, m)
			continue
		}

		log.Infof("开始处理导入任务: ImportID=%s, FileName=%s", task.ImportID, task.FileName)
		if !handleTask(ctx, rdb, processor, task, retryBackoff) {
			// 停机时不提交 offset，重启后由 Kafka 重新投递
			return
		}
		commit(ctx, r, m)
	}
}

// handleTask 在当前会话内有限次重试任务，返回 true 表示可以提交 offset（成功或已放弃）。
// FetchMessage 不会在同一个 reader 内重新投递未提交的消息，所以重试必须在这里完成。
func handleTask(ctx context.Context, rdb *redis.Client, processor TaskProcessor, task tasks.DocumentImportTask, backoff time.Duration) bool {
	for local := 1; ; local++ {
		err := processor.Process(ctx, task)
		if err == nil {
			log.Infof("导入任务处理成功: ImportID=%s", task.ImportID)
			if rdb != nil {
				_ = rdb.Del(ctx, attemptsKey(task.ImportID)).Err()
			}
			return true
		}
		log.Errorf("处理导入任务失败: ImportID=%s, attempt=%d, Error: %v", task.ImportID, local, err)
		if ctx.Err() != nil {
			return false
		}
		if recordFailure(ctx, rdb, task.ImportID, local) >= maxAttempts {
			log.Errorf("导入任务多次失败(>=%d)，提交 offset 终止重试: ImportID=%s", maxAttempts, task.ImportID)
			return true
		}

		select {
		case <-ctx.Done():
			return false
		case <-time.After(backoff * time.Duration(local)):
		}
	}
}

func attemptsKey(importID string) string {
	return fmt.Sprintf("kafka:attempts:%s", importID)
}

// recordFailure 返回包括本次在内的累计失败次数。
// Redis 中的计数跨进程重启保留；rdb 为 nil 或 Redis 不可用时退回到本次会话内的计数 local。
func recordFailure(ctx context.Context, rdb *redis.Client, importID string, local int) int {
	if rdb == nil {
		return local
	}
	attempts, err := rdb.Incr(ctx, attemptsKey(importID)).Result()
	if err != nil {
		return local
	}
	_ = rdb.Expire(ctx, attemptsKey(importID), 24*time.Hour).Err()
	return max(int(attempts), local)
}

func commit(ctx context.Context, r *kafka.Reader, m kafka.Message) {
	if err := r.CommitMessages(ctx, m); err != nil {
		log.Errorf("提交 Kafka 消息 offset 失败: %v", err)
	}
}
