// Package storage 提供了与对象存储服务（MinIO）交互的功能。
package storage

import (
	"context"
	"fmt"
	"io"

	"copilot-chat-go/internal/config"
	"copilot-chat-go/pkg/log"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// ObjectStore 封装了一个存储桶内的对象读写。
type ObjectStore struct {
	client     *minio.Client
	bucketName string
}

// NewMinIO 初始化 MinIO 客户端并确保指定的存储桶存在。
func NewMinIO(ctx context.Context, cfg config.MinIOConfig) (*ObjectStore, error) {
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("初始化 MinIO 客户端失败: %w", err)
	}
	log.Info("MinIO 客户端初始化成功")

	exists, err := client.BucketExists(ctx, cfg.BucketName)
	if err != nil {
		return nil, fmt.Errorf("检查 MinIO 存储桶失败: %w", err)
	}
	if !exists {
		log.Infof("存储桶 '%s' 不存在，正在创建...", cfg.BucketName)
		if err := client.MakeBucket(ctx, cfg.BucketName, minio.MakeBucketOptions{}); err != nil {
			return nil, fmt.Errorf("创建 MinIO 存储桶失败: %w", err)
		}
		log.Infof("存储桶 '%s' 创建成功", cfg.BucketName)
	}
	return &ObjectStore{client: client, bucketName: cfg.BucketName}, nil
}

// PutObject 上传一个对象，size 未知时传 -1。
func (s *ObjectStore) PutObject(ctx context.Context, objectName string, reader io.Reader, size int64, contentType string) error {
	_, err := s.client.PutObject(ctx, s.bucketName, objectName, reader, size, minio.PutObjectOptions{ContentType: contentType})
	if err != nil {
		return fmt.Errorf("上传对象 %s 失败: %w", objectName, err)
	}
	return nil
}

// GetObject 打开一个对象用于读取，调用方负责关闭。
func (s *ObjectStore) GetObject(ctx context.Context, objectName string) (io.ReadCloser, error) {
	object, err := s.client.GetObject(ctx, s.bucketName, objectName, minio.GetObjectOptions{})
	if err != nil {
		return nil, fmt.Errorf("从 MinIO 下载对象 %s 失败: %w", objectName, err)
	}
	return object, nil
}
