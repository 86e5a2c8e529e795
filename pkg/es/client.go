// Package es 提供了与 Elasticsearch 交互的客户端功能。
package es

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"copilot-chat-go/internal/config"
	"copilot-chat-go/internal/model"
	"copilot-chat-go/pkg/log"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/elastic/go-elasticsearch/v8/esapi"
)

const chunkMapping = `{
	"mappings": {
		"properties": {
			"chunk_id": { "type": "keyword" },
			"import_id": { "type": "keyword" },
			"chat_id": { "type": "keyword" },
			"file_name": { "type": "keyword" },
			"index": { "type": "integer" },
			"text_content": { "type": "text" },
			"imported_at": { "type": "date" }
		}
	}
}`

// Indexer 把文档分块写入一个固定的索引。
type Indexer struct {
	client    *elasticsearch.Client
	indexName string
}

// NewIndexer 初始化 Elasticsearch 客户端，并在索引不存在时创建它。
func NewIndexer(esCfg config.ElasticsearchConfig) (*Indexer, error) {
	cfg := elasticsearch.Config{
		Addresses: []string{esCfg.Addresses},
		Username:  esCfg.Username,
		Password:  esCfg.Password,
		Transport: &http.Transport{
			TLSClientConfig: &tls.Config{InsecureSkipVerify: true},
		},
	}
	client, err := elasticsearch.NewClient(cfg)
	if err != nil {
		return nil, err
	}
	idx := &Indexer{client: client, indexName: esCfg.IndexName}
	if err := idx.createIndexIfNotExists(); err != nil {
		return nil, err
	}
	return idx, nil
}

// createIndexIfNotExists 检查索引是否存在，如果不存在则创建它
func (i *Indexer) createIndexIfNotExists() error {
	res, err := i.client.Indices.Exists([]string{i.indexName})
	if err != nil {
		return fmt.Errorf("检查索引是否存在时出错: %w", err)
	}
	defer res.Body.Close()
	if !res.IsError() && res.StatusCode == http.StatusOK {
		log.Infof("索引 '%s' 已存在", i.indexName)
		return nil
	}
	if res.StatusCode != http.StatusNotFound {
		return fmt.Errorf("检查索引是否存在时收到意外的状态码: %d", res.StatusCode)
	}

	res, err = i.client.Indices.Create(
		i.indexName,
		i.client.Indices.Create.WithBody(strings.NewReader(chunkMapping)),
	)
	if err != nil {
		return fmt.Errorf("创建索引 '%s' 失败: %w", i.indexName, err)
	}
	defer res.Body.Close()
	if res.IsError() {
		log.Errorf("创建索引 '%s' 时 Elasticsearch 返回错误: %s", i.indexName, res.String())
		return errors.New("创建索引时 Elasticsearch 返回错误")
	}

	log.Infof("索引 '%s' 创建成功", i.indexName)
	return nil
}

// IndexChunk 将单个文档分块索引到 Elasticsearch。
func (i *Indexer) IndexChunk(ctx context.Context, chunk model.DocumentChunk) error {
	docBytes, err := json.Marshal(chunk)
	if err != nil {
		return err
	}

	req := esapi.IndexRequest{
		Index:      i.indexName,
		DocumentID: chunk.ChunkID,
		Body:       bytes.NewReader(docBytes),
		Refresh:    "true",
	}
	res, err := req.Do(ctx, i.client)
	if err != nil {
		return err
	}
	defer res.Body.Close()

	if res.IsError() {
		log.Errorf("索引文档到 Elasticsearch 出错: %s", res.String())
		return errors.New("failed to index document chunk")
	}
	return nil
}
