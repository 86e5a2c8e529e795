// Package config 负责加载和管理应用程序的配置。
package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// 全局配置变量，存储从配置文件加载的所有设置。
var Conf Config

// Config 是整个应用程序的配置结构体，与 config.yaml 文件结构对应。
type Config struct {
	Server        ServerConfig        `mapstructure:"server"`
	Database      DatabaseConfig      `mapstructure:"database"`
	Storage       StorageConfig       `mapstructure:"storage"`
	Log           LogConfig           `mapstructure:"log"`
	Chat          ChatConfig          `mapstructure:"chat"`
	Prompt        PromptConfig        `mapstructure:"prompt"`
	Import        ImportConfig        `mapstructure:"import"`
	Kafka         KafkaConfig         `mapstructure:"kafka"`
	Tika          TikaConfig          `mapstructure:"tika"`
	Elasticsearch ElasticsearchConfig `mapstructure:"elasticsearch"`
	MinIO         MinIOConfig         `mapstructure:"minio"`
}

// ServerConfig 存储服务器相关的配置。
type ServerConfig struct {
	Port string `mapstructure:"port"`
	Mode string `mapstructure:"mode"`
}

// DatabaseConfig 存储所有数据库连接的配置。
type DatabaseConfig struct {
	MySQL MySQLConfig `mapstructure:"mysql"`
	Redis RedisConfig `mapstructure:"redis"`
}

// MySQLConfig 存储 MySQL 数据库的配置。
type MySQLConfig struct {
	DSN string `mapstructure:"dsn"`
}

// RedisConfig 存储 Redis 的配置。
type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// 会话与消息的存储后端。
const (
	BackendMemory = "memory"
	BackendMySQL  = "mysql"
	BackendRedis  = "redis"
)

// StorageConfig 选择会话与消息使用的存储后端。
type StorageConfig struct {
	Backend string `mapstructure:"backend"`
}

// LogConfig 存储日志相关的配置。
type LogConfig struct {
	Level      string `mapstructure:"level"`
	Format     string `mapstructure:"format"`
	OutputPath string `mapstructure:"output_path"`
}

// ChatConfig 存储单访客部署下的固定身份。
type ChatConfig struct {
	GuestSessionID string `mapstructure:"guest_session_id"`
	GuestUserID    string `mapstructure:"guest_user_id"`
}

// PromptConfig 存储机器人相关的文案。
type PromptConfig struct {
	InitialBotMessage string `mapstructure:"initial_bot_message"`
}

// ImportConfig 控制文档导入链路（MinIO + Kafka + Tika + Elasticsearch）是否启用。
type ImportConfig struct {
	Enabled     bool  `mapstructure:"enabled"`
	MaxFileSize int64 `mapstructure:"max_file_size"`
}

// KafkaConfig 存储 Kafka 相关的配置。
type KafkaConfig struct {
	Brokers string `mapstructure:"brokers"`
	Topic   string `mapstructure:"topic"`
	GroupID string `mapstructure:"group_id"`
}

// TikaConfig 存储 Tika 服务器相关的配置。
type TikaConfig struct {
	ServerURL string `mapstructure:"server_url"`
}

// ElasticsearchConfig 存储 Elasticsearch 相关的配置。
type ElasticsearchConfig struct {
	Addresses string `mapstructure:"addresses"`
	Username  string `mapstructure:"username"`
	Password  string `mapstructure:"password"`
	IndexName string `mapstructure:"index_name"`
}

// MinIOConfig 存储 MinIO 对象存储的配置。
type MinIOConfig struct {
	Endpoint        string `mapstructure:"endpoint"`
	AccessKeyID     string `mapstructure:"access_key_id"`
	SecretAccessKey string `mapstructure:"secret_access_key"`
	UseSSL          bool   `mapstructure:"use_ssl"`
	BucketName      string `mapstructure:"bucket_name"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", "8080")
	v.SetDefault("server.mode", "release")
	v.SetDefault("database.mysql.dsn", "")
	v.SetDefault("database.redis.addr", "")
	v.SetDefault("database.redis.password", "")
	v.SetDefault("database.redis.db", 0)
	v.SetDefault("storage.backend", BackendMemory)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("chat.guest_session_id", "461a6d36-967e-40b1-93e1-3830fcd95e6d")
	v.SetDefault("chat.guest_user_id", "guest-user-id")
	v.SetDefault("prompt.initial_bot_message", "Hello, I am your copilot. How can I help you today?")
	v.SetDefault("import.enabled", false)
	v.SetDefault("import.max_file_size", 10<<20)
	v.SetDefault("kafka.brokers", "")
	v.SetDefault("kafka.topic", "document-import")
	v.SetDefault("kafka.group_id", "copilot-chat-go-consumer")
	v.SetDefault("tika.server_url", "")
	v.SetDefault("elasticsearch.addresses", "")
	v.SetDefault("elasticsearch.index_name", "document_chunks")
	v.SetDefault("minio.endpoint", "")
	v.SetDefault("minio.bucket_name", "imports")
}

// Load 读取 YAML 配置文件，环境变量 CHAT_<SECTION>_<KEY> 可以覆盖文件中的值。
// path 为空时只使用默认值与环境变量。
func Load(path string) (Config, error) {
	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix("CHAT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("读取配置文件失败: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("无法将配置解析到结构体中: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate 检查互相依赖的配置项。
func (c Config) Validate() error {
	switch c.Storage.Backend {
	case BackendMemory:
	case BackendMySQL:
		if c.Database.MySQL.DSN == "" {
			return fmt.Errorf("storage.backend=%s 需要配置 database.mysql.dsn", c.Storage.Backend)
		}
	case BackendRedis:
		if c.Database.Redis.Addr == "" {
			return fmt.Errorf("storage.backend=%s 需要配置 database.redis.addr", c.Storage.Backend)
		}
	default:
		return fmt.Errorf("未知的 storage.backend: %q", c.Storage.Backend)
	}
	if c.Import.Enabled && (c.Kafka.Brokers == "" || c.MinIO.Endpoint == "") {
		return fmt.Errorf("import.enabled 需要配置 kafka.brokers 与 minio.endpoint")
	}
	return nil
}

// Init 初始化配置加载，失败时直接 panic，并将结果写入 Conf。
func Init(configPath string) {
	cfg, err := Load(configPath)
	if err != nil {
		panic(err)
	}
	Conf = cfg
}
