// Package config 负责加载和管理应用程序的配置。
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// 全局配置变量，由 Init 填充。
var Conf Config

// Config 是整个应用程序的配置结构体，与 config.yaml 文件结构对应。
type Config struct {
	Server        ServerConfig        `mapstructure:"server"`
	Log           LogConfig           `mapstructure:"log"`
	Ingest        IngestConfig        `mapstructure:"ingest"`
	VectorStore   VectorStoreConfig   `mapstructure:"vectorstore"`
	Elasticsearch ElasticsearchConfig `mapstructure:"elasticsearch"`
	Redis         RedisConfig         `mapstructure:"redis"`
	MySQL         MySQLConfig         `mapstructure:"mysql"`
	Kafka         KafkaConfig         `mapstructure:"kafka"`
	MinIO         MinIOConfig         `mapstructure:"minio"`
	Tika          TikaConfig          `mapstructure:"tika"`
	Embedding     EmbeddingConfig     `mapstructure:"embedding"`
	LLM           LLMConfig           `mapstructure:"llm"`
	Retrieval     RetrievalConfig     `mapstructure:"retrieval"`
	JWT           JWTConfig           `mapstructure:"jwt"`
}

// ServerConfig 存储 HTTP 服务相关的配置。
type ServerConfig struct {
	Port         string        `mapstructure:"port"`
	Mode         string        `mapstructure:"mode"`
	Debug        bool          `mapstructure:"debug"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
}

// GinMode 返回 gin 的运行模式，未显式配置时由 Debug 推导。
func (s ServerConfig) GinMode() string {
	if s.Mode != "" {
		return s.Mode
	}
	if s.Debug {
		return "debug"
	}
	return "release"
}

// LogConfig 存储日志相关的配置。
type LogConfig struct {
	Level      string `mapstructure:"level"`
	Format     string `mapstructure:"format"`
	OutputPath string `mapstructure:"output_path"`
}

// IngestConfig 存储文档导入管道的配置。
type IngestConfig struct {
	DocumentDirectory string   `mapstructure:"document_directory"`
	Source            string   `mapstructure:"source"` // fs | minio
	ChunkSize         int      `mapstructure:"chunk_size"`
	ChunkOverlap      int      `mapstructure:"chunk_overlap"`
	MaxBatchSize      int      `mapstructure:"max_batch_size"`
	Concurrency       int      `mapstructure:"concurrency"`
	Includes          []string `mapstructure:"includes"`
	Excludes          []string `mapstructure:"excludes"`
}

// VectorStoreConfig 选择向量存储后端。
type VectorStoreConfig struct {
	Driver           string `mapstructure:"driver"` // bolt | elasticsearch
	PersistDirectory string `mapstructure:"persist_directory"`
}

// ElasticsearchConfig 存储 Elasticsearch 相关的配置。
type ElasticsearchConfig struct {
	Addresses string `mapstructure:"addresses"`
	Username  string `mapstructure:"username"`
	Password  string `mapstructure:"password"`
	IndexName string `mapstructure:"index_name"`
	Dims      int    `mapstructure:"dims"`
}

// RedisConfig 存储 Redis 的配置。Addr 为空时不启用。
type RedisConfig struct {
	Addr       string `mapstructure:"addr"`
	Password   string `mapstructure:"password"`
	DB         int    `mapstructure:"db"`
	NameSetKey string `mapstructure:"name_set_key"`
}

// MySQLConfig 存储 MySQL 的配置。DSN 为空时不启用文档台账。
type MySQLConfig struct {
	DSN string `mapstructure:"dsn"`
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

// MinIOConfig 存储 MinIO 对象存储的配置。
type MinIOConfig struct {
	Endpoint        string `mapstructure:"endpoint"`
	AccessKeyID     string `mapstructure:"access_key_id"`
	SecretAccessKey string `mapstructure:"secret_access_key"`
	UseSSL          bool   `mapstructure:"use_ssl"`
	BucketName      string `mapstructure:"bucket_name"`
	Prefix          string `mapstructure:"prefix"`
}

// EmbeddingConfig 存储 Embedding 模型相关的配置。
type EmbeddingConfig struct {
	Provider   string `mapstructure:"provider"` // ollama | openai
	APIKey     string `mapstructure:"api_key"`
	BaseURL    string `mapstructure:"base_url"`
	Model      string `mapstructure:"model"`
	Dimensions int    `mapstructure:"dimensions"`
}

// LLMConfig 存储生成后端相关的配置。
type LLMConfig struct {
	Host    string        `mapstructure:"host"`
	Port    string        `mapstructure:"port"`
	BaseURL string        `mapstructure:"base_url"`
	Model   string        `mapstructure:"model"`
	Timeout time.Duration `mapstructure:"timeout"`
}

// Endpoint 返回生成后端的根地址，BaseURL 优先。
func (c LLMConfig) Endpoint() string {
	if c.BaseURL != "" {
		return strings.TrimRight(c.BaseURL, "/")
	}
	return fmt.Sprintf("http://%s:%s", c.Host, c.Port)
}

// RetrievalConfig 检索参数。
type RetrievalConfig struct {
	K int `mapstructure:"k"`
}

// JWTConfig 存储管理接口令牌的配置。Secret 为空时管理接口关闭。
type JWTConfig struct {
	Secret      string `mapstructure:"secret"`
	ExpireHours int    `mapstructure:"expire_hours"`
}

// 历史部署使用的环境变量名。
var legacyEnv = map[string]string{
	"ingest.chunk_size":         "CHUNK_SIZE",
	"ingest.chunk_overlap":      "CHUNK_OVERLAP",
	"ingest.max_batch_size":     "MAX_BATCH_SIZE",
	"ingest.document_directory": "DOCUMENT_DIRECTORY",
	"llm.port":                  "LLM_PORT",
	"retrieval.k":               "K",
	"server.port":               "REST_PORT",
	"server.debug":              "REST_DEBUG",
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", "5001")
	v.SetDefault("server.mode", "")
	v.SetDefault("server.debug", true)
	v.SetDefault("server.read_timeout", 30*time.Second)
	v.SetDefault("server.write_timeout", 15*time.Minute)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "console")
	v.SetDefault("log.output_path", "")

	v.SetDefault("ingest.document_directory", "./documents")
	v.SetDefault("ingest.source", "fs")
	v.SetDefault("ingest.chunk_size", 1000)
	v.SetDefault("ingest.chunk_overlap", 200)
	v.SetDefault("ingest.max_batch_size", 5461)
	v.SetDefault("ingest.concurrency", 0)
	v.SetDefault("ingest.includes", []string{})
	v.SetDefault("ingest.excludes", []string{})

	v.SetDefault("vectorstore.driver", "bolt")
	v.SetDefault("vectorstore.persist_directory", "./vector_db")

	v.SetDefault("elasticsearch.addresses", "http://localhost:9200")
	v.SetDefault("elasticsearch.username", "")
	v.SetDefault("elasticsearch.password", "")
	v.SetDefault("elasticsearch.index_name", "docrag_chunks")
	v.SetDefault("elasticsearch.dims", 768)

	v.SetDefault("redis.addr", "")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.name_set_key", "docrag:indexed_names")

	v.SetDefault("mysql.dsn", "")

	v.SetDefault("kafka.brokers", "")
	v.SetDefault("kafka.topic", "docrag-ingest")
	v.SetDefault("kafka.group_id", "docrag-ingest-consumer")

	v.SetDefault("minio.endpoint", "")
	v.SetDefault("minio.access_key_id", "")
	v.SetDefault("minio.secret_access_key", "")
	v.SetDefault("minio.use_ssl", false)
	v.SetDefault("minio.bucket_name", "documents")
	v.SetDefault("minio.prefix", "")

	v.SetDefault("tika.server_url", "")

	v.SetDefault("embedding.provider", "ollama")
	v.SetDefault("embedding.api_key", "")
	v.SetDefault("embedding.base_url", "http://localhost:11434")
	v.SetDefault("embedding.model", "nomic-embed-text")
	v.SetDefault("embedding.dimensions", 0)

	v.SetDefault("llm.host", "localhost")
	v.SetDefault("llm.port", "11434")
	v.SetDefault("llm.base_url", "")
	v.SetDefault("llm.model", "llama3.1:8b")
	v.SetDefault("llm.timeout", 600*time.Second)

	v.SetDefault("retrieval.k", 3)

	v.SetDefault("jwt.secret", "")
	v.SetDefault("jwt.expire_hours", 24)
}

// Load 读取 .env、可选的 YAML 文件以及环境变量，返回合并后的配置。
// configPath 为空或文件不存在时只使用默认值和环境变量。
func Load(configPath string) (Config, error) {
	var cfg Config

	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return cfg, fmt.Errorf("读取 .env 文件失败: %w", err)
	}

	v := viper.New()
	setDefaults(v)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for key, env := range legacyEnv {
		if err := v.BindEnv(key, strings.ToUpper(strings.ReplaceAll(key, ".", "_")), env); err != nil {
			return cfg, fmt.Errorf("绑定环境变量 %s 失败: %w", env, err)
		}
	}

	if configPath != "" {
		if _, err := os.Stat(configPath); err == nil {
			v.SetConfigFile(configPath)
			v.SetConfigType("yaml")
			if err := v.ReadInConfig(); err != nil {
				return cfg, fmt.Errorf("读取配置文件失败: %w", err)
			}
		}
	}

	if err := v.Unmarshal(&cfg); err != nil {
		return cfg, fmt.Errorf("无法将配置解析到结构体中: %w", err)
	}
	return cfg, nil
}

// Init 加载配置到全局变量 Conf，失败时 panic。
func Init(configPath string) {
	cfg, err := Load(configPath)
	if err != nil {
		panic(err)
	}
	Conf = cfg
}
