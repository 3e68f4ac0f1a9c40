// Package config 负责加载和管理应用程序的配置。
//
// 配置来源的优先级（从高到低）：secrets 文件 → 环境变量 → config.yaml → 内置默认值。
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// 全局配置变量，存储从配置文件加载的所有设置。
var Conf Config

// 凭证来源，写入 sink 状态便于排查。
const (
	SourceSecrets     = "secrets"
	SourceEnvironment = "environment"
)

// Config 是整个应用程序的配置结构体，与 config.yaml 文件结构对应。
type Config struct {
	Server  ServerConfig  `mapstructure:"server"`
	Log     LogConfig     `mapstructure:"log"`
	Redis   RedisConfig   `mapstructure:"redis"`
	Session SessionConfig `mapstructure:"session"`
	JWT     JWTConfig     `mapstructure:"jwt"`
	Report  ReportConfig  `mapstructure:"report"`
	Sheets  SheetsConfig  `mapstructure:"sheets"`
	Sink    SinkConfig    `mapstructure:"sink"`
	Kafka   KafkaConfig   `mapstructure:"kafka"`
	MySQL   MySQLConfig   `mapstructure:"mysql"`
}

// ServerConfig 存储服务器相关的配置。
type ServerConfig struct {
	Port string `mapstructure:"port"`
	Mode string `mapstructure:"mode"`
}

// LogConfig 存储日志相关的配置。
type LogConfig struct {
	Level      string `mapstructure:"level"`
	Format     string `mapstructure:"format"`
	OutputPath string `mapstructure:"output_path"`
}

// RedisConfig 存储 Redis 的配置。
type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// SessionConfig 控制浏览器会话的存储方式与有效期。
type SessionConfig struct {
	Store string        `mapstructure:"store"` // "redis" 或 "memory"
	TTL   time.Duration `mapstructure:"ttl"`
}

// JWTConfig 存储会话令牌相关的配置。
type JWTConfig struct {
	Secret string `mapstructure:"secret"`
}

// ReportConfig 存储报告生成服务的地址与超时。
type ReportConfig struct {
	BaseURL         string        `mapstructure:"base_url"`
	GenerateTimeout time.Duration `mapstructure:"generate_timeout"`
	FeedbackTimeout time.Duration `mapstructure:"feedback_timeout"`
	HealthTimeout   time.Duration `mapstructure:"health_timeout"`
	ProgressDelay   time.Duration `mapstructure:"progress_delay"`
}

// SheetsConfig 存储 Google Sheets 日志的配置。
type SheetsConfig struct {
	Credentials       string `mapstructure:"credentials"` // service account JSON
	CredentialsSource string `mapstructure:"-"`
	SpreadsheetID     string `mapstructure:"spreadsheet_id"`
	Title             string `mapstructure:"title"`
}

// SinkConfig 决定日志写入的后端和投递方式。
type SinkConfig struct {
	Backend  string `mapstructure:"backend"`  // "sheets" 或 "mysql"
	Dispatch string `mapstructure:"dispatch"` // "direct" 或 "kafka"
}

// KafkaConfig 存储 Kafka 相关的配置。
type KafkaConfig struct {
	Brokers string `mapstructure:"brokers"`
	Topic   string `mapstructure:"topic"`
	GroupID string `mapstructure:"group_id"`
}

// MySQLConfig 存储 MySQL 数据库的配置。
type MySQLConfig struct {
	DSN string `mapstructure:"dsn"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", "8501")
	v.SetDefault("server.mode", "release")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("log.output_path", "")
	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("session.store", "redis")
	v.SetDefault("session.ttl", "24h")
	v.SetDefault("jwt.secret", "change-me")
	v.SetDefault("report.base_url", "http://localhost:8000")
	v.SetDefault("report.generate_timeout", "300s")
	v.SetDefault("report.feedback_timeout", "10s")
	v.SetDefault("report.health_timeout", "2s")
	v.SetDefault("report.progress_delay", "500ms")
	v.SetDefault("sheets.credentials", "")
	v.SetDefault("sheets.spreadsheet_id", "")
	v.SetDefault("sheets.title", "RAG Report Generator Logs")
	v.SetDefault("sink.backend", "sheets")
	v.SetDefault("sink.dispatch", "direct")
	v.SetDefault("kafka.brokers", "localhost:9092")
	v.SetDefault("kafka.topic", "report-desk-logs")
	v.SetDefault("kafka.group_id", "report-desk-log-sink")
	v.SetDefault("mysql.dsn", "")
}

// Load 按优先级合并所有配置来源。configPath 或 secretsPath 指向的文件不存在时直接跳过。
func Load(configPath, secretsPath string) (*Config, error) {
	// .env 仅用于本地开发，不覆盖已有的环境变量
	_ = godotenv.Load()

	v := viper.New()
	setDefaults(v)

	if configPath != "" && fileExists(configPath) {
		v.SetConfigFile(configPath)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("读取配置文件失败: %w", err)
		}
	}

	v.SetEnvPrefix("REPORT_DESK")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	// 这三个变量沿用部署环境中已有的名字
	_ = v.BindEnv("report.base_url", "API_BASE_URL")
	_ = v.BindEnv("sheets.credentials", "GOOGLE_SHEETS_CREDENTIALS")
	_ = v.BindEnv("sheets.spreadsheet_id", "GOOGLE_SHEETS_ID")

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("无法将配置解析到结构体中: %w", err)
	}
	if cfg.Sheets.Credentials != "" {
		cfg.Sheets.CredentialsSource = SourceEnvironment
	}

	if secretsPath != "" && fileExists(secretsPath) {
		if err := applySecrets(&cfg, secretsPath); err != nil {
			return nil, err
		}
	}
	return &cfg, nil
}

// applySecrets 用 secrets 文件中的值覆盖配置，键名与托管 secrets 保持一致。
func applySecrets(cfg *Config, secretsPath string) error {
	s := viper.New()
	s.SetConfigFile(secretsPath)
	s.SetConfigType("toml")
	if err := s.ReadInConfig(); err != nil {
		return fmt.Errorf("读取 secrets 文件失败: %w", err)
	}

	if s.IsSet("api_base_url") {
		cfg.Report.BaseURL = s.GetString("api_base_url")
	}
	if s.IsSet("google_sheets_id") {
		cfg.Sheets.SpreadsheetID = s.GetString("google_sheets_id")
	}
	if s.IsSet("gcp_service_account") {
		account := s.GetStringMap("gcp_service_account")
		if len(account) == 0 {
			return errors.New("secrets 中的 gcp_service_account 不是一个表")
		}
		raw, err := json.Marshal(account)
		if err != nil {
			return fmt.Errorf("序列化 gcp_service_account 失败: %w", err)
		}
		cfg.Sheets.Credentials = string(raw)
		cfg.Sheets.CredentialsSource = SourceSecrets
	}
	return nil
}

// Init 初始化配置加载，解析到 Conf 变量中。失败时直接 panic。
func Init(configPath, secretsPath string) {
	cfg, err := Load(configPath, secretsPath)
	if err != nil {
		panic(err)
	}
	Conf = *cfg
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
