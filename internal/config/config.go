package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config 应用配置
type Config struct {
	App        AppConfig
	Server     ServerConfig
	Storage    StorageConfig
	File       FileConfig
	Redis      RedisConfig
	AI         AIConfig
	RateLimit  RateLimitConfig
	Scheduler  SchedulerConfig
	Image      ImageConfig
	Moderation ModerationConfig
	Lore       LoreConfig
}

// AppConfig 应用配置
type AppConfig struct {
	Name        string
	Environment string
	Version     string
	Debug       bool
}

// ServerConfig 服务器配置
type ServerConfig struct {
	Host         string
	Port         int
	Mode         string
	ReadTimeout  int
	WriteTimeout int
}

// StorageConfig 文档存储配置
type StorageConfig struct {
	DataDir   string
	BackupDir string
}

// FileConfig 头像文件存储配置
type FileConfig struct {
	Type      string // local, minio, s3
	LocalPath string
	URLPrefix string
	MinIO     MinIOConfig
	S3        S3Config
}

// MinIOConfig MinIO 配置
type MinIOConfig struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
	URLPrefix string
}

// S3Config S3 配置
type S3Config struct {
	Region    string
	AccessKey string
	SecretKey string
	Bucket    string
	URLPrefix string
}

// RedisConfig Redis配置
type RedisConfig struct {
	Enabled  bool
	Host     string
	Port     int
	Password string
	DB       int
}

// AIConfig AI配置
type AIConfig struct {
	Provider    string
	OpenAI      ProviderConfig
	DeepSeek    ProviderConfig
	Timeout     time.Duration
	MaxTokens   int
	Temperature float32
}

// ProviderConfig OpenAI 兼容服务配置
type ProviderConfig struct {
	APIKey  string
	BaseURL string
	Model   string
}

// QuotaConfig 滑动窗口配额
type QuotaConfig struct {
	Max    int
	Window time.Duration
}

// RateLimitConfig 限流配置
type RateLimitConfig struct {
	Global        QuotaConfig
	Register      QuotaConfig
	Login         QuotaConfig
	BotUse        QuotaConfig
	DeleteAccount QuotaConfig
	AuthFailures  QuotaConfig
}

// SchedulerConfig 定时任务配置（cron 表达式）
type SchedulerConfig struct {
	TagReindex string
	Backup     string
	Sweep      string
	StatsFlush string
}

// ImageConfig 头像处理配置
type ImageConfig struct {
	BotMaxBytes  int
	UserMaxBytes int
	BotSize      int
	UserSize     int
}

// ModerationConfig 图片审核配置
type ModerationConfig struct {
	Endpoint  string
	Timeout   time.Duration
	Threshold float64
}

// LoreConfig 设定资料抓取配置
type LoreConfig struct {
	Timeout  time.Duration
	MaxBytes int64
}

// Load 加载配置
// 默认值 < 配置文件 < 环境变量
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			// 配置文件可选，缺失时只用默认值和环境变量
			var notFound viper.ConfigFileNotFoundError
			if !errors.Is(err, os.ErrNotExist) && !errors.As(err, &notFound) {
				return nil, fmt.Errorf("failed to read config: %w", err)
			}
		}
	}

	// 环境变量
	v.SetEnvPrefix("PERSONA_HUB")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// GetAddr 获取服务器地址
func (c *ServerConfig) GetAddr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// GetAddr 获取 Redis 地址
func (c *RedisConfig) GetAddr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

func (c *Config) validate() error {
	if c.Storage.DataDir == "" {
		return fmt.Errorf("storage.dataDir is required")
	}
	switch c.File.Type {
	case "local", "minio", "s3":
	default:
		return fmt.Errorf("unsupported file storage type: %s", c.File.Type)
	}
	quotas := map[string]QuotaConfig{
		"global":        c.RateLimit.Global,
		"register":      c.RateLimit.Register,
		"login":         c.RateLimit.Login,
		"botUse":        c.RateLimit.BotUse,
		"deleteAccount": c.RateLimit.DeleteAccount,
		"authFailures":  c.RateLimit.AuthFailures,
	}
	for name, q := range quotas {
		if q.Max <= 0 || q.Window <= 0 {
			return fmt.Errorf("rateLimit.%s: max and window must be positive", name)
		}
	}
	return nil
}

// setDefaults 为每个键设置默认值
// AutomaticEnv 只覆盖 viper 已知的键，没有默认值的键无法只靠环境变量设置
func setDefaults(v *viper.Viper) {
	// App
	v.SetDefault("app.name", "persona-hub")
	v.SetDefault("app.environment", "development")
	v.SetDefault("app.version", "1.0.0")
	v.SetDefault("app.debug", true)

	// Server
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 4000)
	v.SetDefault("server.mode", "debug")
	v.SetDefault("server.readTimeout", 30)
	v.SetDefault("server.writeTimeout", 120)

	// Storage
	v.SetDefault("storage.dataDir", "./data")
	v.SetDefault("storage.backupDir", "./duplicate")

	// File
	v.SetDefault("file.type", "local")
	v.SetDefault("file.localPath", "./public/assets")
	v.SetDefault("file.urlPrefix", "/assets")
	v.SetDefault("file.minio.endpoint", "")
	v.SetDefault("file.minio.accessKey", "")
	v.SetDefault("file.minio.secretKey", "")
	v.SetDefault("file.minio.bucket", "")
	v.SetDefault("file.minio.useSSL", false)
	v.SetDefault("file.minio.urlPrefix", "")
	v.SetDefault("file.s3.region", "")
	v.SetDefault("file.s3.accessKey", "")
	v.SetDefault("file.s3.secretKey", "")
	v.SetDefault("file.s3.bucket", "")
	v.SetDefault("file.s3.urlPrefix", "")

	// Redis
	v.SetDefault("redis.enabled", false)
	v.SetDefault("redis.host", "localhost")
	v.SetDefault("redis.port", 6379)
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)

	// AI
	v.SetDefault("ai.provider", "openai")
	v.SetDefault("ai.openai.apiKey", "")
	v.SetDefault("ai.openai.baseURL", "https://api.openai.com/v1")
	v.SetDefault("ai.openai.model", "gpt-4o-mini")
	v.SetDefault("ai.deepseek.apiKey", "")
	v.SetDefault("ai.deepseek.baseURL", "https://api.deepseek.com/v1")
	v.SetDefault("ai.deepseek.model", "deepseek-chat")
	v.SetDefault("ai.timeout", "60s")
	v.SetDefault("ai.maxTokens", 500)
	v.SetDefault("ai.temperature", 0.8)

	// RateLimit
	v.SetDefault("rateLimit.global.max", 100)
	v.SetDefault("rateLimit.global.window", "1m")
	v.SetDefault("rateLimit.register.max", 1)
	v.SetDefault("rateLimit.register.window", "24h")
	v.SetDefault("rateLimit.login.max", 3)
	v.SetDefault("rateLimit.login.window", "1m")
	v.SetDefault("rateLimit.botUse.max", 1)
	v.SetDefault("rateLimit.botUse.window", "15m")
	v.SetDefault("rateLimit.deleteAccount.max", 3)
	v.SetDefault("rateLimit.deleteAccount.window", "1m")
	v.SetDefault("rateLimit.authFailures.max", 5)
	v.SetDefault("rateLimit.authFailures.window", "15m")

	// Scheduler
	v.SetDefault("scheduler.tagReindex", "0 * * * *")
	v.SetDefault("scheduler.backup", "30 * * * *")
	v.SetDefault("scheduler.sweep", "*/10 * * * *")
	v.SetDefault("scheduler.statsFlush", "* * * * *")

	// Image
	v.SetDefault("image.botMaxBytes", 5*1024*1024)
	v.SetDefault("image.userMaxBytes", 2*1024*1024)
	v.SetDefault("image.botSize", 512)
	v.SetDefault("image.userSize", 200)

	// Moderation
	v.SetDefault("moderation.endpoint", "")
	v.SetDefault("moderation.timeout", "10s")
	v.SetDefault("moderation.threshold", 0.5)

	// Lore
	v.SetDefault("lore.timeout", "5s")
	v.SetDefault("lore.maxBytes", 64*1024)
}
