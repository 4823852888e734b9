package config

import (
	"bytes"
	_ "embed"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// DefaultConfigYAML 内置默认配置
//
//go:embed default.yaml
var DefaultConfigYAML []byte

// Config 应用配置
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	DeepSeek DeepSeekConfig `mapstructure:"deepseek"`
	Chat     ChatConfig     `mapstructure:"chat"`
	Log      LogConfig      `mapstructure:"log"`
}

// ServerConfig 服务器配置
type ServerConfig struct {
	Port            string        `mapstructure:"port"`
	Mode            string        `mapstructure:"mode"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// DatabaseConfig 数据库配置，URL 为空时使用内存存储
type DatabaseConfig struct {
	URL          string `mapstructure:"url"`
	MaxIdleConns int    `mapstructure:"max_idle_conns"`
	MaxOpenConns int    `mapstructure:"max_open_conns"`
	LogLevel     string `mapstructure:"log_level"`
}

// DeepSeekConfig 模型服务配置
type DeepSeekConfig struct {
	BaseURL       string        `mapstructure:"base_url"`
	APIKey        string        `mapstructure:"api_key"`
	ChatModel     string        `mapstructure:"chat_model"`
	ReasonerModel string        `mapstructure:"reasoner_model"`
	Temperature   float32       `mapstructure:"temperature"`
	MaxTokens     int           `mapstructure:"max_tokens"`
	Timeout       time.Duration `mapstructure:"timeout"`
	KeepReasoning bool          `mapstructure:"keep_reasoning"`
}

// ChatConfig 会话相关配置
type ChatConfig struct {
	TitleMaxLength int `mapstructure:"title_max_length"`
}

// LogConfig 日志配置
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// UseDatabase 是否启用持久化存储
func (c *Config) UseDatabase() bool {
	return strings.TrimSpace(c.Database.URL) != ""
}

var (
	// GlobalConfig 全局配置实例
	GlobalConfig *Config
)

// 兼容原有部署使用的环境变量名
var envAliases = map[string]string{
	"database.url":     "DATABASE_URL",
	"deepseek.api_key": "DEEPSEEK_API_KEY",
	"server.port":      "PORT",
}

// LoadConfig 加载配置
// 优先级: 环境变量 > 外部配置文件 > 嵌入的默认配置
// configPath: 可选的外部配置文件路径
func LoadConfig(configPath string) (*Config, error) {
	// .env 仅用于本地开发，不存在时忽略
	if err := godotenv.Load(); err == nil {
		log.Println("已加载 .env 文件")
	}

	v := viper.New()
	v.SetConfigType("yaml")

	// 1. 首先加载嵌入的默认配置
	if err := v.ReadConfig(bytes.NewReader(DefaultConfigYAML)); err != nil {
		return nil, fmt.Errorf("读取内置配置失败: %w", err)
	}

	// 2. 尝试加载外部配置文件（可选，用于覆盖默认配置）
	if configPath != "" {
		v.SetConfigFile(configPath)
		if err := v.MergeInConfig(); err != nil {
			log.Printf("警告: 无法读取指定配置文件 %s: %v", configPath, err)
		} else {
			log.Printf("已合并外部配置文件: %s", configPath)
		}
	} else {
		externalViper := viper.New()
		externalViper.SetConfigName("config")
		externalViper.SetConfigType("yaml")
		externalViper.AddConfigPath(".")
		externalViper.AddConfigPath("./config")
		externalViper.AddConfigPath("/etc/drxchat")
		externalViper.AddConfigPath("$HOME/.drxchat")

		if err := externalViper.ReadInConfig(); err == nil {
			if err := v.MergeConfigMap(externalViper.AllSettings()); err != nil {
				log.Printf("警告: 合并外部配置失败: %v", err)
			} else {
				log.Printf("已合并外部配置文件: %s", externalViper.ConfigFileUsed())
			}
		}
	}

	// 3. 环境变量覆盖，例如 DRX_DEEPSEEK_BASE_URL
	v.SetEnvPrefix("DRX")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for key, env := range envAliases {
		if err := v.BindEnv(key, "DRX_"+strings.ToUpper(strings.ReplaceAll(key, ".", "_")), env); err != nil {
			return nil, fmt.Errorf("绑定环境变量 %s 失败: %w", env, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("解析配置失败: %w", err)
	}

	cfg.normalize()

	GlobalConfig = &cfg

	return &cfg, nil
}

// normalize 补齐缺省值
func (c *Config) normalize() {
	if c.Server.Port != "" && !strings.HasPrefix(c.Server.Port, ":") && !strings.Contains(c.Server.Port, ":") {
		c.Server.Port = ":" + c.Server.Port
	}
	if c.Server.ShutdownTimeout <= 0 {
		c.Server.ShutdownTimeout = 15 * time.Second
	}
	if c.Chat.TitleMaxLength <= 3 {
		c.Chat.TitleMaxLength = 50
	}
	if c.DeepSeek.MaxTokens <= 0 {
		c.DeepSeek.MaxTokens = 32768
	}
	c.DeepSeek.BaseURL = strings.TrimRight(c.DeepSeek.BaseURL, "/")
}

// MustLoadConfig 加载配置，失败则 panic
func MustLoadConfig(configPath string) *Config {
	cfg, err := LoadConfig(configPath)
	if err != nil {
		panic(fmt.Sprintf("加载配置失败: %v", err))
	}
	return cfg
}

// SafeErrorMessage 非 debug 模式下不向客户端暴露内部错误详情
func SafeErrorMessage(err error, fallback string) string {
	if err == nil {
		return fallback
	}
	if GlobalConfig != nil && GlobalConfig.Server.Mode != "debug" {
		return fallback
	}
	return err.Error()
}

// Summary 当前配置摘要（隐藏敏感信息）
func (c *Config) Summary() map[string]any {
	storage := "memory"
	if c.UseDatabase() {
		storage = "database"
	}
	return map[string]any{
		"port":           c.Server.Port,
		"mode":           c.Server.Mode,
		"storage":        storage,
		"deepseek_url":   c.DeepSeek.BaseURL,
		"api_key_set":    c.DeepSeek.APIKey != "",
		"keep_reasoning": c.DeepSeek.KeepReasoning,
	}
}
