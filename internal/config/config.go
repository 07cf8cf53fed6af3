package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"

	"BankAgent/internal/ledger"
	"BankAgent/pkg/logger"
)

// DefaultPath 是未显式指定时尝试读取的配置文件，文件不存在不视为错误。
const DefaultPath = "configs/bankagent.yaml"

// 支持的服务商，与 llm/openai 保持一致。
const (
	ProviderDeepSeek = "deepseek"
	ProviderOpenAI   = "openai"
)

// Config 描述了服务在启动阶段需要加载的全部配置。
type Config struct {
	Server  ServerConfig  `json:"server" yaml:"server"`
	LLM     LLMConfig     `json:"llm" yaml:"llm"`
	Agent   AgentConfig   `json:"agent" yaml:"agent"`
	Session SessionConfig `json:"session" yaml:"session"`
	Events  EventsConfig  `json:"events" yaml:"events"`
	Ledger  LedgerConfig  `json:"ledger" yaml:"ledger"`
	Logging logger.Config `json:"logging" yaml:"logging"`
}

// ServerConfig 控制 API 服务的监听地址与限流参数。
type ServerConfig struct {
	Address        string          `json:"address" yaml:"address"`
	MetricsAddress string          `json:"metrics_address" yaml:"metrics_address"`
	RateLimit      RateLimitConfig `json:"rate_limit" yaml:"rate_limit"`
}

// RateLimitConfig 按客户端限制请求速率，RequestsPerSecond 为 0 时不限流。
type RateLimitConfig struct {
	RequestsPerSecond float64 `json:"requests_per_second" yaml:"requests_per_second"`
	Burst             int     `json:"burst" yaml:"burst"`
}

// LLMConfig 用于配置大模型服务商。
type LLMConfig struct {
	Provider       string `json:"provider" yaml:"provider"`
	Model          string `json:"model" yaml:"model"`
	BaseURL        string `json:"base_url" yaml:"base_url"`
	APIKey         string `json:"api_key" yaml:"api_key"`
	DeepSeekAPIKey string `json:"deepseek_api_key" yaml:"deepseek_api_key"`
	OpenAIAPIKey   string `json:"openai_api_key" yaml:"openai_api_key"`
	TimeoutSeconds int    `json:"timeout_seconds" yaml:"timeout_seconds"`
}

// AgentConfig 控制工具调用循环。
type AgentConfig struct {
	MaxSteps     int    `json:"max_steps" yaml:"max_steps"`
	HistoryDepth int    `json:"history_depth" yaml:"history_depth"`
	SystemPrompt string `json:"system_prompt" yaml:"system_prompt"`
}

// SessionConfig 选择会话记录的存储方式。
type SessionConfig struct {
	Driver string      `json:"driver" yaml:"driver"`
	Redis  RedisConfig `json:"redis" yaml:"redis"`
}

// RedisConfig 描述 Redis 连接信息。
type RedisConfig struct {
	Address    string `json:"address" yaml:"address"`
	Password   string `json:"password" yaml:"password"`
	DB         int    `json:"db" yaml:"db"`
	Prefix     string `json:"prefix" yaml:"prefix"`
	TTLSeconds int    `json:"ttl_seconds" yaml:"ttl_seconds"`
}

// EventsConfig 选择转账事件的发布方式。
type EventsConfig struct {
	Driver   string         `json:"driver" yaml:"driver"`
	RabbitMQ RabbitMQConfig `json:"rabbitmq" yaml:"rabbitmq"`
}

// RabbitMQConfig 描述 RabbitMQ 连接信息。
type RabbitMQConfig struct {
	URL     string `json:"url" yaml:"url"`
	Queue   string `json:"queue" yaml:"queue"`
	Durable bool   `json:"durable" yaml:"durable"`
}

// LedgerConfig 描述启动时的初始账户，为空时使用内置的三个示例账户。
type LedgerConfig struct {
	Accounts []AccountConfig `json:"accounts" yaml:"accounts"`
}

// AccountConfig 是一个初始账户，余额以字符串书写避免精度丢失。
type AccountConfig struct {
	ID      string `json:"id" yaml:"id"`
	Name    string `json:"name" yaml:"name"`
	Balance string `json:"balance" yaml:"balance"`
}

// Load 读取配置文件并叠加 .env 与环境变量。
// path 为空时依次尝试 BANKAGENT_CONFIG 与 DefaultPath，后者不存在时仅使用默认值。
func Load(path string) (*Config, error) {
	if err := LoadDotEnv(".env"); err != nil {
		return nil, err
	}

	explicit := true
	if path == "" {
		path = os.Getenv("BANKAGENT_CONFIG")
	}
	if path == "" {
		path = DefaultPath
		explicit = false
	}

	var cfg Config
	if err := readFile(path, &cfg); err != nil {
		if explicit || !errors.Is(err, fs.ErrNotExist) {
			return nil, err
		}
	}

	cfg.applyEnv()
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// LoadDotEnv 加载 .env 文件，已存在的环境变量不会被覆盖，文件不存在时忽略。
func LoadDotEnv(paths ...string) error {
	for _, path := range paths {
		if err := godotenv.Load(path); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return fmt.Errorf("加载 %s 失败: %w", path, err)
		}
	}
	return nil
}

func readFile(path string, cfg *Config) error {
	content, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("读取配置文件失败: %w", err)
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(content, cfg); err != nil {
			return fmt.Errorf("解析 YAML 配置失败: %w", err)
		}
	case ".json":
		if err := json.Unmarshal(content, cfg); err != nil {
			return fmt.Errorf("解析 JSON 配置失败: %w", err)
		}
	default:
		return fmt.Errorf("不支持的配置文件格式: %s", path)
	}
	return nil
}

// applyEnv 用环境变量覆盖文件中的配置。
func (c *Config) applyEnv() {
	setString(&c.LLM.Provider, "API_PROVIDER")
	setString(&c.LLM.Model, "MODEL_NAME")
	setString(&c.LLM.BaseURL, "API_BASE_URL")
	setString(&c.LLM.DeepSeekAPIKey, "DEEPSEEK_API_KEY")
	setString(&c.LLM.OpenAIAPIKey, "OPENAI_API_KEY")
	setString(&c.Server.Address, "BANKAGENT_ADDR")
	setString(&c.Server.MetricsAddress, "BANKAGENT_METRICS_ADDR")
	setString(&c.Session.Driver, "BANKAGENT_SESSION_DRIVER")
	setString(&c.Session.Redis.Address, "BANKAGENT_REDIS_ADDR")
	setString(&c.Events.Driver, "BANKAGENT_EVENTS_DRIVER")
	setString(&c.Events.RabbitMQ.URL, "BANKAGENT_RABBITMQ_URL")
	setString(&c.Logging.Level, "BANKAGENT_LOG_LEVEL")
	if v := strings.TrimSpace(os.Getenv("BANKAGENT_LLM_TIMEOUT_SECONDS")); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.LLM.TimeoutSeconds = n
		}
	}
}

func setString(target *string, key string) {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		*target = v
	}
}

// applyDefaults 在用户未填写部分字段时设置合理的默认值。
func (c *Config) applyDefaults() {
	if c.Server.Address == "" {
		c.Server.Address = ":8080"
	}
	if c.Server.RateLimit.RequestsPerSecond > 0 && c.Server.RateLimit.Burst <= 0 {
		c.Server.RateLimit.Burst = int(c.Server.RateLimit.RequestsPerSecond) + 1
	}

	c.LLM.Provider = strings.ToLower(strings.TrimSpace(c.LLM.Provider))
	if c.LLM.Provider == "" {
		c.LLM.Provider = ProviderDeepSeek
	}
	if c.LLM.Model == "" {
		if c.LLM.Provider == ProviderOpenAI {
			c.LLM.Model = "gpt-3.5-turbo"
		} else {
			c.LLM.Model = "deepseek-chat"
		}
	}
	if c.LLM.TimeoutSeconds <= 0 {
		c.LLM.TimeoutSeconds = 60
	}

	if c.Agent.MaxSteps <= 0 {
		c.Agent.MaxSteps = 5
	}
	if c.Agent.HistoryDepth <= 0 {
		c.Agent.HistoryDepth = 20
	}

	if c.Session.Driver == "" {
		c.Session.Driver = "memory"
	}
	if c.Session.Redis.Prefix == "" {
		c.Session.Redis.Prefix = "bankagent:session"
	}
	if c.Session.Redis.TTLSeconds <= 0 {
		c.Session.Redis.TTLSeconds = int((24 * time.Hour).Seconds())
	}

	if c.Events.Driver == "" {
		c.Events.Driver = "log"
	}
	if c.Events.RabbitMQ.Queue == "" {
		c.Events.RabbitMQ.Queue = "bankagent.transfers"
	}
}

// Validate 校验取值范围。
func (c *Config) Validate() error {
	switch c.LLM.Provider {
	case ProviderDeepSeek, ProviderOpenAI:
	default:
		return fmt.Errorf("未知的大模型 provider: %s", c.LLM.Provider)
	}
	switch c.Session.Driver {
	case "memory":
	case "redis":
		if c.Session.Redis.Address == "" {
			return errors.New("session.driver 为 redis 时必须配置 session.redis.address")
		}
	default:
		return fmt.Errorf("未知的会话存储: %s", c.Session.Driver)
	}
	switch c.Events.Driver {
	case "log":
	case "rabbitmq":
		if c.Events.RabbitMQ.URL == "" {
			return errors.New("events.driver 为 rabbitmq 时必须配置 events.rabbitmq.url")
		}
	default:
		return fmt.Errorf("未知的事件发布方式: %s", c.Events.Driver)
	}
	if _, err := c.Ledger.Seeds(); err != nil {
		return err
	}
	return nil
}

// ResolvedAPIKey 返回当前服务商对应的凭证。显式配置的 llm.api_key 优先。
func (c LLMConfig) ResolvedAPIKey() string {
	if key := strings.TrimSpace(c.APIKey); key != "" {
		return key
	}
	if c.Provider == ProviderOpenAI {
		return strings.TrimSpace(c.OpenAIAPIKey)
	}
	return strings.TrimSpace(c.DeepSeekAPIKey)
}

// Timeout 返回单次调用大模型的超时时间。
func (c LLMConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// TTL 返回会话的过期时间。
func (c RedisConfig) TTL() time.Duration {
	return time.Duration(c.TTLSeconds) * time.Second
}

// Seeds 将初始账户转换为账本种子数据。
func (c LedgerConfig) Seeds() ([]ledger.Seed, error) {
	if len(c.Accounts) == 0 {
		return ledger.DefaultSeeds(), nil
	}
	seeds := make([]ledger.Seed, 0, len(c.Accounts))
	for _, account := range c.Accounts {
		balance, err := decimal.NewFromString(strings.TrimSpace(account.Balance))
		if err != nil {
			return nil, fmt.Errorf("账户 %s 的初始余额无效: %w", account.ID, err)
		}
		seeds = append(seeds, ledger.Seed{ID: account.ID, Name: account.Name, Balance: balance})
	}
	return seeds, nil
}
