// Package app wires configuration into a running set of components shared by
// the HTTP daemon and the terminal client.
package app

import (
	"context"
	"errors"
	"log/slog"

	"BankAgent/internal/agent"
	"BankAgent/internal/chat"
	"BankAgent/internal/config"
	"BankAgent/internal/events"
	"BankAgent/internal/ledger"
	"BankAgent/internal/llm/openai"
	"BankAgent/internal/reply"
	"BankAgent/internal/session"
	"BankAgent/internal/tools"
	"BankAgent/pkg/logger"
)

// App 持有启动后的全部组件。
type App struct {
	Config *config.Config
	Ledger *ledger.Ledger
	Chat   *chat.Service

	publisher events.Publisher
}

// New 根据配置构建组件。未配置 API Key 时对话服务仍可用，只是每轮都返回提示信息。
func New(_ context.Context, cfg *config.Config) (*App, error) {
	log := logger.Named("app")

	seeds, err := cfg.Ledger.Seeds()
	if err != nil {
		return nil, err
	}
	l, err := ledger.New(seeds)
	if err != nil {
		return nil, err
	}

	publisher, err := newPublisher(cfg.Events)
	if err != nil {
		return nil, err
	}

	store, err := newSessionStore(cfg.Session)
	if err != nil {
		_ = publisher.Close()
		return nil, err
	}

	registry := tools.NewBankRegistry(tools.NewBank(l, tools.WithPublisher(publisher)))
	opts := []chat.Option{
		chat.WithStore(store),
		chat.WithHistoryLimit(cfg.Agent.HistoryDepth),
	}

	apiKey := cfg.LLM.ResolvedAPIKey()
	if apiKey == "" {
		log.Warn("未配置 API Key，对话将返回配置提示", slog.String("provider", cfg.LLM.Provider))
	} else {
		client, err := openai.NewClient(openai.Config{
			Provider: cfg.LLM.Provider,
			APIKey:   apiKey,
			BaseURL:  cfg.LLM.BaseURL,
			Model:    cfg.LLM.Model,
			Timeout:  cfg.LLM.Timeout(),
		})
		if err != nil {
			_ = store.Close()
			_ = publisher.Close()
			return nil, err
		}
		ag := agent.New(client, registry,
			agent.WithMaxSteps(cfg.Agent.MaxSteps),
			agent.WithHistoryDepth(cfg.Agent.HistoryDepth),
			agent.WithSystemPrompt(cfg.Agent.SystemPrompt),
			agent.WithLLMTimeout(cfg.LLM.Timeout()),
		)
		opts = append(opts, chat.WithInvoker(ag))
		log.Info("大模型客户端已就绪",
			slog.String("provider", client.Provider()),
			slog.String("model", client.Model()),
		)
	}

	return &App{
		Config:    cfg,
		Ledger:    l,
		Chat:      chat.NewService(reply.NewInterpreter(registry), opts...),
		publisher: publisher,
	}, nil
}

// Close 释放会话存储与事件发布器。
func (a *App) Close() error {
	return errors.Join(a.Chat.Close(), a.publisher.Close())
}

func newPublisher(cfg config.EventsConfig) (events.Publisher, error) {
	if cfg.Driver != "rabbitmq" {
		return events.LogPublisher{}, nil
	}
	return events.NewRabbitMQPublisher(events.RabbitMQConfig{
		URL:     cfg.RabbitMQ.URL,
		Queue:   cfg.RabbitMQ.Queue,
		Durable: cfg.RabbitMQ.Durable,
	})
}

func newSessionStore(cfg config.SessionConfig) (session.Store, error) {
	if cfg.Driver != "redis" {
		return session.NewMemoryStore(), nil
	}
	return session.NewRedisStore(session.RedisConfig{
		Address:  cfg.Redis.Address,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
		Prefix:   cfg.Redis.Prefix,
		TTL:      cfg.Redis.TTL(),
	})
}
