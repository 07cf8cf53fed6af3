package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	xerrors "BankAgent/internal/errors"
)

// RedisConfig 描述 Redis 会话存储的连接参数。
type RedisConfig struct {
	Address  string
	Password string
	DB       int
	Prefix   string
	TTL      time.Duration
}

// RedisStore 为每个会话维护一个 Redis list，每次写入都会刷新过期时间。
type RedisStore struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

// NewRedisStore 创建 Redis 会话存储。
func NewRedisStore(cfg RedisConfig) (*RedisStore, error) {
	if cfg.Address == "" {
		return nil, errors.New("Redis address 不能为空")
	}
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Address,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err := client.Ping(context.Background()).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("连接 Redis 失败: %w", err)
	}
	return NewRedisStoreWithClient(client, cfg.Prefix, cfg.TTL), nil
}

// NewRedisStoreWithClient 使用已有的客户端创建存储。
func NewRedisStoreWithClient(client *redis.Client, prefix string, ttl time.Duration) *RedisStore {
	if prefix == "" {
		prefix = "bankagent:session"
	}
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &RedisStore{client: client, prefix: prefix, ttl: ttl}
}

func (s *RedisStore) metaKey(sessionID string) string {
	return s.prefix + ":" + sessionID + ":created"
}

func (s *RedisStore) listKey(sessionID string) string {
	return s.prefix + ":" + sessionID + ":messages"
}

// Create 实现 Store 接口。
func (s *RedisStore) Create(ctx context.Context, sessionID string) error {
	if sessionID == "" {
		return xerrors.New(xerrors.CodeInvalidArgument, "会话 ID 不能为空")
	}
	created := strconv.FormatInt(time.Now().Unix(), 10)
	if err := s.client.SetNX(ctx, s.metaKey(sessionID), created, s.ttl).Err(); err != nil {
		return xerrors.Wrap(xerrors.CodeStorageFailure, err, "创建会话失败")
	}
	return nil
}

// Exists 实现 Store 接口。
func (s *RedisStore) Exists(ctx context.Context, sessionID string) (bool, error) {
	n, err := s.client.Exists(ctx, s.metaKey(sessionID)).Result()
	if err != nil {
		return false, xerrors.Wrap(xerrors.CodeStorageFailure, err, "查询会话失败")
	}
	return n > 0, nil
}

// Append 实现 Store 接口。
func (s *RedisStore) Append(ctx context.Context, sessionID string, msg Message) error {
	exists, err := s.Exists(ctx, sessionID)
	if err != nil {
		return err
	}
	if !exists {
		return xerrors.New(xerrors.CodeNotFound, "会话不存在", xerrors.WithMetadata("session_id", sessionID))
	}
	payload, err := json.Marshal(msg)
	if err != nil {
		return xerrors.Wrap(xerrors.CodeInvalidArgument, err, "序列化消息失败")
	}
	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.RPush(ctx, s.listKey(sessionID), payload)
		pipe.Expire(ctx, s.listKey(sessionID), s.ttl)
		pipe.Expire(ctx, s.metaKey(sessionID), s.ttl)
		return nil
	})
	if err != nil {
		return xerrors.Wrap(xerrors.CodeStorageFailure, err, "写入会话记录失败")
	}
	return nil
}

// History 实现 Store 接口。
func (s *RedisStore) History(ctx context.Context, sessionID string, limit int) ([]Message, error) {
	exists, err := s.Exists(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, xerrors.New(xerrors.CodeNotFound, "会话不存在", xerrors.WithMetadata("session_id", sessionID))
	}
	start := int64(0)
	if limit > 0 {
		start = -int64(limit)
	}
	values, err := s.client.LRange(ctx, s.listKey(sessionID), start, -1).Result()
	if err != nil {
		return nil, xerrors.Wrap(xerrors.CodeStorageFailure, err, "读取会话记录失败")
	}
	messages := make([]Message, 0, len(values))
	for _, value := range values {
		var msg Message
		if err := json.Unmarshal([]byte(value), &msg); err != nil {
			return nil, xerrors.Wrap(xerrors.CodeStorageFailure, err, "解析会话记录失败")
		}
		messages = append(messages, msg)
	}
	return messages, nil
}

// Close 关闭 Redis 连接。
func (s *RedisStore) Close() error {
	if s == nil || s.client == nil {
		return nil
	}
	return s.client.Close()
}

var _ Store = (*RedisStore)(nil)
