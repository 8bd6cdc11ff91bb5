// Package store 提供 core.Store 的实现：MemoryStore 与 RedisStore。
// 接口定义在 core 包。
package store

import (
	"context"
	"fmt"

	"github.com/rushteam/movierec/core"
)

// Config 描述一个存储后端。
type Config struct {
	// Kind 后端类型：memory / redis
	Kind     string `koanf:"kind" validate:"omitempty,oneof=memory redis"`
	Addr     string `koanf:"addr" validate:"required_if=Kind redis"`
	Password string `koanf:"password"`
	DB       int    `koanf:"db" validate:"gte=0"`
}

// Open 按配置创建存储后端，Kind 为空时使用 memory。
func Open(ctx context.Context, cfg Config) (core.Store, error) {
	switch cfg.Kind {
	case "", "memory":
		return NewMemoryStore(), nil
	case "redis":
		return NewRedisStore(ctx, cfg.Addr, cfg.Password, cfg.DB)
	default:
		return nil, fmt.Errorf("open store %q: %w", cfg.Kind, core.ErrStoreNotSupported)
	}
}
