package store

import (
	"fmt"

	"github.com/rushteam/inferkit/core"
)

// Config 存储配置。
type Config struct {
	Type     string `yaml:"type" json:"type"` // memory / redis / bolt
	Addr     string `yaml:"addr" json:"addr"`
	Password string `yaml:"password" json:"password"`
	DB       int    `yaml:"db" json:"db"`
	Path     string `yaml:"path" json:"path"`
	TTL      int    `yaml:"ttl" json:"ttl"` // 秒，0 表示不过期
}

// DefaultBoltPath bolt 存储的默认文件位置。
const DefaultBoltPath = ".inferkit/results.db"

// NewStore 按类型创建存储，空类型视为 memory。
func NewStore(cfg Config) (core.Store, error) {
	switch cfg.Type {
	case "", "memory":
		return NewMemoryStore(), nil
	case "redis":
		addr := cfg.Addr
		if addr == "" {
			addr = "localhost:6379"
		}
		return NewRedisStore(addr, cfg.Password, cfg.DB)
	case "bolt":
		path := cfg.Path
		if path == "" {
			path = DefaultBoltPath
		}
		return NewBoltStore(path)
	}
	return nil, core.NewDomainError(core.ModuleStore, core.ErrorCodeNotSupported,
		fmt.Sprintf("unsupported store type: %s (supported: memory, redis, bolt)", cfg.Type))
}
