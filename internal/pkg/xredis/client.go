package xredis

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"grant-settlement-sol/internal/pkg/logger"
)

const modRedis = "xredis"

type RedisConfig struct {
	Addr     []string `json:"Addr"`              // 地址列表（单机、哨兵、集群）
	Username string   `json:"Username,optional"` // ACL 用户名
	Password string   `json:"Password,optional"` // 密码
	DB       int      `json:"DB,optional"`       // 数据库编号（单机/哨兵模式下有效）
	PoolSize int      `json:"PoolSize,optional"` // 最大连接池大小
	MinIdle  int      `json:"MinIdle,optional"`  // 最小空闲连接数

	DialTimeout  int `json:"DialTimeout,optional"`  // 建立连接超时（秒）
	ReadTimeout  int `json:"ReadTimeout,optional"`  // 读超时（秒）
	WriteTimeout int `json:"WriteTimeout,optional"` // 写超时（秒）

	TlsEnabled         bool `json:"TlsEnabled,optional"`
	InsecureSkipVerify bool `json:"InsecureSkipVerify,optional"` // 仅开发环境
}

// NewClient 创建 UniversalClient 并 ping 一次，失败时关闭连接
func NewClient(cfg RedisConfig) (redis.UniversalClient, error) {
	if len(cfg.Addr) == 0 {
		return nil, errors.New("redis addr is empty")
	}
	ensureConfig(&cfg)

	opts := redis.UniversalOptions{
		Addrs:                 cfg.Addr,
		Username:              cfg.Username,
		Password:              cfg.Password,
		DB:                    cfg.DB,
		DialTimeout:           time.Duration(cfg.DialTimeout) * time.Second,
		ReadTimeout:           time.Duration(cfg.ReadTimeout) * time.Second,
		WriteTimeout:          time.Duration(cfg.WriteTimeout) * time.Second,
		PoolSize:              cfg.PoolSize,
		MinIdleConns:          cfg.MinIdle,
		ContextTimeoutEnabled: true,
	}
	if cfg.TlsEnabled {
		roots, err := x509.SystemCertPool()
		if err != nil {
			return nil, fmt.Errorf("get system cert pool error: %w", err)
		}
		opts.TLSConfig = &tls.Config{
			RootCAs:            roots,
			MinVersion:         tls.VersionTLS12,
			InsecureSkipVerify: cfg.InsecureSkipVerify,
		}
	}

	c := redis.NewUniversalClient(&opts)

	pingCtx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.DialTimeout)*time.Second)
	defer cancel()
	if err := c.Ping(pingCtx).Err(); err != nil {
		_ = c.Close()
		logger.Errorf("[%s] redis ping error: %v", modRedis, err)
		return nil, fmt.Errorf("redis ping: %w", err)
	}

	logger.Infof("[%s] redis connected: addr=%v, db=%d, pool_size=%d", modRedis, cfg.Addr, cfg.DB, cfg.PoolSize)
	return c, nil
}

func ensureConfig(cfg *RedisConfig) {
	if cfg.PoolSize == 0 {
		cfg.PoolSize = 10
	}
	if cfg.MinIdle == 0 {
		cfg.MinIdle = 2
	}
	if cfg.DialTimeout == 0 {
		cfg.DialTimeout = 5
	}
	if cfg.ReadTimeout == 0 {
		cfg.ReadTimeout = 3
	}
	if cfg.WriteTimeout == 0 {
		cfg.WriteTimeout = 3
	}
}
