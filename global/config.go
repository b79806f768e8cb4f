package global

import (
	"os"
	"time"

	"PChat/tools/decode"
	"PChat/tools/errs"

	"gopkg.in/yaml.v3"
)

type ServerConf struct {
	Addr   string `json:"addr"`
	NodeID int64  `json:"node_id"`
}

type MongoConf struct {
	URI         string `json:"uri"`
	Database    string `json:"database"`
	MaxPoolSize int    `json:"max_pool_size"`
	MaxRetry    int    `json:"max_retry"`
}

type RedisConf struct {
	Addr     string `json:"addr"`
	Password string `json:"password"`
	DB       int    `json:"db"`
}

type JWTConf struct {
	Secret     string `json:"secret"`
	TTLMinutes int    `json:"ttl_minutes"`
}

type AppConfig struct {
	Server ServerConf `json:"server"`
	Mongo  MongoConf  `json:"mongo"`
	Redis  RedisConf  `json:"redis"`
	JWT    JWTConf    `json:"jwt"`
}

func (c *AppConfig) JWTTTL() time.Duration {
	if c.JWT.TTLMinutes <= 0 {
		return 2 * time.Hour
	}
	return time.Duration(c.JWT.TTLMinutes) * time.Minute
}

// Global 全局配置，main() 里 Load 之后只读。
var Global = AppConfig{
	Server: ServerConf{Addr: ":8080", NodeID: 1},
	Mongo:  MongoConf{URI: "mongodb://127.0.0.1:27017", Database: "pchat", MaxPoolSize: 100, MaxRetry: 3},
	Redis:  RedisConf{Addr: "127.0.0.1:6379"},
	JWT:    JWTConf{Secret: "mN9b1f8zPq+W2xjX/45sKcVd0TfyoG+3Hp5Z8q9Rj1o=", TTLMinutes: 120},
}

// Load 从 YAML 文件加载配置覆盖默认值；path 为空时只应用环境变量。
func Load(path string) error {
	m := map[string]any{}
	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return errs.WrapMsg(err, "read config", "path", path)
		}
		if err := yaml.Unmarshal(raw, &m); err != nil {
			return errs.WrapMsg(err, "parse config", "path", path)
		}
	}
	applyEnv(m)

	cfg, err := decode.DecodeMap[AppConfig](m)
	if err != nil {
		return errs.WrapMsg(err, "decode config")
	}
	merge(&Global, cfg)
	return nil
}

// 环境变量优先级最高，便于容器部署。
func applyEnv(m map[string]any) {
	set := func(section, key, env string) {
		v := os.Getenv(env)
		if v == "" {
			return
		}
		sec, _ := m[section].(map[string]any)
		if sec == nil {
			sec = map[string]any{}
			m[section] = sec
		}
		sec[key] = v
	}
	set("server", "addr", "PCHAT_ADDR")
	set("mongo", "uri", "PCHAT_MONGO_URI")
	set("mongo", "database", "PCHAT_MONGO_DB")
	set("redis", "addr", "PCHAT_REDIS_ADDR")
	set("redis", "password", "PCHAT_REDIS_PASSWORD")
	set("jwt", "secret", "PCHAT_JWT_SECRET")
}

func merge(dst *AppConfig, src *AppConfig) {
	if src.Server.Addr != "" {
		dst.Server.Addr = src.Server.Addr
	}
	if src.Server.NodeID > 0 {
		dst.Server.NodeID = src.Server.NodeID
	}
	if src.Mongo.URI != "" {
		dst.Mongo.URI = src.Mongo.URI
	}
	if src.Mongo.Database != "" {
		dst.Mongo.Database = src.Mongo.Database
	}
	if src.Mongo.MaxPoolSize > 0 {
		dst.Mongo.MaxPoolSize = src.Mongo.MaxPoolSize
	}
	if src.Mongo.MaxRetry > 0 {
		dst.Mongo.MaxRetry = src.Mongo.MaxRetry
	}
	if src.Redis.Addr != "" {
		dst.Redis.Addr = src.Redis.Addr
	}
	if src.Redis.Password != "" {
		dst.Redis.Password = src.Redis.Password
	}
	if src.Redis.DB != 0 {
		dst.Redis.DB = src.Redis.DB
	}
	if src.JWT.Secret != "" {
		dst.JWT.Secret = src.JWT.Secret
	}
	if src.JWT.TTLMinutes > 0 {
		dst.JWT.TTLMinutes = src.JWT.TTLMinutes
	}
}

func JWTSecret() []byte {
	return []byte(Global.JWT.Secret)
}
