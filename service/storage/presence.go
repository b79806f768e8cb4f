package storage

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
)

type Config struct {
	Addr     string
	Password string
	DB       int
}

var (
	rdb *redis.Client
	ctx = context.Background()
)

func InitRedis(c Config) error {
	rdb = redis.NewClient(&redis.Options{Addr: c.Addr, Password: c.Password, DB: c.DB})
	return rdb.Ping(ctx).Err()
}

// presence key: im:presence:<user>
// 值是该用户当前的连接数；TTL 控制在线有效期，心跳靠注册侧续期。
// 只做可观测用途，路由投递永远以本进程注册表为准。
func presenceKey(user string) string { return "im:presence:" + user }

// PresenceOnline 连接注册时 +1 并续期；返回当前连接数。
func PresenceOnline(user string, ttl time.Duration) (int64, error) {
	if rdb == nil {
		return 0, errors.New("redis not initialized")
	}
	n, err := rdb.Incr(ctx, presenceKey(user)).Result()
	if err != nil {
		return 0, err
	}
	if err := rdb.Expire(ctx, presenceKey(user), ttl).Err(); err != nil {
		return n, err
	}
	return n, nil
}

// PresenceOffline 连接注销时 -1；减到 0 删除 key。
func PresenceOffline(user string) error {
	if rdb == nil {
		return errors.New("redis not initialized")
	}
	n, err := rdb.Decr(ctx, presenceKey(user)).Result()
	if err != nil {
		return err
	}
	if n <= 0 {
		return rdb.Del(ctx, presenceKey(user)).Err()
	}
	return nil
}

// PresenceLookup 查询用户是否在线及其连接数。
func PresenceLookup(user string) (conns int64, online bool, err error) {
	if rdb == nil {
		return 0, false, errors.New("redis not initialized")
	}
	n, err := rdb.Get(ctx, presenceKey(user)).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}
	return n, n > 0, nil
}
