package stats

import (
	"context"
	"strconv"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/rushteam/fraudkit/core"
)

// Redis 哈希字段
const (
	fieldTotal   = "total"
	fieldFlagged = "flagged"
	fieldSum     = "score_sum"
)

// DefaultRedisKey 默认统计哈希 key
const DefaultRedisKey = "fraudkit:session"

// Redis 把会话统计存放在一个 Redis 哈希中，多个打分进程共享同一份视图。
// HINCRBY / HINCRBYFLOAT 在服务端原子执行，一次 Record 走一个 pipeline。
type Redis struct {
	client redis.UniversalClient
	key    string
	logger *zap.Logger
}

// RedisOption Redis 统计选项
type RedisOption func(*Redis)

// WithRedisLogger 设置记录写入失败的 logger
func WithRedisLogger(l *zap.Logger) RedisOption {
	return func(r *Redis) {
		if l != nil {
			r.logger = l
		}
	}
}

// NewRedis 基于已有客户端创建统计；key 为空时使用 DefaultRedisKey
func NewRedis(client redis.UniversalClient, key string, opts ...RedisOption) *Redis {
	if key == "" {
		key = DefaultRedisKey
	}
	r := &Redis{client: client, key: key, logger: zap.NewNop()}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// DialRedis 连接 Redis 并检查连通性
func DialRedis(ctx context.Context, addr string, db int, key string, opts ...RedisOption) (*Redis, error) {
	client := redis.NewClient(&redis.Options{
		Addr: addr,
		DB:   db,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, core.NewConfigurationError(core.ModuleStats, err, "connect redis %s", addr)
	}
	return NewRedis(client, key, opts...), nil
}

func (r *Redis) Record(ctx context.Context, flagged bool, score float64) {
	pipe := r.client.TxPipeline()
	pipe.HIncrBy(ctx, r.key, fieldTotal, 1)
	if flagged {
		pipe.HIncrBy(ctx, r.key, fieldFlagged, 1)
	}
	pipe.HIncrByFloat(ctx, r.key, fieldSum, score)
	if _, err := pipe.Exec(ctx); err != nil {
		r.logger.Warn("record session stats failed", zap.String("key", r.key), zap.Error(err))
	}
}

func (r *Redis) Snapshot(ctx context.Context) (Snapshot, error) {
	vals, err := r.client.HGetAll(ctx, r.key).Result()
	if err != nil {
		return Snapshot{}, core.NewScoringError(core.ModuleStats, err, "read session stats")
	}
	total, err := parseUint(vals[fieldTotal])
	if err != nil {
		return Snapshot{}, core.NewScoringError(core.ModuleStats, err, "parse %s", fieldTotal)
	}
	flagged, err := parseUint(vals[fieldFlagged])
	if err != nil {
		return Snapshot{}, core.NewScoringError(core.ModuleStats, err, "parse %s", fieldFlagged)
	}
	sum := 0.0
	if s := vals[fieldSum]; s != "" {
		if sum, err = strconv.ParseFloat(s, 64); err != nil {
			return Snapshot{}, core.NewScoringError(core.ModuleStats, err, "parse %s", fieldSum)
		}
	}
	return NewSnapshot(total, flagged, sum), nil
}

func (r *Redis) Reset(ctx context.Context) error {
	return r.client.Del(ctx, r.key).Err()
}

func (r *Redis) Close() error {
	return r.client.Close()
}

func parseUint(s string) (uint64, error) {
	if s == "" {
		return 0, nil
	}
	return strconv.ParseUint(s, 10, 64)
}

var _ Sink = (*Redis)(nil)
