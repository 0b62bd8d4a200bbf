package ledger

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	guardPrefix = "settle:guard:grant"
	// guardTTL 在途记录的保留时间，远大于 blockhash 有效期，留给对账服务处理
	guardTTL = 24 * time.Hour
)

// hash 字段
const (
	fieldStartedAt = "started_at"
	fieldUpdatedAt = "updated_at"
	fieldSignature = "signature"
	fieldLastValid = "last_valid"
)

// RedisGuard 基于 Redis hash 的在途结算记录，多实例共享
type RedisGuard struct {
	rdb redis.UniversalClient
}

var _ Guard = (*RedisGuard)(nil)

func NewRedisGuard(rdb redis.UniversalClient) *RedisGuard {
	return &RedisGuard{rdb: rdb}
}

func (r *RedisGuard) getKey(grantID int64) string {
	return fmt.Sprintf("%s:%d", guardPrefix, grantID)
}

func (r *RedisGuard) Begin(ctx context.Context, grantID int64) error {
	key := r.getKey(grantID)
	now := time.Now().UnixMilli()
	ok, err := r.rdb.HSetNX(ctx, key, fieldStartedAt, now).Result()
	if err != nil {
		return fmt.Errorf("redis hsetnx error: %w", err)
	}
	if !ok {
		return ErrSettlementInFlight
	}
	pipe := r.rdb.TxPipeline()
	pipe.HSet(ctx, key, fieldUpdatedAt, now)
	pipe.Expire(ctx, key, guardTTL)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis begin guard error: %w", err)
	}
	return nil
}

// touchScript 记录存在时才刷新心跳，避免复活已释放的 key
var touchScript = redis.NewScript(`
if redis.call("EXISTS", KEYS[1]) == 0 then
	return 0
end
redis.call("HSET", KEYS[1], ARGV[1], ARGV[2])
redis.call("PEXPIRE", KEYS[1], ARGV[3])
return 1
`)

func (r *RedisGuard) Touch(ctx context.Context, grantID int64) error {
	n, err := touchScript.Run(ctx, r.rdb, []string{r.getKey(grantID)},
		fieldUpdatedAt, time.Now().UnixMilli(), guardTTL.Milliseconds()).Int()
	if err != nil {
		return fmt.Errorf("redis touch guard error: %w", err)
	}
	if n == 0 {
		return ErrGuardNotHeld
	}
	return nil
}

func (r *RedisGuard) MarkSubmitted(ctx context.Context, grantID int64, signature string, lastValidBlockHeight uint64) error {
	key := r.getKey(grantID)
	pipe := r.rdb.TxPipeline()
	pipe.HSet(ctx, key, fieldSignature, signature, fieldLastValid, lastValidBlockHeight,
		fieldUpdatedAt, time.Now().UnixMilli())
	pipe.Expire(ctx, key, guardTTL)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis mark submitted error: %w", err)
	}
	return nil
}

func (r *RedisGuard) Get(ctx context.Context, grantID int64) (*GuardRecord, error) {
	vals, err := r.rdb.HGetAll(ctx, r.getKey(grantID)).Result()
	if err != nil {
		return nil, fmt.Errorf("redis hgetall error: %w", err)
	}
	if len(vals) == 0 {
		return nil, nil
	}

	rec := &GuardRecord{GrantID: grantID, Signature: vals[fieldSignature]}
	for field, dst := range map[string]*time.Time{fieldStartedAt: &rec.StartedAt, fieldUpdatedAt: &rec.UpdatedAt} {
		v, ok := vals[field]
		if !ok {
			continue
		}
		ms, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid %s %q: %w", field, v, err)
		}
		*dst = time.UnixMilli(ms)
	}
	if v, ok := vals[fieldLastValid]; ok {
		lv, err := strconv.ParseUint(v, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid %s %q: %w", fieldLastValid, v, err)
		}
		rec.LastValidBlockHeight = lv
	}
	return rec, nil
}

func (r *RedisGuard) Release(ctx context.Context, grantID int64) error {
	if err := r.rdb.Del(ctx, r.getKey(grantID)).Err(); err != nil {
		return fmt.Errorf("redis del error: %w", err)
	}
	return nil
}
