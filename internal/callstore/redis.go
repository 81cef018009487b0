package callstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"famline/internal/callsession"

	"github.com/redis/go-redis/v9"
)

// RedisLive implements LiveStore on Redis.
//
// Keys:
//
//	call:{group}:{type}:{id}  -> JSON CallSession
//	calls:{group}:{type}      -> SET of call ids
//
// Values carry a TTL safety net so a crashed archiver cannot leak sessions
// forever; the service archives and deletes terminal sessions explicitly.
type RedisLive struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewRedisLive(rdb *redis.Client) *RedisLive {
	return &RedisLive{rdb: rdb, ttl: 24 * time.Hour}
}

func (r *RedisLive) sessionKey(groupID string, t callsession.CallType, callID string) string {
	return fmt.Sprintf("call:%s:%s:%s", groupID, t, callID)
}

func (r *RedisLive) indexKey(groupID string, t callsession.CallType) string {
	return fmt.Sprintf("calls:%s:%s", groupID, t)
}

func (r *RedisLive) Put(ctx context.Context, s *callsession.CallSession) error {
	raw, err := json.Marshal(s)
	if err != nil {
		return err
	}
	pipe := r.rdb.TxPipeline()
	pipe.Set(ctx, r.sessionKey(s.GroupID, s.Type, s.CallID), raw, r.ttl)
	pipe.SAdd(ctx, r.indexKey(s.GroupID, s.Type), s.CallID)
	pipe.Expire(ctx, r.indexKey(s.GroupID, s.Type), r.ttl)
	_, err = pipe.Exec(ctx)
	return err
}

func (r *RedisLive) Get(ctx context.Context, groupID string, t callsession.CallType, callID string) (*callsession.CallSession, error) {
	raw, err := r.rdb.Get(ctx, r.sessionKey(groupID, t, callID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	var s callsession.CallSession
	if err := json.Unmarshal(raw, &s); err != nil {
		return nil, err
	}
	return &s, nil
}

func (r *RedisLive) List(ctx context.Context, groupID string, t callsession.CallType) ([]*callsession.CallSession, error) {
	ids, err := r.rdb.SMembers(ctx, r.indexKey(groupID, t)).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return nil, err
	}
	out := make([]*callsession.CallSession, 0, len(ids))
	for _, id := range ids {
		s, err := r.Get(ctx, groupID, t, id)
		if errors.Is(err, ErrNotFound) {
			// Expired value with a stale index entry; drop it.
			_ = r.rdb.SRem(ctx, r.indexKey(groupID, t), id).Err()
			continue
		}
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, nil
}

func (r *RedisLive) Delete(ctx context.Context, groupID string, t callsession.CallType, callID string) error {
	pipe := r.rdb.TxPipeline()
	pipe.Del(ctx, r.sessionKey(groupID, t, callID))
	pipe.SRem(ctx, r.indexKey(groupID, t), callID)
	_, err := pipe.Exec(ctx)
	return err
}
