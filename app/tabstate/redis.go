package tabstate

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/vibast-solutions/ms-go-billing-bff/app/entity"
)

const keyPrefix = "billing:tab:"

// RedisStore keeps each tab in one hash, billing:tab:{tab}, with fields
// marker:{session} and flag:{name}. The hash TTL is the tab's lifetime.
type RedisStore struct {
	r   redis.UniversalClient
	ttl time.Duration
	now func() time.Time
}

func NewRedisStore(client redis.UniversalClient, ttl time.Duration) *RedisStore {
	if ttl <= 0 {
		ttl = DefaultTabTTL
	}
	return &RedisStore{r: client, ttl: ttl, now: time.Now}
}

func tabKey(tabID string) string {
	return keyPrefix + tabID
}

func markerField(sessionID string) string {
	return "marker:" + sessionID
}

func flagField(name string) string {
	return "flag:" + name
}

func (s *RedisStore) GetMarker(ctx context.Context, tabID, sessionID string) (*entity.SessionMarker, error) {
	tabID, err := normalizeTab(tabID)
	if err != nil {
		return nil, err
	}

	var get *redis.StringCmd
	_, err = s.r.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		get = pipe.HGet(ctx, tabKey(tabID), markerField(sessionID))
		pipe.Expire(ctx, tabKey(tabID), s.ttl)
		return nil
	})
	if err != nil && !errors.Is(err, redis.Nil) {
		return nil, err
	}

	raw, err := get.Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var marker entity.SessionMarker
	if err := json.Unmarshal(raw, &marker); err != nil {
		return nil, err
	}
	return &marker, nil
}

func (s *RedisStore) ClaimMarker(ctx context.Context, tabID, sessionID string) (bool, error) {
	tabID, err := normalizeTab(tabID)
	if err != nil {
		return false, err
	}

	payload, err := json.Marshal(entity.SessionMarker{
		SessionID: sessionID,
		State:     entity.MarkerProcessing,
		MarkedAt:  s.now().UTC(),
	})
	if err != nil {
		return false, err
	}

	var claim *redis.BoolCmd
	_, err = s.r.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		claim = pipe.HSetNX(ctx, tabKey(tabID), markerField(sessionID), payload)
		pipe.Expire(ctx, tabKey(tabID), s.ttl)
		return nil
	})
	if err != nil {
		return false, err
	}
	return claim.Val(), nil
}

func (s *RedisStore) SaveMarker(ctx context.Context, tabID string, marker *entity.SessionMarker) error {
	tabID, err := normalizeTab(tabID)
	if err != nil {
		return err
	}
	if marker == nil {
		return nil
	}

	payload, err := json.Marshal(marker)
	if err != nil {
		return err
	}
	return s.write(ctx, tabID, markerField(marker.SessionID), payload)
}

func (s *RedisStore) SetFlag(ctx context.Context, tabID, name string) error {
	tabID, err := normalizeTab(tabID)
	if err != nil {
		return err
	}
	return s.write(ctx, tabID, flagField(name), "1")
}

func (s *RedisStore) ConsumeFlag(ctx context.Context, tabID, name string) (bool, error) {
	tabID, err := normalizeTab(tabID)
	if err != nil {
		return false, err
	}

	var del *redis.IntCmd
	_, err = s.r.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		del = pipe.HDel(ctx, tabKey(tabID), flagField(name))
		pipe.Expire(ctx, tabKey(tabID), s.ttl)
		return nil
	})
	if err != nil {
		return false, err
	}
	return del.Val() > 0, nil
}

func (s *RedisStore) CloseTab(ctx context.Context, tabID string) error {
	tabID, err := normalizeTab(tabID)
	if err != nil {
		return err
	}
	return s.r.Del(ctx, tabKey(tabID)).Err()
}

func (s *RedisStore) write(ctx context.Context, tabID, field string, value any) error {
	_, err := s.r.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, tabKey(tabID), field, value)
		pipe.Expire(ctx, tabKey(tabID), s.ttl)
		return nil
	})
	return err
}
