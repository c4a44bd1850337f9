package store

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"

	"trailguard/internal/emergency/models"
	"trailguard/pkg/apperrors"
	"trailguard/pkg/domain"
)

const (
	recordKeyPrefix = "tg:emergency:"
	orderKey        = "tg:emergencies:order"
)

// RedisStore persists emergency records in Redis: one JSON value per record
// plus an insertion-order list. Suited to deployments where several frontends
// share one durable store; each record has a single writer (the pipeline call
// that created it), so the order list needs no stronger coordination.
type RedisStore struct {
	client *redis.Client
}

func NewRedis(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

func (s *RedisStore) Save(ctx context.Context, em *models.Emergency) error {
	if em == nil || em.ID.IsNil() {
		return apperrors.New(apperrors.CodeInvalidInput, "emergency with a valid id is required")
	}
	body, err := json.Marshal(em)
	if err != nil {
		return apperrors.Wrap(err, apperrors.CodePersistence, "encode emergency")
	}

	key := recordKeyPrefix + em.ID.String()
	exists, err := s.client.Exists(ctx, key).Result()
	if err != nil {
		return apperrors.Wrap(err, apperrors.CodePersistence, "check emergency existence")
	}

	pipe := s.client.TxPipeline()
	pipe.Set(ctx, key, body, 0)
	if exists == 0 {
		pipe.RPush(ctx, orderKey, em.ID.String())
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return apperrors.Wrap(err, apperrors.CodePersistence, "save emergency")
	}
	return nil
}

func (s *RedisStore) GetAll(ctx context.Context) ([]*models.Emergency, error) {
	ids, err := s.client.LRange(ctx, orderKey, 0, -1).Result()
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.CodePersistence, "list emergency ids")
	}
	if len(ids) == 0 {
		return nil, nil
	}

	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = recordKeyPrefix + id
	}
	vals, err := s.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.CodePersistence, "fetch emergencies")
	}

	out := make([]*models.Emergency, 0, len(vals))
	for i, v := range vals {
		raw, ok := v.(string)
		if !ok {
			// Order entry without a record; skip rather than fail the read.
			continue
		}
		var em models.Emergency
		if err := json.Unmarshal([]byte(raw), &em); err != nil {
			return nil, apperrors.Wrap(err, apperrors.CodePersistence,
				fmt.Sprintf("decode emergency %s", ids[i]))
		}
		out = append(out, &em)
	}
	return out, nil
}

func (s *RedisStore) GetByLogID(ctx context.Context, logID domain.LogID) ([]*models.Emergency, error) {
	all, err := s.GetAll(ctx)
	if err != nil {
		return nil, err
	}
	var out []*models.Emergency
	for _, em := range all {
		if em.RelatedLogID != nil && *em.RelatedLogID == logID {
			out = append(out, em)
		}
	}
	return out, nil
}
