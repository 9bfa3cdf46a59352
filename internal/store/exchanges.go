// Package store persists question/answer exchanges per collection so a
// briefing can interleave prior conversation without the client resending
// it.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/mohammad-safakhou/companion/config"
	"github.com/mohammad-safakhou/companion/internal/pipeline"
)

const exchangeKeyPrefix = "exchanges:"

// ErrCollectionNotFound is returned when a collection has no stored
// exchanges.
var ErrCollectionNotFound = errors.New("collection not found")

// ExchangeRecord is one persisted exchange.
type ExchangeRecord struct {
	ID           string              `json:"id"`
	CollectionID string              `json:"collectionId"`
	Question     string              `json:"question"`
	Answer       string              `json:"answer"`
	Citations    []pipeline.Citation `json:"citations,omitempty"`
	Model        string              `json:"model"`
	CreatedAt    time.Time           `json:"createdAt"`
}

// Conn opens and pings a Redis connection.
func Conn(ctx context.Context, cfg config.RedisConfig) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:        fmt.Sprintf("%s:%s", cfg.Host, cfg.Port),
		Password:    cfg.Password,
		DB:          cfg.DB,
		DialTimeout: cfg.Timeout,
	})

	pong, err := client.Ping(ctx).Result()
	if err != nil {
		return nil, err
	}
	if pong != "PONG" {
		return nil, fmt.Errorf("expected PONG, got %s", pong)
	}
	return client, nil
}

// ExchangeStore is a Redis-backed exchange log: one list per collection,
// appended in chronological order.
type ExchangeStore struct {
	client *redis.Client
}

func NewExchangeStore(client *redis.Client) *ExchangeStore {
	return &ExchangeStore{client: client}
}

// Save appends an exchange to its collection's log, assigning an id and
// timestamp when absent.
func (s *ExchangeStore) Save(ctx context.Context, rec ExchangeRecord) (ExchangeRecord, error) {
	if rec.CollectionID == "" {
		return ExchangeRecord{}, errors.New("collection id required")
	}
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}

	data, err := json.Marshal(rec)
	if err != nil {
		return ExchangeRecord{}, err
	}
	if err := s.client.RPush(ctx, exchangeKeyPrefix+rec.CollectionID, data).Err(); err != nil {
		return ExchangeRecord{}, err
	}
	return rec, nil
}

// List returns a collection's exchanges in insertion order.
func (s *ExchangeStore) List(ctx context.Context, collectionID string) ([]ExchangeRecord, error) {
	vals, err := s.client.LRange(ctx, exchangeKeyPrefix+collectionID, 0, -1).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrCollectionNotFound
		}
		return nil, err
	}

	records := make([]ExchangeRecord, 0, len(vals))
	for _, v := range vals {
		var rec ExchangeRecord
		if err := json.Unmarshal([]byte(v), &rec); err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, nil
}

// Exchanges returns a collection's exchanges in the prompt-builder shape.
func (s *ExchangeStore) Exchanges(ctx context.Context, collectionID string) ([]pipeline.Exchange, error) {
	records, err := s.List(ctx, collectionID)
	if err != nil {
		return nil, err
	}
	exchanges := make([]pipeline.Exchange, 0, len(records))
	for _, rec := range records {
		exchanges = append(exchanges, pipeline.Exchange{Question: rec.Question, Answer: rec.Answer})
	}
	return exchanges, nil
}

// Clear removes a collection's exchange log.
func (s *ExchangeStore) Clear(ctx context.Context, collectionID string) error {
	return s.client.Del(ctx, exchangeKeyPrefix+collectionID).Err()
}
