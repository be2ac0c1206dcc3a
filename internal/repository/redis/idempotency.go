package redis

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	idemLock   = "LOCK"
	idemResult = "RES:"
)

type IdemState int

const (
	// IdemAcquired means the caller owns the key and must save or release it.
	IdemAcquired IdemState = iota
	// IdemInProgress means another request holds the key.
	IdemInProgress
	// IdemDone means a stored response is available.
	IdemDone
)

// IdemResult is a stored response: the HTTP status and the JSON body.
type IdemResult struct {
	Status int
	Body   string
}

// IdempotencyStore keeps one response per idempotency key. A key is first
// locked, then replaced by "RES:<status>:<body>".
type IdempotencyStore struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewIdempotencyStore(rdb *redis.Client, ttl time.Duration) *IdempotencyStore {
	return &IdempotencyStore{rdb: rdb, ttl: ttl}
}

// Claim tries to lock key. When the key already holds a response, the
// response is returned with IdemDone.
func (s *IdempotencyStore) Claim(ctx context.Context, key string, lockTTL time.Duration) (IdemState, IdemResult, error) {
	if res, ok, err := s.GetResult(ctx, key); err != nil || ok {
		return IdemDone, res, err
	}

	locked, err := s.rdb.SetNX(ctx, key, idemLock, lockTTL).Result()
	if err != nil {
		return IdemInProgress, IdemResult{}, err
	}
	if locked {
		return IdemAcquired, IdemResult{}, nil
	}

	// lost the race; the winner may have finished in the meantime
	if res, ok, err := s.GetResult(ctx, key); err != nil || ok {
		return IdemDone, res, err
	}

	return IdemInProgress, IdemResult{}, nil
}

func (s *IdempotencyStore) SaveResult(ctx context.Context, key string, res IdemResult) error {
	v := idemResult + strconv.Itoa(res.Status) + ":" + res.Body
	return s.rdb.Set(ctx, key, v, s.ttl).Err()
}

func (s *IdempotencyStore) GetResult(ctx context.Context, key string) (IdemResult, bool, error) {
	v, err := s.rdb.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return IdemResult{}, false, nil
	}
	if err != nil {
		return IdemResult{}, false, err
	}

	rest, ok := strings.CutPrefix(v, idemResult)
	if !ok {
		return IdemResult{}, false, nil
	}
	code, body, ok := strings.Cut(rest, ":")
	if !ok {
		return IdemResult{}, false, nil
	}
	status, err := strconv.Atoi(code)
	if err != nil {
		return IdemResult{}, false, nil
	}

	return IdemResult{Status: status, Body: body}, true, nil
}

func (s *IdempotencyStore) Release(ctx context.Context, key string) error {
	return s.rdb.Del(ctx, key).Err()
}
