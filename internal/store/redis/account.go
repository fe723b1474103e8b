package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	goredis "github.com/go-redis/redis/v8"

	"confluence-engine/internal/model"
)

// ErrNoAccountSnapshot is returned when the snapshot key does not exist.
var ErrNoAccountSnapshot = errors.New("redis: no account snapshot")

// AccountReader reads the account snapshot that the execution service keeps
// under a single JSON key.
type AccountReader struct {
	client goredis.Cmdable
	key    string
}

func NewAccountReader(client goredis.Cmdable, key string) *AccountReader {
	return &AccountReader{client: client, key: key}
}

// GetAccountSnapshot implements model.AccountSource.
func (r *AccountReader) GetAccountSnapshot(ctx context.Context) (model.AccountSnapshot, error) {
	raw, err := r.client.Get(ctx, r.key).Bytes()
	if err == goredis.Nil {
		return model.AccountSnapshot{}, fmt.Errorf("%s: %w", r.key, ErrNoAccountSnapshot)
	}
	if err != nil {
		return model.AccountSnapshot{}, fmt.Errorf("get %s: %w", r.key, err)
	}
	return decodeAccount(raw)
}

func decodeAccount(raw []byte) (model.AccountSnapshot, error) {
	var snap model.AccountSnapshot
	if err := json.Unmarshal(raw, &snap); err != nil {
		return model.AccountSnapshot{}, fmt.Errorf("decode account snapshot: %w", err)
	}
	for _, p := range snap.Positions {
		if p.Symbol == "" {
			return model.AccountSnapshot{}, errors.New("decode account snapshot: position without symbol")
		}
	}
	return snap, nil
}
