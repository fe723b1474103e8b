package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strconv"

	goredis "github.com/go-redis/redis/v8"

	"confluence-engine/internal/model"
)

// StreamKey returns the bar stream for a symbol and timeframe, e.g.
// "candle:300s:BTCUSDT".
func StreamKey(prefix string, tf model.Timeframe, symbol string) string {
	return prefix + ":" + strconv.Itoa(tf.Seconds()) + "s:" + symbol
}

// BarReader serves closed bars from Redis streams. Each stream entry carries
// one JSON-encoded bar in its "data" field.
type BarReader struct {
	client goredis.Cmdable
	prefix string
}

// NewBarReader creates a reader over streams named {prefix}:{tf}s:{symbol}.
func NewBarReader(client goredis.Cmdable, prefix string) *BarReader {
	return &BarReader{client: client, prefix: prefix}
}

// GetBars returns up to count of the most recent bars, oldest first.
// A missing stream yields no bars and no error.
func (r *BarReader) GetBars(ctx context.Context, symbol string, tf model.Timeframe, count int) ([]model.Bar, error) {
	if count <= 0 {
		return nil, nil
	}
	stream := StreamKey(r.prefix, tf, symbol)
	msgs, err := r.client.XRevRangeN(ctx, stream, "+", "-", int64(count)).Result()
	if err != nil {
		if err == goredis.Nil {
			return nil, nil
		}
		return nil, fmt.Errorf("xrevrange %s: %w", stream, err)
	}
	return decodeBars(symbol, msgs), nil
}

// decodeBars converts newest-first stream entries into bars ordered oldest
// first. Malformed entries are logged and skipped.
func decodeBars(symbol string, msgs []goredis.XMessage) []model.Bar {
	bars := make([]model.Bar, 0, len(msgs))
	for i := len(msgs) - 1; i >= 0; i-- {
		msg := msgs[i]
		data, ok := msg.Values["data"].(string)
		if !ok {
			log.Printf("[redis] bar %s %s: missing data field", symbol, msg.ID)
			continue
		}
		var b model.Bar
		if err := json.Unmarshal([]byte(data), &b); err != nil {
			log.Printf("[redis] bar %s %s: %v", symbol, msg.ID, err)
			continue
		}
		if b.Symbol == "" {
			b.Symbol = symbol
		}
		bars = append(bars, b)
	}
	return bars
}
