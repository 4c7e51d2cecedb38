package output

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/peteski22/cryoflow/internal/collections/frames"
	pkg "github.com/peteski22/cryoflow/pkg/contract/plugin"
)

// Ensure RedisWriter implements pkg.Consumer.
var _ pkg.Consumer = (*RedisWriter)(nil)

const defaultRedisAddr = "localhost:6379"

// RedisWriter appends each row, encoded as a JSON object, to a Redis list.
//
// Options:
//   - key (required): list to append to.
//   - addr: server address, default "localhost:6379".
//   - password, db: connection settings.
//   - replace: delete the list before writing, default false.
type RedisWriter struct {
	pkg.Base

	opts    *redis.Options
	key     string
	replace bool
}

func newRedisWriter(b pkg.Base) (*RedisWriter, error) {
	key, err := b.RequireString("key")
	if err != nil {
		return nil, err
	}

	db := 0
	if b.Has("db") {
		v, ok := b.Int("db")
		if !ok || v < 0 {
			return nil, fmt.Errorf("%w: \"db\" must be a non-negative integer", pkg.ErrInvalidOption)
		}
		db = int(v)
	}

	return &RedisWriter{
		Base: b,
		opts: &redis.Options{
			Addr:     b.StringOr("addr", defaultRedisAddr),
			Password: b.StringOr("password", ""),
			DB:       db,
		},
		key:     key,
		replace: b.BoolOr("replace", false),
	}, nil
}

func (*RedisWriter) Name() string { return "redis_writer" }

func (w *RedisWriter) Consume(ctx context.Context, f pkg.Frame) error {
	df, err := frames.Materialize(f)
	if err != nil {
		return err
	}
	rows, err := records(df)
	if err != nil {
		return err
	}

	client := redis.NewClient(w.opts)
	defer func() { _ = client.Close() }()

	_, err = client.TxPipelined(ctx, func(p redis.Pipeliner) error {
		if w.replace {
			p.Del(ctx, w.key)
		}
		if len(rows) > 0 {
			values := make([]any, len(rows))
			for i, r := range rows {
				values[i] = r
			}
			p.RPush(ctx, w.key, values...)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("writing to redis list %q: %w", w.key, err)
	}

	w.Log().Info("wrote output", "addr", w.opts.Addr, "key", w.key, "rows", len(rows))
	return nil
}

// PredictSchema checks the server is reachable and passes the schema through.
func (w *RedisWriter) PredictSchema(ctx context.Context, schema pkg.Schema) (pkg.Schema, error) {
	client := redis.NewClient(w.opts)
	defer func() { _ = client.Close() }()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("connecting to redis at %s: %w", w.opts.Addr, err)
	}
	return schema, nil
}
