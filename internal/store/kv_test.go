package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"boostmarket/internal/models"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func exerciseKV(t *testing.T, kv KV) {
	t.Helper()
	ctx := context.Background()

	_, ok, err := kv.Get(ctx, "missing")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, kv.Set(ctx, "k", json.RawMessage(`{"a":1}`)))
	require.NoError(t, kv.Set(ctx, "k", json.RawMessage(`{"a":2}`)))
	value, ok, err := kv.Get(ctx, "k")
	require.NoError(t, err)
	require.True(t, ok)
	assert.JSONEq(t, `{"a":2}`, string(value))

	require.NoError(t, kv.Remove(ctx, "k"))
	_, ok, err = kv.Get(ctx, "k")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestMemoryKV(t *testing.T) {
	exerciseKV(t, NewMemoryKV())
}

func TestMemoryKVCopiesValues(t *testing.T) {
	kv := NewMemoryKV()
	raw := json.RawMessage(`"abc"`)
	require.NoError(t, kv.Set(context.Background(), "k", raw))
	raw[1] = 'x'
	value, _, _ := kv.Get(context.Background(), "k")
	assert.Equal(t, `"abc"`, string(value))
	assert.Equal(t, []string{"k"}, kv.Keys())
}

func TestSQLiteKV(t *testing.T) {
	kv, err := NewSQLiteKV(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = kv.Close() })
	exerciseKV(t, kv)
}

type stubRedis struct {
	redis.Cmdable
	data    map[string]string
	pingErr error
}

func (s *stubRedis) Get(ctx context.Context, key string) *redis.StringCmd {
	value, ok := s.data[key]
	if !ok {
		return redis.NewStringResult("", redis.Nil)
	}
	return redis.NewStringResult(value, nil)
}

func (s *stubRedis) Set(ctx context.Context, key string, value any, expiration time.Duration) *redis.StatusCmd {
	s.data[key] = string(value.([]byte))
	return redis.NewStatusResult("OK", nil)
}

func (s *stubRedis) Del(ctx context.Context, keys ...string) *redis.IntCmd {
	for _, key := range keys {
		delete(s.data, key)
	}
	return redis.NewIntResult(int64(len(keys)), nil)
}

func (s *stubRedis) Ping(ctx context.Context) *redis.StatusCmd {
	return redis.NewStatusResult("PONG", s.pingErr)
}

func TestRedisKV(t *testing.T) {
	client := &stubRedis{data: map[string]string{}}
	kv := NewRedisKV(client, "")
	exerciseKV(t, kv)

	require.NoError(t, kv.Set(context.Background(), "orders", json.RawMessage(`[]`)))
	_, ok := client.data["boostmarket:orders"]
	assert.True(t, ok, "expected default prefix on stored keys")
}

func TestRedisKVHealthCheck(t *testing.T) {
	kv := NewRedisKV(&stubRedis{data: map[string]string{}, pingErr: errors.New("refused")}, "p:")
	err := kv.HealthCheck(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "refused")
}

func TestPostgresKVGet(t *testing.T) {
	kv := NewPostgresKV(stubDB{
		getFn: func(ctx context.Context, dest any, query string, args ...any) error {
			if args[0] == "missing" {
				return sql.ErrNoRows
			}
			*(dest.(*[]byte)) = []byte(`{"ok":true}`)
			return nil
		},
	}, stubTxRunner{})

	value, ok, err := kv.Get(context.Background(), "wallet:u1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.JSONEq(t, `{"ok":true}`, string(value))

	_, ok, err = kv.Get(context.Background(), "missing")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestPostgresKVSetPropagatesTxError(t *testing.T) {
	kv := NewPostgresKV(stubDB{}, stubTxRunner{err: errors.New("serialization failure")})
	err := kv.Set(context.Background(), "k", json.RawMessage(`1`))
	assert.EqualError(t, err, "serialization failure")
}

func TestUpsertEntry(t *testing.T) {
	var gotQuery string
	var gotArgs []any
	execer := stubExecer{execFn: func(ctx context.Context, query string, args ...any) (sql.Result, error) {
		gotQuery = query
		gotArgs = args
		return stubResult{rows: 1}, nil
	}}
	require.NoError(t, upsertEntry(context.Background(), execer, "orders", json.RawMessage(`[]`)))
	assert.True(t, strings.Contains(gotQuery, "ON CONFLICT (key)"))
	assert.Equal(t, "orders", gotArgs[0])
	assert.Equal(t, []byte(`[]`), gotArgs[1])
}

func TestGetJSONWrapsDecodeErrors(t *testing.T) {
	kv := NewMemoryKV()
	require.NoError(t, kv.Set(context.Background(), "orders", json.RawMessage(`{not json`)))
	var orders []models.Order
	_, err := getJSON(context.Background(), kv, "orders", &orders)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "decode orders")
}
