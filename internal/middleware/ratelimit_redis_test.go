package middleware

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
)

// scriptCounter emulates the fixed-window script with an in-memory INCR.
type scriptCounter struct {
	counts map[string]int64
	keys   []string
	err    error
}

func (s *scriptCounter) run(keys []string) *redis.Cmd {
	if s.err != nil {
		return redis.NewCmdResult(nil, s.err)
	}
	s.counts[keys[0]]++
	s.keys = append(s.keys, keys[0])
	return redis.NewCmdResult(s.counts[keys[0]], nil)
}

func (s *scriptCounter) Eval(_ context.Context, _ string, keys []string, _ ...interface{}) *redis.Cmd {
	return s.run(keys)
}

func (s *scriptCounter) EvalSha(_ context.Context, _ string, keys []string, _ ...interface{}) *redis.Cmd {
	return s.run(keys)
}

func (s *scriptCounter) EvalRO(_ context.Context, _ string, keys []string, _ ...interface{}) *redis.Cmd {
	return s.run(keys)
}

func (s *scriptCounter) EvalShaRO(_ context.Context, _ string, keys []string, _ ...interface{}) *redis.Cmd {
	return s.run(keys)
}

func (s *scriptCounter) ScriptExists(ctx context.Context, hashes ...string) *redis.BoolSliceCmd {
	return redis.NewBoolSliceResult(make([]bool, len(hashes)), nil)
}

func (s *scriptCounter) ScriptLoad(ctx context.Context, script string) *redis.StringCmd {
	return redis.NewStringResult("sha", nil)
}

func TestRedisLimiterAllow(t *testing.T) {
	rdb := &scriptCounter{counts: map[string]int64{}}
	l := NewRedisLimiter(rdb, 2, time.Minute, "ratelimit:appointments")
	ctx := context.Background()

	for i, want := range []bool{true, true, false} {
		got, err := l.Allow(ctx, "10.0.0.1:/api/v1/appointments")
		if err != nil {
			t.Fatalf("call %d: unexpected error %v", i, err)
		}
		if got != want {
			t.Fatalf("call %d: expected %v, got %v", i, want, got)
		}
	}
	if rdb.keys[0] != "ratelimit:appointments:10.0.0.1:/api/v1/appointments" {
		t.Fatalf("unexpected redis key %q", rdb.keys[0])
	}
}

func TestRedisLimiterError(t *testing.T) {
	rdb := &scriptCounter{counts: map[string]int64{}, err: errors.New("connection refused")}
	if _, err := NewRedisLimiter(rdb, 2, time.Minute, "").Allow(context.Background(), "k"); err == nil {
		t.Fatalf("expected redis error")
	}
}
