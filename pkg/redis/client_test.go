package redis

import (
	"errors"
	"fmt"
	"testing"

	"github.com/redis/go-redis/v9"
)

func TestIsNilError(t *testing.T) {
	if !IsNilError(redis.Nil) {
		t.Error("redis.Nil should be a nil error")
	}
	if !IsNilError(fmt.Errorf("get: %w", redis.Nil)) {
		t.Error("wrapped redis.Nil should be a nil error")
	}
	if IsNilError(errors.New("connection refused")) {
		t.Error("other errors are not nil errors")
	}
	if IsNilError(nil) {
		t.Error("nil is not a redis nil error")
	}
}
