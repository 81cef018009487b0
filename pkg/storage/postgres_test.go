package storage

import (
	"testing"
	"time"
)

func TestPoolDefaults(t *testing.T) {
	got := PostgresPoolConfig{}.withDefaults()
	if got.MaxOpenConns != 10 || got.MaxIdleConns != 5 {
		t.Fatalf("unexpected pool sizing: %+v", got)
	}
	if got.PingTimeout != 5*time.Second {
		t.Fatalf("unexpected ping timeout: %v", got.PingTimeout)
	}

	// Explicit values survive.
	custom := PostgresPoolConfig{MaxOpenConns: 3, PingTimeout: time.Second}.withDefaults()
	if custom.MaxOpenConns != 3 || custom.PingTimeout != time.Second {
		t.Fatalf("explicit values overridden: %+v", custom)
	}
}
