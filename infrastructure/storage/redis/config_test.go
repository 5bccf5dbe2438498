package redis

import (
	"testing"
	"time"
)

func TestDefaultConfig(t *testing.T) {
	t.Parallel()

	cfg := DefaultConfig()

	if cfg.Address != "localhost:6379" {
		t.Errorf("Address = %s, want localhost:6379", cfg.Address)
	}
	if cfg.KeyPrefix != "echo:" {
		t.Errorf("KeyPrefix = %s, want echo:", cfg.KeyPrefix)
	}
	if cfg.MaxEntries != 0 {
		t.Errorf("MaxEntries = %d, want 0 (unbounded)", cfg.MaxEntries)
	}
	if cfg.DialTimeout != 5*time.Second {
		t.Errorf("DialTimeout = %v, want %v", cfg.DialTimeout, 5*time.Second)
	}
}

func TestConfigOptions(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		opts  []ConfigOption
		check func(Config) bool
	}{
		{
			name:  "address",
			opts:  []ConfigOption{WithAddress("redis.local:6380")},
			check: func(c Config) bool { return c.Address == "redis.local:6380" },
		},
		{
			name:  "password and db",
			opts:  []ConfigOption{WithPassword("p@ss"), WithDB(3)},
			check: func(c Config) bool { return c.Password == "p@ss" && c.DB == 3 },
		},
		{
			name:  "key prefix",
			opts:  []ConfigOption{WithKeyPrefix("desk:")},
			check: func(c Config) bool { return c.KeyPrefix == "desk:" },
		},
		{
			name:  "max entries",
			opts:  []ConfigOption{WithMaxEntries(500)},
			check: func(c Config) bool { return c.MaxEntries == 500 },
		},
		{
			name: "pool and timeouts",
			opts: []ConfigOption{WithPoolSize(4), WithTimeouts(time.Second, 2*time.Second, 3*time.Second)},
			check: func(c Config) bool {
				return c.PoolSize == 4 && c.DialTimeout == time.Second &&
					c.ReadTimeout == 2*time.Second && c.WriteTimeout == 3*time.Second
			},
		},
		{
			name:  "later option wins",
			opts:  []ConfigOption{WithDB(1), WithDB(7)},
			check: func(c Config) bool { return c.DB == 7 },
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			cfg := DefaultConfig()
			for _, opt := range tt.opts {
				opt(&cfg)
			}
			if !tt.check(cfg) {
				t.Errorf("config after options = %+v", cfg)
			}
		})
	}
}
