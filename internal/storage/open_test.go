package storage

import (
	"context"
	"testing"

	"github.com/JonMunkholm/importcheck/internal/config"
	"github.com/JonMunkholm/importcheck/internal/core"
)

func TestOpen_Memory(t *testing.T) {
	for _, driver := range []string{"memory", "MEMORY"} {
		t.Run(driver, func(t *testing.T) {
			cfg := &config.Config{Storage: config.StorageConfig{Driver: driver}}
			store, err := Open(context.Background(), cfg)
			if err != nil {
				t.Fatalf("Open: %v", err)
			}
			defer store.Close()

			if _, ok := store.(*core.MemStore); !ok {
				t.Errorf("Open(%q) = %T, want *core.MemStore", driver, store)
			}
		})
	}
}

func TestOpen_BadDatabaseURL(t *testing.T) {
	cfg := &config.Config{
		Storage:  config.StorageConfig{Driver: config.DriverPostgres},
		Database: config.DatabaseConfig{URL: "://not a url", MaxConns: 1},
	}
	if _, err := Open(context.Background(), cfg); err == nil {
		t.Fatal("Open error = nil, want parse error")
	}
}
