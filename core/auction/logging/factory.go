package logging

import (
	"context"
	"time"

	"github.com/kilianp07/parcelmas/core/factory"
)

var storeRegistry = factory.NewRegistry[Store]()

func init() {
	_ = RegisterStore("jsonl", func(conf map[string]any) (Store, error) {
		var c struct {
			Path       string `json:"path"`
			MaxSizeMB  int    `json:"max_size_mb"`
			MaxBackups int    `json:"max_backups"`
			MaxAgeDays int    `json:"max_age_days"`
		}
		if err := factory.Decode(conf, &c); err != nil {
			return nil, err
		}
		if c.MaxSizeMB > 0 {
			return NewRotatingJSONLStore(c.Path, c.MaxSizeMB, c.MaxBackups, c.MaxAgeDays)
		}
		return NewJSONLStore(c.Path)
	})
	_ = RegisterStore("sqlite", func(conf map[string]any) (Store, error) {
		var c struct {
			Path string `json:"path"`
		}
		if err := factory.Decode(conf, &c); err != nil {
			return nil, err
		}
		return NewSQLiteStore(c.Path)
	})
	_ = RegisterStore("postgres", func(conf map[string]any) (Store, error) {
		var c struct {
			DSN string `json:"dsn"`
		}
		if err := factory.Decode(conf, &c); err != nil {
			return nil, err
		}
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return NewPostgresStore(ctx, c.DSN)
	})
}

// RegisterStore adds an auction log store factory identified by name.
func RegisterStore(name string, f factory.Factory[Store]) error {
	return storeRegistry.Register(name, f)
}

// NewStore creates the store described by cfg. An empty type disables
// persistence and returns nil.
func NewStore(cfg factory.ModuleConfig) (Store, error) {
	if cfg.Type == "" {
		return nil, nil
	}
	return storeRegistry.Create(cfg)
}
