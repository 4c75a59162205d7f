// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package config loads datumload settings from a TOML file.
package config

import (
	"errors"
	"fmt"
	"os"

	"github.com/BurntSushi/toml"
	"github.com/poiesic/datumload/storage"
)

// Config holds every tunable of a load run. CLI flags override file values.
type Config struct {
	Store    StoreConfig    `toml:"store"`
	Pipeline PipelineConfig `toml:"pipeline"`
	Image    ImageConfig    `toml:"image"`
}

// StoreConfig configures the key-value environment.
type StoreConfig struct {
	// InitialMapSize is the write capacity reserved when the store is opened, in bytes.
	// It doubles every time a transaction runs out of room.
	InitialMapSize int64 `toml:"initial_map_size"`

	// SyncWrites makes every commit durable before it returns.
	SyncWrites bool `toml:"sync_writes"`
}

// PipelineConfig configures batching and the producer/persister queue.
type PipelineConfig struct {
	// BatchSize is the number of stored records per commit.
	// Default: 100
	BatchSize int `toml:"batch_size"`

	// QueueCapacity bounds the records in flight between producer and persister.
	// Default: 128
	QueueCapacity int `toml:"queue_capacity"`

	// ReportInterval prints progress every this many records. Zero disables progress.
	ReportInterval int `toml:"report_interval"`
}

// ImageConfig configures how images become Datum payloads.
type ImageConfig struct {
	Width   int    `toml:"width"`
	Height  int    `toml:"height"`
	Gray    bool   `toml:"gray"`
	Encoded bool   `toml:"encoded"`
	Format  string `toml:"format"`
}

// Defaults returns a Config with sane defaults.
func Defaults() *Config {
	return &Config{
		Store: StoreConfig{
			InitialMapSize: 64 << 20,
			SyncWrites:     true,
		},
		Pipeline: PipelineConfig{
			BatchSize:      100,
			QueueCapacity:  128,
			ReportInterval: 1000,
		},
		Image: ImageConfig{
			Format: string(storage.FormatProto),
		},
	}
}

// Load reads a TOML config file over the defaults.
// If path is empty, only defaults are returned.
func Load(path string) (*Config, error) {
	cfg := Defaults()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}

	if _, err := toml.Decode(string(data), cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}

	return cfg, nil
}

// Validate checks that the configuration is usable.
func (c *Config) Validate() error {
	if c.Store.InitialMapSize <= 0 {
		return errors.New("config: store.initial_map_size must be positive")
	}
	if c.Pipeline.BatchSize < 1 {
		return errors.New("config: pipeline.batch_size must be at least 1")
	}
	if c.Pipeline.QueueCapacity < 1 {
		return errors.New("config: pipeline.queue_capacity must be at least 1")
	}
	if c.Pipeline.ReportInterval < 0 {
		return errors.New("config: pipeline.report_interval cannot be negative")
	}
	if c.Image.Width < 0 || c.Image.Height < 0 {
		return errors.New("config: image dimensions cannot be negative")
	}
	if _, err := storage.ParseFormat(c.Image.Format); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	return nil
}
