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


package datumload

import (
	"log/slog"

	"github.com/poiesic/datumload/config"
	"github.com/poiesic/datumload/imaging"
	"github.com/poiesic/datumload/ingestion"
	"github.com/poiesic/datumload/storage"
	"github.com/poiesic/datumload/storage/badger"
)

// Loader owns an open Datum store and builds ingestion pipelines against it.
type Loader struct {
	backend *badger.Backend
	cfg     *config.Config
	logger  *slog.Logger
}

// LoaderOption configures a Loader.
type LoaderOption func(*loaderOptions)

type loaderOptions struct {
	cfg    *config.Config
	logger *slog.Logger
}

// WithConfig sets the configuration used for the store and new pipelines.
func WithConfig(cfg *config.Config) LoaderOption {
	return func(o *loaderOptions) {
		o.cfg = cfg
	}
}

// WithLogger sets the logger shared by the store and pipelines.
func WithLogger(logger *slog.Logger) LoaderOption {
	return func(o *loaderOptions) {
		o.logger = logger
	}
}

// Open creates (storage.ModeNew) or reopens (storage.ModeExisting) the store at path.
func Open(path string, mode storage.Mode, opts ...LoaderOption) (*Loader, error) {
	options := &loaderOptions{
		cfg:    config.Defaults(),
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(options)
	}
	if err := options.cfg.Validate(); err != nil {
		return nil, err
	}

	backend, err := badger.Open(path, mode,
		badger.WithInitialMapSize(options.cfg.Store.InitialMapSize),
		badger.WithSyncWrites(options.cfg.Store.SyncWrites),
		badger.WithLogger(options.logger),
	)
	if err != nil {
		return nil, err
	}

	return &Loader{
		backend: backend,
		cfg:     options.cfg,
		logger:  options.logger,
	}, nil
}

// Close closes the underlying store.
func (l *Loader) Close() error {
	if err := l.backend.Close(); err != nil {
		l.logger.Error("error closing backend storage", "err", err)
		return err
	}
	return nil
}

// Backend returns the underlying badger environment.
func (l *Loader) Backend() *badger.Backend {
	return l.backend
}

// EntryCount returns the number of committed records, or storage.UnknownCount.
func (l *Loader) EntryCount() int64 {
	return l.backend.EntryCount()
}

// NextKey returns the first key position an appending run may use.
func (l *Loader) NextKey() (int, error) {
	return l.backend.NextKey()
}

// Serializer builds the image serializer described by the loader's configuration.
func (l *Loader) Serializer(root string) (*imaging.DatumSerializer, error) {
	format, err := storage.ParseFormat(l.cfg.Image.Format)
	if err != nil {
		return nil, err
	}
	return &imaging.DatumSerializer{
		Root:    root,
		Width:   l.cfg.Image.Width,
		Height:  l.cfg.Image.Height,
		Gray:    l.cfg.Image.Gray,
		Encoded: l.cfg.Image.Encoded,
		Format:  format,
	}, nil
}

// NewPipeline creates a pipeline writing into the loader's store. Batch size,
// queue capacity and the logger come from the configuration; opts are applied
// afterwards and win.
func (l *Loader) NewPipeline(serializer ingestion.Serializer, opts ...ingestion.Option) (*ingestion.Pipeline, error) {
	base := []ingestion.Option{
		ingestion.WithBatchSize(l.cfg.Pipeline.BatchSize),
		ingestion.WithQueueCapacity(l.cfg.Pipeline.QueueCapacity),
		ingestion.WithLogger(l.logger),
	}
	return ingestion.NewPipeline(l.backend, serializer, append(base, opts...)...)
}
