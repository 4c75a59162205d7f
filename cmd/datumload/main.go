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


package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/poiesic/datumload"
	"github.com/poiesic/datumload/config"
	"github.com/poiesic/datumload/core"
	"github.com/poiesic/datumload/ingestion"
	"github.com/poiesic/datumload/listing"
	"github.com/poiesic/datumload/storage"
	"github.com/urfave/cli/v2"
)

func main() {
	if err := newApp().Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func newApp() *cli.App {
	return &cli.App{
		Name:  "datumload",
		Usage: "Convert a labelled image list into a Caffe Datum key-value store",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "log-level",
				Aliases: []string{"l"},
				Usage:   "Set logging level (debug, info, warn, error)",
				Value:   "info",
			},
		},
		Before: setupLogger,
		Commands: []*cli.Command{
			{
				Name:      "load",
				Usage:     "Load the images named in LIST_FILE into a new store",
				ArgsUsage: "IMAGES_FOLDER LIST_FILE DB_NAME",
				Action:    loadCommand,
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:    "config",
						Aliases: []string{"c"},
						Usage:   "Path to a TOML configuration file",
					},
					&cli.BoolFlag{
						Name:  "shuffle",
						Usage: "Randomly shuffle the order of images",
					},
					&cli.Uint64Flag{
						Name:  "seed",
						Usage: "Shuffle seed (0 picks one from the clock)",
					},
					&cli.BoolFlag{
						Name:  "sync-db",
						Usage: "Append to an existing store, numbering keys after its highest key",
					},
					&cli.IntFlag{
						Name:  "resize-width",
						Usage: "Width images are resized to",
					},
					&cli.IntFlag{
						Name:  "resize-height",
						Usage: "Height images are resized to",
					},
					&cli.BoolFlag{
						Name:  "gray",
						Usage: "Treat images as grayscale ones",
					},
					&cli.BoolFlag{
						Name:  "encoded",
						Usage: "Store the encoded image in the datum",
					},
					&cli.StringFlag{
						Name:  "format",
						Usage: "Payload format (proto, mus)",
						Value: string(storage.FormatProto),
					},
					&cli.IntFlag{
						Name:  "batch-size",
						Usage: "Number of records committed per transaction",
						Value: ingestion.DefaultBatchSize,
					},
					&cli.IntFlag{
						Name:  "queue-capacity",
						Usage: "Records buffered between reading and writing",
						Value: ingestion.DefaultQueueCapacity,
					},
					&cli.Int64Flag{
						Name:  "map-size",
						Usage: "Initial store write capacity in bytes",
					},
					&cli.IntFlag{
						Name:  "report-interval",
						Usage: "Report progress every N records (0 disables)",
					},
				},
			},
			{
				Name:      "count",
				Usage:     "Print the number of records in a store",
				ArgsUsage: "DB_NAME",
				Action:    countCommand,
			},
			{
				Name:      "inspect",
				Usage:     "Print the first records of a store",
				ArgsUsage: "DB_NAME",
				Action:    inspectCommand,
				Flags: []cli.Flag{
					&cli.IntFlag{
						Name:  "limit",
						Usage: "Maximum number of records to print",
						Value: 10,
					},
					&cli.StringFlag{
						Name:  "format",
						Usage: "Payload format (proto, mus)",
						Value: string(storage.FormatProto),
					},
				},
			},
		},
	}
}

// loadConfig reads --config and lets explicitly set flags override it.
func loadConfig(c *cli.Context) (*config.Config, error) {
	cfg, err := config.Load(c.String("config"))
	if err != nil {
		return nil, err
	}

	if c.IsSet("resize-width") {
		cfg.Image.Width = c.Int("resize-width")
	}
	if c.IsSet("resize-height") {
		cfg.Image.Height = c.Int("resize-height")
	}
	if c.IsSet("gray") {
		cfg.Image.Gray = c.Bool("gray")
	}
	if c.IsSet("encoded") {
		cfg.Image.Encoded = c.Bool("encoded")
	}
	if c.IsSet("format") {
		cfg.Image.Format = c.String("format")
	}
	if c.IsSet("batch-size") {
		cfg.Pipeline.BatchSize = c.Int("batch-size")
	}
	if c.IsSet("queue-capacity") {
		cfg.Pipeline.QueueCapacity = c.Int("queue-capacity")
	}
	if c.IsSet("report-interval") {
		cfg.Pipeline.ReportInterval = c.Int("report-interval")
	}
	if c.IsSet("map-size") {
		cfg.Store.InitialMapSize = c.Int64("map-size")
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func loadCommand(c *cli.Context) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if c.NArg() != 3 {
		return fmt.Errorf("expected IMAGES_FOLDER LIST_FILE DB_NAME, got %d arguments", c.NArg())
	}
	root, listPath, dbPath := c.Args().Get(0), c.Args().Get(1), c.Args().Get(2)

	cfg, err := loadConfig(c)
	if err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	items, err := listing.ReadList(listPath)
	if err != nil {
		return fmt.Errorf("failed to read list: %w", err)
	}
	if c.Bool("shuffle") {
		seed := c.Uint64("seed")
		if seed == 0 {
			seed = uint64(time.Now().UnixNano())
		}
		slog.Info("shuffling data", "seed", seed)
		listing.Shuffle(items, seed)
	}
	slog.Info("read list", "items", len(items))

	mode := storage.ModeNew
	if c.Bool("sync-db") {
		mode = storage.ModeExisting
	}

	loader, err := datumload.Open(dbPath, mode, datumload.WithConfig(cfg))
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer loader.Close()

	origin := 0
	if mode == storage.ModeExisting {
		origin, err = loader.NextKey()
		if err != nil {
			return fmt.Errorf("failed to open database: %w", err)
		}
		slog.Info("appending to existing store", "entries", loader.EntryCount(), "next_key", origin)
	}

	serializer, err := loader.Serializer(root)
	if err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	opts := []ingestion.Option{ingestion.WithOrigin(origin)}
	if cfg.Pipeline.ReportInterval > 0 {
		opts = append(opts, ingestion.WithProgress(os.Stderr, cfg.Pipeline.ReportInterval))
	}
	pipeline, err := loader.NewPipeline(serializer, opts...)
	if err != nil {
		return fmt.Errorf("failed to create pipeline: %w", err)
	}
	defer pipeline.Release()

	fmt.Fprintf(os.Stderr, "Images: %s\n", root)
	fmt.Fprintf(os.Stderr, "List: %s\n", listPath)
	fmt.Fprintf(os.Stderr, "Database: %s (%s)\n", dbPath, mode)
	fmt.Fprintln(os.Stderr)

	result, err := pipeline.Run(ctx, items)
	if err != nil {
		return fmt.Errorf("ingestion failed: %w", err)
	}

	fmt.Fprintf(c.App.Writer, "Processed %d files (%d skipped), %d entries in store\n",
		result.Produced, result.Skipped, result.EntryCount)
	return nil
}

func openExisting(c *cli.Context) (*datumload.Loader, error) {
	if c.NArg() != 1 {
		return nil, fmt.Errorf("expected DB_NAME, got %d arguments", c.NArg())
	}
	loader, err := datumload.Open(c.Args().First(), storage.ModeExisting)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	return loader, nil
}

func countCommand(c *cli.Context) error {
	loader, err := openExisting(c)
	if err != nil {
		return err
	}
	defer loader.Close()

	count := loader.EntryCount()
	if count == storage.UnknownCount {
		return errors.New("failed to count entries")
	}
	fmt.Fprintln(c.App.Writer, count)
	return nil
}

var errInspectLimit = errors.New("inspect limit reached")

func inspectCommand(c *cli.Context) error {
	format, err := storage.ParseFormat(c.String("format"))
	if err != nil {
		return err
	}
	limit := c.Int("limit")

	loader, err := openExisting(c)
	if err != nil {
		return err
	}
	defer loader.Close()

	printed := 0
	err = loader.Backend().ForEach(c.Context, func(key string, value []byte) error {
		if printed >= limit {
			return errInspectLimit
		}
		d, err := format.Unmarshal(value)
		if err != nil {
			return fmt.Errorf("record %s: %w", key, err)
		}
		printDatum(c.App.Writer, key, d)
		printed++
		return nil
	})
	if err != nil && !errors.Is(err, errInspectLimit) {
		return fmt.Errorf("inspect failed: %w", err)
	}
	return nil
}

func printDatum(w io.Writer, key string, d *core.Datum) {
	if d.Encoded {
		fmt.Fprintf(w, "%s label=%d encoded bytes=%d\n", key, d.Label, len(d.Data))
		return
	}
	fmt.Fprintf(w, "%s label=%d shape=%dx%dx%d bytes=%d\n", key, d.Label, d.Channels, d.Height, d.Width, len(d.Data))
}

func setupLogger(c *cli.Context) error {
	// Get log level from flag and normalize to lowercase
	levelStr := strings.ToLower(c.String("log-level"))

	var level slog.Level
	switch levelStr {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		return fmt.Errorf("invalid log level %q: must be one of debug, info, warn, error", levelStr)
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	}))
	slog.SetDefault(logger)

	return nil
}
