// Package stackctl parses stackctl flags and runs the store inspection tool.
package stackctl

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"

	entrypoint "github.com/louisbranch/graphstack/internal/platform/cmd"
	"github.com/louisbranch/graphstack/persist"
)

// Config holds stackctl command configuration.
type Config struct {
	SchemaDir  string `env:"GRAPHSTACK_SCHEMA_DIR" envDefault:"."`
	SchemaName string `env:"GRAPHSTACK_SCHEMA_NAME"`
	DataDir    string `env:"GRAPHSTACK_DATA_DIR"`
	Filename   string `env:"GRAPHSTACK_STORE_FILENAME"`
	Reset      bool
}

// ParseConfig parses environment and flags into Config.
func ParseConfig(fs *flag.FlagSet, args []string) (Config, error) {
	var cfg Config
	if err := entrypoint.ParseConfig(&cfg); err != nil {
		return Config{}, err
	}
	fs.StringVar(&cfg.SchemaDir, "schema-dir", cfg.SchemaDir, "Directory holding schema documents")
	fs.StringVar(&cfg.SchemaName, "schema", cfg.SchemaName, "Schema name to load")
	fs.StringVar(&cfg.DataDir, "data-dir", cfg.DataDir, "Directory holding store files")
	fs.StringVar(&cfg.Filename, "filename", cfg.Filename, "Store file name override")
	fs.BoolVar(&cfg.Reset, "reset", false, "Destroy and rebuild the backing store")
	if err := entrypoint.ParseArgs(fs, args); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Run constructs a stack against the configured store and either resets it
// or prints per-entity object counts.
func Run(ctx context.Context, cfg Config, out io.Writer) error {
	return entrypoint.RunWithTelemetry(ctx, entrypoint.ServiceStackctl, func(ctx context.Context) error {
		return run(ctx, cfg, out)
	})
}

func run(ctx context.Context, cfg Config, out io.Writer) error {
	if cfg.SchemaName == "" {
		return fmt.Errorf("schema name is required")
	}
	if cfg.DataDir != "" {
		if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
			return fmt.Errorf("create data dir: %w", err)
		}
	}

	built := make(chan error, 1)
	var stack *persist.Stack
	err := persist.ConstructStack(ctx, persist.StackConfig{
		SchemaName: cfg.SchemaName,
		Bundle:     os.DirFS(cfg.SchemaDir),
		Kind:       persist.StoreKindSQLite,
		Filename:   cfg.Filename,
		Directory:  cfg.DataDir,
	}, func(st *persist.Stack, err error) {
		stack = st
		built <- err
	})
	if err != nil {
		return fmt.Errorf("construct stack: %w", err)
	}
	select {
	case err := <-built:
		if err != nil {
			return fmt.Errorf("build coordinator: %w", err)
		}
	case <-ctx.Done():
		return ctx.Err()
	}
	defer func() { _ = stack.Close() }()

	if cfg.Reset {
		done := make(chan error, 1)
		if err := stack.Reset(ctx, func(err error) { done <- err }); err != nil {
			return fmt.Errorf("reset: %w", err)
		}
		select {
		case err := <-done:
			if err != nil {
				return fmt.Errorf("reset: %w", err)
			}
		case <-ctx.Done():
			return ctx.Err()
		}
		fmt.Fprintf(out, "reset %s\n", stack.URL())
		return nil
	}

	fmt.Fprintf(out, "store %s\n", stack.URL())
	coord := stack.Coordinator()
	for _, entity := range stack.Schema().EntityNames() {
		n, err := coord.Count(ctx, entity)
		if err != nil {
			return fmt.Errorf("count %s: %w", entity, err)
		}
		fmt.Fprintf(out, "%s\t%d\n", entity, n)
	}
	return nil
}
