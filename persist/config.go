package persist

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/louisbranch/graphstack/internal/platform/config"
)

// Config holds caller-facing defaults for file-backed stacks. The core
// never reads ambient global state; defaults are resolved here and threaded
// into construction explicitly.
type Config struct {
	// DataDir is the directory that holds store files when the caller does
	// not pass one. Defaults to the user's Documents folder.
	DataDir string `env:"GRAPHSTACK_DATA_DIR"`
}

// DefaultConfig loads configuration from the environment and fills in
// platform defaults.
func DefaultConfig() (Config, error) {
	var cfg Config
	if err := config.ParseEnv(&cfg); err != nil {
		return Config{}, err
	}
	if cfg.DataDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return Config{}, fmt.Errorf("resolve home directory: %w", err)
		}
		cfg.DataDir = filepath.Join(home, "Documents")
	}
	return cfg, nil
}
