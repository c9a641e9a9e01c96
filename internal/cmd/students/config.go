// Package students builds the students command tree and runs it against a
// SQLite roster file.
package students

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	entrypoint "github.com/louisbranch/students/internal/platform/cmd"
	platformotel "github.com/louisbranch/students/internal/platform/otel"
	"github.com/louisbranch/students/internal/platform/timeouts"
)

// Version is reported by --version.
const Version = "0.1.0"

const defaultDBName = "students.db"

// Config holds students command configuration. Every field reads a
// STUDENTS_-prefixed environment variable; flags override the database path.
type Config struct {
	DBPath    string        `env:"DB_PATH"`
	Timeout   time.Duration `env:"TIMEOUT"`
	LogLevel  string        `env:"LOG_LEVEL" envDefault:"warn"`
	Telemetry platformotel.Settings
}

// ParseConfig loads Config from the environment. An empty DBPath is resolved
// to DefaultDBPath when a command first opens the roster.
func ParseConfig() (Config, error) {
	var cfg Config
	if err := entrypoint.ParseConfig(&cfg); err != nil {
		return Config{}, err
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = timeouts.Command
	}
	return cfg, nil
}

// DefaultDBPath returns students.db in the current user's home directory.
func DefaultDBPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolve home directory: %w", err)
	}
	return filepath.Join(home, defaultDBName), nil
}
