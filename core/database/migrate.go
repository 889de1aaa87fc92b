package database

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"

	"github.com/m3rciful/relaybot/core/logger"
)

// RunMigrations applies the up migrations found in cfg.MigrationsDir. The
// directory is resolved against the working directory when relative.
func RunMigrations(cfg Config) error {
	ctx := logger.Background()
	dir, err := resolveMigrationsDir(cfg.MigrationsDir)
	if err != nil {
		return fmt.Errorf("resolve migrations dir: %w", err)
	}
	files := readMigrationFiles(dir)
	logger.Debug(ctx, "db.migrate", "migrate.resolve",
		slog.String("path", dir),
		slog.Int("count", len(files)),
	)

	m, err := migrate.New("file://"+dir, cfg.URL())
	if err != nil {
		logger.Error(ctx, "db.migrate", "migrate.init", slog.String("err", logger.SanitizeLimit(err.Error(), 256)))
		return fmt.Errorf("init migrations: %w", err)
	}
	defer m.Close()
	m.Log = migrationLog{ctx: ctx}

	from := currentVersion(m)
	start := time.Now()
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		logger.Error(ctx, "db.migrate", "migrate.apply",
			slog.String("status", "fail"),
			slog.Uint64("from_ver", from),
			slog.Duration("duration", logger.Took(start)),
			slog.String("err", logger.SanitizeLimit(err.Error(), 256)),
		)
		return fmt.Errorf("apply migrations: %w", err)
	}
	to := currentVersion(m)

	attrs := []slog.Attr{
		slog.String("status", "ok"),
		slog.Uint64("from_ver", from),
		slog.Uint64("to_ver", to),
		slog.Duration("duration", logger.Took(start)),
	}
	applied := files.between(from, to)
	attrs = append(attrs, slog.Int("files", len(applied)))
	if preview, _ := logger.SummarizeStrings(applied, 6); preview != "" {
		attrs = append(attrs, slog.String("files_preview", preview))
	}
	logger.Info(ctx, "db.migrate", "migrate.summary", attrs...)
	return nil
}

// currentVersion reports the applied schema version, 0 on a fresh database.
func currentVersion(m *migrate.Migrate) uint64 {
	v, _, err := m.Version()
	if err != nil {
		return 0
	}
	return uint64(v)
}

// migrationLog routes golang-migrate's progress lines to debug records.
type migrationLog struct{ ctx context.Context }

func (l migrationLog) Printf(format string, v ...any) {
	logger.Debug(l.ctx, "db.migrate", "migrate.step",
		slog.String("detail", strings.TrimSpace(fmt.Sprintf(format, v...))),
	)
}

func (migrationLog) Verbose() bool { return false }

func resolveMigrationsDir(dir string) (string, error) {
	dir = strings.TrimSpace(dir)
	if dir == "" {
		dir = DefaultMigrationsDir
	}
	return filepath.Abs(dir)
}

// migrationFiles are the *.up.sql names of a migrations directory, sorted.
type migrationFiles []string

func readMigrationFiles(dir string) migrationFiles {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil
	}
	var files migrationFiles
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(e.Name(), ".up.sql") {
			files = append(files, e.Name())
		}
	}
	slices.Sort(files)
	return files
}

// between lists the files with a version in (from, to].
func (f migrationFiles) between(from, to uint64) []string {
	var out []string
	for _, name := range f {
		if v := migrationVersion(name); v > from && v <= to {
			out = append(out, name)
		}
	}
	return out
}

// migrationVersion parses the numeric prefix of "000001_name.up.sql".
func migrationVersion(name string) uint64 {
	prefix, _, _ := strings.Cut(name, "_")
	v, _ := strconv.ParseUint(prefix, 10, 64)
	return v
}
