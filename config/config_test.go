package config

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/sirupsen/logrus"
	"github.com/stephenafamo/sqlexec"
)

func writeConfig(t *testing.T, contents string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "sqlexec.yaml")
	if err := os.WriteFile(path, []byte(contents), 0o600); err != nil {
		t.Fatal(err)
	}

	return path
}

func TestLoad(t *testing.T) {
	yamlFile := `driver: postgres
dsn: postgres://localhost/app
max_open_conns: 8
conn_max_lifetime: 30s
conn_max_idle_time: 1m
log_level: debug
`

	tests := []struct {
		name      string
		file      string
		env       map[string]string
		overrides map[string]any
		expected  Config
	}{
		{
			name: "defaults",
			expected: Config{
				Driver:       "sqlite",
				MaxIdleConns: 2,
				LogLevel:     "info",
			},
		},
		{
			name: "file",
			file: yamlFile,
			expected: Config{
				Driver:          "postgres",
				DSN:             "postgres://localhost/app",
				MaxOpenConns:    8,
				MaxIdleConns:    2,
				ConnMaxLifetime: 30 * time.Second,
				ConnMaxIdleTime: time.Minute,
				LogLevel:        "debug",
			},
		},
		{
			name: "env over file",
			file: yamlFile,
			env: map[string]string{
				"SQLEXEC_DSN":            "postgres://db.internal/app",
				"SQLEXEC_MAX_IDLE_CONNS": "5",
				"SQLEXEC_DEBUG":          "true",
			},
			expected: Config{
				Driver:          "postgres",
				DSN:             "postgres://db.internal/app",
				MaxOpenConns:    8,
				MaxIdleConns:    5,
				ConnMaxLifetime: 30 * time.Second,
				ConnMaxIdleTime: time.Minute,
				LogLevel:        "debug",
				Debug:           true,
			},
		},
		{
			name: "overrides over env",
			env: map[string]string{
				"SQLEXEC_DRIVER": "mysql",
				"SQLEXEC_DSN":    "root@tcp(localhost)/app",
			},
			overrides: map[string]any{"driver": "pgx"},
			expected: Config{
				Driver:       "pgx",
				DSN:          "root@tcp(localhost)/app",
				MaxIdleConns: 2,
				LogLevel:     "info",
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.env {
				t.Setenv(k, v)
			}

			var path string
			if tt.file != "" {
				path = writeConfig(t, tt.file)
			}

			cfg, err := Load(path, tt.overrides)
			if err != nil {
				t.Fatal(err)
			}

			if diff := cmp.Diff(tt.expected, cfg); diff != "" {
				t.Fatalf("diff: %s", diff)
			}
		})
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.yaml"), nil); err == nil {
		t.Fatal("expected an error for a missing config file")
	}
}

func TestValidate(t *testing.T) {
	valid := Config{Driver: "sqlite", DSN: "file.db", LogLevel: "info"}
	if err := valid.Validate(); err != nil {
		t.Fatal(err)
	}

	unknown := valid
	unknown.Driver = "oracle"
	if err := unknown.Validate(); !errors.Is(err, ErrUnknownDriver) {
		t.Fatalf("expected ErrUnknownDriver, got %v", err)
	}

	noDSN := valid
	noDSN.DSN = ""
	if err := noDSN.Validate(); !errors.Is(err, ErrMissingDSN) {
		t.Fatalf("expected ErrMissingDSN, got %v", err)
	}

	badLevel := valid
	badLevel.LogLevel = "loud"
	if err := badLevel.Validate(); err == nil {
		t.Fatal("expected an error for an unknown log level")
	}
}

func TestLogger(t *testing.T) {
	logger, err := Config{LogLevel: "warn"}.Logger()
	if err != nil {
		t.Fatal(err)
	}

	if logger.GetLevel() != logrus.WarnLevel {
		t.Fatalf("expected warn level, got %s", logger.GetLevel())
	}
}

func TestDrivers(t *testing.T) {
	expected := []string{"libsql", "mysql", "pgx", "pgxpool", "postgres", "sqlite"}
	if diff := cmp.Diff(expected, Drivers()); diff != "" {
		t.Fatalf("diff: %s", diff)
	}
}

func TestConnectSQLite(t *testing.T) {
	ctx := context.Background()
	cfg := Config{
		Driver:       "sqlite",
		DSN:          filepath.Join(t.TempDir(), "test.db"),
		MaxOpenConns: 4,
		LogLevel:     "info",
	}

	src, err := Connect(ctx, cfg)
	if err != nil {
		t.Fatal(err)
	}
	defer src.Close()

	tpl := sqlexec.New(src)
	if _, err := tpl.Update(ctx, "CREATE TABLE kv (k TEXT PRIMARY KEY, v TEXT)"); err != nil {
		t.Fatal(err)
	}

	affected, err := tpl.Update(ctx, "INSERT INTO kv VALUES (?, ?), (?, ?)", "a", "1", "b", "2")
	if err != nil {
		t.Fatal(err)
	}
	if affected != 2 {
		t.Fatalf("expected 2 rows affected, got %d", affected)
	}

	v, err := sqlexec.QueryForObject(ctx, tpl, "SELECT v FROM kv WHERE k = ?", sqlexec.SingleColumn[string](), "b")
	if err != nil {
		t.Fatal(err)
	}
	if v != "2" {
		t.Fatalf("expected 2, got %q", v)
	}

	if stats := src.(sqlexec.DB).Stats(); stats.MaxOpenConnections != 4 {
		t.Fatalf("expected max open conns to be 4, got %d", stats.MaxOpenConnections)
	}
}

func TestConnectUnknownDriver(t *testing.T) {
	_, err := Connect(context.Background(), Config{Driver: "oracle", DSN: "x", LogLevel: "info"})
	if !errors.Is(err, ErrUnknownDriver) {
		t.Fatalf("expected ErrUnknownDriver, got %v", err)
	}
}

func TestConnectPingFailure(t *testing.T) {
	cfg := Config{
		Driver:   "postgres",
		DSN:      "postgres://nobody@127.0.0.1:1/none?sslmode=disable&connect_timeout=1",
		LogLevel: "info",
	}

	if _, err := Connect(context.Background(), cfg); err == nil {
		t.Fatal("expected ping to fail")
	}
}
