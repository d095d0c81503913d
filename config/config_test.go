package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

// unsetenv clears keys for the duration of the test. godotenv only sets
// variables that are not already present.
func unsetenv(t *testing.T, keys ...string) {
	t.Helper()
	for _, k := range keys {
		t.Setenv(k, "")
		if err := os.Unsetenv(k); err != nil {
			t.Fatal(err)
		}
	}
}

func TestLoad_Defaults(t *testing.T) {
	unsetenv(t, "ADDR", "LOG_LEVEL", "LOG_FORMAT", "DB_DRIVER", "SQLITE_PATH", "DATABASE_URL",
		"REDIS_ADDR", "LEDGER_DRIVER", "UPLOAD_DIR", "MAX_UPLOAD_BYTES", "MAX_WIDTH", "MAX_HEIGHT",
		"JPEG_QUALITY", "CATALOG_REFRESH", "STORAGE_TIMEOUT", "SESSION_TTL", "COOKIE_SECURE")

	got, err := Load("")
	if err != nil {
		t.Fatal(err)
	}
	want := Config{
		Addr:           ":8080",
		LogLevel:       "info",
		LogFormat:      "text",
		DBDriver:       DriverSQLite,
		SQLitePath:     "swapsnap.db",
		LedgerDriver:   LedgerDB,
		UploadDir:      "uploads",
		MaxUploadBytes: 5 << 20,
		MaxWidth:       1920,
		MaxHeight:      1080,
		JPEGQuality:    85,
		CatalogRefresh: 10 * time.Second,
		StorageTimeout: 5 * time.Second,
		SessionTTL:     720 * time.Hour,
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Config mismatch (-want +got):\n%s", diff)
	}
}

func TestLoad_Environment(t *testing.T) {
	t.Setenv("ADDR", ":9000")
	t.Setenv("DB_DRIVER", "memory")
	t.Setenv("CATALOG_REFRESH", "2s")
	t.Setenv("COOKIE_SECURE", "true")

	got, err := Load("")
	if err != nil {
		t.Fatal(err)
	}
	if got.Addr != ":9000" || got.DBDriver != DriverMemory || got.CatalogRefresh != 2*time.Second || !got.CookieSecure {
		t.Errorf("Got %+v", got)
	}
}

func TestLoad_Dotenv(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".env")
	if err := os.WriteFile(path, []byte("UPLOAD_DIR=/srv/photos\nJPEG_QUALITY=70\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	unsetenv(t, "UPLOAD_DIR", "JPEG_QUALITY")

	got, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if got.UploadDir != "/srv/photos" || got.JPEGQuality != 70 {
		t.Errorf("Got UploadDir %q JPEGQuality %d", got.UploadDir, got.JPEGQuality)
	}
}

func TestLoad_MissingDotenvIsIgnored(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "missing.env")); err != nil {
		t.Errorf("Got error %v, want nil", err)
	}
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		env     map[string]string
		wantErr string
	}{
		{name: "UnknownDriver", env: map[string]string{"DB_DRIVER": "mysql"}, wantErr: "unknown DB_DRIVER"},
		{name: "PostgresWithoutURL", env: map[string]string{"DB_DRIVER": "postgres"}, wantErr: "DATABASE_URL"},
		{name: "RedisLedgerWithoutAddr", env: map[string]string{"LEDGER_DRIVER": "redis"}, wantErr: "REDIS_ADDR"},
		{name: "UnknownLedger", env: map[string]string{"LEDGER_DRIVER": "file"}, wantErr: "unknown LEDGER_DRIVER"},
		{name: "ZeroUploadSize", env: map[string]string{"MAX_UPLOAD_BYTES": "0"}, wantErr: "MAX_UPLOAD_BYTES"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			_, err := Load("")
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Got error %v, want it to mention %q", err, tt.wantErr)
			}
		})
	}
}
