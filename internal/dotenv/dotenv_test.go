package dotenv

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadFiles_MissingFilesAreSkipped(t *testing.T) {
	t.Parallel()
	loaded, err := LoadFiles(filepath.Join(t.TempDir(), ".env"), "")
	if err != nil {
		t.Fatalf("LoadFiles missing file error: %v", err)
	}
	if len(loaded) != 0 {
		t.Fatalf("loaded = %v, want none", loaded)
	}
}

func TestLoadFiles_PrecedenceAndQuoting(t *testing.T) {
	dir := t.TempDir()
	local := filepath.Join(dir, ".env.local")
	shared := filepath.Join(dir, ".env")
	writeFile(t, local, "BCLT_API_BASE_URL=https://staging.example.com\n")
	writeFile(t, shared, ""+
		"# shared defaults\n"+
		"BCLT_API_BASE_URL=https://api.example.com\n"+
		"BCLT_API_TOKEN=\"tok en\"\n"+
		"export BCLT_LOG_LEVEL=debug\n"+
		"BCLT_SERVE_ADDR=from_file\n")

	t.Setenv("BCLT_SERVE_ADDR", ":9000")
	for _, key := range []string{"BCLT_API_BASE_URL", "BCLT_API_TOKEN", "BCLT_LOG_LEVEL"} {
		t.Setenv(key, "")
		os.Unsetenv(key)
	}

	loaded, err := LoadFiles(local, shared)
	if err != nil {
		t.Fatalf("LoadFiles error: %v", err)
	}
	if len(loaded) != 2 {
		t.Fatalf("loaded = %v, want both files", loaded)
	}

	want := map[string]string{
		"BCLT_API_BASE_URL": "https://staging.example.com",
		"BCLT_API_TOKEN":    "tok en",
		"BCLT_LOG_LEVEL":    "debug",
		"BCLT_SERVE_ADDR":   ":9000",
	}
	for key, value := range want {
		if got := os.Getenv(key); got != value {
			t.Fatalf("%s=%q, want %q", key, got, value)
		}
	}
}

func TestLoadFiles_MalformedFile(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), ".env")
	writeFile(t, path, "BROKEN=\"unterminated\n")
	if _, err := LoadFiles(path); err == nil {
		t.Fatalf("expected error for malformed file")
	}
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}
