package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/vinizap/diary/server/domain"
	"github.com/vinizap/diary/server/filesystem"
	"github.com/vinizap/diary/server/storage"
)

func captureLogs(t *testing.T) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	prev := logOutput
	logOutput = &buf
	t.Cleanup(func() { logOutput = prev })
	return &buf
}

func seedSQLite(t *testing.T, titles ...string) string {
	t.Helper()
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "diary.db")

	g, err := storage.OpenSQLite(ctx, path)
	if err != nil {
		t.Fatalf("OpenSQLite: %v", err)
	}
	defer g.Close(ctx)

	for _, title := range titles {
		if _, err := g.Insert(ctx, domain.Memory{Title: title, Content: "content of " + title}); err != nil {
			t.Fatalf("Insert: %v", err)
		}
	}
	return "sqlite://" + path
}

func TestPingCommand(t *testing.T) {
	logs := captureLogs(t)
	t.Setenv("DATABASE_URI", seedSQLite(t))

	if err := newRootCommand().Run(context.Background(), []string{"diary", "ping"}); err != nil {
		t.Fatalf("ping: %v", err)
	}
	if !strings.Contains(logs.String(), "database is reachable") {
		t.Fatalf("expected success log, got %s", logs.String())
	}
}

func TestPingCommandUnsupportedScheme(t *testing.T) {
	captureLogs(t)
	t.Setenv("DATABASE_URI", "redis://localhost:6379")

	err := newRootCommand().Run(context.Background(), []string{"diary", "ping"})
	if err == nil || !strings.Contains(err.Error(), "unsupported database scheme") {
		t.Fatalf("expected unsupported scheme error, got %v", err)
	}
}

func TestExportCommand(t *testing.T) {
	logs := captureLogs(t)
	t.Setenv("DATABASE_URI", seedSQLite(t, "Trip", "Birthday"))
	dir := filepath.Join(t.TempDir(), "out")

	args := []string{"diary", "--debug", "export", "--dir", dir}
	if err := newRootCommand().Run(context.Background(), args); err != nil {
		t.Fatalf("export: %v", err)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("read export dir: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("expected 2 exported files, got %d", len(entries))
	}

	titles := map[string]bool{}
	for _, e := range entries {
		m, err := filesystem.ReadMemory(filepath.Join(dir, e.Name()))
		if err != nil {
			t.Fatalf("ReadMemory: %v", err)
		}
		if m.Content != "content of "+m.Title {
			t.Fatalf("unexpected content %q for %q", m.Content, m.Title)
		}
		titles[m.Title] = true
	}
	if !titles["Trip"] || !titles["Birthday"] {
		t.Fatalf("expected both memories exported, got %v", titles)
	}
	if !strings.Contains(logs.String(), `"count":2`) {
		t.Fatalf("expected export count in logs, got %s", logs.String())
	}
}

func TestServeRejectsBadPort(t *testing.T) {
	captureLogs(t)
	t.Setenv("DATABASE_URI", seedSQLite(t))

	err := newRootCommand().Run(context.Background(), []string{"diary", "serve", "--port", "0"})
	if err == nil || !strings.Contains(err.Error(), "out of range") {
		t.Fatalf("expected port validation error, got %v", err)
	}
}
