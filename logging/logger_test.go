package logging

import (
	"bytes"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"testing"
)

func TestWritefPrefixesDate(t *testing.T) {
	var buf bytes.Buffer
	l := New(&buf)
	l.Writef("[POLL] task=%d status=%s", 7, "running")

	line := strings.TrimSpace(buf.String())
	ok, _ := regexp.MatchString(`^\d{4}-\d{2}-\d{2} \d{2}:\d{2}:\d{2} \[POLL\] task=7 status=running$`, line)
	if !ok {
		t.Errorf("unexpected log line %q", line)
	}
}

func TestNewLoggerAppends(t *testing.T) {
	dir := t.TempDir()
	l, err := NewLogger(dir, "task.log")
	if err != nil {
		t.Fatalf("NewLogger failed: %v", err)
	}
	l.Write("one")
	l.Write("two")
	l.Close()

	data, err := os.ReadFile(filepath.Join(dir, "task.log"))
	if err != nil {
		t.Fatalf("read log: %v", err)
	}
	if n := strings.Count(string(data), "\n"); n != 2 {
		t.Errorf("Expected 2 lines, got %d", n)
	}
}

func TestNilLoggerIsSafe(t *testing.T) {
	var l *Logger
	l.Write("ignored")
	l.Close()
}

func TestReopenMovesWrites(t *testing.T) {
	first, second := t.TempDir(), t.TempDir()
	l, err := NewLogger(first, "access.log")
	if err != nil {
		t.Fatalf("NewLogger failed: %v", err)
	}
	l.Write("before")
	if err := l.Reopen(second, "access.log"); err != nil {
		t.Fatalf("Reopen failed: %v", err)
	}
	l.Write("after")
	l.Close()

	before, _ := os.ReadFile(filepath.Join(first, "access.log"))
	after, _ := os.ReadFile(filepath.Join(second, "access.log"))
	if !strings.Contains(string(before), "before") || strings.Contains(string(before), "after") {
		t.Errorf("unexpected first file %q", before)
	}
	if !strings.Contains(string(after), "after") {
		t.Errorf("Expected the write after Reopen in the new file, got %q", after)
	}
}
