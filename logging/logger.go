package logging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// Logger writes dated lines ("2006-01-02 15:04:05 msg") to a file or writer.
type Logger struct {
	mu  sync.Mutex
	out io.Writer
	c   io.Closer
}

// NewLogger opens dir/fname in append mode.
func NewLogger(dir, fname string) (*Logger, error) {
	f, err := openFile(dir, fname)
	if err != nil {
		return nil, err
	}
	return &Logger{out: f, c: f}, nil
}

func openFile(dir, fname string) (*os.File, error) {
	if dir == "" {
		dir = "./logs"
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, err
	}
	return os.OpenFile(filepath.Join(dir, fname), os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
}

// Reopen switches the logger to dir/fname and closes the previous file.
// Writers holding the logger never see a closed file.
func (l *Logger) Reopen(dir, fname string) error {
	f, err := openFile(dir, fname)
	if err != nil {
		return err
	}
	l.mu.Lock()
	prev := l.c
	l.out, l.c = f, f
	l.mu.Unlock()
	if prev != nil {
		prev.Close()
	}
	return nil
}

func NewLoggerOrDie(dir, fname string) *Logger {
	l, err := NewLogger(dir, fname)
	if err != nil {
		panic(err)
	}
	return l
}

// New wraps an arbitrary writer (stderr for CLIs, buffers in tests).
func New(w io.Writer) *Logger {
	return &Logger{out: w}
}

// Discard drops every line.
func Discard() *Logger {
	return &Logger{out: io.Discard}
}

func (l *Logger) Write(msg string) {
	if l == nil {
		return
	}
	t := time.Now().Format("2006-01-02 15:04:05")
	l.mu.Lock()
	defer l.mu.Unlock()
	fmt.Fprintf(l.out, "%s %s\n", t, msg)
}

func (l *Logger) Writef(format string, args ...interface{}) {
	l.Write(fmt.Sprintf(format, args...))
}

func (l *Logger) Close() {
	if l == nil || l.c == nil {
		return
	}
	l.c.Close()
}
