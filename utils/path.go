package utils

import (
	"log"
	"os"
	"path/filepath"
	"time"
)

// GetProjectRoot returns EE_INSIGHT_ROOT, or the parent of the directory
// holding the running binary (bin/ee-insight -> .).
func GetProjectRoot() string {
	if env := os.Getenv("EE_INSIGHT_ROOT"); env != "" {
		return env
	}
	executable, err := os.Executable()
	if err != nil {
		log.Fatalf("Failed to get executable: %v", err)
	}
	return filepath.Clean(filepath.Join(filepath.Dir(executable), ".."))
}

// ResolvePath keeps absolute paths and anchors relative ones at the project root.
func ResolvePath(p string) string {
	if filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(GetProjectRoot(), p)
}

func EnsureDirExists(dir string) error {
	return os.MkdirAll(dir, 0755)
}

// LogToFile sends the std logger to log/<filename>, archiving the previous
// file under log/archives with a timestamp suffix.
func LogToFile(filename string) *os.File {
	logDir := filepath.Join(GetProjectRoot(), "log")
	_ = EnsureDirExists(logDir)
	logFileName := filepath.Join(logDir, filename)
	if _, err := os.Stat(logFileName); err == nil {
		archives := filepath.Join(logDir, "archives")
		_ = EnsureDirExists(archives)
		_ = os.Rename(logFileName, filepath.Join(archives, filename+"."+time.Now().Format("2006-01-02-15-04-05")))
	}

	f, err := os.OpenFile(logFileName, os.O_CREATE|os.O_APPEND|os.O_RDWR, 0666)
	if err != nil {
		panic(err)
	}
	log.SetOutput(f)
	return f
}
