package logging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
)

const (
	defaultMaxSizeMB  = 10
	defaultMaxBackups = 3
)

// RotatingWriter is a size-based log file rotator.
// It implements io.Writer and is safe for concurrent use.
type RotatingWriter struct {
	mu         sync.Mutex
	file       *os.File
	path       string
	maxSize    int64
	maxBackups int
	written    int64
}

// NewRotatingWriter opens path for appending and rotates it once it grows
// past maxSizeMB, keeping maxBackups old files as path.1 .. path.N.
func NewRotatingWriter(path string, maxSizeMB, maxBackups int) (*RotatingWriter, error) {
	if maxSizeMB <= 0 {
		maxSizeMB = defaultMaxSizeMB
	}
	if maxBackups <= 0 {
		maxBackups = defaultMaxBackups
	}

	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return nil, fmt.Errorf("create log directory: %w", err)
	}

	rw := &RotatingWriter{
		path:       path,
		maxSize:    int64(maxSizeMB) * 1024 * 1024,
		maxBackups: maxBackups,
	}
	if err := rw.open(); err != nil {
		return nil, err
	}
	return rw, nil
}

// Write implements io.Writer.
func (rw *RotatingWriter) Write(p []byte) (int, error) {
	rw.mu.Lock()
	defer rw.mu.Unlock()

	if rw.written > 0 && rw.written+int64(len(p)) > rw.maxSize {
		if err := rw.rotate(); err != nil {
			return 0, fmt.Errorf("log rotation: %w", err)
		}
	}

	n, err := rw.file.Write(p)
	rw.written += int64(n)
	return n, err
}

// Close closes the underlying file.
func (rw *RotatingWriter) Close() error {
	rw.mu.Lock()
	defer rw.mu.Unlock()

	if rw.file == nil {
		return nil
	}
	err := rw.file.Close()
	rw.file = nil
	return err
}

// InitFile initializes the global logger to write to both stderr and a
// rotating log file. The returned closer releases the file.
func InitFile(format, level, path string) (io.Closer, error) {
	rw, err := NewRotatingWriter(path, defaultMaxSizeMB, defaultMaxBackups)
	if err != nil {
		return nil, err
	}
	Init(format, level, io.MultiWriter(os.Stderr, rw))
	return rw, nil
}

func (rw *RotatingWriter) open() error {
	f, err := os.OpenFile(rw.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0600)
	if err != nil {
		return fmt.Errorf("open log file: %w", err)
	}

	info, err := f.Stat()
	if err != nil {
		f.Close()
		return fmt.Errorf("stat log file: %w", err)
	}

	rw.file = f
	rw.written = info.Size()
	return nil
}

func (rw *RotatingWriter) rotate() error {
	if rw.file != nil {
		rw.file.Close()
	}

	// path.N is dropped, path.N-1 -> path.N, ..., path -> path.1
	os.Remove(rw.backup(rw.maxBackups))
	for i := rw.maxBackups - 1; i >= 0; i-- {
		os.Rename(rw.backup(i), rw.backup(i+1))
	}

	return rw.open()
}

func (rw *RotatingWriter) backup(index int) string {
	if index == 0 {
		return rw.path
	}
	return fmt.Sprintf("%s.%d", rw.path, index)
}
