package logbook

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

// Level represents the severity of a log entry.
type Level string

const (
	LevelInfo  Level = "INFO"
	LevelWarn  Level = "WARN"
	LevelError Level = "ERROR"
)

// Logbook appends registration and approval activity to a text file so users
// can inspect failed submissions after the terminal UI has closed.
type Logbook struct {
	path  string
	scope string
	clock func() time.Time
	mu    *sync.Mutex
}

// New creates a logbook that writes to the provided path.
func New(path string) (*Logbook, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("logbook: ensure log dir: %w", err)
	}
	return &Logbook{path: path, clock: time.Now, mu: &sync.Mutex{}}, nil
}

// Scoped returns a logbook sharing the same file whose entries are prefixed
// with scope (e.g. "wizard", "approval").
func (l *Logbook) Scoped(scope string) *Logbook {
	if l == nil {
		return nil
	}
	clone := *l
	clone.scope = strings.TrimSpace(scope)
	return &clone
}

// Path returns the file backing this logbook.
func (l *Logbook) Path() string {
	if l == nil {
		return ""
	}
	return l.path
}

// Append writes a single entry to the logbook.
func (l *Logbook) Append(level Level, message string) {
	if l == nil {
		return
	}
	message = strings.TrimSpace(message)
	if l.scope != "" {
		message = fmt.Sprintf("[%s] %s", l.scope, message)
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	line := fmt.Sprintf("%s %-5s %s\n",
		l.clock().UTC().Format(time.RFC3339),
		string(level),
		message,
	)
	file, err := os.OpenFile(l.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return
	}
	defer file.Close()
	_, _ = file.WriteString(line)
}

// Tail returns up to maxLines of the most recent entries along with the
// total number of entries in the file.
func (l *Logbook) Tail(maxLines int) ([]string, int) {
	if l == nil || maxLines <= 0 {
		return nil, 0
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	file, err := os.Open(l.path)
	if err != nil {
		return nil, 0
	}
	defer file.Close()

	// Entries of any length are read whole.
	var lines []string
	total := 0
	reader := bufio.NewReader(file)
	for {
		line, err := reader.ReadString('\n')
		if line != "" {
			total++
			lines = append(lines, strings.TrimRight(line, "\r\n"))
			if len(lines) > maxLines {
				lines = lines[1:]
			}
		}
		if err != nil {
			break
		}
	}
	if total == 0 {
		return nil, 0
	}
	return lines, total
}

// Info appends an informational entry.
func (l *Logbook) Info(format string, args ...any) {
	l.Append(LevelInfo, fmt.Sprintf(format, args...))
}

// Warn appends a warning entry.
func (l *Logbook) Warn(format string, args ...any) {
	l.Append(LevelWarn, fmt.Sprintf(format, args...))
}

// Error appends an error entry.
func (l *Logbook) Error(format string, args ...any) {
	l.Append(LevelError, fmt.Sprintf(format, args...))
}

// Printf satisfies the Printf-style logger used by the sandbox server.
func (l *Logbook) Printf(format string, args ...any) {
	l.Info(format, args...)
}
