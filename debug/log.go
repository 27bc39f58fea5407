package debug

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"strings"
	"sync"
	"time"

	slogmulti "github.com/samber/slog-multi"
	slogjournal "github.com/systemd/slog-journal"
)

var (
	file    *os.File
	mu      sync.Mutex
	enabled bool
	level   = new(slog.LevelVar)
	logger  = slog.New(slog.DiscardHandler)
)

// SetLevel changes the minimum level of every handler
func SetLevel(l slog.Level) {
	level.Set(l)
}

// Enable starts debug logging to the given file (truncated)
func Enable(logPath string) error {
	mu.Lock()
	defer mu.Unlock()

	if enabled {
		return nil
	}

	// Ensure directory exists
	if err := os.MkdirAll(filepath.Dir(logPath), 0755); err != nil {
		return err
	}

	f, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0644)
	if err != nil {
		return err
	}

	file = f
	enabled = true
	logger = newLogger(f)
	logger.Info("=== Debug logging started ===", "cat", "debug")

	return nil
}

// Disable stops debug logging
func Disable() {
	mu.Lock()
	defer mu.Unlock()

	if file != nil {
		file.Close()
		file = nil
	}
	enabled = false
	logger = slog.New(slog.DiscardHandler)
}

// Logger returns the current process logger
func Logger() *slog.Logger {
	mu.Lock()
	defer mu.Unlock()
	return logger
}

// For returns a logger tagged with a category, for structured call sites
func For(category string) *slog.Logger {
	return Logger().With("cat", category)
}

// Log writes a printf-style message under a category
func Log(category, format string, args ...any) {
	l := Logger()
	if !l.Enabled(context.Background(), slog.LevelDebug) {
		return
	}
	l.Debug(fmt.Sprintf(format, args...), "cat", category)
}

var counters = make(map[string]int)

// LogEvery logs only every N calls (use for high-frequency events)
func LogEvery(n int, category, format string, args ...any) {
	mu.Lock()
	key := category + format
	counters[key]++
	count := counters[key]
	mu.Unlock()

	if count%n == 0 {
		Log(category, format+" (every %d, count=%d)", append(args, n, count)...)
	}
}

func newLogger(f *os.File) *slog.Logger {
	var handlers []slog.Handler

	handlers = append(handlers, slog.NewTextHandler(&syncWriter{f: f}, &slog.HandlerOptions{
		Level: level,
		ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
			if a.Key == slog.TimeKey && len(groups) == 0 {
				return slog.String(slog.TimeKey, a.Value.Time().Format("15:04:05.000"))
			}
			return a
		},
	}))

	if isSystemdService() {
		journalHandler, err := slogjournal.NewHandler(&slogjournal.Options{
			Level: level,
			ReplaceGroup: func(key string) string {
				return toJournalKey(key)
			},
			ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
				a.Key = toJournalKey(a.Key)
				return a
			},
		})
		if err == nil {
			handlers = append(handlers, journalHandler)
		} else {
			record := slog.NewRecord(time.Now(), slog.LevelWarn, "new systemd journal handler", 0)
			record.Add("error", err)
			_ = handlers[0].Handle(context.Background(), record)
		}
	}

	return slog.New(slogmulti.Fanout(handlers...))
}

// syncWriter flushes after every record so logs survive a crash
type syncWriter struct {
	f *os.File
}

func (w *syncWriter) Write(p []byte) (int, error) {
	n, err := w.f.Write(p)
	if err != nil {
		return n, err
	}
	return n, w.f.Sync()
}

func isSystemdService() bool {
	content, err := os.ReadFile("/proc/self/cgroup")
	if err != nil {
		return false
	}
	parts := strings.Split(strings.TrimSpace(string(content)), ":")
	if len(parts) < 3 {
		return false
	}
	return strings.HasSuffix(path.Dir(parts[2]), ".service")
}

func toJournalKey(str string) string {
	str = strings.ToUpper(str)
	return strings.Map(func(r rune) rune {
		if r >= 'A' && r <= 'Z' ||
			r >= '0' && r <= '9' {
			return r
		}
		return '_'
	}, str)
}
