package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"time"

	charmLog "github.com/charmbracelet/log"

	"github.com/evanschultz/todo/internal/config"
)

// logOptions gathers what the runtime logger needs from flags, config, and platform paths.
type logOptions struct {
	AppName string
	DevMode bool
	Logging config.LoggingConfig
	// DataDir anchors a relative dev_file.dir.
	DataDir string
	Now     func() time.Time
}

type logSink struct {
	logger  *charmLog.Logger
	console bool
}

// runtimeLogger writes each entry to the console and, in dev mode, to a daily logfmt file.
// The console can be muted while the TUI owns the terminal.
type runtimeLogger struct {
	sinks []logSink
	muted atomic.Bool
	file  *os.File
	path  string
}

func newRuntimeLogger(stderr io.Writer, opts logOptions) (*runtimeLogger, error) {
	level, err := charmLog.ParseLevel(opts.Logging.Level)
	if err != nil {
		return nil, fmt.Errorf("parse logging level %q: %w", opts.Logging.Level, err)
	}
	if stderr == nil {
		stderr = io.Discard
	}
	newSink := func(w io.Writer, formatter charmLog.Formatter) *charmLog.Logger {
		return charmLog.NewWithOptions(w, charmLog.Options{
			Level:           level,
			Prefix:          opts.AppName,
			ReportTimestamp: true,
			TimeFormat:      time.RFC3339,
			Formatter:       formatter,
		})
	}

	l := &runtimeLogger{sinks: []logSink{{logger: newSink(stderr, charmLog.TextFormatter), console: true}}}
	if !opts.DevMode || !opts.Logging.DevFile.Enabled {
		return l, nil
	}

	now := time.Now
	if opts.Now != nil {
		now = opts.Now
	}
	path, err := dailyLogPath(opts.DataDir, opts.Logging.DevFile.Dir, opts.AppName, now().UTC())
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create log dir: %w", err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open log file: %w", err)
	}
	l.sinks = append(l.sinks, logSink{logger: newSink(f, charmLog.LogfmtFormatter)})
	l.file = f
	l.path = path
	return l, nil
}

// FilePath is the dev log file in use, or "" when file logging is off.
func (l *runtimeLogger) FilePath() string {
	return l.path
}

func (l *runtimeLogger) Close() error {
	if l.file == nil {
		return nil
	}
	return l.file.Close()
}

// MuteConsole stops or resumes console output. File output is unaffected.
func (l *runtimeLogger) MuteConsole(muted bool) {
	l.muted.Store(muted)
}

func (l *runtimeLogger) ConsoleMuted() bool {
	return l.muted.Load()
}

func (l *runtimeLogger) log(level charmLog.Level, msg any, keyvals ...any) {
	for _, s := range l.sinks {
		if s.console && l.muted.Load() {
			continue
		}
		s.logger.Log(level, msg, keyvals...)
	}
}

func (l *runtimeLogger) Debug(msg any, keyvals ...any) { l.log(charmLog.DebugLevel, msg, keyvals...) }
func (l *runtimeLogger) Info(msg any, keyvals ...any)  { l.log(charmLog.InfoLevel, msg, keyvals...) }
func (l *runtimeLogger) Warn(msg any, keyvals ...any)  { l.log(charmLog.WarnLevel, msg, keyvals...) }
func (l *runtimeLogger) Error(msg any, keyvals ...any) { l.log(charmLog.ErrorLevel, msg, keyvals...) }

// dailyLogPath places "<app>-YYYYMMDD.log" under dir. A relative dir lives under the
// app's data directory so an installed binary never writes next to the caller's cwd.
func dailyLogPath(dataDir, dir, appName string, day time.Time) (string, error) {
	dir = strings.TrimSpace(dir)
	if dir == "" {
		dir = config.DefaultLogDir
	}
	if !filepath.IsAbs(dir) {
		if strings.TrimSpace(dataDir) == "" {
			return "", fmt.Errorf("relative log dir %q needs a data dir", dir)
		}
		dir = filepath.Join(dataDir, dir)
	}
	name := fmt.Sprintf("%s-%s.log", logFileStem(appName), day.Format("20060102"))
	return filepath.Join(filepath.Clean(dir), name), nil
}

func logFileStem(appName string) string {
	stem := strings.Map(func(r rune) rune {
		switch r {
		case '/', '\\', ':', ' ':
			return '-'
		}
		return r
	}, strings.TrimSpace(appName))
	if stem = strings.Trim(stem, "-"); stem == "" {
		return "todo"
	}
	return stem
}
