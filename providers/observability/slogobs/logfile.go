package slogobs

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
)

// LogFile is a JSON log appended to across runs, such as logs/workflow.log.
// Pass its Handler to WithTee so the file receives what the console does.
type LogFile struct {
	path    string
	file    *os.File
	handler *Handler
}

// OpenLogFile opens path for appending, creating the file and its directory
// when missing. Records below level are not written.
func OpenLogFile(path string, level slog.Leveler) (*LogFile, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create log directory: %w", err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open log file: %w", err)
	}
	return &LogFile{
		path:    path,
		file:    f,
		handler: NewHandler(&HandlerOptions{Format: FormatJSON, Level: level, Output: f}),
	}, nil
}

func (l *LogFile) Handler() slog.Handler {
	return l.handler
}

func (l *LogFile) Path() string {
	return l.path
}

func (l *LogFile) Close() error {
	return l.file.Close()
}
