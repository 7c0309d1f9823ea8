// Package ingest turns a file, a directory or standard input into the single
// text blob the pipeline analyses.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"slices"
	"strings"
	"unicode/utf8"

	htmltomarkdown "github.com/JohannesKaufmann/html-to-markdown/v2"
	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/unicode"
)

var (
	ErrNotFile        = errors.New("ingest: path is not a regular file")
	ErrNotDir         = errors.New("ingest: path is not a directory")
	ErrUnsupported    = errors.New("ingest: unsupported file type")
	ErrNoReadableFile = errors.New("ingest: no readable text files in directory")
)

// Source says where a blob came from.
type Source string

const (
	SourceFile  Source = "file"
	SourceDir   Source = "dir"
	SourceStdin Source = "stdin"
)

// Input is the text handed to the pipeline.
type Input struct {
	Source    Source
	Name      string
	Text      string
	Truncated bool
	Files     int
}

// Len returns the length of the text in characters.
func (in Input) Len() int {
	return utf8.RuneCountInString(in.Text)
}

// binaryExtensions are never read from a directory.
var binaryExtensions = map[string]struct{}{
	".png": {}, ".jpg": {}, ".jpeg": {}, ".gif": {}, ".bmp": {}, ".tiff": {},
	".doc": {}, ".docx": {}, ".xls": {}, ".xlsx": {}, ".ppt": {}, ".pptx": {},
	".zip": {}, ".gz": {}, ".tar": {}, ".bz2": {}, ".rar": {}, ".7z": {},
	".exe": {}, ".dll": {}, ".so": {}, ".o": {}, ".a": {}, ".dylib": {},
	".class": {}, ".pyc": {}, ".jar": {}, ".mp3": {}, ".wav": {}, ".mp4": {},
	".mov": {}, ".avi": {}, ".db": {}, ".sqlite": {}, ".woff": {}, ".ttf": {},
}

// fallbackEncodings is tried in order when a file is not valid UTF-8.
// Latin-1 maps every byte, so it is only accepted without C1 control bytes;
// text carrying them (curly quotes, dashes) falls through to Windows-1252.
var fallbackEncodings = []fallbackEncoding{
	{charmap.ISO8859_1, hasNoC1Controls},
	{charmap.Windows1252, nil},
}

type fallbackEncoding struct {
	enc    encoding.Encoding
	accept func(data []byte) bool
}

func hasNoC1Controls(data []byte) bool {
	for _, b := range data {
		if b >= 0x80 && b <= 0x9F {
			return false
		}
	}
	return true
}

// Reader reads documents from disk. The zero value is not usable; use
// NewReader.
type Reader struct {
	runner   CommandRunner
	lookPath func(file string) (string, error)
}

// ReaderOption configures a Reader.
type ReaderOption func(*Reader)

// WithCommandRunner replaces the runner used for external extractors.
func WithCommandRunner(runner CommandRunner) ReaderOption {
	return func(r *Reader) { r.runner = runner }
}

// WithLookPath replaces the PATH lookup used to find external extractors.
func WithLookPath(lookPath func(file string) (string, error)) ReaderOption {
	return func(r *Reader) { r.lookPath = lookPath }
}

// NewReader returns a Reader that extracts PDFs with pdftotext when it is
// installed.
func NewReader(opts ...ReaderOption) *Reader {
	r := &Reader{runner: execRunner{}, lookPath: exec.LookPath}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

var defaultReader = NewReader()

// ReadFile reads one file with the default Reader.
func ReadFile(ctx context.Context, path string) (Input, error) {
	return defaultReader.ReadFile(ctx, path)
}

// ReadDir reads a directory with the default Reader.
func ReadDir(ctx context.Context, path string) (Input, error) {
	return defaultReader.ReadDir(ctx, path)
}

// IsBinaryName reports whether name has an extension that is skipped.
func IsBinaryName(name string) bool {
	_, ok := binaryExtensions[strings.ToLower(filepath.Ext(name))]
	return ok
}

// ReadFile reads one file. HTML is converted to markdown and PDF text is
// extracted with pdftotext.
func (r *Reader) ReadFile(ctx context.Context, path string) (Input, error) {
	info, err := os.Stat(path)
	if err != nil {
		return Input{}, fmt.Errorf("ingest: %w", err)
	}
	if !info.Mode().IsRegular() {
		return Input{}, fmt.Errorf("%w: %s", ErrNotFile, path)
	}

	text, err := r.readText(ctx, path)
	if err != nil {
		return Input{}, err
	}
	return Input{Source: SourceFile, Name: path, Text: text, Files: 1}, nil
}

// ReadDir reads every readable file directly inside path, in name order, and
// joins them with a header naming each file. Subdirectories and binary files
// are skipped; a file that fails to read is logged and skipped.
func (r *Reader) ReadDir(ctx context.Context, path string) (Input, error) {
	info, err := os.Stat(path)
	if err != nil {
		return Input{}, fmt.Errorf("ingest: %w", err)
	}
	if !info.IsDir() {
		return Input{}, fmt.Errorf("%w: %s", ErrNotDir, path)
	}

	entries, err := os.ReadDir(path)
	if err != nil {
		return Input{}, fmt.Errorf("ingest: %w", err)
	}
	slices.SortFunc(entries, func(a, b os.DirEntry) int { return strings.Compare(a.Name(), b.Name()) })

	var b strings.Builder
	read, skipped, failed := 0, 0, 0
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		if IsBinaryName(entry.Name()) {
			slog.Debug("skipping binary file", slog.String("file", entry.Name()))
			skipped++
			continue
		}

		if err := ctx.Err(); err != nil {
			return Input{}, err
		}
		text, err := r.readText(ctx, filepath.Join(path, entry.Name()))
		if err != nil {
			slog.Warn("skipping unreadable file", slog.String("file", entry.Name()), slog.String("error", err.Error()))
			failed++
			continue
		}
		if strings.TrimSpace(text) == "" {
			continue
		}
		fmt.Fprintf(&b, "\n\n--- Content from: %s ---\n\n%s", entry.Name(), text)
		read++
	}

	if read == 0 {
		return Input{}, fmt.Errorf("%w: %s (%d entries, %d binary, %d read errors)",
			ErrNoReadableFile, path, len(entries), skipped, failed)
	}
	slog.Info("read directory", slog.String("dir", path), slog.Int("files", read),
		slog.Int("skipped_binary", skipped), slog.Int("read_errors", failed))
	return Input{Source: SourceDir, Name: path, Text: b.String(), Files: read}, nil
}

// ReadStdin reads all of r.
func ReadStdin(r io.Reader) (Input, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return Input{}, fmt.Errorf("ingest: read stdin: %w", err)
	}
	return Input{Source: SourceStdin, Name: "stdin", Text: decode(data)}, nil
}

// Limit truncates in to at most maxChars characters.
func Limit(in Input, maxChars int) Input {
	if maxChars <= 0 || utf8.RuneCountInString(in.Text) <= maxChars {
		return in
	}
	runes := []rune(in.Text)
	in.Text = string(runes[:maxChars])
	in.Truncated = true
	return in
}

func (r *Reader) readText(ctx context.Context, path string) (string, error) {
	if strings.EqualFold(filepath.Ext(path), ".pdf") {
		return r.extractPDF(ctx, path)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("ingest: %w", err)
	}
	text := decode(data)

	switch strings.ToLower(filepath.Ext(path)) {
	case ".html", ".htm":
		markdown, err := htmltomarkdown.ConvertString(text)
		if err != nil {
			return "", fmt.Errorf("ingest: convert %s: %w", filepath.Base(path), err)
		}
		return markdown, nil
	}
	return text, nil
}

// decode returns data as UTF-8. A UTF-8 BOM is dropped; invalid UTF-8 is
// decoded with the first fallback encoding that accepts it.
func decode(data []byte) string {
	if utf8.Valid(data) {
		if out, err := unicode.UTF8BOM.NewDecoder().Bytes(data); err == nil {
			return string(out)
		}
		return string(data)
	}
	for _, fb := range fallbackEncodings {
		if fb.accept != nil && !fb.accept(data) {
			continue
		}
		out, err := fb.enc.NewDecoder().Bytes(data)
		if err == nil && !strings.ContainsRune(string(out), utf8.RuneError) {
			return string(out)
		}
	}
	return strings.ToValidUTF8(string(data), string(utf8.RuneError))
}
