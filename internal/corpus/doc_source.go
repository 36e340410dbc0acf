package corpus

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
)

const maxDocBytes = 256 << 10

var (
	errNoDocs        = errors.New("documentation root not found")
	errNoReadableDoc = errors.New("no readable documentation files")
)

// DocSource walks a documentation tree, keeping files whose extension is
// listed and skipping excluded directory names. Unreadable files and
// subdirectories are logged and skipped.
type DocSource struct {
	Root         string
	FileTypes    []string
	ExcludedDirs []string
	Logger       *slog.Logger
}

func (s *DocSource) log() *slog.Logger {
	if s.Logger == nil {
		return slog.Default()
	}
	return s.Logger
}

func (s *DocSource) Fetch(ctx context.Context) ([]DocFile, error) {
	info, err := os.Stat(s.Root)
	if err != nil || !info.IsDir() {
		return nil, fmt.Errorf("%w: %s", errNoDocs, s.Root)
	}

	var (
		out     []DocFile
		skipped int
	)
	err = filepath.WalkDir(s.Root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if path == s.Root {
				return err
			}
			skipped++
			s.log().Warn("documentation path skipped", "path", path, "error", err)
			if d != nil && d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		if d.IsDir() {
			if path != s.Root && s.excludedDir(d.Name()) {
				return filepath.SkipDir
			}
			return nil
		}
		if !s.wantedFile(path) {
			return nil
		}

		text, truncated, err := readCapped(path)
		if err != nil {
			skipped++
			s.log().Warn("documentation file skipped", "path", path, "error", err)
			return nil
		}
		if truncated {
			s.log().Warn("documentation file truncated", "path", path, "limit_bytes", maxDocBytes)
		}
		fi, err := d.Info()
		if err != nil {
			skipped++
			s.log().Warn("documentation file skipped", "path", path, "error", err)
			return nil
		}
		rel, err := filepath.Rel(s.Root, path)
		if err != nil {
			rel = path
		}
		rel = filepath.ToSlash(rel)
		out = append(out, DocFile{
			ID:      rel,
			Title:   docTitle(rel, text),
			Text:    text,
			ModTime: fi.ModTime(),
		})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("documentation source: %w", err)
	}
	if len(out) == 0 && skipped > 0 {
		return nil, fmt.Errorf("documentation source: %w (%d skipped)", errNoReadableDoc, skipped)
	}
	return out, nil
}

func (s *DocSource) excludedDir(name string) bool {
	return containsFold(s.ExcludedDirs, name)
}

func (s *DocSource) wantedFile(path string) bool {
	return matchExtension(path, s.FileTypes)
}

func matchExtension(path string, exts []string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	if ext == "" {
		return false
	}
	for _, e := range exts {
		e = strings.ToLower(strings.TrimSpace(e))
		if !strings.HasPrefix(e, ".") {
			e = "." + e
		}
		if ext == e {
			return true
		}
	}
	return false
}

// readCapped reads at most maxDocBytes and reports whether the file was
// longer.
func readCapped(path string) (string, bool, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", false, err
	}
	defer f.Close()
	b, err := io.ReadAll(io.LimitReader(f, maxDocBytes+1))
	if err != nil {
		return "", false, err
	}
	truncated := len(b) > maxDocBytes
	if truncated {
		b = b[:maxDocBytes]
	}
	return string(bytes.ToValidUTF8(b, nil)), truncated, nil
}

// docTitle uses the first markdown heading, else the file name.
func docTitle(rel, text string) string {
	sc := bufio.NewScanner(strings.NewReader(text))
	for i := 0; sc.Scan() && i < 20; i++ {
		line := strings.TrimSpace(sc.Text())
		if strings.HasPrefix(line, "#") {
			if t := strings.TrimSpace(strings.TrimLeft(line, "#")); t != "" {
				return t
			}
		}
	}
	base := filepath.Base(rel)
	return strings.TrimSuffix(base, filepath.Ext(base))
}
