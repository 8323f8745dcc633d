// Package explain collects source files and asks a model to explain them
package explain

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/teranos/strata/errors"
	"github.com/teranos/strata/logger"
)

// CPPExtensions are the C and C++ source suffixes collected by default
var CPPExtensions = []string{".cpp", ".cc", ".cxx", ".c", ".hpp", ".hh", ".hxx", ".h"}

// Skip reasons
const (
	ReasonMaxFiles = "max-files"
	ReasonMaxBytes = "max-bytes"
)

// readConcurrency bounds parallel file reads
const readConcurrency = 8

// SourceFile is a file selected for explanation
type SourceFile struct {
	Path    string // as found on disk
	RelPath string // relative to the working directory, used in prompts
}

// FileBlob is a file that fit the byte budget
type FileBlob struct {
	Path     string
	Content  string
	ByteSize int
}

// SkipInfo is a file left out and why
type SkipInfo struct {
	Path   string `json:"path"`
	Reason string `json:"reason"`
}

func (s SkipInfo) String() string {
	return fmt.Sprintf("%s (%s)", s.Path, s.Reason)
}

// Collect finds files under paths whose extension is in exts, compared
// case-insensitively. Directories are walked recursively and missing
// paths are ignored. Results are sorted by path relative to the working
// directory and deduplicated.
func Collect(paths []string, exts []string) ([]SourceFile, error) {
	cwd, err := os.Getwd()
	if err != nil {
		return nil, errors.Wrap(err, "failed to determine working directory")
	}

	want := make(map[string]bool, len(exts))
	for _, ext := range exts {
		want[strings.ToLower(ext)] = true
	}
	matches := func(path string) bool {
		return want[strings.ToLower(filepath.Ext(path))]
	}

	seen := make(map[string]bool)
	var files []SourceFile
	add := func(path string) {
		rel := relPath(cwd, path)
		if seen[rel] {
			return
		}
		seen[rel] = true
		files = append(files, SourceFile{Path: path, RelPath: rel})
	}

	for _, root := range paths {
		info, err := os.Stat(root)
		if err != nil {
			continue
		}
		if !info.IsDir() {
			if info.Mode().IsRegular() && matches(root) {
				add(root)
			}
			continue
		}
		err = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return nil
			}
			if d.Type().IsRegular() && matches(path) {
				add(path)
			}
			return nil
		})
		if err != nil {
			return nil, errors.Wrapf(err, "failed to walk %s", root)
		}
	}

	sort.Slice(files, func(i, j int) bool { return files[i].RelPath < files[j].RelPath })
	return files, nil
}

// Limit keeps the first maxFiles files and reports the rest as max-files
func Limit(files []SourceFile, maxFiles int) ([]SourceFile, []SkipInfo) {
	if maxFiles < 0 || len(files) <= maxFiles {
		return files, nil
	}
	skipped := make([]SkipInfo, 0, len(files)-maxFiles)
	for _, f := range files[maxFiles:] {
		skipped = append(skipped, SkipInfo{Path: f.RelPath, Reason: ReasonMaxFiles})
	}
	return files[:maxFiles], skipped
}

// ReadWithBudget reads files concurrently, then admits them in order
// while the running UTF-8 size stays within maxBytes. The first file that
// would overflow is skipped together with every file after it. Invalid
// UTF-8 is replaced, and an unreadable file counts as empty.
func ReadWithBudget(ctx context.Context, files []SourceFile, maxBytes int, log *zap.SugaredLogger) ([]FileBlob, []SkipInfo, error) {
	if log == nil {
		log = logger.LoggerFromContext(ctx)
	}

	contents := make([]string, len(files))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(readConcurrency)
	for i, f := range files {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			data, err := os.ReadFile(f.Path)
			if err != nil {
				log.Warnw("Failed to read source file", logger.FieldPath, f.RelPath, logger.FieldError, err.Error())
				return nil
			}
			contents[i] = strings.ToValidUTF8(string(data), "�")
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, nil, errors.Wrap(err, "reading sources cancelled")
	}

	var blobs []FileBlob
	var skipped []SkipInfo
	total := 0
	for i, f := range files {
		size := len(contents[i])
		if total+size > maxBytes {
			for _, rest := range files[i:] {
				skipped = append(skipped, SkipInfo{Path: rest.RelPath, Reason: ReasonMaxBytes})
			}
			break
		}
		blobs = append(blobs, FileBlob{Path: f.RelPath, Content: contents[i], ByteSize: size})
		total += size
	}

	log.Debugw("Sources read",
		logger.FieldCount, len(blobs),
		logger.FieldSize, total,
		"skipped", len(skipped))
	return blobs, skipped, nil
}

// FilesBlock renders blobs as <file> elements separated by blank lines
func FilesBlock(blobs []FileBlob) string {
	parts := make([]string, len(blobs))
	for i, b := range blobs {
		parts[i] = fmt.Sprintf("<file path=\"%s\">\n%s\n</file>", b.Path, b.Content)
	}
	return strings.Join(parts, "\n\n")
}

func relPath(cwd, path string) string {
	abs, err := filepath.Abs(path)
	if err != nil {
		return filepath.ToSlash(path)
	}
	rel, err := filepath.Rel(cwd, abs)
	if err != nil {
		return filepath.ToSlash(path)
	}
	return filepath.ToSlash(rel)
}
