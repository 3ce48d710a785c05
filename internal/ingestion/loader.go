package ingestion

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/adal-ai/adal-go/internal/rag"
)

// SourceFile is one corpus file staged for ingestion.
type SourceFile struct {
	// Path is the file's location on disk, kept as the document source.
	Path string

	// Content is the full file text.
	Content string

	// ContentType classifies the file: rag.ContentTypeAbstract for files
	// following the abstract naming convention, rag.ContentTypeContent
	// otherwise.
	ContentType string
}

// LoadDir reads every .txt and .md file under dir, recursively. Hidden
// files and directories are skipped, as are empty files. Files named
// `<name>.abstract.txt` (or .md) are classified as abstracts; everything
// else is body content.
func LoadDir(dir string) ([]SourceFile, error) {
	info, err := os.Stat(dir)
	if err != nil {
		return nil, fmt.Errorf("ingestion: source directory %q: %w", dir, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("ingestion: source path %q is not a directory", dir)
	}

	var files []SourceFile
	err = filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		name := d.Name()
		if strings.HasPrefix(name, ".") && path != dir {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if d.IsDir() || !supportedExt(name) {
			return nil
		}

		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("reading %q: %w", path, err)
		}
		content := strings.TrimSpace(string(data))
		if content == "" {
			return nil
		}

		files = append(files, SourceFile{
			Path:        path,
			Content:     content,
			ContentType: classify(name),
		})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("ingestion: walking %q: %w", dir, err)
	}
	return files, nil
}

// supportedExt reports whether the filename carries an ingestible extension.
func supportedExt(name string) bool {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".txt", ".md":
		return true
	default:
		return false
	}
}

// classify maps the filename convention to a content type: a ".abstract"
// segment before the extension marks the file as a thesis abstract.
func classify(name string) string {
	stem := strings.TrimSuffix(name, filepath.Ext(name))
	if strings.HasSuffix(strings.ToLower(stem), ".abstract") {
		return rag.ContentTypeAbstract
	}
	return rag.ContentTypeContent
}
