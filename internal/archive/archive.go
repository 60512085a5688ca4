// Package archive places processed documents into the archive tree and
// writes their sidecar files.
package archive

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/doctagger/doctagger/internal/models"
	"github.com/doctagger/doctagger/internal/normalize"
)

const (
	// DefaultStructure is the archive path template. Supported
	// placeholders: {year}, {month}, {day}, {document_type}.
	DefaultStructure = "{year}/{month}/{document_type}"

	dateLayout = "2006-01-02"

	// maxSuffix bounds collision resolution attempts.
	maxSuffix = 1000
)

// Archiver moves documents into the archive and manages sidecars.
type Archiver struct {
	root      string
	structure string
}

// New creates an Archiver rooted at root. An empty structure uses the
// default template.
func New(root, structure string) *Archiver {
	if structure == "" {
		structure = DefaultStructure
	}
	return &Archiver{root: root, structure: structure}
}

// ResolveDir expands the path template for a tagging result. A missing
// or unparseable date falls back to the current time; a missing
// document type falls back to "other".
func (a *Archiver) ResolveDir(tagging *models.TaggingResult, now time.Time) string {
	docType := "other"
	date := now
	if tagging != nil {
		docType = normalize.DocumentType(tagging.DocumentType)
		if tagging.Date != "" {
			if d, err := time.Parse(dateLayout, tagging.Date); err == nil {
				date = d
			}
		}
	}

	replacer := strings.NewReplacer(
		"{year}", fmt.Sprintf("%04d", date.Year()),
		"{month}", fmt.Sprintf("%02d", int(date.Month())),
		"{day}", fmt.Sprintf("%02d", date.Day()),
		"{document_type}", docType,
	)
	return filepath.Join(a.root, filepath.FromSlash(replacer.Replace(a.structure)))
}

// Place moves the file at src into the archive directory for tagging,
// under the given filename. Name collisions are resolved with _1, _2
// suffixes. The destination is reserved exclusively before any data is
// copied, and src is removed only after the copy succeeds.
func (a *Archiver) Place(src string, tagging *models.TaggingResult, filename string) (string, error) {
	dir := a.ResolveDir(tagging, time.Now())
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create archive dir %s: %w", dir, err)
	}

	name := normalize.Filename(filename)
	dst, out, err := reserve(dir, name)
	if err != nil {
		return "", err
	}

	if err := copyInto(out, src); err != nil {
		out.Close()
		os.Remove(dst)
		return "", err
	}
	if err := out.Close(); err != nil {
		os.Remove(dst)
		return "", fmt.Errorf("failed to finalize %s: %w", dst, err)
	}

	if err := os.Remove(src); err != nil {
		return "", fmt.Errorf("archived to %s but failed to remove source %s: %w", dst, src, err)
	}
	return dst, nil
}

// reserve creates the destination file exclusively, trying suffixed
// names until an unused one is found.
func reserve(dir, name string) (string, *os.File, error) {
	ext := filepath.Ext(name)
	base := strings.TrimSuffix(name, ext)

	for i := 0; i < maxSuffix; i++ {
		candidate := name
		if i > 0 {
			candidate = fmt.Sprintf("%s_%d%s", base, i, ext)
		}
		path := filepath.Join(dir, candidate)
		f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
		if err == nil {
			return path, f, nil
		}
		if !os.IsExist(err) {
			return "", nil, fmt.Errorf("failed to create %s: %w", path, err)
		}
	}
	return "", nil, fmt.Errorf("could not find free name for %s in %s", name, dir)
}

func copyInto(dst *os.File, src string) error {
	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", src, err)
	}
	defer in.Close()

	if _, err := io.Copy(dst, in); err != nil {
		return fmt.Errorf("failed to copy %s: %w", src, err)
	}
	return dst.Sync()
}

// ContainsName reports whether a file with the given base name exists
// anywhere under the archive root.
func (a *Archiver) ContainsName(name string) bool {
	found := false
	filepath.WalkDir(a.root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if !d.IsDir() && d.Name() == name {
			found = true
			return fs.SkipAll
		}
		return nil
	})
	return found
}

// FindByHash returns the path of an archived PDF whose content hash
// matches, or "" when none does.
func (a *Archiver) FindByHash(hash string) string {
	if hash == "" {
		return ""
	}
	match := ""
	filepath.WalkDir(a.root, func(path string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return nil
		}
		if !strings.EqualFold(filepath.Ext(path), ".pdf") {
			return nil
		}
		if h, hashErr := HashFile(path); hashErr == nil && h == hash {
			match = path
			return fs.SkipAll
		}
		return nil
	})
	return match
}

// HashFile returns the hex SHA-256 of the file contents.
func HashFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// SidecarPath returns the sidecar location for a document path.
func SidecarPath(pdfPath string) string {
	return pdfPath + ".json"
}

// WriteSidecar writes the processing result as pretty JSON next to the
// document and returns the sidecar path.
func WriteSidecar(pdfPath string, result *models.ProcessingResult) (string, error) {
	path := SidecarPath(pdfPath)
	data, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to encode sidecar: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("failed to write sidecar %s: %w", path, err)
	}
	return path, nil
}

// ReadSidecar loads a sidecar file if present. A missing sidecar
// returns (nil, nil).
func ReadSidecar(pdfPath string) (*models.ProcessingResult, error) {
	data, err := os.ReadFile(SidecarPath(pdfPath))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read sidecar: %w", err)
	}
	var result models.ProcessingResult
	if err := json.Unmarshal(data, &result); err != nil {
		return nil, fmt.Errorf("failed to decode sidecar: %w", err)
	}
	return &result, nil
}
