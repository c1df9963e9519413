package uploads

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"unicode"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"
	"golang.org/x/text/unicode/norm"
)

var (
	ErrUnsupportedType = errors.New("only image uploads are accepted")
	ErrEmptyFile       = errors.New("uploaded file is empty")
)

// sniffLen is how much of the upload is inspected to detect its type
const sniffLen = 3072

var unsafeChars = regexp.MustCompile(`[^A-Za-z0-9_.-]`)

// reserved device names that must not be used as file names on Windows hosts
var reservedNames = map[string]bool{
	"CON": true, "PRN": true, "AUX": true, "NUL": true,
	"COM1": true, "COM2": true, "COM3": true, "COM4": true,
	"LPT1": true, "LPT2": true, "LPT3": true,
}

// Store keeps uploaded product photos in a single directory. Files with the
// same sanitized name overwrite each other and are never cleaned up.
type Store struct {
	dir string
}

// NewStore creates the upload directory if needed
func NewStore(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create upload dir: %w", err)
	}
	return &Store{dir: dir}, nil
}

// Dir returns the directory holding uploaded files
func (s *Store) Dir() string {
	return s.dir
}

// Save checks that content is an image and writes it under a sanitized
// version of filename. A generated name is used when nothing safe remains.
func (s *Store) Save(filename string, content io.Reader) (string, error) {
	head := make([]byte, sniffLen)
	n, err := io.ReadFull(content, head)
	if err != nil && !errors.Is(err, io.EOF) && !errors.Is(err, io.ErrUnexpectedEOF) {
		return "", fmt.Errorf("failed to read upload: %w", err)
	}
	if n == 0 {
		return "", ErrEmptyFile
	}
	head = head[:n]

	mtype := mimetype.Detect(head)
	if !strings.HasPrefix(mtype.String(), "image/") {
		return "", fmt.Errorf("%w: got %s", ErrUnsupportedType, mtype.String())
	}

	name := SanitizeFilename(filename)
	if name == "" {
		name = uuid.NewString() + mtype.Extension()
	}

	tmp, err := os.CreateTemp(s.dir, ".upload-*")
	if err != nil {
		return "", fmt.Errorf("failed to create upload file: %w", err)
	}
	if _, err := io.Copy(tmp, io.MultiReader(bytes.NewReader(head), content)); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return "", fmt.Errorf("failed to write upload: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return "", fmt.Errorf("failed to write upload: %w", err)
	}
	if err := os.Rename(tmp.Name(), filepath.Join(s.dir, name)); err != nil {
		os.Remove(tmp.Name())
		return "", fmt.Errorf("failed to store upload: %w", err)
	}
	return name, nil
}

// Path returns the on-disk path of a stored file, or false when name is not a
// plain file name produced by SanitizeFilename
func (s *Store) Path(name string) (string, bool) {
	if name == "" || SanitizeFilename(name) != name {
		return "", false
	}
	return filepath.Join(s.dir, name), true
}

// SanitizeFilename reduces a client supplied name to a safe ASCII base name:
// accents are stripped, path separators and whitespace become underscores,
// anything outside [A-Za-z0-9_.-] is dropped and leading dots or underscores
// are trimmed.
func SanitizeFilename(name string) string {
	var b strings.Builder
	for _, r := range norm.NFKD.String(name) {
		if r < unicode.MaxASCII {
			b.WriteRune(r)
		}
	}

	s := strings.NewReplacer("/", " ", `\`, " ").Replace(b.String())
	s = strings.Join(strings.Fields(s), "_")
	s = unsafeChars.ReplaceAllString(s, "")
	s = strings.Trim(s, "._")

	if base, _, _ := strings.Cut(s, "."); reservedNames[strings.ToUpper(base)] {
		s = "_" + s
	}
	return s
}
