package guildfiles

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// FileType names one of the per-guild knowledge files consumed by prompt
// assembly.
type FileType string

const (
	FileRules      FileType = "rules"
	FileFaqs       FileType = "faqs"
	FileLevelRoles FileType = "level_roles"
)

// MaxFileSize is the upload ceiling for a guild knowledge file.
const MaxFileSize = 1024 * 1024

var (
	// ErrInvalidFileType is returned for a name outside the known set.
	ErrInvalidFileType = errors.New("invalid guild file type")

	// ErrInvalidExtension is returned for uploads that are not .txt or .md.
	ErrInvalidExtension = errors.New("only .txt and .md files are supported")

	// ErrFileTooLarge is returned for uploads over MaxFileSize.
	ErrFileTooLarge = errors.New("file exceeds the 1MB size limit")
)

// ValidFileType reports whether t is one of the known file types.
func ValidFileType(t FileType) bool {
	switch t {
	case FileRules, FileFaqs, FileLevelRoles:
		return true
	default:
		return false
	}
}

// ValidateUpload checks an upload's filename and size against the write
// path rules before any bytes are fetched.
func ValidateUpload(fileType FileType, filename string, size int64) error {
	if !ValidFileType(fileType) {
		return ErrInvalidFileType
	}
	ext := strings.ToLower(filepath.Ext(filename))
	if ext != ".txt" && ext != ".md" {
		return ErrInvalidExtension
	}
	if size > MaxFileSize {
		return ErrFileTooLarge
	}
	return nil
}

// Store reads and writes per-guild knowledge files under a base directory,
// one subdirectory per guild.
type Store struct {
	// baseDir is the root of the guild data tree.
	baseDir string
}

// NewStore creates a store rooted at baseDir.
func NewStore(baseDir string) *Store {
	return &Store{baseDir: baseDir}
}

func (s *Store) path(guildID string, fileType FileType) string {
	return filepath.Join(s.baseDir, guildID, fmt.Sprintf("%s.txt", fileType))
}

// Read returns the trimmed content of a guild file, or "" when the file has
// never been uploaded.
func (s *Store) Read(guildID string, fileType FileType) (string, error) {
	if !ValidFileType(fileType) {
		return "", ErrInvalidFileType
	}

	content, err := os.ReadFile(s.path(guildID, fileType))
	if errors.Is(err, os.ErrNotExist) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("error reading guild file: %w", err)
	}
	return strings.TrimSpace(string(content)), nil
}

// Write stores the content of a guild file, creating the guild's directory
// on first use. Content over MaxFileSize is rejected.
func (s *Store) Write(guildID string, fileType FileType, content []byte) error {
	if !ValidFileType(fileType) {
		return ErrInvalidFileType
	}
	if int64(len(content)) > MaxFileSize {
		return ErrFileTooLarge
	}

	dir := filepath.Join(s.baseDir, guildID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("error creating guild data directory: %w", err)
	}

	if err := os.WriteFile(s.path(guildID, fileType), content, 0o644); err != nil {
		return fmt.Errorf("error writing guild file: %w", err)
	}
	return nil
}
