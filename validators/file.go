// Package validators holds input validation shared between handlers
package validators

import (
	"errors"
	"path"
	"regexp"
	"slices"
	"strings"
)

var (
	ErrNoFile              = errors.New("no file provided")
	ErrFileTooLarge        = errors.New("file too large")
	ErrFileNameTooLong     = errors.New("file name is too long")
	ErrFileTypeUnsupported = errors.New("file type not allowed")
)

// Extensions a file may carry to be accepted for staging
var allowedExtensions = []string{
	".jpg", ".jpeg", ".png", ".gif", ".pdf", ".doc", ".docx", ".xls", ".xlsx", ".txt",
}

const maxFileNameSize = 245

var unsafeChars = regexp.MustCompile(`[^a-zA-Z0-9_.-]`)

// SanitizeFileName strips anything outside the safe character set so the
// user-supplied name can be stored and echoed back verbatim
func SanitizeFileName(name string) string {
	return unsafeChars.ReplaceAllString(name, "_")
}

// CheckFileName validates an already sanitized display name against the
// extension allow-list and the name length cap
func CheckFileName(name string) error {
	if name == "" {
		return ErrNoFile
	}

	if len(name) > maxFileNameSize {
		return ErrFileNameTooLong
	}

	ext := strings.ToLower(path.Ext(name))
	if !slices.Contains(allowedExtensions, ext) {
		return ErrFileTypeUnsupported
	}

	return nil
}
