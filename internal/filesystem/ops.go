package filesystem

import (
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/text2tracks/backend/internal/constants"
)

// Sanitize strips characters that are unsafe in file names and trims
// trailing dots and spaces. Dataset ids pass through here before they
// become scratch file names, so path separators must not survive.
func Sanitize(s string) string {
	mapped := strings.Map(func(r rune) rune {
		if strings.ContainsRune(constants.InvalidPathChars, r) {
			return -1
		}
		return r
	}, s)

	return strings.TrimRight(mapped, ". ")
}

func EnsureDir(path string) error {
	return os.MkdirAll(path, constants.DirPermissions)
}

// ExtFromURL picks the filename extension from a source URL, defaulting to
// .mp3 when the URL carries none. Query strings do not leak into the
// extension.
func ExtFromURL(rawURL string) string {
	p := rawURL
	if u, err := url.Parse(rawURL); err == nil && u.Path != "" {
		p = u.Path
	}
	ext := strings.ToLower(filepath.Ext(p))
	if ext == "" {
		return constants.ExtMP3
	}
	return ext
}
