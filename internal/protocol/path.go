package protocol

import (
	"errors"
	"path"
	"strings"
)

// ErrUnsafePath is returned by NormalizePath for paths that are empty,
// absolute, or escape their root.
var ErrUnsafePath = errors.New("unsafe artifact path")

// NormalizePath cleans a relative artifact path: backslashes become slashes,
// a leading "./" is removed, and the result must stay inside its root.
func NormalizePath(p string) (string, error) {
	p = strings.TrimSpace(strings.ReplaceAll(p, "\\", "/"))
	for strings.HasPrefix(p, "./") {
		p = strings.TrimPrefix(p, "./")
	}
	if p == "" || strings.HasPrefix(p, "/") || (len(p) > 1 && p[1] == ':') {
		return "", ErrUnsafePath
	}
	cleaned := path.Clean(p)
	if cleaned == "." || cleaned == ".." || strings.HasPrefix(cleaned, "../") {
		return "", ErrUnsafePath
	}
	return cleaned, nil
}
