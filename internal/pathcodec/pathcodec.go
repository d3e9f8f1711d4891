// Package pathcodec maps absolute project paths to the directory names the
// assistant CLI uses under its projects root, and back.
//
// "/Users/name/Projects/foo" is stored as "-Users-name-Projects-foo".
//
// The mapping is lossy in one direction: a path whose segment names contain
// the reserved character ("/srv/my-app") encodes to a name that decodes to a
// different path ("/srv/my/app"). Encode is always safe to use for lookups;
// Decode is only exact when Ambiguous reports false for the original path.
package pathcodec

import (
	"errors"
	"path/filepath"
	"strings"
)

// Reserved replaces every path separator in an encoded name.
const Reserved = '-'

var (
	// ErrAmbiguous is returned by Validate for paths that cannot survive a
	// decode round-trip.
	ErrAmbiguous = errors.New("path segment contains the reserved character")
	// ErrNotAbsolute is returned by Validate for relative paths.
	ErrNotAbsolute = errors.New("path is not absolute")
)

// Encode replaces every path separator in path with the reserved character.
func Encode(path string) string {
	path = filepath.ToSlash(path)
	return strings.ReplaceAll(path, "/", string(Reserved))
}

// Decode is the inverse of Encode for paths that are not Ambiguous.
func Decode(token string) string {
	if token == "" {
		return ""
	}
	if !strings.HasPrefix(token, string(Reserved)) {
		token = "/" + token
	}
	return strings.ReplaceAll(token, string(Reserved), "/")
}

// Ambiguous reports whether path has a segment containing the reserved
// character, which Decode would turn into an extra separator.
func Ambiguous(path string) bool {
	for _, segment := range strings.Split(filepath.ToSlash(path), "/") {
		if strings.ContainsRune(segment, Reserved) {
			return true
		}
	}
	return false
}

// Validate checks that path is absolute and decodes back to itself.
func Validate(path string) error {
	if !strings.HasPrefix(filepath.ToSlash(path), "/") {
		return ErrNotAbsolute
	}
	if Ambiguous(path) {
		return ErrAmbiguous
	}
	return nil
}
