package platform

import "github.com/bmatcuk/doublestar/v4"

// Glob reports whether name matches the doublestar pattern pattern. Patterns
// support "**" for recursive directory matching, used by the inspector's
// search-by-path-glob.
func Glob(pattern, name string) (bool, error) {
	return doublestar.Match(pattern, name)
}

// GlobFiles expands pattern against the host filesystem (used by the
// loader's cached-install probe).
func GlobFiles(pattern string) ([]string, error) {
	return doublestar.FilepathGlob(pattern)
}

// Fnmatch is an alias for Glob kept distinct so callers can express intent
// ("fnmatch" for a single path segment vs "glob" for a filesystem walk).
func Fnmatch(pattern, name string) (bool, error) {
	return doublestar.Match(pattern, name)
}
