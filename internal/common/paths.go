// Copyright 2026 MountFS Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package common

import (
	"path/filepath"
	"strings"
)

// Separator is the separator used by logical paths on every platform.
const Separator = "/"

// Canonicalize turns a logical path into its canonical form.
// Both separator styles become "/", "." segments are dropped, ".." removes the
// preceding segment (a leading ".." is dropped, it never escapes the root) and
// duplicate, leading and trailing separators are removed.
// Case is preserved; use NormalizedPath for comparisons.
func Canonicalize(path string) string {
	if path == "" {
		return ""
	}
	path = strings.ReplaceAll(path, `\`, Separator)
	parts := strings.Split(path, Separator)
	out := parts[:0]
	for _, part := range parts {
		switch part {
		case "", ".":
		case "..":
			if len(out) > 0 {
				out = out[:len(out)-1]
			}
		default:
			out = append(out, part)
		}
	}
	return strings.Join(out, Separator)
}

// NormalizedPath returns the canonical, case-folded form of a logical path.
// Two logical paths are equal iff their normalized forms are equal.
func NormalizedPath(path string) string {
	return strings.ToLower(Canonicalize(path))
}

// ComparePath reports whether a and b name the same logical path.
func ComparePath(a, b string) bool {
	return NormalizedPath(a) == NormalizedPath(b)
}

// CanonicalizeAbs canonicalizes a host path, keeping its volume name and
// leading separator so that absolute roots and mounts stay absolute.
func CanonicalizeAbs(path string) string {
	vol := filepath.VolumeName(path)
	rest := path[len(vol):]
	rooted := strings.HasPrefix(rest, "/") || strings.HasPrefix(rest, `\`)
	canon := Canonicalize(rest)
	if rooted {
		canon = Separator + canon
	}
	return vol + canon
}

// SplitPath splits a logical path into its canonical components
func SplitPath(path string) []string {
	path = Canonicalize(path)
	if path == "" {
		return nil
	}
	return strings.Split(path, Separator)
}

// JoinPath joins logical path components and canonicalizes the result
func JoinPath(parts ...string) string {
	return Canonicalize(strings.Join(parts, Separator))
}

// ParentPath returns the parent of a logical path ("" for top-level entries)
func ParentPath(path string) string {
	path = Canonicalize(path)
	idx := strings.LastIndex(path, Separator)
	if idx < 0 {
		return ""
	}
	return path[:idx]
}

// BaseName returns the last component of a logical path
func BaseName(path string) string {
	path = Canonicalize(path)
	idx := strings.LastIndex(path, Separator)
	if idx < 0 {
		return path
	}
	return path[idx+1:]
}

// SplitFind splits a find pattern such as "maps/*.txt" into the directory
// part ("maps") and the name pattern ("*.txt").
func SplitFind(pattern string) (dir, target string) {
	pattern = Canonicalize(pattern)
	idx := strings.LastIndex(pattern, Separator)
	if idx < 0 {
		return "", pattern
	}
	return pattern[:idx], pattern[idx+1:]
}

// HostPath joins a host directory with a logical relative path.
// An empty or "." relative path yields the directory itself.
func HostPath(dir, rel string) string {
	rel = Canonicalize(rel)
	if rel == "" {
		return filepath.Clean(dir)
	}
	return filepath.Join(dir, filepath.FromSlash(rel))
}
