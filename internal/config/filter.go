package config

import (
	"os"
	"path/filepath"
	"strings"

	ignore "github.com/sabhiram/go-gitignore"
	log "github.com/sirupsen/logrus"

	"mountfs/internal/cache"
)

// HiddenFilter hides root-relative paths from resolution and indexing.
// Checks run in order:
//  1. includes (force-include, overrides everything below)
//  2. patterns from the settings
//  3. .gitignore files found below the primary root
type HiddenFilter struct {
	includes []string
	patterns *ignore.GitIgnore
	matcher  *gitignoreMatcher
}

var _ cache.Filter = (*HiddenFilter)(nil)

// NewHiddenFilter builds the filter described by cfg. root is the primary
// root scanned for .gitignore files; it is ignored unless cfg.Gitignore is set.
// Returns nil when nothing would ever be hidden.
func NewHiddenFilter(root string, cfg HiddenConfig) *HiddenFilter {
	f := &HiddenFilter{}
	for _, inc := range cfg.Includes {
		if inc = strings.Trim(filepath.ToSlash(inc), "/"); inc != "" {
			f.includes = append(f.includes, strings.ToLower(inc))
		}
	}
	if len(cfg.Patterns) > 0 {
		f.patterns = ignore.CompileIgnoreLines(cfg.Patterns...)
	}
	if cfg.Gitignore && root != "" {
		m, err := newGitignoreMatcher(root)
		if err != nil {
			log.Debugf("[Filter] failed to build gitignore matcher: %v", err)
		}
		f.matcher = m
	}
	if f.patterns == nil && (f.matcher == nil || len(f.matcher.matchers) == 0) {
		return nil
	}
	return f
}

// Hidden reports whether rel (relative to a root, "/" separated) is hidden.
func (f *HiddenFilter) Hidden(rel string, isDir bool) bool {
	if f == nil || rel == "" {
		return false
	}
	lower := strings.ToLower(rel)
	for _, inc := range f.includes {
		if lower == inc || strings.HasPrefix(lower, inc+"/") {
			return false
		}
	}

	check := rel
	if isDir {
		check += "/"
	}
	if f.patterns != nil && (f.patterns.MatchesPath(check) || f.patterns.MatchesPath(rel)) {
		return true
	}
	return f.matcher.isIgnored(rel, isDir)
}

// gitignoreMatcher collects .gitignore rules from a directory tree
type gitignoreMatcher struct {
	matchers []scopedMatcher
}

type scopedMatcher struct {
	dirPrefix string
	ignore    *ignore.GitIgnore
}

func newGitignoreMatcher(root string) (*gitignoreMatcher, error) {
	m := &gitignoreMatcher{}

	err := filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return nil
		}
		if info.IsDir() {
			if filepath.Base(path) == ".git" && path != root {
				return filepath.SkipDir
			}
			return nil
		}
		if filepath.Base(path) != ".gitignore" {
			return nil
		}

		data, readErr := os.ReadFile(path)
		if readErr != nil {
			return nil
		}
		relDir, relErr := filepath.Rel(root, filepath.Dir(path))
		if relErr != nil {
			return nil
		}
		if relDir == "." {
			relDir = ""
		}

		m.matchers = append(m.matchers, scopedMatcher{
			dirPrefix: filepath.ToSlash(relDir),
			ignore:    ignore.CompileIgnoreLines(strings.Split(string(data), "\n")...),
		})
		return nil
	})
	if err != nil {
		return nil, err
	}
	return m, nil
}

func (m *gitignoreMatcher) isIgnored(relPath string, isDir bool) bool {
	if m == nil || len(m.matchers) == 0 {
		return false
	}

	checkPath := relPath
	if isDir {
		checkPath = relPath + "/"
	}

	for _, sm := range m.matchers {
		pathToCheck := checkPath
		if sm.dirPrefix != "" {
			prefix := sm.dirPrefix + "/"
			if !strings.HasPrefix(relPath, prefix) {
				continue
			}
			pathToCheck = strings.TrimPrefix(checkPath, prefix)
		}
		if sm.ignore.MatchesPath(pathToCheck) {
			return true
		}
	}
	return false
}
