package filestore

import (
	"bufio"
	"bytes"
	"errors"
	"io/fs"
	"os"
	"path"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
)

// ignoreList holds .kashignore patterns. A pattern without a slash matches
// the base name at any depth; others match the store-relative path.
type ignoreList struct {
	patterns []string
}

func loadIgnore(p string) (*ignoreList, error) {
	raw, err := os.ReadFile(p)
	if errors.Is(err, fs.ErrNotExist) {
		return &ignoreList{}, nil
	}
	if err != nil {
		return nil, err
	}
	return parseIgnore(raw)
}

func parseIgnore(raw []byte) (*ignoreList, error) {
	l := &ignoreList{}
	sc := bufio.NewScanner(bytes.NewReader(raw))
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		line = strings.TrimSuffix(strings.TrimPrefix(line, "/"), "/")
		if !doublestar.ValidatePattern(line) {
			return nil, doublestar.ErrBadPattern
		}
		l.patterns = append(l.patterns, line)
	}
	return l, sc.Err()
}

// match reports whether the store-relative path rel is ignored.
func (l *ignoreList) match(rel string) bool {
	if l == nil {
		return false
	}
	base := path.Base(rel)
	for _, p := range l.patterns {
		target := rel
		if !strings.Contains(p, "/") {
			target = base
		}
		if ok, _ := doublestar.Match(p, target); ok {
			return true
		}
	}
	return false
}
