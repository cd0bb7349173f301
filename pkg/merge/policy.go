package merge

import (
	"fmt"
	"path"
	"strings"
)

// ResourcePolicy decides the output bytes of a non-class entry present on
// both sides with different contents.
type ResourcePolicy string

const (
	PolicyClient ResourcePolicy = "client" // client bytes win
	PolicyServer ResourcePolicy = "server" // server bytes win
	PolicyError  ResourcePolicy = "error"  // abort the run
)

// ParseResourcePolicy validates a policy name. The empty string selects
// PolicyClient.
func ParseResourcePolicy(s string) (ResourcePolicy, error) {
	switch ResourcePolicy(s) {
	case "", PolicyClient:
		return PolicyClient, nil
	case PolicyServer, PolicyError:
		return ResourcePolicy(s), nil
	}
	return "", fmt.Errorf("unknown resource conflict policy %q (want client, server or error)", s)
}

// excludeSet matches entry paths against exclusion patterns. A pattern is
// either path.Match syntax over the whole entry path, or "dir/**" which
// matches everything below dir.
type excludeSet struct {
	patterns []string
}

func newExcludeSet(patterns []string) (*excludeSet, error) {
	for _, p := range patterns {
		if strings.HasSuffix(p, "/**") {
			continue
		}
		if _, err := path.Match(p, ""); err != nil {
			return nil, fmt.Errorf("exclude pattern %q: %w", p, err)
		}
	}
	return &excludeSet{patterns: patterns}, nil
}

func (s *excludeSet) match(name string) bool {
	if s == nil {
		return false
	}
	for _, p := range s.patterns {
		if prefix, ok := strings.CutSuffix(p, "**"); ok && strings.HasSuffix(prefix, "/") {
			if strings.HasPrefix(name, prefix) {
				return true
			}
			continue
		}
		if ok, _ := path.Match(p, name); ok {
			return true
		}
	}
	return false
}
