package store

import (
	"fmt"
	"strings"
)

// Namespace is an ordered sequence of path segments scoping a set of
// keys to one logical session/agent/environment. It is persisted as a
// single "/"-joined path and treated as opaque below this layer.
type Namespace []string

// NS builds a namespace from path segments.
func NS(segments ...string) Namespace {
	return Namespace(segments)
}

// Path returns the joined storage form, e.g. "proj/dev/planner/sess-1".
func (n Namespace) Path() string {
	return strings.Join(n, "/")
}

func (n Namespace) String() string { return n.Path() }

// splitPath reverses Path for records read back from storage.
func splitPath(path string) Namespace {
	if path == "" {
		return nil
	}
	return Namespace(strings.Split(path, "/"))
}

// Validate rejects empty namespaces, empty segments, and segments that
// would collide with the path separator.
func (n Namespace) Validate() error {
	if len(n) == 0 {
		return fmt.Errorf("namespace must have at least one segment")
	}
	for i, seg := range n {
		if strings.TrimSpace(seg) == "" {
			return fmt.Errorf("namespace segment %d is empty", i)
		}
		if strings.Contains(seg, "/") {
			return fmt.Errorf("namespace segment %q contains '/'", seg)
		}
	}
	return nil
}
