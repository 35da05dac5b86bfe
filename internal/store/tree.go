package store

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
)

const (
	// Separator splits path segments.
	Separator = "/"

	illegalKeyChars = "/.#$[]"
)

// ValidateKey checks a single path segment.
func ValidateKey(key string) error {
	if key == "" {
		return fmt.Errorf("%w: empty key", ErrInvalidPath)
	}
	if strings.ContainsAny(key, illegalKeyChars) {
		return fmt.Errorf("%w: key %q contains one of %q", ErrInvalidPath, key, illegalKeyChars)
	}
	return nil
}

// Split returns the validated segments of path.
func Split(path string) ([]string, error) {
	if path == "" {
		return nil, fmt.Errorf("%w: empty path", ErrInvalidPath)
	}
	parts := strings.Split(path, Separator)
	for _, p := range parts {
		if err := ValidateKey(p); err != nil {
			return nil, err
		}
	}
	return parts, nil
}

// Join builds a path from segments.
func Join(parts ...string) string {
	return strings.Join(parts, Separator)
}

// IsRelated reports whether a and b are equal or one is an ancestor of the other.
func IsRelated(a, b string) bool {
	return a == b ||
		strings.HasPrefix(a, b+Separator) ||
		strings.HasPrefix(b, a+Separator)
}

// Normalize converts an arbitrary value into a generic JSON tree
// (map[string]any, []any, json.Number, string, bool). Nil values and empty
// objects are pruned; a fully pruned value returns nil.
func Normalize(value any) (any, error) {
	if value == nil {
		return nil, nil
	}

	var raw []byte
	switch v := value.(type) {
	case json.RawMessage:
		raw = v
	default:
		var err error
		raw, err = json.Marshal(value)
		if err != nil {
			return nil, fmt.Errorf("marshal value: %w", err)
		}
	}

	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var generic any
	if err := dec.Decode(&generic); err != nil {
		return nil, fmt.Errorf("decode value: %w", err)
	}
	return prune(generic), nil
}

func prune(v any) any {
	m, ok := v.(map[string]any)
	if !ok {
		return v
	}
	for k, child := range m {
		if p := prune(child); p == nil {
			delete(m, k)
		} else {
			m[k] = p
		}
	}
	if len(m) == 0 {
		return nil
	}
	return m
}

// Flatten turns a normalized tree into leaf values keyed by full path.
func Flatten(base string, tree any) (map[string]json.RawMessage, error) {
	leaves := make(map[string]json.RawMessage)
	if err := flattenInto(leaves, base, tree); err != nil {
		return nil, err
	}
	return leaves, nil
}

func flattenInto(leaves map[string]json.RawMessage, path string, v any) error {
	switch node := v.(type) {
	case nil:
		return nil
	case map[string]any:
		for k, child := range node {
			if err := ValidateKey(k); err != nil {
				return err
			}
			if err := flattenInto(leaves, Join(path, k), child); err != nil {
				return err
			}
		}
		return nil
	default:
		raw, err := json.Marshal(node)
		if err != nil {
			return fmt.Errorf("marshal leaf %s: %w", path, err)
		}
		leaves[path] = raw
		return nil
	}
}

// Unflatten rebuilds the subtree under base from leaf values keyed by full
// path. Leaves outside base are ignored. Returns nil when nothing is stored.
func Unflatten(base string, leaves map[string]json.RawMessage) (any, error) {
	if raw, ok := leaves[base]; ok {
		return decodeLeaf(raw)
	}

	prefix := base + Separator
	paths := make([]string, 0, len(leaves))
	for p := range leaves {
		if strings.HasPrefix(p, prefix) {
			paths = append(paths, p)
		}
	}
	if len(paths) == 0 {
		return nil, nil
	}
	sort.Strings(paths)

	root := make(map[string]any)
	for _, p := range paths {
		leaf, err := decodeLeaf(leaves[p])
		if err != nil {
			return nil, fmt.Errorf("leaf %s: %w", p, err)
		}
		segments := strings.Split(strings.TrimPrefix(p, prefix), Separator)
		node := root
		for _, seg := range segments[:len(segments)-1] {
			child, ok := node[seg].(map[string]any)
			if !ok {
				child = make(map[string]any)
				node[seg] = child
			}
			node = child
		}
		node[segments[len(segments)-1]] = leaf
	}
	return root, nil
}

func decodeLeaf(raw json.RawMessage) (any, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, err
	}
	return v, nil
}

// Encode marshals a normalized tree into a snapshot value (nil stays nil).
func Encode(tree any) (json.RawMessage, error) {
	if tree == nil {
		return nil, nil
	}
	raw, err := json.Marshal(tree)
	if err != nil {
		return nil, fmt.Errorf("marshal snapshot: %w", err)
	}
	return raw, nil
}
