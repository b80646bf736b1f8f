package util

import "strings"

// DottedHasPrefix reports whether name equals prefix or lies beneath it.
func DottedHasPrefix(name, prefix string) bool {
	if prefix == "" {
		return false
	}
	return name == prefix || strings.HasPrefix(name, prefix+".")
}

// DottedReplacePrefix swaps oldPrefix for newPrefix. ok is false when name
// is not under oldPrefix.
func DottedReplacePrefix(name, oldPrefix, newPrefix string) (string, bool) {
	if !DottedHasPrefix(name, oldPrefix) {
		return name, false
	}
	return newPrefix + name[len(oldPrefix):], true
}

// DottedParent returns everything before the last dot, or "".
func DottedParent(name string) string {
	if i := strings.LastIndexByte(name, '.'); i >= 0 {
		return name[:i]
	}
	return ""
}

// DottedTail returns the last segment.
func DottedTail(name string) string {
	return name[strings.LastIndexByte(name, '.')+1:]
}

// DottedRoot returns the first segment.
func DottedRoot(name string) string {
	if i := strings.IndexByte(name, '.'); i >= 0 {
		return name[:i]
	}
	return name
}

func DottedSegments(name string) int {
	if name == "" {
		return 0
	}
	return strings.Count(name, ".") + 1
}

// DottedJoin joins non-empty parts with dots.
func DottedJoin(parts ...string) string {
	kept := parts[:0:0]
	for _, p := range parts {
		if p != "" {
			kept = append(kept, p)
		}
	}
	return strings.Join(kept, ".")
}

// DottedPrefixes lists a, a.b, a.b.c for "a.b.c".
func DottedPrefixes(name string) []string {
	if name == "" {
		return nil
	}
	out := make([]string, 0, DottedSegments(name))
	for i := 0; i < len(name); i++ {
		if name[i] == '.' {
			out = append(out, name[:i])
		}
	}
	return append(out, name)
}
