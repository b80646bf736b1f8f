package util

import (
	"os"
	"path"
	"path/filepath"
	"runtime"
	"sort"
	"strings"
)

// CleanPath turns a user or filesystem path into the slash-separated,
// root-relative form the index keys files by. "." becomes "".
func CleanPath(s string) string {
	p := path.Clean(strings.ReplaceAll(strings.TrimSpace(s), `\`, "/"))
	switch {
	case p == ".":
		return ""
	case strings.HasPrefix(p, "./"):
		return p[2:]
	}
	return p
}

// UnderDir reports whether p is dir or a file beneath it.
func UnderDir(p, dir string) bool {
	p, dir = CleanPath(p), CleanPath(dir)
	if dir == "" || p == "" {
		return p == dir
	}
	return p == dir || strings.HasPrefix(p, dir+"/")
}

func HasSeparator(s string) bool {
	return strings.ContainsAny(s, `/\`)
}

func SortedKeys[T any](m map[string]T) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// EnsureParentDir creates the directory that will hold file.
func EnsureParentDir(file string) error {
	dir := filepath.Dir(file)
	if dir == "." || dir == "" {
		return nil
	}
	return os.MkdirAll(dir, 0o755)
}

// WriteFileAll writes data to file, creating missing parents.
func WriteFileAll(file string, data []byte) error {
	if err := EnsureParentDir(file); err != nil {
		return err
	}
	return os.WriteFile(file, data, 0o644)
}

// HeapMB reports live heap size in MiB for run logs.
func HeapMB() float64 {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)
	return float64(m.HeapAlloc) / (1 << 20)
}
