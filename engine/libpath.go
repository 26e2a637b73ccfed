package engine

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
)

// libraryName is the onnxruntime shared library file name on this platform.
func libraryName() string {
	switch runtime.GOOS {
	case "windows":
		return "onnxruntime.dll"
	case "darwin":
		return "libonnxruntime.dylib"
	default:
		return "libonnxruntime.so"
	}
}

// LocateLibrary returns explicit when it is set, otherwise searches the
// executable directory, the working directory, their lib/ subdirectories and
// up to ten parent directories for the onnxruntime shared library.
func LocateLibrary(explicit string) (string, error) {
	if explicit != "" {
		if !fileExists(explicit) {
			return "", fmt.Errorf("onnxruntime library %q not found", explicit)
		}
		return explicit, nil
	}
	var roots []string
	if exePath, err := os.Executable(); err == nil {
		roots = append(roots, filepath.Dir(exePath))
	}
	if cwd, err := os.Getwd(); err == nil {
		roots = append(roots, cwd)
	}
	return searchLocations(libraryName(), roots)
}

// searchLocations looks for name, or a versioned variant of it, in each root,
// root/lib and their parents.
func searchLocations(name string, roots []string) (string, error) {
	var tried []string
	checked := make(map[string]bool)
	check := func(dir string) string {
		if dir == "" || checked[dir] {
			return ""
		}
		checked[dir] = true
		tried = append(tried, dir)
		if p := filepath.Join(dir, name); fileExists(p) {
			return p
		}
		return globFirst(dir, name+"*")
	}
	for _, root := range roots {
		cur := root
		for i := 0; i < 10; i++ {
			if p := check(cur); p != "" {
				return p, nil
			}
			if p := check(filepath.Join(cur, "lib")); p != "" {
				return p, nil
			}
			parent := filepath.Dir(cur)
			if parent == cur {
				break
			}
			cur = parent
		}
	}
	return "", fmt.Errorf("onnxruntime library %q not found, tried:\n  %s", name, strings.Join(tried, "\n  "))
}

func fileExists(p string) bool {
	if p == "" {
		return false
	}
	info, err := os.Stat(p)
	return err == nil && !info.IsDir()
}

func globFirst(dir, pat string) string {
	ms, err := filepath.Glob(filepath.Join(dir, pat))
	if err != nil {
		return ""
	}
	for _, m := range ms {
		if fileExists(m) {
			return m
		}
	}
	return ""
}
