package jupyter

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
)

// KernelSpec is the Jupyter "kernel spec" a kernels/<name>/kernel.json
// file holds: a display name, the language it runs, and the argv template
// used to launch it (spec.md §4.3.4).
type KernelSpec struct {
	DisplayName string   `json:"display_name"`
	Language    string   `json:"language"`
	Argv        []string `json:"argv"`
}

// DiscoverKernelSpecs scans the platform-standard Jupyter data
// directories for installed kernel specs, keyed by kernel name (the
// directory name under kernels/). A directory that fails to parse is
// skipped rather than failing the whole discovery.
func DiscoverKernelSpecs() map[string]KernelSpec {
	specs := make(map[string]KernelSpec)
	for _, dir := range dataDirs() {
		entries, err := os.ReadDir(filepath.Join(dir, "kernels"))
		if err != nil {
			continue
		}
		for _, e := range entries {
			if !e.IsDir() {
				continue
			}
			data, err := os.ReadFile(filepath.Join(dir, "kernels", e.Name(), "kernel.json"))
			if err != nil {
				continue
			}
			var spec KernelSpec
			if json.Unmarshal(data, &spec) == nil {
				specs[e.Name()] = spec
			}
		}
	}
	return specs
}

// dataDirs returns the platform-standard Jupyter data directory search
// path: JUPYTER_PATH entries first, then the user directory, then the
// system-wide directories.
func dataDirs() []string {
	var dirs []string
	if env := os.Getenv("JUPYTER_PATH"); env != "" {
		dirs = append(dirs, strings.Split(env, string(os.PathListSeparator))...)
	}
	if home, err := os.UserHomeDir(); err == nil {
		dirs = append(dirs, filepath.Join(home, ".local", "share", "jupyter"))
	}
	dirs = append(dirs, "/usr/local/share/jupyter", "/usr/share/jupyter")
	return dirs
}

// SelectForLanguage returns the name and spec of a kernel spec matching
// language, case-insensitively. When several specs match, which one is
// returned is not defined (specs is a map).
func SelectForLanguage(specs map[string]KernelSpec, language string) (string, KernelSpec, bool) {
	for name, spec := range specs {
		if strings.EqualFold(spec.Language, language) {
			return name, spec, true
		}
	}
	return "", KernelSpec{}, false
}

// substituteArgv fills a kernel spec's argv template, replacing the
// {connection_file} placeholder with the path of the connection file
// the supervisor wrote for this instance.
func substituteArgv(argv []string, connectionFile string) []string {
	out := make([]string, len(argv))
	for i, a := range argv {
		out[i] = strings.ReplaceAll(a, "{connection_file}", connectionFile)
	}
	return out
}
