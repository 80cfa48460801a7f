package extract

import (
	"encoding/json"
	"regexp"
	"sort"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

// maxDepsPerManifest caps how many entries are reported per manifest so a
// giant lockfile-like manifest cannot blow up the response.
const maxDepsPerManifest = 50

// Manifest describes one recognized dependency file.
type Manifest struct {
	Manager         string
	File            string
	Dependencies    []string
	DevDependencies []string
}

var requirementSplit = regexp.MustCompile(`[<>=!~;\[\s]`)

// goModRequire matches both the block form and single-line requires.
var goModRequire = regexp.MustCompile(`(?m)^\s*(?:require\s+)?([\w.\-/]+\.[\w.\-/]+)\s+v[\w.\-+]+`)

// parseManifest recognizes dependency files by basename. Unknown files and
// unparseable manifests return nil.
func parseManifest(base, content string) *Manifest {
	switch base {
	case "package.json":
		return parsePackageJSON(content)
	case "requirements.txt":
		return parseRequirements(content)
	case "go.mod":
		return parseGoMod(content)
	case "Cargo.toml":
		return parseCargoTOML(content)
	case "pyproject.toml":
		return parsePyprojectTOML(content)
	}
	return nil
}

func parsePackageJSON(content string) *Manifest {
	var pkg struct {
		Dependencies    map[string]string `json:"dependencies"`
		DevDependencies map[string]string `json:"devDependencies"`
	}
	if err := json.Unmarshal([]byte(content), &pkg); err != nil {
		return nil
	}
	return &Manifest{
		Manager:         "npm",
		File:            "package.json",
		Dependencies:    sortedKeys(pkg.Dependencies, maxDepsPerManifest),
		DevDependencies: sortedKeys(pkg.DevDependencies, maxDepsPerManifest),
	}
}

func parseRequirements(content string) *Manifest {
	var deps []string
	for _, line := range strings.Split(content, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") || strings.HasPrefix(line, "-") {
			continue
		}
		name := requirementSplit.Split(line, 2)[0]
		if name == "" {
			continue
		}
		deps = append(deps, name)
		if len(deps) >= maxDepsPerManifest {
			break
		}
	}
	return &Manifest{Manager: "pip", File: "requirements.txt", Dependencies: deps}
}

func parseGoMod(content string) *Manifest {
	var deps []string
	for _, match := range goModRequire.FindAllStringSubmatch(content, maxDepsPerManifest) {
		deps = append(deps, match[1])
	}
	return &Manifest{Manager: "go modules", File: "go.mod", Dependencies: deps}
}

func parseCargoTOML(content string) *Manifest {
	var cargo struct {
		Dependencies    map[string]any `toml:"dependencies"`
		DevDependencies map[string]any `toml:"dev-dependencies"`
	}
	if err := toml.Unmarshal([]byte(content), &cargo); err != nil {
		return nil
	}
	return &Manifest{
		Manager:         "cargo",
		File:            "Cargo.toml",
		Dependencies:    sortedKeys(cargo.Dependencies, maxDepsPerManifest),
		DevDependencies: sortedKeys(cargo.DevDependencies, maxDepsPerManifest),
	}
}

func parsePyprojectTOML(content string) *Manifest {
	var pyproject struct {
		Project struct {
			Dependencies []string `toml:"dependencies"`
		} `toml:"project"`
		Tool struct {
			Poetry struct {
				Dependencies    map[string]any `toml:"dependencies"`
				DevDependencies map[string]any `toml:"dev-dependencies"`
			} `toml:"poetry"`
		} `toml:"tool"`
	}
	if err := toml.Unmarshal([]byte(content), &pyproject); err != nil {
		return nil
	}

	manifest := &Manifest{Manager: "pip", File: "pyproject.toml"}
	if len(pyproject.Tool.Poetry.Dependencies) > 0 {
		manifest.Manager = "poetry"
		manifest.Dependencies = sortedKeys(pyproject.Tool.Poetry.Dependencies, maxDepsPerManifest)
		manifest.DevDependencies = sortedKeys(pyproject.Tool.Poetry.DevDependencies, maxDepsPerManifest)
		// Poetry lists the interpreter itself as a dependency.
		manifest.Dependencies = remove(manifest.Dependencies, "python")
		return manifest
	}
	for _, spec := range pyproject.Project.Dependencies {
		name := requirementSplit.Split(strings.TrimSpace(spec), 2)[0]
		if name == "" {
			continue
		}
		manifest.Dependencies = append(manifest.Dependencies, name)
		if len(manifest.Dependencies) >= maxDepsPerManifest {
			break
		}
	}
	return manifest
}

func sortedKeys[V any](m map[string]V, limit int) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	if len(keys) > limit {
		keys = keys[:limit]
	}
	return keys
}

func remove(items []string, target string) []string {
	out := items[:0]
	for _, item := range items {
		if item != target {
			out = append(out, item)
		}
	}
	return out
}
