package main

import (
	"bufio"
	"encoding/xml"
	"os"
	"path/filepath"
	"strings"

	"github.com/gruntwork-io/go-commons/errors"
)

// The root repository; it is never recorded as a component
const rootRepoName = "AMDVLK"

var defaultComponents = []string{"xgl", "pal", "llpc", "spvgen", "llvm-project", "MetroHash", "CWPack"}

// ComponentRevision pins one component to a revision. Path is relative to the driver root.
type ComponentRevision struct {
	Name     string
	Path     string
	Revision string
}

// ComponentRevisions keeps manifest order. Recording a name twice replaces the earlier entry in place.
type ComponentRevisions []ComponentRevision

func (revs ComponentRevisions) Get(name string) (ComponentRevision, bool) {
	for _, rev := range revs {
		if rev.Name == name {
			return rev, true
		}
	}
	return ComponentRevision{}, false
}

func (revs ComponentRevisions) record(rev ComponentRevision) ComponentRevisions {
	for i := range revs {
		if revs[i].Name == rev.Name {
			revs[i] = rev
			return revs
		}
	}
	return append(revs, rev)
}

// requireComponents fails when any tracked component has no revision in the manifest
func (revs ComponentRevisions) requireComponents(tracked []string, manifestPath string) error {
	var missing []string
	for _, name := range tracked {
		if _, found := revs.Get(name); !found {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		return newErrorf(componentMissingFromManifest, "Manifest %s has no revision for: %s", manifestPath, strings.Join(missing, ", "))
	}
	return nil
}

// ParseFlatManifest reads a manifest line by line and extracts the revision attribute for every known component.
// A line names a component when it carries the quoted name; failing that, the bare name as a substring.
func ParseFlatManifest(content string, components []string) ComponentRevisions {
	var revs ComponentRevisions

	scanner := bufio.NewScanner(strings.NewReader(content))
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Text()
		revision, ok := revisionAttribute(line)
		if !ok {
			continue
		}
		if name := componentOnLine(line, components); name != "" {
			revs = revs.record(ComponentRevision{Name: name, Path: name, Revision: revision})
		}
	}

	return revs
}

func componentOnLine(line string, components []string) string {
	for _, name := range components {
		if strings.Contains(line, `"`+name+`"`) {
			return name
		}
	}
	for _, name := range components {
		if strings.Contains(line, name) {
			return name
		}
	}
	return ""
}

// revisionAttribute returns the quoted value following revision= on the line
func revisionAttribute(line string) (string, bool) {
	index := strings.Index(line, "revision=")
	if index < 0 {
		return "", false
	}

	rest := line[index+len("revision="):]
	if rest == "" || (rest[0] != '"' && rest[0] != '\'') {
		return "", false
	}
	quote := rest[0]
	end := strings.IndexByte(rest[1:], quote)
	if end < 0 {
		return "", false
	}
	return rest[1 : end+1], true
}

type manifestElement struct {
	XMLName  xml.Name
	Name     string `xml:"name,attr"`
	Path     string `xml:"path,attr"`
	Revision string `xml:"revision,attr"`
}

type manifestFile struct {
	XMLName  xml.Name          `xml:"manifest"`
	Elements []manifestElement `xml:",any"`
}

// ParseRecursiveManifest parses a repo-tool manifest and every manifest it includes. Include names resolve relative
// to the including file. Projects without a path and the root repository are skipped; a project without a revision
// takes the nearest <default revision>.
func ParseRecursiveManifest(manifestPath string) (ComponentRevisions, error) {
	absPath, err := filepath.Abs(manifestPath)
	if err != nil {
		return nil, errors.WithStackTrace(err)
	}
	return parseManifestFile(absPath, "", nil, nil)
}

func parseManifestFile(path string, inheritedRevision string, visiting []string, revs ComponentRevisions) (ComponentRevisions, error) {
	for _, seen := range visiting {
		if seen == path {
			return revs, newErrorf(manifestMalformed, "Manifest include cycle: %s -> %s", strings.Join(visiting, " -> "), path)
		}
	}
	visiting = append(visiting, path)

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return revs, newErrorf(manifestNotFound, "Manifest file: %s not found!", path)
		}
		return revs, errors.WithStackTrace(err)
	}

	var manifest manifestFile
	if err := xml.Unmarshal(data, &manifest); err != nil {
		return revs, newErrorf(manifestMalformed, "Manifest %s is malformed: %s", path, err)
	}

	defaultRevision := inheritedRevision
	for _, element := range manifest.Elements {
		if element.XMLName.Local == "default" && element.Revision != "" {
			defaultRevision = element.Revision
		}
	}

	for _, element := range manifest.Elements {
		switch element.XMLName.Local {
		case "include":
			if element.Name == "" {
				return revs, newErrorf(manifestMalformed, "Manifest %s has an include without a name", path)
			}
			included := filepath.Join(filepath.Dir(path), element.Name)
			revs, err = parseManifestFile(included, defaultRevision, visiting, revs)
			if err != nil {
				return revs, err
			}
		case "project":
			if element.Path == "" || element.Name == rootRepoName {
				continue
			}
			revision := element.Revision
			if revision == "" {
				revision = defaultRevision
			}
			if revision == "" {
				return revs, newErrorf(manifestMalformed, "Project %s in %s has no revision and there is no default", element.Name, path)
			}
			revs = revs.record(ComponentRevision{Name: element.Name, Path: element.Path, Revision: revision})
		}
	}

	return revs, nil
}
