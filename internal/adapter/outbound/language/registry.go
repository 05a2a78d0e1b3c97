// Package language holds the registry of languages the search service can
// filter by, along with the file extensions used to infer a hit's language.
package language

import (
	"bytes"
	_ "embed"
	"errors"
	"fmt"
	"path"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"
)

//go:embed languages.yaml
var embeddedLanguages []byte

// Language is one registry entry.
type Language struct {
	Name       string   `yaml:"name"`
	Extensions []string `yaml:"extensions"`
	Filenames  []string `yaml:"filenames"`
}

type document struct {
	Languages []Language `yaml:"languages"`
}

// Registry answers language lookups. It is immutable after construction.
type Registry struct {
	languages   []Language
	byName      map[string]struct{}
	byFoldName  map[string]string
	byExtension map[string]string
	byFilename  map[string]string
}

var defaultRegistry = sync.OnceValues(func() (*Registry, error) {
	return Parse(embeddedLanguages)
})

// Default returns the registry built from the embedded language table.
func Default() *Registry {
	r, err := defaultRegistry()
	if err != nil {
		// The embedded table is part of the binary; failing to parse it is a build defect.
		panic(fmt.Sprintf("language: embedded registry is invalid: %v", err))
	}
	return r
}

// Parse builds a Registry from a YAML document.
func Parse(data []byte) (*Registry, error) {
	var doc document
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("failed to decode language registry: %w", err)
	}
	if len(doc.Languages) == 0 {
		return nil, errors.New("language registry is empty")
	}

	r := &Registry{
		languages:   make([]Language, 0, len(doc.Languages)),
		byName:      make(map[string]struct{}, len(doc.Languages)),
		byFoldName:  make(map[string]string, len(doc.Languages)),
		byExtension: make(map[string]string),
		byFilename:  make(map[string]string),
	}
	for i, lang := range doc.Languages {
		if strings.TrimSpace(lang.Name) == "" {
			return nil, fmt.Errorf("language registry entry %d has no name", i)
		}
		if _, dup := r.byName[lang.Name]; dup {
			return nil, fmt.Errorf("language %q is listed twice", lang.Name)
		}
		r.languages = append(r.languages, lang)
		r.byName[lang.Name] = struct{}{}
		r.byFoldName[strings.ToLower(lang.Name)] = lang.Name
		for _, ext := range lang.Extensions {
			ext = strings.ToLower(ext)
			if !strings.HasPrefix(ext, ".") {
				ext = "." + ext
			}
			if _, taken := r.byExtension[ext]; !taken {
				r.byExtension[ext] = lang.Name
			}
		}
		for _, name := range lang.Filenames {
			r.byFilename[name] = lang.Name
		}
	}
	return r, nil
}

// Names returns every language name in registry order.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.languages))
	for _, lang := range r.languages {
		names = append(names, lang.Name)
	}
	return names
}

// IsSupported reports whether name is a known language. The match is exact,
// since the service treats language names case-sensitively.
func (r *Registry) IsSupported(name string) bool {
	_, ok := r.byName[name]
	return ok
}

// Suggest returns the canonical spelling of name when it differs only in case.
func (r *Registry) Suggest(name string) (string, bool) {
	canonical, ok := r.byFoldName[strings.ToLower(name)]
	return canonical, ok
}

// DetectFromPath infers a language from a file path, first by exact file
// name and then by extension (case-insensitive). It returns "" when unknown.
func (r *Registry) DetectFromPath(filePath string) string {
	base := path.Base(filePath)
	if name, ok := r.byFilename[base]; ok {
		return name
	}
	ext := strings.ToLower(path.Ext(base))
	if ext == "" {
		return ""
	}
	return r.byExtension[ext]
}
