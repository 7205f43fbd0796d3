// Package templates renders artifact directives into file contents. The
// template sources are embedded in the binary and looked up by the
// directive's template identifier.
package templates

import (
	"bytes"
	"embed"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"text/template"
)

//go:embed files/*.tmpl
var sources embed.FS

var funcs = template.FuncMap{
	"quote": strconv.Quote,
	"add1":  func(i int) int { return i + 1 },
}

// Set is a parsed collection of templates keyed by identifier.
type Set struct {
	byID map[string]*template.Template
}

// Load parses every embedded template.
func Load() (*Set, error) {
	entries, err := sources.ReadDir("files")
	if err != nil {
		return nil, fmt.Errorf("read embedded templates: %w", err)
	}
	s := &Set{byID: make(map[string]*template.Template, len(entries))}
	for _, e := range entries {
		id := strings.TrimSuffix(e.Name(), ".tmpl")
		data, err := sources.ReadFile("files/" + e.Name())
		if err != nil {
			return nil, fmt.Errorf("read template %s: %w", id, err)
		}
		t, err := template.New(id).Option("missingkey=error").Funcs(funcs).Parse(string(data))
		if err != nil {
			return nil, fmt.Errorf("parse template %s: %w", id, err)
		}
		s.byID[id] = t
	}
	return s, nil
}

// IDs lists the known template identifiers in sorted order.
func (s *Set) IDs() []string {
	ids := make([]string, 0, len(s.byID))
	for id := range s.byID {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Render executes the template with only the given variables in scope.
func (s *Set) Render(id string, vars map[string]interface{}) ([]byte, error) {
	t, ok := s.byID[id]
	if !ok {
		return nil, fmt.Errorf("unknown template %q", id)
	}
	if vars == nil {
		vars = map[string]interface{}{}
	}
	var buf bytes.Buffer
	if err := t.Execute(&buf, vars); err != nil {
		return nil, fmt.Errorf("render %s: %w", id, err)
	}
	return buf.Bytes(), nil
}
