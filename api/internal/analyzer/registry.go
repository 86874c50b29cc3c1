package analyzer

import (
	"fmt"
	"sort"
	"strings"
)

// Registry holds one Analyzer per configured provider.
type Registry struct {
	def string
	m   map[string]*Analyzer
}

func NewRegistry(def string, analyzers ...*Analyzer) (*Registry, error) {
	r := &Registry{def: strings.ToLower(strings.TrimSpace(def)), m: make(map[string]*Analyzer, len(analyzers))}
	for _, a := range analyzers {
		if a == nil {
			continue
		}
		r.m[strings.ToLower(a.Name())] = a
	}
	if len(r.m) == 0 {
		return nil, fmt.Errorf("no providers configured")
	}
	if _, ok := r.m[r.def]; !ok {
		return nil, fmt.Errorf("default provider %q is not configured (have: %s)", def, strings.Join(r.Names(), ", "))
	}
	return r, nil
}

// Get returns the analyzer for name; an empty name selects the default.
func (r *Registry) Get(name string) (*Analyzer, error) {
	n := strings.ToLower(strings.TrimSpace(name))
	if n == "" {
		n = r.def
	}
	if n == "gpt" {
		n = "openai"
	}
	a, ok := r.m[n]
	if !ok {
		return nil, fmt.Errorf("unknown llm_name %q; use one of: %s", name, strings.Join(r.Names(), ", "))
	}
	return a, nil
}

func (r *Registry) Default() string { return r.def }

func (r *Registry) Names() []string {
	out := make([]string, 0, len(r.m))
	for n := range r.m {
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}
