package chunk

import (
	"sync"
)

// Registry maps language tags to parser instances. It is built once at
// startup; Register exists so additional languages can be wired without
// touching the pipeline.
type Registry struct {
	mu      sync.RWMutex
	parsers map[string]Parser
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{parsers: make(map[string]Parser)}
}

// DefaultRegistry builds a registry with every supported language.
func DefaultRegistry() *Registry {
	r := NewRegistry()
	r.Register(NewRustParser())
	r.Register(NewTypeScriptParser())
	r.Register(NewJavaScriptParser())
	r.Register(NewSolidityParser())
	r.Register(NewMarkdownParser())
	r.Register(NewYAMLParser())
	r.Register(NewTerraformParser())
	return r
}

// Register adds a parser under its language tag, replacing any previous
// registration.
func (r *Registry) Register(p Parser) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.parsers[p.Language()] = p
}

// Get returns the parser for a language tag.
func (r *Registry) Get(language string) (Parser, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.parsers[language]
	return p, ok
}

// Languages returns the registered language tags.
func (r *Registry) Languages() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	langs := make([]string, 0, len(r.parsers))
	for lang := range r.parsers {
		langs = append(langs, lang)
	}
	return langs
}
