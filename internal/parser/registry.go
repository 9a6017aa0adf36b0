package parser

import (
	"path/filepath"
	"sort"
	"strings"
)

// LanguageParser defines the interface each language must implement.
// The primary language (Python) is backed by an authoritative syntax
// tree; everything else is a best-effort regex extractor.
type LanguageParser interface {
	// Language returns the language tag (e.g. "python")
	Language() string

	// Extensions returns file extensions this parser handles
	Extensions() []string

	// Parse extracts symbols and per-name usages from source code
	Parse(filename string, content []byte) (*FileSymbols, error)

	// CheckSyntax returns nil when the buffer parses cleanly.
	// Fallback parsers are permissive and always return nil.
	CheckSyntax(content []byte) *SyntaxError
}

// Registry holds all registered language parsers
type Registry struct {
	parsers   map[string]LanguageParser
	extToLang map[string]string
}

// NewRegistry creates a registry with the default language set:
// tree-sitter Python plus regex fallbacks for JS/TS/Java.
func NewRegistry() *Registry {
	r := &Registry{
		parsers:   make(map[string]LanguageParser),
		extToLang: make(map[string]string),
	}
	r.Register(NewPythonParser())
	r.Register(NewFallbackParser("javascript", []string{".js", ".jsx"}))
	r.Register(NewFallbackParser("typescript", []string{".ts", ".tsx"}))
	r.Register(NewFallbackParser("java", []string{".java"}))
	return r
}

// Register adds a language parser to the registry
func (r *Registry) Register(p LanguageParser) {
	lang := p.Language()
	r.parsers[lang] = p
	for _, ext := range p.Extensions() {
		r.extToLang[ext] = lang
	}
}

// ParserForFile returns the appropriate parser for a file
func (r *Registry) ParserForFile(filename string) (LanguageParser, bool) {
	ext := strings.ToLower(filepath.Ext(filename))
	lang, ok := r.extToLang[ext]
	if !ok {
		return nil, false
	}
	parser, ok := r.parsers[lang]
	return parser, ok
}

// LanguageForFile returns the language tag for a file, or "".
func (r *Registry) LanguageForFile(filename string) string {
	if p, ok := r.ParserForFile(filename); ok {
		return p.Language()
	}
	return ""
}

// SupportedExtensions returns all supported file extensions, sorted.
func (r *Registry) SupportedExtensions() []string {
	exts := make([]string, 0, len(r.extToLang))
	for ext := range r.extToLang {
		exts = append(exts, ext)
	}
	sort.Strings(exts)
	return exts
}

// Extract parses one buffer. An unrecoverable parse fault is reported
// through FileSymbols.ParseFault, never by omitting the file.
func (r *Registry) Extract(filename string, content []byte) *FileSymbols {
	p, ok := r.ParserForFile(filename)
	if !ok {
		return nil
	}
	out, err := p.Parse(filename, content)
	if err != nil {
		return &FileSymbols{
			Path:       filename,
			Language:   p.Language(),
			Usages:     map[string][]Occurrence{},
			ParseFault: err.Error(),
		}
	}
	normalizeSymbols(out)
	return out
}

// CheckSyntax validates a buffer for the language matching filename.
// Unsupported file types are treated as valid.
func (r *Registry) CheckSyntax(filename string, content []byte) *SyntaxError {
	p, ok := r.ParserForFile(filename)
	if !ok {
		return nil
	}
	return p.CheckSyntax(content)
}

func normalizeSymbols(fs *FileSymbols) {
	sort.SliceStable(fs.Symbols, func(i, j int) bool {
		if fs.Symbols[i].Start == fs.Symbols[j].Start {
			return fs.Symbols[i].Name < fs.Symbols[j].Name
		}
		return fs.Symbols[i].Start < fs.Symbols[j].Start
	})
	for name, occs := range fs.Usages {
		sort.SliceStable(occs, func(i, j int) bool {
			if occs[i].Line == occs[j].Line {
				return occs[i].Kind < occs[j].Kind
			}
			return occs[i].Line < occs[j].Line
		})
		fs.Usages[name] = occs
	}
}
