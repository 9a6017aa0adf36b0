package parser

// SymbolKind represents the type of code symbol
type SymbolKind int

const (
	SymbolFunction SymbolKind = iota
	SymbolClass
	SymbolVariable
	SymbolImport
	SymbolDecorator
	SymbolComment
	SymbolAssignment
	SymbolAnnotation
)

func (k SymbolKind) String() string {
	switch k {
	case SymbolFunction:
		return "function"
	case SymbolClass:
		return "class"
	case SymbolVariable:
		return "variable"
	case SymbolImport:
		return "import"
	case SymbolDecorator:
		return "decorator"
	case SymbolComment:
		return "comment"
	case SymbolAssignment:
		return "assignment"
	case SymbolAnnotation:
		return "annotation"
	default:
		return "unknown"
	}
}

// Symbol is a single extracted symbol record. Start/End are 1-based
// inclusive line numbers; for functions the span includes any decorator
// lines above the definition.
type Symbol struct {
	Name      string     `json:"name"`
	Kind      SymbolKind `json:"kind"`
	Start     int        `json:"start"`
	End       int        `json:"end"`
	Params    []string   `json:"params,omitempty"`
	Docstring string     `json:"docstring,omitempty"`
	Parent    string     `json:"parent,omitempty"`
	IsAsync   bool       `json:"is_async,omitempty"`
	Value     string     `json:"value,omitempty"`
	Source    string     `json:"source,omitempty"`
}

// UsageKind classifies one occurrence of a symbol name.
type UsageKind string

const (
	UsageDefinition UsageKind = "definition"
	UsageCall       UsageKind = "call"
	UsageReference  UsageKind = "reference"
	UsageAttribute  UsageKind = "attribute"
	UsageImport     UsageKind = "import"
)

// Occurrence is a single usage of a name inside one file.
type Occurrence struct {
	Line int       `json:"line"`
	Kind UsageKind `json:"kind"`
}

// FileSymbols holds everything extracted from a single source buffer.
// ParseFault carries a non-fatal extractor failure; the file record is
// still emitted so the graph never silently drops a file.
type FileSymbols struct {
	Path       string                  `json:"path"`
	Language   string                  `json:"language"`
	Symbols    []Symbol                `json:"symbols"`
	Usages     map[string][]Occurrence `json:"usages,omitempty"`
	Hash       string                  `json:"hash,omitempty"`
	ParseFault string                  `json:"parse_fault,omitempty"`
}

// SyntaxError reports the first syntax fault found in a buffer.
type SyntaxError struct {
	Line    int
	Column  int
	Message string
}

func (e *SyntaxError) Error() string {
	return e.Message
}
