package parser

import (
	"context"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/python"
)

// PythonParser is the authoritative extractor for the primary language.
type PythonParser struct {
	parser *sitter.Parser
}

// NewPythonParser creates a new tree-sitter backed Python parser
func NewPythonParser() *PythonParser {
	p := sitter.NewParser()
	p.SetLanguage(python.GetLanguage())
	return &PythonParser{parser: p}
}

func (p *PythonParser) Language() string {
	return "python"
}

func (p *PythonParser) Extensions() []string {
	return []string{".py", ".pyw"}
}

func (p *PythonParser) Parse(filename string, content []byte) (*FileSymbols, error) {
	tree, err := p.parser.ParseCtx(context.Background(), nil, content)
	if err != nil {
		return nil, err
	}
	defer tree.Close()

	result := &FileSymbols{
		Path:     filename,
		Language: "python",
		Symbols:  make([]Symbol, 0),
		Usages:   make(map[string][]Occurrence),
	}

	root := tree.RootNode()
	p.extractSymbols(root, content, result, "")
	p.collectUsages(root, content, result.Usages)

	return result, nil
}

// CheckSyntax reports the first error or missing node in the tree.
func (p *PythonParser) CheckSyntax(content []byte) *SyntaxError {
	tree, err := p.parser.ParseCtx(context.Background(), nil, content)
	if err != nil {
		return &SyntaxError{Message: err.Error()}
	}
	defer tree.Close()

	root := tree.RootNode()
	if !root.HasError() {
		return nil
	}
	if bad := firstErrorNode(root); bad != nil {
		return &SyntaxError{
			Line:    int(bad.StartPoint().Row) + 1,
			Column:  int(bad.StartPoint().Column) + 1,
			Message: "syntax error",
		}
	}
	return &SyntaxError{Line: 1, Column: 1, Message: "syntax error"}
}

func firstErrorNode(node *sitter.Node) *sitter.Node {
	if node.Type() == "ERROR" || node.IsMissing() {
		return node
	}
	for i := 0; i < int(node.ChildCount()); i++ {
		if found := firstErrorNode(node.Child(i)); found != nil {
			return found
		}
	}
	return nil
}

func (p *PythonParser) extractSymbols(node *sitter.Node, content []byte, result *FileSymbols, className string) {
	switch node.Type() {
	case "decorated_definition":
		// The span of the decorated symbol starts at the first decorator.
		decoStart := int(node.StartPoint().Row) + 1
		for i := 0; i < int(node.ChildCount()); i++ {
			child := node.Child(i)
			if child.Type() != "decorator" {
				continue
			}
			name := strings.TrimPrefix(strings.TrimSpace(child.Content(content)), "@")
			if idx := strings.IndexAny(name, "(."); idx > 0 {
				name = name[:idx]
			}
			result.Symbols = append(result.Symbols, Symbol{
				Name:   name,
				Kind:   SymbolDecorator,
				Start:  int(child.StartPoint().Row) + 1,
				End:    int(child.EndPoint().Row) + 1,
				Source: decoratedTargetName(node, content),
			})
		}
		if def := node.ChildByFieldName("definition"); def != nil {
			p.extractDefinition(def, content, result, className, decoStart)
		}
		return

	case "function_definition", "class_definition":
		p.extractDefinition(node, content, result, className, int(node.StartPoint().Row)+1)
		return

	case "import_statement", "import_from_statement":
		p.extractImports(node, content, result)

	case "comment":
		text := strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(node.Content(content)), "#"))
		result.Symbols = append(result.Symbols, Symbol{
			Name:  text,
			Kind:  SymbolComment,
			Start: int(node.StartPoint().Row) + 1,
			End:   int(node.EndPoint().Row) + 1,
		})

	case "expression_statement":
		p.extractAssignment(node, content, result, className)
	}

	for i := 0; i < int(node.ChildCount()); i++ {
		p.extractSymbols(node.Child(i), content, result, className)
	}
}

func (p *PythonParser) extractDefinition(node *sitter.Node, content []byte, result *FileSymbols, className string, startLine int) {
	nameNode := node.ChildByFieldName("name")
	if nameNode == nil {
		return
	}
	name := nameNode.Content(content)

	switch node.Type() {
	case "function_definition":
		sym := Symbol{
			Name:      name,
			Kind:      SymbolFunction,
			Start:     startLine,
			End:       int(node.EndPoint().Row) + 1,
			Params:    functionParams(node, content),
			Docstring: bodyDocstring(node, content),
			Parent:    className,
			IsAsync:   hasAsyncKeyword(node, content),
		}
		result.Symbols = append(result.Symbols, sym)
		// Methods are extracted when the class body recurses; nested
		// defs inside function bodies are deliberately skipped.

	case "class_definition":
		sym := Symbol{
			Name:      name,
			Kind:      SymbolClass,
			Start:     startLine,
			End:       int(node.EndPoint().Row) + 1,
			Docstring: bodyDocstring(node, content),
		}
		result.Symbols = append(result.Symbols, sym)
		if body := node.ChildByFieldName("body"); body != nil {
			for i := 0; i < int(body.ChildCount()); i++ {
				p.extractSymbols(body.Child(i), content, result, name)
			}
		}
	}
}

func (p *PythonParser) extractAssignment(stmt *sitter.Node, content []byte, result *FileSymbols, className string) {
	if stmt.ChildCount() == 0 {
		return
	}
	node := stmt.Child(0)
	if node.Type() != "assignment" {
		return
	}
	left := node.ChildByFieldName("left")
	if left == nil || left.Type() != "identifier" {
		return
	}
	name := left.Content(content)
	line := int(node.StartPoint().Row) + 1

	value := ""
	if right := node.ChildByFieldName("right"); right != nil {
		value = truncate(strings.TrimSpace(right.Content(content)), 80)
	}

	if typ := node.ChildByFieldName("type"); typ != nil {
		result.Symbols = append(result.Symbols, Symbol{
			Name:   name,
			Kind:   SymbolAnnotation,
			Start:  line,
			End:    int(node.EndPoint().Row) + 1,
			Value:  value,
			Source: strings.TrimSpace(typ.Content(content)),
		})
		return
	}

	kind := SymbolAssignment
	// UPPER_CASE module-level bindings are treated as variables proper.
	if className == "" && name == strings.ToUpper(name) && name != strings.ToLower(name) {
		kind = SymbolVariable
	}
	result.Symbols = append(result.Symbols, Symbol{
		Name:   name,
		Kind:   kind,
		Start:  line,
		End:    int(node.EndPoint().Row) + 1,
		Value:  value,
		Parent: className,
	})
}

func (p *PythonParser) extractImports(node *sitter.Node, content []byte, result *FileSymbols) {
	line := int(node.StartPoint().Row) + 1
	end := int(node.EndPoint().Row) + 1

	if node.Type() == "import_from_statement" {
		module := ""
		if m := node.ChildByFieldName("module_name"); m != nil {
			module = strings.TrimSpace(m.Content(content))
		}
		for i := 0; i < int(node.ChildCount()); i++ {
			if node.FieldNameForChild(i) != "name" {
				continue
			}
			child := node.Child(i)
			name := strings.TrimSpace(child.Content(content))
			if child.Type() == "aliased_import" {
				if alias := child.ChildByFieldName("alias"); alias != nil {
					name = strings.TrimSpace(alias.Content(content))
				}
			}
			if name == "" {
				continue
			}
			result.Symbols = append(result.Symbols, Symbol{
				Name:   name,
				Kind:   SymbolImport,
				Start:  line,
				End:    end,
				Source: module,
			})
		}
		return
	}

	for i := 0; i < int(node.ChildCount()); i++ {
		child := node.Child(i)
		switch child.Type() {
		case "dotted_name":
			module := strings.TrimSpace(child.Content(content))
			if module == "" {
				continue
			}
			result.Symbols = append(result.Symbols, Symbol{
				Name:   lastDotted(module),
				Kind:   SymbolImport,
				Start:  line,
				End:    end,
				Source: module,
			})
		case "aliased_import":
			module, alias := "", ""
			if m := child.ChildByFieldName("name"); m != nil {
				module = strings.TrimSpace(m.Content(content))
			}
			if a := child.ChildByFieldName("alias"); a != nil {
				alias = strings.TrimSpace(a.Content(content))
			}
			if alias == "" {
				alias = lastDotted(module)
			}
			if module == "" {
				continue
			}
			result.Symbols = append(result.Symbols, Symbol{
				Name:   alias,
				Kind:   SymbolImport,
				Start:  line,
				End:    end,
				Source: module,
			})
		}
	}
}

// collectUsages walks the whole tree and records every name occurrence
// so the graph can assemble its cross-reference index.
func (p *PythonParser) collectUsages(node *sitter.Node, content []byte, usages map[string][]Occurrence) {
	line := int(node.StartPoint().Row) + 1

	switch node.Type() {
	case "function_definition", "class_definition":
		if name := node.ChildByFieldName("name"); name != nil {
			addUsage(usages, name.Content(content), line, UsageDefinition)
		}
	case "call":
		if fn := node.ChildByFieldName("function"); fn != nil {
			switch fn.Type() {
			case "identifier":
				addUsage(usages, fn.Content(content), int(fn.StartPoint().Row)+1, UsageCall)
			case "attribute":
				if attr := fn.ChildByFieldName("attribute"); attr != nil {
					addUsage(usages, attr.Content(content), int(attr.StartPoint().Row)+1, UsageCall)
				}
			}
		}
	case "attribute":
		if attr := node.ChildByFieldName("attribute"); attr != nil {
			parent := node.Parent()
			if parent == nil || parent.Type() != "call" || parent.ChildByFieldName("function") != node {
				addUsage(usages, attr.Content(content), int(attr.StartPoint().Row)+1, UsageAttribute)
			}
		}
	case "import_statement", "import_from_statement":
		for i := 0; i < int(node.ChildCount()); i++ {
			child := node.Child(i)
			if child.Type() == "dotted_name" || child.Type() == "identifier" {
				addUsage(usages, lastDotted(child.Content(content)), line, UsageImport)
			}
		}
		// imported names are recorded above; skip the identifier walk
		return
	case "identifier":
		if parent := node.Parent(); parent != nil {
			switch parent.Type() {
			case "call", "attribute", "function_definition", "class_definition",
				"keyword_argument", "parameters", "typed_parameter", "default_parameter":
				// handled by the cases above or not a usage site
			default:
				addUsage(usages, node.Content(content), line, UsageReference)
			}
		} else {
			addUsage(usages, node.Content(content), line, UsageReference)
		}
	}

	for i := 0; i < int(node.ChildCount()); i++ {
		p.collectUsages(node.Child(i), content, usages)
	}
}

func addUsage(usages map[string][]Occurrence, name string, line int, kind UsageKind) {
	name = strings.TrimSpace(name)
	if len(name) < 2 {
		return
	}
	usages[name] = append(usages[name], Occurrence{Line: line, Kind: kind})
}

func functionParams(node *sitter.Node, content []byte) []string {
	params := node.ChildByFieldName("parameters")
	if params == nil {
		return nil
	}
	out := make([]string, 0, params.NamedChildCount())
	for i := 0; i < int(params.NamedChildCount()); i++ {
		child := params.NamedChild(i)
		if child.Type() == "comment" {
			continue
		}
		out = append(out, strings.TrimSpace(child.Content(content)))
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

func bodyDocstring(node *sitter.Node, content []byte) string {
	body := node.ChildByFieldName("body")
	if body == nil || body.ChildCount() == 0 {
		return ""
	}
	first := body.Child(0)
	if first.Type() != "expression_statement" || first.ChildCount() == 0 {
		return ""
	}
	expr := first.Child(0)
	if expr.Type() != "string" {
		return ""
	}
	return cleanDocstring(expr.Content(content))
}

func hasAsyncKeyword(node *sitter.Node, content []byte) bool {
	for i := 0; i < int(node.ChildCount()); i++ {
		child := node.Child(i)
		if child.Type() == "async" || (!child.IsNamed() && child.Content(content) == "async") {
			return true
		}
		if child.Type() == "def" {
			break
		}
	}
	return false
}

func decoratedTargetName(node *sitter.Node, content []byte) string {
	def := node.ChildByFieldName("definition")
	if def == nil {
		return ""
	}
	if name := def.ChildByFieldName("name"); name != nil {
		return name.Content(content)
	}
	return ""
}

func cleanDocstring(s string) string {
	s = strings.TrimSpace(s)
	for _, quote := range []string{`"""`, `'''`} {
		if strings.HasPrefix(s, quote) && strings.HasSuffix(s, quote) && len(s) >= 2*len(quote) {
			s = s[len(quote) : len(s)-len(quote)]
		}
	}
	s = strings.Trim(s, `"'`)
	if idx := strings.Index(s, "\n"); idx != -1 {
		s = s[:idx]
	}
	return strings.TrimSpace(s)
}

func lastDotted(module string) string {
	module = strings.TrimSpace(module)
	if idx := strings.LastIndex(module, "."); idx != -1 {
		return module[idx+1:]
	}
	return module
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
