package parser

import (
	"regexp"
	"strings"
)

var (
	fallbackFuncRe   = regexp.MustCompile(`(?m)^\s*(?:export\s+)?(?:async\s+)?(?:function|def)\s+([A-Za-z_$][\w$]*)\s*\(([^)]*)\)`)
	fallbackMethodRe = regexp.MustCompile(`(?m)^\s*(?:public|private|protected|static|final|\s)*[\w<>\[\]]+\s+([A-Za-z_$][\w$]*)\s*\(([^)]*)\)\s*\{`)
	fallbackClassRe  = regexp.MustCompile(`(?m)^\s*(?:export\s+)?(?:public\s+|abstract\s+)?(?:class|interface)\s+([A-Za-z_$][\w$]*)`)
	fallbackConstRe  = regexp.MustCompile(`(?m)^\s*(?:export\s+)?(?:const|let|var|static\s+final\s+\w+)\s+([A-Za-z_$][\w$]*)\s*=\s*(.{0,80})`)
	fallbackImportRe = regexp.MustCompile(`(?m)^\s*import\s+(?:.*?\s+from\s+)?['"]?([\w@./-]+)['"]?`)
	fallbackTokenRe  = regexp.MustCompile(`[A-Za-z_$][\w$]*`)
)

// FallbackParser extracts function/class/import-like shapes best-effort
// for languages without an authoritative grammar.
type FallbackParser struct {
	language   string
	extensions []string
}

func NewFallbackParser(language string, extensions []string) *FallbackParser {
	return &FallbackParser{language: language, extensions: extensions}
}

func (p *FallbackParser) Language() string {
	return p.language
}

func (p *FallbackParser) Extensions() []string {
	return p.extensions
}

// CheckSyntax is permissive for secondary languages.
func (p *FallbackParser) CheckSyntax(content []byte) *SyntaxError {
	return nil
}

func (p *FallbackParser) Parse(filename string, content []byte) (*FileSymbols, error) {
	source := string(content)
	result := &FileSymbols{
		Path:     filename,
		Language: p.language,
		Symbols:  make([]Symbol, 0),
		Usages:   make(map[string][]Occurrence),
	}

	lines := strings.Split(source, "\n")
	lineAt := func(offset int) int {
		return strings.Count(source[:offset], "\n") + 1
	}

	for _, m := range fallbackFuncRe.FindAllStringSubmatchIndex(source, -1) {
		name := source[m[2]:m[3]]
		line := lineAt(m[0])
		result.Symbols = append(result.Symbols, Symbol{
			Name:   name,
			Kind:   SymbolFunction,
			Start:  line,
			End:    blockEnd(lines, line),
			Params: splitParams(source[m[4]:m[5]]),
		})
	}
	if p.language == "java" {
		for _, m := range fallbackMethodRe.FindAllStringSubmatchIndex(source, -1) {
			name := source[m[2]:m[3]]
			if isReservedWord(name) {
				continue
			}
			line := lineAt(m[0])
			result.Symbols = append(result.Symbols, Symbol{
				Name:   name,
				Kind:   SymbolFunction,
				Start:  line,
				End:    blockEnd(lines, line),
				Params: splitParams(source[m[4]:m[5]]),
			})
		}
	}
	for _, m := range fallbackClassRe.FindAllStringSubmatchIndex(source, -1) {
		line := lineAt(m[0])
		result.Symbols = append(result.Symbols, Symbol{
			Name:  source[m[2]:m[3]],
			Kind:  SymbolClass,
			Start: line,
			End:   blockEnd(lines, line),
		})
	}
	for _, m := range fallbackConstRe.FindAllStringSubmatchIndex(source, -1) {
		line := lineAt(m[0])
		result.Symbols = append(result.Symbols, Symbol{
			Name:  source[m[2]:m[3]],
			Kind:  SymbolVariable,
			Start: line,
			End:   line,
			Value: strings.TrimRight(strings.TrimSpace(source[m[4]:m[5]]), ";"),
		})
	}
	for _, m := range fallbackImportRe.FindAllStringSubmatchIndex(source, -1) {
		module := source[m[2]:m[3]]
		line := lineAt(m[0])
		result.Symbols = append(result.Symbols, Symbol{
			Name:   lastPathSegment(module),
			Kind:   SymbolImport,
			Start:  line,
			End:    line,
			Source: module,
		})
	}

	definedAt := make(map[string]int, len(result.Symbols))
	for _, sym := range result.Symbols {
		if sym.Kind == SymbolFunction || sym.Kind == SymbolClass {
			definedAt[sym.Name] = sym.Start
			addUsage(result.Usages, sym.Name, sym.Start, UsageDefinition)
		}
	}
	for i, line := range lines {
		for _, tok := range fallbackTokenRe.FindAllString(line, -1) {
			if len(tok) < 2 || isReservedWord(tok) {
				continue
			}
			if definedAt[tok] == i+1 {
				continue
			}
			addUsage(result.Usages, tok, i+1, UsageReference)
		}
	}

	return result, nil
}

// blockEnd guesses the end of a block by brace balance, or falls back to
// a 20-line window.
func blockEnd(lines []string, start int) int {
	depth := 0
	opened := false
	for i := start - 1; i < len(lines) && i < start+200; i++ {
		depth += strings.Count(lines[i], "{") - strings.Count(lines[i], "}")
		if strings.Contains(lines[i], "{") {
			opened = true
		}
		if opened && depth <= 0 {
			return i + 1
		}
	}
	end := start + 20
	if end > len(lines) {
		end = len(lines)
	}
	return end
}

func splitParams(raw string) []string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		part = strings.TrimSpace(part)
		if part != "" {
			out = append(out, part)
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

func lastPathSegment(module string) string {
	module = strings.Trim(module, "./")
	if idx := strings.LastIndexAny(module, "/."); idx != -1 {
		return module[idx+1:]
	}
	return module
}

var reservedWords = map[string]bool{
	"if": true, "else": true, "for": true, "while": true, "return": true,
	"new": true, "class": true, "function": true, "const": true, "let": true,
	"var": true, "public": true, "private": true, "protected": true,
	"static": true, "void": true, "int": true, "import": true, "export": true,
	"true": true, "false": true, "null": true, "this": true, "switch": true,
	"case": true, "break": true, "try": true, "catch": true, "throw": true,
}

func isReservedWord(tok string) bool {
	return reservedWords[strings.ToLower(tok)]
}
