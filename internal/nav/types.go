package nav

import "github.com/qasimio/operon/internal/graph"

// SymbolReport is the payload behind `explain <symbol>`.
type SymbolReport struct {
	Name      string            `json:"name"`
	Kind      string            `json:"kind"`
	File      string            `json:"file"`
	Start     int               `json:"start"`
	End       int               `json:"end"`
	Signature string            `json:"signature,omitempty"`
	Docstring string            `json:"docstring,omitempty"`
	Source    string            `json:"source,omitempty"`
	Callers   []graph.UsageSite `json:"callers,omitempty"`
}

// FlowReport lists the direct callees reachable from a function.
type FlowReport struct {
	Function string       `json:"function"`
	File     string       `json:"file"`
	Callees  []FlowCallee `json:"callees"`
}

// FlowCallee is one resolved outgoing call.
type FlowCallee struct {
	Name    string `json:"name"`
	File    string `json:"file,omitempty"`
	Line    int    `json:"line,omitempty"`
	Defined bool   `json:"defined"`
}

// UsageReport is the payload behind `usages <symbol>`.
type UsageReport struct {
	Symbol      string            `json:"symbol"`
	Definitions []graph.UsageSite `json:"definitions"`
	Usages      []graph.UsageSite `json:"usages"`
}
