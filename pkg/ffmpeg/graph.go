package ffmpeg

import (
	"strconv"
	"strings"
)

// Graph is a typed -filter_complex description. Chains and parameters are kept
// structured until String, which is the only place escaping happens.
type Graph struct {
	chains []Chain
}

// Chain is a linear run of filters between labelled pads.
type Chain struct {
	Inputs  []string
	Filters []Filter
	Outputs []string
}

// Filter is a single filter with ordered parameters.
type Filter struct {
	Name   string
	Params []Param
}

// Param is a key=value filter option. An empty Key renders positionally.
type Param struct {
	Key   string
	Value Value
}

// Value is a typed filter option value.
type Value interface {
	render() string
}

// Int is an integer option value.
type Int int

// Float is a numeric option value.
type Float float64

// Expr is an ffmpeg expression such as "(W-w)/2" or "between(t,1,2)".
type Expr string

// Str is a literal string value (colors, font paths, modes).
type Str string

// Text is free text rendered by drawtext. It receives drawtext expansion
// escaping in addition to option and graph escaping.
type Text string

func (v Int) render() string   { return strconv.Itoa(int(v)) }
func (v Float) render() string { return strconv.FormatFloat(float64(v), 'f', -1, 64) }
func (v Expr) render() string  { return escapeGraph(escapeOption(string(v))) }
func (v Str) render() string   { return escapeGraph(escapeOption(string(v))) }
func (v Text) render() string {
	return escapeGraph(escapeOption(escapeDrawtext(string(v))))
}

// NewGraph returns an empty graph.
func NewGraph() *Graph {
	return &Graph{}
}

// Add appends a chain reading from inputs and writing to outputs.
func (g *Graph) Add(inputs, outputs []string, filters ...Filter) *Graph {
	g.chains = append(g.chains, Chain{Inputs: inputs, Filters: filters, Outputs: outputs})
	return g
}

// Chains returns a copy of the graph's chains.
func (g *Graph) Chains() []Chain {
	out := make([]Chain, len(g.chains))
	copy(out, g.chains)
	return out
}

// Len reports the number of chains.
func (g *Graph) Len() int { return len(g.chains) }

// String serializes the graph to ffmpeg filtergraph syntax.
func (g *Graph) String() string {
	parts := make([]string, 0, len(g.chains))
	for _, c := range g.chains {
		parts = append(parts, c.String())
	}
	return strings.Join(parts, ";")
}

// String serializes the chain.
func (c Chain) String() string {
	var b strings.Builder
	for _, in := range c.Inputs {
		b.WriteString("[" + in + "]")
	}
	for i, f := range c.Filters {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(f.String())
	}
	for _, out := range c.Outputs {
		b.WriteString("[" + out + "]")
	}
	return b.String()
}

// NewFilter builds a filter from parameters.
func NewFilter(name string, params ...Param) Filter {
	return Filter{Name: name, Params: params}
}

// P is shorthand for a named parameter.
func P(key string, v Value) Param {
	return Param{Key: key, Value: v}
}

// String serializes the filter.
func (f Filter) String() string {
	if len(f.Params) == 0 {
		return f.Name
	}
	opts := make([]string, 0, len(f.Params))
	for _, p := range f.Params {
		if p.Key == "" {
			opts = append(opts, p.Value.render())
			continue
		}
		opts = append(opts, p.Key+"="+p.Value.render())
	}
	return f.Name + "=" + strings.Join(opts, ":")
}

// escapeDrawtext protects characters drawtext expands itself.
func escapeDrawtext(s string) string {
	return backslash(s, `\%`)
}

// escapeOption protects characters significant to option parsing (key=value:key=value).
func escapeOption(s string) string {
	return backslash(s, `\':`)
}

// escapeGraph protects characters significant to filtergraph parsing.
func escapeGraph(s string) string {
	return backslash(s, `\'[],;`)
}

func backslash(s, special string) string {
	if !strings.ContainsAny(s, special) {
		return s
	}
	var b strings.Builder
	b.Grow(len(s) + 8)
	for _, r := range s {
		if strings.ContainsRune(special, r) {
			b.WriteByte('\\')
		}
		b.WriteRune(r)
	}
	return b.String()
}
