package hmr

import (
	"fmt"
	"strings"

	"github.com/devgraph/devgraph/internal/devgrapherr"
)

// lexState names the states of the miniature accept()-call lexer from
// spec §4.2: inCall, inArray, inSingleQuote, inDoubleQuote, inTemplate.
type lexState int

const (
	stateInCall lexState = iota
	stateInArray
	stateInSingleQuote
	stateInDoubleQuote
	stateInTemplate
)

// DepRef is one string-literal dependency argument extracted from an
// accept([...]) call, with its byte offsets within the scanned source for
// later URL rewriting.
type DepRef struct {
	URL   string
	Start int
	End   int
}

// AcceptCall is the result of lexing the argument list of one accept(...)
// call site.
type AcceptCall struct {
	SelfAccepts bool
	Deps        []DepRef
}

// LexAcceptArgs scans the text between the parentheses of an accept(...)
// call — e.g. the `['./a.js', './b.js'], cb` in
// `import.meta.hot.accept(['./a.js', './b.js'], cb)` — and extracts the
// literal dependency URLs, or decides the call is self-accepting.
//
// Per spec §4.2: a first argument that is not a string, array, or `[` is
// self-accepting with no explicit deps; so is a bare template-literal
// first argument containing `${`, since its value can't be determined
// statically. A `${` encountered while lexing a template literal nested
// inside the dependency array is a hard LexError — unlike the bare-template
// case, one unparseable array element can't be shrugged off as "no deps".
func LexAcceptArgs(src string) (AcceptCall, error) {
	i := skipSpace(src, 0)
	if i >= len(src) {
		return AcceptCall{SelfAccepts: true}, nil
	}

	switch src[i] {
	case '[':
		return lexArray(src, i)
	case '\'':
		dep, end, err := lexQuoted(src, i, stateInSingleQuote, '\'')
		if err != nil {
			return AcceptCall{}, err
		}
		return AcceptCall{Deps: []DepRef{{URL: dep, Start: i, End: end}}}, nil
	case '"':
		dep, end, err := lexQuoted(src, i, stateInDoubleQuote, '"')
		if err != nil {
			return AcceptCall{}, err
		}
		return AcceptCall{Deps: []DepRef{{URL: dep, Start: i, End: end}}}, nil
	case '`':
		dep, end, hasInterp, err := lexTemplate(src, i)
		if err != nil {
			return AcceptCall{}, err
		}
		if hasInterp {
			// Bare template first-argument with interpolation: can't
			// determine the literal at all, fall back to self-accepting.
			return AcceptCall{SelfAccepts: true}, nil
		}
		return AcceptCall{Deps: []DepRef{{URL: dep, Start: i, End: end}}}, nil
	default:
		return AcceptCall{SelfAccepts: true}, nil
	}
}

func lexArray(src string, start int) (AcceptCall, error) {
	i := start + 1 // past '['
	var deps []DepRef

	for i < len(src) {
		i = skipSpace(src, i)
		if i >= len(src) {
			break
		}
		switch src[i] {
		case ']':
			return AcceptCall{Deps: deps}, nil
		case ',':
			i++
			continue
		case '\'':
			dep, end, err := lexQuoted(src, i, stateInSingleQuote, '\'')
			if err != nil {
				return AcceptCall{}, err
			}
			deps = append(deps, DepRef{URL: dep, Start: i, End: end})
			i = end
		case '"':
			dep, end, err := lexQuoted(src, i, stateInDoubleQuote, '"')
			if err != nil {
				return AcceptCall{}, err
			}
			deps = append(deps, DepRef{URL: dep, Start: i, End: end})
			i = end
		case '`':
			dep, end, hasInterp, err := lexTemplate(src, i)
			if err != nil {
				return AcceptCall{}, err
			}
			if hasInterp {
				return AcceptCall{}, devgrapherr.New(devgrapherr.CodeLex,
					fmt.Sprintf("template-literal interpolation in accept() dependency array at offset %d", i))
			}
			deps = append(deps, DepRef{URL: dep, Start: i, End: end})
			i = end
		default:
			return AcceptCall{}, devgrapherr.New(devgrapherr.CodeLex,
				fmt.Sprintf("unexpected character %q in accept() dependency array at offset %d", src[i], i))
		}
	}

	return AcceptCall{}, devgrapherr.New(devgrapherr.CodeLex, "unterminated accept() dependency array")
}

// lexQuoted scans a single- or double-quoted string starting at i (which
// must point at the opening quote) and returns its raw content (escape
// sequences are kept as written, not decoded) plus the offset just past
// the closing quote.
func lexQuoted(src string, i int, _ lexState, quote byte) (string, int, error) {
	start := i + 1
	j := start
	for j < len(src) {
		switch src[j] {
		case '\\':
			j += 2
			continue
		case quote:
			return src[start:j], j + 1, nil
		}
		j++
	}
	return "", 0, devgrapherr.New(devgrapherr.CodeLex, "unterminated string literal in accept() call")
}

// lexTemplate scans a template literal starting at i (pointing at the
// opening backtick) and reports whether it contains a `${` interpolation.
func lexTemplate(src string, i int) (content string, end int, hasInterpolation bool, err error) {
	start := i + 1
	j := start
	for j < len(src) {
		switch src[j] {
		case '\\':
			j += 2
			continue
		case '$':
			if j+1 < len(src) && src[j+1] == '{' {
				hasInterpolation = true
			}
			j++
		case '`':
			return src[start:j], j + 1, hasInterpolation, nil
		default:
			j++
		}
	}
	return "", 0, false, devgrapherr.New(devgrapherr.CodeLex, "unterminated template literal in accept() call")
}

// LexAcceptExportsArgs scans the argument list of an acceptExports(...)
// call site — the `['x', 'y']` in
// `import.meta.hot.acceptExports(['x', 'y'], cb)` — and returns the
// literal export names. Unlike accept(), a bare callback with no leading
// array or string argument accepts no exports at all rather than falling
// back to self-accepting, since there's no export list to speak of.
func LexAcceptExportsArgs(src string) ([]string, error) {
	i := skipSpace(src, 0)
	if i >= len(src) {
		return nil, nil
	}

	switch src[i] {
	case '[':
		call, err := lexArray(src, i)
		if err != nil {
			return nil, err
		}
		names := make([]string, len(call.Deps))
		for idx, d := range call.Deps {
			names[idx] = d.URL
		}
		return names, nil
	case '\'':
		name, _, err := lexQuoted(src, i, stateInSingleQuote, '\'')
		if err != nil {
			return nil, err
		}
		return []string{name}, nil
	case '"':
		name, _, err := lexQuoted(src, i, stateInDoubleQuote, '"')
		if err != nil {
			return nil, err
		}
		return []string{name}, nil
	default:
		return nil, nil
	}
}

// AcceptSite is the outcome of scanning one module's source text for its
// import.meta.hot.accept(...) and import.meta.hot.acceptExports(...) call
// sites, per spec §4.2's accept-call lexer.
type AcceptSite struct {
	SelfAccepts bool
	Deps        []DepRef
	Exports     []string
}

// ScanHotAcceptCalls looks for the two call sites the propagator cares
// about — `hot.accept(...)` and `hot.acceptExports(...)` — and lexes each
// one's argument list. A module with neither call site present accepts
// nothing, the same outcome as a module that was never transformed with
// HMR enabled.
//
// A LexError from either call site is returned to the caller rather than
// swallowed here: per spec, a lex error still has to resolve to "treat the
// module as non-self-accepting", but that's a graph-level decision, not
// this scanner's.
func ScanHotAcceptCalls(src string) (AcceptSite, error) {
	var site AcceptSite

	if idx := strings.Index(src, "hot.accept("); idx >= 0 {
		argStart := idx + len("hot.accept(")
		call, err := LexAcceptArgs(src[argStart:])
		if err != nil {
			return AcceptSite{}, err
		}
		site.SelfAccepts = call.SelfAccepts
		site.Deps = call.Deps
	}

	if idx := strings.Index(src, "hot.acceptExports("); idx >= 0 {
		argStart := idx + len("hot.acceptExports(")
		names, err := LexAcceptExportsArgs(src[argStart:])
		if err != nil {
			return AcceptSite{}, err
		}
		site.Exports = names
	}

	return site, nil
}

func skipSpace(src string, i int) int {
	for i < len(src) && (src[i] == ' ' || src[i] == '\t' || src[i] == '\n' || src[i] == '\r') {
		i++
	}
	return i
}
