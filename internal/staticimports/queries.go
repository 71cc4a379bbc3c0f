package staticimports

import (
	"embed"
	"fmt"
	"path"
	"sync"

	ts "github.com/tree-sitter/go-tree-sitter"
	tsJavascript "github.com/tree-sitter/tree-sitter-javascript/bindings/go"
	tsTypescript "github.com/tree-sitter/tree-sitter-typescript/bindings/go"
)

//go:embed queries/*/*.scm
var queryFiles embed.FS

// Lang is the grammar a source file should be parsed with. Best-effort
// static scanning only: unlike the hand-rolled accept() lexer, a parse
// error here just means the caller falls back to treating the module as
// having no statically-discoverable imports.
type Lang int

const (
	LangJS Lang = iota
	LangTS
)

var languages = struct {
	javascript *ts.Language
	typescript *ts.Language
}{
	ts.NewLanguage(tsJavascript.Language()),
	ts.NewLanguage(tsTypescript.LanguageTypescript()),
}

var (
	jsParserPool = sync.Pool{
		New: func() any {
			p := ts.NewParser()
			if err := p.SetLanguage(languages.javascript); err != nil {
				panic("staticimports: failed to set javascript language: " + err.Error())
			}
			return p
		},
	}
	tsParserPool = sync.Pool{
		New: func() any {
			p := ts.NewParser()
			if err := p.SetLanguage(languages.typescript); err != nil {
				panic("staticimports: failed to set typescript language: " + err.Error())
			}
			return p
		},
	}
)

func getParser(lang Lang) *ts.Parser {
	if lang == LangTS {
		return tsParserPool.Get().(*ts.Parser)
	}
	return jsParserPool.Get().(*ts.Parser)
}

func putParser(lang Lang, p *ts.Parser) {
	p.Reset()
	if lang == LangTS {
		tsParserPool.Put(p)
		return
	}
	jsParserPool.Put(p)
}

type queryManager struct {
	mu      sync.Mutex
	queries map[Lang]*ts.Query
}

func (qm *queryManager) get(lang Lang) (*ts.Query, error) {
	qm.mu.Lock()
	defer qm.mu.Unlock()

	if q, ok := qm.queries[lang]; ok {
		return q, nil
	}

	dir := "javascript"
	language := languages.javascript
	if lang == LangTS {
		dir = "typescript"
		language = languages.typescript
	}

	data, err := queryFiles.ReadFile(path.Join("queries", dir, "imports.scm"))
	if err != nil {
		return nil, fmt.Errorf("staticimports: read query for %s: %w", dir, err)
	}

	q, qerr := ts.NewQuery(language, string(data))
	if qerr != nil {
		return nil, fmt.Errorf("staticimports: parse query for %s: %w", dir, qerr)
	}

	qm.queries[lang] = q
	return q, nil
}

var globalQM = &queryManager{queries: make(map[Lang]*ts.Query)}

func getQueryManager() *queryManager {
	return globalQM
}
