// Package staticimports scans a module's source text for its statically
// analyzable import specifiers, the input the module graph uses to tell a
// self-accepting import from one that was only ever reached dynamically.
package staticimports

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	ts "github.com/tree-sitter/go-tree-sitter"
)

// ImportKind distinguishes a specifier bound by a static import/export
// declaration from one reached only through a dynamic import() call. Only
// the former counts toward a module's staticImportedUrls set.
type ImportKind int

const (
	KindStatic ImportKind = iota
	KindDynamic
)

// Import is one specifier found in a source file, along with the line it
// appeared on for diagnostics.
type Import struct {
	Specifier string
	Kind      ImportKind
	Line      int
}

// LangFor guesses the grammar to parse path with from its extension.
// Anything not recognizably JS/TS scans as having no imports at all,
// matching spec's "best effort" static analysis.
func LangFor(path string) (Lang, bool) {
	switch {
	case strings.HasSuffix(path, ".ts"), strings.HasSuffix(path, ".tsx"),
		strings.HasSuffix(path, ".mts"), strings.HasSuffix(path, ".cts"):
		return LangTS, true
	case strings.HasSuffix(path, ".js"), strings.HasSuffix(path, ".jsx"),
		strings.HasSuffix(path, ".mjs"), strings.HasSuffix(path, ".cjs"):
		return LangJS, true
	default:
		return LangJS, false
	}
}

// Scan parses content with the grammar for lang and extracts its import and
// re-export specifiers. A parse failure is reported rather than silently
// swallowed, but yields an empty result either way — callers treat a scan
// failure the same as "no statically discoverable imports".
func Scan(lang Lang, content []byte) ([]Import, error) {
	query, err := getQueryManager().get(lang)
	if err != nil {
		return nil, err
	}

	parser := getParser(lang)
	defer putParser(lang, parser)

	tree := parser.Parse(content, nil)
	if tree == nil {
		return nil, fmt.Errorf("staticimports: failed to parse content")
	}
	defer tree.Close()

	cursor := ts.NewQueryCursor()
	defer cursor.Close()

	captureNames := query.CaptureNames()
	matches := cursor.Matches(query, tree.RootNode(), content)

	var imports []Import
	for {
		match := matches.Next()
		if match == nil {
			break
		}
		for _, capture := range match.Captures {
			name := captureNames[capture.Index]
			text := capture.Node.Utf8Text(content)
			line := int(capture.Node.StartPosition().Row) + 1

			switch name {
			case "import.spec", "reexport.spec":
				imports = append(imports, Import{Specifier: text, Kind: KindStatic, Line: line})
			case "dynamicImport.spec":
				imports = append(imports, Import{Specifier: text, Kind: KindDynamic, Line: line})
			}
		}
	}

	return imports, nil
}

// StaticSpecifiers scans content and returns only the specifiers reachable
// through a static import or re-export, deduplicated and in first-seen
// order. This is the set the module graph needs for acceptedHmrDeps
// resolution: a dep only reached via import() never counts as an HMR
// boundary on its own.
func StaticSpecifiers(path string, content []byte) ([]string, error) {
	lang, ok := LangFor(path)
	if !ok {
		return nil, nil
	}

	imports, err := Scan(lang, content)
	if err != nil {
		return nil, err
	}

	seen := make(map[string]struct{}, len(imports))
	var out []string
	for _, im := range imports {
		if im.Kind != KindStatic {
			continue
		}
		if _, ok := seen[im.Specifier]; ok {
			continue
		}
		seen[im.Specifier] = struct{}{}
		out = append(out, im.Specifier)
	}
	return out, nil
}

// DiscoverBareImports walks root for JS/TS source files and returns every
// bare (non-relative, non-absolute) import specifier found by static
// analysis, mapped to the file that imported it. Shared by the one-shot
// `devgraphd optimize` command and the dev server's `scan` optimizer
// strategy, which both need to seed the optimizer with every bare import
// in the project ahead of any single request surfacing one.
func DiscoverBareImports(root string) (map[string]string, error) {
	bare := make(map[string]string)

	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if d.Name() == "node_modules" || d.Name() == ".git" {
				return filepath.SkipDir
			}
			return nil
		}

		lang, ok := LangFor(path)
		if !ok {
			return nil
		}

		content, err := os.ReadFile(path)
		if err != nil {
			return nil
		}

		imports, err := Scan(lang, content)
		if err != nil {
			return nil
		}

		for _, im := range imports {
			if isBareSpecifier(im.Specifier) {
				bare[im.Specifier] = path
			}
		}
		return nil
	})
	return bare, err
}

func isBareSpecifier(specifier string) bool {
	return !strings.HasPrefix(specifier, ".") && !strings.HasPrefix(specifier, "/")
}
