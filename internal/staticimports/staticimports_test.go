package staticimports

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestScanStaticImport(t *testing.T) {
	src := []byte("import { render } from \"lit\";\nrender();")
	imports, err := Scan(LangJS, src)
	require.NoError(t, err)
	require.Len(t, imports, 1)
	require.Equal(t, "lit", imports[0].Specifier)
	require.Equal(t, KindStatic, imports[0].Kind)
}

func TestScanReexportCountsAsStatic(t *testing.T) {
	src := []byte(`export { foo } from "./foo.js";`)
	imports, err := Scan(LangJS, src)
	require.NoError(t, err)
	require.Len(t, imports, 1)
	require.Equal(t, "./foo.js", imports[0].Specifier)
	require.Equal(t, KindStatic, imports[0].Kind)
}

func TestScanDynamicImport(t *testing.T) {
	src := []byte(`async function load() { return import("./lazy.js"); }`)
	imports, err := Scan(LangJS, src)
	require.NoError(t, err)
	require.Len(t, imports, 1)
	require.Equal(t, "./lazy.js", imports[0].Specifier)
	require.Equal(t, KindDynamic, imports[0].Kind)
}

func TestScanTypeScriptImport(t *testing.T) {
	src := []byte("import type { Foo } from \"./types\";\nimport { bar } from \"bar\";")
	imports, err := Scan(LangTS, src)
	require.NoError(t, err)

	var specs []string
	for _, im := range imports {
		specs = append(specs, im.Specifier)
	}
	require.Contains(t, specs, "./types")
	require.Contains(t, specs, "bar")
}

func TestStaticSpecifiersDropsDynamicAndDedupes(t *testing.T) {
	src := []byte(`
import { a } from "shared";
import { b } from "shared";
const lazy = () => import("./lazy.js");
`)
	specs, err := StaticSpecifiers("/app/main.js", src)
	require.NoError(t, err)
	require.Equal(t, []string{"shared"}, specs)
}

func TestStaticSpecifiersUnknownExtensionReturnsNil(t *testing.T) {
	specs, err := StaticSpecifiers("/app/styles.css", []byte(`body {}`))
	require.NoError(t, err)
	require.Nil(t, specs)
}

func TestLangForDetectsTypeScript(t *testing.T) {
	lang, ok := LangFor("/app/component.tsx")
	require.True(t, ok)
	require.Equal(t, LangTS, lang)
}

func TestLangForDetectsJavaScript(t *testing.T) {
	lang, ok := LangFor("/app/component.mjs")
	require.True(t, ok)
	require.Equal(t, LangJS, lang)
}

func TestLangForUnknownExtension(t *testing.T) {
	_, ok := LangFor("/app/styles.css")
	require.False(t, ok)
}
