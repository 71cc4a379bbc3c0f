package hmr

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLexAcceptArgsSelfAcceptingCallback(t *testing.T) {
	res, err := LexAcceptArgs("(mod) => { console.log(mod) }")
	require.NoError(t, err)
	require.True(t, res.SelfAccepts)
	require.Empty(t, res.Deps)
}

func TestLexAcceptArgsNoArgs(t *testing.T) {
	res, err := LexAcceptArgs("")
	require.NoError(t, err)
	require.True(t, res.SelfAccepts)
}

func TestLexAcceptArgsSingleStringDep(t *testing.T) {
	res, err := LexAcceptArgs(`'./dep.js', cb`)
	require.NoError(t, err)
	require.False(t, res.SelfAccepts)
	require.Len(t, res.Deps, 1)
	require.Equal(t, "./dep.js", res.Deps[0].URL)
}

func TestLexAcceptArgsArrayOfDeps(t *testing.T) {
	res, err := LexAcceptArgs(`['./a.js', "./b.js"], ([a, b]) => {}`)
	require.NoError(t, err)
	require.False(t, res.SelfAccepts)
	require.Len(t, res.Deps, 2)
	require.Equal(t, "./a.js", res.Deps[0].URL)
	require.Equal(t, "./b.js", res.Deps[1].URL)
}

func TestLexAcceptArgsBareTemplateWithInterpolationIsSelfAccepting(t *testing.T) {
	res, err := LexAcceptArgs("`./${name}.js`, cb")
	require.NoError(t, err)
	require.True(t, res.SelfAccepts)
	require.Empty(t, res.Deps)
}

func TestLexAcceptArgsTemplateWithoutInterpolationIsLiteralDep(t *testing.T) {
	res, err := LexAcceptArgs("`./dep.js`, cb")
	require.NoError(t, err)
	require.False(t, res.SelfAccepts)
	require.Len(t, res.Deps, 1)
	require.Equal(t, "./dep.js", res.Deps[0].URL)
}

func TestLexAcceptArgsTemplateInterpolationInsideArrayIsLexError(t *testing.T) {
	_, err := LexAcceptArgs("['./a.js', `./${name}.js`]")
	require.Error(t, err)
}

func TestLexAcceptArgsUnterminatedStringIsLexError(t *testing.T) {
	_, err := LexAcceptArgs(`'./dep.js`)
	require.Error(t, err)
}

func TestLexAcceptArgsUnterminatedArrayIsLexError(t *testing.T) {
	_, err := LexAcceptArgs(`['./a.js'`)
	require.Error(t, err)
}

func TestLexAcceptArgsEscapedQuoteWithinString(t *testing.T) {
	res, err := LexAcceptArgs(`'./dep\'s.js'`)
	require.NoError(t, err)
	require.Len(t, res.Deps, 1)
	require.Equal(t, `./dep\'s.js`, res.Deps[0].URL)
}

func TestLexAcceptExportsArgsArray(t *testing.T) {
	names, err := LexAcceptExportsArgs(`['x', 'y'], cb`)
	require.NoError(t, err)
	require.Equal(t, []string{"x", "y"}, names)
}

func TestLexAcceptExportsArgsSingleString(t *testing.T) {
	names, err := LexAcceptExportsArgs(`'x', cb`)
	require.NoError(t, err)
	require.Equal(t, []string{"x"}, names)
}

func TestLexAcceptExportsArgsNoLeadingArray(t *testing.T) {
	names, err := LexAcceptExportsArgs(`(mod) => {}`)
	require.NoError(t, err)
	require.Empty(t, names)
}

func TestScanHotAcceptCallsSelfAccepting(t *testing.T) {
	site, err := ScanHotAcceptCalls(`import.meta.hot.accept((mod) => {})`)
	require.NoError(t, err)
	require.True(t, site.SelfAccepts)
	require.Empty(t, site.Deps)
}

func TestScanHotAcceptCallsWithDeps(t *testing.T) {
	site, err := ScanHotAcceptCalls(`import.meta.hot.accept(['./a.js', './b.js'], ([a, b]) => {})`)
	require.NoError(t, err)
	require.False(t, site.SelfAccepts)
	require.Len(t, site.Deps, 2)
	require.Equal(t, "./a.js", site.Deps[0].URL)
}

func TestScanHotAcceptCallsWithAcceptExports(t *testing.T) {
	site, err := ScanHotAcceptCalls(`import.meta.hot.acceptExports(['x', 'y'], (mod) => {})`)
	require.NoError(t, err)
	require.False(t, site.SelfAccepts)
	require.Equal(t, []string{"x", "y"}, site.Exports)
}

func TestScanHotAcceptCallsNoCallSites(t *testing.T) {
	site, err := ScanHotAcceptCalls(`export const x = 1`)
	require.NoError(t, err)
	require.False(t, site.SelfAccepts)
	require.Empty(t, site.Deps)
	require.Empty(t, site.Exports)
}

func TestScanHotAcceptCallsPropagatesLexError(t *testing.T) {
	_, err := ScanHotAcceptCalls("import.meta.hot.accept(['./a.js'")
	require.Error(t, err)
}
