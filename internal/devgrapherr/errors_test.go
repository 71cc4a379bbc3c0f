package devgrapherr

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDomainErrorFormatting(t *testing.T) {
	err := New(CodeResolve, "module not found")
	assert.Equal(t, "[RESOLVE_ERROR] module not found", err.Error())
}

func TestDomainErrorWrapUnwrap(t *testing.T) {
	cause := errors.New("boom")
	err := Wrap(cause, CodeBundler, "bundle failed")

	assert.Contains(t, err.Error(), "bundle failed")
	assert.Contains(t, err.Error(), "boom")
	require.ErrorIs(t, err, cause)
}

func TestDomainErrorWithContext(t *testing.T) {
	err := New(CodeTransform, "plugin threw").WithContext(CtxFile, "/src/app.tsx")
	assert.Contains(t, err.Error(), "/src/app.tsx")
}

func TestIsCode(t *testing.T) {
	var err error = New(CodeLex, "unterminated template literal")
	assert.True(t, IsCode(err, CodeLex))
	assert.False(t, IsCode(err, CodeResolve))
	assert.False(t, IsCode(errors.New("plain"), CodeLex))
}

func TestIsExpectedDuringWarmup(t *testing.T) {
	assert.True(t, IsExpectedDuringWarmup(New(CodeOutdatedDep, "stale dep")))
	assert.True(t, IsExpectedDuringWarmup(New(CodeClosedServer, "server closed")))
	assert.False(t, IsExpectedDuringWarmup(New(CodeResolve, "not found")))
}
