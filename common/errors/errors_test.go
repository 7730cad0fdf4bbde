package errors

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
)

var (
	errTestA = New("errors_test", 1, "errors_test: a")
	errTestB = New("errors_test", 2, "errors_test: b")
)

func TestCode(t *testing.T) {
	require := require.New(t)

	module, code := Code(nil)
	require.Equal("", module)
	require.EqualValues(CodeNoError, code)

	module, code = Code(errTestB)
	require.Equal("errors_test", module)
	require.EqualValues(2, code)

	module, code = Code(fmt.Errorf("wrapped: %w", errTestA))
	require.Equal("errors_test", module, "wrapped errors keep their code")
	require.EqualValues(1, code)

	module, code = Code(fmt.Errorf("plain"))
	require.Equal(UnknownModule, module)
	require.EqualValues(1, code)
}

func TestFromCode(t *testing.T) {
	require := require.New(t)

	err := FromCode("errors_test", 1, errTestA.Error())
	require.Equal(errTestA, err, "exact message resolves to the registered error")

	err = FromCode("errors_test", 2, "errors_test: b: some detail")
	require.True(Is(err, errTestB), "context-carrying message still matches")
	require.Equal("some detail", Context(err))

	err = FromCode("errors_test", 99, "remote failure")
	require.Equal("remote failure", err.Error())
	require.False(Is(err, errTestA))
}

func TestDuplicateRegistration(t *testing.T) {
	require := require.New(t)

	require.Panics(func() { _ = New("errors_test", 1, "again") }, "duplicate pair")
	require.Panics(func() { _ = New("errors_test", CodeNoError, "reserved") }, "reserved code")
}

func TestWithContext(t *testing.T) {
	require := require.New(t)

	require.Equal(errTestA, WithContext(errTestA, ""), "empty context is a no-op")

	err := WithContext(errTestA, "account xyz")
	require.True(Is(err, errTestA))
	require.Equal("errors_test: a: account xyz", err.Error())
	require.Equal("", Context(errTestA))
}
