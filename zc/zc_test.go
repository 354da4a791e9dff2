package zc

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestStringAliasesInput(t *testing.T) {
	buf := []byte("hello world")
	s := String(buf[6:])
	require.Equal(t, "world", s)
	require.True(t, Aliases(buf, Bytes(s)))
}

func TestEmpty(t *testing.T) {
	require.Equal(t, "", String(nil))
	require.Nil(t, Bytes(""))
	require.False(t, Aliases(nil, []byte("x")))
}

func TestAliasesOutside(t *testing.T) {
	buf := []byte("abc")
	other := bytes.Clone(buf)
	require.False(t, Aliases(buf, other))
	require.False(t, Aliases(buf[:1], buf[1:]))
}
