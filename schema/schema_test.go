package schema

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rawbytedev/fieldwire"
)

type Header struct {
	Version uint8
	Length  uint8
	Name    string
	Port    uint16
}

const headerYAML = `
types:
  Header:
    container: "byteorder=LE"
    fields:
      Version: "bits_start=0xf0"
      Length: "bits=0x0f,variable_name=n"
      Name: "length=n"
`

func TestApplyYAML(t *testing.T) {
	f, err := ParseYAML([]byte(headerYAML))
	require.NoError(t, err)

	cd := fieldwire.New(fieldwire.Options{})
	require.NoError(t, f.Apply(cd, (*Header)(nil)))

	data := []byte{0x23, 'a', 'b', 'c', 0x50, 0x00}
	var h Header
	n, err := cd.Decode(data, &h)
	require.NoError(t, err)
	require.Equal(t, len(data), n)
	require.Equal(t, Header{Version: 2, Length: 3, Name: "abc", Port: 80}, h)

	out, err := cd.Encode(h)
	require.NoError(t, err)
	require.Equal(t, data, out)

	// the struct tags still rule the default codec
	plain, err := fieldwire.Encode(h)
	require.NoError(t, err)
	require.Equal(t, []byte{2, 3, 3, 'a', 'b', 'c', 0x00, 0x50}, plain)
}

func TestApplyErrors(t *testing.T) {
	f, err := ParseYAML([]byte(headerYAML))
	require.NoError(t, err)

	cd := fieldwire.New(fieldwire.Options{})
	err = f.Apply(cd)
	assert.ErrorContains(t, err, `type "Header" not provided`)

	err = f.Apply(cd, 42)
	assert.Error(t, err)

	_, err = cd.Encode(Header{})
	require.NoError(t, err)
	err = f.Apply(cd, Header{})
	assert.ErrorIs(t, err, fieldwire.ErrConfig)

	bad := &File{Types: map[string]Type{"Header": {Fields: map[string]string{"Missing": "skip"}}}}
	err = bad.Apply(fieldwire.New(fieldwire.Options{}), Header{})
	assert.ErrorIs(t, err, fieldwire.ErrConfig)
}

func TestParseYAMLRejectsUnknownKeys(t *testing.T) {
	_, err := ParseYAML([]byte("types:\n  Header:\n    layout: x\n"))
	assert.Error(t, err)
}

func TestEncodings(t *testing.T) {
	f, err := ParseYAML([]byte(headerYAML))
	require.NoError(t, err)

	bin, err := f.MarshalCBOR()
	require.NoError(t, err)
	fromCBOR, err := ParseCBOR(bin)
	require.NoError(t, err)
	require.Equal(t, f, fromCBOR)

	again, err := fromCBOR.MarshalCBOR()
	require.NoError(t, err)
	require.Equal(t, bin, again)

	text, err := f.YAML()
	require.NoError(t, err)
	fromYAML, err := ParseYAML(text)
	require.NoError(t, err)
	require.Equal(t, f, fromYAML)

	_, err = ParseCBOR([]byte{0xff})
	assert.Error(t, err)
}
