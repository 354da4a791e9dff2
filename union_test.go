package fieldwire

import (
	"testing"

	"github.com/stretchr/testify/require"
)

type command interface{ isCommand() }

type readCmd struct {
	Address uint8
}

type unknownCmd struct {
	Tag     uint64 `wire:"-"`
	Address uint16
}

func (readCmd) isCommand()    {}
func (unknownCmd) isCommand() {}

func (u unknownCmd) Discriminant() uint64     { return u.Tag }
func (u *unknownCmd) SetDiscriminant(v uint64) { u.Tag = v }

type frame struct {
	Cmd command
}

type verb interface{ isVerb() }

type get struct {
	Path string `wire:"linend=' '"`
}

type post struct {
	Path string `wire:"linend=' '"`
}

func (get) isVerb()   {}
func (*post) isVerb() {}

type packet interface{ isPacket() }

type flagged struct {
	Tag uint64 `wire:"-"`
	V   uint8
}

type small struct {
	Tag uint64 `wire:"-"`
	V   uint8
}

func (flagged) isPacket() {}
func (small) isPacket()   {}

func (p flagged) Discriminant() uint64     { return p.Tag }
func (p *flagged) SetDiscriminant(v uint64) { p.Tag = v }
func (p small) Discriminant() uint64       { return p.Tag }
func (p *small) SetDiscriminant(v uint64)   { p.Tag = v }

type message interface{ isMessage() }

type ping struct {
	_ struct{} `wire:"branch_value=7"`
}

type pong struct {
	Seq uint16
}

func (ping) isMessage() {}
func (pong) isMessage() {}

type envelope struct {
	_   struct{} `wire:"byte_count=2"`
	Msg message
}

type strict interface{ isStrict() }

type only struct{ V uint8 }

func (only) isStrict() {}

type linked struct {
	Kind uint8 `wire:"variable_name=kind"`
	Body packet `wire:"branch=kind"`
}

func init() {
	must := func(err error) {
		if err != nil {
			panic(err)
		}
	}
	must(RegisterUnion[command](UnionOptions{},
		Case[readCmd](BranchValue(1)),
		Case[unknownCmd](Default()),
	))
	must(RegisterUnion[verb](UnionOptions{StartsWith: true},
		Case[get](StartsWith("GET ")),
		Case[post](),
	))
	must(RegisterUnion[packet](UnionOptions{},
		Case[flagged](BranchBits(0x80)),
		Case[small](BranchRange("0..=0x7f")),
	))
	must(RegisterUnion[message](UnionOptions{}, Case[ping](), Case[pong]()))
	must(RegisterUnion[strict](UnionOptions{}, Case[only](BranchValue(1))))
}

func TestUnionDispatch(t *testing.T) {
	cmd, err := Decode[command]([]byte{0x01, 0x05})
	require.NoError(t, err)
	require.Equal(t, readCmd{Address: 5}, cmd)

	var f frame
	n, err := defaultCodec.Decode([]byte{0x09, 0x00, 0x01}, &f)
	require.NoError(t, err)
	require.Equal(t, unknownCmd{Tag: 9, Address: 1}, f.Cmd)
	require.Equal(t, 3, n)

	roundTrip(t, frame{Cmd: readCmd{Address: 5}}, []byte{0x01, 0x05})
	roundTrip(t, frame{Cmd: unknownCmd{Tag: 9, Address: 1}}, []byte{0x09, 0x00, 0x01})
}

func TestUnionNoMatch(t *testing.T) {
	_, err := Decode[strict]([]byte{2, 0})
	require.ErrorIs(t, err, ErrInvalidByteLength)

	_, err = Decode[verb]([]byte("PUT / "))
	require.ErrorIs(t, err, ErrFail)

	_, err = Encode(frame{})
	require.ErrorIs(t, err, ErrFail)
}

func TestUnionStartsWith(t *testing.T) {
	v, err := Decode[verb]([]byte("GET /index "))
	require.NoError(t, err)
	require.Equal(t, get{Path: "/index"}, v)

	// pattern defaults to the lowercase type name; post is stored by pointer
	v, err = Decode[verb]([]byte("post/form "))
	require.NoError(t, err)
	require.Equal(t, &post{Path: "/form"}, v)

	type request struct{ V verb }
	roundTrip(t, request{V: get{Path: "/a"}}, []byte("GET /a "))
	roundTrip(t, request{V: &post{Path: "/b"}}, []byte("post/b "))
}

func TestUnionRangeAndBits(t *testing.T) {
	p, err := Decode[packet]([]byte{0x85, 9})
	require.NoError(t, err)
	require.Equal(t, flagged{Tag: 0x85, V: 9}, p)

	p, err = Decode[packet]([]byte{0x05, 9})
	require.NoError(t, err)
	require.Equal(t, small{Tag: 5, V: 9}, p)

	type holder struct{ P packet }
	roundTrip(t, holder{P: small{Tag: 5, V: 9}}, []byte{5, 9})
	roundTrip(t, holder{P: flagged{Tag: 0x85, V: 9}}, []byte{0x85, 9})
}

func TestUnionOrdinalsAndWidth(t *testing.T) {
	var e envelope
	n, err := defaultCodec.Decode([]byte{0, 8, 0, 3}, &e)
	require.NoError(t, err)
	require.Equal(t, pong{Seq: 3}, e.Msg)
	require.Equal(t, 4, n)

	roundTrip(t, envelope{Msg: ping{}}, []byte{0, 7})
}

func TestUnionBranchFromVariable(t *testing.T) {
	roundTrip(t, linked{Kind: 0x81, Body: flagged{Tag: 0x81, V: 4}}, []byte{0x81, 4})

	var l linked
	n, err := defaultCodec.Decode([]byte{0x02, 4}, &l)
	require.NoError(t, err)
	require.Equal(t, small{Tag: 2, V: 4}, l.Body)
	require.Equal(t, 2, n)
}

func TestRegisterUnionErrors(t *testing.T) {
	type notUnion struct{}
	require.ErrorIs(t, RegisterUnion[notUnion](UnionOptions{}), ErrConfig)

	type other interface{ isOther() }
	err := RegisterUnion[other](UnionOptions{}, Case[readCmd]())
	require.ErrorIs(t, err, ErrConfig)

	err = RegisterUnion[command](UnionOptions{}, Case[unknownCmd](Default()), Case[readCmd]())
	require.ErrorIs(t, err, ErrConfig)

	err = RegisterUnion[command](UnionOptions{}, Case[readCmd](BranchRange("5..=1")))
	require.ErrorIs(t, err, ErrConfig)

	type unregistered interface{ isNothing() }
	_, err = Decode[unregistered]([]byte{1})
	require.ErrorIs(t, err, ErrConfig)
}

type opcode interface{ isOpcode() }

type halt struct{}

type fallbackOp struct{ V uint8 }

func (halt) isOpcode()       {}
func (fallbackOp) isOpcode() {}

type shadowed interface{ isShadowed() }

type anyByte struct{ V uint8 }

type never struct{ V uint8 }

func (anyByte) isShadowed() {}
func (never) isShadowed()   {}

func init() {
	if err := RegisterUnion[opcode](UnionOptions{}, Case[halt](BranchValue(3)), Case[fallbackOp](Default())); err != nil {
		panic(err)
	}
	if err := RegisterUnion[shadowed](UnionOptions{}, Case[anyByte](BranchRange("0..=9")), Case[never](Default())); err != nil {
		panic(err)
	}
}

func TestDefaultVariantWritesOrdinal(t *testing.T) {
	type program struct{ Op opcode }
	roundTrip(t, program{Op: fallbackOp{V: 1}}, []byte{4, 1})
	roundTrip(t, program{Op: halt{}}, []byte{3})

	type guarded struct{ S shadowed }
	_, err := Encode(guarded{S: never{V: 1}})
	require.ErrorIs(t, err, ErrFail)
}
