package sig

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"binsig/matchchain"
	"binsig/types"
)

const testBasicBlockWeight = 1000

var fakeInstrChains = [][3]types.Address{
	{0x00001000, 0x10001000, 0x20001000},
	{0x00002000, 0x10002000, 0x20002000},
	{0x00003000, 0x10003000, 0x20003000},
	{0x00004000, 0x10004000, 0x20004000},
	{0x00005000, 0x10005000, 0x20005000},
}

// insertFakeInstructions starts every basic block with the same six-byte
// instruction "XX0000" carrying the immediate 0x30303030 (four ASCII
// zeroes), followed by three one-byte instructions whose values are
// unique across the whole table so they never become common.
func insertFakeInstructions(column *matchchain.Column, bb *types.MatchedBasicBlock, match types.Match, nextByte *byte) {
	instr := column.InsertInstructionMatch(bb, match)
	instr.RawBytes = []byte("XX0000")
	instr.Disassembly = "push 0x30303030"
	instr.Immediates = []types.Immediate{{Value: 0x30303030, Width: types.WidthDWord}}

	offset := types.Address(6)
	for i := 0; i < 3; i++ {
		instr = column.InsertInstructionMatch(bb, types.Match{
			Address:       match.Address + offset,
			AddressInNext: match.AddressInNext + offset,
		})
		instr.RawBytes = []byte{*nextByte}
		offset++
		*nextByte++
	}
}

func newGenericSignatureTable() matchchain.Table {
	table := matchchain.NewTable(3)
	// Start at ASCII '!' to stay in a printable range.
	nextByte := byte(0x21)
	for _, chain := range fakeInstrChains {
		for j := 0; j < 2; j++ {
			match := types.Match{Address: chain[j], AddressInNext: chain[j+1]}
			function := table[j].InsertFunctionMatch(match)
			bb := table[j].InsertBasicBlockMatch(function, match)
			bb.Weight = testBasicBlockWeight
			insertFakeInstructions(table[j], bb, match, &nextByte)
		}
		match := types.Match{Address: chain[2]}
		function := table[2].InsertFunctionMatch(match)
		bb := table[2].InsertBasicBlockMatch(function, match)
		bb.Weight = testBasicBlockWeight
		insertFakeInstructions(table[2], bb, match, &nextByte)
	}

	matchchain.PropagateIDs(table)
	matchchain.BuildIDIndices(table)
	return table
}

func TestGenericSignatureWithMasking(t *testing.T) {
	table := newGenericSignatureTable()
	raw, err := GenericSignatureFromMatches(table, []types.Ident{1, 2, 3, 4, 5},
		false /* disableNibbleMasking */, 4)
	require.NoError(t, err)

	require.Len(t, raw.Pieces, 5)
	for _, piece := range raw.Pieces {
		assert.Equal(t, []byte("XX0000"), piece.Bytes)
		// Four masked bytes make eight masked nibbles.
		assert.Equal(t, []int{4, 5, 6, 7, 8, 9, 10, 11}, piece.MaskedNibbles)
		// The two leading literal bytes are below the minimum piece
		// length, so the run is penalized.
		assert.Equal(t, uint32(0), piece.Weight)
	}
}

func TestGenericSignatureWithoutMasking(t *testing.T) {
	table := newGenericSignatureTable()
	raw, err := GenericSignatureFromMatches(table, []types.Ident{1, 2, 3, 4, 5},
		true /* disableNibbleMasking */, 4)
	require.NoError(t, err)

	require.Len(t, raw.Pieces, 5)
	for _, piece := range raw.Pieces {
		assert.Equal(t, []byte("XX0000"), piece.Bytes)
		assert.Empty(t, piece.MaskedNibbles)
		assert.Equal(t, uint32(testBasicBlockWeight), piece.Weight)
	}
}

func TestGenericSignatureRecordsOrigin(t *testing.T) {
	table := newGenericSignatureTable()
	raw, err := GenericSignatureFromMatches(table, []types.Ident{1},
		true /* disableNibbleMasking */, 4)
	require.NoError(t, err)

	require.Len(t, raw.Pieces, 1)
	require.NotEmpty(t, raw.Pieces[0].OriginDisassembly)
	assert.Equal(t, "00001000: push 0x30303030", raw.Pieces[0].OriginDisassembly[0])
}

func TestGenericSignatureErrors(t *testing.T) {
	table := newGenericSignatureTable()

	_, err := GenericSignatureFromMatches(table, nil, false, 4)
	assert.ErrorIs(t, err, types.ErrInvalidArgument)

	_, err = GenericSignatureFromMatches(table, []types.Ident{1}, false, 0)
	assert.ErrorIs(t, err, types.ErrInvalidArgument)

	// An instruction without raw bytes means the metadata load was
	// incomplete.
	bare := matchchain.NewTable(2)
	match := types.Match{Address: 0x1000, AddressInNext: 0x2000}
	function := bare[0].InsertFunctionMatch(match)
	bb := bare[0].InsertBasicBlockMatch(function, match)
	bare[0].InsertInstructionMatch(bb, match)
	bare[1].FinishChain(bare[0])
	matchchain.PropagateIDs(bare)
	matchchain.BuildIDIndices(bare)
	_, err = GenericSignatureFromMatches(bare, []types.Ident{1}, false, 4)
	assert.ErrorIs(t, err, types.ErrInternal)
}

func TestGenericSignatureIdempotent(t *testing.T) {
	table := newGenericSignatureTable()
	first, err := GenericSignatureFromMatches(table, []types.Ident{1, 2, 3}, false, 4)
	require.NoError(t, err)
	second, err := GenericSignatureFromMatches(table, []types.Ident{1, 2, 3}, false, 4)
	require.NoError(t, err)
	assert.Equal(t, first, second)
}
