package matchchain

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"binsig/types"
)

func writeExport(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "sample.BinExport")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func newIngestColumn() *Column {
	column := NewColumn()
	match := types.Match{Address: 0x1000, AddressInNext: 0x2000}
	function := column.InsertFunctionMatch(match)
	bb := column.InsertBasicBlockMatch(function, match)
	column.InsertInstructionMatch(bb, match)
	return column
}

func TestAddFunctionData(t *testing.T) {
	column := newIngestColumn()
	path := writeExport(t, `{
		"sha256": "feed",
		"functions": [
			{"address": 4096, "type": "THUNK"},
			{"address": 65535, "type": "NORMAL"}
		],
		"instructions": [
			{"basic_block": 4096, "address": 4096, "bytes": "c3", "disassembly": "ret"},
			{"basic_block": 8, "address": 8, "bytes": "90", "disassembly": "nop"}
		]
	}`)

	require.NoError(t, AddFunctionData(path, column))
	assert.Equal(t, "feed", column.SHA256)
	assert.Equal(t, types.FunctionThunk, column.FindFunctionByAddress(0x1000).Type)
	assert.Equal(t, []byte{0xc3}, column.FindInstructionByAddress(0x1000).RawBytes)
	// Unmatched addresses are silently ignored.
	assert.Nil(t, column.FindFunctionByAddress(0xffff))
	assert.Nil(t, column.FindInstructionByAddress(8))
}

func TestAddFunctionDataConflictingHash(t *testing.T) {
	column := newIngestColumn()
	column.SHA256 = "other"
	path := writeExport(t, `{
		"sha256": "feed",
		"functions": [{"address": 4096, "type": "NORMAL"}],
		"instructions": []
	}`)

	err := AddFunctionData(path, column)
	assert.ErrorIs(t, err, types.ErrFailedPrecondition)
}

func TestAddFunctionDataConflictingBytes(t *testing.T) {
	column := newIngestColumn()
	column.FindInstructionByAddress(0x1000).RawBytes = []byte{0x90}
	path := writeExport(t, `{
		"sha256": "feed",
		"functions": [],
		"instructions": [
			{"basic_block": 4096, "address": 4096, "bytes": "c3", "disassembly": "ret"}
		]
	}`)

	err := AddFunctionData(path, column)
	assert.ErrorIs(t, err, types.ErrInternal)
}

func TestInserterSkipsChildrenOfFilteredFunctions(t *testing.T) {
	column := NewColumn()
	column.FunctionFilter = types.FilterExclude
	column.AddFilteredFunction(0x1000)

	inserter := NewInserter(column)
	inserter.OnFunctionMatch(types.Match{Address: 0x2000, AddressInNext: 0x2100})
	inserter.OnBasicBlockMatch(types.Match{Address: 0x2000, AddressInNext: 0x2100})
	inserter.OnFunctionMatch(types.Match{Address: 0x1000, AddressInNext: 0x1100})
	inserter.OnBasicBlockMatch(types.Match{Address: 0x1010, AddressInNext: 0x1110})
	inserter.OnInstructionMatch(types.Match{Address: 0x1010, AddressInNext: 0x1110})

	assert.NotNil(t, column.FindFunctionByAddress(0x2000))
	assert.Nil(t, column.FindFunctionByAddress(0x1000))
	// Children of the filtered function must not leak into the previous
	// function's basic block.
	assert.Nil(t, column.FindBasicBlockByAddress(0x1010))
	assert.Nil(t, column.FindInstructionByAddress(0x1010))
}
