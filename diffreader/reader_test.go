package diffreader

import (
	"database/sql"
	"path/filepath"
	"testing"

	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"binsig/types"
)

type collectingVisitor struct {
	functions    []types.Match
	basicBlocks  []types.Match
	instructions []types.Match
}

func (v *collectingVisitor) OnFunctionMatch(m types.Match)    { v.functions = append(v.functions, m) }
func (v *collectingVisitor) OnBasicBlockMatch(m types.Match)  { v.basicBlocks = append(v.basicBlocks, m) }
func (v *collectingVisitor) OnInstructionMatch(m types.Match) { v.instructions = append(v.instructions, m) }

// createTestDiff writes a minimal BinDiff result database.
func createTestDiff(t *testing.T, path, file1, file2 string) {
	t.Helper()
	db, err := sql.Open("sqlite3", path)
	require.NoError(t, err)
	defer db.Close()

	_, err = db.Exec(`
	CREATE TABLE metadata (file1 INTEGER, file2 INTEGER);
	CREATE TABLE file (id INTEGER PRIMARY KEY, filename TEXT, exefilename TEXT, hash TEXT);
	CREATE TABLE function (id INTEGER PRIMARY KEY, address1 INTEGER, address2 INTEGER);
	CREATE TABLE basicblock (id INTEGER PRIMARY KEY, functionid INTEGER, address1 INTEGER, address2 INTEGER);
	CREATE TABLE instruction (basicblockid INTEGER, address1 INTEGER, address2 INTEGER);
	`)
	require.NoError(t, err)

	_, err = db.Exec(`INSERT INTO metadata VALUES (1, 2)`)
	require.NoError(t, err)
	_, err = db.Exec(`INSERT INTO file VALUES (1, ?, ?, 'hash1'), (2, ?, ?, 'hash2')`,
		file1, file1+".exe", file2, file2+".exe")
	require.NoError(t, err)

	_, err = db.Exec(`
	INSERT INTO function VALUES (1, 0x1000, 0x1100), (2, 0x2000, 0x2100);
	INSERT INTO basicblock VALUES (1, 1, 0x1000, 0x1100), (2, 2, 0x2000, 0x2100);
	INSERT INTO instruction VALUES
		(1, 0x1000, 0x1100), (1, 0x1004, 0x1104),
		(2, 0x2000, 0x2100), (2, 0x2004, 0x2104);
	`)
	require.NoError(t, err)
}

func TestReadDeliversOrderedStreams(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sample1_vs_sample2.BinDiff")
	createTestDiff(t, path, "sample1", "sample2")

	var visitor collectingVisitor
	first, second, err := Read(path, &visitor)
	require.NoError(t, err)

	assert.Equal(t, "sample1", first.Filename)
	assert.Equal(t, "sample1.exe", first.OriginalFilename)
	assert.Equal(t, "hash1", first.Hash)
	assert.Equal(t, "sample2", second.Filename)

	assert.Equal(t, []types.Match{
		{Address: 0x1000, AddressInNext: 0x1100},
		{Address: 0x2000, AddressInNext: 0x2100},
	}, visitor.functions)
	assert.Equal(t, []types.Match{
		{Address: 0x1000, AddressInNext: 0x1100},
		{Address: 0x2000, AddressInNext: 0x2100},
	}, visitor.basicBlocks)
	assert.Len(t, visitor.instructions, 4)
	assert.Equal(t, types.Match{Address: 0x1004, AddressInNext: 0x1104}, visitor.instructions[1])
}

func TestReadEmptyPath(t *testing.T) {
	var visitor collectingVisitor
	_, _, err := Read("", &visitor)
	assert.ErrorIs(t, err, types.ErrInvalidArgument)
}

func TestReadMissingFile(t *testing.T) {
	var visitor collectingVisitor
	_, _, err := Read(filepath.Join(t.TempDir(), "nonexistent.BinDiff"), &visitor)
	assert.Error(t, err)
}
