// Package diffreader reads BinDiff result files. A result file is a
// SQLite database holding the matched functions, basic blocks and
// instructions of one binary pair; the reader delivers them as three
// ordered match streams through a visitor.
package diffreader

import (
	"database/sql"
	"fmt"
	"path/filepath"

	_ "github.com/mattn/go-sqlite3"

	"binsig/types"
)

// FileMetadata describes one side of a diff.
type FileMetadata struct {
	Filename         string
	OriginalFilename string
	Hash             string
}

// Visitor receives match pairs in join order: a function match, then the
// basic block matches of that function, each followed by its instruction
// matches. Entity boundaries are detected by id-column changes in the
// underlying join.
type Visitor interface {
	OnFunctionMatch(match types.Match)
	OnBasicBlockMatch(match types.Match)
	OnInstructionMatch(match types.Match)
}

const matchQuery = `
SELECT
  f.id, f.address1, f.address2,
  b.id, b.address1, b.address2,
  i.address1, i.address2
FROM
  "function" AS f,
  "basicblock" AS b,
  "instruction" AS i
WHERE
  f.id = b.functionid AND
  b.id = i.basicblockid
ORDER BY
  f.id, f.address1, f.address2,
  b.id, b.address1, b.address2,
  i.address1, i.address2`

// Read parses the BinDiff result at path, streaming all matches into
// visitor. It returns the metadata of both diffed files.
func Read(path string, visitor Visitor) (first, second FileMetadata, err error) {
	if path == "" {
		return first, second, fmt.Errorf("%w: empty BinDiff filename", types.ErrInvalidArgument)
	}

	dsn := fmt.Sprintf("file:%s?mode=ro", filepath.ToSlash(path))
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return first, second, fmt.Errorf("%w: open failed for %s: %v", types.ErrFailedPrecondition, path, err)
	}
	defer db.Close()

	var file1ID, file2ID int64
	if err := db.QueryRow(`SELECT file1, file2 FROM "metadata"`).Scan(&file1ID, &file2ID); err != nil {
		return first, second, fmt.Errorf("%w: reading diff metadata from %s: %v", types.ErrInternal, path, err)
	}

	if first, err = readFileMetadata(db, file1ID); err != nil {
		return first, second, fmt.Errorf("%w: reading file metadata from %s: %v", types.ErrInternal, path, err)
	}
	if second, err = readFileMetadata(db, file2ID); err != nil {
		return first, second, fmt.Errorf("%w: reading file metadata from %s: %v", types.ErrInternal, path, err)
	}

	rows, err := db.Query(matchQuery)
	if err != nil {
		return first, second, fmt.Errorf("%w: querying matches from %s: %v", types.ErrInternal, path, err)
	}
	defer rows.Close()

	lastFunctionID := int64(-1)
	lastBasicBlockID := int64(-1)
	for rows.Next() {
		var functionID, basicBlockID int64
		var fAddr1, fAddr2, bAddr1, bAddr2, iAddr1, iAddr2 int64
		if err := rows.Scan(&functionID, &fAddr1, &fAddr2,
			&basicBlockID, &bAddr1, &bAddr2, &iAddr1, &iAddr2); err != nil {
			return first, second, fmt.Errorf("%w: malformed match row in %s: %v", types.ErrInternal, path, err)
		}

		if functionID != lastFunctionID {
			visitor.OnFunctionMatch(types.Match{
				Address:       types.Address(fAddr1),
				AddressInNext: types.Address(fAddr2),
			})
			lastFunctionID = functionID
		}
		if basicBlockID != lastBasicBlockID {
			visitor.OnBasicBlockMatch(types.Match{
				Address:       types.Address(bAddr1),
				AddressInNext: types.Address(bAddr2),
			})
			lastBasicBlockID = basicBlockID
		}
		visitor.OnInstructionMatch(types.Match{
			Address:       types.Address(iAddr1),
			AddressInNext: types.Address(iAddr2),
		})
	}
	if err := rows.Err(); err != nil {
		return first, second, fmt.Errorf("%w: reading matches from %s: %v", types.ErrInternal, path, err)
	}
	return first, second, nil
}

func readFileMetadata(db *sql.DB, fileID int64) (FileMetadata, error) {
	var meta FileMetadata
	err := db.QueryRow(`SELECT filename, exefilename, hash FROM "file" WHERE id = ?`, fileID).
		Scan(&meta.Filename, &meta.OriginalFilename, &meta.Hash)
	return meta, err
}
