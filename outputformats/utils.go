package outputformats

import (
	"encoding/hex"
	"strings"

	"binsig/types"
)

const yaraMaxIdentLen = 128

// makeValidIdentifier shortens an identifier to Yara's limit and
// replaces characters Yara rejects.
func makeValidIdentifier(identifier string) string {
	if len(identifier) > yaraMaxIdentLen {
		identifier = identifier[:yaraMaxIdentLen]
	}
	return strings.ReplaceAll(identifier, "-", "_")
}

// appendMaskedHex appends the hex encoding of the first maxCopyBytes of
// piece.Bytes to data, replacing masked nibbles with '?'.
func appendMaskedHex(data []byte, piece *types.Piece, maxCopyBytes int) []byte {
	pieceBytes := piece.Bytes
	if len(pieceBytes) > maxCopyBytes {
		pieceBytes = pieceBytes[:maxCopyBytes]
	}
	startMask := len(data)
	data = append(data, hex.EncodeToString(pieceBytes)...)
	for _, nibble := range piece.MaskedNibbles {
		if nibble/2 < len(pieceBytes) {
			data[startMask+nibble] = '?'
		}
	}
	return data
}

// pieceCopyLen bounds a piece's literal bytes to maxCopyBytes.
func pieceCopyLen(piece *types.Piece, maxCopyBytes int) int {
	if len(piece.Bytes) > maxCopyBytes {
		return maxCopyBytes
	}
	return len(piece.Bytes)
}
