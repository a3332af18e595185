package outputformats

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"binsig/types"
)

func TestClamAVFormatEmpty(t *testing.T) {
	formatter, err := NewFormatter(ClamAV)
	require.NoError(t, err)

	signature := makeSignature()
	signature.Definition.DetectionName = "test"
	assert.Error(t, formatter.Format(signature))
}

func TestClamAVFormat(t *testing.T) {
	formatter, err := NewFormatter(ClamAV)
	require.NoError(t, err)

	signature := makeSignature("1234", "5678")
	signature.Definition.DetectionName = "test_malware"
	signature.Definition.MinPieceLength = 2
	assert.NoError(t, formatter.Format(signature))
	assert.Equal(t, "test_malware:0:*:31323334*35363738", signature.ClamAV)
}

func TestClamAVFormatDropsShortPieces(t *testing.T) {
	formatter, err := NewFormatter(ClamAV)
	require.NoError(t, err)

	signature := makeSignature("1234", "0", "5678")
	signature.Definition.DetectionName = "test"
	signature.Definition.MinPieceLength = 2
	assert.NoError(t, formatter.Format(signature))
	assert.Equal(t, "test:0:*:31323334*35363738", signature.ClamAV)
}

func TestClamAVFormatMaskedNibbles(t *testing.T) {
	formatter, err := NewFormatter(ClamAV)
	require.NoError(t, err)

	signature := makeSignature("XX0000")
	signature.Raw.Pieces[0].MaskedNibbles = []int{4, 5, 6, 7, 8, 9, 10, 11}
	signature.Definition.DetectionName = "test"
	signature.Definition.MinPieceLength = 2
	assert.NoError(t, formatter.Format(signature))
	assert.Equal(t, "test:0:*:5858????????", signature.ClamAV)
}

func TestClamAVFormatTruncatesAtLineLimit(t *testing.T) {
	formatter, err := NewFormatter(ClamAV)
	require.NoError(t, err)

	// Two pieces whose hex encoding exceeds the 8191 character line
	// budget; the second one must be cut off.
	signature := makeSignature(strings.Repeat("A", 4000), strings.Repeat("B", 4000))
	signature.Definition.DetectionName = "test"
	signature.Definition.MinPieceLength = 2
	assert.NoError(t, formatter.Format(signature))
	assert.LessOrEqual(t, len(signature.ClamAV), 8191)
	assert.True(t, strings.HasPrefix(signature.ClamAV, "test:0:*:"))
}

func TestClamAVFormatDatabase(t *testing.T) {
	formatter, err := NewFormatter(ClamAV)
	require.NoError(t, err)

	one := makeSignature("1234")
	one.Definition.DetectionName = "one"
	one.Definition.MinPieceLength = 2
	two := makeSignature("5678")
	two.Definition.DetectionName = "two"
	two.Definition.MinPieceLength = 2

	database, err := formatter.FormatDatabase([]*types.Signature{one, two})
	require.NoError(t, err)
	assert.Equal(t, "one:0:*:31323334\ntwo:0:*:35363738\n", database)
}
