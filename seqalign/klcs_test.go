package seqalign

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPrune(t *testing.T) {
	tests := []struct {
		name string
		seq  string
		keep string
		want string
	}{
		{"empty sequence and alphabet", "", "", ""},
		{"empty alphabet", "stringthatgetspruned", "", ""},
		{"empty sequence", "", "abcdefgh", ""},
		{"alphabet covers sequence", "notmodified", "defimnot", "notmodified"},
		{"middle removed", "abcdGETSREMOVEDefgh", "abcdefgh", "abcdefgh"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Prune([]byte(tt.seq), []byte(tt.keep), Equal[byte])
			assert.Equal(t, tt.want, string(got))
		})
	}
}

func commonString(t *testing.T, seqs ...string) string {
	t.Helper()
	byteSeqs := make([][]byte, len(seqs))
	for i, s := range seqs {
		byteSeqs[i] = []byte(s)
	}
	result, err := CommonSubsequence(byteSeqs, Equal[byte])
	require.NoError(t, err)
	return string(result)
}

func TestCommonSubsequenceTwoStrings(t *testing.T) {
	assert.Empty(t, commonString(t, "", ""))
	assert.Empty(t, commonString(t, "", "somestr"))
	assert.Empty(t, commonString(t, "somestr", ""))
	assert.Equal(t, "samestr", commonString(t, "samestr", "samestr"))
	assert.Equal(t, "common", commonString(t, "ABCDcommonEFGH", "IJKLcommonMNOP"))
	assert.Equal(t, "common", commonString(t, "ABcoCDmmEFonGH", "IJKLcoMNmmOPonQRSTUV"))
}

func TestCommonSubsequenceManyStrings(t *testing.T) {
	assert.Empty(t, commonString(t, "", "", "", "", "", "", "", "", "", ""))

	same := make([]string, 10)
	for i := range same {
		same[i] = "samestr"
	}
	assert.Equal(t, "samestr", commonString(t, same...))

	assert.Equal(t, "sameprefix", commonString(t,
		"sameprefixABC", "sameprefixDEF", "sameprefixGHI", "sameprefixJKL",
		"sameprefixMNO", "sameprefixPQR", "sameprefixSTU", "sameprefixVWX",
		"sameprefixZYA", "sameprefixBCD"))

	assert.Equal(t, "common", commonString(t,
		"AcommonB", "BCcommonDE", "DEFcommonGHI", "GHIJcommonKLMN",
		"KLMNOcommonPQRST", "PQRSTUcommonVWXYZA", "VWXYZABcommonCDEFGHI",
		"CDEFGHIJcommonKLMNOPQR", "KLMNOPQRScommonTUVWXYZAB",
		"TUVWXYZABCcommonDEFGHIJKLM"))

	assert.Equal(t, "common", commonString(t,
		"ABCcommonDEF", "DEFccoommmmoonnGHI", "GHIcccooommmmmmooonnnJKL",
		"JKLccccoooommmmmmmmoooonnnnMNO"))

	// Exercises the removal set traversal with near-duplicates.
	assert.Equal(t, "abcd", commonString(t, "abcdef", "fabcde", "efabcd"))
}

func TestCommonSubsequenceInvalidInput(t *testing.T) {
	_, err := CommonSubsequence([][]byte{[]byte("one")}, Equal[byte])
	assert.Error(t, err)
}

func TestCommonSubsequenceIdempotentOnCopies(t *testing.T) {
	// k-LCS over k copies of one sequence is that sequence.
	s := []int{7, 1, 3, 3, 9, 2}
	got, err := CommonSubsequence([][]int{s, s, s, s}, Equal[int])
	require.NoError(t, err)
	assert.Equal(t, s, got)
}

func TestCommonSubsequencePermutedTable(t *testing.T) {
	// Rotated rows: the k-LCS of
	//  0 1 2 3 4 5 6 7 8 9
	//  1 2 3 4 5 6 7 8 9 0
	//  2 3 4 5 6 7 8 9 0 1
	// is 2 3 4 5 6 7 8 9.
	got, err := CommonSubsequence([][]int{
		{0, 1, 2, 3, 4, 5, 6, 7, 8, 9},
		{1, 2, 3, 4, 5, 6, 7, 8, 9, 0},
		{2, 3, 4, 5, 6, 7, 8, 9, 0, 1},
	}, Equal[int])
	require.NoError(t, err)
	assert.Equal(t, []int{2, 3, 4, 5, 6, 7, 8, 9}, got)
}

func TestCommonSubsequencePermutedTableLarge(t *testing.T) {
	const numCols, numFunc = 100, 1000

	seqs := make([][]int, numCols)
	for i := range seqs {
		seqs[i] = make([]int, numFunc)
		for j := range seqs[i] {
			seqs[i][j] = (j + i) % numFunc
		}
	}

	result, err := CommonSubsequence(seqs, Equal[int])
	require.NoError(t, err)
	require.Len(t, result, numFunc-numCols+1)
	assert.Equal(t, numCols-1, result[0])
	assert.Equal(t, numFunc-1, result[len(result)-1])
}

func TestCommonSubsequenceSingleCandidate(t *testing.T) {
	const numCols, numFunc = 10, 100

	seqs := make([][]int, numCols)
	seqs[0] = []int{1}
	for i := 1; i < numCols; i++ {
		for j := 0; j < numFunc; j++ {
			v := 0
			if i == j {
				v = 1
			}
			seqs[i] = append(seqs[i], v)
		}
	}

	result, err := CommonSubsequence(seqs, Equal[int])
	require.NoError(t, err)
	assert.Len(t, result, 1)
}
