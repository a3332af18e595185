package seqalign

import (
	"fmt"
	"sort"

	"binsig/types"
)

// Prune returns seq with every element dropped that does not occur in
// keep. The filter is stable: surviving elements keep their relative
// order. For a fixed alphabet this runs in linear time; the worst case
// for unbounded alphabets is O(len(seq)*len(keep)).
func Prune[T any](seq, keep []T, eq func(T, T) bool) []T {
	result := seq[:0]
	for _, e := range seq {
		for _, k := range keep {
			if eq(e, k) {
				result = append(result, e)
				break
			}
		}
	}
	return result
}

// CommonSubsequence computes a common subsequence of two or more
// sequences. If the inputs are permutations of a common multiset the
// result is the k-longest common subsequence; otherwise it is a common
// subsequence, not necessarily the longest.
//
// The fold works on pairwise Hamming distances: duplicate sequences are
// dropped, the two least similar sequences are replaced by their 2-LCS,
// and all survivors are pruned to the elements of that LCS, shrinking
// the problem until the plain two-sequence case remains. Worst case
// O(n^2 + k*n) time and O(n^2) space for k sequences of maximum
// length n.
func CommonSubsequence[T any](sequences [][]T, eq func(T, T) bool) ([]T, error) {
	if len(sequences) < 2 {
		return nil, fmt.Errorf("%w: need at least two sequences", types.ErrInvalidArgument)
	}

	subSeqs := make([][]T, len(sequences))
	for i, seq := range sequences {
		subSeqs[i] = append([]T(nil), seq...)
	}

	for len(subSeqs) > 2 {
		// Find the pair with the greatest Hamming distance and collect
		// duplicates for removal. The first maximal pair in (i, j<i)
		// visit order wins ties.
		maxDist := 0
		pairI, pairJ := 0, 0
		removals := make(map[int]struct{})
		for i := range subSeqs {
			for j := 0; j < i; j++ {
				dist := Hamming(subSeqs[i], subSeqs[j], eq)
				if dist == 0 {
					removals[i] = struct{}{}
				} else if dist > maxDist {
					maxDist = dist
					pairI, pairJ = i, j
				}
			}
		}

		if len(removals) == len(subSeqs)-1 {
			// All sequences are identical.
			return subSeqs[0], nil
		}

		maxDistLCS := LCS(subSeqs[pairJ], subSeqs[pairI], eq)

		// The folded pair is replaced by its LCS, which is appended back
		// below.
		removals[pairI] = struct{}{}
		removals[pairJ] = struct{}{}
		indices := make([]int, 0, len(removals))
		for i := range removals {
			indices = append(indices, i)
		}
		sort.Sort(sort.Reverse(sort.IntSlice(indices)))
		for _, i := range indices {
			subSeqs = append(subSeqs[:i], subSeqs[i+1:]...)
		}

		// Elements missing from the LCS cannot be part of a common
		// subsequence of all inputs.
		for i := range subSeqs {
			subSeqs[i] = Prune(subSeqs[i], maxDistLCS, eq)
		}

		subSeqs = append(subSeqs, maxDistLCS)
	}

	if len(subSeqs) == 1 {
		return subSeqs[0], nil
	}
	return LCS(subSeqs[0], subSeqs[1], eq), nil
}
