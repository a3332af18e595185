package seqalign

import (
	"fmt"

	"binsig/types"
)

// WildcardFunc produces the element that represents a wildcard with the
// given gap bounds. Downstream signature writers currently ignore the
// bounds and emit unbounded wildcards.
type WildcardFunc[T any] func(minGap, maxGap int) T

// RegexFromSubsequence builds a regex-like stream that matches cs in
// every one of the originating sequences: the elements of cs in order,
// with a wildcard inserted between two consecutive cs elements whenever
// at least one sequence steps non-continuously there. The gap bounds
// passed to wildcard are the extremes, across sequences, of the number
// of skipped elements.
//
// Every sequence must contain cs as a subsequence; a sequence that does
// not is an internal error.
func RegexFromSubsequence[T any](cs []T, sequences [][]T, eq func(T, T) bool, wildcard WildcardFunc[T]) ([]T, error) {
	cursors := make([]int, len(sequences))
	result := make([]T, 0, len(cs))

	insertWildcard := false
	deferWildcard := false
	for k := range cs {
		// Delay insertion until the gap bounds of this step are known.
		if insertWildcard {
			deferWildcard = true
			insertWildcard = false
		}
		minGap := int(^uint(0) >> 1)
		maxGap := 0
		for s, seq := range sequences {
			start := cursors[s]
			pos := start
			for pos < len(seq) && !eq(seq[pos], cs[k]) {
				pos++
			}
			if pos == len(seq) {
				return nil, fmt.Errorf(
					"%w: common subsequence element %d not found in sequence %d",
					types.ErrInternal, k, s)
			}
			cursors[s] = pos + 1

			skipped := pos - start
			minGap = min(minGap, skipped)
			maxGap = max(maxGap, skipped)

			// A non-continuous step in any sequence forces a wildcard
			// before the next cs element.
			if k+1 < len(cs) &&
				(cursors[s] >= len(seq) || !eq(seq[cursors[s]], cs[k+1])) {
				insertWildcard = true
			}
		}
		if deferWildcard {
			result = append(result, wildcard(minGap, maxGap))
			deferWildcard = false
		}
		result = append(result, cs[k])
	}
	return result, nil
}
