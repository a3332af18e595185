package seqalign

// LCS returns one longest common subsequence of x and y, preserving the
// order of occurrence in x. The implementation follows Hirschberg's
// algorithm: equal prefixes and suffixes are stripped, then x is split at
// its midpoint and a single row of LCS lengths is computed forward over
// the left half and backward over the right half to find the optimal
// split of y. Runs in O(len(x)*len(y)) time and O(max(len(x), len(y)))
// space.
//
// Ties within a forward sweep prefer extending the longer prefix of x, so
// the result is the x-earliest LCS and stable across calls.
func LCS[T any](x, y []T, eq func(T, T) bool) []T {
	result := make([]T, 0, min(len(x), len(y)))
	lcsRecurse(x, y, eq, &result)
	return result
}

// computeSingleLCSRow computes the last row of the LCS length matrix of
// x against y using two rolling rows.
func computeSingleLCSRow[T any](x, y []T, eq func(T, T) bool) []int32 {
	row := make([]int32, len(y)+1)
	prev := make([]int32, len(y)+1)
	for i := range x {
		copy(prev, row)
		for j := range y {
			if eq(x[i], y[j]) {
				row[j+1] = prev[j] + 1
			} else {
				row[j+1] = max(row[j], prev[j+1])
			}
		}
	}
	return row
}

func reversed[T any](s []T) []T {
	r := make([]T, len(s))
	for i := range s {
		r[len(s)-1-i] = s[i]
	}
	return r
}

func lcsRecurse[T any](x, y []T, eq func(T, T) bool, result *[]T) {
	// Common prefixes are part of any LCS; emitting them up front keeps
	// the length rows small.
	for len(x) > 0 && len(y) > 0 && eq(x[0], y[0]) {
		*result = append(*result, x[0])
		x = x[1:]
		y = y[1:]
	}
	if len(x) == 0 || len(y) == 0 {
		return
	}

	// Same for common suffixes, which are appended after the recursion.
	suffix := 0
	for len(x)-suffix > 0 && len(y)-suffix > 0 &&
		eq(x[len(x)-1-suffix], y[len(y)-1-suffix]) {
		suffix++
	}
	tail := x[len(x)-suffix:]
	x = x[:len(x)-suffix]
	y = y[:len(y)-suffix]

	switch {
	case len(x) == 1:
		// Recursion end: a single element either occurs in y or not.
		for j := range y {
			if eq(y[j], x[0]) {
				*result = append(*result, x[0])
				break
			}
		}
	case len(x) > 1:
		mid := len(x) / 2
		llLeft := computeSingleLCSRow(x[:mid], y, eq)
		llRight := computeSingleLCSRow(reversed(x[mid:]), reversed(y), eq)

		// Divide: pick the split point of y that maximizes the combined
		// LCS length. The first maximum wins.
		llMax := int32(-1)
		pivot := 0
		for i := 0; i <= len(y); i++ {
			llCur := llLeft[i] + llRight[len(y)-i]
			if llMax < llCur {
				llMax = llCur
				pivot = i
			}
		}

		lcsRecurse(x[:mid], y[:pivot], eq, result)
		lcsRecurse(x[mid:], y[pivot:], eq, result)
	}

	*result = append(*result, tail...)
}
