package outputformats

import (
	"fmt"
	"math/rand"
	"sort"
	"strconv"

	"github.com/cespare/xxhash/v2"

	"binsig/types"
)

// variantSeedMask keeps a zero variant from producing a trivial seed;
// the digit tail is fixed random material. Both are part of the wire
// contract: changing either changes every RANDOM-trimmed signature.
const (
	variantSeedMask = 0x1599C98B
	variantSeedTail = "369ea79bcded92881284"
)

// trimLast keeps the longest prefix of pieceIndices whose total byte
// count fits maxLength.
func trimLast(maxLength int64, raw *types.RawSignature, pieceIndices []int) []int {
	currentLength := int64(0)
	j := 0
	for ; j < len(pieceIndices); j++ {
		newLength := currentLength + int64(len(raw.Pieces[pieceIndices[j]].Bytes))
		if newLength > maxLength {
			break
		}
		currentLength = newLength
	}
	return pieceIndices[:j]
}

// trimLowWeight greedily admits pieces in order of descending weight
// (ties prefer longer pieces) while they fit the budget.
func trimLowWeight(maxLength int64, raw *types.RawSignature, pieceIndices []int) []int {
	sort.SliceStable(pieceIndices, func(i, j int) bool {
		a, b := raw.Pieces[pieceIndices[i]], raw.Pieces[pieceIndices[j]]
		if a.Weight != b.Weight {
			return a.Weight > b.Weight
		}
		return len(a.Bytes) > len(b.Bytes)
	})

	keep := pieceIndices[:0]
	currentLength := int64(0)
	for _, i := range pieceIndices {
		newLength := currentLength + int64(len(raw.Pieces[i].Bytes))
		if newLength > maxLength {
			// Don't give up yet, shorter pieces may follow.
			continue
		}
		keep = append(keep, i)
		currentLength = newLength
	}
	return keep
}

// RelevantSubset applies the definition's trimming strategy to the
// signature's raw pieces and returns the selected subset in spatial
// order. engineMinPieceLength is merged into the definition's minimum
// by taking the maximum.
func RelevantSubset(signature *types.Signature, engineMinPieceLength int) (*types.RawSignature, error) {
	raw := &signature.Raw
	definition := &signature.Definition

	minPieceLen := max(engineMinPieceLength, definition.MinPieceLength)
	algorithm := definition.TrimAlgorithm
	weighted := algorithm == types.TrimWeighted || algorithm == types.TrimWeightedGreedy

	pieceIndices := make([]int, 0, len(raw.Pieces))
	for i, piece := range raw.Pieces {
		if weighted && piece.Weight == 0 {
			continue
		}
		if len(piece.Bytes) >= minPieceLen {
			pieceIndices = append(pieceIndices, i)
		}
	}

	maxLength := definition.TrimLength
	if maxLength < 0 && algorithm != types.TrimNone {
		return nil, fmt.Errorf("%w: unbounded signature trimming requested", types.ErrInvalidArgument)
	}
	switch algorithm {
	case types.TrimNone:
	case types.TrimLast:
		pieceIndices = trimLast(maxLength, raw, pieceIndices)
	case types.TrimFirst:
		for i, j := 0, len(pieceIndices)-1; i < j; i, j = i+1, j-1 {
			pieceIndices[i], pieceIndices[j] = pieceIndices[j], pieceIndices[i]
		}
		pieceIndices = trimLast(maxLength, raw, pieceIndices)
	case types.TrimRandom:
		// Mix the signature variant into the PRNG's seed so distinct
		// variants of one signature shuffle differently but every run
		// of the same variant is byte-identical.
		seed := strconv.Itoa(int(definition.Variant^variantSeedMask)) + variantSeedTail
		rng := rand.New(rand.NewSource(int64(xxhash.Sum64String(seed))))
		rng.Shuffle(len(pieceIndices), func(i, j int) {
			pieceIndices[i], pieceIndices[j] = pieceIndices[j], pieceIndices[i]
		})
		pieceIndices = trimLast(maxLength, raw, pieceIndices)
	case types.TrimWeightedGreedy:
		pieceIndices = trimLowWeight(maxLength, raw, pieceIndices)
	case types.TrimWeighted:
		// Knapsack selection needs an ILP solver and a function corpus
		// for meaningful weights.
		return nil, fmt.Errorf("%w: WEIGHTED trimming is not available, use WEIGHTED_GREEDY",
			types.ErrUnimplemented)
	default:
		return nil, fmt.Errorf("%w: unknown signature trimming algorithm", types.ErrInvalidArgument)
	}

	if len(pieceIndices) == 0 {
		return nil, fmt.Errorf("%w: no byte piece to create signature", types.ErrInvalidArgument)
	}

	// Restore the signature's spatial order.
	sort.Ints(pieceIndices)
	subset := &types.RawSignature{Pieces: make([]*types.Piece, 0, len(pieceIndices))}
	for _, i := range pieceIndices {
		subset.Pieces = append(subset.Pieces, raw.Pieces[i])
	}
	return subset, nil
}
