// Package sig selects signature candidates from a match-chain table and
// synthesizes the engine-independent raw signature from them.
package sig

import (
	"fmt"
	"sort"

	"binsig/matchchain"
	"binsig/seqalign"
	"binsig/types"
)

func isCandidateFunction(function *types.MatchedFunction) bool {
	return function.Type == types.FunctionNormal && len(function.BasicBlocks) > 0
}

// ComputeFunctionCandidates returns the ids of the functions that appear
// in every column in a consistent order: the k-LCS over the per-column
// id sequences of NORMAL functions with at least one basic block, taken
// in ascending address order.
func ComputeFunctionCandidates(table matchchain.Table) ([]types.Ident, error) {
	funcIDs := make([][]types.Ident, 0, len(table))
	for _, column := range table {
		var columnIDs []types.Ident
		for _, function := range column.Functions() {
			if isCandidateFunction(function) {
				columnIDs = append(columnIDs, function.Match.ID)
			}
		}
		funcIDs = append(funcIDs, columnIDs)
	}

	// Solve k-LCS on the resulting permutations to obtain a stable
	// function order.
	return seqalign.CommonSubsequence(funcIDs, seqalign.Equal[types.Ident])
}

// ComputeBasicBlockCandidates returns the ids of the basic blocks that
// appear in every column in a consistent order, drawn from the candidate
// functions. Per column, the candidate functions' basic blocks form a
// "word" that is re-sorted by address (basic block sharing and function
// overlaps can put it out of order) before the k-LCS over the id
// sequences is solved.
func ComputeBasicBlockCandidates(table matchchain.Table, funcCandidateIDs []types.Ident) ([]types.Ident, error) {
	bbIDs := make([][]types.Ident, 0, len(table))
	for _, column := range table {
		var bbWord []*types.MatchedBasicBlock
		for _, funcID := range funcCandidateIDs {
			function := column.FindFunctionByID(funcID)
			if function == nil {
				return nil, fmt.Errorf("%w: no function for candidate %d in %s",
					types.ErrInternal, funcID, column.Filename)
			}
			bbWord = append(bbWord, function.BasicBlocks...)
		}

		sort.SliceStable(bbWord, func(i, j int) bool {
			if bbWord[i].Match.Address != bbWord[j].Match.Address {
				return bbWord[i].Match.Address < bbWord[j].Match.Address
			}
			return bbWord[i].Match.ID < bbWord[j].Match.ID
		})

		var wordIDs []types.Ident
		for _, bb := range bbWord {
			if bb.Match.ID != 0 && len(bb.Instructions) > 0 {
				wordIDs = append(wordIDs, bb.Match.ID)
			}
		}
		bbIDs = append(bbIDs, wordIDs)
	}

	return seqalign.CommonSubsequence(bbIDs, seqalign.Equal[types.Ident])
}

// FilterBasicBlockOverlaps drops candidates whose instruction addresses
// do not strictly advance past all previously accepted instructions in
// every column. This removes overlapping candidates rather than
// re-optimizing the selection; the aggressive strategy is kept for
// compatibility with historical outputs.
func FilterBasicBlockOverlaps(table matchchain.Table, bbCandidateIDs []types.Ident) ([]types.Ident, error) {
	candidates := append([]types.Ident(nil), bbCandidateIDs...)
	for _, column := range table {
		lastAddr := types.Address(0)
		kept := candidates[:0]
		for _, id := range candidates {
			bb := column.FindBasicBlockByID(id)
			if bb == nil {
				return nil, fmt.Errorf("%w: no basic block for candidate %d in %s",
					types.ErrInternal, id, column.Filename)
			}

			skip := false
			for _, instr := range bb.Instructions {
				if instr.Match.Address <= lastAddr {
					skip = true
					break
				}
				lastAddr = instr.Match.Address
			}
			if !skip {
				kept = append(kept, id)
			}
		}
		candidates = kept
	}
	return candidates, nil
}
