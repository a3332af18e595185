package sig

import (
	"bytes"
	"encoding/binary"
	"fmt"

	"binsig/matchchain"
	"binsig/seqalign"
	"binsig/types"
)

type byteKind int

const (
	regularByte byteKind = iota
	wildcard
	singleWildcard
)

// byteWithExtra is an instruction byte annotated for signature
// synthesis: regular bytes become signature literals, wildcards separate
// pieces, and single wildcards mark bytes whose hex nibbles get masked.
// The weight keeps the association with basic block weights used for
// weighted trimming; the origin keeps the association with the
// disassembly.
type byteWithExtra struct {
	value  byte
	kind   byteKind
	weight uint32
	origin *types.MatchedInstruction
}

// byteExtraEq intentionally ignores weight and origin.
func byteExtraEq(a, b byteWithExtra) bool {
	return a.value == b.value && a.kind == b.kind
}

var wildcardByte = byteWithExtra{kind: wildcard}

// addInstructionBytes appends instr's bytes to seq. With masking
// enabled, the last occurrence of each recognized 32-bit immediate's
// little-endian encoding within the instruction bytes is emitted as four
// single-wildcard bytes instead.
func addInstructionBytes(bb *types.MatchedBasicBlock, instr *types.MatchedInstruction, disableNibbleMasking bool, seq []byteWithExtra) []byteWithExtra {
	immediatePos := make(map[int]struct{})
	if !disableNibbleMasking {
		var encoded [4]byte
		for _, immediate := range instr.Immediates {
			if immediate.Width != types.WidthDWord {
				continue
			}
			binary.LittleEndian.PutUint32(encoded[:], uint32(immediate.Value))
			if found := bytes.LastIndex(instr.RawBytes, encoded[:]); found >= 0 {
				immediatePos[found] = struct{}{}
			}
		}
	}

	for i := 0; i < len(instr.RawBytes); {
		if _, masked := immediatePos[i]; !masked {
			seq = append(seq, byteWithExtra{instr.RawBytes[i], regularByte, bb.Weight, instr})
			i++
			continue
		}
		for j := 0; j < 4; j++ {
			seq = append(seq, byteWithExtra{instr.RawBytes[i], singleWildcard, bb.Weight, instr})
			i++
		}
	}
	return seq
}

// penalizeShortAtoms zeroes the weight of every regular-byte run shorter
// than minPieceLength, together with the wildcard tokens immediately
// following the run, so that weight-aware trimming deprioritizes them.
func penalizeShortAtoms(minPieceLength int, regex []byteWithExtra) {
	for i := 0; i < len(regex); {
		runStart := i
		for i < len(regex) && regex[i].kind == regularByte {
			i++
		}
		penalize := i-runStart < minPieceLength
		if penalize {
			for j := runStart; j < i; j++ {
				regex[j].weight = 0
			}
		}
		for i < len(regex) && regex[i].kind != regularByte {
			if penalize {
				regex[i].weight = 0
			}
			i++
		}
	}
}

// toRawSignature scans the synthesized regex into literal pieces. A new
// piece starts after every wildcard; single wildcards contribute their
// byte and mask both of its nibbles, except at the start of a piece
// where they are dropped (a piece never starts with "??"). The weight of
// a piece is that of its first byte, and the originating disassembly is
// recorded whenever the origin instruction changes.
func toRawSignature(regex []byteWithExtra) *types.RawSignature {
	signature := &types.RawSignature{}
	cur := &types.Piece{}
	signature.Pieces = append(signature.Pieces, cur)
	addNewPiece := false
	weightSet := false
	var lastInstruction *types.MatchedInstruction
	for _, b := range regex {
		if b.kind == wildcard {
			// Only one new piece for runs of consecutive wildcards, or
			// we would end up with empty pieces.
			addNewPiece = len(cur.Bytes) > 0
			continue
		}
		if addNewPiece {
			cur = &types.Piece{}
			signature.Pieces = append(signature.Pieces, cur)
			weightSet = false
		}
		addNewPiece = false

		if b.kind == singleWildcard {
			if len(cur.Bytes) == 0 {
				continue
			}
			cur.MaskedNibbles = append(cur.MaskedNibbles,
				len(cur.Bytes)*2, len(cur.Bytes)*2+1)
		}
		cur.Bytes = append(cur.Bytes, b.value)
		if !weightSet {
			cur.Weight = b.weight
			weightSet = true
		}
		if b.origin != lastInstruction {
			if b.origin != nil && b.origin.Disassembly != "" {
				cur.OriginDisassembly = append(cur.OriginDisassembly,
					fmt.Sprintf("%08x: %s", b.origin.Match.Address, b.origin.Disassembly))
			}
			lastInstruction = b.origin
		}
	}
	if len(cur.Bytes) == 0 {
		// Last piece stayed empty, most likely because it started with
		// a single wildcard.
		signature.Pieces = signature.Pieces[:len(signature.Pieces)-1]
	}
	return signature
}

// GenericSignatureFromMatches aligns the instruction bytes of each
// candidate basic block across all columns and assembles the resulting
// common byte runs into a raw signature.
func GenericSignatureFromMatches(table matchchain.Table, bbCandidateIDs []types.Ident, disableNibbleMasking bool, minPieceLength int) (*types.RawSignature, error) {
	if len(bbCandidateIDs) == 0 {
		return nil, fmt.Errorf("%w: empty basic block candidate list", types.ErrInvalidArgument)
	}
	if minPieceLength < 1 {
		return nil, fmt.Errorf("%w: minimum piece length must be at least 1", types.ErrInvalidArgument)
	}

	var regex []byteWithExtra
	for _, bbID := range bbCandidateIDs {
		bbSequences := make([][]byteWithExtra, 0, len(table))
		for _, column := range table {
			bb := column.FindBasicBlockByID(bbID)
			if bb == nil {
				return nil, fmt.Errorf("%w: no basic block for candidate %d in %s",
					types.ErrInternal, bbID, column.Filename)
			}

			var bbSequence []byteWithExtra
			lastAddress := types.Address(0)
			lastSize := 0
			for _, instr := range bb.Instructions {
				// Non-contiguous instructions get an inter-instruction
				// wildcard, or the signature would contain
				// non-consecutive bytes.
				if len(bbSequence) > 0 &&
					bbSequence[len(bbSequence)-1].kind != wildcard &&
					lastAddress+types.Address(lastSize) < instr.Match.Address {
					bbSequence = append(bbSequence, wildcardByte)
				}

				if len(instr.RawBytes) == 0 {
					return nil, fmt.Errorf(
						"%w: no bytes for instruction in %s at %08x (from basic block at %08x)",
						types.ErrInternal, column.Filename, instr.Match.Address, bb.Match.Address)
				}
				bbSequence = addInstructionBytes(bb, instr, disableNibbleMasking, bbSequence)

				lastAddress = instr.Match.Address
				lastSize = len(instr.RawBytes)
			}
			bbSequences = append(bbSequences, bbSequence)
		}

		bbCS, err := seqalign.CommonSubsequence(bbSequences, byteExtraEq)
		if err != nil {
			return nil, err
		}
		perBBRegex, err := seqalign.RegexFromSubsequence(bbCS, bbSequences, byteExtraEq,
			func(minGap, maxGap int) byteWithExtra { return wildcardByte })
		if err != nil {
			return nil, err
		}

		if len(regex) > 0 && regex[len(regex)-1].kind != wildcard {
			regex = append(regex, wildcardByte)
		}
		regex = append(regex, perBBRegex...)
	}

	penalizeShortAtoms(minPieceLength, regex)
	return toRawSignature(regex), nil
}
