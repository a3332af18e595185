package matchchain

import (
	"bytes"
	"fmt"
	"path/filepath"

	"binsig/diffreader"
	"binsig/disasm"
	"binsig/types"
)

// Inserter threads a diff result's match streams into a column. It keeps
// the current function and basic block so that child matches attach to
// the right parent as the streams interleave.
type Inserter struct {
	column            *Column
	currentFunction   *types.MatchedFunction
	currentBasicBlock *types.MatchedBasicBlock
}

// NewInserter returns an inserter targeting column.
func NewInserter(column *Column) *Inserter {
	return &Inserter{column: column}
}

// OnFunctionMatch implements diffreader.Visitor.
func (in *Inserter) OnFunctionMatch(match types.Match) {
	in.currentFunction = in.column.InsertFunctionMatch(match)
	if in.currentFunction == nil {
		// Function rejected by the filter; drop its children too.
		in.currentBasicBlock = nil
	}
}

// OnBasicBlockMatch implements diffreader.Visitor.
func (in *Inserter) OnBasicBlockMatch(match types.Match) {
	if in.currentFunction != nil {
		in.currentBasicBlock = in.column.InsertBasicBlockMatch(in.currentFunction, match)
	}
}

// OnInstructionMatch implements diffreader.Visitor.
func (in *Inserter) OnInstructionMatch(match types.Match) {
	if in.currentBasicBlock != nil {
		in.column.InsertInstructionMatch(in.currentBasicBlock, match)
	}
}

// AddDiffResult parses one BinDiff result into column. It records the
// diff's filename and directory on the column and returns the pair of
// sample filenames the diff names. On the last diff of a chain, the
// paired sample is recorded on next and the chain is finished with
// sentinel zero-address successors.
func AddDiffResult(path string, column, next *Column, last bool) (files [2]string, err error) {
	inserter := NewInserter(column)
	first, second, err := diffreader.Read(path, inserter)
	if err != nil {
		return files, err
	}

	diffDir := filepath.Dir(path)
	column.Filename = first.Filename
	column.DiffDir = diffDir
	if last {
		next.Filename = second.Filename
		next.DiffDir = diffDir
		next.FinishChain(column)
	}
	return [2]string{first.Filename, second.Filename}, nil
}

// columnDataVisitor stamps disassembly metadata onto a column's records.
// Addresses the differ never matched are silently skipped.
type columnDataVisitor struct {
	column *Column
	path   string
	err    error
}

func (v *columnDataVisitor) OnFunction(sha256 string, address types.Address, funcType types.FunctionType) {
	function := v.column.FindFunctionByAddress(address)
	if function == nil {
		// Not matched by the differ or filtered out.
		return
	}
	function.Type = funcType

	if v.column.SHA256 == "" {
		v.column.SHA256 = sha256
	} else if v.err == nil && sha256 != "" && v.column.SHA256 != sha256 {
		v.err = fmt.Errorf("%w: inconsistent sha256 in %s: %s vs %s",
			types.ErrFailedPrecondition, v.path, v.column.SHA256, sha256)
	}
}

func (v *columnDataVisitor) OnInstruction(basicBlock, address types.Address, rawBytes []byte, disassembly string, immediates []types.Immediate) {
	// All instruction bytes are loaded regardless of whether the parent
	// basic block was matched; instructions shared with unmatched basic
	// blocks still need their bytes.
	instr := v.column.FindInstructionByAddress(address)
	if instr == nil {
		return
	}

	if len(instr.RawBytes) == 0 {
		instr.RawBytes = rawBytes
		instr.Disassembly = disassembly
		instr.Immediates = immediates
	} else if v.err == nil && !bytes.Equal(instr.RawBytes, rawBytes) {
		v.err = fmt.Errorf("%w: instruction bytes differ in %s: %08x %08x %d",
			types.ErrInternal, v.path, basicBlock, address, len(rawBytes))
	}
}

// AddFunctionData loads the disassembly export at path and enriches the
// column's matched records with function types, the sample hash and
// instruction bytes.
func AddFunctionData(path string, column *Column) error {
	visitor := &columnDataVisitor{column: column, path: path}
	if err := disasm.Read(path, visitor); err != nil {
		return err
	}
	return visitor.err
}
