package types

// Address represents a memory address in one of the input binaries.
type Address = uint64

// Ident is a monotonically increasing chain identifier for functions and
// basic blocks. Id 0 is reserved and means "no id".
type Ident = uint32

// Match is a single pairwise match: an address in the current binary, the
// address of the corresponding entity in the next binary of the chain, and
// the chain id assigned by id propagation.
type Match struct {
	Address       Address
	AddressInNext Address
	ID            Ident
}

// Immediate widths as used in disassembly exports.
const (
	WidthByte  = 8
	WidthWord  = 16
	WidthDWord = 32
	WidthQWord = 64
)

// Immediate is an immediate operand value recovered from disassembly.
type Immediate struct {
	Value uint64
	Width int
}

// FunctionType mirrors the call graph vertex types of the disassembly
// export.
type FunctionType int

const (
	FunctionNormal FunctionType = iota
	FunctionLibrary
	FunctionImported
	FunctionThunk
	FunctionInvalid
)

// ParseFunctionType maps the export's type names onto FunctionType.
// Unknown names map to FunctionInvalid.
func ParseFunctionType(s string) FunctionType {
	switch s {
	case "NORMAL":
		return FunctionNormal
	case "LIBRARY":
		return FunctionLibrary
	case "IMPORTED":
		return FunctionImported
	case "THUNK":
		return FunctionThunk
	default:
		return FunctionInvalid
	}
}

// MatchedInstruction is an instruction tracked through the match chain.
// RawBytes, Disassembly and Immediates are filled in lazily when the
// disassembly export for the column is loaded.
type MatchedInstruction struct {
	Match       Match
	RawBytes    []byte
	Disassembly string
	Immediates  []Immediate
}

// MatchedBasicBlock is a basic block tracked through the match chain. The
// instruction list is kept sorted by address. Instructions may be shared
// with other basic blocks in the same column.
type MatchedBasicBlock struct {
	Match        Match
	Weight       uint32
	Instructions []*MatchedInstruction
}

// MatchedFunction is a function tracked through the match chain, with its
// basic blocks kept sorted by address.
type MatchedFunction struct {
	Match       Match
	Type        FunctionType
	BasicBlocks []*MatchedBasicBlock
}
