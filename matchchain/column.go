// Package matchchain implements the match-chain table: the k-column
// structure that fuses pairwise diff results into rows of functions,
// basic blocks and instructions tracked through every input binary.
package matchchain

import (
	"sort"

	"binsig/types"
)

// Column holds one binary's worth of matched entities. Entities are
// indexed by address; after PropagateIDs and BuildIDIndices they are
// additionally indexed by chain id. The column exclusively owns its
// records; functions and basic blocks refer to their children by
// non-owning pointer.
type Column struct {
	Filename string
	DiffDir  string
	SHA256   string

	FunctionFilter    types.FunctionFilter
	FilteredFunctions map[types.Address]struct{}

	functionsByAddress    map[types.Address]*types.MatchedFunction
	basicBlocksByAddress  map[types.Address]*types.MatchedBasicBlock
	instructionsByAddress map[types.Address]*types.MatchedInstruction

	// Ascending address order for deterministic iteration.
	functionAddrs   []types.Address
	basicBlockAddrs []types.Address

	functionsByID   map[types.Ident]*types.MatchedFunction
	basicBlocksByID map[types.Ident]*types.MatchedBasicBlock
}

// NewColumn returns an empty column with no function filter.
func NewColumn() *Column {
	return &Column{
		FilteredFunctions:     make(map[types.Address]struct{}),
		functionsByAddress:    make(map[types.Address]*types.MatchedFunction),
		basicBlocksByAddress:  make(map[types.Address]*types.MatchedBasicBlock),
		instructionsByAddress: make(map[types.Address]*types.MatchedInstruction),
		functionsByID:         make(map[types.Ident]*types.MatchedFunction),
		basicBlocksByID:       make(map[types.Ident]*types.MatchedBasicBlock),
	}
}

// AddFilteredFunction adds an address to the column's filter set.
func (c *Column) AddFilteredFunction(address types.Address) {
	c.FilteredFunctions[address] = struct{}{}
}

func insertSortedAddr(addrs []types.Address, address types.Address) []types.Address {
	i := sort.Search(len(addrs), func(i int) bool { return addrs[i] >= address })
	addrs = append(addrs, 0)
	copy(addrs[i+1:], addrs[i:])
	addrs[i] = address
	return addrs
}

// InsertFunctionMatch inserts a function match, subject to the column's
// function filter. Returns nil when the filter rejects the address, and
// the existing record for duplicate addresses. Chain ids are assigned
// later by PropagateIDs.
func (c *Column) InsertFunctionMatch(match types.Match) *types.MatchedFunction {
	if c.FunctionFilter != types.FilterNone {
		_, inFilter := c.FilteredFunctions[match.Address]
		if (c.FunctionFilter == types.FilterInclude && !inFilter) ||
			(c.FunctionFilter == types.FilterExclude && inFilter) {
			return nil
		}
	}

	if function, ok := c.functionsByAddress[match.Address]; ok {
		return function
	}
	function := &types.MatchedFunction{Match: match}
	c.functionsByAddress[match.Address] = function
	c.functionAddrs = insertSortedAddr(c.functionAddrs, match.Address)
	return function
}

// InsertBasicBlockMatch upserts a basic block match by address and links
// it into the function's basic block set. A basic block that is already
// present in the column is shared between functions; the existing record
// is linked and returned.
func (c *Column) InsertBasicBlockMatch(function *types.MatchedFunction, match types.Match) *types.MatchedBasicBlock {
	bb, ok := c.basicBlocksByAddress[match.Address]
	if !ok {
		bb = &types.MatchedBasicBlock{Match: match, Weight: 1}
		c.basicBlocksByAddress[match.Address] = bb
		c.basicBlockAddrs = insertSortedAddr(c.basicBlockAddrs, match.Address)
	}
	function.BasicBlocks = linkBasicBlock(function.BasicBlocks, bb)
	return bb
}

// InsertInstructionMatch upserts an instruction match by address and
// links it into the basic block's instruction set. Instructions are
// shared frequently: two functions ending in the same call-and-return
// tail can legitimately be rewritten to jump to one shared block of
// code, making its instructions part of both.
func (c *Column) InsertInstructionMatch(bb *types.MatchedBasicBlock, match types.Match) *types.MatchedInstruction {
	instr, ok := c.instructionsByAddress[match.Address]
	if !ok {
		instr = &types.MatchedInstruction{Match: match}
		c.instructionsByAddress[match.Address] = instr
	}
	bb.Instructions = linkInstruction(bb.Instructions, instr)
	return instr
}

func linkBasicBlock(set []*types.MatchedBasicBlock, bb *types.MatchedBasicBlock) []*types.MatchedBasicBlock {
	i := sort.Search(len(set), func(i int) bool { return set[i].Match.Address >= bb.Match.Address })
	if i < len(set) && set[i] == bb {
		return set
	}
	set = append(set, nil)
	copy(set[i+1:], set[i:])
	set[i] = bb
	return set
}

func linkInstruction(set []*types.MatchedInstruction, instr *types.MatchedInstruction) []*types.MatchedInstruction {
	i := sort.Search(len(set), func(i int) bool { return set[i].Match.Address >= instr.Match.Address })
	if i < len(set) && set[i] == instr {
		return set
	}
	set = append(set, nil)
	copy(set[i+1:], set[i:])
	set[i] = instr
	return set
}

// FindFunctionByAddress returns the function at address, or nil.
func (c *Column) FindFunctionByAddress(address types.Address) *types.MatchedFunction {
	return c.functionsByAddress[address]
}

// FindBasicBlockByAddress returns the basic block at address, or nil.
func (c *Column) FindBasicBlockByAddress(address types.Address) *types.MatchedBasicBlock {
	return c.basicBlocksByAddress[address]
}

// FindInstructionByAddress returns the instruction at address, or nil.
func (c *Column) FindInstructionByAddress(address types.Address) *types.MatchedInstruction {
	return c.instructionsByAddress[address]
}

// FindFunctionByID returns the function with the given chain id, or nil.
// Valid only after BuildIDIndices.
func (c *Column) FindFunctionByID(id types.Ident) *types.MatchedFunction {
	return c.functionsByID[id]
}

// FindBasicBlockByID returns the basic block with the given chain id, or
// nil. Valid only after BuildIDIndices.
func (c *Column) FindBasicBlockByID(id types.Ident) *types.MatchedBasicBlock {
	return c.basicBlocksByID[id]
}

// Functions returns the column's functions in ascending address order.
func (c *Column) Functions() []*types.MatchedFunction {
	functions := make([]*types.MatchedFunction, len(c.functionAddrs))
	for i, addr := range c.functionAddrs {
		functions[i] = c.functionsByAddress[addr]
	}
	return functions
}

// BasicBlocks returns the column's basic blocks in ascending address
// order.
func (c *Column) BasicBlocks() []*types.MatchedBasicBlock {
	bbs := make([]*types.MatchedBasicBlock, len(c.basicBlockAddrs))
	for i, addr := range c.basicBlockAddrs {
		bbs[i] = c.basicBlocksByAddress[addr]
	}
	return bbs
}

// FinishChain synthesizes this column's records from prev's successor
// addresses. The inserted matches map to address zero; the zero value is
// never followed and only terminates every chain cleanly.
func (c *Column) FinishChain(prev *Column) {
	for _, function := range prev.Functions() {
		newFunction := c.InsertFunctionMatch(types.Match{Address: function.Match.AddressInNext})
		if newFunction == nil {
			continue
		}
		for _, bb := range function.BasicBlocks {
			newBB := c.InsertBasicBlockMatch(newFunction, types.Match{Address: bb.Match.AddressInNext})
			for _, instr := range bb.Instructions {
				c.InsertInstructionMatch(newBB, types.Match{Address: instr.Match.AddressInNext})
			}
		}
	}
}

// BuildIDIndices fills the id-keyed indices from the address indices.
// Records that did not receive an id all share id 0; the id lookup for 0
// is meaningless and not used.
func (c *Column) BuildIDIndices() {
	for _, function := range c.functionsByAddress {
		c.functionsByID[function.Match.ID] = function
	}
	for _, bb := range c.basicBlocksByAddress {
		c.basicBlocksByID[bb.Match.ID] = bb
	}
}
