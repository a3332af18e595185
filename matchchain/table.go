package matchchain

import "binsig/types"

// Table is the ordered sequence of columns, one per input binary. A run
// over N diff results uses N+1 columns.
type Table []*Column

// NewTable returns a table of n empty columns.
func NewTable(n int) Table {
	table := make(Table, n)
	for i := range table {
		table[i] = NewColumn()
	}
	return table
}

// propagate assigns ascending chain ids along the first column and
// follows each chain's successor addresses through the remaining
// columns, stamping the same id until the chain breaks.
func propagate(table Table, find func(*Column, types.Address) *types.Match, addrs func(*Column) []types.Address) {
	if len(table) == 0 {
		return
	}
	first := table[0]
	chainID := types.Ident(1)
	for _, addr := range addrs(first) {
		match := find(first, addr)
		match.ID = chainID

		next := match.AddressInNext
		for _, column := range table[1:] {
			found := find(column, next)
			if found == nil {
				// Match chain broken.
				break
			}
			found.ID = chainID
			next = found.AddressInNext
		}
		chainID++
	}
}

// PropagateIDs assigns chain ids, separately for functions and basic
// blocks. Afterwards two records in different columns share an id iff
// they belong to the same chain rooted in column 0, and column 0 carries
// ids 1..n in ascending address order.
func PropagateIDs(table Table) {
	propagate(table,
		func(c *Column, addr types.Address) *types.Match {
			if f := c.FindFunctionByAddress(addr); f != nil {
				return &f.Match
			}
			return nil
		},
		func(c *Column) []types.Address { return c.functionAddrs })
	propagate(table,
		func(c *Column, addr types.Address) *types.Match {
			if bb := c.FindBasicBlockByAddress(addr); bb != nil {
				return &bb.Match
			}
			return nil
		},
		func(c *Column) []types.Address { return c.basicBlockAddrs })
}

// BuildIDIndices builds the id-keyed indices on every column.
func BuildIDIndices(table Table) {
	for _, column := range table {
		column.BuildIDIndices()
	}
}
