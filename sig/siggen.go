package sig

import (
	"fmt"
	"math"
	"path/filepath"

	"binsig/matchchain"
	"binsig/types"
)

// DefaultMinPieceLength is used when a definition does not specify a
// minimum literal-byte run length.
const DefaultMinPieceLength = 4

// BuildDate identifies the build producing a signature; stamped into
// signature metadata and overridable with -ldflags at release time.
var BuildDate = "dev"

// Logger is the interface the generator reports progress through.
type Logger interface {
	Debug(component, format string, args ...interface{})
	Info(component, format string, args ...interface{})
	Warning(component, format string, args ...interface{})
	Error(component, format string, args ...interface{})
}

type nopLogger struct{}

func (nopLogger) Debug(string, string, ...interface{})   {}
func (nopLogger) Info(string, string, ...interface{})    {}
func (nopLogger) Warning(string, string, ...interface{}) {}
func (nopLogger) Error(string, string, ...interface{})   {}

// Generator encapsulates the whole workflow of generating a signature
// from a set of BinDiff result files and their disassembly exports. The
// binaries behind the diffs must form a chain: diffing
//
//	sample1  sample2  sample3
//
// pairwise gives sample1_vs_sample2.BinDiff and
// sample2_vs_sample3.BinDiff, with each sample's disassembly export
// next to the diffs.
type Generator struct {
	diffResults     []string
	table           matchchain.Table
	bbCandidateIDs  []types.Ident
	logger          Logger
	debugMatchChain bool
}

// NewGenerator returns a generator with no diff results and no logger.
func NewGenerator() *Generator {
	return &Generator{logger: nopLogger{}}
}

// SetLogger installs a progress logger.
func (g *Generator) SetLogger(logger Logger) {
	if logger == nil {
		logger = nopLogger{}
	}
	g.logger = logger
}

// SetDebugMatchChain enables dumping the match chain table after
// function candidate selection, including when it comes up empty.
func (g *Generator) SetDebugMatchChain(debug bool) { g.debugMatchChain = debug }

// AddDiffResults sets the BinDiff result files to work on, replacing any
// previously added ones.
func (g *Generator) AddDiffResults(files []string) {
	g.diffResults = append(g.diffResults[:0], files...)
}

func (g *Generator) parseDiffResults() error {
	g.logger.Info("siggen", "Parsing diff results")
	numDiffs := len(g.diffResults)
	pairs := make([][2]string, 0, numDiffs)
	for i, path := range g.diffResults {
		pair, err := matchchain.AddDiffResult(path, g.table[i], g.table[i+1], i == numDiffs-1)
		if err != nil {
			return err
		}
		pairs = append(pairs, pair)
		diffsParsed.Inc()
	}
	for i, pair := range pairs {
		if g.table[i].Filename != pair[0] || g.table[i+1].Filename != pair[1] {
			return fmt.Errorf("%w: Input files do not form a chain of diffs",
				types.ErrFailedPrecondition)
		}
	}
	return nil
}

func (g *Generator) loadColumnData() error {
	g.logger.Info("siggen", "Loading function metadata and instruction data")
	for _, column := range g.table {
		path := filepath.Join(column.DiffDir, column.Filename) + ".BinExport"
		if err := matchchain.AddFunctionData(path, column); err != nil {
			return err
		}
	}
	return nil
}

// setFunctionWeights is a placeholder hook for per-sample function
// prevalence. When occurrence counts are available, rarer functions
// score higher in weighted trimming.
func (g *Generator) setFunctionWeights(funcCandidateIDs []types.Ident) error {
	type functionKey struct {
		sha256  string
		address types.Address
	}
	occurrenceCounts := make(map[functionKey]uint32)
	// TODO: query a function corpus for occurrence counts. Without
	// counts all weights stay at their default of 1.
	if len(occurrenceCounts) == 0 {
		return nil
	}
	for _, funcID := range funcCandidateIDs {
		for _, column := range g.table {
			function := column.FindFunctionByID(funcID)
			if function == nil {
				continue
			}
			count, ok := occurrenceCounts[functionKey{column.SHA256, function.Match.Address}]
			if !ok {
				continue
			}
			for _, bb := range function.BasicBlocks {
				bb.Weight = math.MaxUint32 - count
			}
		}
	}
	return nil
}

// dumpMatchChainTable logs a table of function matches, one column per
// input binary, annotating candidate functions with their position in
// the common subsequence.
func (g *Generator) dumpMatchChainTable(candidates []types.Ident) {
	inCandidates := make(map[types.Ident]struct{}, len(candidates))
	for _, id := range candidates {
		inCandidates[id] = struct{}{}
	}
	for colIndex, column := range g.table {
		g.logger.Debug("siggen", "column %d: %s", colIndex, column.Filename)
		candidateNum := 0
		for _, function := range column.Functions() {
			candidateStr := "   "
			if _, ok := inCandidates[function.Match.ID]; ok {
				candidateNum++
				candidateStr = fmt.Sprintf("%03d", candidateNum)
			}
			g.logger.Debug("siggen", "  %08x (%03d %s) -> %08x",
				function.Match.Address, function.Match.ID, candidateStr,
				function.Match.AddressInNext)
		}
	}
}

func (g *Generator) computeCandidates() error {
	g.logger.Info("siggen", "Building id chains and indices")
	matchchain.PropagateIDs(g.table)
	matchchain.BuildIDIndices(g.table)

	g.logger.Info("siggen", "Computing function candidates")
	funcCandidateIDs, err := ComputeFunctionCandidates(g.table)
	if err != nil {
		return err
	}
	if len(funcCandidateIDs) == 0 {
		if g.debugMatchChain {
			// This won't help directly, but the logs allow examining
			// what was wrong with the inputs.
			g.dumpMatchChainTable(nil)
		}
		return fmt.Errorf("%w: no function candidates found", types.ErrFailedPrecondition)
	}
	g.logger.Info("siggen", "  Function candidates found: %d", len(funcCandidateIDs))
	functionCandidates.Set(float64(len(funcCandidateIDs)))
	if g.debugMatchChain {
		g.dumpMatchChainTable(funcCandidateIDs)
	}

	if err := g.setFunctionWeights(funcCandidateIDs); err != nil {
		return err
	}

	g.logger.Info("siggen", "Computing basic block candidates")
	g.bbCandidateIDs, err = ComputeBasicBlockCandidates(g.table, funcCandidateIDs)
	if err != nil {
		return err
	}
	if len(g.bbCandidateIDs) == 0 {
		return fmt.Errorf("%w: no basic block candidates found", types.ErrFailedPrecondition)
	}
	g.logger.Info("siggen", "  Basic block candidates found: %d", len(g.bbCandidateIDs))
	basicBlockCandidates.Set(float64(len(g.bbCandidateIDs)))
	return nil
}

func fillSignatureMetadata(signature *types.Signature) {
	definition := &signature.Definition

	// Associate the signature with the generator build that produced it.
	definition.Meta = append(definition.Meta, types.Meta{
		Key: "vxsig_build", StringValue: BuildDate, Kind: "string",
	})

	if definition.UniqueSignatureID != "" {
		definition.Meta = append(definition.Meta, types.Meta{
			Key: "vxsig_taskid", StringValue: definition.UniqueSignatureID, Kind: "string",
		})
	}

	// List the representative samples.
	for i, itemID := range definition.ItemIDs {
		definition.Meta = append(definition.Meta, types.Meta{
			Key: fmt.Sprintf("rs%d", i+1), StringValue: itemID, Kind: "string",
		})
	}
}

// Generate parses the added diff results, loads disassembly metadata,
// computes candidates and fills signature.Raw with the synthesized
// signature. One AddDiffResults call must precede it.
func (g *Generator) Generate(signature *types.Signature) error {
	if signature == nil {
		return fmt.Errorf("%w: need non-nil signature", types.ErrInvalidArgument)
	}
	if len(g.diffResults) == 0 {
		return fmt.Errorf("%w: need to call AddDiffResults first", types.ErrFailedPrecondition)
	}
	definition := &signature.Definition
	if definition.MinPieceLength == 0 {
		definition.MinPieceLength = DefaultMinPieceLength
	}

	// One more binary than there are diffs.
	g.table = matchchain.NewTable(len(g.diffResults) + 1)
	g.bbCandidateIDs = nil

	// The function filter applies to the first binary of the chain.
	first := g.table[0]
	first.FunctionFilter = definition.FunctionFilter
	for _, address := range definition.FilteredFunctions {
		first.AddFilteredFunction(address)
	}

	if err := g.parseDiffResults(); err != nil {
		return err
	}
	if err := g.loadColumnData(); err != nil {
		return err
	}
	if err := g.computeCandidates(); err != nil {
		return err
	}

	g.logger.Info("siggen", "Filtering basic block overlaps and removing gaps")
	sizeBefore := len(g.bbCandidateIDs)
	filtered, err := FilterBasicBlockOverlaps(g.table, g.bbCandidateIDs)
	if err != nil {
		return err
	}
	g.bbCandidateIDs = filtered
	g.logger.Info("siggen", "  Removed %d, %d remain",
		sizeBefore-len(g.bbCandidateIDs), len(g.bbCandidateIDs))
	overlapsFiltered.Add(float64(sizeBefore - len(g.bbCandidateIDs)))
	if len(g.bbCandidateIDs) == 0 {
		return fmt.Errorf("%w: all basic blocks overlap, input data is probably bad",
			types.ErrFailedPrecondition)
	}

	g.logger.Info("siggen", "Constructing regular expression")
	raw, err := GenericSignatureFromMatches(g.table, g.bbCandidateIDs,
		definition.DisableNibbleMasking, definition.MinPieceLength)
	if err != nil {
		return err
	}

	signature.ClamAV = ""
	signature.Yara = ""
	signature.Raw = *raw
	g.logger.Info("siggen", "  Regex: %d raw bytes (not counting wildcards)",
		signature.Raw.ByteLength())
	signatureBytes.Set(float64(signature.Raw.ByteLength()))

	fillSignatureMetadata(signature)
	return nil
}
