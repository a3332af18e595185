// Package disasm reads per-sample disassembly exports. An export is a
// JSON document produced by the exporter alongside each binary, carrying
// the sample hash, the call-graph function list and the instruction
// contents (raw bytes, disassembly text and recognized immediates).
package disasm

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"

	"binsig/types"
)

// Visitor receives the contents of a disassembly export.
type Visitor interface {
	// OnFunction is called once per call-graph function.
	OnFunction(sha256 string, address types.Address, funcType types.FunctionType)
	// OnInstruction is called once per instruction, grouped by basic
	// block in flow-graph order.
	OnInstruction(basicBlock, address types.Address, rawBytes []byte,
		disassembly string, immediates []types.Immediate)
}

type exportImmediate struct {
	Value uint64 `json:"value"`
	Width int    `json:"width"`
}

type exportFunction struct {
	Address uint64 `json:"address"`
	Type    string `json:"type"`
}

type exportInstruction struct {
	BasicBlock  uint64            `json:"basic_block"`
	Address     uint64            `json:"address"`
	Bytes       string            `json:"bytes"`
	Disassembly string            `json:"disassembly"`
	Immediates  []exportImmediate `json:"immediates,omitempty"`
}

type exportFile struct {
	SHA256       string              `json:"sha256"`
	Functions    []exportFunction    `json:"functions"`
	Instructions []exportInstruction `json:"instructions"`
}

// Read parses the export at path and streams its contents into visitor.
// Instruction bytes are hex-encoded in the export; a malformed encoding
// is an internal error naming the offending address.
func Read(path string, visitor Visitor) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("%w: reading export %s: %v", types.ErrInternal, path, err)
	}
	var export exportFile
	if err := json.Unmarshal(data, &export); err != nil {
		return fmt.Errorf("%w: failed parsing %s: %v", types.ErrInternal, path, err)
	}

	for _, function := range export.Functions {
		visitor.OnFunction(export.SHA256, function.Address,
			types.ParseFunctionType(function.Type))
	}

	for _, instr := range export.Instructions {
		rawBytes, err := hex.DecodeString(instr.Bytes)
		if err != nil {
			return fmt.Errorf("%w: bad instruction bytes in %s at %08x: %v",
				types.ErrInternal, path, instr.Address, err)
		}
		immediates := make([]types.Immediate, 0, len(instr.Immediates))
		for _, imm := range instr.Immediates {
			immediates = append(immediates, types.Immediate{Value: imm.Value, Width: imm.Width})
		}
		visitor.OnInstruction(instr.BasicBlock, instr.Address, rawBytes,
			instr.Disassembly, immediates)
	}
	return nil
}
