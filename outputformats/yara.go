package outputformats

import (
	"fmt"
	"strconv"
	"strings"

	"binsig/types"
)

const (
	yaraMinTokens = 2
	// Yara has a hard limit of tokens per hex string; a two-digit hex
	// byte and a wildcard each count as one token.
	yaraMaxHexStringTokens = 5000

	yaraHexWildcard = "[-]"
)

// YaraFormatter renders signatures as Yara rules with hex strings. The
// debug options add comment lines with the unmasked bytes and the piece
// weights next to each hex run.
type YaraFormatter struct {
	DebugMasking bool
	DebugWeights bool
}

var _ Formatter = (*YaraFormatter)(nil)

// Format implements Formatter.
func (f *YaraFormatter) Format(signature *types.Signature) error {
	if signature == nil {
		return fmt.Errorf("%w: signature must not be nil", types.ErrInvalidArgument)
	}
	definition := &signature.Definition

	var data []byte

	// Rule name and tags.
	name := definition.DetectionName
	if name == "" {
		name = definition.UniqueSignatureID
	}
	data = append(data, "rule "...)
	data = append(data, makeValidIdentifier(name)...)
	for i, tag := range definition.Tags {
		if i == 0 {
			data = append(data, " : "...)
		} else {
			data = append(data, ' ')
		}
		data = append(data, makeValidIdentifier(tag)...)
	}
	data = append(data, " {\n"...)

	if len(definition.Meta) > 0 {
		data = append(data, "  meta:\n"...)
		for _, meta := range definition.Meta {
			var value string
			switch meta.Kind {
			case "int":
				value = strconv.FormatInt(meta.IntValue, 10)
			case "bool":
				value = strconv.FormatBool(meta.BoolValue)
			default:
				value = "\"" + makeValidIdentifier(meta.StringValue) + "\""
			}
			data = append(data, "    "...)
			data = append(data, meta.Key...)
			data = append(data, " = "...)
			data = append(data, value...)
			data = append(data, '\n')
		}
	}

	// The actual regex signature.
	data = append(data, "  strings:\n    $ = {\n"...)

	subset, err := RelevantSubset(signature, yaraMinTokens)
	if err != nil {
		return err
	}

	numHexStringTokens := 0
	needsWildcard := false
	for _, piece := range subset.Pieces {
		if numHexStringTokens > yaraMaxHexStringTokens {
			break
		}
		wildcardTokens := 0
		if needsWildcard {
			wildcardTokens = 1
		}
		maxCopyBytes := yaraMaxHexStringTokens - numHexStringTokens - wildcardTokens
		if maxCopyBytes < yaraMinTokens {
			// The signature would exceed Yara's token limit.
			break
		}

		data = append(data, "      "...)
		if needsWildcard {
			data = append(data, yaraHexWildcard...)
			numHexStringTokens++
		} else {
			data = append(data, strings.Repeat(" ", len(yaraHexWildcard))...)
		}

		data = appendMaskedHex(data, piece, maxCopyBytes)
		data = append(data, '\n')
		if f.DebugMasking {
			// Align the unmasked hex bytes with the masked ones above.
			data = append(data, "      // "...)
			unmasked := types.Piece{Bytes: piece.Bytes}
			data = appendMaskedHex(data, &unmasked, maxCopyBytes)
			data = append(data, '\n')
		}
		if f.DebugWeights {
			data = append(data, fmt.Sprintf("         // Weight: %d\n", piece.Weight)...)
		}

		for _, disassembly := range piece.OriginDisassembly {
			data = append(data, "         // "...)
			data = append(data, disassembly...)
			data = append(data, '\n')
		}

		needsWildcard = true
		numHexStringTokens += pieceCopyLen(piece, maxCopyBytes)
	}

	data = append(data, "\n  }\n  condition:\n    all of them\n}\n"...)
	signature.Yara = string(data)
	return nil
}

// FormatDatabase implements Formatter.
func (f *YaraFormatter) FormatDatabase(signatures []*types.Signature) (string, error) {
	var database strings.Builder
	for _, signature := range signatures {
		data := signature.Yara
		if data == "" {
			formatted := *signature
			if err := f.Format(&formatted); err != nil {
				return "", err
			}
			data = formatted.Yara
		}
		database.WriteString(data)
	}
	return database.String(), nil
}
