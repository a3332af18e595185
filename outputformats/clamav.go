package outputformats

import (
	"fmt"
	"strings"

	"binsig/types"
)

const (
	clamAVMinBytes = 2
	// ClamAV's line buffer for reading .ndb signatures is 8192 bytes
	// including the trailing newline.
	clamAVMaxLineLen = 8191

	clamAVWildcard = "*"
)

// ClamAVFormatter renders signatures in ClamAV's extended signature
// format: hex bytes with '?' nibble wildcards, pieces joined by '*'.
type ClamAVFormatter struct{}

var _ Formatter = (*ClamAVFormatter)(nil)

// Format implements Formatter.
func (f *ClamAVFormatter) Format(signature *types.Signature) error {
	if signature == nil {
		return fmt.Errorf("%w: signature must not be nil", types.ErrInvalidArgument)
	}

	data := make([]byte, 0, clamAVMaxLineLen)
	data = append(data, signature.Definition.DetectionName...)
	data = append(data, ":0:*:"...)

	subset, err := RelevantSubset(signature, clamAVMinBytes)
	if err != nil {
		return err
	}

	needsWildcard := false
	for _, piece := range subset.Pieces {
		wildcardLen := 0
		if needsWildcard {
			wildcardLen = len(clamAVWildcard)
		}
		// Two hex characters per byte.
		maxCopyBytes := (clamAVMaxLineLen - len(data) - wildcardLen) / 2
		if maxCopyBytes < clamAVMinBytes {
			// The line buffer limit is a hard ClamAV limitation; drop
			// the remaining pieces.
			break
		}
		if needsWildcard {
			data = append(data, clamAVWildcard...)
		}
		data = appendMaskedHex(data, piece, maxCopyBytes)
		needsWildcard = true
	}
	if len(data) > clamAVMaxLineLen {
		// Only an overly long detection name can get us here.
		return fmt.Errorf("%w: signature data size too long: %d > %d",
			types.ErrOutOfRange, len(data), clamAVMaxLineLen)
	}
	signature.ClamAV = string(data)
	return nil
}

// FormatDatabase implements Formatter.
func (f *ClamAVFormatter) FormatDatabase(signatures []*types.Signature) (string, error) {
	var database strings.Builder
	for _, signature := range signatures {
		data := signature.ClamAV
		if data == "" {
			formatted := *signature
			if err := f.Format(&formatted); err != nil {
				return "", err
			}
			data = formatted.ClamAV
		}
		database.WriteString(data)
		database.WriteString("\n")
	}
	return database.String(), nil
}
