// Package outputformats renders raw signatures into concrete AV engine
// syntaxes and applies the length-budget trimming shared by all engines.
package outputformats

import (
	"fmt"

	"binsig/types"
)

// SignatureType selects a target engine syntax.
type SignatureType int

const (
	ClamAV SignatureType = iota
	Yara
)

// Formatter renders a raw signature into one engine's syntax.
type Formatter interface {
	// Format fills the engine-specific field of signature from its raw
	// signature and definition.
	Format(signature *types.Signature) error

	// FormatDatabase combines multiple signatures into one signature
	// database of the target format, formatting any signature that has
	// not been formatted yet.
	FormatDatabase(signatures []*types.Signature) (string, error)
}

// NewFormatter returns a formatter for the given signature type.
func NewFormatter(signatureType SignatureType) (Formatter, error) {
	switch signatureType {
	case ClamAV:
		return &ClamAVFormatter{}, nil
	case Yara:
		return &YaraFormatter{}, nil
	default:
		return nil, fmt.Errorf("%w: invalid signature type %d", types.ErrInvalidArgument, signatureType)
	}
}

// ParseSignatureType maps a format name onto a SignatureType.
func ParseSignatureType(name string) (SignatureType, error) {
	switch name {
	case "clamav":
		return ClamAV, nil
	case "yara":
		return Yara, nil
	default:
		return ClamAV, fmt.Errorf("%w: unknown signature format %q", types.ErrInvalidArgument, name)
	}
}
