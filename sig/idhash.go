package sig

import (
	"fmt"
	"strings"

	"github.com/cespare/xxhash/v2"

	"binsig/types"
)

const signatureItemPrefix = "sig_"

// appendShortHex appends the 16 low bits of value as four hex digits,
// left-padded with zeroes.
func appendShortHex(b *strings.Builder, value uint64) {
	fmt.Fprintf(b, "%04x", value&0xffff)
}

// DefinitionHasher derives stable signature id prefixes from a
// signature definition. Ids have the form (all numbers hexadecimal)
//
//	+------------------------- prefix string
//	|   +--------------------- hash of the first signature group
//	|   |   +----------------- hash over item ids
//	|   |   |   +------------- signature variant
//	|   |   |   |   +--------- separator
//	|   |   |   |   |+-------- hash of the serialized parameters
//	|   |   |   |   ||   +---- random signature id
//	v   v   v   v   vv   v
//	sig_735d162eb0c6_31540000
//
// so that querying all signatures of a group, or all variants of one
// signature, is a prefix query.
type DefinitionHasher struct {
	def types.SignatureDefinition
}

// NewDefinitionHasher returns a hasher over def.
func NewDefinitionHasher(def types.SignatureDefinition) *DefinitionHasher {
	return &DefinitionHasher{def: def}
}

// NewGroupVariantHasher returns a hasher for a bare group/variant pair.
func NewGroupVariantHasher(group string, variant int32) *DefinitionHasher {
	return &DefinitionHasher{def: types.SignatureDefinition{
		SignatureGroups: []string{group},
		Variant:         variant,
	}}
}

// SignatureIDPrefixUpToGroup returns "sig_<g4>".
func (h *DefinitionHasher) SignatureIDPrefixUpToGroup() string {
	var b strings.Builder
	b.WriteString(signatureItemPrefix)
	group := ""
	if len(h.def.SignatureGroups) > 0 {
		group = h.def.SignatureGroups[0]
	}
	appendShortHex(&b, xxhash.Sum64String(group))
	return b.String()
}

// ItemIDsHash returns the XOR-combined 64-bit hashes of all item ids.
func (h *DefinitionHasher) ItemIDsHash() uint64 {
	var result uint64
	for _, itemID := range h.def.ItemIDs {
		result ^= xxhash.Sum64String(itemID)
	}
	return result
}

// SignatureIDPrefixUpToItemIDsHash returns "sig_<g4><h4>".
func (h *DefinitionHasher) SignatureIDPrefixUpToItemIDsHash() string {
	var b strings.Builder
	b.WriteString(h.SignatureIDPrefixUpToGroup())
	appendShortHex(&b, h.ItemIDsHash())
	return b.String()
}

// SignatureIDPrefixUpToVariant returns "sig_<g4><h4><v4>".
func (h *DefinitionHasher) SignatureIDPrefixUpToVariant() string {
	var b strings.Builder
	b.WriteString(h.SignatureIDPrefixUpToItemIDsHash())
	appendShortHex(&b, uint64(uint32(h.def.Variant)))
	return b.String()
}

// SignatureIDPrefixUpToParamsHash returns "sig_<g4><h4><v4>_<p4>", where
// p4 hashes the serialized definition with the unique signature id and
// the item ids cleared (the latter are already part of h4).
func (h *DefinitionHasher) SignatureIDPrefixUpToParamsHash() string {
	var b strings.Builder
	b.WriteString(h.SignatureIDPrefixUpToVariant())
	b.WriteString("_")

	defCopy := h.def
	defCopy.UniqueSignatureID = ""
	defCopy.ItemIDs = nil
	appendShortHex(&b, xxhash.Sum64String(serializeDefinition(&defCopy)))
	return b.String()
}

// SignatureID returns the full id "sig_<g4><h4><v4>_<p4><r4>" for a
// caller-supplied random value.
func (h *DefinitionHasher) SignatureID(rand int32) string {
	var b strings.Builder
	b.WriteString(h.SignatureIDPrefixUpToParamsHash())
	appendShortHex(&b, uint64(uint32(rand)))
	return b.String()
}

// serializeDefinition writes a definition into a canonical byte string
// for hashing. The field order is fixed; changing it changes every
// derived signature id, so treat it as part of the wire contract.
func serializeDefinition(def *types.SignatureDefinition) string {
	var b strings.Builder
	writeField := func(tag string, values ...string) {
		for _, v := range values {
			if v == "" {
				continue
			}
			fmt.Fprintf(&b, "%s=%s;", tag, v)
		}
	}
	writeField("dn", def.DetectionName)
	writeField("id", def.UniqueSignatureID)
	writeField("it", def.ItemIDs...)
	writeField("tg", def.Tags...)
	for _, meta := range def.Meta {
		switch meta.Kind {
		case "int":
			fmt.Fprintf(&b, "mt=%s:%d;", meta.Key, meta.IntValue)
		case "bool":
			fmt.Fprintf(&b, "mt=%s:%t;", meta.Key, meta.BoolValue)
		default:
			fmt.Fprintf(&b, "mt=%s:%s;", meta.Key, meta.StringValue)
		}
	}
	if def.MinPieceLength != 0 {
		fmt.Fprintf(&b, "mp=%d;", def.MinPieceLength)
	}
	if def.DisableNibbleMasking {
		b.WriteString("nm=0;")
	}
	if def.TrimAlgorithm != types.TrimNone {
		fmt.Fprintf(&b, "ta=%d;", def.TrimAlgorithm)
	}
	if def.TrimLength != 0 {
		fmt.Fprintf(&b, "tl=%d;", def.TrimLength)
	}
	if def.Variant != 0 {
		fmt.Fprintf(&b, "va=%d;", def.Variant)
	}
	if def.FunctionFilter != types.FilterNone {
		fmt.Fprintf(&b, "ff=%d;", def.FunctionFilter)
	}
	for _, address := range def.FilteredFunctions {
		fmt.Fprintf(&b, "fa=%x;", address)
	}
	writeField("sg", def.SignatureGroups...)
	return b.String()
}
