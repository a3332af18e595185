package types

// Piece is one literal byte run of a raw signature. MaskedNibbles holds
// hex-nibble indices (two per byte) that downstream engines should treat
// as single-character wildcards.
type Piece struct {
	Bytes             []byte
	MaskedNibbles     []int
	Weight            uint32
	OriginDisassembly []string
}

// RawSignature is the engine-independent result of signature synthesis:
// an ordered sequence of literal pieces, implicitly separated by
// unbounded wildcards.
type RawSignature struct {
	Pieces []*Piece
}

// ByteLength returns the total number of literal bytes over all pieces.
func (r *RawSignature) ByteLength() int {
	n := 0
	for _, piece := range r.Pieces {
		n += len(piece.Bytes)
	}
	return n
}

// Signature bundles a definition with the synthesized raw signature and
// any engine-specific renderings produced from it.
type Signature struct {
	Definition SignatureDefinition
	Raw        RawSignature

	ClamAV string
	Yara   string
}
