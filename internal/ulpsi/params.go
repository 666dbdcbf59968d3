package ulpsi

import "fmt"

// Params is the fully deterministic parameter set both peers must agree
// on before any query is processed. Everything downstream of this type
// — hash keys, tile shapes, the power DAG — is derived from it once, at
// startup, and never recomputed per request.
type Params struct {
	// H is the number of cuckoo hash tables (BigBoxes).
	H uint32
	// HTSize is the cuckoo table row count, must be a power of two.
	HTSize uint32
	// ChunkBits is the width in bits of a single plaintext chunk.
	ChunkBits uint32
	// PSIPtSlots is the number of chunks an item (and a label) is split
	// into. PSIPtSlots*ChunkBits must be >= 256.
	PSIPtSlots uint32
	// CTSlots is the number of SIMD batch slots in one ciphertext.
	CTSlots uint32
	// EvalDegree is the fixed polynomial degree per InnerBox.
	EvalDegree uint32
	// P is the BFV plaintext modulus. Must be prime and greater than
	// 2^ChunkBits.
	P uint64
	// SrcPowers are the power exponents the client computes and sends;
	// the engine derives every power in [1, EvalDegree] from this set.
	SrcPowers []uint32
	// BFVLogDegree is log2 of the BFV ring degree.
	BFVLogDegree uint32
	// BFVModuliBits are the bit sizes of the ciphertext modulus chain.
	BFVModuliBits []int
	// HashKeys holds one AES-128 key per hash table, shared by both
	// peers out of band as part of the parameter bundle.
	HashKeys [][16]byte
}

// SegRows is CTSlots/PSIPtSlots — logical hash-table rows stored per
// InnerBox, and the height of one Segment.
func (p *Params) SegRows() uint32 {
	return p.CTSlots / p.PSIPtSlots
}

// Segments is the number of Segments per BigBox.
func (p *Params) Segments() uint32 {
	return p.HTSize / p.SegRows()
}

// FillerStart is the first value of the reserved high range used to pad
// under-occupied InnerBox rows before interpolation.
func (p *Params) FillerStart() uint64 {
	return p.P - uint64(p.EvalDegree) - 1
}

// DefaultParams returns the reference recipe this implementation ships
// with, taken from the original ULPSI server's default parameter set:
// H=3, HT_SIZE=4096, 256-bit items/labels split into 16 chunks of 16
// bits, CT_SLOTS=8192 (so SEG_ROWS=512, 8 segments per BigBox),
// EVAL_DEGREE=1304, BFV plaintext modulus 65537, ring degree 8192 with
// a 50/50/45-bit moduli chain.
func DefaultParams() *Params {
	p := &Params{
		H:             3,
		HTSize:        4096,
		ChunkBits:     16,
		PSIPtSlots:    16,
		CTSlots:       8192,
		EvalDegree:    1304,
		P:             65537,
		SrcPowers:     []uint32{1, 3, 11, 18, 45, 225},
		BFVLogDegree:  13,
		BFVModuliBits: []int{50, 50, 45},
		HashKeys:      make([][16]byte, 3),
	}
	for k := range p.HashKeys {
		// Deterministic placeholder keys; real deployments generate and
		// distribute random keys out of band as part of the parameter
		// bundle.
		for i := range p.HashKeys[k] {
			p.HashKeys[k][i] = byte(k*16 + i)
		}
	}
	return p
}

// Validate checks the static invariants spec.md requires of a parameter
// set before it is used to build or serve anything.
func (p *Params) Validate() error {
	if p.H == 0 || int(p.H) != len(p.HashKeys) {
		return newErr(KindConfigMismatch, fmt.Sprintf("H=%d must match len(HashKeys)=%d", p.H, len(p.HashKeys)), nil)
	}
	if p.HTSize == 0 || p.HTSize&(p.HTSize-1) != 0 {
		return newErr(KindConfigMismatch, fmt.Sprintf("HTSize=%d must be a power of two", p.HTSize), nil)
	}
	if p.CTSlots == 0 || p.CTSlots&(p.CTSlots-1) != 0 {
		return newErr(KindConfigMismatch, fmt.Sprintf("CTSlots=%d must be a power of two", p.CTSlots), nil)
	}
	if p.PSIPtSlots == 0 || p.CTSlots%p.PSIPtSlots != 0 {
		return newErr(KindConfigMismatch, "CTSlots must be divisible by PSIPtSlots", nil)
	}
	if p.PSIPtSlots*p.ChunkBits < 256 {
		return newErr(KindConfigMismatch, "PSIPtSlots*ChunkBits must cover 256 bits", nil)
	}
	if p.HTSize%p.SegRows() != 0 {
		return newErr(KindConfigMismatch, "SegRows must divide HTSize", nil)
	}
	if p.P <= 1<<p.ChunkBits {
		return newErr(KindConfigMismatch, fmt.Sprintf("P=%d must exceed 2^ChunkBits", p.P), nil)
	}
	if uint64(p.EvalDegree)+1 >= p.FillerStart() {
		return newErr(KindConfigMismatch, "EvalDegree leaves no room for the filler range", nil)
	}
	if len(p.SrcPowers) == 0 {
		return newErr(KindConfigMismatch, "SrcPowers must not be empty", nil)
	}
	for _, sp := range p.SrcPowers {
		if sp == 0 || sp > p.EvalDegree {
			return newErr(KindConfigMismatch, fmt.Sprintf("source power %d out of range [1,%d]", sp, p.EvalDegree), nil)
		}
	}
	return nil
}

// Equal reports bit-for-bit equality of two parameter sets. The
// parameter round-trip tests use it; no binary in this repository
// calls it to compare a peer's params.
func (p *Params) Equal(o *Params) bool {
	if p.H != o.H || p.HTSize != o.HTSize || p.ChunkBits != o.ChunkBits ||
		p.PSIPtSlots != o.PSIPtSlots || p.CTSlots != o.CTSlots ||
		p.EvalDegree != o.EvalDegree || p.P != o.P ||
		p.BFVLogDegree != o.BFVLogDegree || len(p.SrcPowers) != len(o.SrcPowers) ||
		len(p.BFVModuliBits) != len(o.BFVModuliBits) || len(p.HashKeys) != len(o.HashKeys) {
		return false
	}
	for i := range p.SrcPowers {
		if p.SrcPowers[i] != o.SrcPowers[i] {
			return false
		}
	}
	for i := range p.BFVModuliBits {
		if p.BFVModuliBits[i] != o.BFVModuliBits[i] {
			return false
		}
	}
	for i := range p.HashKeys {
		if p.HashKeys[i] != o.HashKeys[i] {
			return false
		}
	}
	return true
}
