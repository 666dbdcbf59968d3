package ulpsi

import (
	"crypto/aes"
	"crypto/sha256"
	"encoding/binary"
	"fmt"
)

// Item and Label are opaque 256-bit values.
type Item [32]byte
type Label [32]byte

// ItemLabel pairs a server item with its label.
type ItemLabel struct {
	Item  Item
	Label Label
}

// Hasher implements H independent keyed PRFs producing cuckoo row
// indices, and the fixed chunker that splits a 256-bit value into
// PSIPtSlots field elements. Both peers construct a Hasher from the
// same Params.HashKeys, so row_index(k, v) agrees on both sides.
type Hasher struct {
	params  *Params
	ciphers []cipherBlock
}

type cipherBlock interface {
	Encrypt(dst, src []byte)
	BlockSize() int
}

// NewHasher builds the H AES-128 block ciphers keyed from params.
func NewHasher(params *Params) (*Hasher, error) {
	ciphers := make([]cipherBlock, len(params.HashKeys))
	for k, key := range params.HashKeys {
		block, err := aes.NewCipher(key[:])
		if err != nil {
			return nil, newErr(KindInternal, "building AES cipher for hash table key", err)
		}
		ciphers[k] = block
	}
	return &Hasher{params: params, ciphers: ciphers}, nil
}

// keyedDigest runs AES-128 in a simple two-block compression over a
// 32-byte input, XORing the two block outputs together. It is not a
// general-purpose MAC; it only needs to be a PRF over a fixed 32-byte
// domain, keyed independently per hash table.
func (h *Hasher) keyedDigest(k int, v []byte) [16]byte {
	cipher := h.ciphers[k]
	var out, block0, block1 [16]byte
	cipher.Encrypt(block0[:], v[:16])
	cipher.Encrypt(block1[:], v[16:32])
	for i := range out {
		out[i] = block0[i] ^ block1[i]
	}
	return out
}

// RowIndex computes h_k(v) mod HTSize for hash table k.
func (h *Hasher) RowIndex(k int, v Item) uint32 {
	d := h.keyedDigest(k, v[:])
	n := binary.LittleEndian.Uint64(d[:8])
	return uint32(n % uint64(h.params.HTSize))
}

// TableIndices returns the row index in each of the H tables for item v.
func (h *Hasher) TableIndices(v Item) []uint32 {
	out := make([]uint32, len(h.ciphers))
	for k := range h.ciphers {
		out[k] = h.RowIndex(k, v)
	}
	return out
}

const maxEncodeAttempts = 8

// EncodeItem chunks a 256-bit value into PSIPtSlots field elements of
// ChunkBits bits each, low-first, rejecting any encoding that lands on
// the reserved empty sentinel (0) or the reserved filler range
// [P-(EvalDegree+1), P). On a forbidden encoding it re-hashes the value
// with a domain-separation tag and retries, bounded by maxEncodeAttempts.
func (h *Hasher) EncodeItem(v [32]byte) ([]uint64, error) {
	return h.encode(v, "item")
}

// EncodeLabel is the identical chunker applied to a label's 32 bytes.
func (h *Hasher) EncodeLabel(v [32]byte) ([]uint64, error) {
	return h.encode(v, "label")
}

func (h *Hasher) encode(v [32]byte, domain string) ([]uint64, error) {
	p := h.params
	cur := v
	for attempt := 0; attempt < maxEncodeAttempts; attempt++ {
		chunks := chunkBits(cur, p.PSIPtSlots, p.ChunkBits)
		if encodingOK(chunks, p) {
			return chunks, nil
		}
		cur = domainSeparate(cur, domain, attempt)
	}
	return nil, newErr(KindInputEncoding, fmt.Sprintf("could not find a valid %s encoding after %d attempts", domain, maxEncodeAttempts), nil)
}

func encodingOK(chunks []uint64, p *Params) bool {
	fillerStart := p.FillerStart()
	for _, c := range chunks {
		if c == 0 || c >= fillerStart {
			return false
		}
	}
	return true
}

func domainSeparate(v [32]byte, domain string, attempt int) [32]byte {
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write([]byte{byte(attempt)})
	h.Write(v[:])
	sum := h.Sum(nil)
	var out [32]byte
	copy(out[:], sum)
	return out
}

// DecodeLabelChunks is the inverse of EncodeLabel's chunker: it packs
// PSIPtSlots field elements of ChunkBits bits each back into a 256-bit
// label, low-first. It reports ok=false if any chunk is the reserved
// empty sentinel (0), since that means the slot was never written by
// the server — not a genuine label hit.
func (h *Hasher) DecodeLabelChunks(chunks []uint64) (Label, bool) {
	var out Label
	bitPos := uint32(0)
	for _, c := range chunks {
		if c == 0 {
			return Label{}, false
		}
		packBits(&out, bitPos, h.params.ChunkBits, c)
		bitPos += h.params.ChunkBits
	}
	return out, true
}

func packBits(out *[32]byte, start, width uint32, value uint64) {
	for i := uint32(0); i < width; i++ {
		bitIdx := start + i
		byteIdx := bitIdx / 8
		if byteIdx >= 32 {
			break
		}
		bit := byte((value >> i) & 1)
		out[byteIdx] |= bit << (bitIdx % 8)
	}
}

// chunkBits splits v's 256 bits, interpreted little-endian, into
// nChunks pieces of chunkBits bits each, low-first.
func chunkBits(v [32]byte, nChunks, chunkBits uint32) []uint64 {
	out := make([]uint64, nChunks)
	bitPos := uint32(0)
	for i := uint32(0); i < nChunks; i++ {
		out[i] = extractBits(v, bitPos, chunkBits)
		bitPos += chunkBits
	}
	return out
}

// extractBits reads width bits starting at bit offset start (LSB-first
// across the 32-byte little-endian value) and returns them as a uint64.
func extractBits(v [32]byte, start, width uint32) uint64 {
	var result uint64
	for i := uint32(0); i < width; i++ {
		bitIdx := start + i
		byteIdx := bitIdx / 8
		if byteIdx >= 32 {
			break
		}
		bit := (v[byteIdx] >> (bitIdx % 8)) & 1
		result |= uint64(bit) << i
	}
	return result
}
