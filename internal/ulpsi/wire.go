package ulpsi

import (
	"bytes"
	"encoding/binary"
	"io"

	"github.com/Janmajayamall/ulpsi/internal/fhe"
)

// Wire format: a length-prefixed record of primitive integers
// followed by the H hash keys, per spec.md §6. Ciphertexts use
// lattigo's own binary encoding (internal/fhe.MarshalCiphertext),
// each prefixed with a uint32 byte length the way the original
// implementation's serialize.rs chunks a ciphertext stream, adapted
// from length-prefixed scanning to explicit length fields since Go's
// decoder has no fixed "ciphertext size" constant to chunk by.

// MarshalParams serializes Params to the wire format spec.md §6
// describes.
func MarshalParams(p *Params) []byte {
	var buf bytes.Buffer
	writeU32(&buf, p.H)
	writeU32(&buf, p.HTSize)
	writeU32(&buf, p.ChunkBits)
	writeU32(&buf, p.PSIPtSlots)
	writeU32(&buf, p.CTSlots)
	writeU32(&buf, p.EvalDegree)
	writeU64(&buf, p.P)
	writeU32(&buf, p.BFVLogDegree)

	writeU32(&buf, uint32(len(p.SrcPowers)))
	for _, sp := range p.SrcPowers {
		writeU32(&buf, sp)
	}

	writeU32(&buf, uint32(len(p.BFVModuliBits)))
	for _, m := range p.BFVModuliBits {
		writeU32(&buf, uint32(m))
	}

	writeU32(&buf, uint32(len(p.HashKeys)))
	for _, k := range p.HashKeys {
		buf.Write(k[:])
	}

	return buf.Bytes()
}

// UnmarshalParams is the inverse of MarshalParams.
func UnmarshalParams(data []byte) (*Params, error) {
	r := bytes.NewReader(data)
	p := &Params{}

	var err error
	if p.H, err = readU32(r); err != nil {
		return nil, wireErr(err)
	}
	if p.HTSize, err = readU32(r); err != nil {
		return nil, wireErr(err)
	}
	if p.ChunkBits, err = readU32(r); err != nil {
		return nil, wireErr(err)
	}
	if p.PSIPtSlots, err = readU32(r); err != nil {
		return nil, wireErr(err)
	}
	if p.CTSlots, err = readU32(r); err != nil {
		return nil, wireErr(err)
	}
	if p.EvalDegree, err = readU32(r); err != nil {
		return nil, wireErr(err)
	}
	if p.P, err = readU64(r); err != nil {
		return nil, wireErr(err)
	}
	if p.BFVLogDegree, err = readU32(r); err != nil {
		return nil, wireErr(err)
	}

	nSrc, err := readU32(r)
	if err != nil {
		return nil, wireErr(err)
	}
	p.SrcPowers = make([]uint32, nSrc)
	for i := range p.SrcPowers {
		if p.SrcPowers[i], err = readU32(r); err != nil {
			return nil, wireErr(err)
		}
	}

	nModuli, err := readU32(r)
	if err != nil {
		return nil, wireErr(err)
	}
	p.BFVModuliBits = make([]int, nModuli)
	for i := range p.BFVModuliBits {
		m, err := readU32(r)
		if err != nil {
			return nil, wireErr(err)
		}
		p.BFVModuliBits[i] = int(m)
	}

	nKeys, err := readU32(r)
	if err != nil {
		return nil, wireErr(err)
	}
	p.HashKeys = make([][16]byte, nKeys)
	for i := range p.HashKeys {
		if _, err := io.ReadFull(r, p.HashKeys[i][:]); err != nil {
			return nil, wireErr(err)
		}
	}

	return p, nil
}

// MarshalQuery serializes a Query as [H][segments][srcPowers] length
// prefixed ciphertexts, in that nesting order.
func MarshalQuery(q *Query) ([]byte, error) {
	var buf bytes.Buffer
	writeU32(&buf, uint32(len(q.Tables)))
	for _, segments := range q.Tables {
		writeU32(&buf, uint32(len(segments)))
		for _, sq := range segments {
			writeU32(&buf, uint32(len(sq)))
			for _, ct := range sq {
				b, err := fhe.MarshalCiphertext(ct)
				if err != nil {
					return nil, newErr(KindTransport, "marshaling query ciphertext", err)
				}
				writeU32(&buf, uint32(len(b)))
				buf.Write(b)
			}
		}
	}
	return buf.Bytes(), nil
}

// UnmarshalQuery is the inverse of MarshalQuery, binding ciphertexts
// to fheParams.
func UnmarshalQuery(data []byte, fheParams *fhe.Params) (*Query, error) {
	r := bytes.NewReader(data)
	nTables, err := readU32(r)
	if err != nil {
		return nil, wireErr(err)
	}
	q := &Query{Tables: make([][]SegmentQuery, nTables)}
	for k := range q.Tables {
		nSeg, err := readU32(r)
		if err != nil {
			return nil, wireErr(err)
		}
		q.Tables[k] = make([]SegmentQuery, nSeg)
		for s := range q.Tables[k] {
			nPow, err := readU32(r)
			if err != nil {
				return nil, wireErr(err)
			}
			sq := make(SegmentQuery, nPow)
			for i := range sq {
				ctLen, err := readU32(r)
				if err != nil {
					return nil, wireErr(err)
				}
				b := make([]byte, ctLen)
				if _, err := io.ReadFull(r, b); err != nil {
					return nil, wireErr(err)
				}
				ct, err := fhe.UnmarshalCiphertext(b, fheParams)
				if err != nil {
					return nil, newErr(KindTransport, "unmarshaling query ciphertext", err)
				}
				sq[i] = ct
			}
			q.Tables[k][s] = sq
		}
	}
	return q, nil
}

// MarshalResponse serializes a Response as [H][segments] length
// prefixed ciphertexts, the same nesting MarshalQuery uses — one
// ciphertext per (table, segment), never folded across tables (see
// Response's doc comment).
func MarshalResponse(resp *Response) ([]byte, error) {
	var buf bytes.Buffer
	writeU32(&buf, uint32(len(resp.Tables)))
	for _, segments := range resp.Tables {
		writeU32(&buf, uint32(len(segments)))
		for _, ct := range segments {
			b, err := fhe.MarshalCiphertext(ct)
			if err != nil {
				return nil, newErr(KindTransport, "marshaling response ciphertext", err)
			}
			writeU32(&buf, uint32(len(b)))
			buf.Write(b)
		}
	}
	return buf.Bytes(), nil
}

// UnmarshalResponse is the inverse of MarshalResponse.
func UnmarshalResponse(data []byte, fheParams *fhe.Params) (*Response, error) {
	r := bytes.NewReader(data)
	nTables, err := readU32(r)
	if err != nil {
		return nil, wireErr(err)
	}
	resp := &Response{Tables: make([][]fhe.Ciphertext, nTables)}
	for k := range resp.Tables {
		nSeg, err := readU32(r)
		if err != nil {
			return nil, wireErr(err)
		}
		resp.Tables[k] = make([]fhe.Ciphertext, nSeg)
		for i := range resp.Tables[k] {
			ctLen, err := readU32(r)
			if err != nil {
				return nil, wireErr(err)
			}
			b := make([]byte, ctLen)
			if _, err := io.ReadFull(r, b); err != nil {
				return nil, wireErr(err)
			}
			ct, err := fhe.UnmarshalCiphertext(b, fheParams)
			if err != nil {
				return nil, newErr(KindTransport, "unmarshaling response ciphertext", err)
			}
			resp.Tables[k][i] = ct
		}
	}
	return resp, nil
}

// MarshalServingLayout serializes a frozen ServingLayout's coefficient
// tiles to the format spec.md §6 calls serving_layout.bin — everything
// needed to resume serving without rebuilding from the raw item/label
// set, which preprocessing never keeps around afterward. Params travel
// in a separate params.bin (MarshalParams); this record only carries
// the ingested item count, shape (BigBox/Segment/InnerBox counts) and
// the coeffs tiles.
func MarshalServingLayout(layout *ServingLayout) []byte {
	var buf bytes.Buffer
	writeU32(&buf, uint32(layout.size))
	writeU32(&buf, uint32(len(layout.BigBoxes)))
	for _, bb := range layout.BigBoxes {
		writeU32(&buf, uint32(bb.NumSegments()))
		for s := 0; s < bb.NumSegments(); s++ {
			seg := bb.Segment(s)
			writeU32(&buf, uint32(len(seg.innerBoxes)))
			for _, ib := range seg.innerBoxes {
				writeU32(&buf, uint32(len(ib.coeffs)))
				for _, row := range ib.coeffs {
					writeU32(&buf, uint32(len(row)))
					for _, c := range row {
						writeU64(&buf, c)
					}
				}
			}
		}
	}
	return buf.Bytes()
}

// UnmarshalServingLayout is the inverse of MarshalServingLayout, binding
// the reconstructed layout to params.
func UnmarshalServingLayout(data []byte, params *Params) (*ServingLayout, error) {
	r := bytes.NewReader(data)
	size, err := readU32(r)
	if err != nil {
		return nil, wireErr(err)
	}
	nBoxes, err := readU32(r)
	if err != nil {
		return nil, wireErr(err)
	}

	bigBoxes := make([]*BigBox, nBoxes)
	for k := range bigBoxes {
		nSeg, err := readU32(r)
		if err != nil {
			return nil, wireErr(err)
		}
		segments := make([]*Segment, nSeg)
		for s := range segments {
			nIB, err := readU32(r)
			if err != nil {
				return nil, wireErr(err)
			}
			boxes := make([]*InnerBox, nIB)
			for i := range boxes {
				nRows, err := readU32(r)
				if err != nil {
					return nil, wireErr(err)
				}
				coeffs := make([][]uint64, nRows)
				for row := range coeffs {
					nCols, err := readU32(r)
					if err != nil {
						return nil, wireErr(err)
					}
					coeffs[row] = make([]uint64, nCols)
					for c := range coeffs[row] {
						if coeffs[row][c], err = readU64(r); err != nil {
							return nil, wireErr(err)
						}
					}
				}
				boxes[i] = NewInnerBoxFromCoeffs(params, coeffs)
			}
			segments[s] = newSegmentFromInnerBoxes(params, boxes)
		}
		bigBoxes[k] = newBigBoxFromSegments(k, params, segments)
	}

	return &ServingLayout{Params: params, BigBoxes: bigBoxes, size: int(size)}, nil
}

func writeU32(buf *bytes.Buffer, v uint32) {
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], v)
	buf.Write(b[:])
}

func writeU64(buf *bytes.Buffer, v uint64) {
	var b [8]byte
	binary.LittleEndian.PutUint64(b[:], v)
	buf.Write(b[:])
}

func readU32(r *bytes.Reader) (uint32, error) {
	var b [4]byte
	if _, err := io.ReadFull(r, b[:]); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(b[:]), nil
}

func readU64(r *bytes.Reader) (uint64, error) {
	var b [8]byte
	if _, err := io.ReadFull(r, b[:]); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint64(b[:]), nil
}

func wireErr(err error) error {
	return newErr(KindTransport, "short or malformed wire record", err)
}
