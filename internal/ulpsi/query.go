package ulpsi

import (
	"fmt"
	"sync"

	"github.com/Janmajayamall/ulpsi/internal/fhe"
)

// EncodedLayout is a ServingLayout with every InnerBox coefficient
// column SIMD-encoded once, ready for repeated plaintext-ciphertext
// multiplication at query time. Encoding a CTSlots-length column is
// not free, so this is done once after Preprocessor.Build, not per
// query.
type EncodedLayout struct {
	params *Params
	// tables[k][seg][ib] is the encoded column tile for one InnerBox.
	tables [][][]encodedInnerBox
}

type encodedInnerBox struct {
	columns []fhe.Plaintext // length EvalDegree+1; columns[0] is the constant term
}

// EncodeLayout SIMD-encodes every coefficient column of every InnerBox
// in the layout.
func EncodeLayout(layout *ServingLayout, enc fhe.Encoder) *EncodedLayout {
	el := &EncodedLayout{params: layout.Params, tables: make([][][]encodedInnerBox, len(layout.BigBoxes))}
	for k, bb := range layout.BigBoxes {
		el.tables[k] = make([][]encodedInnerBox, bb.NumSegments())
		for s := 0; s < bb.NumSegments(); s++ {
			seg := bb.Segment(s)
			boxes := make([]encodedInnerBox, len(seg.innerBoxes))
			for i, ib := range seg.innerBoxes {
				cols := make([]fhe.Plaintext, ib.Columns())
				for j := range cols {
					cols[j] = enc.EncodeCoeffColumn(ib.CoeffColumn(j))
				}
				boxes[i] = encodedInnerBox{columns: cols}
			}
			el.tables[k][s] = boxes
		}
	}
	return el
}

// SegmentQuery holds one ciphertext per SrcPowers exponent, raised by
// the client over its cuckoo-hashed, chunk-encoded items for a single
// (BigBox, Segment) slot window.
type SegmentQuery []fhe.Ciphertext

// Query is one SegmentQuery per Segment for every BigBox — the wire
// contract of spec.md §6.
type Query struct {
	Tables [][]SegmentQuery // [H][Segments]
}

// Response holds one evaluated ciphertext per (BigBox, Segment) — H *
// HTSize/SegRows ciphertexts total. Earlier revisions folded (summed)
// the H BigBox results into a single per-segment ciphertext, matching
// spec.md §4.5 step 3's literal wording; that fold is only sound when
// every non-matching table's row at a given (segment, logical-row)
// coordinate is empty, which is false once the server set is large
// enough to occupy all H BigBoxes densely. Left unfolded here, the
// way original_source/psi/src/server/db.rs's Db::handle_query returns
// per-table responses, so the client only ever decodes the one table
// it actually placed an item in (see ulpsiclient.HashTables.DecodeResponse).
type Response struct {
	Tables [][]fhe.Ciphertext // [H][Segments]
}

// Engine answers queries against a frozen EncodedLayout. It holds no
// per-query mutable state: everything but the ciphertext temporaries
// of one request is shared, read-only, and safe to use concurrently
// across requests.
type Engine struct {
	layout    *EncodedLayout
	dag       *PowerDAG
	eval      fhe.Evaluator
	relinKeys fhe.RelinKeys
}

// NewEngine builds a query engine around an already-encoded layout.
func NewEngine(layout *EncodedLayout, eval fhe.Evaluator, relinKeys fhe.RelinKeys) *Engine {
	return &Engine{
		layout:    layout,
		dag:       BuildPowerDAG(layout.params.SrcPowers, layout.params.EvalDegree),
		eval:      eval,
		relinKeys: relinKeys,
	}
}

// Serve validates the query shape, expands source powers into the
// full target-power set, and evaluates each (BigBox, Segment)'s
// polynomial independently — one response ciphertext per table per
// segment, never summed across tables (see Response's doc comment for
// why). constOne is a trivial encryption of the all-ones plaintext
// under the querying client's public key, standing in for x^0 — see
// fhe.Encryptor.EncryptOnes.
func (e *Engine) Serve(q *Query, constOne fhe.Ciphertext) (*Response, error) {
	params := e.layout.params
	if len(q.Tables) != int(params.H) {
		return nil, newErr(KindTransport, fmt.Sprintf("query has %d hash tables, want %d", len(q.Tables), params.H), nil)
	}
	numSegments := int(params.Segments())

	tables := make([][]fhe.Ciphertext, params.H)
	for k := range tables {
		tables[k] = make([]fhe.Ciphertext, numSegments)
	}

	var wg sync.WaitGroup
	errCh := make(chan error, int(params.H)*numSegments)

	for k := 0; k < int(params.H); k++ {
		for seg := 0; seg < numSegments; seg++ {
			if seg >= len(q.Tables[k]) {
				return nil, newErr(KindTransport, fmt.Sprintf("hash table %d missing segment %d", k, seg), nil)
			}
			wg.Add(1)
			go func(k, seg int) {
				defer wg.Done()
				ct, err := e.evaluateSegment(k, seg, q.Tables[k][seg], constOne)
				if err != nil {
					errCh <- err
					return
				}
				tables[k][seg] = ct
			}(k, seg)
		}
	}
	wg.Wait()
	close(errCh)
	if err := <-errCh; err != nil {
		return nil, err
	}

	return &Response{Tables: tables}, nil
}

// evaluateSegment computes the response ciphertext for one (BigBox,
// Segment): expand SrcPowers to every power in [1,EvalDegree], then
// sum coeffs[:,j]*x^j across every InnerBox in the segment.
func (e *Engine) evaluateSegment(k, seg int, srcCts SegmentQuery, constOne fhe.Ciphertext) (fhe.Ciphertext, error) {
	params := e.layout.params
	if len(srcCts) != len(params.SrcPowers) {
		return nil, newErr(KindTransport, fmt.Sprintf("segment query has %d power ciphertexts, want %d", len(srcCts), len(params.SrcPowers)), nil)
	}

	powers := make(map[uint32]fhe.Ciphertext, params.EvalDegree)
	for i, p := range params.SrcPowers {
		powers[p] = srcCts[i]
	}
	for _, target := range e.dag.Order() {
		s1, s2, ok := e.dag.Split(target)
		if !ok {
			return nil, newErr(KindInternal, fmt.Sprintf("power DAG missing split for %d", target), nil)
		}
		ct := e.eval.Mul(powers[s1], powers[s2], e.relinKeys)
		powers[target] = e.eval.ModSwitch(ct)
	}

	boxes := e.layout.tables[k][seg]
	var acc fhe.Ciphertext
	for _, ib := range boxes {
		for j, col := range ib.columns {
			xpower := constOne
			if j > 0 {
				xpower = powers[uint32(j)]
			}
			term := e.eval.MulPlain(xpower, col)
			if acc == nil {
				acc = term
			} else {
				acc = e.eval.Add(acc, term)
			}
		}
	}
	return acc, nil
}
