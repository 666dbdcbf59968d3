// Package ulpsiclient is a thin, optional collaborator: the core
// query-processing engine (internal/ulpsi) only assumes a wire
// contract, but a concrete client still needs to place its items into
// the same cuckoo layout the server expects, assemble SRC_POWERS
// ciphertexts for every segment, and pull labels back out of
// a decrypted response. This package does that, grounded on the
// eviction scheme the original reference implementation's hash
// construction uses.
package ulpsiclient

import (
	"fmt"

	"github.com/Janmajayamall/ulpsi/internal/fhe"
	"github.com/Janmajayamall/ulpsi/internal/ulpsi"
)

// maxEvictionAttempts bounds cuckoo placement per spec.md's
// CuckooFailure error kind.
const maxEvictionAttempts = 500

// placement is one client item mid-insertion: which of the H tables it
// is currently trying, cycling on collision.
type placement struct {
	item     ulpsi.Item
	tableTry int
}

// HashTables is the client's mirror of the server's BigBoxes: H maps
// from row index to the item occupying that row.
type HashTables struct {
	params *ulpsi.Params
	hasher *ulpsi.Hasher
	tables []map[uint32]ulpsi.Item
}

// NewHashTables allocates H empty tables.
func NewHashTables(params *ulpsi.Params) (*HashTables, error) {
	hasher, err := ulpsi.NewHasher(params)
	if err != nil {
		return nil, err
	}
	tables := make([]map[uint32]ulpsi.Item, params.H)
	for k := range tables {
		tables[k] = make(map[uint32]ulpsi.Item)
	}
	return &HashTables{params: params, hasher: hasher, tables: tables}, nil
}

// Insert places every item in items into the cuckoo tables, evicting
// on collision. It returns the items that failed placement within
// maxEvictionAttempts; per spec.md this is a CuckooFailure, not a
// fatal error — callers decide whether to drop those items from the
// query or abort.
//
// The eviction walk mirrors the reference implementation's
// construct_hash_tables: an item tries its current table's row; if
// occupied, the row's incumbent is evicted and must try its next
// table in turn, cycling through the H tables until the displaced item
// finds a free row or maxEvictionAttempts placements have been made;
// in the latter case the item still displaced at that point is
// reported as failed.
func (h *HashTables) Insert(items []ulpsi.Item) ([]ulpsi.Item, error) {
	var failed []ulpsi.Item
	for _, start := range items {
		cur := placement{item: start, tableTry: 0}
		placed := false

		for attempt := 0; attempt < maxEvictionAttempts; attempt++ {
			k := cur.tableTry % int(h.params.H)
			row := h.hasher.RowIndex(k, cur.item)

			incumbent, occupied := h.tables[k][row]
			h.tables[k][row] = cur.item
			if !occupied {
				placed = true
				break
			}

			cur.item = incumbent
			cur.tableTry++
		}
		if !placed {
			failed = append(failed, cur.item)
		}
	}

	return failed, nil
}

// Row looks up which row, if any, table k holds item at (for building
// a query, the client always knows this from its own insertion).
func (h *HashTables) Row(k int, item ulpsi.Item) (uint32, bool) {
	row := h.hasher.RowIndex(k, item)
	v, ok := h.tables[k][row]
	return row, ok && v == item
}

// BuildQuery encodes this client's cuckoo tables into ulpsi.Query
// ciphertexts: one SegmentQuery per (table, segment), each holding a
// single degree-1 encryption of the encoded occupant items (zero in
// unoccupied slots). Raising it to the remaining SrcPowers exponents
// is a separate step (ExpandQueryPowers), since whether SRC_POWERS
// ciphertexts are computed client-side or supplied precomputed is a
// deployment choice spec.md leaves open.
func (h *HashTables) BuildQuery(enc fhe.Encoder, encryptor fhe.Encryptor) (*ulpsi.Query, error) {
	params := h.params
	numSegments := int(params.Segments())
	segRows := int(params.SegRows())

	tables := make([][]ulpsi.SegmentQuery, params.H)
	for k := 0; k < int(params.H); k++ {
		tables[k] = make([]ulpsi.SegmentQuery, numSegments)
		for seg := 0; seg < numSegments; seg++ {
			slots := make([]uint64, params.CTSlots)
			for row, item := range h.tables[k] {
				segIdx := int(row) / segRows
				if segIdx != seg {
					continue
				}
				logicalRow := int(row) % segRows
				chunks, err := h.hasher.EncodeItem(item)
				if err != nil {
					return nil, fmt.Errorf("encoding query item: %w", err)
				}
				start := logicalRow * int(params.PSIPtSlots)
				for i, c := range chunks {
					slots[start+i] = c
				}
			}
			ct := encryptor.Encrypt(enc.EncodeQuerySlots(slots))
			// Only the degree-1 power is assembled here; raising to
			// the remaining SrcPowers is the caller's responsibility.
			tables[k][seg] = ulpsi.SegmentQuery{ct}
		}
	}

	return &ulpsi.Query{Tables: tables}, nil
}

// DecodeResponse decrypts the response ciphertext for every table the
// client actually placed item in (not every table it merely hashes
// into — Row reports whether this client's own insertion landed item
// at its predicted row in table k) and extracts the label chunks at
// that row. Skipping tables the item was never placed in matters: the
// server response is unfolded per table (see ulpsi.Response's doc
// comment), and decoding a table the client didn't place the item in
// would read another occupant's label entirely. The caller still must
// check the returned label against whatever secondary validation
// distinguishes a true hit from an (overwhelmingly unlikely)
// collision, per spec.md invariant I4 — this package does not perform
// that check.
func (h *HashTables) DecodeResponse(resp *ulpsi.Response, dec fhe.Decryptor, enc fhe.Encoder, item ulpsi.Item) ([]ulpsi.Label, error) {
	params := h.params
	segRows := int(params.SegRows())

	var candidates []ulpsi.Label
	for k := 0; k < int(params.H); k++ {
		row, placed := h.Row(k, item)
		if !placed {
			continue
		}
		if k >= len(resp.Tables) {
			return nil, fmt.Errorf("response missing table %d", k)
		}
		segIdx := int(row) / segRows
		logicalRow := int(row) % segRows
		if segIdx >= len(resp.Tables[k]) {
			return nil, fmt.Errorf("response table %d missing segment %d", k, segIdx)
		}

		pt := dec.Decrypt(resp.Tables[k][segIdx])
		slots := enc.Decode(pt)
		start := logicalRow * int(params.PSIPtSlots)
		chunks := slots[start : start+int(params.PSIPtSlots)]

		label, ok := h.hasher.DecodeLabelChunks(chunks)
		if ok {
			candidates = append(candidates, label)
		}
	}
	return candidates, nil
}
