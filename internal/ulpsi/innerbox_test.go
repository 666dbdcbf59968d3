package ulpsi

import "testing"

func chunksOf(params *Params, fill uint64) []uint64 {
	out := make([]uint64, params.PSIPtSlots)
	for i := range out {
		out[i] = fill + uint64(i)
	}
	return out
}

func TestTryInsertFillsColumnsInOrder(t *testing.T) {
	params := testParams()
	ib := NewInnerBox(params)

	col, status := ib.TryInsert(0, chunksOf(params, 1), chunksOf(params, 100))
	if status != Inserted || col != 0 {
		t.Fatalf("first insert: got (col=%d, status=%v), want (0, Inserted)", col, status)
	}
	col, status = ib.TryInsert(0, chunksOf(params, 10), chunksOf(params, 200))
	if status != Inserted || col != 1 {
		t.Fatalf("second insert: got (col=%d, status=%v), want (1, Inserted)", col, status)
	}
}

func TestTryInsertFullAfterAllColumns(t *testing.T) {
	params := testParams()
	ib := NewInnerBox(params)
	cols := int(params.EvalDegree) + 1
	for j := 0; j < cols; j++ {
		if _, status := ib.TryInsert(0, chunksOf(params, uint64(j+1)*10), chunksOf(params, 1)); status != Inserted {
			t.Fatalf("insert %d should succeed, got %v", j, status)
		}
	}
	if _, status := ib.TryInsert(0, chunksOf(params, 999), chunksOf(params, 1)); status != Full {
		t.Fatalf("logical row should be Full, got %v", status)
	}
}

func TestTryInsertChunkCollision(t *testing.T) {
	params := testParams()
	ib := NewInnerBox(params)
	itemA := chunksOf(params, 1)
	if _, status := ib.TryInsert(0, itemA, chunksOf(params, 1)); status != Inserted {
		t.Fatalf("first insert should succeed, got %v", status)
	}
	// itemA reused verbatim: every chunk would collide on its real row.
	if _, status := ib.TryInsert(0, itemA, chunksOf(params, 2)); status != ChunkCollision {
		t.Fatalf("duplicate item should be ChunkCollision, got %v", status)
	}
}

func TestTryInsertIndependentLogicalRows(t *testing.T) {
	params := testParams()
	ib := NewInnerBox(params)
	item := chunksOf(params, 1)
	if _, status := ib.TryInsert(0, item, chunksOf(params, 1)); status != Inserted {
		t.Fatalf("insert at row 0 should succeed, got %v", status)
	}
	// Same chunk values at a different logical row must not collide —
	// chunkSeen is keyed per real row, and real rows differ across
	// logical rows.
	if _, status := ib.TryInsert(1, item, chunksOf(params, 2)); status != Inserted {
		t.Fatalf("insert at row 1 with identical chunks should succeed, got %v", status)
	}
}

// TestInterpolateReconstructsLabels exercises invariant I3: evaluating
// the reconstructed polynomial at an occupied column's x-value
// reproduces the paired label chunk.
func TestInterpolateReconstructsLabels(t *testing.T) {
	params := testParams()
	ib := NewInnerBox(params)

	type entry struct{ item, label []uint64 }
	var entries []entry
	for j := 0; j < int(params.EvalDegree); j++ {
		item := chunksOf(params, uint64(j+1)*3)
		label := chunksOf(params, uint64(j+1)*5)
		if _, status := ib.TryInsert(0, item, label); status != Inserted {
			t.Fatalf("insert %d failed: %v", j, status)
		}
		entries = append(entries, entry{item, label})
	}

	ib.Interpolate()

	realRowStart := 0
	for i := 0; i < int(params.PSIPtSlots); i++ {
		realRow := realRowStart + i
		coeffs := ib.coeffs[realRow]
		for _, e := range entries {
			x := e.item[i]
			want := e.label[i]
			got := evaluatePoly(x, coeffs, params.P)
			if got != want {
				t.Fatalf("real row %d: eval(coeffs, %d) = %d, want %d", realRow, x, got, want)
			}
		}
	}
}

func TestInterpolateEmptyRowIsZeroPolynomial(t *testing.T) {
	params := testParams()
	ib := NewInnerBox(params)
	ib.Interpolate()
	for _, c := range ib.coeffs[0] {
		if c != 0 {
			t.Fatalf("untouched logical row should interpolate to the zero polynomial, got coefficient %d", c)
		}
	}
}

func TestCoeffColumnLength(t *testing.T) {
	params := testParams()
	ib := NewInnerBox(params)
	ib.Interpolate()
	col := ib.CoeffColumn(0)
	if len(col) != int(params.CTSlots) {
		t.Fatalf("CoeffColumn length = %d, want %d", len(col), params.CTSlots)
	}
}
