package ulpsi

import "testing"

func TestSegmentInsertGrowsInnerBoxesOnFull(t *testing.T) {
	params := testParams()
	seg := newSegment(params)
	cols := int(params.EvalDegree) + 1

	for j := 0; j < cols; j++ {
		seg.Insert(0, chunksOf(params, uint64(j+1)*10), chunksOf(params, 1))
	}
	if len(seg.innerBoxes) != 1 {
		t.Fatalf("segment should still have 1 InnerBox after filling it exactly, got %d", len(seg.innerBoxes))
	}

	// One more insert at the same logical row must grow a fresh InnerBox.
	seg.Insert(0, chunksOf(params, 999), chunksOf(params, 1))
	if len(seg.innerBoxes) != 2 {
		t.Fatalf("segment should have grown a second InnerBox, got %d", len(seg.innerBoxes))
	}
}

func TestBigBoxInsertRoutesByRow(t *testing.T) {
	params := testParams()
	bb := NewBigBox(0, params)

	rowIndex := uint32(5) // segRows=2 => segment 2, logical row 1
	bb.Insert(chunksOf(params, 7), chunksOf(params, 70), rowIndex)

	segIdx := int(rowIndex / params.SegRows())
	seg := bb.Segment(segIdx)
	if len(seg.innerBoxes) != 1 {
		t.Fatalf("expected exactly one InnerBox in the target segment, got %d", len(seg.innerBoxes))
	}
	logicalRow := int(rowIndex % params.SegRows())
	status := seg.innerBoxes[0].CanInsert(logicalRow, chunksOf(params, 7))
	if status != ChunkCollision {
		t.Fatalf("expected the just-inserted item to now collide on re-check, got %v", status)
	}

	// Every other segment must remain untouched.
	for i, other := range bb.segments {
		if i == segIdx {
			continue
		}
		if len(other.innerBoxes) != 1 || other.innerBoxes[0].rows[0].currCols != 0 {
			t.Fatalf("segment %d should be untouched", i)
		}
	}
}

func TestBigBoxDiagnoseAfterFreeze(t *testing.T) {
	params := testParams()
	bb := NewBigBox(0, params)
	bb.Insert(chunksOf(params, 7), chunksOf(params, 70), 3)
	bb.Freeze()

	d := bb.Diagnose()
	if d.NumSegments != int(params.Segments()) {
		t.Fatalf("Diagnose reports %d segments, want %d", d.NumSegments, params.Segments())
	}
	if d.ColumnsPerIB != int(params.EvalDegree)+1 {
		t.Fatalf("Diagnose reports %d columns, want %d", d.ColumnsPerIB, params.EvalDegree+1)
	}
}
