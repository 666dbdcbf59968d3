package ulpsi

import "sync"

// Segment is a horizontal strip of a BigBox covering SegRows
// consecutive rows, owning an ordered, append-only list of InnerBoxes.
type Segment struct {
	params     *Params
	innerBoxes []*InnerBox
}

func newSegment(params *Params) *Segment {
	return &Segment{
		params:     params,
		innerBoxes: []*InnerBox{NewInnerBox(params)},
	}
}

// Insert places item/label chunks at logicalRow, scanning existing
// InnerBoxes in order and appending a fresh one if none has room. A
// fresh InnerBox can never return Full, and ChunkCollision in a fresh
// box cannot occur because the row starts empty — insertion always
// makes progress.
func (s *Segment) Insert(logicalRow int, itemChunks, labelChunks []uint64) {
	for _, ib := range s.innerBoxes {
		if _, status := ib.TryInsert(logicalRow, itemChunks, labelChunks); status == Inserted {
			return
		}
	}
	fresh := NewInnerBox(s.params)
	fresh.TryInsert(logicalRow, itemChunks, labelChunks)
	s.innerBoxes = append(s.innerBoxes, fresh)
}

func (s *Segment) interpolate() {
	var wg sync.WaitGroup
	for _, ib := range s.innerBoxes {
		wg.Add(1)
		go func(ib *InnerBox) {
			defer wg.Done()
			ib.Interpolate()
		}(ib)
	}
	wg.Wait()
}

// newSegmentFromInnerBoxes rebuilds a Segment from already-interpolated
// InnerBoxes, for loading a ServingLayout back from disk.
func newSegmentFromInnerBoxes(params *Params, boxes []*InnerBox) *Segment {
	return &Segment{params: params, innerBoxes: boxes}
}

// BigBox is the server's mirror of one client cuckoo table: an
// unbounded-width hash table whose HTSize rows are partitioned into
// Segments of SegRows rows each.
type BigBox struct {
	id       int
	params   *Params
	segments []*Segment
}

// NewBigBox allocates the Segments array for hash table id; each
// Segment starts with a single, empty InnerBox.
func NewBigBox(id int, params *Params) *BigBox {
	bb := &BigBox{id: id, params: params}
	bb.segments = make([]*Segment, params.Segments())
	for i := range bb.segments {
		bb.segments[i] = newSegment(params)
	}
	return bb
}

// Insert places (item, label) at cuckoo row rowIndex = h_k(item) mod
// HTSize, delegating to the Segment that owns the row.
func (bb *BigBox) Insert(itemChunks, labelChunks []uint64, rowIndex uint32) {
	segRows := bb.params.SegRows()
	segIdx := int(rowIndex / segRows)
	logicalRow := int(rowIndex % segRows)
	bb.segments[segIdx].Insert(logicalRow, itemChunks, labelChunks)
}

// Freeze interpolates every InnerBox in every Segment. Segments are
// independent and processed concurrently; within a Segment, InnerBox
// interpolation is itself parallelized since it is pure and
// row-independent.
func (bb *BigBox) Freeze() {
	var wg sync.WaitGroup
	for _, seg := range bb.segments {
		wg.Add(1)
		go func(seg *Segment) {
			defer wg.Done()
			seg.interpolate()
		}(seg)
	}
	wg.Wait()
}

// newBigBoxFromSegments rebuilds a BigBox from already-interpolated
// Segments, for loading a ServingLayout back from disk.
func newBigBoxFromSegments(id int, params *Params, segments []*Segment) *BigBox {
	return &BigBox{id: id, params: params, segments: segments}
}

// Segment returns the i-th Segment of this BigBox.
func (bb *BigBox) Segment(i int) *Segment { return bb.segments[i] }

// NumSegments is the number of Segments owned by this BigBox.
func (bb *BigBox) NumSegments() int { return len(bb.segments) }

// Diagnosis summarizes a BigBox's shape for operational visibility —
// how lopsided the InnerBox growth was across Segments.
type Diagnosis struct {
	ID               int
	NumSegments      int
	InnerBoxesPerSeg []int
	ColumnsPerIB     int
}

// Diagnose returns a snapshot of this BigBox's current shape.
func (bb *BigBox) Diagnose() Diagnosis {
	d := Diagnosis{ID: bb.id, NumSegments: len(bb.segments)}
	d.InnerBoxesPerSeg = make([]int, len(bb.segments))
	for i, seg := range bb.segments {
		d.InnerBoxesPerSeg[i] = len(seg.innerBoxes)
	}
	if len(bb.segments) > 0 && len(bb.segments[0].innerBoxes) > 0 {
		d.ColumnsPerIB = bb.segments[0].innerBoxes[0].Columns()
	}
	return d
}
