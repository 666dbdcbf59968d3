package ulpsi

import (
	"math/rand"
	"testing"
)

func TestBuildRejectsDuplicateItem(t *testing.T) {
	pp, err := NewPreprocessor(testParams())
	if err != nil {
		t.Fatalf("NewPreprocessor: %v", err)
	}
	item := randItem(rand.New(rand.NewSource(1)))
	pairs := []ItemLabel{
		{Item: item, Label: Label{1}},
		{Item: item, Label: Label{2}},
	}
	if _, err := pp.Build(pairs); err == nil {
		t.Fatal("expected an error for a duplicate item")
	} else if KindOf(err) != KindInputEncoding {
		t.Fatalf("expected KindInputEncoding, got %v", KindOf(err))
	}
}

// TestBuildReconstructsEveryLabel is a plaintext-domain check of
// invariants I1 and I3 together: every server item, looked up in the
// hash table its own row indices predict, must land in an InnerBox
// whose interpolated polynomials reproduce the label there.
func TestBuildReconstructsEveryLabel(t *testing.T) {
	params := testParams()
	pp, err := NewPreprocessor(params)
	if err != nil {
		t.Fatalf("NewPreprocessor: %v", err)
	}
	hasher, err := NewHasher(params)
	if err != nil {
		t.Fatalf("NewHasher: %v", err)
	}

	r := rand.New(rand.NewSource(7))
	n := 50
	pairs := make([]ItemLabel, n)
	seen := map[Item]bool{}
	for i := 0; i < n; i++ {
		var item Item
		for {
			item = Item(randItem(r))
			if !seen[item] {
				seen[item] = true
				break
			}
		}
		pairs[i] = ItemLabel{Item: item, Label: Label(randItem(r))}
	}

	layout, err := pp.Build(pairs)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if layout.Size() != n {
		t.Fatalf("layout.Size() = %d, want %d", layout.Size(), n)
	}

	for _, pair := range pairs {
		itemChunks, err := hasher.EncodeItem(pair.Item)
		if err != nil {
			t.Fatalf("EncodeItem: %v", err)
		}
		labelChunks, err := hasher.EncodeLabel(pair.Label)
		if err != nil {
			t.Fatalf("EncodeLabel: %v", err)
		}

		// BigBox.Insert, unlike the client's cuckoo table, never evicts:
		// every item is placed in every one of the H tables at its
		// predicted row, so the reconstruction must succeed in all H,
		// not merely in one.
		for k := 0; k < int(params.H); k++ {
			row := hasher.RowIndex(k, pair.Item)
			segIdx := int(row / params.SegRows())
			logicalRow := int(row % params.SegRows())
			seg := layout.BigBoxes[k].Segment(segIdx)

			found := false
			for _, ib := range seg.innerBoxes {
				realRowStart := logicalRow * int(params.PSIPtSlots)
				ok := true
				for i := range itemChunks {
					realRow := realRowStart + i
					x := itemChunks[i]
					got := evaluatePoly(x, ib.coeffs[realRow], params.P)
					if got != labelChunks[i] {
						ok = false
						break
					}
				}
				if ok {
					found = true
					break
				}
			}
			if !found {
				t.Fatalf("item %x: table %d did not reproduce its label", pair.Item, k)
			}
		}
	}
}
