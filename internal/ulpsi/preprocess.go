package ulpsi

import (
	"fmt"
	"sync"

	"github.com/schollz/progressbar/v3"
	"github.com/sirupsen/logrus"
)

// ServingLayout is the frozen, read-only output of preprocessing: one
// BigBox per hash table, ready to answer queries. It persists until a
// full rebuild; there is no incremental update path (spec.md §9c).
type ServingLayout struct {
	Params   *Params
	BigBoxes []*BigBox
	size     int
}

// Size is the number of distinct items ingested to build this layout.
func (l *ServingLayout) Size() int { return l.size }

// Preprocessor builds a ServingLayout from a server's (item, label)
// set. Log and progress reporting follow the bulk-ingestion convention
// used elsewhere in the corpus for million-row datasets: a logrus
// logger plus a progressbar tracking item count.
type Preprocessor struct {
	params *Params
	hasher *Hasher
	log    *logrus.Logger
}

// NewPreprocessor builds a Preprocessor bound to params, validating the
// parameter set up front.
func NewPreprocessor(params *Params) (*Preprocessor, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}
	hasher, err := NewHasher(params)
	if err != nil {
		return nil, err
	}
	return &Preprocessor{params: params, hasher: hasher, log: logrus.StandardLogger()}, nil
}

// Build ingests pairs, deduplicated on Item, and returns the frozen
// ServingLayout. A duplicate item is an InputEncoding error and aborts
// the whole build — preprocessing is all-or-nothing per spec.md §7.
func (pp *Preprocessor) Build(pairs []ItemLabel) (*ServingLayout, error) {
	seen := make(map[Item]struct{}, len(pairs))
	type encoded struct {
		itemChunks, labelChunks []uint64
		rowIndices              []uint32
	}
	prepared := make([]encoded, 0, len(pairs))

	bar := progressbar.Default(int64(len(pairs)), "encoding server set")
	for _, pair := range pairs {
		if _, dup := seen[pair.Item]; dup {
			return nil, newErr(KindInputEncoding, fmt.Sprintf("duplicate item %x", pair.Item), nil)
		}
		seen[pair.Item] = struct{}{}

		itemChunks, err := pp.hasher.EncodeItem(pair.Item)
		if err != nil {
			return nil, fmt.Errorf("encoding item: %w", err)
		}
		labelChunks, err := pp.hasher.EncodeLabel(pair.Label)
		if err != nil {
			return nil, fmt.Errorf("encoding label: %w", err)
		}
		prepared = append(prepared, encoded{
			itemChunks:  itemChunks,
			labelChunks: labelChunks,
			rowIndices:  pp.hasher.TableIndices(pair.Item),
		})
		_ = bar.Add(1)
	}

	pp.log.Infof("building %d BigBoxes from %d items", pp.params.H, len(prepared))

	bigBoxes := make([]*BigBox, pp.params.H)
	var wg sync.WaitGroup
	for k := 0; k < int(pp.params.H); k++ {
		wg.Add(1)
		go func(k int) {
			defer wg.Done()
			// Insertion into a single BigBox is sequential because
			// InnerBox growth is order-sensitive; the H BigBoxes are
			// mutually independent and run in parallel.
			bb := NewBigBox(k, pp.params)
			for _, e := range prepared {
				bb.Insert(e.itemChunks, e.labelChunks, e.rowIndices[k])
			}
			bb.Freeze()
			bigBoxes[k] = bb
		}(k)
	}
	wg.Wait()

	pp.log.Infof("preprocessing complete: %d items across %d hash tables", len(prepared), pp.params.H)

	return &ServingLayout{Params: pp.params, BigBoxes: bigBoxes, size: len(prepared)}, nil
}

// Diagnose returns per-BigBox shape diagnostics, grounded on the
// original implementation's print_diagnosis, returned as structured
// data rather than printed.
func (l *ServingLayout) Diagnose() []Diagnosis {
	out := make([]Diagnosis, len(l.BigBoxes))
	for i, bb := range l.BigBoxes {
		out[i] = bb.Diagnose()
	}
	return out
}
