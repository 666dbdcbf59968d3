package ulpsi

import (
	"math/rand"
	"testing"

	"github.com/Janmajayamall/ulpsi/internal/fhe"
)

// queryTestParams keeps the polynomial degree (and so interpolation
// cost) tiny; Response.Tables is never folded across the H tables, so
// there is no cross-table coincidence for HTSize to guard against.
func queryTestParams() *Params {
	p := testParams()
	p.HTSize = 512
	p.EvalDegree = 2
	p.SrcPowers = []uint32{1, 2}
	return p
}

// buildFakeEngine preprocesses pairs and returns an Engine driven by
// fhe's in-memory fake Evaluator, plus the Hasher used to place items
// so tests can compute expected row/segment placement independently.
func buildFakeEngine(t *testing.T, params *Params, pairs []ItemLabel) (*Engine, *Hasher, fhe.Encryptor, fhe.Decryptor, *fhe.FakeEncoder) {
	t.Helper()
	pp, err := NewPreprocessor(params)
	if err != nil {
		t.Fatalf("NewPreprocessor: %v", err)
	}
	layout, err := pp.Build(pairs)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}

	fheParams := fhe.NewFakeParams(params.P, int(params.CTSlots))
	enc := fhe.NewFakeEncoder(fheParams)
	encLayout := EncodeLayout(layout, enc)

	eval := fhe.NewFakeEvaluator(fheParams)
	engine := NewEngine(encLayout, eval, fhe.NewFakeRelinKeys())

	hasher, err := NewHasher(params)
	if err != nil {
		t.Fatalf("NewHasher: %v", err)
	}
	encryptor := fhe.NewFakeEncryptor(fheParams)
	decryptor := fhe.NewFakeDecryptor()
	return engine, hasher, encryptor, decryptor, enc
}

// querySlotsForItem builds the degree-1 query slot vector for a single
// segment that places item at its predicted row in table k, zero
// elsewhere, mirroring what a real client's cuckoo table would encode.
func querySlotsForItem(params *Params, hasher *Hasher, item Item, k, seg int) []uint64 {
	slots := make([]uint64, params.CTSlots)
	row := hasher.RowIndex(k, item)
	segIdx := int(row / params.SegRows())
	if segIdx != seg {
		return slots
	}
	logicalRow := int(row % params.SegRows())
	chunks, _ := hasher.EncodeItem(item)
	start := logicalRow * int(params.PSIPtSlots)
	copy(slots[start:], chunks)
	return slots
}

// buildQueryForItem assembles a full Query placing item at its
// predicted row in every one of the H tables, with every SrcPowers
// ciphertext derived by repeated homomorphic self-multiplication of
// the degree-1 ciphertext (valid here because queryTestParams' SrcPowers
// is exactly [1,2], each reachable by repeated multiplication).
func buildQueryForItem(t *testing.T, params *Params, hasher *Hasher, enc *fhe.FakeEncoder, encryptor fhe.Encryptor, eval fhe.Evaluator, item Item) *Query {
	t.Helper()
	numSegments := int(params.Segments())
	q := &Query{Tables: make([][]SegmentQuery, params.H)}
	for k := 0; k < int(params.H); k++ {
		q.Tables[k] = make([]SegmentQuery, numSegments)
		for seg := 0; seg < numSegments; seg++ {
			slots := querySlotsForItem(params, hasher, item, k, seg)
			ct1 := encryptor.Encrypt(enc.EncodeQuerySlots(slots))
			powers := []fhe.Ciphertext{ct1}
			cur := ct1
			for p := uint32(2); p <= uint32(len(params.SrcPowers)); p++ {
				cur = eval.Mul(cur, ct1, fhe.NewFakeRelinKeys())
				powers = append(powers, cur)
			}
			q.Tables[k][seg] = SegmentQuery(powers)
		}
	}
	return q
}

func TestEngineServeSingleItemHit(t *testing.T) {
	params := queryTestParams()
	target := Item{0x01}
	label := Label{0xAA}
	pairs := []ItemLabel{{Item: target, Label: label}}

	engine, hasher, encryptor, decryptor, enc := buildFakeEngine(t, params, pairs)
	eval := fhe.NewFakeEvaluator(fhe.NewFakeParams(params.P, int(params.CTSlots)))
	q := buildQueryForItem(t, params, hasher, enc, encryptor, eval, target)

	constOne := encryptor.EncryptOnes(enc)
	resp, err := engine.Serve(q, constOne)
	if err != nil {
		t.Fatalf("Serve: %v", err)
	}

	labelChunks, err := hasher.EncodeLabel(label)
	if err != nil {
		t.Fatalf("EncodeLabel: %v", err)
	}

	found := false
	for k := 0; k < int(params.H); k++ {
		row := hasher.RowIndex(k, target)
		segIdx := int(row / params.SegRows())
		logicalRow := int(row % params.SegRows())
		pt := decryptor.Decrypt(resp.Tables[k][segIdx])
		slots := enc.Decode(pt)
		start := logicalRow * int(params.PSIPtSlots)
		match := true
		for i, want := range labelChunks {
			if slots[start+i] != want {
				match = false
				break
			}
		}
		if match {
			found = true
		}
	}
	if !found {
		t.Fatal("decrypted response did not reproduce the label at the item's predicted row in any table")
	}
}

func TestEngineServeNonMemberDoesNotMatch(t *testing.T) {
	params := queryTestParams()
	member := Item{0x01}
	label := Label{0xAA}
	pairs := []ItemLabel{{Item: member, Label: label}}

	engine, hasher, encryptor, decryptor, enc := buildFakeEngine(t, params, pairs)
	eval := fhe.NewFakeEvaluator(fhe.NewFakeParams(params.P, int(params.CTSlots)))

	r := rand.New(rand.NewSource(99))
	var nonMember Item
	for {
		nonMember = Item(randItem(r))
		if nonMember != member {
			break
		}
	}

	q := buildQueryForItem(t, params, hasher, enc, encryptor, eval, nonMember)
	constOne := encryptor.EncryptOnes(enc)
	resp, err := engine.Serve(q, constOne)
	if err != nil {
		t.Fatalf("Serve: %v", err)
	}

	labelChunks, err := hasher.EncodeLabel(label)
	if err != nil {
		t.Fatalf("EncodeLabel: %v", err)
	}
	for k := 0; k < int(params.H); k++ {
		row := hasher.RowIndex(k, nonMember)
		segIdx := int(row / params.SegRows())
		logicalRow := int(row % params.SegRows())
		pt := decryptor.Decrypt(resp.Tables[k][segIdx])
		slots := enc.Decode(pt)
		start := logicalRow * int(params.PSIPtSlots)
		match := true
		for i, want := range labelChunks {
			if slots[start+i] != want {
				match = false
				break
			}
		}
		if match {
			t.Fatal("non-member query slot unexpectedly matched the member's label")
		}
	}
}

func TestEngineServeRejectsWrongTableCount(t *testing.T) {
	params := queryTestParams()
	engine, _, encryptor, _, enc := buildFakeEngine(t, params, nil)
	q := &Query{Tables: make([][]SegmentQuery, int(params.H)-1)}
	constOne := encryptor.EncryptOnes(enc)
	if _, err := engine.Serve(q, constOne); err == nil {
		t.Fatal("expected an error for a query with the wrong number of hash tables")
	} else if KindOf(err) != KindTransport {
		t.Fatalf("expected KindTransport, got %v", KindOf(err))
	}
}
