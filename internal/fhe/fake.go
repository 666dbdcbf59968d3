package fhe

// The fake* types below implement the same opaque Ciphertext/Plaintext
// marker interfaces as the lattigo-backed types, but do no real
// encryption: a "ciphertext" is just its plaintext slot vector carried
// around in the clear, reduced mod a caller-chosen modulus. This lets
// internal/ulpsi's query engine be exercised in tests without real
// encryption or key material. The fakes live in this package, so they
// still link lattigo, and MarshalCiphertext accepts only
// lattigo-backed ciphertexts, so query/response wire encoding cannot
// be run on fake ciphertexts.
type fakeCiphertext struct {
	slots []uint64
	mod   uint64
}

func (fakeCiphertext) fheHandle() {}

type fakePlaintext struct{ slots []uint64 }

func (fakePlaintext) fheHandle() {}

type fakeQueryPlaintext struct{ slots []uint64 }

func (fakeQueryPlaintext) fheHandle() {}

type fakeRelinKeys struct{}

func (fakeRelinKeys) fheHandle() {}

type fakeGaloisKeys struct{}

func (fakeGaloisKeys) fheHandle() {}

// FakeParams stands in for Params: just a modulus and a slot count,
// with no ring degree or moduli chain to pick.
type FakeParams struct {
	Mod   uint64
	slots int
}

// NewFakeParams builds a FakeParams with the given plaintext modulus
// and slot count.
func NewFakeParams(mod uint64, slots int) *FakeParams {
	return &FakeParams{Mod: mod, slots: slots}
}

// Slots mirrors Params.Slots.
func (p *FakeParams) Slots() int { return p.slots }

// FakeEncoder mirrors Encoder without SIMD batching: it just clones the
// slot slice given to it.
type FakeEncoder struct{ params *FakeParams }

// NewFakeEncoder builds a FakeEncoder bound to params.
func NewFakeEncoder(params *FakeParams) *FakeEncoder { return &FakeEncoder{params: params} }

func (e *FakeEncoder) EncodeCoeffColumn(values []uint64) Plaintext {
	return fakePlaintext{slots: cloneSlots(values)}
}

func (e *FakeEncoder) EncodeQuerySlots(values []uint64) QueryPlaintext {
	return fakeQueryPlaintext{slots: cloneSlots(values)}
}

func (e *FakeEncoder) Decode(pt QueryPlaintext) []uint64 {
	return cloneSlots(pt.(fakeQueryPlaintext).slots)
}

// FakeEncryptor mirrors Encryptor: "encrypting" a plaintext just wraps
// its slots, with no key material involved.
type FakeEncryptor struct{ params *FakeParams }

// NewFakeEncryptor builds a FakeEncryptor bound to params.
func NewFakeEncryptor(params *FakeParams) *FakeEncryptor {
	return &FakeEncryptor{params: params}
}

func (e *FakeEncryptor) Encrypt(pt QueryPlaintext) Ciphertext {
	return fakeCiphertext{slots: cloneSlots(pt.(fakeQueryPlaintext).slots), mod: e.params.Mod}
}

// EncryptOnes mirrors Encryptor.EncryptOnes.
func (e *FakeEncryptor) EncryptOnes(enc Encoder) Ciphertext {
	ones := make([]uint64, e.params.slots)
	for i := range ones {
		ones[i] = 1
	}
	return e.Encrypt(enc.EncodeQuerySlots(ones))
}

// FakeDecryptor mirrors Decryptor: "decrypting" just unwraps the slots.
type FakeDecryptor struct{}

// NewFakeDecryptor builds a FakeDecryptor.
func NewFakeDecryptor() *FakeDecryptor { return &FakeDecryptor{} }

func (d *FakeDecryptor) Decrypt(ct Ciphertext) QueryPlaintext {
	return fakeQueryPlaintext{slots: cloneSlots(ct.(fakeCiphertext).slots)}
}

// NewFakeRelinKeys and NewFakeGaloisKeys return placeholder key handles
// a FakeEvaluator ignores.
func NewFakeRelinKeys() RelinKeys   { return fakeRelinKeys{} }
func NewFakeGaloisKeys() GaloisKeys { return fakeGaloisKeys{} }

// fakeEvaluator implements Evaluator over plain uint64 slot vectors mod
// a fixed modulus, with no noise budget or relinearization to model.
type fakeEvaluator struct{ mod uint64 }

// NewFakeEvaluator builds the in-memory Evaluator used by tests.
func NewFakeEvaluator(params *FakeParams) Evaluator {
	return &fakeEvaluator{mod: params.Mod}
}

func (e *fakeEvaluator) slotsOf(c Ciphertext) []uint64 { return c.(fakeCiphertext).slots }

func (e *fakeEvaluator) Add(a, b Ciphertext) Ciphertext {
	as, bs := e.slotsOf(a), e.slotsOf(b)
	out := make([]uint64, len(as))
	for i := range out {
		out[i] = (as[i] + bs[i]) % e.mod
	}
	return fakeCiphertext{slots: out, mod: e.mod}
}

func (e *fakeEvaluator) Sub(a, b Ciphertext) Ciphertext {
	as, bs := e.slotsOf(a), e.slotsOf(b)
	out := make([]uint64, len(as))
	for i := range out {
		out[i] = (as[i] + e.mod - bs[i]%e.mod) % e.mod
	}
	return fakeCiphertext{slots: out, mod: e.mod}
}

func (e *fakeEvaluator) MulPlain(a Ciphertext, p Plaintext) Ciphertext {
	as, ps := e.slotsOf(a), p.(fakePlaintext).slots
	out := make([]uint64, len(as))
	for i := range out {
		out[i] = (as[i] * ps[i]) % e.mod
	}
	return fakeCiphertext{slots: out, mod: e.mod}
}

func (e *fakeEvaluator) Mul(a, b Ciphertext, rk RelinKeys) Ciphertext {
	as, bs := e.slotsOf(a), e.slotsOf(b)
	out := make([]uint64, len(as))
	for i := range out {
		out[i] = (as[i] * bs[i]) % e.mod
	}
	return fakeCiphertext{slots: out, mod: e.mod}
}

func (e *fakeEvaluator) Rotate(a Ciphertext, steps int, gk GaloisKeys) Ciphertext {
	as := e.slotsOf(a)
	n := len(as)
	out := make([]uint64, n)
	for i := range out {
		out[i] = as[((i+steps)%n+n)%n]
	}
	return fakeCiphertext{slots: out, mod: e.mod}
}

// ModSwitch is a no-op in the fake model: there is no noise to bound.
func (e *fakeEvaluator) ModSwitch(a Ciphertext) Ciphertext { return a }

func cloneSlots(v []uint64) []uint64 {
	out := make([]uint64, len(v))
	copy(out, v)
	return out
}
