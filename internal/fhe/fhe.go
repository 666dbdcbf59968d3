// Package fhe isolates every call into tuneinsight/lattigo/v3's BFV
// implementation behind the fixed interface spec.md §6 assumes:
// Ciphertext, Plaintext, PublicKey, GaloisKeys, RelinKeys and the
// operations encrypt, decrypt, add, sub, mul_plain, mul(+relin),
// rotate, mod_switch. The ciphertext, plaintext and key handles are
// marker interfaces rather than concrete lattigo types, so callers —
// notably internal/ulpsi's query engine — depend only on the
// Evaluator interface and can be exercised against the in-memory
// fakes in fake.go instead of real encryption.
package fhe

import (
	"github.com/tuneinsight/lattigo/v3/bfv"
	"github.com/tuneinsight/lattigo/v3/rlwe"
)

// Ciphertext, Plaintext, QueryPlaintext, RelinKeys and GaloisKeys are
// opaque handles. Plaintext is SIMD-encoded for plaintext-ciphertext
// multiplication (mul_plain); QueryPlaintext is encoded for
// encryption (the client's query slots, or the server's own
// trivially-encrypted constants).
type Ciphertext interface{ fheHandle() }
type Plaintext interface{ fheHandle() }
type QueryPlaintext interface{ fheHandle() }
type RelinKeys interface{ fheHandle() }
type GaloisKeys interface{ fheHandle() }

// Evaluator is the homomorphic-arithmetic boundary named in spec.md
// §6. internal/ulpsi never imports lattigo directly; it talks to an
// Evaluator.
type Evaluator interface {
	Add(a, b Ciphertext) Ciphertext
	Sub(a, b Ciphertext) Ciphertext
	MulPlain(a Ciphertext, p Plaintext) Ciphertext
	Mul(a, b Ciphertext, rk RelinKeys) Ciphertext
	Rotate(a Ciphertext, steps int, gk GaloisKeys) Ciphertext
	// ModSwitch drops noise after a multiplication, per spec.md §4.5
	// step 1's "modulus-switching step after each multiplication".
	ModSwitch(a Ciphertext) Ciphertext
}

// --- lattigo-backed implementation ---

type lattigoCiphertext struct{ ct *bfv.Ciphertext }

func (lattigoCiphertext) fheHandle() {}

type lattigoPlaintext struct{ pt *bfv.PlaintextMul }

func (lattigoPlaintext) fheHandle() {}

type lattigoQueryPlaintext struct{ pt *bfv.Plaintext }

func (lattigoQueryPlaintext) fheHandle() {}

type lattigoRelinKeys struct{ rk *rlwe.RelinearizationKey }

func (lattigoRelinKeys) fheHandle() {}

type lattigoGaloisKeys struct{ gk *rlwe.RotationKeySet }

func (lattigoGaloisKeys) fheHandle() {}

// SecretKey and PublicKey are not part of the Evaluator boundary —
// only key generation and encrypt/decrypt need them.
type SecretKey struct{ sk *rlwe.SecretKey }
type PublicKey struct{ pk *rlwe.PublicKey }

// Params bundles the BFV parameters derived once from a ulpsi.Params
// and reused for every Evaluator this process constructs.
type Params struct {
	bfvParams bfv.Parameters
}

// NewParams builds BFV parameters from the ring degree, modulus chain
// and plaintext modulus the ulpsi parameter bundle carries.
func NewParams(logDegree uint32, moduliBits []int, plaintextModulus uint64) (*Params, error) {
	literal := bfv.ParametersLiteral{
		LogN: int(logDegree),
		T:    plaintextModulus,
		LogQ: moduliBits,
	}
	p, err := bfv.NewParametersFromLiteral(literal)
	if err != nil {
		return nil, err
	}
	return &Params{bfvParams: p}, nil
}

// Slots is the number of SIMD batch slots one ciphertext carries —
// spec.md §6's CTSlots.
func (p *Params) Slots() int { return p.bfvParams.N() }

// KeyGen produces a fresh secret key, its matching public key, a
// relinearization key, and rotation keys for a set of Galois steps.
type KeyGen struct {
	kgen rlwe.KeyGenerator
}

func NewKeyGen(params *Params) *KeyGen {
	return &KeyGen{kgen: bfv.NewKeyGenerator(params.bfvParams)}
}

func (g *KeyGen) GenSecretKey() *SecretKey {
	return &SecretKey{sk: g.kgen.GenSecretKey()}
}

func (g *KeyGen) GenPublicKey(sk *SecretKey) *PublicKey {
	return &PublicKey{pk: g.kgen.GenPublicKey(sk.sk)}
}

func (g *KeyGen) GenRelinKeys(sk *SecretKey) RelinKeys {
	return lattigoRelinKeys{rk: g.kgen.GenRelinearizationKey(sk.sk, 1)}
}

func (g *KeyGen) GenGaloisKeys(sk *SecretKey, steps []int) GaloisKeys {
	return lattigoGaloisKeys{gk: g.kgen.GenRotationKeysForRotations(steps, false, sk.sk)}
}

// Encoder turns plain uint64 slot values into SIMD-batched plaintexts,
// either for plaintext-ciphertext multiplication (EncodeCoeffColumn)
// or for encryption (EncodeQuerySlots). Like Evaluator, it is an
// interface so callers — internal/ulpsi's preprocessing-time layout
// encoder and internal/ulpsiclient's query builder — can be driven by
// FakeEncoder in tests without linking lattigo.
type Encoder interface {
	EncodeCoeffColumn(values []uint64) Plaintext
	EncodeQuerySlots(values []uint64) QueryPlaintext
	Decode(pt QueryPlaintext) []uint64
}

// Encryptor and Decryptor are the matching interfaces around the
// lattigo encrypt/decrypt primitives.
type Encryptor interface {
	Encrypt(pt QueryPlaintext) Ciphertext
	// EncryptOnes encrypts the all-ones plaintext, used by the query
	// engine to realize the constant term (x^0) of the evaluated
	// polynomial as a ciphertext, since mul_plain — not add_plain — is
	// the only plaintext-combining op the opaque interface exposes.
	EncryptOnes(enc Encoder) Ciphertext
}

type Decryptor interface {
	Decrypt(ct Ciphertext) QueryPlaintext
}

// lattigoEncoder is the production Encoder, backed by lattigo/v3.
type lattigoEncoder struct {
	enc    bfv.Encoder
	params *Params
}

func NewEncoder(params *Params) Encoder {
	return &lattigoEncoder{enc: bfv.NewEncoder(params.bfvParams), params: params}
}

// EncodeCoeffColumn encodes one InnerBox coefficient column — a
// CTSlots-length slice of field elements already reduced mod P — as
// the plaintext-multiplication operand spec.md §4.5 step 2 needs.
func (e *lattigoEncoder) EncodeCoeffColumn(values []uint64) Plaintext {
	pt := bfv.NewPlaintextMul(e.params.bfvParams)
	e.enc.EncodeMul(values, pt)
	return lattigoPlaintext{pt: pt}
}

// EncodeQuerySlots encodes raw slot values ready for encryption — the
// client's cuckoo-hashed, chunk-encoded query values (one per real
// row, zero elsewhere), or the server's own trivial constants.
func (e *lattigoEncoder) EncodeQuerySlots(values []uint64) QueryPlaintext {
	pt := bfv.NewPlaintext(e.params.bfvParams)
	e.enc.Encode(values, pt)
	return lattigoQueryPlaintext{pt: pt}
}

// Decode reads slot values back out of a decrypted QueryPlaintext.
func (e *lattigoEncoder) Decode(pt QueryPlaintext) []uint64 {
	out := make([]uint64, e.params.bfvParams.N())
	e.enc.DecodeUint(pt.(lattigoQueryPlaintext).pt, out)
	return out
}

// lattigoEncryptor/lattigoDecryptor wrap the matching lattigo
// primitives.
type lattigoEncryptor struct {
	enc    bfv.Encryptor
	params *Params
}

func NewEncryptor(params *Params, pk *PublicKey) Encryptor {
	return &lattigoEncryptor{enc: bfv.NewEncryptor(params.bfvParams, pk.pk), params: params}
}

func (e *lattigoEncryptor) Encrypt(pt QueryPlaintext) Ciphertext {
	return lattigoCiphertext{ct: e.enc.EncryptNew(pt.(lattigoQueryPlaintext).pt)}
}

func (e *lattigoEncryptor) EncryptOnes(enc Encoder) Ciphertext {
	ones := make([]uint64, e.params.Slots())
	for i := range ones {
		ones[i] = 1
	}
	return e.Encrypt(enc.EncodeQuerySlots(ones))
}

type lattigoDecryptor struct {
	dec bfv.Decryptor
}

func NewDecryptor(params *Params, sk *SecretKey) Decryptor {
	return &lattigoDecryptor{dec: bfv.NewDecryptor(params.bfvParams, sk.sk)}
}

func (d *lattigoDecryptor) Decrypt(ct Ciphertext) QueryPlaintext {
	return lattigoQueryPlaintext{pt: d.dec.DecryptNew(ct.(lattigoCiphertext).ct)}
}

// MarshalCiphertext serializes a Ciphertext to bytes for the wire,
// using lattigo's own binary encoding.
func MarshalCiphertext(ct Ciphertext) ([]byte, error) {
	return ct.(lattigoCiphertext).ct.MarshalBinary()
}

// UnmarshalCiphertext decodes bytes produced by MarshalCiphertext back
// into a Ciphertext bound to params.
func UnmarshalCiphertext(data []byte, params *Params) (Ciphertext, error) {
	ct := bfv.NewCiphertext(params.bfvParams, 1)
	if err := ct.UnmarshalBinary(data); err != nil {
		return nil, err
	}
	return lattigoCiphertext{ct: ct}, nil
}

// lattigoEvaluator is the production Evaluator, backed by lattigo/v3.
type lattigoEvaluator struct {
	eval   bfv.Evaluator
	rlwe   rlwe.Evaluator
	params *Params
}

// NewEvaluator constructs the production Evaluator. rk/gk may be nil
// if the caller never calls Mul/Rotate (e.g. during key generation).
func NewEvaluator(params *Params, rk RelinKeys, gk GaloisKeys) Evaluator {
	evk := rlwe.EvaluationKey{}
	if rk != nil {
		evk.Rlk = rk.(lattigoRelinKeys).rk
	}
	if gk != nil {
		evk.Rtks = gk.(lattigoGaloisKeys).gk
	}
	return &lattigoEvaluator{
		eval:   bfv.NewEvaluator(params.bfvParams, evk),
		rlwe:   rlwe.NewEvaluator(params.bfvParams.Parameters, &evk),
		params: params,
	}
}

func (e *lattigoEvaluator) Add(a, b Ciphertext) Ciphertext {
	ac, bc := a.(lattigoCiphertext).ct, b.(lattigoCiphertext).ct
	out := bfv.NewCiphertext(e.params.bfvParams, ac.Degree())
	e.eval.Add(ac, bc, out)
	return lattigoCiphertext{ct: out}
}

func (e *lattigoEvaluator) Sub(a, b Ciphertext) Ciphertext {
	ac, bc := a.(lattigoCiphertext).ct, b.(lattigoCiphertext).ct
	out := bfv.NewCiphertext(e.params.bfvParams, ac.Degree())
	e.eval.Sub(ac, bc, out)
	return lattigoCiphertext{ct: out}
}

func (e *lattigoEvaluator) MulPlain(a Ciphertext, p Plaintext) Ciphertext {
	ac, pt := a.(lattigoCiphertext).ct, p.(lattigoPlaintext).pt
	out := bfv.NewCiphertext(e.params.bfvParams, ac.Degree())
	e.eval.Mul(ac, pt, out)
	return lattigoCiphertext{ct: out}
}

func (e *lattigoEvaluator) Mul(a, b Ciphertext, rk RelinKeys) Ciphertext {
	ac, bc := a.(lattigoCiphertext).ct, b.(lattigoCiphertext).ct
	out := bfv.NewCiphertext(e.params.bfvParams, ac.Degree()+bc.Degree())
	e.eval.Mul(ac, bc, out)
	relin := bfv.NewCiphertext(e.params.bfvParams, 1)
	e.eval.Relinearize(out, relin)
	return lattigoCiphertext{ct: relin}
}

func (e *lattigoEvaluator) Rotate(a Ciphertext, steps int, gk GaloisKeys) Ciphertext {
	ac := a.(lattigoCiphertext).ct
	out := bfv.NewCiphertext(e.params.bfvParams, ac.Degree())
	e.eval.RotateColumns(ac, steps, out)
	return lattigoCiphertext{ct: out}
}

// ModSwitch drops the ciphertext one level in the RNS modulus chain,
// bounding the noise growth spec.md §4.5 step 1 requires managed after
// every power-expansion multiply. BFV has no CKKS-style rescale (no
// plaintext scale to renormalize), but the underlying RNS chain is the
// same rlwe.Ciphertext representation CKKS's Rescale drops a level
// from (c.f. the Rescale calls over ckks.Ciphertext in
// isglobal-brge-dsVert's ckks_ops.go) — dropping a modulus here still
// shrinks the noise ceiling the same way. Grounded on the generic
// rlwe.Evaluator.DropLevel primitive lattigo exposes beneath every
// scheme's own Evaluator for exactly this purpose.
func (e *lattigoEvaluator) ModSwitch(a Ciphertext) Ciphertext {
	ac := a.(lattigoCiphertext).ct
	if ac.Level() == 0 {
		return a
	}
	e.rlwe.DropLevel(ac.Ciphertext, 1)
	return a
}
