package ulpsiclient

import (
	"testing"

	"github.com/Janmajayamall/ulpsi/internal/fhe"
	"github.com/Janmajayamall/ulpsi/internal/ulpsi"
)

func TestExpandQueryPowers(t *testing.T) {
	const mod = 65537
	fheParams := fhe.NewFakeParams(mod, 8)
	enc := fhe.NewFakeEncoder(fheParams)
	encryptor := fhe.NewFakeEncryptor(fheParams)
	eval := fhe.NewFakeEvaluator(fheParams)
	rk := fhe.NewFakeRelinKeys()

	base := uint64(7)
	slots := make([]uint64, 8)
	for i := range slots {
		slots[i] = base
	}
	ct1 := encryptor.Encrypt(enc.EncodeQuerySlots(slots))

	q := &ulpsi.Query{Tables: [][]ulpsi.SegmentQuery{{{ct1}}}}
	srcPowers := []uint32{1, 3, 11, 18, 45}
	ExpandQueryPowers(eval, rk, q, srcPowers)

	got := q.Tables[0][0]
	if len(got) != len(srcPowers) {
		t.Fatalf("got %d ciphertexts, want %d", len(got), len(srcPowers))
	}

	dec := fhe.NewFakeDecryptor()
	for i, p := range srcPowers {
		want := modPowU64(base, uint64(p), mod)
		outSlots := enc.Decode(dec.Decrypt(got[i]))
		for _, s := range outSlots {
			if s != want {
				t.Fatalf("power %d: got %d, want %d", p, s, want)
			}
		}
	}
}

func modPowU64(base, exp, mod uint64) uint64 {
	result := uint64(1)
	base %= mod
	for exp > 0 {
		if exp&1 == 1 {
			result = (result * base) % mod
		}
		exp >>= 1
		base = (base * base) % mod
	}
	return result
}
