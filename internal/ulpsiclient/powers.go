package ulpsiclient

import (
	"github.com/Janmajayamall/ulpsi/internal/fhe"
	"github.com/Janmajayamall/ulpsi/internal/ulpsi"
)

// ExpandQueryPowers turns the degree-1 ciphertexts BuildQuery assembles
// into the full SrcPowers set spec.md §4.5 step 1 expects on the wire,
// by binary-exponentiating each (table, segment) ciphertext up to every
// exponent in srcPowers. This is the power-raising work BuildQuery's
// doc comment leaves to the caller.
func ExpandQueryPowers(eval fhe.Evaluator, relinKeys fhe.RelinKeys, q *ulpsi.Query, srcPowers []uint32) {
	for k := range q.Tables {
		for seg := range q.Tables[k] {
			ct1 := q.Tables[k][seg][0]
			powers := make(ulpsi.SegmentQuery, len(srcPowers))
			for i, p := range srcPowers {
				powers[i] = raiseToPower(eval, ct1, p, relinKeys)
			}
			q.Tables[k][seg] = powers
		}
	}
}

// raiseToPower computes base^n via square-and-multiply, mod-switching
// after every homomorphic multiplication to bound noise growth, the
// same discipline the server-side power DAG follows.
func raiseToPower(eval fhe.Evaluator, base fhe.Ciphertext, n uint32, rk fhe.RelinKeys) fhe.Ciphertext {
	if n == 1 {
		return base
	}
	var result fhe.Ciphertext
	cur := base
	for n > 0 {
		if n&1 == 1 {
			if result == nil {
				result = cur
			} else {
				result = eval.ModSwitch(eval.Mul(result, cur, rk))
			}
		}
		n >>= 1
		if n > 0 {
			cur = eval.ModSwitch(eval.Mul(cur, cur, rk))
		}
	}
	return result
}
