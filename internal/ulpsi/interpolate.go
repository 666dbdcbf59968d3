package ulpsi

// All arithmetic here is modulo the BFV plaintext prime P. Modular
// inverses used by divided differences exist because x-values on a
// single real row are distinct by invariant (I2).

func modAdd(a, b, m uint64) uint64 {
	a %= m
	b %= m
	s := a + b
	if s >= m {
		s -= m
	}
	return s
}

func modSub(a, b, m uint64) uint64 {
	a %= m
	b %= m
	if a >= b {
		return a - b
	}
	return m - (b - a)
}

func modMul(a, b, m uint64) uint64 {
	// m fits comfortably in 32 bits for every parameter set this
	// package ships, so the 64-bit product of two reduced operands
	// never overflows.
	return (a % m) * (b % m) % m
}

// modInverse returns a^-1 mod m via Fermat's little theorem, valid
// because m (the BFV plaintext modulus) is prime.
func modInverse(a, m uint64) uint64 {
	return modPow(a%m, m-2, m)
}

func modPow(base, exp, m uint64) uint64 {
	result := uint64(1)
	base %= m
	for exp > 0 {
		if exp&1 == 1 {
			result = modMul(result, base, m)
		}
		base = modMul(base, base, m)
		exp >>= 1
	}
	return result
}

// polyMulMonomial multiplies poly (coefficients low-to-high) by (X - a)
// mod m, returning a slice one longer than poly.
func polyMulMonomial(poly []uint64, a, m uint64) []uint64 {
	out := make([]uint64, len(poly)+1)
	out[0] = modSub(0, modMul(a, poly[0], m), m)
	for i := 1; i < len(poly); i++ {
		out[i] = modSub(poly[i-1], modMul(a, poly[i], m), m)
	}
	out[len(poly)] = poly[len(poly)-1]
	return out
}

// dividedDifferences computes the Newton divided-difference table for
// the given (x,y) pairs mod m, returning coef where coef[i] =
// f[x0,...,xi].
func dividedDifferences(x, y []uint64, m uint64) []uint64 {
	n := len(x)
	coef := make([]uint64, n)
	copy(coef, y)
	for j := 1; j < n; j++ {
		for i := n - 1; i >= j; i-- {
			num := modSub(coef[i], coef[i-1], m)
			den := modSub(x[i], x[i-j], m)
			coef[i] = modMul(num, modInverse(den, m), m)
		}
	}
	return coef
}

// newtonInterpolate returns the monomial coefficients (low-to-high) of
// the unique degree-(n-1) polynomial through the given (x,y) pairs,
// mod m. x values must be pairwise distinct mod m.
func newtonInterpolate(x, y []uint64, m uint64) []uint64 {
	n := len(x)
	coef := dividedDifferences(x, y, m)

	result := []uint64{coef[n-1]}
	for i := n - 2; i >= 0; i-- {
		result = polyMulMonomial(result, x[i], m)
		result[0] = modAdd(result[0], coef[i], m)
	}
	return result
}

// evaluatePoly evaluates coeffs (low-to-high) at x mod m via Horner's
// method.
func evaluatePoly(x uint64, coeffs []uint64, m uint64) uint64 {
	acc := uint64(0)
	for i := len(coeffs) - 1; i >= 0; i-- {
		acc = modAdd(modMul(acc, x, m), coeffs[i], m)
	}
	return acc
}
