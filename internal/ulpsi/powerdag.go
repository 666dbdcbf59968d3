package ulpsi

// powerNode describes how to derive one target power from two powers
// already available — either a source power the client sent, or
// another already-derived target power.
type powerNode struct {
	depth  int
	s1, s2 uint32
}

// PowerDAG is the addition-chain schedule for deriving every power in
// [1, EvalDegree] from Params.SrcPowers, computed once at startup and
// reused by every query the process serves.
type PowerDAG struct {
	nodes map[uint32]powerNode
	order []uint32 // target powers in dependency order, source powers excluded
}

// BuildPowerDAG greedily minimizes multiplicative depth: for each
// target power not already a source power, it picks the split s1+s2
// (both already available) whose max depth is smallest.
func BuildPowerDAG(srcPowers []uint32, evalDegree uint32) *PowerDAG {
	isSource := make(map[uint32]bool, len(srcPowers))
	nodes := make(map[uint32]powerNode, evalDegree)
	for _, s := range srcPowers {
		isSource[s] = true
		nodes[s] = powerNode{depth: 0}
	}

	order := make([]uint32, 0, evalDegree)
	for target := uint32(1); target <= evalDegree; target++ {
		if isSource[target] {
			continue
		}

		optDepth := target - 1
		optS1, optS2 := target-1, uint32(1)
		for s1 := uint32(1); s1 < target; s1++ {
			n1, ok1 := nodes[s1]
			if !ok1 {
				continue
			}
			s2 := target - s1
			n2, ok2 := nodes[s2]
			if !ok2 {
				continue
			}
			depth := n1.depth
			if n2.depth > depth {
				depth = n2.depth
			}
			depth++
			if depth < optDepth {
				optDepth, optS1, optS2 = depth, s1, s2
			}
		}

		nodes[target] = powerNode{depth: optDepth, s1: optS1, s2: optS2}
		order = append(order, target)
	}

	return &PowerDAG{nodes: nodes, order: order}
}

// Order returns the derived (non-source) target powers in an order
// safe to compute sequentially: every dependency of order[i] appears
// either in srcPowers or earlier in order.
func (d *PowerDAG) Order() []uint32 { return d.order }

// Split returns the two already-available powers whose ciphertext
// product (after relinearization) yields power target.
func (d *PowerDAG) Split(target uint32) (uint32, uint32, bool) {
	n, ok := d.nodes[target]
	if !ok || n.depth == 0 {
		return 0, 0, false
	}
	return n.s1, n.s2, true
}
