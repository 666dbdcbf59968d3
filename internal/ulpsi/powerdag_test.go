package ulpsi

import "testing"

func TestBuildPowerDAGCoversEveryPower(t *testing.T) {
	params := DefaultParams()
	dag := BuildPowerDAG(params.SrcPowers, params.EvalDegree)

	isSource := make(map[uint32]bool, len(params.SrcPowers))
	for _, s := range params.SrcPowers {
		isSource[s] = true
	}

	available := make(map[uint32]bool, params.EvalDegree)
	for s := range isSource {
		available[s] = true
	}

	seen := make(map[uint32]bool, len(dag.order))
	for _, target := range dag.Order() {
		if isSource[target] {
			t.Fatalf("Order() should exclude source powers, found %d", target)
		}
		if seen[target] {
			t.Fatalf("target power %d appears twice in Order()", target)
		}
		seen[target] = true

		s1, s2, ok := dag.Split(target)
		if !ok {
			t.Fatalf("Split(%d) returned ok=false for a power in Order()", target)
		}
		if !available[s1] || !available[s2] {
			t.Fatalf("target %d depends on %d/%d before either is available", target, s1, s2)
		}
		if s1+s2 != target {
			t.Fatalf("split %d+%d != target %d", s1, s2, target)
		}
		available[target] = true
	}

	for p := uint32(1); p <= params.EvalDegree; p++ {
		if !isSource[p] && !seen[p] {
			t.Fatalf("power %d is neither a source power nor produced by the DAG", p)
		}
	}
}

func TestPowerDAGSplitRejectsSourcePowers(t *testing.T) {
	dag := BuildPowerDAG([]uint32{1, 2, 3}, 3)
	if _, _, ok := dag.Split(1); ok {
		t.Fatal("Split should reject a source power (depth 0)")
	}
}
