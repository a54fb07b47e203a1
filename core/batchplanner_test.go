package core

import "testing"

func domainOfSize(name string, n int) *Builder {
	b := NewBuilder(name, CovenantReveal)
	for i := 0; i < n; i++ {
		b.AddPreInput(Outpoint{Hash: Hash{byte(i + 1)}, Index: uint32(i)})
		b.AddOutput(TxOutput{Value: uint64(i + 1)})
	}
	return b
}

func TestBatchPlannerCreateStrictBatch(t *testing.T) {
	domains := map[string]*Builder{
		"a": domainOfSize("a", 100),
		"b": domainOfSize("b", 50),
		"c": domainOfSize("c", 25),
		"d": domainOfSize("d", 12),
	}
	planner := NewBatchPlanner(175)
	result, rejected := planner.CreateStrictBatch(domains)

	if len(result.Outputs) != 175 {
		t.Fatalf("expected 175 packed outputs, got %d", len(result.Outputs))
	}
	if len(result.PreInputs) != 175 {
		t.Fatalf("expected 175 packed pre-inputs, got %d", len(result.PreInputs))
	}
	if len(rejected) != 1 || rejected[0].Name != "d" || rejected[0].Remaining != 12 {
		t.Fatalf("expected domain d fully rejected with remaining=12, got %+v", rejected)
	}
}

func TestBatchPlannerCreateBatchPartial(t *testing.T) {
	domains := map[string]*Builder{
		"a": domainOfSize("a", 100),
		"b": domainOfSize("b", 50),
		"c": domainOfSize("c", 40),
	}
	planner := NewBatchPlanner(175)
	result, rejected := planner.CreateBatch(domains)

	if len(result.Outputs) != 175 {
		t.Fatalf("expected full budget packed, got %d", len(result.Outputs))
	}
	if len(rejected) != 1 || rejected[0].Name != "c" || rejected[0].Remaining != 15 {
		t.Fatalf("expected domain c partially rejected with remaining=15, got %+v", rejected)
	}
}

func TestBatchPlannerEmptyDomainsSkipped(t *testing.T) {
	domains := map[string]*Builder{
		"empty": NewBuilder("empty", CovenantReveal),
		"full":  domainOfSize("full", 3),
	}
	planner := NewBatchPlanner(200)
	result, rejected := planner.CreateStrictBatch(domains)
	if len(rejected) != 0 {
		t.Fatalf("expected no rejections, got %+v", rejected)
	}
	if len(result.Outputs) != 3 {
		t.Fatalf("expected 3 outputs, got %d", len(result.Outputs))
	}
}
