package core

import "sort"

// DefaultBatchBudget is the default cap on outputs packed into one
// transaction (§4.4), also the hard cap the BID/OPEN batch validators
// enforce on names.len() upstream of the planner.
const DefaultBatchBudget = 200

// RejectedDomain records a domain (name) the planner could not fully pack,
// alongside how many of its outputs were left over.
type RejectedDomain struct {
	Name      string
	Remaining int
	Err       error
}

// BatchPlanner packs a per-name `domain -> outputs` mapping into a single
// transaction subject to an output budget (§4.4). It is pure: it only
// rearranges already-built Builder outputs/pre-inputs, never talks to the
// chain or the coin index itself.
type BatchPlanner struct {
	Budget int
}

// NewBatchPlanner returns a planner with the given output budget, or
// DefaultBatchBudget if budget <= 0.
func NewBatchPlanner(budget int) *BatchPlanner {
	if budget <= 0 {
		budget = DefaultBatchBudget
	}
	return &BatchPlanner{Budget: budget}
}

func sortedDomainsByCountDesc(domains map[string]*Builder) []string {
	names := make([]string, 0, len(domains))
	for name := range domains {
		names = append(names, name)
	}
	sort.Slice(names, func(i, j int) bool {
		ni, nj := len(domains[names[i]].Outputs), len(domains[names[j]].Outputs)
		if ni != nj {
			return ni > nj
		}
		return names[i] < names[j] // stable tie-break for deterministic packing
	})
	return names
}

// mergeRange appends src's [lo:hi) outputs, and the same-indexed pre-inputs
// when src pairs them one-for-one with its outputs (as REVEAL and REDEEM
// builders do), into dst.
func mergeRange(dst *Builder, src *Builder, lo, hi int) {
	paired := len(src.PreInputs) == len(src.Outputs)
	for i := lo; i < hi; i++ {
		if paired {
			dst.PreInputs = append(dst.PreInputs, src.PreInputs[i])
		}
		dst.Outputs = append(dst.Outputs, src.Outputs[i])
	}
	if !paired && lo == 0 && hi == len(src.Outputs) {
		dst.PreInputs = append(dst.PreInputs, src.PreInputs...)
	}
}

// CreateBatch packs domains into one transaction using the partial policy
// (`create_batch`): largest output-count first, filling the remaining
// budget; a domain that doesn't fully fit gets a partial share equal to the
// slots left, with its leftover recorded as rejected. The batch never
// all-or-nothings unless zero outputs survive (§4.4, §7).
func (p *BatchPlanner) CreateBatch(domains map[string]*Builder) (*Builder, []RejectedDomain) {
	result := NewBuilder("", CovenantNone)
	var rejected []RejectedDomain
	remaining := p.Budget

	for _, name := range sortedDomainsByCountDesc(domains) {
		b := domains[name]
		n := len(b.Outputs)
		if n == 0 {
			continue
		}
		if remaining <= 0 {
			rejected = append(rejected, RejectedDomain{Name: name, Remaining: n})
			continue
		}
		if n <= remaining {
			mergeRange(result, b, 0, n)
			remaining -= n
			continue
		}
		mergeRange(result, b, 0, remaining)
		rejected = append(rejected, RejectedDomain{Name: name, Remaining: n - remaining})
		remaining = 0
	}
	return result, rejected
}

// CreateStrictBatch packs domains into one transaction using the strict
// policy (`create_strict_batch`): a domain is included only if its entire
// output list fits in the remaining budget, otherwise the whole domain is
// rejected. REVEAL and FINISH (REDEEM+REGISTER) use this policy because a
// partial reveal or finish would change auction semantics (§4.4).
func (p *BatchPlanner) CreateStrictBatch(domains map[string]*Builder) (*Builder, []RejectedDomain) {
	result := NewBuilder("", CovenantNone)
	var rejected []RejectedDomain
	remaining := p.Budget

	for _, name := range sortedDomainsByCountDesc(domains) {
		b := domains[name]
		n := len(b.Outputs)
		if n == 0 {
			continue
		}
		if n <= remaining {
			mergeRange(result, b, 0, n)
			remaining -= n
			continue
		}
		rejected = append(rejected, RejectedDomain{Name: name, Remaining: n, Err: ErrBatchDomainTooLarge})
	}
	return result, rejected
}
