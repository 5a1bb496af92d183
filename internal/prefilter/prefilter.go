// Package prefilter builds and owns the literal-anchor automaton that
// narrows a byte scan down to the windows worth running precise regexes
// over, plus the lazily-compiled precise-regex cache shared by every
// worker.
package prefilter

import (
	"errors"
	"sync"

	ahocorasick "github.com/petar-dambovaliev/aho-corasick"
	re2 "github.com/wasilibs/go-re2"

	"github.com/silvanforge/keyhunter/internal/anchor"
	"github.com/silvanforge/keyhunter/internal/rules"
	"github.com/silvanforge/keyhunter/internal/scanerr"
)

// Plan is the immutable prefilter plan described in spec §3/§4.3. Every
// field is read-only after Build except cache, which is guarded by mu.
type Plan struct {
	Anchors       []string // anchor id -> literal text
	AnchorToRules [][]int  // anchor id -> rule indices
	RulePatterns  []string // rule id -> raw pattern text
	RuleIDs       []string // rule id -> declared rule ID, for diagnostics

	ac ahocorasick.AhoCorasick

	mu         sync.Mutex
	cache      map[int]*re2.Regexp
	dead       map[int]bool  // rules whose pattern failed to compile (RegexError)
	compileErr map[int]error // the compile failure recorded for each dead rule
}

// Hit is a single automaton match: the literal's start position in the
// scanned buffer and which anchor matched.
type Hit struct {
	Pos      int
	AnchorID int
}

// Build constructs a Plan from a rule catalog. Rules that produce no
// anchors (spec's EmptyAnchors condition) are retained in RulePatterns —
// they simply never surface in AnchorToRules, so the prefilter can never
// open a window for them; they are dormant, not an error.
func Build(specs []rules.Spec) *Plan {
	anchorIDs := map[string]int{}
	var anchors []string
	ruleAnchorIDs := make([][]int, len(specs))

	for ruleIdx, spec := range specs {
		for _, a := range anchor.Extract(spec.Pattern) {
			id, ok := anchorIDs[a]
			if !ok {
				id = len(anchors)
				anchors = append(anchors, a)
				anchorIDs[a] = id
			}
			ruleAnchorIDs[ruleIdx] = append(ruleAnchorIDs[ruleIdx], id)
		}
	}

	anchorToRules := make([][]int, len(anchors))
	for ruleIdx, ids := range ruleAnchorIDs {
		for _, aid := range ids {
			anchorToRules[aid] = append(anchorToRules[aid], ruleIdx)
		}
	}

	rulePatterns := make([]string, len(specs))
	ruleIDs := make([]string, len(specs))
	for i, s := range specs {
		rulePatterns[i] = s.Pattern
		ruleIDs[i] = s.ID
	}

	builder := ahocorasick.NewAhoCorasickBuilder(ahocorasick.Opts{
		MatchKind: ahocorasick.LeftMostLongestMatch,
	})

	return &Plan{
		Anchors:       anchors,
		AnchorToRules: anchorToRules,
		RulePatterns:  rulePatterns,
		RuleIDs:       ruleIDs,
		ac:            builder.Build(anchors),
		cache:         make(map[int]*re2.Regexp),
		dead:          make(map[int]bool),
		compileErr:    make(map[int]error),
	}
}

// FindHits runs the anchor automaton over buf and returns every literal
// match, in automaton-reported order (not necessarily position order — the
// caller is expected to sort by position, per spec §4.4 step 2).
func (p *Plan) FindHits(buf []byte) []Hit {
	var hits []Hit
	it := p.ac.Iter(string(buf))
	for m := it.Next(); m != nil; m = it.Next() {
		hits = append(hits, Hit{Pos: m.Start(), AnchorID: m.Pattern()})
	}
	return hits
}

// Regex returns the compiled precise regex for ruleIdx, compiling and
// caching it on first use. ok is false when the rule's pattern failed to
// compile (spec's RegexError) — the rule is disabled for the rest of the
// run; callers should treat it as "matches nothing" rather than retry.
func (p *Plan) Regex(ruleIdx int) (re *re2.Regexp, ok bool) {
	p.mu.Lock()
	if re, cached := p.cache[ruleIdx]; cached {
		p.mu.Unlock()
		return re, true
	}
	if p.dead[ruleIdx] {
		p.mu.Unlock()
		return nil, false
	}
	p.mu.Unlock()

	compiled, err := re2.Compile(p.RulePatterns[ruleIdx])

	p.mu.Lock()
	defer p.mu.Unlock()
	// Double-check: another goroutine may have compiled this rule while we
	// held no lock. Compiled regexes with the same pattern are semantically
	// equal, so redundant compilation is wasted work, not a correctness bug.
	if re, cached := p.cache[ruleIdx]; cached {
		return re, true
	}
	if err != nil {
		p.dead[ruleIdx] = true
		p.compileErr[ruleIdx] = err
		return nil, false
	}
	p.cache[ruleIdx] = compiled
	return compiled, true
}

// CompileAll eagerly compiles every rule's precise regex and joins every
// compile failure into a single error via errors.Join (spec §3's
// independent-failure-collection contract for rule compilation). It never
// aborts the plan: a rule that fails to compile here was already going to
// be dormant for the rest of the run (see Regex); CompileAll exists only so
// the caller can log the full set of RegexErrors once, up front, instead of
// discovering them one at a time as windows happen to reach each rule.
func (p *Plan) CompileAll() error {
	var errs []error
	for i := range p.RulePatterns {
		if _, ok := p.Regex(i); ok {
			continue
		}
		p.mu.Lock()
		err := p.compileErr[i]
		p.mu.Unlock()
		errs = append(errs, &scanerr.RegexError{RuleID: p.RuleIDs[i], Pattern: p.RulePatterns[i], Err: err})
	}
	return errors.Join(errs...)
}
