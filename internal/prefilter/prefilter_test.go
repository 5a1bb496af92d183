package prefilter

import (
	"errors"
	"testing"

	"github.com/silvanforge/keyhunter/internal/rules"
	"github.com/silvanforge/keyhunter/internal/scanerr"
)

func TestBuildAssignsSharedAnchorIDsAcrossRules(t *testing.T) {
	plan := Build([]rules.Spec{
		{ID: "stripe-sk", Pattern: `sk_(?:live|test)_[A-Za-z0-9]{20,}`},
		{ID: "stripe-rk", Pattern: `rk_(?:live|test)_[A-Za-z0-9]{20,}`},
	})

	hits := plan.FindHits([]byte("prefix sk_live_abcdefghijklmnopqrst suffix"))
	if len(hits) != 1 {
		t.Fatalf("want 1 hit, got %d: %+v", len(hits), hits)
	}
	if got := plan.Anchors[hits[0].AnchorID]; got != "sk_" {
		t.Errorf("anchor = %q, want sk_", got)
	}
	rulesForHit := plan.AnchorToRules[hits[0].AnchorID]
	if len(rulesForHit) != 1 || rulesForHit[0] != 0 {
		t.Errorf("anchor sk_ should map only to rule 0, got %v", rulesForHit)
	}
}

func TestBuildRuleWithNoAnchorsIsDormantNotAnError(t *testing.T) {
	plan := Build([]rules.Spec{
		{ID: "opaque", Pattern: `[0-9]{4}-[0-9]{4}`},
	})
	if len(plan.Anchors) != 0 {
		t.Fatalf("want no anchors for a numeric-only pattern, got %v", plan.Anchors)
	}
	hits := plan.FindHits([]byte("1234-5678"))
	if len(hits) != 0 {
		t.Errorf("want no hits with an empty automaton, got %+v", hits)
	}
	if _, ok := plan.Regex(0); !ok {
		t.Errorf("dormant rule's own pattern should still compile on demand")
	}
}

func TestFindHitsNoMatch(t *testing.T) {
	plan := Build([]rules.Spec{{ID: "openai", Pattern: `sk-[A-Za-z0-9]{20,}`}})
	hits := plan.FindHits([]byte("nothing interesting here"))
	if len(hits) != 0 {
		t.Errorf("want no hits, got %+v", hits)
	}
}

func TestRegexCachesCompiledPattern(t *testing.T) {
	plan := Build([]rules.Spec{{ID: "openai", Pattern: `sk-[A-Za-z0-9]{20,}`}})

	re1, ok := plan.Regex(0)
	if !ok {
		t.Fatalf("want successful compile")
	}
	re2, ok := plan.Regex(0)
	if !ok {
		t.Fatalf("want successful compile on second call")
	}
	if re1 != re2 {
		t.Errorf("want the same cached *regexp returned on repeated calls")
	}
}

func TestRegexMarksUncompilablePatternDead(t *testing.T) {
	plan := Build([]rules.Spec{{ID: "bad", Pattern: `(unterminated`}})
	if _, ok := plan.Regex(0); ok {
		t.Errorf("want ok=false for an unterminated regex group")
	}
	// Repeated calls must not panic or attempt to recompile a known-dead rule.
	if _, ok := plan.Regex(0); ok {
		t.Errorf("want ok=false on second call for the same dead rule")
	}
}

func TestCompileAllJoinsEveryRuleCompileFailure(t *testing.T) {
	plan := Build([]rules.Spec{
		{ID: "ok", Pattern: `sk-[A-Za-z0-9]{20,}`},
		{ID: "bad-1", Pattern: `(unterminated`},
		{ID: "bad-2", Pattern: `[z-a]`},
	})

	err := plan.CompileAll()
	if err == nil {
		t.Fatalf("want a non-nil joined error for two uncompilable rules")
	}

	var re1 *scanerr.RegexError
	if !errors.As(err, &re1) {
		t.Fatalf("want at least one *scanerr.RegexError in the joined error, got %v", err)
	}

	count := 0
	for _, e := range []string{"bad-1", "bad-2"} {
		found := false
		for _, candidate := range unwrapJoined(err) {
			var re *scanerr.RegexError
			if errors.As(candidate, &re) && re.RuleID == e {
				found = true
				break
			}
		}
		if found {
			count++
		}
	}
	if count != 2 {
		t.Errorf("want both bad-1 and bad-2 represented in the joined error, got %d of 2: %v", count, err)
	}

	if _, ok := plan.Regex(0); !ok {
		t.Errorf("the compilable rule must still compile fine after CompileAll")
	}
}

// unwrapJoined flattens an errors.Join tree (or a single error) into a slice.
func unwrapJoined(err error) []error {
	if u, ok := err.(interface{ Unwrap() []error }); ok {
		return u.Unwrap()
	}
	return []error{err}
}

func TestBuildPreservesRulePatternsByIndex(t *testing.T) {
	plan := Build([]rules.Spec{
		{ID: "a", Pattern: "alpha"},
		{ID: "b", Pattern: "beta"},
	})
	if plan.RulePatterns[0] != "alpha" || plan.RulePatterns[1] != "beta" {
		t.Errorf("RulePatterns = %v, want [alpha beta]", plan.RulePatterns)
	}
}
