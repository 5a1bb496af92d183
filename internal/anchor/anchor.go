// Package anchor derives must-match literal anchors from rule patterns.
//
// Anchor extraction is intentionally heuristic and conservative: missing a
// required literal in a pattern costs recall, so the extractor prefers to
// over-anchor (keep a few extra, harmless literals) rather than under-anchor
// (drop a literal a real match depends on). See SPEC_FULL.md §8.2 for the
// accepted tradeoff.
package anchor

import (
	"sort"
)

// curated is the built-in set of high-signal literals covering the regex
// constructs the mechanical walk below can't see through: character classes
// at the very start of a pattern, and alternations of short tokens.
var curated = []string{
	"sk-", "sk_", "rk_", "ghp_", "gho_", "ghr_", "ghs_", "ghu_", "github_pat_", "glpat-",
	"xoxb-", "xoxp-", "xoxe-", "xoxs-", "xapp-", "hooks.slack.com", "slack.com",
	"AKIA", "ASIA", "A3T", "ABIA", "ACCA", "v1.0-", "cloudflare",
	"doo_v1_", "dop_v1_", "dor_v1_", "discord", "dropbox", "EAA", "facebook",
	"heroku", "HRKU-AA", "hf_", "api_org_", "lin_api_", "mailgun", "ntn_",
	"PMAK-", "pnu_", "ATATT3", "SG.", "sntrys_", "sntryu_", "shpat_", "shpca_",
	"shppa_", "shpss_", "telegram", "AIza", "ya29.", "openai", "cohere",
	"-----BEGIN ", "-----END ", "PRIVATE KEY", "RSA PRIVATE KEY", "EC PRIVATE KEY",
	"OPENSSH PRIVATE KEY",
}

// alternationIdioms recognizes a small set of fixed alternation shapes and
// expands them into the literals they can produce. Detection is by fixed
// substring match on the pattern text, not by parsing the alternation.
var alternationIdioms = []struct {
	substrs []string
	expand  []string
}{
	{[]string{"xox[pe]", "xox(?:p|e)"}, []string{"xoxp-", "xoxe-"}},
	{[]string{"xox[os]", "xox(?:o|s)"}, []string{"xoxo-", "xoxs-"}},
	{[]string{"(?:ghu|ghs)_", "ghu|ghs)_"}, []string{"ghu_", "ghs_"}},
	{[]string{"(?:sk|rk)_", "sk|rk)_"}, []string{"sk_", "rk_"}},
}

// stopwords are common-enough substrings that, alone, make a poor anchor.
var stopwords = map[string]bool{
	"KEY": true, "BEGIN": true, "END": true, "PRIVATE": true, "TOKEN": true,
	"ACCESS": true, "SECRET": true, "AUTH": true, "PASSWORD": true,
}

// shortWhitelist are short anchors that are kept even though they fail the
// general length/separator filter below. sk-/rk- join their underscored
// siblings so the curated OpenAI/Stripe prefixes don't go dormant purely
// for being three bytes long.
var shortWhitelist = map[string]bool{
	"sk_": true, "rk_": true, "sk-": true, "rk-": true,
	"ghu_": true, "ghs_": true,
	"xoxp-": true, "xoxe-": true, "xoxs-": true, "xoxo-": true,
	"AIza": true, "ya29.": true,
}

// Extract returns the anchors derivable from pat: the union of the curated
// list, alternation-idiom expansion, and mechanical literal-run extraction,
// filtered and deduplicated, sorted by length descending then
// lexicographically ascending for deterministic anchor-id assignment.
func Extract(pat string) []string {
	out := map[string]struct{}{}

	for _, c := range curated {
		if contains(pat, c) {
			out[c] = struct{}{}
		}
	}

	for _, idiom := range alternationIdioms {
		for _, s := range idiom.substrs {
			if contains(pat, s) {
				for _, e := range idiom.expand {
					out[e] = struct{}{}
				}
				break
			}
		}
	}

	for _, run := range literalRuns(pat) {
		if len(run) >= 3 {
			out[run] = struct{}{}
		}
	}

	filtered := make([]string, 0, len(out))
	for s := range out {
		if keep(s) {
			filtered = append(filtered, s)
		}
	}

	sort.Slice(filtered, func(i, j int) bool {
		if len(filtered[i]) != len(filtered[j]) {
			return len(filtered[i]) > len(filtered[j])
		}
		return filtered[i] < filtered[j]
	})
	return filtered
}

func keep(s string) bool {
	if shortWhitelist[s] {
		return true
	}
	if len(s) < 3 || stopwords[upper(s)] {
		return false
	}
	if len(s) >= 6 {
		return true
	}
	if len(s) >= 4 && hasSeparator(s) {
		return true
	}
	return false
}

func hasSeparator(s string) bool {
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '-', '_', '.', '/':
			return true
		}
	}
	return false
}

func upper(s string) string {
	b := make([]byte, len(s))
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c >= 'a' && c <= 'z' {
			c -= 'a' - 'A'
		}
		b[i] = c
	}
	return string(b)
}

func contains(s, substr string) bool {
	return indexOf(s, substr) >= 0
}

func indexOf(s, substr string) int {
	n, m := len(s), len(substr)
	if m == 0 {
		return 0
	}
	for i := 0; i+m <= n; i++ {
		if s[i:i+m] == substr {
			return i
		}
	}
	return -1
}

// isMeta reports whether ch is a regex metacharacter that terminates a
// literal run.
func isMeta(ch byte) bool {
	switch ch {
	case '[', ']', '{', '}', '(', ')', '?', '*', '+', '|', '^', '$', '\\':
		return true
	}
	return false
}

// isAllowed reports whether ch can participate in a literal run: ASCII
// alphanumerics plus the separator set a secret value commonly uses.
func isAllowed(ch byte) bool {
	switch {
	case ch >= 'A' && ch <= 'Z', ch >= 'a' && ch <= 'z', ch >= '0' && ch <= '9':
		return true
	case ch == '-' || ch == '_' || ch == '.' || ch == '/':
		return true
	}
	return false
}

// literalRuns scans pat character by character, accumulating runs of
// isAllowed characters. Runs are flushed on any metacharacter, on entering a
// bracketed character class (whose contents are discarded wholesale — no
// attempt is made to reason about what a class can match), and on any other
// disallowed character.
func literalRuns(pat string) []string {
	var runs []string
	var cur []byte
	inClass := false

	flush := func() {
		if len(cur) > 0 {
			runs = append(runs, string(cur))
			cur = cur[:0]
		}
	}

	for i := 0; i < len(pat); i++ {
		ch := pat[i]
		switch {
		case ch == '[':
			inClass = true
			flush()
		case ch == ']':
			inClass = false
			flush()
		case inClass:
			// discard: character class contents aren't reasoned about
		case isMeta(ch):
			flush()
		case isAllowed(ch):
			cur = append(cur, ch)
		default:
			flush()
		}
	}
	flush()
	return runs
}
