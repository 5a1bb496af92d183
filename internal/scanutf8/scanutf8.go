// Package scanutf8 implements the alternate, unfiltered scan engine (spec
// §4.5): the whole file is decoded as UTF-8 and every rule's precise regex
// is run directly against it. There is no automaton prefilter and no binary
// sniffer — this engine trades throughput for simplicity and is selected
// with --engine utf8.
package scanutf8

import (
	"errors"
	"os"
	"unicode/utf8"

	"github.com/silvanforge/keyhunter/internal/finding"
	"github.com/silvanforge/keyhunter/internal/prefilter"
	"github.com/silvanforge/keyhunter/internal/scanerr"
)

// errInvalidUTF8 is returned by decodeStrict when the file's bytes are not
// well-formed UTF-8. Unlike the bytes engine, this engine has no lossy
// fallback: a decode failure here means the whole file is unscannable.
var errInvalidUTF8 = errors.New("not valid utf-8")

func decodeStrict(data []byte) (string, error) {
	if !utf8.Valid(data) {
		return "", errInvalidUTF8
	}
	return string(data), nil
}

// Scan reads path whole, decodes it as UTF-8, and runs every rule's precise
// regex against the decoded text. A file that isn't valid UTF-8 is reported
// as an IoError and skipped by the caller, per spec §7's per-file recovery.
// The second return is always 0: this engine has no prefilter stage, so it
// has no candidate count to report.
func Scan(path, fileHash string, plan *prefilter.Plan) ([]finding.Finding, int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, 0, &scanerr.IoError{Path: path, Err: err}
	}

	text, err := decodeStrict(data)
	if err != nil {
		return nil, 0, &scanerr.IoError{Path: path, Err: err}
	}

	seen := map[string]struct{}{}
	var findings []finding.Finding

	for ruleIdx := range plan.RulePatterns {
		re, ok := plan.Regex(ruleIdx)
		if !ok {
			continue
		}

		at := 0
		for at <= len(text) {
			loc := re.FindStringSubmatchIndex(text[at:])
			if loc == nil {
				break
			}
			matchEnd := loc[1] + at

			start, end := loc[0]+at, loc[1]+at
			if len(loc) >= 4 && loc[2] != -1 && loc[3] != -1 {
				start, end = loc[2]+at, loc[3]+at
			}

			if end > start {
				value := text[start:end]
				if _, dup := seen[value]; !dup {
					seen[value] = struct{}{}
					findings = append(findings, finding.Finding{
						FileHash:    fileHash,
						Value:       value,
						StartOffset: start,
					})
				}
			}

			if matchEnd > at {
				at = matchEnd
			} else {
				at++
			}
		}
	}

	finding.SortStable(findings)
	return findings, 0, nil
}
