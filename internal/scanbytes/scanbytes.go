// Package scanbytes implements the byte scan engine (spec §4.4): whole-file
// or chunked scanning driven by the prefilter automaton, with precise
// regexes run only inside the narrow windows the automaton opens.
package scanbytes

import (
	"bufio"
	"io"
	"os"
	"sort"
	"unicode/utf8"

	"github.com/silvanforge/keyhunter/internal/finding"
	"github.com/silvanforge/keyhunter/internal/prefilter"
	"github.com/silvanforge/keyhunter/internal/scanerr"
)

const (
	// SmallFileMax is the threshold below which a file is read whole rather
	// than streamed in chunks.
	SmallFileMax = 1 << 20 // 1 MiB

	// ChunkSize and ChunkOverlap govern the streaming reader for files
	// larger than SmallFileMax. The overlap is large enough that a match
	// shorter than it can't straddle a chunk boundary undetected.
	ChunkSize    = 4 << 20 // 4 MiB
	ChunkOverlap = 512

	windowBefore = 128
	windowAfter  = 1024
	pemBeforeMin = 2048
	pemAfterMin  = 16 * 1024

	binarySampleSize = 8192
	binaryRatioFloor = 0.25
)

// ScanSmall reads path in full and scans it. Use when the file's size is
// <= SmallFileMax. The second return is the number of raw prefilter hits
// examined (spec.md §9's "candidate" count, exposed via ScanStats).
func ScanSmall(path, fileHash string, plan *prefilter.Plan) ([]finding.Finding, int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, 0, &scanerr.IoError{Path: path, Err: err}
	}

	sampleLen := len(data)
	if sampleLen > binarySampleSize {
		sampleLen = binarySampleSize
	}
	if isBinary(data[:sampleLen]) {
		return nil, 0, nil
	}

	seen := map[string]struct{}{}
	findings, candidates := scanBuffer(data, 0, fileHash, plan, seen)
	finding.SortStable(findings)
	return findings, candidates, nil
}

// ScanLarge streams path in ChunkSize chunks with ChunkOverlap bytes of
// carry retained between reads, so a match straddling a chunk boundary
// within the overlap window is still found exactly once. Use when the
// file's size exceeds SmallFileMax.
func ScanLarge(path, fileHash string, plan *prefilter.Plan) ([]finding.Finding, int, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, 0, &scanerr.IoError{Path: path, Err: err}
	}
	defer f.Close()

	reader := bufio.NewReaderSize(f, ChunkSize)
	buf := make([]byte, ChunkSize)

	var (
		findings         []finding.Finding
		carry            []byte
		nextChunkStart   int
		checkedForBinary bool
		candidates       int
	)
	seen := map[string]struct{}{}

	for {
		n, rerr := reader.Read(buf)
		if n > 0 {
			chunk := make([]byte, 0, len(carry)+n)
			chunk = append(chunk, carry...)
			chunk = append(chunk, buf[:n]...)

			if !checkedForBinary {
				checkedForBinary = true
				sampleLen := len(chunk)
				if sampleLen > binarySampleSize {
					sampleLen = binarySampleSize
				}
				if isBinary(chunk[:sampleLen]) {
					return nil, 0, nil
				}
			}

			base := nextChunkStart - len(carry)
			part, partCandidates := scanBuffer(chunk, base, fileHash, plan, seen)
			findings = append(findings, part...)
			candidates += partCandidates

			keep := ChunkOverlap
			if total := len(chunk); keep > total {
				keep = total
			}
			if keep > 0 {
				carry = append(carry[:0], chunk[len(chunk)-keep:]...)
			} else {
				carry = carry[:0]
			}
			nextChunkStart += n
		}

		if rerr == io.EOF {
			break
		}
		if rerr != nil {
			return nil, 0, &scanerr.IoError{Path: path, Err: rerr}
		}
	}

	finding.SortStable(findings)
	return findings, candidates, nil
}

// scanBuffer runs the two-stage matcher over one buffer: automaton prefilter
// for candidate positions, window construction, precise regex extraction.
// baseOffset is the file-global offset of buf[0]; seen is the per-file
// dedup set, shared across every chunk of the same file.
func scanBuffer(buf []byte, baseOffset int, fileHash string, plan *prefilter.Plan, seen map[string]struct{}) ([]finding.Finding, int) {
	hits := plan.FindHits(buf)
	if len(hits) == 0 {
		return nil, 0
	}
	sort.Slice(hits, func(i, j int) bool { return hits[i].Pos < hits[j].Pos })

	type win struct {
		start, end int
		anchorIDs  []int
	}
	var windows []win

	for _, h := range hits {
		anchorText := ""
		if h.AnchorID < len(plan.Anchors) {
			anchorText = plan.Anchors[h.AnchorID]
		}
		isBegin := hasPrefix(anchorText, "-----BEGIN ")
		isEnd := hasPrefix(anchorText, "-----END ")
		isPriv := contains(anchorText, "PRIVATE KEY")

		before := windowBefore
		if isEnd || isPriv {
			before = max(windowBefore, pemBeforeMin)
		}
		after := windowAfter
		if isBegin || isPriv {
			after = max(windowAfter, pemAfterMin)
		}

		s := h.Pos - before
		if s < 0 {
			s = 0
		}
		e := h.Pos + after
		if e > len(buf) {
			e = len(buf)
		}

		if n := len(windows); n > 0 && s <= windows[n-1].end {
			windows[n-1].end = max(windows[n-1].end, e)
			windows[n-1].anchorIDs = append(windows[n-1].anchorIDs, h.AnchorID)
			continue
		}
		windows = append(windows, win{start: s, end: e, anchorIDs: []int{h.AnchorID}})
	}

	var findings []finding.Finding
	for _, w := range windows {
		ruleSet := map[int]struct{}{}
		for _, aid := range w.anchorIDs {
			if aid >= len(plan.AnchorToRules) {
				continue
			}
			for _, ri := range plan.AnchorToRules[aid] {
				ruleSet[ri] = struct{}{}
			}
		}
		if len(ruleSet) == 0 {
			continue
		}

		window := buf[w.start:w.end]
		for ri := range ruleSet {
			re, ok := plan.Regex(ri)
			if !ok {
				continue
			}

			at := 0
			for at <= len(window) {
				loc := re.FindSubmatchIndex(window[at:])
				if loc == nil {
					break
				}
				matchEnd := loc[1] + at

				start, end := loc[0]+at, loc[1]+at
				if len(loc) >= 4 && loc[2] != -1 && loc[3] != -1 {
					start, end = loc[2]+at, loc[3]+at
				}

				if end > start {
					value := lossyUTF8(window[start:end])
					if _, dup := seen[value]; !dup {
						seen[value] = struct{}{}
						findings = append(findings, finding.Finding{
							FileHash:    fileHash,
							Value:       value,
							StartOffset: baseOffset + w.start + start,
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
	}

	return findings, len(hits)
}

// isBinary implements the binary-content sniffer (spec §4.4). sample must
// already be bounded to the first 8 KiB of the relevant buffer.
func isBinary(sample []byte) bool {
	if len(sample) == 0 {
		return false
	}
	printable := 0
	for _, b := range sample {
		if b == 0x00 {
			return true
		}
		if b == 0x09 || b == 0x0A || b == 0x0D || (b >= 0x20 && b <= 0x7E) {
			printable++
		}
	}
	return float64(printable)/float64(len(sample)) < binaryRatioFloor
}

// lossyUTF8 decodes raw bytes to a string, replacing invalid sequences with
// U+FFFD, mirroring the reference scanner's from_utf8_lossy conversion.
func lossyUTF8(raw []byte) string {
	if utf8.Valid(raw) {
		return string(raw)
	}
	buf := make([]rune, 0, len(raw))
	for len(raw) > 0 {
		r, size := utf8.DecodeRune(raw)
		buf = append(buf, r)
		raw = raw[size:]
	}
	return string(buf)
}

func hasPrefix(s, prefix string) bool {
	return len(s) >= len(prefix) && s[:len(prefix)] == prefix
}

func contains(s, substr string) bool {
	n, m := len(s), len(substr)
	if m == 0 {
		return true
	}
	for i := 0; i+m <= n; i++ {
		if s[i:i+m] == substr {
			return true
		}
	}
	return false
}

func max(a, b int) int {
	if a > b {
		return a
	}
	return b
}
