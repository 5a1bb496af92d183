// Package dispatch fans input files out to a worker pool and fans their
// findings back in through a single writer that preserves the original,
// pre-scan file order regardless of completion order (spec §4.7).
package dispatch

import (
	"github.com/sourcegraph/conc/pool"

	"github.com/silvanforge/keyhunter/internal/finding"
	"github.com/silvanforge/keyhunter/internal/output"
	"github.com/silvanforge/keyhunter/internal/walker"
)

// channelCapacity is the bounded channel's capacity between workers and the
// writer (spec §4.7).
const channelCapacity = 256

// ScanFunc scans one file and returns its findings plus the number of raw
// prefilter candidates it examined (0 for engines with no prefilter stage).
// A non-nil error means the file is dropped silently; it contributes no
// findings and does not count toward Stats.FilesScanned.
type ScanFunc func(entry walker.Entry) (findings []finding.Finding, candidates int, err error)

// Stats summarizes one run for batch-job observability (spec.md §9's
// run-statistics supplement; not part of the matcher's own semantics).
type Stats struct {
	FilesScanned    int
	CandidatesTotal int
	OutputsWritten  int
}

type message struct {
	index      int
	findings   []finding.Finding
	candidates int
	scanned    bool
}

// Run scans entries with threads workers and writes results, in original
// order, to w. threads <= 1 bypasses the pool entirely and scans
// sequentially on the calling goroutine.
func Run(entries []walker.Entry, threads int, scan ScanFunc, w *output.Writer) (Stats, error) {
	if threads <= 1 {
		return runSequential(entries, scan, w)
	}
	return runParallel(entries, threads, scan, w)
}

func runSequential(entries []walker.Entry, scan ScanFunc, w *output.Writer) (Stats, error) {
	var stats Stats
	for _, e := range entries {
		findings, candidates, err := scan(e)
		if err != nil {
			continue
		}
		stats.FilesScanned++
		stats.CandidatesTotal += candidates
		if err := w.WriteAll(findings); err != nil {
			return stats, err
		}
		stats.OutputsWritten += len(findings)
	}
	return stats, nil
}

func runParallel(entries []walker.Entry, threads int, scan ScanFunc, w *output.Writer) (Stats, error) {
	ch := make(chan message, channelCapacity)
	p := pool.New().WithMaxGoroutines(threads)

	for i, e := range entries {
		i, e := i, e
		p.Go(func() {
			findings, candidates, err := scan(e)
			ch <- message{index: i, findings: findings, candidates: candidates, scanned: err == nil}
		})
	}

	type result struct {
		stats Stats
		err   error
	}
	done := make(chan result, 1)
	go func() {
		stats, err := writeInOrder(ch, len(entries), w)
		done <- result{stats: stats, err: err}
	}()

	p.Wait()
	close(ch)
	r := <-done
	return r.stats, r.err
}

// writeInOrder holds a gap-buffer keyed by index and flushes any run of
// consecutive ready entries as soon as the next expected index arrives.
//
// Once a write to w fails, writeInOrder stops writing but keeps draining ch
// until every one of the total entries has been received. Every p.Go
// closure in runParallel sends exactly one message on ch unconditionally;
// if writeInOrder returned as soon as the first write error occurred, any
// of those sends still in flight would block forever on a full channel and
// p.Wait() would never return. Draining the rest (discarding their
// findings) keeps the channel protocol honest without resurrecting the
// failed write.
func writeInOrder(ch <-chan message, total int, w *output.Writer) (Stats, error) {
	var stats Stats
	var firstErr error
	pending := make(map[int]message, channelCapacity)
	next := 0
	received := 0

	flushReady := func() error {
		for {
			msg, ok := pending[next]
			if !ok {
				return nil
			}
			delete(pending, next)
			next++
			if msg.scanned {
				stats.FilesScanned++
				stats.CandidatesTotal += msg.candidates
				if err := w.WriteAll(msg.findings); err != nil {
					return err
				}
				stats.OutputsWritten += len(msg.findings)
			}
		}
	}

	for received < total {
		msg, ok := <-ch
		if !ok {
			break
		}
		received++
		if firstErr != nil {
			continue // sink is broken; keep draining, don't touch w again
		}
		pending[msg.index] = msg
		if err := flushReady(); err != nil {
			firstErr = err
		}
	}

	if firstErr == nil {
		firstErr = flushReady()
	}
	return stats, firstErr
}
