package scanutf8

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/silvanforge/keyhunter/internal/prefilter"
	"github.com/silvanforge/keyhunter/internal/rules"
)

func testPlan(t *testing.T) *prefilter.Plan {
	t.Helper()
	return prefilter.Build([]rules.Spec{
		{ID: "openai", Name: "OpenAI API key", Pattern: `sk-[A-Za-z0-9]{20,}`},
	})
}

func writeTemp(t *testing.T, name string, data []byte) string {
	t.Helper()
	dir := t.TempDir()
	p := filepath.Join(dir, name)
	if err := os.WriteFile(p, data, 0o644); err != nil {
		t.Fatalf("write temp file: %v", err)
	}
	return p
}

func TestScanBasicMatch(t *testing.T) {
	plan := testPlan(t)
	content := "API_KEY=sk-abcdefghijklmnopqrstuvwxyz\n"
	path := writeTemp(t, "a.txt", []byte(content))

	got, _, err := Scan(path, "hash-a", plan)
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("want 1 finding, got %d: %+v", len(got), got)
	}
	if !strings.HasPrefix(got[0].Value, "sk-") {
		t.Errorf("unexpected value %q", got[0].Value)
	}
}

func TestScanDedupWithinFile(t *testing.T) {
	plan := testPlan(t)
	content := "sk-abcdefghijklmnopqrstuvwxyz twice sk-abcdefghijklmnopqrstuvwxyz"
	path := writeTemp(t, "b.txt", []byte(content))

	got, _, err := Scan(path, "hash-b", plan)
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("want 1 deduped finding, got %d: %+v", len(got), got)
	}
}

func TestScanInvalidUTF8(t *testing.T) {
	plan := testPlan(t)
	path := writeTemp(t, "bad.txt", []byte{0xff, 0xfe, 0x00})

	_, _, err := Scan(path, "hash-bad", plan)
	if err == nil {
		t.Fatal("want error for invalid utf-8")
	}
}

func TestScanNoMatch(t *testing.T) {
	plan := testPlan(t)
	path := writeTemp(t, "clean.txt", []byte("nothing to see here"))

	got, _, err := Scan(path, "hash-clean", plan)
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}
	if len(got) != 0 {
		t.Fatalf("want no findings, got %+v", got)
	}
}

func TestScanDoesNotSkipBinaryLookingButValidUTF8(t *testing.T) {
	plan := testPlan(t)
	content := "\x01\x02sk-abcdefghijklmnopqrstuvwxyz\x03"
	path := writeTemp(t, "ctrl.txt", []byte(content))

	got, _, err := Scan(path, "hash-ctrl", plan)
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("utf8 engine has no binary sniffer, want 1 finding, got %d", len(got))
	}
}
