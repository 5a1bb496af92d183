package rules

import (
	"os"
	"path/filepath"
	"testing"
)

func writeTOML(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "rules.toml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write rules file: %v", err)
	}
	return path
}

func TestLoadBasic(t *testing.T) {
	path := writeTOML(t, `
[[rules]]
id = "openai"
name = "OpenAI API key"
pattern = "sk-[A-Za-z0-9]{20,}"

[[rules]]
id = "github"
pattern = "ghp_[A-Za-z0-9]{36}"
`)

	specs, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(specs) != 2 {
		t.Fatalf("want 2 specs, got %d", len(specs))
	}
	if specs[0].ID != "openai" || specs[0].Name != "OpenAI API key" {
		t.Errorf("unexpected first spec: %+v", specs[0])
	}
	if specs[1].ID != "github" || specs[1].Name != "" {
		t.Errorf("unexpected second spec: %+v", specs[1])
	}
}

func TestLoadRegexFieldFallback(t *testing.T) {
	path := writeTOML(t, `
[[rules]]
id = "legacy"
regex = "AKIA[0-9A-Z]{16}"
`)

	specs, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(specs) != 1 || specs[0].Pattern != "AKIA[0-9A-Z]{16}" {
		t.Fatalf("regex field should be used when pattern is absent: %+v", specs)
	}
}

func TestLoadPatternWinsOverRegex(t *testing.T) {
	path := writeTOML(t, `
[[rules]]
id = "both"
pattern = "pattern-wins"
regex = "regex-loses"
`)

	specs, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if specs[0].Pattern != "pattern-wins" {
		t.Errorf("pattern should win over regex, got %q", specs[0].Pattern)
	}
}

func TestLoadDropsEntriesMissingBothFields(t *testing.T) {
	path := writeTOML(t, `
[[rules]]
id = "empty"

[[rules]]
id = "valid"
pattern = "abc"
`)

	specs, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(specs) != 1 || specs[0].ID != "valid" {
		t.Fatalf("want only the valid entry preserved, got %+v", specs)
	}
}

func TestLoadPreservesOrderAsStableIndex(t *testing.T) {
	path := writeTOML(t, `
[[rules]]
id = "third"
pattern = "c"

[[rules]]
id = "first"
pattern = "a"

[[rules]]
id = "second"
pattern = "b"
`)

	specs, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	want := []string{"third", "first", "second"}
	for i, id := range want {
		if specs[i].ID != id {
			t.Errorf("index %d = %q, want %q", i, specs[i].ID, id)
		}
	}
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.toml"))
	if err == nil {
		t.Fatal("want error for missing file")
	}
	if _, ok := err.(*ConfigError); !ok {
		t.Errorf("want *ConfigError, got %T", err)
	}
}

func TestLoadUnparseableFile(t *testing.T) {
	path := writeTOML(t, "this is not valid toml {{{")
	_, err := Load(path)
	if err == nil {
		t.Fatal("want error for unparseable file")
	}
	if _, ok := err.(*ConfigError); !ok {
		t.Errorf("want *ConfigError, got %T", err)
	}
}
