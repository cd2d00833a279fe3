package tracelens

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestBuiltinTemplates(t *testing.T) {
	r := NewPromptRegistry()
	for _, name := range []string{"summarize", "translate", "explain", "code_review"} {
		if _, ok := r.Get(name); !ok {
			t.Errorf("builtin template %q missing", name)
		}
	}
}

func TestTemplateRender(t *testing.T) {
	r := NewPromptRegistry()

	out, err := r.Render("summarize", map[string]string{"text": "a long article"})
	if err != nil {
		t.Fatalf("Render failed: %v", err)
	}
	if !strings.Contains(out, "a long article") {
		t.Errorf("rendered output missing variable value: %q", out)
	}
	if strings.Contains(out, "{text}") {
		t.Errorf("placeholder left unsubstituted: %q", out)
	}
}

func TestTemplateRenderMultiplePlaceholders(t *testing.T) {
	r := NewPromptRegistry()

	out, err := r.Render("translate", map[string]string{
		"target_language": "French",
		"text":            "hello",
	})
	if err != nil {
		t.Fatalf("Render failed: %v", err)
	}
	if !strings.Contains(out, "French") || !strings.Contains(out, "hello") {
		t.Errorf("rendered output = %q", out)
	}
}

func TestTemplateRenderUnknownVariable(t *testing.T) {
	r := NewPromptRegistry()

	_, err := r.Render("summarize", map[string]string{"text": "x", "bogus": "y"})
	var verr *ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected ValidationError for unknown variable, got %v", err)
	}
}

func TestTemplateRenderMissingVariable(t *testing.T) {
	r := NewPromptRegistry()

	_, err := r.Render("translate", map[string]string{"text": "x"})
	var verr *ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected ValidationError for missing variable, got %v", err)
	}
}

func TestRenderUnknownTemplate(t *testing.T) {
	r := NewPromptRegistry()

	_, err := r.Render("nonexistent", nil)
	var verr *ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected ValidationError for unknown template, got %v", err)
	}
	if verr.Field != "prompt_name" {
		t.Errorf("field = %q, want prompt_name", verr.Field)
	}
}

func TestPlaceholderParsing(t *testing.T) {
	tmpl, err := parseTemplate("test", "use {first} and {second}, keep {1bad} and { spaced } literal")
	if err != nil {
		t.Fatalf("parseTemplate failed: %v", err)
	}
	got := tmpl.Placeholders()
	if len(got) != 2 || got[0] != "first" || got[1] != "second" {
		t.Errorf("Placeholders = %v, want [first second]", got)
	}
}

func TestRegisterEmptyTemplate(t *testing.T) {
	r := NewPromptRegistry()
	if err := r.Register("empty", ""); err == nil {
		t.Error("empty template text accepted")
	}
	if err := r.Register("", "text"); err == nil {
		t.Error("empty template name accepted")
	}
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "prompts.yaml")
	content := "greet: |\n  Say hello to {name}.\nsummarize: |\n  Custom summary of {text}.\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	r := NewPromptRegistry()
	if err := r.LoadFile(path); err != nil {
		t.Fatalf("LoadFile failed: %v", err)
	}

	out, err := r.Render("greet", map[string]string{"name": "Ada"})
	if err != nil {
		t.Fatalf("Render failed: %v", err)
	}
	if !strings.Contains(out, "Ada") {
		t.Errorf("rendered output = %q", out)
	}

	// File templates override builtins of the same name.
	out, err = r.Render("summarize", map[string]string{"text": "x"})
	if err != nil {
		t.Fatalf("Render failed: %v", err)
	}
	if !strings.Contains(out, "Custom summary") {
		t.Errorf("builtin not overridden: %q", out)
	}
}

func TestLoadFileInvalidKeepsRegistry(t *testing.T) {
	path := filepath.Join(t.TempDir(), "prompts.yaml")
	if err := os.WriteFile(path, []byte("bad: [not, a, string]\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	r := NewPromptRegistry()
	before := len(r.Names())
	if err := r.LoadFile(path); err == nil {
		t.Fatal("invalid prompt file accepted")
	}
	if len(r.Names()) != before {
		t.Error("failed load mutated the registry")
	}
}

func TestWatchReload(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "prompts.yaml")
	if err := os.WriteFile(path, []byte("greet: Hello {name}\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	r := NewPromptRegistry()
	if err := r.LoadFile(path); err != nil {
		t.Fatalf("LoadFile failed: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := r.Watch(ctx, path, nopLogger{}); err != nil {
		t.Fatalf("Watch failed: %v", err)
	}

	if err := os.WriteFile(path, []byte("greet: Goodbye {name}\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		out, err := r.Render("greet", map[string]string{"name": "Ada"})
		if err == nil && strings.Contains(out, "Goodbye") {
			return
		}
		time.Sleep(20 * time.Millisecond)
	}
	t.Fatal("template change never picked up")
}
