package tracelens

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"
	"gopkg.in/yaml.v3"
)

// placeholderPattern matches {name} placeholders. Names are restricted to
// identifier characters so literal braces in prose pass through untouched.
var placeholderPattern = regexp.MustCompile(`\{([a-zA-Z_][a-zA-Z0-9_]*)\}`)

// PromptTemplate is a named text template with {placeholder} variables.
// Placeholders are parsed once at registration; rendering validates the
// supplied variables against them before substitution.
type PromptTemplate struct {
	Name         string
	Text         string
	placeholders map[string]struct{}
}

// Placeholders returns the template's placeholder names, sorted.
func (t *PromptTemplate) Placeholders() []string {
	names := make([]string, 0, len(t.placeholders))
	for name := range t.placeholders {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Render substitutes the supplied variables into the template. Every
// placeholder must be supplied and every variable must match a
// placeholder; unknown or missing names are validation errors.
func (t *PromptTemplate) Render(vars map[string]string) (string, error) {
	for name := range vars {
		if _, ok := t.placeholders[name]; !ok {
			return "", NewValidationError("variables", fmt.Sprintf("unknown placeholder %q", name))
		}
	}
	for name := range t.placeholders {
		if _, ok := vars[name]; !ok {
			return "", NewValidationError("variables", fmt.Sprintf("missing value for placeholder %q", name))
		}
	}

	rendered := placeholderPattern.ReplaceAllStringFunc(t.Text, func(match string) string {
		name := match[1 : len(match)-1]
		return vars[name]
	})
	return rendered, nil
}

// parseTemplate builds a PromptTemplate, extracting its placeholders.
func parseTemplate(name, text string) (*PromptTemplate, error) {
	if err := ValidateRequired("name", name); err != nil {
		return nil, err
	}
	if err := ValidateRequired("template", text); err != nil {
		return nil, err
	}
	placeholders := make(map[string]struct{})
	for _, m := range placeholderPattern.FindAllStringSubmatch(text, -1) {
		placeholders[m[1]] = struct{}{}
	}
	return &PromptTemplate{Name: name, Text: text, placeholders: placeholders}, nil
}

// PromptRegistry maps template names to typed templates. The registry is
// safe for concurrent reads and writes; a file reload swaps contents
// atomically and keeps the previous contents when the new file fails
// validation.
type PromptRegistry struct {
	mu        sync.RWMutex
	templates map[string]*PromptTemplate
}

// builtinTemplates seed every registry. They mirror the demo's canned
// prompt dictionary.
var builtinTemplates = map[string]string{
	"summarize":   "Summarize the following text in a concise manner:\n\n{text}",
	"translate":   "Translate the following text to {target_language}:\n\n{text}",
	"explain":     "Explain the following concept in simple terms:\n\n{concept}",
	"code_review": "Review the following code and provide suggestions:\n\n{code}",
}

// NewPromptRegistry creates a registry seeded with the built-in templates.
func NewPromptRegistry() *PromptRegistry {
	r := &PromptRegistry{templates: make(map[string]*PromptTemplate, len(builtinTemplates))}
	for name, text := range builtinTemplates {
		t, err := parseTemplate(name, text)
		if err != nil {
			// Built-ins are compile-time constants; a parse failure here
			// is a programming error.
			panic(err)
		}
		r.templates[name] = t
	}
	return r
}

// Register parses and stores a template, replacing any previous template
// with the same name.
func (r *PromptRegistry) Register(name, text string) error {
	t, err := parseTemplate(name, text)
	if err != nil {
		return err
	}
	r.mu.Lock()
	r.templates[name] = t
	r.mu.Unlock()
	return nil
}

// Get returns the named template, or false when it is not registered.
func (r *PromptRegistry) Get(name string) (*PromptTemplate, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.templates[name]
	return t, ok
}

// Names returns the registered template names, sorted.
func (r *PromptRegistry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.templates))
	for name := range r.templates {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Render looks up a template and substitutes the supplied variables.
func (r *PromptRegistry) Render(name string, vars map[string]string) (string, error) {
	t, ok := r.Get(name)
	if !ok {
		return "", NewValidationError("prompt_name", fmt.Sprintf("prompt %q not found", name))
	}
	return t.Render(vars)
}

// LoadFile merges templates from a YAML file into the registry. The file
// is a flat mapping of template name to template text:
//
//	summarize: |
//	  Summarize the following text:
//
//	  {text}
//
// The whole file is validated before any template is applied; an invalid
// file leaves the registry unchanged.
func (r *PromptRegistry) LoadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("tracelens: failed to read prompt file: %w", err)
	}

	var raw map[string]string
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("tracelens: failed to parse prompt file %s: %w", path, err)
	}

	parsed := make(map[string]*PromptTemplate, len(raw))
	for name, text := range raw {
		t, err := parseTemplate(name, text)
		if err != nil {
			return fmt.Errorf("tracelens: invalid template %q in %s: %w", name, path, err)
		}
		parsed[name] = t
	}

	r.mu.Lock()
	for name, t := range parsed {
		r.templates[name] = t
	}
	r.mu.Unlock()
	return nil
}

// Watch reloads the prompt file whenever it changes, until ctx is
// cancelled. Reload failures are logged and the previous templates stay
// in effect. The watch is placed on the parent directory so editors that
// replace the file (rename-over-write) keep triggering events.
func (r *PromptRegistry) Watch(ctx context.Context, path string, logger StructuredLogger) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("tracelens: failed to create prompt watcher: %w", err)
	}

	dir := filepath.Dir(path)
	if err := watcher.Add(dir); err != nil {
		watcher.Close()
		return fmt.Errorf("tracelens: failed to watch %s: %w", dir, err)
	}

	go func() {
		defer watcher.Close()
		target := filepath.Clean(path)
		for {
			select {
			case <-ctx.Done():
				return
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if filepath.Clean(event.Name) != target {
					continue
				}
				if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
					continue
				}
				if err := r.LoadFile(path); err != nil {
					logger.Warn("prompt file reload failed, keeping previous templates",
						"path", path, "error", err)
					continue
				}
				logger.Info("prompt templates reloaded", "path", path,
					"templates", strings.Join(r.Names(), ","))
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				logger.Warn("prompt watcher error", "error", err)
			}
		}
	}()
	return nil
}
