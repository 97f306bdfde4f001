package compdef

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/tetherlab/tether/core/component"
)

func writeFile(t *testing.T, dir, name, content string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0644); err != nil {
		t.Fatalf("write %s failed: %v", name, err)
	}
}

const movieYAML = `component: Movie
kind: entity
attributes:
  title:
    type: string
    expose:
      get: true
      set: true
    validators:
      - rule: not_empty
  rating:
    type: number
    default: 5
    expose:
      get: true
      set: true
  director:
    type: ref
    to: Director
    expose:
      get: true
`

func TestLoadDir(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "movie.yaml", movieYAML)

	comps, err := LoadDir(dir, Handlers{})
	if err != nil {
		t.Fatalf("LoadDir failed: %v", err)
	}
	if len(comps) != 1 || comps[0].Name() != "Movie" {
		t.Fatalf("comps = %v", comps)
	}

	desc := comps[0].Descriptor()
	if desc.Kind != component.KindEntity || desc.Identifier != "id" {
		t.Errorf("descriptor = %+v", desc)
	}

	title, err := desc.Attribute("title")
	if err != nil {
		t.Fatalf("Attribute(title) failed: %v", err)
	}
	if !title.Exposure.Get || !title.Exposure.Set {
		t.Errorf("title exposure = %+v", title.Exposure)
	}
	if len(title.Validators) != 1 || title.Validators[0].Rule != component.RuleNotEmpty {
		t.Errorf("title validators = %+v", title.Validators)
	}

	rating, err := desc.Attribute("rating")
	if err != nil {
		t.Fatalf("Attribute(rating) failed: %v", err)
	}
	if rating.Default != 5 {
		t.Errorf("rating default = %v", rating.Default)
	}

	director, err := desc.Attribute("director")
	if err != nil {
		t.Fatalf("Attribute(director) failed: %v", err)
	}
	if director.ValueType != component.ValueTypeRef || director.Ref != "Director" {
		t.Errorf("director = %+v", director)
	}
	if director.Exposure.Set {
		t.Error("director should not be set-exposed")
	}
}

func TestLoadDirWalksSubdirectories(t *testing.T) {
	dir := t.TempDir()
	sub := filepath.Join(dir, "catalog")
	if err := os.Mkdir(sub, 0755); err != nil {
		t.Fatalf("mkdir failed: %v", err)
	}
	writeFile(t, sub, "movie.yml", movieYAML)

	comps, err := LoadDir(dir, Handlers{})
	if err != nil {
		t.Fatalf("LoadDir failed: %v", err)
	}
	if len(comps) != 1 {
		t.Errorf("comps = %v, want one from the subdirectory", comps)
	}
}

func TestFragmentsMergeIntoComponents(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "timestamps.yaml", `fragment: timestamps
attributes:
  createdAt:
    type: string
    expose:
      get: true
  updatedAt:
    type: string
    expose:
      get: true
`)
	writeFile(t, dir, "movie.yaml", `component: Movie
mixins: [timestamps]
attributes:
  title:
    type: string
    expose:
      get: true
      set: true
`)

	comps, err := LoadDir(dir, Handlers{})
	if err != nil {
		t.Fatalf("LoadDir failed: %v", err)
	}
	desc := comps[0].Descriptor()
	for _, name := range []string{"title", "createdAt", "updatedAt"} {
		if _, err := desc.Attribute(name); err != nil {
			t.Errorf("Attribute(%s) failed: %v", name, err)
		}
	}
}

func TestIdentifierOverride(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "country.yaml", `component: Country
identifier: code
attributes:
  name:
    type: string
    expose:
      get: true
      set: true
`)

	comps, err := LoadDir(dir, Handlers{})
	if err != nil {
		t.Fatalf("LoadDir failed: %v", err)
	}
	desc := comps[0].Descriptor()
	if desc.Identifier != "code" {
		t.Fatalf("Identifier = %q, want code", desc.Identifier)
	}
	if _, err := desc.Attribute("code"); err != nil {
		t.Errorf("Attribute(code) failed: %v", err)
	}
	if _, err := desc.Attribute("id"); err == nil {
		t.Error("default identifier should have been renamed, not kept")
	}
}

func TestMethodsRequireHandlers(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "movie.yaml", `component: Movie
methods:
  play:
    expose:
      call: true
`)

	if _, err := LoadDir(dir, Handlers{}); err == nil {
		t.Fatal("declared method without handler should fail loading")
	}

	handlers := Handlers{
		Methods: map[string]component.MethodFunc{
			"Movie.play": func(_ context.Context, _ *component.Instance, _ []any) (any, error) {
				return "playing", nil
			},
		},
	}
	comps, err := LoadDir(dir, handlers)
	if err != nil {
		t.Fatalf("LoadDir failed: %v", err)
	}
	if missing := comps[0].UnboundMethods(); len(missing) != 0 {
		t.Errorf("UnboundMethods = %v", missing)
	}
}

func TestLoadDirRejections(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{"no name", "attributes:\n  a:\n    type: string\n"},
		{"unknown kind", "component: X\nkind: widget\n"},
		{"unknown type", "component: X\nattributes:\n  a:\n    type: blob\n"},
		{"ref without target", "component: X\nattributes:\n  a:\n    type: ref\n"},
		{"unknown rule", "component: X\nattributes:\n  a:\n    type: string\n    validators:\n      - rule: bogus\n"},
		{"unknown mixin", "component: X\nmixins: [ghost]\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			writeFile(t, dir, "x.yaml", tt.yaml)
			if _, err := LoadDir(dir, Handlers{}); err == nil {
				t.Error("expected a load failure")
			}
		})
	}
}

func TestDuplicateFragmentRejected(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "a.yaml", "fragment: shared\n")
	writeFile(t, dir, "b.yaml", "fragment: shared\n")

	if _, err := LoadDir(dir, Handlers{}); err == nil {
		t.Error("duplicate fragment names should fail loading")
	}
}
