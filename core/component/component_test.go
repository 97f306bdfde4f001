package component

import (
	"context"
	"strings"
	"testing"

	"github.com/tetherlab/tether/core/fault"
)

func movieDescriptor(t *testing.T) *Descriptor {
	t.Helper()
	d := NewDescriptor("Movie", KindEntity)
	props := []Property{
		{
			Name: "title", Kind: PropAttribute, ValueType: ValueTypeString,
			Exposure:   Exposure{Get: true, Set: true},
			Validators: []Validator{{Rule: RuleNotEmpty, Message: "title must not be empty"}},
		},
		{
			Name: "genre", Kind: PropAttribute, ValueType: ValueTypeString,
			Exposure: Exposure{Get: true, Set: true},
		},
		{
			Name: "rating", Kind: PropAttribute, ValueType: ValueTypeNumber,
			Default:  5.0,
			Exposure: Exposure{Get: true, Set: true},
			Validators: []Validator{
				{Rule: RuleMin, Value: 0},
				{Rule: RuleMax, Value: 10},
			},
		},
		{
			Name: "director", Kind: PropAttribute, ValueType: ValueTypeRef, Ref: "Director",
			Exposure: Exposure{Get: true, Set: true},
		},
		{Name: "play", Kind: PropMethod, Exposure: Exposure{Call: true}},
	}
	for _, p := range props {
		if err := d.AddInstanceProperty(p); err != nil {
			t.Fatalf("AddInstanceProperty(%s) failed: %v", p.Name, err)
		}
	}
	return d
}

func TestEntityDescriptorHasImplicitIdentifier(t *testing.T) {
	d := movieDescriptor(t)

	if d.Identifier != "id" {
		t.Fatalf("Identifier = %q, want id", d.Identifier)
	}
	p, err := d.Attribute("id")
	if err != nil {
		t.Fatalf("Attribute(id) failed: %v", err)
	}
	if !p.Exposure.Get {
		t.Error("identifier attribute should be get-exposed")
	}
}

func TestDescriptorRelatedComponents(t *testing.T) {
	d := movieDescriptor(t)

	related := d.RelatedComponents()
	if len(related) != 1 || related[0] != "Director" {
		t.Errorf("RelatedComponents() = %v, want [Director]", related)
	}
}

func TestUnknownAttribute(t *testing.T) {
	d := movieDescriptor(t)

	if _, err := d.Attribute("nope"); !fault.HasCode(err, fault.CodeUnknownAttribute) {
		t.Errorf("Attribute(nope) error = %v, want unknown attribute", err)
	}
	// Methods are not attributes.
	if _, err := d.Attribute("play"); !fault.HasCode(err, fault.CodeUnknownAttribute) {
		t.Errorf("Attribute(play) error = %v, want unknown attribute", err)
	}
}

func TestInstanceSetUnset(t *testing.T) {
	inst := NewInstance(movieDescriptor(t))

	if inst.IsSet("title") {
		t.Fatal("title should start unset")
	}
	if _, err := inst.Get("title"); !fault.IsUnsetAttribute(err) {
		t.Fatalf("Get(title) error = %v, want unset attribute", err)
	}

	if err := inst.Set("title", "Inception"); err != nil {
		t.Fatalf("Set(title) failed: %v", err)
	}
	got, err := inst.Get("title")
	if err != nil {
		t.Fatalf("Get(title) failed: %v", err)
	}
	if got != "Inception" {
		t.Errorf("title = %v, want Inception", got)
	}

	inst.Unset("title")
	if inst.IsSet("title") {
		t.Error("title should be unset again")
	}
}

func TestSetUndefinedIsStillSet(t *testing.T) {
	inst := NewInstance(movieDescriptor(t))

	if err := inst.Set("genre", Undefined); err != nil {
		t.Fatalf("Set(genre, Undefined) failed: %v", err)
	}
	if !inst.IsSet("genre") {
		t.Fatal("genre set to Undefined should count as set")
	}
	got, err := inst.Get("genre")
	if err != nil {
		t.Fatalf("Get(genre) failed: %v", err)
	}
	if !IsUndefined(got) {
		t.Errorf("genre = %v, want Undefined", got)
	}
}

func TestDefaultResolvesAndCaches(t *testing.T) {
	inst := NewInstance(movieDescriptor(t))

	got, err := inst.Get("rating")
	if err != nil {
		t.Fatalf("Get(rating) failed: %v", err)
	}
	if got != 5.0 {
		t.Errorf("rating default = %v, want 5", got)
	}
	if !inst.IsSet("rating") {
		t.Error("default resolution should mark the attribute set")
	}
}

func TestFunctionDefaultRunsOncePerInstance(t *testing.T) {
	d := NewDescriptor("Counter", KindEntity)
	calls := 0
	err := d.AddInstanceProperty(Property{
		Name: "slug", Kind: PropAttribute, ValueType: ValueTypeString,
		DefaultFunc: func(_ *Instance) any {
			calls++
			return "generated"
		},
		Exposure: Exposure{Get: true},
	})
	if err != nil {
		t.Fatalf("AddInstanceProperty failed: %v", err)
	}

	inst := NewInstance(d)
	for i := 0; i < 3; i++ {
		got, err := inst.Get("slug")
		if err != nil {
			t.Fatalf("Get(slug) failed: %v", err)
		}
		if got != "generated" {
			t.Errorf("slug = %v, want generated", got)
		}
	}
	if calls != 1 {
		t.Errorf("default function ran %d times, want 1", calls)
	}
}

func TestValidatorsRejectAndShortCircuit(t *testing.T) {
	inst := NewInstance(movieDescriptor(t))

	err := inst.Set("title", "   ")
	if !fault.IsValidation(err) {
		t.Fatalf("Set(blank title) error = %v, want validation", err)
	}
	if inst.IsSet("title") {
		t.Error("rejected assignment should not mark the attribute set")
	}

	// First failing validator wins: min rejects before max runs.
	err = inst.Set("rating", -1)
	if !fault.IsValidation(err) {
		t.Fatalf("Set(rating, -1) error = %v, want validation", err)
	}

	if err := inst.Set("rating", 8); err != nil {
		t.Fatalf("Set(rating, 8) failed: %v", err)
	}
}

func TestCheckRules(t *testing.T) {
	tests := []struct {
		name      string
		validator Validator
		value     any
		wantErr   bool
	}{
		{"min pass", Validator{Rule: RuleMin, Value: 3}, 5, false},
		{"min fail", Validator{Rule: RuleMin, Value: 3}, 2, true},
		{"max pass", Validator{Rule: RuleMax, Value: 10}, 10, false},
		{"max fail", Validator{Rule: RuleMax, Value: 10}, 11.5, true},
		{"min_length pass", Validator{Rule: RuleMinLength, Value: 3}, "abcd", false},
		{"min_length fail", Validator{Rule: RuleMinLength, Value: 3}, "ab", true},
		{"max_length fail", Validator{Rule: RuleMaxLength, Value: 2}, "abc", true},
		{"pattern pass", Validator{Rule: RulePattern, Value: "^[a-z]+$"}, "abc", false},
		{"pattern fail", Validator{Rule: RulePattern, Value: "^[a-z]+$"}, "ABC", true},
		{"not_empty fail", Validator{Rule: RuleNotEmpty}, " ", true},
		{"one_of pass", Validator{Rule: RuleOneOf, Value: []string{"action", "drama"}}, "drama", false},
		{"one_of fail", Validator{Rule: RuleOneOf, Value: []string{"action", "drama"}}, "comedy", true},
		{"unknown rule", Validator{Rule: "bogus"}, "x", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Check(tt.validator, "field", tt.value)
			if (err != nil) != tt.wantErr {
				t.Errorf("Check() error = %v, wantErr = %v", err, tt.wantErr)
			}
		})
	}
}

func TestValidatorCustomMessage(t *testing.T) {
	err := Check(Validator{Rule: RuleNotEmpty, Message: "give it a name"}, "title", "")
	if err == nil {
		t.Fatal("expected validation error")
	}
	if got := err.Error(); !strings.Contains(got, "give it a name") {
		t.Errorf("error %q should carry the custom message", got)
	}
}

func TestComponentMethodBinding(t *testing.T) {
	comp := NewComponent(movieDescriptor(t))

	if missing := comp.UnboundMethods(); len(missing) != 1 || missing[0] != "play" {
		t.Fatalf("UnboundMethods() = %v, want [play]", missing)
	}

	err := comp.BindMethod("play", func(_ context.Context, _ *Instance, _ []any) (any, error) {
		return "ok", nil
	})
	if err != nil {
		t.Fatalf("BindMethod failed: %v", err)
	}
	if missing := comp.UnboundMethods(); len(missing) != 0 {
		t.Errorf("UnboundMethods() = %v, want none", missing)
	}

	if err := comp.BindMethod("title", nil); err == nil {
		t.Error("binding a method onto an attribute should fail")
	}
	if err := comp.BindMethod("nope", nil); err == nil {
		t.Error("binding an undeclared method should fail")
	}
}

func TestSetRejectsDuplicates(t *testing.T) {
	a := NewComponent(movieDescriptor(t))
	b := NewComponent(movieDescriptor(t))

	if _, err := NewSet(a, b); err == nil {
		t.Error("NewSet should reject duplicate component names")
	}

	set, err := NewSet(a)
	if err != nil {
		t.Fatalf("NewSet failed: %v", err)
	}
	if _, ok := set.Descriptor("Movie"); !ok {
		t.Error("Descriptor(Movie) should resolve")
	}
	if _, ok := set.Descriptor("Ghost"); ok {
		t.Error("Descriptor(Ghost) should not resolve")
	}
}
