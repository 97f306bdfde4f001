package codec

import (
	"errors"
	"reflect"
	"testing"

	"github.com/tetherlab/tether/core/component"
	"github.com/tetherlab/tether/core/fault"
)

func bookComponents(t *testing.T) *component.Set {
	t.Helper()
	book := component.NewDescriptor("Book", component.KindEntity)
	props := []component.Property{
		{
			Name: "title", Kind: component.PropAttribute, ValueType: component.ValueTypeString,
			Exposure: component.Exposure{Get: true, Set: true},
		},
		{
			Name: "pages", Kind: component.PropAttribute, ValueType: component.ValueTypeNumber,
			Exposure: component.Exposure{Get: true, Set: true},
		},
		{
			Name: "draft", Kind: component.PropAttribute, ValueType: component.ValueTypeBoolean,
			Exposure: component.Exposure{Get: false, Set: true},
		},
		{
			Name: "royalties", Kind: component.PropAttribute, ValueType: component.ValueTypeNumber,
			Exposure: component.Exposure{Get: true, Set: false},
		},
	}
	for _, p := range props {
		if err := book.AddInstanceProperty(p); err != nil {
			t.Fatalf("AddInstanceProperty(%s) failed: %v", p.Name, err)
		}
	}
	set, err := component.NewSet(component.NewComponent(book))
	if err != nil {
		t.Fatalf("NewSet failed: %v", err)
	}
	return set
}

func TestSerializePrimitivesPassThrough(t *testing.T) {
	for _, v := range []any{nil, true, "text", 42, 3.5} {
		got, err := Serialize(v, SerializeOptions{})
		if err != nil {
			t.Fatalf("Serialize(%v) failed: %v", v, err)
		}
		if got != v {
			t.Errorf("Serialize(%v) = %v", v, got)
		}
	}
}

func TestSerializeTaggedValues(t *testing.T) {
	got, err := Serialize(component.Undefined, SerializeOptions{})
	if err != nil {
		t.Fatalf("Serialize(Undefined) failed: %v", err)
	}
	want := map[string]any{"__undefined": true}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Serialize(Undefined) = %v, want %v", got, want)
	}

	got, err = Serialize(Function{Source: "function () {}"}, SerializeOptions{})
	if err != nil {
		t.Fatalf("Serialize(Function) failed: %v", err)
	}
	if m := got.(map[string]any); m["__function"] != "function () {}" {
		t.Errorf("Serialize(Function) = %v", got)
	}

	got, err = Serialize(ClassRef{Name: "Book"}, SerializeOptions{})
	if err != nil {
		t.Fatalf("Serialize(ClassRef) failed: %v", err)
	}
	if m := got.(map[string]any); m["__class"] != "Book" {
		t.Errorf("Serialize(ClassRef) = %v", got)
	}
}

func TestSerializeError(t *testing.T) {
	got, err := Serialize(errors.New("boom"), SerializeOptions{})
	if err != nil {
		t.Fatalf("Serialize(error) failed: %v", err)
	}
	if m := got.(map[string]any); m["__error"] != "boom" {
		t.Errorf("Serialize(error) = %v", got)
	}

	got, err = Serialize(fault.NotFound("Book", "b1"), SerializeOptions{})
	if err != nil {
		t.Fatalf("Serialize(fault) failed: %v", err)
	}
	if m := got.(map[string]any); m["code"] != fault.CodeNotFound {
		t.Errorf("Serialize(fault) = %v, want code %s", got, fault.CodeNotFound)
	}
}

func TestSerializeRejectsReservedMapKeys(t *testing.T) {
	_, err := Serialize(map[string]any{"__sneaky": 1}, SerializeOptions{})
	if err == nil {
		t.Error("plain maps must not carry tag-prefixed keys")
	}
}

func TestSerializeInstanceExposureFilters(t *testing.T) {
	set := bookComponents(t)
	desc, _ := set.Descriptor("Book")
	inst := component.NewInstance(desc)
	inst.SetID("b1")
	inst.Apply("title", "Dune")
	inst.Apply("draft", true)
	inst.Apply("royalties", 1200)

	// FilterGet drops set-only attributes, keeps the identifier.
	got, err := Serialize(inst, SerializeOptions{FilterGet: true})
	if err != nil {
		t.Fatalf("Serialize failed: %v", err)
	}
	m := got.(map[string]any)
	if m["__component"] != "Book" || m["id"] != "b1" || m["title"] != "Dune" {
		t.Errorf("serialized instance = %v", m)
	}
	if _, present := m["draft"]; present {
		t.Error("draft is not get-exposed and must not be serialized")
	}
	if m["royalties"] != 1200 {
		t.Error("royalties is get-exposed and should survive FilterGet")
	}

	// FilterSet drops get-only attributes instead.
	got, err = Serialize(inst, SerializeOptions{FilterSet: true})
	if err != nil {
		t.Fatalf("Serialize failed: %v", err)
	}
	m = got.(map[string]any)
	if _, present := m["royalties"]; present {
		t.Error("royalties is not set-exposed and must not be serialized")
	}
	if m["draft"] != true || m["id"] != "b1" {
		t.Errorf("serialized instance = %v", m)
	}
}

func TestSerializeOmitsUnsetAttributes(t *testing.T) {
	set := bookComponents(t)
	desc, _ := set.Descriptor("Book")
	inst := component.NewInstance(desc)
	inst.Apply("title", "Dune")

	got, err := Serialize(inst, SerializeOptions{})
	if err != nil {
		t.Fatalf("Serialize failed: %v", err)
	}
	m := got.(map[string]any)
	if len(m) != 2 {
		t.Errorf("serialized instance = %v, want only tag and title", m)
	}
}

func TestRoundTripInstance(t *testing.T) {
	set := bookComponents(t)
	desc, _ := set.Descriptor("Book")
	inst := component.NewInstance(desc)
	inst.SetID("b1")
	inst.Apply("title", "Dune")
	inst.Apply("pages", component.Undefined)

	wire, err := Serialize(inst, SerializeOptions{})
	if err != nil {
		t.Fatalf("Serialize failed: %v", err)
	}
	back, err := Deserialize(wire, DeserializeOptions{Resolver: set})
	if err != nil {
		t.Fatalf("Deserialize failed: %v", err)
	}

	decoded, ok := back.(*component.Instance)
	if !ok {
		t.Fatalf("decoded value is %T, want *Instance", back)
	}
	if id, _ := decoded.ID(); id != "b1" {
		t.Errorf("decoded id = %q", id)
	}
	title, err := decoded.Get("title")
	if err != nil || title != "Dune" {
		t.Errorf("decoded title = %v, %v", title, err)
	}
	pages, err := decoded.Get("pages")
	if err != nil {
		t.Fatalf("Get(pages) failed: %v", err)
	}
	if !component.IsUndefined(pages) {
		t.Errorf("pages = %v, want Undefined to survive the round trip", pages)
	}
}

func TestDeserializeErrorTagBecomesError(t *testing.T) {
	_, err := Deserialize(map[string]any{
		"__error": "gone",
		"code":    fault.CodeNotFound,
	}, DeserializeOptions{})
	if !fault.IsNotFound(err) {
		t.Errorf("error = %v, want not found", err)
	}
}

func TestDeserializeRejections(t *testing.T) {
	set := bookComponents(t)

	tests := []struct {
		name string
		in   any
	}{
		{"unknown tag", map[string]any{"__mystery": 1}},
		{"unknown component", map[string]any{"__component": "Ghost"}},
		{"class without resolver match", map[string]any{"__class": "Ghost"}},
		{"unknown attribute", map[string]any{"__component": "Book", "nope": 1}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Deserialize(tt.in, DeserializeOptions{Resolver: set})
			if err == nil {
				t.Error("expected a decode failure")
			}
		})
	}
}

func TestDeserializeEnforceSet(t *testing.T) {
	set := bookComponents(t)
	in := map[string]any{"__component": "Book", "royalties": 900}

	_, err := Deserialize(in, DeserializeOptions{Resolver: set, EnforceSet: true})
	if !fault.IsAccessDenied(err) {
		t.Errorf("error = %v, want access denied", err)
	}

	// Identifier is admitted regardless of exposure enforcement.
	in = map[string]any{"__component": "Book", "id": "b1"}
	if _, err := Deserialize(in, DeserializeOptions{Resolver: set, EnforceSet: true}); err != nil {
		t.Errorf("identifier decode failed: %v", err)
	}
}

func TestDeserializeNestedCollections(t *testing.T) {
	set := bookComponents(t)
	in := []any{
		"plain",
		map[string]any{"__undefined": true},
		map[string]any{"inner": map[string]any{"__class": "Book"}},
	}

	back, err := Deserialize(in, DeserializeOptions{Resolver: set})
	if err != nil {
		t.Fatalf("Deserialize failed: %v", err)
	}
	list := back.([]any)
	if list[0] != "plain" {
		t.Errorf("list[0] = %v", list[0])
	}
	if !component.IsUndefined(list[1]) {
		t.Errorf("list[1] = %v, want Undefined", list[1])
	}
	inner := list[2].(map[string]any)["inner"]
	if ref, ok := inner.(ClassRef); !ok || ref.Name != "Book" {
		t.Errorf("list[2].inner = %v, want ClassRef{Book}", inner)
	}
}
