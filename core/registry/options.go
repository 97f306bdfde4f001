package registry

import (
	"github.com/tetherlab/tether/core/fault"
)

// Projection selects which attributes a read materializes. The zero value
// selects all declared attributes; ProjectNone performs an existence check
// that loads only the identifier.
type Projection struct {
	none   bool
	fields map[string]bool
}

// ProjectAll selects every declared attribute.
func ProjectAll() Projection { return Projection{} }

// ProjectNone selects no attribute beyond the identifier.
func ProjectNone() Projection { return Projection{none: true} }

// ProjectFields selects exactly the named attributes.
func ProjectFields(fields map[string]bool) Projection {
	return Projection{fields: fields}
}

// IncludesAll reports whether the projection selects all attributes.
func (p Projection) IncludesAll() bool { return !p.none && p.fields == nil }

// Includes reports whether the named attribute is selected.
func (p Projection) Includes(name string) bool {
	if p.none {
		return false
	}
	if p.fields == nil {
		return true
	}
	return p.fields[name]
}

// ToWire converts the projection to its transport form: true, false, or an
// attribute-name-to-boolean map.
func (p Projection) ToWire() any {
	if p.none {
		return false
	}
	if p.fields == nil {
		return true
	}
	out := make(map[string]any, len(p.fields))
	for name, include := range p.fields {
		out[name] = include
	}
	return out
}

// ProjectionFromWire parses the transport form of a projection. nil means
// omitted and selects all attributes.
func ProjectionFromWire(v any) (Projection, error) {
	switch val := v.(type) {
	case nil:
		return ProjectAll(), nil
	case bool:
		if val {
			return ProjectAll(), nil
		}
		return ProjectNone(), nil
	case map[string]any:
		fields := make(map[string]bool, len(val))
		for name, include := range val {
			b, ok := include.(bool)
			if !ok {
				return Projection{}, fault.Deserialization("projection for %q must be boolean", name)
			}
			fields[name] = b
		}
		return ProjectFields(fields), nil
	default:
		return Projection{}, fault.Deserialization("projection must be boolean or map, got %T", v)
	}
}

// GetOptions configure a read by identifier.
type GetOptions struct {
	// Return selects the attributes to materialize.
	Return Projection

	// AllowMissing resolves a missing record to no result instead of a
	// not-found error.
	AllowMissing bool
}

// ToWire converts the options to their transport form.
func (o GetOptions) ToWire() map[string]any {
	return map[string]any{
		"return":          o.Return.ToWire(),
		"throwIfNotFound": !o.AllowMissing,
	}
}

// GetOptionsFromWire parses the transport form of get options.
func GetOptionsFromWire(v any) (GetOptions, error) {
	opts := GetOptions{}
	if v == nil {
		return opts, nil
	}
	m, ok := v.(map[string]any)
	if !ok {
		return opts, fault.Deserialization("get options must be a map, got %T", v)
	}
	ret, err := ProjectionFromWire(m["return"])
	if err != nil {
		return opts, err
	}
	opts.Return = ret
	if throw, ok := m["throwIfNotFound"].(bool); ok {
		opts.AllowMissing = !throw
	}
	return opts, nil
}

// FindOptions configure a filtered, paginated listing.
type FindOptions struct {
	// Filter is a flat attribute-name-to-required-value mapping. A record
	// matches iff every filter key equals the stored value.
	Filter map[string]any

	// Skip drops that many matching records from the front.
	Skip int

	// Limit caps the number of returned records; zero means no cap.
	Limit int

	// Return selects the attributes to materialize.
	Return Projection
}

// ToWire converts the options to their transport form.
func (o FindOptions) ToWire() map[string]any {
	out := map[string]any{
		"skip":   o.Skip,
		"limit":  o.Limit,
		"return": o.Return.ToWire(),
	}
	if o.Filter != nil {
		out["filter"] = o.Filter
	}
	return out
}

// FindOptionsFromWire parses the transport form of find options.
func FindOptionsFromWire(v any) (FindOptions, error) {
	opts := FindOptions{}
	if v == nil {
		return opts, nil
	}
	m, ok := v.(map[string]any)
	if !ok {
		return opts, fault.Deserialization("find options must be a map, got %T", v)
	}
	if filter, ok := m["filter"].(map[string]any); ok {
		opts.Filter = filter
	}
	opts.Skip = wireInt(m["skip"])
	opts.Limit = wireInt(m["limit"])
	ret, err := ProjectionFromWire(m["return"])
	if err != nil {
		return opts, err
	}
	opts.Return = ret
	return opts, nil
}

func wireInt(v any) int {
	switch n := v.(type) {
	case int:
		return n
	case int64:
		return int(n)
	case float64:
		return int(n)
	default:
		return 0
	}
}
