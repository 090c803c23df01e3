package kvstore

// Generation is an opaque version token for an object. It has three forms:
// Unknown (no assertion), NoValue (asserts the object is absent), or a
// concrete value carrying the backend's version identifier (for the S3
// driver, the ETag with its quotes stripped).
type Generation struct {
	kind  generationKind
	value string
}

type generationKind int

const (
	genUnknown generationKind = iota
	genNoValue
	genConcrete
)

// Unknown is the "no assertion" generation — used both as a default and as
// the value returned when a precondition fails.
var Unknown = Generation{kind: genUnknown}

// NoValue is the generation asserting "object absent".
var NoValue = Generation{kind: genNoValue}

// FromValue builds a concrete generation from a backend-specific version
// string (for S3, the unquoted ETag).
func FromValue(value string) Generation {
	return Generation{kind: genConcrete, value: value}
}

// IsUnknown reports whether g carries no assertion.
func (g Generation) IsUnknown() bool { return g.kind == genUnknown }

// IsNoValue reports whether g asserts absence.
func (g Generation) IsNoValue() bool { return g.kind == genNoValue }

// IsConditional reports whether g constrains anything at all.
func (g Generation) IsConditional() bool { return g.kind != genUnknown }

// Value returns the concrete version string and whether g carries one.
func (g Generation) Value() (string, bool) {
	if g.kind != genConcrete {
		return "", false
	}
	return g.value, true
}

// Equal reports whether two generations represent the same version.
func (g Generation) Equal(other Generation) bool {
	return g.kind == other.kind && g.value == other.value
}

func (g Generation) String() string {
	switch g.kind {
	case genNoValue:
		return "<no-value>"
	case genConcrete:
		return g.value
	default:
		return "<unknown>"
	}
}
