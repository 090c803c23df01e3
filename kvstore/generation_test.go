package kvstore

import "testing"

func TestGenerationPredicates(t *testing.T) {
	if !Unknown.IsUnknown() {
		t.Fatal("Unknown.IsUnknown() = false")
	}
	if Unknown.IsConditional() {
		t.Fatal("Unknown.IsConditional() = true")
	}
	if !NoValue.IsNoValue() {
		t.Fatal("NoValue.IsNoValue() = false")
	}
	if !NoValue.IsConditional() {
		t.Fatal("NoValue.IsConditional() = false")
	}
	concrete := FromValue("v1")
	if !concrete.IsConditional() {
		t.Fatal("FromValue(...).IsConditional() = false")
	}
	if v, ok := concrete.Value(); !ok || v != "v1" {
		t.Fatalf("Value() = (%q, %v), want (v1, true)", v, ok)
	}
	if _, ok := Unknown.Value(); ok {
		t.Fatal("Unknown.Value() returned ok=true")
	}
	if _, ok := NoValue.Value(); ok {
		t.Fatal("NoValue.Value() returned ok=true")
	}
}

func TestGenerationEqual(t *testing.T) {
	if !Unknown.Equal(Unknown) {
		t.Fatal("Unknown should equal itself")
	}
	if !FromValue("a").Equal(FromValue("a")) {
		t.Fatal("two concrete generations with the same value should be equal")
	}
	if FromValue("a").Equal(FromValue("b")) {
		t.Fatal("concrete generations with different values should not be equal")
	}
	if NoValue.Equal(Unknown) {
		t.Fatal("NoValue should not equal Unknown")
	}
}

func TestGenerationString(t *testing.T) {
	if Unknown.String() != "<unknown>" {
		t.Fatalf("got %q", Unknown.String())
	}
	if NoValue.String() != "<no-value>" {
		t.Fatalf("got %q", NoValue.String())
	}
	if FromValue("etag-1").String() != "etag-1" {
		t.Fatalf("got %q", FromValue("etag-1").String())
	}
}
