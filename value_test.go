package authz

import (
	"encoding/json"
	"testing"
)

func TestValueFrom(t *testing.T) {
	v, err := ValueFrom("hello")
	if err != nil {
		t.Fatalf("from string: %v", err)
	}
	if s, ok := v.Text(); !ok || s != "hello" {
		t.Fatalf("want string hello, got %v", v)
	}

	v, err = ValueFrom(42)
	if err != nil {
		t.Fatalf("from int: %v", err)
	}
	if n, ok := v.Number(); !ok || n != 42 {
		t.Fatalf("want number 42, got %v", v)
	}

	v, err = ValueFrom([]any{"a", "b"})
	if err != nil {
		t.Fatalf("from slice: %v", err)
	}
	if items, ok := v.Array(); !ok || len(items) != 2 {
		t.Fatalf("want 2-element array, got %v", v)
	}

	if _, err := ValueFrom(map[string]any{"nested": true}); err == nil {
		t.Fatalf("expected error for map value")
	}
}

func TestValueEqual(t *testing.T) {
	if !StringValue("x").Equal(StringValue("x")) {
		t.Fatalf("equal strings not equal")
	}
	if StringValue("4").Equal(NumberValue(4)) {
		t.Fatalf("cross-kind values compared equal")
	}
	if (Value{}).Equal(Value{}) {
		t.Fatalf("absent equals absent; absence must match nothing")
	}
	a := ArrayValue(StringValue("a"), NumberValue(1))
	b := ArrayValue(StringValue("a"), NumberValue(1))
	if !a.Equal(b) {
		t.Fatalf("equal arrays not equal")
	}
	if a.Equal(ArrayValue(StringValue("a"))) {
		t.Fatalf("arrays of different length compared equal")
	}
}

func TestValueJSONRoundTrip(t *testing.T) {
	src := ArrayValue(StringValue("eu"), NumberValue(3), BoolValue(true))
	b, err := json.Marshal(src)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var got Value
	if err := json.Unmarshal(b, &got); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if !src.Equal(got) {
		t.Fatalf("round trip changed value: %s -> %s", src, got)
	}
}

func TestMergeAttributes(t *testing.T) {
	stored := map[string]Value{
		"department": StringValue("engineering"),
		"level":      NumberValue(3),
	}
	overrides := map[string]Value{
		"level":  NumberValue(5),
		"region": StringValue("eu"),
	}
	merged := MergeAttributes(stored, overrides)
	if n, _ := merged["level"].Number(); n != 5 {
		t.Fatalf("override did not win: %v", merged["level"])
	}
	if s, _ := merged["department"].Text(); s != "engineering" {
		t.Fatalf("stored value lost: %v", merged["department"])
	}
	if s, _ := merged["region"].Text(); s != "eu" {
		t.Fatalf("override-only key lost: %v", merged["region"])
	}
	// inputs untouched
	if n, _ := stored["level"].Number(); n != 3 {
		t.Fatalf("merge mutated stored map")
	}
}
