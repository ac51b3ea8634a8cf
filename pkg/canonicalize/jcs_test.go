package canonicalize

import (
	"strings"
	"testing"
)

func TestJCS_Sorting(t *testing.T) {
	input := map[string]interface{}{
		"c": 3,
		"a": 1,
		"b": 2,
	}

	expected := `{"a":1,"b":2,"c":3}`

	b, err := JCS(input)
	if err != nil {
		t.Fatalf("JCS failed: %v", err)
	}

	if string(b) != expected {
		t.Errorf("Expected %s, got %s", expected, string(b))
	}
}

func TestJCS_StructTags(t *testing.T) {
	type sample struct {
		Zulu  string `json:"zulu"`
		Alpha string `json:"alpha"`
	}

	b, err := JCS(sample{Zulu: "z", Alpha: "a"})
	if err != nil {
		t.Fatalf("JCS failed: %v", err)
	}

	expected := `{"alpha":"a","zulu":"z"}`
	if string(b) != expected {
		t.Errorf("Expected %s, got %s", expected, string(b))
	}
}

func TestCanonicalHash_Deterministic(t *testing.T) {
	a := map[string]interface{}{"x": 1, "y": "two"}
	b := map[string]interface{}{"y": "two", "x": 1}

	ha, err := CanonicalHash(a)
	if err != nil {
		t.Fatalf("CanonicalHash failed: %v", err)
	}
	hb, err := CanonicalHash(b)
	if err != nil {
		t.Fatalf("CanonicalHash failed: %v", err)
	}

	if ha != hb {
		t.Errorf("hash not stable across key order: %s vs %s", ha, hb)
	}
	if !strings.HasPrefix(ha, "sha256:") {
		t.Errorf("hash missing algorithm prefix: %s", ha)
	}
}
