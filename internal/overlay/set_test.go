package overlay

import "testing"

func TestDecodeSet_QuotedList(t *testing.T) {
	s := DecodeSet(`"disable-bt","vc4-kms-v3d"`)
	if len(s) != 2 {
		t.Fatalf("expected 2 tokens, got %d: %v", len(s), s)
	}
	if _, ok := s["disable-bt"]; !ok {
		t.Fatalf("missing disable-bt: %v", s)
	}
	if _, ok := s["vc4-kms-v3d"]; !ok {
		t.Fatalf("missing vc4-kms-v3d: %v", s)
	}
}

func TestDecodeSet_SingleQuotedToken(t *testing.T) {
	s := DecodeSet(`"disable-bt"`)
	if len(s) != 1 {
		t.Fatalf("expected 1 token, got %v", s)
	}
	if _, ok := s["disable-bt"]; !ok {
		t.Fatalf("missing disable-bt: %v", s)
	}
}

func TestDecodeSet_BareToken(t *testing.T) {
	s := DecodeSet("disable-bt")
	if len(s) != 1 {
		t.Fatalf("expected 1 token, got %v", s)
	}
	if _, ok := s["disable-bt"]; !ok {
		t.Fatalf("missing disable-bt: %v", s)
	}
}

func TestEncode_SortedAndQuoted(t *testing.T) {
	got := Encode(Set{"vc4-kms-v3d": {}, "disable-bt": {}})
	want := `"disable-bt","vc4-kms-v3d"`
	if got != want {
		t.Fatalf("got %q, want %q", got, want)
	}
}

func TestEncode_DropsEmptyTokens(t *testing.T) {
	got := Encode(Set{"": {}, "disable-bt": {}})
	if got != `"disable-bt"` {
		t.Fatalf("got %q", got)
	}
	if Encode(Set{}) != "" {
		t.Fatalf("empty set must encode to empty string")
	}
}

func TestDecodeEncodeRoundTrip(t *testing.T) {
	cases := []Set{
		{"disable-bt": {}},
		{"disable-bt": {}, "uart1": {}},
		{"a": {}, "b-2": {}, "c3": {}},
	}
	for _, want := range cases {
		got := DecodeSet(Encode(want))
		if !got.Equal(want) {
			t.Fatalf("round trip: got %v, want %v", got, want)
		}
	}
}

func TestSetEqual_NilEqualsEmpty(t *testing.T) {
	var nilSet Set
	if !nilSet.Equal(Set{}) {
		t.Fatalf("nil set must equal empty set")
	}
	if nilSet.Equal(Set{"x": {}}) {
		t.Fatalf("nil set must not equal non-empty set")
	}
}

func TestWithWithout_OnNilSet(t *testing.T) {
	var s Set
	if got := s.with("disable-bt"); len(got) != 1 {
		t.Fatalf("with on nil set: %v", got)
	}
	if got := s.without("disable-bt"); len(got) != 0 {
		t.Fatalf("without on nil set: %v", got)
	}
}
