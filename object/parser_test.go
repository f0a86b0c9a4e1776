package object

import (
	"bytes"
	"testing"
)

func parseOne(t *testing.T, data string) Object {
	t.Helper()
	p := NewParser([]byte(data), 0, nil)
	o, err := p.ParseObject()
	if err != nil {
		t.Fatalf("parsing %q: %v", data, err)
	}
	return o
}

func TestParseScalars(t *testing.T) {
	cases := map[string]Object{
		"null":  Null{},
		"true":  Bool(true),
		"false": Bool(false),
		"123":   Int(123),
		"-17":   Int(-17),
		"3.14":  Real(3.14),
		"/Name": Name("Name"),
	}
	for input, want := range cases {
		got := parseOne(t, input)
		if !deepEqualObject(got, want) {
			t.Errorf("parse(%q) = %#v, want %#v", input, got, want)
		}
	}
}

func TestParseLiteralString(t *testing.T) {
	got := parseOne(t, "(hello)")
	s, ok := got.(LString)
	if !ok || string(s) != "hello" {
		t.Fatalf("unexpected literal string: %#v", got)
	}
}

func TestParseHexString(t *testing.T) {
	got := parseOne(t, "<48656C6C6F>")
	s, ok := got.(HString)
	if !ok || string(s) != "Hello" {
		t.Fatalf("unexpected hex string: %#v", got)
	}
}

func TestParseRef(t *testing.T) {
	got := parseOne(t, "[12 0 R]")
	arr, ok := got.(Array)
	if !ok || len(arr) != 1 {
		t.Fatalf("expected single-element array, got %#v", got)
	}
	ref, ok := arr[0].(Ref)
	if !ok || ref.Num != 12 || ref.Gen != 0 {
		t.Fatalf("expected Ref{12,0}, got %#v", arr[0])
	}
}

func TestParseBareIntegerNotRef(t *testing.T) {
	got := parseOne(t, "[12 0]")
	arr, ok := got.(Array)
	if !ok || len(arr) != 2 {
		t.Fatalf("expected two-element array, got %#v", got)
	}
	if arr[0] != Int(12) || arr[1] != Int(0) {
		t.Fatalf("expected [12 0], got %#v", arr)
	}
}

func TestParseDict(t *testing.T) {
	got := parseOne(t, "<< /Type /Catalog /Pages 2 0 R >>")
	d, ok := got.(Dict)
	if !ok {
		t.Fatalf("expected Dict, got %#v", got)
	}
	typ, ok := d.GetName("Type")
	if !ok || typ != "Catalog" {
		t.Fatalf("unexpected /Type: %#v", typ)
	}
	pages, ok := d.GetRef("Pages")
	if !ok || pages != (Ref{Num: 2, Gen: 0}) {
		t.Fatalf("unexpected /Pages: %#v", pages)
	}
}

func TestParseDictRightToLeftPairing(t *testing.T) {
	// an odd leading token is dropped by the right-to-left pairing rule.
	got := parseOne(t, "<< /Stray /A 1 /B 2 >>")
	d := got.(Dict)
	if d.Len() != 2 {
		t.Fatalf("expected 2 pairs after dropping the stray leading key, got %d: %v", d.Len(), d.Keys())
	}
	a, _ := d.GetInt("A")
	b, _ := d.GetInt("B")
	if a != 1 || b != 2 {
		t.Fatalf("unexpected pairing: A=%d B=%d", a, b)
	}
}

func TestParseNestedArray(t *testing.T) {
	got := parseOne(t, "[0 0 612 792]")
	arr := got.(Array)
	want := Array{Int(0), Int(0), Int(612), Int(792)}
	for i := range want {
		if arr[i] != want[i] {
			t.Fatalf("element %d: got %#v, want %#v", i, arr[i], want[i])
		}
	}
}

func TestParseStreamWithLength(t *testing.T) {
	data := "<< /Length 11 >>\nstream\nhello world\nendstream"
	got := parseOne(t, data)
	s, ok := got.(*Stream)
	if !ok {
		t.Fatalf("expected *Stream, got %#v", got)
	}
	if string(s.Encoded) != "hello world" {
		t.Fatalf("unexpected stream bytes: %q", s.Encoded)
	}
}

func TestParseStreamFallbackScan(t *testing.T) {
	// /Length is wrong; the parser must fall back to scanning for endstream.
	data := "<< /Length 999 >>\nstream\nhello world\nendstream"
	got := parseOne(t, data)
	s, ok := got.(*Stream)
	if !ok {
		t.Fatalf("expected *Stream, got %#v", got)
	}
	if string(s.Encoded) != "hello world" {
		t.Fatalf("unexpected stream bytes: %q", s.Encoded)
	}
}

func TestRoundTrip(t *testing.T) {
	inputs := []string{
		"null", "true", "false", "123", "-17", "3.14",
		"612.0", "612.", "-0.5",
		"/Name", "(hello)", "<48656C6C6F>",
		"[1 2 3]", "<< /Type /Catalog /Pages 2 0 R >>",
	}
	for _, input := range inputs {
		o := parseOne(t, input)
		var buf bytes.Buffer
		if err := Serialize(&buf, o); err != nil {
			t.Fatalf("serializing %#v: %v", o, err)
		}
		o2 := parseOne(t, buf.String())
		if !deepEqualObject(o, o2) {
			t.Errorf("round trip mismatch for %q: %#v -> %q -> %#v", input, o, buf.String(), o2)
		}
	}
}

func deepEqualObject(a, b Object) bool {
	switch av := a.(type) {
	case Array:
		bv, ok := b.(Array)
		if !ok || len(av) != len(bv) {
			return false
		}
		for i := range av {
			if !deepEqualObject(av[i], bv[i]) {
				return false
			}
		}
		return true
	case Dict:
		bv, ok := b.(Dict)
		if !ok || av.Len() != bv.Len() {
			return false
		}
		for _, k := range av.Keys() {
			va, _ := av.Get(k)
			vb, ok := bv.Get(k)
			if !ok || !deepEqualObject(va, vb) {
				return false
			}
		}
		return true
	case LString:
		bv, ok := b.(LString)
		return ok && bytes.Equal(av, bv)
	case HString:
		bv, ok := b.(HString)
		return ok && bytes.Equal(av, bv)
	default:
		return a == b
	}
}
