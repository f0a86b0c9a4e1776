package object

import (
	"bytes"
	"fmt"
	"strconv"
	"strings"
)

// Serialize writes o's canonical PDF syntax to buf. Streams overwrite
// /Length with their encoded byte count.
func Serialize(buf *bytes.Buffer, o Object) error {
	switch v := o.(type) {
	case Null:
		buf.WriteString("null")
	case Bool:
		if v {
			buf.WriteString("true")
		} else {
			buf.WriteString("false")
		}
	case Int:
		buf.WriteString(strconv.FormatInt(int64(v), 10))
	case Real:
		buf.WriteString(formatReal(float64(v)))
	case Name:
		buf.WriteString(escapeName(v))
	case LString:
		buf.WriteString(escapeLiteralString(v))
	case HString:
		buf.WriteString(escapeHexString(v))
	case Array:
		return serializeArray(buf, v)
	case Dict:
		return serializeDict(buf, v)
	case Ref:
		fmt.Fprintf(buf, "%d %d R", v.Num, v.Gen)
	case *Stream:
		return serializeStream(buf, v)
	default:
		return fmt.Errorf("object: cannot serialize %T", o)
	}
	return nil
}

// formatReal keeps a decimal marker even for integral values: without
// it, Real(612) would serialize to "612" and re-parse as Int.
func formatReal(f float64) string {
	s := strconv.FormatFloat(f, 'f', -1, 64)
	if !strings.ContainsAny(s, ".eE") {
		s += ".0"
	}
	return s
}

func escapeName(n Name) string {
	var buf bytes.Buffer
	buf.WriteByte('/')
	for _, b := range []byte(n) {
		if isNameRegular(b) {
			buf.WriteByte(b)
		} else {
			fmt.Fprintf(&buf, "#%02X", b)
		}
	}
	return buf.String()
}

func isNameRegular(b byte) bool {
	switch b {
	case 0, 9, 10, 12, 13, 32, // whitespace
		'(', ')', '<', '>', '[', ']', '{', '}', '/', '%', '#':
		return false
	}
	return b > 32 && b < 127
}

func escapeLiteralString(s LString) string {
	var buf bytes.Buffer
	buf.WriteByte('(')
	for _, b := range []byte(s) {
		switch b {
		case '(', ')', '\\':
			buf.WriteByte('\\')
			buf.WriteByte(b)
		case '\r':
			buf.WriteString(`\r`)
		default:
			buf.WriteByte(b)
		}
	}
	buf.WriteByte(')')
	return buf.String()
}

func escapeHexString(s HString) string {
	const hexDigits = "0123456789ABCDEF"
	var buf bytes.Buffer
	buf.WriteByte('<')
	for _, b := range []byte(s) {
		buf.WriteByte(hexDigits[b>>4])
		buf.WriteByte(hexDigits[b&0xf])
	}
	buf.WriteByte('>')
	return buf.String()
}

func serializeArray(buf *bytes.Buffer, a Array) error {
	buf.WriteByte('[')
	for i, e := range a {
		if i > 0 {
			buf.WriteByte(' ')
		}
		if err := Serialize(buf, e); err != nil {
			return err
		}
	}
	buf.WriteByte(']')
	return nil
}

func serializeDict(buf *bytes.Buffer, d Dict) error {
	buf.WriteString("<<")
	for i, k := range d.Keys() {
		if i > 0 {
			buf.WriteByte(' ')
		}
		buf.WriteString(escapeName(k))
		buf.WriteByte(' ')
		v, _ := d.Get(k)
		if err := Serialize(buf, v); err != nil {
			return err
		}
	}
	buf.WriteString(">>")
	return nil
}

// serializeStream emits s's dictionary and body, always overwriting
// /Length with the encoded byte count: a hand-edited /Length entry
// never survives serialization. The Encoded bytes are emitted as they
// stand; re-encoding after a filter change is ApplyFilter's job.
func serializeStream(buf *bytes.Buffer, s *Stream) error {
	entries := s.Entries.Clone()
	encoded := s.Encoded
	entries.Set(Name("Length"), Int(len(encoded)))
	if err := serializeDict(buf, entries); err != nil {
		return err
	}
	buf.WriteString("\nstream\n")
	buf.Write(encoded)
	buf.WriteString("\nendstream")
	return nil
}

// SerializeIndirect writes "num gen obj\n<value>\nendobj".
func SerializeIndirect(buf *bytes.Buffer, num uint32, gen uint16, o Object) error {
	fmt.Fprintf(buf, "%d %d obj\n", num, gen)
	if err := Serialize(buf, o); err != nil {
		return err
	}
	buf.WriteString("\nendobj")
	return nil
}
