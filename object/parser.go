package object

import (
	"bytes"
	"log"

	"github.com/arnaudgrv/pdfobj/filter"
	"github.com/arnaudgrv/pdfobj/internal/token"
	"github.com/arnaudgrv/pdfobj/pdferr"
)

// LengthResolver resolves an indirect /Length entry (a Ref) to a byte
// count. Parsing a lone object never has this information (the length
// object may live anywhere in the file); pdfdoc supplies a resolver
// backed by the document's index once one is available. Without a
// resolver, or when it returns false, the parser falls back to
// scanning for the endstream keyword.
type LengthResolver func(Ref) (int, bool)

// Parser turns a token stream into Object values. It is built once per
// byte region (typically the slice bounded by an xref entry's
// AbsPos/AbsNext) and consumed by a single ParseObject call.
type Parser struct {
	tk         *token.Tokenizer
	resolveLen LengthResolver
	base       int64 // absolute file offset of tk's byte 0, for error reporting
}

func NewParser(data []byte, base int64, resolveLen LengthResolver) *Parser {
	tk := token.New(data)
	return &Parser{tk: &tk, resolveLen: resolveLen, base: base}
}

func (p *Parser) offset() int64 {
	return p.base + int64(p.tk.Pos())
}

// Tok exposes the underlying tokenizer for callers that need to parse
// the "N G obj" header surrounding a value themselves, such as xref's
// indirect xref-stream object parser.
func (p *Parser) Tok() *token.Tokenizer {
	return p.tk
}

// ParseObject parses exactly one value starting at the parser's current
// position, advancing past it.
func (p *Parser) ParseObject() (Object, error) {
	tok, err := p.tk.NextToken()
	if err != nil {
		return nil, pdferr.WrapParseError(p.offset(), "tokenizer error", err)
	}
	return p.parseFromToken(tok)
}

func (p *Parser) parseFromToken(tok token.Token) (Object, error) {
	switch tok.Kind {
	case token.EOF:
		return nil, pdferr.NewParseError(p.offset(), "unexpected end of input")
	case token.Integer:
		return p.parseIntegerOrRef(tok)
	case token.Real:
		f, err := tok.Float()
		if err != nil {
			return nil, pdferr.WrapParseError(p.offset(), "malformed real number", err)
		}
		return Real(f), nil
	case token.Name:
		return Name(tok.Value), nil
	case token.String:
		return LString(tok.Value), nil
	case token.HexString:
		return HString(tok.Value), nil
	case token.ArrayStart:
		return p.parseArray()
	case token.DictStart:
		return p.parseDictOrStream()
	case token.Keyword:
		switch tok.Value {
		case "true":
			return Bool(true), nil
		case "false":
			return Bool(false), nil
		case "null":
			return Null{}, nil
		default:
			return nil, pdferr.NewParseError(p.offset(), "unexpected keyword "+tok.Value)
		}
	default:
		return nil, pdferr.NewParseError(p.offset(), "unexpected token "+tok.Kind.String())
	}
}

// parseIntegerOrRef implements the "adjacent triple int int R" collapse
// rule: peek two tokens ahead without consuming unless they indeed form
// a reference.
func (p *Parser) parseIntegerOrRef(first token.Token) (Object, error) {
	n, err := first.Int()
	if err != nil {
		return nil, pdferr.WrapParseError(p.offset(), "malformed integer", err)
	}
	peek1, err1 := p.tk.PeekToken()
	peek2, err2 := p.tk.PeekPeekToken()
	if err1 == nil && err2 == nil && peek1.Kind == token.Integer && peek2.Kind == token.Keyword && peek2.Value == "R" {
		g, err := peek1.Int()
		if err != nil {
			return nil, pdferr.WrapParseError(p.offset(), "malformed generation number", err)
		}
		p.tk.NextToken() // consume the generation number
		p.tk.NextToken() // consume "R"
		return Ref{Num: uint32(n), Gen: uint16(g)}, nil
	}
	return Int(n), nil
}

func (p *Parser) parseArray() (Array, error) {
	var out Array
	for {
		tok, err := p.tk.NextToken()
		if err != nil {
			return nil, pdferr.WrapParseError(p.offset(), "tokenizer error in array", err)
		}
		if tok.Kind == token.ArrayEnd {
			return out, nil
		}
		if tok.Kind == token.EOF {
			return nil, pdferr.NewParseError(p.offset(), "unterminated array")
		}
		obj, err := p.parseFromToken(tok)
		if err != nil {
			return nil, err
		}
		out = append(out, obj)
	}
}

// parseDictOrStream implements the flat-list-then-pair-right-to-left
// rule: tokenize children left to right into a flat list (recursively
// parsing each child value), then pair from the end. A dict
// immediately followed by `stream` is promoted into a Stream.
func (p *Parser) parseDictOrStream() (Object, error) {
	var flat []Object
	for {
		tok, err := p.tk.NextToken()
		if err != nil {
			return nil, pdferr.WrapParseError(p.offset(), "tokenizer error in dict", err)
		}
		if tok.Kind == token.DictEnd {
			break
		}
		if tok.Kind == token.EOF {
			return nil, pdferr.NewParseError(p.offset(), "unterminated dictionary")
		}
		obj, err := p.parseFromToken(tok)
		if err != nil {
			return nil, err
		}
		flat = append(flat, obj)
	}

	d := NewDict()
	for i := len(flat); i >= 2; i -= 2 {
		value := flat[i-1]
		key := flat[i-2]
		name, ok := key.(Name)
		if !ok {
			// a stray non-Name token where a key was expected: drop it
			// together with the value paired to it and keep pairing,
			// tolerating the forward-built alist semantics this rule
			// exists for.
			continue
		}
		d.Set(name, value)
	}

	peek, err := p.tk.PeekToken()
	if err != nil {
		return nil, pdferr.WrapParseError(p.offset(), "tokenizer error after dict", err)
	}
	if peek.Kind != token.Keyword || peek.Value != "stream" {
		return d, nil
	}
	p.tk.NextToken() // consume "stream"
	return p.parseStreamBody(d)
}

// parseStreamBody consumes the single EOL after `stream`, locates the
// raw byte span either via /Length or, failing that, by scanning for
// `endstream`, and leaves the tokenizer positioned just after
// `endstream`.
func (p *Parser) parseStreamBody(entries Dict) (Object, error) {
	raw := p.tk.Bytes()
	eol := 0
	switch {
	case len(raw) >= 2 && raw[0] == '\r' && raw[1] == '\n':
		eol = 2
	case len(raw) >= 1 && raw[0] == '\n':
		eol = 1
	case len(raw) >= 1 && raw[0] == '\r':
		eol = 1
	default:
		return nil, pdferr.NewParseError(p.offset(), "missing EOL after stream keyword")
	}
	p.tk.SkipBytes(eol)
	bodyStart := p.tk.Pos()

	length, ok := p.streamLength(entries)
	var encoded []byte
	if ok && length >= 0 {
		encoded = p.tk.SkipBytes(length)
		if !p.consumeEndstream() {
			// the declared /Length didn't line up with an endstream
			// marker: fall back to scanning, the way a lax reader must.
			p.tk.SeekTo(bodyStart)
			encoded = p.scanForEndstream()
		}
	} else {
		encoded = p.scanForEndstream()
	}

	s := NewStream(entries, encoded)
	return s, nil
}

func (p *Parser) streamLength(entries Dict) (int, bool) {
	v, ok := entries.Get(Name("Length"))
	if !ok {
		return 0, false
	}
	switch l := v.(type) {
	case Int:
		return int(l), true
	case Real:
		return int(l), true
	case Ref:
		if p.resolveLen != nil {
			return p.resolveLen(l)
		}
		return 0, false
	default:
		return 0, false
	}
}

// consumeEndstream checks that the tokenizer sits right at (optional
// EOL then) `endstream`, consuming it on success.
func (p *Parser) consumeEndstream() bool {
	save := p.tk.Pos()
	peek, err := p.tk.PeekToken()
	if err == nil && peek.Kind == token.Keyword && peek.Value == "endstream" {
		p.tk.NextToken()
		return true
	}
	p.tk.SeekTo(save)
	return false
}

// scanForEndstream searches the remaining bytes for the `endstream`
// keyword and returns everything before it, trimming the single
// trailing EOL that may precede the keyword (LF, CRLF, CR, or bare).
// Leaves the tokenizer positioned just after `endstream`.
func (p *Parser) scanForEndstream() []byte {
	remaining := p.tk.Bytes()
	idx := bytes.Index(remaining, []byte("endstream"))
	if idx < 0 {
		// truncated file: take everything that's left.
		all := p.tk.SkipBytes(len(remaining))
		return all
	}
	body := remaining[:idx]
	body = trimTrailingEOL(body)
	p.tk.SkipBytes(idx + len("endstream"))
	return body
}

func trimTrailingEOL(b []byte) []byte {
	switch {
	case len(b) >= 2 && b[len(b)-2] == '\r' && b[len(b)-1] == '\n':
		return b[:len(b)-2]
	case len(b) >= 1 && (b[len(b)-1] == '\n' || b[len(b)-1] == '\r'):
		return b[:len(b)-1]
	default:
		return b
	}
}

// Decode resolves s's decoded form by running the filter pipeline
// named in /Filter (a Name or an ordered Array of Names) with the
// matching /DecodeParms. The result is cached on s; repeated calls are
// free. A decode failure never returns a Go error: it is recorded as a
// Decoded sentinel, so a broken stream can still be introspected
// without aborting the parse.
func (s *Stream) Decode() Decoded {
	if s.decoded != nil {
		return *s.decoded
	}
	names, parms := s.filterChain()
	data := s.Encoded
	for i, name := range names {
		out, err := filter.Decode(name, data, parms[i])
		if err != nil {
			log.Printf("object: stream filter %s failed: %s; recording a sentinel decode\n", name, err)
			d := Decoded{Err: err}
			s.decoded = &d
			return d
		}
		data = out
	}
	d := Decoded{Bytes: data}
	s.decoded = &d
	return d
}

func (s *Stream) filterChain() ([]string, []filter.Params) {
	v, ok := s.Entries.Get(Name("Filter"))
	if !ok {
		return nil, nil
	}
	parmsEntry, _ := s.Entries.Get(Name("DecodeParms"))
	switch f := v.(type) {
	case Name:
		return []string{string(f)}, []filter.Params{parseFilterParams(parmsEntry)}
	case Array:
		names := make([]string, 0, len(f))
		for _, e := range f {
			if n, ok := e.(Name); ok {
				names = append(names, string(n))
			}
		}
		var parmsArr Array
		if pa, ok := parmsEntry.(Array); ok {
			parmsArr = pa
		}
		parms := make([]filter.Params, len(names))
		for i := range names {
			var entry Object
			if i < len(parmsArr) {
				entry = parmsArr[i]
			}
			parms[i] = parseFilterParams(entry)
		}
		return names, parms
	default:
		return nil, nil
	}
}

func parseFilterParams(v Object) filter.Params {
	d, ok := v.(Dict)
	if !ok {
		return filter.Params{}
	}
	predictor, _ := d.GetInt(Name("Predictor"))
	colors, _ := d.GetInt(Name("Colors"))
	bpc, _ := d.GetInt(Name("BitsPerComponent"))
	columns, _ := d.GetInt(Name("Columns"))
	return filter.Params{
		Predictor:        int(predictor),
		Colors:           int(colors),
		BitsPerComponent: int(bpc),
		Columns:          int(columns),
	}
}
