// Package token implements the lowest level of PDF syntax: splitting raw
// bytes into lexical tokens. It has no notion of objects, dictionaries or
// cross-reference structure; see package object for that.
package token

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

type Kind uint8

const (
	EOF Kind = iota
	Integer
	Real
	String
	HexString
	Name
	ArrayStart
	ArrayEnd
	DictStart
	DictEnd
	Keyword // obj, endobj, stream, xref, trailer, R, true, false, null, ...
)

func (k Kind) String() string {
	switch k {
	case EOF:
		return "EOF"
	case Integer:
		return "Integer"
	case Real:
		return "Real"
	case String:
		return "String"
	case HexString:
		return "HexString"
	case Name:
		return "Name"
	case ArrayStart:
		return "ArrayStart"
	case ArrayEnd:
		return "ArrayEnd"
	case DictStart:
		return "DictStart"
	case DictEnd:
		return "DictEnd"
	case Keyword:
		return "Keyword"
	default:
		return "<invalid token>"
	}
}

func isWhitespace(ch byte) bool {
	switch ch {
	case 0, 9, 10, 12, 13, 32:
		return true
	default:
		return false
	}
}

func isDelimiter(ch byte) bool {
	switch ch {
	case 40, 41, 60, 62, 91, 93, 123, 125, 47, 37:
		return true
	default:
		return isWhitespace(ch)
	}
}

func isDigit(ch byte) bool {
	return ch >= '0' && ch <= '9'
}

// Token is one lexical unit. Value carries the raw (already-unescaped for
// strings and names) payload; interpretation is left to package object.
type Token struct {
	Kind  Kind
	Value string
}

func (t Token) Int() (int, error) {
	f, err := t.Float()
	return int(f), err
}

func (t Token) Float() (float64, error) {
	return strconv.ParseFloat(t.Value, 64)
}

func (t Token) IsNumber() bool {
	return t.Kind == Integer || t.Kind == Real
}

// startsBinary reports whether this token introduces a region the
// Tokenizer must not lex through: stream content following the `stream`
// keyword. Handling of the EOL-variant that precedes the raw bytes is
// done by the caller (package object), which calls SkipBytes once it has
// located the length.
func (t Token) startsBinary() bool {
	return t.Kind == Keyword && t.Value == "stream"
}

// Tokenizer lexes a byte slice, exposing one token of lookahead beyond the
// next (PeekToken/PeekPeekToken), which object's parseIntegerOrRef
// needs to decide between "12 0 R" and a bare integer.
type Tokenizer struct {
	data []byte

	pos int // position just after the aaToken

	currentPos int // position just after the current (returned) token
	nextPos    int // position just after the aToken

	aToken Token
	aError error

	aaToken Token
	aaError error
}

func New(data []byte) Tokenizer {
	tk := Tokenizer{data: data}
	tk.initiateAt(0)
	return tk
}

func (tk *Tokenizer) initiateAt(pos int) {
	tk.currentPos = pos
	tk.pos = pos
	tk.aToken, tk.aError = tk.nextToken(Token{})
	tk.nextPos = tk.pos
	if tk.aToken.startsBinary() {
		tk.aaToken, tk.aaError = Token{Kind: EOF}, nil
	} else {
		tk.aaToken, tk.aaError = tk.nextToken(tk.aToken)
	}
}

// PeekToken returns the next token without consuming it. Cheap: cached.
func (tk Tokenizer) PeekToken() (Token, error) {
	return tk.aToken, tk.aError
}

// PeekPeekToken returns the token after the next without consuming
// anything. Cheap: cached.
func (tk Tokenizer) PeekPeekToken() (Token, error) {
	return tk.aaToken, tk.aaError
}

// Pos reports the byte offset the next NextToken() call will start
// consuming from (the start of the pending aToken).
func (tk Tokenizer) Pos() int {
	return tk.currentPos
}

// NextToken consumes and returns the next token. EOF is reported as a
// Token{Kind: EOF}, not an error.
func (tk *Tokenizer) NextToken() (Token, error) {
	t, err := tk.PeekToken()
	tk.aToken, tk.aError = tk.aaToken, tk.aaError
	tk.currentPos = tk.nextPos
	tk.nextPos = tk.pos

	if t.startsBinary() || tk.aToken.startsBinary() {
		// the byte region following `stream` is not lexable; the caller
		// must locate its end and call SkipBytes to resume.
		tk.aaToken, tk.aaError = Token{Kind: EOF}, nil
	} else {
		tk.aaToken, tk.aaError = tk.nextToken(tk.aaToken)
	}
	return t, err
}

// SkipBytes skips the next n bytes (relative to the position just after
// the last token returned by NextToken) and returns them, re-lexing from
// the new position. Used to step over stream content and object-stream
// embedded object data.
func (tk *Tokenizer) SkipBytes(n int) []byte {
	target := tk.currentPos + n
	if target > len(tk.data) {
		target = len(tk.data)
	}
	out := tk.data[tk.currentPos:target]
	tk.initiateAt(target)
	return out
}

// SeekTo discards all lookahead and resumes lexing at an absolute offset.
func (tk *Tokenizer) SeekTo(pos int) {
	if pos > len(tk.data) {
		pos = len(tk.data)
	}
	tk.initiateAt(pos)
}

// Bytes returns the remaining unconsumed input, starting at the position
// just after the last token returned by NextToken.
func (tk Tokenizer) Bytes() []byte {
	if tk.currentPos >= len(tk.data) {
		return nil
	}
	return tk.data[tk.currentPos:]
}

func isHexChar(c byte) (uint8, bool) {
	switch {
	case '0' <= c && c <= '9':
		return c - '0', true
	case 'a' <= c && c <= 'f':
		return c - 'a' + 10, true
	case 'A' <= c && c <= 'F':
		return c - 'A' + 10, true
	}
	return c, false
}

func (tk *Tokenizer) read() (byte, bool) {
	if tk.pos >= len(tk.data) {
		return 0, false
	}
	ch := tk.data[tk.pos]
	tk.pos++
	return ch, true
}

func (tk *Tokenizer) nextToken(previous Token) (Token, error) {
	ch, ok := tk.read()
	for ok && isWhitespace(ch) {
		ch, ok = tk.read()
	}
	if !ok {
		return Token{Kind: EOF}, nil
	}

	var outBuf []byte
	switch ch {
	case '[':
		return Token{Kind: ArrayStart}, nil
	case ']':
		return Token{Kind: ArrayEnd}, nil
	case '/':
		for {
			ch, ok = tk.read()
			if !ok || isDelimiter(ch) {
				break
			}
			if ch == '#' {
				h1, ok1 := tk.read()
				h2, ok2 := tk.read()
				v1, d1 := isHexChar(h1)
				v2, d2 := isHexChar(h2)
				if !ok1 || !ok2 || !d1 || !d2 {
					return Token{}, errors.New("token: corrupted name escape")
				}
				outBuf = append(outBuf, v1<<4|v2)
				continue
			}
			outBuf = append(outBuf, ch)
		}
		if ok {
			tk.pos--
		}
		return Token{Kind: Name, Value: string(outBuf)}, nil
	case '>':
		ch, ok = tk.read()
		if ch != '>' {
			return Token{}, errors.New("token: '>' not expected")
		}
		return Token{Kind: DictEnd}, nil
	case '<':
		v1, ok1 := tk.read()
		if v1 == '<' {
			return Token{Kind: DictStart}, nil
		}
		var (
			v2  byte
			ok2 bool
		)
		for {
			for ok1 && isWhitespace(v1) {
				v1, ok1 = tk.read()
			}
			if v1 == '>' {
				break
			}
			v1, ok1 = isHexChar(v1)
			if !ok1 {
				return Token{}, fmt.Errorf("token: invalid hex char %q", v1)
			}
			v2, ok2 = tk.read()
			for ok2 && isWhitespace(v2) {
				v2, ok2 = tk.read()
			}
			if v2 == '>' {
				outBuf = append(outBuf, v1<<4)
				break
			}
			v2, ok2 = isHexChar(v2)
			if !ok2 {
				return Token{}, fmt.Errorf("token: invalid hex char %q", v2)
			}
			outBuf = append(outBuf, (v1<<4)+v2)
			v1, ok1 = tk.read()
		}
		return Token{Kind: HexString, Value: string(outBuf)}, nil
	case '%':
		ch, ok = tk.read()
		for ok && ch != '\r' && ch != '\n' {
			ch, ok = tk.read()
		}
		return tk.nextToken(previous)
	case '(':
		nesting := 0
		for {
			ch, ok = tk.read()
			if !ok {
				break
			}
			if ch == '(' {
				nesting++
			} else if ch == ')' {
				nesting--
			} else if ch == '\\' {
				lineBreak := false
				ch, ok = tk.read()
				switch ch {
				case 'n':
					ch = '\n'
				case 'r':
					ch = '\r'
				case 't':
					ch = '\t'
				case 'b':
					ch = '\b'
				case 'f':
					ch = '\f'
				case '(', ')', '\\':
				case '\r':
					lineBreak = true
					ch, ok = tk.read()
					if ch != '\n' {
						tk.pos--
					}
				case '\n':
					lineBreak = true
				default:
					if ch < '0' || ch > '7' {
						break
					}
					octal := ch - '0'
					ch, ok = tk.read()
					if ch < '0' || ch > '7' {
						tk.pos--
						ch = octal
						break
					}
					octal = (octal << 3) + ch - '0'
					ch, ok = tk.read()
					if ch < '0' || ch > '7' {
						tk.pos--
						ch = octal
						break
					}
					octal = (octal << 3) + ch - '0'
					ch = octal & 0xff
				}
				if lineBreak {
					continue
				}
				if !ok {
					break
				}
			} else if ch == '\r' {
				ch, ok = tk.read()
				if !ok {
					break
				}
				if ch != '\n' {
					tk.pos--
					ch = '\n'
				}
			}
			if nesting == -1 {
				break
			}
			outBuf = append(outBuf, ch)
		}
		if !ok {
			return Token{}, errors.New("token: unexpected EOF in literal string")
		}
		return Token{Kind: String, Value: string(outBuf)}, nil
	default:
		tk.pos--
		if t, ok := tk.readNumber(); ok {
			return t, nil
		}
		ch, _ = tk.read()
		outBuf = append(outBuf, ch)
		ch, ok = tk.read()
		for ok && !isDelimiter(ch) {
			outBuf = append(outBuf, ch)
			ch, ok = tk.read()
		}
		if ok {
			tk.pos--
		}
		return Token{Kind: Keyword, Value: string(outBuf)}, nil
	}
}

// readNumber recognizes PDF integers and reals, tolerating the
// exponential forms writers are forbidden to emit but some producers
// emit anyway.
func (tk *Tokenizer) readNumber() (Token, bool) {
	markedPos := tk.pos

	sb := &strings.Builder{}
	c, ok := tk.read()
	hasDigit := false
	if c == '+' || c == '-' {
		sb.WriteByte(c)
		c, _ = tk.read()
	}
	for isDigit(c) {
		sb.WriteByte(c)
		c, ok = tk.read()
		hasDigit = true
	}
	if c == '.' {
		sb.WriteByte(c)
		c, _ = tk.read()
	} else if sb.Len() == 0 || !hasDigit {
		tk.pos = markedPos
		return Token{}, false
	} else if c == 'E' || c == 'e' {
		sb.WriteByte(c)
		c, ok = tk.read()
		if c == '-' {
			sb.WriteByte(c)
			c, ok = tk.read()
		}
	} else {
		if ok {
			tk.pos--
		}
		return Token{Value: sb.String(), Kind: Integer}, true
	}

	for isDigit(c) {
		sb.WriteByte(c)
		c, ok = tk.read()
	}
	if c == 'e' || c == 'E' {
		sb.WriteByte(c)
		c, ok = tk.read()
		if c == '+' || c == '-' {
			sb.WriteByte(c)
			c, ok = tk.read()
		}
		for isDigit(c) {
			sb.WriteByte(c)
			c, ok = tk.read()
		}
	}
	if ok {
		tk.pos--
	}
	if strings.ContainsAny(sb.String(), ".eE") {
		return Token{Value: sb.String(), Kind: Real}, true
	}
	return Token{Value: sb.String(), Kind: Integer}, true
}
