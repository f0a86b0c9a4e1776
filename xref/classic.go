package xref

import (
	"github.com/arnaudgrv/pdfobj/internal/token"
	"github.com/arnaudgrv/pdfobj/pdferr"
)

// rawRow is one classic xref table line, already resolved to an
// absolute object number via the running (first, count) subsection
// counter.
type rawRow struct {
	Num    uint32
	Offset int64
	Gen    uint16
	Type   int // 0 = free, 1 = in-use (classic default), 2 = embedded in an object stream
}

// parseClassicTable consumes a classic xref section starting right
// after the `xref` keyword. data must extend at least through the
// `trailer` keyword. Returns the parsed rows and the byte offset
// (relative to data) where the trailer dictionary begins.
func parseClassicTable(data []byte, xrefStart int64) ([]rawRow, int, error) {
	tk := token.New(data)
	var rows []rawRow
	for {
		peek, err := tk.PeekToken()
		if err != nil {
			return nil, 0, pdferr.WrapXrefError(xrefStart, "tokenizer error in xref table", err)
		}
		if peek.Kind == token.Keyword && peek.Value == "trailer" {
			tk.NextToken()
			return rows, tk.Pos(), nil
		}
		if peek.Kind != token.Integer {
			return nil, 0, pdferr.NewXrefError(xrefStart, "expected subsection header or trailer")
		}
		firstTok, _ := tk.NextToken()
		first, err := firstTok.Int()
		if err != nil {
			return nil, 0, pdferr.WrapXrefError(xrefStart, "malformed subsection first", err)
		}
		countTok, err := tk.NextToken()
		if err != nil {
			return nil, 0, pdferr.WrapXrefError(xrefStart, "tokenizer error reading subsection count", err)
		}
		count, err := countTok.Int()
		if err != nil {
			return nil, 0, pdferr.WrapXrefError(xrefStart, "malformed subsection count", err)
		}
		for i := 0; i < count; i++ {
			offTok, err := tk.NextToken()
			if err != nil {
				return nil, 0, pdferr.WrapXrefError(xrefStart, "tokenizer error reading xref row", err)
			}
			offset, err := offTok.Int()
			if err != nil {
				return nil, 0, pdferr.WrapXrefError(xrefStart, "malformed xref offset", err)
			}
			genTok, err := tk.NextToken()
			if err != nil {
				return nil, 0, pdferr.WrapXrefError(xrefStart, "tokenizer error reading xref row", err)
			}
			gen, err := genTok.Int()
			if err != nil {
				return nil, 0, pdferr.WrapXrefError(xrefStart, "malformed xref generation", err)
			}
			kwTok, err := tk.NextToken()
			if err != nil {
				return nil, 0, pdferr.WrapXrefError(xrefStart, "tokenizer error reading xref row", err)
			}
			typ := 1
			switch kwTok.Value {
			case "n":
			case "f":
				typ = 0
			default:
				return nil, 0, pdferr.NewXrefError(xrefStart, "invalid xref row keyword "+kwTok.Value)
			}
			rows = append(rows, rawRow{
				Num:    uint32(first + i),
				Offset: int64(offset),
				Gen:    uint16(gen),
				Type:   typ,
			})
		}
	}
}
