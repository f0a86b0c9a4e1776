// Package bytesource provides the Byte Provider abstraction: a uniform way
// to pull byte ranges out of either an in-memory buffer or a seekable file,
// addressing from the end of the data with negative offsets.
package bytesource

import (
	"fmt"
	"io"
)

// Chunk is the result of a Provider read: the buffer holding the data,
// the index into that buffer where the requested range starts, the
// absolute file offset of the buffer's first byte, and the number of
// bytes actually available (which may be less than requested near EOF).
type Chunk struct {
	Buf       []byte
	Index     int
	Origin    int64
	Available int
}

// Bytes returns the requested range as its own slice.
func (c Chunk) Bytes() []byte {
	return c.Buf[c.Index : c.Index+c.Available]
}

// Start reports the absolute file offset of the first byte returned by
// Bytes, letting callers translate a match found within the chunk back
// into a file-wide position.
func (c Chunk) Start() int64 {
	return c.Origin + int64(c.Index)
}

// Provider reads byte ranges out of some backing storage.
//
// start is an absolute offset from the beginning of the data, or, if
// negative, an offset from the end of the data (-1 is the last byte).
// length is the number of bytes requested; -1 means "to the end".
//
// The total size is reported by Size, which performs no data read;
// Read(0, -1) reads the whole data.
//
// Implementations must tolerate concurrent calls: each call is independent
// and must not rely on a shared cursor.
type Provider interface {
	Read(start int64, length int64) (Chunk, error)
	// Size reports the total number of addressable bytes without
	// performing a data read.
	Size() (int64, error)
}

// normalize resolves a possibly-negative start and a possibly-sentinel
// length against a known total size, the way every Provider
// implementation needs to.
func normalize(start, length, size int64) (i, n int64) {
	i = start % size
	if i < 0 {
		i += size
	}
	if length < 0 {
		n = size - i
	} else {
		n = length
		if n > size-i {
			n = size - i
		}
	}
	return i, n
}

// memProvider is a Provider backed by a fully-loaded byte slice.
type memProvider struct {
	data []byte
}

// FromBytes builds a Provider over a fully-loaded in-memory buffer.
func FromBytes(data []byte) Provider {
	return &memProvider{data: data}
}

func (p *memProvider) Size() (int64, error) {
	return int64(len(p.data)), nil
}

func (p *memProvider) Read(start, length int64) (Chunk, error) {
	size := int64(len(p.data))
	if size == 0 {
		return Chunk{}, nil
	}
	i, n := normalize(start, length, size)
	return Chunk{Buf: p.data, Index: int(i), Origin: 0, Available: int(n)}, nil
}

// fileProvider is a Provider that seeks and reads a file handle on every
// call, never assuming a shared cursor.
type fileProvider struct {
	rs io.ReadSeeker
}

// FromReadSeeker builds a Provider that reads from disk on demand instead
// of loading the whole file up-front.
func FromReadSeeker(rs io.ReadSeeker) Provider {
	return &fileProvider{rs: rs}
}

func (p *fileProvider) Size() (int64, error) {
	return p.rs.Seek(0, io.SeekEnd)
}

func (p *fileProvider) Read(start, length int64) (Chunk, error) {
	size, err := p.Size()
	if err != nil {
		return Chunk{}, fmt.Errorf("bytesource: cannot determine size: %w", err)
	}
	if size == 0 {
		return Chunk{}, nil
	}
	i, n := normalize(start, length, size)
	if _, err := p.rs.Seek(i, io.SeekStart); err != nil {
		return Chunk{}, fmt.Errorf("bytesource: seek to %d: %w", i, err)
	}
	buf := make([]byte, n)
	read, err := io.ReadFull(p.rs, buf)
	if err != nil && err != io.ErrUnexpectedEOF && err != io.EOF {
		return Chunk{}, fmt.Errorf("bytesource: read at %d: %w", i, err)
	}
	return Chunk{Buf: buf[:read], Index: 0, Origin: i, Available: read}, nil
}

// composite wraps an inner provider and appends extra bytes past its
// reported size, used by the revision writer to address an
// in-progress update before it has been durably appended anywhere.
type composite struct {
	inner Provider
	tail  []byte
}

// Composite builds a Provider that reads from inner for offsets before
// innerSize and from an appended in-memory tail beyond it.
func Composite(inner Provider, tail []byte) Provider {
	return &composite{inner: inner, tail: tail}
}

func (c *composite) Size() (int64, error) {
	innerSize, err := c.inner.Size()
	if err != nil {
		return 0, err
	}
	return innerSize + int64(len(c.tail)), nil
}

func (c *composite) Read(start, length int64) (Chunk, error) {
	size, err := c.Size()
	if err != nil {
		return Chunk{}, err
	}
	if size == 0 {
		return Chunk{}, nil
	}
	i, n := normalize(start, length, size)
	innerSize, err := c.inner.Size()
	if err != nil {
		return Chunk{}, err
	}
	if i+n <= innerSize {
		return c.inner.Read(i, n)
	}
	if i >= innerSize {
		return Chunk{Buf: c.tail, Index: int(i - innerSize), Origin: innerSize, Available: int(n)}, nil
	}
	// the requested range straddles the boundary: materialize a merged buffer.
	first, err := c.inner.Read(i, innerSize-i)
	if err != nil {
		return Chunk{}, err
	}
	merged := append(append([]byte{}, first.Bytes()...), c.tail[:n-(innerSize-i)]...)
	return Chunk{Buf: merged, Index: 0, Origin: i, Available: len(merged)}, nil
}

// ReadAll materializes the entire content addressed by p.
func ReadAll(p Provider) ([]byte, error) {
	size, err := p.Size()
	if err != nil {
		return nil, err
	}
	c, err := p.Read(0, size)
	if err != nil {
		return nil, err
	}
	return append([]byte{}, c.Bytes()...), nil
}

// Hexdump renders a range of p in the style of `hexdump -C`, useful for
// the CLI's hexdump subcommand and for debugging corrupt files.
func Hexdump(p Provider, start, stop int64) (string, error) {
	const width = 16
	size, err := p.Size()
	if err != nil {
		return "", err
	}
	if stop <= 0 || stop > size {
		stop = size
	}
	if start < 0 {
		start = 0
	}
	if start >= stop {
		return "", nil
	}
	c, err := p.Read(start, stop-start)
	if err != nil {
		return "", err
	}
	data := c.Bytes()
	out := make([]byte, 0, len(data)*4)
	buf := []byte{}
	for i := 0; i < len(data); i += width {
		end := i + width
		if end > len(data) {
			end = len(data)
		}
		line := data[i:end]
		buf = buf[:0]
		buf = append(buf, fmt.Sprintf("%010d  ", start+int64(i))...)
		for j := 0; j < width; j++ {
			if j < len(line) {
				buf = append(buf, fmt.Sprintf("%02x ", line[j])...)
			} else {
				buf = append(buf, "   "...)
			}
		}
		buf = append(buf, " |"...)
		for _, b := range line {
			if b >= 0x20 && b <= 0x7e {
				buf = append(buf, b)
			} else {
				buf = append(buf, '.')
			}
		}
		buf = append(buf, "|\n"...)
		out = append(out, buf...)
	}
	return string(out), nil
}
