package dxf

import (
	"bufio"
	"bytes"
	"fmt"
	"io"

	"github.com/rotisserie/eris"

	"github.com/sells-group/unitmap/internal/model"
)

// WriteTo serializes the document. Pairs read from the source are written
// back byte for byte; generated pairs use the conventional right-aligned
// group code layout. Write failures are reported as SerializationError.
func (d *Document) WriteTo(w io.Writer) (int64, error) {
	cw := &countingWriter{w: w}
	bw := bufio.NewWriter(cw)

	if d.bom {
		_, _ = bw.Write(utf8BOM)
	}
	last := len(d.pairs) - 1
	for i, p := range d.pairs {
		code, value := p.rawCode, p.rawValue
		if !p.raw {
			code, value = fmt.Sprintf("%3d", p.Code), p.Value
		}
		_, _ = bw.WriteString(code)
		_, _ = bw.WriteString(d.newline)
		_, _ = bw.WriteString(value)
		if i < last || len(d.trailer) > 0 || d.finalNewline {
			_, _ = bw.WriteString(d.newline)
		}
	}
	for i, line := range d.trailer {
		_, _ = bw.WriteString(line)
		if i < len(d.trailer)-1 || d.finalNewline {
			_, _ = bw.WriteString(d.newline)
		}
	}

	if err := bw.Flush(); err != nil {
		return cw.n, model.SerializationError(eris.Wrap(err, "dxf: write document"))
	}
	return cw.n, nil
}

// Bytes serializes the document into memory.
func (d *Document) Bytes() ([]byte, error) {
	var buf bytes.Buffer
	if _, err := d.WriteTo(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

type countingWriter struct {
	w io.Writer
	n int64
}

func (c *countingWriter) Write(p []byte) (int, error) {
	n, err := c.w.Write(p)
	c.n += int64(n)
	return n, err
}
