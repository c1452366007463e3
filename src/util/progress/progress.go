// Package progress reports byte counts for long-running image streams.
// The totals are unknown up front (a replication stream has no length
// header), so only the running count is shown.
package progress

import (
	"fmt"
	"io"
	"time"

	"github.com/lxc/incus/shared/units"
)

const printInterval = 250 * time.Millisecond

// Writer counts bytes written through it and periodically reports them
// to out. A nil out disables reporting.
type Writer struct {
	w       io.Writer
	out     io.Writer
	label   string
	written int64
	last    time.Time
}

func NewWriter(w io.Writer, label string, out io.Writer) *Writer {
	return &Writer{w: w, out: out, label: label}
}

func (p *Writer) Write(b []byte) (int, error) {
	n, err := p.w.Write(b)
	p.written += int64(n)
	p.maybePrint()
	return n, err
}

// Finish prints the final count and a newline.
func (p *Writer) Finish() {
	if p.out == nil {
		return
	}
	p.print()
	fmt.Fprintln(p.out)
}

func (p *Writer) maybePrint() {
	if p.out == nil {
		return
	}
	if now := time.Now(); now.Sub(p.last) >= printInterval {
		p.print()
		p.last = now
	}
}

func (p *Writer) print() {
	fmt.Fprintf(p.out, "\r%s: %s", p.label, units.GetByteSizeStringIEC(p.written, 2))
}

// Reader is the read-side counterpart of Writer.
type Reader struct {
	r     io.Reader
	out   io.Writer
	label string
	read  int64
	last  time.Time
}

func NewReader(r io.Reader, label string, out io.Writer) *Reader {
	return &Reader{r: r, out: out, label: label}
}

func (p *Reader) Read(b []byte) (int, error) {
	n, err := p.r.Read(b)
	p.read += int64(n)
	if p.out != nil {
		if now := time.Now(); now.Sub(p.last) >= printInterval {
			fmt.Fprintf(p.out, "\r%s: %s", p.label, units.GetByteSizeStringIEC(p.read, 2))
			p.last = now
		}
		if err == io.EOF {
			fmt.Fprintf(p.out, "\r%s: %s\n", p.label, units.GetByteSizeStringIEC(p.read, 2))
		}
	}
	return n, err
}
