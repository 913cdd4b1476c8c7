package bamio

import (
	"io"

	"github.com/grailbio/hts/bam"
	"github.com/grailbio/hts/sam"

	"github.com/grailbio/targetseq/heatseq/assemble"
)

// BAMWriter is the default Writer, backed by github.com/grailbio/hts/bam.
type BAMWriter struct {
	out  io.Writer
	refs []*sam.Reference
	w    *bam.Writer
}

// NewBAMWriter wraps out as a Writer. refs must be in the same order the
// OutputPair.Mate.RefIndex values reference.
func NewBAMWriter(out io.Writer, refs []*sam.Reference) *BAMWriter {
	return &BAMWriter{out: out, refs: refs}
}

// WriteHeader implements Writer.
func (b *BAMWriter) WriteHeader(h *sam.Header) error {
	w, err := bam.NewWriter(b.out, h, 1)
	if err != nil {
		return err
	}
	b.w = w
	return nil
}

// WritePair implements Writer.
func (b *BAMWriter) WritePair(p assemble.OutputPair) error {
	one, two, err := BuildRecords(b.refs, p)
	if err != nil {
		return err
	}
	if err := b.w.Write(one); err != nil {
		return err
	}
	return b.w.Write(two)
}

// Close implements Writer.
func (b *BAMWriter) Close() error {
	return b.w.Close()
}
