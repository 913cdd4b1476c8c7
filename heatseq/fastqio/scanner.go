package fastqio

import (
	"context"
	"io"

	"github.com/grailbio/base/compress"
	"github.com/grailbio/base/file"

	"github.com/grailbio/targetseq/encoding/fastq"
	"github.com/grailbio/targetseq/heatseq"
)

// ScannerReader is the default PairReader, built on encoding/fastq's
// PairScanner. It transparently decompresses gzip-compressed inputs via
// grailbio/base/compress, the way cmd/bio-fusion's readFASTQ does.
type ScannerReader struct {
	one, two file.File
	scanner  *fastq.PairScanner
	ctx      context.Context
}

// OpenPair opens r1Path/r2Path (local or remote, via grailbio/base/file)
// and returns a ScannerReader over them.
func OpenPair(ctx context.Context, r1Path, r2Path string) (*ScannerReader, error) {
	one, err := file.Open(ctx, r1Path)
	if err != nil {
		return nil, heatseq.E(heatseq.IoFailure, "fastqio.OpenPair", err)
	}
	two, err := file.Open(ctx, r2Path)
	if err != nil {
		one.Close(ctx)
		return nil, heatseq.E(heatseq.IoFailure, "fastqio.OpenPair", err)
	}

	var r1, r2 io.Reader = one.Reader(ctx), two.Reader(ctx)
	if u := compress.NewReaderPath(r1, one.Name()); u != nil {
		r1 = u
	}
	if u := compress.NewReaderPath(r2, two.Name()); u != nil {
		r2 = u
	}
	scanner := fastq.NewPairScanner(r1, r2, fastq.ID|fastq.Seq|fastq.Qual)
	return &ScannerReader{one: one, two: two, scanner: scanner, ctx: ctx}, nil
}

// Read implements PairReader.
func (r *ScannerReader) Read() (one, two Record, ok bool, err error) {
	var rd1, rd2 fastq.Read
	if !r.scanner.Scan(&rd1, &rd2) {
		// ErrDiscordant means one stream ended first: stop at the shorter one.
		if err := r.scanner.Err(); err != nil && err != fastq.ErrDiscordant {
			return Record{}, Record{}, false, heatseq.E(heatseq.IoFailure, "fastqio.Read", err)
		}
		return Record{}, Record{}, false, nil
	}
	return Record{Name: trimAt(rd1.ID), Bases: rd1.Seq, Quality: rd1.Qual},
		Record{Name: trimAt(rd2.ID), Bases: rd2.Seq, Quality: rd2.Qual}, true, nil
}

// trimAt strips the FASTQ header's leading '@'.
func trimAt(id string) string {
	if len(id) > 0 && id[0] == '@' {
		return id[1:]
	}
	return id
}

// Close implements PairReader.
func (r *ScannerReader) Close() error {
	e1 := r.one.Close(r.ctx)
	e2 := r.two.Close(r.ctx)
	if e1 != nil {
		return e1
	}
	return e2
}
