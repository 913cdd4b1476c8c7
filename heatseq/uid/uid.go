// Package uid extracts the unique molecular identifier and primer-trimmed
// tail from a read: either a fixed-length prefix, or a
// variable-length prefix discovered by globally aligning the read against
// the probe's primer and reading off where the primer's match begins.
package uid

import (
	stderrors "errors"

	"github.com/grailbio/targetseq/heatseq"
	"github.com/grailbio/targetseq/heatseq/align"
	"github.com/grailbio/targetseq/heatseq/seq"
)

// Result is an extracted UID and the read/quality tail that follows it.
type Result struct {
	UID           string
	Tail          string
	QualityTail   string
	Substitutions int
	Insertions    int
	Deletions     int
}

// Extractor pulls a UID and trimmed tail out of a read.
type Extractor struct {
	aligner                         *align.GlobalAligner
	variableLength                  bool
	nominalLength                   int
	primerEditDistanceCutoffDivisor int
}

// NewExtractor builds an Extractor. When variableLength is false, Extract
// always takes the first nominalLength bases as the UID. When true, Extract
// aligns against primer to discover the UID boundary; cutoffDivisor (default
// 4) sets the failure threshold: an edit distance over the primer-aligned
// region >= len(primer)/cutoffDivisor fails with PrimerMisaligned.
func NewExtractor(scorer align.Scorer, variableLength bool, nominalLength, cutoffDivisor int) *Extractor {
	return &Extractor{
		aligner:                         align.NewGlobalAligner(scorer),
		variableLength:                  variableLength,
		nominalLength:                   nominalLength,
		primerEditDistanceCutoffDivisor: cutoffDivisor,
	}
}

// Extract parses the UID from the front of read/quality. primer is required
// (and used) only when the Extractor was built with variableLength=true.
func (e *Extractor) Extract(read, quality string, primer *seq.IupacSequence) (Result, error) {
	if !e.variableLength {
		return e.extractFixed(read, quality)
	}
	return e.extractVariable(read, quality, primer)
}

func (e *Extractor) extractFixed(read, quality string) (Result, error) {
	n := e.nominalLength
	if n > len(read) {
		n = len(read)
	}
	return Result{
		UID:         read[:n],
		Tail:        read[n:],
		QualityTail: quality[n:],
	}, nil
}

func (e *Extractor) extractVariable(read, quality string, primer *seq.IupacSequence) (Result, error) {
	readSeq, err := seq.NewIupac(read)
	if err != nil {
		return Result{}, heatseq.Wrap(err, "uid.Extract", "read", read)
	}
	aln := e.aligner.Align(readSeq, primer)
	// Leading and trailing deletions are read bases outside the primer (the
	// UID before it, the insert after it); only the primer region counts.
	core := aln.Cigar
	for len(core) > 0 && core[0].Op == align.OpDeletion {
		core = core[1:]
	}
	for len(core) > 0 && core[len(core)-1].Op == align.OpDeletion {
		core = core[:len(core)-1]
	}
	sub, ins, del := core.EditCounts()
	editDistance := sub + ins + del
	if editDistance*e.primerEditDistanceCutoffDivisor >= primer.Len() {
		return Result{}, heatseq.E(heatseq.PrimerMisaligned, "uid.Extract",
			heatseq.Wrap(errPrimerMisaligned, "uid.Extract", "edit distance", editDistance, "primer length", primer.Len()))
	}
	n := aln.IndexOfFirstMatchInReference
	if n > len(read) {
		n = len(read)
	}
	return Result{
		UID:           read[:n],
		Tail:          read[n:],
		QualityTail:   quality[n:],
		Substitutions: sub,
		Insertions:    ins,
		Deletions:     del,
	}, nil
}

var errPrimerMisaligned = stderrors.New("uid: primer alignment edit distance exceeds cutoff")
