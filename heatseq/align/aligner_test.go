package align

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/grailbio/targetseq/heatseq/seq"
)

func mustSeq(t *testing.T, s string) *seq.PackedSequence {
	t.Helper()
	p, err := seq.New(s)
	require.NoError(t, err)
	return p
}

func TestAlignExactMatch(t *testing.T) {
	a := NewGlobalAligner(DefaultScorer)
	ref := mustSeq(t, "ACGTACGT")
	qry := mustSeq(t, "ACGTACGT")
	aln := a.Align(ref, qry)
	assert.Equal(t, "8M", aln.Cigar.String())
	assert.Equal(t, 8*DefaultScorer.Match, aln.Score)
	assert.Equal(t, 0, aln.IndexOfFirstMatchInReference)
	assert.Equal(t, 0, aln.IndexOfFirstMatchInQuery)
}

func TestAlignSingleMismatch(t *testing.T) {
	a := NewGlobalAligner(DefaultScorer)
	ref := mustSeq(t, "ACGTACGT")
	qry := mustSeq(t, "ACGAACGT")
	aln := a.Align(ref, qry)
	assert.Equal(t, "8M", aln.Cigar.String())
	sub, ins, del := aln.Cigar.EditCounts()
	assert.Equal(t, 1, sub)
	assert.Equal(t, 0, ins)
	assert.Equal(t, 0, del)
}

func TestAlignSingleInsertion(t *testing.T) {
	a := NewGlobalAligner(DefaultScorer)
	ref := mustSeq(t, "ACGTACGT")
	qry := mustSeq(t, "ACGTAACGT")
	aln := a.Align(ref, qry)
	_, ins, del := aln.Cigar.EditCounts()
	assert.Equal(t, 1, ins)
	assert.Equal(t, 0, del)
	assert.Equal(t, len(ref.String()), aln.Cigar.ReferenceSpan())
}

func TestAlignSingleDeletion(t *testing.T) {
	a := NewGlobalAligner(DefaultScorer)
	ref := mustSeq(t, "ACGTAACGT")
	qry := mustSeq(t, "ACGTACGT")
	aln := a.Align(ref, qry)
	_, ins, del := aln.Cigar.EditCounts()
	assert.Equal(t, 0, ins)
	assert.Equal(t, 1, del)
}

// TestAlignTraceBackPrefersDiagonal aligns a query with one substituted
// base and checks the traceback reports the diagonal (mismatch)
// interpretation rather than an insertion+deletion pair.
func TestAlignTraceBackPrefersDiagonal(t *testing.T) {
	scorer := SimpleScorer{Match: 1, Mismatch: -1, GapOpen: -1, GapExtend: 0}
	a := NewGlobalAligner(scorer)
	ref := mustSeq(t, "AAAA")
	qry := mustSeq(t, "AAGA")
	aln := a.Align(ref, qry)
	// Under this scorer a single mismatch costs -1, while a 1bp deletion plus
	// a 1bp insertion costs -1 + -1 = -2, so the diagonal strictly wins; this
	// confirms no spurious gap is introduced when a clean mismatch scores
	// better.
	sub, ins, del := aln.Cigar.EditCounts()
	assert.Equal(t, 1, sub)
	assert.Equal(t, 0, ins)
	assert.Equal(t, 0, del)
}

// TestIndexOfFirstMatchPrimerInReadPrefix mirrors the Java original's usage
// pattern for variable-length UID extraction: the complete read (with its
// leading UID) is aligned as the reference, and the known primer sequence
// as the query. IndexOfFirstMatchInReference then gives the UID length.
func TestIndexOfFirstMatchPrimerInReadPrefix(t *testing.T) {
	a := NewGlobalAligner(DefaultScorer)
	uid := "ACGTAC"
	primer := "GGGCCCTTT"
	read := mustSeq(t, uid+primer)
	query := mustSeq(t, primer)
	aln := a.Align(read, query)
	assert.Equal(t, len(uid), aln.IndexOfFirstMatchInReference)
	assert.Equal(t, 0, aln.IndexOfFirstMatchInQuery)
}

func TestIndexOfFirstMatchQueryLeadingInsertion(t *testing.T) {
	a := NewGlobalAligner(DefaultScorer)
	ref := mustSeq(t, "ACGTACGT")
	qry := mustSeq(t, "TTACGTACGT")
	aln := a.Align(ref, qry)
	assert.Equal(t, 0, aln.IndexOfFirstMatchInReference)
	assert.Equal(t, 2, aln.IndexOfFirstMatchInQuery)
}
