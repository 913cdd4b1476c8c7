package uid

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/grailbio/targetseq/heatseq"
	"github.com/grailbio/targetseq/heatseq/align"
	"github.com/grailbio/targetseq/heatseq/seq"
)

func TestExtractFixedLength(t *testing.T) {
	e := NewExtractor(align.DefaultScorer, false, 8, 4)
	read := "ACGTACGT" + "GGGGCCCCTTTT"
	qual := "IIIIIIII" + "IIIIIIIIIIII"
	r, err := e.Extract(read, qual, nil)
	require.NoError(t, err)
	assert.Equal(t, "ACGTACGT", r.UID)
	assert.Equal(t, "GGGGCCCCTTTT", r.Tail)
	assert.Equal(t, "IIIIIIIIIIII", r.QualityTail)
}

func TestExtractVariableLength(t *testing.T) {
	e := NewExtractor(align.DefaultScorer, true, 6, 4)
	uidLen := 6
	primerText := "GGGCCCTTTAAA"
	primer, err := seq.NewIupac(primerText)
	require.NoError(t, err)
	read := "ACGTAC" + primerText
	qual := make([]byte, len(read))
	for i := range qual {
		qual[i] = 'I'
	}
	r, err := e.Extract(read, string(qual), primer)
	require.NoError(t, err)
	assert.Equal(t, uidLen, len(r.UID))
	assert.Equal(t, "ACGTAC", r.UID)
	assert.Equal(t, primerText, r.Tail)
}

func TestExtractVariableLengthPrimerMisaligned(t *testing.T) {
	e := NewExtractor(align.DefaultScorer, true, 6, 4)
	primer, err := seq.NewIupac("GGGCCCTTTAAA")
	require.NoError(t, err)
	// Read has no resemblance to the primer at all.
	read := "ACGTACAAAAAAAAAAAA"
	qual := make([]byte, len(read))
	for i := range qual {
		qual[i] = 'I'
	}
	_, err = e.Extract(read, string(qual), primer)
	require.Error(t, err)
	assert.True(t, heatseq.Is(heatseq.PrimerMisaligned, err))
}

func TestExtractVariableLengthDifferentFromNominal(t *testing.T) {
	e := NewExtractor(align.DefaultScorer, true, 6, 4)
	primerText := "GGGCCCTTTAAA"
	primer, err := seq.NewIupac(primerText)
	require.NoError(t, err)
	// Actual UID is 8 bases, not the nominal 6 — extraction must still find
	// the correct boundary via primer alignment.
	read := "ACGTACGT" + primerText
	qual := make([]byte, len(read))
	for i := range qual {
		qual[i] = 'I'
	}
	r, err := e.Extract(read, string(qual), primer)
	require.NoError(t, err)
	assert.Equal(t, "ACGTACGT", r.UID)
	assert.Equal(t, primerText, r.Tail)
}
