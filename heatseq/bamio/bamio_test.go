package bamio

import (
	"testing"

	"github.com/grailbio/hts/sam"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/grailbio/targetseq/heatseq/align"
	"github.com/grailbio/targetseq/heatseq/assemble"
)

func TestBuildRecordsSetsCustomAttributes(t *testing.T) {
	ref, err := sam.NewReference("chr1", "", "", 1000, nil, nil)
	require.NoError(t, err)
	refs := []*sam.Reference{ref}

	p := assemble.OutputPair{
		PairOrdinal:    7,
		Name:           "read-7",
		ProbeID:        "probe-1",
		UID:            "ACGTACGT",
		MappingQuality: 60,
		One: assemble.Mate{
			RefIndex:     0,
			Position:     100,
			MappedLength: 36,
			Bases:        "ACGTACGTACGTACGTACGTACGTACGTACGTACGT",
			Quality:      stringRepeat("I", 37),
			Cigar:        align.Cigar{{Op: align.OpMatch, Length: 37}},
		},
		Two: assemble.Mate{
			RefIndex:       0,
			Position:       200,
			NegativeStrand: true,
			MappedLength:   37,
			Bases:          "ACGTACGTACGTACGTACGTACGTACGTACGTACGT",
			Quality:        stringRepeat("I", 37),
			Cigar:          align.Cigar{{Op: align.OpMatch, Length: 37}},
		},
	}

	one, two, err := BuildRecords(refs, p)
	require.NoError(t, err)

	assert.NotZero(t, one.Flags&sam.Paired)
	assert.NotZero(t, one.Flags&sam.Read1)
	assert.NotZero(t, one.Flags&sam.MateReverse)
	assert.NotZero(t, two.Flags&sam.Read2)
	assert.NotZero(t, two.Flags&sam.Reverse)

	auxValue := func(r *sam.Record, tag sam.Tag) interface{} {
		for _, a := range r.AuxFields {
			if a.Tag() == tag {
				return a.Value()
			}
		}
		return nil
	}
	assert.Equal(t, "probe-1", auxValue(one, tagProbeID))
	assert.Equal(t, "ACGTACGT", auxValue(one, tagExtensionUID))
}

func stringRepeat(s string, n int) string {
	out := make([]byte, n)
	for i := range out {
		out[i] = s[0]
	}
	return string(out)
}
