package assemble

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFinalizeSortsByRefThenPosition(t *testing.T) {
	a := New()
	a.Add(OutputPair{PairOrdinal: 2, One: Mate{RefIndex: 0, Position: 500}})
	a.Add(OutputPair{PairOrdinal: 0, One: Mate{RefIndex: 0, Position: 100}})
	a.Add(OutputPair{PairOrdinal: 1, One: Mate{RefIndex: 1, Position: 50}})

	out := a.Finalize()
	require := []int{0, 2, 1}
	for i, ord := range require {
		assert.Equal(t, ord, out[i].PairOrdinal)
	}
}

func TestFinalizeBreaksPositionTieByOrdinal(t *testing.T) {
	a := New()
	a.Add(OutputPair{PairOrdinal: 5, One: Mate{RefIndex: 0, Position: 10}})
	a.Add(OutputPair{PairOrdinal: 3, One: Mate{RefIndex: 0, Position: 10}})

	out := a.Finalize()
	assert.Equal(t, 3, out[0].PairOrdinal)
	assert.Equal(t, 5, out[1].PairOrdinal)
}

func TestFinalizeUnmappedSortsLast(t *testing.T) {
	a := New()
	a.Add(OutputPair{PairOrdinal: 0, One: Mate{RefIndex: 0, Position: 10}})
	a.Add(OutputPair{PairOrdinal: 1, One: Mate{Unmapped: true, RefIndex: -1}, Two: Mate{Unmapped: true, RefIndex: -1}})

	out := a.Finalize()
	assert.Equal(t, 0, out[0].PairOrdinal)
	assert.Equal(t, 1, out[1].PairOrdinal)
}

func TestLen(t *testing.T) {
	a := New()
	assert.Equal(t, 0, a.Len())
	a.Add(OutputPair{})
	assert.Equal(t, 1, a.Len())
}
