// Package assemble implements OutputAssembler (L7): an in-memory,
// coordinate-sorted collector of extended read pairs, responsible for
// stable ordering before emission through the external BAM writer contract
// (heatseq/bamio). Mate cross-reference fields are set by
// heatseq/bamio.BuildRecords when each pair's records are built.
package assemble

import (
	"sort"

	"github.com/grailbio/targetseq/heatseq/align"
)

// Mate identifies one end of an OutputPair record, for cross-referencing.
type Mate struct {
	RefIndex        int
	Position        int // 0-based leftmost aligned position
	NegativeStrand  bool
	Unmapped        bool
	MappedLength    int
	Cigar           align.Cigar
	ExtensionError  string // non-empty when extension of this mate failed
	Bases, Quality  string
}

// OutputPair is one fully-extended read pair awaiting assembly, per
// the output assembly stage.
type OutputPair struct {
	PairOrdinal    int
	Name           string // read name, shared by both mates
	ProbeID        string
	UID            string
	LigationUID    string
	MappingQuality int

	One, Two Mate
}

// Assembler collects OutputPairs and, on Finalize, produces them in the
// deterministic order required downstream: stable sort by
// (ref_idx, pos, pair_ordinal).
type Assembler struct {
	pairs []OutputPair
}

// New returns an empty Assembler.
func New() *Assembler {
	return &Assembler{}
}

// Add appends a completed OutputPair. Safe to call from multiple phase-2
// workers only if the caller serializes access (heatseq/pipeline does so
// with a dedicated mutex, matching the "all writers are mutexed
// per writer").
func (a *Assembler) Add(p OutputPair) {
	a.pairs = append(a.pairs, p)
}

// Len reports the number of pairs collected so far.
func (a *Assembler) Len() int { return len(a.pairs) }

// Finalize sorts a copy of the collected pairs by (ref_idx, pos,
// pair_ordinal) and returns it; the pairs themselves are not modified. It
// is stable
// (ties preserve insertion order beyond the explicit pair_ordinal
// tie-break).
func (a *Assembler) Finalize() []OutputPair {
	out := make([]OutputPair, len(a.pairs))
	copy(out, a.pairs)
	sort.SliceStable(out, func(i, j int) bool {
		pi, pj := primaryMate(out[i]), primaryMate(out[j])
		if pi.RefIndex != pj.RefIndex {
			return refOrder(pi.RefIndex) < refOrder(pj.RefIndex)
		}
		if pi.Position != pj.Position {
			return pi.Position < pj.Position
		}
		return out[i].PairOrdinal < out[j].PairOrdinal
	})
	return out
}

// refOrder maps the unmapped sentinel (-1) to the end of the ordering,
// matching BAM's convention that unmapped records with no reference sort
// last.
func refOrder(refIndex int) int {
	if refIndex < 0 {
		return int(^uint(0) >> 1)
	}
	return refIndex
}

// primaryMate returns the mate used to order a pair in the sorted output:
// mate one, unless it is unmapped and mate two is not.
func primaryMate(p OutputPair) Mate {
	if p.One.Unmapped && !p.Two.Unmapped {
		return p.Two
	}
	return p.One
}
