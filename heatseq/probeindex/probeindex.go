// Package probeindex builds a k-mer inverted index over a panel's capture
// probes and resolves candidate probe mappings for a read sequence.
//
// The design follows fusion/kmer_index.go's farmhash-keyed kmer->gene map,
// but without that file's mmap'd, sharded, linear-probing hash table: a
// probe panel's k-mer universe is small (at most a few hundred probes'
// worth of capture-target windows) next to fusion's whole-transcriptome
// index, so a plain Go map is the right tool here, not a memory-engineering
// exercise.
package probeindex

import (
	"sort"

	farm "github.com/dgryski/go-farm"

	"github.com/grailbio/targetseq/heatseq/probe"
	"github.com/grailbio/targetseq/heatseq/seq"
)

// hit records one (probe, strand) reference attached to a k-mer.
type hit struct {
	ref    *probe.Reference
	offset int // 0-based offset of this kmer within the probe's capture target, as indexed
}

// Index is a k-mer inverted index over a panel's capture-target regions,
// indexed on both strands.
type Index struct {
	k     int
	table map[uint64][]hit
	refs  []*probe.Reference
}

// Candidate is a probe reference with its hit-count evidence.
type Candidate struct {
	Ref            *probe.Reference
	Hits           int
	DiagonalHits   int // hits consistent with a single read/target diagonal
}

func hashKmer(k seq.Kmer) uint64 {
	return farm.Hash64WithSeed(nil, uint64(k))
}

// Build constructs an Index over probes at the given k-mer length. Each
// probe's capture target is indexed once per ProbeStrand it can be
// observed from: the forward-strand sequence, and its reverse complement.
func Build(probes []*probe.Probe, k int, targets func(*probe.Probe) (*seq.PackedSequence, error)) (*Index, error) {
	idx := &Index{k: k, table: make(map[uint64][]hit)}
	for _, p := range probes {
		target, err := targets(p)
		if err != nil {
			return nil, err
		}
		idx.indexStrand(p, target, false)
		idx.indexStrand(p, target.ReverseComplement(), true)
	}
	return idx, nil
}

func (idx *Index) indexStrand(p *probe.Probe, target *seq.PackedSequence, minus bool) {
	ref := &probe.Reference{Probe: p, MatchedOnMinus: minus}
	idx.refs = append(idx.refs, ref)
	for _, h := range target.IterKmers(idx.k) {
		key := hashKmer(h.Code)
		idx.table[key] = append(idx.table[key], hit{ref: ref, offset: h.Offset})
	}
}

// BestCandidates returns the probe references tied at the maximum
// diagonal-consistent hit count, provided that maximum is at least minHits;
// ties are broken only for presentation order (by descending raw hit count,
// then probe ID, then the plus-strand reference before the minus-strand
// one), never for inclusion. An insufficiently-supported query
// (maximum below minHits) returns an empty slice.
//
// "Diagonal-consistent" means: among a probe reference's hits, the largest
// group sharing the same (queryOffset - targetOffset) value, which is the
// cheap proxy for "these k-mers plausibly come from one ungapped local
// alignment" used to narrow candidates before the expensive global
// alignment in heatseq/pipeline's extension step.
func (idx *Index) BestCandidates(query *seq.IupacSequence, minHits int) []Candidate {
	type bucket struct {
		diagonals map[int]int
		total     int
	}
	perRef := make(map[*probe.Reference]*bucket)

	for _, kh := range query.IterKmers(idx.k) {
		key := hashKmer(kh.Code)
		for _, h := range idx.table[key] {
			b, ok := perRef[h.ref]
			if !ok {
				b = &bucket{diagonals: make(map[int]int)}
				perRef[h.ref] = b
			}
			b.total++
			b.diagonals[kh.Offset-h.offset]++
		}
	}

	all := make([]Candidate, 0, len(perRef))
	max := 0
	for ref, b := range perRef {
		best := 0
		for _, count := range b.diagonals {
			if count > best {
				best = count
			}
		}
		all = append(all, Candidate{Ref: ref, Hits: b.total, DiagonalHits: best})
		if best > max {
			max = best
		}
	}
	if max < minHits {
		return nil
	}

	candidates := make([]Candidate, 0, len(all))
	for _, c := range all {
		if c.DiagonalHits == max {
			candidates = append(candidates, c)
		}
	}

	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].Hits != candidates[j].Hits {
			return candidates[i].Hits > candidates[j].Hits
		}
		if candidates[i].Ref.Probe.ID != candidates[j].Ref.Probe.ID {
			return candidates[i].Ref.Probe.ID < candidates[j].Ref.Probe.ID
		}
		return !candidates[i].Ref.MatchedOnMinus && candidates[j].Ref.MatchedOnMinus
	})
	return candidates
}
