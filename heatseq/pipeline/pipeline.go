// Package pipeline implements MapFilterExtendPipeline (L6), the two-phase
// parallel orchestration engine: phase 1 classifies and groups read pairs
// by (probe, UID); a barrier; phase 2 selects one representative per
// group, extends it to the probe primers, and hands the result to
// heatseq/assemble.
package pipeline

import (
	"fmt"
	"sort"
	"sync"

	"github.com/grailbio/base/log"
	"github.com/grailbio/base/traverse"

	"github.com/grailbio/targetseq/heatseq"
	"github.com/grailbio/targetseq/heatseq/align"
	"github.com/grailbio/targetseq/heatseq/assemble"
	"github.com/grailbio/targetseq/heatseq/fastqio"
	"github.com/grailbio/targetseq/heatseq/genome"
	"github.com/grailbio/targetseq/heatseq/probe"
	"github.com/grailbio/targetseq/heatseq/probeindex"
	"github.com/grailbio/targetseq/heatseq/seq"
	"github.com/grailbio/targetseq/heatseq/uid"
)

// Opts configures a pipeline Run, carrying every field the
// Configuration section names plus the optional side channels.
type Opts struct {
	UIDLength                       int
	VariableLengthUIDs              bool
	Workers                         int
	KmerSize                        int
	MinKmerHits                     int
	PrimerEditDistanceCutoffDivisor int
	MappingQualityDefault           int

	AmbiguousChannel       SideChannel
	QualityChannel         SideChannel
	UnableToAlignChannel   SideChannel
	UnmappedChannel        SideChannel
	PrimerAlignmentChannel SideChannel
}

// DefaultOpts holds the recommended defaults.
var DefaultOpts = Opts{
	UIDLength:                       8,
	VariableLengthUIDs:              false,
	Workers:                         4,
	KmerSize:                        12,
	MinKmerHits:                     3,
	PrimerEditDistanceCutoffDivisor: 4,
	MappingQualityDefault:           60,
}

// SideChannel records one row of tab-separated diagnostic output. A nil
// SideChannel disables that channel entirely; absence must not impair the
// core pipeline.
type SideChannel interface {
	Write(fields ...string) error
}

// Metrics accumulates run statistics, including per-probe/UID telemetry.
type Metrics struct {
	mu sync.Mutex

	TotalPairs                int
	Unmapped                  int
	Ambiguous                 int
	UnableToAlignPrimer       int
	DuplicateReadPairsRemoved int
	DistinctUIDs              int

	PerProbe map[string]*ProbeMetrics
}

// ProbeMetrics is the per-probe slice of Metrics.
type ProbeMetrics struct {
	TotalReadPairs int
	UIDCount       int
	MinPairsPerUID int
	MaxPairsPerUID int
}

func newMetrics() *Metrics {
	return &Metrics{PerProbe: make(map[string]*ProbeMetrics)}
}

func (m *Metrics) probeMetrics(id string) *ProbeMetrics {
	m.mu.Lock()
	defer m.mu.Unlock()
	pm, ok := m.PerProbe[id]
	if !ok {
		pm = &ProbeMetrics{}
		m.PerProbe[id] = pm
	}
	return pm
}

// qualityIndexedPair is the dedup ranking element.
type qualityIndexedPair struct {
	totalQuality int
	pairOrdinal  int
}

// bucket is a concurrency-safe UID -> set-of-pairs map for one
// ProbeReference, guarded by its own mutex
// (finer-grained than one global lock over the whole outer map).
type bucket struct {
	mu    sync.Mutex
	byUID map[string][]qualityIndexedPair
}

func newBucket() *bucket {
	return &bucket{byUID: make(map[string][]qualityIndexedPair)}
}

func (b *bucket) insert(uid string, p qualityIndexedPair) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.byUID[uid] = append(b.byUID[uid], p)
}

// classified is the outer probe->bucket map plus the mutex that protects
// inserting brand-new buckets (bucket contents are then protected by the
// bucket's own mutex).
type classified struct {
	mu      sync.Mutex
	byProbe map[*probe.Reference]*bucket
}

func newClassified() *classified {
	return &classified{byProbe: make(map[*probe.Reference]*bucket)}
}

func (c *classified) bucketFor(ref *probe.Reference) *bucket {
	c.mu.Lock()
	defer c.mu.Unlock()
	b, ok := c.byProbe[ref]
	if !ok {
		b = newBucket()
		c.byProbe[ref] = b
	}
	return b
}

// Pipeline wires together the collaborators a Run needs.
type Pipeline struct {
	opts     Opts
	index    *probeindex.Index
	scorer   align.Scorer
	store    *genome.Store
	refIndex map[string]int
}

// New builds a Pipeline over a probe index, alignment scorer, and genome
// store. refNames gives the BAM reference order an OutputPair.Mate.RefIndex
// indexes into; it must be the same slice (in the same order) passed to
// the header-building code that writes the output BAM, typically
// probe.SequenceNames(probes). Run's caller is responsible for writing the
// returned OutputPairs through a heatseq/bamio.Writer.
func New(opts Opts, index *probeindex.Index, scorer align.Scorer, store *genome.Store, refNames []string) *Pipeline {
	refIndex := make(map[string]int, len(refNames))
	for i, name := range refNames {
		refIndex[name] = i
	}
	return &Pipeline{opts: opts, index: index, scorer: scorer, store: store, refIndex: refIndex}
}

// Run executes the full two-phase pipeline over reader, returning the
// finalized output pairs and accumulated Metrics.
func (p *Pipeline) Run(reader fastqio.PairReader) ([]assemble.OutputPair, *Metrics, error) {
	pairs, err := readAllPairs(reader)
	if err != nil {
		return nil, nil, heatseq.Wrap(err, "pipeline.Run")
	}
	metrics := newMetrics()
	metrics.TotalPairs = len(pairs)

	extractor := uid.NewExtractor(p.scorer, p.opts.VariableLengthUIDs, p.opts.UIDLength, p.opts.PrimerEditDistanceCutoffDivisor)
	classified := newClassified()

	w := p.opts.Workers
	if w < 1 {
		w = 1
	}

	err = traverse.Limit(w).Each(len(pairs), func(i int) error {
		p.classifyOne(i, pairs[i], extractor, classified, metrics)
		return nil
	})
	if err != nil {
		return nil, nil, heatseq.Wrap(err, "pipeline.Run", "phase1")
	}

	refs := sortedReferences(classified)
	selected := make(map[int]*probe.Reference)
	selectedUID := make(map[int]string)
	distinctUIDs := make(map[string]bool)
	for _, ref := range refs {
		b := classified.byProbe[ref]
		pm := metrics.probeMetrics(ref.Probe.ID)
		for u, candidates := range b.byUID {
			distinctUIDs[ref.Probe.ID+"\x00"+u] = true
			winner := selectRepresentative(candidates)
			selected[winner.pairOrdinal] = ref
			selectedUID[winner.pairOrdinal] = u
			pm.TotalReadPairs += len(candidates)
			pm.UIDCount++
			if pm.MinPairsPerUID == 0 || len(candidates) < pm.MinPairsPerUID {
				pm.MinPairsPerUID = len(candidates)
			}
			if len(candidates) > pm.MaxPairsPerUID {
				pm.MaxPairsPerUID = len(candidates)
			}
			metrics.DuplicateReadPairsRemoved += len(candidates) - 1
		}
	}
	metrics.DistinctUIDs = len(distinctUIDs)

	assembler := assemble.New()
	var assemblerMu sync.Mutex
	ordinals := make([]int, 0, len(selected))
	for ord := range selected {
		ordinals = append(ordinals, ord)
	}
	sort.Ints(ordinals)

	err = traverse.Limit(w).Each(len(ordinals), func(i int) error {
		ord := ordinals[i]
		ref := selected[ord]
		out, ok := p.extendOne(ord, pairs[ord], ref)
		if !ok {
			return nil
		}
		out.UID = selectedUID[ord]
		assemblerMu.Lock()
		assembler.Add(out)
		assemblerMu.Unlock()
		return nil
	})
	if err != nil {
		return nil, nil, heatseq.Wrap(err, "pipeline.Run", "phase2")
	}

	return assembler.Finalize(), metrics, nil
}

type inputPair struct {
	ordinal  int
	one, two fastqio.Record
}

func readAllPairs(reader fastqio.PairReader) ([]inputPair, error) {
	var pairs []inputPair
	for i := 0; ; i++ {
		one, two, ok, err := reader.Read()
		if err != nil {
			return nil, err
		}
		if !ok {
			break
		}
		pairs = append(pairs, inputPair{ordinal: i, one: one, two: two})
	}
	return pairs, nil
}

// classifyOne implements phase 1 (classify and bucket) for a single pair. Failures
// are contained: they route to a side channel and never propagate, per
// the containment policy below.
func (p *Pipeline) classifyOne(ordinal int, pair inputPair, extractor *uid.Extractor, c *classified, metrics *Metrics) {
	defer func() {
		if r := recover(); r != nil {
			log.Error.Printf("pipeline: pair %d: recovered panic: %v", ordinal, r)
		}
	}()

	uidLen := p.opts.UIDLength
	if uidLen > len(pair.one.Bases) {
		metrics.bumpUnmapped()
		p.writeSideChannel(p.opts.UnmappedChannel, pair, "uid longer than read one")
		return
	}
	tail1 := pair.one.Bases[uidLen:]
	tail2 := pair.two.Bases

	if len(tail1) == 0 || len(tail2) == 0 {
		metrics.bumpUnmapped()
		p.writeSideChannel(p.opts.UnmappedChannel, pair, "empty tail after trim")
		return
	}

	q1, err := seq.NewIupac(tail1)
	if err != nil {
		metrics.bumpUnmapped()
		p.writeSideChannel(p.opts.UnmappedChannel, pair, "invalid base in tail one")
		return
	}
	q2, err := seq.NewIupac(tail2)
	if err != nil {
		metrics.bumpUnmapped()
		p.writeSideChannel(p.opts.UnmappedChannel, pair, "invalid base in tail two")
		return
	}

	cands1 := p.index.BestCandidates(q1, p.opts.MinKmerHits)
	cands2 := p.index.BestCandidates(q2, p.opts.MinKmerHits)

	matches := matchCandidates(cands1, cands2)
	if len(matches) == 0 {
		metrics.bumpUnmapped()
		p.writeSideChannel(p.opts.UnmappedChannel, pair, "no probe matched")
		return
	}
	if len(matches) > 1 {
		metrics.bumpAmbiguous()
		p.writeSideChannel(p.opts.AmbiguousChannel, pair, "multiple probes matched")
		return
	}
	ref := matches[0]

	uidValue := pair.one.Bases[:uidLen]
	if p.opts.VariableLengthUIDs {
		primer := ref.Probe.ExtensionPrimerSequence
		res, err := extractor.Extract(pair.one.Bases, pair.one.Quality, primer)
		if err != nil {
			metrics.bumpUnableToAlign()
			p.writeSideChannel(p.opts.UnableToAlignChannel, pair, "primer misaligned")
			return
		}
		uidValue = res.UID
		p.writeSideChannel(p.opts.PrimerAlignmentChannel, pair, fmt.Sprintf(
			"uid=%s substitutions=%d insertions=%d deletions=%d", res.UID, res.Substitutions, res.Insertions, res.Deletions))
	}

	totalQuality := fastqio.QualitySum(pair.one.Quality) + fastqio.QualitySum(pair.two.Quality)
	c.bucketFor(ref).insert(uidValue, qualityIndexedPair{totalQuality: totalQuality, pairOrdinal: ordinal})
	p.writeSideChannel(p.opts.QualityChannel, pair, "")
}

func matchCandidates(cands1, cands2 []probeindex.Candidate) []*probe.Reference {
	byProbe2 := make(map[*probe.Probe]bool)
	for _, c := range cands2 {
		byProbe2[c.Ref.Probe] = true
	}
	var out []*probe.Reference
	seen := make(map[*probe.Probe]bool)
	for _, c := range cands1 {
		if !byProbe2[c.Ref.Probe] || seen[c.Ref.Probe] {
			continue
		}
		// Opposite-strand consistency: mate one and mate two must have hit
		// the same probe from opposite strands.
		for _, c2 := range cands2 {
			if c2.Ref.Probe == c.Ref.Probe && c2.Ref.MatchedOnMinus != c.Ref.MatchedOnMinus {
				out = append(out, c.Ref)
				seen[c.Ref.Probe] = true
				break
			}
		}
	}
	return out
}

// extendOne implements phase 2: extend the
// representative pair to the probe primers and build an OutputPair.
func (p *Pipeline) extendOne(ordinal int, pair inputPair, ref *probe.Reference) (assemble.OutputPair, bool) {
	defer func() {
		if r := recover(); r != nil {
			log.Error.Printf("pipeline: extend pair %d: recovered panic: %v", ordinal, r)
		}
	}()

	out := assemble.OutputPair{
		PairOrdinal:    ordinal,
		Name:           pair.one.Name,
		ProbeID:        ref.Probe.ID,
		MappingQuality: p.opts.MappingQualityDefault,
	}

	aligner := align.NewGlobalAligner(p.scorer)
	out.One = p.extendMate(pair.one, ref, aligner)
	out.Two = p.extendMate(pair.two, ref, aligner)
	return out, true
}

func (p *Pipeline) extendMate(rec fastqio.Record, ref *probe.Reference, aligner *align.GlobalAligner) assemble.Mate {
	m := assemble.Mate{Bases: rec.Bases, Quality: rec.Quality, MappedLength: len(rec.Bases), RefIndex: -1}

	if p.store == nil {
		m.Unmapped = true
		m.ExtensionError = "no reference available"
		return m
	}
	length, err := p.store.Len(ref.Probe.SequenceName)
	if err != nil {
		m.Unmapped = true
		m.ExtensionError = err.Error()
		return m
	}
	// The reference spans both primers: from the leftmost primer start to the
	// rightmost primer stop.
	start := min(ref.Probe.ExtensionPrimerStart, ref.Probe.LigationPrimerStart)
	end := max(ref.Probe.ExtensionPrimerStop, ref.Probe.LigationPrimerStop)
	if end > length {
		end = length
	}
	reference, err := p.store.Fetch(ref.Probe.SequenceName, start, end)
	if err != nil {
		m.Unmapped = true
		m.ExtensionError = err.Error()
		return m
	}

	query, err := seq.NewIupac(rec.Bases)
	if err != nil {
		m.Unmapped = true
		m.ExtensionError = err.Error()
		return m
	}
	aln := aligner.Align(reference, query)
	m.Cigar = aln.Cigar
	m.Position = int(start-1) + aln.IndexOfFirstMatchInReference
	m.NegativeStrand = ref.MatchedOnMinus
	if idx, ok := p.refIndex[ref.Probe.SequenceName]; ok {
		m.RefIndex = idx
	}
	return m
}

func selectRepresentative(candidates []qualityIndexedPair) qualityIndexedPair {
	best := candidates[0]
	for _, c := range candidates[1:] {
		if c.totalQuality > best.totalQuality ||
			(c.totalQuality == best.totalQuality && c.pairOrdinal < best.pairOrdinal) {
			best = c
		}
	}
	return best
}

func sortedReferences(c *classified) []*probe.Reference {
	refs := make([]*probe.Reference, 0, len(c.byProbe))
	for ref := range c.byProbe {
		refs = append(refs, ref)
	}
	sort.Slice(refs, func(i, j int) bool {
		if refs[i].Probe.SequenceName != refs[j].Probe.SequenceName {
			return refs[i].Probe.SequenceName < refs[j].Probe.SequenceName
		}
		return refs[i].Probe.ID < refs[j].Probe.ID
	})
	return refs
}

func (p *Pipeline) writeSideChannel(ch SideChannel, pair inputPair, reason string) {
	if ch == nil {
		return
	}
	if err := ch.Write(pair.one.Name, reason); err != nil {
		log.Error.Printf("pipeline: side channel write failed: %v", err)
	}
}

func (m *Metrics) bumpUnmapped() {
	m.mu.Lock()
	m.Unmapped++
	m.mu.Unlock()
}

func (m *Metrics) bumpAmbiguous() {
	m.mu.Lock()
	m.Ambiguous++
	m.mu.Unlock()
}

func (m *Metrics) bumpUnableToAlign() {
	m.mu.Lock()
	m.UnableToAlignPrimer++
	m.mu.Unlock()
}
