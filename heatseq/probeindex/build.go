package probeindex

import (
	"github.com/grailbio/targetseq/heatseq/genome"
	"github.com/grailbio/targetseq/heatseq/probe"
	"github.com/grailbio/targetseq/heatseq/seq"
)

// BuildFromGenome constructs an Index over probes' capture-target regions,
// fetched from store. This is the production entry point; Build itself
// stays storage-agnostic for testability.
func BuildFromGenome(probes []*probe.Probe, k int, store *genome.Store) (*Index, error) {
	return Build(probes, k, func(p *probe.Probe) (*seq.PackedSequence, error) {
		return store.Fetch(p.SequenceName, p.CaptureTargetStart, p.CaptureTargetStop)
	})
}
