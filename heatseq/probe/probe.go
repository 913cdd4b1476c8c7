// Package probe defines the Probe value type shared by heatseq/probeindex,
// heatseq/uid and heatseq/pipeline: a single targeted-capture probe, as
// parsed from a probe manifest. ParseManifest reads a minimal
// tab-separated manifest format.
package probe

import "github.com/grailbio/targetseq/heatseq/seq"

// Strand is the genomic strand a probe's capture target lies on.
type Strand uint8

const (
	// Plus is the forward (Watson) strand.
	Plus Strand = iota
	// Minus is the reverse (Crick) strand.
	Minus
)

func (s Strand) String() string {
	if s == Minus {
		return "-"
	}
	return "+"
}

// Probe is one targeted-capture probe: a pair of primers (extension and
// ligation) flanking a capture target region on a named reference
// container.
type Probe struct {
	ID string

	SequenceName string
	Strand       Strand

	// ExtensionPrimerStart/Stop and LigationPrimerStart/Stop are 1-based
	// inclusive genomic coordinates on SequenceName, in the orientation the
	// manifest records them (i.e. not strand-adjusted).
	ExtensionPrimerStart int64
	ExtensionPrimerStop  int64
	LigationPrimerStart  int64
	LigationPrimerStop   int64

	// CaptureTargetStart/Stop is the 1-based inclusive genomic range between
	// the two primers, the region a correctly mapped pair's inserts should
	// fall within.
	CaptureTargetStart int64
	CaptureTargetStop  int64

	// ExtensionPrimerSequence and LigationPrimerSequence are the primer
	// sequences in 5'->3' order as synthesized (i.e. already
	// reverse-complemented relative to the genome, if required by Strand).
	ExtensionPrimerSequence *seq.IupacSequence
	LigationPrimerSequence  *seq.IupacSequence
}

// CaptureTargetLength returns the length, in bases, of the probe's capture
// target region.
func (p Probe) CaptureTargetLength() int64 {
	return p.CaptureTargetStop - p.CaptureTargetStart + 1
}

// Reference is a candidate mapping of a read pair onto a Probe: the probe
// itself, plus which strand the pair matched against (a probe's capture
// target k-mers are indexed on both strands, since a pair's read1 may
// sequence from either end of the insert).
type Reference struct {
	Probe          *Probe
	MatchedOnMinus bool
}

// SequenceNames returns the distinct SequenceName values across probes, in
// first-seen order. This is the canonical BAM reference ordering: both the
// output header and the mapper's RefIndex assignment are built from it, so
// that an OutputPair's RefIndex always indexes the same header that was
// written.
func SequenceNames(probes []*Probe) []string {
	seen := make(map[string]bool, len(probes))
	var names []string
	for _, p := range probes {
		if seen[p.SequenceName] {
			continue
		}
		seen[p.SequenceName] = true
		names = append(names, p.SequenceName)
	}
	return names
}
