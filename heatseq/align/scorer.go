// Package align implements Needleman-Wunsch global pairwise alignment with
// affine gap penalties (the Gotoh recurrence), used both to extend a
// representative read pair out to its probe's primers and, by
// heatseq/uid, to locate a primer inside a read prefix for variable-length
// UID extraction.
package align

// Scorer supplies the match, mismatch, gap-open and gap-extension scores
// used by GlobalAligner. All scores are in arbitrary alignment-score units;
// higher is better, so mismatch and gap scores are normally negative.
type Scorer interface {
	MatchScore() int
	MismatchScore() int
	GapOpenScore() int
	GapExtendScore() int
}

// SimpleScorer is the straightforward Scorer implementation: every match
// scores the same regardless of base identity, and likewise for every
// mismatch.
type SimpleScorer struct {
	Match     int
	Mismatch  int
	GapOpen   int
	GapExtend int
}

func (s SimpleScorer) MatchScore() int     { return s.Match }
func (s SimpleScorer) MismatchScore() int  { return s.Mismatch }
func (s SimpleScorer) GapOpenScore() int   { return s.GapOpen }
func (s SimpleScorer) GapExtendScore() int { return s.GapExtend }

// DefaultScorer is a reasonable general-purpose scorer for short-read
// extension and primer alignment: opening a gap (-8) costs more than a
// mismatch (-4) and more than a match earns (+5), so an isolated
// substitution is preferred over an indel, while extending an open gap
// costs only -1, so one long gap is preferred over several short ones.
var DefaultScorer = SimpleScorer{
	Match:     5,
	Mismatch:  -4,
	GapOpen:   -8,
	GapExtend: -1,
}
