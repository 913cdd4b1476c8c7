package align

import "github.com/grailbio/targetseq/heatseq/seq"

// Bases is the minimal sequence contract GlobalAligner needs. Both
// *seq.PackedSequence and *seq.IupacSequence satisfy it.
type Bases interface {
	Len() int
	BaseAt(i int) seq.Code
}

// Alignment is the result of a GlobalAligner.Align call.
type Alignment struct {
	Score int
	Cigar Cigar
	// IndexOfFirstMatchInReference is the 0-based reference offset of the
	// first aligned (non-leading-deletion) column: the number of
	// reference bases consumed by leading OpDeletion runs.
	IndexOfFirstMatchInReference int
	// IndexOfFirstMatchInQuery is the 0-based query offset of the first
	// aligned column: the number of query bases consumed by leading
	// OpInsertion runs.
	IndexOfFirstMatchInQuery int
}

// state names the three Gotoh score matrices.
type state uint8

const (
	stateMatch state = iota // diagonal: consumes one reference base and one query base
	stateIns                // horizontal: consumes one query base only (OpInsertion)
	stateDel                // vertical: consumes one reference base only (OpDeletion)
	numStates
)

const negInf = -1 << 30

// GlobalAligner computes Needleman-Wunsch global alignments with affine gap
// penalties using the given Scorer.
type GlobalAligner struct {
	scorer Scorer
}

// NewGlobalAligner constructs a GlobalAligner using scorer.
func NewGlobalAligner(scorer Scorer) *GlobalAligner {
	return &GlobalAligner{scorer: scorer}
}

// Align computes the optimal global alignment of query against reference.
// Traceback ties are broken in favor of stateMatch (diagonal) over stateIns
// (insertion) over stateDel (deletion).
func (g *GlobalAligner) Align(reference, query Bases) *Alignment {
	m, n := reference.Len(), query.Len()

	// score[s][i][j] holds the best score of an alignment of
	// reference[:i] against query[:j] ending in state s at cell (i,j).
	score := newCube(m+1, n+1)
	// from[s][i][j] records which state the optimal path into (s,i,j) came
	// from, for traceback.
	from := newTraceCube(m+1, n+1)

	matchScore := g.scorer.MatchScore()
	mismatchScore := g.scorer.MismatchScore()
	gapOpen := g.scorer.GapOpenScore()
	gapExtend := g.scorer.GapExtendScore()

	score[stateMatch][0][0] = 0
	score[stateIns][0][0] = negInf
	score[stateDel][0][0] = negInf

	for j := 1; j <= n; j++ {
		score[stateMatch][0][j] = negInf
		score[stateDel][0][j] = negInf
		open := score[stateMatch][0][j-1] + gapOpen
		extend := score[stateIns][0][j-1] + gapExtend
		if open >= extend {
			score[stateIns][0][j] = open
			from[stateIns][0][j] = stateMatch
		} else {
			score[stateIns][0][j] = extend
			from[stateIns][0][j] = stateIns
		}
	}
	for i := 1; i <= m; i++ {
		score[stateMatch][i][0] = negInf
		score[stateIns][i][0] = negInf
		open := score[stateMatch][i-1][0] + gapOpen
		extend := score[stateDel][i-1][0] + gapExtend
		if open >= extend {
			score[stateDel][i][0] = open
			from[stateDel][i][0] = stateMatch
		} else {
			score[stateDel][i][0] = extend
			from[stateDel][i][0] = stateDel
		}
	}

	for i := 1; i <= m; i++ {
		refBase := reference.BaseAt(i - 1)
		for j := 1; j <= n; j++ {
			queryBase := query.BaseAt(j - 1)
			sub := mismatchScore
			if refBase == queryBase && refBase != seq.CodeN {
				sub = matchScore
			}

			best, bestFrom := score[stateMatch][i-1][j-1], stateMatch
			if s := score[stateIns][i-1][j-1]; s > best {
				best, bestFrom = s, stateIns
			}
			if s := score[stateDel][i-1][j-1]; s > best {
				best, bestFrom = s, stateDel
			}
			score[stateMatch][i][j] = best + sub
			from[stateMatch][i][j] = bestFrom

			// stateIns: horizontal move, consumes query[j-1] only.
			openIns := score[stateMatch][i][j-1] + gapOpen
			extendIns := score[stateIns][i][j-1] + gapExtend
			if openIns >= extendIns {
				score[stateIns][i][j] = openIns
				from[stateIns][i][j] = stateMatch
			} else {
				score[stateIns][i][j] = extendIns
				from[stateIns][i][j] = stateIns
			}

			// stateDel: vertical move, consumes reference[i-1] only.
			openDel := score[stateMatch][i-1][j] + gapOpen
			extendDel := score[stateDel][i-1][j] + gapExtend
			if openDel >= extendDel {
				score[stateDel][i][j] = openDel
				from[stateDel][i][j] = stateMatch
			} else {
				score[stateDel][i][j] = extendDel
				from[stateDel][i][j] = stateDel
			}
		}
	}

	// Choose the best terminal state, preferring stateMatch over stateIns
	// over stateDel on ties.
	finalState := stateMatch
	finalScore := score[stateMatch][m][n]
	if s := score[stateIns][m][n]; s > finalScore {
		finalScore, finalState = s, stateIns
	}
	if s := score[stateDel][m][n]; s > finalScore {
		finalScore, finalState = s, stateDel
	}

	cigar := traceback(reference, query, score, from, finalState)
	return newAlignment(finalScore, cigar)
}

func newAlignment(score int, cigar Cigar) *Alignment {
	a := &Alignment{Score: score, Cigar: cigar}
	for _, e := range cigar {
		if e.Op == OpMatch || e.Op == OpMismatch {
			break
		}
		if e.Op == OpDeletion {
			a.IndexOfFirstMatchInReference += e.Length
		}
		if e.Op == OpInsertion {
			a.IndexOfFirstMatchInQuery += e.Length
		}
	}
	return a
}

func traceback(reference, query Bases, score [numStates][][]int, from [numStates][][]state, finalState state) Cigar {
	m, n := reference.Len(), query.Len()
	i, j, s := m, n, finalState
	var ops []Element
	for i > 0 || j > 0 {
		switch s {
		case stateMatch:
			refBase := reference.BaseAt(i - 1)
			queryBase := query.BaseAt(j - 1)
			op := OpMismatch
			if refBase == queryBase && refBase != seq.CodeN {
				op = OpMatch
			}
			ops = append(ops, Element{Op: op, Length: 1})
			s = from[stateMatch][i][j]
			i--
			j--
		case stateIns:
			ops = append(ops, Element{Op: OpInsertion, Length: 1})
			s = from[stateIns][i][j]
			j--
		case stateDel:
			ops = append(ops, Element{Op: OpDeletion, Length: 1})
			s = from[stateDel][i][j]
			i--
		}
	}
	// ops was built end-to-start; reverse and run-length-encode.
	reverseElements(ops)
	return collapse(ops)
}

func reverseElements(e []Element) {
	for i, j := 0, len(e)-1; i < j; i, j = i+1, j-1 {
		e[i], e[j] = e[j], e[i]
	}
}

func collapse(ops []Element) Cigar {
	if len(ops) == 0 {
		return nil
	}
	out := make(Cigar, 0, len(ops))
	cur := ops[0]
	for _, e := range ops[1:] {
		if e.Op == cur.Op {
			cur.Length += e.Length
			continue
		}
		out = append(out, cur)
		cur = e
	}
	out = append(out, cur)
	return out
}

func newCube(rows, cols int) [numStates][][]int {
	var c [numStates][][]int
	for s := state(0); s < numStates; s++ {
		c[s] = make([][]int, rows)
		for i := range c[s] {
			c[s][i] = make([]int, cols)
		}
	}
	return c
}

func newTraceCube(rows, cols int) [numStates][][]state {
	var c [numStates][][]state
	for s := state(0); s < numStates; s++ {
		c[s] = make([][]state, rows)
		for i := range c[s] {
			c[s][i] = make([]state, cols)
		}
	}
	return c
}
