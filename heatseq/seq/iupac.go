package seq

import "github.com/grailbio/targetseq/heatseq"

// IupacSequence is a query sequence that may contain IUPAC ambiguity codes.
// Ambiguity codes other than A/C/G/T are collapsed to CodeN on
// construction; IterKmers skips any k-mer window that contains an N, since
// an N cannot be packed into a 2-bit code.
//
// Unlike PackedSequence, IupacSequence stores one byte per base rather than
// a bit-packed buffer: query sequences are short-lived (one read) and the
// extra convenience of direct indexing outweighs the memory cost.
type IupacSequence struct {
	codes []Code
}

// NewIupac builds an IupacSequence from text. It fails with an InvalidBase
// error if text contains a character outside the IUPAC nucleotide alphabet.
func NewIupac(text string) (*IupacSequence, error) {
	codes := make([]Code, len(text))
	for i := 0; i < len(text); i++ {
		b := text[i]
		if !iupacValid[b] {
			return nil, heatseq.E(heatseq.InvalidBase, "seq.NewIupac", invalidBaseError(b, i))
		}
		codes[i] = iupacToCode[b]
	}
	return &IupacSequence{codes: codes}, nil
}

// Len returns the number of bases.
func (s *IupacSequence) Len() int { return len(s.codes) }

// BaseAt returns the code at position i: CodeA/C/G/T, or CodeN for any
// ambiguity code.
func (s *IupacSequence) BaseAt(i int) Code { return s.codes[i] }

// Subsequence returns the half-open range [i, j) as a new IupacSequence.
func (s *IupacSequence) Subsequence(i, j int) *IupacSequence {
	out := make([]Code, j-i)
	copy(out, s.codes[i:j])
	return &IupacSequence{codes: out}
}

// String renders s using the canonical base letters, with 'N' for any
// ambiguity code.
func (s *IupacSequence) String() string {
	buf := make([]byte, len(s.codes))
	for i, c := range s.codes {
		if c == CodeN {
			buf[i] = 'N'
		} else {
			buf[i] = codeToBase[c]
		}
	}
	return string(buf)
}

// IterKmers returns the (offset, code) pairs of s's overlapping k-mers, in
// left-to-right order, skipping any window that contains an N. Unlike
// PackedSequence.IterKmers, the result may therefore have gaps in Offset.
func (s *IupacSequence) IterKmers(k int) []KmerHit {
	n := len(s.codes) - k + 1
	if n <= 0 {
		return nil
	}
	hits := make([]KmerHit, 0, n)
	mask := Kmer(1)<<(uint(2*k)) - 1
	var code Kmer
	validRun := 0
	for i := 0; i < len(s.codes); i++ {
		c := s.codes[i]
		if c == CodeN {
			validRun = 0
			code = 0
			continue
		}
		code = ((code << 2) | Kmer(c)) & mask
		validRun++
		if validRun >= k {
			hits = append(hits, KmerHit{Offset: i - k + 1, Code: code})
		}
	}
	return hits
}
