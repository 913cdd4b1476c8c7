// Package seq implements PackedSequence, an immutable 2-bit-per-base
// nucleotide sequence, plus an IUPAC-extended variant used for probe and
// read query sequences that may contain ambiguity codes.
//
// Bases pack MSB-first within a byte: base 0 occupies bits 7-6 of byte 0,
// base 1 bits 5-4, base 2 bits 3-2, base 3 bits 1-0, base 4 bits 7-6 of byte
// 1, and so on. This matches the packing used by the compact genome file
// (heatseq/genome); a GenomeStore fetch decodes the codes from the bytes it
// reads and rebuilds a PackedSequence with FromCodes.
package seq

import (
	"strconv"
	"strings"

	"github.com/grailbio/targetseq/heatseq"
)

// Code is a 2-bit nucleotide code, one of CodeA, CodeC, CodeG, CodeT.
type Code uint8

// The four 2-bit nucleotide codes.
const (
	CodeA Code = 0
	CodeC Code = 1
	CodeG Code = 2
	CodeT Code = 3
)

// CodeN marks an ambiguous base in an IupacSequence. It never appears in a
// PackedSequence, which only ever stores 2-bit codes.
const CodeN Code = 4

var codeToBase = [4]byte{'A', 'C', 'G', 'T'}

// complementCode maps a 2-bit code to its Watson-Crick complement:
// A<->T, C<->G.
var complementCode = [4]Code{CodeT, CodeG, CodeC, CodeA}

var baseToCode [256]Code

func init() {
	for i := range baseToCode {
		baseToCode[i] = 0xff // sentinel: invalid
	}
	baseToCode['A'], baseToCode['a'] = CodeA, CodeA
	baseToCode['C'], baseToCode['c'] = CodeC, CodeC
	baseToCode['G'], baseToCode['g'] = CodeG, CodeG
	baseToCode['T'], baseToCode['t'] = CodeT, CodeT
}

// iupacToCode maps the full IUPAC alphabet to a 2-bit code or CodeN for
// anything ambiguous. Characters outside the IUPAC alphabet, whitespace
// included, are rejected by NewIupac.
var iupacToCode [256]Code

var iupacValid [256]bool

func init() {
	for i := range iupacToCode {
		iupacToCode[i] = CodeN
	}
	iupacToCode['A'], iupacToCode['a'] = CodeA, CodeA
	iupacToCode['C'], iupacToCode['c'] = CodeC, CodeC
	iupacToCode['G'], iupacToCode['g'] = CodeG, CodeG
	iupacToCode['T'], iupacToCode['t'] = CodeT, CodeT
	for _, b := range []byte("ACGTNRYSWKMBDHVUacgtnryswkmbdhvu") {
		iupacValid[b] = true
	}
}

// PackedSequence is an immutable, 2-bit-per-base nucleotide sequence.
type PackedSequence struct {
	length int
	bits   []byte
}

// New packs text into a PackedSequence. It fails with an InvalidBase error
// if text contains anything outside {A,C,G,T} (case-insensitive).
func New(text string) (*PackedSequence, error) {
	p := &PackedSequence{length: len(text), bits: make([]byte, byteLen(len(text)))}
	for i := 0; i < len(text); i++ {
		code := baseToCode[text[i]]
		if code > 3 {
			return nil, heatseq.E(heatseq.InvalidBase, "seq.New",
				invalidBaseError(text[i], i))
		}
		p.setCode(i, code)
	}
	return p, nil
}

// byteLen returns ceil(2*n/8), the number of bytes needed to hold n 2-bit
// codes.
func byteLen(n int) int {
	return (2*n + 7) / 8
}

func (p *PackedSequence) setCode(i int, code Code) {
	byteIdx := i / 4
	shift := uint(6 - 2*(i%4))
	p.bits[byteIdx] |= byte(code) << shift
}

// Len returns the number of bases in p.
func (p *PackedSequence) Len() int { return p.length }

// BaseAt returns the 2-bit code at position i.
func (p *PackedSequence) BaseAt(i int) Code {
	if i < 0 || i >= p.length {
		panic("seq: BaseAt index out of range")
	}
	byteIdx := i / 4
	shift := uint(6 - 2*(i%4))
	return Code((p.bits[byteIdx] >> shift) & 3)
}

// String renders p as an uppercase ACGT string.
func (p *PackedSequence) String() string {
	var b strings.Builder
	b.Grow(p.length)
	for i := 0; i < p.length; i++ {
		b.WriteByte(codeToBase[p.BaseAt(i)])
	}
	return b.String()
}

// FromCodes packs an explicit slice of 2-bit codes into a PackedSequence.
// It is used by callers (e.g. heatseq/genome) that decode codes from a raw
// byte buffer directly rather than through an ACGT string.
func FromCodes(codes []Code) *PackedSequence {
	p := &PackedSequence{length: len(codes), bits: make([]byte, byteLen(len(codes)))}
	for i, c := range codes {
		p.setCode(i, c)
	}
	return p
}

// Subsequence returns the half-open range [i, j) of p as a new
// PackedSequence. Requires 0 <= i <= j <= p.Len().
func (p *PackedSequence) Subsequence(i, j int) *PackedSequence {
	if i < 0 || j > p.length || i > j {
		panic("seq: Subsequence out of range")
	}
	out := &PackedSequence{length: j - i, bits: make([]byte, byteLen(j-i))}
	for k := i; k < j; k++ {
		out.setCode(k-i, p.BaseAt(k))
	}
	return out
}

// ReverseComplement returns a new PackedSequence that is the reverse
// complement of p. It is guaranteed that
// p.ReverseComplement().ReverseComplement() is bit-exactly equal to p.
func (p *PackedSequence) ReverseComplement() *PackedSequence {
	out := &PackedSequence{length: p.length, bits: make([]byte, byteLen(p.length))}
	n := p.length
	for i := 0; i < n; i++ {
		out.setCode(i, complementCode[p.BaseAt(n-1-i)])
	}
	return out
}

// Equal reports whether p and q encode the same sequence of bases.
func (p *PackedSequence) Equal(q *PackedSequence) bool {
	if p.length != q.length {
		return false
	}
	for i := 0; i < p.length; i++ {
		if p.BaseAt(i) != q.BaseAt(i) {
			return false
		}
	}
	return true
}

// Kmer is a 2-bit-packed k-mer code, valid for k <= 32.
type Kmer uint64

// KmerHit is one (offset, code) pair yielded by IterKmers.
type KmerHit struct {
	Offset int
	Code   Kmer
}

// IterKmers returns the len-k+1 (offset, code) pairs of p's overlapping
// k-mers, in strict left-to-right order. It returns nil if k > p.Len().
func (p *PackedSequence) IterKmers(k int) []KmerHit {
	n := p.length - k + 1
	if n <= 0 {
		return nil
	}
	hits := make([]KmerHit, 0, n)
	var code Kmer
	mask := Kmer(1)<<(uint(2*k)) - 1
	for i := 0; i < k-1 && i < p.length; i++ {
		code = (code << 2) | Kmer(p.BaseAt(i))
	}
	for offset := 0; offset < n; offset++ {
		code = ((code << 2) | Kmer(p.BaseAt(offset+k-1))) & mask
		hits = append(hits, KmerHit{Offset: offset, Code: code})
	}
	return hits
}

func invalidBaseError(b byte, pos int) error {
	return &invalidBaseErr{b: b, pos: pos}
}

type invalidBaseErr struct {
	b   byte
	pos int
}

func (e *invalidBaseErr) Error() string {
	return "invalid base '" + string(rune(e.b)) + "' at position " + strconv.Itoa(e.pos)
}
