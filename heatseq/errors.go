// Package heatseq is the root of the HeatSeq targeted-resequencing mapper,
// deduplicator and primer extender. It maps paired short reads to the probe
// that captured them, collapses PCR duplicates sharing a probe+UID, extends
// the surviving representative to the probe primers, and assembles a
// coordinate-sorted aligned output stream. See the subpackages:
//
//	seq         2-bit packed nucleotide sequences
//	genome      random-access compact genome reader
//	align       Needleman-Wunsch global alignment
//	probe       Probe value type and parser contract
//	probeindex  k-mer inverted index over probe capture targets
//	uid         UID extraction
//	pipeline    map/filter/dedup/extend orchestration
//	assemble    sorted output assembly
//	fastqio     external FASTQ reader contract
//	bamio       external BAM writer contract
package heatseq

import (
	"fmt"

	"github.com/grailbio/base/errors"
)

// Kind classifies the error conditions that cross a component boundary, per
// the error handling design. Per-pair errors of these kinds are contained by
// the pipeline workers; they are exposed here so side-channel writers and
// tests can distinguish them.
type Kind int

const (
	// Other is the zero value, used when no more specific kind applies.
	Other Kind = iota
	// InvalidBase means a sequence contained a character outside the
	// expected alphabet.
	InvalidBase
	// UnknownContainer means a GenomeStore fetch named a container absent
	// from the container table.
	UnknownContainer
	// OutOfRange means a GenomeStore fetch requested coordinates beyond a
	// container's length.
	OutOfRange
	// PrimerMisaligned means variable-length UID extraction could not
	// locate the primer within the edit-distance cutoff.
	PrimerMisaligned
	// AmbiguousMapping means a read pair matched more than one probe.
	AmbiguousMapping
	// NoMapping means a read pair matched no probe.
	NoMapping
	// IoFailure means a read, write, or open of an external resource
	// failed.
	IoFailure
	// MalformedHeader means a read or probe header could not be parsed.
	MalformedHeader
)

func (k Kind) String() string {
	switch k {
	case InvalidBase:
		return "invalid_base"
	case UnknownContainer:
		return "unknown_container"
	case OutOfRange:
		return "out_of_range"
	case PrimerMisaligned:
		return "primer_misaligned"
	case AmbiguousMapping:
		return "ambiguous_mapping"
	case NoMapping:
		return "no_mapping"
	case IoFailure:
		return "io_failure"
	case MalformedHeader:
		return "malformed_header"
	default:
		return "other"
	}
}

// Error is a kind-tagged error produced at a heatseq component boundary. It
// wraps an underlying cause, which is usually constructed with
// github.com/grailbio/base/errors so that op chains from lower layers
// (GenomeStore file reads, probe file parsing, etc.) survive.
type Error struct {
	Kind Kind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %s", e.Op, e.Kind)
	}
	return fmt.Sprintf("%s: %s: %v", e.Op, e.Kind, e.Err)
}

// Unwrap exposes the underlying cause to errors.Is / errors.As.
func (e *Error) Unwrap() error { return e.Err }

// E constructs a *Error of the given kind for operation op, wrapping err. err
// may be nil.
func E(kind Kind, op string, err error) error {
	return &Error{Kind: kind, Op: op, Err: err}
}

// Wrap attaches op to err using grailbio's errors.E, for causes that don't
// need a Kind classification (e.g. a plain I/O error already carrying
// sufficient context).
func Wrap(err error, op string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	wrapArgs := make([]interface{}, 0, len(args)+2)
	wrapArgs = append(wrapArgs, op, err)
	for _, a := range args {
		// errors.E accepts strings but not numbers; render other values as text.
		if s, ok := a.(string); ok {
			wrapArgs = append(wrapArgs, s)
		} else {
			wrapArgs = append(wrapArgs, fmt.Sprint(a))
		}
	}
	return errors.E(wrapArgs...)
}

// Is reports whether err is a *Error (or wraps one) of the given kind.
func Is(kind Kind, err error) bool {
	for err != nil {
		if e, ok := err.(*Error); ok {
			return e.Kind == kind
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			return false
		}
		err = u.Unwrap()
	}
	return false
}
