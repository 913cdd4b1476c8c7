// Package fastqio defines the narrow read-stream contract
// heatseq/pipeline consumes (PairReader), plus ScannerReader, a default
// implementation built on encoding/fastq.PairScanner.
package fastqio

// Record is one FASTQ record: header line (without the leading '@'),
// base sequence, and Phred-encoded quality string, the same in-memory
// shape encoding/fastq.Scanner exposes via Seq/Qual.
type Record struct {
	Name    string
	Bases   string
	Quality string
}

// PairReader supplies paired mate records one pair at a time. Implementations
// read two independent underlying streams (R1, R2) in lockstep.
type PairReader interface {
	// Read returns the next (mate one, mate two) pair. ok is false, with a
	// nil error, when either stream is exhausted — the
	// pipeline halts ingestion at the shorter of the two streams.
	Read() (one, two Record, ok bool, err error)
	// Close releases the underlying streams.
	Close() error
}

// QualitySum returns the sum of Phred-scaled quality scores (raw byte value
// minus 33, the standard Sanger/Illumina-1.8+ offset) for q, used by
// heatseq/pipeline to rank representative pairs within a UID bucket.
func QualitySum(q string) int {
	total := 0
	for i := 0; i < len(q); i++ {
		total += int(q[i]) - 33
	}
	return total
}
