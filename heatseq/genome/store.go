// Package genome implements GenomeStore, a random-access reader over the
// compact 2-bit-per-base genome file format: a
// body of contiguous 2-bit-packed container regions, followed by a
// tab-separated UTF-8 container table, followed by an 8-byte big-endian
// footer giving the byte offset of the table.
//
// Random access is implemented with a single seek+read handle guarded by a
// mutex, following the file.Open / Reader(ctx) idiom used throughout
// grailbio/bio (encoding/converter, encoding/bamprovider): the underlying
// reader is an io.ReadSeeker, and concurrent fetches serialize on it rather
// than each opening an independent os.File.
package genome

import (
	"bufio"
	"encoding/binary"
	"io"
	"strconv"
	"strings"
	"sync"

	"github.com/grailbio/base/file"
	"github.com/grailbio/base/vcontext"
	"github.com/grailbio/targetseq/heatseq"
	"github.com/grailbio/targetseq/heatseq/seq"
)

const footerSize = 8

// container describes one named region of the compact genome file.
type container struct {
	name           string
	startByte      int64
	stopByte       int64 // exclusive
	lengthInBases  int64
	packedSequence *seq.PackedSequence // non-nil only for the cached largest container
}

// Store is a random-access reader over a compact genome file. Its zero
// value is not usable; construct one with Open.
type Store struct {
	mu         sync.Mutex
	rs         readSeekCloser
	containers []container
	byName     map[string]int // name -> index into containers
}

type readSeekCloser interface {
	io.ReadSeeker
	io.Closer
}

// Open opens path (local or remote, via grailbio/base/file) as a compact
// genome file, reads its footer and container table, and returns a Store
// ready for Fetch. The largest container's full sequence is eagerly
// decoded and cached.
func Open(path string) (*Store, error) {
	ctx := vcontext.Background()
	f, err := file.Open(ctx, path)
	if err != nil {
		return nil, heatseq.E(heatseq.IoFailure, "genome.Open", err)
	}
	rs, ok := f.Reader(ctx).(readSeekCloser)
	if !ok {
		return nil, heatseq.E(heatseq.IoFailure, "genome.Open",
			heatseq.Wrap(io.ErrUnexpectedEOF, "genome.Open", "reader for", path, "does not support seeking"))
	}
	s, err := newStore(rs)
	if err != nil {
		rs.Close()
		return nil, err
	}
	return s, nil
}

// NewFromReadSeeker builds a Store directly from an already-open handle,
// bypassing grailbio/base/file. Used by tests and by callers that already
// hold a local *os.File.
func NewFromReadSeeker(rs io.ReadSeeker, closer io.Closer) (*Store, error) {
	return newStore(readSeekCloserAdapter{rs, closer})
}

type readSeekCloserAdapter struct {
	io.ReadSeeker
	io.Closer
}

func newStore(rs readSeekCloser) (*Store, error) {
	size, err := rs.Seek(0, io.SeekEnd)
	if err != nil {
		return nil, heatseq.E(heatseq.IoFailure, "genome.Open", err)
	}
	if size < footerSize {
		return nil, heatseq.E(heatseq.IoFailure, "genome.Open", heatseq.Wrap(io.ErrUnexpectedEOF, "genome.Open", "file too short for footer"))
	}
	if _, err := rs.Seek(size-footerSize, io.SeekStart); err != nil {
		return nil, heatseq.E(heatseq.IoFailure, "genome.Open", err)
	}
	var footer [footerSize]byte
	if _, err := io.ReadFull(rs, footer[:]); err != nil {
		return nil, heatseq.E(heatseq.IoFailure, "genome.Open", err)
	}
	tableOffset := int64(binary.BigEndian.Uint64(footer[:]))
	if tableOffset < 0 || tableOffset > size-footerSize {
		return nil, heatseq.E(heatseq.MalformedHeader, "genome.Open", heatseq.Wrap(io.ErrUnexpectedEOF, "genome.Open", "corrupt footer"))
	}
	if _, err := rs.Seek(tableOffset, io.SeekStart); err != nil {
		return nil, heatseq.E(heatseq.IoFailure, "genome.Open", err)
	}
	tableBytes := make([]byte, size-footerSize-tableOffset)
	if _, err := io.ReadFull(rs, tableBytes); err != nil {
		return nil, heatseq.E(heatseq.IoFailure, "genome.Open", err)
	}

	s := &Store{rs: rs, byName: map[string]int{}}
	scanner := bufio.NewScanner(strings.NewReader(string(tableBytes)))
	for scanner.Scan() {
		line := scanner.Text()
		if line == "" {
			continue
		}
		fields := strings.Split(line, "\t")
		if len(fields) != 3 {
			return nil, heatseq.E(heatseq.MalformedHeader, "genome.Open", heatseq.Wrap(io.ErrUnexpectedEOF, "genome.Open", "malformed table line", line))
		}
		start, err1 := strconv.ParseInt(fields[1], 10, 64)
		stop, err2 := strconv.ParseInt(fields[2], 10, 64)
		if err1 != nil || err2 != nil {
			return nil, heatseq.E(heatseq.MalformedHeader, "genome.Open", heatseq.Wrap(io.ErrUnexpectedEOF, "genome.Open", "malformed table line", line))
		}
		s.byName[fields[0]] = len(s.containers)
		s.containers = append(s.containers, container{
			name:          fields[0],
			startByte:     start,
			stopByte:      stop,
			lengthInBases: (stop - start) * 4,
		})
	}
	if err := scanner.Err(); err != nil {
		return nil, heatseq.E(heatseq.IoFailure, "genome.Open", err)
	}

	if idx, ok := largestContainer(s.containers); ok {
		packed, err := s.readRange(&s.containers[idx], 0, s.containers[idx].lengthInBases)
		if err != nil {
			return nil, err
		}
		s.containers[idx].packedSequence = packed
	}
	return s, nil
}

func largestContainer(cs []container) (int, bool) {
	best := -1
	for i, c := range cs {
		if best < 0 || c.lengthInBases > cs[best].lengthInBases {
			best = i
		}
	}
	return best, best >= 0
}

// Containers returns the container names in the order they appear in the
// table (== insertion order).
func (s *Store) Containers() []string {
	names := make([]string, len(s.containers))
	for i, c := range s.containers {
		names[i] = c.name
	}
	return names
}

// Len returns the length, in bases, of the named container.
func (s *Store) Len(name string) (int64, error) {
	idx, ok := s.byName[name]
	if !ok {
		return 0, heatseq.E(heatseq.UnknownContainer, "genome.Len", heatseq.Wrap(io.EOF, "genome.Len", name))
	}
	return s.containers[idx].lengthInBases, nil
}

// Fetch returns the 1-based inclusive range [start, end] of container name.
// If start > end, they are swapped, so Fetch(name, end, start) yields the
// same result. It fails with UnknownContainer if name is absent from the
// container table, and with OutOfRange if end exceeds the container's
// length.
func (s *Store) Fetch(name string, start, end int64) (*seq.PackedSequence, error) {
	idx, ok := s.byName[name]
	if !ok {
		return nil, heatseq.E(heatseq.UnknownContainer, "genome.Fetch", heatseq.Wrap(io.EOF, "genome.Fetch", name))
	}
	if start > end {
		start, end = end, start
	}
	c := &s.containers[idx]
	if end > c.lengthInBases || start < 1 {
		return nil, heatseq.E(heatseq.OutOfRange, "genome.Fetch",
			heatseq.Wrap(io.EOF, "genome.Fetch", name, "requested", start, end, "container length", c.lengthInBases))
	}
	// Convert to 0-based half-open [lo, hi).
	lo, hi := start-1, end
	if c.packedSequence != nil {
		return c.packedSequence.Subsequence(int(lo), int(hi)), nil
	}
	return s.readRange(c, lo, hi)
}

// readRange decodes the 0-based half-open base range [lo, hi) of container
// c, reading the minimal byte span that covers it.
func (s *Store) readRange(c *container, lo, hi int64) (*seq.PackedSequence, error) {
	if hi <= lo {
		return seq.FromCodes(nil), nil
	}
	loByte := c.startByte + lo/4
	hiByte := c.startByte + (hi+3)/4 // exclusive
	if hiByte > c.stopByte {
		hiByte = c.stopByte
	}
	buf := make([]byte, hiByte-loByte)

	s.mu.Lock()
	_, err := s.rs.Seek(loByte, io.SeekStart)
	if err == nil {
		_, err = io.ReadFull(s.rs, buf)
	}
	s.mu.Unlock()
	if err != nil {
		return nil, heatseq.E(heatseq.IoFailure, "genome.Fetch", err)
	}

	codes := make([]seq.Code, hi-lo)
	baseOffsetInBuf := lo - (loByte-c.startByte)*4
	for i := range codes {
		j := baseOffsetInBuf + int64(i)
		byteIdx := j / 4
		shift := uint(6 - 2*(j%4))
		codes[i] = seq.Code((buf[byteIdx] >> shift) & 3)
	}
	return seq.FromCodes(codes), nil
}

// Close releases the underlying file handle.
func (s *Store) Close() error {
	return s.rs.Close()
}
