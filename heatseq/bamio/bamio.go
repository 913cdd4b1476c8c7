// Package bamio defines the narrow external BAM writer contract
// cmd/heatseq writes heatseq/pipeline's output through: given a header and a
// coordinate-sorted stream of assembled pairs, build and write the
// sam.Record pair, setting the standard SAM flags plus the heatseq custom
// attributes (EI, LI, UG, PI, ML, EE).
package bamio

import (
	"github.com/grailbio/hts/sam"

	"github.com/grailbio/targetseq/heatseq/align"
	"github.com/grailbio/targetseq/heatseq/assemble"
)

// toSamCigar renders a heatseq align.Cigar into the classic sam.Cigar
// vocabulary (match/mismatch collapsed to CigarMatch, per SAM convention).
func toSamCigar(c align.Cigar) sam.Cigar {
	if len(c) == 0 {
		return nil
	}
	out := make(sam.Cigar, len(c))
	for i, e := range c {
		var op sam.CigarOpType
		switch e.Op {
		case align.OpMatch, align.OpMismatch:
			op = sam.CigarMatch
		case align.OpInsertion:
			op = sam.CigarInsertion
		case align.OpDeletion:
			op = sam.CigarDeletion
		case align.OpClip:
			op = sam.CigarSoftClipped
		}
		out[i] = sam.NewCigarOp(op, e.Length)
	}
	return out
}

// Writer accepts sam.Header-configured output and a stream of assembled
// pairs to emit as paired BAM records. A default implementation backed by
// github.com/grailbio/hts/bam (BAMWriter) is wired in cmd/heatseq.
type Writer interface {
	WriteHeader(h *sam.Header) error
	WritePair(p assemble.OutputPair) error
	Close() error
}

// Tag names for the custom attributes carried on every output record.
var (
	tagExtensionUID = sam.NewTag("EI")
	tagLigationUID  = sam.NewTag("LI")
	tagUIDGroup     = sam.NewTag("UG")
	tagProbeID      = sam.NewTag("PI")
	tagMappedLength = sam.NewTag("ML")
	tagExtensionErr = sam.NewTag("EE")
)

// BuildRecords converts an assembled OutputPair into the two sam.Records
// representing its mates, with mate cross-reference fields and the
// custom attributes set.
func BuildRecords(refs []*sam.Reference, p assemble.OutputPair) (*sam.Record, *sam.Record, error) {
	one, err := buildRecord(refs, p, p.One, p.Two, sam.Read1)
	if err != nil {
		return nil, nil, err
	}
	two, err := buildRecord(refs, p, p.Two, p.One, sam.Read2)
	if err != nil {
		return nil, nil, err
	}
	return one, two, nil
}

func buildRecord(refs []*sam.Reference, p assemble.OutputPair, self, mate assemble.Mate, readNum sam.Flags) (*sam.Record, error) {
	r := &sam.Record{
		Name:  p.Name,
		Seq:   sam.NewSeq([]byte(self.Bases)),
		Qual:  qualASCII(self.Quality),
		MapQ:  byte(p.MappingQuality),
		Cigar: toSamCigar(self.Cigar),
	}

	flags := sam.Paired | readNum
	if self.NegativeStrand {
		flags |= sam.Reverse
	}
	if mate.NegativeStrand {
		flags |= sam.MateReverse
	}
	if self.Unmapped {
		flags |= sam.Unmapped
	}
	if mate.Unmapped {
		flags |= sam.MateUnmapped
	}
	if !self.Unmapped && !mate.Unmapped && self.RefIndex == mate.RefIndex {
		flags |= sam.ProperPair
	}
	r.Flags = flags

	if !self.Unmapped && self.RefIndex >= 0 && self.RefIndex < len(refs) {
		r.Ref = refs[self.RefIndex]
		r.Pos = self.Position
	} else {
		r.Pos = -1
	}
	if !mate.Unmapped && mate.RefIndex >= 0 && mate.RefIndex < len(refs) {
		r.MateRef = refs[mate.RefIndex]
		r.MatePos = mate.Position
	} else {
		r.MatePos = -1
	}

	if err := setAux(r, tagExtensionUID, p.UID); err != nil {
		return nil, err
	}
	if err := setAux(r, tagLigationUID, p.LigationUID); err != nil {
		return nil, err
	}
	if err := setAux(r, tagUIDGroup, p.UID); err != nil {
		return nil, err
	}
	if err := setAux(r, tagProbeID, p.ProbeID); err != nil {
		return nil, err
	}
	if err := setAuxInt(r, tagMappedLength, self.MappedLength); err != nil {
		return nil, err
	}
	if self.ExtensionError != "" {
		if err := setAux(r, tagExtensionErr, self.ExtensionError); err != nil {
			return nil, err
		}
	}
	return r, nil
}

func setAux(r *sam.Record, tag sam.Tag, value string) error {
	if value == "" {
		return nil
	}
	aux, err := sam.NewAux(tag, value)
	if err != nil {
		return err
	}
	r.AuxFields = append(r.AuxFields, aux)
	return nil
}

func setAuxInt(r *sam.Record, tag sam.Tag, value int) error {
	aux, err := sam.NewAux(tag, value)
	if err != nil {
		return err
	}
	r.AuxFields = append(r.AuxFields, aux)
	return nil
}

func qualASCII(quality string) []byte {
	out := make([]byte, len(quality))
	copy(out, quality)
	for i := range out {
		out[i] -= 33
	}
	return out
}
