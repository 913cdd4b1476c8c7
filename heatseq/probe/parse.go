package probe

import (
	"bufio"
	"io"
	"strconv"
	"strings"

	"github.com/pkg/errors"

	"github.com/grailbio/targetseq/heatseq/seq"
)

// ParseManifest reads a tab-separated probe manifest, one probe per line:
//
//	id  sequence_name  strand  ext_start  ext_stop  lig_start  lig_stop  target_start  target_stop  ext_primer_seq  lig_primer_seq
//
// This is a default, minimal probe-info-file reader; a richer manifest
// probe-file parsing as an external collaborator, so production
// deployments are free to swap in a richer format behind the same
// []*Probe result.
func ParseManifest(r io.Reader) ([]*Probe, error) {
	scanner := bufio.NewScanner(r)
	var probes []*Probe
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		p, err := parseLine(line)
		if err != nil {
			return nil, errors.Wrapf(err, "probe.ParseManifest: line %d", lineNo)
		}
		probes = append(probes, p)
	}
	if err := scanner.Err(); err != nil {
		return nil, errors.Wrap(err, "probe.ParseManifest")
	}
	return probes, nil
}

func parseLine(line string) (*Probe, error) {
	fields := strings.Split(line, "\t")
	if len(fields) != 11 {
		return nil, errors.Errorf("expected 11 tab-separated fields, got %d", len(fields))
	}
	ints := make([]int64, 6)
	for i, f := range fields[3:9] {
		v, err := strconv.ParseInt(f, 10, 64)
		if err != nil {
			return nil, errors.Wrapf(err, "field %d (%q)", i+3, f)
		}
		ints[i] = v
	}
	strand := Plus
	if fields[2] == "-" {
		strand = Minus
	}
	extSeq, err := seq.NewIupac(fields[9])
	if err != nil {
		return nil, errors.Wrap(err, "extension primer sequence")
	}
	ligSeq, err := seq.NewIupac(fields[10])
	if err != nil {
		return nil, errors.Wrap(err, "ligation primer sequence")
	}
	return &Probe{
		ID:                      fields[0],
		SequenceName:            fields[1],
		Strand:                  strand,
		ExtensionPrimerStart:    ints[0],
		ExtensionPrimerStop:     ints[1],
		LigationPrimerStart:     ints[2],
		LigationPrimerStop:      ints[3],
		CaptureTargetStart:      ints[4],
		CaptureTargetStop:       ints[5],
		ExtensionPrimerSequence: extSeq,
		LigationPrimerSequence:  ligSeq,
	}, nil
}
