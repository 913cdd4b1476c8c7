// Command heatseq maps paired-end targeted-resequencing reads to their
// capture probes, collapses PCR duplicates by UID, extends the surviving
// representative to the probe primers, and writes a coordinate-sorted BAM.
package main

import (
	"flag"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/grailbio/base/file"
	"github.com/grailbio/base/log"
	"github.com/grailbio/base/vcontext"
	"github.com/grailbio/hts/sam"

	"github.com/grailbio/targetseq/heatseq/align"
	"github.com/grailbio/targetseq/heatseq/bamio"
	"github.com/grailbio/targetseq/heatseq/fastqio"
	"github.com/grailbio/targetseq/heatseq/genome"
	"github.com/grailbio/targetseq/heatseq/pipeline"
	"github.com/grailbio/targetseq/heatseq/probe"
	"github.com/grailbio/targetseq/heatseq/probeindex"
)

type cliFlags struct {
	r1, r2     string
	genomePath string
	probesPath string
	outputPath string
}

func main() {
	var f cliFlags
	opts := pipeline.DefaultOpts
	flag.StringVar(&f.r1, "r1", "", "Path to the R1 FASTQ file.")
	flag.StringVar(&f.r2, "r2", "", "Path to the R2 FASTQ file.")
	flag.StringVar(&f.genomePath, "genome", "", "Path to the compact 2-bit genome file.")
	flag.StringVar(&f.probesPath, "probes", "", "Path to the probe manifest (tab-separated).")
	flag.StringVar(&f.outputPath, "output", "", "Path to write the output BAM file.")
	flag.IntVar(&opts.UIDLength, "uid-length", opts.UIDLength, "Nominal UID length.")
	flag.BoolVar(&opts.VariableLengthUIDs, "variable-length-uids", opts.VariableLengthUIDs, "Discover UID length via primer alignment.")
	flag.IntVar(&opts.Workers, "workers", opts.Workers, "Worker pool size for both pipeline phases.")
	flag.IntVar(&opts.KmerSize, "kmer-size", opts.KmerSize, "K-mer length for the probe index, in [8,16].")
	flag.IntVar(&opts.MinKmerHits, "min-kmer-hits", opts.MinKmerHits, "Minimum diagonal-consistent hits to accept a probe candidate.")
	flag.Parse()

	if f.r1 == "" || f.r2 == "" || f.genomePath == "" || f.probesPath == "" || f.outputPath == "" {
		log.Fatal("-r1, -r2, -genome, -probes and -output are all required")
	}

	ctx := vcontext.Background()
	runID := uuid.New().String()
	log.Printf("heatseq run %s starting", runID)

	store, err := genome.Open(f.genomePath)
	if err != nil {
		log.Fatalf("open genome store: %v", err)
	}
	defer store.Close()

	probesFile, err := file.Open(ctx, f.probesPath)
	if err != nil {
		log.Fatalf("open probe manifest: %v", err)
	}
	probes, err := probe.ParseManifest(probesFile.Reader(ctx))
	if err != nil {
		log.Fatalf("parse probe manifest: %v", err)
	}
	if err := probesFile.Close(ctx); err != nil {
		log.Fatalf("close probe manifest: %v", err)
	}

	index, err := probeindex.BuildFromGenome(probes, opts.KmerSize, store)
	if err != nil {
		log.Fatalf("build probe index: %v", err)
	}

	reader, err := fastqio.OpenPair(ctx, f.r1, f.r2)
	if err != nil {
		log.Fatalf("open input FASTQ pair: %v", err)
	}

	refNames := probe.SequenceNames(probes)

	pl := pipeline.New(opts, index, align.DefaultScorer, store, refNames)
	outPairs, metrics, err := pl.Run(reader)
	if err != nil {
		log.Fatalf("run pipeline: %v", err)
	}
	if err := reader.Close(); err != nil {
		log.Fatalf("close input FASTQ pair: %v", err)
	}

	header, refs, err := buildHeader(refNames, runID, f.r1, f.r2)
	if err != nil {
		log.Fatalf("build BAM header: %v", err)
	}

	outFile, err := file.Create(ctx, f.outputPath)
	if err != nil {
		log.Fatalf("create output BAM: %v", err)
	}
	writer := bamio.NewBAMWriter(outFile.Writer(ctx), refs)
	if err := writer.WriteHeader(header); err != nil {
		log.Fatalf("write BAM header: %v", err)
	}
	for _, p := range outPairs {
		if err := writer.WritePair(p); err != nil {
			log.Fatalf("write output pair: %v", err)
		}
	}
	if err := writer.Close(); err != nil {
		log.Fatalf("close BAM writer: %v", err)
	}
	if err := outFile.Close(ctx); err != nil {
		log.Fatalf("close output file: %v", err)
	}

	log.Printf("run %s done: %d pairs in, %d pairs out, %d unmapped, %d ambiguous, %d duplicates removed",
		runID, metrics.TotalPairs, len(outPairs), metrics.Unmapped, metrics.Ambiguous, metrics.DuplicateReadPairsRemoved)
	os.Exit(0)
}

// buildHeader constructs a sam.Header carrying one sequence per name in
// refNames (in order, so the resulting index matches every
// Mate.RefIndex the pipeline assigns) and a single read group derived from
// the input file names.
func buildHeader(refNames []string, runID, r1Path, r2Path string) (*sam.Header, []*sam.Reference, error) {
	var refs []*sam.Reference
	for _, name := range refNames {
		ref, err := sam.NewReference(name, "", "", 1<<31-1, nil, nil)
		if err != nil {
			return nil, nil, err
		}
		refs = append(refs, ref)
	}
	h, err := sam.NewHeader(nil, refs)
	if err != nil {
		return nil, nil, err
	}
	rg, err := sam.NewReadGroup(runID, "", r1Path+","+r2Path, "", "", "", "", "", "", "", time.Time{}, 0)
	if err != nil {
		return nil, nil, err
	}
	if err := h.AddReadGroup(rg); err != nil {
		return nil, nil, err
	}
	if err := h.AddProgram(sam.NewProgram(runID, "heatseq", "", "", "")); err != nil {
		return nil, nil, err
	}
	return h, refs, nil
}
