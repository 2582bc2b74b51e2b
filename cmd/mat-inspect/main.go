// mat-inspect prints what the prediction service sees in a MAT-file: its
// variables, the layout the parser recognizes, per-channel statistics and,
// when all channels are present, the spectral pattern.
package main

import (
	"flag"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/chrissnell/motorwatch/internal/assembler"
	"github.com/chrissnell/motorwatch/internal/container"
	"github.com/chrissnell/motorwatch/internal/spectral"
	"github.com/chrissnell/motorwatch/internal/types"
	"github.com/chrissnell/motorwatch/pkg/matfile"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

func main() {
	var (
		prefix  = flag.String("prefix", "", "Record variable prefix (default essais)")
		segment = flag.String("segment", "", "Name segment holding the channel name: second-to-last or last")
	)
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: %s [flags] <file.mat>\n", os.Args[0])
		flag.PrintDefaults()
	}
	flag.Parse()

	if flag.NArg() != 1 {
		flag.Usage()
		os.Exit(1)
	}

	seg, err := container.ParseNameSegment(*segment)
	if err != nil {
		fatal(err)
	}

	f, err := matfile.Open(flag.Arg(0))
	if err != nil {
		fatal(err)
	}

	fmt.Printf("Header: %s\n\n", f.Header)
	tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "VARIABLE\tCLASS\tDIMS")
	for _, v := range f.Variables {
		fmt.Fprintf(tw, "%s\t%s\t%v\n", v.Name, v.Class, v.Dims)
	}
	tw.Flush()

	p := container.NewParser(container.Options{RecordPrefix: *prefix, Segment: seg})
	fmt.Printf("\nLayouts: %v\n\n", p.Layouts(f))

	set, err := p.Extract(f)
	if err != nil {
		fatal(err)
	}

	tw = tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', tabwriter.AlignRight)
	fmt.Fprintln(tw, "CHANNEL\tSAMPLES\tMEAN\tSTD\tSPAN\t")
	for _, name := range types.RequiredChannels {
		samples, ok := set[name]
		if !ok || len(samples) == 0 {
			fmt.Fprintf(tw, "%s\tmissing\t\t\t\t\n", name)
			continue
		}
		mean, std := stat.MeanStdDev(samples, nil)
		fmt.Fprintf(tw, "%s\t%d\t%.4f\t%.4f\t%.4f\t\n", name, len(samples), mean, std, floats.Max(samples)-floats.Min(samples))
	}
	tw.Flush()

	tensor, err := assembler.Assemble(set)
	if err != nil {
		fmt.Printf("\nNot classifiable: %v\n", err)
		os.Exit(2)
	}

	pattern, err := spectral.Analyzer{}.Analyze(tensor)
	if err != nil {
		fatal(err)
	}
	fmt.Printf("\nSpectral pattern:\n")
	fmt.Printf("  50 Hz line:       %v\n", pattern.BaseFreq)
	fmt.Printf("  25 Hz modulation: %v\n", pattern.Mod25Hz)
	fmt.Printf("  100 Hz sideband:  %v\n", pattern.Sideband100Hz)
	fmt.Printf("  phase balance:    %v\n", pattern.PhaseBalance)
	fmt.Printf("  dominant <200 Hz: %v\n", pattern.DominantFrequencies)
}

func fatal(err error) {
	fmt.Fprintf(os.Stderr, "mat-inspect: %v\n", err)
	os.Exit(1)
}
