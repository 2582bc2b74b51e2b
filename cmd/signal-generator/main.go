// signal-generator writes synthetic motor recordings to disk for testing the
// prediction service without a test rig.
package main

import (
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/chrissnell/motorwatch/internal/log"
	"github.com/chrissnell/motorwatch/internal/storage"
	"github.com/chrissnell/motorwatch/internal/synth"
)

func main() {
	var (
		faultName = flag.String("fault", "all", "Fault to inject: none, broken-rotor, imbalance or all")
		outDir    = flag.String("out", "generated_signals", "Directory to write recordings to")
		seed      = flag.Uint64("seed", 0, "Random seed (0 seeds from the clock)")
		essais    = flag.Int("essais", 1, "N in the essais<N> variable name")
		count     = flag.Int("count", 1, "Recordings to write per fault")
		noise     = flag.Float64("noise", 0, "Noise standard deviation (0 uses the default)")
		compress  = flag.Bool("compress", false, "Write compressed variables")
		debug     = flag.Bool("debug", false, "Turn on debugging output")
	)
	flag.Parse()

	if err := log.Init(*debug); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	faults := synth.FaultTypes
	if *faultName != "all" {
		f, err := synth.ParseFaultType(*faultName)
		if err != nil {
			log.Fatal(err)
		}
		faults = []synth.FaultType{f}
	}

	store, err := storage.NewFSBlobStore(*outDir)
	if err != nil {
		log.Fatalf("could not open output directory: %v", err)
	}

	s := synth.New(synth.Options{Seed: *seed, NoiseLevel: *noise}, log.Named("synth"))
	for _, fault := range faults {
		for i := 0; i < *count; i++ {
			set, err := s.Synthesize(fault)
			if err != nil {
				log.Fatalf("could not synthesize %s: %v", fault, err)
			}
			data, err := synth.Serialize(set, synth.SerializeOptions{
				EssaisNumber: *essais,
				Description:  fmt.Sprintf("synthetic %s recording", fault),
				Compress:     *compress,
			})
			if err != nil {
				log.Fatalf("could not serialize %s: %v", fault, err)
			}

			path, err := store.Put(storage.GeneratedName(time.Now()), data)
			if err != nil {
				log.Fatal(err)
			}
			log.Infow("wrote recording", "fault", fault, "label", fault.Label(), "path", path, "bytes", len(data))
		}
	}
}
