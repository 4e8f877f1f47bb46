package main

import (
	"bytes"
	"flag"
	"fmt"
	"log"
	"math"
	"net/http"
	"strings"
	"time"

	"github.com/tanishq-3343/HRV-Stress-Detection/internal/ecg"
	"github.com/tanishq-3343/HRV-Stress-Detection/internal/repo"
)

// Local stand-in for a PhysioNet-style WFDB archive. Synthesizes a few
// two-channel records at startup and serves their .hea and .dat files
// with HTTP range support, which is all the archive client needs.

type record struct {
	name string
	hea  []byte
	dat  []byte
}

const (
	fs      = 128.0
	minutes = 30
	gain    = 200
	adcZero = 1024
)

func synthesizeRecord(name string, bpm float64, seed int64) (record, error) {
	samples := int(fs) * 60 * minutes
	channels := make([][]int, 2)
	for ch := range channels {
		synth := ecg.NewSynthesizer(fs, bpm, 0.02, 0.05, seed+int64(ch))
		adc := make([]int, samples)
		for i := range adc {
			v := int(math.Round(synth.Next()*gain)) + adcZero
			if v < 0 {
				v = 0
			}
			if v > 2047 {
				v = 2047
			}
			adc[i] = v
		}
		channels[ch] = adc
	}

	dat, err := repo.EncodeFrames(212, channels)
	if err != nil {
		return record{}, err
	}

	var hea bytes.Buffer
	fmt.Fprintf(&hea, "%s 2 %g %d\n", name, fs, samples)
	for ch := range channels {
		fmt.Fprintf(&hea, "%s.dat 212 %d(%d)/mV 12 %d 0 0 0 ECG%d\n", name, gain, adcZero, adcZero, ch+1)
	}

	return record{name: name, hea: hea.Bytes(), dat: dat}, nil
}

func main() {
	var (
		addr = flag.String("addr", ":8090", "listen address")
		db   = flag.String("db", "nsrdb/1.0.0", "database path prefix")
	)
	flag.Parse()

	specs := []struct {
		name string
		bpm  float64
		seed int64
	}{
		{"16265", 68, 1},
		{"16272", 75, 2},
		{"16273", 88, 3},
	}

	records := make(map[string]record, len(specs))
	start := time.Now()
	for _, spec := range specs {
		rec, err := synthesizeRecord(spec.name, spec.bpm, spec.seed)
		if err != nil {
			log.Fatalf("synthesize %s: %v", spec.name, err)
		}
		records[spec.name] = rec
	}
	log.Printf("synthesized %d records in %s", len(records), time.Since(start).Round(time.Millisecond))

	prefix := "/" + strings.Trim(*db, "/") + "/"

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	mux.HandleFunc(prefix, func(w http.ResponseWriter, r *http.Request) {
		file := strings.TrimPrefix(r.URL.Path, prefix)
		name, ext, ok := strings.Cut(file, ".")
		rec, found := records[name]
		if !ok || !found {
			http.NotFound(w, r)
			return
		}

		switch ext {
		case "hea":
			http.ServeContent(w, r, file, start, bytes.NewReader(rec.hea))
		case "dat":
			// ServeContent handles Range requests, which the archive
			// client relies on for segment fetches.
			http.ServeContent(w, r, file, start, bytes.NewReader(rec.dat))
		default:
			http.NotFound(w, r)
		}
	})

	log.Printf("mock archive listening on %s (records under %s)", *addr, prefix)
	log.Fatal(http.ListenAndServe(*addr, mux))
}
