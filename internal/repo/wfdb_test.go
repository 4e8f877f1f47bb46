package repo

import (
	"math"
	"testing"
)

const sampleHeader = `16265 2 128 1966080
16265.dat 212 200 12 1024 995 21756 0 ECG1
16265.dat 212 200 12 1024 1011 -10725 0 ECG2
# Age: 32  Sex: F
`

func TestParseWFDBHeader(t *testing.T) {
	hdr, err := ParseWFDBHeader([]byte(sampleHeader))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}

	if hdr.Record != "16265" {
		t.Fatalf("record: expected 16265, got %q", hdr.Record)
	}
	if hdr.SamplingRate != 128 {
		t.Fatalf("fs: expected 128, got %g", hdr.SamplingRate)
	}
	if hdr.Samples != 1966080 {
		t.Fatalf("samples: expected 1966080, got %d", hdr.Samples)
	}
	if len(hdr.Signals) != 2 {
		t.Fatalf("expected 2 signals, got %d", len(hdr.Signals))
	}

	sig := hdr.Signals[0]
	if sig.FileName != "16265.dat" || sig.Format != 212 {
		t.Fatalf("unexpected signal spec: %+v", sig)
	}
	if sig.Gain != 200 {
		t.Fatalf("gain: expected 200, got %g", sig.Gain)
	}
	if sig.Baseline != 1024 {
		t.Fatalf("baseline: expected adc zero 1024, got %d", sig.Baseline)
	}
	if sig.Description != "ECG1" {
		t.Fatalf("description: expected ECG1, got %q", sig.Description)
	}
}

func TestParseWFDBHeaderGainVariants(t *testing.T) {
	hdr, err := ParseWFDBHeader([]byte("r 1 250 1000\nr.dat 16 100.5(512)/uV 16 0 0 0 0 chan"))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	sig := hdr.Signals[0]
	if sig.Gain != 100.5 {
		t.Fatalf("gain: expected 100.5, got %g", sig.Gain)
	}
	if sig.Baseline != 512 {
		t.Fatalf("baseline: expected explicit 512, got %d", sig.Baseline)
	}
	if sig.Units != "uV" {
		t.Fatalf("units: expected uV, got %q", sig.Units)
	}
}

func TestParseWFDBHeaderRejectsGarbage(t *testing.T) {
	for _, bad := range []string{
		"",
		"record",
		"r 2 128 100\nr.dat 212 200",
		"r 1 -5 100\nr.dat 212 200 12 0 0 0 0 c",
	} {
		if _, err := ParseWFDBHeader([]byte(bad)); err == nil {
			t.Fatalf("expected error for header %q", bad)
		}
	}
}

func TestFormat212RoundTrip(t *testing.T) {
	ch0 := []int{0, 1, -1, 2047, -2048, 100, -100, 512}
	ch1 := []int{5, -5, 1000, -1000, 0, 2047, -2048, -1}

	data, err := EncodeFrames(212, [][]int{ch0, ch1})
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	if len(data) != len(ch0)*3 {
		t.Fatalf("expected %d bytes, got %d", len(ch0)*3, len(data))
	}

	channels, err := DecodeFrames(212, 2, data)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	for i := range ch0 {
		if channels[0][i] != ch0[i] || channels[1][i] != ch1[i] {
			t.Fatalf("frame %d: expected (%d,%d), got (%d,%d)", i, ch0[i], ch1[i], channels[0][i], channels[1][i])
		}
	}
}

func TestFormat16RoundTrip(t *testing.T) {
	ch := []int{0, 32767, -32768, 1, -1, 12345}
	data, err := EncodeFrames(16, [][]int{ch})
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	channels, err := DecodeFrames(16, 1, data)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	for i, v := range ch {
		if channels[0][i] != v {
			t.Fatalf("sample %d: expected %d, got %d", i, v, channels[0][i])
		}
	}
}

func TestEncodeFrames212RangeCheck(t *testing.T) {
	if _, err := EncodeFrames(212, [][]int{{4096}}); err == nil {
		t.Fatal("expected error for sample outside 12-bit range")
	}
}

func TestFrameGeometry(t *testing.T) {
	cases := []struct {
		format, nsig, frames, bytes int
	}{
		{212, 2, 1, 3},
		{212, 1, 2, 3},
		{16, 2, 1, 4},
		{16, 1, 1, 2},
	}
	for _, tc := range cases {
		hdr := WFDBHeader{Record: "r"}
		for i := 0; i < tc.nsig; i++ {
			hdr.Signals = append(hdr.Signals, WFDBSignal{Format: tc.format})
		}
		frames, bytes, err := hdr.FrameGeometry()
		if err != nil {
			t.Fatalf("format %d nsig %d: %v", tc.format, tc.nsig, err)
		}
		if frames != tc.frames || bytes != tc.bytes {
			t.Fatalf("format %d nsig %d: expected %d frames / %d bytes, got %d/%d",
				tc.format, tc.nsig, tc.frames, tc.bytes, frames, bytes)
		}
	}
}

func TestPhysicalConversion(t *testing.T) {
	hdr := WFDBHeader{
		Record:  "r",
		Signals: []WFDBSignal{{Format: 212, Gain: 200, Baseline: 1024}},
	}
	mv, err := hdr.Physical(0, []int{1024, 1224, 824})
	if err != nil {
		t.Fatalf("physical: %v", err)
	}
	want := []float64{0, 1, -1}
	for i := range want {
		if math.Abs(mv[i]-want[i]) > 1e-12 {
			t.Fatalf("sample %d: expected %g mV, got %g", i, want[i], mv[i])
		}
	}

	if _, err := hdr.Physical(3, nil); err == nil {
		t.Fatal("expected error for missing channel")
	}
}
