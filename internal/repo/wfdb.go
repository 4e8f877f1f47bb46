package repo

import (
	"fmt"
	"strconv"
	"strings"
)

// WFDBSignal describes one channel of a WFDB record, parsed from a
// signal specification line of the .hea file.
type WFDBSignal struct {
	FileName    string
	Format      int
	Gain        float64 // ADC units per physical unit
	Baseline    int     // ADC value corresponding to 0 physical units
	Units       string
	Description string
}

// WFDBHeader is the parsed record line plus signal specifications of a
// WFDB .hea file.
type WFDBHeader struct {
	Record       string
	SamplingRate float64
	Samples      int
	Signals      []WFDBSignal
}

const defaultADCGain = 200.0

// ParseWFDBHeader parses the text of a .hea file. Only the fields the
// analysis engine needs are retained; comment lines and info strings are
// skipped.
func ParseWFDBHeader(data []byte) (WFDBHeader, error) {
	var lines []string
	for _, line := range strings.Split(string(data), "\n") {
		line = strings.TrimRight(line, "\r")
		trimmed := strings.TrimSpace(line)
		if trimmed == "" || strings.HasPrefix(trimmed, "#") {
			continue
		}
		lines = append(lines, trimmed)
	}
	if len(lines) == 0 {
		return WFDBHeader{}, fmt.Errorf("wfdb: empty header")
	}

	fields := strings.Fields(lines[0])
	if len(fields) < 2 {
		return WFDBHeader{}, fmt.Errorf("wfdb: malformed record line %q", lines[0])
	}

	hdr := WFDBHeader{
		// A record name may carry a /segments suffix; the base name is
		// what maps onto file paths.
		Record:       strings.SplitN(fields[0], "/", 2)[0],
		SamplingRate: 250,
	}

	nsig, err := strconv.Atoi(fields[1])
	if err != nil || nsig < 0 {
		return WFDBHeader{}, fmt.Errorf("wfdb: bad signal count %q", fields[1])
	}

	if len(fields) >= 3 {
		// The sampling frequency field may carry /counter-frequency.
		fsField := strings.SplitN(fields[2], "/", 2)[0]
		fs, err := strconv.ParseFloat(fsField, 64)
		if err != nil || fs <= 0 {
			return WFDBHeader{}, fmt.Errorf("wfdb: bad sampling rate %q", fields[2])
		}
		hdr.SamplingRate = fs
	}
	if len(fields) >= 4 {
		n, err := strconv.Atoi(fields[3])
		if err != nil || n < 0 {
			return WFDBHeader{}, fmt.Errorf("wfdb: bad sample count %q", fields[3])
		}
		hdr.Samples = n
	}

	if len(lines)-1 < nsig {
		return WFDBHeader{}, fmt.Errorf("wfdb: header declares %d signals but carries %d specs", nsig, len(lines)-1)
	}
	for i := 1; i <= nsig; i++ {
		sig, err := parseSignalSpec(lines[i])
		if err != nil {
			return WFDBHeader{}, err
		}
		hdr.Signals = append(hdr.Signals, sig)
	}

	return hdr, nil
}

func parseSignalSpec(line string) (WFDBSignal, error) {
	fields := strings.Fields(line)
	if len(fields) < 2 {
		return WFDBSignal{}, fmt.Errorf("wfdb: malformed signal spec %q", line)
	}

	sig := WFDBSignal{
		FileName: fields[0],
		Gain:     defaultADCGain,
		Units:    "mV",
	}

	// The format field may carry xSAMPLES, :SKEW or +OFFSET suffixes.
	formatField := fields[1]
	end := len(formatField)
	for i, r := range formatField {
		if r == 'x' || r == ':' || r == '+' {
			end = i
			break
		}
	}
	format, err := strconv.Atoi(formatField[:end])
	if err != nil {
		return WFDBSignal{}, fmt.Errorf("wfdb: bad signal format %q", fields[1])
	}
	sig.Format = format

	if len(fields) >= 3 {
		if err := parseGainField(fields[2], &sig); err != nil {
			return WFDBSignal{}, err
		}
	}
	// Fields 4-8 are adc resolution, adc zero, initial value, checksum and
	// block size. Baseline defaults to the ADC zero when not given.
	if len(fields) >= 5 && !strings.Contains(fields[2], "(") {
		if zero, err := strconv.Atoi(fields[4]); err == nil {
			sig.Baseline = zero
		}
	}
	if len(fields) >= 9 {
		sig.Description = strings.Join(fields[8:], " ")
	}

	return sig, nil
}

// parseGainField handles GAIN, GAIN(BASELINE), GAIN/UNITS and
// GAIN(BASELINE)/UNITS.
func parseGainField(field string, sig *WFDBSignal) error {
	rest := field
	if i := strings.IndexByte(rest, '/'); i >= 0 {
		sig.Units = rest[i+1:]
		rest = rest[:i]
	}
	if i := strings.IndexByte(rest, '('); i >= 0 {
		j := strings.IndexByte(rest, ')')
		if j < i {
			return fmt.Errorf("wfdb: bad gain field %q", field)
		}
		baseline, err := strconv.Atoi(rest[i+1 : j])
		if err != nil {
			return fmt.Errorf("wfdb: bad baseline in %q", field)
		}
		sig.Baseline = baseline
		rest = rest[:i]
	}
	gain, err := strconv.ParseFloat(rest, 64)
	if err != nil {
		return fmt.Errorf("wfdb: bad gain in %q", field)
	}
	if gain != 0 {
		sig.Gain = gain
	}
	return nil
}

// FrameGeometry returns how many frames and bytes make one smallest
// byte-aligned chunk of the signal file, so segment fetches can address
// whole frames with HTTP ranges. Format 212 packs two 12-bit samples in
// three bytes, so single-channel files align every second frame.
func (h WFDBHeader) FrameGeometry() (framesPerChunk, bytesPerChunk int, err error) {
	nsig := len(h.Signals)
	if nsig == 0 {
		return 0, 0, fmt.Errorf("wfdb: record %s has no signals", h.Record)
	}
	format := h.Signals[0].Format
	for _, sig := range h.Signals[1:] {
		if sig.Format != format {
			return 0, 0, fmt.Errorf("wfdb: mixed signal formats are not supported")
		}
	}

	switch format {
	case 16:
		return 1, 2 * nsig, nil
	case 212:
		samplesPerChunk := lcm(2, nsig)
		return samplesPerChunk / nsig, samplesPerChunk / 2 * 3, nil
	default:
		return 0, 0, fmt.Errorf("wfdb: unsupported signal format %d", format)
	}
}

// DecodeFrames unpacks interleaved ADC samples into one slice per signal.
// data must cover whole chunks as reported by FrameGeometry.
func DecodeFrames(format, nsig int, data []byte) ([][]int, error) {
	if nsig < 1 {
		return nil, fmt.Errorf("wfdb: need at least one signal, got %d", nsig)
	}

	var flat []int
	switch format {
	case 16:
		if len(data)%2 != 0 {
			return nil, fmt.Errorf("wfdb: format 16 data length %d is not sample aligned", len(data))
		}
		flat = make([]int, len(data)/2)
		for i := range flat {
			v := int(int16(uint16(data[2*i]) | uint16(data[2*i+1])<<8))
			flat[i] = v
		}
	case 212:
		if len(data)%3 != 0 {
			return nil, fmt.Errorf("wfdb: format 212 data length %d is not pair aligned", len(data))
		}
		flat = make([]int, len(data)/3*2)
		for i := 0; i < len(data); i += 3 {
			b0, b1, b2 := int(data[i]), int(data[i+1]), int(data[i+2])
			flat[i/3*2] = signExtend12(b0 | (b1&0x0F)<<8)
			flat[i/3*2+1] = signExtend12(b2 | (b1&0xF0)<<4)
		}
	default:
		return nil, fmt.Errorf("wfdb: unsupported signal format %d", format)
	}

	if len(flat)%nsig != 0 {
		return nil, fmt.Errorf("wfdb: %d samples do not divide across %d signals", len(flat), nsig)
	}
	frames := len(flat) / nsig
	channels := make([][]int, nsig)
	for ch := range channels {
		channels[ch] = make([]int, frames)
	}
	for i, v := range flat {
		channels[i%nsig][i/nsig] = v
	}
	return channels, nil
}

// EncodeFrames is the inverse of DecodeFrames; the mock archive and tests
// use it to synthesize .dat payloads. Format 212 requires an even total
// sample count, padding with a trailing zero sample when needed.
func EncodeFrames(format int, channels [][]int) ([]byte, error) {
	nsig := len(channels)
	if nsig == 0 {
		return nil, fmt.Errorf("wfdb: no channels to encode")
	}
	frames := len(channels[0])
	for _, ch := range channels[1:] {
		if len(ch) != frames {
			return nil, fmt.Errorf("wfdb: channels differ in length")
		}
	}

	flat := make([]int, 0, frames*nsig)
	for f := 0; f < frames; f++ {
		for ch := 0; ch < nsig; ch++ {
			flat = append(flat, channels[ch][f])
		}
	}

	switch format {
	case 16:
		out := make([]byte, 2*len(flat))
		for i, v := range flat {
			if v < -32768 || v > 32767 {
				return nil, fmt.Errorf("wfdb: sample %d out of int16 range", v)
			}
			out[2*i] = byte(uint16(int16(v)))
			out[2*i+1] = byte(uint16(int16(v)) >> 8)
		}
		return out, nil
	case 212:
		if len(flat)%2 != 0 {
			flat = append(flat, 0)
		}
		out := make([]byte, 0, len(flat)/2*3)
		for i := 0; i < len(flat); i += 2 {
			a, b := flat[i], flat[i+1]
			if a < -2048 || a > 2047 || b < -2048 || b > 2047 {
				return nil, fmt.Errorf("wfdb: sample out of 12-bit range")
			}
			ua, ub := uint16(a)&0x0FFF, uint16(b)&0x0FFF
			out = append(out, byte(ua), byte(ua>>8)|byte(ub>>8)<<4, byte(ub))
		}
		return out, nil
	default:
		return nil, fmt.Errorf("wfdb: unsupported signal format %d", format)
	}
}

// Physical converts ADC samples of one channel into physical units
// (millivolts for ECG) using the channel's gain and baseline.
func (h WFDBHeader) Physical(channel int, adc []int) ([]float64, error) {
	if channel < 0 || channel >= len(h.Signals) {
		return nil, fmt.Errorf("wfdb: record %s has no channel %d", h.Record, channel)
	}
	sig := h.Signals[channel]
	gain := sig.Gain
	if gain == 0 {
		gain = defaultADCGain
	}

	out := make([]float64, len(adc))
	for i, v := range adc {
		out[i] = float64(v-sig.Baseline) / gain
	}
	return out, nil
}

func signExtend12(v int) int {
	if v > 2047 {
		return v - 4096
	}
	return v
}

func gcd(a, b int) int {
	for b != 0 {
		a, b = b, a%b
	}
	return a
}

func lcm(a, b int) int {
	return a / gcd(a, b) * b
}
