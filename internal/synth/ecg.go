package synth

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"math"
	"math/rand"
	"strconv"
)

// Interval is a [Start, End) range in seconds.
type Interval struct {
	Start float64
	End   float64
}

// Options describes a synthetic recording. Amplitudes are in millivolts; the
// written file stores volts like the acquisition device does.
type Options struct {
	Rate      float64
	Duration  float64
	HeartRate float64
	Channels  int

	Noise     float64
	Baseline  float64
	Powerline float64

	Artifacts     []Interval
	ArtifactLevel float64
	// Flat zeroes every channel inside Artifacts instead of adding noise.
	Flat bool

	Seed     int64
	RecordID string
	Date     string
	Notes    string
	Gain     string
}

// DefaultOptions is a clean 30 s resting recording.
func DefaultOptions() Options {
	return Options{
		Rate:          500,
		Duration:      30,
		HeartRate:     72,
		Channels:      8,
		Noise:         0.01,
		Baseline:      0.1,
		Powerline:     0.02,
		ArtifactLevel: 3,
		Seed:          1,
		RecordID:      "SIM-0001",
		Date:          "1/1/2024 00:00:00",
		Notes:         "synthetic recording",
		Gain:          "6",
	}
}

// leadScale gives each channel a slightly different projection of the same
// cardiac vector.
var leadScale = []float64{0.6, 1.0, 0.85, 0.7, 0.9, 1.1, 0.75, 0.95}

// Generator produces per-sample waveform values. Not safe for concurrent use.
type Generator struct {
	opts  Options
	rng   *rand.Rand
	phase float64
	n     int
}

// NewGenerator validates opts and returns a deterministic generator.
func NewGenerator(opts Options) (*Generator, error) {
	if opts.Rate <= 0 {
		return nil, fmt.Errorf("sampling rate must be positive, got %g", opts.Rate)
	}
	if opts.Duration <= 0 {
		return nil, fmt.Errorf("duration must be positive, got %g", opts.Duration)
	}
	if opts.HeartRate <= 0 || opts.HeartRate > 300 {
		return nil, fmt.Errorf("heart rate must be in (0, 300], got %g", opts.HeartRate)
	}
	if opts.Channels <= 0 {
		opts.Channels = 1
	}
	for _, a := range opts.Artifacts {
		if a.End <= a.Start {
			return nil, fmt.Errorf("artifact interval [%g, %g) is empty", a.Start, a.End)
		}
	}
	return &Generator{opts: opts, rng: rand.New(rand.NewSource(opts.Seed))}, nil
}

// Samples is the number of rows the generator emits.
func (g *Generator) Samples() int {
	return int(math.Round(g.opts.Duration * g.opts.Rate))
}

// Next returns the next row in millivolts, one value per channel.
func (g *Generator) Next(row []float64) {
	t := float64(g.n) / g.opts.Rate
	g.n++

	g.phase += g.opts.HeartRate / 60 / g.opts.Rate
	if g.phase >= 1 {
		g.phase -= 1
	}
	beat := waveform(g.phase)
	wander := g.opts.Baseline * math.Sin(2*math.Pi*0.25*t)
	mains := g.opts.Powerline * math.Sin(2*math.Pi*50*t)
	artifact := g.inArtifact(t)

	for ch := range row {
		scale := leadScale[ch%len(leadScale)]
		v := scale*beat + wander + mains + g.opts.Noise*g.rng.NormFloat64()
		if artifact {
			if g.opts.Flat {
				v = 0
			} else {
				v += g.opts.ArtifactLevel * g.rng.NormFloat64()
			}
		}
		row[ch] = v
	}
}

func (g *Generator) inArtifact(t float64) bool {
	for _, a := range g.opts.Artifacts {
		if t >= a.Start && t < a.End {
			return true
		}
	}
	return false
}

// waveform is one cardiac cycle as a sum of Gaussian P, Q, R, S and T waves,
// phase in [0, 1).
func waveform(phase float64) float64 {
	p := 0.10 * gauss(phase, 0.18, 0.025)
	q := -0.12 * gauss(phase, 0.30, 0.01)
	r := 1.00 * gauss(phase, 0.32, 0.008)
	s := -0.25 * gauss(phase, 0.35, 0.012)
	tw := 0.30 * gauss(phase, 0.60, 0.05)
	return p + q + r + s + tw
}

func gauss(x, mu, sigma float64) float64 {
	z := (x - mu) / sigma
	return math.Exp(-0.5 * z * z)
}

// Write renders a full device export to w.
func Write(w io.Writer, opts Options) error {
	g, err := NewGenerator(opts)
	if err != nil {
		return err
	}
	channels := g.opts.Channels

	bw := bufio.NewWriter(w)
	fmt.Fprintf(bw, "Record #: %s\n", opts.RecordID)
	fmt.Fprintf(bw, "Date: %s\n", opts.Date)
	fmt.Fprintf(bw, "Notes: %s\n", opts.Notes)
	fmt.Fprintf(bw, "Gain: %s\n\n", opts.Gain)

	for ch := 0; ch < channels; ch++ {
		if ch > 0 {
			bw.WriteByte('\t')
		}
		fmt.Fprintf(bw, "CH%d", ch+1)
	}
	bw.WriteByte('\n')

	row := make([]float64, channels)
	buf := make([]byte, 0, 32)
	for i := g.Samples(); i > 0; i-- {
		g.Next(row)
		for ch, mv := range row {
			if ch > 0 {
				bw.WriteByte('\t')
			}
			buf = strconv.AppendFloat(buf[:0], mv/1000, 'g', 8, 64)
			bw.Write(buf)
		}
		bw.WriteByte('\n')
	}
	if err := bw.Flush(); err != nil {
		return fmt.Errorf("write synthetic recording: %w", err)
	}
	return nil
}

// Bytes renders a full device export in memory.
func Bytes(opts Options) ([]byte, error) {
	var buf bytes.Buffer
	if err := Write(&buf, opts); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
