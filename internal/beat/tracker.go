package beat

import (
	"context"
	"math"
	"math/cmplx"
	"sort"

	"github.com/satindergrewal/beatclick/internal/audio"
	"gonum.org/v1/gonum/dsp/fourier"
	"gonum.org/v1/gonum/dsp/window"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

const (
	fftSize   = 2048
	floorDB   = -100.0
	startBPM  = 120.0
	stdBPM    = 1.0 // octaves
	maxBPM    = 320.0
	acSeconds = 8.0
	tightness = 100.0
)

// Tracker is an in-process beat tracker: a spectral-flux onset envelope,
// an autocorrelation tempo estimate with a log-normal prior around 120 BPM,
// and dynamic-programming beat placement.
type Tracker struct{}

func NewTracker() *Tracker { return &Tracker{} }

func (t *Tracker) Estimate(ctx context.Context, w audio.Waveform) (BeatSet, error) {
	if w.SampleRate <= 0 || w.Len() == 0 {
		return BeatSet{}, nil
	}

	env, err := onsetEnvelope(ctx, w.Samples)
	if err != nil {
		return BeatSet{}, err
	}
	fps := float64(w.SampleRate) / audio.HopLength

	bpm := estimateTempo(env, fps)
	if bpm <= 0 {
		return BeatSet{}, nil
	}
	if err := ctx.Err(); err != nil {
		return BeatSet{}, err
	}

	frames := trackBeats(env, bpm, fps)
	return BeatSet{Tempo: bpm, Frames: frames}, nil
}

// onsetEnvelope computes one onset strength value per hop: the mean
// half-wave rectified increase in log power across frequency bins between
// consecutive centred STFT frames.
func onsetEnvelope(ctx context.Context, x []float64) ([]float64, error) {
	hann := make([]float64, fftSize)
	for i := range hann {
		hann[i] = 1
	}
	window.Hann(hann)

	fft := fourier.NewFFT(fftSize)
	nFrames := 1 + len(x)/audio.HopLength
	bins := fftSize/2 + 1

	seg := make([]float64, fftSize)
	coeffs := make([]complex128, bins)
	prev := make([]float64, bins)
	cur := make([]float64, bins)
	env := make([]float64, nFrames)

	for t := 0; t < nFrames; t++ {
		if t%256 == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}
		// frame t is centred on sample t*hop; outside the signal is silence
		start := t*audio.HopLength - fftSize/2
		for i := range seg {
			j := start + i
			if j < 0 || j >= len(x) {
				seg[i] = 0
			} else {
				seg[i] = x[j] * hann[i]
			}
		}
		coeffs = fft.Coefficients(coeffs, seg)
		for k, c := range coeffs {
			p := cmplx.Abs(c)
			cur[k] = floorDB
			if p > 0 {
				cur[k] = math.Max(floorDB, 20*math.Log10(p))
			}
		}

		if t > 0 {
			var flux float64
			for k := range cur {
				if d := cur[k] - prev[k]; d > 0 {
					flux += d
				}
			}
			env[t] = flux / float64(bins)
		}
		prev, cur = cur, prev
	}
	return env, nil
}

// estimateTempo picks the autocorrelation lag of the onset envelope that
// maximises log-strength plus a log-normal tempo prior.
func estimateTempo(env []float64, fps float64) float64 {
	maxLag := min(int(math.Round(acSeconds*fps)), len(env)-1)
	minLag := max(1, int(math.Ceil(60*fps/maxBPM)))
	if maxLag < minLag {
		return 0
	}

	ac0 := autocorr(env, 0)
	if ac0 <= 0 {
		return 0
	}

	bestLag, bestScore := 0, math.Inf(-1)
	for lag := minLag; lag <= maxLag; lag++ {
		r := math.Max(autocorr(env, lag)/ac0, 0)
		bpm := 60 * fps / float64(lag)
		prior := -0.5 * math.Pow((math.Log2(bpm)-math.Log2(startBPM))/stdBPM, 2)
		if score := math.Log1p(1e6*r) + prior; score > bestScore {
			bestLag, bestScore = lag, score
		}
	}
	if bestLag == 0 {
		return 0
	}
	return 60 * fps / float64(bestLag)
}

func autocorr(x []float64, lag int) float64 {
	var s float64
	for i := lag; i < len(x); i++ {
		s += x[i] * x[i-lag]
	}
	return s
}

// trackBeats places beats by dynamic programming: each frame's score is its
// smoothed onset strength plus the best predecessor score, penalised by the
// squared log ratio of the gap to the expected period.
func trackBeats(env []float64, bpm, fps float64) []int {
	period := math.Round(60 * fps / bpm)
	if period < 1 || len(env) == 0 {
		return nil
	}

	onset := normalize(env)
	local := localScore(onset, int(period))
	maxLocal := floats.Max(local)

	n := len(local)
	cum := make([]float64, n)
	back := make([]int, n)
	first := true
	lo, hi := int(2*period), int(math.Round(period/2))

	for i := 0; i < n; i++ {
		best, bestPrev := math.Inf(-1), -1
		for prev := max(0, i-lo); prev <= i-hi; prev++ {
			s := cum[prev] - tightness*math.Pow(math.Log(float64(i-prev)/period), 2)
			if s > best {
				best, bestPrev = s, prev
			}
		}

		weak := local[i] < 0.01*maxLocal
		if bestPrev < 0 || (first && weak) {
			cum[i] = local[i]
			back[i] = -1
		} else {
			cum[i] = local[i] + best
			back[i] = bestPrev
		}
		if !weak {
			first = false
		}
	}

	tail := lastBeat(cum)
	if tail < 0 {
		return nil
	}
	var beats []int
	for b := tail; b >= 0; b = back[b] {
		beats = append(beats, b)
	}
	for i, j := 0, len(beats)-1; i < j; i, j = i+1, j-1 {
		beats[i], beats[j] = beats[j], beats[i]
	}
	return trimBeats(local, beats)
}

// normalize scales the envelope by its standard deviation.
func normalize(env []float64) []float64 {
	out := make([]float64, len(env))
	sd := stat.StdDev(env, nil)
	if !(sd > 0) {
		copy(out, env)
		return out
	}
	for i, v := range env {
		out[i] = v / sd
	}
	return out
}

// localScore smooths the onset envelope with a narrow Gaussian spanning one
// period either side.
func localScore(onset []float64, period int) []float64 {
	kernel := make([]float64, 2*period+1)
	for i := range kernel {
		k := float64(i - period)
		kernel[i] = math.Exp(-0.5 * math.Pow(k*32/float64(period), 2))
	}
	return convolveSame(onset, kernel)
}

func convolveSame(x, kernel []float64) []float64 {
	out := make([]float64, len(x))
	half := len(kernel) / 2
	for i := range x {
		var s float64
		for k, w := range kernel {
			j := i + half - k
			if j >= 0 && j < len(x) {
				s += x[j] * w
			}
		}
		out[i] = s
	}
	return out
}

// lastBeat returns the last local maximum of the cumulative score that
// reaches half the median local-maximum score.
func lastBeat(cum []float64) int {
	var peaks []float64
	isPeak := make([]bool, len(cum))
	for i := 1; i < len(cum); i++ {
		next := cum[i]
		if i+1 < len(cum) {
			next = cum[i+1]
		}
		if cum[i] > cum[i-1] && cum[i] >= next {
			isPeak[i] = true
			peaks = append(peaks, cum[i])
		}
	}
	if len(peaks) == 0 {
		return -1
	}
	sort.Float64s(peaks)
	threshold := 0.5 * stat.Quantile(0.5, stat.Empirical, peaks, nil)

	for i := len(cum) - 1; i >= 0; i-- {
		if isPeak[i] && cum[i] >= threshold {
			return i
		}
	}
	return -1
}

// trimBeats drops leading and trailing beats whose smoothed onset strength
// falls below half the RMS over all beats.
func trimBeats(local []float64, beats []int) []int {
	if len(beats) == 0 {
		return beats
	}
	strength := make([]float64, len(beats))
	for i, b := range beats {
		strength[i] = local[b]
	}
	smooth := convolveSame(strength, []float64{0, 0.5, 1, 0.5, 0})

	var sq float64
	for _, v := range smooth {
		sq += v * v
	}
	threshold := 0.5 * math.Sqrt(sq/float64(len(smooth)))

	first, last := -1, -1
	for i, v := range smooth {
		if v >= threshold {
			if first < 0 {
				first = i
			}
			last = i
		}
	}
	if first < 0 {
		return nil
	}
	return beats[first : last+1]
}
