package privacy

import (
	"fmt"
	"math"
	"math/rand"

	"github.com/google/differential-privacy/go/v3/noise"
	dprand "github.com/google/differential-privacy/go/v3/rand"
	"gonum.org/v1/gonum/stat/distuv"
)

// NoiseSource supplies the randomness used by the differential privacy
// mechanisms. Implementations need not be safe for concurrent use; the
// engine creates one per invocation.
type NoiseSource interface {
	// AddLaplace returns x plus Laplace noise of scale sensitivity/epsilon
	AddLaplace(x, sensitivity, epsilon float64) (float64, error)
	// Float64 returns a uniform draw from the unit interval
	Float64() float64
	// Intn returns a uniform integer in [0, n)
	Intn(n int) int
	// GetName returns the source name
	GetName() string
}

// SeededNoiseSource draws from a seeded pseudo-random generator so that runs
// are reproducible. Not suitable for production releases.
type SeededNoiseSource struct {
	rng *rand.Rand
}

// NewSeededNoiseSource creates a reproducible noise source
func NewSeededNoiseSource(seed int64) *SeededNoiseSource {
	return &SeededNoiseSource{rng: rand.New(rand.NewSource(seed))}
}

func (s *SeededNoiseSource) GetName() string {
	return "seeded"
}

// AddLaplace samples Laplace noise through the inverse CDF
func (s *SeededNoiseSource) AddLaplace(x, sensitivity, epsilon float64) (float64, error) {
	scale, err := laplaceScale(sensitivity, epsilon)
	if err != nil {
		return 0, err
	}

	u := s.rng.Float64()
	for u == 0 {
		u = s.rng.Float64()
	}

	dist := distuv.Laplace{Mu: 0, Scale: scale}
	return x + dist.Quantile(u), nil
}

func (s *SeededNoiseSource) Float64() float64 {
	return s.rng.Float64()
}

func (s *SeededNoiseSource) Intn(n int) int {
	return s.rng.Intn(n)
}

// SecureNoiseSource uses cryptographically seeded randomness and the
// floating-point safe Laplace mechanism of the differential-privacy library.
type SecureNoiseSource struct{}

// NewSecureNoiseSource creates the default, non-deterministic noise source
func NewSecureNoiseSource() *SecureNoiseSource {
	return &SecureNoiseSource{}
}

func (s *SecureNoiseSource) GetName() string {
	return "secure"
}

// AddLaplace treats each cell as a single contribution bounded by sensitivity
func (s *SecureNoiseSource) AddLaplace(x, sensitivity, epsilon float64) (float64, error) {
	if _, err := laplaceScale(sensitivity, epsilon); err != nil {
		return 0, err
	}
	return noise.Laplace().AddNoiseFloat64(x, 1, sensitivity, epsilon, 0)
}

func (s *SecureNoiseSource) Float64() float64 {
	// Uniform draws from (0,1]; fold 1 back to 0 to keep [0,1)
	u := dprand.Uniform()
	if u >= 1 {
		return 0
	}
	return u
}

func (s *SecureNoiseSource) Intn(n int) int {
	return int(dprand.I63n(int64(n)))
}

func laplaceScale(sensitivity, epsilon float64) (float64, error) {
	if epsilon <= 0 || math.IsNaN(epsilon) || math.IsInf(epsilon, 0) {
		return 0, fmt.Errorf("epsilon must be positive and finite, got %f", epsilon)
	}
	if sensitivity <= 0 || math.IsNaN(sensitivity) || math.IsInf(sensitivity, 0) {
		return 0, fmt.Errorf("sensitivity must be positive and finite, got %f", sensitivity)
	}
	return sensitivity / epsilon, nil
}

// noiseDecimals is the number of decimals worth keeping after adding noise of
// the given scale.
func noiseDecimals(scale float64) int {
	d := int(-math.Log10(scale)) + 1
	if d < 0 {
		return 0
	}
	return d
}

// randomizedResponseProbability is the chance of replacing a true value
func randomizedResponseProbability(epsilon float64) float64 {
	return 1 / (1 + math.Exp(epsilon))
}
