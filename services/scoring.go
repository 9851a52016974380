package services

import (
	"crypto/sha256"
	"fmt"
	"math/big"
	"math/bits"
	"sync"

	"badge-draw-system/errs"
)

// Built-in algorithm keys referenced by DrawType.AlgorithmKey.
const (
	AlgorithmSHA256HexProximity = "sha256_hex_proximity"
	AlgorithmHamming            = "hamming"
)

// Score is the raw output of a scorer: a similarity value plus optional
// display digests of the hashed inputs.
type Score struct {
	Value            float64
	DrawTopDigits    *string
	WinningTopDigits *string
}

// ScoreFunc compares a draw number against a winning value.
type ScoreFunc func(drawNumber, winningNumber string) (Score, error)

// ScoreEvaluation is the full evaluation result including the threshold
// verdict. Passed is nil when no threshold was supplied.
type ScoreEvaluation struct {
	AlgorithmKey     string
	Score            float64
	Threshold        *float64
	Passed           *bool
	DrawTopDigits    *string
	WinningTopDigits *string
}

// ScoringAlgorithm pairs a registry key with its scorer.
type ScoringAlgorithm struct {
	Key         string
	Description string
	Score       ScoreFunc
}

// Evaluate runs the scorer and applies the threshold, if any.
func (a ScoringAlgorithm) Evaluate(drawNumber, winningNumber string, threshold *float64) (ScoreEvaluation, error) {
	score, err := a.Score(drawNumber, winningNumber)
	if err != nil {
		return ScoreEvaluation{}, err
	}
	var passed *bool
	if threshold != nil {
		p := score.Value >= *threshold
		passed = &p
	}
	return ScoreEvaluation{
		AlgorithmKey:     a.Key,
		Score:            score.Value,
		Threshold:        threshold,
		Passed:           passed,
		DrawTopDigits:    score.DrawTopDigits,
		WinningTopDigits: score.WinningTopDigits,
	}, nil
}

// AlgorithmRegistry maps algorithm keys to scoring algorithms. Construct one
// explicitly and inject it where needed; there is no package-level instance.
type AlgorithmRegistry struct {
	mu         sync.RWMutex
	algorithms map[string]ScoringAlgorithm
}

func NewAlgorithmRegistry() *AlgorithmRegistry {
	return &AlgorithmRegistry{algorithms: make(map[string]ScoringAlgorithm)}
}

// NewDefaultRegistry returns a registry pre-loaded with the built-in scorers.
func NewDefaultRegistry() *AlgorithmRegistry {
	r := NewAlgorithmRegistry()
	_ = r.Register(ScoringAlgorithm{
		Key:         AlgorithmSHA256HexProximity,
		Description: "SHA-256 both inputs and score by numeric proximity of the digests.",
		Score:       sha256HexProximity,
	}, false)
	_ = r.Register(ScoringAlgorithm{
		Key:         AlgorithmHamming,
		Description: "Bitwise similarity over zero-padded ASCII bytes; 0.0 (no overlap) to 1.0 (perfect match).",
		Score:       hammingSimilarity,
	}, false)
	return r
}

// Register adds an algorithm under its key. Re-registering an existing key is
// a conflict unless replace is set.
func (r *AlgorithmRegistry) Register(algorithm ScoringAlgorithm, replace bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.algorithms[algorithm.Key]; exists && !replace {
		return errs.Conflictf("algorithm_already_registered", "algorithm %q is already registered", algorithm.Key)
	}
	r.algorithms[algorithm.Key] = algorithm
	return nil
}

func (r *AlgorithmRegistry) Get(key string) (ScoringAlgorithm, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	algorithm, ok := r.algorithms[key]
	if !ok {
		return ScoringAlgorithm{}, errs.NotFoundf("algorithm_unknown", "unknown scoring algorithm %q", key)
	}
	return algorithm, nil
}

// Keys returns the registered algorithm keys.
func (r *AlgorithmRegistry) Keys() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	keys := make([]string, 0, len(r.algorithms))
	for k := range r.algorithms {
		keys = append(keys, k)
	}
	return keys
}

// Proximity scoring constants. Fixed values of the published draw rules;
// changing them changes every historical score.
const (
	proximityOffset     = 0.6
	proximityMultiplier = 1.5
)

var (
	// 2^256 - 1, the largest possible SHA-256 digest value.
	maxDigestValue = new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 256), big.NewInt(1))
	// Divisor that reduces a digest to its displayable leading digits.
	topDigitsDivisor = new(big.Int).Exp(big.NewInt(10), big.NewInt(67), nil)
)

// sha256HexProximity hashes both ASCII inputs into 256-bit integers and maps
// their absolute distance onto [0, 1]. Identical inputs score exactly 1.0.
func sha256HexProximity(drawNumber, winningNumber string) (Score, error) {
	if err := requireASCII(drawNumber); err != nil {
		return Score{}, err
	}
	if err := requireASCII(winningNumber); err != nil {
		return Score{}, err
	}

	a := digestInt(drawNumber)
	b := digestInt(winningNumber)
	drawDigits := topDigits(a)
	winningDigits := topDigits(b)

	score := Score{DrawTopDigits: &drawDigits, WinningTopDigits: &winningDigits}
	if a.Cmp(b) == 0 {
		score.Value = 1.0
		return score, nil
	}

	diff := new(big.Int).Sub(a, b)
	diff.Abs(diff)
	ratio, _ := new(big.Float).Quo(new(big.Float).SetInt(diff), new(big.Float).SetInt(maxDigestValue)).Float64()
	score.Value = clamp01((proximityOffset - ratio) * proximityMultiplier)
	return score, nil
}

// hammingSimilarity compares the raw ASCII bytes bitwise, right-padding the
// shorter input with zero bytes. Two empty inputs count as a perfect match.
func hammingSimilarity(drawNumber, winningNumber string) (Score, error) {
	if err := requireASCII(drawNumber); err != nil {
		return Score{}, err
	}
	if err := requireASCII(winningNumber); err != nil {
		return Score{}, err
	}

	left := []byte(drawNumber)
	right := []byte(winningNumber)
	if len(left) == 0 && len(right) == 0 {
		return Score{Value: 1.0}, nil
	}

	maxLen := len(left)
	if len(right) > maxLen {
		maxLen = len(right)
	}

	distance := 0
	for i := 0; i < maxLen; i++ {
		var l, r byte
		if i < len(left) {
			l = left[i]
		}
		if i < len(right) {
			r = right[i]
		}
		distance += bits.OnesCount8(l ^ r)
	}

	return Score{Value: clamp01(1.0 - float64(distance)/float64(maxLen*8))}, nil
}

func requireASCII(s string) error {
	for i := 0; i < len(s); i++ {
		if s[i] > 0x7f {
			return errs.Validationf("non_ascii_input", "draw and winning numbers must contain only ASCII characters")
		}
	}
	return nil
}

func digestInt(s string) *big.Int {
	sum := sha256.Sum256([]byte(s))
	return new(big.Int).SetBytes(sum[:])
}

// topDigits returns the leading 10 decimal digits of the digest after floor
// division by 10^67, zero-padded on the left. Display only.
func topDigits(n *big.Int) string {
	s := new(big.Int).Quo(n, topDigitsDivisor).String()
	if len(s) > 10 {
		s = s[:10]
	}
	return fmt.Sprintf("%010s", s)
}

func clamp01(v float64) float64 {
	if v < 0.0 {
		return 0.0
	}
	if v > 1.0 {
		return 1.0
	}
	return v
}
