package vectorstore

import (
	"fmt"
	"math"
	"sort"

	"github.com/aifinitydigital/groq-app-01/internal/domain"
)

// Storage persists section vectors and supports similarity search.
type Storage = domain.VectorStore

// Scorer converts the distance between two vectors into a similarity where
// higher is better, the way the store reports it: 1 - distance.
type Scorer func(a, b []float64) float64

// ScorerFor returns the scorer of a distance strategy.
//
//	cosine: 1 - cosine distance = cosine similarity
//	ip:     1 - (1 - a·b)      = a·b
//	l2:     1 - squared euclidean distance
func ScorerFor(strategy string) (Scorer, error) {
	switch strategy {
	case "cosine", "":
		return Cosine, nil
	case "ip":
		return Dot, nil
	case "l2":
		return func(a, b []float64) float64 { return 1 - SquaredL2(a, b) }, nil
	default:
		return nil, fmt.Errorf("unknown distance strategy: %s", strategy)
	}
}

func Dot(a, b []float64) float64 {
	n := min(len(a), len(b))
	sum := 0.0
	for i := 0; i < n; i++ {
		sum += a[i] * b[i]
	}
	return sum
}

// Cosine is 0 when either vector is zero.
func Cosine(a, b []float64) float64 {
	if len(a) != len(b) {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		dot += a[i] * b[i]
		na += a[i] * a[i]
		nb += b[i] * b[i]
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}

func SquaredL2(a, b []float64) float64 {
	n := min(len(a), len(b))
	sum := 0.0
	for i := 0; i < n; i++ {
		d := a[i] - b[i]
		sum += d * d
	}
	return sum
}

// Rank drops matches scoring below minScore, orders the rest best first and
// keeps at most topK. Equal scores keep their input order.
func Rank(matches []domain.Match, topK int, minScore float64) []domain.Match {
	if topK <= 0 {
		topK = 5
	}
	kept := matches[:0:0]
	for _, m := range matches {
		if m.Score >= minScore {
			kept = append(kept, m)
		}
	}
	sort.SliceStable(kept, func(i, j int) bool { return kept[i].Score > kept[j].Score })
	if len(kept) > topK {
		kept = kept[:topK]
	}
	return kept
}
