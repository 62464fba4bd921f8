package optimization

import (
	"fmt"
	"math"

	"github.com/aristath/allocator/pkg/formulas"
	"gonum.org/v1/gonum/mat"
)

// Linkage selects the cluster distance used to build the HRP dendrogram.
type Linkage string

const (
	LinkageSingle   Linkage = "single"
	LinkageComplete Linkage = "complete"
	LinkageAverage  Linkage = "average"
)

type clusterNode struct {
	left    *clusterNode
	right   *clusterNode
	leaves  []int
	minLeaf int
}

// HierarchicalRiskParity allocates long-only weights by recursive bisection
// over the quasi-diagonal order of a correlation dendrogram:
//  1. correlation from covariance
//  2. distance d_ij = sqrt(2(1 - ρ_ij))
//  3. agglomerative clustering with deterministic tie-break
//  4. leaf order from the dendrogram
//  5. split weight between halves by inverse cluster variance
func (s *StaticAllocator) HierarchicalRiskParity(cov mat.Symmetric, linkage Linkage) (*Allocation, error) {
	n := cov.SymmetricDim()
	if n == 0 {
		return nil, fmt.Errorf("empty covariance matrix: %w", ErrDimensionMismatch)
	}
	if n == 1 {
		return &Allocation{Weights: []float64{1}, Variance: cov.At(0, 0)}, nil
	}

	corr, err := formulas.CorrelationMatrixFromCovariance(cov)
	if err != nil {
		return nil, fmt.Errorf("failed to calculate correlation matrix from covariance: %w", err)
	}
	switch linkage {
	case "":
		linkage = LinkageSingle
	case LinkageSingle, LinkageComplete, LinkageAverage:
	default:
		return nil, fmt.Errorf("linkage %q: %w", linkage, ErrInvalidOptions)
	}

	root := buildDendrogram(formulas.CorrelationToDistance(corr), linkage)
	order := quasiDiagonalOrder(root)
	if len(order) != n {
		return nil, fmt.Errorf("invalid HRP order length %d", len(order))
	}

	weights := make([]float64, n)
	for i := range weights {
		weights[i] = 1.0
	}
	bisect(weights, cov, order)

	sum := 0.0
	for _, w := range weights {
		sum += w
	}
	if sum <= 0 || math.IsNaN(sum) || math.IsInf(sum, 0) {
		return nil, fmt.Errorf("invalid HRP weight sum: %v", sum)
	}
	for i := range weights {
		weights[i] /= sum
	}

	s.log.Debug().Int("assets", n).Str("linkage", string(linkage)).Msg("HRP allocation solved")

	return &Allocation{Weights: weights, Variance: quadForm(cov, weights)}, nil
}

func buildDendrogram(dist [][]float64, linkage Linkage) *clusterNode {
	clusters := make([]*clusterNode, len(dist))
	for i := range dist {
		clusters[i] = &clusterNode{leaves: []int{i}, minLeaf: i}
	}

	for len(clusters) > 1 {
		bestI, bestJ := 0, 1
		bestD := clusterDistance(dist, clusters[0], clusters[1], linkage)
		for i := 0; i < len(clusters); i++ {
			for j := i + 1; j < len(clusters); j++ {
				d := clusterDistance(dist, clusters[i], clusters[j], linkage)
				if d < bestD || (d == bestD && pairLess(clusters[i], clusters[j], clusters[bestI], clusters[bestJ])) {
					bestD, bestI, bestJ = d, i, j
				}
			}
		}

		left, right := clusters[bestI], clusters[bestJ]
		if right.minLeaf < left.minLeaf {
			left, right = right, left
		}
		leaves := make([]int, 0, len(left.leaves)+len(right.leaves))
		leaves = append(leaves, left.leaves...)
		leaves = append(leaves, right.leaves...)
		merged := &clusterNode{left: left, right: right, leaves: leaves, minLeaf: left.minLeaf}

		next := make([]*clusterNode, 0, len(clusters)-1)
		for k, c := range clusters {
			if k != bestI && k != bestJ {
				next = append(next, c)
			}
		}
		clusters = append(next, merged)
	}

	return clusters[0]
}

// pairLess orders cluster pairs by their smallest leaves.
func pairLess(a1, b1, a2, b2 *clusterNode) bool {
	x1, y1 := a1.minLeaf, b1.minLeaf
	if y1 < x1 {
		x1, y1 = y1, x1
	}
	x2, y2 := a2.minLeaf, b2.minLeaf
	if y2 < x2 {
		x2, y2 = y2, x2
	}
	if x1 != x2 {
		return x1 < x2
	}
	return y1 < y2
}

func clusterDistance(dist [][]float64, a, b *clusterNode, linkage Linkage) float64 {
	switch linkage {
	case LinkageComplete:
		worst := math.Inf(-1)
		for _, i := range a.leaves {
			for _, j := range b.leaves {
				worst = math.Max(worst, dist[i][j])
			}
		}
		return worst
	case LinkageAverage:
		sum := 0.0
		for _, i := range a.leaves {
			for _, j := range b.leaves {
				sum += dist[i][j]
			}
		}
		return sum / float64(len(a.leaves)*len(b.leaves))
	default:
		best := math.Inf(1)
		for _, i := range a.leaves {
			for _, j := range b.leaves {
				best = math.Min(best, dist[i][j])
			}
		}
		return best
	}
}

func quasiDiagonalOrder(node *clusterNode) []int {
	if node.left == nil && node.right == nil {
		return []int{node.leaves[0]}
	}
	return append(quasiDiagonalOrder(node.left), quasiDiagonalOrder(node.right)...)
}

func bisect(weights []float64, cov mat.Symmetric, order []int) {
	if len(order) <= 1 {
		return
	}
	split := len(order) / 2
	left, right := order[:split], order[split:]

	vLeft := clusterVariance(cov, left)
	vRight := clusterVariance(cov, right)

	alpha := 0.5
	if vLeft+vRight > 0 {
		alpha = 1.0 - vLeft/(vLeft+vRight)
	}
	alpha = math.Max(0.0, math.Min(1.0, alpha))

	for _, idx := range left {
		weights[idx] *= alpha
	}
	for _, idx := range right {
		weights[idx] *= 1.0 - alpha
	}

	bisect(weights, cov, left)
	bisect(weights, cov, right)
}

// clusterVariance is the variance of the inverse-variance portfolio of idxs.
func clusterVariance(cov mat.Symmetric, idxs []int) float64 {
	if len(idxs) == 1 {
		return math.Max(cov.At(idxs[0], idxs[0]), 0.0)
	}

	inv := make([]float64, len(idxs))
	sumInv := 0.0
	for k, i := range idxs {
		inv[k] = 1.0 / math.Max(cov.At(i, i), 1e-12)
		sumInv += inv[k]
	}

	variance := 0.0
	for a, i := range idxs {
		for b, j := range idxs {
			variance += inv[a] * cov.At(i, j) * inv[b] / (sumInv * sumInv)
		}
	}
	return math.Max(variance, 0.0)
}
