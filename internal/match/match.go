// Package match implements the Bozorth-style pairwise-compatibility
// fingerprint matcher of spec.md §4.9 (C3): build each template's
// inter-minutiae relationship table, find every pair of relationships
// (one per template) that are geometrically and angularly compatible, then
// search those compatible relation pairs for the largest set of minutia
// correspondences that are mutually consistent with one another, per
// original_source/libfprint/nbis/include/bozorth.h's DM/FD/FDD/TK/TXS/
// CTXS/MSTR/MMSTR/WWIM/QQ_SIZE tunables.
package match

import (
	"math"
	"sort"
)

// Params are the matcher's tunables; spec.md §9's Open Question asks that
// these be exposed explicitly rather than baked in. DefaultParams holds the
// Bozorth reference values from spec.md §4.9.
type Params struct {
	DM     int     // max relationship distance
	FD     int     // max squared distance-delta for compatibility
	FDD    int     // max squared combined theta-delta for compatibility
	TK     float64 // angular tolerance fraction
	TXS    int     // max squared separation-delta for a "tight" consistency match
	CTXS   int     // max squared separation-delta for a "loose" consistency match
	MSTR   int     // minimum relationship strength (votes) to seed a candidate correspondence
	MMSTR  int     // minimum mutual-consistency strength to join the growing cluster
	WWIM   int     // neighborhood window of prior cluster members checked for consistency
	QQSize int     // max relationships built per template
}

// DefaultParams returns the reference tunables of spec.md §4.9.
func DefaultParams() Params {
	return Params{
		DM: 125, FD: 5625, FDD: 500, TK: 0.05,
		TXS: 121, CTXS: 121801, MSTR: 3, MMSTR: 8,
		WWIM: 10, QQSize: 4000,
	}
}

// DefaultThreshold is the score a match is declared at or above.
const DefaultThreshold = 40

// Point is one matching-ready minutia: (x, y, theta in degrees).
type Point struct {
	X, Y  int
	Theta int
}

// relationship is the pairwise tuple Bozorth builds a table of: distance
// and the two minutiae's angles relative to the line joining them.
type relationship struct {
	i, j   int
	dist   float64
	theta1 int
	theta2 int
}

func buildRelationships(pts []Point, params Params) []relationship {
	var out []relationship
	for i := 0; i < len(pts); i++ {
		for j := i + 1; j < len(pts); j++ {
			a, b := pts[i], pts[j]
			dx, dy := float64(b.X-a.X), float64(b.Y-a.Y)
			dist := math.Hypot(dx, dy)
			if dist > float64(params.DM) {
				continue
			}
			joinAngle := math.Atan2(dy, dx) * 180 / math.Pi
			theta1 := normalizeAngle(float64(a.Theta) - joinAngle)
			theta2 := normalizeAngle(float64(b.Theta) - joinAngle)
			out = append(out, relationship{i: i, j: j, dist: dist, theta1: theta1, theta2: theta2})
			if len(out) >= params.QQSize {
				return out
			}
		}
	}
	return out
}

func normalizeAngle(deg float64) int {
	for deg < 0 {
		deg += 360
	}
	for deg >= 360 {
		deg -= 360
	}
	return int(deg)
}

func angleDiff(a, b int) int {
	d := a - b
	if d < 0 {
		d = -d
	}
	if d > 180 {
		d = 360 - d
	}
	return d
}

// compatible tests whether two relationships (one from the probe, one from
// the gallery) describe geometrically and angularly consistent pairs,
// using params.FD/FDD/TK as the tolerance budget.
func compatible(p, g relationship, params Params) bool {
	dd := p.dist - g.dist
	if int(dd*dd) > params.FD {
		return false
	}
	dt1 := angleDiff(p.theta1, g.theta1)
	dt2 := angleDiff(p.theta2, g.theta2)
	combined := dt1*dt1 + dt2*dt2
	if combined > params.FDD {
		return false
	}
	tolerance := params.TK * p.dist
	return float64(dt1) <= tolerance+10 && float64(dt2) <= tolerance+10
}

// crp is a compatible relation pair: a probe relationship and a gallery
// relationship found mutually compatible, implying a candidate minutia
// correspondence pi<->gi and pj<->gj.
type crp struct {
	pi, pj int
	gi, gj int
}

func buildCRPs(pr, gr []relationship, params Params) []crp {
	var out []crp
	for _, p := range pr {
		for _, g := range gr {
			if compatible(p, g, params) {
				out = append(out, crp{pi: p.i, pj: p.j, gi: g.i, gj: g.j})
			}
		}
	}
	return out
}

// corrKey names a single candidate minutia correspondence: probe index p
// paired with gallery index g.
type corrKey struct{ p, g int }

// correspondence is a candidate correspondence together with the number of
// compatible relation pairs that voted for it (its relationship strength).
type correspondence struct {
	p, g  int
	votes int
}

// voteCorrespondences tallies, for every (probe index, gallery index) pair
// implied by some CRP, how many CRPs imply it. A correspondence backed by
// more independent relationships is more likely to be a true match.
func voteCorrespondences(crps []crp) map[corrKey]int {
	votes := make(map[corrKey]int)
	for _, c := range crps {
		votes[corrKey{c.pi, c.gi}]++
		votes[corrKey{c.pj, c.gj}]++
	}
	return votes
}

func squaredSeparation(a, b Point) int {
	dx, dy := a.X-b.X, a.Y-b.Y
	return dx*dx + dy*dy
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}

// clusterCorrespondences grows the largest set of one-to-one minutia
// correspondences that are mutually consistent with one another: candidates
// are considered strongest-relationship-first (sort_order_decreasing in
// original_source/libfprint/nbis/bozorth3/bz_sort.c sorts Bozorth's
// candidate table the same way), and a candidate only joins the cluster if
// its position relative to the cluster's most recent WWIM members agrees,
// within TXS (tight) or CTXS (loose) squared-separation tolerance, with
// those members' own relative positions in both templates.
func clusterCorrespondences(candidates []correspondence, probe, gallery []Point, params Params) []correspondence {
	sort.SliceStable(candidates, func(i, j int) bool {
		if candidates[i].votes != candidates[j].votes {
			return candidates[i].votes > candidates[j].votes
		}
		if candidates[i].p != candidates[j].p {
			return candidates[i].p < candidates[j].p
		}
		return candidates[i].g < candidates[j].g
	})

	var cluster []correspondence
	usedP := make(map[int]bool)
	usedG := make(map[int]bool)

	for _, c := range candidates {
		if c.votes < params.MSTR || usedP[c.p] || usedG[c.g] {
			continue
		}
		if consistentWithCluster(c, cluster, probe, gallery, params) {
			cluster = append(cluster, c)
			usedP[c.p] = true
			usedG[c.g] = true
		}
	}
	return cluster
}

// consistentWithCluster reports whether candidate c's placement relative to
// the cluster's recent members agrees between the probe and gallery
// templates: a member within TXS of c counts double, one only within CTXS
// counts once, and c joins only if its accumulated agreement meets MMSTR
// (scaled down while the cluster is still smaller than the window).
func consistentWithCluster(c correspondence, cluster []correspondence, probe, gallery []Point, params Params) bool {
	if len(cluster) == 0 {
		return true
	}
	window := cluster
	if len(window) > params.WWIM {
		window = window[len(window)-params.WWIM:]
	}

	strength := 0
	for _, m := range window {
		pSep := squaredSeparation(probe[c.p], probe[m.p])
		gSep := squaredSeparation(gallery[c.g], gallery[m.g])
		diff := abs(pSep - gSep)
		switch {
		case diff <= params.TXS:
			strength += 2
		case diff <= params.CTXS:
			strength++
		}
	}

	need := params.MMSTR
	if 2*len(window) < need {
		need = 2 * len(window)
	}
	return strength >= need
}

// Score computes a Bozorth-style compatibility score between probe and
// gallery templates: build each side's relationship table, find every
// compatible relation pair between them, cluster the implied
// correspondences into the largest mutually consistent set, and count how
// many compatible relation pairs have both endpoints accepted into that
// cluster (spec.md §4.9).
func Score(probe, gallery []Point, params Params) int {
	pr := buildRelationships(probe, params)
	gr := buildRelationships(gallery, params)
	if len(pr) == 0 || len(gr) == 0 {
		return 0
	}

	crps := buildCRPs(pr, gr, params)
	if len(crps) == 0 {
		return 0
	}

	votes := voteCorrespondences(crps)
	candidates := make([]correspondence, 0, len(votes))
	for k, v := range votes {
		candidates = append(candidates, correspondence{p: k.p, g: k.g, votes: v})
	}

	cluster := clusterCorrespondences(candidates, probe, gallery, params)
	if len(cluster) == 0 {
		return 0
	}

	accepted := make(map[corrKey]bool, len(cluster))
	for _, c := range cluster {
		accepted[corrKey{c.p, c.g}] = true
	}

	score := 0
	for _, c := range crps {
		if accepted[corrKey{c.pi, c.gi}] && accepted[corrKey{c.pj, c.gj}] {
			score++
		}
	}
	return score
}

// Identify scores probe against each gallery template in order, returning
// the index of the first one scoring at or above threshold, or -1.
func Identify(probe []Point, gallery [][]Point, params Params, threshold int) int {
	for i, g := range gallery {
		if Score(probe, g, params) >= threshold {
			return i
		}
	}
	return -1
}
