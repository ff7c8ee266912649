package guard

import (
	"math"
	"sort"
)

// Scorer rates how similar two strings are on a 0..100 scale.
type Scorer interface {
	Score(a, b string) int
}

// ScorerFunc adapts a plain function to the Scorer interface.
type ScorerFunc func(a, b string) int

// Score calls f(a, b).
func (f ScorerFunc) Score(a, b string) int { return f(a, b) }

// PartialRatio scores the shorter string against windows of the longer one
// of the same length. Windows are anchored at the matching blocks of the two
// strings, so a window only counts where some run of characters lines up.
// Each window is compared with an indel ratio: 100 * 2*LCS / (len(a)+len(b)),
// rounded.
type PartialRatio struct{}

// Score implements Scorer.
func (PartialRatio) Score(a, b string) int {
	short, long := []rune(a), []rune(b)
	if len(short) > len(long) {
		short, long = long, short
	}
	if len(short) == 0 {
		return 0
	}

	best := 0
	for _, m := range matchingBlocks(short, long) {
		start := max(0, m.b-m.a)
		end := min(len(long), start+len(short))
		if r := ratio(short, long[start:end]); r > best {
			best = r
			if best == 100 {
				break
			}
		}
	}
	return best
}

// block is a run of n equal runes at a[a:] and b[b:].
type block struct {
	a, b, n int
}

// matchingBlocks finds the longest common run, then recurses on the pieces
// either side of it. A zero-length sentinel block at the ends of both
// strings is always last.
func matchingBlocks(a, b []rune) []block {
	b2j := make(map[rune][]int)
	for j, r := range b {
		b2j[r] = append(b2j[r], j)
	}

	var blocks []block
	pending := [][4]int{{0, len(a), 0, len(b)}}
	for len(pending) > 0 {
		q := pending[len(pending)-1]
		pending = pending[:len(pending)-1]
		alo, ahi, blo, bhi := q[0], q[1], q[2], q[3]

		m := longestMatch(a, b2j, alo, ahi, blo, bhi)
		if m.n == 0 {
			continue
		}
		blocks = append(blocks, m)
		if alo < m.a && blo < m.b {
			pending = append(pending, [4]int{alo, m.a, blo, m.b})
		}
		if m.a+m.n < ahi && m.b+m.n < bhi {
			pending = append(pending, [4]int{m.a + m.n, ahi, m.b + m.n, bhi})
		}
	}
	sort.Slice(blocks, func(i, j int) bool { return blocks[i].a < blocks[j].a })
	return append(blocks, block{a: len(a), b: len(b)})
}

// longestMatch returns the longest run of equal runes within a[alo:ahi] and
// b[blo:bhi], earliest first on ties. Runs ending at each b position are
// carried row to row in ascending j order.
func longestMatch(a []rune, b2j map[rune][]int, alo, ahi, blo, bhi int) block {
	type run struct{ j, k int }
	best := block{a: alo, b: blo}
	var prev, cur []run
	for i := alo; i < ahi; i++ {
		cur = cur[:0]
		p := 0
		js := b2j[a[i]]
		for _, j := range js[sort.SearchInts(js, blo):] {
			if j >= bhi {
				break
			}
			for p < len(prev) && prev[p].j < j-1 {
				p++
			}
			k := 1
			if p < len(prev) && prev[p].j == j-1 {
				k = prev[p].k + 1
			}
			cur = append(cur, run{j: j, k: k})
			if k > best.n {
				best = block{a: i - k + 1, b: j - k + 1, n: k}
			}
		}
		prev, cur = cur, prev
	}
	return best
}

// Ratio is the whole-string indel ratio of a and b.
func Ratio(a, b string) int {
	return ratio([]rune(a), []rune(b))
}

func ratio(a, b []rune) int {
	total := len(a) + len(b)
	if total == 0 {
		return 100
	}
	return int(math.Round(200 * float64(lcs(a, b)) / float64(total)))
}

// lcs returns the length of the longest common subsequence using two rows.
func lcs(a, b []rune) int {
	prev := make([]int, len(b)+1)
	cur := make([]int, len(b)+1)
	for _, ra := range a {
		for j, rb := range b {
			switch {
			case ra == rb:
				cur[j+1] = prev[j] + 1
			case prev[j+1] >= cur[j]:
				cur[j+1] = prev[j+1]
			default:
				cur[j+1] = cur[j]
			}
		}
		prev, cur = cur, prev
	}
	return prev[len(b)]
}
