package password

// similarityRatio computes the sequence similarity between two strings as
// 2*M/T, where M is the total size of the matching blocks found by
// longest-common-substring recursion and T is the combined length. Order
// matters: an anagram of an attribute scores low, only genuinely shared
// runs of characters score high.
func similarityRatio(a, b string) float64 {
	ra, rb := []rune(a), []rune(b)
	if len(ra)+len(rb) == 0 {
		return 1
	}

	m := &blockMatcher{a: ra, b2j: make(map[rune][]int, len(rb))}
	for j, c := range rb {
		m.b2j[c] = append(m.b2j[c], j)
	}

	matches := m.matchTotal(0, len(ra), 0, len(rb))
	return 2 * float64(matches) / float64(len(ra)+len(rb))
}

type blockMatcher struct {
	a   []rune
	b2j map[rune][]int
}

// longestMatch finds the longest run of identical runes within the given
// window of both sequences, preferring the earliest one on ties.
func (m *blockMatcher) longestMatch(alo, ahi, blo, bhi int) (besti, bestj, size int) {
	besti, bestj = alo, blo
	j2len := map[int]int{}
	for i := alo; i < ahi; i++ {
		next := map[int]int{}
		for _, j := range m.b2j[m.a[i]] {
			if j < blo {
				continue
			}
			if j >= bhi {
				break
			}
			k := j2len[j-1] + 1
			next[j] = k
			if k > size {
				besti, bestj, size = i-k+1, j-k+1, k
			}
		}
		j2len = next
	}
	return besti, bestj, size
}

// matchTotal sums the sizes of all matching blocks: the longest match in
// the window plus, recursively, the matches to either side of it.
func (m *blockMatcher) matchTotal(alo, ahi, blo, bhi int) int {
	i, j, k := m.longestMatch(alo, ahi, blo, bhi)
	if k == 0 {
		return 0
	}
	return k + m.matchTotal(alo, i, blo, j) + m.matchTotal(i+k, ahi, j+k, bhi)
}
