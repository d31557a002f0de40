// Package compare implements field-level matching between declared and
// extracted identity data.
package compare

// Ratio returns the Ratcliff/Obershelp similarity of two strings:
// 2*M/T where M is the total length of matched blocks and T the combined
// length of both strings. 1.0 for two empty strings.
func Ratio(a, b string) float64 {
	ra, rb := []rune(a), []rune(b)
	total := len(ra) + len(rb)
	if total == 0 {
		return 1.0
	}
	matched := matchingRunes(ra, rb)
	return 2.0 * float64(matched) / float64(total)
}

// matchingRunes sums matched block lengths: longest common substring,
// then recurse on the pieces to its left and right.
func matchingRunes(a, b []rune) int {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}

	ai, bi, size := longestCommonBlock(a, b)
	if size == 0 {
		return 0
	}

	matched := size
	matched += matchingRunes(a[:ai], b[:bi])
	matched += matchingRunes(a[ai+size:], b[bi+size:])
	return matched
}

// longestCommonBlock finds the longest common substring of a and b,
// returning its start offsets and length. Earliest block wins ties,
// mirroring the classic algorithm.
func longestCommonBlock(a, b []rune) (bestA, bestB, bestSize int) {
	// lengths[j] is the common-suffix length ending at a[i-1], b[j-1]
	// from the previous row.
	lengths := make([]int, len(b)+1)

	for i := 1; i <= len(a); i++ {
		prev := 0
		for j := 1; j <= len(b); j++ {
			cur := lengths[j]
			if a[i-1] == b[j-1] {
				lengths[j] = prev + 1
				if lengths[j] > bestSize {
					bestSize = lengths[j]
					bestA = i - bestSize
					bestB = j - bestSize
				}
			} else {
				lengths[j] = 0
			}
			prev = cur
		}
	}
	return bestA, bestB, bestSize
}

// tokenOverlap returns the Jaccard similarity of two token sets.
func tokenOverlap(a, b []string) float64 {
	if len(a) == 0 && len(b) == 0 {
		return 1.0
	}
	if len(a) == 0 || len(b) == 0 {
		return 0.0
	}

	setA := make(map[string]bool, len(a))
	for _, t := range a {
		setA[t] = true
	}
	setB := make(map[string]bool, len(b))
	for _, t := range b {
		setB[t] = true
	}

	common := 0
	union := len(setA)
	for t := range setB {
		if setA[t] {
			common++
		} else {
			union++
		}
	}
	return float64(common) / float64(union)
}
