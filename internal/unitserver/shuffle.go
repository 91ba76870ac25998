package unitserver

import "math/rand"

// shuffledIndices returns a permutation of [0, n) seeded by coderID, so
// a coder's FixedSet order is randomized once and stays fixed across
// requests.
func shuffledIndices(coderID int64, n int) []int {
	indices := make([]int, n)
	for i := range indices {
		indices[i] = i
	}
	rnd := rand.New(rand.NewSource(coderID))
	rnd.Shuffle(n, func(i, j int) { indices[i], indices[j] = indices[j], indices[i] })
	return indices
}
