package validate

import (
	"math"
	"math/rand"

	"causet/internal/trace"
)

// minSplitRows is the smallest split side that can still be scored.
const minSplitRows = 2

// TrainTestSplit shuffles the table deterministically for the given
// seed and reserves ceil(n*testSize) rows for the test side. Fails with
// InsufficientDataError when either side would end up with fewer than
// two rows.
func TrainTestSplit(t *trace.Trace, testSize float64, seed int64) (*trace.Trace, *trace.Trace, error) {
	if t == nil {
		return nil, nil, &DataError{Msg: "nil trace table"}
	}
	if testSize <= 0 || testSize >= 1 {
		return nil, nil, &DataError{Msg: "test_size must be in (0, 1)"}
	}

	n := t.NumRows()
	testN := int(math.Ceil(float64(n) * testSize))
	trainN := n - testN
	if testN < minSplitRows {
		return nil, nil, &InsufficientDataError{Needed: minSplitRows, Got: testN, Side: "test"}
	}
	if trainN < minSplitRows {
		return nil, nil, &InsufficientDataError{Needed: minSplitRows, Got: trainN, Side: "train"}
	}

	idx := make([]int, n)
	for i := range idx {
		idx[i] = i
	}
	rng := rand.New(rand.NewSource(seed))
	rng.Shuffle(n, func(i, j int) { idx[i], idx[j] = idx[j], idx[i] })

	return t.Select(idx[testN:]), t.Select(idx[:testN]), nil
}
