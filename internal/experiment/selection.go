package experiment

import (
	"fmt"

	"github.com/fyrsmithlabs/bioadapt/internal/pool"
)

// Draw cut-offs for the weighted pool choice.
const (
	studyCutoff = 0.39
	quizCutoff  = 0.99
)

// selectionOrder returns the pools to try, most preferred first, for a
// uniform draw r in [0, 1).
func selectionOrder(r float64) [3]PoolName {
	switch {
	case r < studyCutoff:
		return [3]PoolName{PoolStudy, PoolQuiz, PoolDone}
	case r < quizCutoff:
		return [3]PoolName{PoolQuiz, PoolStudy, PoolDone}
	default:
		return [3]PoolName{PoolDone, PoolQuiz, PoolStudy}
	}
}

// SelectPool returns the first non-empty pool in the preference order for r.
// Every pool being empty breaks the session precondition and yields
// pool.ErrEmptyPool.
func SelectPool(r float64, sizes PoolSizes) (PoolName, error) {
	order := selectionOrder(r)
	for _, name := range order {
		if sizes.Of(name) > 0 {
			return name, nil
		}
	}
	return "", fmt.Errorf("selecting pool for draw %.3f: %w", r, pool.ErrEmptyPool)
}
