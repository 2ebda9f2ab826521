package semantic

import "fmt"

// Candidate is a single similarity-search hit.
type Candidate struct {
	ID       string  `json:"id"`
	Distance float32 `json:"distance"`
}

// DimensionError reports a vector whose length does not match the index.
type DimensionError struct {
	Expected int
	Actual   int
}

func (e *DimensionError) Error() string {
	return fmt.Sprintf("semantic: dimension mismatch: expected %d, got %d", e.Expected, e.Actual)
}
