package model

import "gonum.org/v1/gonum/mat"

// Batch represents a minibatch of features and labels, one example per row.
type Batch struct {
	X *mat.Dense
	Y *mat.Dense
}
