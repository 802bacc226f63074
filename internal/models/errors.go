package models

import (
	"errors"
	"fmt"
)

// Sentinel errors shared by the analysis and forecast packages
var (
	// ErrMissingData indicates a required field was absent or unparseable
	ErrMissingData = errors.New("missing required data")

	// ErrInsufficientHistory indicates a window below a component's minimum sample count
	ErrInsufficientHistory = errors.New("insufficient history")

	// ErrInvalidSeries indicates non-monotonic or duplicate timestamps in a series
	ErrInvalidSeries = errors.New("invalid time series")
)

// DataQualityError describes a sample that failed validation (e.g. used > total)
type DataQualityError struct {
	Node   string
	Field  string
	Reason string
}

func (e *DataQualityError) Error() string {
	return fmt.Sprintf("data quality error on node %s field %s: %s", e.Node, e.Field, e.Reason)
}

// IsDataQuality reports whether err is a DataQualityError
func IsDataQuality(err error) bool {
	var dqe *DataQualityError
	return errors.As(err, &dqe)
}
