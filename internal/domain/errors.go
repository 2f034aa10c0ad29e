package domain

import "errors"

// ErrInvalidDataset indicates that a dataset document could not be loaded.
var ErrInvalidDataset = errors.New("invalid dataset")

// ErrInvalidScoreWrite indicates that a score write is structurally invalid.
var ErrInvalidScoreWrite = errors.New("invalid score write")

// ErrInvalidScoreValue indicates that a value violates the constraint of its mode.
var ErrInvalidScoreValue = errors.New("invalid score value")

// ErrUnknownDimension indicates that a dimension key is not part of the rubric.
var ErrUnknownDimension = errors.New("unknown rubric dimension")

// ErrUnknownSample indicates that a sample id is not present in the loaded dataset.
var ErrUnknownSample = errors.New("unknown sample")

// ErrTurnOutOfRange indicates that a turn index exceeds the sample's round count.
var ErrTurnOutOfRange = errors.New("turn index out of range")

// ErrInvalidExport indicates that an export request or document is invalid.
var ErrInvalidExport = errors.New("invalid export")
