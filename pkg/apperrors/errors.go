package apperrors

import "errors"

var (
	ErrNotFound     = errors.New("not found")
	ErrConflict     = errors.New("conflict")
	ErrValidation   = errors.New("validation failed")
	ErrTypeMismatch = errors.New("value type does not match column type")
	ErrNotRoot      = errors.New("project is not a draft root")
	ErrDatasetScope = errors.New("row and column belong to different datasets")
)
