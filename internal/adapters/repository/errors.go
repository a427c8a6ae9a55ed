package repository

import "errors"

// Sentinel kinds for store errors.
var (
	ErrNotFound      = errors.New("entity not found")
	ErrAlreadyExists = errors.New("entity already exists")
)
