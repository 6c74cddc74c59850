package types

import "errors"

var (
	ErrInvalidID        = errors.New("id must be 1-64 characters, alphanumeric + underscore/hyphen only")
	ErrInvalidStatus    = errors.New("status must be present or absent")
	ErrInvalidRole      = errors.New("role must be teacher or student")
	ErrInvalidName      = errors.New("name must be 4-20 characters")
	ErrInvalidEmail     = errors.New("invalid email address")
	ErrInvalidPassword  = errors.New("password must be 6-64 characters")
	ErrInvalidClassName = errors.New("class name must be 3-100 characters")
)
