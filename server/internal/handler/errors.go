package handler

import "errors"

var (
	errMissingToken = errors.New("missing bearer token")
	errInvalidToken = errors.New("invalid or revoked token")
)
