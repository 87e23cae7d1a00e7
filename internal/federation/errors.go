package federation

import "errors"

var (
	ErrProviderNotFound      = errors.New("provider not found or not enabled")
	ErrProviderMisconfigured = errors.New("provider is misconfigured")
	ErrMissingRefreshToken   = errors.New("refresh token is required")
)
