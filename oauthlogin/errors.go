package oauthlogin

import "errors"

var (
	InvalidStateErr    = errors.New("oauth state mismatch")
	InvalidNonceErr    = errors.New("id token nonce mismatch")
	ProviderDeniedErr  = errors.New("provider denied authorization")
	MissingIDTokenErr  = errors.New("no id token in provider response")
	MissingClientIDErr = errors.New("oauth client id not configured")
)
