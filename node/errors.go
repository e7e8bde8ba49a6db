package node

import "errors"

var (
	errMissingPassphrase = errors.New("node: missing passphrase")
	errKeyNotFound       = errors.New("node: no key package for this passphrase")
	errMessageMismatch   = errors.New("node: message does not match nonce handle")
	errHandleExpired     = errors.New("node: handle expired")
	errHandleAlreadyUsed = errors.New("node: nonce handle already consumed by a prior round2 call")
	errIncompleteRoster  = errors.New("node: round1_packages does not cover the full participant set")
	errVerificationFailed = errors.New("node: share or proof of knowledge failed verification")
)
