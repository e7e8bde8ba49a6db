package session

import "golang.org/x/sync/singleflight"

// PassphraseGate deduplicates concurrent requests for the same passphrase
// onto a single in-flight DKG. Keying by "curve:passphrase" also lets the
// same passphrase run DKG independently per curve.
type PassphraseGate struct {
	group singleflight.Group
}

func NewPassphraseGate() *PassphraseGate {
	return &PassphraseGate{}
}

// Do runs fn if no call for key is already in flight; otherwise it blocks
// until the in-flight call finishes and returns that call's result to every
// waiter, including the original caller.
func (g *PassphraseGate) Do(key string, fn func() (interface{}, error)) (interface{}, error, bool) {
	return g.group.Do(key, fn)
}
