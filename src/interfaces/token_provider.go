package interfaces

// -----------------------------------------------------------------------------
// ITokenProvider yields the short-lived connection token appended to the
// transport URL. Owned by the auth collaborator; invoked on every (re)connect.
// -----------------------------------------------------------------------------

type ITokenProvider interface {

	// -----------------------------------------------------------------------------

	// Token returns a currently valid connection token, fetching a fresh one
	// from the auth endpoint when the cached token has expired.
	Token() (string, error)

	// -----------------------------------------------------------------------------

	// Invalidate discards the cached token so the next Token call refetches.
	Invalidate()
}
