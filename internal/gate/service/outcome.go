package service

// OutcomeKind tags the terminal state of a verify or callback request.
type OutcomeKind int

const (
	// OutcomeAuthorized: the bearer is in. AccessToken carries the cookie
	// value when SetCookie is true (i.e. the pair was just minted/refreshed).
	OutcomeAuthorized OutcomeKind = iota

	// OutcomeRedirect: unauthenticated; send the bearer to the provider's
	// authorize endpoint.
	OutcomeRedirect

	// OutcomeUpstreamError: a callback-time provider failure relayed
	// verbatim so the caller gets full diagnostic detail.
	OutcomeUpstreamError

	// OutcomeIntegrityError: the cached pair's access token differs from the
	// presented one. A key-derivation or collision bug; fatal for the
	// request and never silently repaired.
	OutcomeIntegrityError

	// OutcomeServerError: an internal failure (e.g. the cache rejected a
	// save for a pair we just paid an authorization code for).
	OutcomeServerError
)

// Outcome is the tagged result of a lifecycle operation. The HTTP layer maps
// it onto transport responses; the service itself never touches a
// ResponseWriter.
type Outcome struct {
	Kind OutcomeKind

	// Authorized
	SetCookie   bool
	AccessToken string

	// Redirect
	RedirectURL string

	// UpstreamError
	Status int
	Body   []byte
}

func authorized() Outcome {
	return Outcome{Kind: OutcomeAuthorized}
}

func authorizedWithCookie(accessToken string) Outcome {
	return Outcome{Kind: OutcomeAuthorized, SetCookie: true, AccessToken: accessToken}
}

func redirect(url string) Outcome {
	return Outcome{Kind: OutcomeRedirect, RedirectURL: url}
}

func upstreamError(status int, body []byte) Outcome {
	return Outcome{Kind: OutcomeUpstreamError, Status: status, Body: body}
}
