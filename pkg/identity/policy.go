package identity

import "net/http"

// Policy maps requests to identity tokens and identity state back onto
// responses. Implementations MUST be goroutine-safe.
type Policy interface {
	// Resolve extracts the identity token from r. It returns ok == false
	// when the request carries no identity, and an error when it carries a
	// malformed or tampered one.
	Resolve(r *http.Request) (token string, ok bool, err error)

	// Commit persists or clears the identity on w according to state. It
	// runs after the handler, before the response is written out, so
	// headers set on w are still sent.
	Commit(r *http.Request, state Context, w http.ResponseWriter) error
}
