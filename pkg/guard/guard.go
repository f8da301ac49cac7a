// Package guard gates access to authenticated operations. It is advisory
// only: it checks token presence against the session store and never talks
// to the server, so a revoked-but-present token passes here and fails on the
// first real API call (which clears the session as a side effect).
package guard

import (
	"errors"

	"github.com/ntewolde/local-buyer-intelligence/pkg/session"
)

// State is the guard's decision. It starts Unknown and settles exactly once
// per Guard; a fresh Guard is the equivalent of a remount.
type State int

const (
	Unknown State = iota
	Authenticated
	Unauthenticated
)

func (s State) String() string {
	switch s {
	case Authenticated:
		return "authenticated"
	case Unauthenticated:
		return "unauthenticated"
	}
	return "unknown"
}

// ErrLoginRequired is returned when no session exists. The command layer
// turns it into a "run lbi login" hint, the CLI equivalent of the
// dashboard's redirect to the login view.
var ErrLoginRequired = errors.New("not logged in: run 'lbi login' first")

// Guard consults the session store once and caches the decision.
type Guard struct {
	sess  *session.Store
	state State
}

func New(sess *session.Store) *Guard {
	return &Guard{sess: sess}
}

// State returns the current decision without making one.
func (g *Guard) State() State {
	return g.state
}

// Check settles the state on first call and returns ErrLoginRequired when
// unauthenticated. Later calls return the settled decision unchanged, even
// if the session was cleared in between.
func (g *Guard) Check() error {
	if g.state == Unknown {
		if g.sess.IsAuthenticated() {
			g.state = Authenticated
		} else {
			g.state = Unauthenticated
		}
	}
	if g.state == Unauthenticated {
		return ErrLoginRequired
	}
	return nil
}
