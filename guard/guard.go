package guard

import (
	"context"

	goAuthClient "github.com/MrEthical07/goAuthClient"
)

// View names a guarded view.
type View uint8

const (
	ViewHome View = iota
	ViewDashboard
)

func (v View) String() string {
	switch v {
	case ViewHome:
		return "home"
	case ViewDashboard:
		return "dashboard"
	default:
		return "unknown"
	}
}

// Action is what the caller must do with the view.
type Action uint8

const (
	// Render the requested view.
	Render Action = iota
	// Redirect to Decision.Target instead.
	Redirect
)

// Decision is the outcome of [Guard.Enter].
type Decision struct {
	Action Action
	Target View
	// State is the settled state the decision was made on.
	State goAuthClient.State
}

// StateSource reports the authentication state once any refresh has settled.
// *goAuthClient.Engine implements it.
type StateSource interface {
	AwaitState(ctx context.Context) (goAuthClient.State, error)
}

// Guard evaluates view entries against a [StateSource].
type Guard struct {
	source StateSource
}

// New returns a Guard reading state from source.
func New(source StateSource) *Guard {
	return &Guard{source: source}
}

// Enter decides whether view may render. If ctx ends while a refresh is
// pending the user is treated as not authenticated.
func (g *Guard) Enter(ctx context.Context, view View) Decision {
	st := goAuthClient.StateAnonymous
	if g != nil && g.source != nil {
		if s, err := g.source.AwaitState(ctx); err == nil {
			st = s
		}
	}
	authenticated := st == goAuthClient.StateAuthenticated

	switch {
	case view == ViewHome && authenticated:
		return Decision{Action: Redirect, Target: ViewDashboard, State: st}
	case view == ViewDashboard && !authenticated:
		return Decision{Action: Redirect, Target: ViewHome, State: st}
	default:
		return Decision{Action: Render, Target: view, State: st}
	}
}
