package guard

import (
	"context"
	"net/http"
)

// Routes maps views to URL paths for redirects.
type Routes struct {
	Home      string
	Dashboard string
}

func (r Routes) path(v View) string {
	switch v {
	case ViewDashboard:
		if r.Dashboard != "" {
			return r.Dashboard
		}
		return "/dashboard"
	default:
		if r.Home != "" {
			return r.Home
		}
		return "/"
	}
}

type decisionContextKey struct{}

// DecisionFromContext returns the decision that let the request through.
func DecisionFromContext(ctx context.Context) (Decision, bool) {
	d, ok := ctx.Value(decisionContextKey{}).(Decision)
	return d, ok
}

// Middleware guards the handlers of view. A redirect decision answers 303 See
// Other to the target's route; otherwise the decision is stored in the request
// context and next runs.
func Middleware(g *Guard, view View, routes Routes) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			d := g.Enter(r.Context(), view)
			if d.Action == Redirect {
				http.Redirect(w, r, routes.path(d.Target), http.StatusSeeOther)
				return
			}

			ctx := context.WithValue(r.Context(), decisionContextKey{}, d)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
