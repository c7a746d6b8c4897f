package session

// Route identifiers the guard needs to know about.
const (
	RouteLogin = "login"
	RouteHome  = "home"
)

type RouteClass int

const (
	RoutePublic RouteClass = iota
	RouteProtected
)

type Decision struct {
	Allow      bool
	RedirectTo string
}

func allow() Decision                  { return Decision{Allow: true} }
func redirectTo(route string) Decision { return Decision{RedirectTo: route} }

// Guard decides, on every navigation event and session change, whether the
// current route may be shown. It is a pure function of its inputs and holds
// no state.
func Guard(sessionPresent bool, route string, class RouteClass) Decision {
	if !sessionPresent && class == RouteProtected {
		return redirectTo(RouteLogin)
	}
	if sessionPresent && route == RouteLogin {
		return redirectTo(RouteHome)
	}
	return allow()
}
