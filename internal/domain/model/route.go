package model

import "net/url"

// Route is an explicit navigation intent emitted by the application services
// and translated into an HTTP redirect (or a client-side location change) by
// the driving adapter. Services never touch the navigation environment
// directly; this keeps the core testable without one.
type Route string

const (
	RouteNone      Route = ""
	RouteLogin     Route = "/login"
	RouteDashboard Route = "/dashboard"
)

// LoginWithError returns the login route carrying an error reason as a query
// parameter, e.g. "/login?error=auth_failed".
func LoginWithError(reason string) Route {
	return Route("/login?error=" + url.QueryEscape(reason))
}
