package submission

import (
	"errors"
	"fmt"
	"strings"
)

// Route is the closed set of delivery backends.
type Route int

// Delivery routes.
const (
	RouteLocal Route = iota
	RouteEmail
	RouteSftp
)

// ErrUnknownRoute is returned when a caller names a route outside the closed set.
var ErrUnknownRoute = errors.New("unknown delivery route")

// ParseRoute maps a caller-supplied route name onto the closed set.
// It fails before any packaging or delivery I/O is attempted.
func ParseRoute(s string) (Route, error) {
	switch strings.ToLower(s) {
	case "local", "":
		return RouteLocal, nil
	case "email":
		return RouteEmail, nil
	case "sftp":
		return RouteSftp, nil
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownRoute, s)
}

// String implements fmt.Stringer.
func (r Route) String() string {
	switch r {
	case RouteLocal:
		return "local"
	case RouteEmail:
		return "email"
	case RouteSftp:
		return "sftp"
	}
	return fmt.Sprintf("route(%d)", int(r))
}
