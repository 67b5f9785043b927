package disposition

import "github.com/linnemanlabs/sift/internal/feedback"

// Route is where an item goes next given its disposition.
type Route string

const (
	RouteVetting       Route = "vetting"
	RouteDuplicate     Route = "duplicate"
	RouteNeedsRevision Route = "needs_revision"
	RouteArchived      Route = "archived"
)

var routes = map[feedback.Disposition]Route{
	feedback.DispositionActionable:           RouteVetting,
	feedback.DispositionAlreadyExists:        RouteDuplicate,
	feedback.DispositionResearchNeeded:       RouteNeedsRevision,
	feedback.DispositionConsiderationOnly:    RouteArchived,
	feedback.DispositionSignificantDeparture: RouteNeedsRevision,
	feedback.DispositionNeedsTriage:          RouteNeedsRevision,
}

// RouteFor maps a disposition to its route. Only actionable items continue
// to vetting; anything unrecognized needs revision.
func RouteFor(d feedback.Disposition) Route {
	if r, ok := routes[d]; ok {
		return r
	}
	return RouteNeedsRevision
}
