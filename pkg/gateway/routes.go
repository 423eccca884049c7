package gateway

import "net/http"

// route describes one backend endpoint. Read routes serialize their
// arguments on the query string, mutation routes carry a JSON body.
// Routes with auth set require a valid access token; the auth routes
// themselves ride on the HTTP-only refresh cookie.
type route struct {
	method string
	path   string
	auth   bool
}

var (
	routeLogin   = route{method: http.MethodPost, path: "/login"}
	routeLogout  = route{method: http.MethodPost, path: "/logout"}
	routeRefresh = route{method: http.MethodPost, path: "/refresh"}

	routeUser         = route{method: http.MethodPost, path: "/user", auth: true}
	routeSettings     = route{method: http.MethodPost, path: "/settings", auth: true}
	routeUpdateConf   = route{method: http.MethodPost, path: "/update-conf", auth: true}
	routeUpdateOTA    = route{method: http.MethodPost, path: "/update-ota", auth: true}
	routeHideDevice   = route{method: http.MethodPost, path: "/hide-device", auth: true}
	routeSubscription = route{method: http.MethodPost, path: "/subscription", auth: true}

	routeOTAList    = route{method: http.MethodGet, path: "/ota-list", auth: true}
	routeHistory    = route{method: http.MethodGet, path: "/history", auth: true}
	routeDetections = route{method: http.MethodGet, path: "/detections", auth: true}
)
