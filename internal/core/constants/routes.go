package constants

const (
	PathAPIStatus    = "/api/status"
	PathAPIData      = "/api/data"
	PathAPIHistory   = "/api/history/"
	PathAPIIncidents = "/api/incidents"
	PathAPIBadge     = "/api/badge"
	PathAPIConfig    = "/api/config"

	PathHealthz = "/healthz"
	PathMetrics = "/metrics"
	PathVersion = "/version"
)
