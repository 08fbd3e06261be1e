// Package gatesdk holds the wire types the gatekeeper's HTTP surface speaks,
// shared between the handlers, the test suites and any external Go caller.
package gatesdk

// ErrorResponse is the JSON body of every error the gatekeeper emits itself
// (relayed upstream failures keep the provider's original body).
type ErrorResponse struct {
	Code        string `json:"error"`
	Description string `json:"error_description"`
}

// HealthChecks reports the state of each critical dependency.
type HealthChecks struct {
	Cache         string `json:"cache"`
	TrustMaterial string `json:"trust_material"`
}

// HealthResponse is returned by /livez and /readyz.
type HealthResponse struct {
	Status  string        `json:"status"`
	Uptime  string        `json:"uptime"`
	Version string        `json:"version"`
	Checks  *HealthChecks `json:"checks,omitempty"`
}
