// Package stage reports readiness for the components a pipeline run depends on.
package stage

import "context"

// Component names reported by the daemon health endpoint.
const (
	ComponentStore    = "task store"
	ComponentStorage  = "storage"
	ComponentDispatch = "dispatch"
)

// Health is one component's readiness as shown by /api/health and `meetscribe status`.
type Health struct {
	Name   string `json:"name"`
	Ready  bool   `json:"ready"`
	Detail string `json:"detail,omitempty"`
}

// Checker is implemented by the store, the object bucket, and the dispatcher.
type Checker interface {
	HealthCheck(context.Context) Health
}

func Healthy(name string) Health {
	return Health{Name: name, Ready: true}
}

func Unhealthy(name, detail string) Health {
	return Health{Name: name, Detail: detail}
}

// FromError reports name as ready when err is nil, otherwise unready with the error text.
func FromError(name string, err error) Health {
	if err != nil {
		return Unhealthy(name, err.Error())
	}
	return Healthy(name)
}

// CheckAll runs every non-nil checker in order; ready is false if any one is not.
func CheckAll(ctx context.Context, checkers ...Checker) (results []Health, ready bool) {
	ready = true
	results = make([]Health, 0, len(checkers))
	for _, checker := range checkers {
		if checker == nil {
			continue
		}
		health := checker.HealthCheck(ctx)
		ready = ready && health.Ready
		results = append(results, health)
	}
	return results, ready
}
