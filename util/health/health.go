// Package health aggregates the health checks of a service into one status and JSON report.
package health

import (
	"context"
	"encoding/json"
	"net/http"
)

// Check is a named health check returning an HTTP status code, a message and an error.
type Check struct {
	Name  string
	Check func(context.Context, bool) (int, string, error)
}

type dependency struct {
	Resource string `json:"resource"`
	Status   int    `json:"status"`
	Error    string `json:"error,omitempty"`
	Message  string `json:"message,omitempty"`
}

type report struct {
	Status       int          `json:"status"`
	Dependencies []dependency `json:"dependencies"`
}

// CheckAll runs every check and reports http.StatusOK only when all of them pass. The message is a
// JSON document listing the result of each check.
func CheckAll(ctx context.Context, checkLiveness bool, checks []Check) (int, string, error) {
	r := report{
		Status:       http.StatusOK,
		Dependencies: make([]dependency, 0, len(checks)),
	}

	for _, check := range checks {
		status, message, err := check.Check(ctx, checkLiveness)
		if err != nil || status != http.StatusOK {
			r.Status = http.StatusServiceUnavailable
		}

		d := dependency{
			Resource: check.Name,
			Status:   status,
			Message:  message,
		}

		if err != nil {
			d.Error = err.Error()
		}

		r.Dependencies = append(r.Dependencies, d)
	}

	b, err := json.Marshal(r)
	if err != nil {
		return http.StatusInternalServerError, "", err
	}

	return r.Status, string(b), nil
}
