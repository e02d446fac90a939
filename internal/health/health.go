package health

import (
	"context"
	"net/http"
	"strings"
	"time"

	"agenda-backend/internal/transport"

	"github.com/go-chi/chi/v5"
)

// Check is a named dependency probe run by /readyz.
type Check struct {
	Name  string
	Check func(context.Context) error
}

const checkTimeout = 2 * time.Second

// Mount registers /healthz (process up) and /readyz (every check passes).
func Mount(r chi.Router, checks ...Check) {
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		transport.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Get("/readyz", func(w http.ResponseWriter, r *http.Request) {
		failures := make(map[string]string)
		for _, c := range checks {
			if c.Check == nil {
				continue
			}
			ctx, cancel := context.WithTimeout(r.Context(), checkTimeout)
			err := c.Check(ctx)
			cancel()
			if err != nil {
				name := c.Name
				if name == "" {
					name = "dependency"
				}
				failures[name] = err.Error()
			}
		}
		if len(failures) > 0 {
			transport.WriteError(w, http.StatusServiceUnavailable, "not ready", failures)
			return
		}
		transport.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
}

// Names lists the configured check names, for startup logging.
func Names(checks []Check) string {
	names := make([]string, 0, len(checks))
	for _, c := range checks {
		names = append(names, c.Name)
	}
	return strings.Join(names, ",")
}
