package api

import "net/http"

// health is a liveness probe for Docker/Kubernetes.
// Returns 200 OK with {"status":"ok"} as soon as the process serves.
func health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// readiness reports whether the index build has completed. Not ready
// responds 503 so load balancers hold traffic until the corpus is indexed.
func readiness(engine Engine) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		h := engine.Health()
		status := http.StatusOK
		if !h.Ready {
			status = http.StatusServiceUnavailable
		}
		writeJSON(w, status, h)
	}
}
