package admin

import (
	"encoding/json"
	"net/http"
)

// writeJSON writes a JSON response with the given status code, echoing the
// request ID for correlation.
func writeJSON(w http.ResponseWriter, r *http.Request, status int, data interface{}) {
	if requestID := GetRequestID(r.Context()); requestID != "" {
		w.Header().Set("X-Request-Id", requestID)
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		_ = json.NewEncoder(w).Encode(data)
	}
}

// writeProblem writes an RFC7807 error response.
func writeProblem(w http.ResponseWriter, r *http.Request, problem *Problem) {
	problem.Instance = r.URL.Path
	problem.Write(w)
}

func badRequest(w http.ResponseWriter, r *http.Request, detail string) {
	writeProblem(w, r, NewBadRequest(GetRequestID(r.Context()), detail))
}

func unauthorized(w http.ResponseWriter, r *http.Request, detail string) {
	writeProblem(w, r, NewUnauthorized(GetRequestID(r.Context()), detail))
}

func notFound(w http.ResponseWriter, r *http.Request, detail string) {
	writeProblem(w, r, NewNotFound(GetRequestID(r.Context()), detail))
}

func internalError(w http.ResponseWriter, r *http.Request, detail string) {
	writeProblem(w, r, NewInternalError(GetRequestID(r.Context()), detail))
}

func serviceUnavailable(w http.ResponseWriter, r *http.Request, detail string) {
	writeProblem(w, r, NewServiceUnavailable(GetRequestID(r.Context()), detail))
}
