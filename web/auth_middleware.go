package web

import "net/http"

func (s *APIServer) authMiddleware(next http.HandlerFunc) http.HandlerFunc {
	if s.secretKey == "" {
		return next
	}
	return func(w http.ResponseWriter, r *http.Request) {
		operator, ok := operatorFromToken(requestToken(r), s.secretKey)
		if !ok {
			writeJSON(w, http.StatusUnauthorized, errorBody{Error: "invalid or missing token"})
			return
		}
		s.logger.Debugw("api request", "operator", operator, "method", r.Method, "path", r.URL.Path)
		next(w, r)
	}
}
