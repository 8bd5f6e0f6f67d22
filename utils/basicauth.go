package utils

import (
	"crypto/subtle"
	"net/http"

	log "github.com/sirupsen/logrus"
)

// BasicAuth protects the console routes with the configured credentials. It
// is a mux.MiddlewareFunc; credentials are resolved per request so the flags
// have been parsed by the time they are read.
func BasicAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		basicAuthHandler(next.ServeHTTP, GetBasicAuthUser(), GetBasicAuthPassword())(w, r)
	})
}

func basicAuthHandler(handler http.HandlerFunc, username, password string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user, pass, ok := r.BasicAuth()
		realm := "Please enter your username and password for this site"
		if !ok || !validateUsernameAndPassword(user, pass, username, password) {
			w.Header().Set("WWW-Authenticate", `Basic realm="`+realm+`"`)
			w.WriteHeader(http.StatusUnauthorized)
			log.Error("Unauthorised request")
			_, _ = w.Write([]byte("Unauthorised.\n"))
			return
		}

		handler(w, r)
	}
}

func validateUsernameAndPassword(
	requestUsername, requestPassword, desiredUsername, desiredPassword string,
) bool {
	userMatch := subtle.ConstantTimeCompare([]byte(requestUsername), []byte(desiredUsername)) == 1
	passMatch := subtle.ConstantTimeCompare([]byte(requestPassword), []byte(desiredPassword)) == 1
	return userMatch && passMatch
}
