package http

import (
	"context"
	"net/http"
)

const passwordParam = "password"

type passwordCtxKey struct{}

// hideQueryPassword moves a password query parameter into the request context
// so the request logger never sees it in the URL.
func hideQueryPassword(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		if !q.Has(passwordParam) {
			next.ServeHTTP(w, r)
			return
		}

		password := q.Get(passwordParam)
		q.Del(passwordParam)

		u := *r.URL
		u.RawQuery = q.Encode()

		r = r.WithContext(context.WithValue(r.Context(), passwordCtxKey{}, password))
		r.URL = &u
		r.RequestURI = u.RequestURI()

		next.ServeHTTP(w, r)
	})
}

// passwordFromRequest returns the password taken from the query string or,
// failing that, from a submitted form.
func passwordFromRequest(r *http.Request) string {
	if password, ok := r.Context().Value(passwordCtxKey{}).(string); ok {
		return password
	}
	return r.PostFormValue(passwordParam)
}
