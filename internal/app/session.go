package app

import "net/http"

type sessionKey string

const (
	SessionKeyUserId = sessionKey("userID")
	SessionKeyEmail  = sessionKey("email")
)

func (s sessionKey) String() string {
	return string(s)
}

func (app *Application) contextGetUserId(r *http.Request) string {
	userId, ok := r.Context().Value(SessionKeyUserId).(string)
	if !ok {
		panic("missing user id from context")
	}

	return userId
}
