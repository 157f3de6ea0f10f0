package middleware

// identity.go reads the staff identity JWTAuth placed in the Echo context.
// Unauthenticated requests (buyers, payment notifications) get empty
// values, and rate limit keys fall back to "anon".

import "github.com/labstack/echo/v4"

func ctxString(c echo.Context, key string) string {
	s, _ := c.Get(key).(string)
	return s
}

// UserID returns the authenticated staff user id, or "".
func UserID(c echo.Context) string { return ctxString(c, CtxUserID) }

// Role returns the authenticated staff role, or "".
func Role(c echo.Context) string { return ctxString(c, CtxRole) }

// Username returns the authenticated staff username.  Tokens without the
// claim fall back to the user id so manual issuances are still attributed.
func Username(c echo.Context) string {
	if u := ctxString(c, CtxUsername); u != "" {
		return u
	}
	return UserID(c)
}

func currentUserID(c echo.Context) string {
	if id := UserID(c); id != "" {
		return id
	}
	return "anon"
}
