package auth

import (
	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"
)

// SessionName is the name of the session cookie.
const SessionName = "bookshelf_session"

const sessionEmailKey = "user_email"

// SessionEmail returns the email stored in the session, or "".
func SessionEmail(c *gin.Context) string {
	return getSessionString(sessions.Default(c), sessionEmailKey)
}

// StartSession stores the email in the session.
func StartSession(c *gin.Context, email string) error {
	session := sessions.Default(c)
	session.Set(sessionEmailKey, email)
	return session.Save()
}

// ClearSession removes all session data and expires the cookie.
func ClearSession(c *gin.Context) error {
	session := sessions.Default(c)
	session.Clear()
	session.Options(sessions.Options{Path: "/", MaxAge: -1})
	return session.Save()
}

func getSessionString(session sessions.Session, key string) string {
	if val := session.Get(key); val != nil {
		if str, ok := val.(string); ok {
			return str
		}
	}
	return ""
}
