package web

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"golang.org/x/crypto/hkdf"

	"github.com/go-while/go-moodtracker/internal/database"
)

// VisitorCookieName is the cookie carrying the signed visitor session ID
const VisitorCookieName = "mood_session"

const cookieKeyInfo = "go-moodtracker visitor cookie v1"

var errBadCookie = errors.New("malformed or unsigned visitor cookie")

// deriveCookieKey expands the session secret into the HMAC key used for visitor cookies
func deriveCookieKey(secret string) ([]byte, error) {
	if secret == "" {
		return nil, errors.New("empty session secret")
	}
	key := make([]byte, sha256.Size)
	if _, err := io.ReadFull(hkdf.New(sha256.New, []byte(secret), nil, []byte(cookieKeyInfo)), key); err != nil {
		return nil, fmt.Errorf("failed to derive cookie key: %w", err)
	}
	return key, nil
}

func (s *WebServer) signVisitorID(id string) string {
	mac := hmac.New(sha256.New, s.cookieKey)
	mac.Write([]byte(id))
	return id + "." + base64.RawURLEncoding.EncodeToString(mac.Sum(nil))
}

// verifyVisitorCookie returns the visitor ID of a cookie value signed with the current secret
func (s *WebServer) verifyVisitorCookie(value string) (string, error) {
	i := strings.LastIndexByte(value, '.')
	if i <= 0 || i == len(value)-1 {
		return "", errBadCookie
	}
	id := value[:i]
	if !hmac.Equal([]byte(s.signVisitorID(id)), []byte(value)) {
		return "", errBadCookie
	}
	return id, nil
}

// VisitorSessionRequired resolves the visitor of a request. Unknown, expired or
// tampered cookies get a fresh session, so every visitor can start recording moods.
func (s *WebServer) VisitorSessionRequired() gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()

		if value, err := c.Cookie(VisitorCookieName); err == nil {
			if id, err := s.verifyVisitorCookie(value); err == nil {
				session, err := s.DB.ValidateVisitorSession(ctx, id)
				switch {
				case err == nil:
					s.setSessionCookie(c, session.ID)
					c.Set("visitor", session.ID)
					c.Next()
					return
				case !errors.Is(err, database.ErrSessionNotFound):
					s.log.WithError(err).Error("Failed to validate visitor session")
					c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "session lookup failed"})
					return
				}
			} else {
				s.log.WithField("ip", c.ClientIP()).Debug("Ignoring visitor cookie with bad signature")
			}
		}

		if !s.sessionLimiter.Allow(c.ClientIP()) {
			s.log.WithField("ip", c.ClientIP()).Warn("Too many new visitor sessions")
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "Too many requests, please slow down."})
			return
		}
		session, err := s.DB.CreateVisitorSession(ctx, c.ClientIP())
		if err != nil {
			s.log.WithError(err).Error("Failed to create visitor session")
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "could not create session"})
			return
		}
		s.log.WithField("visitor", session.ID).Debug("Created visitor session")
		s.setSessionCookie(c, session.ID)
		c.Set("visitor", session.ID)
		c.Next()
	}
}

// visitorID returns the visitor resolved by VisitorSessionRequired
func visitorID(c *gin.Context) string {
	return c.GetString("visitor")
}

// Helper function to set session cookie
func (s *WebServer) setSessionCookie(c *gin.Context, sessionID string) {
	// Detect HTTPS from the current request perspective only
	isHTTPS := c.Request != nil && (c.Request.TLS != nil || strings.EqualFold(c.GetHeader("X-Forwarded-Proto"), "https"))

	maxAge := s.Config.Database.SessionTimeout
	if maxAge <= 0 {
		maxAge = database.DefaultSessionTimeout
	}

	http.SetCookie(c.Writer, &http.Cookie{
		Name:     VisitorCookieName,
		Value:    s.signVisitorID(sessionID),
		Path:     "/",
		HttpOnly: true,
		Secure:   isHTTPS,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   int(maxAge.Seconds()),
	})
}
