package models

import (
	"github.com/golang-jwt/jwt/v5"
)

// TokenTypeWebService marks tokens accepted by the web-service endpoints
const TokenTypeWebService = "webservice"

type TokenClaims struct {
	Type     string `json:"type"`
	UserID   int64  `json:"user_id"`
	Username string `json:"username,omitempty"`
	jwt.RegisteredClaims
}

// Caller is the authenticated identity a request runs as.
// It is passed explicitly to every service call.
type Caller struct {
	ID       int64
	Username string
}

// Is reports whether the caller is the given user
func (c Caller) Is(userID int64) bool {
	return c.ID == userID
}
