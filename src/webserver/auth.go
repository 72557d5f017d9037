package webserver

import (
	"crypto/subtle"
	"log"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
)

// Auth exchanges the preshared API key for a short-lived bearer token.
type Auth struct {
	apiKey string
	secret []byte
}

func NewAuth(apiKey string, secret []byte) *Auth {
	return &Auth{apiKey: apiKey, secret: secret}
}

func (a *Auth) Token(c *gin.Context) {
	var req struct {
		APIKey string `json:"api_key" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"err": "api_key required"})
		return
	}
	if a.apiKey == "" || subtle.ConstantTimeCompare([]byte(req.APIKey), []byte(a.apiKey)) != 1 {
		c.JSON(http.StatusUnauthorized, gin.H{"err": "invalid api key"})
		return
	}
	tok, err := issueJWT(a.secret, "api")
	if err != nil {
		log.Printf("auth: issue token: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"err": "could not issue token"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"token": tok})
}

func issueJWT(secret []byte, subject string) (string, error) {
	claims := jwt.MapClaims{
		"sub": subject,
		"exp": time.Now().Add(time.Hour).Unix(),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(secret)
}
