package handler

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/navid-fn/coinwatch/internal/auth"
)

type AuthHandler struct {
	tokens   *auth.TokenProvider
	logouts  *auth.LogoutCache
	username string
	password string
}

func NewAuthHandler(tokens *auth.TokenProvider, logouts *auth.LogoutCache, username, password string) *AuthHandler {
	return &AuthHandler{
		tokens:   tokens,
		logouts:  logouts,
		username: username,
		password: password,
	}
}

type loginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// Login checks credentials and issues a bearer token.
func (h *AuthHandler) Login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "username and password required"})
		return
	}

	userOK := subtle.ConstantTimeCompare([]byte(req.Username), []byte(h.username)) == 1
	passOK := subtle.ConstantTimeCompare([]byte(req.Password), []byte(h.password)) == 1
	if !userOK || !passOK {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid credentials"})
		return
	}

	token, err := h.tokens.CreateToken(req.Username)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to issue token"})
		return
	}

	h.logouts.Login(req.Username)
	c.JSON(http.StatusOK, gin.H{"token": token})
}

// Logout revokes the caller's token until the next login.
func (h *AuthHandler) Logout(c *gin.Context) {
	username, err := h.authenticate(c)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
		return
	}

	h.logouts.Logout(username)
	c.JSON(http.StatusOK, gin.H{"status": "logged out"})
}

func (h *AuthHandler) authenticate(c *gin.Context) (string, error) {
	header := c.GetHeader("Authorization")
	token, found := strings.CutPrefix(header, "Bearer ")
	if !found || token == "" {
		return "", errMissingToken
	}

	username, err := h.tokens.Validate(token)
	if err != nil {
		return "", errInvalidToken
	}
	if h.logouts.IsLoggedOut(username) {
		return "", errInvalidToken
	}
	return username, nil
}
