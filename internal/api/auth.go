package api

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"

	"solarpunk-alphabot/config"
)

// authManager guards the admin endpoints with a single configured
// operator account. No login is possible until both the user and the
// bcrypt password hash are configured.
type authManager struct {
	user          string
	passwordHash  string
	secret        []byte
	tokenDuration time.Duration
}

type adminClaims struct {
	Username string `json:"username"`
	jwt.RegisteredClaims
}

func newAuthManager(cfg config.DashboardConfig) *authManager {
	duration := cfg.TokenDuration
	if duration <= 0 {
		duration = 15 * time.Minute
	}
	return &authManager{
		user:          cfg.AdminUser,
		passwordHash:  cfg.AdminPasswordHash,
		secret:        []byte(cfg.JWTSecret),
		tokenDuration: duration,
	}
}

func (a *authManager) configured() bool {
	return a.user != "" && a.passwordHash != "" && len(a.secret) > 0
}

func (a *authManager) handleLogin(c *gin.Context) {
	if !a.configured() {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "admin access is not configured"})
		return
	}

	var req struct {
		Username string `json:"username" binding:"required"`
		Password string `json:"password" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "username and password are required"})
		return
	}

	if req.Username != a.user ||
		bcrypt.CompareHashAndPassword([]byte(a.passwordHash), []byte(req.Password)) != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid credentials"})
		return
	}

	token, expiresAt, err := a.generateToken(req.Username)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to generate token"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"token":      token,
		"expires_at": expiresAt,
	})
}

func (a *authManager) generateToken(username string) (string, time.Time, error) {
	now := time.Now()
	expiresAt := now.Add(a.tokenDuration)

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, adminClaims{
		Username: username,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	})

	signed, err := token.SignedString(a.secret)
	if err != nil {
		return "", time.Time{}, err
	}
	return signed, expiresAt, nil
}

func (a *authManager) validateToken(tokenString string) (*adminClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &adminClaims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return a.secret, nil
	})
	if err != nil {
		return nil, err
	}

	claims, ok := token.Claims.(*adminClaims)
	if !ok || !token.Valid {
		return nil, fmt.Errorf("invalid token")
	}
	return claims, nil
}

// middleware rejects requests without a valid Bearer token.
func (a *authManager) middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !a.configured() {
			c.AbortWithStatusJSON(http.StatusServiceUnavailable, gin.H{"error": "admin access is not configured"})
			return
		}

		header := c.GetHeader("Authorization")
		if !strings.HasPrefix(header, "Bearer ") {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing bearer token"})
			return
		}

		claims, err := a.validateToken(strings.TrimPrefix(header, "Bearer "))
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid or expired token"})
			return
		}

		c.Set("admin_user", claims.Username)
		c.Next()
	}
}
