package auth

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	ErrNoToken      = errors.New("no bearer token")
	ErrInvalidToken = errors.New("invalid or expired JWT")
)

// Claims carried by API tokens. Operators may submit processing tasks,
// other subjects only read status, layers and exports.
type Claims struct {
	Subject  string
	Operator bool
}

func GenerateJWT(secret string, subject string, operator bool, expirationMinutes int) (string, error) {
	claims := jwt.MapClaims{
		"sub":      subject,
		"operator": operator,
		"exp":      time.Now().Add(time.Duration(expirationMinutes) * time.Minute).Unix(),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(secret))
}

func ExtractClaimsFromJWT(r *http.Request, secret string) (Claims, error) {
	auth := r.Header.Get("Authorization")
	if auth == "" || !strings.HasPrefix(auth, "Bearer ") {
		return Claims{}, ErrNoToken
	}
	tokenString := strings.TrimPrefix(auth, "Bearer ")
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		return []byte(secret), nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil || !token.Valid {
		return Claims{}, ErrInvalidToken
	}
	mc, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return Claims{}, errors.New("invalid JWT claims")
	}
	var c Claims
	c.Subject, _ = mc["sub"].(string)
	switch v := mc["operator"].(type) {
	case bool:
		c.Operator = v
	case string:
		c.Operator = v == "true" || v == "1"
	case float64:
		c.Operator = v == 1
	}
	return c, nil
}
