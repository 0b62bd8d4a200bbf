package handler

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v4"
)

const RoleAdmin = "admin"

// NewAdminToken 签发管理端 JWT（HS256），与 rest.WithJwt 使用同一个 AccessSecret
func NewAdminToken(secret, subject string, expire time.Duration) (string, error) {
	if secret == "" {
		return "", errors.New("access secret is empty")
	}
	now := time.Now()
	claims := jwt.MapClaims{
		"sub":  subject,
		"role": RoleAdmin,
		"iat":  now.Unix(),
		"exp":  now.Add(expire).Unix(),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
}
