package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt"
	"golang.org/x/crypto/bcrypt"
)

const (
	userIdClaim = "user-id"
	expClaim    = "exp"

	DefaultTokenExpiration = time.Hour * 24
)

// ErrUnauthenticated is returned whenever a credential is absent,
// malformed or does not resolve to a valid user identity claim.
var ErrUnauthenticated = errors.New("unauthenticated")

// Authenticator issues and validates the bearer tokens used by both the
// HTTP API and the websocket admission path.
type Authenticator struct {
	signingKey []byte
}

func NewAuthenticator(signingKey []byte) *Authenticator {
	return &Authenticator{signingKey: signingKey}
}

// Issue creates a signed token carrying the user's identity claim.
func (a *Authenticator) Issue(userId int, exp time.Duration) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		userIdClaim: userId,
		expClaim:    time.Now().Add(exp).Unix(),
	})

	return token.SignedString(a.signingKey)
}

// Resolve validates a token and returns the user id it was issued for.
func (a *Authenticator) Resolve(tokenString string) (int, error) {
	if tokenString == "" {
		return 0, ErrUnauthenticated
	}

	token, err := jwt.Parse(tokenString, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return a.signingKey, nil
	})
	if err != nil {
		return 0, fmt.Errorf("%w: parse token: %v", ErrUnauthenticated, err)
	}

	if !token.Valid {
		return 0, ErrUnauthenticated
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return 0, fmt.Errorf("%w: invalid token claims", ErrUnauthenticated)
	}

	userId, ok := claims[userIdClaim].(float64)
	if !ok {
		return 0, fmt.Errorf("%w: invalid user id claim", ErrUnauthenticated)
	}

	return int(userId), nil
}

func HashPassword(passwd string) (string, error) {
	passwdHash, err := bcrypt.GenerateFromPassword([]byte(passwd), bcrypt.DefaultCost)
	return string(passwdHash), err
}

func VerifyPassword(passwdHash, passwd string) bool {
	err := bcrypt.CompareHashAndPassword([]byte(passwdHash), []byte(passwd))
	return err == nil
}
