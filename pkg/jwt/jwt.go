package jwt

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

var (
	ErrNoSecret     = errors.New("jwt: secreto vacío")
	ErrInvalidToken = errors.New("jwt: token inválido")
)

// clockSkew margen entre cajas y servidor al validar exp e iat.
const clockSkew = 30 * time.Second

// Claims token de sesión del POS: el usuario va en sub y el rol en su propio claim,
// así el RBAC decide sin consultar el almacén. El rol puede venir vacío; lo rechaza RequireRole.
type Claims struct {
	jwt.RegisteredClaims
	Role string `json:"role,omitempty"`
}

// Validate la invoca el parser después de exp e iat.
func (c Claims) Validate() error {
	if strings.TrimSpace(c.Subject) == "" {
		return errors.New("token sin sujeto")
	}
	return nil
}

// Solo HS256 y siempre con exp.
var parser = jwt.NewParser(
	jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
	jwt.WithExpirationRequired(),
	jwt.WithIssuedAt(),
	jwt.WithLeeway(clockSkew),
)

// Generate firma un token de sesión para userID con vigencia de expMinutes.
func Generate(secret, userID, role, issuer string, expMinutes int) (string, error) {
	if secret == "" {
		return "", ErrNoSecret
	}
	if strings.TrimSpace(userID) == "" {
		return "", errors.New("jwt: usuario requerido")
	}
	now := time.Now().UTC().Truncate(time.Second)
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Issuer:    issuer,
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(time.Duration(expMinutes) * time.Minute)),
		},
		Role: role,
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	if err != nil {
		return "", fmt.Errorf("jwt: firmar: %w", err)
	}
	return signed, nil
}

// Parse verifica firma y vigencia y devuelve el usuario (sub) y su rol.
// Todo rechazo envuelve ErrInvalidToken.
func Parse(secret, tokenString string) (userID, role string, err error) {
	if secret == "" {
		return "", "", ErrNoSecret
	}
	var claims Claims
	_, err = parser.ParseWithClaims(tokenString, &claims, func(*jwt.Token) (any, error) {
		return []byte(secret), nil
	})
	if err != nil {
		return "", "", fmt.Errorf("%w: %w", ErrInvalidToken, err)
	}
	return claims.Subject, claims.Role, nil
}
