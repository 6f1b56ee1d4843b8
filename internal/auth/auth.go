package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"nuhub/internal/router"
)

var ErrUnauthorized = errors.New("unauthorized")

// Claims is what a participant token may carry. Both fields are optional.
type Claims struct {
	PlayerID *router.Token
	Role     string
}

// Service validates participant tokens. With an empty secret it is
// disabled and every hello is accepted.
type Service struct {
	jwtSecret string
}

func NewService(jwtSecret string) *Service {
	return &Service{jwtSecret: jwtSecret}
}

func (a *Service) Enabled() bool {
	return a != nil && a.jwtSecret != ""
}

// Authenticate checks tokenString when auth is enabled. A disabled service
// returns empty claims.
func (a *Service) Authenticate(tokenString string) (Claims, error) {
	if !a.Enabled() {
		return Claims{}, nil
	}
	if tokenString == "" {
		return Claims{}, fmt.Errorf("%w: missing token", ErrUnauthorized)
	}
	return a.ValidateToken(tokenString)
}

func (a *Service) ValidateToken(tokenString string) (Claims, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("invalid signing method")
		}
		return []byte(a.jwtSecret), nil
	})
	if err != nil || !token.Valid {
		return Claims{}, fmt.Errorf("%w: failed to parse token: %v", ErrUnauthorized, err)
	}

	mapClaims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return Claims{}, fmt.Errorf("%w: invalid token claims", ErrUnauthorized)
	}

	var claims Claims
	switch id := mapClaims["player_id"].(type) {
	case nil:
	case float64:
		tok := router.Number(id)
		claims.PlayerID = &tok
	case string:
		tok := router.String(id)
		claims.PlayerID = &tok
	default:
		return Claims{}, fmt.Errorf("%w: player_id claim must be a number or a string", ErrUnauthorized)
	}
	if claims.PlayerID != nil && claims.PlayerID.IsSentinel() {
		return Claims{}, fmt.Errorf("%w: player_id -1 is reserved", ErrUnauthorized)
	}

	if role, present := mapClaims["role"]; present {
		s, ok := role.(string)
		if !ok {
			return Claims{}, fmt.Errorf("%w: role claim is not a string", ErrUnauthorized)
		}
		claims.Role = s
	}
	return claims, nil
}

// IssueToken signs an HS256 participant token. playerID may be nil.
func (a *Service) IssueToken(playerID *router.Token, role string, ttl time.Duration) (string, error) {
	if a.jwtSecret == "" {
		return "", errors.New("cannot issue tokens without a secret")
	}
	claims := jwt.MapClaims{
		"iat": time.Now().Unix(),
	}
	if ttl > 0 {
		claims["exp"] = time.Now().Add(ttl).Unix()
	}
	if playerID != nil {
		if f, ok := playerID.Float(); ok {
			claims["player_id"] = f
		} else {
			claims["player_id"] = playerID.Text()
		}
	}
	if role != "" {
		claims["role"] = role
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(a.jwtSecret))
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, nil
}
