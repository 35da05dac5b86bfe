package auth

import (
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	// ErrInvalidToken is returned for tokens that fail parsing or validation.
	ErrInvalidToken = errors.New("invalid token")
	// ErrRoomMismatch is returned when a token was issued for another room.
	ErrRoomMismatch = errors.New("token issued for another room")
)

// Claims identifies a caller within one room. An owner-claim token issued
// by room creation carries no name; a player token carries both.
type Claims struct {
	Room  string `json:"room"`
	Name  string `json:"name,omitempty"`
	Owner bool   `json:"owner,omitempty"`
	jwt.RegisteredClaims
}

// IsPlayer reports whether the token identifies a joined player.
func (c *Claims) IsPlayer() bool {
	return c.Name != ""
}

// JWTConfig holds JWT configuration.
type JWTConfig struct {
	Secret   []byte
	Issuer   string
	Audience string
	TTL      time.Duration
}

// GenerateOwnerToken proves that the caller created roomID and may register
// as its owner.
func GenerateOwnerToken(cfg *JWTConfig, roomID string) (string, error) {
	return sign(cfg, Claims{Room: roomID, Owner: true})
}

// GeneratePlayerToken identifies a joined player.
func GeneratePlayerToken(cfg *JWTConfig, roomID, name string, owner bool) (string, error) {
	return sign(cfg, Claims{Room: roomID, Name: name, Owner: owner})
}

func sign(cfg *JWTConfig, claims Claims) (string, error) {
	now := time.Now()
	claims.RegisteredClaims = jwt.RegisteredClaims{
		Issuer:    cfg.Issuer,
		Subject:   claims.Name,
		Audience:  jwt.ClaimStrings{cfg.Audience},
		ExpiresAt: jwt.NewNumericDate(now.Add(cfg.TTL)),
		IssuedAt:  jwt.NewNumericDate(now),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(cfg.Secret)
}

// ValidateToken parses and validates a JWT token.
func ValidateToken(cfg *JWTConfig, tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return cfg.Secret, nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidToken, err)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, fmt.Errorf("%w: bad claims", ErrInvalidToken)
	}

	if cfg.Issuer != "" && claims.Issuer != cfg.Issuer {
		return nil, fmt.Errorf("%w: issuer", ErrInvalidToken)
	}
	if cfg.Audience != "" && !slices.Contains(claims.Audience, cfg.Audience) {
		return nil, fmt.Errorf("%w: audience", ErrInvalidToken)
	}
	if claims.Room == "" {
		return nil, fmt.Errorf("%w: missing room", ErrInvalidToken)
	}

	return claims, nil
}

// ValidateForRoom validates the token and checks it was issued for roomID.
func ValidateForRoom(cfg *JWTConfig, tokenString, roomID string) (*Claims, error) {
	claims, err := ValidateToken(cfg, tokenString)
	if err != nil {
		return nil, err
	}
	if claims.Room != roomID {
		return nil, ErrRoomMismatch
	}
	return claims, nil
}
