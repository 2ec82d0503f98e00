package middleware

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	firebase "firebase.google.com/go/v4"
	"firebase.google.com/go/v4/auth"
	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"

	"rata-backend/logger"
	"rata-backend/models"
	"rata-backend/utils"
)

// Verifier turns a bearer token into the caller's identity.
type Verifier interface {
	Verify(ctx context.Context, token string) (models.Identity, error)
}

// AuthRequired rejects requests without a valid bearer token and stores the
// caller's identity in the context.
func AuthRequired(v Verifier) gin.HandlerFunc {
	return func(c *gin.Context) {
		log := logger.GetLogger()

		token := bearerToken(c)
		if token == "" {
			log.Debugw("No token provided in request", "path", c.Request.URL.Path)
			utils.Unauthorized(c, "authorization required")
			return
		}

		id, err := v.Verify(c.Request.Context(), token)
		if err != nil {
			log.Warnw("Invalid token",
				"error", err,
				"token", logger.MaskToken(token),
				"path", c.Request.URL.Path,
				"client_ip", c.ClientIP())
			utils.Unauthorized(c, "invalid authentication token")
			return
		}

		utils.SetCurrentUser(c, id)
		c.Next()
	}
}

// bearerToken reads the Authorization header. EventSource cannot set headers,
// so event streams may pass the token as a query parameter instead.
func bearerToken(c *gin.Context) string {
	if h := c.GetHeader("Authorization"); strings.HasPrefix(h, "Bearer ") {
		return strings.TrimSpace(strings.TrimPrefix(h, "Bearer "))
	}
	if strings.HasSuffix(c.Request.URL.Path, "/events") {
		return c.Query("token")
	}
	return ""
}

// ============================================================
// FIREBASE ID TOKENS
// ============================================================

type FirebaseVerifier struct {
	client *auth.Client
}

func NewFirebaseVerifier(ctx context.Context, app *firebase.App) (*FirebaseVerifier, error) {
	client, err := app.Auth(ctx)
	if err != nil {
		return nil, fmt.Errorf("firebase auth client: %w", err)
	}
	return &FirebaseVerifier{client: client}, nil
}

func (v *FirebaseVerifier) Verify(ctx context.Context, token string) (models.Identity, error) {
	t, err := v.client.VerifyIDToken(ctx, token)
	if err != nil {
		return models.Identity{}, err
	}
	return models.Identity{
		ID:          t.UID,
		DisplayName: claimString(t.Claims, "name"),
		Email:       claimString(t.Claims, "email"),
		PhotoURL:    claimString(t.Claims, "picture"),
	}, nil
}

func claimString(claims map[string]interface{}, key string) string {
	s, _ := claims[key].(string)
	return s
}

// ============================================================
// HS256 TOKENS (local development and tests)
// ============================================================

type identityClaims struct {
	Name    string `json:"name,omitempty"`
	Email   string `json:"email,omitempty"`
	Picture string `json:"picture,omitempty"`
	jwt.RegisteredClaims
}

type JWTVerifier struct {
	secret []byte
}

func NewJWTVerifier(secret string) (*JWTVerifier, error) {
	if len(secret) < 32 {
		return nil, errors.New("jwt secret must be at least 32 bytes")
	}
	return &JWTVerifier{secret: []byte(secret)}, nil
}

func (v *JWTVerifier) Verify(_ context.Context, token string) (models.Identity, error) {
	claims := &identityClaims{}
	_, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (interface{}, error) {
		return v.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return models.Identity{}, err
	}
	if claims.Subject == "" {
		return models.Identity{}, errors.New("token has no subject")
	}
	if claims.ExpiresAt == nil {
		return models.Identity{}, errors.New("token has no expiry")
	}
	return models.Identity{
		ID:          claims.Subject,
		DisplayName: claims.Name,
		Email:       claims.Email,
		PhotoURL:    claims.Picture,
	}, nil
}

// IssueToken signs a token for id that expires after ttl.
func (v *JWTVerifier) IssueToken(id models.Identity, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := identityClaims{
		Name:    id.DisplayName,
		Email:   id.Email,
		Picture: id.PhotoURL,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   id.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(v.secret)
}
