package security

import (
	"errors"
	"fmt"
	"time"

	"github.com/aq2208/pixelmart-api/internal/usecase"
	"github.com/golang-jwt/jwt/v5"
)

// DownloadAudience keeps download tokens out of the bearer-auth audience.
const DownloadAudience = "pixelmart-downloads"

type downloadClaims struct {
	OrderID   string `json:"oid"`
	ProductID string `json:"pid"`
	jwt.RegisteredClaims
}

// DownloadSigner issues the tokens embedded in download URLs.
// RS256 when an RSA private key is loaded, HS256 with the shared secret otherwise.
type DownloadSigner struct {
	issuer string
	method jwt.SigningMethod
	sign   any
	verify any
	now    func() time.Time
}

var _ usecase.URLSigner = (*DownloadSigner)(nil)

func NewDownloadSigner(km KeyMaterial, hmacSecret, issuer string) (*DownloadSigner, error) {
	s := &DownloadSigner{issuer: issuer, now: time.Now}
	switch {
	case km.RSAPri != nil:
		s.method, s.sign, s.verify = jwt.SigningMethodRS256, km.RSAPri, &km.RSAPri.PublicKey
	case hmacSecret != "":
		s.method, s.sign, s.verify = jwt.SigningMethodHS256, []byte(hmacSecret), []byte(hmacSecret)
	default:
		return nil, errors.New("download signer needs an rsa private key or an hmac secret")
	}
	return s, nil
}

func (s *DownloadSigner) Sign(c usecase.DownloadClaims, ttl time.Duration) (string, time.Time, error) {
	now := s.now()
	exp := now.Add(ttl)
	claims := downloadClaims{
		OrderID:   c.OrderID,
		ProductID: c.ProductID,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    s.issuer,
			Subject:   c.UserID,
			Audience:  jwt.ClaimStrings{DownloadAudience},
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
		},
	}
	tok, err := jwt.NewWithClaims(s.method, claims).SignedString(s.sign)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign download token: %w", err)
	}
	return tok, exp.Truncate(time.Second), nil
}

func (s *DownloadSigner) Parse(token string) (usecase.DownloadClaims, error) {
	var claims downloadClaims
	_, err := jwt.ParseWithClaims(token, &claims, func(t *jwt.Token) (any, error) {
		if t.Method.Alg() != s.method.Alg() {
			return nil, jwt.ErrSignatureInvalid
		}
		return s.verify, nil
	},
		jwt.WithIssuer(s.issuer),
		jwt.WithAudience(DownloadAudience),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil {
		return usecase.DownloadClaims{}, err
	}
	if claims.Subject == "" || claims.OrderID == "" || claims.ProductID == "" {
		return usecase.DownloadClaims{}, errors.New("download token is missing claims")
	}
	return usecase.DownloadClaims{UserID: claims.Subject, OrderID: claims.OrderID, ProductID: claims.ProductID}, nil
}
