package security

import (
	"crypto/rsa"
	"crypto/x509"
	"encoding/base64"
	"encoding/pem"
	"errors"
	"fmt"

	"github.com/aq2208/pixelmart-api/configs"
)

// KeyMaterial holds the sealing key and the optional RSA pair used for download tokens.
type KeyMaterial struct {
	KeyID  string
	AESKey []byte // nil => download references are stored unsealed
	RSAPub *rsa.PublicKey
	RSAPri *rsa.PrivateKey
}

func LoadKeyMaterial(c configs.Config) (KeyMaterial, error) {
	id := c.CryptoConfig.KeyID
	if id == "" {
		id = "v1"
	}
	km := KeyMaterial{KeyID: id}

	// --- AES-256 key (optional) ---
	if c.CryptoConfig.AES256B64 != "" {
		key, err := base64.RawURLEncoding.DecodeString(c.CryptoConfig.AES256B64)
		if err != nil {
			return KeyMaterial{}, fmt.Errorf("decode aes256_b64url: %w", err)
		}
		if len(key) != 32 {
			return KeyMaterial{}, fmt.Errorf("aes key must be 32 bytes, got %d", len(key))
		}
		km.AESKey = key
	}

	// --- RSA private key (optional) ---
	if c.CryptoConfig.RSAPriPEM != "" {
		pri, err := parseRSAPrivateKeyFromPEM([]byte(c.CryptoConfig.RSAPriPEM))
		if err != nil {
			return KeyMaterial{}, fmt.Errorf("parse rsa pri pem: %w", err)
		}
		km.RSAPri = pri
		km.RSAPub = &pri.PublicKey
	}

	// --- RSA public key (verify-only instances) ---
	if c.CryptoConfig.RSAPubPEM != "" {
		pub, err := parseRSAPublicKeyFromPEM([]byte(c.CryptoConfig.RSAPubPEM))
		if err != nil {
			return KeyMaterial{}, fmt.Errorf("parse rsa pub pem: %w", err)
		}
		if km.RSAPri != nil && !km.RSAPri.PublicKey.Equal(pub) {
			return KeyMaterial{}, errors.New("rsa_pub_pem does not match rsa_pri_pem")
		}
		km.RSAPub = pub
	}
	return km, nil
}

func parseRSAPublicKeyFromPEM(pemBytes []byte) (*rsa.PublicKey, error) {
	block, _ := pem.Decode(pemBytes)
	if block == nil {
		return nil, errors.New("no pem block")
	}
	pubAny, err := x509.ParsePKIXPublicKey(block.Bytes)
	if err != nil {
		return nil, err
	}
	pub, ok := pubAny.(*rsa.PublicKey)
	if !ok {
		return nil, errors.New("not rsa public key")
	}
	return pub, nil
}

func parseRSAPrivateKeyFromPEM(pemBytes []byte) (*rsa.PrivateKey, error) {
	block, _ := pem.Decode(pemBytes)
	if block == nil {
		return nil, errors.New("no pem block in RSA private key")
	}

	// try PKCS#8 first
	key, err := x509.ParsePKCS8PrivateKey(block.Bytes)
	if err == nil {
		if rsaKey, ok := key.(*rsa.PrivateKey); ok {
			return rsaKey, nil
		}
		return nil, errors.New("not an RSA private key in PKCS#8")
	}

	// fallback to PKCS#1
	rsaKey, err2 := x509.ParsePKCS1PrivateKey(block.Bytes)
	if err2 != nil {
		return nil, fmt.Errorf("parse RSA private key failed (PKCS#8: %v, PKCS#1: %v)", err, err2)
	}
	return rsaKey, nil
}
