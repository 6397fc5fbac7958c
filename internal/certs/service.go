// Package certs issues and verifies signed authenticity certificates.
// Certification is independent of the analysis pipeline: it takes a
// content hash and records a signed claim that the bytes existed in this
// form at issuance time.
package certs

import (
	"context"
	"crypto/ed25519"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/gowebpki/jcs"

	"github.com/drishti-ai/drishti/internal/store"
	"github.com/drishti-ai/drishti/pkg/models"
)

const (
	hashPrefix = "vv_auth_"
	standard   = "C2PA v1.3"
	issuer     = "DRISHTI Authenticity Network"
)

var ErrNotFound = store.ErrNotFound

// Service issues and looks up certificates. The hash is a pure function
// of the file bytes; re-certifying identical bytes yields the identical
// hash and duplicate issuance is not an error.
type Service struct {
	store      store.Store
	signingKey ed25519.PrivateKey
	verifyBase string
	now        func() time.Time
}

// New creates a certificate service. seedHex is a 32-byte hex seed for
// the ed25519 signing key; when empty an ephemeral key is generated,
// which is only acceptable for development.
func New(s store.Store, seedHex, verifyBase string) (*Service, error) {
	var key ed25519.PrivateKey
	if seedHex == "" {
		_, generated, err := ed25519.GenerateKey(nil)
		if err != nil {
			return nil, fmt.Errorf("generate signing key: %w", err)
		}
		key = generated
	} else {
		seed, err := hex.DecodeString(seedHex)
		if err != nil || len(seed) != ed25519.SeedSize {
			return nil, fmt.Errorf("signing key seed must be %d hex-encoded bytes", ed25519.SeedSize)
		}
		key = ed25519.NewKeyFromSeed(seed)
	}

	return &Service{
		store:      s,
		signingKey: key,
		verifyBase: verifyBase,
		now:        time.Now,
	}, nil
}

// PublicKey returns the verification half of the signing key.
func (s *Service) PublicKey() ed25519.PublicKey {
	return s.signingKey.Public().(ed25519.PublicKey)
}

// Hash computes the content hash for a byte sequence. Identical bytes
// always map to the identical hash; the file name is not an input.
func Hash(payload []byte) string {
	sum := sha256.Sum256(payload)
	return hashPrefix + hex.EncodeToString(sum[:])
}

// Certify issues a signed certificate for the payload.
func (s *Service) Certify(ctx context.Context, payload []byte, fileName string) (*models.Certificate, error) {
	if len(payload) == 0 {
		return nil, fmt.Errorf("empty payload")
	}

	cert := &models.Certificate{
		ID:       uuid.New(),
		Hash:     Hash(payload),
		FileName: fileName,
		Standard: standard,
		Issuer:   issuer,
		IssuedAt: s.now().UTC().Truncate(time.Millisecond),
	}

	sig, err := s.sign(cert)
	if err != nil {
		return nil, fmt.Errorf("sign certificate: %w", err)
	}
	cert.Signature = sig

	if err := s.store.CreateCertificate(ctx, cert); err != nil {
		return nil, fmt.Errorf("store certificate: %w", err)
	}
	cert.VerifyURL = s.verifyBase + "/" + cert.Hash
	return cert, nil
}

// Verify is a pure lookup by exact hash: no side effects, no partial
// matches. Callers translate ErrNotFound into a valid=false response
// rather than an HTTP error.
func (s *Service) Verify(ctx context.Context, hash string) (*models.Certificate, error) {
	cert, err := s.store.GetCertificateByHash(ctx, hash)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("lookup certificate: %w", err)
	}
	cert.VerifyURL = s.verifyBase + "/" + cert.Hash
	return cert, nil
}

// sign produces an ed25519 signature over the JCS-canonicalized form of
// the certificate's immutable fields, so any holder with the public key
// can re-derive and check the exact signed bytes.
func (s *Service) sign(cert *models.Certificate) (string, error) {
	payload := map[string]any{
		"certificate_id": cert.ID.String(),
		"hash":           cert.Hash,
		"file_name":      cert.FileName,
		"standard":       cert.Standard,
		"issuer":         cert.Issuer,
		"issued_at":      cert.IssuedAt.Format(time.RFC3339Nano),
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return "", err
	}
	canonical, err := jcs.Transform(raw)
	if err != nil {
		return "", err
	}
	return hex.EncodeToString(ed25519.Sign(s.signingKey, canonical)), nil
}

// VerifySignature checks a certificate's signature against the service
// public key.
func (s *Service) VerifySignature(cert *models.Certificate) bool {
	sig, err := hex.DecodeString(cert.Signature)
	if err != nil {
		return false
	}
	payload := map[string]any{
		"certificate_id": cert.ID.String(),
		"hash":           cert.Hash,
		"file_name":      cert.FileName,
		"standard":       cert.Standard,
		"issuer":         cert.Issuer,
		"issued_at":      cert.IssuedAt.Format(time.RFC3339Nano),
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return false
	}
	canonical, err := jcs.Transform(raw)
	if err != nil {
		return false
	}
	return ed25519.Verify(s.PublicKey(), canonical, sig)
}
