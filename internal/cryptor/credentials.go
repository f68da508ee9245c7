package cryptor

import (
	"crypto"
	"crypto/ecdsa"
	"crypto/ed25519"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"crypto/x509/pkix"
	_ "embed"
	"encoding/pem"
	"fmt"
	"math/big"
	"os"
	"time"

	"github.com/muurk/aalink/internal/errcode"
)

// Embedded accessory credentials
//
//go:embed certs/accessory.crt
var accessoryCertPEM []byte

//go:embed certs/accessory.key
var accessoryKeyPEM []byte

// Credentials hold a PEM certificate and its PEM private key.
type Credentials struct {
	CertificatePEM []byte
	PrivateKeyPEM  []byte
}

// DefaultCredentials returns the compiled-in accessory credentials.
func DefaultCredentials() *Credentials {
	return &Credentials{
		CertificatePEM: accessoryCertPEM,
		PrivateKeyPEM:  accessoryKeyPEM,
	}
}

// LoadCredentials reads a certificate and private key from PEM files and
// checks that both decode.
func LoadCredentials(certPath, keyPath string) (*Credentials, error) {
	certPEM, err := os.ReadFile(certPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read certificate %s: %w", certPath, err)
	}
	keyPEM, err := os.ReadFile(keyPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read private key %s: %w", keyPath, err)
	}

	if _, err := parseCertificate(certPEM); err != nil {
		return nil, fmt.Errorf("%s: %w", certPath, err)
	}
	if _, err := parsePrivateKey(keyPEM); err != nil {
		return nil, fmt.Errorf("%s: %w", keyPath, err)
	}
	return &Credentials{CertificatePEM: certPEM, PrivateKeyPEM: keyPEM}, nil
}

// parseCertificate decodes the first PEM certificate block.
func parseCertificate(certPEM []byte) (*x509.Certificate, error) {
	block, _ := pem.Decode(certPEM)
	if block == nil || block.Type != "CERTIFICATE" {
		return nil, errcode.Wrap(errcode.SSLReadCertificate, fmt.Errorf("no PEM certificate block"))
	}

	cert, err := x509.ParseCertificate(block.Bytes)
	if err != nil {
		return nil, errcode.Wrap(errcode.SSLReadCertificate, err)
	}
	return cert, nil
}

// parsePrivateKey decodes a PKCS#8, PKCS#1 or SEC 1 private key.
func parsePrivateKey(keyPEM []byte) (crypto.Signer, error) {
	block, _ := pem.Decode(keyPEM)
	if block == nil {
		return nil, errcode.Wrap(errcode.SSLReadPrivateKey, fmt.Errorf("no PEM private key block"))
	}

	key, err := x509.ParsePKCS8PrivateKey(block.Bytes)
	if err != nil {
		// Try PKCS1 format
		if rsaKey, rsaErr := x509.ParsePKCS1PrivateKey(block.Bytes); rsaErr == nil {
			return rsaKey, nil
		}
		if ecKey, ecErr := x509.ParseECPrivateKey(block.Bytes); ecErr == nil {
			return ecKey, nil
		}
		return nil, errcode.Wrap(errcode.SSLReadPrivateKey, err)
	}

	switch k := key.(type) {
	case *rsa.PrivateKey:
		return k, nil
	case *ecdsa.PrivateKey:
		return k, nil
	case ed25519.PrivateKey:
		return k, nil
	default:
		return nil, errcode.Wrap(errcode.SSLReadPrivateKey, fmt.Errorf("unsupported key type %T", key))
	}
}

// CertParams describe a generated certificate.
type CertParams struct {
	CommonName   string
	Organization string
	Country      string
	ValidDays    int
}

// DefaultCertParams returns parameters for a short-lived test identity.
func DefaultCertParams() CertParams {
	return CertParams{
		CommonName:   "aalink",
		Organization: "aalink",
		Country:      "US",
		ValidDays:    30,
	}
}

// GenerateCredentials creates a self-signed RSA 2048 certificate usable on
// either side of the handshake.
func GenerateCredentials(params CertParams) (*Credentials, error) {
	privateKey, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		return nil, fmt.Errorf("failed to generate key: %w", err)
	}

	serialNumber, err := rand.Int(rand.Reader, new(big.Int).Lsh(big.NewInt(1), 128))
	if err != nil {
		return nil, fmt.Errorf("failed to generate serial: %w", err)
	}

	notBefore := time.Now().Add(-time.Hour)
	template := x509.Certificate{
		SerialNumber: serialNumber,
		Subject: pkix.Name{
			Country:      []string{params.Country},
			Organization: []string{params.Organization},
			CommonName:   params.CommonName,
		},
		NotBefore:             notBefore,
		NotAfter:              notBefore.AddDate(0, 0, params.ValidDays),
		KeyUsage:              x509.KeyUsageDigitalSignature | x509.KeyUsageKeyEncipherment,
		ExtKeyUsage:           []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth, x509.ExtKeyUsageClientAuth},
		BasicConstraintsValid: true,
	}

	certDER, err := x509.CreateCertificate(rand.Reader, &template, &template, &privateKey.PublicKey, privateKey)
	if err != nil {
		return nil, fmt.Errorf("failed to create certificate: %w", err)
	}

	return &Credentials{
		CertificatePEM: pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: certDER}),
		PrivateKeyPEM: pem.EncodeToMemory(&pem.Block{
			Type:  "RSA PRIVATE KEY",
			Bytes: x509.MarshalPKCS1PrivateKey(privateKey),
		}),
	}, nil
}

// Describe returns a short human readable summary of the certificate.
func (c *Credentials) Describe() (string, error) {
	cert, err := parseCertificate(c.CertificatePEM)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("subject=%q issuer=%q not_after=%s",
		cert.Subject.String(), cert.Issuer.String(), cert.NotAfter.Format(time.RFC3339)), nil
}
