// Package selfcert generates throwaway ed25519 certificate authorities and
// leaf certificates for exercising transport/tls without depending on an
// external PKI. It is not meant for production certificate issuance.
package selfcert

import (
	"crypto/ed25519"
	"crypto/rand"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/pem"
	"fmt"
	"math/big"
	"os"
	"time"
)

const validFor = 100 * 365 * 24 * time.Hour

// CA holds a self-signed certificate authority: its certificate (for
// distribution to peers as a root of trust) and its private key (kept only
// by whoever mints leaf certificates).
type CA struct {
	Cert    *x509.Certificate
	CertPEM []byte
	Key     ed25519.PrivateKey
}

// NewCA mints a fresh, self-signed certificate authority. commonName
// identifies the CA in its own subject; it is unrelated to any leaf
// certificate's DNS names.
func NewCA(commonName string) (*CA, error) {
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("selfcert: generating CA key: %w", err)
	}

	serial, err := rand.Int(rand.Reader, big.NewInt(1<<62))
	if err != nil {
		return nil, fmt.Errorf("selfcert: generating CA serial: %w", err)
	}

	tmpl := &x509.Certificate{
		SerialNumber:          serial,
		Subject:               pkix.Name{Organization: []string{"spio self-signed"}, CommonName: commonName},
		NotBefore:             time.Now().Add(-time.Hour),
		NotAfter:              time.Now().Add(validFor),
		KeyUsage:              x509.KeyUsageCertSign | x509.KeyUsageCRLSign,
		ExtKeyUsage:           []x509.ExtKeyUsage{x509.ExtKeyUsageAny},
		BasicConstraintsValid: true,
		IsCA:                  true,
	}

	der, err := x509.CreateCertificate(rand.Reader, tmpl, tmpl, pub, priv)
	if err != nil {
		return nil, fmt.Errorf("selfcert: self-signing CA: %w", err)
	}
	cert, err := x509.ParseCertificate(der)
	if err != nil {
		return nil, fmt.Errorf("selfcert: parsing freshly minted CA cert: %w", err)
	}

	return &CA{
		Cert:    cert,
		CertPEM: pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: der}),
		Key:     priv,
	}, nil
}

// WriteFiles writes the CA certificate (world-readable, distributed to
// peers) and private key (owner-only, never distributed) under dir.
func (ca *CA) WriteFiles(dir string) (certPath, keyPath string, err error) {
	if err := os.MkdirAll(dir, 0700); err != nil {
		return "", "", fmt.Errorf("selfcert: making CA dir %q: %w", dir, err)
	}
	certPath = dir + string(os.PathSeparator) + "ca.crt"
	keyPath = dir + string(os.PathSeparator) + "ca.key"

	if err := os.WriteFile(certPath, ca.CertPEM, 0644); err != nil {
		return "", "", fmt.Errorf("selfcert: writing CA cert: %w", err)
	}
	keyDER, err := x509.MarshalPKCS8PrivateKey(ca.Key)
	if err != nil {
		return "", "", fmt.Errorf("selfcert: marshaling CA key: %w", err)
	}
	keyPEM := pem.EncodeToMemory(&pem.Block{Type: "PRIVATE KEY", Bytes: keyDER})
	if err := os.WriteFile(keyPath, keyPEM, 0600); err != nil {
		return "", "", fmt.Errorf("selfcert: writing CA key: %w", err)
	}
	return certPath, keyPath, nil
}

// LoadCA reads back a CA previously written by WriteFiles, so a process
// restart reuses the same root of trust instead of minting a fresh one
// its peers no longer recognize.
func LoadCA(certPath, keyPath string) (*CA, error) {
	certPEM, err := os.ReadFile(certPath)
	if err != nil {
		return nil, fmt.Errorf("selfcert: reading CA cert %q: %w", certPath, err)
	}
	block, _ := pem.Decode(certPEM)
	if block == nil {
		return nil, fmt.Errorf("selfcert: no PEM block in %q", certPath)
	}
	cert, err := x509.ParseCertificate(block.Bytes)
	if err != nil {
		return nil, fmt.Errorf("selfcert: parsing CA cert %q: %w", certPath, err)
	}

	keyPEM, err := os.ReadFile(keyPath)
	if err != nil {
		return nil, fmt.Errorf("selfcert: reading CA key %q: %w", keyPath, err)
	}
	keyBlock, _ := pem.Decode(keyPEM)
	if keyBlock == nil {
		return nil, fmt.Errorf("selfcert: no PEM block in %q", keyPath)
	}
	rawKey, err := x509.ParsePKCS8PrivateKey(keyBlock.Bytes)
	if err != nil {
		return nil, fmt.Errorf("selfcert: parsing CA key %q: %w", keyPath, err)
	}
	priv, ok := rawKey.(ed25519.PrivateKey)
	if !ok {
		return nil, fmt.Errorf("selfcert: CA key %q is not ed25519", keyPath)
	}

	return &CA{Cert: cert, CertPEM: certPEM, Key: priv}, nil
}
