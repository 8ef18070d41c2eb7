package selfcert

import (
	"crypto/ed25519"
	"crypto/rand"
	"crypto/tls"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/pem"
	"fmt"
	"math/big"
	"net"
	"os"
	"time"
)

// Leaf is a certificate signed by a CA, together with its private key,
// ready to be handed to crypto/tls as a tls.Certificate.
type Leaf struct {
	Cert    *x509.Certificate
	CertPEM []byte
	KeyPEM  []byte
	Key     ed25519.PrivateKey
}

// IssueLeaf mints a leaf certificate signed by ca for the given DNS names
// and/or IP addresses (at least one of hosts is required; each entry is
// classified into DNSNames or IPAddresses automatically).
func (ca *CA) IssueLeaf(commonName string, hosts ...string) (*Leaf, error) {
	if len(hosts) == 0 {
		return nil, fmt.Errorf("selfcert: IssueLeaf(%q): at least one host is required", commonName)
	}

	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("selfcert: generating leaf key: %w", err)
	}

	serial, err := rand.Int(rand.Reader, big.NewInt(1<<62))
	if err != nil {
		return nil, fmt.Errorf("selfcert: generating leaf serial: %w", err)
	}

	tmpl := &x509.Certificate{
		SerialNumber: serial,
		Subject:      pkix.Name{Organization: []string{"spio self-signed"}, CommonName: commonName},
		NotBefore:    time.Now().Add(-time.Hour),
		NotAfter:     time.Now().Add(validFor),
		KeyUsage:     x509.KeyUsageDigitalSignature,
		ExtKeyUsage:  []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth, x509.ExtKeyUsageClientAuth},
	}
	for _, h := range hosts {
		if ip := net.ParseIP(h); ip != nil {
			tmpl.IPAddresses = append(tmpl.IPAddresses, ip)
		} else {
			tmpl.DNSNames = append(tmpl.DNSNames, h)
		}
	}

	der, err := x509.CreateCertificate(rand.Reader, tmpl, ca.Cert, pub, ca.Key)
	if err != nil {
		return nil, fmt.Errorf("selfcert: signing leaf cert: %w", err)
	}
	cert, err := x509.ParseCertificate(der)
	if err != nil {
		return nil, fmt.Errorf("selfcert: parsing freshly signed leaf cert: %w", err)
	}
	keyDER, err := x509.MarshalPKCS8PrivateKey(priv)
	if err != nil {
		return nil, fmt.Errorf("selfcert: marshaling leaf key: %w", err)
	}

	return &Leaf{
		Cert:    cert,
		CertPEM: pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: der}),
		KeyPEM:  pem.EncodeToMemory(&pem.Block{Type: "PRIVATE KEY", Bytes: keyDER}),
		Key:     priv,
	}, nil
}

// WriteFiles writes name.crt and name.key under dir.
func (l *Leaf) WriteFiles(dir, name string) (certPath, keyPath string, err error) {
	if err := os.MkdirAll(dir, 0700); err != nil {
		return "", "", fmt.Errorf("selfcert: making leaf dir %q: %w", dir, err)
	}
	sep := string(os.PathSeparator)
	certPath = dir + sep + name + ".crt"
	keyPath = dir + sep + name + ".key"
	if err := os.WriteFile(certPath, l.CertPEM, 0644); err != nil {
		return "", "", fmt.Errorf("selfcert: writing leaf cert: %w", err)
	}
	if err := os.WriteFile(keyPath, l.KeyPEM, 0600); err != nil {
		return "", "", fmt.Errorf("selfcert: writing leaf key: %w", err)
	}
	return certPath, keyPath, nil
}

// TLSCertificate adapts leaf into the form crypto/tls wants directly,
// without a filesystem round-trip.
func (l *Leaf) TLSCertificate() (tls.Certificate, error) {
	return tls.X509KeyPair(l.CertPEM, l.KeyPEM)
}

// LoadLeaf reads back a leaf certificate previously written by WriteFiles.
// It does not check the leaf is still signed by any particular CA; callers
// that care should follow up with VerifySignedBy.
func LoadLeaf(certPath, keyPath string) (*Leaf, error) {
	certPEM, err := os.ReadFile(certPath)
	if err != nil {
		return nil, fmt.Errorf("selfcert: reading leaf cert %q: %w", certPath, err)
	}
	block, _ := pem.Decode(certPEM)
	if block == nil {
		return nil, fmt.Errorf("selfcert: no PEM block in %q", certPath)
	}
	cert, err := x509.ParseCertificate(block.Bytes)
	if err != nil {
		return nil, fmt.Errorf("selfcert: parsing leaf cert %q: %w", certPath, err)
	}

	keyPEM, err := os.ReadFile(keyPath)
	if err != nil {
		return nil, fmt.Errorf("selfcert: reading leaf key %q: %w", keyPath, err)
	}
	keyBlock, _ := pem.Decode(keyPEM)
	if keyBlock == nil {
		return nil, fmt.Errorf("selfcert: no PEM block in %q", keyPath)
	}
	rawKey, err := x509.ParsePKCS8PrivateKey(keyBlock.Bytes)
	if err != nil {
		return nil, fmt.Errorf("selfcert: parsing leaf key %q: %w", keyPath, err)
	}
	priv, ok := rawKey.(ed25519.PrivateKey)
	if !ok {
		return nil, fmt.Errorf("selfcert: leaf key %q is not ed25519", keyPath)
	}

	return &Leaf{Cert: cert, CertPEM: certPEM, KeyPEM: keyPEM, Key: priv}, nil
}

// VerifySignedBy checks that leaf was actually signed by ca, independent of
// any tls.Config verification path -- useful for tests that want to catch a
// CA/leaf mismatch before ever dialing.
func (l *Leaf) VerifySignedBy(ca *CA) error {
	pool := x509.NewCertPool()
	pool.AddCert(ca.Cert)
	opts := x509.VerifyOptions{
		Roots:     pool,
		KeyUsages: []x509.ExtKeyUsage{x509.ExtKeyUsageAny},
	}
	_, err := l.Cert.Verify(opts)
	return err
}
