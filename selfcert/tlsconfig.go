package selfcert

import (
	"crypto/tls"
	"crypto/x509"
	"fmt"
)

// ServerConfig builds a *tls.Config suitable for handing to
// transport/tls's listener: it presents leaf and, when mutual auth is
// requested, verifies client certificates against ca.
func ServerConfig(leaf *Leaf, ca *CA, requireClientCert bool) (*tls.Config, error) {
	cert, err := leaf.TLSCertificate()
	if err != nil {
		return nil, fmt.Errorf("selfcert: building server tls.Certificate: %w", err)
	}
	cfg := &tls.Config{
		Certificates: []tls.Certificate{cert},
		MinVersion:   tls.VersionTLS12,
		MaxVersion:   tls.VersionTLS13,
	}
	if requireClientCert {
		pool := x509.NewCertPool()
		pool.AddCert(ca.Cert)
		cfg.ClientCAs = pool
		cfg.ClientAuth = tls.RequireAndVerifyClientCert
	}
	return cfg, nil
}

// ClientConfig builds a *tls.Config that trusts ca as the sole root and,
// when leaf is non-nil, presents it for mutual authentication.
func ClientConfig(ca *CA, leaf *Leaf, serverName string) (*tls.Config, error) {
	pool := x509.NewCertPool()
	pool.AddCert(ca.Cert)
	cfg := &tls.Config{
		RootCAs:    pool,
		ServerName: serverName,
		MinVersion: tls.VersionTLS12,
		MaxVersion: tls.VersionTLS13,
	}
	if leaf != nil {
		cert, err := leaf.TLSCertificate()
		if err != nil {
			return nil, fmt.Errorf("selfcert: building client tls.Certificate: %w", err)
		}
		cfg.Certificates = []tls.Certificate{cert}
	}
	return cfg, nil
}
