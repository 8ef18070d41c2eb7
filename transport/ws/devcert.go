package ws

import (
	"crypto/tls"
	"os"
	"sync"

	"github.com/opensp/spio"
	"github.com/opensp/spio/selfcert"
)

// devLeafName is the file basename devInit writes/reads the default
// wss[46] leaf certificate and key under, inside spio.GetCertsDir(). It
// shares the CA under spio.GetPrivateCertificateAuthDir() with
// transport/tls's own devcert.go -- same root of trust, separate leaves --
// but is otherwise duplicated rather than imported so this package does
// not take on a dependency on transport/tls for what is otherwise a
// self-contained transport.
const devLeafName = "spio-ws-dev"

var (
	devOnce   sync.Once
	devServer *tls.Config
	devClient *tls.Config
	devErr    error
)

func devInit() {
	caDir := spio.GetPrivateCertificateAuthDir()
	certDir := spio.GetCertsDir()
	caCertPath := caDir + string(os.PathSeparator) + "ca.crt"
	caKeyPath := caDir + string(os.PathSeparator) + "ca.key"
	leafCertPath := certDir + string(os.PathSeparator) + devLeafName + ".crt"
	leafKeyPath := certDir + string(os.PathSeparator) + devLeafName + ".key"

	ca, err := selfcert.LoadCA(caCertPath, caKeyPath)
	if err != nil {
		ca, err = selfcert.NewCA("spio-dev-ca")
		if err != nil {
			devErr = err
			return
		}
		if _, _, err := ca.WriteFiles(caDir); err != nil {
			devErr = err
			return
		}
	}

	leaf, err := selfcert.LoadLeaf(leafCertPath, leafKeyPath)
	if err != nil || leaf.VerifySignedBy(ca) != nil {
		leaf, err = ca.IssueLeaf(devLeafName, "127.0.0.1", "::1", "localhost")
		if err != nil {
			devErr = err
			return
		}
		if _, _, err := leaf.WriteFiles(certDir, devLeafName); err != nil {
			devErr = err
			return
		}
	}

	srv, err := selfcert.ServerConfig(leaf, ca, false)
	if err != nil {
		devErr = err
		return
	}
	cli, err := selfcert.ClientConfig(ca, nil, "localhost")
	if err != nil {
		devErr = err
		return
	}
	devServer, devClient = srv, cli
}

func devServerTLSConfig() (*tls.Config, error) {
	devOnce.Do(devInit)
	return devServer, devErr
}

func devClientTLSConfig() (*tls.Config, error) {
	devOnce.Do(devInit)
	return devClient, devErr
}
