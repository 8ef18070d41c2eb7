package tls

import (
	"os"
	"sync"

	"github.com/opensp/spio"
	"github.com/opensp/spio/selfcert"
)

// devLeafName is the file basename devInit writes/reads the default
// tls+tcp[46] leaf certificate and key under, inside spio.GetCertsDir().
const devLeafName = "spio-dev"

// devCA/devLeaf back the tls+tcp[46] registry schemes' default *Config,
// cached under spio.GetCertsDir()/GetPrivateCertificateAuthDir() the way
// config.go's directory-discovery convention intends, so a process
// restart reuses the same self-signed root instead of every run minting a
// CA its previous run's certificates no longer chain to. selfcert is not
// meant for production certificate issuance (see its own doc comment); a
// caller who needs real PKI builds a *Config with NewConfig and drives
// NewDialer/NewListener directly instead of going through Socket.Dial/
// Listen.
var (
	devOnce sync.Once
	devCA   *selfcert.CA
	devLeaf *selfcert.Leaf
	devErr  error
)

func devInit() {
	caDir := spio.GetPrivateCertificateAuthDir()
	certDir := spio.GetCertsDir()
	caCertPath := caDir + string(os.PathSeparator) + "ca.crt"
	caKeyPath := caDir + string(os.PathSeparator) + "ca.key"
	leafCertPath := certDir + string(os.PathSeparator) + devLeafName + ".crt"
	leafKeyPath := certDir + string(os.PathSeparator) + devLeafName + ".key"

	if ca, err := selfcert.LoadCA(caCertPath, caKeyPath); err == nil {
		if leaf, err := selfcert.LoadLeaf(leafCertPath, leafKeyPath); err == nil {
			devCA, devLeaf = ca, leaf
			return
		}
	}

	ca, err := selfcert.NewCA("spio-dev-ca")
	if err != nil {
		devErr = err
		return
	}
	leaf, err := ca.IssueLeaf(devLeafName, "127.0.0.1", "::1", "localhost")
	if err != nil {
		devErr = err
		return
	}
	if _, _, err := ca.WriteFiles(caDir); err != nil {
		devErr = err
		return
	}
	if _, _, err := leaf.WriteFiles(certDir, devLeafName); err != nil {
		devErr = err
		return
	}
	devCA, devLeaf = ca, leaf
}

// devServerConfig returns the registry default server-side *Config,
// presenting devLeaf.
func devServerConfig() (*Config, error) {
	devOnce.Do(devInit)
	if devErr != nil {
		return nil, devErr
	}
	raw, err := selfcert.ServerConfig(devLeaf, devCA, false)
	if err != nil {
		return nil, err
	}
	return NewConfig(raw)
}

// devClientConfig returns the registry default client-side *Config. It
// trusts exactly the CA devServerConfig's leaf was signed by, so a
// tls+tcp Dial against a tls+tcp Listen in the same process verifies
// normally; dialing an independently-keyed remote listener fails
// verification, as it should. A caller that needs to trust a real
// remote peer builds its own *Config with NewConfig.
func devClientConfig() (*Config, error) {
	devOnce.Do(devInit)
	if devErr != nil {
		return nil, devErr
	}
	raw, err := selfcert.ClientConfig(devCA, nil, "localhost")
	if err != nil {
		return nil, err
	}
	return NewConfig(raw)
}
