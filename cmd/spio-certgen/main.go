// Command spio-certgen mints a throwaway self-signed CA and a leaf
// certificate for exercising transport/tls, following the teacher's
// cmd/selfy convention of a small flag-driven certificate tool.
package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/opensp/spio/selfcert"
)

func main() {
	var (
		outDir    = flag.String("out", ".", "directory to write PEM files into")
		caName    = flag.String("ca-name", "spio-test-ca", "common name for the CA certificate")
		leafName  = flag.String("leaf-name", "spio-test-leaf", "common name for the leaf certificate")
		hostsFlag = flag.String("hosts", "127.0.0.1,localhost", "comma-separated DNS names / IP addresses for the leaf")
	)
	flag.Parse()

	hosts := strings.Split(*hostsFlag, ",")

	ca, err := selfcert.NewCA(*caName)
	if err != nil {
		log.Fatalf("spio-certgen: NewCA: %v", err)
	}
	leaf, err := ca.IssueLeaf(*leafName, hosts...)
	if err != nil {
		log.Fatalf("spio-certgen: IssueLeaf: %v", err)
	}

	if err := os.MkdirAll(*outDir, 0700); err != nil {
		log.Fatalf("spio-certgen: MkdirAll: %v", err)
	}
	write := func(name string, data []byte) {
		path := filepath.Join(*outDir, name)
		if err := os.WriteFile(path, data, 0600); err != nil {
			log.Fatalf("spio-certgen: writing %s: %v", path, err)
		}
		fmt.Println(path)
	}
	write("ca-cert.pem", ca.CertPEM)
	write("leaf-cert.pem", leaf.CertPEM)
	write("leaf-key.pem", leaf.KeyPEM)
}
