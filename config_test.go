package spio

import (
	"os"
	"testing"
)

func dirExists(path string) bool {
	fi, err := os.Stat(path)
	return err == nil && fi.IsDir()
}

func TestConfigDirectoriesFromEnvVar(t *testing.T) {
	tmp, err := os.MkdirTemp("", "spio-config-test")
	if err != nil {
		t.Fatal(err)
	}
	defer os.RemoveAll(tmp)

	old, hadOld := os.LookupEnv("XDG_CONFIG_HOME")
	os.Setenv("XDG_CONFIG_HOME", tmp)
	defer func() {
		if hadOld {
			os.Setenv("XDG_CONFIG_HOME", old)
		} else {
			os.Unsetenv("XDG_CONFIG_HOME")
		}
	}()

	_ = GetPrivateCertificateAuthDir()
	_ = GetCertsDir()

	if !dirExists(tmp + "/spio/certs") {
		t.Fatal("certs dir not made")
	}
	if !dirExists(tmp + "/spio/my-keep-private-dir") {
		t.Fatal("CA dir not made")
	}
}
