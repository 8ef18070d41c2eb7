package spio

import (
	"os"
)

// Store config files in standard locations. Per
// https://unix.stackexchange.com/questions/312988/understanding-home-configuration-file-locations-config-and-local-sha
//
// $HOME/.config is where per-user configuration files go if there is no
// $XDG_CONFIG_HOME.
var sep = string(os.PathSeparator)

// spioConfigDir resolves to $XDG_CONFIG_HOME/spio/base, falling back to
// $HOME/.config/spio/base, falling back to ./base. Only the $HOME fallback
// goes under ".config" -- $XDG_CONFIG_HOME already names a config root, so
// appending ".config" a second time under it would double the segment.
func spioConfigDir(base string) (path string) {
	dir := os.Getenv("XDG_CONFIG_HOME")
	home := os.Getenv("HOME")
	switch {
	case dir != "":
		path = dir + sep + "spio" + sep + base
	case home != "":
		path = home + sep + ".config" + sep + "spio" + sep + base
	default:
		path = base
	}
	return path
}

// GetCertsDir tells us where to generate/look for the TLS certificates
// and key pairs a Socket's transport/tls and transport/ws listeners and
// dialers use, creating the directory if it does not exist.
//
// Panics if the directory cannot be created.
func GetCertsDir() (path string) {
	path = spioConfigDir("certs")
	panicOn(os.MkdirAll(path, 0700))
	return path
}

// GetPrivateCertificateAuthDir says where to store the CA's own private
// key, which should not be distributed alongside the leaf certificates
// individual nodes use, creating the directory if it does not exist.
//
// Panics if the directory cannot be created.
func GetPrivateCertificateAuthDir() (path string) {
	path = spioConfigDir("my-keep-private-dir")
	panicOn(os.MkdirAll(path, 0700))
	return path
}
