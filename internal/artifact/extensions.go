package artifact

import (
	"path/filepath"
	"strings"
)

// derExtensions contains file extensions that may hold ASN.1/DER-encoded crypto
// data (certificates, requests, keys, PKCS#7, PKCS#12). Only files with these
// extensions are tried as DER to avoid feeding arbitrary binary files to ASN.1
// parsers.
var derExtensions = map[string]bool{
	".der":  true,
	".cer":  true,
	".crt":  true,
	".cert": true,
	".ca":   true,
	".pem":  true, // sometimes DER despite extension

	".csr": true,
	".req": true,
	".p10": true,

	".key":     true,
	".privkey": true,
	".priv":    true,
	".p8":      true,

	".p12": true,
	".pfx": true,

	".p7b": true,
	".p7c": true,
	".p7":  true,

	".chain":     true,
	".bundle":    true,
	".ca-bundle": true,
	".x509":      true,
}

// jksExtensions contains file extensions for Java KeyStore files.
var jksExtensions = map[string]bool{
	".jks":        true,
	".keystore":   true,
	".truststore": true,
}

// HasBinaryExtension reports whether the file path has a recognized DER or JKS
// extension. The extension is matched case-insensitively. For virtual paths
// such as "archive.zip:certs/server.p12" only the part after the last ":" is
// considered.
func HasBinaryExtension(path string) bool {
	if idx := strings.LastIndex(path, ":"); idx >= 0 {
		path = path[idx+1:]
	}
	ext := strings.ToLower(filepath.Ext(path))
	return derExtensions[ext] || jksExtensions[ext]
}
