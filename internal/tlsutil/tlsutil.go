// Package tlsutil generates the self-signed certificates relique daemons
// fall back to when no operator-provided certificate is installed. Peers run
// with strict_ssl_certificate_check disabled in that setup, so the
// certificate only has to exist and parse, not chain to a trusted root.
package tlsutil

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/pem"
	"fmt"
	"math/big"
	"net"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"
)

const (
	organizationName = "relique"

	// validity of generated certificates. Regeneration is manual: delete
	// the pair and restart the daemon.
	validityYears = 10

	rsaKeyBits = 2048
)

// EnsureCertificate makes sure a usable certificate/key pair exists at the
// given paths, generating a self-signed pair when both are missing. A pair
// where only one file exists is reported as an error rather than silently
// overwritten, since it usually means a broken manual installation.
func EnsureCertificate(certPath, keyPath string, hosts []string, logger *zap.Logger) error {
	certExists := fileExists(certPath)
	keyExists := fileExists(keyPath)

	switch {
	case certExists && keyExists:
		return nil
	case certExists != keyExists:
		return fmt.Errorf("tlsutil: incomplete certificate pair: cert=%q (exists=%v), key=%q (exists=%v)",
			certPath, certExists, keyPath, keyExists)
	}

	logger.Info("No TLS certificate found, generating self-signed certificate",
		zap.String("cert", certPath),
		zap.String("key", keyPath),
		zap.Strings("hosts", hosts),
	)

	certPEM, keyPEM, err := generateSelfSigned(hosts)
	if err != nil {
		return fmt.Errorf("tlsutil: generate certificate: %w", err)
	}

	for _, dir := range []string{filepath.Dir(certPath), filepath.Dir(keyPath)} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("tlsutil: create directory %s: %w", dir, err)
		}
	}

	if err := os.WriteFile(certPath, certPEM, 0o644); err != nil {
		return fmt.Errorf("tlsutil: write certificate: %w", err)
	}
	if err := os.WriteFile(keyPath, keyPEM, 0o600); err != nil {
		return fmt.Errorf("tlsutil: write private key: %w", err)
	}
	return nil
}

// generateSelfSigned builds a self-signed RSA certificate valid for the given
// hosts. Host entries that parse as IP addresses land in the IPAddresses SAN
// list, everything else in DNSNames.
func generateSelfSigned(hosts []string) (certPEM, keyPEM []byte, err error) {
	key, err := rsa.GenerateKey(rand.Reader, rsaKeyBits)
	if err != nil {
		return nil, nil, err
	}

	serialBytes := make([]byte, 20)
	if _, err := rand.Read(serialBytes); err != nil {
		return nil, nil, err
	}

	notBefore := time.Now()
	template := x509.Certificate{
		SerialNumber: new(big.Int).SetBytes(serialBytes),
		Subject: pkix.Name{
			Organization: []string{organizationName},
		},
		NotBefore:             notBefore,
		NotAfter:              notBefore.AddDate(validityYears, 0, 0),
		KeyUsage:              x509.KeyUsageDigitalSignature | x509.KeyUsageKeyEncipherment,
		ExtKeyUsage:           []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth},
		BasicConstraintsValid: true,
	}

	for _, h := range hosts {
		if ip := net.ParseIP(h); ip != nil {
			template.IPAddresses = append(template.IPAddresses, ip)
		} else if h != "" {
			template.DNSNames = append(template.DNSNames, h)
		}
	}

	der, err := x509.CreateCertificate(rand.Reader, &template, &template, &key.PublicKey, key)
	if err != nil {
		return nil, nil, err
	}

	certPEM = pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: der})
	keyPEM = pem.EncodeToMemory(&pem.Block{Type: "RSA PRIVATE KEY", Bytes: x509.MarshalPKCS1PrivateKey(key)})
	return certPEM, keyPEM, nil
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
