package devcert

import (
	"crypto/tls"
	"crypto/x509"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEnsure(t *testing.T) {
	dir := t.TempDir()
	certPath := filepath.Join(dir, "cert.pem")
	keyPath := filepath.Join(dir, "key.pem")

	generated, err := Ensure(certPath, keyPath, []string{"localhost", "127.0.0.1"})
	require.NoError(t, err)
	assert.True(t, generated)

	pair, err := tls.LoadX509KeyPair(certPath, keyPath)
	require.NoError(t, err)
	cert, err := x509.ParseCertificate(pair.Certificate[0])
	require.NoError(t, err)
	assert.Equal(t, []string{"localhost"}, cert.DNSNames)
	require.Len(t, cert.IPAddresses, 1)
	assert.Equal(t, "127.0.0.1", cert.IPAddresses[0].String())
	assert.NoError(t, cert.VerifyHostname("localhost"))

	generated, err = Ensure(certPath, keyPath, []string{"localhost"})
	require.NoError(t, err)
	assert.False(t, generated)
}

func TestEnsureRequiresHosts(t *testing.T) {
	dir := t.TempDir()
	_, err := Ensure(filepath.Join(dir, "c.pem"), filepath.Join(dir, "k.pem"), nil)
	assert.Error(t, err)
}
