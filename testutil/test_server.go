package testutil

import (
	"bufio"
	"crypto/rand"
	"crypto/rsa"
	"crypto/tls"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/pem"
	"fmt"
	"math/big"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// LineServer is a test TCP/TLS server that speaks the line-oriented
// protocol the Session Engine dials into.
type LineServer struct {
	listener net.Listener
}

// Handler handles one accepted connection's worth of line traffic.
type Handler func(t *testing.T, conn net.Conn)

// NewLineServer starts a plain-TCP test server on localhost with a Handler
// that echoes each received line prefixed with "GOT:".
func NewLineServer(t *testing.T) *LineServer {
	return NewLineServerHandler(t, Echoer)
}

// NewLineServerHandler starts a plain-TCP test server with a custom Handler.
func NewLineServerHandler(t *testing.T, handler Handler) *LineServer {
	listener, err := net.Listen("tcp", "localhost:0")
	require.NoError(t, err, "listen failed")

	go acceptConnections(t, listener, handler)

	return &LineServer{listener: listener}
}

// NewTLSLineServer starts a TLS test server on localhost backed by a
// freshly generated self-signed certificate, with a Handler that echoes
// each received line prefixed with "GOT:".
func NewTLSLineServer(t *testing.T) *LineServer {
	return NewTLSLineServerHandler(t, Echoer)
}

// NewTLSLineServerHandler starts a TLS test server with a custom Handler.
func NewTLSLineServerHandler(t *testing.T, handler Handler) *LineServer {
	cert := generateSelfSignedCert(t)

	listener, err := tls.Listen("tcp", "localhost:0", &tls.Config{
		Certificates: []tls.Certificate{cert},
	})
	require.NoError(t, err, "tls listen failed")

	go acceptConnections(t, listener, handler)

	return &LineServer{listener: listener}
}

// Port delivers the TCP port the server is listening on.
func (ts *LineServer) Port() int {
	return ts.listener.Addr().(*net.TCPAddr).Port
}

// Close closes the listener.
func (ts *LineServer) Close() {
	_ = ts.listener.Close()
}

func acceptConnections(t *testing.T, listener net.Listener, handler Handler) {
	for {
		conn, err := listener.Accept()
		if err != nil {
			return
		}
		go func() {
			defer conn.Close()
			handler(t, conn)
		}()
	}
}

// Echoer is the default Handler: it reads lines and writes each one back
// prefixed with "GOT:", closing the connection when the peer half-closes
// its write side (ReadString returns io.EOF).
func Echoer(t *testing.T, conn net.Conn) {
	r := bufio.NewReader(conn)
	w := bufio.NewWriter(conn)
	for {
		line, err := r.ReadString('\n')
		if line != "" {
			_, werr := w.WriteString(fmt.Sprintf("GOT:%s", line))
			assert.NoError(t, werr, "write failed")
			assert.NoError(t, w.Flush(), "flush failed")
		}
		if err != nil {
			return
		}
	}
}

// generateSelfSignedCert builds an in-memory self-signed leaf certificate
// for localhost, analogous to the teacher's SSH host key generation.
func generateSelfSignedCert(t *testing.T) tls.Certificate {
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err, "key generation failed")

	template := &x509.Certificate{
		SerialNumber: big.NewInt(1),
		Subject:      pkix.Name{CommonName: "localhost"},
		DNSNames:     []string{"localhost"},
		NotBefore:    time.Now().Add(-time.Hour),
		NotAfter:     time.Now().Add(time.Hour),
		KeyUsage:     x509.KeyUsageKeyEncipherment | x509.KeyUsageDigitalSignature,
		ExtKeyUsage:  []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth},
	}

	der, err := x509.CreateCertificate(rand.Reader, template, template, &key.PublicKey, key)
	require.NoError(t, err, "certificate creation failed")

	cert, err := tls.X509KeyPair(
		pemEncode("CERTIFICATE", der),
		pemEncode("RSA PRIVATE KEY", x509.MarshalPKCS1PrivateKey(key)),
	)
	require.NoError(t, err, "x509 keypair failed")
	return cert
}

func pemEncode(blockType string, der []byte) []byte {
	return pem.EncodeToMemory(&pem.Block{Type: blockType, Bytes: der})
}
