package shipper

import (
	"context"
	"crypto/rand"
	"encoding/json"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Neu-ron/Cygnet/internal/alert"
	"github.com/Neu-ron/Cygnet/internal/shipper/crypt"
)

// fakeServer drives the server side of net.Pipe: it reads credentials,
// writes back an auth status, and optionally completes the DH
// handshake, letting each test control exactly where the handshake
// diverges from spec §6.
func fakeServer(t *testing.T, conn net.Conn, wantHash, status string) {
	t.Helper()
	buf := make([]byte, 1024)
	n, err := conn.Read(buf)
	require.NoError(t, err)
	var creds credentials
	require.NoError(t, json.Unmarshal(buf[:n], &creds))
	assert.Equal(t, wantHash, creds.CompanyHash)

	_, err = conn.Write([]byte(status))
	require.NoError(t, err)
}

// TestScenarioS5Shipper pins spec §8 at the shipper level: a successful
// credentials exchange followed by a DH handshake lets both sides
// derive the same session key and exchange an encrypted alert.
func TestScenarioS5Shipper(t *testing.T) {
	clientConn, serverConn := net.Pipe()
	defer clientConn.Close()
	defer serverConn.Close()

	serverDone := make(chan string, 1)
	go func() {
		fakeServer(t, serverConn, "company-hash-1", statusConn)
		box, err := ServerHandshake(serverConn)
		if err != nil {
			t.Errorf("server handshake: %v", err)
			return
		}
		frame, err := readFrame(serverConn)
		if err != nil {
			t.Errorf("server read alert frame: %v", err)
			return
		}
		plaintext, err := box.Decrypt(string(frame))
		if err != nil {
			t.Errorf("server decrypt: %v", err)
			return
		}
		// Wire contract (spec §6) is the antigen id alone, JSON-encoded
		// as a string, not the structured Alert.
		var antigenID string
		if err := json.Unmarshal(plaintext, &antigenID); err != nil {
			t.Errorf("server unmarshal antigen id: %v", err)
			return
		}
		serverDone <- antigenID
	}()

	require.NoError(t, Authenticate(clientConn, "host-1", "company-hash-1"))
	box, err := Handshake(clientConn)
	require.NoError(t, err)

	want := alert.Alert{AntigenID: "10.0.0.1:1-10.0.0.5:443", SIP: "10.0.0.1", SPort: 1, DIP: "10.0.0.5", DPort: 443}
	sh := &Shipper{conn: clientConn, box: box}
	require.NoError(t, sh.ship(want))

	select {
	case got := <-serverDone:
		assert.Equal(t, want.AntigenID, got)
	case <-time.After(time.Second):
		t.Fatal("server did not receive alert in time")
	}
}

// TestScenarioS6Shipper pins spec §8: a "FAIL" auth status aborts the
// handshake and Authenticate returns an error without proceeding to DH.
func TestScenarioS6Shipper(t *testing.T) {
	clientConn, serverConn := net.Pipe()
	defer clientConn.Close()
	defer serverConn.Close()

	go fakeServer(t, serverConn, "wrong-hash", statusFail)

	err := Authenticate(clientConn, "host-1", "wrong-hash")
	assert.Error(t, err)
}

func TestAuthenticate_UnrecognisedStatus(t *testing.T) {
	clientConn, serverConn := net.Pipe()
	defer clientConn.Close()
	defer serverConn.Close()

	go fakeServer(t, serverConn, "h", "XXXX")

	err := Authenticate(clientConn, "host", "h")
	assert.Error(t, err)
}

func TestShipperRun_ClosesConnOnInputClose(t *testing.T) {
	clientConn, serverConn := net.Pipe()
	defer serverConn.Close()

	key := make([]byte, 32)
	_, err := rand.Read(key)
	require.NoError(t, err)
	box, err := crypt.NewBox(key)
	require.NoError(t, err)

	s := &Shipper{conn: clientConn, box: box}
	in := make(chan alert.Alert)
	close(in)

	done := make(chan error, 1)
	go func() { done <- s.Run(context.Background(), in) }()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("Run did not return after input closed")
	}

	_, err = clientConn.Write([]byte("x"))
	assert.Error(t, err, "connection should be closed after Run returns")
}
