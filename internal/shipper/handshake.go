package shipper

import (
	"crypto/rand"
	"encoding/json"
	"fmt"
	"io"
	"net"

	"github.com/Neu-ron/Cygnet/internal/shipper/crypt"
)

// Authenticate performs the credentials exchange of spec §6: it writes
// the JSON {hostname, company_hash} payload and reads back the 4-byte
// status code, returning an error if the server replies "FAIL" (or
// anything other than "CONN").
func Authenticate(conn net.Conn, hostname, companyHash string) error {
	payload, err := json.Marshal(credentials{Hostname: hostname, CompanyHash: companyHash})
	if err != nil {
		return fmt.Errorf("shipper: marshal credentials: %w", err)
	}
	if _, err := conn.Write(payload); err != nil {
		return fmt.Errorf("shipper: send credentials: %w", err)
	}
	status := make([]byte, 4)
	if _, err := io.ReadFull(conn, status); err != nil {
		return fmt.Errorf("shipper: read auth status: %w", err)
	}
	switch string(status) {
	case statusConn:
		return nil
	case statusFail:
		return fmt.Errorf("shipper: authentication rejected by server")
	default:
		return fmt.Errorf("shipper: unrecognised auth status %q", status)
	}
}

// Handshake performs the Diffie-Hellman exchange of spec §6 over an
// already-authenticated connection: the endpoint's public key is sent
// first (matching original_source's Client.enc, which sends before it
// receives), then the peer's public key is read back, and a Fernet-
// compatible Box is derived from the shared session key.
func Handshake(conn net.Conn) (*crypt.Box, error) {
	kp, err := crypt.GenerateKeyPair(rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("shipper: generate key pair: %w", err)
	}
	ownDER, err := crypt.MarshalPublicKey(kp.Public)
	if err != nil {
		return nil, fmt.Errorf("shipper: marshal public key: %w", err)
	}
	if err := writeFrame(conn, ownDER); err != nil {
		return nil, err
	}
	peerDER, err := readFrame(conn)
	if err != nil {
		return nil, fmt.Errorf("shipper: read peer public key: %w", err)
	}
	peerPub, err := crypt.UnmarshalPublicKey(peerDER)
	if err != nil {
		return nil, fmt.Errorf("shipper: unmarshal peer public key: %w", err)
	}
	sessionKey, err := kp.SessionKey(peerPub)
	if err != nil {
		return nil, err
	}
	return crypt.NewBox(sessionKey)
}

// ServerHandshake is the mirror image of Handshake for the opposite
// side of the connection (used by tests to stand in for the alert
// server, per SPEC_FULL §8's in-process net.Pipe handshake tests):
// it reads the peer's public key first, then sends its own.
func ServerHandshake(conn net.Conn) (*crypt.Box, error) {
	kp, err := crypt.GenerateKeyPair(rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("shipper: generate key pair: %w", err)
	}
	peerDER, err := readFrame(conn)
	if err != nil {
		return nil, fmt.Errorf("shipper: read peer public key: %w", err)
	}
	peerPub, err := crypt.UnmarshalPublicKey(peerDER)
	if err != nil {
		return nil, fmt.Errorf("shipper: unmarshal peer public key: %w", err)
	}
	ownDER, err := crypt.MarshalPublicKey(kp.Public)
	if err != nil {
		return nil, fmt.Errorf("shipper: marshal public key: %w", err)
	}
	if err := writeFrame(conn, ownDER); err != nil {
		return nil, err
	}
	sessionKey, err := kp.SessionKey(peerPub)
	if err != nil {
		return nil, err
	}
	return crypt.NewBox(sessionKey)
}
