// Package shipper maintains the long-lived, encrypted connection to the
// alert server (spec §4.6): credentials exchange, Diffie-Hellman
// handshake, and the loop that drains the alert queue onto the wire.
package shipper

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"

	"github.com/Neu-ron/Cygnet/internal/alert"
	"github.com/Neu-ron/Cygnet/internal/shipper/crypt"
)

// Config holds everything needed to dial and authenticate to the alert
// server, parsed from a company key by internal/config.
type Config struct {
	ServerAddr  string // host:port
	Hostname    string
	CompanyHash string
	DialTimeout time.Duration
}

// Shipper owns one authenticated, encrypted connection to the alert
// server and ships alerts over it until its input channel closes or its
// context is cancelled.
type Shipper struct {
	conn net.Conn
	box  *crypt.Box
	log  *zap.Logger
}

// Dial connects to cfg.ServerAddr, runs the credentials exchange and DH
// handshake, and returns a ready-to-ship Shipper.
func Dial(ctx context.Context, cfg Config, log *zap.Logger) (*Shipper, error) {
	if log == nil {
		log = zap.NewNop()
	}
	d := net.Dialer{Timeout: cfg.DialTimeout}
	conn, err := d.DialContext(ctx, "tcp", cfg.ServerAddr)
	if err != nil {
		return nil, fmt.Errorf("shipper: dial %s: %w", cfg.ServerAddr, err)
	}
	if err := Authenticate(conn, cfg.Hostname, cfg.CompanyHash); err != nil {
		conn.Close()
		return nil, err
	}
	box, err := Handshake(conn)
	if err != nil {
		conn.Close()
		return nil, err
	}
	return &Shipper{conn: conn, box: box, log: log}, nil
}

// Run drains alerts from in and ships each as an encrypted frame until
// in closes or ctx is cancelled, then closes the connection. A per-
// alert encrypt/send failure is logged and treated as fatal to this
// connection (the caller's reconnect loop, if any, takes over).
func (s *Shipper) Run(ctx context.Context, in <-chan alert.Alert) error {
	defer s.conn.Close()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case a, ok := <-in:
			if !ok {
				return nil
			}
			if err := s.ship(a); err != nil {
				s.log.Warn("shipper: failed to ship alert", zap.String("antigen", a.AntigenID), zap.Error(err))
				return err
			}
		}
	}
}

func (s *Shipper) ship(a alert.Alert) error {
	// Wire contract is the antigen id alone, JSON-encoded as a string
	// (spec §6): the rest of alert.Alert's fields are for internal use
	// only and never cross the wire.
	payload, err := json.Marshal(a.AntigenID)
	if err != nil {
		return fmt.Errorf("shipper: marshal alert: %w", err)
	}
	token, err := s.box.Encrypt(payload, time.Now())
	if err != nil {
		return fmt.Errorf("shipper: encrypt alert: %w", err)
	}
	return writeFrame(s.conn, []byte(token))
}

// RunReconnecting runs first (an already-dialed, authenticated
// connection — the initial dial/handshake stays fatal per spec §7, so
// the caller performs it before entering this loop) and, if the
// connection is later lost, redials cfg with exponential backoff and
// resumes draining in. It returns only when ctx is cancelled or in
// closes cleanly. This is the optional "reconnect-with-backoff policy"
// spec §7 allows.
func RunReconnecting(ctx context.Context, first *Shipper, cfg Config, in <-chan alert.Alert, log *zap.Logger) {
	if log == nil {
		log = zap.NewNop()
	}
	bo := backoff.NewExponentialBackOff()
	bo.MaxElapsedTime = 0 // retry indefinitely; ctx cancellation is the only exit

	s := first
	for {
		if ctx.Err() != nil {
			return
		}
		if err := s.Run(ctx, in); err == nil || ctx.Err() != nil {
			return
		}
		log.Warn("shipper: connection lost, reconnecting")

		for {
			if ctx.Err() != nil {
				return
			}
			next, err := Dial(ctx, cfg, log)
			if err == nil {
				s = next
				bo.Reset()
				break
			}
			wait := bo.NextBackOff()
			log.Warn("shipper: reconnect dial failed, backing off", zap.Duration("wait", wait), zap.Error(err))
			select {
			case <-time.After(wait):
			case <-ctx.Done():
				return
			}
		}
	}
}
