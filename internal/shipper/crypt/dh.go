// Package crypt implements the endpoint<->server transport security
// described in spec §4.6/§6: a Diffie-Hellman handshake using RFC-3526
// Group 14, HKDF-SHA256 session-key derivation, and a Fernet-compatible
// authenticated-encryption frame for session traffic.
package crypt

import (
	"crypto/rand"
	"encoding/asn1"
	"fmt"
	"io"
	"math/big"

	"golang.org/x/crypto/hkdf"

	"crypto/sha256"
)

// group14P is the RFC-3526 2048-bit MODP Group 14 prime.
var group14P = mustHex(
	"FFFFFFFFFFFFFFFFC90FDAA22168C234C4C6628B80DC1CD" +
		"129024E088A67CC74020BBEA63B139B22514A08798E3404" +
		"DDEF9519B3CD3A431B302B0A6DF25F14374FE1356D6D51C" +
		"245E485B576625E7EC6F44C42E9A637ED6B0BFF5CB6F406B" +
		"7EDEE386BFB5A899FA5AE9F24117C4B1FE649286651ECE45" +
		"B3DC2007CB8A163BF0598DA48361C55D39A69163FA8FD24C" +
		"F5F83655D23DCA3AD961C62F356208552BB9ED529077096" +
		"966D670C354E4ABC9804F1746C08CA18217C32905E462E3" +
		"6CE3BE39E772C180E86039B2783A2EC07A28FB5C55DF06F" +
		"4C52C9DE2BCBF6955817183995497CEA956AE515D226189" +
		"8FA051015728E5A8AACAA68FFFFFFFFFFFFFFFF",
)

// group14G is the RFC-3526 generator, g=2.
var group14G = big.NewInt(2)

func mustHex(s string) *big.Int {
	n, ok := new(big.Int).SetString(s, 16)
	if !ok {
		panic("crypt: invalid hard-coded DH prime")
	}
	return n
}

// dhOID is the PKCS#3 dhKeyAgreement object identifier,
// 1.2.840.113549.1.3.1.
var dhOID = asn1.ObjectIdentifier{1, 2, 840, 113549, 1, 3, 1}

type dhParameters struct {
	P *big.Int
	G *big.Int
}

type algorithmIdentifier struct {
	Algorithm  asn1.ObjectIdentifier
	Parameters dhParameters
}

type subjectPublicKeyInfo struct {
	Algorithm algorithmIdentifier
	PublicKey asn1.BitString
}

// KeyPair is one side of a Diffie-Hellman exchange.
type KeyPair struct {
	private *big.Int
	Public  *big.Int
}

// GenerateKeyPair draws a fresh DH private/public key pair over Group 14.
func GenerateKeyPair(rnd io.Reader) (*KeyPair, error) {
	if rnd == nil {
		rnd = rand.Reader
	}
	// Private exponent drawn uniformly from [2, p-2], i.e. a full-width
	// exponent over the 2048-bit prime.
	priv, err := rand.Int(rnd, new(big.Int).Sub(group14P, big.NewInt(3)))
	if err != nil {
		return nil, fmt.Errorf("crypt: generate private key: %w", err)
	}
	priv.Add(priv, big.NewInt(2))
	pub := new(big.Int).Exp(group14G, priv, group14P)
	return &KeyPair{private: priv, Public: pub}, nil
}

// MarshalPublicKey encodes the public key as a DER SubjectPublicKeyInfo,
// matching the wire frame in spec §6.
func MarshalPublicKey(pub *big.Int) ([]byte, error) {
	yDER, err := asn1.Marshal(pub)
	if err != nil {
		return nil, fmt.Errorf("crypt: marshal public value: %w", err)
	}
	spki := subjectPublicKeyInfo{
		Algorithm: algorithmIdentifier{
			Algorithm:  dhOID,
			Parameters: dhParameters{P: group14P, G: group14G},
		},
		PublicKey: asn1.BitString{Bytes: yDER, BitLength: len(yDER) * 8},
	}
	return asn1.Marshal(spki)
}

// UnmarshalPublicKey decodes a DER SubjectPublicKeyInfo produced by
// MarshalPublicKey (or an equivalent PKCS#3 DH encoder) back into the
// peer's public value.
func UnmarshalPublicKey(der []byte) (*big.Int, error) {
	var spki subjectPublicKeyInfo
	if _, err := asn1.Unmarshal(der, &spki); err != nil {
		return nil, fmt.Errorf("crypt: unmarshal SubjectPublicKeyInfo: %w", err)
	}
	var y big.Int
	if _, err := asn1.Unmarshal(spki.PublicKey.Bytes, &y); err != nil {
		return nil, fmt.Errorf("crypt: unmarshal public value: %w", err)
	}
	return &y, nil
}

// SessionKey derives the 32-byte symmetric session key from the shared
// DH secret via HKDF-SHA256 with an empty salt and info="handshake
// data", per spec §6.
func (k *KeyPair) SessionKey(peerPublic *big.Int) ([]byte, error) {
	shared := new(big.Int).Exp(peerPublic, k.private, group14P)
	// Zero-pad the shared secret to the prime's byte length: big.Int.Bytes
	// strips leading zero bytes, but the DH shared secret is a fixed-width
	// field (RFC 2631), so an unpadded encoding would silently diverge from
	// a standards-conformant peer whenever the high byte happens to be zero.
	sharedBytes := make([]byte, (group14P.BitLen()+7)/8)
	shared.FillBytes(sharedBytes)
	reader := hkdf.New(sha256.New, sharedBytes, nil, []byte("handshake data"))
	key := make([]byte, 32)
	if _, err := io.ReadFull(reader, key); err != nil {
		return nil, fmt.Errorf("crypt: derive session key: %w", err)
	}
	return key, nil
}
