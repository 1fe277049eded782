package config

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/google/uuid"
)

// hostnameRE matches spec §6: 1-63 alphanumerics/hyphens, no leading or
// trailing hyphen.
var hostnameRE = regexp.MustCompile(`^[A-Za-z0-9]([A-Za-z0-9-]{0,61}[A-Za-z0-9])?$`)

// CompanyKey is the parsed form of the `<uuid>:<hostname>:<port>`
// company-key argument the CLI takes, per spec §6.
//
// The source ships the whole, unparsed company-key string as the
// "company_hash" credential field (client_main.py:
// `company_hash=company_key`); Raw preserves that for the shipper.
type CompanyKey struct {
	UUID     uuid.UUID
	Hostname string
	Port     uint16
	Raw      string
}

// ParseCompanyKey validates and splits a company key. Any malformed
// shape is rejected here, per spec §6 ("any other shape is rejected at
// startup with exit code 1"); the source only ever did
// `company_key.split(':')` with no validation at all, which this
// supplements per SPEC_FULL §9.
func ParseCompanyKey(raw string) (CompanyKey, error) {
	parts := strings.Split(raw, ":")
	if len(parts) != 3 {
		return CompanyKey{}, fmt.Errorf("config: company key must have 3 ':'-separated fields, got %d", len(parts))
	}
	id, err := uuid.Parse(parts[0])
	if err != nil {
		return CompanyKey{}, fmt.Errorf("config: invalid company UUID %q: %w", parts[0], err)
	}
	if !hostnameRE.MatchString(parts[1]) {
		return CompanyKey{}, fmt.Errorf("config: invalid server hostname %q", parts[1])
	}
	port, err := strconv.ParseUint(parts[2], 10, 16)
	if err != nil {
		return CompanyKey{}, fmt.Errorf("config: invalid port %q: %w", parts[2], err)
	}
	return CompanyKey{UUID: id, Hostname: parts[1], Port: uint16(port), Raw: raw}, nil
}

// ServerAddr formats the host:port pair Dial needs.
func (k CompanyKey) ServerAddr() string {
	return fmt.Sprintf("%s:%d", k.Hostname, k.Port)
}
