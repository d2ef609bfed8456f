package model

import (
	"fmt"
	"regexp"
	"strings"
)

// MinSubdomainLength is the shortest candidate worth probing. Anything
// shorter resets availability to unknown without a network call.
const MinSubdomainLength = 3

// reservedSubdomains cannot be claimed. The server enforces the same list;
// checking locally just saves a round trip for the obvious cases.
var reservedSubdomains = map[string]bool{
	"www": true, "ftp": true, "mail": true, "smtp": true, "pop": true,
	"imap": true, "admin": true, "root": true, "api": true, "app": true,
	"blog": true, "shop": true, "store": true, "support": true, "help": true,
	"docs": true, "status": true, "dashboard": true, "portal": true,
	"cdn": true, "static": true, "assets": true, "ns1": true, "ns2": true,
	"ns3": true, "ns4": true, "localhost": true, "webmail": true,
	"cpanel": true, "whm": true, "autoconfig": true, "autodiscover": true,
}

var subdomainPattern = regexp.MustCompile(`^[a-z0-9]([a-z0-9-]*[a-z0-9])?$`)

// ValidateSubdomain checks a candidate against the hosting rules: 3-63
// characters, alphanumerics and inner hyphens only, no consecutive hyphens,
// not a reserved name. The check is case-insensitive on format but the
// returned error messages quote the candidate as typed.
func ValidateSubdomain(subdomain string) error {
	if len(subdomain) < MinSubdomainLength {
		return fmt.Errorf("subdomain must be at least %d characters long", MinSubdomainLength)
	}
	if len(subdomain) > 63 {
		return fmt.Errorf("subdomain must be at most 63 characters long")
	}

	lowered := strings.ToLower(subdomain)
	if reservedSubdomains[lowered] {
		return fmt.Errorf("subdomain %q is reserved and cannot be used", subdomain)
	}

	if !subdomainPattern.MatchString(lowered) {
		return fmt.Errorf("subdomain must contain only letters, numbers, and hyphens, and must start and end with a letter or number")
	}

	if strings.Contains(subdomain, "--") {
		return fmt.Errorf("subdomain cannot contain consecutive hyphens")
	}

	return nil
}
