// Package urlguard decides whether a station address may be contacted by the device
// and renders untrusted addresses safely for logs and error responses.
package urlguard

import (
	"fmt"
	"net/netip"
	"strings"
)

const (
	MinLength          = 10   // shortest plausible address, "http://a.b"
	MaxLength          = 2048 // caps worst-case processing of hostile input
	MaxHostnameLength  = 253
	SanitizedMaxLength = 512

	truncatedMarker = "... [truncated]"
)

// Result is the outcome of Validate. The zero value is Valid.
type Result int

const (
	Valid Result = iota
	Empty
	TooShort
	TooLong
	InvalidProtocol
	LocalhostBlocked
	PrivateIPBlocked
	LinkLocalBlocked
	InvalidFormat
	DangerousChars
)

func (r Result) String() string {
	switch r {
	case Valid:
		return "VALID"
	case Empty:
		return "EMPTY"
	case TooShort:
		return "TOO_SHORT"
	case TooLong:
		return "TOO_LONG"
	case InvalidProtocol:
		return "INVALID_PROTOCOL"
	case LocalhostBlocked:
		return "LOCALHOST_BLOCKED"
	case PrivateIPBlocked:
		return "PRIVATE_IP_BLOCKED"
	case LinkLocalBlocked:
		return "LINK_LOCAL_BLOCKED"
	case InvalidFormat:
		return "INVALID_FORMAT"
	case DangerousChars:
		return "DANGEROUS_CHARS"
	default:
		return "UNKNOWN"
	}
}

// Message returns the user-facing explanation for r.
func (r Result) Message() string {
	switch r {
	case Valid:
		return "URL is valid"
	case Empty:
		return "URL cannot be empty"
	case TooShort:
		return fmt.Sprintf("URL is too short (minimum %d characters)", MinLength)
	case TooLong:
		return fmt.Sprintf("URL is too long (maximum %d characters)", MaxLength)
	case InvalidProtocol:
		return "Unsupported protocol, only http:// and https:// are allowed"
	case LocalhostBlocked:
		return "Access to localhost is not allowed"
	case PrivateIPBlocked:
		return "Access to private network addresses is not allowed"
	case LinkLocalBlocked:
		return "Access to link-local addresses is not allowed"
	case InvalidFormat:
		return "Malformed URL"
	case DangerousChars:
		return "URL contains forbidden characters"
	default:
		return "Unknown validation error"
	}
}

// Err returns nil for Valid and an *Error otherwise.
func (r Result) Err() error {
	if r == Valid {
		return nil
	}
	return &Error{Result: r}
}

// Error carries a rejected Result through error-returning call chains.
type Error struct {
	Result Result
}

func (e *Error) Error() string {
	return "invalid station url: " + e.Result.Message()
}

// Validate applies the admission rules in order; the first failing rule decides the result.
func Validate(rawURL string) Result {
	if rawURL == "" {
		return Empty
	}
	if len(rawURL) < MinLength {
		return TooShort
	}
	if len(rawURL) > MaxLength {
		return TooLong
	}
	if !strings.HasPrefix(rawURL, "http://") && !strings.HasPrefix(rawURL, "https://") {
		return InvalidProtocol
	}
	if hasDangerousChars(rawURL) {
		return DangerousChars
	}

	host := Hostname(rawURL)
	if host == "" || len(host) > MaxHostnameLength {
		return InvalidFormat
	}

	return classifyHost(host)
}

func hasDangerousChars(s string) bool {
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c < 32 || c == 127 {
			return true
		}
		switch c {
		case '<', '>', '"', '\'':
			return true
		}
	}
	return false
}

// Hostname extracts the lower-cased host part of an http(s) address. The authority ends
// at the first '/', '?' or '#'; any userinfo up to its last '@' is dropped, as net/url
// does, and the port is cut at ':'. A bracketed IPv6 literal is returned with its
// brackets. Returns "" when no host can be found.
func Hostname(rawURL string) string {
	var rest string
	switch {
	case strings.HasPrefix(rawURL, "http://"):
		rest = rawURL[len("http://"):]
	case strings.HasPrefix(rawURL, "https://"):
		rest = rawURL[len("https://"):]
	default:
		return ""
	}

	if end := strings.IndexAny(rest, "/?#"); end >= 0 {
		rest = rest[:end]
	}
	if at := strings.LastIndexByte(rest, '@'); at >= 0 {
		rest = rest[at+1:]
	}

	if strings.HasPrefix(rest, "[") {
		end := strings.IndexByte(rest, ']')
		if end < 0 {
			return ""
		}
		return strings.ToLower(rest[:end+1])
	}

	if end := strings.IndexByte(rest, ':'); end >= 0 {
		rest = rest[:end]
	}
	return strings.ToLower(rest)
}

func classifyHost(host string) Result {
	switch host {
	case "localhost", "localhost.localdomain", "::1", "[::1]":
		return LocalhostBlocked
	}

	if strings.HasPrefix(host, "[") {
		addr, err := netip.ParseAddr(strings.Trim(host, "[]"))
		if err != nil || !addr.Is6() {
			return InvalidFormat
		}
		return classifyAddr(addr)
	}

	if addr, err := netip.ParseAddr(host); err == nil {
		if !addr.Is4() {
			return InvalidFormat
		}
		return classifyAddr(addr)
	}

	// Numeric hosts that are not canonical dotted quads ("010.1.1.1", "2130706433")
	// are read as addresses by some resolvers, so they cannot be treated as names.
	if isNumericHost(host) {
		return InvalidFormat
	}

	if strings.HasSuffix(host, ".localhost") || strings.HasPrefix(host, "localhost.") {
		return LocalhostBlocked
	}
	if strings.HasSuffix(host, ".local") {
		return PrivateIPBlocked
	}
	return Valid
}

func isNumericHost(host string) bool {
	for i := 0; i < len(host); i++ {
		c := host[i]
		if (c < '0' || c > '9') && c != '.' {
			return false
		}
	}
	return true
}

func classifyAddr(addr netip.Addr) Result {
	if addr.Is4() {
		b := addr.As4()
		switch {
		case b[0] == 127:
			return LocalhostBlocked
		case b[0] == 169 && b[1] == 254:
			return LinkLocalBlocked
		case b[0] == 10,
			b[0] == 172 && b[1] >= 16 && b[1] <= 31,
			b[0] == 192 && b[1] == 168,
			b[0] == 0,
			b[0] >= 224:
			return PrivateIPBlocked
		}
		return Valid
	}

	switch {
	case addr.IsLoopback():
		return LocalhostBlocked
	case addr.IsLinkLocalUnicast(), addr.IsLinkLocalMulticast():
		return LinkLocalBlocked
	case addr.IsPrivate(), addr.IsMulticast(), addr.IsUnspecified():
		return PrivateIPBlocked
	case addr.Is4In6():
		return classifyAddr(addr.Unmap())
	}
	return Valid
}

// SanitizeForLog makes an untrusted address safe to embed in logs, HTML and error text.
func SanitizeForLog(rawURL string) string {
	var b strings.Builder
	b.Grow(min(len(rawURL), SanitizedMaxLength) + len(truncatedMarker))

	i, written := 0, 0
	for ; i < len(rawURL) && written < SanitizedMaxLength; i++ {
		c := rawURL[i]
		var chunk string
		switch {
		case c == '<':
			chunk = "&lt;"
		case c == '>':
			chunk = "&gt;"
		case c == '"':
			chunk = "&quot;"
		case c == '\'':
			chunk = "&#39;"
		case c == '&':
			chunk = "&amp;"
		case c < 32 || c == 127:
			chunk = " "
		default:
			b.WriteByte(c)
			written++
			continue
		}
		b.WriteString(chunk)
		written += len(chunk)
	}

	if i < len(rawURL) {
		b.WriteString(truncatedMarker)
	}
	return b.String()
}
