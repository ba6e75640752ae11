package db

import (
	"errors"
	"net/url"
	"strings"
)

var errDSNSyntax = errors.New("db: malformed key=value DSN")

// kvPair is one keyword of a libpq connection string, in input order.
type kvPair struct {
	key, value string
}

func isURLDSN(s string) bool {
	lower := strings.ToLower(s)
	return strings.HasPrefix(lower, "postgres://") || strings.HasPrefix(lower, "postgresql://")
}

// parseKV splits a libpq keyword/value list. Values may be single-quoted and
// use \' and \\ escapes, so passwords with spaces survive.
func parseKV(s string) ([]kvPair, error) {
	var pairs []kvPair
	i, n := 0, len(s)
	for {
		for i < n && s[i] == ' ' {
			i++
		}
		if i == n {
			break
		}
		start := i
		for i < n && s[i] != '=' && s[i] != ' ' {
			i++
		}
		key := strings.ToLower(s[start:i])
		for i < n && s[i] == ' ' {
			i++
		}
		if key == "" || i == n || s[i] != '=' {
			return nil, errDSNSyntax
		}
		i++
		for i < n && s[i] == ' ' {
			i++
		}

		var b strings.Builder
		quoted := i < n && s[i] == '\''
		if quoted {
			i++
		}
		closed := !quoted
		for i < n {
			c := s[i]
			if c == '\\' && i+1 < n {
				b.WriteByte(s[i+1])
				i += 2
				continue
			}
			if quoted && c == '\'' {
				closed = true
				i++
				break
			}
			if !quoted && c == ' ' {
				break
			}
			b.WriteByte(c)
			i++
		}
		if !closed {
			return nil, errDSNSyntax
		}
		pairs = append(pairs, kvPair{key: key, value: b.String()})
	}
	if len(pairs) == 0 {
		return nil, errDSNSyntax
	}
	return pairs, nil
}

func formatKV(pairs []kvPair) string {
	parts := make([]string, len(pairs))
	for i, p := range pairs {
		v := p.value
		if v == "" || strings.ContainsAny(v, " '\\") {
			v = "'" + strings.NewReplacer(`\`, `\\`, `'`, `\'`).Replace(v) + "'"
		}
		parts[i] = p.key + "=" + v
	}
	return strings.Join(parts, " ")
}

func lookupKV(pairs []kvPair, key string) (string, bool) {
	for _, p := range pairs {
		if p.key == key {
			return p.value, true
		}
	}
	return "", false
}

// NormalizeDSN accepts either a URL style DSN (postgres://...) or a key=value list.
// Quotes around the whole string are dropped; a key=value list is rewritten
// with single spaces and gets sslmode=disable when it has no sslmode.
func NormalizeDSN(raw string) string {
	s := strings.Trim(strings.TrimSpace(raw), "\"")
	if s == "" || isURLDSN(s) {
		return s
	}
	pairs, err := parseKV(s)
	if err != nil {
		return s
	}
	if _, ok := lookupKV(pairs, "sslmode"); !ok {
		pairs = append(pairs, kvPair{key: "sslmode", value: "disable"})
	}
	return formatKV(pairs)
}

// ToURLDSN converts a key=value DSN to the URL form golang-migrate expects.
func ToURLDSN(kvDSN string) string {
	if kvDSN == "" || isURLDSN(kvDSN) {
		return kvDSN
	}
	pairs, err := parseKV(kvDSN)
	if err != nil {
		return kvDSN
	}
	host, _ := lookupKV(pairs, "host")
	user, _ := lookupKV(pairs, "user")
	dbname, _ := lookupKV(pairs, "dbname")
	if host == "" || user == "" || dbname == "" {
		return kvDSN
	}
	u := &url.URL{Scheme: "postgres", Host: host, Path: "/" + dbname, User: url.User(user)}
	if port, ok := lookupKV(pairs, "port"); ok && port != "" {
		u.Host = host + ":" + port
	}
	if pass, ok := lookupKV(pairs, "password"); ok && pass != "" {
		u.User = url.UserPassword(user, pass)
	}
	if sslm, ok := lookupKV(pairs, "sslmode"); ok {
		u.RawQuery = url.Values{"sslmode": {sslm}}.Encode()
	}
	return u.String()
}

// maskDSN hides the password of either DSN form for logging.
func maskDSN(dsn string) string {
	if isURLDSN(dsn) {
		u, err := url.Parse(dsn)
		if err != nil {
			return "postgres://***"
		}
		return u.Redacted()
	}
	pairs, err := parseKV(dsn)
	if err != nil {
		return "***"
	}
	for i := range pairs {
		if pairs[i].key == "password" {
			pairs[i].value = "***"
		}
	}
	return formatKV(pairs)
}
