package config

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"
)

// sanitizeConnectionError wraps an error from connecting to Postgres,
// stripping any credentials pgx's error messages echo back from the
// connection string while keeping host and port for diagnosability.
//
// This module only ever dials Postgres over a URL with embedded
// credentials — SQLite takes a bare filesystem path, which never needs
// this treatment.
func sanitizeConnectionError(err error, dbURL string) error {
	if err == nil {
		return nil
	}

	errMsg := err.Error()

	// If the error echoes the connection URL verbatim, replace it outright;
	// better to lose context than leak a password.
	if dbURL != "" && strings.Contains(errMsg, dbURL) {
		if u, parseErr := url.Parse(dbURL); parseErr == nil && u != nil && u.Host != "" {
			errMsg = strings.ReplaceAll(errMsg, dbURL, sanitizeURL(u))
		} else {
			errMsg = strings.ReplaceAll(errMsg, dbURL, "[DATABASE_URL_REDACTED]")
		}
	}

	errMsg = removeCredentialsFromError(errMsg, dbURL)
	host, port := extractHostPort(dbURL)
	return fmt.Errorf("config.Connect: %s (host=%s port=%s)", errMsg, host, port)
}

// removeCredentialsFromError strips the username:password pair parsed from
// dbURL out of errMsg, falling back to pattern matching when dbURL can't be
// parsed as a URL with user info (e.g. a malformed DSN echoed in a parse
// error).
func removeCredentialsFromError(errMsg string, dbURL string) string {
	if dbURL == "" {
		return errMsg
	}

	u, err := url.Parse(dbURL)
	if err != nil || u == nil || u.Scheme == "" || u.User == nil {
		return removeCommonCredentialPatterns(errMsg)
	}

	result := errMsg

	if strings.Contains(result, dbURL) {
		sanitizedURL := sanitizeURL(u)
		result = strings.ReplaceAll(result, dbURL, sanitizedURL)
		result = strings.ReplaceAll(result, `"`+dbURL+`"`, `"`+sanitizedURL+`"`)
		result = strings.ReplaceAll(result, `'`+dbURL+`'`, `'`+sanitizedURL+`'`)
	}

	if pass, hasPass := u.User.Password(); hasPass && pass != "" {
		result = strings.ReplaceAll(result, pass, "[REDACTED]")
		if username := u.User.Username(); username != "" {
			result = strings.ReplaceAll(result, username+":"+pass, username+":[REDACTED]")
		}
		if encodedPass := url.QueryEscape(pass); encodedPass != pass {
			result = strings.ReplaceAll(result, encodedPass, "[REDACTED]")
		}
	}

	if userInfo := u.User.String(); userInfo != "" && strings.Contains(result, userInfo) {
		sanitizedUser := u.User.Username()
		if sanitizedUser != "" {
			sanitizedUser += ":[REDACTED]"
		}
		result = strings.ReplaceAll(result, userInfo, sanitizedUser)
	}

	return result
}

// sanitizeURL rebuilds u with its password redacted, without URL-encoding
// the redaction marker the way url.URL.String would.
func sanitizeURL(u *url.URL) string {
	if u == nil {
		return ""
	}

	var b strings.Builder
	b.WriteString(u.Scheme)
	b.WriteString("://")
	if u.User != nil {
		if username := u.User.Username(); username != "" {
			b.WriteString(username)
			b.WriteString(":[REDACTED]@")
		}
	}
	b.WriteString(u.Host)
	b.WriteString(u.Path)
	if u.RawQuery != "" {
		b.WriteString("?")
		b.WriteString(u.RawQuery)
	}
	return b.String()
}

// removeCommonCredentialPatterns redacts user:password@ and password=
// patterns directly in errMsg, for when dbURL itself couldn't be parsed.
func removeCommonCredentialPatterns(errMsg string) string {
	result := errMsg
	patterns := []struct {
		regex   string
		replace string
	}{
		{`(\b\w+):([^@\s]+)@`, "$1:[REDACTED]@"},
		{`password=([^&\s]+)`, "password=[REDACTED]"},
	}
	for _, p := range patterns {
		result = regexp.MustCompile(p.regex).ReplaceAllString(result, p.replace)
	}
	return result
}

// extractHostPort pulls the host and port out of a Postgres connection URL,
// defaulting the port to Postgres's standard 5432 when the URL omits it.
// Returns "unknown" for either field it can't determine.
func extractHostPort(dbURL string) (host, port string) {
	if dbURL == "" {
		return "unknown", "unknown"
	}

	u, err := url.Parse(dbURL)
	if err != nil {
		return "unknown", "unknown"
	}

	host = u.Hostname()
	if host == "" {
		host = "unknown"
	}

	port = u.Port()
	if port == "" {
		switch u.Scheme {
		case "postgres", "postgresql":
			port = "5432"
		default:
			port = "unknown"
		}
	}

	return host, port
}
