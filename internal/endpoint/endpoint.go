// Package endpoint turns a user-supplied server address into a validated endpoint.
package endpoint

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	apperrors "github.com/openclaw/dial-agent-go/internal/errors"
)

const (
	SchemeHTTP  = "http"
	SchemeHTTPS = "https"

	connectionPath = "/ws/mobile"
)

// Endpoint is immutable once resolved; reconfiguration replaces it.
type Endpoint struct {
	Scheme   string    `json:"protocol"`
	Host     string    `json:"host"`
	Port     int       `json:"port,omitempty"`
	LastUsed time.Time `json:"lastUsed"`
}

// Parse accepts inputs such as "crm.example.com", "https://crm.example.com/app" or "192.168.1.5:8080".
func Parse(input string) (Endpoint, error) {
	host := strings.TrimSpace(input)
	scheme := SchemeHTTPS

	switch {
	case strings.HasPrefix(host, "https://"):
		host = strings.TrimPrefix(host, "https://")
	case strings.HasPrefix(host, "http://"):
		host = strings.TrimPrefix(host, "http://")
		scheme = SchemeHTTP
	}

	if i := strings.Index(host, "/"); i >= 0 {
		host = host[:i]
	}

	var port int
	if i := strings.Index(host, ":"); i >= 0 {
		p, err := strconv.Atoi(host[i+1:])
		if err != nil || p <= 0 || p > 65535 {
			return Endpoint{}, apperrors.InvalidInput("port", host[i+1:])
		}
		host, port = host[:i], p
	}

	if host == "" {
		return Endpoint{}, apperrors.MissingRequired("host")
	}

	if isPrivateHost(host) {
		scheme = SchemeHTTP
	}

	return Endpoint{Scheme: scheme, Host: host, Port: port, LastUsed: time.Now().UTC()}, nil
}

func isPrivateHost(host string) bool {
	return host == "localhost" ||
		strings.HasPrefix(host, "192.168.") ||
		strings.HasPrefix(host, "10.") ||
		strings.HasPrefix(host, "172.")
}

func (e Endpoint) hostPort() string {
	if e.Port > 0 {
		return fmt.Sprintf("%s:%d", e.Host, e.Port)
	}
	return e.Host
}

// Display is the address as shown to the user.
func (e Endpoint) Display() string {
	return e.hostPort()
}

func (e Endpoint) streamingScheme() string {
	if e.Scheme == SchemeHTTPS {
		return "wss"
	}
	return "ws"
}

// RESTBase returns scheme://host[:port]/api/v1.
func (e Endpoint) RESTBase() string {
	return fmt.Sprintf("%s://%s/api/v1", e.Scheme, e.hostPort())
}

// BaseConnectionURL returns the streaming base without path or token.
func (e Endpoint) BaseConnectionURL() string {
	return fmt.Sprintf("%s://%s", e.streamingScheme(), e.hostPort())
}

// ConnectionURL returns the full streaming URL carrying token.
func (e Endpoint) ConnectionURL(token string) string {
	return WithToken(e.BaseConnectionURL()+connectionPath, token)
}

// SameServer reports whether e and o point at the same host and port.
func (e Endpoint) SameServer(o Endpoint) bool {
	return e.Host == o.Host && e.Port == o.Port
}

// NormalizeConnectionURL maps a stored connection URL onto the streaming path.
// The http schemes become their streaming equivalents and legacy API prefixes collapse.
func NormalizeConnectionURL(raw string) string {
	u := strings.TrimRight(strings.TrimSpace(raw), "/")
	if u == "" {
		return ""
	}

	switch {
	case strings.HasPrefix(u, "http://"):
		u = "ws://" + strings.TrimPrefix(u, "http://")
	case strings.HasPrefix(u, "https://"):
		u = "wss://" + strings.TrimPrefix(u, "https://")
	}

	u = strings.Replace(u, "/api/v1"+connectionPath, connectionPath, 1)
	u = strings.Replace(u, "/api"+connectionPath, connectionPath, 1)

	if !strings.Contains(u, connectionPath) {
		u += connectionPath
	}
	return u
}

// WithToken sets the token query parameter on a connection URL.
func WithToken(connectionURL, token string) string {
	u, err := url.Parse(connectionURL)
	if err != nil {
		return connectionURL + "?token=" + url.QueryEscape(token)
	}
	q := u.Query()
	q.Set("token", token)
	u.RawQuery = q.Encode()
	return u.String()
}
