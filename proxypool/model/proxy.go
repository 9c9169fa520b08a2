package model

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// Identity is the tuple that makes a proxy unique inside the pool. Two
// entries with equal Identity are the same proxy regardless of any other
// field. Removal through the public API matches on host+port only; the
// credential fields participate in insertion identity exclusively.
type Identity struct {
	Host     string
	Port     int
	Username string
	Password string
}

// Candidate is an unvalidated proxy record returned by a provider. It only
// lives for the duration of a refill cycle.
type Candidate struct {
	Host     string
	Port     int
	Username string
	Password string
}

// NewCandidate builds a candidate after checking the host and port are
// plausible. It returns false for anything malformed; bad provider records
// are filtered, not reported.
func NewCandidate(host string, port int, username, password string) (*Candidate, bool) {
	host = strings.TrimSpace(host)
	if host == "" || port < 1 || port > 65535 {
		return nil, false
	}
	return &Candidate{
		Host:     host,
		Port:     port,
		Username: strings.TrimSpace(username),
		Password: strings.TrimSpace(password),
	}, true
}

// ParseCandidate parses a raw "host:port" or "host:port:user:pass" record.
func ParseCandidate(raw string) (*Candidate, bool) {
	parts := strings.Split(strings.TrimSpace(raw), ":")
	if len(parts) != 2 && len(parts) != 4 {
		return nil, false
	}
	port, err := strconv.Atoi(strings.TrimSpace(parts[1]))
	if err != nil {
		return nil, false
	}
	var user, pass string
	if len(parts) == 4 {
		user, pass = parts[2], parts[3]
	}
	return NewCandidate(parts[0], port, user, pass)
}

// Identity returns the candidate's full pool identity.
func (c *Candidate) Identity() Identity {
	return Identity{Host: c.Host, Port: c.Port, Username: c.Username, Password: c.Password}
}

// Key returns the canonical string form used to key the validation cache.
func (c *Candidate) Key() string {
	if c.Username != "" || c.Password != "" {
		return fmt.Sprintf("%s:%d:%s:%s", c.Host, c.Port, c.Username, c.Password)
	}
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// ValidatedProxy is a pool entry: a candidate that passed a live probe.
type ValidatedProxy struct {
	Host     string    `json:"host"`
	Port     int       `json:"port"`
	Username string    `json:"username,omitempty"`
	Password string    `json:"password,omitempty"`
	Protocol string    `json:"protocol"`
	URI      string    `json:"uri"`
	AddedAt  time.Time `json:"added_at"`
}

// NewValidatedProxy promotes a candidate that survived validation into a
// pool entry tagged with the protocol it was validated for.
func NewValidatedProxy(c *Candidate, protocol string) *ValidatedProxy {
	p := &ValidatedProxy{
		Host:     c.Host,
		Port:     c.Port,
		Username: c.Username,
		Password: c.Password,
		Protocol: protocol,
		AddedAt:  time.Now(),
	}
	p.URI = p.connectionURI()
	return p
}

// Identity returns the entry's full pool identity.
func (p *ValidatedProxy) Identity() Identity {
	return Identity{Host: p.Host, Port: p.Port, Username: p.Username, Password: p.Password}
}

func (p *ValidatedProxy) connectionURI() string {
	u := url.URL{
		Scheme: p.Protocol,
		Host:   fmt.Sprintf("%s:%d", p.Host, p.Port),
	}
	if p.Username != "" {
		u.User = url.UserPassword(p.Username, p.Password)
	}
	return u.String()
}
