package capmux

import (
	"fmt"
	"net"
	"strconv"
	"strings"
)

// ProxyType is the scheme of a caller-supplied proxy server.
type ProxyType string

const (
	ProxyHTTP   ProxyType = "http"
	ProxyHTTPS  ProxyType = "https"
	ProxySOCKS4 ProxyType = "socks4"
	ProxySOCKS5 ProxyType = "socks5"
)

// ProxyServer describes the proxy a solving service should use while working
// on a task. Some services take it as a single string, others as discrete
// fields; String and IPAddress cover both conventions.
type ProxyServer struct {
	Type     ProxyType
	Address  string
	Port     int
	Login    string
	Password string
}

// ParseProxy parses "[scheme://][user:pass@]host[:port]". A bare host
// defaults to HTTP on port 80.
func ParseProxy(s string) (*ProxyServer, error) {
	p := &ProxyServer{Type: ProxyHTTP, Port: 80}

	rest := strings.TrimSpace(s)
	if rest == "" {
		return nil, badInputError("empty proxy string")
	}

	if scheme, after, ok := strings.Cut(rest, "://"); ok {
		switch ProxyType(strings.ToLower(scheme)) {
		case ProxyHTTP, ProxyHTTPS, ProxySOCKS4, ProxySOCKS5:
			p.Type = ProxyType(strings.ToLower(scheme))
		default:
			return nil, badInputError("unknown proxy scheme %q", scheme)
		}
		rest = after
	}

	if creds, after, ok := strings.Cut(rest, "@"); ok {
		login, password, ok := strings.Cut(creds, ":")
		if !ok {
			return nil, badInputError("proxy credentials must be login:password")
		}
		p.Login, p.Password = login, password
		rest = after
	}

	if host, portStr, ok := strings.Cut(rest, ":"); ok {
		port, err := strconv.Atoi(portStr)
		if err != nil || port <= 0 || port > 65535 {
			return nil, badInputError("invalid proxy port %q", portStr)
		}
		p.Address, p.Port = host, port
	} else {
		p.Address = rest
	}

	if p.Address == "" {
		return nil, badInputError("proxy address is required")
	}
	return p, nil
}

// String renders the proxy as scheme://[login:password@]host:port.
func (p *ProxyServer) String() string {
	var b strings.Builder
	b.WriteString(string(p.Type))
	b.WriteString("://")
	if p.Login != "" {
		b.WriteString(p.Login)
		b.WriteByte(':')
		b.WriteString(p.Password)
		b.WriteByte('@')
	}
	b.WriteString(p.Address)
	b.WriteByte(':')
	b.WriteString(strconv.Itoa(p.Port))
	return b.String()
}

// hostPort renders login:password@host:port without the scheme, the form the
// form-protocol services expect in their proxy field.
func (p *ProxyServer) hostPort() string {
	addr := fmt.Sprintf("%s:%d", p.Address, p.Port)
	if p.Login != "" {
		return p.Login + ":" + p.Password + "@" + addr
	}
	return addr
}

// IPAddress resolves the proxy host to a literal IP. Services that reject
// hostnames in the proxy field go through this. Literal IPs pass through
// without a lookup.
func (p *ProxyServer) IPAddress() (string, error) {
	if net.ParseIP(p.Address) != nil {
		return p.Address, nil
	}
	addrs, err := net.LookupHost(p.Address)
	if err != nil || len(addrs) == 0 {
		return "", &NetworkError{Err: fmt.Errorf("resolve proxy host %q: %w", p.Address, err)}
	}
	return addrs[0], nil
}
