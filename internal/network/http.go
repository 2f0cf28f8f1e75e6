package network

import (
	"context"
	"net"
	"net/http"
	"time"

	"github.com/massmux/QwenImageBot/internal"
	log "github.com/sirupsen/logrus"
	"golang.org/x/net/proxy"
)

// GetClient returns an http client that dials through the configured SOCKS5
// proxy, if any. A zero timeout leaves deadlines to the request contexts.
func GetClient(socks *internal.SocksConfiguration, timeout time.Duration) (*http.Client, error) {
	client := http.Client{
		Timeout: timeout,
	}
	if socks == nil || socks.Host == "" {
		return &client, nil
	}
	var auth *proxy.Auth
	if socks.Username != "" && socks.Password != "" {
		auth = &proxy.Auth{User: socks.Username, Password: socks.Password}
	}
	d, err := proxy.SOCKS5("tcp", socks.Host, auth, &net.Dialer{
		Timeout:   20 * time.Second,
		KeepAlive: 30 * time.Second,
	})
	if err != nil {
		log.Errorf("[network] socks proxy %s: %v", socks.Host, err)
		return &client, err
	}
	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.Proxy = nil
	if cd, ok := d.(proxy.ContextDialer); ok {
		transport.DialContext = cd.DialContext
	} else {
		transport.DialContext = func(ctx context.Context, network, addr string) (net.Conn, error) {
			return d.Dial(network, addr)
		}
	}
	client.Transport = transport
	log.Infof("[network] using socks proxy %s", socks.Host)
	return &client, nil
}
