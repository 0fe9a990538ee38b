// Copyright 2025 Nguyen Nhat Nguyen
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package harness

import (
	"bufio"
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"go.temporal.io/sdk/client"
	"golang.org/x/net/proxy"
	"google.golang.org/grpc"
)

func init() {
	proxy.RegisterDialerType("http", newHTTPConnectDialer)
}

// httpConnectDialer tunnels connections through an HTTP proxy with CONNECT.
type httpConnectDialer struct {
	proxyAddr string
	auth      string
	forward   proxy.Dialer
}

func newHTTPConnectDialer(u *url.URL, forward proxy.Dialer) (proxy.Dialer, error) {
	d := &httpConnectDialer{proxyAddr: u.Host, forward: forward}
	if u.Port() == "" {
		d.proxyAddr = net.JoinHostPort(u.Hostname(), "80")
	}
	if u.User != nil {
		pass, _ := u.User.Password()
		d.auth = base64.StdEncoding.EncodeToString([]byte(u.User.Username() + ":" + pass))
	}
	return d, nil
}

func (d *httpConnectDialer) Dial(network, addr string) (net.Conn, error) {
	return d.DialContext(context.Background(), network, addr)
}

func (d *httpConnectDialer) DialContext(ctx context.Context, network, addr string) (net.Conn, error) {
	var conn net.Conn
	var err error
	if cd, ok := d.forward.(proxy.ContextDialer); ok {
		conn, err = cd.DialContext(ctx, network, d.proxyAddr)
	} else {
		conn, err = d.forward.Dial(network, d.proxyAddr)
	}
	if err != nil {
		return nil, fmt.Errorf("dial proxy %s: %w", d.proxyAddr, err)
	}

	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(deadline)
		defer func() { _ = conn.SetDeadline(time.Time{}) }()
	}

	req := &http.Request{
		Method: http.MethodConnect,
		URL:    &url.URL{Opaque: addr},
		Host:   addr,
		Header: make(http.Header),
	}
	if d.auth != "" {
		req.Header.Set("Proxy-Authorization", "Basic "+d.auth)
	}
	if err := req.Write(conn); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("write CONNECT to %s: %w", d.proxyAddr, err)
	}

	br := bufio.NewReader(conn)
	resp, err := http.ReadResponse(br, req)
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("read CONNECT response from %s: %w", d.proxyAddr, err)
	}
	_ = resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		_ = conn.Close()
		return nil, fmt.Errorf("proxy %s refused CONNECT %s: %s", d.proxyAddr, addr, resp.Status)
	}
	if br.Buffered() > 0 {
		return &bufferedConn{Conn: conn, r: br}, nil
	}
	return conn, nil
}

// bufferedConn keeps bytes the proxy sent right after its CONNECT response.
type bufferedConn struct {
	net.Conn
	r *bufio.Reader
}

func (c *bufferedConn) Read(p []byte) (int, error) {
	return c.r.Read(p)
}

// ProxyDialOption routes client connections through the proxy at rawURL.
// http:// URLs use CONNECT; socks5:// URLs use SOCKS5.
func ProxyDialOption(rawURL string) (grpc.DialOption, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("invalid proxy URL %q: %w", rawURL, err)
	}
	dialer, err := proxy.FromURL(u, proxy.Direct)
	if err != nil {
		return nil, fmt.Errorf("unsupported proxy URL %q: %w", rawURL, err)
	}
	return grpc.WithContextDialer(func(ctx context.Context, addr string) (net.Conn, error) {
		if cd, ok := dialer.(proxy.ContextDialer); ok {
			return cd.DialContext(ctx, "tcp", addr)
		}
		return dialer.Dial("tcp", addr)
	}), nil
}

// ProxyControl drives the fault-injection proxy that sits in front of the
// server. Every command is a POST to {base}/{command}.
type ProxyControl struct {
	base   *url.URL
	client *http.Client
	log    *slog.Logger
}

// NewProxyControl returns ErrProxyControlUnset when rawURI is empty.
func NewProxyControl(rawURI string, httpClient *http.Client, log *slog.Logger) (*ProxyControl, error) {
	if rawURI == "" {
		return nil, ErrProxyControlUnset
	}
	base, err := url.Parse(rawURI)
	if err != nil {
		return nil, fmt.Errorf("invalid proxy control URI %q: %w", rawURI, err)
	}
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	if log == nil {
		log = slog.Default()
	}
	return &ProxyControl{base: base, client: httpClient, log: log}, nil
}

// Send issues one control command.
func (p *ProxyControl) Send(ctx context.Context, command string, params url.Values) error {
	target := p.base.ResolveReference(&url.URL{Path: "/" + command, RawQuery: params.Encode()})
	p.log.Info("sending proxy command", "uri", target.String())

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, target.String(), nil)
	if err != nil {
		return err
	}
	resp, err := p.client.Do(req)
	if err != nil {
		return fmt.Errorf("proxy command %s: %w", command, err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 4<<10))
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("proxy command %s failed with %s: %s", command, resp.Status, strings.TrimSpace(string(body)))
	}
	return nil
}

func (p *ProxyControl) Freeze(ctx context.Context) error { return p.Send(ctx, "freeze", nil) }
func (p *ProxyControl) Thaw(ctx context.Context) error   { return p.Send(ctx, "thaw", nil) }
func (p *ProxyControl) Reject(ctx context.Context) error { return p.Send(ctx, "reject", nil) }
func (p *ProxyControl) Accept(ctx context.Context) error { return p.Send(ctx, "accept", nil) }

// Restart stops the proxy, sleeps, then starts it again. forceful drops
// in-flight calls instead of draining them.
func (p *ProxyControl) Restart(ctx context.Context, sleep time.Duration, forceful bool) error {
	return p.Send(ctx, "restart", url.Values{
		"sleep":    {strconv.FormatInt(sleep.Milliseconds(), 10) + "ms"},
		"forceful": {strconv.FormatBool(forceful)},
	})
}

// ProxyControl returns a control client for this run. A feature that needs
// the proxy is skipped when no control URI was configured.
func (r *Runner) ProxyControl() (*ProxyControl, error) {
	pc, err := NewProxyControl(r.ProxyControlURI, r.HTTPClient, r.log)
	if errors.Is(err, ErrProxyControlUnset) {
		return nil, r.Skip("fault-injection proxy is required for this feature")
	}
	return pc, err
}

// ProxyFreezeAndThaw freezes the proxy now and thaws it after d on a
// goroutine tracked by wg. Callers wait on wg before returning.
func (r *Runner) ProxyFreezeAndThaw(ctx context.Context, wg *sync.WaitGroup, d time.Duration) error {
	return r.proxyFirstThenSecond(ctx, wg, d, (*ProxyControl).Freeze, (*ProxyControl).Thaw)
}

// ProxyRejectAndAccept rejects calls now and accepts them again after d.
func (r *Runner) ProxyRejectAndAccept(ctx context.Context, wg *sync.WaitGroup, d time.Duration) error {
	return r.proxyFirstThenSecond(ctx, wg, d, (*ProxyControl).Reject, (*ProxyControl).Accept)
}

// ProxyRestart takes the proxy down for sleep and brings it back. The control
// call returns only once the proxy is up again, so it runs on a goroutine
// tracked by wg.
func (r *Runner) ProxyRestart(ctx context.Context, wg *sync.WaitGroup, sleep time.Duration, forceful bool) error {
	pc, err := r.ProxyControl()
	if err != nil {
		return err
	}
	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := pc.Restart(context.WithoutCancel(ctx), sleep, forceful); err != nil {
			r.log.Warn("proxy restart failed", "error", err)
		}
	}()
	return nil
}

// DialThroughProxy dials a second client that reaches the server through
// HTTPProxyURL. The feature is skipped when no proxy URL was configured.
// Callers close the client.
func (r *Runner) DialThroughProxy(ctx context.Context) (client.Client, error) {
	if r.HTTPProxyURL == "" {
		return nil, r.Skip("HTTP proxy URL is required for this feature")
	}
	opts := r.Feature.ClientOptions
	if opts.Logger == nil {
		opts.Logger = r.sdkLogger
	}
	return Connect(ctx, ConnectOptions{
		HostPort:       r.ServerHostPort,
		Namespace:      r.Namespace,
		ClientCertPath: r.ClientCertPath,
		ClientKeyPath:  r.ClientKeyPath,
		HTTPProxyURL:   r.HTTPProxyURL,
		Base:           opts,
		Dial:           r.Dial,
	})
}

func (r *Runner) proxyFirstThenSecond(
	ctx context.Context,
	wg *sync.WaitGroup,
	d time.Duration,
	first, second func(*ProxyControl, context.Context) error,
) error {
	pc, err := r.ProxyControl()
	if err != nil {
		return err
	}
	if err := first(pc, ctx); err != nil {
		return err
	}
	wg.Add(1)
	go func() {
		defer wg.Done()
		select {
		case <-time.After(d):
		case <-ctx.Done():
		}
		// The second command must go out even when ctx is done, or the
		// proxy stays broken for the next feature.
		if err := second(pc, context.WithoutCancel(ctx)); err != nil {
			r.log.Warn("proxy command failed", "error", err)
		}
	}()
	return nil
}
