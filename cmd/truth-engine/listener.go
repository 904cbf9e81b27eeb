package main

import (
	"context"
	"net"
	"strings"
	"syscall"

	"github.com/coreos/go-systemd/v22/activation"
)

type multiListener struct {
	listeners []net.Listener
	connChan  chan acceptResult
	ctx       context.Context
	cancel    context.CancelFunc
}

type acceptResult struct {
	conn net.Conn
	err  error
}

// systemdListeners returns the sockets passed by systemd socket activation
// keyed by the FileDescriptorName of the socket unit
func systemdListeners() map[string][]net.Listener {
	m, err := activation.ListenersWithNames()
	if err != nil {
		return nil
	}
	return m
}

// newListener listens on addr, or uses the activated sockets named name
func newListener(name, addr string, activated map[string][]net.Listener) (net.Listener, error) {
	if ls := activated[name]; len(ls) > 0 {
		if len(ls) == 1 {
			return ls[0], nil
		}
		return newMultiListener(ls), nil
	}

	host, port, err := net.SplitHostPort(addr)
	if err != nil {
		return nil, err
	}
	iPort, err := net.LookupPort("tcp", port)
	if err != nil {
		return nil, err
	}

	var ips []net.IP
	switch host {
	case "":
		return net.Listen("tcp", addr)
	case "localhost":
		ips, err = getLocalhostIP()
	default:
		ips, err = net.LookupIP(host)
	}
	if err != nil {
		return nil, err
	}
	switch len(ips) {
	case 0:
		return net.Listen("tcp", addr)
	case 1:
		return net.ListenTCP("tcp", &net.TCPAddr{IP: ips[0], Port: iPort})
	}

	listeners := make([]net.Listener, 0, len(ips))
	for _, ip := range ips {
		l, err := net.ListenTCP("tcp", &net.TCPAddr{IP: ip, Port: iPort})
		if err != nil {
			for _, l := range listeners {
				l.Close()
			}
			return nil, err
		}
		listeners = append(listeners, l)
	}
	return newMultiListener(listeners), nil
}

func getLocalhostIP() ([]net.IP, error) {
	addrs, err := net.InterfaceAddrs()
	if err != nil {
		return nil, err
	}
	rt := make([]net.IP, 0, 2)
	for _, addr := range addrs {
		if ip, ok := addr.(*net.IPNet); ok && ip.IP.IsLoopback() {
			rt = append(rt, ip.IP)
		}
	}
	return rt, nil
}

func newMultiListener(listeners []net.Listener) net.Listener {
	ctx, cancel := context.WithCancel(context.Background())
	rt := &multiListener{
		listeners: listeners,
		connChan:  make(chan acceptResult),
		ctx:       ctx,
		cancel:    cancel,
	}
	for _, l := range listeners {
		go func() {
			for {
				conn, err := l.Accept()
				select {
				case rt.connChan <- acceptResult{conn: conn, err: err}:
				case <-ctx.Done():
					if conn != nil {
						conn.Close()
					}
					return
				}
			}
		}()
	}
	return rt
}

func (ml *multiListener) Accept() (net.Conn, error) {
	select {
	case ar := <-ml.connChan:
		return ar.conn, ar.err
	case <-ml.ctx.Done():
		return nil, syscall.EINVAL
	}
}

func (ml *multiListener) Close() error {
	ml.cancel()
	for _, l := range ml.listeners {
		l.Close()
	}
	return nil
}

func (ml *multiListener) Addr() net.Addr {
	return ml.listeners[0].Addr()
}

func printListener(lis net.Listener) string {
	switch l := lis.(type) {
	case *multiListener:
		addrs := make([]string, 0, len(l.listeners))
		for _, l := range l.listeners {
			addrs = append(addrs, l.Addr().String())
		}
		return strings.Join(addrs, ",")
	default:
		return lis.Addr().String()
	}
}
