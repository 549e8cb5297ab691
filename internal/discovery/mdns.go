// Package discovery advertises the status page over mDNS so the indicator
// can be found as <hostname>._http._tcp.local.
package discovery

import (
	"fmt"
	"net"
	"strconv"

	"github.com/enbility/zeroconf/v3"
)

const (
	ServiceType = "_http._tcp"
	Domain      = "local."
)

// Info describes what is advertised.
type Info struct {
	Instance string
	Port     int
	Path     string
	Devices  []string
}

// TXT returns the TXT records for info.
func (i Info) TXT() []string {
	txt := []string{"path=" + i.Path, "devices=" + strconv.Itoa(len(i.Devices))}
	for n, d := range i.Devices {
		txt = append(txt, fmt.Sprintf("device%d=%s", n, d))
	}
	return txt
}

// Registrar registers an mDNS service and returns a function that stops it.
type Registrar func(instance, service, domain string, port int, text []string, ifaces []net.Interface) (func(), error)

// ZeroconfRegistrar registers through github.com/enbility/zeroconf.
func ZeroconfRegistrar(instance, service, domain string, port int, text []string, ifaces []net.Interface) (func(), error) {
	server, err := zeroconf.Register(instance, service, domain, port, text, ifaces)
	if err != nil {
		return nil, err
	}
	return server.Shutdown, nil
}

// Advertiser owns one mDNS registration.
type Advertiser struct {
	register Registrar
	stop     func()
}

// NewAdvertiser creates an Advertiser. A nil register uses zeroconf.
func NewAdvertiser(register Registrar) *Advertiser {
	if register == nil {
		register = ZeroconfRegistrar
	}
	return &Advertiser{register: register}
}

// Advertise starts advertising info on all interfaces, replacing any
// previous registration.
func (a *Advertiser) Advertise(info Info) error {
	if info.Port <= 0 {
		return fmt.Errorf("mdns: invalid port %d", info.Port)
	}
	a.Stop()
	stop, err := a.register(info.Instance, ServiceType, Domain, info.Port, info.TXT(), nil)
	if err != nil {
		return fmt.Errorf("mdns: register %s: %w", info.Instance, err)
	}
	a.stop = stop
	return nil
}

// Stop withdraws the advertisement. Safe to call when not advertising.
func (a *Advertiser) Stop() {
	if a.stop != nil {
		a.stop()
		a.stop = nil
	}
}

// PortFromAddr extracts the port from a listen address like ":8080".
func PortFromAddr(addr string) (int, error) {
	_, p, err := net.SplitHostPort(addr)
	if err != nil {
		return 0, fmt.Errorf("parse listen address %q: %w", addr, err)
	}
	port, err := strconv.Atoi(p)
	if err != nil {
		return 0, fmt.Errorf("parse port %q: %w", p, err)
	}
	return port, nil
}
