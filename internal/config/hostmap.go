package config

import "fmt"

// Service is the tagged App|Dav variant keyed into a HostMap, per §3.
// A sum type rather than an inheritance hierarchy: callers type-switch
// on the concrete variant instead of relying on virtual dispatch.
type Service interface {
	isService()
	// ServiceSecured reports whether a session is required to reach
	// this service.
	ServiceSecured() bool
	// ServiceRoles returns the set of roles allowed to reach this
	// service when it is secured.
	ServiceRoles() []string
}

// AppService wraps an App as a host-mapped Service.
type AppService struct{ App App }

func (AppService) isService()                  {}
func (s AppService) ServiceSecured() bool      { return s.App.Secured }
func (s AppService) ServiceRoles() []string    { return s.App.Roles }

// DavService wraps a Dav as a host-mapped Service.
type DavService struct{ Dav Dav }

func (DavService) isService()               {}
func (s DavService) ServiceSecured() bool   { return s.Dav.Secured }
func (s DavService) ServiceRoles() []string { return s.Dav.Roles }

// HostMap is the process-wide mapping fully_qualified_hostname ->
// Service, built once per config load and shared immutably across the
// request lifetime.
type HostMap map[string]Service

// BuildHostMap constructs a HostMap from a Config per §4.5 step 3.
// Dav.Key must already be derived (see Config.DeriveKeys) before
// calling this.
func BuildHostMap(c *Config) (HostMap, error) {
	hm := make(HostMap, len(c.Apps)+len(c.Davs))

	for _, a := range c.Apps {
		key := a.Host + "." + c.Hostname
		if _, dup := hm[key]; dup {
			return nil, fmt.Errorf("host collision: %q is used by more than one app/dav", key)
		}
		hm[key] = AppService{App: a}
	}

	for _, d := range c.Davs {
		key := d.Host + "." + c.Hostname
		if _, dup := hm[key]; dup {
			return nil, fmt.Errorf("host collision: %q is used by more than one app/dav", key)
		}
		hm[key] = DavService{Dav: d}
	}

	return hm, nil
}

// Lookup resolves the canonical hostname (already stripped of port) to
// a Service. The zero value/false result means the request falls
// through to the control surface.
func (hm HostMap) Lookup(host string) (Service, bool) {
	s, ok := hm[host]
	return s, ok
}
