package discovery

import (
	"context"
	"net"
	"sync"

	"github.com/grandcat/zeroconf"
)

// MockMDNSResolver provides a mock mDNS resolver for testing without real network I/O.
// It allows registering services and simulating discovery responses.
type MockMDNSResolver struct {
	mu       sync.RWMutex
	services map[string][]*zeroconf.ServiceEntry
}

// NewMockMDNSResolver creates a new mock resolver.
func NewMockMDNSResolver() *MockMDNSResolver {
	return &MockMDNSResolver{
		services: make(map[string][]*zeroconf.ServiceEntry),
	}
}

// RegisterService registers a service that will be returned by Browse/Lookup.
func (m *MockMDNSResolver) RegisterService(service string, entry *zeroconf.ServiceEntry) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.services[service] = append(m.services[service], entry)
}

// ClearServices removes all registered services.
func (m *MockMDNSResolver) ClearServices() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.services = make(map[string][]*zeroconf.ServiceEntry)
}

func (m *MockMDNSResolver) entries(service string) []*zeroconf.ServiceEntry {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]*zeroconf.ServiceEntry(nil), m.services[service]...)
}

// Browse implements MDNSResolver.
func (m *MockMDNSResolver) Browse(ctx context.Context, service, domain string, entries chan<- *zeroconf.ServiceEntry) error {
	for _, entry := range m.entries(service) {
		select {
		case entries <- entry:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}

// Lookup implements MDNSResolver.
func (m *MockMDNSResolver) Lookup(ctx context.Context, instance, service, domain string, entries chan<- *zeroconf.ServiceEntry) error {
	for _, entry := range m.entries(service) {
		if entry.Instance != instance {
			continue
		}
		select {
		case entries <- entry:
		case <-ctx.Done():
			return ctx.Err()
		}
		return nil
	}
	return nil
}

// Register implements MDNSServerFactory so an Advertiser can publish
// straight into the mock. Entries resolve to the loopback address and are
// removed on Shutdown.
func (m *MockMDNSResolver) Register(instance, service, domain string, port int, txt []string, ifaces []net.Interface) (MDNSServer, error) {
	entry := zeroconf.NewServiceEntry(instance, service, domain)
	entry.HostName = instance + ".local."
	entry.Port = port
	entry.Text = txt
	entry.AddrIPv4 = []net.IP{net.IPv4(127, 0, 0, 1)}
	m.RegisterService(service, entry)
	return &mockServer{resolver: m, service: service, entry: entry}, nil
}

func (m *MockMDNSResolver) remove(service string, entry *zeroconf.ServiceEntry) {
	m.mu.Lock()
	defer m.mu.Unlock()
	list := m.services[service]
	for i, e := range list {
		if e == entry {
			m.services[service] = append(list[:i:i], list[i+1:]...)
			return
		}
	}
}

type mockServer struct {
	resolver *MockMDNSResolver
	service  string
	entry    *zeroconf.ServiceEntry
	once     sync.Once
}

func (s *mockServer) Shutdown() {
	s.once.Do(func() { s.resolver.remove(s.service, s.entry) })
}

var (
	_ MDNSResolver      = (*MockMDNSResolver)(nil)
	_ MDNSServerFactory = (*MockMDNSResolver)(nil)
)

// MockEchoService creates an echo service entry for testing.
func MockEchoService(instance string, port int, ip net.IP, txt EchoTXT) *zeroconf.ServiceEntry {
	entry := &zeroconf.ServiceEntry{
		ServiceRecord: zeroconf.ServiceRecord{
			Instance: instance,
			Service:  ServiceEcho,
			Domain:   DefaultDomain,
		},
		HostName: instance + ".local.",
		Port:     port,
		Text:     txt.Encode(),
	}
	if ip.To4() != nil {
		entry.AddrIPv4 = []net.IP{ip}
	} else if ip != nil {
		entry.AddrIPv6 = []net.IP{ip}
	}
	return entry
}
