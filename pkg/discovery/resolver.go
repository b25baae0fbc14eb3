package discovery

import (
	"context"
	"errors"
	"net"
	"strconv"
	"time"

	"github.com/grandcat/zeroconf"
	"github.com/pion/logging"
)

// DefaultBrowseTimeout is the default timeout for browse operations.
const DefaultBrowseTimeout = 10 * time.Second

// DefaultLookupTimeout is the default timeout for lookup operations.
const DefaultLookupTimeout = 5 * time.Second

// ResolvedService contains information about a discovered echo endpoint.
type ResolvedService struct {
	// InstanceName is the DNS-SD instance name.
	InstanceName string

	// HostName is the target host name.
	HostName string

	// Port is the service port.
	Port int

	// IPs contains the resolved IP addresses, sorted by preference.
	IPs []net.IP

	// Text contains the raw TXT record key-value pairs.
	Text map[string]string
}

// PreferredIP returns the first address in preference order, or nil.
func (r *ResolvedService) PreferredIP() net.IP {
	if len(r.IPs) > 0 {
		return r.IPs[0]
	}
	return nil
}

// Addr returns host:port for the preferred IP, or for the host name when
// no address was resolved.
func (r *ResolvedService) Addr() string {
	if ip := r.PreferredIP(); ip != nil {
		return JoinHostPort(ip, r.Port)
	}
	return net.JoinHostPort(r.HostName, strconv.Itoa(r.Port))
}

// Echo decodes the TXT attributes.
func (r *ResolvedService) Echo() (*EchoTXT, error) {
	var records []string
	for k, v := range r.Text {
		records = append(records, k+"="+v)
	}
	return ParseEchoTXT(records)
}

// MDNSResolver performs the raw mDNS queries. Implementations return once
// ctx is done or no more entries will arrive, and never close entries.
type MDNSResolver interface {
	// Browse browses for services of the given type.
	Browse(ctx context.Context, service, domain string, entries chan<- *zeroconf.ServiceEntry) error

	// Lookup looks up a specific service instance.
	Lookup(ctx context.Context, instance, service, domain string, entries chan<- *zeroconf.ServiceEntry) error
}

// zeroconfResolver is the production implementation using grandcat/zeroconf.
type zeroconfResolver struct {
	resolver *zeroconf.Resolver
}

func newZeroconfResolver() (*zeroconfResolver, error) {
	r, err := zeroconf.NewResolver(nil)
	if err != nil {
		return nil, err
	}
	return &zeroconfResolver{resolver: r}, nil
}

func (z *zeroconfResolver) Browse(ctx context.Context, service, domain string, entries chan<- *zeroconf.ServiceEntry) error {
	inner := make(chan *zeroconf.ServiceEntry)
	if err := z.resolver.Browse(ctx, service, domain, inner); err != nil {
		return err
	}
	return forward(ctx, inner, entries)
}

func (z *zeroconfResolver) Lookup(ctx context.Context, instance, service, domain string, entries chan<- *zeroconf.ServiceEntry) error {
	inner := make(chan *zeroconf.ServiceEntry)
	if err := z.resolver.Lookup(ctx, instance, service, domain, inner); err != nil {
		return err
	}
	return forward(ctx, inner, entries)
}

// forward copies entries from zeroconf, which closes its channel on its
// own schedule, until ctx is done.
func forward(ctx context.Context, in <-chan *zeroconf.ServiceEntry, out chan<- *zeroconf.ServiceEntry) error {
	for {
		select {
		case e, ok := <-in:
			if !ok {
				return nil
			}
			select {
			case out <- e:
			case <-ctx.Done():
				return ctx.Err()
			}
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// ResolverConfig holds configuration for the Resolver.
type ResolverConfig struct {
	// MDNSResolver is the underlying mDNS resolver implementation.
	// If nil, the default zeroconf resolver is used.
	MDNSResolver MDNSResolver

	// BrowseTimeout is the timeout for browse operations.
	// If zero, DefaultBrowseTimeout is used.
	BrowseTimeout time.Duration

	// LookupTimeout is the timeout for lookup operations.
	// If zero, DefaultLookupTimeout is used.
	LookupTimeout time.Duration

	// LoggerFactory for creating loggers.
	LoggerFactory logging.LoggerFactory
}

// Resolver discovers echo endpoints via DNS-SD.
type Resolver struct {
	config   ResolverConfig
	resolver MDNSResolver
	log      logging.LeveledLogger
}

// NewResolver creates a new Resolver with the given configuration.
func NewResolver(config ResolverConfig) (*Resolver, error) {
	resolver := config.MDNSResolver
	if resolver == nil {
		zr, err := newZeroconfResolver()
		if err != nil {
			return nil, err
		}
		resolver = zr
	}

	if config.BrowseTimeout == 0 {
		config.BrowseTimeout = DefaultBrowseTimeout
	}
	if config.LookupTimeout == 0 {
		config.LookupTimeout = DefaultLookupTimeout
	}

	r := &Resolver{
		config:   config,
		resolver: resolver,
	}
	if config.LoggerFactory != nil {
		r.log = config.LoggerFactory.NewLogger("discovery")
	}
	return r, nil
}

// Browse discovers echo endpoints. The returned channel receives services
// until ctx is done or the browse timeout expires, then it is closed.
func (r *Resolver) Browse(ctx context.Context) (<-chan ResolvedService, error) {
	results := make(chan ResolvedService)
	entries := make(chan *zeroconf.ServiceEntry)

	cancel := func() {}
	if _, ok := ctx.Deadline(); !ok {
		ctx, cancel = context.WithTimeout(ctx, r.config.BrowseTimeout)
	}

	go func() {
		defer cancel()
		defer close(results)

		go func() {
			defer close(entries)
			if err := r.resolver.Browse(ctx, ServiceEcho, DefaultDomain, entries); err != nil && r.log != nil {
				r.log.Debugf("browse %s: %v", ServiceEcho, err)
			}
		}()

		for entry := range entries {
			svc := entryToResolvedService(entry)
			select {
			case results <- svc:
			case <-ctx.Done():
				// Drain so the browse goroutine can exit.
				for range entries {
				}
				return
			}
		}
	}()

	return results, nil
}

// First returns the first endpoint found. Without a deadline on ctx the
// browse timeout applies, and running out of time yields ErrTimeout.
func (r *Resolver) First(ctx context.Context) (*ResolvedService, error) {
	var cancel context.CancelFunc
	if _, ok := ctx.Deadline(); ok {
		ctx, cancel = context.WithCancel(ctx)
	} else {
		ctx, cancel = context.WithTimeout(ctx, r.config.BrowseTimeout)
	}
	defer cancel()

	services, err := r.Browse(ctx)
	if err != nil {
		return nil, err
	}
	for svc := range services {
		if r.log != nil {
			r.log.Debugf("found %q at %s", svc.InstanceName, svc.Addr())
		}
		cancel()
		for range services {
		}
		return &svc, nil
	}
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return nil, ErrTimeout
	}
	return nil, ErrServiceNotFound
}

// Lookup looks up a specific instance by name.
func (r *Resolver) Lookup(ctx context.Context, instanceName string) (*ResolvedService, error) {
	var cancel context.CancelFunc
	if _, ok := ctx.Deadline(); ok {
		ctx, cancel = context.WithCancel(ctx)
	} else {
		ctx, cancel = context.WithTimeout(ctx, r.config.LookupTimeout)
	}
	defer cancel()

	entries := make(chan *zeroconf.ServiceEntry)
	go func() {
		defer close(entries)
		r.resolver.Lookup(ctx, instanceName, ServiceEcho, DefaultDomain, entries)
	}()

	select {
	case entry, ok := <-entries:
		if !ok || entry == nil {
			return nil, ErrServiceNotFound
		}
		svc := entryToResolvedService(entry)
		return &svc, nil
	case <-ctx.Done():
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, ErrTimeout
		}
		return nil, ctx.Err()
	}
}

// entryToResolvedService flattens an entry and orders its addresses.
func entryToResolvedService(entry *zeroconf.ServiceEntry) ResolvedService {
	var allIPs []net.IP
	allIPs = append(allIPs, entry.AddrIPv4...)
	allIPs = append(allIPs, entry.AddrIPv6...)

	return ResolvedService{
		InstanceName: entry.Instance,
		HostName:     entry.HostName,
		Port:         entry.Port,
		IPs:          SortIPsByPreference(allIPs),
		Text:         ParseTXT(entry.Text),
	}
}
