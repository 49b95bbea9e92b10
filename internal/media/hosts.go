package media

import (
	"net/url"
	"strings"
)

// Hosts lists the hostnames that identify each known media origin.
// Entries starting with "." or "*." match any subdomain.
type Hosts struct {
	PrimaryStore   []string
	SecondaryStore []string
	Encrypted      []string
}

// DefaultHosts returns the origins seen in production message records.
func DefaultHosts() Hosts {
	return Hosts{
		PrimaryStore: []string{"firebasestorage.googleapis.com"},
		Encrypted: []string{
			"mmg.whatsapp.net",
			"media.whatsapp.net",
			"pps.whatsapp.net",
			".whatsapp.net",
		},
	}
}

// References builds and recognises relay-ready object references. The
// secondary object store is only reachable through its relay, so resolving
// one of its URLs yields such a reference instead of the raw store URL.
type References interface {
	Reference(objectName string) string
	ParseReference(raw string) (objectName string, ok bool)
}

type origin int

const (
	originNone origin = iota
	originData
	originPrimary
	originSecondary
	originEncrypted
	originHTTP
)

// detector identifies where a descriptor comes from. It is immutable after
// construction and shared by the classifier and the resolver.
type detector struct {
	hosts Hosts
	refs  References
}

func newDetector(hosts Hosts, refs References) *detector {
	return &detector{hosts: normalizeHosts(hosts), refs: refs}
}

func normalizeHosts(h Hosts) Hosts {
	clean := func(in []string) []string {
		out := make([]string, 0, len(in))
		for _, v := range in {
			v = strings.ToLower(strings.TrimSpace(v))
			if v != "" {
				out = append(out, v)
			}
		}
		return out
	}
	return Hosts{
		PrimaryStore:   clean(h.PrimaryStore),
		SecondaryStore: clean(h.SecondaryStore),
		Encrypted:      clean(h.Encrypted),
	}
}

// detect returns the origin of descriptor and, for URL origins, the parsed URL.
func (d *detector) detect(descriptor string) (origin, *url.URL) {
	value := strings.TrimSpace(descriptor)
	if value == "" {
		return originNone, nil
	}
	if hasPrefixFold(value, "data:") {
		return originData, nil
	}
	if d.refs != nil {
		if _, ok := d.refs.ParseReference(value); ok {
			u, _ := url.Parse(value)
			return originSecondary, u
		}
	}
	if !hasPrefixFold(value, "http://") && !hasPrefixFold(value, "https://") {
		return originNone, nil
	}
	u, err := url.Parse(value)
	if err != nil || u.Host == "" {
		return originNone, nil
	}
	host := strings.ToLower(u.Hostname())
	switch {
	case matchHost(d.hosts.PrimaryStore, host, u.Host):
		return originPrimary, u
	case matchHost(d.hosts.SecondaryStore, host, u.Host):
		return originSecondary, u
	case matchHost(d.hosts.Encrypted, host, u.Host):
		return originEncrypted, u
	}
	return originHTTP, u
}

func matchHost(list []string, host, hostPort string) bool {
	hostPort = strings.ToLower(hostPort)
	for _, entry := range list {
		switch {
		case strings.HasPrefix(entry, "*."):
			if strings.HasSuffix(host, entry[1:]) {
				return true
			}
		case strings.HasPrefix(entry, "."):
			if strings.HasSuffix(host, entry) {
				return true
			}
		case entry == host || entry == hostPort:
			return true
		}
	}
	return false
}

func hasPrefixFold(s, prefix string) bool {
	return len(s) >= len(prefix) && strings.EqualFold(s[:len(prefix)], prefix)
}

// HostAllowed reports whether u's host matches one of patterns, using the
// same rules as Hosts.
func HostAllowed(patterns []string, u *url.URL) bool {
	if u == nil || u.Host == "" {
		return false
	}
	clean := normalizeHosts(Hosts{PrimaryStore: patterns}).PrimaryStore
	return matchHost(clean, strings.ToLower(u.Hostname()), u.Host)
}
