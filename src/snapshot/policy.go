// Package snapshot keeps the shared store of fetched Evidence with TTL
// staleness tracking and per-URL fetch locking.
package snapshot

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/stake-plus/deepresearch/src/evidence"
)

// TTL classes. Every URL is pinned to one class at first insertion.
const (
	ClassDefault    = "default"
	ClassMarketData = "market-data"
)

const (
	defaultTTL    = 7 * 24 * time.Hour
	marketDataTTL = 24 * time.Hour
)

// Policy maps URL domains to TTL classes and source types. Lookups match the
// longest domain suffix, so "sec.gov" covers "efts.sec.gov" too.
type Policy struct {
	classTTL       map[string]time.Duration
	domainClass    map[string]string
	primaryDomains []string
}

type policyFile struct {
	Classes map[string]string `yaml:"classes"`
	Domains map[string]string `yaml:"domains"`
	Primary []string          `yaml:"primary"`
}

// DefaultPolicy covers the common market-data hosts and the filing agencies
// we treat as primary sources.
func DefaultPolicy() *Policy {
	return &Policy{
		classTTL: map[string]time.Duration{
			ClassDefault:    defaultTTL,
			ClassMarketData: marketDataTTL,
		},
		domainClass: map[string]string{
			"finance.yahoo.com":        ClassMarketData,
			"query1.finance.yahoo.com": ClassMarketData,
			"stooq.com":                ClassMarketData,
			"coingecko.com":            ClassMarketData,
			"api.coingecko.com":        ClassMarketData,
			"marketwatch.com":          ClassMarketData,
		},
		primaryDomains: []string{
			"sec.gov",
			"federalreserve.gov",
			"bls.gov",
			"treasury.gov",
			"europa.eu",
			"imf.org",
			"worldbank.org",
		},
	}
}

// LoadPolicy reads a YAML policy file and overlays it on the defaults.
// Class TTLs use Go duration syntax ("24h", "168h").
func LoadPolicy(path string) (*Policy, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("policy: read %s: %w", path, err)
	}
	var pf policyFile
	if err := yaml.Unmarshal(raw, &pf); err != nil {
		return nil, fmt.Errorf("policy: parse %s: %w", path, err)
	}
	p := DefaultPolicy()
	for class, ttl := range pf.Classes {
		d, err := time.ParseDuration(ttl)
		if err != nil {
			return nil, fmt.Errorf("policy: class %s: %w", class, err)
		}
		if d <= 0 {
			return nil, fmt.Errorf("policy: class %s: ttl must be positive", class)
		}
		p.classTTL[class] = d
	}
	for domain, class := range pf.Domains {
		if _, ok := p.classTTL[class]; !ok {
			return nil, fmt.Errorf("policy: domain %s references unknown class %s", domain, class)
		}
		p.domainClass[strings.ToLower(domain)] = class
	}
	for _, domain := range pf.Primary {
		p.primaryDomains = append(p.primaryDomains, strings.ToLower(domain))
	}
	return p, nil
}

// ResolveClass returns the TTL class for a URL's domain.
func (p *Policy) ResolveClass(domain string) string {
	domain = strings.ToLower(domain)
	best := ""
	for d := range p.domainClass {
		if domainMatches(domain, d) && len(d) > len(best) {
			best = d
		}
	}
	if best != "" {
		return p.domainClass[best]
	}
	return ClassDefault
}

// TTL returns the lifetime for a class, falling back to the default class
// for names the policy does not know.
func (p *Policy) TTL(class string) time.Duration {
	if d, ok := p.classTTL[class]; ok {
		return d
	}
	return p.classTTL[ClassDefault]
}

// SourceType classifies a domain as primary or secondary.
func (p *Policy) SourceType(domain string) evidence.SourceType {
	domain = strings.ToLower(domain)
	for _, d := range p.primaryDomains {
		if domainMatches(domain, d) {
			return evidence.SourcePrimary
		}
	}
	return evidence.SourceSecondary
}

func domainMatches(domain, suffix string) bool {
	return domain == suffix || strings.HasSuffix(domain, "."+suffix)
}
