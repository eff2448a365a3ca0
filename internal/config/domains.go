package config

import "strings"

// DomainUnknown is assigned when no pattern matches.
const DomainUnknown = "unknown"

// domainPattern pairs a domain tag with its case-insensitive keywords.
// Order matters: the first matching domain wins.
type domainPattern struct {
	Domain   string
	Keywords []string
}

// DomainClassifier assigns a business domain to a chunk by ordered keyword
// match over its path first, then its content. Classification is
// deterministic: the same (path, content) always yields the same tag.
type DomainClassifier struct {
	patterns []domainPattern
}

// DefaultDomainClassifier returns the production domain ordering.
func DefaultDomainClassifier() *DomainClassifier {
	return &DomainClassifier{patterns: []domainPattern{
		{"finance", []string{"payment", "invoice", "billing", "ledger", "settlement", "payout", "treasury"}},
		{"auth", []string{"auth", "login", "token", "session", "password", "oauth", "jwt", "credential"}},
		{"ui", []string{"component", "button", "modal", "layout", "theme", "styles", "widget"}},
		{"contracts", []string{"contract", "solidity", "erc20", "erc721", "abi", "onchain"}},
		{"trading", []string{"trade", "order_book", "market", "exchange", "price", "quote"}},
		{"kyc", []string{"kyc", "identity", "verification", "compliance", "aml", "sanctions"}},
		{"notifications", []string{"notification", "email", "sms", "webhook", "alert", "push"}},
	}}
}

// NewDomainClassifier builds a classifier from an ordered tag → keywords
// list. The iteration order of the input slice is preserved.
func NewDomainClassifier(ordered []struct {
	Domain   string
	Keywords []string
}) *DomainClassifier {
	patterns := make([]domainPattern, 0, len(ordered))
	for _, p := range ordered {
		patterns = append(patterns, domainPattern{Domain: p.Domain, Keywords: p.Keywords})
	}
	return &DomainClassifier{patterns: patterns}
}

// Classify returns the first domain whose keywords match the lowercased
// path, then the lowercased content. DomainUnknown when nothing matches.
func (c *DomainClassifier) Classify(relPath, content string) string {
	lowerPath := strings.ToLower(relPath)
	for _, p := range c.patterns {
		for _, kw := range p.Keywords {
			if strings.Contains(lowerPath, kw) {
				return p.Domain
			}
		}
	}

	lowerContent := strings.ToLower(content)
	for _, p := range c.patterns {
		for _, kw := range p.Keywords {
			if strings.Contains(lowerContent, kw) {
				return p.Domain
			}
		}
	}
	return DomainUnknown
}

// Domains returns the configured tags in match order, without "unknown".
func (c *DomainClassifier) Domains() []string {
	out := make([]string, 0, len(c.patterns))
	for _, p := range c.patterns {
		out = append(out, p.Domain)
	}
	return out
}
