// Package mappings holds the business vocabulary used when rendering orders:
// payment terms, shipping methods and currencies, plus the identifiers of our
// own company so it is never mistaken for the customer.
package mappings

import (
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/joseph-ayodele/order-parser/internal/parsers"
	"github.com/joseph-ayodele/order-parser/internal/utils"
)

// Pair is one entry of an ordered mapping.
type Pair struct {
	Key   string
	Value string
}

// OrderedMap keeps YAML key order; payment terms are matched first-come.
type OrderedMap []Pair

// UnmarshalYAML decodes a YAML mapping node preserving document order.
func (m *OrderedMap) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.MappingNode {
		return fmt.Errorf("expected mapping, got node kind %d", node.Kind)
	}
	out := make(OrderedMap, 0, len(node.Content)/2)
	for i := 0; i+1 < len(node.Content); i += 2 {
		out = append(out, Pair{Key: node.Content[i].Value, Value: node.Content[i+1].Value})
	}
	*m = out
	return nil
}

// Lookup returns the value for an exact key.
func (m OrderedMap) Lookup(key string) (string, bool) {
	for _, p := range m {
		if p.Key == key {
			return p.Value, true
		}
	}
	return "", false
}

// Identifiers are our own company's names and tax ids.
type Identifiers struct {
	CNPJs []string `yaml:"cnpjs"`
	Names []string `yaml:"names"`
}

// Config is the loaded business configuration.
type Config struct {
	PaymentTerms    OrderedMap `yaml:"payment_terms"`
	ShippingMethods OrderedMap `yaml:"shipping_methods"`
	Currencies      OrderedMap `yaml:"currencies"`
	MyCompany       Identifiers
}

// IsMyCompanyCNPJ compares digits only.
func (c *Config) IsMyCompanyCNPJ(cnpj string) bool {
	digits := parsers.DigitsOnly(cnpj)
	if digits == "" {
		return false
	}
	for _, own := range c.MyCompany.CNPJs {
		if parsers.DigitsOnly(own) == digits {
			return true
		}
	}
	return false
}

// IsMyCompanyName matches any configured name as a case-insensitive substring.
func (c *Config) IsMyCompanyName(name string) bool {
	lower := strings.ToLower(name)
	for _, own := range c.MyCompany.Names {
		if own != "" && strings.Contains(lower, strings.ToLower(own)) {
			return true
		}
	}
	return false
}

// MapPaymentTerms returns the code of the first entry whose key contains the
// terms text or is contained by it.
func (c *Config) MapPaymentTerms(terms string) (string, bool) {
	t := strings.ToLower(strings.TrimSpace(terms))
	if t == "" {
		return "", false
	}
	for _, p := range c.PaymentTerms {
		k := strings.ToLower(p.Key)
		if strings.Contains(t, k) || strings.Contains(k, t) {
			return p.Value, true
		}
	}
	return "", false
}

// MapShippingMethod looks up the upper-cased then lower-cased method.
func (c *Config) MapShippingMethod(method string) (string, bool) {
	if strings.TrimSpace(method) == "" {
		return "", false
	}
	if v, ok := c.ShippingMethods.Lookup(strings.ToUpper(strings.TrimSpace(method))); ok && v != "" {
		return v, true
	}
	if v, ok := c.ShippingMethods.Lookup(strings.ToLower(method)); ok && v != "" {
		return v, true
	}
	return "", false
}

// MapCurrency normalises free-text currency names ("Reais", "US$") to ISO codes.
func (c *Config) MapCurrency(currency string) (string, bool) {
	if strings.TrimSpace(currency) == "" {
		return "", false
	}
	upper := strings.ToUpper(strings.TrimSpace(currency))
	for _, key := range []string{upper, currency, utils.FoldAccents(upper)} {
		if v, ok := c.Currencies.Lookup(key); ok && v != "" {
			return v, true
		}
	}
	return "", false
}

// Default returns the built-in configuration used when files are missing.
func Default() *Config {
	return &Config{
		PaymentTerms: OrderedMap{
			{"30 dias", "30D"},
			{"28 DDL", "28DDL"},
			{"30 DDL", "30DDL"},
			{"45 dias", "45D"},
			{"60 dias", "60D"},
			{"a vista", "AVISTA"},
			{"à vista", "AVISTA"},
			{"100% antecipado", "ANT"},
		},
		ShippingMethods: OrderedMap{
			{"CIF", "CIF"},
			{"FOB", "FOB"},
			{"cif", "CIF"},
			{"fob", "FOB"},
		},
		Currencies: OrderedMap{
			{"DOLAR", "USD"},
			{"DOLLAR", "USD"},
			{"DÓLAR", "USD"},
			{"USD", "USD"},
			{"US$", "USD"},
			{"$", "USD"},
			{"REAL", "BRL"},
			{"REAIS", "BRL"},
			{"BRL", "BRL"},
			{"R$", "BRL"},
			{"EURO", "EUR"},
			{"EUR", "EUR"},
			{"€", "EUR"},
		},
		MyCompany: defaultIdentifiers(),
	}
}

func defaultIdentifiers() Identifiers {
	return Identifiers{
		CNPJs: []string{},
		Names: []string{"OLIGO BASICS", "OLIGO BÁSICS", "OLIGOBASICS"},
	}
}
