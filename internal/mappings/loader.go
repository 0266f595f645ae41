package mappings

import (
	"errors"
	"io/fs"
	"log/slog"
	"os"

	"gopkg.in/yaml.v3"
)

type mappingsFile struct {
	PaymentTerms    OrderedMap `yaml:"payment_terms"`
	ShippingMethods OrderedMap `yaml:"shipping_methods"`
	Currencies      OrderedMap `yaml:"currencies"`
}

type myCompanyFile struct {
	Identifiers Identifiers `yaml:"identifiers"`
}

// Load reads mappings.yaml and my_company.yaml. Missing or broken files fall
// back to the defaults; the service keeps running either way.
func Load(mappingsPath, myCompanyPath string, logger *slog.Logger) *Config {
	if logger == nil {
		logger = slog.Default()
	}
	def := Default()
	cfg := &Config{}

	var mf mappingsFile
	switch err := readYAML(mappingsPath, &mf); {
	case err == nil:
		cfg.PaymentTerms = mf.PaymentTerms
		cfg.ShippingMethods = mf.ShippingMethods
		cfg.Currencies = mf.Currencies
		logger.Info("mappings.load.ok", "path", mappingsPath,
			"payment_terms", len(mf.PaymentTerms), "shipping_methods", len(mf.ShippingMethods), "currencies", len(mf.Currencies))
	case errors.Is(err, fs.ErrNotExist):
		logger.Warn("mappings.load.not_found", "path", mappingsPath)
		cfg.PaymentTerms, cfg.ShippingMethods, cfg.Currencies = def.PaymentTerms, def.ShippingMethods, def.Currencies
	default:
		logger.Error("mappings.load.failed", "path", mappingsPath, "error", err)
		cfg.PaymentTerms, cfg.ShippingMethods, cfg.Currencies = def.PaymentTerms, def.ShippingMethods, def.Currencies
	}

	var cf myCompanyFile
	switch err := readYAML(myCompanyPath, &cf); {
	case err == nil:
		cfg.MyCompany = cf.Identifiers
		logger.Info("mappings.my_company.load.ok", "path", myCompanyPath,
			"names", len(cf.Identifiers.Names), "cnpjs", len(cf.Identifiers.CNPJs))
	case errors.Is(err, fs.ErrNotExist):
		logger.Warn("mappings.my_company.not_found", "path", myCompanyPath)
		cfg.MyCompany = def.MyCompany
	default:
		logger.Error("mappings.my_company.load_failed", "path", myCompanyPath, "error", err)
		cfg.MyCompany = def.MyCompany
	}
	return cfg
}

func readYAML(path string, out any) error {
	if path == "" {
		return fs.ErrNotExist
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return yaml.Unmarshal(b, out)
}
