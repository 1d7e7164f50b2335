package contract

import (
	"time"

	"github.com/BurntSushi/toml"

	"github.com/evlocate/foundation/errors"
)

// File schema for declarative contract definitions:
//
//	[sources.entsoe]
//	name = "ENTSO-E Transparency Platform"
//	freshness_sla_seconds = 21600
//	required = ["total_generation_mw", "renewable_share", "available"]
//
//	[sources.entsoe.types]
//	total_generation_mw = "numeric"
//	renewable_share = "numeric"
//	available = "boolean"
//
//	[sources.entsoe.ranges]
//	total_generation_mw = [0.0, 200000.0]
//	renewable_share = [0.0, 1.0]
type contractsFile struct {
	Sources map[string]sourceDef `toml:"sources"`
}

type sourceDef struct {
	Name                string               `toml:"name"`
	URL                 string               `toml:"url"`
	PollIntervalSeconds int64                `toml:"poll_interval_seconds"`
	FreshnessSLASeconds int64                `toml:"freshness_sla_seconds"`
	Required            []string             `toml:"required"`
	Types               map[string]string    `toml:"types"`
	Ranges              map[string][]float64 `toml:"ranges"`
}

// LoadFile parses a TOML contract definitions file into contracts
func LoadFile(path string) ([]Contract, error) {
	var file contractsFile
	if _, err := toml.DecodeFile(path, &file); err != nil {
		return nil, errors.Wrapf(err, "decode contracts file %s", path)
	}

	contracts := make([]Contract, 0, len(file.Sources))
	for sourceID, def := range file.Sources {
		c, err := def.toContract(sourceID)
		if err != nil {
			return nil, err
		}
		contracts = append(contracts, c)
	}
	return contracts, nil
}

// RegisterFile loads a contract definitions file and registers every entry
func RegisterFile(registry *Registry, path string) (int, error) {
	contracts, err := LoadFile(path)
	if err != nil {
		return 0, err
	}
	for _, c := range contracts {
		if err := registry.Register(c); err != nil {
			return 0, errors.Wrapf(err, "register contracts from %s", path)
		}
	}
	return len(contracts), nil
}

func (d sourceDef) toContract(sourceID string) (Contract, error) {
	c := Contract{
		SourceID:       sourceID,
		SourceName:     d.Name,
		RequiredFields: d.Required,
		FreshnessSLA:   time.Duration(d.FreshnessSLASeconds) * time.Second,
		Endpoint:       d.URL,
		PollInterval:   time.Duration(d.PollIntervalSeconds) * time.Second,
	}

	if len(d.Types) > 0 {
		c.FieldTypes = make(map[string]Kind, len(d.Types))
		for field, kind := range d.Types {
			c.FieldTypes[field] = Kind(kind)
		}
	}

	if len(d.Ranges) > 0 {
		c.FieldRanges = make(map[string]Range, len(d.Ranges))
		for field, bounds := range d.Ranges {
			if len(bounds) != 2 {
				return Contract{}, errors.Newf("contract %s: range for %q must be [min, max], got %d values", sourceID, field, len(bounds))
			}
			c.FieldRanges[field] = Range{Min: bounds[0], Max: bounds[1]}
		}
	}

	if err := c.Validate(); err != nil {
		return Contract{}, err
	}
	return c, nil
}
