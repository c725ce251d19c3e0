package manifest

import (
	"bytes"
	"fmt"
	"os"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"gopkg.in/yaml.v3"

	"liquidityLedger/internal/templates"
)

// Manifest declares the factories to watch and the templates they spawn.
type Manifest struct {
	Network     string       `yaml:"network"`
	ChainID     uint64       `yaml:"chainId"`
	DataSources []DataSource `yaml:"dataSources"`
	Templates   []string     `yaml:"templates"`

	factories map[common.Address]templates.Kind
}

// DataSource is a static factory contract.
type DataSource struct {
	Name       string `yaml:"name"`
	Template   string `yaml:"template"`
	Address    string `yaml:"address"`
	StartBlock uint64 `yaml:"startBlock"`
}

// LoadFile reads and validates a manifest file.
func LoadFile(path string) (*Manifest, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading manifest %q: %w", path, err)
	}
	m, err := Decode(content)
	if err != nil {
		return nil, fmt.Errorf("decoding manifest %q: %w", path, err)
	}
	return m, nil
}

// Decode parses and validates manifest content.
func Decode(content []byte) (*Manifest, error) {
	var m Manifest
	decoder := yaml.NewDecoder(bytes.NewReader(content))
	decoder.KnownFields(true)
	if err := decoder.Decode(&m); err != nil {
		return nil, err
	}
	if err := m.validate(); err != nil {
		return nil, err
	}
	return &m, nil
}

func (m *Manifest) validate() error {
	if strings.TrimSpace(m.Network) == "" {
		return fmt.Errorf("network is required")
	}
	if len(m.DataSources) == 0 {
		return fmt.Errorf("at least one data source is required")
	}

	declared := make(map[templates.Kind]bool, len(m.Templates))
	for _, name := range m.Templates {
		kind, err := templates.ParseKind(name)
		if err != nil {
			return err
		}
		declared[kind] = true
	}

	m.factories = make(map[common.Address]templates.Kind, len(m.DataSources))
	names := make(map[string]bool, len(m.DataSources))
	for i, ds := range m.DataSources {
		if ds.Name == "" {
			return fmt.Errorf("dataSources[%d]: name is required", i)
		}
		if names[ds.Name] {
			return fmt.Errorf("dataSources[%d]: duplicate name %q", i, ds.Name)
		}
		names[ds.Name] = true

		if !common.IsHexAddress(ds.Address) {
			return fmt.Errorf("data source %s: invalid address %q", ds.Name, ds.Address)
		}
		kind, err := templates.ParseKind(ds.Template)
		if err != nil {
			return fmt.Errorf("data source %s: %w", ds.Name, err)
		}
		if !declared[kind] {
			return fmt.Errorf("data source %s: template %s is not declared", ds.Name, kind)
		}

		address := common.HexToAddress(ds.Address)
		if _, dup := m.factories[address]; dup {
			return fmt.Errorf("data source %s: address %s listed twice", ds.Name, address.Hex())
		}
		m.factories[address] = kind
	}
	return nil
}

// FactoryKind returns the template spawned by the factory at address.
func (m *Manifest) FactoryKind(address common.Address) (templates.Kind, bool) {
	kind, ok := m.factories[address]
	return kind, ok
}

// StartBlock returns the lowest start block across factories.
func (m *Manifest) StartBlock() uint64 {
	var start uint64
	for i, ds := range m.DataSources {
		if i == 0 || ds.StartBlock < start {
			start = ds.StartBlock
		}
	}
	return start
}
