// Package bootstrap loads the persisted register configuration document --
// a YAML mapping from address-space name to a list of entries -- and drives
// it through internal/ingest. It is a collaborator that sits outside the
// simulator core, exercising the core only through ConfigIngest's public
// operations.
package bootstrap

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"modbus-tcp-sim/internal/generator"
	"modbus-tcp-sim/internal/ingest"
	"modbus-tcp-sim/internal/store"
	"modbus-tcp-sim/internal/typepack"
)

// Document is the top-level persisted configuration shape: a mapping from
// space name to its entries, self-describing by field name rather than a
// schema version number.
type Document struct {
	Spaces map[string][]EntryDoc `yaml:"spaces"`
}

// EntryDoc is one persisted register entry.
type EntryDoc struct {
	Address      uint16    `yaml:"address"`
	Interval     float64   `yaml:"interval"` // seconds
	DataType     string    `yaml:"data_type"`
	StrLen       int       `yaml:"string_length,omitempty"`
	ValueKind    string    `yaml:"value_kind"` // fixed | random_uniform | random_list | function
	Value        float64   `yaml:"value,omitempty"`
	FunctionType string    `yaml:"function_type,omitempty"`
	DataRange    []float64 `yaml:"data_range,omitempty"`
	StepRange    []float64 `yaml:"step_range,omitempty"`
	List         []float64 `yaml:"list,omitempty"`
	BitConfig    []BitDoc  `yaml:"bit_config,omitempty"`
	Description  string    `yaml:"description,omitempty"`
}

// BitDoc is one persisted bit overlay entry.
type BitDoc struct {
	Bit         int     `yaml:"bit"`
	ChangeType  string  `yaml:"change_type"` // periodic | random
	Interval    float64 `yaml:"interval"`
	Description string  `yaml:"description,omitempty"`
}

// LoadYAML reads and parses a persisted configuration document from path.
func LoadYAML(path string) (Document, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return Document{}, err
	}
	var doc Document
	if err := yaml.Unmarshal(b, &doc); err != nil {
		return Document{}, err
	}
	return doc, nil
}

// Apply drives doc through in, installing every entry and overlay it
// describes. It stops at the first validation error and returns it to the
// caller synchronously; entries and overlays installed before that error
// stay installed.
func Apply(doc Document, in *ingest.Ingest) error {
	for spaceName, entries := range doc.Spaces {
		for _, e := range entries {
			spec, err := toEntrySpec(e)
			if err != nil {
				return fmt.Errorf("bootstrap: space %s address %d: %w", spaceName, e.Address, err)
			}
			if err := in.Install(spaceName, spec); err != nil {
				return fmt.Errorf("bootstrap: space %s address %d: %w", spaceName, e.Address, err)
			}
			if len(e.BitConfig) > 0 {
				bits, err := toBitSpecs(e.BitConfig)
				if err != nil {
					return fmt.Errorf("bootstrap: space %s address %d overlay: %w", spaceName, e.Address, err)
				}
				if err := in.InstallBitOverlay(spaceName, e.Address, bits); err != nil {
					return fmt.Errorf("bootstrap: space %s address %d overlay: %w", spaceName, e.Address, err)
				}
			}
		}
	}
	return nil
}

func toEntrySpec(e EntryDoc) (ingest.EntrySpec, error) {
	producer, err := toProducerDescriptor(e)
	if err != nil {
		return ingest.EntrySpec{}, err
	}
	spec := ingest.EntrySpec{
		Address:     e.Address,
		Kind:        typepack.Kind(e.DataType),
		StrLen:      e.StrLen,
		Producer:    producer,
		Interval:    time.Duration(e.Interval * float64(time.Second)),
		Description: e.Description,
	}
	if len(e.DataRange) == 2 {
		spec.HasRange = true
		spec.RangeLo, spec.RangeHi = e.DataRange[0], e.DataRange[1]
	}
	return spec, nil
}

func toProducerDescriptor(e EntryDoc) (ingest.ProducerDescriptor, error) {
	switch e.ValueKind {
	case "fixed":
		return ingest.ProducerDescriptor{Kind: generator.Constant, Value: e.Value}, nil
	case "random_uniform":
		if len(e.DataRange) != 2 {
			return ingest.ProducerDescriptor{}, fmt.Errorf("random_uniform requires a two-element data_range")
		}
		isInteger := e.DataType != string(typepack.Float32) && e.DataType != string(typepack.Float64)
		return ingest.ProducerDescriptor{Kind: generator.RandomUniform, Lo: e.DataRange[0], Hi: e.DataRange[1], Numeric: isInteger}, nil
	case "random_list":
		return ingest.ProducerDescriptor{Kind: generator.RandomList, Values: e.List}, nil
	case "function":
		return toFunctionDescriptor(e)
	default:
		return ingest.ProducerDescriptor{}, fmt.Errorf("unknown value_kind %q", e.ValueKind)
	}
}

func toFunctionDescriptor(e EntryDoc) (ingest.ProducerDescriptor, error) {
	kind := generator.Kind(e.FunctionType)
	d := ingest.ProducerDescriptor{Kind: kind}
	switch kind {
	case generator.RandomBool, generator.TimeFull, generator.TimeHMS, generator.TimeYMD, generator.WeekdayFlag, generator.BitComposite:
		// no parameters
	case generator.PeriodicBool:
		if len(e.DataRange) > 0 {
			d.Period = e.DataRange[0]
		}
	case generator.Ramp:
		if len(e.StepRange) >= 2 {
			d.Step = e.StepRange[0]
			d.Modulus = e.StepRange[1]
		}
		d.Start = e.Value
	case generator.RandomIncrement:
		if len(e.StepRange) >= 3 {
			d.StepLo, d.StepHi, d.MaxCap = e.StepRange[0], e.StepRange[1], e.StepRange[2]
		}
		d.Start = e.Value
	case generator.Sine:
		if len(e.DataRange) >= 2 {
			d.Amplitude, d.Offset = e.DataRange[0], e.DataRange[1]
		}
		if len(e.StepRange) >= 1 {
			d.Frequency = e.StepRange[0]
		}
	case generator.TimeHMOrMDHM:
		if len(e.DataRange) >= 1 {
			d.Max = int64(e.DataRange[0])
		}
	default:
		return ingest.ProducerDescriptor{}, fmt.Errorf("unknown function_type %q", e.FunctionType)
	}
	return d, nil
}

func toBitSpecs(docs []BitDoc) ([]ingest.BitSpec, error) {
	specs := make([]ingest.BitSpec, 0, len(docs))
	for _, b := range docs {
		var ct store.ChangeType
		switch b.ChangeType {
		case "periodic":
			ct = store.ChangePeriodic
		case "random":
			ct = store.ChangeRandom
		default:
			return nil, fmt.Errorf("unknown bit change_type %q", b.ChangeType)
		}
		kind := generator.PeriodicBool
		producer := ingest.ProducerDescriptor{Kind: kind, Period: b.Interval}
		if ct == store.ChangeRandom {
			producer = ingest.ProducerDescriptor{Kind: generator.RandomBool}
		}
		specs = append(specs, ingest.BitSpec{
			Bit:         b.Bit,
			ChangeType:  ct,
			Interval:    time.Duration(b.Interval * float64(time.Second)),
			Description: b.Description,
			Producer:    producer,
		})
	}
	return specs, nil
}
