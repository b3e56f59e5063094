package map2rec

import (
	"errors"
	"fmt"

	"knapga/internal/model"
)

var (
	ErrUnsupportedKind = errors.New("unsupported record kind")
	ErrMissingField    = errors.New("missing record field")
	ErrInvalidField    = errors.New("invalid record field")
)

const (
	DefaultWeightMax      = 9999
	DefaultPopulationSize = 10
	DefaultEpochs         = 100
	DefaultCrossoverRate  = 0.2
	DefaultMutationRate   = 0.01
)

func Convert(kind string, in map[string]any) (any, error) {
	switch kind {
	case "item":
		return ConvertItem(in)
	case "run_config":
		return ConvertRunConfig(in)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedKind, kind)
	}
}

// ConvertItem reads an item record. The identifier may be given as id, sku or name.
func ConvertItem(in map[string]any) (model.Item, error) {
	var item model.Item

	rawID, ok := firstPresent(in, "id", "sku", "name")
	if !ok {
		return model.Item{}, fmt.Errorf("%w: id", ErrMissingField)
	}
	switch x := rawID.(type) {
	case string:
		item.ID = x
	default:
		item.ID = fmt.Sprint(x)
	}

	rawWeight, ok := in["weight"]
	if !ok {
		return model.Item{}, fmt.Errorf("%w: weight of item %s", ErrMissingField, item.ID)
	}
	weight, ok := asInt(rawWeight)
	if !ok {
		return model.Item{}, fmt.Errorf("%w: weight of item %s must be an integer, got %v", ErrInvalidField, item.ID, rawWeight)
	}
	item.Weight = weight

	rawValue, ok := in["value"]
	if !ok {
		return model.Item{}, fmt.Errorf("%w: value of item %s", ErrMissingField, item.ID)
	}
	value, ok := asFloat64(rawValue)
	if !ok {
		return model.Item{}, fmt.Errorf("%w: value of item %s must be a number, got %v", ErrInvalidField, item.ID, rawValue)
	}
	item.Value = value
	return item, nil
}

func ConvertItems(v any) ([]model.Item, error) {
	raw, ok := asAnySlice(v)
	if !ok {
		return nil, fmt.Errorf("%w: items must be a list", ErrInvalidField)
	}
	items := make([]model.Item, 0, len(raw))
	for i, entry := range raw {
		record, ok := entry.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("%w: item %d is not an object", ErrInvalidField, i)
		}
		item, err := ConvertItem(record)
		if err != nil {
			return nil, fmt.Errorf("item %d: %w", i, err)
		}
		items = append(items, item)
	}
	return items, nil
}

// ConvertRunConfig overlays the recognized keys of in on the default run config.
// Unknown keys are ignored. A recognized key whose value does not convert is
// an ErrInvalidField error.
func ConvertRunConfig(in map[string]any) (model.RunConfig, error) {
	out := DefaultRunConfig()
	for key, val := range in {
		var ok bool
		switch key {
		case "weight_min":
			out.WeightMin, ok = asInt(val)
		case "weight_max":
			out.WeightMax, ok = asInt(val)
		case "population_size", "population":
			out.PopulationSize, ok = asInt(val)
		case "epochs", "epoch", "generations":
			out.Epochs, ok = asInt(val)
		case "crossover_rate":
			out.CrossoverRate, ok = asFloat64(val)
		case "mutation_rate":
			out.MutationRate, ok = asFloat64(val)
		case "initial_zero_bias":
			out.InitialZeroBias, ok = asInt(val)
		case "max_bootstrap_attempts":
			out.MaxBootstrapAttempts, ok = asInt(val)
		case "seed":
			out.Seed, ok = asInt64(val)
		default:
			continue
		}
		if !ok {
			return model.RunConfig{}, fmt.Errorf("%w: %s has unusable value %v", ErrInvalidField, key, val)
		}
	}
	return out, nil
}

func DefaultRunConfig() model.RunConfig {
	return model.RunConfig{
		WeightMin:      0,
		WeightMax:      DefaultWeightMax,
		PopulationSize: DefaultPopulationSize,
		Epochs:         DefaultEpochs,
		CrossoverRate:  DefaultCrossoverRate,
		MutationRate:   DefaultMutationRate,
	}
}
