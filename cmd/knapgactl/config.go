package main

import (
	"encoding/json"
	"fmt"
	"os"

	"knapga/internal/map2rec"
	"knapga/pkg/knapga"
)

// loadRunRequestFromConfig reads a run config file. Run settings may sit at
// the top level or under a "config" object; items may be inlined or named by
// catalog_path.
func loadRunRequestFromConfig(path string) (knapga.RunRequest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return knapga.RunRequest{}, err
	}
	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		return knapga.RunRequest{}, err
	}

	var req knapga.RunRequest
	if v, ok := asString(raw["run_id"]); ok {
		req.RunID = v
	}
	if v, ok := asString(raw["catalog_path"]); ok {
		req.CatalogPath = v
	}
	if v, ok := asString(raw["replay_run_id"]); ok {
		req.ReplayRunID = v
	}
	if list, ok := raw["items"]; ok {
		items, err := map2rec.ConvertItems(list)
		if err != nil {
			return knapga.RunRequest{}, err
		}
		req.Items = items
	}

	settings := raw
	if nested, ok := raw["config"].(map[string]any); ok {
		settings = nested
	}
	cfg, err := map2rec.ConvertRunConfig(settings)
	if err != nil {
		return knapga.RunRequest{}, err
	}
	req.Config = cfg
	return req, nil
}

func asString(v any) (string, bool) {
	s, ok := v.(string)
	return s, ok
}

func overrideFromFlags(req *knapga.RunRequest, set map[string]bool, flagValue map[string]any) error {
	for name := range set {
		v, ok := flagValue[name]
		if !ok {
			continue
		}
		switch name {
		case "run-id":
			req.RunID = v.(string)
		case "catalog":
			req.CatalogPath = v.(string)
			req.Items = nil
		case "replay":
			req.ReplayRunID = v.(string)
		case "weight-min":
			req.Config.WeightMin = v.(int)
		case "weight-max":
			req.Config.WeightMax = v.(int)
		case "population":
			req.Config.PopulationSize = v.(int)
		case "epochs":
			req.Config.Epochs = v.(int)
		case "crossover-rate":
			req.Config.CrossoverRate = v.(float64)
		case "mutation-rate":
			req.Config.MutationRate = v.(float64)
		case "zero-bias":
			req.Config.InitialZeroBias = v.(int)
		case "max-bootstrap":
			req.Config.MaxBootstrapAttempts = v.(int)
		case "seed":
			req.Config.Seed = v.(int64)
		default:
			return fmt.Errorf("unsupported override flag: %s", name)
		}
	}
	return nil
}

func loadOrDefaultRunRequest(configPath string) (knapga.RunRequest, error) {
	if configPath == "" {
		return knapga.RunRequest{Config: knapga.DefaultRunConfig()}, nil
	}
	req, err := loadRunRequestFromConfig(configPath)
	if err != nil {
		return knapga.RunRequest{}, fmt.Errorf("load config: %w", err)
	}
	return req, nil
}
