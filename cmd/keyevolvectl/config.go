package main

import (
	"encoding/json"
	"fmt"
	"os"

	"keyevolve/internal/fitness"
	"keyevolve/pkg/keyevolve"
)

func loadRunRequestFromConfig(path string) (keyevolve.RunRequest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return keyevolve.RunRequest{}, err
	}
	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		return keyevolve.RunRequest{}, err
	}

	var req keyevolve.RunRequest
	if v, ok := asString(raw["run_id"]); ok {
		req.RunID = v
	}
	if v, ok := asString(raw["corpus"]); ok {
		req.CorpusPath = v
	}
	if v, ok := asString(raw["corpus_policy"]); ok {
		req.CorpusPolicy = v
	}
	if v, ok := asInt(raw["corpus_limit"]); ok {
		req.CorpusLimit = v
	}
	if v, ok := asInt(raw["seed_count"]); ok {
		req.SeedCount = v
	}
	if v, ok := asStringList(raw["seed_layouts"]); ok {
		req.SeedLayouts = v
	}
	if v, ok := asInt(raw["elite_count"]); ok {
		req.EliteCount = v
	}
	if v, ok := asInt(raw["offspring_per_elite"]); ok {
		req.OffspringPerElite = v
	}
	if v, ok := asInt(raw["stagnation_limit"]); ok {
		req.StagnationLimit = v
	}
	if v, ok := asInt(raw["max_generations"]); ok {
		req.MaxGenerations = v
	}
	if v, ok := asString(raw["mutation"]); ok {
		req.Mutation = v
	}
	if v, ok := asString(raw["selection"]); ok {
		req.Selection = v
	}
	if v, ok := asFloat64(raw["swap_decay"]); ok {
		req.SwapDecay = v
	}
	if v, ok := asInt(raw["workers"]); ok {
		req.Workers = v
	}
	if v, ok := asInt64(raw["seed"]); ok {
		req.Seed = v
	}
	if v, ok := asInt(raw["top"]); ok {
		req.TopN = v
	}
	if v, ok := asBool(raw["plot"]); ok {
		req.Plot = v
	}
	if v, ok := asInt(raw["log_every"]); ok {
		req.LogEvery = v
	}

	if weightsMap, ok := raw["weights"].(map[string]any); ok {
		weights := fitness.DefaultWeights()
		if v, ok := asFloat64(weightsMap["distance"]); ok {
			weights.Distance = v
		}
		if v, ok := asFloat64(weightsMap["finger_repeat"]); ok {
			weights.FingerRepeat = v
		}
		if v, ok := asFloat64(weightsMap["hand_repeat"]); ok {
			weights.HandRepeat = v
		}
		if v, ok := asFloat64(weightsMap["deviation"]); ok {
			weights.Deviation = v
		}
		if v, ok := asFloat64(weightsMap["max_deviation"]); ok {
			weights.MaxDeviation = v
		}
		req.Weights = &weights
	}

	return req, nil
}

func asString(v any) (string, bool) {
	s, ok := v.(string)
	return s, ok
}

func asBool(v any) (bool, bool) {
	b, ok := v.(bool)
	return b, ok
}

func asInt(v any) (int, bool) {
	switch x := v.(type) {
	case int:
		return x, true
	case float64:
		return int(x), true
	default:
		return 0, false
	}
}

func asInt64(v any) (int64, bool) {
	switch x := v.(type) {
	case int64:
		return x, true
	case int:
		return int64(x), true
	case float64:
		return int64(x), true
	default:
		return 0, false
	}
}

func asFloat64(v any) (float64, bool) {
	switch x := v.(type) {
	case float64:
		return x, true
	case int:
		return float64(x), true
	default:
		return 0, false
	}
}

// asStringList accepts a JSON array of strings or a comma-separated string.
func asStringList(v any) ([]string, bool) {
	switch x := v.(type) {
	case string:
		return splitList(x), true
	case []any:
		out := make([]string, 0, len(x))
		for _, item := range x {
			s, ok := item.(string)
			if !ok {
				return nil, false
			}
			out = append(out, s)
		}
		return out, true
	default:
		return nil, false
	}
}

func overrideFromFlags(req *keyevolve.RunRequest, set map[string]bool, flagValue map[string]any) error {
	weights := fitness.DefaultWeights()
	if req.Weights != nil {
		weights = *req.Weights
	}
	weightsSet := false

	for name := range set {
		v, ok := flagValue[name]
		if !ok {
			continue
		}
		switch name {
		case "run-id":
			req.RunID = v.(string)
		case "corpus":
			req.CorpusPath = v.(string)
		case "corpus-policy":
			req.CorpusPolicy = v.(string)
		case "corpus-limit":
			req.CorpusLimit = v.(int)
		case "seeds":
			req.SeedCount = v.(int)
		case "seed-layouts":
			req.SeedLayouts = splitList(v.(string))
		case "elites":
			req.EliteCount = v.(int)
		case "offspring":
			req.OffspringPerElite = v.(int)
		case "stagnation":
			req.StagnationLimit = v.(int)
		case "max-gens":
			req.MaxGenerations = v.(int)
		case "mutation":
			req.Mutation = v.(string)
		case "selection":
			req.Selection = v.(string)
		case "swap-decay":
			req.SwapDecay = v.(float64)
		case "w-distance":
			weights.Distance = v.(float64)
			weightsSet = true
		case "w-finger-repeat":
			weights.FingerRepeat = v.(float64)
			weightsSet = true
		case "w-hand-repeat":
			weights.HandRepeat = v.(float64)
			weightsSet = true
		case "w-deviation":
			weights.Deviation = v.(float64)
			weightsSet = true
		case "max-deviation":
			weights.MaxDeviation = v.(float64)
			weightsSet = true
		case "workers":
			req.Workers = v.(int)
		case "seed":
			req.Seed = v.(int64)
		case "top":
			req.TopN = v.(int)
		case "plot":
			req.Plot = v.(bool)
		case "log-every":
			req.LogEvery = v.(int)
		default:
			return fmt.Errorf("flag --%s cannot override a config value", name)
		}
	}
	if weightsSet {
		req.Weights = &weights
	}
	return nil
}

func loadOrDefaultRunRequest(configPath string) (keyevolve.RunRequest, error) {
	if configPath == "" {
		return keyevolve.RunRequest{}, nil
	}
	req, err := loadRunRequestFromConfig(configPath)
	if err != nil {
		return keyevolve.RunRequest{}, fmt.Errorf("load config: %w", err)
	}
	return req, nil
}
