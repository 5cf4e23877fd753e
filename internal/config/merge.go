package config

// deepMerge merges override into base and returns a new map. Neither input
// is mutated. When both sides hold a mapping under the same key the mappings
// are merged recursively; any other collision is won by override outright,
// sequences included (no concatenation).
func deepMerge(base, override map[string]interface{}) map[string]interface{} {
	result := make(map[string]interface{}, len(base)+len(override))
	for k, v := range base {
		result[k] = v
	}

	for k, v := range override {
		existing, ok := result[k]
		if !ok {
			result[k] = v
			continue
		}

		baseMap, baseIsMap := existing.(map[string]interface{})
		overMap, overIsMap := v.(map[string]interface{})
		if baseIsMap && overIsMap {
			result[k] = deepMerge(baseMap, overMap)
		} else {
			result[k] = v
		}
	}

	return result
}
