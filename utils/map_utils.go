package utils

import "encoding/json"

func CloneMap[K comparable, V any](m map[K]V) map[K]V {
	cloneM := make(map[K]V)
	for k, v := range m {
		cloneM[k] = v
	}
	return cloneM
}

/**
 * DeepClone copies a value through a JSON round trip. Propagation uses
 * it so fan-out targets never alias the source value. Values that do
 * not survive the round trip (channels, funcs) come back as-is.
 */
func DeepClone(v any) any {
	if v == nil {
		return nil
	}
	switch v.(type) {
	case string, bool,
		int, int8, int16, int32, int64,
		uint, uint8, uint16, uint32, uint64,
		float32, float64:
		return v
	}
	b, err := json.Marshal(v)
	if err != nil {
		return v
	}
	var c any
	if err := json.Unmarshal(b, &c); err != nil {
		return v
	}
	return c
}
