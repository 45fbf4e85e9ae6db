package mapinfo

import (
	"sort"
	"strconv"
)

// MergeStartPositions implements spec.md §4.I's "prefer mapinfo over SMD"
// rule for start positions specifically: mapInfo.teams[*].startPos, when
// present and non-empty, wins over the legacy .smd-derived list.
func MergeStartPositions(smdPositions []StartPosition, info map[string]interface{}) []StartPosition {
	teamsVal, ok := info["teams"]
	if !ok {
		return smdPositions
	}

	var out []StartPosition
	for _, team := range asOrderedList(teamsVal) {
		teamDict, ok := team.(map[string]interface{})
		if !ok {
			continue
		}
		startPos, ok := teamDict["startPos"].(map[string]interface{})
		if !ok {
			continue
		}
		x, xok := asFloat(startPos["x"])
		z, zok := asFloat(startPos["z"])
		if xok && zok {
			out = append(out, StartPosition{X: x, Z: z})
		}
	}

	if len(out) == 0 {
		return smdPositions
	}
	return out
}

// asOrderedList normalizes a value that may have parsed as either a dense
// []interface{} (no explicit keys in the source table) or a
// map[string]interface{} keyed by numeric strings (explicit `[N] = ...`
// entries) into one ordered slice.
func asOrderedList(v interface{}) []interface{} {
	switch vv := v.(type) {
	case []interface{}:
		return vv
	case map[string]interface{}:
		keys := make([]int, 0, len(vv))
		for k := range vv {
			if n, err := strconv.Atoi(k); err == nil {
				keys = append(keys, n)
			}
		}
		sort.Ints(keys)
		out := make([]interface{}, 0, len(keys))
		for _, k := range keys {
			out = append(out, vv[strconv.Itoa(k)])
		}
		return out
	default:
		return nil
	}
}

func asFloat(v interface{}) (float64, bool) {
	f, ok := v.(float64)
	return f, ok
}
