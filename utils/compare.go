// Package utils provides small shared helpers.
package utils

import (
	"encoding/json"
	"reflect"
)

// ValuesEqual reports whether two free-form record values are structurally
// equal. Values are normalized through JSON first so map key order and
// int/float encoding differences from the wire never produce false negatives;
// anything that fails to marshal falls back to reflect.DeepEqual.
func ValuesEqual(a, b any) bool {
	aj, errA := json.Marshal(a)
	bj, errB := json.Marshal(b)
	if errA != nil || errB != nil {
		return reflect.DeepEqual(a, b)
	}
	return string(aj) == string(bj)
}

// RecordsEqual reports whether two entity records are structurally equal.
// nil and empty records are considered equal.
func RecordsEqual(a, b map[string]any) bool {
	if len(a) == 0 && len(b) == 0 {
		return true
	}
	return ValuesEqual(a, b)
}
