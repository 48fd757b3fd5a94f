package statestore

import "encoding/json"

// marshal pretty-prints: compact would be acceptable for placement state,
// but pretty-printing both is harmless and keeps on-disk state diffable.
func marshal[T any](v T) ([]byte, error) {
	return json.MarshalIndent(v, "", "  ")
}

func unmarshal[T any](data []byte) (T, error) {
	var v T
	err := json.Unmarshal(data, &v)
	return v, err
}
