package app

import (
	"encoding/json"
	"fmt"
)

func encode(obj any) (string, error) {
	data, err := json.Marshal(obj)
	if err != nil {
		return "", fmt.Errorf("failed encoding message: %w", err)
	}
	return string(data), nil
}

func decode(msg string, obj any) error {
	err := json.Unmarshal([]byte(msg), obj)
	if err != nil {
		return fmt.Errorf("failed decoding message: %w", err)
	}
	return nil
}
