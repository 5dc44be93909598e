package utils

import (
	"encoding/json"
	"fmt"

	"github.com/kaptinlin/jsonrepair"
)

// DecodeLenient unmarshals content into T. When strict decoding fails the
// content is passed through jsonrepair (trailing commas, single quotes,
// unquoted keys, truncated documents) and decoded again.
//
//	messages, err := DecodeLenient[[]ai.Message]([]byte(`[{role: 'user', content: 'hi'},]`))
func DecodeLenient[T any](content []byte) (T, error) {
	var result T

	err := json.Unmarshal(content, &result)
	if err == nil {
		return result, nil
	}

	repaired, repairErr := jsonrepair.JSONRepair(string(content))
	if repairErr != nil {
		return result, fmt.Errorf("invalid JSON and repair failed: %w (repair error: %v)", err, repairErr)
	}

	var repairedResult T
	if err := json.Unmarshal([]byte(repaired), &repairedResult); err != nil {
		return result, fmt.Errorf("failed to unmarshal repaired JSON as %T: %w", result, err)
	}
	return repairedResult, nil
}
