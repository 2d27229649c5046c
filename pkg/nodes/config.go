// Package nodes holds helpers shared by the built-in node kinds.
package nodes

import (
	"encoding/json"
	"fmt"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// DecodeConfig decodes an authored config map into the kind-specific shape
// and runs its validation tags.
func DecodeConfig(config map[string]any, out any) error {
	raw, err := json.Marshal(config)
	if err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}

	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("failed to decode config: %w", err)
	}

	if err := validate.Struct(out); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	return nil
}
