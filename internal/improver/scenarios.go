package improver

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"strings"

	"github.com/xeipuuv/gojsonschema"

	"github.com/nikhilbhutani/promptcompliance/internal/models"
)

const scenarioSchema = `{
  "type": "object",
  "required": ["compliance"],
  "properties": {
    "compliance": {
      "type": "array",
      "items": {
        "type": "object",
        "required": ["user_message", "model_response", "guidelines"],
        "properties": {
          "user_message": {"type": "string", "minLength": 1},
          "model_response": {"type": "string"},
          "guidelines": {"type": "array", "items": {"type": "string"}}
        }
      }
    }
  }
}`

// LoadScenarios reads the re-evaluation fixtures. A missing file yields no scenarios;
// a file that does not match the fixture schema is an error.
func LoadScenarios(path string) ([]models.Scenario, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		slog.Warn("scenario file not found, re-evaluation will run no scenarios", "path", path)
		return []models.Scenario{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read scenarios: %w", err)
	}
	return ParseScenarios(data)
}

func ParseScenarios(data []byte) ([]models.Scenario, error) {
	result, err := gojsonschema.Validate(
		gojsonschema.NewStringLoader(scenarioSchema),
		gojsonschema.NewBytesLoader(data),
	)
	if err != nil {
		return nil, fmt.Errorf("scenario schema validation: %w", err)
	}
	if !result.Valid() {
		var details []string
		for _, desc := range result.Errors() {
			details = append(details, desc.String())
		}
		return nil, fmt.Errorf("scenarios failed validation: %s", strings.Join(details, "; "))
	}

	var file struct {
		Compliance []models.Scenario `json:"compliance"`
	}
	if err := json.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("decode scenarios: %w", err)
	}
	return file.Compliance, nil
}
