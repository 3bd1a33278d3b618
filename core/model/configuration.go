// Copyright 2021 Dalarub & Ettrich GmbH - All Rights Reserved
// Unauthorized copying of this file, via any medium is strictly prohibited
// Proprietary and confidential
// info@dalarub.com
//

package model

import (
	"github.com/goccy/go-json"

	"github.com/relabs-tech/gourd/core/failure"
	"github.com/relabs-tech/gourd/core/schema"
)

// Configuration is the JSON description of all entities of a backend
type Configuration struct {
	Entities []Entity `json:"entities"`
}

const configurationSchemaID = "https://gourd.local/configuration.json"

const configurationSchema = `{
  "$id": "https://gourd.local/configuration.json",
  "type": "object",
  "required": ["entities"],
  "additionalProperties": false,
  "properties": {
    "entities": {
      "type": "array",
      "items": {
        "type": "object",
        "required": ["table", "fields"],
        "additionalProperties": false,
        "properties": {
          "table": {"type": "string", "minLength": 1},
          "id": {"type": "string"},
          "id_type": {"enum": ["uuid", "serial"]},
          "require_role": {
            "type": "object",
            "additionalProperties": false,
            "properties": {
              "read": {"type": "string"},
              "update": {"type": "string"},
              "delete": {"type": "string"}
            }
          },
          "fields": {
            "type": "array",
            "items": {
              "type": "object",
              "required": ["name"],
              "additionalProperties": false,
              "properties": {
                "name": {"type": "string", "minLength": 1},
                "type": {"type": "string"},
                "primary_key": {"type": "boolean"},
                "sensitive": {"type": "boolean"},
                "relation": {
                  "type": "object",
                  "additionalProperties": false,
                  "properties": {
                    "foreign_key": {"type": "string"},
                    "references": {"type": "string"}
                  }
                }
              }
            }
          }
        }
      }
    }
  }
}`

// ParseConfiguration parses and validates a JSON configuration and classifies
// every entity in it. Any problem is reported as a validation failure.
func ParseConfiguration(data []byte) ([]*Description, error) {
	validator, err := schema.NewValidator([]string{configurationSchema}, nil)
	if err != nil {
		return nil, failure.Wrap(err, failure.TypeInternal, "cannot compile configuration schema")
	}
	if err := validator.ValidateBytes(data, configurationSchemaID); err != nil {
		return nil, failure.Wrap(err, failure.TypeValidation, "invalid configuration")
	}

	var config Configuration
	if err := json.Unmarshal(data, &config); err != nil {
		return nil, failure.Wrap(err, failure.TypeValidation, "parse error in configuration")
	}

	descriptions := make([]*Description, 0, len(config.Entities))
	for _, e := range config.Entities {
		d, err := Classify(e)
		if err != nil {
			return nil, err
		}
		descriptions = append(descriptions, d)
	}
	return descriptions, nil
}
