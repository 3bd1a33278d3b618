// Copyright 2021 Dalarub & Ettrich GmbH - All Rights Reserved
// Unauthorized copying of this file, via any medium is strictly prohibited
// Proprietary and confidential
// info@dalarub.com
//

// Package schema validates JSON documents against JSON schemas.
//
// It is used twice: once at startup to validate the entity configuration, and on
// every create or update request to validate the request body against the schema
// generated from the entity's model description.
package schema

import (
	"fmt"
	"strings"

	"github.com/goccy/go-json"
	"github.com/xeipuuv/gojsonschema"

	"github.com/relabs-tech/gourd/core/failure"
)

// Validator is a utility to validate JSON object against a given schema
type Validator struct {
	schemaValidators map[string]*gojsonschema.Schema
}

// NewValidator creates a new Validator using schemas for the top level JSON schemas and refs
// for refs that may be referenced in the top level schemas. Every top level schema must
// carry an $id, which is the key for validation.
func NewValidator(schemas []string, refs []string) (*Validator, error) {
	v := &Validator{schemaValidators: make(map[string]*gojsonschema.Schema)}
	for _, str := range schemas {
		if err := v.add(str, refs); err != nil {
			return nil, err
		}
	}
	return v, nil
}

// Add compiles and adds a single top level schema
func (v *Validator) Add(str string) error {
	return v.add(str, nil)
}

func (v *Validator) add(str string, refs []string) error {
	s := struct {
		ID string `json:"$id"`
	}{}
	if err := json.Unmarshal([]byte(str), &s); err != nil {
		return fmt.Errorf("parse error '%v' in schema: '%s'", err, str)
	}
	if s.ID == "" {
		return fmt.Errorf("schema does not contain $id: '%s'", str)
	}
	sl := gojsonschema.NewSchemaLoader()
	for _, ref := range refs {
		if err := sl.AddSchemas(gojsonschema.NewStringLoader(ref)); err != nil {
			return fmt.Errorf("cannot add ref %s: %w", ref, err)
		}
	}
	compiled, err := sl.Compile(gojsonschema.NewStringLoader(str))
	if err != nil {
		return fmt.Errorf("cannot compile schema %s: %w", s.ID, err)
	}
	v.schemaValidators[s.ID] = compiled
	return nil
}

// HasSchema returns true if schemaID is known
func (v *Validator) HasSchema(schemaID string) bool {
	_, ok := v.schemaValidators[schemaID]
	return ok
}

// ValidateBytes validates the given json document against schemaID. A document
// that does not follow the schema is reported as a validation failure.
func (v *Validator) ValidateBytes(data []byte, schemaID string) error {
	return v.validate(gojsonschema.NewBytesLoader(data), schemaID)
}

// ValidateString validates the given json against schemaID
func (v *Validator) ValidateString(data, schemaID string) error {
	return v.validate(gojsonschema.NewStringLoader(data), schemaID)
}

func (v *Validator) validate(loader gojsonschema.JSONLoader, schemaID string) error {
	s, ok := v.schemaValidators[schemaID]
	if !ok {
		return fmt.Errorf("there is no schema %s", schemaID)
	}

	result, err := s.Validate(loader)
	if err != nil {
		return failure.Wrapf(err, failure.TypeValidation, "cannot validate with schema %s", schemaID)
	}

	if !result.Valid() {
		var problems []string
		for _, e := range result.Errors() {
			problems = append(problems, e.String())
		}
		return failure.Validation("the document is not valid: %s", strings.Join(problems, "; "))
	}
	return nil
}
