// Copyright 2021 Dalarub & Ettrich GmbH - All Rights Reserved
// Unauthorized copying of this file, via any medium is strictly prohibited
// Proprietary and confidential
// info@dalarub.com
//

package model

import (
	"github.com/goccy/go-json"
)

// SchemaID returns the $id of the body schema generated by BodySchema
func (d *Description) SchemaID() string {
	return "https://gourd.local/entity/" + d.Table + ".json"
}

// BodySchema returns a JSON schema for create and update request bodies.
//
// Only writable fields are constrained, all of them nullable. Other keys are
// allowed and ignored by the handlers.
func (d *Description) BodySchema() string {
	properties := map[string]interface{}{}
	for _, f := range d.Writable() {
		var jsonType string
		switch f.Storage {
		case StorageInteger:
			jsonType = "integer"
		case StorageReal:
			jsonType = "number"
		default:
			jsonType = "string"
		}
		properties[f.Name] = map[string]interface{}{"type": []string{jsonType, "null"}}
	}
	s := map[string]interface{}{
		"$id":        d.SchemaID(),
		"type":       "object",
		"properties": properties,
	}
	data, _ := json.Marshal(s)
	return string(data)
}
