// Copyright 2021 Dalarub & Ettrich GmbH - All Rights Reserved
// Unauthorized copying of this file, via any medium is strictly prohibited
// Proprietary and confidential
// info@dalarub.com
//

/*
Package model holds the metadata of a registered entity.

A Description is the single source of truth for an entity type: the table
provisioning, the insert/update/delete statements, the list queries and the
request body validation are all derived from it. Descriptions are produced by
Classify from raw field declarations, which come either from the JSON
configuration (ParseConfiguration) or from struct tags (FromStruct).

A Description must not be modified after it has been registered with a backend.
*/
package model

// FieldKind is the semantic role of a field
type FieldKind string

// all field kinds
const (
	KindPrimaryKey       FieldKind = "primary_key"
	KindCreatedTimestamp FieldKind = "created_timestamp"
	KindUpdatedTimestamp FieldKind = "updated_timestamp"
	KindRelation         FieldKind = "relation"
	KindScalar           FieldKind = "scalar"
)

// StorageType is the inferred column type of a field
type StorageType string

// all storage types
const (
	StorageInteger StorageType = "integer"
	StorageReal    StorageType = "real"
	StorageText    StorageType = "text"
)

// IDType selects how primary keys are generated
type IDType string

const (
	// IDTypeUUID generates a random UUID in the database. This is the default.
	IDTypeUUID IDType = "uuid"
	// IDTypeSerial uses an auto-incrementing integer
	IDTypeSerial IDType = "serial"
)

// the names of the server-assigned timestamp fields
const (
	CreatedAt = "created_at"
	UpdatedAt = "updated_at"
)

// DefaultID is the name of the primary key if nothing else is configured
const DefaultID = "id"

// Field describes one classified field
type Field struct {
	Name      string
	Kind      FieldKind
	Storage   StorageType
	Sensitive bool
}

// ExcludedFromInsert returns true for server-assigned fields
func (f Field) ExcludedFromInsert() bool {
	return f.Kind == KindPrimaryKey || f.IsTimestamp()
}

// ExcludedFromUpdate returns true for server-assigned fields
func (f Field) ExcludedFromUpdate() bool {
	return f.ExcludedFromInsert()
}

// IsTimestamp returns true for created_at and updated_at
func (f Field) IsTimestamp() bool {
	return f.Kind == KindCreatedTimestamp || f.Kind == KindUpdatedTimestamp
}

// Searchable returns true if the field takes part in free-text search
func (f Field) Searchable() bool {
	return f.Kind == KindScalar && !f.Sensitive
}

// Relation is a foreign key from this entity to a parent entity
type Relation struct {
	Field       string
	ParentTable string
	ParentKey   string
}

// RoleRequirements holds the minimal role per operation. An empty string means
// the operation is unrestricted. Create shares the update requirement, list shares
// the read requirement.
type RoleRequirements struct {
	Read   string `json:"read,omitempty"`
	Update string `json:"update,omitempty"`
	Delete string `json:"delete,omitempty"`
}

// Description is the compiled metadata of one entity type
type Description struct {
	Table    string
	IDType   IDType
	Fields   []Field
	Relation *Relation
	Roles    RoleRequirements
}

// PrimaryKey returns the primary key field. The second return value is false if
// the description has no primary key.
func (d *Description) PrimaryKey() (Field, bool) {
	for _, f := range d.Fields {
		if f.Kind == KindPrimaryKey {
			return f, true
		}
	}
	return Field{}, false
}

// Field returns the field with the given name
func (d *Description) Field(name string) (Field, bool) {
	for _, f := range d.Fields {
		if f.Name == name {
			return f, true
		}
	}
	return Field{}, false
}

// HasUpdatedTimestamp returns true if the entity has an updated_at field
func (d *Description) HasUpdatedTimestamp() bool {
	for _, f := range d.Fields {
		if f.Kind == KindUpdatedTimestamp {
			return true
		}
	}
	return false
}

// Writable returns the client-bound fields in declaration order. These are the
// columns of insert and update statements.
func (d *Description) Writable() []Field {
	var fields []Field
	for _, f := range d.Fields {
		if !f.ExcludedFromInsert() {
			fields = append(fields, f)
		}
	}
	return fields
}

// Searchable returns the fields that take part in free-text search, in
// declaration order
func (d *Description) Searchable() []Field {
	var fields []Field
	for _, f := range d.Fields {
		if f.Searchable() {
			fields = append(fields, f)
		}
	}
	return fields
}
