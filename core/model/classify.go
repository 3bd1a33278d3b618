// Copyright 2021 Dalarub & Ettrich GmbH - All Rights Reserved
// Unauthorized copying of this file, via any medium is strictly prohibited
// Proprietary and confidential
// info@dalarub.com
//

package model

import (
	"regexp"
	"strings"
	"unicode"

	"github.com/relabs-tech/gourd/core/failure"
)

// RelationAnnotation marks a field as foreign key to a parent entity.
// References has the form "parent.column".
type RelationAnnotation struct {
	ForeignKey string `json:"foreign_key"`
	References string `json:"references"`
}

// Declaration is a raw, unclassified field declaration
type Declaration struct {
	Name       string              `json:"name"`
	Type       string              `json:"type"`
	PrimaryKey bool                `json:"primary_key,omitempty"`
	Sensitive  bool                `json:"sensitive,omitempty"`
	Relation   *RelationAnnotation `json:"relation,omitempty"`
}

// Entity is the raw description of one entity type, as it appears in the
// configuration
type Entity struct {
	Table       string           `json:"table"`
	ID          string           `json:"id,omitempty"`
	IDType      IDType           `json:"id_type,omitempty"`
	Fields      []Declaration    `json:"fields"`
	RequireRole RoleRequirements `json:"require_role"`
}

var identifier = regexp.MustCompile(`^[a-z_][a-z0-9_]*$`)

// ValidIdentifier returns true if name can be used as table or column name
func ValidIdentifier(name string) bool {
	return identifier.MatchString(name)
}

var (
	integerFamily = []string{"int", "integer", "serial", "bigint", "smallint", "tinyint", "mediumint",
		"bigserial", "smallserial", "uint", "isize", "usize"}
	realFamily = []string{"float", "double", "real", "numeric", "decimal"}

	// families which only count with a width suffix, like i32 or f64
	integerSized = []string{"i", "u"}
	realSized    = []string{"f"}
)

// InferStorage infers the storage type from a declared type name. The name is
// split into words, a word belongs to a family if it equals a family member,
// optionally followed by a width like int64. Integer families are checked
// before real families; everything else is text.
func InferStorage(declared string) StorageType {
	words := strings.FieldsFunc(strings.ToLower(declared), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	for _, w := range words {
		if inFamily(w, integerFamily, integerSized) {
			return StorageInteger
		}
	}
	for _, w := range words {
		if inFamily(w, realFamily, realSized) {
			return StorageReal
		}
	}
	return StorageText
}

func inFamily(word string, family, sized []string) bool {
	base := strings.TrimRight(word, "0123456789")
	for _, s := range family {
		if base == s {
			return true
		}
	}
	if base == word {
		return false
	}
	for _, s := range sized {
		if base == s {
			return true
		}
	}
	return false
}

// Classify turns raw field declarations into a Description.
//
// Classification priority per field: the configured id field (or a field with
// PrimaryKey set) is the primary key; created_at and updated_at are
// server-assigned timestamps; a field with a complete relation annotation is the
// relation field; everything else is a plain scalar.
//
// Classify fails with a validation error for invalid identifiers, duplicate
// fields, more than one primary key, more than one relation field, or a
// malformed relation reference. It does not check for a missing primary key,
// that is left to the statement compiler.
func Classify(e Entity) (*Description, error) {
	if !ValidIdentifier(e.Table) {
		return nil, failure.Validation("invalid table name '%s'", e.Table)
	}
	idName := e.ID
	if idName == "" {
		idName = DefaultID
	}

	d := &Description{
		Table:  e.Table,
		IDType: e.IDType,
		Roles:  e.RequireRole,
	}
	seen := map[string]bool{}
	primaryKeys := 0

	for _, decl := range e.Fields {
		if !ValidIdentifier(decl.Name) {
			return nil, failure.Validation("%s: invalid field name '%s'", e.Table, decl.Name)
		}
		if seen[decl.Name] {
			return nil, failure.Validation("%s: duplicate field '%s'", e.Table, decl.Name)
		}
		seen[decl.Name] = true

		f := Field{Name: decl.Name, Storage: InferStorage(decl.Type), Sensitive: decl.Sensitive}
		switch {
		case decl.Name == idName || decl.PrimaryKey:
			primaryKeys++
			if primaryKeys > 1 {
				return nil, failure.Validation("%s: more than one primary key ('%s')", e.Table, decl.Name)
			}
			f.Kind = KindPrimaryKey
			if d.IDType == "" {
				if f.Storage == StorageInteger {
					d.IDType = IDTypeSerial
				} else {
					d.IDType = IDTypeUUID
				}
			}
			if d.IDType == IDTypeSerial {
				f.Storage = StorageInteger
			} else {
				f.Storage = StorageText
			}
		case decl.Name == CreatedAt:
			f.Kind = KindCreatedTimestamp
			f.Storage = StorageText
		case decl.Name == UpdatedAt:
			f.Kind = KindUpdatedTimestamp
			f.Storage = StorageText
		case decl.Relation != nil && decl.Relation.ForeignKey != "" && decl.Relation.References != "":
			if d.Relation != nil {
				return nil, failure.Validation("%s: more than one relation field ('%s' and '%s')",
					e.Table, d.Relation.Field, decl.Name)
			}
			parts := strings.Split(decl.Relation.References, ".")
			if len(parts) != 2 || !ValidIdentifier(parts[0]) || !ValidIdentifier(parts[1]) {
				return nil, failure.Validation("%s: relation '%s' must reference parent.column, got '%s'",
					e.Table, decl.Name, decl.Relation.References)
			}
			f.Kind = KindRelation
			d.Relation = &Relation{Field: decl.Name, ParentTable: parts[0], ParentKey: parts[1]}
		default:
			f.Kind = KindScalar
		}
		d.Fields = append(d.Fields, f)
	}

	switch d.IDType {
	case "", IDTypeUUID, IDTypeSerial:
	default:
		return nil, failure.Validation("%s: unknown id_type '%s'", e.Table, d.IDType)
	}
	if d.IDType == "" {
		d.IDType = IDTypeUUID
	}
	return d, nil
}
