// Copyright 2021 Dalarub & Ettrich GmbH - All Rights Reserved
// Unauthorized copying of this file, via any medium is strictly prohibited
// Proprietary and confidential
// info@dalarub.com
//

package model

import (
	"fmt"
	"reflect"
	"strings"
	"unicode"

	"github.com/relabs-tech/gourd/core/failure"
)

// Tabler can be implemented by a struct to choose its table name. Without it,
// the lowercased type name is used.
type Tabler interface {
	TableName() string
}

// RoleRequirer can be implemented by a struct to declare role requirements
type RoleRequirer interface {
	RequireRole() RoleRequirements
}

// FromStruct derives a Description from a struct value or pointer.
//
// Every exported field becomes a declaration. The column name is taken from the
// gourd tag, then from the json tag, then from the snake-cased field name. The
// gourd tag accepts the options type=<declared type>, primary_key and sensitive;
// gourd:"-" skips the field. A relation is declared with a separate tag:
//
//	type Comment struct {
//		ID     int64  `json:"id"`
//		Title  string `json:"title"`
//		PostID int64  `json:"post_id" relation:"foreign_key=post_id,references=post.id"`
//	}
func FromStruct(v interface{}) (*Description, error) {
	e, err := EntityFromStruct(v)
	if err != nil {
		return nil, err
	}
	return Classify(e)
}

// EntityFromStruct builds the raw entity declaration for a struct without
// classifying it
func EntityFromStruct(v interface{}) (Entity, error) {
	t := reflect.TypeOf(v)
	for t != nil && t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	if t == nil || t.Kind() != reflect.Struct {
		return Entity{}, failure.Validation("cannot describe %T, expected a struct", v)
	}

	e := Entity{Table: strings.ToLower(t.Name())}
	if tabler, ok := v.(Tabler); ok {
		e.Table = tabler.TableName()
	}
	if requirer, ok := v.(RoleRequirer); ok {
		e.RequireRole = requirer.RequireRole()
	}

	for i := 0; i < t.NumField(); i++ {
		sf := t.Field(i)
		if sf.PkgPath != "" { // unexported
			continue
		}
		decl, skip, err := declarationFromField(sf)
		if err != nil {
			return Entity{}, failure.Wrapf(err, failure.TypeValidation, "%s.%s", t.Name(), sf.Name)
		}
		if skip {
			continue
		}
		e.Fields = append(e.Fields, decl)
	}
	return e, nil
}

func declarationFromField(sf reflect.StructField) (decl Declaration, skip bool, err error) {
	tag := sf.Tag.Get("gourd")
	if tag == "-" {
		return decl, true, nil
	}
	options := strings.Split(tag, ",")
	decl.Name = options[0]
	if decl.Name == "" {
		jsonName := strings.Split(sf.Tag.Get("json"), ",")[0]
		if jsonName == "-" {
			return decl, true, nil
		}
		decl.Name = jsonName
	}
	if decl.Name == "" {
		decl.Name = snakeCase(sf.Name)
	}
	decl.Type = declaredType(sf.Type)

	for _, option := range options[1:] {
		switch {
		case option == "primary_key":
			decl.PrimaryKey = true
		case option == "sensitive":
			decl.Sensitive = true
		case strings.HasPrefix(option, "type="):
			decl.Type = strings.TrimPrefix(option, "type=")
		case option == "":
		default:
			return decl, false, fmt.Errorf("unknown gourd tag option '%s'", option)
		}
	}

	if relation, ok := sf.Tag.Lookup("relation"); ok {
		annotation := &RelationAnnotation{}
		for _, kv := range strings.Split(relation, ",") {
			i := strings.IndexRune(kv, '=')
			if i < 0 {
				return decl, false, fmt.Errorf("cannot parse relation tag '%s', expected key=value", kv)
			}
			switch strings.TrimSpace(kv[:i]) {
			case "foreign_key":
				annotation.ForeignKey = strings.TrimSpace(kv[i+1:])
			case "references":
				annotation.References = strings.TrimSpace(kv[i+1:])
			case "nested_route":
				// always true, there is only one nesting level
			default:
				return decl, false, fmt.Errorf("unknown relation tag key '%s'", kv[:i])
			}
		}
		decl.Relation = annotation
	}
	return decl, false, nil
}

func declaredType(t reflect.Type) string {
	for t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	switch t.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return "integer"
	case reflect.Float32, reflect.Float64:
		return "real"
	case reflect.String:
		return "text"
	}
	return t.String()
}

// snakeCase converts a Go identifier like PostID to post_id
func snakeCase(name string) string {
	runes := []rune(name)
	var b strings.Builder
	for i, r := range runes {
		if unicode.IsUpper(r) {
			if i > 0 {
				prev := runes[i-1]
				nextLower := i+1 < len(runes) && unicode.IsLower(runes[i+1])
				if unicode.IsLower(prev) || unicode.IsDigit(prev) || (unicode.IsUpper(prev) && nextLower) {
					b.WriteRune('_')
				}
			}
			b.WriteRune(unicode.ToLower(r))
		} else {
			b.WriteRune(r)
		}
	}
	return b.String()
}
