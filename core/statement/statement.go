// Copyright 2021 Dalarub & Ettrich GmbH - All Rights Reserved
// Unauthorized copying of this file, via any medium is strictly prohibited
// Proprietary and confidential
// info@dalarub.com
//

/*
Package statement compiles a model description into SQL.

Compile produces a Set with the table provisioning statements and parameterized
insert, update, delete, point select and list statements for Postgres. Only
table and column names from the classified description are interpolated into
SQL text, every client supplied value is bound to a $n placeholder.
*/
package statement

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/relabs-tech/gourd/core/failure"
	"github.com/relabs-tech/gourd/core/model"
)

// Set is the compiled statement set of one entity
type Set struct {
	// DDL creates the table and its indices. All statements are idempotent.
	DDL []string

	// Insert binds the writable fields in declaration order and returns the primary key
	Insert string
	// Update binds the writable fields in declaration order followed by the primary key
	Update string
	// Delete binds the primary key
	Delete string
	// Select binds the primary key
	Select string

	// Columns are the fields returned by Select and the list queries, in
	// declaration order. Sensitive fields are write-only and never selected.
	Columns []model.Field

	description *model.Description
	table       string
	primaryKey  model.Field
	orderable   map[string]bool
	selectList  string
}

// Description returns the description the set was compiled from
func (s *Set) Description() *model.Description {
	return s.description
}

// InsertBinds returns the number of arguments Insert expects
func (s *Set) InsertBinds() int {
	return len(s.description.Writable())
}

// UpdateBinds returns the number of arguments Update expects
func (s *Set) UpdateBinds() int {
	return len(s.description.Writable()) + 1
}

// Compile compiles the statement set for d. The table is created in the given
// database schema, or unqualified if schema is empty.
//
// An entity without fields or without a primary key is a validation error.
func Compile(d *model.Description, schema string) (*Set, error) {
	if d == nil || len(d.Fields) == 0 {
		return nil, failure.Validation("cannot compile an entity without fields")
	}
	pk, ok := d.PrimaryKey()
	if !ok {
		return nil, failure.Validation("%s: entity has no primary key", d.Table)
	}

	s := &Set{
		description: d,
		table:       qualifiedTable(schema, d.Table),
		primaryKey:  pk,
		orderable:   map[string]bool{},
	}

	var columnNames []string
	for _, f := range d.Fields {
		if f.Sensitive {
			continue
		}
		s.Columns = append(s.Columns, f)
		s.orderable[f.Name] = true
		columnNames = append(columnNames, quote(f.Name))
	}
	s.selectList = strings.Join(columnNames, ", ")

	s.compileDDL(schema)
	s.compileInsert()
	s.compileUpdate()
	s.Delete = fmt.Sprintf("DELETE FROM %s WHERE %s = $1;", s.table, quote(pk.Name))
	s.Select = fmt.Sprintf("SELECT %s FROM %s WHERE %s = $1;", s.selectList, s.table, quote(pk.Name))
	return s, nil
}

func (s *Set) compileDDL(schema string) {
	d := s.description
	var createColumns []string
	for _, f := range d.Fields {
		var column string
		switch {
		case f.Kind == model.KindPrimaryKey && d.IDType == model.IDTypeSerial:
			column = quote(f.Name) + " BIGSERIAL PRIMARY KEY"
		case f.Kind == model.KindPrimaryKey:
			column = quote(f.Name) + " uuid NOT NULL DEFAULT uuid_generate_v4() PRIMARY KEY"
		case f.IsTimestamp():
			column = quote(f.Name) + " timestamp NOT NULL DEFAULT now()"
		default:
			column = quote(f.Name) + " " + columnType(f.Storage)
		}
		createColumns = append(createColumns, column)
	}
	s.DDL = append(s.DDL, fmt.Sprintf("CREATE table IF NOT EXISTS %s (%s);", s.table, strings.Join(createColumns, ", ")))

	if d.Relation != nil {
		index := quote(d.Table + "_" + d.Relation.Field + "_idx")
		s.DDL = append(s.DDL, fmt.Sprintf("CREATE index IF NOT EXISTS %s ON %s(%s);", index, s.table, quote(d.Relation.Field)))
	}
}

func (s *Set) compileInsert() {
	writable := s.description.Writable()
	if len(writable) == 0 {
		s.Insert = fmt.Sprintf("INSERT INTO %s DEFAULT VALUES RETURNING %s;", s.table, quote(s.primaryKey.Name))
		return
	}
	var columns []string
	for _, f := range writable {
		columns = append(columns, quote(f.Name))
	}
	s.Insert = fmt.Sprintf("INSERT INTO %s (%s) VALUES(%s) RETURNING %s;",
		s.table, strings.Join(columns, ", "), parameterString(1, len(columns)), quote(s.primaryKey.Name))
}

func (s *Set) compileUpdate() {
	var assignments []string
	i := 1
	for _, f := range s.description.Writable() {
		assignments = append(assignments, fmt.Sprintf("%s = $%d", quote(f.Name), i))
		i++
	}
	if s.description.HasUpdatedTimestamp() {
		assignments = append(assignments, quote(model.UpdatedAt)+" = now()")
	}
	if len(assignments) == 0 {
		// nothing to write, still report whether the row exists
		assignments = append(assignments, fmt.Sprintf("%s = %s", quote(s.primaryKey.Name), quote(s.primaryKey.Name)))
	}
	s.Update = fmt.Sprintf("UPDATE %s SET %s WHERE %s = $%d;",
		s.table, strings.Join(assignments, ", "), quote(s.primaryKey.Name), i)
}

func columnType(t model.StorageType) string {
	switch t {
	case model.StorageInteger:
		return "bigint"
	case model.StorageReal:
		return "double precision"
	default:
		return "text"
	}
}

func quote(identifier string) string {
	return `"` + identifier + `"`
}

func qualifiedTable(schema, table string) string {
	if schema == "" {
		return quote(table)
	}
	return schema + "." + quote(table)
}

// parameterString returns $first,...,$first+n-1
func parameterString(first, n int) string {
	result := ""
	for i := 0; i < n; i++ {
		if i > 0 {
			result += ","
		}
		result += "$" + strconv.Itoa(first+i)
	}
	return result
}
