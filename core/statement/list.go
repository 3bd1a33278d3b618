// Copyright 2021 Dalarub & Ettrich GmbH - All Rights Reserved
// Unauthorized copying of this file, via any medium is strictly prohibited
// Proprietary and confidential
// info@dalarub.com
//

package statement

import (
	"fmt"
	"math"
	"net/url"
	"strconv"
	"strings"

	"github.com/relabs-tech/gourd/core/failure"
	"github.com/relabs-tech/gourd/core/model"
)

// pagination defaults
const (
	DefaultPage  = 1
	DefaultLimit = 10
)

// ListParams are the parameters of a list query. A Page or Limit below 1,
// including the zero value, means the default.
type ListParams struct {
	Page     int
	Limit    int
	OrderBy  string
	OrderDir string
	Search   string
}

// Offset returns the number of rows to skip
func (p ListParams) Offset() int {
	p = normalize(p)
	return (p.Page - 1) * p.Limit
}

// ParseListParams reads page, limit, order_by, order_dir and search from a
// query string. It never fails: unparseable numbers fall back to the defaults,
// numbers below 1 are raised to 1 and a page too large for its offset is
// reduced to the last representable page.
func ParseListParams(query url.Values) ListParams {
	p := ListParams{
		Page:     positive(query.Get("page"), DefaultPage),
		Limit:    positive(query.Get("limit"), DefaultLimit),
		OrderBy:  query.Get("order_by"),
		OrderDir: query.Get("order_dir"),
		Search:   query.Get("search"),
	}
	return normalize(p)
}

func positive(s string, defaultValue int) int {
	if s == "" {
		return defaultValue
	}
	i, err := strconv.Atoi(s)
	if err != nil {
		return defaultValue
	}
	if i < 1 {
		return 1
	}
	return i
}

// List returns the list query and its arguments. Bind order is search patterns
// followed by limit and offset.
func (s *Set) List(p ListParams) (string, []interface{}) {
	return s.list(p, nil)
}

// ListChildren returns the list query restricted to rows whose relation field
// equals parentID. The parent id is bound first.
func (s *Set) ListChildren(parentID string, p ListParams) (string, []interface{}, error) {
	if s.description.Relation == nil {
		return "", nil, failure.Validation("%s has no relation", s.description.Table)
	}
	query, args := s.list(p, &parentID)
	return query, args, nil
}

func (s *Set) list(p ListParams, parentID *string) (string, []interface{}) {
	p = normalize(p)
	var conditions []string
	var args []interface{}

	if parentID != nil {
		args = append(args, *parentID)
		conditions = append(conditions, fmt.Sprintf("%s = $%d", quote(s.description.Relation.Field), len(args)))
	}

	if p.Search != "" {
		pattern := "%" + p.Search + "%"
		var clauses []string
		for _, f := range s.description.Searchable() {
			args = append(args, pattern)
			if f.Storage == model.StorageText {
				clauses = append(clauses, fmt.Sprintf("%s LIKE $%d", quote(f.Name), len(args)))
			} else {
				clauses = append(clauses, fmt.Sprintf("CAST(%s AS TEXT) LIKE $%d", quote(f.Name), len(args)))
			}
		}
		if len(clauses) > 0 {
			conditions = append(conditions, "("+strings.Join(clauses, " OR ")+")")
		} else {
			// nothing can match
			conditions = append(conditions, "FALSE")
		}
	}

	query := fmt.Sprintf("SELECT %s FROM %s", s.selectList, s.table)
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}

	orderBy := s.primaryKey.Name
	if s.orderable[p.OrderBy] {
		orderBy = p.OrderBy
	}
	orderDir := "ASC"
	if strings.EqualFold(p.OrderDir, "desc") {
		orderDir = "DESC"
	}
	args = append(args, p.Limit, p.Offset())
	query += fmt.Sprintf(" ORDER BY %s %s LIMIT $%d OFFSET $%d;", quote(orderBy), orderDir, len(args)-1, len(args))
	return query, args
}

func normalize(p ListParams) ListParams {
	if p.Page < 1 {
		p.Page = DefaultPage
	}
	if p.Limit < 1 {
		p.Limit = DefaultLimit
	}
	if p.Page-1 > math.MaxInt/p.Limit {
		p.Page = math.MaxInt/p.Limit + 1
	}
	return p
}
