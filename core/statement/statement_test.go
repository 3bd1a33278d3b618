// Copyright 2021 Dalarub & Ettrich GmbH - All Rights Reserved
// Unauthorized copying of this file, via any medium is strictly prohibited
// Proprietary and confidential
// info@dalarub.com
//

package statement

import (
	"math"
	"net/url"
	"strconv"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/relabs-tech/gourd/core/failure"
	"github.com/relabs-tech/gourd/core/model"
)

func comment(t *testing.T) *model.Description {
	d, err := model.Classify(model.Entity{
		Table:  "comment",
		IDType: model.IDTypeSerial,
		Fields: []model.Declaration{
			{Name: "id"},
			{Name: "body", Type: "text"},
			{Name: "score", Type: "integer"},
			{Name: "secret", Type: "text", Sensitive: true},
			{Name: "post_id", Type: "text", Relation: &model.RelationAnnotation{ForeignKey: "post_id", References: "post.id"}},
			{Name: "created_at"},
			{Name: "updated_at"},
		},
	})
	require.NoError(t, err)
	return d
}

func placeholders(query string) int {
	return strings.Count(query, "$")
}

func TestCompile(t *testing.T) {
	s, err := Compile(comment(t), "blog")
	require.NoError(t, err)

	require.Len(t, s.DDL, 2)
	assert.Equal(t, `CREATE table IF NOT EXISTS blog."comment" (`+
		`"id" BIGSERIAL PRIMARY KEY, "body" text, "score" bigint, "secret" text, "post_id" text, `+
		`"created_at" timestamp NOT NULL DEFAULT now(), "updated_at" timestamp NOT NULL DEFAULT now());`, s.DDL[0])
	assert.Equal(t, `CREATE index IF NOT EXISTS "comment_post_id_idx" ON blog."comment"("post_id");`, s.DDL[1])

	assert.Equal(t, `INSERT INTO blog."comment" ("body", "score", "secret", "post_id") VALUES($1,$2,$3,$4) RETURNING "id";`, s.Insert)
	assert.Equal(t, `UPDATE blog."comment" SET "body" = $1, "score" = $2, "secret" = $3, "post_id" = $4, "updated_at" = now() WHERE "id" = $5;`, s.Update)
	assert.Equal(t, `DELETE FROM blog."comment" WHERE "id" = $1;`, s.Delete)
	assert.Equal(t, `SELECT "id", "body", "score", "post_id", "created_at", "updated_at" FROM blog."comment" WHERE "id" = $1;`, s.Select)

	assert.Equal(t, 4, s.InsertBinds())
	assert.Equal(t, 5, s.UpdateBinds())
	assert.Equal(t, s.InsertBinds(), placeholders(s.Insert))
	assert.Equal(t, s.UpdateBinds(), placeholders(s.Update))
	assert.Len(t, s.Columns, 6)
}

func TestCompileUUID(t *testing.T) {
	d, err := model.Classify(model.Entity{
		Table:  "post",
		Fields: []model.Declaration{{Name: "id"}, {Name: "rating", Type: "f64"}},
	})
	require.NoError(t, err)
	s, err := Compile(d, "")
	require.NoError(t, err)
	assert.Equal(t, `CREATE table IF NOT EXISTS "post" ("id" uuid NOT NULL DEFAULT uuid_generate_v4() PRIMARY KEY, "rating" double precision);`, s.DDL[0])
	assert.Equal(t, `UPDATE "post" SET "rating" = $1 WHERE "id" = $2;`, s.Update)
}

func TestCompileOnlyServerFields(t *testing.T) {
	d, err := model.Classify(model.Entity{Table: "ping", Fields: []model.Declaration{{Name: "id"}, {Name: "created_at"}}})
	require.NoError(t, err)
	s, err := Compile(d, "")
	require.NoError(t, err)
	assert.Equal(t, `INSERT INTO "ping" DEFAULT VALUES RETURNING "id";`, s.Insert)
	assert.Equal(t, `UPDATE "ping" SET "id" = "id" WHERE "id" = $1;`, s.Update)
	assert.Equal(t, 0, s.InsertBinds())
	assert.Equal(t, 1, s.UpdateBinds())
}

func TestCompileErrors(t *testing.T) {
	_, err := Compile(&model.Description{Table: "empty"}, "")
	assert.True(t, failure.IsType(err, failure.TypeValidation))

	d, err := model.Classify(model.Entity{Table: "nokey", ID: "key", Fields: []model.Declaration{{Name: "name"}}})
	require.NoError(t, err)
	_, err = Compile(d, "")
	assert.True(t, failure.IsType(err, failure.TypeValidation))
}

func TestList(t *testing.T) {
	s, err := Compile(comment(t), "blog")
	require.NoError(t, err)

	query, args := s.List(ListParams{Page: 2, Limit: 10})
	assert.Equal(t, `SELECT "id", "body", "score", "post_id", "created_at", "updated_at" FROM blog."comment" ORDER BY "id" ASC LIMIT $1 OFFSET $2;`, query)
	assert.Equal(t, []interface{}{10, 10}, args)

	query, args = s.List(ListParams{Page: 1, Limit: 5, Search: "foo", OrderBy: "body", OrderDir: "DeSc"})
	assert.Equal(t, `SELECT "id", "body", "score", "post_id", "created_at", "updated_at" FROM blog."comment" `+
		`WHERE ("body" LIKE $1 OR CAST("score" AS TEXT) LIKE $2) ORDER BY "body" DESC LIMIT $3 OFFSET $4;`, query)
	assert.Equal(t, []interface{}{"%foo%", "%foo%", 5, 0}, args)
	assert.NotContains(t, query, "secret")
	assert.Equal(t, len(args), placeholders(query))
}

func TestListOrderByFallback(t *testing.T) {
	s, err := Compile(comment(t), "")
	require.NoError(t, err)
	for _, orderBy := range []string{"nonexistent_field", "secret", `id"; DROP TABLE comment; --`} {
		query, _ := s.List(ListParams{Page: 1, Limit: 10, OrderBy: orderBy, OrderDir: "sideways"})
		assert.Contains(t, query, `ORDER BY "id" ASC`, orderBy)
		assert.NotContains(t, query, "DROP")
	}
}

func TestListChildren(t *testing.T) {
	s, err := Compile(comment(t), "")
	require.NoError(t, err)

	query, args, err := s.ListChildren("42", ListParams{Page: 3, Limit: 2, Search: "x"})
	require.NoError(t, err)
	assert.Equal(t, `SELECT "id", "body", "score", "post_id", "created_at", "updated_at" FROM "comment" `+
		`WHERE "post_id" = $1 AND ("body" LIKE $2 OR CAST("score" AS TEXT) LIKE $3) ORDER BY "id" ASC LIMIT $4 OFFSET $5;`, query)
	assert.Equal(t, []interface{}{"42", "%x%", "%x%", 2, 4}, args)

	d, err := model.Classify(model.Entity{Table: "post", Fields: []model.Declaration{{Name: "id"}}})
	require.NoError(t, err)
	post, err := Compile(d, "")
	require.NoError(t, err)
	_, _, err = post.ListChildren("42", ListParams{})
	assert.Error(t, err)
}

func TestParseListParams(t *testing.T) {
	tests := []struct {
		query string
		want  ListParams
	}{
		{"", ListParams{Page: 1, Limit: 10}},
		{"page=2&limit=10", ListParams{Page: 2, Limit: 10}},
		{"page=0&limit=-5", ListParams{Page: 1, Limit: 1}},
		{"page=abc&limit=1.5", ListParams{Page: 1, Limit: 10}},
		{"limit=1000&order_by=title&order_dir=desc&search=a+b", ListParams{Page: 1, Limit: 1000, OrderBy: "title", OrderDir: "desc", Search: "a b"}},
	}
	for _, tt := range tests {
		q, err := url.ParseQuery(tt.query)
		require.NoError(t, err)
		assert.Equal(t, tt.want, ParseListParams(q), tt.query)
	}
	assert.Equal(t, 10, ListParams{Page: 2, Limit: 10}.Offset())
}

func TestListSearchWithoutSearchableFields(t *testing.T) {
	d, err := model.Classify(model.Entity{Table: "counter", Fields: []model.Declaration{
		{Name: "id"},
		{Name: "token", Type: "text", Sensitive: true},
	}})
	require.NoError(t, err)
	s, err := Compile(d, "x")
	require.NoError(t, err)

	query, args := s.List(ListParams{Page: 1, Limit: 10, Search: "foo"})
	assert.Equal(t, `SELECT "id" FROM x."counter" WHERE FALSE ORDER BY "id" ASC LIMIT $1 OFFSET $2;`, query)
	assert.Equal(t, []interface{}{10, 0}, args)

	query, args, err = s.ListChildren("1", ListParams{Search: "foo"})
	assert.Error(t, err)
	assert.Empty(t, query)
	assert.Nil(t, args)
}

func TestListHugePage(t *testing.T) {
	s, err := Compile(comment(t), "")
	require.NoError(t, err)

	for _, limit := range []string{"", "1", "7", strconv.Itoa(math.MaxInt)} {
		q := url.Values{}
		q.Set("page", strconv.Itoa(math.MaxInt))
		if limit != "" {
			q.Set("limit", limit)
		}
		p := ParseListParams(q)
		assert.GreaterOrEqual(t, p.Offset(), 0, limit)

		_, args := s.List(p)
		offset := args[len(args)-1].(int)
		assert.GreaterOrEqual(t, offset, 0, limit)
		assert.Equal(t, p.Offset(), offset, limit)
	}

	// direct values are saturated as well
	assert.GreaterOrEqual(t, ListParams{Page: math.MaxInt, Limit: 10}.Offset(), 0)
}

func TestListParamsZeroValueMeansDefaults(t *testing.T) {
	s, err := Compile(comment(t), "")
	require.NoError(t, err)
	_, args := s.List(ListParams{})
	assert.Equal(t, []interface{}{DefaultLimit, 0}, args)
	assert.Equal(t, 0, ListParams{}.Offset())

	// a query string limit below 1 is raised to 1, not to the default
	q, err := url.ParseQuery("limit=0")
	require.NoError(t, err)
	assert.Equal(t, 1, ParseListParams(q).Limit)
}
