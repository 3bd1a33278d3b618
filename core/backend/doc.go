/*
Package backend implements the generated REST backend

A backend manages a Postgres database and provides an auto-generated RESTful API for a
set of entities. Every entity is described by a model.Description, either parsed from a
JSON configuration or derived from a Go struct with model.FromStruct.

Configuration

Example:
  {
	"entities": [
	  {
		"table": "post",
		"require_role": {"update": "user", "delete": "admin"},
		"fields": [
		  {"name": "id"},
		  {"name": "title", "type": "text"},
		  {"name": "created_at"},
		  {"name": "updated_at"}
		]
	  },
	  {
		"table": "comment",
		"fields": [
		  {"name": "id"},
		  {"name": "body", "type": "text"},
		  {"name": "post_id", "type": "text", "relation": {"foreign_key": "post_id", "references": "post.id"}}
		]
	  }
	]
  }

This configuration creates the following REST routes:
	GET /post
	POST /post
	GET /post/{id}
	PUT /post/{id}
	DELETE /post/{id}
	GET /comment
	POST /comment
	GET /comment/{id}
	PUT /comment/{id}
	DELETE /comment/{id}
	GET /post/{parent_id}/comment

With UpdateSchema set, tables are created at registration if they do not exist yet. The primary key is a
generated uuid unless the entity declares "id_type": "serial". The fields created_at and
updated_at are maintained by the database and cannot be written by clients.

List requests accept the query parameters page, limit, order_by, order_dir and search.
Unknown values for order_by fall back to the primary key, unparseable numbers fall back
to the defaults page=1 and limit=10. The response carries the headers Pagination-Limit
and Pagination-Current-Page. The search term is matched with LIKE against every plain
field which is not marked sensitive. Sensitive fields are write-only, they are never
returned.

Authorization

Every entity can require a minimal role for read (and list), update (and create) and
delete. A caller with the role "admin" satisfies every requirement. Callers authenticate
with a bearer token obtained from the authentication routes:

	POST /auth/register {"email": "...", "password": "..."}
	POST /auth/login    {"email": "...", "password": "..."}  -> {"token": "..."}
	GET  /auth/me                                            -> {"id": "...", "roles": [...]}

Registered users get the role "user". If the builder carries admin credentials, an admin
user with the roles "admin" and "user" is created at startup unless the email exists.

Entity routes, nested routes and /auth/me require a bearer token, a request without
one is answered with 401 before any data access. A request whose token lacks the
required role is answered with 403. Invalid or expired tokens are rejected with 401
before any handler runs. Only /auth/register, /auth/login and CORS preflight requests
go without a token; /version answers 401 without one.

Notifications

If the builder carries a core.Notifier, every successful create, update and delete is
reported to it. The notify package provides a Kafka implementation.
*/
package backend
