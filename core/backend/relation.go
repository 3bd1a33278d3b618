// Copyright 2021 Dalarub & Ettrich GmbH - All Rights Reserved
// Unauthorized copying of this file, via any medium is strictly prohibited
// Proprietary and confidential
// info@dalarub.com
//

package backend

import (
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"github.com/relabs-tech/gourd/core"
	"github.com/relabs-tech/gourd/core/logger"
	"github.com/relabs-tech/gourd/core/model"
)

// registerRelation adds the nested list route /{parent}/{parent_id}/{child}.
// Only one level of nesting exists, the parent's own relation is not followed.
func (c *collection) registerRelation() {
	d := c.description()
	route := "/" + d.Relation.ParentTable + "/{parent_id}/" + d.Table
	logger.Default().Debugln("  handle relation route:", route, "GET")

	field, _ := d.Field(d.Relation.Field)
	c.backend.router.HandleFunc(route, func(w http.ResponseWriter, r *http.Request) {
		logger.FromContext(r.Context()).Infoln("called route for", r.URL, r.Method)
		if !c.authorize(w, r, core.OperationList) {
			return
		}
		parentID := mux.Vars(r)["parent_id"]
		if field.Storage == model.StorageInteger {
			if _, err := strconv.ParseInt(parentID, 10, 64); err != nil {
				http.Error(w, "invalid parent id", http.StatusBadRequest)
				return
			}
		}
		c.list(w, r, &parentID)
	}).Methods(http.MethodOptions, http.MethodGet)
}
