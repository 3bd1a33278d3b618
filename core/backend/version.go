// Copyright 2021 Dalarub & Ettrich GmbH - All Rights Reserved
// Unauthorized copying of this file, via any medium is strictly prohibited
// Proprietary and confidential
// info@dalarub.com
//

package backend

import (
	"net/http"

	"github.com/goccy/go-json"

	"github.com/relabs-tech/gourd/core/access"
	"github.com/relabs-tech/gourd/core/logger"
)

var (
	// Version is the version of the curent build
	Version = "unset"
)

func (b *Backend) handleVersion() {
	logger.Default().Debugln("version")
	logger.Default().Debugln("  handle version route: /version GET")
	b.router.HandleFunc("/version", func(w http.ResponseWriter, r *http.Request) {
		identity := access.IdentityFromContext(r.Context())
		if identity == nil {
			http.Error(w, "not authenticated", http.StatusUnauthorized)
			return
		}
		if !identity.HasRole(access.AdminRole) {
			http.Error(w, "not authorized", http.StatusForbidden)
			return
		}
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		data, _ := json.Marshal(map[string]string{"version": Version})
		w.Write(data)
	}).Methods(http.MethodOptions, http.MethodGet)
}
