// Copyright 2021 Dalarub & Ettrich GmbH - All Rights Reserved
// Unauthorized copying of this file, via any medium is strictly prohibited
// Proprietary and confidential
// info@dalarub.com
//

package access

import (
	"golang.org/x/crypto/bcrypt"

	"github.com/relabs-tech/gourd/core/failure"
)

// PasswordCost is the bcrypt cost for stored credentials
const PasswordCost = 12

// HashPassword returns the one-way adaptive hash of password
func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), PasswordCost)
	if err != nil {
		return "", failure.Wrap(err, failure.TypeInternal, "cannot hash password")
	}
	return string(hash), nil
}

// CheckPassword returns true if password matches hash
func CheckPassword(hash, password string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}
