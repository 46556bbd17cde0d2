package models

import "github.com/dmitrijs2005/kinveysync/internal/common"

// User is an authenticated backend user.
type User struct {
	ID        string `json:"_id"`
	Username  string `json:"username"`
	AuthToken string `json:"authtoken"`
}

// UserFromEntity extracts the user fields from a login or signup response:
// the token lives in _kmd.authtoken.
func UserFromEntity(e Entity) *User {
	u := &User{ID: e.ID()}
	if s, ok := e[common.FieldUsername].(string); ok {
		u.Username = s
	}
	if kmd, ok := e[common.FieldMetadata].(map[string]any); ok {
		if s, ok := kmd[common.FieldAuthToken].(string); ok {
			u.AuthToken = s
		}
	}
	return u
}
