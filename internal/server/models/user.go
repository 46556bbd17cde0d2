package models

import (
	"time"

	"github.com/dmitrijs2005/kinveysync/internal/common"
)

// User is an app user. Usernames are unique per app key.
type User struct {
	ID           string
	AppKey       string
	UserName     string
	PasswordHash string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Entity renders u the way /user answers: the access token travels in
// _kmd.authtoken and the password hash is never included.
func (u *User) Entity(authToken string) Document {
	kmd := map[string]any{
		common.FieldCreated:  u.CreatedAt.UTC().Format(time.RFC3339Nano),
		common.FieldModified: u.UpdatedAt.UTC().Format(time.RFC3339Nano),
	}
	if authToken != "" {
		kmd[common.FieldAuthToken] = authToken
	}
	return Document{
		common.FieldID:       u.ID,
		common.FieldUsername: u.UserName,
		common.FieldMetadata: kmd,
	}
}
