package admin

import "time"

// Admin is a back-office account. UID links the record to the identity
// provider subject and is filled on first sign-in.
type Admin struct {
	ID         int64     `json:"id"`
	UID        *string   `json:"uid"`
	Username   string    `json:"username"`
	Email      string    `json:"email"`
	Name       string    `json:"name"`
	SuperAdmin bool      `json:"superAdmin"`
	CreatedAt  time.Time `json:"createdAt"`
}

func (a *Admin) Role() string {
	if a.SuperAdmin {
		return "Super Admin"
	}
	return "Admin"
}

type CreateInput struct {
	Email    string `json:"email"`
	Name     string `json:"name"`
	Username string `json:"username"`
}
