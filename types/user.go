package types

// User represents an account as returned by the login procedure.
type User struct {
	// ID is the unique identifier of the user.
	ID int64 `json:"id"`

	// Username is the unique login name chosen by the user.
	Username string `json:"username"`

	// Email is the user's email address.
	Email string `json:"email"`

	// Name is the user's display or full name.
	Name string `json:"name"`

	// Image is the stored profile image name, if any.
	Image string `json:"image,omitempty"`

	// Born is the birth date in YYYY-MM-DD form.
	Born string `json:"born,omitempty"`

	// PasswordHash stores the hashed representation of the user's password.
	// This field is never exposed in API responses.
	PasswordHash string `json:"-"`

	// Extra holds the remaining profile columns. It never carries the
	// password column.
	Extra map[string]any `json:"-"`
}

func (u User) MarshalJSON() ([]byte, error) {
	type plain User
	return marshalWithExtra(plain(u), u.Extra)
}

// NewUser is the validated registration payload.
type NewUser struct {
	Username     string
	Email        string
	Name         string
	PasswordHash string
	// Born is already converted to YYYY-MM-DD.
	Born  string
	Image *string
}

// OTPRecord is a pending one-time code as reported by the database.
type OTPRecord struct {
	Hash    string
	Expired bool
}

// RecoveredUser is returned when a recovery code is consumed.
type RecoveredUser struct {
	ID       int64
	Username string
}
