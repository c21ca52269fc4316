package models

// User represents a till operator account. The email is the natural key
// shared across devices.
type User struct {
	ID           int64  `db:"id" json:"id"`
	Email        string `db:"email" json:"email"`
	Name         string `db:"nom" json:"nom"`
	Role         string `db:"role" json:"role"`
	PasswordHash string `db:"mot_de_passe" json:"mot_de_passe"`
	UpdatedAt    string `db:"updated_at" json:"updated_at"`
}

// TableName returns the table name for User.
func (User) TableName() string {
	return "utilisateurs"
}
