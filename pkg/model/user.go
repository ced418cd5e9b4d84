package model

type Role string

const (
	RoleMember     Role = "member"
	RoleInstructor Role = "instructor"
	RoleAdmin      Role = "admin"
)

type User struct {
	ID   string `json:"id,omitempty" bson:"_id,omitempty"`
	Name string `json:"name" bson:"name"`
	Role Role   `json:"role" bson:"role"`
}

func (u *User) IsInstructor() bool {
	return u.Role == RoleInstructor
}

type Category struct {
	ID   string `json:"id,omitempty" bson:"_id,omitempty"`
	Name string `json:"name" bson:"name"`
}
