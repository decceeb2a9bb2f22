package api

// LoginRequest exchanges credentials for an identity token
type LoginRequest struct {
	Username string `json:"username" validate:"required,max=64"`
	Password string `json:"password" validate:"required,max=128"`
}

// CreateServerRequest asks for a new server of the given class
type CreateServerRequest struct {
	ServerClass string `json:"server_class" validate:"required,oneof=ephemeral persistent"`
}

// CreateUserRequest provisions an account. Admin key only.
type CreateUserRequest struct {
	Username string `json:"username" validate:"required,min=3,max=64"`
	Password string `json:"password" validate:"required,min=8,max=128"`
	Points   int64  `json:"points" validate:"gte=0"`
	Role     string `json:"role,omitempty" validate:"omitempty,oneof=user admin"`
}
