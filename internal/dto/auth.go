package dto

type RegisterRequest struct {
	Name     string `json:"name" binding:"required,min=2,max=50"`
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required,strongpassword"`
}

type LoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

type AuthResponse struct {
	Message string        `json:"message"`
	User    *UserResponse `json:"user"`
}

type TokenInfoResponse struct {
	HasAccessToken  bool          `json:"has_access_token"`
	HasRefreshToken bool          `json:"has_refresh_token"`
	ActiveTokens    int           `json:"active_tokens"`
	User            *UserResponse `json:"user"`
}
