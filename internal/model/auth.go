package model

type RegisterRequest struct {
	Email      string `json:"email"`
	Password   string `json:"password"`
	FirstName  string `json:"firstName"`
	LastName   string `json:"lastName"`
	Phone      string `json:"phone"`
	School     string `json:"school"`
	GradeLevel string `json:"gradeLevel"`
	BirthDate  string `json:"birthDate"`
}

type RegisterResponse struct {
	ID    string `json:"id"`
	Email string `json:"email"`
}

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type RefreshRequest struct {
	RefreshToken string `json:"refreshToken"`
}

type TokenResponse struct {
	AccessToken  string   `json:"accessToken"`
	RefreshToken string   `json:"refreshToken"`
	ExpiresAt    int64    `json:"expiresAt"`
	User         *UserDTO `json:"user,omitempty"`
}

type UserDTO struct {
	ID          string   `json:"id"`
	Email       string   `json:"email"`
	Roles       []string `json:"roles"`
	Status      string   `json:"status"`
	FirstName   string   `json:"firstName,omitempty"`
	LastName    string   `json:"lastName,omitempty"`
	Phone       string   `json:"phone,omitempty"`
	School      string   `json:"school,omitempty"`
	GradeLevel  string   `json:"gradeLevel,omitempty"`
	BirthDate   string   `json:"birthDate,omitempty"`
	LastLoginAt int64    `json:"lastLoginAt,omitempty"`
}

type MeResponse struct {
	UserID string   `json:"userId"`
	Email  string   `json:"email"`
	Roles  []string `json:"roles"`
}

func NewUserDTO(a *Account) *UserDTO {
	roles := make([]string, 0, len(a.Roles))
	for _, r := range a.Roles {
		roles = append(roles, string(r))
	}
	dto := &UserDTO{
		ID:         a.ID.String(),
		Email:      a.Email,
		Roles:      roles,
		Status:     string(a.Status),
		FirstName:  a.Profile.FirstName,
		LastName:   a.Profile.LastName,
		Phone:      a.Profile.Phone,
		School:     a.Profile.School,
		GradeLevel: a.Profile.GradeLevel,
		BirthDate:  a.Profile.BirthDate,
	}
	if a.LastLoginAt != nil {
		dto.LastLoginAt = a.LastLoginAt.Unix()
	}
	return dto
}
