package types

// User is the account payload returned by the auth endpoints
type User struct {
	ID              string `json:"id,omitempty"`
	Name            string `json:"name"`
	Email           string `json:"email"`
	Phone           string `json:"phone,omitempty"`
	Gender          string `json:"gender,omitempty"`
	DateOfBirth     string `json:"dateOfBirth,omitempty"`
	UserType        string `json:"userType,omitempty"`
	RollNo          string `json:"rollNo,omitempty"`
	Section         string `json:"section,omitempty"`
	Hostel          string `json:"hostel,omitempty"`
	Block           string `json:"block,omitempty"`
	RoomNo          string `json:"roomNo,omitempty"`
	ProfilePhotoURL string `json:"profilePhotoUrl,omitempty"`
}

// RegisterRequest is the registration form submission. ProfilePic holds the
// cropped avatar data URI, or is empty when no picture was chosen.
type RegisterRequest struct {
	Name            string `json:"name"`
	Email           string `json:"email"`
	Phone           string `json:"phone"`
	DateOfBirth     string `json:"dateOfBirth"`
	Gender          string `json:"gender"`
	UserType        string `json:"userType"`
	RollNo          string `json:"rollNo,omitempty"`
	Section         string `json:"section,omitempty"`
	Hostel          string `json:"hostel,omitempty"`
	Block           string `json:"block,omitempty"`
	RoomNo          string `json:"roomNo,omitempty"`
	Password        string `json:"password"`
	ConfirmPassword string `json:"confirmPassword"`
	ProfilePic      string `json:"profilePic,omitempty"`
}

// LoginRequest carries sign-in credentials
type LoginRequest struct {
	Email      string `json:"email"`
	Password   string `json:"password"`
	RememberMe bool   `json:"rememberMe,omitempty"`
}

// ProfileUpdate holds the editable profile fields. A nil ProfilePic leaves
// the photo unchanged; an empty one removes it.
type ProfileUpdate struct {
	Phone      string  `json:"phone"`
	Hostel     string  `json:"hostel"`
	Block      string  `json:"block"`
	RoomNo     string  `json:"roomNo"`
	ProfilePic *string `json:"profilePhotoUrl,omitempty"`
}

// AuthResponse wraps the user returned after register and login
type AuthResponse struct {
	User    User   `json:"user"`
	Message string `json:"message,omitempty"`
}
