package api

import "time"

const ServiceName = "tubeaccounts.AccountService"

// Method names as they appear in grpc.UnaryServerInfo.FullMethod.
const (
	MethodRegister = "/" + ServiceName + "/Register"
	MethodLogin    = "/" + ServiceName + "/Login"
	MethodLogout   = "/" + ServiceName + "/Logout"
	MethodRefresh  = "/" + ServiceName + "/Refresh"
	MethodMe       = "/" + ServiceName + "/Me"
	MethodPing     = "/" + ServiceName + "/Ping"
)

// Image is an uploaded file. Data is base64 in JSON.
type Image struct {
	Filename string `json:"filename,omitempty"`
	Data     []byte `json:"data"`
}

type RegisterRequest struct {
	FullName   string `json:"fullName"`
	Username   string `json:"username"`
	Email      string `json:"email"`
	Password   string `json:"password"`
	Avatar     *Image `json:"avatar,omitempty"`
	CoverImage *Image `json:"coverImage,omitempty"`
}

type RegisterResponse struct {
	User *User `json:"user"`
}

type LoginRequest struct {
	Username string `json:"username,omitempty"`
	Email    string `json:"email,omitempty"`
	Password string `json:"password"`
}

type TokenPair struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
}

type LoginResponse struct {
	User   *User     `json:"user"`
	Tokens TokenPair `json:"tokens"`
}

type LogoutRequest struct{}

type LogoutResponse struct{}

type RefreshRequest struct {
	RefreshToken string `json:"refreshToken"`
}

type RefreshResponse struct {
	Tokens TokenPair `json:"tokens"`
}

type MeRequest struct{}

type MeResponse struct {
	User *User `json:"user"`
}

type PingRequest struct{}

type PingResponse struct {
	Status string `json:"status"`
}

// User is the public view of an account. It never carries the password
// hash or refresh token.
type User struct {
	ID            string    `json:"id"`
	Username      string    `json:"username"`
	Email         string    `json:"email"`
	FullName      string    `json:"fullName"`
	AvatarURL     string    `json:"avatar"`
	CoverImageURL string    `json:"coverImage,omitempty"`
	CreatedAt     time.Time `json:"createdAt"`
	UpdatedAt     time.Time `json:"updatedAt"`
}
