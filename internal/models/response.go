package models

import "time"

// ErrorResponse is the envelope returned on failure.
type ErrorResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
}

// StatusResponse is a plain success/message envelope (delete, folder create, logout).
type StatusResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
	Error   string `json:"error,omitempty"`
}

// UploadResponse is the body of POST /upload.
type UploadResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
	Error   string `json:"error,omitempty"`
	Key     string `json:"key,omitempty"`
	URL     string `json:"url,omitempty"`
}

// BatchRequest is the body of POST /batch/delete.
type BatchRequest struct {
	Items []string `json:"items"`
}

// CreateFolderRequest is the body of POST /folders.
type CreateFolderRequest struct {
	FolderPath string `json:"folderPath"`
}

// BatchResult is the body of a batch operation response.
type BatchResult struct {
	Success     bool     `json:"success"`
	Message     string   `json:"message,omitempty"`
	Error       string   `json:"error,omitempty"`
	Processed   int      `json:"processed"`
	Failed      int      `json:"failed"`
	FailedItems []string `json:"failedItems,omitempty"`
}

// User is the account as reported by the auth endpoints.
type User struct {
	ID        int       `json:"id,omitempty"`
	UserID    string    `json:"user_id"`
	Username  string    `json:"username"`
	CreatedAt time.Time `json:"created_at,omitempty"`
	UpdatedAt time.Time `json:"updated_at,omitempty"`
}

// Credentials is the body of /auth/login and /auth/register.
type Credentials struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// LoginResponse is the body of POST /auth/login.
type LoginResponse struct {
	Success   bool       `json:"success"`
	Message   string     `json:"message,omitempty"`
	Error     string     `json:"error,omitempty"`
	Token     string     `json:"token,omitempty"`
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
	User      *User      `json:"user,omitempty"`
}

// ProfileResponse is the body of GET /auth/profile.
type ProfileResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
	User    *User  `json:"user,omitempty"`
}
