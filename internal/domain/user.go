package domain

import (
	"encoding/json"
	"io"
	"time"
)

// User is the stored account record. The same attribute names are used by
// every credential store so partial-update maps are portable between them.
type User struct {
	UserID       string    `json:"_id" dynamodbav:"user_id" bson:"_id"`
	FullName     string    `json:"fullName" dynamodbav:"full_name" bson:"full_name"`
	Email        string    `json:"email" dynamodbav:"email" bson:"email"`
	Username     string    `json:"username" dynamodbav:"username" bson:"username"`
	PasswordHash string    `json:"-" dynamodbav:"password_hash" bson:"password_hash"`
	Bio          string    `json:"bio" dynamodbav:"bio" bson:"bio"`
	Location     string    `json:"location" dynamodbav:"location" bson:"location"`
	Website      string    `json:"website" dynamodbav:"website" bson:"website"`
	Avatar       string    `json:"avatar" dynamodbav:"avatar" bson:"avatar"`
	CoverImage   string    `json:"coverImage" dynamodbav:"cover_image" bson:"cover_image"`
	CreatedAt    time.Time `json:"createdAt" dynamodbav:"created_at" bson:"created_at"`
	UpdatedAt    time.Time `json:"updatedAt" dynamodbav:"updated_at" bson:"updated_at"`
}

type SignupRequest struct {
	FullName string `json:"fullName" validate:"required"`
	Email    string `json:"email" validate:"required,email"`
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required,max=72"`
	OTP      string `json:"otp" validate:"required"`
}

// LoginRequest keeps the email raw so a non-string value can be told apart
// from a missing one.
type LoginRequest struct {
	Email    json.RawMessage `json:"email"`
	Password string          `json:"password"`
}

// UpdateProfileRequest only carries the editable text fields; nil means "not present".
type UpdateProfileRequest struct {
	FullName *string `json:"fullName"`
	Bio      *string `json:"bio"`
	Location *string `json:"location"`
	Website  *string `json:"website" validate:"omitempty,max=2048"`
}

type ChangePasswordRequest struct {
	OldPassword string `json:"oldPassword" validate:"required"`
	NewPassword string `json:"newPassword" validate:"required,max=72"`
}

type SendOTPRequest struct {
	Email string `json:"email" validate:"required,email"`
}

type VerifyOTPRequest struct {
	Email string `json:"email" validate:"required,email"`
	OTP   string `json:"otp" validate:"required"`
}

// Upload field names accepted on signup and profile update.
const (
	UploadAvatar     = "avatar"
	UploadCoverImage = "coverImage"
)

// Upload is an optional image attached to a signup or profile update.
type Upload struct {
	Field       string
	Filename    string
	ContentType string
	Reader      io.Reader
}
