package dto

type CreateLinkRequest struct {
	URL    string `json:"url" validate:"required,max=2048"`
	UserID int64  `json:"user_id" validate:"required,gt=0"`
}
