package types

type MintRequest struct {
	ContentPointer string `json:"content_pointer"`
}

type MintResponse struct {
	TokenID TokenID `json:"token_id"`
}

type GrantAccessRequest struct {
	Grantee Identity `json:"grantee" validate:"required,max=128"`
}

type RecordResponse struct {
	RecordID       RecordID   `json:"record_id"`
	Owner          Identity   `json:"owner"`
	ContentPointer string     `json:"content_pointer"`
	CreatedAt      string     `json:"created_at"`
	Verified       bool       `json:"verified"`
	AccessList     []Identity `json:"access_list"`
}

type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}
