package api

// APIResponse is the envelope every endpoint returns.
type APIResponse struct {
	Data  interface{}    `json:"data,omitempty"`
	Meta  map[string]any `json:"meta,omitempty"`
	Error *APIError      `json:"error,omitempty"`
}

// APIError is the error half of the envelope. Kind is one of the stable
// labels from checkin.ErrorKind.
type APIError struct {
	Code    int    `json:"code"`
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

func Success(data interface{}, meta map[string]any) APIResponse {
	return APIResponse{Data: data, Meta: meta}
}

func NewError(status int, kind, msg string) APIResponse {
	return APIResponse{Error: &APIError{Code: status, Kind: kind, Message: msg}}
}
