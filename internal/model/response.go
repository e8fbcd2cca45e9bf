package model

type ErrorResponse struct {
	Error string `json:"error"`
}

type StatusResponse struct {
	Status string `json:"status"`
}

type PingResponse struct {
	Message string `json:"message"`
}

type RootResponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

type PagedUsersResponse struct {
	Items    []*UserDTO `json:"items"`
	Page     int        `json:"page"`
	PageSize int        `json:"pageSize"`
	Total    int64      `json:"total"`
}

type UpdateStatusRequest struct {
	Status string `json:"status"`
}

type UpdateRolesRequest struct {
	Roles []string `json:"roles"`
}
