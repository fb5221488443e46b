package http

import "bkisolation/pkg/bookie"

type Status string

const (
	// StatusOK is used for health-check responses.
	StatusOK Status = "OK"

	// StatusSuccess indicates an operation completed successfully.
	StatusSuccess Status = "success"

	// StatusError indicates an operation failed.
	StatusError Status = "error"
)

// Response represents the standard API response format.
type Response struct {
	Status  Status   `json:"status,omitempty"`
	Enabled *bool    `json:"enabled,omitempty"`
	Groups  []string `json:"groups,omitempty"`
	Bookies []string `json:"bookies,omitempty"`
	Bookie  string   `json:"bookie,omitempty"`
	Error   string   `json:"error,omitempty"`
}

func NewOKResponse() Response {
	return Response{Status: StatusOK}
}

func NewGroupsResponse(enabled bool, groups []string) Response {
	return Response{Status: StatusSuccess, Enabled: &enabled, Groups: groups}
}

func NewBookiesResponse(addrs []bookie.Address) Response {
	out := make([]string, 0, len(addrs))
	for _, a := range addrs {
		out = append(out, a.String())
	}
	return Response{Status: StatusSuccess, Bookies: out}
}

func NewBookieResponse(addr bookie.Address) Response {
	return Response{Status: StatusSuccess, Bookie: addr.String()}
}

func NewErrorResponse(err string) Response {
	return Response{Status: StatusError, Error: err}
}
