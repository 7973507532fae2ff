package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/terabiome/testbed/internal/errdefs"
	"github.com/terabiome/testbed/pkg/placement"
)

// GenericResponse is a standard API response structure
type GenericResponse struct {
	Body    any    `json:"body,omitempty"`
	Message string `json:"message"`
	Error   string `json:"error,omitempty"`
}

// maxRequestBodyBytes bounds every decoded request body.
const maxRequestBodyBytes = 1 << 20

// parseBody decodes the JSON request body into target and answers 400 on failure.
func parseBody(writer http.ResponseWriter, request *http.Request, target any) error {
	request.Body = http.MaxBytesReader(writer, request.Body, maxRequestBodyBytes)
	decoder := json.NewDecoder(request.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(target); err != nil {
		writeResult(writer, http.StatusBadRequest, GenericResponse{
			Message: "invalid request body",
			Error:   err.Error(),
		})
		return err
	}
	return nil
}

// statusFor maps caller mistakes to 400 and everything else to 500.
func statusFor(err error) int {
	switch {
	case errors.Is(err, errdefs.ErrConfiguration),
		errors.Is(err, errdefs.ErrTopology),
		errors.Is(err, errdefs.ErrMissingInput),
		errors.Is(err, placement.ErrUnsafeName):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// writeResult writes a JSON response with the given status code
func writeResult(writer http.ResponseWriter, statusCode int, response GenericResponse) {
	writer.Header().Set("Content-Type", "application/json")
	writer.WriteHeader(statusCode)
	json.NewEncoder(writer).Encode(response)
}
