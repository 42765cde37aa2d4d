package httpclient

import (
	"encoding/json"
	"fmt"
	"net/http"

	apperrors "github.com/utafrali/pizzashop/pkg/errors"
)

// downstreamError mirrors the error envelope written by pkg/httputil.
type downstreamError struct {
	Error *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// ResponseError translates a non-2xx payload from service into an error that
// keeps the downstream semantics where they are recognisable.
func ResponseError(p *Payload, service string) error {
	message := truncate(p.Body, 256)
	code := ""
	var env downstreamError
	if json.Unmarshal(p.Body, &env) == nil && env.Error != nil {
		code, message = env.Error.Code, env.Error.Message
	}
	qualified := fmt.Sprintf("%s: %s", service, message)

	switch {
	case p.StatusCode == http.StatusNotFound:
		return apperrors.NotFound(service+" resource", message)
	case p.StatusCode == http.StatusBadRequest:
		return apperrors.InvalidInput(qualified)
	case p.StatusCode == http.StatusConflict:
		return apperrors.Conflict(qualified)
	case p.StatusCode == http.StatusTooManyRequests:
		return apperrors.Unavailable(service, fmt.Errorf("rate limited: %s", message))
	default:
		if code == "" {
			code = http.StatusText(p.StatusCode)
		}
		return fmt.Errorf("%s returned status %d (%s): %s", service, p.StatusCode, code, message)
	}
}
