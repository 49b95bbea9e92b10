package response

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/go-playground/validator/v10"
)

// Response is the JSON envelope of every non-media API reply. Relay
// endpoints only use it for errors; successful relays stream raw bytes.
type Response struct {
	Status  string            `json:"status"`
	Error   string            `json:"error,omitempty"`
	Fields  map[string]string `json:"fields,omitempty"`
	Data    interface{}       `json:"data,omitempty"`
	Message string            `json:"message,omitempty"`
}

const (
	StatusSuccess = "success"
	StatusError   = "error"
)

// WriteJSON writes data with status. Replies are never cached: they carry
// resolution results and relay URLs with cache-busting tokens.
func WriteJSON(w http.ResponseWriter, status int, data interface{}) error {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)

	return json.NewEncoder(w).Encode(data)
}

func GeneralError(err error) Response {
	return Response{
		Status: StatusError,
		Error:  err.Error(),
	}
}

// ValidationError reports each failed field by its namespace, e.g.
// "attachments[2].descriptor", so that batch callers can find the bad item.
func ValidationError(errs validator.ValidationErrors) Response {
	fields := make(map[string]string, len(errs))
	var b strings.Builder
	for i, fe := range errs {
		name := fieldPath(fe)
		rule := fe.Tag()
		if fe.Param() != "" {
			rule = fmt.Sprintf("%s=%s", rule, fe.Param())
		}
		fields[name] = rule
		if i > 0 {
			b.WriteString("; ")
		}
		b.WriteString(name + ": " + rule)
	}

	return Response{
		Status: StatusError,
		Error:  b.String(),
		Fields: fields,
	}
}

// fieldPath drops the root struct name and lowercases the first letter of
// each segment to match the JSON field names.
func fieldPath(fe validator.FieldError) string {
	ns := fe.Namespace()
	if _, rest, ok := strings.Cut(ns, "."); ok {
		ns = rest
	}
	parts := strings.Split(ns, ".")
	for i, p := range parts {
		if p != "" {
			parts[i] = strings.ToLower(p[:1]) + p[1:]
		}
	}
	return strings.Join(parts, ".")
}

func RequestOK(message string, data interface{}) Response {
	return Response{
		Status:  StatusSuccess,
		Message: message,
		Data:    data,
	}
}
