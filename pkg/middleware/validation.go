package middleware

import (
	"encoding/json"
	"net/http"
	"strings"

	"couponhub/pkg/logger"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"
)

const maxBodySize = 1 << 20 // 1 MB

// ErrorResponse стандартный формат для ошибок валидации
type ErrorResponse struct {
	Error   string       `json:"error"`
	Message string       `json:"message"`
	Fields  []FieldError `json:"fields,omitempty"`
}

type FieldError struct {
	Field string `json:"field"`
	Rule  string `json:"rule"`
	Param string `json:"param,omitempty"`
}

// ValidateRequest проверяет Content-Type и непустое тело для POST/PUT
// и ограничивает размер тела.
func ValidateRequest(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost || r.Method == http.MethodPut {
			contentType := r.Header.Get("Content-Type")
			if contentType != "" && !strings.Contains(contentType, "application/json") {
				writeValidation(w, ErrorResponse{Error: "VALIDATION_ERROR", Message: "invalid Content-Type, expected application/json"})
				return
			}

			if r.ContentLength == 0 {
				writeValidation(w, ErrorResponse{Error: "VALIDATION_ERROR", Message: "request body cannot be empty"})
				return
			}
		}

		r.Body = http.MaxBytesReader(w, r.Body, maxBodySize)

		next.ServeHTTP(w, r)
	})
}

// HandleValidationError превращает ошибку validator в ответ 400 со списком полей.
func HandleValidationError(w http.ResponseWriter, r *http.Request, err error) {
	logger.Ctx(r.Context()).Debug().Err(err).Msg("validation failed")

	resp := ErrorResponse{Error: "VALIDATION_ERROR", Message: "request validation failed"}

	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		for _, fe := range verrs {
			resp.Fields = append(resp.Fields, FieldError{Field: fe.Field(), Rule: fe.Tag(), Param: fe.Param()})
		}
	} else {
		resp.Message = err.Error()
	}

	writeValidation(w, resp)
}

func writeValidation(w http.ResponseWriter, resp ErrorResponse) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusBadRequest)
	json.NewEncoder(w).Encode(resp)
}
