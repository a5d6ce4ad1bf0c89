package api

import (
	"errors"
	"net/http"

	"github.com/wb-go/wbf/ginext"
	"github.com/wb-go/wbf/zlog"

	"ticketflow/internal/dto"
	"ticketflow/internal/model"
)

// statusFor maps a business error code to its HTTP status.
func statusFor(code string) int {
	switch code {
	case model.CodeAlreadyRegistered, model.CodeConflictingState:
		return http.StatusConflict
	case model.CodeEventNotFound, model.CodeCategoryNotFound, model.CodeRegistrationNotFound, model.CodePhotoOrderNotFound:
		return http.StatusNotFound
	case model.CodeUnauthorized:
		return http.StatusUnauthorized
	}
	return http.StatusBadRequest
}

func handleError(c *ginext.Context, err error) {
	var re *model.RegistrationError
	if errors.As(err, &re) {
		dto.ErrorWithStatus(c, statusFor(re.Code), re.Code, re.Message)
		return
	}
	zlog.Logger.Error().Err(err).Str("path", c.FullPath()).Msg("request failed")
	dto.InternalServerError(c)
}
