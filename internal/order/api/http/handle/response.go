package handle

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	cartcore "orderhub/internal/cart/app/core"
	cartdomain "orderhub/internal/cart/domain"
	"orderhub/internal/order/app/core"
	"orderhub/internal/order/domain/kot"
	"orderhub/internal/order/domain/lifecycle"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
)

func jsonResponse(c *gin.Context, code int, data any) {
	c.JSON(code, data)
}

func jsonError(c *gin.Context, code int, err error) {
	c.AbortWithStatusJSON(code, gin.H{"error": err.Error(), "code": code})
}

// statusFor maps service errors to HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, core.ErrOrderNotFound), errors.Is(err, core.ErrOutletNotFound):
		return http.StatusNotFound
	case errors.Is(err, lifecycle.ErrActorNotAllowed):
		return http.StatusForbidden
	case errors.Is(err, lifecycle.ErrPaymentRequired):
		return http.StatusPaymentRequired
	case errors.Is(err, lifecycle.ErrInvalidTransition),
		errors.Is(err, lifecycle.ErrOrderClosed),
		errors.Is(err, core.ErrStoreConflict):
		return http.StatusConflict
	case errors.Is(err, lifecycle.ErrInvalidOrder),
		errors.Is(err, lifecycle.ErrDuplicateItem),
		errors.Is(err, cartdomain.ErrInvalidCart),
		errors.Is(err, cartdomain.ErrDuplicateLine):
		return http.StatusBadRequest
	case errors.Is(err, kot.ErrNothingToPrint):
		return http.StatusOK
	case errors.Is(err, core.ErrDBConn), errors.Is(err, cartcore.ErrCartStore):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func writeServiceError(c *gin.Context, err error) {
	code := statusFor(err)
	if code == http.StatusInternalServerError {
		jsonError(c, code, errors.New("internal error"))
		return
	}
	jsonError(c, code, err)
}

// bindError flattens validator errors into one readable message.
func bindError(err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return fmt.Errorf("failed to parse JSON: %w", err)
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		if fe.Param() != "" {
			msgs = append(msgs, fmt.Sprintf("%s: %s=%s", fe.Field(), fe.Tag(), fe.Param()))
		} else {
			msgs = append(msgs, fmt.Sprintf("%s: %s", fe.Field(), fe.Tag()))
		}
	}
	return fmt.Errorf("validation failed: %s", strings.Join(msgs, "; "))
}
