package httpgin

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/kirinyoku/slotbook/internal/service/admin"
	"github.com/kirinyoku/slotbook/internal/service/booking"
	"github.com/kirinyoku/slotbook/internal/service/query"
)

func badRequest(c *gin.Context, msg string) {
	c.JSON(http.StatusBadRequest, ErrorResponse{Error: msg})
}

func respondErr(c *gin.Context, err error) {
	if err == nil {
		c.Status(http.StatusNoContent)
		return
	}

	c.Set("error_kind", booking.ErrorKind(err))

	var (
		verr    *booking.ValidationError
		limited booking.RateLimitedError
	)

	switch {
	case errors.As(err, &verr):
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "validation failed", Fields: verr.FieldErrors})
	case errors.Is(err, booking.ErrInvalidEventLength):
		badRequest(c, "invalid event length")
	case errors.Is(err, admin.ErrInvalidInput):
		badRequest(c, err.Error())

	case errors.Is(err, booking.ErrEventTypeNotFound),
		errors.Is(err, query.ErrEventTypeNotFound),
		errors.Is(err, admin.ErrEventTypeNotFound):
		c.JSON(http.StatusNotFound, ErrorResponse{Error: "event type not found"})
	case errors.Is(err, booking.ErrBookingNotFound), errors.Is(err, query.ErrBookingNotFound):
		c.JSON(http.StatusNotFound, ErrorResponse{Error: "booking not found"})
	case errors.Is(err, admin.ErrUserNotFound):
		c.JSON(http.StatusNotFound, ErrorResponse{Error: "user not found"})

	case errors.Is(err, booking.ErrHostsUnavailable):
		c.JSON(http.StatusConflict, ErrorResponse{Error: "required hosts are unavailable"})
	case errors.Is(err, booking.ErrNoAvailableUsersFound):
		c.JSON(http.StatusConflict, ErrorResponse{Error: "no available users found"})
	case errors.Is(err, booking.ErrBookingConflict):
		c.JSON(http.StatusConflict, ErrorResponse{Error: "slot was just booked"})
	case errors.Is(err, booking.ErrNoAvailableSeats):
		c.JSON(http.StatusConflict, ErrorResponse{Error: "no available seats"})
	case errors.Is(err, booking.ErrBookingNotReschedulable):
		c.JSON(http.StatusConflict, ErrorResponse{Error: "booking can no longer be rescheduled"})
	case errors.Is(err, booking.ErrBookingAlreadyCancelled):
		c.JSON(http.StatusConflict, ErrorResponse{Error: "booking already cancelled"})
	case errors.Is(err, admin.ErrUserConflict):
		c.JSON(http.StatusConflict, ErrorResponse{Error: "user conflict"})
	case errors.Is(err, admin.ErrEventTypeConflict):
		c.JSON(http.StatusConflict, ErrorResponse{Error: "event type conflict"})

	case errors.Is(err, booking.ErrHashedLinkInvalid):
		c.JSON(http.StatusGone, ErrorResponse{Error: "booking link is invalid or used"})

	case errors.As(err, &limited):
		c.Header("Retry-After", retryAfter(limited.RetryAfter))
		c.JSON(http.StatusTooManyRequests, ErrorResponse{Error: "rate limited"})
	case errors.Is(err, booking.ErrRateLimited):
		c.Header("Retry-After", "60")
		c.JSON(http.StatusTooManyRequests, ErrorResponse{Error: "rate limited"})

	case errors.Is(err, booking.ErrMeetingProvider):
		_ = c.Error(err)
		c.JSON(http.StatusBadGateway, ErrorResponse{Error: "meeting provider failed"})
	case errors.Is(err, admin.ErrLinksNotConfigured):
		c.JSON(http.StatusServiceUnavailable, ErrorResponse{Error: "hashed links are not configured"})

	default:
		_ = c.Error(err)
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal error"})
	}
}

// retryAfter renders d in whole seconds, rounding up.
func retryAfter(d time.Duration) string {
	secs := int((d + time.Second - 1) / time.Second)
	if secs < 1 {
		secs = 1
	}
	return strconv.Itoa(secs)
}
