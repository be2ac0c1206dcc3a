package httpgin

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	"github.com/kirinyoku/slotbook/internal/domain"
	redisrepo "github.com/kirinyoku/slotbook/internal/repository/redis"
	"github.com/kirinyoku/slotbook/internal/service"
)

const idemLockTTL = 60 * time.Second

// NewRouter builds the HTTP API. idem may be nil, which disables
// Idempotency-Key handling.
func NewRouter(
	svcs *service.Services,
	idem *redisrepo.IdempotencyStore,
	logger *slog.Logger,
	middlewares ...gin.HandlerFunc,
) *gin.Engine {
	r := gin.New()

	r.Use(gin.Recovery(), RequestIDMiddleware(logger), LoggingMiddleware(logger), CORS())
	for _, m := range middlewares {
		if m != nil {
			r.Use(m)
		}
	}

	// Swagger UI
	r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	// health
	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	// Public API
	r.POST("/bookings", handleCreateBooking(svcs, idem))
	r.GET("/bookings/:uid", handleGetBooking(svcs))
	r.POST("/bookings/:uid/cancel", handleCancelBooking(svcs))
	r.GET("/event-types/:id", handleGetEventType(svcs))

	// Admin-API
	// TODO: add admin middleware
	admin := r.Group("/admin")
	{
		admin.POST("/users", handleCreateUser(svcs))
		admin.POST("/schedules", handleCreateSchedule(svcs))
		admin.POST("/event-types", handleCreateEventType(svcs))
		admin.POST("/event-types/:id/links", handleCreateHashedLink(svcs))
	}

	return r
}

// --- Handlers with Swagger annotations ---

// @Summary  Create or reschedule a booking (idempotent)
// @Param    req body  CreateBookingRequest true "payload"
// @Header   201 {string} Idempotency-Key "echo"
// @Success  201 {object} BookingResponse
// @Success  200 {object} BookingResponse "booker joined an existing seated slot"
// @Failure  400 {object} ErrorResponse
// @Failure  404 {object} ErrorResponse
// @Failure  409 {object} ErrorResponse "slot unavailable / idem in progress"
// @Failure  410 {object} ErrorResponse "booking link invalid"
// @Failure  429 {object} ErrorResponse "rate limited"
// @Failure  502 {object} ErrorResponse "meeting provider failed"
// @Router   /bookings [post]
func handleCreateBooking(
	svcs *service.Services,
	idem *redisrepo.IdempotencyStore,
) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req CreateBookingRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err.Error())
			return
		}

		ctx := c.Request.Context()

		idemKey := strings.TrimSpace(c.GetHeader("Idempotency-Key"))
		var idemStorageKey string
		if idem != nil && idemKey != "" {
			idemStorageKey = redisrepo.KeyIdemBooking(idemKey)

			state, stored, err := idem.Claim(ctx, idemStorageKey, idemLockTTL)
			if err != nil {
				respondErr(c, err)
				return
			}
			switch state {
			case redisrepo.IdemDone:
				c.Header("Idempotency-Key", idemKey)
				c.Data(stored.Status, "application/json; charset=utf-8", []byte(stored.Body))
				return
			case redisrepo.IdemInProgress:
				c.Header("Retry-After", "1")
				c.JSON(http.StatusConflict, ErrorResponse{Error: "idempotency key in progress"})
				return
			}
		}

		res, err := svcs.Booking.Create(ctx, req.toService("ip:"+c.ClientIP()))
		if err != nil {
			if idemStorageKey != "" {
				_ = idem.Release(ctx, idemStorageKey)
			}
			respondErr(c, err)
			return
		}

		resp := BookingResponse{
			Booking:          res.Booking,
			SeatReferenceUID: res.SeatReferenceUID,
			IsNewBooking:     res.IsNewBooking,
		}

		status := http.StatusCreated
		if !res.IsNewBooking {
			status = http.StatusOK
		}

		if idemStorageKey != "" {
			b, _ := json.Marshal(resp)
			_ = idem.SaveResult(ctx, idemStorageKey, redisrepo.IdemResult{Status: status, Body: string(b)})
			c.Header("Idempotency-Key", idemKey)
		}

		c.JSON(status, resp)
	}
}

// @Summary  Get booking
// @Param    uid  path  string  true  "Booking uid or seat reference uid"
// @Success  200 {object} domain.Booking
// @Failure  404 {object} ErrorResponse
// @Router   /bookings/{uid} [get]
func handleGetBooking(svcs *service.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		b, err := svcs.Query.Booking(c.Request.Context(), c.Param("uid"))
		if err != nil {
			respondErr(c, err)
			return
		}
		c.JSON(http.StatusOK, b)
	}
}

// @Summary  Cancel booking
// @Param    uid  path  string  true  "Booking uid"
// @Param    req  body  CancelBookingRequest false "payload"
// @Success  200 {object} domain.Booking
// @Failure  404 {object} ErrorResponse
// @Failure  409 {object} ErrorResponse "already cancelled"
// @Router   /bookings/{uid}/cancel [post]
func handleCancelBooking(svcs *service.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req CancelBookingRequest
		if c.Request.ContentLength > 0 {
			if err := c.ShouldBindJSON(&req); err != nil {
				badRequest(c, err.Error())
				return
			}
		}

		b, err := svcs.Booking.Cancel(c.Request.Context(), c.Param("uid"), req.Reason)
		if err != nil {
			respondErr(c, err)
			return
		}
		c.JSON(http.StatusOK, b)
	}
}

// @Summary  Get event type
// @Param    id  path  int  true  "Event type ID"
// @Success  200  {object}  domain.EventType
// @Failure  404  {object}  ErrorResponse
// @Router   /event-types/{id} [get]
func handleGetEventType(svcs *service.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := parseInt64Param(c, "id")
		if !ok {
			return
		}
		et, err := svcs.Query.GetEventType(c.Request.Context(), id)
		if err != nil {
			respondErr(c, err)
			return
		}
		writeJSONWithCache(c, http.StatusOK, et, "public, max-age=60")
	}
}

// @Summary  Create user
// @Param    req body  CreateUserRequest true "payload"
// @Success  201 {object} CreatedResponse
// @Failure  409 {object} ErrorResponse
// @Router   /admin/users [post]
func handleCreateUser(svcs *service.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req CreateUserRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err.Error())
			return
		}
		u := domain.User{
			Email:    req.Email,
			Name:     req.Name,
			TimeZone: req.TimeZone,
			Locale:   req.Locale,
		}
		if err := svcs.Admin.CreateUser(c.Request.Context(), &u); err != nil {
			respondErr(c, err)
			return
		}
		c.JSON(http.StatusCreated, CreatedResponse{ID: u.ID})
	}
}

// @Summary  Create availability schedule
// @Param    req body  CreateScheduleRequest true "payload"
// @Success  201 {object} CreatedResponse
// @Failure  404 {object} ErrorResponse "user not found"
// @Router   /admin/schedules [post]
func handleCreateSchedule(svcs *service.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req CreateScheduleRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err.Error())
			return
		}
		s := domain.Schedule{
			UserID:       req.UserID,
			Name:         req.Name,
			TimeZone:     req.TimeZone,
			Availability: req.Availability,
		}
		if err := svcs.Admin.CreateSchedule(c.Request.Context(), &s); err != nil {
			respondErr(c, err)
			return
		}
		c.JSON(http.StatusCreated, CreatedResponse{ID: s.ID})
	}
}

// @Summary  Create event type
// @Param    req body  domain.EventType true "payload"
// @Success  201 {object} domain.EventType
// @Failure  400 {object} ErrorResponse
// @Failure  409 {object} ErrorResponse
// @Router   /admin/event-types [post]
func handleCreateEventType(svcs *service.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		var et domain.EventType
		if err := c.ShouldBindJSON(&et); err != nil {
			badRequest(c, err.Error())
			return
		}
		et.ID = 0
		if err := svcs.Admin.CreateEventType(c.Request.Context(), &et); err != nil {
			respondErr(c, err)
			return
		}
		c.JSON(http.StatusCreated, et)
	}
}

// @Summary  Create single-use booking link
// @Param    id  path  int  true  "Event type ID"
// @Param    req body  CreateHashedLinkRequest false "payload"
// @Success  201 {object} CreateHashedLinkResponse
// @Failure  404 {object} ErrorResponse
// @Router   /admin/event-types/{id}/links [post]
func handleCreateHashedLink(svcs *service.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := parseInt64Param(c, "id")
		if !ok {
			return
		}
		var req CreateHashedLinkRequest
		if c.Request.ContentLength > 0 {
			if err := c.ShouldBindJSON(&req); err != nil {
				badRequest(c, err.Error())
				return
			}
		}
		token, link, err := svcs.Admin.CreateHashedLink(
			c.Request.Context(),
			id,
			time.Duration(req.TTLSec)*time.Second,
		)
		if err != nil {
			respondErr(c, err)
			return
		}
		c.JSON(http.StatusCreated, CreateHashedLinkResponse{Token: token, ExpiresAt: link.ExpiresAt})
	}
}

// --- Helpers ---

func parseInt64Param(c *gin.Context, name string) (int64, bool) {
	v, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil {
		badRequest(c, "invalid "+name)
		return 0, false
	}
	return v, true
}
