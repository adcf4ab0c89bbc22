package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"reflect"
	"strings"
	"time"

	"github.com/cimillas/mentor-booking/services/reservations/internal/app"
	"github.com/cimillas/mentor-booking/services/reservations/internal/domain"
	"github.com/go-playground/validator/v10"
)

const maxBodyBytes = 1 << 16

var validate = newValidator()

// newValidator reports fields by their json names.
func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

type holdSlotRequest struct {
	ServiceID string `json:"service_id" validate:"required,uuid"`
}

type confirmSessionRequest struct {
	PaymentIntentID string `json:"payment_intent_id" validate:"omitempty,max=255"`
}

type cancelSessionRequest struct {
	Reason string `json:"reason" validate:"omitempty,max=500"`
}

// decodeBody reads an optional JSON body into dst and validates it. An empty
// body leaves dst at its zero value.
func decodeBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil && !errors.Is(err, io.EOF) {
		writeError(w, http.StatusBadRequest, codeInvalidRequestBody, "invalid request body")
		return false
	}
	if err := validate.Struct(dst); err != nil {
		writeError(w, http.StatusBadRequest, codeValidationFailed, validationMessage(err))
		return false
	}
	return true
}

// pathID reads a uuid path variable.
func pathID(w http.ResponseWriter, vars map[string]string, name string) (string, bool) {
	id := strings.TrimSpace(vars[name])
	if err := validate.Var(id, "required,uuid"); err != nil {
		writeError(w, http.StatusBadRequest, codeInvalidID, fmt.Sprintf("%s must be a uuid", name))
		return "", false
	}
	return id, true
}

func validationMessage(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return "invalid request"
	}
	fe := verrs[0]
	field := fe.Field()
	switch fe.Tag() {
	case "required":
		return field + " is required"
	case "uuid":
		return field + " must be a uuid"
	case "max":
		return fmt.Sprintf("%s must be at most %s characters", field, fe.Param())
	default:
		return field + " is invalid"
	}
}

type slotResponse struct {
	ID         string     `json:"id"`
	MentorID   string     `json:"mentor_id"`
	StartsAt   time.Time  `json:"starts_at"`
	EndsAt     time.Time  `json:"ends_at"`
	Status     string     `json:"status"`
	HoldExpiry *time.Time `json:"hold_expiry,omitempty"`
}

func toSlotResponse(s domain.Slot) slotResponse {
	return slotResponse{
		ID:         s.ID,
		MentorID:   s.MentorID,
		StartsAt:   s.StartsAt,
		EndsAt:     s.EndsAt,
		Status:     string(s.Status),
		HoldExpiry: s.HoldExpiry,
	}
}

type sessionResponse struct {
	ID           string     `json:"id"`
	MentorID     string     `json:"mentor_id"`
	MenteeID     string     `json:"mentee_id"`
	SlotID       string     `json:"slot_id"`
	ServiceID    string     `json:"service_id"`
	Status       string     `json:"status"`
	StartsAt     time.Time  `json:"starts_at"`
	EndsAt       time.Time  `json:"ends_at"`
	CancelReason string     `json:"cancel_reason,omitempty"`
	CanceledAt   *time.Time `json:"canceled_at,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
}

func toSessionResponse(s domain.Session) sessionResponse {
	return sessionResponse{
		ID:           s.ID,
		MentorID:     s.MentorID,
		MenteeID:     s.MenteeID,
		SlotID:       s.SlotID,
		ServiceID:    s.ServiceID,
		Status:       string(s.Status),
		StartsAt:     s.StartsAt,
		EndsAt:       s.EndsAt,
		CancelReason: s.CancelReason,
		CanceledAt:   s.CanceledAt,
		CreatedAt:    s.CreatedAt,
	}
}

type holdSlotResponse struct {
	Session             sessionResponse `json:"session"`
	HoldExpiresAt       time.Time       `json:"hold_expires_at"`
	HoldDurationMinutes int             `json:"hold_duration_minutes"`
}

func toHoldSlotResponse(res app.HoldResult) holdSlotResponse {
	return holdSlotResponse{
		Session:             toSessionResponse(res.Session),
		HoldExpiresAt:       res.HoldExpiresAt,
		HoldDurationMinutes: res.HoldDurationMinutes,
	}
}

type serviceResponse struct {
	ID       string `json:"id"`
	MentorID string `json:"mentor_id"`
	Title    string `json:"title"`
}

type participantResponse struct {
	ID string `json:"id"`
}

type sessionDetailsResponse struct {
	sessionResponse
	Mentor  participantResponse `json:"mentor"`
	Mentee  participantResponse `json:"mentee"`
	Slot    slotResponse        `json:"slot"`
	Service serviceResponse     `json:"service"`
}

func toSessionDetailsResponse(d domain.SessionDetails) sessionDetailsResponse {
	return sessionDetailsResponse{
		sessionResponse: toSessionResponse(d.Session),
		Mentor:          participantResponse{ID: d.Session.MentorID},
		Mentee:          participantResponse{ID: d.Session.MenteeID},
		Slot:            toSlotResponse(d.Slot),
		Service: serviceResponse{
			ID:       d.Service.ID,
			MentorID: d.Service.MentorID,
			Title:    d.Service.Title,
		},
	}
}

type holdStatusResponse struct {
	SessionID        string    `json:"session_id"`
	HoldExpiresAt    time.Time `json:"hold_expires_at"`
	RemainingSeconds int       `json:"remaining_seconds"`
}

type reconcileResponse struct {
	Released     int `json:"released"`
	Failed       int `json:"failed"`
	AutoCanceled int `json:"auto_canceled"`
}
