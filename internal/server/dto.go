package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"reflect"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/skariga/absenku/internal/model"
)

// locationRequest is the body of POST /v1/users/{id}/location.
type locationRequest struct {
	Latitude  *float64 `json:"latitude" validate:"required,latitude"`
	Longitude *float64 `json:"longitude" validate:"required,longitude"`
	Accuracy  *float64 `json:"accuracy" validate:"omitempty,gte=0"`
	Live      bool     `json:"live"`
	Forwarded bool     `json:"forwarded"`
}

func (r locationRequest) toUpdate() model.LocationUpdate {
	return model.LocationUpdate{
		Latitude:  *r.Latitude,
		Longitude: *r.Longitude,
		Accuracy:  r.Accuracy,
		Live:      r.Live,
		Forwarded: r.Forwarded,
	}
}

// intentRequest is the body of POST /v1/users/{id}/intent.
type intentRequest struct {
	Direction string `json:"direction" validate:"required"`
}

// recordQuery holds the query parameters of GET /v1/attendance.
type recordQuery struct {
	UserID string         `json:"user_id"`
	From   string         `json:"from" validate:"omitempty,datetime=2006-01-02"`
	To     string         `json:"to" validate:"omitempty,datetime=2006-01-02"`
	Status []model.Status `json:"status" validate:"dive,oneof=NONE VALIDATING VALID INVALID_RADIUS INVALID_SIGNAL"`
	Sort   string         `json:"sort"`
	Limit  int            `json:"limit" validate:"gte=0,lte=500"`
	Offset int            `json:"offset" validate:"gte=0"`
}

func (q recordQuery) filter() model.RecordFilter {
	return model.RecordFilter{
		UserID: q.UserID,
		From:   q.From,
		To:     q.To,
		Status: q.Status,
		Sort:   q.Sort,
		Limit:  q.Limit,
		Offset: q.Offset,
	}
}

func parseRecordQuery(r *http.Request) (recordQuery, error) {
	v := r.URL.Query()
	q := recordQuery{
		UserID: v.Get("user_id"),
		From:   v.Get("from"),
		To:     v.Get("to"),
		Sort:   v.Get("sort"),
		Limit:  50,
	}
	if s := v.Get("status"); s != "" {
		for _, st := range strings.Split(s, ",") {
			q.Status = append(q.Status, model.Status(strings.TrimSpace(st)))
		}
	}
	var err error
	if q.Limit, err = intParam(v.Get("limit"), q.Limit); err != nil {
		return q, inputError("limit must be an integer")
	}
	if q.Offset, err = intParam(v.Get("offset"), 0); err != nil {
		return q, inputError("offset must be an integer")
	}
	return q, nil
}

func intParam(s string, fallback int) (int, error) {
	if s == "" {
		return fallback, nil
	}
	return strconv.Atoi(s)
}

// decodeBody decodes a JSON body into v and validates it.
func (s *AttendanceServer) decodeBody(r *http.Request, v any) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return inputError("invalid JSON body")
	}
	return s.check(v)
}

// check validates v and turns validation failures into an inputError.
func (s *AttendanceServer) check(v any) error {
	err := s.validate.Struct(v)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		msgs = append(msgs, fieldMessage(fe))
	}
	return inputError(strings.Join(msgs, "; "))
}

func fieldMessage(fe validator.FieldError) string {
	field := fe.Field()
	switch fe.Tag() {
	case "required":
		return field + " is required"
	case "latitude", "longitude":
		return fmt.Sprintf("%s must be a valid %s", field, fe.Tag())
	case "datetime":
		return field + " must be a date (YYYY-MM-DD)"
	case "oneof":
		return fmt.Sprintf("%s must be one of %s", field, fe.Param())
	}
	return fmt.Sprintf("%s failed %s=%s", field, fe.Tag(), fe.Param())
}

// newValidator returns a validator that reports fields by their JSON names.
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
