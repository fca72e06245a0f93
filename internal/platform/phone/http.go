// Copyright (c) 2026 Helios. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package phone

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	requestutil "github.com/taibuivan/helios/internal/platform/request"
	"github.com/taibuivan/helios/internal/platform/respond"
	"github.com/taibuivan/helios/internal/platform/validate"
)

const (
	fieldPhone = "phone"
	fieldCode  = "code"
)

// Handler exposes the verifier over HTTP so clients can verify a number
// before registering with it.
type Handler struct {
	verifier *Verifier
	region   string
}

// NewHandler constructs a new [Handler]. Numbers without a country code are
// read in region.
func NewHandler(verifier *Verifier, region string) *Handler {
	return &Handler{verifier: verifier, region: region}
}

// Routes returns the phone verification router.
//
// # Endpoints
//   - POST /send-otp : Issues a code to the number.
//   - POST /verify   : Checks a code.
func (handler *Handler) Routes() chi.Router {
	router := chi.NewRouter()
	router.Post("/send-otp", handler.sendOTP)
	router.Post("/verify", handler.verify)
	return router
}

type sendOTPRequest struct {
	Phone string `json:"phone"`
}

type verifyRequest struct {
	Phone string `json:"phone"`
	Code  string `json:"code"`
}

/*
POST /api/v1/phone/send-otp

Response:
  - 200: masked phone
  - 400: invalid number
*/
func (handler *Handler) sendOTP(writer http.ResponseWriter, request *http.Request) {
	var input sendOTPRequest
	if err := requestutil.DecodeJSON(request, &input); err != nil {
		respond.Error(writer, request, err)
		return
	}

	number, err := Normalize(input.Phone, handler.region)
	if err != nil {
		respond.Error(writer, request, validate.RequiredError(fieldPhone, "must be a valid phone number"))
		return
	}

	if err := handler.verifier.SendOTP(request.Context(), number); err != nil {
		respond.Error(writer, request, err)
		return
	}

	respond.OK(writer, map[string]string{"masked_phone": Mask(number)})
}

/*
POST /api/v1/phone/verify

Response:
  - 200: {"verified": bool}
  - 400: invalid number or missing code
*/
func (handler *Handler) verify(writer http.ResponseWriter, request *http.Request) {
	var input verifyRequest
	if err := requestutil.DecodeJSON(request, &input); err != nil {
		respond.Error(writer, request, err)
		return
	}

	number, err := Normalize(input.Phone, handler.region)
	if err != nil {
		respond.Error(writer, request, validate.RequiredError(fieldPhone, "must be a valid phone number"))
		return
	}

	validator := &validate.Validator{}
	validator.Required(fieldCode, input.Code).
		MinLen(fieldCode, input.Code, CodeDigits).
		MaxLen(fieldCode, input.Code, CodeDigits)
	if err := validator.Err(); err != nil {
		respond.Error(writer, request, err)
		return
	}

	verified, err := handler.verifier.VerifyOTP(request.Context(), number, input.Code)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	respond.OK(writer, map[string]bool{"verified": verified})
}
