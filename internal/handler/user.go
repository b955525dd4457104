package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/sakif/memberhub/internal/service"
)

// UserHandler exposes member accounts over HTTP: registration, profile
// fetch, and profile update.
//
// The handler's only jobs are parsing JSON, pulling the {id} out of the URL,
// and translating service results into status codes. Every rule about what
// makes a valid member lives in the service layer — a handler test never
// needs to know the email regex.
type UserHandler struct {
	users  *service.UserService
	logger *slog.Logger
}

// NewUserHandler creates a UserHandler.
func NewUserHandler(users *service.UserService, logger *slog.Logger) *UserHandler {
	return &UserHandler{users: users, logger: logger}
}

// registerRequest is the POST /api/users body.
type registerRequest struct {
	Email     string `json:"email"`
	Password  string `json:"password"`
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	Zip       string `json:"zip"`
}

// updateRequest is the PUT /api/users/{id} body.
//
// POINTER FIELDS FOR PARTIAL UPDATES:
// JSON can't distinguish "field absent" from "field set to empty" with plain
// strings — both decode to "". With *string, an absent field decodes to nil
// (don't change) while `"zip": ""` decodes to a pointer to "" (clear the
// zip). The distinction matters: clearing a zip clears the coordinates.
type updateRequest struct {
	Email     *string `json:"email"`
	Password  *string `json:"password"`
	FirstName *string `json:"firstName"`
	LastName  *string `json:"lastName"`
	Zip       *string `json:"zip"`
}

// HandleRegister creates a member account.
//
// HTTP: POST /api/users
// REQUEST BODY: {"email": "...", "password": "...", "zip": "10001", ...}
//
// Responses:
//   - 201 + the user JSON (with any derived geographic fields)
//   - 400 invalid JSON, bad email format, short password
//   - 409 email already registered
func (h *UserHandler) HandleRegister(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.logger.Warn("invalid register JSON", slog.String("error", err.Error()))
		writeJSON(w, http.StatusBadRequest, ErrorResponse{
			Error:   "invalid_json",
			Message: "request body must be valid JSON",
		})
		return
	}

	user, err := h.users.Register(r.Context(), service.RegisterParams{
		Email:     req.Email,
		Password:  req.Password,
		FirstName: req.FirstName,
		LastName:  req.LastName,
		Zip:       req.Zip,
	})
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, user)
}

// HandleGetByID returns one member.
//
// HTTP: GET /api/users/{id}
func (h *UserHandler) HandleGetByID(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	user, err := h.users.GetByID(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, user)
}

// HandleUpdate modifies a member's profile.
//
// HTTP: PUT /api/users/{id}
// REQUEST BODY: any subset of {"email", "password", "firstName", "lastName", "zip"}
//
// Changing the zip re-geocodes it; leaving it out of the body doesn't.
func (h *UserHandler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	var req updateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.logger.Warn("invalid update JSON", slog.String("error", err.Error()))
		writeJSON(w, http.StatusBadRequest, ErrorResponse{
			Error:   "invalid_json",
			Message: "request body must be valid JSON",
		})
		return
	}

	user, err := h.users.Update(r.Context(), id, service.UpdateParams{
		Email:     req.Email,
		Password:  req.Password,
		FirstName: req.FirstName,
		LastName:  req.LastName,
		Zip:       req.Zip,
	})
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, user)
}
