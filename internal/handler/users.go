package handler

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/cafe-pos/api/internal/apperr"
	"github.com/cafe-pos/api/internal/database"
	"github.com/cafe-pos/api/internal/middleware"
)

// UserStore defines the database methods needed by staff user handlers.
// Satisfied by *database.Queries; narrow interface for testability.
type UserStore interface {
	ListUsers(ctx context.Context) ([]database.User, error)
	CreateUser(ctx context.Context, arg database.CreateUserParams) (database.User, error)
	UpdateUser(ctx context.Context, arg database.UpdateUserParams) (database.User, error)
}

// UserHandler handles staff account endpoints.
type UserHandler struct {
	store  UserStore
	logger *zap.Logger
}

// NewUserHandler creates a new UserHandler.
func NewUserHandler(store UserStore, logger *zap.Logger) *UserHandler {
	return &UserHandler{store: store, logger: logger}
}

// RegisterRoutes registers staff account endpoints, mounted at /users.
func (h *UserHandler) RegisterRoutes(r chi.Router) {
	r.Get("/", h.List)
	r.Post("/", h.Create)
	r.Patch("/{id}", h.Update)
}

// --- Request / Response types ---

type createUserRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=8,max=72"`
	FullName string `json:"full_name" validate:"required,max=120"`
	Role     string `json:"role" validate:"required,oneof=ADMIN CASHIER KITCHEN"`
}

type updateUserRequest struct {
	FullName *string `json:"full_name" validate:"omitempty,min=1,max=120"`
	Role     *string `json:"role" validate:"omitempty,oneof=ADMIN CASHIER KITCHEN"`
	IsActive *bool   `json:"is_active"`
}

type userDetailResponse struct {
	ID        uuid.UUID `json:"id"`
	Email     string    `json:"email"`
	FullName  string    `json:"full_name"`
	Role      string    `json:"role"`
	IsActive  bool      `json:"is_active"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func toUserDetailResponse(u database.User) userDetailResponse {
	return userDetailResponse{
		ID:        u.ID,
		Email:     u.Email,
		FullName:  u.FullName,
		Role:      u.Role,
		IsActive:  u.IsActive,
		CreatedAt: u.CreatedAt,
		UpdatedAt: u.UpdatedAt,
	}
}

// --- Handlers ---

// List returns every staff account, active first.
func (h *UserHandler) List(w http.ResponseWriter, r *http.Request) {
	users, err := h.store.ListUsers(r.Context())
	if err != nil {
		writeError(w, h.logger, "list users", apperr.FromStore(err, "users", "list users"))
		return
	}

	resp := make([]userDetailResponse, len(users))
	for i, u := range users {
		resp[i] = toUserDetailResponse(u)
	}
	writeJSON(w, http.StatusOK, map[string]any{"users": resp})
}

// Create adds a staff account.
func (h *UserHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createUserRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, h.logger, "create user", err)
		return
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		writeError(w, h.logger, "create user", err)
		return
	}

	email := strings.ToLower(strings.TrimSpace(req.Email))
	user, err := h.store.CreateUser(r.Context(), database.CreateUserParams{
		Email:          email,
		HashedPassword: string(hashed),
		FullName:       strings.TrimSpace(req.FullName),
		Role:           req.Role,
	})
	if err != nil {
		if apperr.IsUniqueViolation(err, "") {
			writeError(w, h.logger, "create user", apperr.BusinessRule("email already exists"))
			return
		}
		writeError(w, h.logger, "create user", apperr.FromStore(err, "user", "create user"))
		return
	}

	h.logger.Info("user created", zap.String("user_id", user.ID.String()), zap.String("role", user.Role))
	writeJSON(w, http.StatusCreated, toUserDetailResponse(user))
}

// Update changes name, role or active flag. Admins cannot deactivate or
// demote themselves.
func (h *UserHandler) Update(w http.ResponseWriter, r *http.Request) {
	userID, err := uuidParam(r, "id")
	if err != nil {
		writeError(w, h.logger, "update user", err)
		return
	}

	var req updateUserRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, h.logger, "update user", err)
		return
	}
	if req.FullName == nil && req.Role == nil && req.IsActive == nil {
		writeError(w, h.logger, "update user", apperr.Validation("nothing to update"))
		return
	}

	if claims := middleware.ClaimsFromContext(r.Context()); claims != nil && claims.UserID == userID {
		if (req.IsActive != nil && !*req.IsActive) || (req.Role != nil && *req.Role != claims.Role) {
			writeError(w, h.logger, "update user", apperr.BusinessRule("cannot deactivate or change the role of your own account"))
			return
		}
	}

	arg := database.UpdateUserParams{ID: userID}
	if req.FullName != nil {
		arg.FullName = pgtype.Text{String: strings.TrimSpace(*req.FullName), Valid: true}
	}
	if req.Role != nil {
		arg.Role = pgtype.Text{String: *req.Role, Valid: true}
	}
	if req.IsActive != nil {
		arg.IsActive = pgtype.Bool{Bool: *req.IsActive, Valid: true}
	}

	user, err := h.store.UpdateUser(r.Context(), arg)
	if err != nil {
		writeError(w, h.logger, "update user", apperr.FromStore(err, "user", "update user"))
		return
	}
	writeJSON(w, http.StatusOK, toUserDetailResponse(user))
}
