package handlers

import (
	"errors"
	"net/mail"
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/yuchen-w/CampusMarketBack/internal/models"
	"github.com/yuchen-w/CampusMarketBack/internal/repository"
	"github.com/yuchen-w/CampusMarketBack/internal/services"
	"github.com/yuchen-w/CampusMarketBack/pkg/utils"
)

type AuthHandler struct {
	db        *pgxpool.Pool
	userRepo  *repository.UserRepository
	otp       *services.OTPService
	email     services.EmailSender
	otpTTLMin int
	jwtSecret string
}

func NewAuthHandler(
	db *pgxpool.Pool,
	userRepo *repository.UserRepository,
	otp *services.OTPService,
	email services.EmailSender,
	otpTTLMin int,
	jwtSecret string,
) *AuthHandler {
	return &AuthHandler{
		db:        db,
		userRepo:  userRepo,
		otp:       otp,
		email:     email,
		otpTTLMin: otpTTLMin,
		jwtSecret: jwtSecret,
	}
}

type registerRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type verifyOTPRequest struct {
	Email string `json:"email"`
	OTP   string `json:"otp"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Register creates an unverified account and mails a one-time code. The
// user row and the email stand or fall together: a failed send rolls the
// registration back. Registering an unverified email again refreshes the
// password and resends the code.
func (h *AuthHandler) Register(c *fiber.Ctx) error {
	var req registerRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}

	parsedEmail, err := mail.ParseAddress(strings.TrimSpace(req.Email))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid email format"})
	}
	req.Email = strings.ToLower(parsedEmail.Address)
	if len(req.Password) < 8 {
		return c.Status(fiber.StatusBadRequest).
			JSON(fiber.Map{"error": "Password must be at least 8 characters"})
	}

	existing, err := h.userRepo.GetByEmail(c.Context(), req.Email)
	if err != nil && !errors.Is(err, pgx.ErrNoRows) {
		return c.Status(fiber.StatusInternalServerError).
			JSON(fiber.Map{"error": "Failed to check email"})
	}
	if existing != nil && existing.IsEmailVerified {
		return c.Status(fiber.StatusBadRequest).
			JSON(fiber.Map{"error": "User with this email already exists. Please login instead."})
	}

	hashed, err := utils.HashPassword(req.Password)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).
			JSON(fiber.Map{"error": "Failed to hash password"})
	}

	tx, err := h.db.Begin(c.Context())
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).
			JSON(fiber.Map{"error": "Failed to start registration transaction"})
	}
	defer func() {
		_ = tx.Rollback(c.Context())
	}()

	txUserRepo := repository.NewUserRepository(tx)
	user := existing
	if user == nil {
		user = &models.User{
			Email:        req.Email,
			PasswordHash: hashed,
			NetID:        req.Email[:strings.Index(req.Email, "@")],
		}
		if err := txUserRepo.CreateUser(c.Context(), user); err != nil {
			var pgErr *pgconn.PgError
			if errors.As(err, &pgErr) && pgErr.Code == "23505" {
				return c.Status(fiber.StatusBadRequest).
					JSON(fiber.Map{"error": "User with this email already exists. Please login instead."})
			}
			return c.Status(fiber.StatusInternalServerError).
				JSON(fiber.Map{"error": "Failed to create user"})
		}
	} else {
		// Unverified account registering again: refresh credentials and
		// issue a fresh code instead of locking the email out.
		if err := txUserRepo.UpdatePasswordHash(c.Context(), user.ID, hashed); err != nil {
			return c.Status(fiber.StatusInternalServerError).
				JSON(fiber.Map{"error": "Failed to update registration"})
		}
	}

	otp, err := services.GenerateOTP()
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).
			JSON(fiber.Map{"error": "Failed to generate verification code"})
	}

	subject, body := services.OTPEmailBody(otp, h.otpTTLMin)
	if err := h.email.Send(req.Email, subject, body); err != nil {
		return c.Status(fiber.StatusInternalServerError).
			JSON(fiber.Map{"error": "Failed to send verification email. Please try again."})
	}

	if err := tx.Commit(c.Context()); err != nil {
		return c.Status(fiber.StatusInternalServerError).
			JSON(fiber.Map{"error": "Failed to finalize registration"})
	}

	h.otp.Store(req.Email, otp)

	if existing != nil {
		return c.JSON(fiber.Map{
			"message": "A new verification code has been sent to your email.",
			"user_id": user.ID,
			"email":   user.Email,
		})
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"message": "Registration successful. Please check your email for the verification code.",
		"user_id": user.ID,
		"email":   user.Email,
	})
}

func (h *AuthHandler) VerifyOTP(c *fiber.Ctx) error {
	var req verifyOTPRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}

	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	req.OTP = strings.TrimSpace(req.OTP)
	if req.Email == "" || req.OTP == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Email and OTP are required"})
	}

	user, err := h.userRepo.GetByEmail(c.Context(), req.Email)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return c.Status(fiber.StatusNotFound).
				JSON(fiber.Map{"error": "User not found. Please register first."})
		}
		return c.Status(fiber.StatusInternalServerError).
			JSON(fiber.Map{"error": "Failed to load user"})
	}

	if !h.otp.Verify(req.Email, req.OTP) {
		return c.Status(fiber.StatusBadRequest).
			JSON(fiber.Map{"error": "Invalid or expired OTP. Please request a new one."})
	}

	if err := h.userRepo.MarkEmailVerified(c.Context(), user.ID); err != nil {
		return c.Status(fiber.StatusInternalServerError).
			JSON(fiber.Map{"error": "Failed to verify email"})
	}
	user.IsEmailVerified = true

	token, err := utils.GenerateToken(strconv.FormatInt(user.ID, 10), user.Email, h.jwtSecret)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).
			JSON(fiber.Map{"error": "Failed to generate token"})
	}

	return c.JSON(fiber.Map{
		"message": "Email verified successfully",
		"token":   token,
		"user":    user,
	})
}

func (h *AuthHandler) Login(c *fiber.Ctx) error {
	var req loginRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}

	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	if req.Email == "" || req.Password == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Email and password are required"})
	}

	user, err := h.userRepo.GetByEmail(c.Context(), req.Email)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
				"error":                 "User not found. Please register first.",
				"requires_registration": true,
			})
		}
		return c.Status(fiber.StatusInternalServerError).
			JSON(fiber.Map{"error": "Failed to load user"})
	}

	if !utils.CheckPassword(req.Password, user.PasswordHash) {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Invalid credentials"})
	}

	if !user.IsEmailVerified {
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{
			"error":                 "Email not verified. Please verify your email first.",
			"requires_verification": true,
			"email":                 user.Email,
		})
	}

	token, err := utils.GenerateToken(strconv.FormatInt(user.ID, 10), user.Email, h.jwtSecret)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).
			JSON(fiber.Map{"error": "Failed to generate token"})
	}

	return c.JSON(fiber.Map{
		"token": token,
		"user":  user,
	})
}

func (h *AuthHandler) Me(c *fiber.Ctx) error {
	userID, err := requestUserID(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Invalid token"})
	}

	user, err := h.userRepo.GetByID(c.Context(), userID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "User not found"})
		}
		return c.Status(fiber.StatusInternalServerError).
			JSON(fiber.Map{"error": "Failed to load user"})
	}

	return c.JSON(fiber.Map{"user": user})
}
