package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/libtrack/libtrack-server/internal/config"
	"github.com/libtrack/libtrack-server/internal/mailer"
	"github.com/libtrack/libtrack-server/internal/models"
	"github.com/libtrack/libtrack-server/internal/repository"
	"github.com/libtrack/libtrack-server/internal/utils"
	"github.com/libtrack/libtrack-server/internal/ws"
	"github.com/shopspring/decimal"
	"golang.org/x/crypto/bcrypt"
)

// Sentinel errors mapped to HTTP statuses by the API layer
var (
	ErrEmailTaken         = errors.New("user with this email already exists")
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrAccountNotApproved = errors.New("account is not approved yet")
	ErrNotFound           = repository.ErrNotFound
	ErrConflict           = repository.ErrConflict
	ErrValidation         = errors.New("validation failed")
)

// Service defines all the business logic operations
type Service interface {
	// Authentication and accounts
	Register(ctx context.Context, req models.RegisterRequest) (*models.AuthResponse, error)
	Login(ctx context.Context, req models.LoginRequest) (*models.AuthResponse, error)
	ApproveUser(ctx context.Context, adminID, userID string, req models.ApproveUserRequest) (*models.User, error)
	GetUser(ctx context.Context, userID string) (*models.User, error)
	PendingUsers(ctx context.Context) ([]models.User, error)

	// Catalog
	CreateBook(ctx context.Context, actorID string, book *models.Book, coverPath string) (*models.Book, error)
	ListBooks(ctx context.Context, search string) ([]models.Book, error)
	CreateResearchPaper(ctx context.Context, actorID string, paper *models.ResearchPaper) (*models.ResearchPaper, error)
	ListResearchPapers(ctx context.Context, search string) ([]models.ResearchPaper, error)
	SetProfileImage(ctx context.Context, userID, imagePath string) error

	// Circulation
	Borrow(ctx context.Context, userID string, req models.BorrowRequest) (*models.Transaction, error)
	Return(ctx context.Context, actorID, transactionID string) (*models.Transaction, error)

	// Penalties
	ProcessOverdue(ctx context.Context) (*models.BatchPenaltyResponse, error)
	Recalculate(ctx context.Context) (*models.BatchPenaltyResponse, error)
	CleanupPenalties(ctx context.Context, actorID string) (int64, error)
	PayPenalty(ctx context.Context, actorID string, penaltyID int64, req models.PayPenaltyRequest) (*models.Penalty, error)
	WaivePenalty(ctx context.Context, actorID string, penaltyID int64, req models.WaivePenaltyRequest) (*models.Penalty, error)
	ListPenalties(ctx context.Context, filter repository.PenaltyFilter) (*models.PenaltyListResponse, error)
	UserPenalties(ctx context.Context, userID string) (*models.UserPenaltiesResponse, error)
	FinePreview(ctx context.Context, userID string) (*models.FinePreviewResponse, error)

	// Settings and audit
	EffectiveSettings(ctx context.Context) (*models.SystemSettings, error)
	UpdateSettings(ctx context.Context, actorID string, req models.UpdateSettingsRequest) (*models.SystemSettings, error)
	ActivityLogs(ctx context.Context, limit int) ([]models.ActivityLog, error)
}

// DefaultService implements the Service interface
type DefaultService struct {
	repo          repository.Repository
	jwtSecret     []byte
	tokenDuration time.Duration
	broadcaster   ws.Broadcaster
	mail          mailer.Mailer
	logger        *utils.Logger
	fallback      config.LibraryConfig
}

// NewDefaultService creates a new DefaultService. The broadcaster and mailer
// are injected here rather than set through package state so every caller of
// the service shares the same capabilities.
func NewDefaultService(
	repo repository.Repository,
	jwtSecret string,
	broadcaster ws.Broadcaster,
	mail mailer.Mailer,
	logger *utils.Logger,
	fallback config.LibraryConfig,
) Service {
	return &DefaultService{
		repo:          repo,
		jwtSecret:     []byte(jwtSecret),
		tokenDuration: 24 * time.Hour, // 24 hours token validity
		broadcaster:   broadcaster,
		mail:          mail,
		logger:        logger,
		fallback:      fallback,
	}
}

// Authentication methods
func (s *DefaultService) Register(ctx context.Context, req models.RegisterRequest) (*models.AuthResponse, error) {
	// Check if user already exists
	existingUser, err := s.repo.GetUserByEmail(ctx, req.Email)
	if err != nil {
		return nil, fmt.Errorf("error checking user existence: %w", err)
	}

	if existingUser != nil {
		return nil, ErrEmailTaken
	}

	// Hash the password
	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("error hashing password: %w", err)
	}

	// Create the user in pending state; an admin approves it later
	user := &models.User{
		ID:       uuid.New().String(),
		SchoolID: req.SchoolID,
		Email:    req.Email,
		Name:     req.Name,
		Password: string(hashedPassword),
		Position: req.Position,
		Role:     models.RoleUser,
		Status:   models.UserStatusPending,
	}

	if err := s.repo.CreateUser(ctx, user); err != nil {
		return nil, fmt.Errorf("error creating user: %w", err)
	}

	s.logActivity(ctx, user.ID, "user.register", fmt.Sprintf("school_id=%s", user.SchoolID))
	s.broadcaster.Broadcast(ws.EventUserRegistered, map[string]string{
		"userId":   user.ID,
		"name":     user.Name,
		"schoolId": user.SchoolID,
	})

	return &models.AuthResponse{
		Status: "success",
		UserID: user.ID,
		Email:  user.Email,
		Name:   user.Name,
	}, nil
}

func (s *DefaultService) Login(ctx context.Context, req models.LoginRequest) (*models.AuthResponse, error) {
	// Get the user
	user, err := s.repo.GetUserByEmail(ctx, req.Email)
	if err != nil {
		return nil, fmt.Errorf("error getting user: %w", err)
	}

	if user == nil {
		return nil, ErrInvalidCredentials
	}

	// Verify password
	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(req.Password)); err != nil {
		return nil, ErrInvalidCredentials
	}

	// Pending and rejected accounts cannot log in
	if user.Status != models.UserStatusApproved {
		return nil, ErrAccountNotApproved
	}

	// Generate JWT token
	token, err := s.generateJWT(user)
	if err != nil {
		return nil, fmt.Errorf("error generating token: %w", err)
	}

	return &models.AuthResponse{
		Status:    "success",
		UserID:    user.ID,
		Token:     token,
		Role:      user.Role,
		ExpiresIn: int(s.tokenDuration.Seconds()),
	}, nil
}

func (s *DefaultService) ApproveUser(ctx context.Context, adminID, userID string, req models.ApproveUserRequest) (*models.User, error) {
	user, err := s.repo.GetUserByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("error getting user: %w", err)
	}
	if user == nil {
		return nil, ErrNotFound
	}

	if err := s.repo.UpdateUserStatus(ctx, userID, req.Status); err != nil {
		return nil, fmt.Errorf("error updating user status: %w", err)
	}
	user.Status = req.Status

	s.logActivity(ctx, adminID, "user."+req.Status, fmt.Sprintf("user_id=%s", userID))

	// Mail failures are logged but never fail the approval itself
	var mailErr error
	if req.Status == models.UserStatusApproved {
		mailErr = s.mail.SendAccountApproved(user.Email, user.Name)
	} else {
		mailErr = s.mail.SendAccountRejected(user.Email, user.Name)
	}
	if mailErr != nil {
		s.logger.Warn("Failed to send account status mail to %s: %v", user.Email, mailErr)
	}

	return user, nil
}

func (s *DefaultService) GetUser(ctx context.Context, userID string) (*models.User, error) {
	user, err := s.repo.GetUserByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("error getting user: %w", err)
	}
	if user == nil {
		return nil, ErrNotFound
	}
	return user, nil
}

func (s *DefaultService) PendingUsers(ctx context.Context) ([]models.User, error) {
	users, err := s.repo.ListUsersByStatus(ctx, models.UserStatusPending)
	if err != nil {
		return nil, fmt.Errorf("error listing pending users: %w", err)
	}
	return users, nil
}

// Settings methods
func (s *DefaultService) EffectiveSettings(ctx context.Context) (*models.SystemSettings, error) {
	settings, err := s.repo.GetSettings(ctx)
	if err != nil {
		// The calculator must keep working even when the settings table is
		// unreachable; fall back to the configured defaults.
		s.logger.Warn("Failed to load system settings, using defaults: %v", err)
		return s.defaultSettings(), nil
	}
	if settings == nil {
		return s.defaultSettings(), nil
	}
	return settings, nil
}

func (s *DefaultService) defaultSettings() *models.SystemSettings {
	return &models.SystemSettings{
		ID:                1,
		StudentDailyFine:  decimal.NewFromInt(int64(s.fallback.StudentDailyFine)),
		FacultyDailyFine:  decimal.NewFromInt(int64(s.fallback.FacultyDailyFine)),
		StudentBorrowDays: s.fallback.StudentBorrowDays,
		FacultyBorrowDays: s.fallback.FacultyBorrowDays,
	}
}

func (s *DefaultService) UpdateSettings(ctx context.Context, actorID string, req models.UpdateSettingsRequest) (*models.SystemSettings, error) {
	settings, err := s.EffectiveSettings(ctx)
	if err != nil {
		return nil, err
	}

	if req.StudentDailyFine != nil {
		if req.StudentDailyFine.IsNegative() {
			return nil, fmt.Errorf("%w: studentDailyFine must not be negative", ErrValidation)
		}
		settings.StudentDailyFine = *req.StudentDailyFine
	}
	if req.FacultyDailyFine != nil {
		if req.FacultyDailyFine.IsNegative() {
			return nil, fmt.Errorf("%w: facultyDailyFine must not be negative", ErrValidation)
		}
		settings.FacultyDailyFine = *req.FacultyDailyFine
	}
	if req.StudentBorrowDays != nil {
		if *req.StudentBorrowDays < 1 {
			return nil, fmt.Errorf("%w: studentBorrowDays must be positive", ErrValidation)
		}
		settings.StudentBorrowDays = *req.StudentBorrowDays
	}
	if req.FacultyBorrowDays != nil {
		if *req.FacultyBorrowDays < 1 {
			return nil, fmt.Errorf("%w: facultyBorrowDays must be positive", ErrValidation)
		}
		settings.FacultyBorrowDays = *req.FacultyBorrowDays
	}

	if err := s.repo.UpdateSettings(ctx, settings); err != nil {
		return nil, fmt.Errorf("error updating settings: %w", err)
	}

	s.logActivity(ctx, actorID, "settings.update", "")

	return settings, nil
}

func (s *DefaultService) ActivityLogs(ctx context.Context, limit int) ([]models.ActivityLog, error) {
	logs, err := s.repo.ListActivityLogs(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("error listing activity logs: %w", err)
	}
	return logs, nil
}

// logActivity records an audit row. Failures are swallowed so logging can
// never fail the primary request.
func (s *DefaultService) logActivity(ctx context.Context, actorID, action, details string) {
	entry := &models.ActivityLog{
		Action: action,
	}
	if actorID != "" {
		entry.ActorID = sql.NullString{String: actorID, Valid: true}
	}
	if details != "" {
		entry.Details = sql.NullString{String: details, Valid: true}
	}

	if err := s.repo.InsertActivityLog(ctx, entry); err != nil {
		s.logger.Warn("Failed to insert activity log (%s): %v", action, err)
	}
}

// Helper methods
func (s *DefaultService) generateJWT(user *models.User) (string, error) {
	expirationTime := time.Now().Add(s.tokenDuration)

	claims := jwt.MapClaims{
		"sub":  user.ID, // subject
		"role": user.Role,
		"exp":  expirationTime.Unix(),
		"iat":  time.Now().Unix(), // issued at
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(s.jwtSecret)
}
