package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/campusolx/backend/internal/auth"
	"github.com/campusolx/backend/internal/logger"
	"github.com/campusolx/backend/internal/model"
	"github.com/campusolx/backend/internal/repository"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const defaultUniversity = "Unknown University"

type TokenIssuer interface {
	Issue(subject string) (string, time.Time, error)
	Verify(token string) (string, error)
}

type GoogleVerifier interface {
	Verify(ctx context.Context, idToken string) (*auth.GoogleIdentity, error)
}

type RegisterInput struct {
	Email      string `json:"email" validate:"required,email,max=255"`
	Password   string `json:"password" validate:"required,min=8,max=72"`
	Name       string `json:"name" validate:"required,min=2,max=50"`
	University string `json:"university" validate:"max=100"`
}

type LoginInput struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type UpdateProfileInput struct {
	Name       *string `json:"name" validate:"omitempty,min=2,max=50"`
	University *string `json:"university" validate:"omitempty,max=100"`
}

type Session struct {
	User      model.User
	Token     string
	ExpiresAt time.Time
}

type IdentityService interface {
	Register(ctx context.Context, in RegisterInput) (*Session, error)
	Login(ctx context.Context, in LoginInput) (*Session, error)
	LoginWithGoogle(ctx context.Context, idToken string) (*Session, error)
	GoogleEnabled() bool
	Authenticate(ctx context.Context, token string) (Principal, error)
	OptionalAuthenticate(ctx context.Context, token string) Principal
	Profile(ctx context.Context, p Principal) (*model.User, error)
	UpdateProfile(ctx context.Context, p Principal, in UpdateProfileInput) (*model.User, error)
	PublicProfile(ctx context.Context, userID string) (*model.User, error)
}

type IdentityOption func(*identityService)

// WithFixtureResolver installs principals that bypass the user store.
func WithFixtureResolver(r PrincipalResolver) IdentityOption {
	return func(s *identityService) { s.fixtures = r }
}

func WithGoogleVerifier(v GoogleVerifier) IdentityOption {
	return func(s *identityService) { s.google = v }
}

// WithAdminEmail makes the account registered under email a moderator.
func WithAdminEmail(email string) IdentityOption {
	return func(s *identityService) { s.adminEmail = strings.ToLower(strings.TrimSpace(email)) }
}

// WithAllowedDomains accepts addresses under these domains as institutional.
func WithAllowedDomains(domains []string) IdentityOption {
	return func(s *identityService) {
		for _, d := range domains {
			d = strings.ToLower(strings.TrimSpace(d))
			if d != "" {
				s.extraDomains = append(s.extraDomains, strings.TrimPrefix(d, "@"))
			}
		}
	}
}

type identityService struct {
	users        repository.UserRepository
	tokens       TokenIssuer
	fixtures     PrincipalResolver
	google       GoogleVerifier
	adminEmail   string
	extraDomains []string
}

func NewIdentityService(users repository.UserRepository, tokens TokenIssuer, opts ...IdentityOption) IdentityService {
	s := &identityService{users: users, tokens: tokens}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// IsInstitutionalEmail accepts .edu addresses, addresses mentioning a
// university or college, and any configured extra domain.
func IsInstitutionalEmail(email string, extraDomains ...string) bool {
	email = strings.ToLower(strings.TrimSpace(email))
	at := strings.LastIndex(email, "@")
	if at < 0 {
		return false
	}
	if strings.HasSuffix(email, ".edu") || strings.Contains(email, "university") || strings.Contains(email, "college") {
		return true
	}
	domain := email[at+1:]
	for _, d := range extraDomains {
		if domain == d || strings.HasSuffix(domain, "."+d) {
			return true
		}
	}
	return false
}

func (s *identityService) Register(ctx context.Context, in RegisterInput) (*Session, error) {
	in.Email = strings.ToLower(strings.TrimSpace(in.Email))
	in.Name = strings.TrimSpace(in.Name)
	in.University = strings.TrimSpace(in.University)
	if err := validateStruct(in); err != nil {
		return nil, err
	}
	if !IsInstitutionalEmail(in.Email, s.extraDomains...) {
		return nil, Validation("university email required",
			FieldError{Field: "email", Message: "Must be a university email address"})
	}

	if _, err := s.users.FindByEmail(ctx, in.Email); err == nil {
		return nil, Conflict("user already exists", 0)
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	hash, err := auth.HashPassword(in.Password)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}
	if in.University == "" {
		in.University = defaultUniversity
	}
	u := &model.User{
		ID:           uuid.NewString(),
		Email:        in.Email,
		Name:         in.Name,
		University:   in.University,
		PasswordHash: hash,
		Moderator:    s.adminEmail != "" && in.Email == s.adminEmail,
	}
	if err := s.users.Create(ctx, u); err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, Conflict("user already exists", 0)
		}
		return nil, err
	}
	logger.FromContext(ctx).Info("user registered", zap.String("user_id", u.ID))
	return s.session(u)
}

func (s *identityService) Login(ctx context.Context, in LoginInput) (*Session, error) {
	in.Email = strings.ToLower(strings.TrimSpace(in.Email))
	if err := validateStruct(in); err != nil {
		return nil, err
	}
	u, err := s.users.FindByEmail(ctx, in.Email)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, Unauthenticated("invalid credentials")
		}
		return nil, err
	}
	if !auth.CheckPassword(u.PasswordHash, in.Password) {
		return nil, Unauthenticated("invalid credentials")
	}
	return s.session(u)
}

func (s *identityService) GoogleEnabled() bool {
	return s.google != nil
}

// LoginWithGoogle finds or creates a pre-verified account for a verified
// Google identity with an institutional address.
func (s *identityService) LoginWithGoogle(ctx context.Context, idToken string) (*Session, error) {
	if s.google == nil {
		return nil, NotFound("google sign-in is not enabled")
	}
	if strings.TrimSpace(idToken) == "" {
		return nil, Validation("id token required", FieldError{Field: "idToken", Message: "This field is required"})
	}
	id, err := s.google.Verify(ctx, idToken)
	if err != nil {
		return nil, ErrInvalidToken
	}
	if id.Email == "" || !id.EmailVerified {
		return nil, Unauthenticated("google account email is not verified")
	}
	if !IsInstitutionalEmail(id.Email, s.extraDomains...) {
		return nil, Validation("university email required",
			FieldError{Field: "email", Message: "Must be a university email address"})
	}

	u, err := s.users.FindByEmail(ctx, id.Email)
	if err == nil {
		return s.session(u)
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}
	name := strings.TrimSpace(id.Name)
	if name == "" {
		name = strings.SplitN(id.Email, "@", 2)[0]
	}
	u = &model.User{
		ID:         uuid.NewString(),
		Email:      id.Email,
		Name:       name,
		University: defaultUniversity,
		Verified:   true,
		Moderator:  s.adminEmail != "" && id.Email == s.adminEmail,
	}
	if err := s.users.Create(ctx, u); err != nil {
		if !errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, err
		}
		if u, err = s.users.FindByEmail(ctx, id.Email); err != nil {
			return nil, err
		}
	}
	return s.session(u)
}

func (s *identityService) session(u *model.User) (*Session, error) {
	token, exp, err := s.tokens.Issue(u.ID)
	if err != nil {
		return nil, err
	}
	return &Session{User: *u, Token: token, ExpiresAt: exp}, nil
}

func (s *identityService) Authenticate(ctx context.Context, token string) (Principal, error) {
	if token == "" {
		return Principal{}, ErrMissingToken
	}
	subject, err := s.tokens.Verify(token)
	if err != nil {
		return Principal{}, ErrInvalidToken
	}
	if s.fixtures != nil {
		if p, ok := s.fixtures.Resolve(ctx, subject); ok {
			return p, nil
		}
	}
	u, err := s.users.FindByID(ctx, subject)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return Principal{}, ErrUnknownUser
		}
		return Principal{}, err
	}
	return principalFromUser(u), nil
}

func (s *identityService) OptionalAuthenticate(ctx context.Context, token string) Principal {
	if token == "" {
		return Principal{}
	}
	p, err := s.Authenticate(ctx, token)
	if err != nil {
		return Principal{}
	}
	return p
}

func (s *identityService) Profile(ctx context.Context, p Principal) (*model.User, error) {
	u, err := s.users.FindByID(ctx, p.UserID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			// fixture principals have no stored row
			return &model.User{
				ID:         p.UserID,
				Email:      p.Email,
				Name:       p.Name,
				University: p.University,
				Verified:   p.Verified,
				Moderator:  p.Moderator,
			}, nil
		}
		return nil, err
	}
	return u, nil
}

func (s *identityService) UpdateProfile(ctx context.Context, p Principal, in UpdateProfileInput) (*model.User, error) {
	fields := map[string]any{}
	if in.Name != nil {
		name := strings.TrimSpace(*in.Name)
		in.Name = &name
		fields["name"] = name
	}
	if in.University != nil {
		uni := strings.TrimSpace(*in.University)
		in.University = &uni
		fields["university"] = uni
	}
	if err := validateStruct(in); err != nil {
		return nil, err
	}
	if _, err := s.users.FindByID(ctx, p.UserID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, NotFound("user not found")
		}
		return nil, err
	}
	if len(fields) > 0 {
		if err := s.users.Update(ctx, p.UserID, fields); err != nil {
			return nil, err
		}
	}
	return s.users.FindByID(ctx, p.UserID)
}

func (s *identityService) PublicProfile(ctx context.Context, userID string) (*model.User, error) {
	u, err := s.users.FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, NotFound("user not found")
		}
		return nil, err
	}
	return u, nil
}
