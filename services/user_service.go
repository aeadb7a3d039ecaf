package services

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/golang/glog"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
	"photohunter/models"
	"photohunter/repository"
	apierrors "photohunter/utils/errors"
)

const mailTimeout = 30 * time.Second

var ErrOAuthUnavailable = apierrors.NewAPIError("OAUTH_UNAVAILABLE", "Google login is not configured", http.StatusServiceUnavailable)

type UserServiceDeps struct {
	Users     repository.UserRepository
	Locations repository.LocationRepository
	Tokens    *TokenService
	Mailer    Mailer
	// OAuth may be nil, which disables Google login.
	OAuth OAuthProvider

	RequireEmailVerification bool
	// BaseURL prefixes the links sent by mail.
	BaseURL string
}

type UserService struct {
	users     repository.UserRepository
	locations repository.LocationRepository
	tokens    *TokenService
	mailer    Mailer
	oauth     OAuthProvider

	requireVerification bool
	baseURL             string

	// compareHash is bcrypt.CompareHashAndPassword outside of tests.
	compareHash func(hash, pw []byte) error

	mails sync.WaitGroup
}

func NewUserService(deps UserServiceDeps) *UserService {
	return &UserService{
		users:               deps.Users,
		locations:           deps.Locations,
		tokens:              deps.Tokens,
		mailer:              deps.Mailer,
		oauth:               deps.OAuth,
		requireVerification: deps.RequireEmailVerification,
		baseURL:             strings.TrimSuffix(deps.BaseURL, "/"),
		compareHash:         bcrypt.CompareHashAndPassword,
	}
}

func internalError(err error) error {
	return apierrors.Wrap(err, apierrors.ErrInternal.Code, apierrors.ErrInternal.Message, apierrors.ErrInternal.Status)
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// Register creates a password account. When email verification is
// required the account starts disabled and a verification mail is sent.
func (s *UserService) Register(ctx context.Context, dto models.UserCreationDto) (models.UserDto, error) {
	dto.Email = normalizeEmail(dto.Email)
	dto.Name = strings.TrimSpace(dto.Name)
	if err := validateStruct(dto); err != nil {
		return models.UserDto{}, err
	}

	exists, err := s.users.ExistsByEmail(ctx, dto.Email)
	if err != nil {
		return models.UserDto{}, internalError(err)
	}
	if exists {
		return models.UserDto{}, apierrors.ErrEmailTaken
	}

	hash, err := HashPassword(dto.Password)
	if err != nil {
		return models.UserDto{}, internalError(err)
	}

	user := models.User{
		Email:               dto.Email,
		PasswordHash:        hash,
		FullName:            dto.Name,
		Role:                models.RoleUser,
		Enabled:             !s.requireVerification,
		FavoriteLocationIDs: []string{},
	}
	if err := s.users.Create(ctx, &user); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return models.UserDto{}, apierrors.ErrEmailTaken
		}
		return models.UserDto{}, internalError(err)
	}
	glog.Infof("Registered user %s", user.ID)

	if s.requireVerification {
		s.sendVerification(user)
	}
	return ToUserDto(user), nil
}

// Login checks the credentials and returns a signed token. Every failure
// is reported as the same bad login error.
func (s *UserService) Login(ctx context.Context, dto models.UserLoginDto) (models.LoginJWTDto, error) {
	user, err := s.users.FindByEmail(ctx, normalizeEmail(dto.Email))
	// Unknown and Google-only accounts are compared against the decoy so
	// the response time does not reveal which emails are registered.
	switch {
	case errors.Is(err, repository.ErrNotFound):
		s.passwordMatches("", dto.Password)
		return models.LoginJWTDto{}, apierrors.ErrBadLogin
	case err != nil:
		return models.LoginJWTDto{}, internalError(err)
	}
	if !s.passwordMatches(user.PasswordHash, dto.Password) || !user.Enabled {
		return models.LoginJWTDto{}, apierrors.ErrBadLogin
	}
	return s.issueToken(user)
}

func (s *UserService) passwordMatches(hash, pw string) bool {
	if hash == "" {
		s.compareHash(decoyHash(), []byte(pw))
		return false
	}
	return s.compareHash([]byte(hash), []byte(pw)) == nil
}

func (s *UserService) issueToken(user models.User) (models.LoginJWTDto, error) {
	token, err := s.tokens.CreateToken(user)
	if err != nil {
		return models.LoginJWTDto{}, internalError(err)
	}
	return models.LoginJWTDto{JWT: token}, nil
}

// GoogleAuthURL returns the consent page URL. The state is handed to the
// client, which checks it when Google redirects back.
func (s *UserService) GoogleAuthURL() (models.AuthURLDto, error) {
	if s.oauth == nil {
		return models.AuthURLDto{}, ErrOAuthUnavailable
	}
	return models.AuthURLDto{URL: s.oauth.AuthCodeURL(uuid.New().String())}, nil
}

func (s *UserService) LoginWithGoogleCode(ctx context.Context, dto models.GoogleCodeDto) (models.LoginJWTDto, error) {
	if s.oauth == nil {
		return models.LoginJWTDto{}, ErrOAuthUnavailable
	}
	if err := validateStruct(dto); err != nil {
		return models.LoginJWTDto{}, err
	}

	profile, tokens, err := s.oauth.Exchange(ctx, dto.Code)
	if err != nil {
		glog.Warningf("Google code exchange failed: %v", err)
		return models.LoginJWTDto{}, apierrors.NewAPIError("OAUTH_FAILED", "Google login failed", http.StatusBadRequest, err.Error())
	}

	user, err := s.LoginWithGoogle(ctx, profile, tokens)
	if err != nil {
		return models.LoginJWTDto{}, err
	}
	if !user.Enabled {
		return models.LoginJWTDto{}, apierrors.ErrBadLogin
	}
	return s.issueToken(user)
}

// LoginWithGoogle returns the account registered under the profile's email,
// creating it on first login. Existing accounts are returned unchanged.
func (s *UserService) LoginWithGoogle(ctx context.Context, profile models.GoogleProfile, tokens models.GoogleTokens) (models.User, error) {
	email := normalizeEmail(profile.Email)
	if email == "" {
		return models.User{}, apierrors.Validation("email is required")
	}

	user, err := s.users.FindByEmail(ctx, email)
	if err == nil {
		return user, nil
	}
	if !errors.Is(err, repository.ErrNotFound) {
		return models.User{}, internalError(err)
	}

	user = models.User{
		Email:               email,
		FullName:            profile.Name,
		AvatarURL:           profile.Picture,
		Role:                models.RoleUser,
		Enabled:             profile.VerifiedEmail,
		GoogleAccessToken:   tokens.AccessToken,
		GoogleRefreshToken:  tokens.RefreshToken,
		FavoriteLocationIDs: []string{},
	}
	if err := s.users.Create(ctx, &user); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			// Created concurrently by another login.
			existing, ferr := s.users.FindByEmail(ctx, email)
			if ferr != nil {
				return models.User{}, internalError(ferr)
			}
			return existing, nil
		}
		return models.User{}, internalError(err)
	}
	glog.Infof("Created user %s from Google login", user.ID)
	return user, nil
}

// CurrentUser resolves the subject of a login token.
func (s *UserService) CurrentUser(ctx context.Context, email string) (models.User, error) {
	user, err := s.users.FindByEmail(ctx, email)
	if errors.Is(err, repository.ErrNotFound) {
		return models.User{}, apierrors.ErrUnauthorized
	}
	if err != nil {
		return models.User{}, internalError(err)
	}
	return user, nil
}

// Profile lists the locations user owns and the ones they favorited.
func (s *UserService) Profile(ctx context.Context, user models.User) (models.ProfileDto, error) {
	owned, err := s.locations.FindByOwner(ctx, user.ID)
	if err != nil {
		return models.ProfileDto{}, internalError(err)
	}
	favorites, err := s.locations.FindByIDs(ctx, user.FavoriteLocationIDs)
	if err != nil {
		return models.ProfileDto{}, internalError(err)
	}

	ownedDtos, err := mapLocations(ctx, s.users, owned, &user)
	if err != nil {
		return models.ProfileDto{}, internalError(err)
	}
	favoriteDtos, err := mapLocations(ctx, s.users, favorites, &user)
	if err != nil {
		return models.ProfileDto{}, internalError(err)
	}

	return models.ProfileDto{
		User:      ToUserDto(user),
		Locations: ownedDtos,
		Favorites: favoriteDtos,
	}, nil
}

func (s *UserService) AddFavorite(ctx context.Context, user models.User, locationID string) (models.ProfileDto, error) {
	return s.updateFavorites(ctx, user, locationID, s.users.AddFavorite)
}

func (s *UserService) RemoveFavorite(ctx context.Context, user models.User, locationID string) (models.ProfileDto, error) {
	return s.updateFavorites(ctx, user, locationID, s.users.RemoveFavorite)
}

func (s *UserService) updateFavorites(ctx context.Context, user models.User, locationID string, apply func(context.Context, string, string) error) (models.ProfileDto, error) {
	if _, err := s.locations.FindByID(ctx, locationID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return models.ProfileDto{}, apierrors.ErrLocationNotFound
		}
		return models.ProfileDto{}, internalError(err)
	}
	if err := apply(ctx, user.ID, locationID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return models.ProfileDto{}, apierrors.ErrUserNotFound
		}
		return models.ProfileDto{}, internalError(err)
	}

	refreshed, err := s.users.FindByID(ctx, user.ID)
	if err != nil {
		return models.ProfileDto{}, internalError(err)
	}
	return s.Profile(ctx, refreshed)
}

// SendEmailVerification mails a new verification link to a disabled
// account. Unknown and already enabled accounts are silently skipped.
func (s *UserService) SendEmailVerification(ctx context.Context, dto models.SendEmailVerificationDto) error {
	if err := validateStruct(dto); err != nil {
		return err
	}
	user, err := s.users.FindByEmail(ctx, normalizeEmail(dto.Email))
	if errors.Is(err, repository.ErrNotFound) {
		return nil
	}
	if err != nil {
		return internalError(err)
	}
	if !user.Enabled {
		s.sendVerification(user)
	}
	return nil
}

func (s *UserService) VerifyEmail(ctx context.Context, token string) (models.UserDto, error) {
	email, err := s.tokens.ParseVerificationToken(token)
	if err != nil {
		return models.UserDto{}, apierrors.ErrBadToken
	}
	user, err := s.users.FindByEmail(ctx, email)
	if errors.Is(err, repository.ErrNotFound) {
		return models.UserDto{}, apierrors.ErrUserNotFound
	}
	if err != nil {
		return models.UserDto{}, internalError(err)
	}
	if !user.Enabled {
		if err := s.users.SetEnabled(ctx, user.ID, true); err != nil {
			return models.UserDto{}, internalError(err)
		}
		glog.Infof("Enabled user %s", user.ID)
	}
	return ToUserDto(user), nil
}

// sendVerification mails in the background; failures are only logged.
func (s *UserService) sendVerification(user models.User) {
	if s.mailer == nil {
		glog.Warningf("No mailer configured, user %s gets no verification link", user.ID)
		return
	}
	token, err := s.tokens.CreateVerificationToken(user.Email)
	if err != nil {
		glog.Errorf("Failed to create verification token for user %s: %v", user.ID, err)
		return
	}
	link := s.baseURL + "/user/verify?token=" + url.QueryEscape(token)

	s.mails.Add(1)
	go func() {
		defer s.mails.Done()
		ctx, cancel := context.WithTimeout(context.Background(), mailTimeout)
		defer cancel()
		if err := s.mailer.SendVerificationEmail(ctx, user, link); err != nil {
			glog.Errorf("Failed to send verification mail to user %s: %v", user.ID, err)
		}
	}()
}

// Wait blocks until every pending mail has been handed off.
func (s *UserService) Wait() {
	s.mails.Wait()
}
