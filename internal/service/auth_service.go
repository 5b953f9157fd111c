package service

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/d60-Lab/ndrop/internal/model"
	"github.com/d60-Lab/ndrop/internal/repository"
	"github.com/d60-Lab/ndrop/pkg/apperr"
)

// ProfileUpdate 名片可编辑字段
type ProfileUpdate struct {
	Nickname         string   `json:"nickname"`
	Role             string   `json:"role"`
	Company          string   `json:"company"`
	WorkField        string   `json:"work_field"`
	InterestKeywords []string `json:"interest_keywords"`
	AvatarURL        string   `json:"avatar_url"`
}

// AuthService 身份网关的薄实现：注册/登录签发 JWT，资料读写
type AuthService interface {
	Register(ctx context.Context, email, password, nickname string) (*model.User, string, error)
	Login(ctx context.Context, email, password string) (*model.User, string, error)
	Me(ctx context.Context, userID string) (*model.User, error)
	UpdateProfile(ctx context.Context, userID string, upd ProfileUpdate) (*model.User, error)
}

type authService struct {
	userRepo  repository.UserRepository
	directory Directory
	jwtSecret []byte
	jwtTTL    time.Duration
}

func NewAuthService(userRepo repository.UserRepository, directory Directory, jwtSecret string, jwtTTL time.Duration) AuthService {
	if jwtTTL <= 0 {
		jwtTTL = 24 * time.Hour
	}
	return &authService{userRepo: userRepo, directory: directory, jwtSecret: []byte(jwtSecret), jwtTTL: jwtTTL}
}

func (s *authService) Register(ctx context.Context, email, password, nickname string) (*model.User, string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, "", apperr.Wrap(err, "hash password")
	}
	u := &model.User{
		ID:       uuid.New().String(),
		Email:    email,
		Password: string(hash),
		Nickname: nickname,
	}
	if err := s.userRepo.Create(ctx, u); err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, "", apperr.New(apperr.CodeConflict, "email already registered")
		}
		return nil, "", apperr.Wrap(err, "create user")
	}
	token, err := s.issueToken(u)
	if err != nil {
		return nil, "", err
	}
	return u, token, nil
}

func (s *authService) Login(ctx context.Context, email, password string) (*model.User, string, error) {
	u, err := s.userRepo.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, "", apperr.New(apperr.CodeUnauthorized, "invalid credentials")
		}
		return nil, "", apperr.Wrap(err, "load user")
	}
	if bcrypt.CompareHashAndPassword([]byte(u.Password), []byte(password)) != nil {
		return nil, "", apperr.New(apperr.CodeUnauthorized, "invalid credentials")
	}
	token, err := s.issueToken(u)
	if err != nil {
		return nil, "", err
	}
	return u, token, nil
}

func (s *authService) Me(ctx context.Context, userID string) (*model.User, error) {
	u, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.New(apperr.CodeNotFound, "user not found")
		}
		return nil, apperr.Wrap(err, "load user")
	}
	return u, nil
}

func (s *authService) UpdateProfile(ctx context.Context, userID string, upd ProfileUpdate) (*model.User, error) {
	u, err := s.Me(ctx, userID)
	if err != nil {
		return nil, err
	}
	if upd.Nickname != "" {
		u.Nickname = upd.Nickname
	}
	u.Role = upd.Role
	u.Company = upd.Company
	u.WorkField = upd.WorkField
	u.AvatarURL = upd.AvatarURL
	if upd.InterestKeywords != nil {
		raw, _ := json.Marshal(upd.InterestKeywords)
		u.InterestKeywords = datatypes.JSON(raw)
	}
	if err := s.userRepo.Update(ctx, u); err != nil {
		return nil, apperr.Wrap(err, "update user")
	}
	s.directory.InvalidateUser(ctx, userID)
	return u, nil
}

func (s *authService) issueToken(u *model.User) (string, error) {
	now := time.Now()
	claims := jwt.MapClaims{
		"sub":   u.ID,
		"admin": u.IsAdmin,
		"iat":   now.Unix(),
		"exp":   now.Add(s.jwtTTL).Unix(),
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.jwtSecret)
	if err != nil {
		return "", apperr.Wrap(err, "sign token")
	}
	return token, nil
}
