package pkg

import (
	"errors"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

var (
	ErrTokenExpired      = errors.New("token expired")
	ErrTokenInvalid      = errors.New("token invalid")
	ErrRefreshExpired    = errors.New("refresh expired")
	ErrRefreshInvalid    = errors.New("refresh invalid")
	ErrTokenParseFailure = errors.New("token parse failure")
	ErrAssertionInvalid  = errors.New("identity assertion invalid")
)

const (
	AccessTTL  = time.Minute * 30
	RefreshTTL = time.Hour * 24
	// IdentityMaxAge 身份断言自签发起的最长可用时间
	IdentityMaxAge = time.Minute * 10
)

// Principal 会话令牌里携带的用户信息
type Principal struct {
	UID     string `json:"uid"`
	Email   string `json:"email,omitempty"`
	Name    string `json:"name,omitempty"`
	Picture string `json:"picture,omitempty"`
}

type Claims struct {
	Principal
	jwt.RegisteredClaims
}

type Pair struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	// RefreshID refresh token 的 jti，会话存储据此判断 refresh 是否仍属于当前会话
	RefreshID string `json:"-"`
}

// IdentityClaims 上游身份提供方签发的断言
type IdentityClaims struct {
	UID     string `json:"uid"`
	Email   string `json:"email"`
	Name    string `json:"name"`
	Picture string `json:"picture"`
	jwt.RegisteredClaims
}

// TokenIssuer 签发和校验会话令牌，密钥来自配置
type TokenIssuer struct {
	AccessSecret   []byte
	RefreshSecret  []byte
	IdentitySecret []byte
	now            func() time.Time
}

func NewTokenIssuer(access, refresh, identity string) *TokenIssuer {
	return &TokenIssuer{
		AccessSecret:   []byte(access),
		RefreshSecret:  []byte(refresh),
		IdentitySecret: []byte(identity),
		now:            time.Now,
	}
}

func (t *TokenIssuer) GeneratePair(p Principal) (*Pair, error) {
	now := t.now()

	access := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		Principal: p,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(AccessTTL)),
			Subject:   "access",
			ID:        uuid.NewString(),
		},
	})
	accessToken, err := access.SignedString(t.AccessSecret)
	if err != nil {
		return nil, err
	}

	refreshID := uuid.NewString()
	refresh := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		Principal: p,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(RefreshTTL)),
			Subject:   "refresh",
			ID:        refreshID,
		},
	})
	refreshToken, err := refresh.SignedString(t.RefreshSecret)
	if err != nil {
		return nil, err
	}

	return &Pair{AccessToken: accessToken, RefreshToken: refreshToken, RefreshID: refreshID}, nil
}

// ParseAccess 解析 access
func (t *TokenIssuer) ParseAccess(tokenStr string) (*Claims, error) {
	claims, err := parse(tokenStr, t.AccessSecret, "access")
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrTokenExpired
		}
		return nil, ErrTokenInvalid
	}
	return claims, nil
}

// ParseRefresh 解析 refresh，调用方负责重新签发
func (t *TokenIssuer) ParseRefresh(refreshToken string) (*Claims, error) {
	claims, err := parse(refreshToken, t.RefreshSecret, "refresh")
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrRefreshExpired
		}
		return nil, ErrRefreshInvalid
	}
	return claims, nil
}

func parse(tokenStr string, secret []byte, subject string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenStr, &Claims{}, func(*jwt.Token) (any, error) {
		return secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithSubject(subject))
	if err != nil {
		return nil, err
	}
	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid || claims.UID == "" {
		return nil, ErrTokenParseFailure
	}
	return claims, nil
}

// ParseIdentity 校验上游身份断言；必须带 exp 和 iat，且签发不超过 IdentityMaxAge。
// 没有名字时用邮箱前缀
func (t *TokenIssuer) ParseIdentity(assertion string) (*IdentityClaims, error) {
	token, err := jwt.ParseWithClaims(assertion, &IdentityClaims{}, func(*jwt.Token) (any, error) {
		return t.IdentitySecret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithIssuedAt(),
		jwt.WithTimeFunc(t.now),
	)
	if err != nil {
		return nil, ErrAssertionInvalid
	}
	claims, ok := token.Claims.(*IdentityClaims)
	if !ok || !token.Valid || claims.UID == "" || claims.IssuedAt == nil {
		return nil, ErrAssertionInvalid
	}
	if t.now().Sub(claims.IssuedAt.Time) > IdentityMaxAge {
		return nil, ErrAssertionInvalid
	}
	if claims.Name == "" {
		claims.Name, _, _ = strings.Cut(claims.Email, "@")
	}
	return claims, nil
}

// SignIdentity 签发身份断言，本地开发和测试使用
func (t *TokenIssuer) SignIdentity(c IdentityClaims) (string, error) {
	if c.IssuedAt == nil {
		c.IssuedAt = jwt.NewNumericDate(t.now())
	}
	if c.ExpiresAt == nil {
		c.ExpiresAt = jwt.NewNumericDate(t.now().Add(5 * time.Minute))
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, c).SignedString(t.IdentitySecret)
}
