// Package stubserver is an in-memory reference implementation of the
// SeedKey backend REST contract, used by integration tests and local
// development. Challenge lifecycle (expiry, single use) and account state
// are enforced faithfully; signature verification is faked, since signing
// is the custodian's black box.
package stubserver

import (
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/mbessarab/seedkey-client-sdk/core"
)

// Config holds the stub backend's tunables.
type Config struct {
	// Domain is stamped into issued challenges.
	Domain string

	// ChallengeTTL bounds challenge validity. Default 2 minutes.
	ChallengeTTL time.Duration

	// TokenTTL bounds access token validity. Default 15 minutes.
	TokenTTL time.Duration

	// SigningKey signs issued tokens. A random key is generated when empty.
	SigningKey []byte
}

func (c Config) withDefaults() Config {
	if c.Domain == "" {
		c.Domain = "localhost"
	}
	if c.ChallengeTTL == 0 {
		c.ChallengeTTL = 2 * time.Minute
	}
	if c.TokenTTL == 0 {
		c.TokenTTL = 15 * time.Minute
	}
	if len(c.SigningKey) == 0 {
		c.SigningKey = []byte(uuid.New().String())
	}
	return c
}

type userRecord struct {
	id        string
	publicKey string
	createdAt time.Time
	lastLogin time.Time
}

type challengeRecord struct {
	challenge core.Challenge
	used      bool
}

// Server holds the in-memory backend state behind a gin router.
type Server struct {
	cfg    Config
	router *gin.Engine

	mu         sync.Mutex
	users      map[string]*userRecord      // keyed by public key
	challenges map[string]*challengeRecord // keyed by challenge id
	refreshIDs map[string]string           // refresh jti -> user id
}

// New creates a stub backend.
func New(cfg Config) *Server {
	s := &Server{
		cfg:        cfg.withDefaults(),
		router:     gin.New(),
		users:      make(map[string]*userRecord),
		challenges: make(map[string]*challengeRecord),
		refreshIDs: make(map[string]string),
	}

	api := s.router.Group("/api/v1/seedkey")
	{
		api.POST("/challenge", s.handleChallenge)
		api.POST("/register", s.handleRegister)
		api.POST("/verify", s.handleVerify)
		api.GET("/user", s.handleUser)
		api.POST("/logout", s.handleLogout)
		api.POST("/refresh", s.handleRefresh)
	}

	return s
}

// Router returns the gin router, which is an http.Handler.
func (s *Server) Router() *gin.Engine {
	return s.router
}

func fail(c *gin.Context, status int, code core.ErrorCode, message string) {
	c.JSON(status, gin.H{"error": code, "message": message})
}

func (s *Server) handleChallenge(c *gin.Context) {
	var req struct {
		PublicKey string               `json:"publicKey" binding:"required"`
		Action    core.ChallengeAction `json:"action" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, core.CodeInvalidChallenge, "invalid challenge request")
		return
	}
	if req.Action != core.ActionRegister && req.Action != core.ActionAuthenticate {
		fail(c, http.StatusBadRequest, core.CodeInvalidChallenge, "unknown action")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	_, exists := s.users[req.PublicKey]
	if req.Action == core.ActionRegister && exists {
		fail(c, http.StatusConflict, core.CodeUserExists, "account already registered for this key")
		return
	}
	if req.Action == core.ActionAuthenticate && !exists {
		fail(c, http.StatusNotFound, core.CodeUserNotFound, "no account for this key")
		return
	}

	now := time.Now()
	grant := core.ChallengeGrant{
		Challenge: core.Challenge{
			Nonce:     uuid.New().String(),
			Timestamp: now.UnixMilli(),
			Domain:    s.cfg.Domain,
			Action:    req.Action,
			ExpiresAt: now.Add(s.cfg.ChallengeTTL).UnixMilli(),
		},
		ChallengeID: uuid.New().String(),
	}
	s.challenges[grant.ChallengeID] = &challengeRecord{challenge: grant.Challenge}

	c.JSON(http.StatusOK, grant)
}

// consumeChallenge validates and burns a challenge record. Caller holds the
// lock.
func (s *Server) consumeChallenge(c *gin.Context, rec *challengeRecord, nonce string) bool {
	if rec == nil || rec.challenge.Nonce != nonce {
		fail(c, http.StatusBadRequest, core.CodeInvalidChallenge, "unknown challenge")
		return false
	}
	if rec.used {
		fail(c, http.StatusConflict, core.CodeNonceReused, "challenge already used")
		return false
	}
	if time.Now().UnixMilli() > rec.challenge.ExpiresAt {
		fail(c, http.StatusBadRequest, core.CodeChallengeExpired, "challenge expired")
		return false
	}
	rec.used = true
	return true
}

func (s *Server) findChallengeByNonce(nonce string) *challengeRecord {
	for _, rec := range s.challenges {
		if rec.challenge.Nonce == nonce {
			return rec
		}
	}
	return nil
}

func (s *Server) handleRegister(c *gin.Context) {
	var req core.RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, core.CodeInvalidChallenge, "invalid registration request")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.users[req.PublicKey]; exists {
		fail(c, http.StatusConflict, core.CodeUserExists, "account already registered for this key")
		return
	}
	if !s.consumeChallenge(c, s.findChallengeByNonce(req.Challenge.Nonce), req.Challenge.Nonce) {
		return
	}
	if req.Signature == "" {
		fail(c, http.StatusUnauthorized, core.CodeInvalidSignature, "missing signature")
		return
	}

	now := time.Now()
	user := &userRecord{
		id:        uuid.New().String(),
		publicKey: req.PublicKey,
		createdAt: now,
		lastLogin: now,
	}
	s.users[req.PublicKey] = user

	tokens, err := s.mintTokens(user.id)
	if err != nil {
		fail(c, http.StatusInternalServerError, core.CodeServerError, "failed to issue tokens")
		return
	}

	c.JSON(http.StatusOK, core.AuthResult{
		Success: true,
		Action:  core.ResultRegister,
		User:    profileOf(user),
		Token:   tokens,
	})
}

func (s *Server) handleVerify(c *gin.Context) {
	var req core.VerifyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, core.CodeInvalidChallenge, "invalid verification request")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	user, exists := s.users[req.PublicKey]
	if !exists {
		fail(c, http.StatusNotFound, core.CodeUserNotFound, "no account for this key")
		return
	}
	if !s.consumeChallenge(c, s.challenges[req.ChallengeID], req.Challenge.Nonce) {
		return
	}
	if req.Signature == "" {
		fail(c, http.StatusUnauthorized, core.CodeInvalidSignature, "missing signature")
		return
	}

	user.lastLogin = time.Now()

	tokens, err := s.mintTokens(user.id)
	if err != nil {
		fail(c, http.StatusInternalServerError, core.CodeServerError, "failed to issue tokens")
		return
	}

	c.JSON(http.StatusOK, core.AuthResult{
		Success: true,
		Action:  core.ResultLogin,
		User:    profileOf(user),
		Token:   tokens,
	})
}

func (s *Server) handleUser(c *gin.Context) {
	userID, ok := s.authenticate(c)
	if !ok {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, user := range s.users {
		if user.id == userID {
			c.JSON(http.StatusOK, gin.H{"user": profileOf(user)})
			return
		}
	}
	fail(c, http.StatusUnauthorized, core.CodeInvalidToken, "token subject no longer exists")
}

func (s *Server) handleLogout(c *gin.Context) {
	if _, ok := s.authenticate(c); !ok {
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

func (s *Server) handleRefresh(c *gin.Context) {
	var req struct {
		RefreshToken string `json:"refreshToken" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, core.CodeInvalidToken, "invalid refresh request")
		return
	}

	claims, err := s.parseToken(req.RefreshToken, "refresh")
	if err != nil {
		fail(c, http.StatusUnauthorized, core.CodeInvalidToken, "invalid refresh token")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	// Rotation: a refresh token is single use.
	userID, live := s.refreshIDs[claims.ID]
	if !live || userID != claims.Subject {
		fail(c, http.StatusUnauthorized, core.CodeInvalidToken, "refresh token already rotated")
		return
	}
	delete(s.refreshIDs, claims.ID)

	tokens, err := s.mintTokens(claims.Subject)
	if err != nil {
		fail(c, http.StatusInternalServerError, core.CodeServerError, "failed to issue tokens")
		return
	}

	c.JSON(http.StatusOK, tokens)
}

// authenticate validates the bearer header and returns the token subject.
func (s *Server) authenticate(c *gin.Context) (string, bool) {
	auth := c.GetHeader("Authorization")
	if !strings.HasPrefix(auth, "Bearer ") {
		fail(c, http.StatusUnauthorized, core.CodeInvalidToken, "invalid authorization header")
		return "", false
	}

	claims, err := s.parseToken(strings.TrimPrefix(auth, "Bearer "), "access")
	if err != nil {
		fail(c, http.StatusUnauthorized, core.CodeInvalidToken, "invalid access token")
		return "", false
	}
	return claims.Subject, true
}

type tokenClaims struct {
	jwt.RegisteredClaims
	TokenUse string `json:"use"`
}

// mintTokens issues a fresh access/refresh pair. Caller holds the lock.
func (s *Server) mintTokens(userID string) (*core.TokenInfo, error) {
	now := time.Now()

	accessClaims := tokenClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			ExpiresAt: jwt.NewNumericDate(now.Add(s.cfg.TokenTTL)),
			IssuedAt:  jwt.NewNumericDate(now),
			ID:        uuid.New().String(),
		},
		TokenUse: "access",
	}
	accessToken, err := jwt.NewWithClaims(jwt.SigningMethodHS256, accessClaims).SignedString(s.cfg.SigningKey)
	if err != nil {
		return nil, err
	}

	refreshID := uuid.New().String()
	refreshClaims := tokenClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			ExpiresAt: jwt.NewNumericDate(now.Add(30 * 24 * time.Hour)),
			IssuedAt:  jwt.NewNumericDate(now),
			ID:        refreshID,
		},
		TokenUse: "refresh",
	}
	refreshToken, err := jwt.NewWithClaims(jwt.SigningMethodHS256, refreshClaims).SignedString(s.cfg.SigningKey)
	if err != nil {
		return nil, err
	}
	s.refreshIDs[refreshID] = userID

	return &core.TokenInfo{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		ExpiresIn:    int64(s.cfg.TokenTTL.Seconds()),
	}, nil
}

func (s *Server) parseToken(raw, use string) (*tokenClaims, error) {
	claims := &tokenClaims{}
	_, err := jwt.ParseWithClaims(raw, claims, func(t *jwt.Token) (any, error) {
		if t.Method != jwt.SigningMethodHS256 {
			return nil, jwt.ErrSignatureInvalid
		}
		return s.cfg.SigningKey, nil
	})
	if err != nil {
		return nil, err
	}
	if claims.TokenUse != use {
		return nil, jwt.ErrTokenInvalidClaims
	}
	return claims, nil
}

func profileOf(user *userRecord) *core.UserProfile {
	return &core.UserProfile{
		ID:        user.id,
		PublicKey: user.publicKey,
		CreatedAt: user.createdAt.UTC().Format(time.RFC3339),
		LastLogin: user.lastLogin.UTC().Format(time.RFC3339),
	}
}
