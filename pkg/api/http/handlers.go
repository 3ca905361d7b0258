package http

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/omokpang/omokpang/internal/application/account"
	"github.com/omokpang/omokpang/internal/domain/game"
	"github.com/omokpang/omokpang/internal/domain/user"
)

// Accounts registers and authenticates players
type Accounts interface {
	Signup(ctx context.Context, nickname, password string) (*user.User, error)
	Login(ctx context.Context, nickname, password string) (*user.User, error)
}

// Ranking serves the leaderboard and public profiles
type Ranking interface {
	Top(ctx context.Context, limit int) ([]*user.User, error)
	Profile(ctx context.Context, nickname string) (*user.User, error)
}

// Cards deals cards and sells rerolls
type Cards interface {
	DrawTwo() []game.CardType
	Reroll(ctx context.Context, nickname string) (game.CardType, error)
	RerollCost() int
	Catalog() []game.CardInfo
}

// RoomCounter reports the number of live rooms
type RoomCounter interface {
	ActiveRooms() int
}

// AuthRequest is the body of signup and login
type AuthRequest struct {
	Nickname string `json:"nickname" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// RerollRequest is the body of a card reroll
type RerollRequest struct {
	Nickname string `json:"nickname" binding:"required"`
}

// RankingEntry is one leaderboard line
type RankingEntry struct {
	Rank     int    `json:"rank"`
	Nickname string `json:"nickname"`
	Wins     int    `json:"wins"`
	Losses   int    `json:"losses"`
	Points   int    `json:"points"`
}

// ErrorResponse represents an error response
type ErrorResponse struct {
	Error ErrorDetail `json:"error"`
}

// ErrorDetail represents error details
type ErrorDetail struct {
	Code    string      `json:"code"`
	Message string      `json:"message"`
	Details interface{} `json:"details,omitempty"`
}

func abortWithError(c *gin.Context, status int, code, message string) {
	c.AbortWithStatusJSON(status, ErrorResponse{
		Error: ErrorDetail{
			Code:    code,
			Message: message,
		},
	})
}

// writeDomainError maps service errors to status codes
func (s *Server) writeDomainError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, user.ErrNicknameTaken):
		abortWithError(c, http.StatusConflict, "NICKNAME_TAKEN", "nickname already taken")
	case errors.Is(err, account.ErrInvalidInput):
		abortWithError(c, http.StatusBadRequest, "INVALID_INPUT", err.Error())
	case errors.Is(err, account.ErrInvalidCredentials):
		abortWithError(c, http.StatusUnauthorized, "INVALID_CREDENTIALS", "invalid nickname or password")
	case errors.Is(err, user.ErrUserNotFound):
		abortWithError(c, http.StatusNotFound, "NOT_FOUND", "user not found")
	case errors.Is(err, game.ErrRoomNotFound):
		abortWithError(c, http.StatusNotFound, "NOT_FOUND", "room not found")
	case errors.Is(err, account.ErrInsufficientPoints):
		abortWithError(c, http.StatusPaymentRequired, "INSUFFICIENT_POINTS", "not enough points")
	default:
		s.logger.Error("request failed",
			zap.String("path", c.FullPath()),
			zap.Error(err))
		abortWithError(c, http.StatusInternalServerError, "INTERNAL", "internal server error")
	}
}

// handleHealth handles health check requests
func (s *Server) handleHealth(c *gin.Context) {
	checks := gin.H{"rooms": "ok"}
	if s.counter != nil {
		checks["active_rooms"] = s.counter.ActiveRooms()
	}
	c.JSON(http.StatusOK, gin.H{
		"status":    "healthy",
		"timestamp": time.Now().UTC(),
		"checks":    checks,
	})
}

func (s *Server) handleSignup(c *gin.Context) {
	var req AuthRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, http.StatusBadRequest, "INVALID_REQUEST", err.Error())
		return
	}

	u, err := s.accounts.Signup(c.Request.Context(), req.Nickname, req.Password)
	if err != nil {
		s.writeDomainError(c, err)
		return
	}

	c.JSON(http.StatusCreated, u)
}

func (s *Server) handleLogin(c *gin.Context) {
	var req AuthRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, http.StatusBadRequest, "INVALID_REQUEST", err.Error())
		return
	}

	u, err := s.accounts.Login(c.Request.Context(), req.Nickname, req.Password)
	if err != nil {
		s.writeDomainError(c, err)
		return
	}

	c.JSON(http.StatusOK, u)
}

// handleRanking serves the leaderboard. ?limit defaults to 50, max 100.
func (s *Server) handleRanking(c *gin.Context) {
	limit := 0
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			abortWithError(c, http.StatusBadRequest, "INVALID_REQUEST", "limit must be an integer")
			return
		}
		limit = n
	}

	users, err := s.ranking.Top(c.Request.Context(), limit)
	if err != nil {
		s.writeDomainError(c, err)
		return
	}

	entries := make([]RankingEntry, len(users))
	for i, u := range users {
		entries[i] = RankingEntry{
			Rank:     i + 1,
			Nickname: u.Nickname,
			Wins:     u.Wins,
			Losses:   u.Losses,
			Points:   u.Points,
		}
	}

	c.JSON(http.StatusOK, gin.H{
		"ranking": entries,
		"total":   len(entries),
	})
}

func (s *Server) handleGetUser(c *gin.Context) {
	u, err := s.ranking.Profile(c.Request.Context(), c.Param("nickname"))
	if err != nil {
		s.writeDomainError(c, err)
		return
	}
	c.JSON(http.StatusOK, u)
}

func (s *Server) handleCatalog(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"cards":       s.cards.Catalog(),
		"reroll_cost": s.cards.RerollCost(),
	})
}

func (s *Server) handleDraw(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"cards": s.cards.DrawTwo(),
	})
}

// handleReroll charges the reroll cost and returns the new card with the
// remaining balance.
func (s *Server) handleReroll(c *gin.Context) {
	var req RerollRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, http.StatusBadRequest, "INVALID_REQUEST", err.Error())
		return
	}

	ctx := c.Request.Context()
	if _, err := s.ranking.Profile(ctx, req.Nickname); err != nil {
		s.writeDomainError(c, err)
		return
	}

	card, err := s.cards.Reroll(ctx, req.Nickname)
	if err != nil {
		s.writeDomainError(c, err)
		return
	}

	resp := gin.H{"card": card, "cost": s.cards.RerollCost()}
	if u, err := s.ranking.Profile(ctx, req.Nickname); err == nil {
		resp["points"] = u.Points
	}
	c.JSON(http.StatusOK, resp)
}

func (s *Server) handleListRooms(c *gin.Context) {
	rooms, err := s.rooms.List(c.Request.Context())
	if err != nil {
		s.writeDomainError(c, err)
		return
	}

	views := make([]*game.RoomSnapshot, len(rooms))
	for i, r := range rooms {
		views[i] = r.Public()
	}

	c.JSON(http.StatusOK, gin.H{
		"rooms": views,
		"total": len(views),
	})
}

func (s *Server) handleGetRoom(c *gin.Context) {
	snap, err := s.rooms.Load(c.Request.Context(), c.Param("id"))
	if err != nil {
		s.writeDomainError(c, err)
		return
	}
	c.JSON(http.StatusOK, snap.Public())
}
