package server

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/nutrilog/backend/internal/auth"
	"github.com/nutrilog/backend/internal/extraction"
	"github.com/nutrilog/backend/internal/llm"
	"github.com/nutrilog/backend/internal/meals"
	"github.com/nutrilog/backend/internal/nutrition"
	"github.com/nutrilog/backend/internal/users"
)

const userIDContextKey = "nutrilog_user_id"

const llmProbeTimeout = 5 * time.Second

var (
	errMissingTokenManager = errors.New("token manager dependency required")
	errMissingUserService  = errors.New("user service dependency required")
	errMissingMealService  = errors.New("meal service dependency required")
)

// TokenManager issues and validates the API's bearer tokens.
type TokenManager interface {
	IssueToken(userID, email string) (string, int64, error)
	ValidateToken(token string) (auth.SessionClaims, error)
}

// Dependencies wires the HTTP boundary to the domain services.
type Dependencies struct {
	TokenManager   TokenManager
	UserService    *users.Service
	MealService    *meals.Service
	Generator      llm.Generator
	AllowedOrigins []string
	AuthRateLimit  rate.Limit
	AuthRateBurst  int
	Clock          func() time.Time
	Logger         *zap.Logger
}

// NewHTTPHandler builds the gin router with all API routes registered.
func NewHTTPHandler(deps Dependencies) (http.Handler, error) {
	if deps.TokenManager == nil {
		return nil, errMissingTokenManager
	}
	if deps.UserService == nil {
		return nil, errMissingUserService
	}
	if deps.MealService == nil {
		return nil, errMissingMealService
	}

	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}
	origins := deps.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	authLimit := deps.AuthRateLimit
	if authLimit == 0 {
		// Matches a 50-requests-per-15-minutes window.
		authLimit = rate.Every(18 * time.Second)
	}
	authBurst := deps.AuthRateBurst
	if authBurst == 0 {
		authBurst = 25
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(cors.New(cors.Config{
		AllowOrigins: origins,
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodOptions},
		AllowHeaders: []string{"Authorization", "Content-Type"},
		MaxAge:       12 * time.Hour,
	}))

	handler := &httpHandler{
		tokens:      deps.TokenManager,
		users:       deps.UserService,
		meals:       deps.MealService,
		generator:   deps.Generator,
		authLimiter: newClientLimiter(authLimit, authBurst),
		clock:       clock,
		logger:      logger,
	}

	router.GET("/health", handler.handleHealth)
	router.GET("/api/health", handler.handleHealth)
	router.GET("/api/health/llm", handler.handleLLMHealth)

	authRoutes := router.Group("/auth")
	authRoutes.Use(handler.rateLimitAuth)
	authRoutes.POST("/register", handler.handleRegister)
	authRoutes.POST("/login", handler.handleLogin)

	protected := router.Group("/api")
	protected.Use(handler.authorizeRequest)
	protected.GET("/profile", handler.handleGetProfile)
	protected.PUT("/profile", handler.handleUpdateProfile)
	protected.POST("/meals", handler.handleCreateMeal)
	protected.GET("/daily", handler.handleDaily)
	protected.GET("/days", handler.handleDays)
	protected.PATCH("/meals/:mealId/items/:itemId", handler.handleEditItem)

	return router, nil
}

type httpHandler struct {
	tokens      TokenManager
	users       *users.Service
	meals       *meals.Service
	generator   llm.Generator
	authLimiter *clientLimiter
	clock       func() time.Time
	logger      *zap.Logger
}

func (h *httpHandler) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"ok": true, "ts": h.clock().UTC().Format(time.RFC3339)})
}

func (h *httpHandler) handleLLMHealth(c *gin.Context) {
	if h.generator == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"ok": false, "error": "llm_unavailable"})
		return
	}
	ctx, cancel := context.WithTimeout(c.Request.Context(), llmProbeTimeout)
	defer cancel()
	if _, err := h.generator.Generate(ctx, "Respond with OK."); err != nil {
		h.logger.Warn("llm health probe failed", zap.Error(err))
		c.JSON(http.StatusServiceUnavailable, gin.H{"ok": false, "error": "llm_unavailable"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true, "provider": h.generator.Label()})
}

type profilePayload struct {
	FirstName    string   `json:"firstName"`
	LastName     string   `json:"lastName"`
	HeightUnit   string   `json:"heightUnit"`
	HeightValue  *float64 `json:"heightValue"`
	HeightFeet   *float64 `json:"heightFeet"`
	HeightInches *float64 `json:"heightInches"`
	WeightUnit   string   `json:"weightUnit"`
	WeightValue  *float64 `json:"weightValue"`
}

func (p profilePayload) heightInput() users.HeightInput {
	return users.HeightInput{
		Unit:   p.HeightUnit,
		Value:  p.HeightValue,
		Feet:   p.HeightFeet,
		Inches: p.HeightInches,
	}
}

func (p profilePayload) weightInput() users.WeightInput {
	return users.WeightInput{Unit: p.WeightUnit, Value: p.WeightValue}
}

type registerPayload struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	profilePayload
}

type loginPayload struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type sessionResponse struct {
	User        users.User `json:"user"`
	AccessToken string     `json:"accessToken"`
	ExpiresIn   int64      `json:"expiresIn"`
	TokenType   string     `json:"tokenType"`
}

func (h *httpHandler) handleRegister(c *gin.Context) {
	var payload registerPayload
	if err := c.ShouldBindJSON(&payload); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}

	user, err := h.users.Register(c.Request.Context(), users.RegisterRequest{
		Email:     payload.Email,
		Password:  payload.Password,
		FirstName: payload.FirstName,
		LastName:  payload.LastName,
		Height:    payload.heightInput(),
		Weight:    payload.weightInput(),
	})
	switch {
	case errors.Is(err, users.ErrCredentialsRequired):
		c.JSON(http.StatusBadRequest, gin.H{"error": "email_and_password_required"})
		return
	case errors.Is(err, users.ErrEmailTaken):
		c.JSON(http.StatusConflict, gin.H{"error": "email_taken"})
		return
	case err != nil:
		h.logger.Error("registration failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "server_error"})
		return
	}

	h.respondWithSession(c, user)
}

func (h *httpHandler) handleLogin(c *gin.Context) {
	var payload loginPayload
	if err := c.ShouldBindJSON(&payload); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}

	user, err := h.users.Authenticate(c.Request.Context(), payload.Email, payload.Password)
	if errors.Is(err, users.ErrInvalidCredentials) {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid_credentials"})
		return
	}
	if err != nil {
		h.logger.Error("login failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "server_error"})
		return
	}

	h.respondWithSession(c, user)
}

func (h *httpHandler) respondWithSession(c *gin.Context, user users.User) {
	token, expiresIn, err := h.tokens.IssueToken(user.ID, user.Email)
	if err != nil {
		h.logger.Error("failed to issue token", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "server_error"})
		return
	}
	c.JSON(http.StatusOK, sessionResponse{
		User:        user,
		AccessToken: token,
		ExpiresIn:   expiresIn,
		TokenType:   "Bearer",
	})
}

func (h *httpHandler) handleGetProfile(c *gin.Context) {
	user, err := h.users.Profile(c.Request.Context(), c.GetString(userIDContextKey))
	if errors.Is(err, users.ErrUserNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "user_not_found"})
		return
	}
	if err != nil {
		h.logger.Error("profile read failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "server_error"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"user": user})
}

func (h *httpHandler) handleUpdateProfile(c *gin.Context) {
	var payload profilePayload
	if err := c.ShouldBindJSON(&payload); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}

	user, err := h.users.UpdateProfile(c.Request.Context(), c.GetString(userIDContextKey), users.UpdateProfileRequest{
		FirstName: payload.FirstName,
		LastName:  payload.LastName,
		Height:    payload.heightInput(),
		Weight:    payload.weightInput(),
	})
	if errors.Is(err, users.ErrUserNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "user_not_found"})
		return
	}
	if err != nil {
		h.logger.Error("profile update failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "server_error"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"user": user})
}

type createMealPayload struct {
	Text            string `json:"text"`
	MealType        string `json:"mealType"`
	ConsumedAt      string `json:"consumedAt"`
	Date            string `json:"date"`
	TZOffsetMinutes int    `json:"tzOffsetMinutes"`
}

func (h *httpHandler) handleCreateMeal(c *gin.Context) {
	var payload createMealPayload
	if err := c.ShouldBindJSON(&payload); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}

	var consumedAt time.Time
	if strings.TrimSpace(payload.ConsumedAt) != "" {
		parsed, err := time.Parse(time.RFC3339, payload.ConsumedAt)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_consumed_at"})
			return
		}
		consumedAt = parsed
	}

	result, err := h.meals.Create(c.Request.Context(), meals.CreateRequest{
		UserID:          c.GetString(userIDContextKey),
		Text:            strings.TrimSpace(payload.Text),
		MealType:        payload.MealType,
		ConsumedAt:      consumedAt,
		Date:            payload.Date,
		TZOffsetMinutes: payload.TZOffsetMinutes,
	})
	switch {
	case errors.Is(err, meals.ErrTextRequired):
		c.JSON(http.StatusBadRequest, gin.H{"error": "text_required"})
		return
	case errors.Is(err, extraction.ErrNoFoods):
		c.JSON(http.StatusBadRequest, gin.H{"error": "no_identifiable_foods"})
		return
	case err != nil && isInvalidDate(err):
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_date"})
		return
	case err != nil:
		h.logger.Error("meal creation failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "server_error"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"meal": result.Meal, "day": result.Day})
}

func (h *httpHandler) handleDaily(c *gin.Context) {
	tzOffset, ok := parseTZOffset(c)
	if !ok {
		return
	}

	summary, err := h.meals.Daily(c.Request.Context(), c.GetString(userIDContextKey), c.Query("date"), tzOffset)
	if err != nil {
		if isInvalidDate(err) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_date"})
			return
		}
		h.logger.Error("daily summary failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "server_error"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"day":   meals.DayTotals{Date: summary.Date, Totals: summary.Totals},
		"meals": summary.Meals,
	})
}

func (h *httpHandler) handleDays(c *gin.Context) {
	days, err := h.meals.Range(c.Request.Context(), c.GetString(userIDContextKey), c.Query("start"), c.Query("end"))
	if errors.Is(err, meals.ErrStartRequired) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "start_required"})
		return
	}
	if err != nil {
		if isInvalidDate(err) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_date"})
			return
		}
		h.logger.Error("day range failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "server_error"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"days": days})
}

func (h *httpHandler) handleEditItem(c *gin.Context) {
	var payload map[string]float64
	if err := c.ShouldBindJSON(&payload); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}

	result, err := h.meals.EditItem(c.Request.Context(), meals.EditItemRequest{
		UserID:    c.GetString(userIDContextKey),
		MealID:    c.Param("mealId"),
		ItemID:    c.Param("itemId"),
		Nutrients: nutrition.Normalize(payload),
	})
	switch {
	case errors.Is(err, meals.ErrMealNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "meal_not_found"})
		return
	case errors.Is(err, meals.ErrItemNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "item_not_found"})
		return
	case err != nil:
		h.logger.Error("item edit failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "server_error"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"ok": true, "mealTotals": result.MealTotals, "day": result.Day})
}

func (h *httpHandler) rateLimitAuth(c *gin.Context) {
	if !h.authLimiter.allow(c.ClientIP()) {
		c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "rate_limited"})
		return
	}
	c.Next()
}

func (h *httpHandler) authorizeRequest(c *gin.Context) {
	header := c.GetHeader("Authorization")
	if !strings.HasPrefix(header, "Bearer ") {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}
	token := strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))
	if token == "" {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}
	claims, err := h.tokens.ValidateToken(token)
	if err != nil {
		h.logger.Warn("token validation failed", zap.Error(err))
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}
	c.Set(userIDContextKey, claims.Subject)
	c.Next()
}

// isInvalidDate matches service errors raised while parsing a client date.
func isInvalidDate(err error) bool {
	var serviceErr *meals.ServiceError
	if !errors.As(err, &serviceErr) {
		return false
	}
	return strings.HasSuffix(serviceErr.Code(), "invalid_date") ||
		strings.HasSuffix(serviceErr.Code(), "invalid_start") ||
		strings.HasSuffix(serviceErr.Code(), "invalid_end")
}

func parseTZOffset(c *gin.Context) (int, bool) {
	raw := c.Query("tzOffsetMinutes")
	if raw == "" {
		return 0, true
	}
	offset, err := strconv.Atoi(raw)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_tz_offset"})
		return 0, false
	}
	return offset, true
}
