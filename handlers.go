package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"sms-ledger/internal/analytics"
	"sms-ledger/internal/domain"
	"sms-ledger/internal/ingest"
	"sms-ledger/internal/logger"
	"sms-ledger/internal/message"
)

const (
	// maxBodyBytes caps every JSON request body.
	maxBodyBytes = 64 << 10
	// maxMessageLength caps submitted message text, well above a
	// concatenated SMS.
	maxMessageLength = 4096
)

// server holds the dependencies shared by the HTTP handlers.
type server struct {
	store         Store
	cache         *responseCache
	pipeline      *ingest.Pipeline
	defaultPeriod int
	now           func() time.Time
}

func newServer(store Store, cache *responseCache, log zerolog.Logger, defaultPeriod int) *server {
	s := &server{
		store:         store,
		cache:         cache,
		defaultPeriod: defaultPeriod,
		now:           time.Now,
	}
	s.pipeline = ingest.NewPipeline(store, log,
		ingest.WithClock(func() time.Time { return s.now() }),
		ingest.WithStoredHook(func(ctx context.Context, _ domain.Transaction) {
			s.cache.invalidate(ctx)
		}),
	)
	return s
}

// routes registers every endpoint on r.
func (s *server) routes(r *gin.Engine) {
	r.GET("/health", s.healthCheck)

	api := r.Group("/api")
	api.GET("/transactions", s.getTransactions)
	api.POST("/transactions", s.addTransaction)
	api.POST("/parse-message", s.parseMessage)
	api.POST("/ingest", s.ingestMessage)
	api.POST("/classify", s.classifyMessage)
	api.GET("/analytics", s.getAnalytics)
	api.GET("/settings", s.getSettings)
	api.POST("/settings", s.updateSettings)
	api.GET("/categories", s.getCategories)
}

// healthCheck handles the health check endpoint
func (s *server) healthCheck(c *gin.Context) {
	if err := s.store.Ping(c.Request.Context()); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"status": "unhealthy",
			"error":  err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status":  "healthy",
		"service": "sms-ledger",
	})
}

// getTransactions lists transactions, newest first, with optional category,
// type and limit filters.
func (s *server) getTransactions(c *gin.Context) {
	ctx := c.Request.Context()

	var filter transactionFilter
	if raw := c.Query("category"); raw != "" {
		category, ok := domain.ParseCategory(raw)
		if !ok {
			c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("unknown category %q", raw)})
			return
		}
		filter.Category = category
	}
	if raw := c.Query("type"); raw != "" {
		direction, err := domain.ParseDirection(raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		filter.Direction = direction
	}
	filter.Limit = defaultListLimit
	if raw := c.Query("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit < 1 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be a positive number"})
			return
		}
		filter.Limit = clampLimit(limit)
	}

	field := fmt.Sprintf("%s|%s|%d", filter.Category, filter.Direction, filter.Limit)
	var resp transactionsResponse
	if s.cache.get(ctx, transactionsCacheKey, field, &resp) {
		c.JSON(http.StatusOK, resp)
		return
	}

	transactions, err := s.store.ListTransactions(ctx, filter)
	if err != nil {
		s.internalError(c, "Failed to fetch transactions", err)
		return
	}

	resp = transactionsResponse{Transactions: transactions}
	s.cache.set(ctx, transactionsCacheKey, field, resp, transactionsCacheTTL)
	c.JSON(http.StatusOK, resp)
}

// addTransaction records a manually entered transaction.
func (s *server) addTransaction(c *gin.Context) {
	var req manualTransactionRequest
	if !bindJSON(c, &req) {
		return
	}
	if req.Amount.IsZero() || strings.TrimSpace(req.TransactionType) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Amount and transaction type are required"})
		return
	}
	direction, err := domain.ParseDirection(req.TransactionType)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if !req.Amount.IsPositive() {
		c.JSON(http.StatusBadRequest, gin.H{"error": domain.ErrInvalidAmount.Error()})
		return
	}

	// unknown or missing categories are recorded as Other
	category, ok := domain.ParseCategory(req.Category)
	if !ok {
		category = domain.CategoryOther
	}

	tx := domain.Transaction{
		Amount:       req.Amount,
		Direction:    direction,
		Description:  nonBlank(req.Description),
		Merchant:     nonBlank(req.Merchant),
		Category:     category,
		BalanceAfter: req.BalanceAfter,
		Source:       domain.SourceManual,
	}
	if req.TransactionDate != nil {
		tx.TransactionDate = *req.TransactionDate
	}
	if err := tx.Validate(); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	stored, _, err := s.store.InsertTransaction(c.Request.Context(), tx)
	if err != nil {
		if isPermanentStoreError(err) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Transaction rejected by the store"})
			return
		}
		s.internalError(c, "Failed to create transaction", err)
		return
	}
	s.cache.invalidate(c.Request.Context())

	c.JSON(http.StatusCreated, transactionResponse{Transaction: stored})
}

// parseMessage interprets a message the user explicitly submitted and stores
// the result. The user vouches for the message, so the classifier gate is
// skipped and no duplicate check is made.
func (s *server) parseMessage(c *gin.Context) {
	req, ok := bindMessage(c)
	if !ok {
		return
	}

	parsed, err := message.Interpret(req.Message)
	if err != nil {
		var pf *message.ParseFailure
		if errors.As(err, &pf) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Could not parse transaction from message"})
			return
		}
		s.internalError(c, "Failed to parse message", err)
		return
	}

	at := s.now()
	if req.Timestamp != nil {
		at = *req.Timestamp
	}
	stored, _, err := s.store.InsertTransaction(c.Request.Context(), parsed.Transaction(domain.SourceSMS, at))
	if err != nil {
		if isPermanentStoreError(err) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Transaction rejected by the store"})
			return
		}
		s.internalError(c, "Failed to parse message", err)
		return
	}
	s.cache.invalidate(c.Request.Context())

	c.JSON(http.StatusOK, parseMessageResponse{Transaction: stored, Parsed: parsed})
}

// ingestMessage runs a forwarded notification through the ingestion pipeline:
// non-bank messages are ignored and re-deliveries are recognised.
func (s *server) ingestMessage(c *gin.Context) {
	req, ok := bindMessage(c)
	if !ok {
		return
	}

	msg := ingest.Message{
		ID:     uuid.NewString(),
		Text:   req.Message,
		Sender: req.Sender,
	}
	if req.Timestamp != nil {
		msg.Timestamp = *req.Timestamp
	}

	result, err := s.pipeline.Process(c.Request.Context(), msg)
	if err != nil {
		if isPermanentStoreError(err) {
			c.JSON(http.StatusUnprocessableEntity, ingestResponse{Status: string(ingest.OutcomeUnparsed), Reason: "transaction rejected by the store"})
			return
		}
		s.internalError(c, "Failed to ingest message", err)
		return
	}

	resp := ingestResponse{Status: string(result.Outcome)}
	switch result.Outcome {
	case ingest.OutcomeIgnored:
		c.JSON(http.StatusAccepted, resp)
	case ingest.OutcomeUnparsed:
		resp.Reason = result.Reason
		c.JSON(http.StatusUnprocessableEntity, resp)
	case ingest.OutcomeDuplicate:
		resp.Transaction = &result.Transaction
		c.JSON(http.StatusOK, resp)
	default:
		resp.Transaction = &result.Transaction
		c.JSON(http.StatusCreated, resp)
	}
}

// classifyMessage reports how both classifier variants judge a message
// without storing anything.
func (s *server) classifyMessage(c *gin.Context) {
	req, ok := bindMessage(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, classifyResponse{
		IsTransactionMessage: message.IsTransactionMessage(req.Message),
		IsBankMessage:        message.IsBankMessage(req.Message, req.Sender),
	})
}

// getAnalytics summarises the last period days against the user settings.
func (s *server) getAnalytics(c *gin.Context) {
	ctx := c.Request.Context()

	days, err := analytics.ParsePeriod(c.Query("period"), s.defaultPeriod)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	field := strconv.Itoa(days)
	var snap analytics.Snapshot
	if s.cache.get(ctx, analyticsCacheKey, field, &snap) {
		c.JSON(http.StatusOK, snap)
		return
	}

	window, err := s.store.TransactionsSince(ctx, analytics.WindowStart(s.now(), days))
	if err != nil {
		s.internalError(c, "Failed to fetch analytics", err)
		return
	}
	latest, err := s.store.LatestBalance(ctx)
	if err != nil {
		s.internalError(c, "Failed to fetch analytics", err)
		return
	}
	settings, err := s.store.Settings(ctx)
	if err != nil {
		s.internalError(c, "Failed to fetch analytics", err)
		return
	}

	snap = analytics.Aggregate(window, latest, settings)
	snap.Period = days

	s.cache.set(ctx, analyticsCacheKey, field, snap, analyticsCacheTTL)
	c.JSON(http.StatusOK, snap)
}

func (s *server) getSettings(c *gin.Context) {
	settings, err := s.store.Settings(c.Request.Context())
	if err != nil {
		s.internalError(c, "Failed to fetch settings", err)
		return
	}
	c.JSON(http.StatusOK, settingsResponse{Settings: settings})
}

// updateSettings applies a partial settings update.
func (s *server) updateSettings(c *gin.Context) {
	var update domain.SettingsUpdate
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBodyBytes)
	if err := c.ShouldBindJSON(&update); err != nil && !errors.Is(err, io.EOF) {
		bindError(c, err)
		return
	}
	if err := update.Validate(); err != nil {
		if errors.Is(err, domain.ErrEmptySettingsUpdate) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "At least one setting must be provided"})
			return
		}
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	settings, err := s.store.UpdateSettings(c.Request.Context(), update)
	if err != nil {
		s.internalError(c, "Failed to update settings", err)
		return
	}
	s.cache.invalidate(c.Request.Context())

	c.JSON(http.StatusOK, settingsResponse{Settings: settings})
}

// getCategories lists the category catalog in matching order, Other last.
func (s *server) getCategories(c *gin.Context) {
	categories := make([]categoryResponse, 0, len(domain.Categories()))
	for _, rule := range domain.CategoryRules() {
		categories = append(categories, categoryResponse{Name: rule.Category, Keywords: rule.Keywords})
	}
	categories = append(categories, categoryResponse{Name: domain.CategoryOther, Keywords: []string{}})
	c.JSON(http.StatusOK, categories)
}

// bindJSON decodes a body of at most maxBodyBytes into obj, answering 413 or
// 400 on failure.
func bindJSON(c *gin.Context, obj any) bool {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBodyBytes)
	if err := c.ShouldBindJSON(obj); err != nil {
		bindError(c, err)
		return false
	}
	return true
}

func bindError(c *gin.Context, err error) {
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "Request body is too large"})
		return
	}
	c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
}

func bindMessage(c *gin.Context) (messageRequest, bool) {
	var req messageRequest
	if !bindJSON(c, &req) {
		return req, false
	}
	if strings.TrimSpace(req.Message) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Message is required"})
		return req, false
	}
	if len(req.Message) > maxMessageLength {
		c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("Message is too long (max %d bytes)", maxMessageLength)})
		return req, false
	}
	return req, true
}

// internalError logs err with the request logger and answers with a generic 500.
func (s *server) internalError(c *gin.Context, msg string, err error) {
	log := logger.FromContext(c.Request.Context())
	log.Error().Err(err).Msg(msg)
	c.JSON(http.StatusInternalServerError, gin.H{"error": msg})
}

func nonBlank(s *string) *string {
	if s == nil || strings.TrimSpace(*s) == "" {
		return nil
	}
	return s
}
