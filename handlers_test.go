package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"slices"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"sms-ledger/internal/analytics"
	"sms-ledger/internal/domain"
	"sms-ledger/internal/message"
)

const (
	hdfcDebit = "Dear Customer, Rs.500.00 debited from A/c **1234 on 28-Sep-25 at STARBUCKS. Avl Bal: Rs.4,500.00"
	upiCredit = "UPI: Rs.1200 credited to your account from John Doe. Available balance: Rs.5,700.00"
)

var testNow = time.Date(2025, 9, 30, 12, 0, 0, 0, time.UTC)

func init() {
	gin.SetMode(gin.TestMode)
}

// memoryStore is an in-memory Store with the same duplicate semantics as pgStore.
type memoryStore struct {
	mu           sync.Mutex
	transactions []domain.Transaction
	settings     *domain.Settings
	err          error
	nextID       int64
}

func (m *memoryStore) Ping(ctx context.Context) error {
	return m.err
}

func (m *memoryStore) InsertTransaction(ctx context.Context, tx domain.Transaction) (domain.Transaction, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return domain.Transaction{}, false, m.err
	}
	if tx.SourceHash != nil {
		for _, t := range m.transactions {
			if t.SourceHash != nil && *t.SourceHash == *tx.SourceHash {
				return t, false, nil
			}
		}
	}
	if tx.TransactionDate.IsZero() {
		tx.TransactionDate = testNow
	}
	m.nextID++
	tx.ID = m.nextID
	tx.CreatedAt = testNow
	m.transactions = append(m.transactions, tx)
	return tx, true, nil
}

func (m *memoryStore) ListTransactions(ctx context.Context, filter transactionFilter) ([]domain.Transaction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	out := make([]domain.Transaction, 0)
	for _, t := range m.newestFirst() {
		if filter.Category != "" && t.Category != filter.Category {
			continue
		}
		if filter.Direction != "" && t.Direction != filter.Direction {
			continue
		}
		out = append(out, t)
		if len(out) == clampLimit(filter.Limit) {
			break
		}
	}
	return out, nil
}

func (m *memoryStore) TransactionsSince(ctx context.Context, since time.Time) ([]domain.Transaction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	var out []domain.Transaction
	for _, t := range m.newestFirst() {
		if !t.TransactionDate.Before(since) {
			out = append(out, t)
		}
	}
	return out, nil
}

func (m *memoryStore) LatestBalance(ctx context.Context) (*domain.Transaction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	for _, t := range m.newestFirst() {
		if t.HasBalance() {
			return &t, nil
		}
	}
	return nil, nil
}

func (m *memoryStore) Settings(ctx context.Context) (domain.Settings, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return domain.Settings{}, m.err
	}
	if m.settings == nil {
		return domain.DefaultSettings(), nil
	}
	return *m.settings, nil
}

func (m *memoryStore) UpdateSettings(ctx context.Context, update domain.SettingsUpdate) (domain.Settings, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return domain.Settings{}, m.err
	}
	current := domain.DefaultSettings()
	if m.settings != nil {
		current = *m.settings
	}
	next := current.Apply(update)
	next.UpdatedAt = testNow
	m.settings = &next
	return next, nil
}

func (m *memoryStore) newestFirst() []domain.Transaction {
	out := slices.Clone(m.transactions)
	slices.SortFunc(out, func(a, b domain.Transaction) int {
		if c := b.TransactionDate.Compare(a.TransactionDate); c != 0 {
			return c
		}
		return int(b.ID - a.ID)
	})
	return out
}

func newTestRouter(store *memoryStore) *gin.Engine {
	log := zerolog.New(io.Discard)
	srv := newServer(store, nil, log, analytics.DefaultPeriodDays)
	srv.now = func() time.Time { return testNow }
	return newRouter(srv, log)
}

func do(t *testing.T, r http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(w.Body.Bytes(), &v); err != nil {
		t.Fatalf("decode response %q: %v", w.Body.String(), err)
	}
	return v
}

func errorBody(t *testing.T, w *httptest.ResponseRecorder) string {
	t.Helper()
	return decode[map[string]string](t, w)["error"]
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func TestHealthCheck(t *testing.T) {
	store := &memoryStore{}
	r := newTestRouter(store)

	w := do(t, r, http.MethodGet, "/health", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	if w.Header().Get(requestIDHeader) == "" {
		t.Error("response should carry a request id")
	}

	store.err = errors.New("connection refused")
	w = do(t, r, http.MethodGet, "/health", "")
	if w.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", w.Code)
	}
}

func TestParseMessage(t *testing.T) {
	store := &memoryStore{}
	r := newTestRouter(store)

	body, _ := json.Marshal(messageRequest{Message: hdfcDebit})
	w := do(t, r, http.MethodPost, "/api/parse-message", string(body))
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", w.Code, w.Body.String())
	}

	resp := decode[parseMessageResponse](t, w)
	if !resp.Parsed.Amount.Equal(dec("500")) || resp.Parsed.Direction != domain.Debit {
		t.Errorf("parsed = %s %s, want 500 debit", resp.Parsed.Amount, resp.Parsed.Direction)
	}
	if resp.Parsed.Merchant == nil || *resp.Parsed.Merchant != "STARBUCKS" {
		t.Errorf("merchant = %v, want STARBUCKS", resp.Parsed.Merchant)
	}
	if resp.Parsed.Category != domain.CategoryFood {
		t.Errorf("category = %s, want Food", resp.Parsed.Category)
	}
	if !resp.Parsed.Balance.Valid || !resp.Parsed.Balance.Decimal.Equal(dec("4500")) {
		t.Errorf("balance = %v, want 4500", resp.Parsed.Balance)
	}
	if resp.Transaction.ID == 0 || resp.Transaction.Source != domain.SourceSMS {
		t.Errorf("transaction = %+v, want stored sms transaction", resp.Transaction)
	}
	if !resp.Transaction.TransactionDate.Equal(testNow) {
		t.Errorf("transaction date = %v, want %v", resp.Transaction.TransactionDate, testNow)
	}
	if len(store.transactions) != 1 {
		t.Errorf("stored %d transactions, want 1", len(store.transactions))
	}
}

func TestParseMessage_SkipsClassifierAndDedup(t *testing.T) {
	store := &memoryStore{}
	r := newTestRouter(store)

	// no provider named anywhere: the ingestion gate would drop it
	body, _ := json.Marshal(messageRequest{Message: hdfcDebit})
	for i := 0; i < 2; i++ {
		if w := do(t, r, http.MethodPost, "/api/parse-message", string(body)); w.Code != http.StatusOK {
			t.Fatalf("attempt %d: status = %d", i+1, w.Code)
		}
	}
	if len(store.transactions) != 2 {
		t.Errorf("stored %d transactions, want 2", len(store.transactions))
	}
}

func TestParseMessage_Errors(t *testing.T) {
	tests := []struct {
		name     string
		body     string
		wantCode int
		wantErr  string
	}{
		{"missing message", `{}`, http.StatusBadRequest, "Message is required"},
		{"unparseable", `{"message":"Your OTP is 482913. Do not share it."}`, http.StatusBadRequest, "Could not parse transaction from message"},
		{"malformed json", `{"message":`, http.StatusBadRequest, ""},
		{"amount rounds to zero", `{"message":"Rs.0.004 debited from your account via UPI"}`, http.StatusBadRequest, "Could not parse transaction from message"},
		{"amount too large", `{"message":"Rs.5,000,000,000,000 debited from your account via UPI"}`, http.StatusBadRequest, "Could not parse transaction from message"},
		{"message too long", `{"message":"Rs 10 debited ` + strings.Repeat("x", maxMessageLength) + `"}`, http.StatusBadRequest, "Message is too long (max 4096 bytes)"},
		{"body too large", `{"message":"Rs 10 debited ` + strings.Repeat("x", maxBodyBytes) + `"}`, http.StatusRequestEntityTooLarge, "Request body is too large"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := &memoryStore{}
			w := do(t, newTestRouter(store), http.MethodPost, "/api/parse-message", tt.body)
			if w.Code != tt.wantCode {
				t.Fatalf("status = %d, want %d", w.Code, tt.wantCode)
			}
			if tt.wantErr != "" && errorBody(t, w) != tt.wantErr {
				t.Errorf("error = %q, want %q", errorBody(t, w), tt.wantErr)
			}
			if len(store.transactions) != 0 {
				t.Error("nothing should be stored")
			}
		})
	}
}

func TestIngestMessage(t *testing.T) {
	ts := "2025-09-28T10:15:00Z"
	tests := []struct {
		name       string
		body       string
		wantCode   int
		wantStatus string
		wantStored int
	}{
		{"bank message", `{"message":"` + hdfcDebit + `","sender":"HDFC-BANK","timestamp":"` + ts + `"}`, http.StatusCreated, "stored", 1},
		{"not a bank message", `{"message":"Your OTP is 482913","sender":"HDFC-BANK"}`, http.StatusAccepted, "ignored", 0},
		{"bank message without amount verb", `{"message":"UPI transaction of Rs.100 failed at your bank"}`, http.StatusUnprocessableEntity, "unparsed", 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := &memoryStore{}
			w := do(t, newTestRouter(store), http.MethodPost, "/api/ingest", tt.body)
			if w.Code != tt.wantCode {
				t.Fatalf("status = %d, want %d, body %s", w.Code, tt.wantCode, w.Body.String())
			}
			resp := decode[ingestResponse](t, w)
			if resp.Status != tt.wantStatus {
				t.Errorf("status = %q, want %q", resp.Status, tt.wantStatus)
			}
			if len(store.transactions) != tt.wantStored {
				t.Errorf("stored %d transactions, want %d", len(store.transactions), tt.wantStored)
			}
		})
	}
}

func TestIngestMessage_Duplicate(t *testing.T) {
	store := &memoryStore{}
	r := newTestRouter(store)
	body := `{"message":"` + upiCredit + `","sender":"VM-UPI","timestamp":"2025-09-29T08:00:00Z"}`

	first := do(t, r, http.MethodPost, "/api/ingest", body)
	if first.Code != http.StatusCreated {
		t.Fatalf("first status = %d, want 201", first.Code)
	}
	second := do(t, r, http.MethodPost, "/api/ingest", body)
	if second.Code != http.StatusOK {
		t.Fatalf("second status = %d, want 200", second.Code)
	}

	resp := decode[ingestResponse](t, second)
	if resp.Status != "duplicate" || resp.Transaction == nil || resp.Transaction.ID != 1 {
		t.Errorf("duplicate response = %+v", resp)
	}
	if len(store.transactions) != 1 {
		t.Errorf("stored %d transactions, want 1", len(store.transactions))
	}
}

func TestIngestMessage_StoreFailure(t *testing.T) {
	store := &memoryStore{err: errors.New("disk full")}
	body := `{"message":"` + hdfcDebit + `","sender":"HDFC-BANK"}`

	w := do(t, newTestRouter(store), http.MethodPost, "/api/ingest", body)
	if w.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", w.Code)
	}
	if got := errorBody(t, w); got != "Failed to ingest message" {
		t.Errorf("error = %q, internal details must not leak", got)
	}
}

func TestStoreRejection(t *testing.T) {
	tests := []struct {
		name     string
		path     string
		body     string
		wantCode int
	}{
		{"manual entry", "/api/transactions", `{"amount":10,"transaction_type":"debit"}`, http.StatusBadRequest},
		{"parse message", "/api/parse-message", `{"message":"` + hdfcDebit + `"}`, http.StatusBadRequest},
		{"ingest", "/api/ingest", `{"message":"` + upiCredit + `"}`, http.StatusUnprocessableEntity},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := &memoryStore{err: fmt.Errorf("insert transaction: %w", &pgconn.PgError{Code: pgerrcode.CheckViolation})}
			w := do(t, newTestRouter(store), http.MethodPost, tt.path, tt.body)
			if w.Code != tt.wantCode {
				t.Errorf("status = %d, want %d, body %s", w.Code, tt.wantCode, w.Body.String())
			}
		})
	}
}

func TestIsPermanentStoreError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"connection failure", errors.New("connection refused"), false},
		{"validation", fmt.Errorf("store transaction: %w", domain.ErrAmountOutOfRange), true},
		{"check violation", &pgconn.PgError{Code: pgerrcode.CheckViolation}, true},
		{"numeric overflow", fmt.Errorf("insert transaction: %w", &pgconn.PgError{Code: pgerrcode.NumericValueOutOfRange}), true},
		{"serialization failure", &pgconn.PgError{Code: pgerrcode.SerializationFailure}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := isPermanentStoreError(tt.err); got != tt.want {
				t.Errorf("isPermanentStoreError(%v) = %v, want %v", tt.err, got, tt.want)
			}
		})
	}
}

func TestInternalErrorUsesRequestLogger(t *testing.T) {
	var buf bytes.Buffer
	log := zerolog.New(&buf)
	store := &memoryStore{err: errors.New("connection refused")}
	srv := newServer(store, nil, log, analytics.DefaultPeriodDays)
	r := newRouter(srv, log)

	req := httptest.NewRequest(http.MethodGet, "/api/settings", nil)
	req.Header.Set(requestIDHeader, "req-123")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", w.Code)
	}
	if got := w.Header().Get(requestIDHeader); got != "req-123" {
		t.Errorf("%s = %q, want echoed id", requestIDHeader, got)
	}
	var found bool
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		var entry map[string]any
		if err := json.Unmarshal([]byte(line), &entry); err != nil {
			t.Fatalf("log line %q is not JSON: %v", line, err)
		}
		if entry["message"] == "Failed to fetch settings" {
			found = true
			if entry["request_id"] != "req-123" {
				t.Errorf("request_id = %v, want req-123", entry["request_id"])
			}
			if entry["error"] != "connection refused" {
				t.Errorf("error = %v, want connection refused", entry["error"])
			}
		}
	}
	if !found {
		t.Errorf("internal error was not logged: %s", buf.String())
	}
}

func TestClassifyMessage(t *testing.T) {
	tests := []struct {
		name string
		body string
		want classifyResponse
	}{
		{"bank sender", `{"message":"` + hdfcDebit + `","sender":"HDFC-BANK"}`, classifyResponse{true, true}},
		{"no provider", `{"message":"` + hdfcDebit + `"}`, classifyResponse{true, false}},
		{"otp", `{"message":"Your OTP is 1234"}`, classifyResponse{false, false}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := do(t, newTestRouter(&memoryStore{}), http.MethodPost, "/api/classify", tt.body)
			if w.Code != http.StatusOK {
				t.Fatalf("status = %d", w.Code)
			}
			if got := decode[classifyResponse](t, w); got != tt.want {
				t.Errorf("classify = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestAddTransaction(t *testing.T) {
	tests := []struct {
		name         string
		body         string
		wantCode     int
		wantCategory domain.Category
	}{
		{"valid", `{"amount":42.5,"transaction_type":"debit","category":"food","merchant":"Corner Cafe"}`, http.StatusCreated, domain.CategoryFood},
		{"unknown category", `{"amount":"10","transaction_type":"credit","category":"Gifts"}`, http.StatusCreated, domain.CategoryOther},
		{"no category", `{"amount":10,"transaction_type":"debit"}`, http.StatusCreated, domain.CategoryOther},
		{"missing amount", `{"transaction_type":"debit"}`, http.StatusBadRequest, ""},
		{"missing type", `{"amount":10}`, http.StatusBadRequest, ""},
		{"bad type", `{"amount":10,"transaction_type":"transfer"}`, http.StatusBadRequest, ""},
		{"negative amount", `{"amount":-5,"transaction_type":"debit"}`, http.StatusBadRequest, ""},
		{"sub-cent amount", `{"amount":0.004,"transaction_type":"debit"}`, http.StatusBadRequest, ""},
		{"amount too large", `{"amount":5000000000000,"transaction_type":"credit"}`, http.StatusBadRequest, ""},
		{"balance too large", `{"amount":10,"transaction_type":"credit","balance_after":1e13}`, http.StatusBadRequest, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := &memoryStore{}
			w := do(t, newTestRouter(store), http.MethodPost, "/api/transactions", tt.body)
			if w.Code != tt.wantCode {
				t.Fatalf("status = %d, want %d, body %s", w.Code, tt.wantCode, w.Body.String())
			}
			if tt.wantCode != http.StatusCreated {
				if len(store.transactions) != 0 {
					t.Error("rejected transaction was stored")
				}
				return
			}
			resp := decode[transactionResponse](t, w)
			if resp.Transaction.Category != tt.wantCategory {
				t.Errorf("category = %s, want %s", resp.Transaction.Category, tt.wantCategory)
			}
			if resp.Transaction.Source != domain.SourceManual {
				t.Errorf("source = %q, want manual", resp.Transaction.Source)
			}
		})
	}
}

func TestGetTransactions(t *testing.T) {
	store := &memoryStore{}
	ctx := context.Background()
	for i, tx := range []domain.Transaction{
		{Amount: dec("10"), Direction: domain.Debit, Category: domain.CategoryFood, TransactionDate: testNow.Add(-3 * time.Hour)},
		{Amount: dec("20"), Direction: domain.Credit, Category: domain.CategoryIncome, TransactionDate: testNow.Add(-2 * time.Hour)},
		{Amount: dec("30"), Direction: domain.Debit, Category: domain.CategoryBills, TransactionDate: testNow.Add(-1 * time.Hour)},
	} {
		if _, _, err := store.InsertTransaction(ctx, tx); err != nil {
			t.Fatalf("seed %d: %v", i, err)
		}
	}
	r := newTestRouter(store)

	tests := []struct {
		name     string
		query    string
		wantCode int
		wantIDs  []int64
	}{
		{"all newest first", "", http.StatusOK, []int64{3, 2, 1}},
		{"by type", "?type=debit", http.StatusOK, []int64{3, 1}},
		{"by category any case", "?category=income", http.StatusOK, []int64{2}},
		{"limit", "?limit=1", http.StatusOK, []int64{3}},
		{"bad type", "?type=refund", http.StatusBadRequest, nil},
		{"bad category", "?category=Travel", http.StatusBadRequest, nil},
		{"bad limit", "?limit=0", http.StatusBadRequest, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := do(t, r, http.MethodGet, "/api/transactions"+tt.query, "")
			if w.Code != tt.wantCode {
				t.Fatalf("status = %d, want %d", w.Code, tt.wantCode)
			}
			if tt.wantCode != http.StatusOK {
				return
			}
			resp := decode[transactionsResponse](t, w)
			var ids []int64
			for _, tx := range resp.Transactions {
				ids = append(ids, tx.ID)
			}
			if !slices.Equal(ids, tt.wantIDs) {
				t.Errorf("ids = %v, want %v", ids, tt.wantIDs)
			}
		})
	}
}

func TestGetTransactions_EmptyIsArray(t *testing.T) {
	w := do(t, newTestRouter(&memoryStore{}), http.MethodGet, "/api/transactions", "")
	if !bytes.Contains(w.Body.Bytes(), []byte(`"transactions":[]`)) {
		t.Errorf("body = %s, want empty array", w.Body.String())
	}
}

func TestGetAnalytics(t *testing.T) {
	store := &memoryStore{}
	r := newTestRouter(store)

	// two debits and a credit through the real parser
	for _, text := range []string{
		hdfcDebit,
		upiCredit,
		"Payment of Rs.250.00 made via UPI to Zomato. Balance: Rs.5,450.00",
	} {
		body, _ := json.Marshal(messageRequest{Message: text})
		if w := do(t, r, http.MethodPost, "/api/parse-message", string(body)); w.Code != http.StatusOK {
			t.Fatalf("parse %q: status %d", text, w.Code)
		}
	}
	// outside the default window, inside a 60-day one
	old := domain.Transaction{Amount: dec("999"), Direction: domain.Debit, Category: domain.CategoryBills,
		TransactionDate: testNow.AddDate(0, 0, -45)}
	if _, _, err := store.InsertTransaction(context.Background(), old); err != nil {
		t.Fatal(err)
	}

	w := do(t, r, http.MethodGet, "/api/analytics", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", w.Code, w.Body.String())
	}
	snap := decode[analytics.Snapshot](t, w)

	if snap.Period != 30 {
		t.Errorf("period = %d, want 30", snap.Period)
	}
	if !snap.TotalSpending.Equal(dec("750")) || !snap.TotalIncome.Equal(dec("1200")) {
		t.Errorf("spending/income = %s/%s, want 750/1200", snap.TotalSpending, snap.TotalIncome)
	}
	// all three were stored at the same instant; the last inserted wins
	if !snap.CurrentBalance.Equal(dec("5450")) {
		t.Errorf("current balance = %s, want 5450", snap.CurrentBalance)
	}
	if len(snap.CategorySpending) != 1 || snap.CategorySpending[0].Category != domain.CategoryFood ||
		!snap.CategorySpending[0].TotalSpent.Equal(dec("750")) || snap.CategorySpending[0].TransactionCount != 2 {
		t.Errorf("category spending = %+v, want Food 750 x2", snap.CategorySpending)
	}
	if snap.IsLowBalance || snap.IsOverBudget {
		t.Errorf("flags = low %v over %v, want both false", snap.IsLowBalance, snap.IsOverBudget)
	}

	w = do(t, r, http.MethodGet, "/api/analytics?period=60", "")
	snap = decode[analytics.Snapshot](t, w)
	if snap.Period != 60 || !snap.TotalSpending.Equal(dec("1749")) || !snap.IsOverBudget {
		t.Errorf("60-day snapshot = period %d spending %s over %v, want 60/1749/true",
			snap.Period, snap.TotalSpending, snap.IsOverBudget)
	}
}

func TestGetAnalytics_Empty(t *testing.T) {
	w := do(t, newTestRouter(&memoryStore{}), http.MethodGet, "/api/analytics?period=7", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	snap := decode[analytics.Snapshot](t, w)
	if !snap.CurrentBalance.IsZero() || !snap.IsLowBalance || snap.IsOverBudget {
		t.Errorf("empty snapshot = %+v, want zero balance flagged low", snap)
	}
	if !snap.LowBalanceThreshold.Equal(domain.DefaultLowBalanceThreshold) || !snap.MonthlyBudget.Equal(domain.DefaultMonthlyBudget) {
		t.Errorf("thresholds = %s/%s, want defaults", snap.LowBalanceThreshold, snap.MonthlyBudget)
	}
	if !bytes.Contains(w.Body.Bytes(), []byte(`"categorySpending":[]`)) {
		t.Errorf("body = %s, want empty categorySpending array", w.Body.String())
	}
}

func TestGetAnalytics_InvalidPeriod(t *testing.T) {
	for _, period := range []string{"abc", "0", "-3", "400"} {
		t.Run(period, func(t *testing.T) {
			w := do(t, newTestRouter(&memoryStore{}), http.MethodGet, "/api/analytics?period="+period, "")
			if w.Code != http.StatusBadRequest {
				t.Errorf("status = %d, want 400", w.Code)
			}
		})
	}
}

func TestSettings(t *testing.T) {
	store := &memoryStore{}
	r := newTestRouter(store)

	w := do(t, r, http.MethodGet, "/api/settings", "")
	got := decode[settingsResponse](t, w).Settings
	if !got.LowBalanceThreshold.Equal(dec("100")) || !got.MonthlyBudget.Equal(dec("1000")) {
		t.Errorf("default settings = %+v", got)
	}

	w = do(t, r, http.MethodPost, "/api/settings", `{"monthly_budget":2500}`)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", w.Code, w.Body.String())
	}
	got = decode[settingsResponse](t, w).Settings
	if !got.MonthlyBudget.Equal(dec("2500")) || !got.LowBalanceThreshold.Equal(dec("100")) {
		t.Errorf("after budget update = %+v, want threshold 100 budget 2500", got)
	}

	w = do(t, r, http.MethodPost, "/api/settings", `{"low_balance_threshold":"250.50"}`)
	got = decode[settingsResponse](t, w).Settings
	if !got.MonthlyBudget.Equal(dec("2500")) || !got.LowBalanceThreshold.Equal(dec("250.50")) {
		t.Errorf("after threshold update = %+v, want threshold 250.50 budget 2500", got)
	}
}

func TestUpdateSettings_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		wantErr string
	}{
		{"empty object", `{}`, "At least one setting must be provided"},
		{"empty body", ``, "At least one setting must be provided"},
		{"negative", `{"monthly_budget":-1}`, "invalid monthly_budget: must not be negative"},
		{"not a number", `{"low_balance_threshold":"lots"}`, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := &memoryStore{}
			w := do(t, newTestRouter(store), http.MethodPost, "/api/settings", tt.body)
			if w.Code != http.StatusBadRequest {
				t.Fatalf("status = %d, want 400", w.Code)
			}
			if tt.wantErr != "" && errorBody(t, w) != tt.wantErr {
				t.Errorf("error = %q, want %q", errorBody(t, w), tt.wantErr)
			}
			if store.settings != nil {
				t.Error("settings should be unchanged")
			}
		})
	}
}

func TestGetCategories(t *testing.T) {
	w := do(t, newTestRouter(&memoryStore{}), http.MethodGet, "/api/categories", "")
	cats := decode[[]categoryResponse](t, w)

	var names []domain.Category
	for _, c := range cats {
		names = append(names, c.Name)
	}
	if !slices.Equal(names, domain.Categories()) {
		t.Errorf("categories = %v, want %v", names, domain.Categories())
	}
	if !slices.Contains(cats[0].Keywords, "starbucks") {
		t.Errorf("Food keywords = %v", cats[0].Keywords)
	}
}

func TestParsedTransactionJSON(t *testing.T) {
	parsed, err := message.Interpret(upiCredit)
	if err != nil {
		t.Fatal(err)
	}
	data, err := json.Marshal(parsed)
	if err != nil {
		t.Fatal(err)
	}
	for _, key := range []string{`"type":"credit"`, `"merchant":"John Doe"`, `"category":"Other"`} {
		if !bytes.Contains(data, []byte(key)) {
			t.Errorf("json %s missing %s", data, key)
		}
	}
}
