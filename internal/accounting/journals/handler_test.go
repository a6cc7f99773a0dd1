package journals

import (
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"
)

func newTestRouter(t *testing.T) (*chi.Mux, *memoryRepo) {
	t.Helper()
	repo := newMemoryRepo()
	seedChart(repo)
	svc := NewService(repo, nil, slog.Default())
	svc.WithNow(testDate)
	r := chi.NewRouter()
	NewHandler(slog.Default(), svc).MountRoutes(r)
	return r, repo
}

func TestCreateEntryOverHTTP(t *testing.T) {
	router, repo := newTestRouter(t)

	body := `{
		"date": "2026-08-15T00:00:00Z",
		"description": "bank to petty cash transfer",
		"lines": [
			{"account_code": "1200", "debit": 150},
			{"account_code": "4100", "credit": 150}
		]
	}`
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	require.Contains(t, rec.Body.String(), "JE-20260815-001")
	require.InDelta(t, 150, repo.balance("1200"), 0.001)
	require.InDelta(t, 150, repo.balance("4100"), 0.001)
}

func TestCreateEntryRejectsUnbalancedLines(t *testing.T) {
	router, repo := newTestRouter(t)

	body := `{
		"date": "2026-08-15T00:00:00Z",
		"lines": [
			{"account_code": "1200", "debit": 150},
			{"account_code": "4100", "credit": 100}
		]
	}`
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	require.Empty(t, repo.entries)
}

func TestCreateEntryRejectsSingleLine(t *testing.T) {
	router, _ := newTestRouter(t)

	body := `{
		"date": "2026-08-15T00:00:00Z",
		"lines": [{"account_code": "1200", "debit": 150}]
	}`
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}

func TestCreateEntryRejectsUnknownAccountCode(t *testing.T) {
	router, repo := newTestRouter(t)

	body := `{
		"date": "2026-08-15T00:00:00Z",
		"lines": [
			{"account_code": "9999", "debit": 150},
			{"account_code": "4100", "credit": 150}
		]
	}`
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	require.Empty(t, repo.entries)
}

func TestGetEntryNotFound(t *testing.T) {
	router, _ := newTestRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/42", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusNotFound, rec.Code)
}
