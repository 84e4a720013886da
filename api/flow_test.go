package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"math/rand"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"sitaraServer/crypto"
	"sitaraServer/db"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type apiClient struct {
	t      *testing.T
	http   *http.Client
	base   string
	bearer string
}

func (c *apiClient) call(method, path string, body any) (int, map[string]any) {
	c.t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(c.t, json.NewEncoder(&buf).Encode(body))
	}
	req, err := http.NewRequest(method, c.base+path, &buf)
	require.NoError(c.t, err)
	req.Header.Set("Content-Type", "application/json")
	if c.bearer != "" {
		req.Header.Set("Authorization", "Bearer "+c.bearer)
	}

	resp, err := c.http.Do(req)
	require.NoError(c.t, err)
	defer resp.Body.Close()

	var out map[string]any
	require.NoError(c.t, json.NewDecoder(resp.Body).Decode(&out))
	return resp.StatusCode, out
}

// TestAdminAndClientFlow drives a bazaar day through the HTTP API against
// a real database.
func TestAdminAndClientFlow(t *testing.T) {
	_ = godotenv.Load("../.env")
	url := os.Getenv("DATABASE_URL")
	if url == "" {
		t.Skip("DATABASE_URL not set")
	}
	require.NoError(t, db.InitPostgres(url))
	t.Cleanup(db.ClosePostgres)
	ctx := context.Background()

	settings, err := db.GetSettings(ctx)
	require.NoError(t, err)
	if settings.Maintenance {
		t.Skip("settings have maintenance enabled")
	}

	// 09:00 on a fixed future Tuesday, before the test bazaar opens
	now := time.Date(2030, 1, 1, 9, 0, 0, 0, testLoc)
	_, h := newTestServer(t, now)
	srv := httptest.NewServer(h)
	defer srv.Close()

	suffix := uuid.NewString()[:8]
	hash, err := crypto.HashPassword("admin-pass")
	require.NoError(t, err)
	admin, err := db.CreateAdmin(ctx, "admin_"+suffix, hash, "admin")
	require.NoError(t, err)

	jar, _ := cookiejar.New(nil)
	adminAPI := &apiClient{t: t, http: &http.Client{Jar: jar}, base: srv.URL + "/admin/api"}
	userAPI := &apiClient{t: t, http: srv.Client(), base: srv.URL + "/api"}

	var bazaarID, userID string
	t.Cleanup(func() {
		for _, q := range []string{
			`DELETE FROM transactions WHERE user_id = $1`,
			`DELETE FROM bets WHERE user_id = $1`,
			`DELETE FROM users WHERE id = $1`,
		} {
			_, _ = db.PostgresPool.Exec(ctx, q, userID)
		}
		_, _ = db.PostgresPool.Exec(ctx, `DELETE FROM bazaars WHERE id = $1`, bazaarID)
		_, _ = db.PostgresPool.Exec(ctx, `DELETE FROM admins WHERE id = $1`, admin.ID)
	})

	code, _ := adminAPI.call(http.MethodPost, "/login", map[string]string{"username": admin.Username, "password": "wrong-pass"})
	require.Equal(t, http.StatusUnauthorized, code)

	code, body := adminAPI.call(http.MethodPost, "/login", map[string]string{"username": admin.Username, "password": "admin-pass"})
	require.Equal(t, http.StatusOK, code, body)

	code, body = adminAPI.call(http.MethodPost, "/bazaars", map[string]any{
		"name": "Flow Bazaar " + suffix, "openTime": "10:00", "closeTime": "12:00",
	})
	require.Equal(t, http.StatusCreated, code, body)
	bazaarID = body["bazaar"].(map[string]any)["id"].(string)

	phone := fmt.Sprintf("8%09d", rand.Intn(1_000_000_000))
	code, body = userAPI.call(http.MethodPost, "/register", map[string]string{"name": "Flow Player", "phone": phone, "password": "player-pass"})
	require.Equal(t, http.StatusCreated, code, body)
	userAPI.bearer = body["token"].(string)
	userID = body["user"].(map[string]any)["id"].(string)

	stake := settings.MinBet.StringFixed(2)
	code, body = adminAPI.call(http.MethodPost, "/users/"+userID+"/wallet", map[string]any{
		"type": "credit", "amount": settings.MinBet.Mul(decimal.NewFromInt(10)).StringFixed(2), "note": "flow test",
	})
	require.Equal(t, http.StatusOK, code, body)

	code, body = userAPI.call(http.MethodPost, "/bets", map[string]any{
		"bazaarId": bazaarID,
		"bets": []any{
			map[string]any{"gameType": "single_digit", "session": "open", "number": "1", "amount": stake},
			map[string]any{"gameType": "single_digit", "session": "open", "number": "2", "amount": stake},
		},
	})
	require.Equal(t, http.StatusCreated, code, body)

	code, body = adminAPI.call(http.MethodPost, "/results/open", map[string]any{"bazaarId": bazaarID, "panna": "128"})
	require.Equal(t, http.StatusOK, code, body)
	decl := body["declaration"].(map[string]any)
	assert.EqualValues(t, 2, decl["settled"])
	assert.EqualValues(t, 1, decl["winners"])
	assert.Equal(t, "2030-01-01", decl["result"].(map[string]any)["date"])

	code, _ = adminAPI.call(http.MethodPost, "/results/open", map[string]any{"bazaarId": bazaarID, "panna": "128"})
	assert.Equal(t, http.StatusConflict, code)

	code, body = userAPI.call(http.MethodGet, "/bets?status=won", nil)
	require.Equal(t, http.StatusOK, code)
	assert.Len(t, body["bets"], 1)

	code, body = adminAPI.call(http.MethodDelete, "/results/"+bazaarID+"/2030-01-01/open", nil)
	require.Equal(t, http.StatusOK, code, body)

	code, _ = adminAPI.call(http.MethodPost, "/users/"+userID+"/block", nil)
	require.Equal(t, http.StatusOK, code)
	code, _ = userAPI.call(http.MethodPost, "/login", map[string]string{"phone": phone, "password": "player-pass"})
	assert.Equal(t, http.StatusForbidden, code)

	code, _ = adminAPI.call(http.MethodPost, "/logout", nil)
	require.Equal(t, http.StatusOK, code)
	code, _ = adminAPI.call(http.MethodGet, "/me", nil)
	assert.Equal(t, http.StatusUnauthorized, code)
}
