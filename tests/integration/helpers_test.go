//go:build integration

package integration

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/partnerhub/notify/internal/testutil"
)

// seedUser inserts a directory entry and returns the generated user id.
func seedUser(t *testing.T, email string) string {
	t.Helper()

	userID := uuid.NewString()
	_, err := testDB.Exec(context.Background(),
		`INSERT INTO user_directory (user_id, email_address) VALUES ($1, $2)`,
		userID, email,
	)
	require.NoError(t, err)

	t.Cleanup(func() {
		_, _ = testDB.Exec(context.Background(),
			`DELETE FROM user_directory WHERE user_id = $1`, userID)
	})
	return userID
}

// dispatchEvent triggers an operator fan-out and asserts it was accepted.
func dispatchEvent(t *testing.T, payload map[string]interface{}) map[string]interface{} {
	t.Helper()

	resp, err := testClient.AsAdmin(adminToken).POST("/api/v1/outbox/dispatch", payload)
	require.NoError(t, err)
	raw := testutil.ReadBody(t, resp)
	require.Equal(t, http.StatusAccepted, resp.StatusCode, raw)

	var body struct {
		Data map[string]interface{} `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(raw), &body))
	return body.Data
}

// clearOutbox removes all ledger rows between tests that count them.
func clearOutbox(t *testing.T) {
	t.Helper()
	_, err := testDB.Exec(context.Background(), `DELETE FROM outbox_records`)
	require.NoError(t, err)
	_, err = testDB.Exec(context.Background(), `DELETE FROM inbox_items`)
	require.NoError(t, err)
}
