package api

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"kbchat/types"
)

func newAdminApp(store *stubStore) *fiber.App {
	app := fiber.New(fiber.Config{ErrorHandler: ErrorHandler})

	messages := NewMessagesHandler(store)
	leads := NewLeadHandler(store)
	embeddings := NewEmbeddingsHandler(stubEmbedder{})

	app.Get("/api/chat_messages", messages.HandleListMessages)
	app.Patch("/api/chat_messages/:id", messages.HandleUpdateMessage)
	app.Post("/api/leads", leads.HandleCreateLead)
	app.Post("/api/embeddings", embeddings.HandleEmbeddings)
	return app
}

func TestHandleListMessages(t *testing.T) {
	store := &stubStore{
		conversation: []types.ChatMessage{
			{ID: 1, ConversationID: "conv-1", Role: types.RoleUser, Content: "hola"},
			{ID: 2, ConversationID: "conv-1", Role: types.RoleAssistant, Content: "buenas"},
		},
	}
	app := newAdminApp(store)

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/api/chat_messages?conversation_id=conv-1", nil))
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var messages []types.ChatMessage
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&messages))
	require.Len(t, messages, 2)
	assert.Equal(t, "hola", messages[0].Content)
}

func TestHandleListMessagesRequiresConversationID(t *testing.T) {
	app := newAdminApp(&stubStore{})

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/api/chat_messages", nil))
	require.NoError(t, err)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestHandleListMessagesEmptyConversation(t *testing.T) {
	app := newAdminApp(&stubStore{})

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/api/chat_messages?conversation_id=nope", nil))
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.JSONEq(t, "[]", string(raw))
}

func TestHandleUpdateMessage(t *testing.T) {
	status := "reviewed"
	store := &stubStore{
		updated: &types.ChatMessage{ID: 7, Status: status},
	}
	app := newAdminApp(store)

	resp, body := postPatch(t, app, "/api/chat_messages/7", map[string]any{"status": status})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "reviewed", body["status"])
}

func TestHandleUpdateMessageNotFound(t *testing.T) {
	app := newAdminApp(&stubStore{updated: nil})

	resp, _ := postPatch(t, app, "/api/chat_messages/99", map[string]any{"status": "reviewed"})
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestHandleUpdateMessageRejectsEmptyPatch(t *testing.T) {
	app := newAdminApp(&stubStore{})

	resp, _ := postPatch(t, app, "/api/chat_messages/7", map[string]any{})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestHandleUpdateMessageRejectsBadID(t *testing.T) {
	app := newAdminApp(&stubStore{})

	resp, _ := postPatch(t, app, "/api/chat_messages/abc", map[string]any{"status": "x"})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestHandleCreateLead(t *testing.T) {
	store := &stubStore{leadID: 42}
	app := newAdminApp(store)

	resp, body := postJSON(t, app, "/api/leads", types.LeadCreate{
		Name:  "Ana",
		Email: "ana@test.com",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	assert.EqualValues(t, 42, body["id"])
}

func TestHandleCreateLeadRequiresContact(t *testing.T) {
	app := newAdminApp(&stubStore{})

	resp, _ := postJSON(t, app, "/api/leads", types.LeadCreate{Name: "Ana"})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestHandleCreateLeadValidatesEmail(t *testing.T) {
	app := newAdminApp(&stubStore{})

	resp, _ := postJSON(t, app, "/api/leads", types.LeadCreate{Email: "not-an-email"})
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
}

func TestHandleEmbeddings(t *testing.T) {
	app := newAdminApp(&stubStore{})

	resp, body := postJSON(t, app, "/api/embeddings", types.EmbeddingsRequest{Text: "hola"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "nomic-embed-text", body["model"])
	assert.EqualValues(t, 2, body["dimension"])
	assert.Len(t, body["embedding"], 2)
}

func TestHandleEmbeddingsRequiresText(t *testing.T) {
	app := newAdminApp(&stubStore{})

	resp, _ := postJSON(t, app, "/api/embeddings", map[string]any{})
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
}

func postPatch(t *testing.T, app *fiber.App, path string, payload any) (*http.Response, map[string]any) {
	t.Helper()
	body, err := json.Marshal(payload)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPatch, path, bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	resp, err := app.Test(req)
	require.NoError(t, err)

	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	var decoded map[string]any
	if len(raw) > 0 {
		require.NoError(t, json.Unmarshal(raw, &decoded))
	}
	return resp, decoded
}
