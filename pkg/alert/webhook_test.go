package alert

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWebhookSendSignsPayload(t *testing.T) {
	var gotBody []byte
	var gotSig string

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotBody, _ = io.ReadAll(r.Body)
		gotSig = r.Header.Get("X-Signature-256")
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	n := &Notification{
		Kind:      KindHighImpact,
		Title:     "High-impact story",
		Score:     0.97,
		Threshold: 0.95,
		ClusterID: "abc123",
	}

	wh := NewWebhook(srv.URL, "s3cret")
	require.NoError(t, wh.Send(context.Background(), n))

	var decoded Notification
	require.NoError(t, json.Unmarshal(gotBody, &decoded))
	assert.Equal(t, *n, decoded)

	mac := hmac.New(sha256.New, []byte("s3cret"))
	mac.Write(gotBody)
	assert.Equal(t, "sha256="+hex.EncodeToString(mac.Sum(nil)), gotSig)
}

func TestWebhookSendRejectsErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	err := NewWebhook(srv.URL, "").Send(context.Background(), &Notification{Kind: KindGuardrail})
	require.ErrorContains(t, err, "502")
}

func TestManagerBroadcastCollectsErrors(t *testing.T) {
	srvOK := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer srvOK.Close()
	srvBad := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srvBad.Close()

	m := NewManager([]Notifier{
		NewWebhook(srvOK.URL, ""),
		NewWebhook(srvBad.URL, ""),
	})
	require.True(t, m.HasNotifiers())

	err := m.Broadcast(context.Background(), &Notification{Kind: KindHighImpact})
	require.Error(t, err)
	assert.ErrorContains(t, err, "webhook")

	empty := NewManager(nil)
	assert.False(t, empty.HasNotifiers())
	assert.NoError(t, empty.Broadcast(context.Background(), &Notification{}))
}
