package identity

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	ticketmodels "stagepass/internal/ticket/models"
	id "stagepass/pkg/domain"
	dErrors "stagepass/pkg/domain-errors"
	"stagepass/pkg/platform/circuit"
	"stagepass/pkg/platform/sentinel"
	"stagepass/pkg/requestcontext"
)

// fakeResolver serves one ticket under one entry token.
type fakeResolver struct {
	token  string
	ticket *ticketmodels.Ticket
}

func (f *fakeResolver) FindByEntryToken(_ context.Context, token string) (*ticketmodels.Ticket, error) {
	if token != f.token {
		return nil, sentinel.ErrNotFound
	}
	return f.ticket, nil
}

func holderTicket() *ticketmodels.Ticket {
	return &ticketmodels.Ticket{
		ID:             id.NewTicketID(),
		RegistrationID: id.NewRegistrationID(),
		EventID:        id.NewEventID(),
		UserID:         id.NewUserID(),
		HolderName:     "Chen Wei-Ting",
		HolderIDNumber: "A123456789",
		Section:        "VIP",
		Quantity:       2,
		EntryToken:     "tok-entry",
		IssuedAt:       time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC),
	}
}

// verifierStub answers POST /api/oidvp/result with the given claim map.
func verifierStub(t *testing.T, claims map[string]string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/api/oidvp/result", r.URL.Path)

		var body struct {
			TransactionID string `json:"transactionId"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		require.NotEmpty(t, body.TransactionID)

		type claim struct {
			EName string `json:"ename"`
			Value string `json:"value"`
		}
		var list []claim
		for ename, value := range claims {
			list = append(list, claim{EName: ename, Value: value})
		}
		resp := map[string]any{
			"data": []map[string]any{{"claims": list}},
		}
		w.Header().Set("Content-Type", "application/json")
		require.NoError(t, json.NewEncoder(w).Encode(resp))
	}))
}

func newVerification(server *httptest.Server) *VerificationService {
	client := NewClient(server.URL)
	resolver := &fakeResolver{token: "tok-entry", ticket: holderTicket()}
	return NewVerificationService(client, resolver, nil, nil)
}

func TestVerifyHolder(t *testing.T) {
	ctx := requestcontext.WithTime(context.Background(),
		time.Date(2026, 3, 14, 18, 0, 0, 0, time.UTC))

	t.Run("all claims equal reports a match", func(t *testing.T) {
		server := verifierStub(t, map[string]string{
			"id_number":    "A123456789",
			"name":         "Chen Wei-Ting",
			"roc_birthday": "0830214",
		})
		defer server.Close()

		result, err := newVerification(server).VerifyHolder(ctx, "tok-entry", "txn-1")
		require.NoError(t, err)
		assert.True(t, result.Match)
		assert.Empty(t, result.Mismatches)
		assert.Equal(t, time.Date(2026, 3, 14, 18, 0, 0, 0, time.UTC), result.VerifiedAt)
	})

	t.Run("any differing claim reports a per-field diff", func(t *testing.T) {
		server := verifierStub(t, map[string]string{
			"id_number": "B987654321",
			"name":      "Chen Wei-Ting",
		})
		defer server.Close()

		result, err := newVerification(server).VerifyHolder(ctx, "tok-entry", "txn-2")
		require.NoError(t, err)
		assert.False(t, result.Match)
		require.Len(t, result.Mismatches, 1)
		assert.Contains(t, result.Mismatches[0], "id_number")
		assert.Contains(t, result.Mismatches[0], "A123456789")
		assert.Contains(t, result.Mismatches[0], "B987654321")
	})

	t.Run("missing compared claim is a mismatch", func(t *testing.T) {
		server := verifierStub(t, map[string]string{"name": "Chen Wei-Ting"})
		defer server.Close()

		result, err := newVerification(server).VerifyHolder(ctx, "tok-entry", "txn-3")
		require.NoError(t, err)
		assert.False(t, result.Match)
		require.Len(t, result.Mismatches, 1)
		assert.Contains(t, result.Mismatches[0], "id_number")
		assert.Contains(t, result.Mismatches[0], "missing")
	})

	t.Run("whitespace from the verifier is tolerated", func(t *testing.T) {
		server := verifierStub(t, map[string]string{
			"id_number": " A123456789 ",
			"name":      "Chen Wei-Ting\n",
		})
		defer server.Close()

		result, err := newVerification(server).VerifyHolder(ctx, "tok-entry", "txn-4")
		require.NoError(t, err)
		assert.True(t, result.Match)
	})

	t.Run("unknown entry token", func(t *testing.T) {
		server := verifierStub(t, map[string]string{"id_number": "A123456789"})
		defer server.Close()

		_, err := newVerification(server).VerifyHolder(ctx, "tok-wrong", "txn-5")
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeNotFound))
	})
}

func TestClientCircuitBreaker(t *testing.T) {
	ctx := context.Background()

	t.Run("opens after consecutive failures and stops dialing", func(t *testing.T) {
		var calls atomic.Int64
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			calls.Add(1)
			w.WriteHeader(http.StatusBadGateway)
		}))
		defer server.Close()

		client := NewClient(server.URL,
			WithBreaker(circuit.New("verifier-test", circuit.WithFailureThreshold(3))),
		)

		for i := 0; i < 3; i++ {
			_, err := client.FetchResult(ctx, "txn")
			require.Error(t, err)
			assert.True(t, dErrors.HasCode(err, dErrors.CodeUnavailable))
		}
		require.EqualValues(t, 3, calls.Load())

		// Circuit is open now: the next call sheds without a request.
		_, err := client.FetchResult(ctx, "txn")
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeUnavailable))
		assert.EqualValues(t, 3, calls.Load())
	})

	t.Run("recovers once the cooldown elapses", func(t *testing.T) {
		var dials atomic.Int64
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			if dials.Add(1) == 1 {
				w.WriteHeader(http.StatusBadGateway)
				return
			}
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{"data":[{"claims":[{"ename":"name","value":"Chen Wei-Ting"}]}]}`))
		}))
		defer server.Close()

		now := time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)
		breaker := circuit.New("verifier-test",
			circuit.WithFailureThreshold(1),
			circuit.WithCooldown(30*time.Second),
			circuit.WithClock(func() time.Time { return now }),
		)
		client := NewClient(server.URL, WithBreaker(breaker))

		_, err := client.FetchResult(ctx, "txn")
		require.Error(t, err)
		require.True(t, breaker.IsOpen())

		// While the cooldown runs the verifier stays healthy but unreached.
		for i := 0; i < 10; i++ {
			_, err := client.FetchResult(ctx, "txn")
			require.Error(t, err)
			assert.True(t, dErrors.HasCode(err, dErrors.CodeUnavailable))
		}
		require.EqualValues(t, 1, dials.Load())

		now = now.Add(31 * time.Second)
		claims, err := client.FetchResult(ctx, "txn")
		require.NoError(t, err, "probe after the cooldown reaches the verifier")
		assert.Equal(t, "Chen Wei-Ting", claims["name"])
		assert.EqualValues(t, 2, dials.Load())
		assert.False(t, breaker.IsOpen())

		_, err = client.FetchResult(ctx, "txn")
		require.NoError(t, err)
		assert.EqualValues(t, 3, dials.Load())
	})

	t.Run("empty claims payload is not found", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{"data":[]}`))
		}))
		defer server.Close()

		_, err := NewClient(server.URL).FetchResult(ctx, "txn-empty")
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeNotFound))
	})
}
