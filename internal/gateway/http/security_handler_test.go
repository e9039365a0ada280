package http

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	accessDomain "github.com/aknoru/lacbot-security/internal/access/domain"
	auditDomain "github.com/aknoru/lacbot-security/internal/audit/domain"
	auditUseCase "github.com/aknoru/lacbot-security/internal/audit/usecase"
	cryptoDomain "github.com/aknoru/lacbot-security/internal/crypto/domain"
	"github.com/aknoru/lacbot-security/internal/gateway/http/dto"
	gatewayUseCase "github.com/aknoru/lacbot-security/internal/gateway/usecase"
	ratelimitDomain "github.com/aknoru/lacbot-security/internal/ratelimit/domain"
	ratelimitUseCase "github.com/aknoru/lacbot-security/internal/ratelimit/usecase"
	sanitizerDomain "github.com/aknoru/lacbot-security/internal/sanitizer/domain"
	threatDomain "github.com/aknoru/lacbot-security/internal/threat/domain"
)

// fakeGateway returns canned verdicts so handler behavior can be tested in
// isolation from the real pipeline.
type fakeGateway struct {
	checkResult *gatewayUseCase.CheckResult
	checkErr    error
	recordedErr error
	recorded    []*auditDomain.EventDraft
	status      *gatewayUseCase.SecurityStatus
}

func (f *fakeGateway) CheckRequest(
	_ context.Context, _ gatewayUseCase.CheckRequest,
) (*gatewayUseCase.CheckResult, error) {
	return f.checkResult, f.checkErr
}

func (f *fakeGateway) Protect(_ context.Context, plaintext []byte) (*cryptoDomain.EncryptedBlob, error) {
	return &cryptoDomain.EncryptedBlob{
		Ciphertext: reverse(plaintext),
		Nonce:      []byte("nonce-nonce1"),
		KeyVersion: 1,
		Algorithm:  cryptoDomain.AESGCM,
	}, nil
}

func (f *fakeGateway) Reveal(_ context.Context, blob *cryptoDomain.EncryptedBlob) ([]byte, error) {
	return reverse(blob.Ciphertext), nil
}

func (f *fakeGateway) RecordEvent(_ context.Context, draft *auditDomain.EventDraft) error {
	if f.recordedErr != nil {
		return f.recordedErr
	}
	f.recorded = append(f.recorded, draft)
	return nil
}

func (f *fakeGateway) SecurityStatus(_ context.Context) (*gatewayUseCase.SecurityStatus, error) {
	return f.status, nil
}

func reverse(in []byte) []byte {
	out := make([]byte, len(in))
	for i, b := range in {
		out[len(in)-1-i] = b
	}
	return out
}

// fakeEvents is an in-memory stand-in for the audit trail.
type fakeEvents struct {
	events map[uuid.UUID]*auditDomain.SecurityEvent
	listed []*auditDomain.SecurityEvent
	verify *auditUseCase.VerifyResult
}

func newFakeEvents() *fakeEvents {
	return &fakeEvents{events: make(map[uuid.UUID]*auditDomain.SecurityEvent)}
}

func (f *fakeEvents) Append(
	_ context.Context, draft *auditDomain.EventDraft,
) (*auditDomain.SecurityEvent, error) {
	event := &auditDomain.SecurityEvent{
		ID:          uuid.Must(uuid.NewV7()),
		Type:        draft.Type,
		PrincipalID: draft.PrincipalID,
		IP:          draft.IP,
		Severity:    draft.Severity,
		Details:     draft.Details,
		CreatedAt:   time.Now().UTC(),
	}
	f.events[event.ID] = event
	return event, nil
}

func (f *fakeEvents) VerifyChain(
	_ context.Context, _, _ uuid.UUID,
) (*auditUseCase.VerifyResult, error) {
	return f.verify, nil
}

func (f *fakeEvents) Get(_ context.Context, id uuid.UUID) (*auditDomain.SecurityEvent, error) {
	event, ok := f.events[id]
	if !ok {
		return nil, auditDomain.ErrEventNotFound
	}
	return event, nil
}

func (f *fakeEvents) List(
	_ context.Context, _, _ int, _, _ *time.Time,
) ([]*auditDomain.SecurityEvent, error) {
	return f.listed, nil
}

func (f *fakeEvents) RecentCritical(_ context.Context, _ int) ([]*auditDomain.SecurityEvent, error) {
	return f.listed, nil
}

func (f *fakeEvents) Close() {}

// fakeLimiter covers the handler's unblock path only.
type fakeLimiter struct {
	blocked map[string]bool
}

func (f *fakeLimiter) Load(context.Context) error { return nil }

func (f *fakeLimiter) Check(context.Context, ratelimitUseCase.Subject) (ratelimitDomain.Decision, error) {
	return ratelimitDomain.Allow, nil
}

func (f *fakeLimiter) TryAcquire(string, ratelimitDomain.Tier) ratelimitDomain.Decision {
	return ratelimitDomain.Allow
}

func (f *fakeLimiter) TryAcquireAt(string, ratelimitDomain.Tier, time.Time) ratelimitDomain.Decision {
	return ratelimitDomain.Allow
}

func (f *fakeLimiter) ForceBlock(_ context.Context, subjectKey string, _ time.Duration, _ string) error {
	f.blocked[subjectKey] = true
	return nil
}

func (f *fakeLimiter) Unblock(_ context.Context, subjectKey string) error {
	if !f.blocked[subjectKey] {
		return ratelimitDomain.ErrBlockNotFound
	}
	delete(f.blocked, subjectKey)
	return nil
}

func (f *fakeLimiter) ActiveBlocks(context.Context) []*ratelimitDomain.Block { return nil }

func (f *fakeLimiter) Close() {}

// fakeAccess resolves principals from a map and authorizes against the
// default policy table.
type fakeAccess struct {
	policy     accessDomain.Policy
	principals map[uuid.UUID]*accessDomain.Principal
}

func newFakeAccess() *fakeAccess {
	return &fakeAccess{
		policy:     accessDomain.DefaultPolicy(),
		principals: make(map[uuid.UUID]*accessDomain.Principal),
	}
}

func (f *fakeAccess) Authorize(
	_ context.Context,
	principal *accessDomain.Principal,
	_ string,
	action accessDomain.Action,
	_ accessDomain.Resource,
) accessDomain.Decision {
	if principal == nil || !principal.Active {
		return accessDomain.Deny
	}
	return f.policy.Lookup(principal.Role, action)
}

func (f *fakeAccess) SetOverride(string, time.Time) {}

func (f *fakeAccess) ClearOverride(string) {}

func (f *fakeAccess) Register(_ context.Context, role accessDomain.Role) (*accessDomain.Principal, error) {
	principal := &accessDomain.Principal{ID: uuid.Must(uuid.NewV7()), Role: role, Active: true}
	f.principals[principal.ID] = principal
	return principal, nil
}

func (f *fakeAccess) Get(_ context.Context, id uuid.UUID) (*accessDomain.Principal, error) {
	principal, ok := f.principals[id]
	if !ok {
		return nil, accessDomain.ErrPrincipalNotFound
	}
	return principal, nil
}

func (f *fakeAccess) List(context.Context, uint, uint) ([]*accessDomain.Principal, error) {
	return nil, nil
}

func (f *fakeAccess) ChangeRole(context.Context, *accessDomain.Principal, uuid.UUID, accessDomain.Role) error {
	return nil
}

func (f *fakeAccess) Deactivate(context.Context, *accessDomain.Principal, uuid.UUID) error {
	return nil
}

type handlerFixture struct {
	router  *gin.Engine
	gateway *fakeGateway
	events  *fakeEvents
	limiter *fakeLimiter
	access  *fakeAccess
}

func setupTestRouter(t *testing.T) *handlerFixture {
	t.Helper()

	gin.SetMode(gin.TestMode)

	fixture := &handlerFixture{
		gateway: &fakeGateway{},
		events:  newFakeEvents(),
		limiter: &fakeLimiter{blocked: make(map[string]bool)},
		access:  newFakeAccess(),
	}

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	handler := NewSecurityHandler(fixture.gateway, fixture.events, fixture.limiter, fixture.access, logger)

	fixture.router = gin.New()
	handler.RegisterRoutes(fixture.router)

	return fixture
}

func (f *handlerFixture) addPrincipal(role accessDomain.Role) *accessDomain.Principal {
	principal, _ := f.access.Register(context.Background(), role)
	return principal
}

func (f *handlerFixture) do(t *testing.T, method, path string, body any, principal *accessDomain.Principal) *httptest.ResponseRecorder {
	t.Helper()

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(payload)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if principal != nil {
		req.Header.Set("X-Principal-Id", principal.ID.String())
	}

	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)
	return w
}

func TestSecurityHandler_CheckHandler(t *testing.T) {
	checkBody := func(input string) dto.CheckRequest {
		return dto.CheckRequest{
			Input:  input,
			Class:  string(sanitizerDomain.FreeText),
			Action: string(accessDomain.ActionChatSend),
			Resource: dto.ResourceRequest{
				Type:           "chat",
				Classification: string(accessDomain.ClassInternal),
			},
		}
	}

	t.Run("Success_CleanInputAdmitted", func(t *testing.T) {
		fixture := setupTestRouter(t)
		fixture.gateway.checkResult = &gatewayUseCase.CheckResult{
			Sanitized:    "hello",
			Decision:     accessDomain.Permit,
			RateDecision: ratelimitDomain.Allow,
			RiskLevel:    threatDomain.RiskLow,
		}

		w := fixture.do(t, http.MethodPost, "/v1/security/check", checkBody("hello"), nil)

		assert.Equal(t, http.StatusOK, w.Code)

		var response dto.CheckResponse
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
		assert.True(t, response.Allowed)
		assert.Equal(t, "hello", response.Sanitized)
		assert.Equal(t, string(threatDomain.RiskLow), response.RiskLevel)
		assert.Empty(t, response.ViolationCode)
	})

	t.Run("Success_MaliciousInputReportsViolationCode", func(t *testing.T) {
		fixture := setupTestRouter(t)
		fixture.gateway.checkResult = &gatewayUseCase.CheckResult{
			Decision:  accessDomain.Deny,
			RiskLevel: threatDomain.RiskMedium,
			Reason:    "malicious input",
		}
		fixture.gateway.checkErr = sanitizerDomain.NewViolation(
			sanitizerDomain.CodeSQLInjection, sanitizerDomain.FreeText)

		w := fixture.do(t, http.MethodPost, "/v1/security/check",
			checkBody(`"; DROP TABLE users;--`), nil)

		assert.Equal(t, http.StatusOK, w.Code)

		var response dto.CheckResponse
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
		assert.False(t, response.Allowed)
		assert.Equal(t, string(sanitizerDomain.CodeSQLInjection), response.ViolationCode)
		assert.Empty(t, response.Sanitized, "rejected payloads must not be echoed")
	})

	t.Run("Error_UnknownContentClass", func(t *testing.T) {
		fixture := setupTestRouter(t)

		body := checkBody("hello")
		body.Class = "html"

		w := fixture.do(t, http.MethodPost, "/v1/security/check", body, nil)

		assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	})

	t.Run("Error_InvalidJSON", func(t *testing.T) {
		fixture := setupTestRouter(t)

		req := httptest.NewRequest(http.MethodPost, "/v1/security/check",
			bytes.NewReader([]byte("not json")))
		w := httptest.NewRecorder()
		fixture.router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("Error_MalformedPrincipalHeader", func(t *testing.T) {
		fixture := setupTestRouter(t)

		req := httptest.NewRequest(http.MethodPost, "/v1/security/check", nil)
		req.Header.Set("X-Principal-Id", "not-a-uuid")
		w := httptest.NewRecorder()
		fixture.router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})
}

func TestSecurityHandler_Guards(t *testing.T) {
	t.Run("Error_AnonymousDeniedStatus", func(t *testing.T) {
		fixture := setupTestRouter(t)

		w := fixture.do(t, http.MethodGet, "/v1/security/status", nil, nil)

		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("Error_NormalUserForbiddenStatus", func(t *testing.T) {
		fixture := setupTestRouter(t)
		user := fixture.addPrincipal(accessDomain.NormalUser)

		w := fixture.do(t, http.MethodGet, "/v1/security/status", nil, user)

		assert.Equal(t, http.StatusForbidden, w.Code)
	})

	t.Run("Error_VolunteerForbiddenUnblock", func(t *testing.T) {
		fixture := setupTestRouter(t)
		volunteer := fixture.addPrincipal(accessDomain.Volunteer)

		w := fixture.do(t, http.MethodPost, "/v1/security/unblock",
			dto.UnblockRequest{SubjectKey: "10.1.2.3"}, volunteer)

		assert.Equal(t, http.StatusForbidden, w.Code)
	})

	t.Run("Success_SuperUserReadsStatus", func(t *testing.T) {
		fixture := setupTestRouter(t)
		fixture.gateway.status = &gatewayUseCase.SecurityStatus{OverallScore: 42.5}
		admin := fixture.addPrincipal(accessDomain.SuperUser)

		w := fixture.do(t, http.MethodGet, "/v1/security/status", nil, admin)

		assert.Equal(t, http.StatusOK, w.Code)

		var response dto.StatusResponse
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
		assert.InDelta(t, 42.5, response.OverallScore, 0.001)
	})
}

func TestSecurityHandler_Events(t *testing.T) {
	t.Run("Success_ListEvents", func(t *testing.T) {
		fixture := setupTestRouter(t)
		admin := fixture.addPrincipal(accessDomain.SuperUser)

		event, err := fixture.events.Append(context.Background(), &auditDomain.EventDraft{
			Type:     auditDomain.RateLimitViolationEvent,
			IP:       "10.1.2.3",
			Severity: auditDomain.SeverityMedium,
		})
		require.NoError(t, err)
		fixture.events.listed = []*auditDomain.SecurityEvent{event}

		w := fixture.do(t, http.MethodGet, "/v1/security/events?offset=0&limit=10", nil, admin)

		assert.Equal(t, http.StatusOK, w.Code)

		var response dto.ListEventsResponse
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
		require.Len(t, response.Data, 1)
		assert.Equal(t, event.ID.String(), response.Data[0].ID)
		assert.Equal(t, string(auditDomain.RateLimitViolationEvent), response.Data[0].Type)
	})

	t.Run("Error_ListEventsBadTimeFilter", func(t *testing.T) {
		fixture := setupTestRouter(t)
		admin := fixture.addPrincipal(accessDomain.SuperUser)

		w := fixture.do(t, http.MethodGet,
			"/v1/security/events?created_at_from=yesterday", nil, admin)

		assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	})

	t.Run("Error_ListEventsInvertedTimeRange", func(t *testing.T) {
		fixture := setupTestRouter(t)
		admin := fixture.addPrincipal(accessDomain.SuperUser)

		w := fixture.do(t, http.MethodGet,
			"/v1/security/events?created_at_from=2026-08-31T00:00:00Z&created_at_to=2026-08-01T00:00:00Z",
			nil, admin)

		assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	})

	t.Run("Success_GetEvent", func(t *testing.T) {
		fixture := setupTestRouter(t)
		admin := fixture.addPrincipal(accessDomain.SuperUser)

		event, err := fixture.events.Append(context.Background(), &auditDomain.EventDraft{
			Type:     auditDomain.AuthenticationFailureEvent,
			IP:       "10.1.2.3",
			Severity: auditDomain.SeverityLow,
		})
		require.NoError(t, err)

		w := fixture.do(t, http.MethodGet, "/v1/security/events/"+event.ID.String(), nil, admin)

		assert.Equal(t, http.StatusOK, w.Code)
	})

	t.Run("Error_GetEventNotFound", func(t *testing.T) {
		fixture := setupTestRouter(t)
		admin := fixture.addPrincipal(accessDomain.SuperUser)

		w := fixture.do(t, http.MethodGet,
			"/v1/security/events/"+uuid.Must(uuid.NewV7()).String(), nil, admin)

		assert.Equal(t, http.StatusNotFound, w.Code)
	})

	t.Run("Error_GetEventMalformedID", func(t *testing.T) {
		fixture := setupTestRouter(t)
		admin := fixture.addPrincipal(accessDomain.SuperUser)

		w := fixture.do(t, http.MethodGet, "/v1/security/events/banana", nil, admin)

		assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	})

	t.Run("Success_RecordEvent", func(t *testing.T) {
		fixture := setupTestRouter(t)
		admin := fixture.addPrincipal(accessDomain.SuperUser)

		w := fixture.do(t, http.MethodPost, "/v1/security/events", dto.RecordEventRequest{
			Type:     string(auditDomain.AuthenticationFailureEvent),
			Severity: string(auditDomain.SeverityLow),
			IP:       "10.1.2.3",
			Details:  map[string]any{"attempt": 3},
		}, admin)

		assert.Equal(t, http.StatusAccepted, w.Code)
		require.Len(t, fixture.gateway.recorded, 1)
		assert.Equal(t, auditDomain.AuthenticationFailureEvent, fixture.gateway.recorded[0].Type)
	})

	t.Run("Error_RecordEventUnknownSeverity", func(t *testing.T) {
		fixture := setupTestRouter(t)
		admin := fixture.addPrincipal(accessDomain.SuperUser)

		w := fixture.do(t, http.MethodPost, "/v1/security/events", dto.RecordEventRequest{
			Type:     string(auditDomain.AuthenticationFailureEvent),
			Severity: "catastrophic",
			IP:       "10.1.2.3",
		}, admin)

		assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
		assert.Empty(t, fixture.gateway.recorded)
	})
}

func TestSecurityHandler_VerifyChainHandler(t *testing.T) {
	t.Run("Success_IntactChain", func(t *testing.T) {
		fixture := setupTestRouter(t)
		admin := fixture.addPrincipal(accessDomain.SuperUser)
		fixture.events.verify = &auditUseCase.VerifyResult{Checked: 12}

		w := fixture.do(t, http.MethodPost, "/v1/security/verify-chain", dto.VerifyChainRequest{
			FromID: uuid.Must(uuid.NewV7()).String(),
			ToID:   uuid.Must(uuid.NewV7()).String(),
		}, admin)

		assert.Equal(t, http.StatusOK, w.Code)

		var response dto.VerifyChainResponse
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
		assert.Equal(t, 12, response.Checked)
		assert.True(t, response.Intact)
		assert.Nil(t, response.BrokenAt)
	})

	t.Run("Success_BrokenChainReportsFirstBadEvent", func(t *testing.T) {
		fixture := setupTestRouter(t)
		admin := fixture.addPrincipal(accessDomain.SuperUser)

		brokenID := uuid.Must(uuid.NewV7())
		fixture.events.verify = &auditUseCase.VerifyResult{Checked: 4, BrokenAt: &brokenID}

		w := fixture.do(t, http.MethodPost, "/v1/security/verify-chain", dto.VerifyChainRequest{
			FromID: uuid.Must(uuid.NewV7()).String(),
			ToID:   uuid.Must(uuid.NewV7()).String(),
		}, admin)

		assert.Equal(t, http.StatusOK, w.Code)

		var response dto.VerifyChainResponse
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
		assert.False(t, response.Intact)
		require.NotNil(t, response.BrokenAt)
		assert.Equal(t, brokenID.String(), *response.BrokenAt)
	})

	t.Run("Error_MalformedBounds", func(t *testing.T) {
		fixture := setupTestRouter(t)
		admin := fixture.addPrincipal(accessDomain.SuperUser)

		w := fixture.do(t, http.MethodPost, "/v1/security/verify-chain", dto.VerifyChainRequest{
			FromID: "first",
			ToID:   "last",
		}, admin)

		assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	})
}

func TestSecurityHandler_ProtectReveal(t *testing.T) {
	t.Run("Success_Roundtrip", func(t *testing.T) {
		fixture := setupTestRouter(t)
		admin := fixture.addPrincipal(accessDomain.SuperUser)

		w := fixture.do(t, http.MethodPost, "/v1/security/protect",
			dto.ProtectRequest{Plaintext: "student-email@example.edu"}, admin)
		require.Equal(t, http.StatusOK, w.Code)

		var sealed dto.ProtectResponse
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &sealed))
		assert.NotEmpty(t, sealed.Ciphertext)
		assert.Equal(t, uint(1), sealed.KeyVersion)

		w = fixture.do(t, http.MethodPost, "/v1/security/reveal", dto.RevealRequest{
			Ciphertext: sealed.Ciphertext,
			Nonce:      sealed.Nonce,
			KeyVersion: sealed.KeyVersion,
			Algorithm:  sealed.Algorithm,
		}, admin)
		require.Equal(t, http.StatusOK, w.Code)

		var revealed dto.RevealResponse
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &revealed))
		assert.Equal(t, "student-email@example.edu", revealed.Plaintext)
	})

	t.Run("Error_ProtectEmptyPayload", func(t *testing.T) {
		fixture := setupTestRouter(t)
		admin := fixture.addPrincipal(accessDomain.SuperUser)

		w := fixture.do(t, http.MethodPost, "/v1/security/protect",
			dto.ProtectRequest{}, admin)

		assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	})
}

func TestSecurityHandler_UnblockHandler(t *testing.T) {
	t.Run("Success_ClearsBlock", func(t *testing.T) {
		fixture := setupTestRouter(t)
		admin := fixture.addPrincipal(accessDomain.SuperUser)
		fixture.limiter.blocked["10.1.2.3"] = true

		w := fixture.do(t, http.MethodPost, "/v1/security/unblock",
			dto.UnblockRequest{SubjectKey: "10.1.2.3"}, admin)

		assert.Equal(t, http.StatusNoContent, w.Code)
		assert.False(t, fixture.limiter.blocked["10.1.2.3"])
	})

	t.Run("Error_UnknownSubject", func(t *testing.T) {
		fixture := setupTestRouter(t)
		admin := fixture.addPrincipal(accessDomain.SuperUser)

		w := fixture.do(t, http.MethodPost, "/v1/security/unblock",
			dto.UnblockRequest{SubjectKey: "10.9.9.9"}, admin)

		assert.Equal(t, http.StatusNotFound, w.Code)
	})

	t.Run("Error_BlankSubject", func(t *testing.T) {
		fixture := setupTestRouter(t)
		admin := fixture.addPrincipal(accessDomain.SuperUser)

		w := fixture.do(t, http.MethodPost, "/v1/security/unblock",
			dto.UnblockRequest{SubjectKey: "   "}, admin)

		assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	})
}
