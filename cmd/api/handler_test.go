package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	authusecase "inbox-triage/internal/auth/usecase"
	draftdomain "inbox-triage/internal/draft/domain"
	draftusecase "inbox-triage/internal/draft/usecase"
	outstanding "inbox-triage/internal/outstanding/usecase"
	"inbox-triage/pkg/metrics"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type actionCall struct {
	action  string
	draftID string
	in      draftusecase.ActionInput
}

type fakeApprovals struct {
	calls  []actionCall
	result *draftdomain.ActionResult
	err    error
}

func (f *fakeApprovals) Do(_ context.Context, action, draftID string, in draftusecase.ActionInput) (*draftdomain.ActionResult, error) {
	f.calls = append(f.calls, actionCall{action: action, draftID: draftID, in: in})
	if f.err != nil {
		return nil, f.err
	}
	if f.result != nil {
		return f.result, nil
	}
	return &draftdomain.ActionResult{OK: true, Action: action, DraftID: draftID, UpdatedStatus: draftdomain.StatusSent}, nil
}

type fakeSweeper struct {
	opts outstanding.Options
	err  error
}

func (f *fakeSweeper) Sweep(_ context.Context, opts outstanding.Options) (*outstanding.Report, error) {
	f.opts = opts
	if f.err != nil {
		return nil, f.err
	}
	return &outstanding.Report{LookbackDays: opts.LookbackDays, StaleHours: opts.StaleHours}, nil
}

type fixture struct {
	engine    *gin.Engine
	approvals *fakeApprovals
	sweeper   *fakeSweeper
	metrics   *metrics.Server
	token     string
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	gin.SetMode(gin.TestMode)

	tokens, err := authusecase.NewTokens("test-secret")
	require.NoError(t, err)
	issued, err := tokens.Issue("alice@example.com", time.Hour)
	require.NoError(t, err)

	f := &fixture{
		approvals: &fakeApprovals{},
		sweeper:   &fakeSweeper{},
		metrics:   metrics.NewServer(),
		token:     issued.Token,
	}
	defaults := func() outstanding.Options {
		return outstanding.Options{LookbackDays: 7, StaleHours: 24, AlwaysNotify: true}
	}
	h := NewHandler(f.approvals, f.sweeper, tokens, f.metrics, defaults, zap.NewNop())
	f.engine = h.Engine()
	return f
}

func (f *fixture) do(method, path, body string, authed bool) *httptest.ResponseRecorder {
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	if authed {
		req.Header.Set("Authorization", "Bearer "+f.token)
	}
	w := httptest.NewRecorder()
	f.engine.ServeHTTP(w, req)
	return w
}

func TestHealth(t *testing.T) {
	f := newFixture(t)
	w := f.do(http.MethodGet, "/api/health", "", false)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"ok"}`, w.Body.String())
}

func TestDraftRoutesRequireToken(t *testing.T) {
	f := newFixture(t)
	w := f.do(http.MethodPost, "/api/drafts/d-1/approve", "", false)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Empty(t, f.approvals.calls)
}

func TestApproveUsesTokenSubject(t *testing.T) {
	f := newFixture(t)
	w := f.do(http.MethodPost, "/api/drafts/d-1/approve", "", true)
	require.Equal(t, http.StatusOK, w.Code)

	require.Len(t, f.approvals.calls, 1)
	call := f.approvals.calls[0]
	assert.Equal(t, draftdomain.ActionApprove, call.action)
	assert.Equal(t, "d-1", call.draftID)
	assert.Equal(t, "alice@example.com", call.in.ApprovedBy)

	var result draftdomain.ActionResult
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &result))
	assert.True(t, result.OK)
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.ApprovalActions.WithLabelValues("approve", "true")))
}

func TestReviseAndRejectPassBody(t *testing.T) {
	f := newFixture(t)

	w := f.do(http.MethodPost, "/api/drafts/d-2/revise", `{"notes":"mention pricing"}`, true)
	require.Equal(t, http.StatusOK, w.Code)
	w = f.do(http.MethodPost, "/api/drafts/d-2/reject", `{"reason":"spam"}`, true)
	require.Equal(t, http.StatusOK, w.Code)

	require.Len(t, f.approvals.calls, 2)
	assert.Equal(t, "mention pricing", f.approvals.calls[0].in.Notes)
	assert.Equal(t, draftdomain.ActionReject, f.approvals.calls[1].action)
	assert.Equal(t, "spam", f.approvals.calls[1].in.Reason)
}

func TestMalformedBody(t *testing.T) {
	f := newFixture(t)
	w := f.do(http.MethodPost, "/api/drafts/d-2/revise", `{"notes":`, true)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Empty(t, f.approvals.calls)
}

func TestGuardFailureIsConflict(t *testing.T) {
	f := newFixture(t)
	f.approvals.result = &draftdomain.ActionResult{
		OK:            false,
		Action:        draftdomain.ActionApprove,
		DraftID:       "d-3",
		UpdatedStatus: draftdomain.StatusSent,
		Message:       "Draft is already sent; not sending again.",
	}

	w := f.do(http.MethodPost, "/api/drafts/d-3/approve", "", true)
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Contains(t, w.Body.String(), "not sending again")
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.ApprovalActions.WithLabelValues("approve", "false")))
}

func TestActionErrorStatus(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{fmt.Errorf("%w: d-9", draftusecase.ErrDraftNotFound), http.StatusNotFound},
		{draftusecase.ErrNotesRequired, http.StatusBadRequest},
		{draftusecase.ErrReasonRequired, http.StatusBadRequest},
		{fmt.Errorf("%w: toEmail", draftusecase.ErrMissingFields), http.StatusUnprocessableEntity},
		{errors.New("smtp down"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.err.Error(), func(t *testing.T) {
			f := newFixture(t)
			f.approvals.err = tt.err
			w := f.do(http.MethodPost, "/api/drafts/d-9/approve", "", true)
			assert.Equal(t, tt.want, w.Code)
		})
	}
}

func TestOutstandingNeverNotifies(t *testing.T) {
	f := newFixture(t)
	w := f.do(http.MethodGet, "/api/outstanding?staleHours=48", "", true)
	require.Equal(t, http.StatusOK, w.Code)

	assert.True(t, f.sweeper.opts.DisableNotify)
	assert.Equal(t, 48, f.sweeper.opts.StaleHours)
	assert.Equal(t, 7, f.sweeper.opts.LookbackDays)
	assert.Contains(t, w.Body.String(), `"staleHours":48`)
}

func TestOutstandingRejectsBadQuery(t *testing.T) {
	f := newFixture(t)
	w := f.do(http.MethodGet, "/api/outstanding?lookbackDays=-1", "", true)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestMetricsEndpoint(t *testing.T) {
	f := newFixture(t)
	f.do(http.MethodGet, "/api/health", "", false)

	w := f.do(http.MethodGet, "/metrics", "", false)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `inbox_triage_http_requests_total{code="200",route="/api/health"} 1`)
}
