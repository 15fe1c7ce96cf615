package rest_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/bytedance/sonic"
	"github.com/mangrovewatch/mangrove/internal/database/types"
	"github.com/mangrovewatch/mangrove/internal/database/types/enum"
	"github.com/mangrovewatch/mangrove/internal/queue"
	"github.com/mangrovewatch/mangrove/internal/rest"
	"github.com/mangrovewatch/mangrove/internal/session"
	"github.com/mangrovewatch/mangrove/internal/setup/config"
	"github.com/mangrovewatch/mangrove/internal/statistics"
	"github.com/mangrovewatch/mangrove/internal/worker/core"
	"github.com/redis/rueidis"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Message string          `json:"message"`
}

type fakeUsers struct {
	mu     sync.Mutex
	users  map[int64]*types.User
	pw     map[string]string
	nextID int64
}

func newFakeUsers() *fakeUsers {
	return &fakeUsers{users: map[int64]*types.User{}, pw: map[string]string{}, nextID: 1}
}

func (f *fakeUsers) add(name string, role enum.Role, password string) *types.User {
	f.mu.Lock()
	defer f.mu.Unlock()

	user := &types.User{
		ID:     f.nextID,
		Name:   name,
		Email:  strings.ToLower(name) + "@example.org",
		Phone:  "+6591234567",
		Role:   role,
		Status: enum.UserStatusActive,
	}
	f.nextID++
	f.users[user.ID] = user
	f.pw[user.Email] = password
	return user
}

func (f *fakeUsers) Register(_ context.Context, reg *types.Registration) (*types.User, error) {
	if reg.Name == "" {
		return nil, types.ErrValidation
	}
	return f.add(reg.Name, reg.Role, reg.Password), nil
}

func (f *fakeUsers) Authenticate(_ context.Context, email, password string) (*types.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.pw[email] != password {
		return nil, types.ErrInvalidCredentials
	}
	for _, u := range f.users {
		if u.Email == email {
			return u, nil
		}
	}
	return nil, types.ErrInvalidCredentials
}

func (f *fakeUsers) GetByID(_ context.Context, id int64) (*types.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if u, ok := f.users[id]; ok {
		return u, nil
	}
	return nil, types.ErrUserNotFound
}

func (f *fakeUsers) GetProfile(ctx context.Context, id int64) (*types.UserProfile, error) {
	u, err := f.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return &types.UserProfile{User: u, Rank: 3}, nil
}

func (f *fakeUsers) UpdateProfile(ctx context.Context, id int64, update *types.ProfileUpdate) (*types.User, error) {
	u, err := f.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if update.Location != nil {
		u.Location = *update.Location
	}
	return u, nil
}

func (f *fakeUsers) List(_ context.Context, _ types.UserFilter) ([]*types.User, int, error) {
	return nil, 0, nil
}

func (f *fakeUsers) Ban(ctx context.Context, admin *types.User, id int64, _ string) error {
	if !admin.IsAdmin() {
		return types.ErrForbidden
	}
	u, err := f.GetByID(ctx, id)
	if err != nil {
		return err
	}
	u.Status = enum.UserStatusBanned
	return nil
}

type fakeSubmissions struct {
	sub *types.Submission
}

func (f *fakeSubmissions) CreateReport(_ context.Context, user *types.User, in *types.NewReport) (*types.Submission, error) {
	return &types.Submission{ID: 1, Kind: enum.SubmissionKindReport, UserID: user.ID, Description: in.Description}, nil
}

func (f *fakeSubmissions) CreateUpload(_ context.Context, user *types.User, in *types.NewUpload) (*types.Submission, error) {
	return &types.Submission{ID: 2, Kind: enum.SubmissionKindUpload, UserID: user.ID, Title: in.Title}, nil
}

func (f *fakeSubmissions) GetOfKind(_ context.Context, id int64, kind enum.SubmissionKind) (*types.Submission, error) {
	if f.sub == nil || f.sub.ID != id || f.sub.Kind != kind {
		return nil, types.ErrSubmissionNotFound
	}
	return f.sub, nil
}

func (f *fakeSubmissions) GetAnalysis(ctx context.Context, _ *types.User, id int64) (*types.Submission, error) {
	return f.GetOfKind(ctx, id, enum.SubmissionKindUpload)
}

func (f *fakeSubmissions) List(_ context.Context, _ types.SubmissionFilter) ([]*types.Submission, int, error) {
	return []*types.Submission{f.sub}, 1, nil
}

func (f *fakeSubmissions) Update(
	ctx context.Context, _ *types.User, id int64, kind enum.SubmissionKind, _ *types.SubmissionEdit,
) (*types.Submission, error) {
	return f.GetOfKind(ctx, id, kind)
}

func (f *fakeSubmissions) Delete(_ context.Context, user *types.User, _ int64, _ enum.SubmissionKind) error {
	if f.sub.UserID != user.ID {
		return types.ErrNotOwner
	}
	return nil
}

func (f *fakeSubmissions) Flag(
	ctx context.Context, _ *types.User, id int64, _ enum.FlagReason, _ string,
) (*types.Submission, error) {
	return f.GetOfKind(ctx, id, enum.SubmissionKindUpload)
}

func (f *fakeSubmissions) Reanalyze(ctx context.Context, _ *types.User, id int64) (*types.Submission, error) {
	return f.GetOfKind(ctx, id, f.sub.Kind)
}

func (f *fakeSubmissions) GetMapPoints(_ context.Context, box *types.BoundingBox) ([]*types.MapPoint, error) {
	return []*types.MapPoint{}, nil
}

type reviewCall struct {
	id      int64
	approve bool
	points  *int
}

type fakeReviews struct {
	calls []reviewCall
}

func (f *fakeReviews) ReviewUpload(
	_ context.Context, _ *types.User, id int64, approve bool, _ string, points *int,
) (*types.Submission, error) {
	f.calls = append(f.calls, reviewCall{id: id, approve: approve, points: points})
	return &types.Submission{ID: id, Kind: enum.SubmissionKindUpload, Status: enum.SubmissionStatusApproved}, nil
}

func (f *fakeReviews) ValidateReport(
	_ context.Context, _ *types.User, id int64, valid bool, _ string, points *int,
) (*types.Submission, error) {
	f.calls = append(f.calls, reviewCall{id: id, approve: valid, points: points})
	return &types.Submission{ID: id, Kind: enum.SubmissionKindReport, Status: enum.SubmissionStatusValidated}, nil
}

func (f *fakeReviews) ResolveReport(_ context.Context, _ *types.User, id int64) (*types.Submission, error) {
	return nil, types.ErrInvalidTransition
}

func (f *fakeReviews) PendingReports(_ context.Context, _ *types.User, _, _ int) ([]*types.Submission, int, error) {
	return []*types.Submission{}, 0, nil
}

type fakeLeaderboard struct {
	query types.LeaderboardQuery
}

func (f *fakeLeaderboard) GetLeaderboard(
	_ context.Context, query types.LeaderboardQuery, _ time.Time,
) ([]*types.LeaderboardEntry, error) {
	f.query = query
	return []*types.LeaderboardEntry{{Rank: 1, UserID: 1, Name: "Ana", TotalPoints: 120}}, nil
}

func (f *fakeLeaderboard) GetUserRank(_ context.Context, _ int64) (int64, error) {
	return 4, nil
}

type fakeStats struct{}

func (fakeStats) GetSystemStats(context.Context) (*types.SystemStats, error) {
	return &types.SystemStats{TotalUsers: 5, ValidatedReports: 2, MangrovesSaved: 20}, nil
}

func (fakeStats) GetHourlyStats(context.Context, time.Time) ([]*types.HourlyStats, error) {
	return nil, nil
}

type fakeViews struct{}

func (fakeViews) GetSystemStatsRefreshInfo(context.Context) (time.Time, time.Time, error) {
	last := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	return last, last.Add(5 * time.Minute), nil
}

type testServer struct {
	handler     http.Handler
	users       *fakeUsers
	submissions *fakeSubmissions
	reviews     *fakeReviews
	leaderboard *fakeLeaderboard
	sessions    *session.Manager
	jobs        *queue.Manager
	charts      *statistics.ChartCache
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()

	mr := miniredis.RunT(t)

	client, err := rueidis.NewClient(rueidis.ClientOption{
		InitAddress:  []string{mr.Addr()},
		DisableCache: true,
	})
	require.NoError(t, err)
	t.Cleanup(client.Close)

	logger := zap.NewNop()
	ts := &testServer{
		users:       newFakeUsers(),
		submissions: &fakeSubmissions{},
		reviews:     &fakeReviews{},
		leaderboard: &fakeLeaderboard{},
		sessions:    session.NewManager(client, time.Hour, logger),
		jobs:        queue.NewManager(client, logger),
		charts:      statistics.NewChartCache(client, logger),
	}

	cfg := &config.APIConfig{
		RateLimit: config.RateLimit{RequestsPerSecond: 1000, BurstSize: 1000, StrikeLimit: 5, BlockDuration: 60},
	}

	server := rest.NewServer(&rest.Services{
		Users:        ts.users,
		Sessions:     ts.sessions,
		Submissions:  ts.submissions,
		Reviews:      ts.reviews,
		Leaderboard:  ts.leaderboard,
		Stats:        fakeStats{},
		Views:        fakeViews{},
		Charts:       ts.charts,
		Workers:      core.NewMonitor(client, logger),
		Queue:        ts.jobs,
		SessionStore: ts.sessions,
		UserStore:    ts.users,
	}, cfg, logger)
	t.Cleanup(server.Close)

	ts.handler = server
	return ts
}

func (ts *testServer) login(t *testing.T, user *types.User) string {
	t.Helper()

	sess, err := ts.sessions.Create(t.Context(), user)
	require.NoError(t, err)
	return sess.Token
}

func (ts *testServer) do(t *testing.T, method, path, token string, body any) (*httptest.ResponseRecorder, envelope) {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		data, err := sonic.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequestWithContext(t.Context(), method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	rec := httptest.NewRecorder()
	ts.handler.ServeHTTP(rec, req)

	var env envelope
	if strings.HasPrefix(rec.Header().Get("Content-Type"), "application/json") {
		require.NoError(t, sonic.Unmarshal(rec.Body.Bytes(), &env))
	}
	return rec, env
}

func TestRegisterAndLogin(t *testing.T) {
	t.Parallel()

	ts := newTestServer(t)

	rec, env := ts.do(t, http.MethodPost, "/v1/auth/register", "", types.Registration{
		Name: "Ana", Password: "Secret1", Role: enum.RoleCommunity,
	})
	require.Equal(t, http.StatusCreated, rec.Code)
	assert.True(t, env.Success)

	var auth struct {
		Token string      `json:"token"`
		User  *types.User `json:"user"`
	}
	require.NoError(t, sonic.Unmarshal(env.Data, &auth))
	assert.NotEmpty(t, auth.Token)
	assert.Equal(t, "Ana", auth.User.Name)

	rec, env = ts.do(t, http.MethodPost, "/v1/auth/login", "", map[string]string{
		"email": "ana@example.org", "password": "wrong",
	})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.False(t, env.Success)
	assert.Equal(t, types.ErrInvalidCredentials.Error(), env.Message)

	rec, _ = ts.do(t, http.MethodPost, "/v1/auth/login", "", map[string]string{
		"email": "ana@example.org", "password": "Secret1",
	})
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestAuthRequired(t *testing.T) {
	t.Parallel()

	ts := newTestServer(t)
	user := ts.users.add("Ben", enum.RoleCommunity, "pw")

	tests := []struct {
		name   string
		token  string
		status int
	}{
		{"missing token", "", http.StatusUnauthorized},
		{"unknown token", "not-a-session", http.StatusUnauthorized},
		{"valid token", ts.login(t, user), http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			rec, env := ts.do(t, http.MethodGet, "/v1/users/me", tt.token, nil)
			assert.Equal(t, tt.status, rec.Code)
			assert.Equal(t, tt.status == http.StatusOK, env.Success)
		})
	}
}

func TestLogoutEndsSession(t *testing.T) {
	t.Parallel()

	ts := newTestServer(t)
	token := ts.login(t, ts.users.add("Cal", enum.RoleCommunity, "pw"))

	rec, _ := ts.do(t, http.MethodPost, "/v1/auth/logout", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec, _ = ts.do(t, http.MethodGet, "/v1/users/me", token, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestAdminRoutesRequireGovtRole(t *testing.T) {
	t.Parallel()

	ts := newTestServer(t)
	community := ts.login(t, ts.users.add("Dee", enum.RoleCommunity, "pw"))
	ngo := ts.login(t, ts.users.add("Eve", enum.RoleNGO, "pw"))
	admin := ts.login(t, ts.users.add("Fay", enum.RoleGovt, "pw"))

	for _, token := range []string{community, ngo} {
		rec, env := ts.do(t, http.MethodGet, "/v1/admin/stats", token, nil)
		assert.Equal(t, http.StatusForbidden, rec.Code)
		assert.False(t, env.Success)
	}

	rec, env := ts.do(t, http.MethodGet, "/v1/admin/stats", admin, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var stats struct {
		MangrovesSaved int64 `json:"mangrovesSaved"`
		Queue          struct {
			Normal int `json:"normal"`
		} `json:"queue"`
	}
	require.NoError(t, sonic.Unmarshal(env.Data, &stats))
	assert.Equal(t, int64(20), stats.MangrovesSaved)
	assert.Zero(t, stats.Queue.Normal)
}

func TestReviewDecision(t *testing.T) {
	t.Parallel()

	ts := newTestServer(t)
	admin := ts.login(t, ts.users.add("Gus", enum.RoleGovt, "pw"))

	tests := []struct {
		name    string
		path    string
		body    map[string]any
		status  int
		approve bool
	}{
		{
			name:    "approve upload with override",
			path:    "/v1/admin/uploads/7/review",
			body:    map[string]any{"decision": "approve", "notes": "clear photo", "points": 80},
			status:  http.StatusOK,
			approve: true,
		},
		{
			name:   "reject upload",
			path:   "/v1/admin/uploads/7/review",
			body:   map[string]any{"decision": "reject"},
			status: http.StatusOK,
		},
		{
			name:    "validate report",
			path:    "/v1/admin/reports/3/validate",
			body:    map[string]any{"decision": "valid"},
			status:  http.StatusOK,
			approve: true,
		},
		{
			name:   "upload decision on report route",
			path:   "/v1/admin/reports/3/validate",
			body:   map[string]any{"decision": "approve"},
			status: http.StatusBadRequest,
		},
	}

	for _, tt := range tests {
		before := len(ts.reviews.calls)

		rec, _ := ts.do(t, http.MethodPut, tt.path, admin, tt.body)
		require.Equal(t, tt.status, rec.Code, tt.name)

		if tt.status != http.StatusOK {
			assert.Len(t, ts.reviews.calls, before, tt.name)
			continue
		}

		require.Len(t, ts.reviews.calls, before+1, tt.name)
		assert.Equal(t, tt.approve, ts.reviews.calls[before].approve, tt.name)
	}

	require.NotNil(t, ts.reviews.calls[0].points)
	assert.Equal(t, 80, *ts.reviews.calls[0].points)
}

func TestResolveConflict(t *testing.T) {
	t.Parallel()

	ts := newTestServer(t)
	admin := ts.login(t, ts.users.add("Hal", enum.RoleGovt, "pw"))

	rec, env := ts.do(t, http.MethodPut, "/v1/admin/reports/3/resolve", admin, nil)
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, types.ErrInvalidTransition.Error(), env.Message)
}

func TestBanRevokesSessions(t *testing.T) {
	t.Parallel()

	ts := newTestServer(t)
	admin := ts.login(t, ts.users.add("Ivy", enum.RoleGovt, "pw"))
	target := ts.users.add("Jon", enum.RoleCommunity, "pw")
	token := ts.login(t, target)

	rec, _ := ts.do(t, http.MethodPost, "/v1/admin/users/2/ban", admin, map[string]string{"reason": "spam uploads"})
	require.Equal(t, http.StatusOK, rec.Code)

	rec, _ = ts.do(t, http.MethodGet, "/v1/users/me", token, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestLeaderboardQuery(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		query  string
		status int
		window enum.LeaderboardWindow
	}{
		{"default window", "", http.StatusOK, enum.LeaderboardWindowAll},
		{"month", "?window=month&limit=5", http.StatusOK, enum.LeaderboardWindowMonth},
		{"case insensitive", "?window=WEEK", http.StatusOK, enum.LeaderboardWindowWeek},
		{"unknown window", "?window=decade", http.StatusBadRequest, 0},
		{"bad limit", "?limit=ten", http.StatusBadRequest, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			ts := newTestServer(t)

			rec, _ := ts.do(t, http.MethodGet, "/v1/leaderboard"+tt.query, "", nil)
			require.Equal(t, tt.status, rec.Code)
			if tt.status == http.StatusOK {
				assert.Equal(t, tt.window, ts.leaderboard.query.Window)
			}
		})
	}
}

func TestMapBoundingBox(t *testing.T) {
	t.Parallel()

	ts := newTestServer(t)

	rec, _ := ts.do(t, http.MethodGet, "/v1/map", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec, _ = ts.do(t, http.MethodGet, "/v1/map?minLat=1&minLng=103&maxLat=2&maxLng=104", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec, _ = ts.do(t, http.MethodGet, "/v1/map?minLat=1", "", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSubmissionHidesOwnerContact(t *testing.T) {
	t.Parallel()

	ts := newTestServer(t)
	owner := ts.users.add("Kim", enum.RoleCommunity, "pw")
	ts.submissions.sub = &types.Submission{
		ID:     9,
		Kind:   enum.SubmissionKindUpload,
		UserID: owner.ID,
		Status: enum.SubmissionStatusPending,
		Owner:  owner,
	}

	rec, env := ts.do(t, http.MethodGet, "/v1/uploads/9", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.NotContains(t, string(env.Data), owner.Email)
	assert.NotContains(t, string(env.Data), owner.Phone)
	assert.Contains(t, string(env.Data), `"name":"Kim"`)

	// Reports and uploads are separate resources
	rec, _ = ts.do(t, http.MethodGet, "/v1/reports/9", "", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec, _ = ts.do(t, http.MethodGet, "/v1/uploads/abc", "", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestDeleteRequiresOwner(t *testing.T) {
	t.Parallel()

	ts := newTestServer(t)
	owner := ts.users.add("Lou", enum.RoleCommunity, "pw")
	other := ts.login(t, ts.users.add("Max", enum.RoleCommunity, "pw"))
	ts.submissions.sub = &types.Submission{ID: 4, Kind: enum.SubmissionKindReport, UserID: owner.ID}

	rec, _ := ts.do(t, http.MethodDelete, "/v1/reports/4", other, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec, _ = ts.do(t, http.MethodDelete, "/v1/reports/4", ts.login(t, owner), nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestStatsChart(t *testing.T) {
	t.Parallel()

	ts := newTestServer(t)
	admin := ts.login(t, ts.users.add("Ned", enum.RoleGovt, "pw"))

	cached := []byte("\x89PNG cached")
	require.NoError(t, ts.charts.Set(t.Context(), statistics.ChartPoints, cached))

	rec, _ := ts.do(t, http.MethodGet, "/v1/admin/stats/chart?kind=points", admin, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "image/png", rec.Header().Get("Content-Type"))
	assert.Equal(t, cached, rec.Body.Bytes())

	// Rendered on demand and cached when the worker has not run yet
	rec, _ = ts.do(t, http.MethodGet, "/v1/admin/stats/chart", admin, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, bytes.HasPrefix(rec.Body.Bytes(), []byte("\x89PNG")))

	png, err := ts.charts.Get(t.Context(), statistics.ChartActivity)
	require.NoError(t, err)
	assert.Equal(t, rec.Body.Bytes(), png)

	rec, _ = ts.do(t, http.MethodGet, "/v1/admin/stats/chart?kind=pie", admin, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestUnknownRoute(t *testing.T) {
	t.Parallel()

	ts := newTestServer(t)

	rec, env := ts.do(t, http.MethodGet, "/v1/nowhere", "", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.False(t, env.Success)
}
