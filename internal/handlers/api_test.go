package handlers_test

import (
	"bytes"
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/abrezinsky/standings/internal/auth"
	"github.com/abrezinsky/standings/internal/cache"
	"github.com/abrezinsky/standings/internal/handlers"
	"github.com/abrezinsky/standings/internal/logger"
	"github.com/abrezinsky/standings/internal/metrics"
	"github.com/abrezinsky/standings/internal/models"
	"github.com/abrezinsky/standings/internal/repository"
	"github.com/abrezinsky/standings/internal/services"
	"github.com/abrezinsky/standings/internal/standings"
	"github.com/abrezinsky/standings/internal/testutil"
	"github.com/abrezinsky/standings/pkg/mailer"
)

const adminToken = "test-token"

type testServer struct {
	repo   *repository.Repository
	mail   *mailer.MockClient
	router http.Handler
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	metrics.Register()

	repo := testutil.NewTestRepository(t)
	log := logger.NewWithOptions(logger.Options{Level: slog.LevelError, Writer: io.Discard})
	mail := mailer.NewMockClient()

	standingsSvc := services.NewStandingsService(log, repo, cache.New(0, nil), nil)
	qualSvc := services.NewQualificationService(log, repo, services.NewRepositoryNotifier(repo), mail, "https://example.com")
	inviteSvc := services.NewInvitationService(log, repo, mail, "https://example.com")

	h := handlers.New(standingsSvc, qualSvc, inviteSvc, auth.New(adminToken), repo, log)
	return &testServer{repo: repo, mail: mail, router: h.Router()}
}

func (s *testServer) seed(t *testing.T) {
	t.Helper()
	testutil.SeedSeason(t, s.repo, "2026", true, testutil.Int(100))
	if err := s.repo.CreateProfile(context.Background(), models.Profile{ID: "u1", Email: "ann@example.com", FirstName: "Ann"}); err != nil {
		t.Fatalf("CreateProfile failed: %v", err)
	}
	testutil.SeedResults(t, s.repo,
		testutil.Result{Key: "1001", Name: "Ann Lee", UserID: "u1", Class: "SQL 1", Format: "SQL", Season: "2026", Event: "e1", Points: 70, Placement: 1},
		testutil.Result{Key: "1001", Name: "Ann Lee", UserID: "u1", Class: "SQL 1", Format: "SQL", Season: "2026", Event: "e2", Points: 40, Placement: 2},
		testutil.Result{Key: "1002", Name: "Bo Park", Class: "SQL 1", Format: "SQL", Season: "2026", Event: "e1", Points: 30, Placement: 2},
		testutil.Result{Key: "0", Name: "Walk In", Class: "SPL 2", Format: "SPL", Season: "2026", Event: "e1", Points: 10, Placement: 1},
	)
}

func (s *testServer) do(t *testing.T, method, path string, body any, admin bool) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal failed: %v", err)
		}
		reader = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if admin {
		req.Header.Set("Authorization", "Bearer "+adminToken)
	}
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.NewDecoder(rec.Body).Decode(&v); err != nil {
		t.Fatalf("failed to decode response %q: %v", rec.Body.String(), err)
	}
	return v
}

func TestHealth(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(t, http.MethodGet, "/healthz", nil, false)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if resp := decode[handlers.HealthResponse](t, rec); resp.Status != "ok" {
		t.Errorf("expected ok, got %+v", resp)
	}
}

type failingPinger struct{}

func (failingPinger) Ping(ctx context.Context) error { return stderrors.New("db gone") }

func TestHealth_Unavailable(t *testing.T) {
	h := handlers.New(nil, nil, nil, auth.New(adminToken), failingPinger{}, nil)
	rec := httptest.NewRecorder()
	h.Router().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("expected 503, got %d", rec.Code)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	s := newTestServer(t)
	s.do(t, http.MethodGet, "/api/standings/leaderboard", nil, false)

	rec := s.do(t, http.MethodGet, "/metrics", nil, false)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `route="/api/standings/leaderboard"`) {
		t.Error("expected request metrics labelled by route pattern")
	}
}

func TestLeaderboard(t *testing.T) {
	s := newTestServer(t)
	s.seed(t)

	rec := s.do(t, http.MethodGet, "/api/standings/leaderboard?seasonId=2026", nil, false)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	lb := decode[standings.Leaderboard](t, rec)
	if lb.Total != 3 || lb.Entries[0].CompetitorKey != "1001" || lb.Entries[0].TotalPoints != 110 {
		t.Errorf("unexpected leaderboard: %+v", lb)
	}
}

func TestLeaderboard_Pagination(t *testing.T) {
	s := newTestServer(t)
	s.seed(t)

	rec := s.do(t, http.MethodGet, "/api/standings/leaderboard?seasonId=2026&limit=1&offset=1", nil, false)
	lb := decode[standings.Leaderboard](t, rec)
	if len(lb.Entries) != 1 || lb.Entries[0].Rank != 2 || lb.Total != 3 {
		t.Errorf("unexpected page: %+v", lb)
	}

	for _, q := range []string{"limit=abc", "limit=-1", "offset=x"} {
		rec := s.do(t, http.MethodGet, "/api/standings/leaderboard?"+q, nil, false)
		if rec.Code != http.StatusBadRequest {
			t.Errorf("%s: expected 400, got %d", q, rec.Code)
		}
	}
}

func TestFormatAndClassStandings(t *testing.T) {
	s := newTestServer(t)
	s.seed(t)

	rec := s.do(t, http.MethodGet, "/api/standings/format/sql?seasonId=2026", nil, false)
	lb := decode[standings.Leaderboard](t, rec)
	if lb.Format != "SQL" || lb.Total != 2 {
		t.Errorf("unexpected format standings: %+v", lb)
	}

	rec = s.do(t, http.MethodGet, "/api/standings/format/SPL/class/SPL%202?seasonId=2026", nil, false)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	lb = decode[standings.Leaderboard](t, rec)
	if lb.CompetitionClass != "SPL 2" || lb.Total != 1 || !lb.Entries[0].IsGuest {
		t.Errorf("unexpected class standings: %+v", lb)
	}
}

func TestTeamsFormatsAndClasses(t *testing.T) {
	s := newTestServer(t)
	s.seed(t)

	rec := s.do(t, http.MethodGet, "/api/standings/teams?seasonId=2026", nil, false)
	if teams := decode[standings.TeamLeaderboard](t, rec); teams.Total != 0 || teams.Entries == nil {
		t.Errorf("expected empty team leaderboard, got %+v", teams)
	}

	rec = s.do(t, http.MethodGet, "/api/standings/formats?seasonId=2026", nil, false)
	if summaries := decode[[]standings.FormatSummary](t, rec); len(summaries) != len(services.DefaultFormats) {
		t.Errorf("expected %d summaries, got %d", len(services.DefaultFormats), len(summaries))
	}

	rec = s.do(t, http.MethodGet, "/api/standings/classes?format=SQL&seasonId=2026", nil, false)
	catalog := decode[[]standings.ClassSummary](t, rec)
	if len(catalog) != 1 || catalog[0].ClassName != "SQL 1" || catalog[0].ResultCount != 3 {
		t.Errorf("unexpected catalog: %+v", catalog)
	}
}

func TestCompetitorStats(t *testing.T) {
	s := newTestServer(t)
	s.seed(t)

	rec := s.do(t, http.MethodGet, "/api/standings/competitor/1002?seasonId=2026", nil, false)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	stats := decode[standings.CompetitorStats](t, rec)
	if stats.Ranking != 2 || stats.TotalPoints != 30 {
		t.Errorf("unexpected stats: %+v", stats)
	}

	rec = s.do(t, http.MethodGet, "/api/standings/competitor/4242", nil, false)
	if rec.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", rec.Code)
	}
}

func TestCacheEndpoints_RequireAdmin(t *testing.T) {
	s := newTestServer(t)
	s.seed(t)

	paths := []string{"/api/standings/cache/clear", "/api/standings/cache/warm"}
	for _, p := range paths {
		if rec := s.do(t, http.MethodPost, p, nil, false); rec.Code != http.StatusUnauthorized {
			t.Errorf("%s: expected 401, got %d", p, rec.Code)
		}
	}

	if rec := s.do(t, http.MethodPost, "/api/standings/cache/clear", nil, true); rec.Code != http.StatusNoContent {
		t.Errorf("expected 204, got %d", rec.Code)
	}
	if rec := s.do(t, http.MethodPost, "/api/standings/cache/warm", nil, true); rec.Code != http.StatusOK {
		t.Errorf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestWarmCache_NoCurrentSeason(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(t, http.MethodPost, "/api/standings/cache/warm", nil, true)
	if rec.Code != http.StatusNotFound {
		t.Errorf("expected 404 without a current season, got %d", rec.Code)
	}
}

func TestQualificationFlow(t *testing.T) {
	s := newTestServer(t)
	s.seed(t)

	rec := s.do(t, http.MethodPost, "/api/world-finals/evaluate", handlers.EvaluateRequest{
		CompetitorKey: "1001", CompetitorName: "Ann Lee", UserID: testutil.String("u1"),
		SeasonID: "2026", CompetitionClass: "SQL 1",
	}, true)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	eval := decode[handlers.EvaluateResponse](t, rec)
	if !eval.Qualified || eval.Qualification.TotalPoints != 110 {
		t.Fatalf("expected qualification at 110, got %+v", eval)
	}

	rec = s.do(t, http.MethodPost, "/api/world-finals/evaluate", handlers.EvaluateRequest{
		CompetitorKey: "1002", SeasonID: "2026", CompetitionClass: "SQL 1",
	}, true)
	if eval := decode[handlers.EvaluateResponse](t, rec); eval.Qualified || eval.Qualification != nil {
		t.Errorf("expected 1002 below threshold, got %+v", eval)
	}

	rec = s.do(t, http.MethodGet, "/api/world-finals/qualified/1001?seasonId=2026&class=SQL%201", nil, false)
	if resp := decode[handlers.QualifiedResponse](t, rec); !resp.Qualified {
		t.Errorf("expected qualified, got %+v", resp)
	}

	rec = s.do(t, http.MethodPost, "/api/world-finals/statuses", handlers.StatusesRequest{
		SeasonID: "2026", CompetitorKeys: []string{"1001", "1002"},
	}, false)
	statuses := decode[handlers.StatusesResponse](t, rec)
	if len(statuses.Statuses["1001"]) != 1 || len(statuses.Statuses["1002"]) != 0 {
		t.Errorf("unexpected statuses: %+v", statuses)
	}

	rec = s.do(t, http.MethodGet, "/api/world-finals/seasons/2026/qualifications", nil, true)
	if list := decode[handlers.QualificationsResponse](t, rec); list.Total != 1 {
		t.Errorf("expected 1 qualification, got %+v", list)
	}

	rec = s.do(t, http.MethodGet, "/api/world-finals/current", nil, true)
	if list := decode[handlers.QualificationsResponse](t, rec); list.Total != 1 {
		t.Errorf("expected 1 current qualification, got %+v", list)
	}

	rec = s.do(t, http.MethodGet, "/api/world-finals/stats?seasonId=2026", nil, true)
	stats := decode[services.QualificationStats](t, rec)
	if stats.TotalQualifications != 1 || stats.EmailsSent != 1 {
		t.Errorf("unexpected stats: %+v", stats)
	}

	rec = s.do(t, http.MethodPost, "/api/world-finals/seasons/2026/recalculate", nil, true)
	if result := decode[services.RecalculateResult](t, rec); result.New != 0 || result.Updated != 0 {
		t.Errorf("expected recalculation to find nothing new, got %+v", result)
	}
}

func TestEvaluate_Validation(t *testing.T) {
	s := newTestServer(t)
	s.seed(t)

	rec := s.do(t, http.MethodPost, "/api/world-finals/evaluate", handlers.EvaluateRequest{CompetitorKey: "1001", SeasonID: "2026"}, true)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400 without a class, got %d", rec.Code)
	}

	req := httptest.NewRequest(http.MethodPost, "/api/world-finals/evaluate", strings.NewReader("{nope"))
	req.Header.Set("Authorization", "Bearer "+adminToken)
	rec = httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for bad JSON, got %d", rec.Code)
	}
}

func TestStatuses_MissingSeason(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(t, http.MethodPost, "/api/world-finals/statuses", handlers.StatusesRequest{CompetitorKeys: []string{"1"}}, false)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", rec.Code)
	}
}

func TestInvitationFlow(t *testing.T) {
	s := newTestServer(t)
	s.seed(t)

	rec := s.do(t, http.MethodPost, "/api/world-finals/seasons/2026/recalculate", nil, true)
	if result := decode[services.RecalculateResult](t, rec); result.New != 1 {
		t.Fatalf("expected 1 new qualification, got %+v", result)
	}
	q, err := s.repo.FindQualification(context.Background(), models.QualificationKey{SeasonID: "2026", CompetitorKey: "1001", CompetitionClass: "SQL 1"})
	if err != nil {
		t.Fatalf("FindQualification failed: %v", err)
	}

	rec = s.do(t, http.MethodGet, "/api/world-finals/qualifications/"+q.ID+"/qr", nil, true)
	if rec.Code != http.StatusNotFound {
		t.Errorf("expected 404 before an invitation is issued, got %d", rec.Code)
	}

	rec = s.do(t, http.MethodPost, "/api/world-finals/seasons/2026/invite-pending", nil, true)
	if batch := decode[services.BatchResult](t, rec); batch.Sent != 1 || batch.Failed != 0 {
		t.Fatalf("expected 1 sent, got %+v", batch)
	}

	rec = s.do(t, http.MethodGet, "/api/world-finals/qualifications/"+q.ID+"/qr", nil, true)
	if rec.Code != http.StatusOK || rec.Header().Get("Content-Type") != "image/png" {
		t.Errorf("expected PNG, got %d %s", rec.Code, rec.Header().Get("Content-Type"))
	}

	issued, _ := s.repo.GetQualification(context.Background(), q.ID)
	token := *issued.InvitationToken

	rec = s.do(t, http.MethodPost, "/api/world-finals/redeem", handlers.RedeemRequest{Token: token}, false)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if redeemed := decode[models.Qualification](t, rec); !redeemed.InvitationRedeemed {
		t.Errorf("expected redeemed record, got %+v", redeemed)
	}

	rec = s.do(t, http.MethodPost, "/api/world-finals/redeem", handlers.RedeemRequest{Token: token}, false)
	if rec.Code != http.StatusNotFound {
		t.Errorf("expected 404 on second redemption, got %d", rec.Code)
	}

	rec = s.do(t, http.MethodPost, "/api/world-finals/qualifications/"+q.ID+"/invite", nil, true)
	if rec.Code != http.StatusConflict {
		t.Errorf("expected 409 re-inviting a redeemed record, got %d", rec.Code)
	}
}

func TestSendInvitation_NotFound(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(t, http.MethodPost, "/api/world-finals/qualifications/missing/invite", nil, true)
	if rec.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", rec.Code)
	}
}

func TestRedeem_MissingToken(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(t, http.MethodPost, "/api/world-finals/redeem", handlers.RedeemRequest{}, false)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", rec.Code)
	}
}

func TestWorldFinalsAdminRoutes_RequireAdmin(t *testing.T) {
	s := newTestServer(t)

	routes := []struct{ method, path string }{
		{http.MethodPost, "/api/world-finals/evaluate"},
		{http.MethodPost, "/api/world-finals/seasons/2026/recalculate"},
		{http.MethodGet, "/api/world-finals/seasons/2026/qualifications"},
		{http.MethodGet, "/api/world-finals/current"},
		{http.MethodGet, "/api/world-finals/stats"},
		{http.MethodPost, "/api/world-finals/qualifications/x/invite"},
		{http.MethodGet, "/api/world-finals/qualifications/x/qr"},
		{http.MethodPost, "/api/world-finals/seasons/2026/invite-pending"},
	}
	for _, rt := range routes {
		if rec := s.do(t, rt.method, rt.path, nil, false); rec.Code != http.StatusUnauthorized {
			t.Errorf("%s %s: expected 401, got %d", rt.method, rt.path, rec.Code)
		}
	}
}

type limitRecorder struct {
	services.StandingsServicer
	limits []int
}

func (l *limitRecorder) SeasonLeaderboard(ctx context.Context, seasonID string, limit, offset int) (*standings.Leaderboard, error) {
	l.limits = append(l.limits, limit)
	return &standings.Leaderboard{Entries: []standings.LeaderboardEntry{}}, nil
}

func TestLeaderboard_LimitIsCapped(t *testing.T) {
	rec := &limitRecorder{}
	router := handlers.New(rec, nil, nil, auth.New(adminToken), nil, nil).Router()

	for _, q := range []string{"", "?limit=20", "?limit=0", "?limit=100000"} {
		router.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/standings/leaderboard"+q, nil))
	}

	want := []int{handlers.DefaultLeaderboardLimit, 20, handlers.MaxLimit, handlers.MaxLimit}
	if fmt.Sprint(rec.limits) != fmt.Sprint(want) {
		t.Errorf("expected limits %v, got %v", want, rec.limits)
	}
}
