package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"artisanmarket/pkg/auth"
	"artisanmarket/pkg/rating"
	"artisanmarket/reviews-service/internal/app/reviews/entity"
	"artisanmarket/reviews-service/internal/app/reviews/repository"
	"artisanmarket/reviews-service/internal/app/reviews/service"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

const testSecret = "handler-test-secret"

type MockReviewService struct {
	mock.Mock
}

func (m *MockReviewService) Submit(ctx context.Context, clientID string, req *entity.CreateReviewRequest) (*entity.Review, error) {
	args := m.Called(ctx, clientID, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entity.Review), args.Error(1)
}

func (m *MockReviewService) GetReview(ctx context.Context, reviewID string) (*entity.Review, error) {
	args := m.Called(ctx, reviewID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entity.Review), args.Error(1)
}

func (m *MockReviewService) UpdateReview(ctx context.Context, reviewID string, clientID string, req *entity.UpdateReviewRequest) (*entity.Review, error) {
	args := m.Called(ctx, reviewID, clientID, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entity.Review), args.Error(1)
}

func (m *MockReviewService) ResubmitReview(ctx context.Context, reviewID string, clientID string) (*entity.Review, error) {
	args := m.Called(ctx, reviewID, clientID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entity.Review), args.Error(1)
}

func (m *MockReviewService) FlagReview(ctx context.Context, reviewID string, note string) (*entity.Review, error) {
	args := m.Called(ctx, reviewID, note)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entity.Review), args.Error(1)
}

func (m *MockReviewService) ListPublished(ctx context.Context, kind rating.SubjectKind, subjectID string) ([]rating.PublishedReview, error) {
	args := m.Called(ctx, kind, subjectID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]rating.PublishedReview), args.Error(1)
}

func setupTestRouter(svc *MockReviewService) *gin.Engine {
	gin.SetMode(gin.TestMode)
	return SetupRoutes(NewReviewHandler(svc), auth.NewMiddleware(testSecret))
}

func tokenFor(t *testing.T, userID, role string) string {
	token, err := auth.IssueToken(testSecret, userID, role, time.Minute)
	require.NoError(t, err)
	return token
}

func doJSON(router *gin.Engine, method, path, token string, body interface{}) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req, _ := http.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func sampleReview(status entity.ReviewStatus) *entity.Review {
	return &entity.Review{
		ID:            "review-1",
		OrderID:       "order-1",
		ArtisanID:     "artisan-1",
		ClientID:      "client-1",
		ServiceID:     "service-1",
		Feedback:      entity.Feedback{Comment: "Great work"},
		ArtisanRating: entity.Rating{Value: 5},
		ServiceRating: entity.Rating{Value: 4},
		Status:        status,
		Version:       1,
	}
}

func validCreateRequest() entity.CreateReviewRequest {
	return entity.CreateReviewRequest{
		OrderID:       "order-1",
		ArtisanID:     "artisan-1",
		ServiceID:     "service-1",
		Comment:       "Great work",
		ArtisanRating: entity.RatingInput{Value: 5},
		ServiceRating: entity.RatingInput{Value: 4},
	}
}

// ===================== Submit Tests =====================

func TestSubmitReviewHandler_Accepted(t *testing.T) {
	svc := new(MockReviewService)
	svc.On("Submit", mock.Anything, "client-1", mock.AnythingOfType("*entity.CreateReviewRequest")).
		Return(sampleReview(entity.StatusPending), nil)

	w := doJSON(setupTestRouter(svc), http.MethodPost, "/reviews", tokenFor(t, "client-1", auth.RoleClient), validCreateRequest())

	assert.Equal(t, http.StatusAccepted, w.Code)

	var resp entity.SubmissionResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "review-1", resp.Review.ID)
	assert.Equal(t, entity.StatusPending, resp.Review.Status)
	svc.AssertExpectations(t)
}

func TestSubmitReviewHandler_Unauthenticated(t *testing.T) {
	svc := new(MockReviewService)

	w := doJSON(setupTestRouter(svc), http.MethodPost, "/reviews", "", validCreateRequest())

	assert.Equal(t, http.StatusUnauthorized, w.Code)
	svc.AssertNotCalled(t, "Submit", mock.Anything, mock.Anything, mock.Anything)
}

func TestSubmitReviewHandler_WrongRole(t *testing.T) {
	svc := new(MockReviewService)

	w := doJSON(setupTestRouter(svc), http.MethodPost, "/reviews", tokenFor(t, "mod-1", auth.RoleModerator), validCreateRequest())

	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestSubmitReviewHandler_MissingIDs(t *testing.T) {
	svc := new(MockReviewService)
	req := validCreateRequest()
	req.ServiceID = ""

	w := doJSON(setupTestRouter(svc), http.MethodPost, "/reviews", tokenFor(t, "client-1", auth.RoleClient), req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "ServiceID")
	svc.AssertNotCalled(t, "Submit", mock.Anything, mock.Anything, mock.Anything)
}

func TestSubmitReviewHandler_ErrorMapping(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected int
	}{
		{"validation", &entity.ValidationError{Field: "ArtisanRating.Value", Reason: "must be at most 5"}, http.StatusBadRequest},
		{"reference not found", fmt.Errorf("%w: artisan artisan-1", service.ErrReferenceNotFound), http.StatusUnprocessableEntity},
		{"shutting down", service.ErrShuttingDown, http.StatusServiceUnavailable},
		{"unexpected", errors.New("mongo down"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := new(MockReviewService)
			svc.On("Submit", mock.Anything, "client-1", mock.Anything).Return(nil, tt.err)

			w := doJSON(setupTestRouter(svc), http.MethodPost, "/reviews", tokenFor(t, "client-1", auth.RoleClient), validCreateRequest())

			assert.Equal(t, tt.expected, w.Code)
		})
	}
}

func TestSubmitReviewHandler_ValidationMessage(t *testing.T) {
	svc := new(MockReviewService)
	svc.On("Submit", mock.Anything, "client-1", mock.Anything).
		Return(nil, &entity.ValidationError{Field: "ArtisanRating.Value", Reason: "must be at most 5"})

	w := doJSON(setupTestRouter(svc), http.MethodPost, "/reviews", tokenFor(t, "client-1", auth.RoleClient), validCreateRequest())

	var resp entity.ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "ArtisanRating.Value must be at most 5", resp.Message)
}

// ===================== Get Tests =====================

func TestGetReviewHandler_Success(t *testing.T) {
	svc := new(MockReviewService)
	svc.On("GetReview", mock.Anything, "review-1").Return(sampleReview(entity.StatusPublished), nil)

	w := doJSON(setupTestRouter(svc), http.MethodGet, "/reviews/review-1", tokenFor(t, "client-2", auth.RoleClient), nil)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"status":"published"`)
}

func TestGetReviewHandler_NotFound(t *testing.T) {
	svc := new(MockReviewService)
	svc.On("GetReview", mock.Anything, "missing").Return(nil, service.ErrReviewNotFound)

	w := doJSON(setupTestRouter(svc), http.MethodGet, "/reviews/missing", tokenFor(t, "client-1", auth.RoleClient), nil)

	assert.Equal(t, http.StatusNotFound, w.Code)
}

// ===================== Update / Resubmit Tests =====================

func TestUpdateReviewHandler_Accepted(t *testing.T) {
	svc := new(MockReviewService)
	comment := "Changed my mind"
	svc.On("UpdateReview", mock.Anything, "review-1", "client-1", mock.MatchedBy(func(req *entity.UpdateReviewRequest) bool {
		return req.Comment != nil && *req.Comment == comment
	})).Return(sampleReview(entity.StatusPending), nil)

	w := doJSON(setupTestRouter(svc), http.MethodPatch, "/reviews/review-1", tokenFor(t, "client-1", auth.RoleClient),
		entity.UpdateReviewRequest{Comment: &comment})

	assert.Equal(t, http.StatusAccepted, w.Code)
	svc.AssertExpectations(t)
}

func TestUpdateReviewHandler_ErrorMapping(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected int
	}{
		{"nothing to update", service.ErrNothingToUpdate, http.StatusBadRequest},
		{"not owner", service.ErrUnauthorized, http.StatusForbidden},
		{"processing", &entity.IllegalStateTransitionError{From: entity.StatusProcessing, Action: "edit"}, http.StatusConflict},
		{"concurrent write", fmt.Errorf("failed to update review: %w", repository.ErrConcurrencyConflict), http.StatusConflict},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := new(MockReviewService)
			svc.On("UpdateReview", mock.Anything, "review-1", "client-1", mock.Anything).Return(nil, tt.err)

			w := doJSON(setupTestRouter(svc), http.MethodPatch, "/reviews/review-1", tokenFor(t, "client-1", auth.RoleClient),
				entity.UpdateReviewRequest{})

			assert.Equal(t, tt.expected, w.Code)
		})
	}
}

func TestResubmitReviewHandler_Accepted(t *testing.T) {
	svc := new(MockReviewService)
	svc.On("ResubmitReview", mock.Anything, "review-1", "client-1").Return(sampleReview(entity.StatusPending), nil)

	w := doJSON(setupTestRouter(svc), http.MethodPost, "/reviews/review-1/resubmit", tokenFor(t, "client-1", auth.RoleClient), nil)

	assert.Equal(t, http.StatusAccepted, w.Code)
}

func TestResubmitReviewHandler_InProgress(t *testing.T) {
	svc := new(MockReviewService)
	svc.On("ResubmitReview", mock.Anything, "review-1", "client-1").Return(nil, service.ErrSagaInProgress)

	w := doJSON(setupTestRouter(svc), http.MethodPost, "/reviews/review-1/resubmit", tokenFor(t, "client-1", auth.RoleClient), nil)

	assert.Equal(t, http.StatusConflict, w.Code)
}

// ===================== Moderation Tests =====================

func TestFlagReviewHandler_Moderator(t *testing.T) {
	svc := new(MockReviewService)
	flagged := sampleReview(entity.StatusFlagged)
	svc.On("FlagReview", mock.Anything, "review-1", "spam").Return(flagged, nil)

	w := doJSON(setupTestRouter(svc), http.MethodPost, "/reviews/review-1/flag", tokenFor(t, "mod-1", auth.RoleModerator),
		entity.FlagReviewRequest{Note: "spam"})

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"status":"flagged"`)
}

func TestFlagReviewHandler_ClientForbidden(t *testing.T) {
	svc := new(MockReviewService)

	w := doJSON(setupTestRouter(svc), http.MethodPost, "/reviews/review-1/flag", tokenFor(t, "client-1", auth.RoleClient),
		entity.FlagReviewRequest{Note: "spam"})

	assert.Equal(t, http.StatusForbidden, w.Code)
	svc.AssertNotCalled(t, "FlagReview", mock.Anything, mock.Anything, mock.Anything)
}

func TestFlagReviewHandler_MissingNote(t *testing.T) {
	svc := new(MockReviewService)

	w := doJSON(setupTestRouter(svc), http.MethodPost, "/reviews/review-1/flag", tokenFor(t, "mod-1", auth.RoleModerator),
		entity.FlagReviewRequest{})

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestFlagReviewHandler_PublishedConflict(t *testing.T) {
	svc := new(MockReviewService)
	svc.On("FlagReview", mock.Anything, "review-1", "spam").
		Return(nil, &entity.IllegalStateTransitionError{From: entity.StatusPublished, Action: "flag"})

	w := doJSON(setupTestRouter(svc), http.MethodPost, "/reviews/review-1/flag", tokenFor(t, "mod-1", auth.RoleModerator),
		entity.FlagReviewRequest{Note: "spam"})

	assert.Equal(t, http.StatusConflict, w.Code)
}

// ===================== Internal Tests =====================

func TestListPublishedHandler_ByArtisan(t *testing.T) {
	svc := new(MockReviewService)
	svc.On("ListPublished", mock.Anything, rating.SubjectArtisan, "artisan-1").Return([]rating.PublishedReview{
		{ReviewID: "r1", ArtisanID: "artisan-1", ArtisanRating: 4, Status: rating.StatusPublished},
		{ReviewID: "r2", ArtisanID: "artisan-1", ArtisanRating: 5, Status: rating.StatusPublished},
	}, nil)

	w := doJSON(setupTestRouter(svc), http.MethodGet, "/internal/reviews/published?artisan_id=artisan-1", tokenFor(t, "identity", auth.RoleService), nil)

	assert.Equal(t, http.StatusOK, w.Code)

	var resp entity.PublishedReviewsResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, 2, resp.Total)
	assert.Len(t, resp.Reviews, 2)
}

func TestListPublishedHandler_EmptyListIsArray(t *testing.T) {
	svc := new(MockReviewService)
	svc.On("ListPublished", mock.Anything, rating.SubjectService, "service-1").Return(nil, nil)

	w := doJSON(setupTestRouter(svc), http.MethodGet, "/internal/reviews/published?service_id=service-1", tokenFor(t, "catalog", auth.RoleService), nil)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"reviews":[]`)
}

func TestListPublishedHandler_BadQuery(t *testing.T) {
	svc := new(MockReviewService)
	router := setupTestRouter(svc)
	token := tokenFor(t, "catalog", auth.RoleService)

	for _, query := range []string{"", "?artisan_id=a&service_id=s"} {
		w := doJSON(router, http.MethodGet, "/internal/reviews/published"+query, token, nil)
		assert.Equal(t, http.StatusBadRequest, w.Code, query)
	}
}

func TestListPublishedHandler_ClientForbidden(t *testing.T) {
	svc := new(MockReviewService)

	w := doJSON(setupTestRouter(svc), http.MethodGet, "/internal/reviews/published?artisan_id=artisan-1", tokenFor(t, "client-1", auth.RoleClient), nil)

	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestHealthHandler(t *testing.T) {
	w := doJSON(setupTestRouter(new(MockReviewService)), http.MethodGet, "/health", "", nil)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "reviews-service")
}
