package handlers_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/yuehan04/pawconnect/backend/internal/apperrors"
	"github.com/yuehan04/pawconnect/backend/internal/builder"
	"github.com/yuehan04/pawconnect/backend/internal/events"
	"github.com/yuehan04/pawconnect/backend/internal/handlers"
	"github.com/yuehan04/pawconnect/backend/internal/models"
	"github.com/yuehan04/pawconnect/backend/validators"
)

// memoryServiceRepository mirrors the Mongo repository's contract in memory:
// atomic reply appends and compare-and-swap status transitions under a lock.
type memoryServiceRepository struct {
	mu       sync.Mutex
	postings map[string]*models.ServicePosting
}

func newMemoryServiceRepository() *memoryServiceRepository {
	return &memoryServiceRepository{postings: make(map[string]*models.ServicePosting)}
}

func copyPosting(p *models.ServicePosting) *models.ServicePosting {
	cp := *p
	if p.Replies != nil {
		cp.Replies = make(map[string][]models.ReplyEntry, len(p.Replies))
		for owner, entries := range p.Replies {
			cp.Replies[owner] = append([]models.ReplyEntry(nil), entries...)
		}
	}
	return &cp
}

func (r *memoryServiceRepository) CreateService(_ context.Context, posting *models.ServicePosting) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	posting.ID = primitive.NewObjectID()
	r.postings[posting.ID.Hex()] = copyPosting(posting)
	return nil
}

func (r *memoryServiceRepository) GetServiceByID(_ context.Context, id string) (*models.ServicePosting, error) {
	if _, err := primitive.ObjectIDFromHex(id); err != nil {
		return nil, apperrors.InvalidInput("invalid service ID format")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	posting, ok := r.postings[id]
	if !ok {
		return nil, apperrors.NotFound("service")
	}
	return copyPosting(posting), nil
}

func (r *memoryServiceRepository) GetAllServices(_ context.Context) ([]models.ServicePosting, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]models.ServicePosting, 0, len(r.postings))
	for _, posting := range r.postings {
		out = append(out, *copyPosting(posting))
	}
	return out, nil
}

func (r *memoryServiceRepository) DeleteService(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.postings[id]; !ok {
		return apperrors.NotFound("service")
	}
	delete(r.postings, id)
	return nil
}

func (r *memoryServiceRepository) AppendReply(_ context.Context, id, threadOwner string, entry models.ReplyEntry) error {
	if threadOwner == "" || strings.ContainsAny(threadOwner, ".$\x00") {
		return apperrors.InvalidInput("thread owner must not be empty or contain '.', '$' or NUL")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	posting, ok := r.postings[id]
	if !ok {
		return apperrors.NotFound("service")
	}
	if posting.Replies == nil {
		posting.Replies = make(map[string][]models.ReplyEntry)
	}
	posting.Replies[threadOwner] = append(posting.Replies[threadOwner], entry)
	return nil
}

func (r *memoryServiceRepository) transition(id string, to int, matched *models.UserSnapshot) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	posting, ok := r.postings[id]
	if !ok {
		return apperrors.NotFound("service")
	}
	if !models.CanTransition(posting.Status, to) {
		return apperrors.Conflict("service is not in a state that allows this transition")
	}
	posting.Status = to
	if matched != nil {
		posting.MatchedUser = matched
	}
	return nil
}

func (r *memoryServiceRepository) ConfirmMatch(_ context.Context, id string, matched models.UserSnapshot) error {
	return r.transition(id, models.StatusMatched, &matched)
}

func (r *memoryServiceRepository) CompleteService(_ context.Context, id string) error {
	return r.transition(id, models.StatusCompleted, nil)
}

func (r *memoryServiceRepository) CancelService(_ context.Context, id string) error {
	return r.transition(id, models.StatusCanceled, nil)
}

// fakeUserDirectory is an in-memory user directory.
type fakeUserDirectory struct {
	byName map[string]*models.User
}

func newFakeUserDirectory(users ...*models.User) *fakeUserDirectory {
	d := &fakeUserDirectory{byName: make(map[string]*models.User)}
	for _, u := range users {
		d.byName[u.UserName] = u
	}
	return d
}

func (d *fakeUserDirectory) CreateUser(user *models.User) error {
	d.byName[user.UserName] = user
	return nil
}

func (d *fakeUserDirectory) GetUserByUserName(userName string) (*models.User, error) {
	if u, ok := d.byName[userName]; ok {
		return u, nil
	}
	return nil, apperrors.NotFound("user")
}

// fakeImageRepository stores blobs in a map keyed by a fake hex ref.
type fakeImageRepository struct {
	blobs map[string][]byte
}

func newFakeImageRepository() *fakeImageRepository {
	return &fakeImageRepository{blobs: make(map[string][]byte)}
}

func (r *fakeImageRepository) Put(_ string, source io.Reader) (string, error) {
	data, err := io.ReadAll(source)
	if err != nil {
		return "", apperrors.Storage(err)
	}
	ref := primitive.NewObjectID().Hex()
	r.blobs[ref] = data
	return ref, nil
}

func (r *fakeImageRepository) Get(ref string) ([]byte, error) {
	if data, ok := r.blobs[ref]; ok {
		return data, nil
	}
	return nil, apperrors.NotFound("image")
}

type boardFixture struct {
	e        *echo.Echo
	services *memoryServiceRepository
	users    *fakeUserDirectory
	images   *fakeImageRepository
}

func newBoardFixture(users ...*models.User) *boardFixture {
	f := &boardFixture{
		e:        echo.New(),
		services: newMemoryServiceRepository(),
		users:    newFakeUserDirectory(users...),
		images:   newFakeImageRepository(),
	}
	f.e.Validator = validators.NewValidator()
	h := handlers.NewServiceBoardHandler(f.services, f.users, f.images, events.NopBroadcaster{})
	h.RegisterServiceBoardRoutes(f.e.Group("/api/v1"))
	return f
}

func (f *boardFixture) do(req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	f.e.ServeHTTP(rec, req)
	return rec
}

func (f *boardFixture) postForm(path string, form url.Values) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(form.Encode()))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationForm)
	return f.do(req)
}

func (f *boardFixture) putJSON(path string, payload any) *httptest.ResponseRecorder {
	body, _ := json.Marshal(payload)
	req := httptest.NewRequest(http.MethodPut, path, bytes.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	return f.do(req)
}

// seedPosting inserts a pending request posting directly through the
// repository, bypassing HTTP.
func (f *boardFixture) seedPosting(t *testing.T, user *models.User, postTime string) string {
	t.Helper()
	posting, err := builder.NewRequestBuilder().
		SetPoster(user).
		SetPetName("Rex").
		SetPetType("dog").
		SetCategory("pet_walking").
		SetPostTime(postTime).
		Build()
	require.NoError(t, err)
	require.NoError(t, f.services.CreateService(context.Background(), posting))
	return posting.ID.Hex()
}

func ada() *models.User { return &models.User{ID: 1, UserName: "ada"} }
func bob() *models.User { return &models.User{ID: 2, UserName: "bob"} }

func TestCreateRequest(t *testing.T) {
	f := newBoardFixture(ada())

	body := &bytes.Buffer{}
	w := multipart.NewWriter(body)
	fields := map[string]string{
		"userName":        "ada",
		"petName":         "Rex",
		"petType":         "dog",
		"petBreed":        "husky",
		"serviceCategory": "pet_walking",
		"notes":           "pulls on the leash",
		"postTime":        "2024-06-01T00:00:00Z",
		"location":        "Riverside Park",
		"availableStart":  "09:00",
		"availableEnd":    "17:00",
	}
	for k, v := range fields {
		require.NoError(t, w.WriteField(k, v))
	}
	require.NoError(t, w.WriteField("coordinates", "-73.97"))
	require.NoError(t, w.WriteField("coordinates", "40.78"))
	fw, err := w.CreateFormFile("petImage", "rex.jpg")
	require.NoError(t, err)
	_, err = fw.Write([]byte("not really a jpeg"))
	require.NoError(t, err)
	require.NoError(t, w.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/v1/services/request", body)
	req.Header.Set(echo.HeaderContentType, w.FormDataContentType())
	rec := f.do(req)

	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var resp struct {
		Data models.ServicePostingView `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, models.ServiceTypeRequest, resp.Data.ServiceType)
	assert.Equal(t, "pet_walking", resp.Data.ServiceCategory)
	assert.Equal(t, "pending", resp.Data.Status)
	assert.Equal(t, "1", resp.Data.UserID)
	assert.Equal(t, "ada", resp.Data.UserName)
	assert.NotEmpty(t, resp.Data.PetImage)
	require.NotNil(t, resp.Data.Location)
	require.NotNil(t, resp.Data.Location.Coordinates)
	assert.Equal(t, 40.78, resp.Data.Location.Coordinates.Lat)
	assert.Equal(t, -73.97, resp.Data.Location.Coordinates.Lng)

	// The uploaded blob is retrievable through the image route.
	imgRec := f.do(httptest.NewRequest(http.MethodGet, "/api/v1/services/images/"+resp.Data.PetImage, nil))
	assert.Equal(t, http.StatusOK, imgRec.Code)
	assert.Equal(t, "not really a jpeg", imgRec.Body.String())
}

func TestCreateRequest_UnknownCategory(t *testing.T) {
	f := newBoardFixture(ada())
	rec := f.postForm("/api/v1/services/request", url.Values{
		"userName":        {"ada"},
		"petName":         {"Rex"},
		"petType":         {"dog"},
		"serviceCategory": {"pet_grooming"},
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCreateRequest_UnknownUser(t *testing.T) {
	f := newBoardFixture()
	rec := f.postForm("/api/v1/services/request", url.Values{
		"userName":        {"nobody"},
		"petName":         {"Rex"},
		"petType":         {"dog"},
		"serviceCategory": {"pet_walking"},
	})
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestCreateOffer(t *testing.T) {
	f := newBoardFixture(bob())
	rec := f.postForm("/api/v1/services/offer", url.Values{
		"userName":        {"bob"},
		"petType":         {"cat"},
		"serviceCategory": {"pet_daycare"},
		"postTime":        {"2024-06-02T00:00:00Z"},
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var resp struct {
		Data models.ServicePostingView `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, models.ServiceTypeOffer, resp.Data.ServiceType)
	assert.Equal(t, "pet_daycare", resp.Data.ServiceCategory)
	assert.Empty(t, resp.Data.PetName)
	assert.Empty(t, resp.Data.PetImage)
	assert.Empty(t, resp.Data.Breed)
}

func TestPostReply_MissingContent(t *testing.T) {
	f := newBoardFixture(ada())
	id := f.seedPosting(t, ada(), "2024-06-01T00:00:00Z")

	rec := f.postForm("/api/v1/services/reply", url.Values{
		"serviceId":    {id},
		"userName":     {"ada"},
		"replyContent": {"   \t  "},
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestPostReply_ServiceNotFound(t *testing.T) {
	f := newBoardFixture(ada())
	rec := f.postForm("/api/v1/services/reply", url.Values{
		"serviceId":    {primitive.NewObjectID().Hex()},
		"userName":     {"ada"},
		"replyContent": {"hello"},
	})
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestPostReply_UnsafeThreadOwner(t *testing.T) {
	f := newBoardFixture(ada(), bob())
	id := f.seedPosting(t, ada(), "2024-06-01T00:00:00Z")

	// A thread owner with a dot would become a nested "replies.john.doe"
	// update path and poison every subsequent read of the document.
	for _, owner := range []string{"john.doe", "$owner"} {
		rec := f.postForm("/api/v1/services/reply", url.Values{
			"serviceId":    {id},
			"userName":     {"bob"},
			"replyContent": {"hello"},
			"threadOwner":  {owner},
		})
		assert.Equal(t, http.StatusBadRequest, rec.Code, owner)
	}

	// Same guard when the owner defaults to the author's name.
	rec := f.postForm("/api/v1/services/reply", url.Values{
		"serviceId":    {id},
		"userName":     {"john.doe"},
		"replyContent": {"hello"},
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	posting, err := f.services.GetServiceByID(context.Background(), id)
	require.NoError(t, err)
	assert.Empty(t, posting.Replies)
}

func TestReplyOrdering(t *testing.T) {
	f := newBoardFixture(ada(), bob())
	id := f.seedPosting(t, ada(), "2024-06-01T00:00:00Z")

	// Timestamps deliberately run backwards: ordering is insertion order,
	// never timestamp order.
	for i, ts := range []string{"2024-06-03T00:00:00Z", "2024-06-02T00:00:00Z", "2024-06-01T00:00:00Z"} {
		rec := f.postForm("/api/v1/services/reply", url.Values{
			"serviceId":    {id},
			"userName":     {"bob"},
			"replyContent": {fmt.Sprintf("message %d", i+1)},
			"timestamp":    {ts},
		})
		require.Equal(t, http.StatusCreated, rec.Code)
	}

	rec := f.do(httptest.NewRequest(http.MethodGet, "/api/v1/services/reply/"+id, nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var replies map[string][]models.ReplyEntry
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &replies))
	require.Len(t, replies["bob"], 3)
	assert.Equal(t, "message 1", replies["bob"][0].Content)
	assert.Equal(t, "message 2", replies["bob"][1].Content)
	assert.Equal(t, "message 3", replies["bob"][2].Content)
}

func TestPostReply_ThreadOwnerDefaultsToAuthor(t *testing.T) {
	f := newBoardFixture(ada(), bob())
	id := f.seedPosting(t, ada(), "2024-06-01T00:00:00Z")

	rec := f.postForm("/api/v1/services/reply", url.Values{
		"serviceId":    {id},
		"userName":     {"bob"},
		"replyContent": {"is Rex friendly?"},
	})
	require.Equal(t, http.StatusCreated, rec.Code)

	// The poster answers on bob's conversation lane.
	rec = f.postForm("/api/v1/services/reply", url.Values{
		"serviceId":    {id},
		"userName":     {"ada"},
		"replyContent": {"very"},
		"threadOwner":  {"bob"},
	})
	require.Equal(t, http.StatusCreated, rec.Code)

	posting, err := f.services.GetServiceByID(context.Background(), id)
	require.NoError(t, err)
	require.Len(t, posting.Replies["bob"], 2)
	assert.Equal(t, "bob", posting.Replies["bob"][0].Author)
	assert.Equal(t, "ada", posting.Replies["bob"][1].Author)
}

func TestConcurrentReplies_NoLostUpdate(t *testing.T) {
	f := newBoardFixture(ada(), bob())
	id := f.seedPosting(t, ada(), "2024-06-01T00:00:00Z")

	const writers = 16
	var wg sync.WaitGroup
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			rec := f.postForm("/api/v1/services/reply", url.Values{
				"serviceId":    {id},
				"userName":     {"bob"},
				"replyContent": {fmt.Sprintf("concurrent %d", i)},
			})
			assert.Equal(t, http.StatusCreated, rec.Code)
		}(i)
	}
	wg.Wait()

	posting, err := f.services.GetServiceByID(context.Background(), id)
	require.NoError(t, err)
	assert.Len(t, posting.Replies["bob"], writers)
}

func TestConfirmMatch_Lifecycle(t *testing.T) {
	f := newBoardFixture(ada(), bob())
	id := f.seedPosting(t, ada(), "2024-06-01T00:00:00Z")

	rec := f.putJSON("/api/v1/services/match", models.ConfirmMatchInput{ServiceID: id, MatchedUser: "bob"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	posting, err := f.services.GetServiceByID(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, models.StatusMatched, posting.Status)
	require.NotNil(t, posting.MatchedUser)
	assert.Equal(t, "bob", posting.MatchedUser.UserName)
	assert.Equal(t, "2", posting.MatchedUser.UserID)

	// A second confirm must not silently overwrite the match.
	rec = f.putJSON("/api/v1/services/match", models.ConfirmMatchInput{ServiceID: id, MatchedUser: "ada"})
	assert.Equal(t, http.StatusConflict, rec.Code)

	posting, err = f.services.GetServiceByID(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, "bob", posting.MatchedUser.UserName)

	// matched -> completed, then everything is terminal.
	rec = f.do(httptest.NewRequest(http.MethodPut, "/api/v1/services/"+id+"/complete", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	rec = f.do(httptest.NewRequest(http.MethodPut, "/api/v1/services/"+id+"/complete", nil))
	assert.Equal(t, http.StatusConflict, rec.Code)
	rec = f.do(httptest.NewRequest(http.MethodPut, "/api/v1/services/"+id+"/cancel", nil))
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestConfirmMatch_CounterpartyNotFound(t *testing.T) {
	f := newBoardFixture(ada())
	id := f.seedPosting(t, ada(), "2024-06-01T00:00:00Z")

	rec := f.putJSON("/api/v1/services/match", models.ConfirmMatchInput{ServiceID: id, MatchedUser: "nobody"})
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestCompleteService_FromPendingConflicts(t *testing.T) {
	f := newBoardFixture(ada())
	id := f.seedPosting(t, ada(), "2024-06-01T00:00:00Z")

	rec := f.do(httptest.NewRequest(http.MethodPut, "/api/v1/services/"+id+"/complete", nil))
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestCancelService_FromPending(t *testing.T) {
	f := newBoardFixture(ada(), bob())
	id := f.seedPosting(t, ada(), "2024-06-01T00:00:00Z")

	rec := f.do(httptest.NewRequest(http.MethodPut, "/api/v1/services/"+id+"/cancel", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	// Canceled is terminal: no match can be confirmed afterwards.
	rec = f.putJSON("/api/v1/services/match", models.ConfirmMatchInput{ServiceID: id, MatchedUser: "bob"})
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestDeleteService(t *testing.T) {
	f := newBoardFixture(ada())
	id := f.seedPosting(t, ada(), "2024-06-01T00:00:00Z")

	rec := f.do(httptest.NewRequest(http.MethodDelete, "/api/v1/services/"+id, nil))
	require.Equal(t, http.StatusOK, rec.Code)

	// The embedded reply threads go with the posting.
	rec = f.do(httptest.NewRequest(http.MethodGet, "/api/v1/services/reply/"+id, nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = f.do(httptest.NewRequest(http.MethodDelete, "/api/v1/services/"+id, nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestGetServices_SortAndDecode(t *testing.T) {
	f := newBoardFixture(ada())
	f.seedPosting(t, ada(), "2024-01-01T00:00:00Z")
	f.seedPosting(t, ada(), "2024-06-01T00:00:00Z")
	f.seedPosting(t, ada(), "") // missing post_time surfaces at the top

	rec := f.do(httptest.NewRequest(http.MethodGet, "/api/v1/services", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var views []models.ServicePostingView
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &views))
	require.Len(t, views, 3)
	assert.Equal(t, "", views[0].PostTime)
	assert.Equal(t, "2024-06-01T00:00:00Z", views[1].PostTime)
	assert.Equal(t, "2024-01-01T00:00:00Z", views[2].PostTime)
	for _, v := range views {
		assert.Equal(t, "pet_walking", v.ServiceCategory)
		assert.Equal(t, "pending", v.Status)
	}
}

func TestListing_StaleMatchedSnapshot(t *testing.T) {
	f := newBoardFixture(ada(), bob())
	id := f.seedPosting(t, ada(), "2024-06-01T00:00:00Z")

	rec := f.putJSON("/api/v1/services/match", models.ConfirmMatchInput{ServiceID: id, MatchedUser: "bob"})
	require.Equal(t, http.StatusOK, rec.Code)

	// Renaming the user afterwards must not rewrite the embedded snapshot.
	require.NoError(t, f.users.CreateUser(&models.User{ID: 2, UserName: "robert"}))
	delete(f.users.byName, "bob")

	posting, err := f.services.GetServiceByID(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, "bob", posting.MatchedUser.UserName)
}

func TestGetPetImage_NoneRef(t *testing.T) {
	f := newBoardFixture()

	rec := f.do(httptest.NewRequest(http.MethodGet, "/api/v1/services/images/none", nil))
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = f.do(httptest.NewRequest(http.MethodGet, "/api/v1/services/images/"+primitive.NewObjectID().Hex(), nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
