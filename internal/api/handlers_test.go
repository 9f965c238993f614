package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"clipriver/internal/auth"
	"clipriver/internal/media"
	"clipriver/internal/models"
	"clipriver/internal/storage"
)

type testEnv struct {
	handler *Handler
	store   *storage.Storage
	relay   *media.MemoryRelay
	tokens  *auth.TokenManager
}

func newTestEnv(t *testing.T, opts storage.Options) *testEnv {
	t.Helper()
	store := storage.New(opts)
	relay := media.NewMemoryRelay()
	tokens, err := auth.NewTokenManager("test-secret")
	if err != nil {
		t.Fatalf("token manager: %v", err)
	}
	return &testEnv{
		handler: NewHandler(store, relay, tokens, nil),
		store:   store,
		relay:   relay,
		tokens:  tokens,
	}
}

func (env *testEnv) signupUser(t *testing.T, channel, email, phone string) models.User {
	t.Helper()
	user, err := env.store.CreateUser(context.Background(), storage.CreateUserParams{
		ChannelName: channel,
		Email:       email,
		Phone:       phone,
		Password:    "password123",
		LogoURL:     "memory://avatars/" + channel,
		LogoID:      "avatars/" + channel,
	})
	if err != nil {
		t.Fatalf("create user: %v", err)
	}
	return user
}

func (env *testEnv) createVideo(t *testing.T, ownerID, title string, tags []string) models.Video {
	t.Helper()
	video, err := env.store.CreateVideo(context.Background(), storage.CreateVideoParams{
		Title:        title,
		Description:  "about " + title,
		UserID:       ownerID,
		VideoURL:     "memory://videos/" + title,
		VideoID:      "videos/" + title,
		ThumbnailURL: "memory://thumbnails/" + title,
		ThumbnailID:  "thumbnails/" + title,
		Category:     "tech",
		Tags:         tags,
	})
	if err != nil {
		t.Fatalf("create video: %v", err)
	}
	return video
}

func asUser(r *http.Request, user models.User) *http.Request {
	identity := auth.Identity{
		UserID:      user.ID,
		ChannelName: user.ChannelName,
		Email:       user.Email,
		Phone:       user.Phone,
	}
	return r.WithContext(ContextWithIdentity(r.Context(), identity))
}

func jsonRequest(t *testing.T, method, path string, payload interface{}) *http.Request {
	t.Helper()
	body, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("marshal payload: %v", err)
	}
	req := httptest.NewRequest(method, path, bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	return req
}

type multipartBody struct {
	fields map[string]string
	files  map[string]string
}

func multipartRequest(t *testing.T, method, path string, body multipartBody) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	for field, value := range body.fields {
		if err := writer.WriteField(field, value); err != nil {
			t.Fatalf("write field %s: %v", field, err)
		}
	}
	for field, filename := range body.files {
		part, err := writer.CreateFormFile(field, filename)
		if err != nil {
			t.Fatalf("create file %s: %v", field, err)
		}
		if _, err := io.WriteString(part, "binary-"+filename); err != nil {
			t.Fatalf("write file %s: %v", field, err)
		}
	}
	if err := writer.Close(); err != nil {
		t.Fatalf("close writer: %v", err)
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	return req
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	body := map[string]interface{}{}
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode response %q: %v", rec.Body.String(), err)
	}
	return body
}

func expectMessage(t *testing.T, rec *httptest.ResponseRecorder, status int, message string) map[string]interface{} {
	t.Helper()
	if rec.Code != status {
		t.Fatalf("status = %d, want %d (body %s)", rec.Code, status, rec.Body.String())
	}
	body := decodeBody(t, rec)
	if body["message"] != message {
		t.Fatalf("message = %q, want %q", body["message"], message)
	}
	return body
}

func TestSignup(t *testing.T) {
	env := newTestEnv(t, storage.Options{})

	req := multipartRequest(t, http.MethodPost, Prefix+"/user/signup", multipartBody{
		fields: map[string]string{
			"channelName": "gopher",
			"email":       "gopher@example.com",
			"phone":       "5550100",
			"password":    "password123",
		},
		files: map[string]string{"logoUrl": "avatar.png"},
	})
	rec := httptest.NewRecorder()
	env.handler.Signup(rec, req)

	body := expectMessage(t, rec, http.StatusCreated, "User created successfully")
	user, ok := body["user"].(map[string]interface{})
	if !ok {
		t.Fatalf("user missing from response: %v", body)
	}
	if _, leaked := user["password"]; leaked {
		t.Fatal("password leaked in signup response")
	}
	if env.relay.Count() != 1 {
		t.Fatalf("avatar asset count = %d, want 1", env.relay.Count())
	}
}

func TestSignupMissingFields(t *testing.T) {
	env := newTestEnv(t, storage.Options{})

	req := multipartRequest(t, http.MethodPost, Prefix+"/user/signup", multipartBody{
		fields: map[string]string{"channelName": "gopher", "email": "gopher@example.com"},
		files:  map[string]string{"logoUrl": "avatar.png"},
	})
	rec := httptest.NewRecorder()
	env.handler.Signup(rec, req)
	expectMessage(t, rec, http.StatusBadRequest, "Please fill in all fields")
}

func TestSignupRequiresAvatar(t *testing.T) {
	env := newTestEnv(t, storage.Options{})

	req := multipartRequest(t, http.MethodPost, Prefix+"/user/signup", multipartBody{
		fields: map[string]string{
			"channelName": "gopher",
			"email":       "gopher@example.com",
			"phone":       "5550100",
			"password":    "password123",
		},
	})
	rec := httptest.NewRecorder()
	env.handler.Signup(rec, req)
	expectMessage(t, rec, http.StatusBadRequest, "Avatar file is required")
}

func TestSignupDuplicateEmailIsServerError(t *testing.T) {
	env := newTestEnv(t, storage.Options{})
	env.signupUser(t, "gopher", "gopher@example.com", "5550100")

	req := multipartRequest(t, http.MethodPost, Prefix+"/user/signup", multipartBody{
		fields: map[string]string{
			"channelName": "other",
			"email":       "gopher@example.com",
			"phone":       "5550199",
			"password":    "password123",
		},
		files: map[string]string{"logoUrl": "avatar.png"},
	})
	rec := httptest.NewRecorder()
	env.handler.Signup(rec, req)

	// The unique-index violation is deliberately unmapped, so it surfaces
	// as a raw 500 rather than a 409.
	body := expectMessage(t, rec, http.StatusInternalServerError, "Something went wrong")
	if body["error"] == nil {
		t.Fatal("expected error detail in body")
	}
}

func TestLogin(t *testing.T) {
	env := newTestEnv(t, storage.Options{})
	user := env.signupUser(t, "gopher", "gopher@example.com", "5550100")

	rec := httptest.NewRecorder()
	env.handler.Login(rec, jsonRequest(t, http.MethodPost, Prefix+"/user/login", map[string]string{
		"email":    "gopher@example.com",
		"password": "password123",
	}))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	body := decodeBody(t, rec)
	token, _ := body["token"].(string)
	if token == "" {
		t.Fatal("token missing from login response")
	}
	identity, err := env.tokens.Verify(token)
	if err != nil {
		t.Fatalf("issued token failed verification: %v", err)
	}
	if identity.UserID != user.ID {
		t.Fatalf("token user = %q, want %q", identity.UserID, user.ID)
	}
	if body["_id"] != user.ID {
		t.Fatalf("_id = %v, want %q", body["_id"], user.ID)
	}
}

func TestLoginUnknownEmail(t *testing.T) {
	env := newTestEnv(t, storage.Options{})
	rec := httptest.NewRecorder()
	env.handler.Login(rec, jsonRequest(t, http.MethodPost, Prefix+"/user/login", map[string]string{
		"email":    "nobody@example.com",
		"password": "password123",
	}))
	expectMessage(t, rec, http.StatusNotFound, "User not found")
}

func TestLoginWrongPassword(t *testing.T) {
	env := newTestEnv(t, storage.Options{})
	env.signupUser(t, "gopher", "gopher@example.com", "5550100")

	rec := httptest.NewRecorder()
	env.handler.Login(rec, jsonRequest(t, http.MethodPost, Prefix+"/user/login", map[string]string{
		"email":    "gopher@example.com",
		"password": "wrong",
	}))
	expectMessage(t, rec, http.StatusUnauthorized, "Invalid credentials")
}

func TestUpdateProfileKeepsOldAvatarAsset(t *testing.T) {
	env := newTestEnv(t, storage.Options{})
	user := env.signupUser(t, "gopher", "gopher@example.com", "5550100")

	req := multipartRequest(t, http.MethodPut, Prefix+"/user/updateProfile", multipartBody{
		fields: map[string]string{"channelName": "gopher-hd"},
		files:  map[string]string{"logoUrl": "new-avatar.png"},
	})
	rec := httptest.NewRecorder()
	env.handler.UpdateProfile(rec, asUser(req, user))

	expectMessage(t, rec, http.StatusOK, "Profile updated successfully")
	updated, err := env.store.GetUser(context.Background(), user.ID)
	if err != nil {
		t.Fatalf("get user: %v", err)
	}
	if updated.ChannelName != "gopher-hd" {
		t.Fatalf("channel name = %q", updated.ChannelName)
	}
	if updated.LogoID == user.LogoID {
		t.Fatal("avatar handle should be replaced")
	}
	if len(env.relay.Deleted()) != 0 {
		t.Fatalf("old avatar should not be deleted, got %v", env.relay.Deleted())
	}
}

func TestUpdateProfileURLEncoded(t *testing.T) {
	env := newTestEnv(t, storage.Options{})
	user := env.signupUser(t, "gopher", "gopher@example.com", "5550100")

	req := httptest.NewRequest(http.MethodPut, Prefix+"/user/updateProfile", strings.NewReader("phone=5550111"))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := httptest.NewRecorder()
	env.handler.UpdateProfile(rec, asUser(req, user))

	expectMessage(t, rec, http.StatusOK, "Profile updated successfully")
	updated, _ := env.store.GetUser(context.Background(), user.ID)
	if updated.Phone != "5550111" {
		t.Fatalf("phone = %q, want 5550111", updated.Phone)
	}
	if updated.ChannelName != "gopher" {
		t.Fatalf("channel name should be untouched, got %q", updated.ChannelName)
	}
}

func TestSubscribe(t *testing.T) {
	env := newTestEnv(t, storage.Options{})
	viewer := env.signupUser(t, "viewer", "viewer@example.com", "5550101")
	creator := env.signupUser(t, "creator", "creator@example.com", "5550102")

	rec := httptest.NewRecorder()
	req := jsonRequest(t, http.MethodPost, Prefix+"/user/subscribe", map[string]string{"channelId": creator.ID})
	env.handler.Subscribe(rec, asUser(req, viewer))

	body := expectMessage(t, rec, http.StatusOK, "Subscribed successfully")
	if body["currentUser"] == nil || body["subscribedUser"] == nil {
		t.Fatalf("expected both user payloads, got %v", body)
	}
	channel, _ := env.store.GetUser(context.Background(), creator.ID)
	if channel.Subscribers != 1 {
		t.Fatalf("subscribers = %d, want 1", channel.Subscribers)
	}
}

func TestSubscribeToSelf(t *testing.T) {
	env := newTestEnv(t, storage.Options{})
	viewer := env.signupUser(t, "viewer", "viewer@example.com", "5550101")

	rec := httptest.NewRecorder()
	req := jsonRequest(t, http.MethodPost, Prefix+"/user/subscribe", map[string]string{"channelId": viewer.ID})
	env.handler.Subscribe(rec, asUser(req, viewer))
	expectMessage(t, rec, http.StatusBadRequest, "You cannot subscribe to your own channel")
}

func TestSubscribeTwice(t *testing.T) {
	env := newTestEnv(t, storage.Options{})
	viewer := env.signupUser(t, "viewer", "viewer@example.com", "5550101")
	creator := env.signupUser(t, "creator", "creator@example.com", "5550102")

	first := httptest.NewRecorder()
	env.handler.Subscribe(first, asUser(jsonRequest(t, http.MethodPost, Prefix+"/user/subscribe", map[string]string{"channelId": creator.ID}), viewer))
	if first.Code != http.StatusOK {
		t.Fatalf("first subscribe failed: %d", first.Code)
	}

	second := httptest.NewRecorder()
	env.handler.Subscribe(second, asUser(jsonRequest(t, http.MethodPost, Prefix+"/user/subscribe", map[string]string{"channelId": creator.ID}), viewer))
	expectMessage(t, second, http.StatusBadRequest, "Already subscribed to this channel")
}

func TestSubscribeMissingChannelLeavesMembership(t *testing.T) {
	env := newTestEnv(t, storage.Options{})
	viewer := env.signupUser(t, "viewer", "viewer@example.com", "5550101")

	rec := httptest.NewRecorder()
	req := jsonRequest(t, http.MethodPost, Prefix+"/user/subscribe", map[string]string{"channelId": "missing-channel"})
	env.handler.Subscribe(rec, asUser(req, viewer))
	expectMessage(t, rec, http.StatusNotFound, "Channel not found")

	// The first write committed before the counter bump failed; nothing
	// rolls it back.
	current, _ := env.store.GetUser(context.Background(), viewer.ID)
	if !current.IsSubscribedTo("missing-channel") {
		t.Fatal("membership write should have committed despite the 404")
	}
}

func TestHealth(t *testing.T) {
	env := newTestEnv(t, storage.Options{})
	rec := httptest.NewRecorder()
	env.handler.Health(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	body := decodeBody(t, rec)
	if body["status"] != "ok" {
		t.Fatalf("status = %v, want ok", body["status"])
	}
}

func TestRequireIdentityBackstop(t *testing.T) {
	env := newTestEnv(t, storage.Options{})
	rec := httptest.NewRecorder()
	env.handler.MyVideos(rec, httptest.NewRequest(http.MethodGet, Prefix+"/video/myVideos", nil))
	expectMessage(t, rec, http.StatusUnauthorized, "Unauthorized")
}
