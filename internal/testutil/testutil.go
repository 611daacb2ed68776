package testutil

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/hugh/projectflow/internal/auth"
	"github.com/hugh/projectflow/internal/database"
	"github.com/hugh/projectflow/internal/database/models"
	"github.com/hugh/projectflow/internal/storage"
	"github.com/hugh/projectflow/pkg/crypto"
	"github.com/hugh/projectflow/pkg/util"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// SetupTestDB creates an isolated in-memory SQLite database with foreign
// keys enforced.
func SetupTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := "file:" + uuid.NewString() + "?mode=memory&cache=shared&_foreign_keys=on"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("failed to create test database: %v", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("failed to get sql.DB: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)

	if err := database.AutoMigrate(db); err != nil {
		t.Fatalf("failed to migrate test database: %v", err)
	}

	t.Cleanup(func() { CleanupTestDB(t, db) })
	return db
}

// CleanupTestDB closes the test database connection
func CleanupTestDB(t *testing.T, db *gorm.DB) {
	t.Helper()
	sqlDB, err := db.DB()
	if err != nil {
		t.Logf("warning: failed to get sql.DB: %v", err)
		return
	}
	sqlDB.Close()
}

// NewTestEncryptor returns an encryptor with a fresh key.
func NewTestEncryptor(t *testing.T) *crypto.Encryptor {
	t.Helper()

	key, err := crypto.GenerateKey()
	if err != nil {
		t.Fatalf("failed to generate key: %v", err)
	}
	enc, err := crypto.NewEncryptor(key)
	if err != nil {
		t.Fatalf("failed to create encryptor: %v", err)
	}
	return enc
}

func NewTestStore(t *testing.T, db *gorm.DB) *storage.Store {
	t.Helper()
	return storage.NewStore(db, NewTestEncryptor(t), util.NopLogger())
}

// CreateTestUser inserts a user with a unique email.
func CreateTestUser(t *testing.T, store storage.Storage) *models.User {
	t.Helper()
	return CreateTestUserWithEmail(t, store, "test-"+uuid.NewString()[:8]+"@example.com")
}

func CreateTestUserWithEmail(t *testing.T, store storage.Storage, email string) *models.User {
	t.Helper()

	user, err := store.UpsertUser(context.Background(), &models.User{
		Email:     email,
		FirstName: "Test",
		LastName:  "User",
	})
	if err != nil {
		t.Fatalf("failed to create test user: %v", err)
	}
	return user
}

func TestGoogleConfig() *models.GoogleAPIConfig {
	return &models.GoogleAPIConfig{
		APIKey:       "test-api-key",
		ClientID:     "test-client.apps.googleusercontent.com",
		ClientSecret: "test-client-secret",
	}
}

// CreateTestProject creates a project owned by owner with a credential
// bundle attached.
func CreateTestProject(t *testing.T, store storage.Storage, owner *models.User) *models.Project {
	t.Helper()

	project, err := store.CreateProject(context.Background(), storage.CreateProjectInput{
		Name:            "Test Project " + uuid.NewString()[:6],
		Description:     "Test project description",
		OwnerID:         owner.ID,
		GoogleAPIConfig: TestGoogleConfig(),
	})
	if err != nil {
		t.Fatalf("failed to create test project: %v", err)
	}
	return project
}

func CreateTestTask(t *testing.T, store storage.Storage, project *models.Project, creator *models.User, title string) *models.Task {
	t.Helper()

	task, err := store.CreateTask(context.Background(), storage.CreateTaskInput{
		Title:       title,
		ProjectID:   project.ID,
		CreatedByID: creator.ID,
	})
	if err != nil {
		t.Fatalf("failed to create test task: %v", err)
	}
	return task
}

// AddTestMember adds user to project with role.
func AddTestMember(t *testing.T, store storage.Storage, project *models.Project, user *models.User, role models.Role) {
	t.Helper()

	if _, err := store.AddProjectMember(context.Background(), project.ID, user.ID, role); err != nil {
		t.Fatalf("failed to add test member: %v", err)
	}
}

// NewTestSessionManager creates an in-memory session manager
func NewTestSessionManager() *auth.Manager {
	return auth.NewManager(
		auth.NewMemoryStore(),
		auth.NewJWTService("test-secret-key-for-testing", 24*time.Hour),
		auth.ManagerConfig{CookieName: "pf_session", TTL: 24 * time.Hour},
	)
}

// SessionCookie stores sess and returns the cookie that resolves to it.
func SessionCookie(t *testing.T, m *auth.Manager, sess *auth.Session) *http.Cookie {
	t.Helper()

	rec := httptest.NewRecorder()
	if err := m.Save(context.Background(), rec, sess); err != nil {
		t.Fatalf("failed to save test session: %v", err)
	}
	cookies := rec.Result().Cookies()
	if len(cookies) == 0 {
		t.Fatal("session save set no cookie")
	}
	return cookies[0]
}

// UserSession returns an authenticated session for user.
func UserSession(m *auth.Manager, user *models.User) *auth.Session {
	sess := m.New()
	sess.User = auth.NewSessionUser(user)
	return sess
}

// LinkGoogle gives sess a credential bundle and unexpired tokens.
func LinkGoogle(sess *auth.Session) {
	sess.GoogleConfig = TestGoogleConfig()
	sess.GoogleTokens = &auth.GoogleTokens{
		AccessToken:  "test-access-token",
		RefreshToken: "test-refresh-token",
		Scope:        auth.ScopeEmail + " " + auth.ScopeGmailSend,
		TokenType:    "Bearer",
		ExpiresAt:    time.Now().Add(time.Hour),
	}
}

// AuthenticatedRequest creates an HTTP request carrying the session cookie
func AuthenticatedRequest(t *testing.T, method, path string, body interface{}, cookie *http.Cookie) *http.Request {
	t.Helper()

	var reqBody *bytes.Buffer
	if body != nil {
		jsonData, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("failed to marshal request body: %v", err)
		}
		reqBody = bytes.NewBuffer(jsonData)
	} else {
		reqBody = bytes.NewBuffer(nil)
	}

	req := httptest.NewRequest(method, path, reqBody)
	req.Header.Set("Content-Type", "application/json")
	if cookie != nil {
		req.AddCookie(cookie)
	}

	return req
}

// UnauthenticatedRequest creates an HTTP request without a session
func UnauthenticatedRequest(t *testing.T, method, path string, body interface{}) *http.Request {
	t.Helper()
	return AuthenticatedRequest(t, method, path, body, nil)
}

// AssertStatus checks if the response has the expected status code
func AssertStatus(t *testing.T, rr *httptest.ResponseRecorder, expected int) {
	t.Helper()
	if rr.Code != expected {
		t.Errorf("expected status %d, got %d. Body: %s", expected, rr.Code, rr.Body.String())
	}
}

// ParseJSONResponse parses the response body into the given struct
func ParseJSONResponse(t *testing.T, rr *httptest.ResponseRecorder, v interface{}) {
	t.Helper()

	if err := json.Unmarshal(rr.Body.Bytes(), v); err != nil {
		t.Fatalf("failed to parse response body: %v. Body: %s", err, rr.Body.String())
	}
}

// TestContext creates a context with a timeout for tests
func TestContext(t *testing.T) context.Context {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	t.Cleanup(cancel)
	return ctx
}

// TestSetup holds all the common test dependencies
type TestSetup struct {
	DB       *gorm.DB
	Store    *storage.Store
	Sessions *auth.Manager
	User     *models.User
	Session  *auth.Session
	Cookie   *http.Cookie
}

// NewTestContext creates a complete test setup with DB, store, a signed-in
// user and their session cookie.
func NewTestContext(t *testing.T) *TestSetup {
	t.Helper()

	db := SetupTestDB(t)
	store := NewTestStore(t, db)
	sessions := NewTestSessionManager()
	user := CreateTestUser(t, store)
	sess := UserSession(sessions, user)

	return &TestSetup{
		DB:       db,
		Store:    store,
		Sessions: sessions,
		User:     user,
		Session:  sess,
		Cookie:   SessionCookie(t, sessions, sess),
	}
}

// CookieFor signs in another user and returns their cookie.
func (ts *TestSetup) CookieFor(t *testing.T, user *models.User) *http.Cookie {
	t.Helper()
	return SessionCookie(t, ts.Sessions, UserSession(ts.Sessions, user))
}

// Resave persists changes made to ts.Session.
func (ts *TestSetup) Resave(t *testing.T) {
	t.Helper()
	ts.Cookie = SessionCookie(t, ts.Sessions, ts.Session)
}
