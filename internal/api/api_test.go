package api

import (
	"bytes"
	"context"
	"encoding/json"
	"image"
	"image/png"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/SherClockHolmes/webpush-go"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
	"golang.org/x/crypto/bcrypt"

	"loom-maintenance-backend/internal/logs"
	"loom-maintenance-backend/internal/model"
	"loom-maintenance-backend/internal/store"
)

func init() {
	gin.SetMode(gin.TestMode)
	logs.Discard()
	model.PasswordCost = bcrypt.MinCost
}

var testNow = time.Date(2025, 3, 1, 8, 0, 0, 0, time.UTC)

type recordingDispatcher struct {
	mu  sync.Mutex
	got []model.Notification
}

func (r *recordingDispatcher) Dispatch(n model.Notification) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.got = append(r.got, n)
	return true
}

type testServer struct {
	router     *gin.Engine
	store      *store.FileStore
	dispatcher *recordingDispatcher
	uploads    string
}

func newTestServer(t *testing.T, seed bool) *testServer {
	t.Helper()
	s, err := store.NewFileStore(t.TempDir(), store.DefaultMaxBackups)
	require.NoError(t, err)
	if seed {
		_, err := store.EnsureSeed(context.Background(), s, testNow)
		require.NoError(t, err)
	}
	ts := &testServer{store: s, dispatcher: &recordingDispatcher{}, uploads: t.TempDir()}
	h := NewHandler(s, Options{
		Version:        "1.0.0",
		UploadsDir:     ts.uploads,
		MaxUploadBytes: 1 << 20,
		Dispatcher:     ts.dispatcher,
		WebPush:        &webpush.Options{VAPIDPublicKey: "public-key"},
	})
	h.now = func() time.Time { return testNow }
	ts.router = NewRouter(h, RouterOptions{CacheTTL: time.Minute})
	return ts
}

func (ts *testServer) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var rd *bytes.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		rd = bytes.NewReader(b)
	} else {
		rd = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, rd)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	ts.router.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &v), w.Body.String())
	return v
}

func (ts *testServer) document(t *testing.T) *model.Document {
	t.Helper()
	doc, err := ts.store.Read(context.Background())
	require.NoError(t, err)
	return doc
}

// setupScenario creates template T1 (one 500 h component) and machine M1 of type P2.
func (ts *testServer) setupScenario(t *testing.T) {
	t.Helper()
	w := ts.do(t, http.MethodPost, "/api/maintenance-templates", model.NewTemplate{
		ID:          "T1",
		Name:        "Standard P2",
		MachineType: "P2",
		Components:  []model.Component{{ID: "C1", Name: "Greifer", IntervalHours: 500}},
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	w = ts.do(t, http.MethodPost, "/api/machines", model.NewMachine{
		ID:                    "M1",
		Name:                  "Halle 1-A",
		Type:                  "P2",
		MaintenanceTemplateID: "T1",
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
}

func TestGetStatus(t *testing.T) {
	ts := newTestServer(t, false)
	w := ts.do(t, http.MethodGet, "/api/status", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"online","version":"1.0.0","timestamp":"2025-03-01T08:00:00Z"}`, w.Body.String())
	assert.NotEmpty(t, w.Header().Get("X-Request-Id"))
}

func TestData_Unavailable(t *testing.T) {
	ts := newTestServer(t, false)
	for _, path := range []string{"/api/data", "/api/machines", "/api/data/fingerprint"} {
		w := ts.do(t, http.MethodGet, path, nil)
		assert.Equal(t, http.StatusServiceUnavailable, w.Code, path)
		assert.Contains(t, w.Body.String(), "error")
	}
	w := ts.do(t, http.MethodPost, "/api/parts", model.NewPart{Name: "Greiferband"})
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestData_ReplaceAndFingerprint(t *testing.T) {
	ts := newTestServer(t, true)

	w := ts.do(t, http.MethodGet, "/api/data", nil)
	require.Equal(t, http.StatusOK, w.Code)
	doc := decode[model.Document](t, w)
	assert.Len(t, doc.Users, 3)
	assert.Len(t, doc.MachineTypes, 4)

	doc.Parts = append(doc.Parts, model.Part{ID: "P1", Name: "Greiferband", Stock: 4, MinStock: 2, MachineTypes: []string{}})
	w = ts.do(t, http.MethodPost, "/api/data", doc)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, true, decode[map[string]any](t, w)["success"])

	w = ts.do(t, http.MethodGet, "/api/data/fingerprint", nil)
	require.Equal(t, http.StatusOK, w.Code)
	fp := decode[model.Fingerprint](t, w)
	assert.True(t, fp.Equal(ts.document(t).Fingerprint()))
	assert.Equal(t, 1, fp.Parts)
}

func TestMachines_CRUD(t *testing.T) {
	ts := newTestServer(t, true)
	ts.setupScenario(t)

	tests := []struct {
		name   string
		method string
		path   string
		body   any
		status int
	}{
		{"unknown type", http.MethodPost, "/api/machines", model.NewMachine{Name: "X", Type: "ZZ"}, http.StatusBadRequest},
		{"duplicate id", http.MethodPost, "/api/machines", model.NewMachine{ID: "M1", Name: "X", Type: "P2"}, http.StatusConflict},
		{"unknown template", http.MethodPost, "/api/machines", model.NewMachine{Name: "X", Type: "P2", MaintenanceTemplateID: "nope"}, http.StatusNotFound},
		{"malformed body", http.MethodPut, "/api/machines/M1", "not an object", http.StatusBadRequest},
		{"update unknown", http.MethodPut, "/api/machines/nope", model.MachineUpdate{Name: model.Some("X")}, http.StatusNotFound},
		{"hours decrease", http.MethodPut, "/api/machines/M1", model.MachineUpdate{OperatingHours: model.Some[int64](-1)}, http.StatusBadRequest},
		{"delete unknown", http.MethodDelete, "/api/machines/nope", nil, http.StatusNotFound},
		{"delete used template", http.MethodDelete, "/api/maintenance-templates/T1", nil, http.StatusConflict},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			before := ts.document(t)
			w := ts.do(t, tt.method, tt.path, tt.body)
			assert.Equal(t, tt.status, w.Code, w.Body.String())
			assert.Contains(t, decode[map[string]any](t, w), "error")
			assert.Equal(t, before, ts.document(t))
		})
	}

	w := ts.do(t, http.MethodPut, "/api/machines/M1", map[string]any{"location": "Halle 2", "maintenanceTemplateId": nil})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	m := ts.document(t).Machine("M1")
	assert.Equal(t, "Halle 2", m.Location)
	assert.Nil(t, m.MaintenanceTemplateID)
	assert.Empty(t, m.ComponentStates)

	w = ts.do(t, http.MethodPost, "/api/machines/M1/template", map[string]string{"templateId": "T1"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Contains(t, ts.document(t).Machine("M1").ComponentStates, "C1")

	w = ts.do(t, http.MethodDelete, "/api/machines/M1", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Nil(t, ts.document(t).Machine("M1"))
}

func TestMaintenanceScenario(t *testing.T) {
	ts := newTestServer(t, true)
	ts.setupScenario(t)

	report := func() map[string]any {
		w := ts.do(t, http.MethodGet, "/api/machines/M1/report", nil)
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
		r := decode[map[string]any](t, w)
		return r["components"].([]any)[0].(map[string]any)
	}

	c := report()
	assert.Equal(t, float64(500), c["remainingHours"])
	assert.Equal(t, "ok", c["status"])

	require.Equal(t, http.StatusOK, ts.do(t, http.MethodPut, "/api/machines/M1", model.MachineUpdate{OperatingHours: model.Some[int64](450)}).Code)
	c = report()
	assert.Equal(t, float64(50), c["remainingHours"])
	assert.Equal(t, "warning", c["status"])

	require.Equal(t, http.StatusOK, ts.do(t, http.MethodPut, "/api/machines/M1", model.MachineUpdate{OperatingHours: model.Some[int64](500)}).Code)
	assert.Equal(t, "overdue", report()["status"])

	w := ts.do(t, http.MethodPost, "/api/parts", model.NewPart{ID: "P1", Name: "Greiferband", Stock: 3, MinStock: 3})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	w = ts.do(t, http.MethodPost, "/api/machines/M1/maintenance", model.CompletionRequest{
		Technician: "tech",
		Components: []string{"C1"},
		Parts:      []model.PartUsage{{PartID: "P1", Quantity: 4}},
	})
	assert.Equal(t, http.StatusConflict, w.Code, w.Body.String())

	w = ts.do(t, http.MethodPost, "/api/machines/M1/maintenance", model.CompletionRequest{
		Technician: "tech",
		Components: []string{"C1"},
		Parts:      []model.PartUsage{{PartID: "P1", Quantity: 1}},
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	resp := decode[struct {
		Success       bool                    `json:"success"`
		Record        model.MaintenanceRecord `json:"record"`
		Machine       model.Machine           `json:"machine"`
		Parts         []model.Part            `json:"parts"`
		Notifications []model.Notification    `json:"notifications"`
	}](t, w)
	assert.True(t, resp.Success)
	assert.Equal(t, model.MachineServiced, resp.Machine.Status)
	assert.Equal(t, 2, resp.Parts[0].Stock)
	require.Len(t, resp.Notifications, 1)
	assert.Len(t, ts.dispatcher.got, 1)

	c = report()
	assert.Equal(t, float64(500), c["remainingHours"])
	assert.Equal(t, "ok", c["status"])

	w = ts.do(t, http.MethodGet, "/api/maintenance-history?machineId=M1", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decode[[]model.MaintenanceRecord](t, w), 1)
}

func TestCache_FlushedByWrites(t *testing.T) {
	ts := newTestServer(t, true)

	w := ts.do(t, http.MethodGet, "/api/parts", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "MISS", w.Header().Get("X-Cache"))
	assert.Equal(t, "HIT", ts.do(t, http.MethodGet, "/api/parts", nil).Header().Get("X-Cache"))

	require.Equal(t, http.StatusCreated, ts.do(t, http.MethodPost, "/api/parts", model.NewPart{Name: "Litze"}).Code)

	w = ts.do(t, http.MethodGet, "/api/parts", nil)
	assert.Equal(t, "MISS", w.Header().Get("X-Cache"))
	assert.Len(t, decode[[]model.Part](t, w), 1)
}

func TestMachineTypes_DeleteInUse(t *testing.T) {
	ts := newTestServer(t, true)
	ts.setupScenario(t)

	var p2 string
	for _, mt := range ts.document(t).MachineTypes {
		if mt.Code == "P2" {
			p2 = mt.ID
		}
	}
	require.NotEmpty(t, p2)

	w := ts.do(t, http.MethodDelete, "/api/machine-types/"+p2, nil)
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Len(t, ts.document(t).MachineTypes, 4)

	w = ts.do(t, http.MethodPost, "/api/machine-types", model.NewMachineType{Code: " p2 "})
	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestUsersAndLogin(t *testing.T) {
	ts := newTestServer(t, true)

	w := ts.do(t, http.MethodGet, "/api/users", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.NotContains(t, w.Body.String(), "passwordHash")
	assert.Len(t, decode[[]model.UserView](t, w), 3)

	w = ts.do(t, http.MethodPost, "/api/login", map[string]string{"username": "tech", "password": "tech"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	resp := decode[struct {
		Success bool           `json:"success"`
		User    model.UserView `json:"user"`
	}](t, w)
	assert.True(t, resp.Success)
	assert.Equal(t, model.RoleTechnician, resp.User.Role)

	w = ts.do(t, http.MethodPost, "/api/login", map[string]string{"username": "tech", "password": "wrong"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = ts.do(t, http.MethodPost, "/api/users", model.NewUser{Username: "weber", Password: "geheim", Role: model.RoleTechnician})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	assert.NotContains(t, w.Body.String(), "passwordHash")

	w = ts.do(t, http.MethodPost, "/api/login", map[string]string{"username": "Weber", "password": "geheim"})
	assert.Equal(t, http.StatusOK, w.Code)
}

func pngBytes(t *testing.T, w, h int) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, image.NewRGBA(image.Rect(0, 0, w, h))))
	return buf.Bytes()
}

func upload(t *testing.T, ts *testServer, filename string, data []byte) *httptest.ResponseRecorder {
	t.Helper()
	var body bytes.Buffer
	mpw := multipart.NewWriter(&body)
	require.NoError(t, mpw.WriteField("name", "Halle 1"))
	fw, err := mpw.CreateFormFile("floorPlan", filename)
	require.NoError(t, err)
	_, err = fw.Write(data)
	require.NoError(t, err)
	require.NoError(t, mpw.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/floor-plan/upload", &body)
	req.Header.Set("Content-Type", mpw.FormDataContentType())
	w := httptest.NewRecorder()
	ts.router.ServeHTTP(w, req)
	return w
}

func TestFloorPlans_UploadAndPositions(t *testing.T) {
	ts := newTestServer(t, true)
	ts.setupScenario(t)

	w := upload(t, ts, "notes.txt", []byte("not an image"))
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = upload(t, ts, "halle.png", pngBytes(t, 800, 600))
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	plan := decode[struct {
		FloorPlan model.FloorPlan `json:"floorPlan"`
	}](t, w).FloorPlan
	assert.Equal(t, "Halle 1", plan.Name)
	assert.Equal(t, 800, plan.Width)
	assert.Equal(t, 600, plan.Height)
	require.Regexp(t, `^/uploads/floorplan-.+\.png$`, plan.Path)
	_, err := os.Stat(filepath.Join(ts.uploads, filepath.Base(plan.Path)))
	require.NoError(t, err)

	served := httptest.NewRecorder()
	ts.router.ServeHTTP(served, httptest.NewRequest(http.MethodGet, plan.Path, nil))
	assert.Equal(t, http.StatusOK, served.Code)

	base := "/api/floor-plans/" + plan.ID + "/positions/"
	assert.Equal(t, http.StatusBadRequest, ts.do(t, http.MethodPut, base+"M1", model.Position{X: 900, Y: 10}).Code)
	assert.Equal(t, http.StatusNotFound, ts.do(t, http.MethodPut, base+"nope", model.Position{X: 1, Y: 1}).Code)
	require.Equal(t, http.StatusOK, ts.do(t, http.MethodPut, base+"M1", model.Position{X: 120, Y: 80}).Code)
	assert.Equal(t, model.Position{X: 120, Y: 80}, ts.document(t).FloorPlan(plan.ID).MachinePositions["M1"])

	require.Equal(t, http.StatusOK, ts.do(t, http.MethodDelete, "/api/floor-plans/"+plan.ID+"/positions", nil).Code)
	assert.Empty(t, ts.document(t).FloorPlan(plan.ID).MachinePositions)

	require.Equal(t, http.StatusOK, ts.do(t, http.MethodDelete, "/api/floor-plans/"+plan.ID, nil).Code)
	_, err = os.Stat(filepath.Join(ts.uploads, filepath.Base(plan.Path)))
	assert.True(t, os.IsNotExist(err))
}

func TestFloorPlans_UploadTooLarge(t *testing.T) {
	ts := newTestServer(t, true)
	w := upload(t, ts, "big.png", make([]byte, 3<<19))
	assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
}

func TestExportHistory(t *testing.T) {
	ts := newTestServer(t, true)
	ts.setupScenario(t)
	require.Equal(t, http.StatusOK, ts.do(t, http.MethodPut, "/api/machines/M1", model.MachineUpdate{OperatingHours: model.Some[int64](450)}).Code)
	require.Equal(t, http.StatusCreated, ts.do(t, http.MethodPost, "/api/machines/M1/maintenance", model.CompletionRequest{
		Technician: "tech",
		Notes:      "Greifer getauscht",
		Components: []string{"C1"},
	}).Code)

	w := ts.do(t, http.MethodGet, "/api/export/maintenance-history.xlsx", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, xlsxContentType, w.Header().Get("Content-Type"))

	f, err := excelize.OpenReader(bytes.NewReader(w.Body.Bytes()))
	require.NoError(t, err)
	defer f.Close()
	rows, err := f.GetRows(historySheet)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "Datum", rows[0][0])
	assert.Equal(t, []string{"2025-03-01 08:00", "Halle 1-A", "", "tech", "450", "Greifer", "", "Greifer getauscht"}, rows[1])
}

func TestNotifications(t *testing.T) {
	ts := newTestServer(t, true)

	w := ts.do(t, http.MethodPost, "/api/notifications", model.Notification{Message: "Ölwechsel Halle 2", Urgent: true})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	n := decode[struct {
		Notification model.Notification `json:"notification"`
	}](t, w).Notification
	assert.Len(t, ts.dispatcher.got, 1)

	require.Equal(t, http.StatusOK, ts.do(t, http.MethodPut, "/api/notifications/"+n.ID+"/read", nil).Code)
	w = ts.do(t, http.MethodGet, "/api/notifications?unread=true", nil)
	assert.Empty(t, decode[[]model.Notification](t, w))
	assert.Equal(t, http.StatusNotFound, ts.do(t, http.MethodPut, "/api/notifications/nope/read", nil).Code)
}

func TestPushSubscriptions(t *testing.T) {
	ts := newTestServer(t, true)

	w := ts.do(t, http.MethodPut, "/api/push/subscriptions", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	sub := map[string]string{"endpoint": "https://push.example.com/abc", "p256dh": "key", "auth": "auth"}
	require.Equal(t, http.StatusCreated, ts.do(t, http.MethodPut, "/api/push/subscriptions", sub).Code)

	w = ts.do(t, http.MethodGet, "/api/push/subscriptions?endpoint=https://push.example.com/abc", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, http.StatusNotFound, ts.do(t, http.MethodGet, "/api/push/subscriptions?endpoint=other", nil).Code)

	require.Equal(t, http.StatusNoContent, ts.do(t, http.MethodDelete, "/api/push/subscriptions", map[string]string{"endpoint": sub["endpoint"]}).Code)
	assert.Empty(t, ts.document(t).PushSubscriptions)

	w = ts.do(t, http.MethodGet, "/api/push/vapid_public_key", nil)
	assert.JSONEq(t, `{"public_key":"public-key"}`, w.Body.String())
}
