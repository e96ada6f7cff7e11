// Package client talks to the maintenance API and keeps a local mirror of the
// server document in sync with it.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strings"
	"time"

	"loom-maintenance-backend/internal/fleet"
	"loom-maintenance-backend/internal/maintenance"
	"loom-maintenance-backend/internal/model"
)

// DefaultHealthTimeout bounds the status ping used to detect recovery.
const DefaultHealthTimeout = 5 * time.Second

// APIError is a non-2xx answer from the server.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("server returned %d: %s", e.Status, e.Message)
}

// IsConnectivity reports whether err means the server could not be reached
// or answered unusably, as opposed to rejecting the request.
func IsConnectivity(err error) bool {
	if err == nil {
		return false
	}
	var apiErr *APIError
	return !errors.As(err, &apiErr)
}

// ServerStatus is the answer of the status endpoint.
type ServerStatus struct {
	Status    string    `json:"status"`
	Version   string    `json:"version"`
	Timestamp time.Time `json:"timestamp"`
}

// Client is a typed client for the HTTP API.
type Client struct {
	baseURL       string
	http          *http.Client
	healthTimeout time.Duration
}

// New creates a client for the server at baseURL. A nil httpClient gets a
// default client with a 15 s timeout.
func New(baseURL string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 15 * time.Second}
	}
	return &Client{
		baseURL:       strings.TrimRight(baseURL, "/"),
		http:          httpClient,
		healthTimeout: DefaultHealthTimeout,
	}
}

// SetHealthTimeout changes the timeout of the status ping. Non-positive values are ignored.
func (c *Client) SetHealthTimeout(d time.Duration) {
	if d > 0 {
		c.healthTimeout = d
	}
}

// BaseURL returns the server address the client talks to.
func (c *Client) BaseURL() string {
	return c.baseURL
}

func (c *Client) do(ctx context.Context, method, path string, body any, out any) error {
	var rd io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode request: %w", err)
		}
		rd = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, rd)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return c.send(req, out)
}

func (c *Client) send(req *http.Request, out any) error {
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		var e struct {
			Error string `json:"error"`
		}
		if err := json.NewDecoder(resp.Body).Decode(&e); err != nil || e.Error == "" {
			e.Error = http.StatusText(resp.StatusCode)
		}
		return &APIError{Status: resp.StatusCode, Message: e.Error}
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode %s %s response: %w", req.Method, req.URL.Path, err)
	}
	return nil
}

// call sends a request and extracts one field of the {success, <field>} envelope.
func call[T any](ctx context.Context, c *Client, method, path string, body any, field string) (T, error) {
	var (
		zero     T
		envelope map[string]json.RawMessage
	)
	if err := c.do(ctx, method, path, body, &envelope); err != nil {
		return zero, err
	}
	raw, ok := envelope[field]
	if !ok {
		return zero, fmt.Errorf("response to %s %s has no %q", method, path, field)
	}
	var v T
	if err := json.Unmarshal(raw, &v); err != nil {
		return zero, fmt.Errorf("failed to decode %q: %w", field, err)
	}
	return v, nil
}

func seg(id string) string {
	return url.PathEscape(id)
}

// Status pings the server with the health timeout.
func (c *Client) Status(ctx context.Context) (ServerStatus, error) {
	ctx, cancel := context.WithTimeout(ctx, c.healthTimeout)
	defer cancel()
	var s ServerStatus
	err := c.do(ctx, http.MethodGet, "/api/status", nil, &s)
	return s, err
}

// Data fetches the whole document.
func (c *Client) Data(ctx context.Context) (*model.Document, error) {
	var d model.Document
	if err := c.do(ctx, http.MethodGet, "/api/data", nil, &d); err != nil {
		return nil, err
	}
	d.Normalize()
	return &d, nil
}

// Fingerprint fetches the change fingerprint of the server document.
func (c *Client) Fingerprint(ctx context.Context) (model.Fingerprint, error) {
	var fp model.Fingerprint
	err := c.do(ctx, http.MethodGet, "/api/data/fingerprint", nil, &fp)
	return fp, err
}

// PushData replaces the server document.
func (c *Client) PushData(ctx context.Context, d *model.Document) error {
	return c.do(ctx, http.MethodPost, "/api/data", d, nil)
}

// Login checks credentials on the server.
func (c *Client) Login(ctx context.Context, username, password string) (model.UserView, error) {
	body := map[string]string{"username": username, "password": password}
	return call[model.UserView](ctx, c, http.MethodPost, "/api/login", body, "user")
}

func (c *Client) CreateMachine(ctx context.Context, in model.NewMachine) (model.Machine, error) {
	return call[model.Machine](ctx, c, http.MethodPost, "/api/machines", in, "machine")
}

func (c *Client) UpdateMachine(ctx context.Context, id string, u model.MachineUpdate) (model.Machine, error) {
	return call[model.Machine](ctx, c, http.MethodPut, "/api/machines/"+seg(id), u, "machine")
}

func (c *Client) DeleteMachine(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "/api/machines/"+seg(id), nil, nil)
}

func (c *Client) AssignTemplate(ctx context.Context, machineID, templateID string) (model.Machine, error) {
	body := map[string]string{"templateId": templateID}
	return call[model.Machine](ctx, c, http.MethodPost, "/api/machines/"+seg(machineID)+"/template", body, "machine")
}

// CompleteMaintenance records finished maintenance on req.MachineID.
func (c *Client) CompleteMaintenance(ctx context.Context, req model.CompletionRequest) (fleet.Completion, error) {
	var out fleet.Completion
	err := c.do(ctx, http.MethodPost, "/api/machines/"+seg(req.MachineID)+"/maintenance", req, &out)
	return out, err
}

func (c *Client) Report(ctx context.Context, machineID string) (maintenance.Report, error) {
	var r maintenance.Report
	err := c.do(ctx, http.MethodGet, "/api/machines/"+seg(machineID)+"/report", nil, &r)
	return r, err
}

func (c *Client) CreatePart(ctx context.Context, in model.NewPart) (model.Part, error) {
	return call[model.Part](ctx, c, http.MethodPost, "/api/parts", in, "part")
}

func (c *Client) UpdatePart(ctx context.Context, id string, u model.PartUpdate) (model.Part, error) {
	return call[model.Part](ctx, c, http.MethodPut, "/api/parts/"+seg(id), u, "part")
}

func (c *Client) DeletePart(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "/api/parts/"+seg(id), nil, nil)
}

// UsePart takes quantity units out of stock. The notification is set when
// the part dropped below its minimum stock.
func (c *Client) UsePart(ctx context.Context, id string, quantity int) (model.Part, *model.Notification, error) {
	var out struct {
		Part         model.Part          `json:"part"`
		Notification *model.Notification `json:"notification"`
	}
	body := map[string]int{"quantity": quantity}
	if err := c.do(ctx, http.MethodPost, "/api/parts/"+seg(id)+"/use", body, &out); err != nil {
		return model.Part{}, nil, err
	}
	return out.Part, out.Notification, nil
}

func (c *Client) CreateTemplate(ctx context.Context, in model.NewTemplate) (model.MaintenanceTemplate, error) {
	return call[model.MaintenanceTemplate](ctx, c, http.MethodPost, "/api/maintenance-templates", in, "template")
}

func (c *Client) UpdateTemplate(ctx context.Context, id string, u model.TemplateUpdate) (model.MaintenanceTemplate, error) {
	return call[model.MaintenanceTemplate](ctx, c, http.MethodPut, "/api/maintenance-templates/"+seg(id), u, "template")
}

func (c *Client) DeleteTemplate(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "/api/maintenance-templates/"+seg(id), nil, nil)
}

func (c *Client) AssignTemplateToMany(ctx context.Context, templateID string, machineIDs []string) ([]model.Machine, error) {
	body := map[string][]string{"machineIds": machineIDs}
	return call[[]model.Machine](ctx, c, http.MethodPost, "/api/maintenance-templates/"+seg(templateID)+"/assign", body, "machines")
}

func (c *Client) AddRecord(ctx context.Context, r model.MaintenanceRecord) (model.MaintenanceRecord, error) {
	return call[model.MaintenanceRecord](ctx, c, http.MethodPost, "/api/maintenance-history", r, "record")
}

func (c *Client) CreateUser(ctx context.Context, in model.NewUser) (model.UserView, error) {
	return call[model.UserView](ctx, c, http.MethodPost, "/api/users", in, "user")
}

func (c *Client) UpdateUser(ctx context.Context, id string, u model.UserUpdate) (model.UserView, error) {
	return call[model.UserView](ctx, c, http.MethodPut, "/api/users/"+seg(id), u, "user")
}

func (c *Client) DeleteUser(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "/api/users/"+seg(id), nil, nil)
}

func (c *Client) CreateMachineType(ctx context.Context, in model.NewMachineType) (model.MachineType, error) {
	return call[model.MachineType](ctx, c, http.MethodPost, "/api/machine-types", in, "machineType")
}

func (c *Client) UpdateMachineType(ctx context.Context, id string, u model.MachineTypeUpdate) (model.MachineType, error) {
	return call[model.MachineType](ctx, c, http.MethodPut, "/api/machine-types/"+seg(id), u, "machineType")
}

func (c *Client) DeleteMachineType(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "/api/machine-types/"+seg(id), nil, nil)
}

func (c *Client) CreateFloorPlan(ctx context.Context, in model.NewFloorPlan) (model.FloorPlan, error) {
	return call[model.FloorPlan](ctx, c, http.MethodPost, "/api/floor-plans", in, "floorPlan")
}

func (c *Client) UpdateFloorPlan(ctx context.Context, id string, u model.FloorPlanUpdate) (model.FloorPlan, error) {
	return call[model.FloorPlan](ctx, c, http.MethodPut, "/api/floor-plans/"+seg(id), u, "floorPlan")
}

func (c *Client) DeleteFloorPlan(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "/api/floor-plans/"+seg(id), nil, nil)
}

func (c *Client) SetPosition(ctx context.Context, planID, machineID string, pos model.Position) (model.FloorPlan, error) {
	path := "/api/floor-plans/" + seg(planID) + "/positions/" + seg(machineID)
	return call[model.FloorPlan](ctx, c, http.MethodPut, path, pos, "floorPlan")
}

func (c *Client) RemovePosition(ctx context.Context, planID, machineID string) (model.FloorPlan, error) {
	path := "/api/floor-plans/" + seg(planID) + "/positions/" + seg(machineID)
	return call[model.FloorPlan](ctx, c, http.MethodDelete, path, nil, "floorPlan")
}

func (c *Client) ClearPositions(ctx context.Context, planID string) (model.FloorPlan, error) {
	return call[model.FloorPlan](ctx, c, http.MethodDelete, "/api/floor-plans/"+seg(planID)+"/positions", nil, "floorPlan")
}

// UploadFloorPlan sends an image as multipart form data.
func (c *Client) UploadFloorPlan(ctx context.Context, name, filename string, image []byte) (model.FloorPlan, error) {
	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	if err := w.WriteField("name", name); err != nil {
		return model.FloorPlan{}, err
	}
	fw, err := w.CreateFormFile("floorPlan", filename)
	if err != nil {
		return model.FloorPlan{}, err
	}
	if _, err := fw.Write(image); err != nil {
		return model.FloorPlan{}, err
	}
	if err := w.Close(); err != nil {
		return model.FloorPlan{}, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/floor-plan/upload", &body)
	if err != nil {
		return model.FloorPlan{}, err
	}
	req.Header.Set("Content-Type", w.FormDataContentType())
	var out struct {
		FloorPlan model.FloorPlan `json:"floorPlan"`
	}
	if err := c.send(req, &out); err != nil {
		return model.FloorPlan{}, err
	}
	return out.FloorPlan, nil
}

func (c *Client) CreateNotification(ctx context.Context, n model.Notification) (model.Notification, error) {
	return call[model.Notification](ctx, c, http.MethodPost, "/api/notifications", n, "notification")
}

func (c *Client) MarkRead(ctx context.Context, id string) (model.Notification, error) {
	return call[model.Notification](ctx, c, http.MethodPut, "/api/notifications/"+seg(id)+"/read", nil, "notification")
}
