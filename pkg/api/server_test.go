package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sneakbots/sentinel/pkg/models"
	"github.com/sneakbots/sentinel/pkg/services"
)

type fakeApprover struct {
	approved []uuid.UUID
	declined []uuid.UUID
	err      error
}

func (f *fakeApprover) Approve(_ context.Context, logID uuid.UUID) (*models.ActionLog, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.approved = append(f.approved, logID)
	return &models.ActionLog{ID: logID, Status: models.ActionStatusSuccess}, nil
}

func (f *fakeApprover) Decline(_ context.Context, logID uuid.UUID) (*models.ActionLog, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.declined = append(f.declined, logID)
	return &models.ActionLog{ID: logID, Status: models.ActionStatusDeclined}, nil
}

type fakeLogReader struct {
	logs map[uuid.UUID]*models.ActionLog
}

func (f *fakeLogReader) GetActionLog(_ context.Context, id uuid.UUID) (*models.ActionLog, error) {
	log, ok := f.logs[id]
	if !ok {
		return nil, services.ErrNotFound
	}
	return log, nil
}

func (f *fakeLogReader) ListActionLogs(_ context.Context, deploymentID uuid.UUID) ([]*models.ActionLog, error) {
	var out []*models.ActionLog
	for _, log := range f.logs {
		if log.DeploymentID == deploymentID {
			out = append(out, log)
		}
	}
	return out, nil
}

type fakeDeploymentReader struct {
	deployments map[uuid.UUID]*models.Deployment
}

func (f *fakeDeploymentReader) GetDeployment(_ context.Context, id uuid.UUID) (*models.Deployment, error) {
	d, ok := f.deployments[id]
	if !ok {
		return nil, services.ErrNotFound
	}
	return d, nil
}

type fakePublisher struct {
	published []*models.DeploymentEvent
	err       error
}

func (f *fakePublisher) Publish(_ context.Context, ev *models.DeploymentEvent) error {
	if f.err != nil {
		return f.err
	}
	f.published = append(f.published, ev)
	return nil
}

type apiFixture struct {
	server      *Server
	approver    *fakeApprover
	logs        *fakeLogReader
	deployments *fakeDeploymentReader
	events      *fakePublisher
}

func setupAPI(t *testing.T) *apiFixture {
	t.Helper()
	f := &apiFixture{
		approver:    &fakeApprover{},
		logs:        &fakeLogReader{logs: make(map[uuid.UUID]*models.ActionLog)},
		deployments: &fakeDeploymentReader{deployments: make(map[uuid.UUID]*models.Deployment)},
		events:      &fakePublisher{},
	}
	f.server = NewServer(Deps{
		Logs:        f.logs,
		Approver:    f.approver,
		Deployments: f.deployments,
		Events:      f.events,
	})
	return f
}

func (f *apiFixture) do(t *testing.T, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var reader *strings.Reader
	if body == "" {
		reader = strings.NewReader("")
	} else {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	f.server.Handler().ServeHTTP(rec, req)
	return rec
}

func (f *apiFixture) addDeployment(conf string) *models.Deployment {
	d := &models.Deployment{
		ID:          uuid.New(),
		ModeratorID: uuid.New(),
		Platform:    models.PlatformDiscord,
		Name:        "guild watch",
		Conf:        []byte(conf),
		State:       models.DeploymentOffline,
	}
	f.deployments.deployments[d.ID] = d
	return d
}

func TestApproveAction(t *testing.T) {
	f := setupAPI(t)
	logID := uuid.New()

	rec := f.do(t, http.MethodPatch, "/api/v1/actions/"+logID.String(), `{"decision": "approve"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []uuid.UUID{logID}, f.approver.approved)

	var log models.ActionLog
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &log))
	assert.Equal(t, models.ActionStatusSuccess, log.Status)
}

func TestDeclineAction(t *testing.T) {
	f := setupAPI(t)
	logID := uuid.New()

	rec := f.do(t, http.MethodPatch, "/api/v1/actions/"+logID.String(), `{"decision": "decline"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []uuid.UUID{logID}, f.approver.declined)
}

func TestDecideActionValidation(t *testing.T) {
	f := setupAPI(t)

	rec := f.do(t, http.MethodPatch, "/api/v1/actions/not-a-uuid", `{"decision": "approve"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = f.do(t, http.MethodPatch, "/api/v1/actions/"+uuid.NewString(), `{"decision": "maybe"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = f.do(t, http.MethodPatch, "/api/v1/actions/"+uuid.NewString(), `{}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestDecideActionConflict(t *testing.T) {
	f := setupAPI(t)
	f.approver.err = services.ErrInvalidTransition

	rec := f.do(t, http.MethodPatch, "/api/v1/actions/"+uuid.NewString(), `{"decision": "approve"}`)
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestDecideActionNotFound(t *testing.T) {
	f := setupAPI(t)
	f.approver.err = services.ErrNotFound

	rec := f.do(t, http.MethodPatch, "/api/v1/actions/"+uuid.NewString(), `{"decision": "decline"}`)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestGetActionLog(t *testing.T) {
	f := setupAPI(t)
	log := &models.ActionLog{ID: uuid.New(), Status: models.ActionStatusAwaitingApproval}
	f.logs.logs[log.ID] = log

	rec := f.do(t, http.MethodGet, "/api/v1/actions/"+log.ID.String(), "")
	require.Equal(t, http.StatusOK, rec.Code)

	rec = f.do(t, http.MethodGet, "/api/v1/actions/"+uuid.NewString(), "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestListActionLogs(t *testing.T) {
	f := setupAPI(t)
	deploymentID := uuid.New()
	f.logs.logs[uuid.New()] = &models.ActionLog{ID: uuid.New(), DeploymentID: deploymentID}

	rec := f.do(t, http.MethodGet, "/api/v1/deployments/"+deploymentID.String()+"/actions", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Actions []*models.ActionLog `json:"actions"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Len(t, body.Actions, 1)
}

func TestStartDeploymentPublishesEvent(t *testing.T) {
	f := setupAPI(t)
	d := f.addDeployment(`{"guild_id": 100, "allowed_actions": [{"type": "mute"}]}`)

	rec := f.do(t, http.MethodPost, "/api/v1/deployments/"+d.ID.String()+"/start", "")
	require.Equal(t, http.StatusAccepted, rec.Code)

	require.Len(t, f.events.published, 1)
	ev := f.events.published[0]
	assert.Equal(t, models.DeploymentEventStart, ev.Type)
	assert.Equal(t, d.ID, ev.DeploymentID)
	assert.Equal(t, d.ModeratorID, ev.ModeratorID)
	require.NotNil(t, ev.Conf)
	assert.EqualValues(t, 100, ev.Conf.GuildID)
}

func TestStartDeploymentInvalidConf(t *testing.T) {
	f := setupAPI(t)
	d := f.addDeployment(`{"allowed_actions": []}`) // missing guild_id

	rec := f.do(t, http.MethodPost, "/api/v1/deployments/"+d.ID.String()+"/start", "")
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Empty(t, f.events.published)
}

func TestStartDeploymentNotFound(t *testing.T) {
	f := setupAPI(t)

	rec := f.do(t, http.MethodPost, "/api/v1/deployments/"+uuid.NewString()+"/start", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestStopDeploymentPublishesEvent(t *testing.T) {
	f := setupAPI(t)
	d := f.addDeployment(`{"guild_id": 100}`)

	rec := f.do(t, http.MethodPost, "/api/v1/deployments/"+d.ID.String()+"/stop", "")
	require.Equal(t, http.StatusAccepted, rec.Code)

	require.Len(t, f.events.published, 1)
	assert.Equal(t, models.DeploymentEventStop, f.events.published[0].Type)
}

func TestHealthWithoutDatabase(t *testing.T) {
	f := setupAPI(t)

	rec := f.do(t, http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}
