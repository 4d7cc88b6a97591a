package controllers

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"

	"polar-keeper/internal/config"
	"polar-keeper/internal/models"
	"polar-keeper/services"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type apiFixture struct {
	profile *models.HostProfile
	sup     *services.ServiceSupervisor
	router  *gin.Engine
}

func newAPIFixture(t *testing.T) *apiFixture {
	t.Helper()
	dataRoot := t.TempDir()
	profile := &models.HostProfile{
		Kind:            models.ProfileStandard,
		InstallRoot:     t.TempDir(),
		ServiceDataRoot: dataRoot,
	}
	require.NoError(t, os.MkdirAll(profile.ConfigDir(), 0755))
	require.NoError(t, os.MkdirAll(profile.LogDir(), 0755))

	sup := services.NewServiceSupervisor(models.ServiceHandle{
		Name:       "polar-cloud",
		PidFile:    profile.PidFile(),
		Executable: "sleep",
		Args:       []string{"60"},
		LogFile:    profile.ServiceLogFile(),
		WorkDir:    profile.InstallRoot,
	})
	t.Cleanup(func() { sup.Stop() })

	router := gin.New()
	NewAPIController(profile, sup, "test-version").RegisterRoutes(router)
	return &apiFixture{profile: profile, sup: sup, router: router}
}

func (f *apiFixture) get(t *testing.T, path string) *httptest.ResponseRecorder {
	t.Helper()
	w := httptest.NewRecorder()
	req, err := http.NewRequest(http.MethodGet, path, nil)
	require.NoError(t, err)
	f.router.ServeHTTP(w, req)
	return w
}

func (f *apiFixture) post(t *testing.T, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	data, err := json.Marshal(body)
	require.NoError(t, err)
	w := httptest.NewRecorder()
	req, err := http.NewRequest(http.MethodPost, path, bytes.NewReader(data))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	f.router.ServeHTTP(w, req)
	return w
}

/**
 * Test the readiness probe endpoint
 * @param {*testing.T} t - Testing framework instance
 */
func TestHealthz(t *testing.T) {
	f := newAPIFixture(t)

	w := f.get(t, "/healthz")
	require.Equal(t, http.StatusOK, w.Code)

	var resp models.HealthResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, "test-version", resp.Version)
	assert.NotEmpty(t, resp.StartTime)
}

/**
 * Test status on an unregistered host without a connector config
 * @param {*testing.T} t - Testing framework instance
 */
func TestStatusUnregistered(t *testing.T) {
	f := newAPIFixture(t)

	w := f.get(t, "/polar/api/v1/status")
	require.Equal(t, http.StatusOK, w.Code)

	var resp models.StatusResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, models.StatusStopped, resp.ServiceStatus)
	assert.False(t, resp.Registered)
	assert.False(t, resp.Connected)
	// 出厂默认值透出
	assert.Equal(t, "Cartesian", resp.MachineType)
}

/**
 * Test that the status endpoint merges the realtime status file
 * @param {*testing.T} t - Testing framework instance
 * @description
 * - The managed process writes connection state to its status file
 * - When readable it overrides the defaults in the response
 */
func TestStatusRealtimeFile(t *testing.T) {
	f := newAPIFixture(t)

	cfg := config.DefaultConnectorConfig()
	cfg.SerialNumber = "PC-9"
	require.NoError(t, cfg.Save(f.profile.ConnectorConf()))

	realtime := `{"connected": true, "last_update": "2026-03-01T12:00:00Z", "last_error": ""}`
	require.NoError(t, os.WriteFile(f.profile.StatusFile(), []byte(realtime), 0644))

	w := f.get(t, "/polar/api/v1/status")
	require.Equal(t, http.StatusOK, w.Code)

	var resp models.StatusResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.True(t, resp.Registered)
	assert.Equal(t, "PC-9", resp.SerialNumber)
	assert.True(t, resp.Connected)
	assert.Equal(t, "2026-03-01T12:00:00Z", resp.LastUpdate)
}

/**
 * Test registration input validation
 * @param {*testing.T} t - Testing framework instance
 */
func TestRegisterMissingCredentials(t *testing.T) {
	f := newAPIFixture(t)

	w := f.post(t, "/polar/api/v1/register", map[string]string{"username": "alice"})
	require.Equal(t, http.StatusBadRequest, w.Code)

	// 非法请求不能碰配置文件
	assert.NoFileExists(t, f.profile.ConnectorConf())
}

/**
 * Test successful registration
 * @param {*testing.T} t - Testing framework instance
 * @description
 * - Credentials and machine classification land in the connector config
 * - A serial number written earlier by the managed process must survive
 * - The managed process gets restarted so it picks up the new credentials
 */
func TestRegisterWritesConfigAndRestarts(t *testing.T) {
	f := newAPIFixture(t)

	existing := config.DefaultConnectorConfig()
	existing.SerialNumber = "PC-42"
	require.NoError(t, existing.Save(f.profile.ConnectorConf()))

	w := f.post(t, "/polar/api/v1/register", models.RegisterRequest{
		Username:    "alice",
		Pin:         "1234",
		MachineType: "CoreXY",
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	saved, err := config.LoadConnectorConfig(f.profile.ConnectorConf())
	require.NoError(t, err)
	assert.Equal(t, "alice", saved.Username)
	assert.Equal(t, "1234", saved.Pin)
	assert.Equal(t, "CoreXY", saved.MachineType)
	// serial_number是被管理进程写的，注册不能覆盖它
	assert.Equal(t, "PC-42", saved.SerialNumber)

	// 重启后被管理进程在跑
	assert.Equal(t, models.StatusRunning, f.sup.Status().Status)
}

/**
 * Test unregistration clears credentials and identity
 * @param {*testing.T} t - Testing framework instance
 */
func TestUnregisterClearsIdentity(t *testing.T) {
	f := newAPIFixture(t)

	cfg := config.DefaultConnectorConfig()
	cfg.Username = "alice"
	cfg.Pin = "1234"
	cfg.SerialNumber = "PC-42"
	require.NoError(t, cfg.Save(f.profile.ConnectorConf()))

	w := f.post(t, "/polar/api/v1/unregister", gin.H{})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	saved, err := config.LoadConnectorConfig(f.profile.ConnectorConf())
	require.NoError(t, err)
	assert.Empty(t, saved.Username)
	assert.Empty(t, saved.Pin)
	assert.Empty(t, saved.SerialNumber)
}

/**
 * Test the config update whitelist
 * @param {*testing.T} t - Testing framework instance
 * @description
 * - Whitelisted keys are applied
 * - Credentials cannot be smuggled in through the config endpoint
 */
func TestUpdateConfigWhitelist(t *testing.T) {
	f := newAPIFixture(t)

	w := f.post(t, "/polar/api/v1/config", map[string]string{
		"machine_type": "Delta",
		"verbose":      "true",
		"username":     "smuggled",
		"pin":          "0000",
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	saved, err := config.LoadConnectorConfig(f.profile.ConnectorConf())
	require.NoError(t, err)
	assert.Equal(t, "Delta", saved.MachineType)
	assert.Equal(t, "true", saved.Verbose)
	assert.Empty(t, saved.Username)
	assert.Empty(t, saved.Pin)
}

/**
 * Test log export
 * @param {*testing.T} t - Testing framework instance
 * @description
 * - Missing log file yields an empty body, not an error
 * - Existing log content comes back as plain text
 */
func TestExportLogs(t *testing.T) {
	f := newAPIFixture(t)

	w := f.get(t, "/polar/api/v1/logs")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, w.Body.String())

	require.NoError(t, os.WriteFile(f.profile.ServiceLogFile(), []byte("connector up\n"), 0644))
	w = f.get(t, "/polar/api/v1/logs")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "connector up")
}

// 读配置接口不泄漏pin
func TestGetConfigOmitsPin(t *testing.T) {
	f := newAPIFixture(t)

	cfg := config.DefaultConnectorConfig()
	cfg.Username = "alice"
	cfg.Pin = "1234"
	require.NoError(t, cfg.Save(f.profile.ConnectorConf()))

	w := f.get(t, "/polar/api/v1/config")
	require.Equal(t, http.StatusOK, w.Code)
	assert.NotContains(t, w.Body.String(), "1234")

	var resp models.ConnectorConfigResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "alice", resp.Username)
	assert.Equal(t, "https://printer4.polar3d.com", resp.ServerURL)
}
