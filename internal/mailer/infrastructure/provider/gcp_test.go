package provider

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"path"
	"strings"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/burhanmukhtar/Molly-Pro/internal/mailer/server"
	apperrors "github.com/burhanmukhtar/Molly-Pro/internal/shared/errors"
	"github.com/burhanmukhtar/Molly-Pro/internal/shared/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/option"
)

const (
	gcpTestZonePath   = "/compute/v1/projects/proj/zones/us-central1-a"
	gcpTestRegionPath = "/compute/v1/projects/proj/regions/us-central1"
	gcpTestInstance   = "molly-server-alice-0a1b2c3d"
)

// newTestGCP serves handler for everything except operation polls, which
// always report the operation done.
func newTestGCP(t *testing.T, handler http.HandlerFunc) *GCPAdapter {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet && strings.Contains(r.URL.Path, "/operations/") {
			writeJSON(t, w, http.StatusOK, gcpOperation(path.Base(r.URL.Path), "DONE"))
			return
		}
		handler(w, r)
	}))
	t.Cleanup(srv.Close)

	adapter, err := NewGCPAdapter(context.Background(),
		GCPConfig{ProjectID: "proj", Network: "global/networks/default"},
		logger.Discard(),
		option.WithEndpoint(srv.URL),
		option.WithHTTPClient(srv.Client()),
	)
	require.NoError(t, err)
	adapter.readBackDelay = 0
	t.Cleanup(func() { _ = adapter.Close() })
	return adapter
}

func gcpOperation(name, status string) map[string]any {
	return map[string]any{"name": name, "status": status}
}

func gcpInstanceJSON(status, natIP string) map[string]any {
	accessConfig := map[string]any{"name": gcpAccessConfigName, "type": "ONE_TO_ONE_NAT"}
	if natIP != "" {
		accessConfig["natIP"] = natIP
	}
	return map[string]any{
		"name":   gcpTestInstance,
		"status": status,
		"networkInterfaces": []any{
			map[string]any{"name": gcpNetworkInterface, "accessConfigs": []any{accessConfig}},
		},
	}
}

func gcpNotFound(t *testing.T, w http.ResponseWriter) {
	writeJSON(t, w, http.StatusNotFound, map[string]any{
		"error": map[string]any{"code": 404, "message": "The resource was not found"},
	})
}

func TestGCPCreateInstance(t *testing.T) {
	var body map[string]any
	adapter := newTestGCP(t, func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodPost && r.URL.Path == gcpTestZonePath+"/instances":
			raw, _ := io.ReadAll(r.Body)
			require.NoError(t, json.Unmarshal(raw, &body))
			writeJSON(t, w, http.StatusOK, gcpOperation("op-create", "RUNNING"))
		case r.Method == http.MethodGet && r.URL.Path == gcpTestZonePath+"/instances/"+gcpTestInstance:
			writeJSON(t, w, http.StatusOK, gcpInstanceJSON("RUNNING", "203.0.113.5"))
		default:
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
			gcpNotFound(t, w)
		}
	})

	inst, err := adapter.CreateInstance(context.Background(), InstanceSpec{
		Name:          gcpTestInstance,
		Zone:          "us-central1-a",
		MachineType:   "e2-standard-2",
		Image:         "projects/debian-cloud/global/images/family/debian-12",
		DiskSizeGB:    10,
		DiskType:      "pd-ssd",
		StartupScript: "#!/bin/sh\necho hi",
	})
	require.NoError(t, err)

	assert.Equal(t, gcpTestInstance, inst.ID)
	assert.Equal(t, "203.0.113.5", inst.IP)
	assert.Equal(t, server.ProviderRunning, inst.State)

	assert.Equal(t, "zones/us-central1-a/machineTypes/e2-standard-2", body["machineType"])
	metadata, ok := body["metadata"].(map[string]any)
	require.True(t, ok)
	items, ok := metadata["items"].([]any)
	require.True(t, ok)
	require.Len(t, items, 1)
	assert.Equal(t, map[string]any{"key": "startup-script", "value": "#!/bin/sh\necho hi"}, items[0])
}

func TestGCPCreateInstance_WaitsForExternalAddress(t *testing.T) {
	var gets atomic.Int32
	adapter := newTestGCP(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodPost:
			writeJSON(t, w, http.StatusOK, gcpOperation("op-create", "RUNNING"))
		case http.MethodGet:
			switch gets.Add(1) {
			case 1:
				writeJSON(t, w, http.StatusInternalServerError, map[string]any{
					"error": map[string]any{"code": 500, "message": "backend error"},
				})
			case 2:
				writeJSON(t, w, http.StatusOK, gcpInstanceJSON("PROVISIONING", ""))
			default:
				writeJSON(t, w, http.StatusOK, gcpInstanceJSON("STAGING", "203.0.113.6"))
			}
		}
	})

	inst, err := adapter.CreateInstance(context.Background(), InstanceSpec{Name: gcpTestInstance, Zone: "us-central1-a"})
	require.NoError(t, err)
	assert.Equal(t, "203.0.113.6", inst.IP)
	assert.Equal(t, server.ProviderPending, inst.State)
	assert.EqualValues(t, 3, gets.Load())
}

func TestGCPCreateInstance_NoAddressFailsProvisioning(t *testing.T) {
	var gets atomic.Int32
	adapter := newTestGCP(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodPost:
			writeJSON(t, w, http.StatusOK, gcpOperation("op-create", "RUNNING"))
		case http.MethodGet:
			gets.Add(1)
			writeJSON(t, w, http.StatusOK, gcpInstanceJSON("RUNNING", ""))
		}
	})

	inst, err := adapter.CreateInstance(context.Background(), InstanceSpec{Name: gcpTestInstance, Zone: "us-central1-a"})
	require.Error(t, err)
	assert.True(t, apperrors.IsErrorCode(err, apperrors.ErrCodeProvisioningFailed))
	assert.Contains(t, err.Error(), "no external address")
	assert.EqualValues(t, gcpReadBackAttempts, gets.Load())

	// The instance exists, so the caller gets its id for cleanup
	require.NotNil(t, inst)
	assert.Equal(t, gcpTestInstance, inst.ID)
	assert.Empty(t, inst.IP)
}

func TestGCPCreateInstance_OperationErrorIsVerbatim(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodPost:
			writeJSON(t, w, http.StatusOK, gcpOperation("op-create", "RUNNING"))
		case strings.Contains(r.URL.Path, "/operations/"):
			op := gcpOperation("op-create", "DONE")
			op["error"] = map[string]any{"errors": []any{
				map[string]any{"code": "QUOTA_EXCEEDED", "message": "Quota 'CPUS' exceeded. Limit: 8.0 in region us-central1."},
			}}
			writeJSON(t, w, http.StatusOK, op)
		default:
			gcpNotFound(t, w)
		}
	}))
	t.Cleanup(srv.Close)

	adapter, err := NewGCPAdapter(context.Background(), GCPConfig{ProjectID: "proj"}, logger.Discard(),
		option.WithEndpoint(srv.URL), option.WithHTTPClient(srv.Client()))
	require.NoError(t, err)
	t.Cleanup(func() { _ = adapter.Close() })

	inst, err := adapter.CreateInstance(context.Background(), InstanceSpec{Name: gcpTestInstance, Zone: "us-central1-a"})
	require.Error(t, err)
	assert.True(t, apperrors.IsErrorCode(err, apperrors.ErrCodeProvisioningFailed))
	assert.Contains(t, err.Error(), "Quota 'CPUS' exceeded. Limit: 8.0 in region us-central1.")
	require.NotNil(t, inst)
	assert.Equal(t, gcpTestInstance, inst.ID)
}

func TestGCPGetInstanceState(t *testing.T) {
	tests := []struct {
		status string
		want   server.ProviderState
	}{
		{"PROVISIONING", server.ProviderPending},
		{"STAGING", server.ProviderPending},
		{"RUNNING", server.ProviderRunning},
		{"STOPPING", server.ProviderStopping},
		{"SUSPENDING", server.ProviderStopping},
		{"TERMINATED", server.ProviderStopped},
		{"SUSPENDED", server.ProviderStopped},
		{"SOMETHING_NEW", server.ProviderUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.status, func(t *testing.T) {
			adapter := newTestGCP(t, func(w http.ResponseWriter, r *http.Request) {
				require.Equal(t, gcpTestZonePath+"/instances/"+gcpTestInstance, r.URL.Path)
				writeJSON(t, w, http.StatusOK, gcpInstanceJSON(tt.status, "203.0.113.5"))
			})

			state, err := adapter.GetInstanceState(context.Background(), gcpTestInstance, "us-central1-a")
			require.NoError(t, err)
			assert.Equal(t, tt.want, state)
		})
	}

	t.Run("not found is terminated", func(t *testing.T) {
		adapter := newTestGCP(t, func(w http.ResponseWriter, r *http.Request) {
			gcpNotFound(t, w)
		})

		state, err := adapter.GetInstanceState(context.Background(), gcpTestInstance, "us-central1-a")
		require.NoError(t, err)
		assert.Equal(t, server.ProviderTerminated, state)
	})

	t.Run("api error is unknown", func(t *testing.T) {
		adapter := newTestGCP(t, func(w http.ResponseWriter, r *http.Request) {
			writeJSON(t, w, http.StatusForbidden, map[string]any{
				"error": map[string]any{"code": 403, "message": "Required 'compute.instances.get' permission"},
			})
		})

		state, err := adapter.GetInstanceState(context.Background(), gcpTestInstance, "us-central1-a")
		require.Error(t, err)
		assert.Equal(t, server.ProviderUnknown, state)
		assert.True(t, apperrors.IsErrorCode(err, apperrors.ErrCodeProviderUnavailable))
		assert.False(t, apperrors.IsRetryable(err))
	})
}

func TestGCPDeleteInstance(t *testing.T) {
	t.Run("already gone skips delete", func(t *testing.T) {
		var deletes atomic.Int32
		adapter := newTestGCP(t, func(w http.ResponseWriter, r *http.Request) {
			if r.Method == http.MethodDelete {
				deletes.Add(1)
			}
			gcpNotFound(t, w)
		})

		require.NoError(t, adapter.DeleteInstance(context.Background(), gcpTestInstance, "us-central1-a"))
		assert.Zero(t, deletes.Load())
	})

	t.Run("running instance is deleted", func(t *testing.T) {
		var deletes atomic.Int32
		adapter := newTestGCP(t, func(w http.ResponseWriter, r *http.Request) {
			require.Equal(t, gcpTestZonePath+"/instances/"+gcpTestInstance, r.URL.Path)
			switch r.Method {
			case http.MethodGet:
				writeJSON(t, w, http.StatusOK, gcpInstanceJSON("RUNNING", "203.0.113.5"))
			case http.MethodDelete:
				deletes.Add(1)
				writeJSON(t, w, http.StatusOK, gcpOperation("op-delete", "RUNNING"))
			}
		})

		require.NoError(t, adapter.DeleteInstance(context.Background(), gcpTestInstance, "us-central1-a"))
		assert.EqualValues(t, 1, deletes.Load())
	})

	t.Run("vanishing between read and delete", func(t *testing.T) {
		adapter := newTestGCP(t, func(w http.ResponseWriter, r *http.Request) {
			if r.Method == http.MethodGet {
				writeJSON(t, w, http.StatusOK, gcpInstanceJSON("RUNNING", "203.0.113.5"))
				return
			}
			gcpNotFound(t, w)
		})

		assert.NoError(t, adapter.DeleteInstance(context.Background(), gcpTestInstance, "us-central1-a"))
	})
}

func TestGCPAllocateFloatingIP(t *testing.T) {
	var name string
	adapter := newTestGCP(t, func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodPost && r.URL.Path == gcpTestRegionPath+"/addresses":
			var body map[string]any
			raw, _ := io.ReadAll(r.Body)
			require.NoError(t, json.Unmarshal(raw, &body))
			name, _ = body["name"].(string)
			writeJSON(t, w, http.StatusOK, gcpOperation("op-addr", "RUNNING"))
		case r.Method == http.MethodGet && strings.HasPrefix(r.URL.Path, gcpTestRegionPath+"/addresses/"):
			writeJSON(t, w, http.StatusOK, map[string]any{"name": path.Base(r.URL.Path), "address": "198.51.100.20"})
		default:
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
			gcpNotFound(t, w)
		}
	})

	fip, err := adapter.AllocateFloatingIP(context.Background(), "us-central1")
	require.NoError(t, err)
	assert.NotEmpty(t, name)
	assert.Equal(t, name, fip.Handle)
	assert.Equal(t, "198.51.100.20", fip.Address)
}

func TestGCPAssociateFloatingIP_DetachesBeforeAttach(t *testing.T) {
	var (
		mu    sync.Mutex
		calls []string
		natIP string
	)
	adapter := newTestGCP(t, func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		defer mu.Unlock()

		switch {
		case r.Method == http.MethodGet && r.URL.Path == gcpTestRegionPath+"/addresses/addr-1":
			calls = append(calls, "get_address")
			writeJSON(t, w, http.StatusOK, map[string]any{"name": "addr-1", "address": "198.51.100.9"})
		case r.URL.Path == gcpTestZonePath+"/instances/"+gcpTestInstance+"/deleteAccessConfig":
			calls = append(calls, "delete_access_config")
			assert.Equal(t, gcpAccessConfigName, r.URL.Query().Get("accessConfig"))
			assert.Equal(t, gcpNetworkInterface, r.URL.Query().Get("networkInterface"))
			writeJSON(t, w, http.StatusOK, gcpOperation("op-detach", "RUNNING"))
		case r.URL.Path == gcpTestZonePath+"/instances/"+gcpTestInstance+"/addAccessConfig":
			calls = append(calls, "add_access_config")
			var body map[string]any
			raw, _ := io.ReadAll(r.Body)
			require.NoError(t, json.Unmarshal(raw, &body))
			natIP, _ = body["natIP"].(string)
			writeJSON(t, w, http.StatusOK, gcpOperation("op-attach", "RUNNING"))
		default:
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
			gcpNotFound(t, w)
		}
	})

	require.NoError(t, adapter.AssociateFloatingIP(context.Background(), gcpTestInstance, "us-central1-a", "addr-1"))

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{"get_address", "delete_access_config", "add_access_config"}, calls)
	assert.Equal(t, "198.51.100.9", natIP)
}

func TestGCPFindFloatingIPByAddress(t *testing.T) {
	adapter := newTestGCP(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, gcpTestRegionPath+"/addresses", r.URL.Path)
		filter := r.URL.Query().Get("filter")
		if filter == `address = "198.51.100.8"` {
			writeJSON(t, w, http.StatusOK, map[string]any{"items": []any{
				map[string]any{"name": "addr-8", "address": "198.51.100.8"},
			}})
			return
		}
		writeJSON(t, w, http.StatusOK, map[string]any{})
	})

	handle, err := adapter.FindFloatingIPByAddress(context.Background(), "us-central1", "198.51.100.8")
	require.NoError(t, err)
	assert.Equal(t, "addr-8", handle)

	_, err = adapter.FindFloatingIPByAddress(context.Background(), "us-central1", "198.51.100.9")
	assert.ErrorIs(t, err, ErrFloatingIPNotFound)
}

func TestGCPReleaseFloatingIP_NotFoundIsNoop(t *testing.T) {
	adapter := newTestGCP(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodDelete, r.Method)
		require.Equal(t, gcpTestRegionPath+"/addresses/addr-1", r.URL.Path)
		gcpNotFound(t, w)
	})

	assert.NoError(t, adapter.ReleaseFloatingIP(context.Background(), "us-central1", "addr-1"))
}

func TestExternalIP(t *testing.T) {
	assert.Empty(t, externalIP(nil))
}
