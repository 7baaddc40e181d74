package netbox

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/nettally/nettally/pkg/model"
)

func testClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewClient(model.InventoryConfig{URL: srv.URL, Token: "test-token"})
}

// ============================================================================
// Lookup Tests
// ============================================================================

func TestGetDeviceByNameFound(t *testing.T) {
	c := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Token test-token" {
			t.Errorf("auth header = %q", got)
		}
		if r.URL.Path != "/api/dcim/devices/" {
			t.Errorf("path = %q", r.URL.Path)
		}
		if got := r.URL.Query().Get("name"); got != "sw1" {
			t.Errorf("name filter = %q", got)
		}
		json.NewEncoder(w).Encode(map[string]interface{}{
			"count":   1,
			"results": []Device{{ID: 7, Name: "sw1"}},
		})
	})

	dev, err := c.GetDeviceByName(context.Background(), "sw1")
	if err != nil {
		t.Fatal(err)
	}
	if dev == nil || dev.ID != 7 {
		t.Fatalf("device = %+v", dev)
	}
}

func TestGetDeviceByNameMissing(t *testing.T) {
	c := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]interface{}{"count": 0, "results": []Device{}})
	})

	dev, err := c.GetDeviceByName(context.Background(), "ghost")
	if err != nil {
		t.Fatal(err)
	}
	if dev != nil {
		t.Fatalf("expected nil for missing device, got %+v", dev)
	}
}

func TestListInterfacesPaginates(t *testing.T) {
	pages := 0
	c := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		pages++
		offset := r.URL.Query().Get("offset")
		var results []Interface
		next := ""
		if offset == "0" {
			for i := 1; i <= 200; i++ {
				results = append(results, Interface{ID: i, Name: fmt.Sprintf("Gi0/%d", i)})
			}
			next = "more"
		} else {
			results = append(results, Interface{ID: 201, Name: "Gi0/201"})
		}
		json.NewEncoder(w).Encode(map[string]interface{}{
			"count": 201, "next": next, "results": results,
		})
	})

	ifaces, err := c.ListInterfaces(context.Background(), 7)
	if err != nil {
		t.Fatal(err)
	}
	if len(ifaces) != 201 {
		t.Errorf("got %d interfaces, want 201", len(ifaces))
	}
	if pages != 2 {
		t.Errorf("made %d requests, want 2", pages)
	}
}

// ============================================================================
// Retry Tests
// ============================================================================

// Transient 5xx on reads retries; the client eventually succeeds.
func TestReadRetriesOn5xx(t *testing.T) {
	calls := 0
	c := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls == 1 {
			http.Error(w, "busy", http.StatusServiceUnavailable)
			return
		}
		json.NewEncoder(w).Encode(map[string]interface{}{"count": 0, "results": []Device{}})
	})

	if _, err := c.ListDevices(context.Background(), ""); err != nil {
		t.Fatal(err)
	}
	if calls != 2 {
		t.Errorf("made %d calls, want 2", calls)
	}
}

// Writes never retry; a failed create surfaces immediately.
func TestWriteDoesNotRetry(t *testing.T) {
	calls := 0
	c := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls++
		http.Error(w, "boom", http.StatusInternalServerError)
	})

	_, err := c.CreateDevice(context.Background(), Device{Name: "sw1"})
	if err == nil {
		t.Fatal("expected create to fail")
	}
	if calls != 1 {
		t.Errorf("made %d calls, want 1", calls)
	}
}

func TestClientErrorIsPermanent(t *testing.T) {
	calls := 0
	c := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls++
		http.Error(w, "bad filter", http.StatusBadRequest)
	})

	if _, err := c.ListDevices(context.Background(), ""); err == nil {
		t.Fatal("expected 400 to fail")
	}
	if calls != 1 {
		t.Errorf("400 retried: %d calls", calls)
	}
}

// ============================================================================
// Write Payload Tests
// ============================================================================

func TestBulkDeletePayload(t *testing.T) {
	c := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodDelete {
			t.Errorf("method = %s", r.Method)
		}
		var refs []idRef
		if err := json.NewDecoder(r.Body).Decode(&refs); err != nil {
			t.Fatal(err)
		}
		if len(refs) != 2 || refs[0].ID != 4 || refs[1].ID != 9 {
			t.Errorf("refs = %+v", refs)
		}
		w.WriteHeader(http.StatusNoContent)
	})

	if err := c.DeleteInterfaces(context.Background(), []int{4, 9}); err != nil {
		t.Fatal(err)
	}
}

func TestAssignMAC(t *testing.T) {
	c := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/dcim/mac-addresses/" {
			t.Errorf("path = %q", r.URL.Path)
		}
		var body map[string]interface{}
		json.NewDecoder(r.Body).Decode(&body)
		if body["mac_address"] != "AA:BB:CC:DD:EE:FF" {
			t.Errorf("mac = %v", body["mac_address"])
		}
		if body["assigned_object_type"] != "dcim.interface" {
			t.Errorf("object type = %v", body["assigned_object_type"])
		}
		w.WriteHeader(http.StatusCreated)
	})

	if err := c.AssignMAC(context.Background(), 12, "AA:BB:CC:DD:EE:FF"); err != nil {
		t.Fatal(err)
	}
}

func TestGetOrCreateDependencyCreates(t *testing.T) {
	c := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet {
			json.NewEncoder(w).Encode(map[string]interface{}{"count": 0, "results": []Ref{}})
			return
		}
		var body map[string]interface{}
		json.NewDecoder(r.Body).Decode(&body)
		if body["name"] != "Cisco" || body["slug"] != "cisco" {
			t.Errorf("create body = %v", body)
		}
		json.NewEncoder(w).Encode(Ref{ID: 3, Name: "Cisco", Slug: "cisco"})
	})

	ref, err := c.GetOrCreateDependency(context.Background(), KindManufacturer, "Cisco", 0)
	if err != nil {
		t.Fatal(err)
	}
	if ref.ID != 3 {
		t.Errorf("ref = %+v", ref)
	}
}
