package vercel

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"hostforge/internal/engine"
)

func testClient(t *testing.T, handler http.Handler) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	client, err := NewClient(Options{
		APIToken: "test-token",
		TeamID:   "team_1",
		BaseURL:  srv.URL,
	})
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	return client
}

func TestNewClientRequiresToken(t *testing.T) {
	if _, err := NewClient(Options{}); err != ErrMissingAPIToken {
		t.Fatalf("expected ErrMissingAPIToken, got %v", err)
	}
}

func TestGetProjectNotFoundReturnsNil(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/v9/projects/hostforge-acme", func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("teamId"); got != "team_1" {
			t.Errorf("teamId = %q", got)
		}
		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte(`{"error": {"code": "not_found", "message": "Project not found"}}`))
	})
	client := testClient(t, mux)

	p, err := client.GetProject(context.Background(), "hostforge-acme")
	if err != nil {
		t.Fatalf("GetProject: %v", err)
	}
	if p != nil {
		t.Fatalf("expected nil project, got %+v", p)
	}
}

func TestCreateProjectLinksRepo(t *testing.T) {
	var payload map[string]any
	mux := http.NewServeMux()
	mux.HandleFunc("/v10/projects", func(w http.ResponseWriter, r *http.Request) {
		if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
			t.Fatalf("decode payload: %v", err)
		}
		w.Write([]byte(`{"id": "prj_1", "name": "hostforge-acme"}`))
	})
	client := testClient(t, mux)

	p, err := client.CreateProject(context.Background(), "hostforge-acme", "hostforge/project-acme")
	if err != nil {
		t.Fatalf("CreateProject: %v", err)
	}
	if p.ID != "prj_1" {
		t.Errorf("project id = %q", p.ID)
	}
	git := payload["gitRepository"].(map[string]any)
	if git["repo"] != "hostforge/project-acme" || git["type"] != "github" {
		t.Errorf("gitRepository = %v", git)
	}
}

func TestAddDomainTreatsConflictAsSuccess(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/v10/projects/prj_1/domains", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusConflict)
		w.Write([]byte(`{"error": {"code": "domain_already_in_use", "message": "Domain is already assigned"}}`))
	})
	client := testClient(t, mux)

	if err := client.AddDomain(context.Background(), "prj_1", "acme.hostforge.app"); err != nil {
		t.Fatalf("AddDomain: %v", err)
	}
}

func TestRemoveDomainTreatsNotFoundAsSuccess(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/v9/projects/prj_1/domains/acme.com", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte(`{"error": {"code": "not_found", "message": "Domain not found"}}`))
	})
	client := testClient(t, mux)

	if err := client.RemoveDomain(context.Background(), "prj_1", "acme.com"); err != nil {
		t.Fatalf("RemoveDomain: %v", err)
	}
}

func TestGetDeploymentMapsReadyState(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/v13/deployments/dpl_1", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"id": "dpl_1", "url": "acme-abc.vercel.app", "readyState": "READY"}`))
	})
	client := testClient(t, mux)

	d, err := client.GetDeployment(context.Background(), "dpl_1")
	if err != nil {
		t.Fatalf("GetDeployment: %v", err)
	}
	if d.State != engine.DeployStateReady {
		t.Errorf("state = %q", d.State)
	}
	if d.URL != "acme-abc.vercel.app" {
		t.Errorf("url = %q", d.URL)
	}
}

func TestDomainVerified(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/v9/projects/prj_1/domains/acme.com", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"name": "acme.com", "verified": true}`))
	})
	client := testClient(t, mux)

	ok, err := client.DomainVerified(context.Background(), "prj_1", "acme.com")
	if err != nil || !ok {
		t.Fatalf("DomainVerified = %v, %v", ok, err)
	}
}

func TestErrorSurfacesAPIMessage(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/v13/deployments", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"error": {"code": "bad_request", "message": "missing git source"}}`))
	})
	client := testClient(t, mux)

	_, err := client.TriggerDeploy(context.Background(), "prj_1")
	if err == nil {
		t.Fatal("expected error")
	}
	if got := err.Error(); got != "vercel: status 400: missing git source" {
		t.Errorf("error = %q", got)
	}
}
