package handler

import (
	"fmt"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
)

func createMedicationViaAPI(t *testing.T, srv *testServer, name, schedule string) medicationPayload {
	t.Helper()
	w := srv.do(t, http.MethodPost, "/api/medications", gin.H{
		"name":         name,
		"dosage":       "1 tablet",
		"schedule":     schedule,
		"instructions": "饭后服用\n\n**不要空腹**\n\n<script>alert(1)</script>",
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("create medication: expected 201, got %d: %s", w.Code, w.Body.String())
	}
	var resp struct {
		Medication medicationPayload `json:"medication"`
	}
	decodeBody(t, w, &resp)
	return resp.Medication
}

func TestMedicationEndpoints(t *testing.T) {
	srv, cleanup := newTestServer(t, testConfig())
	defer cleanup()
	srv.registerAndLogin(t, "alice")

	med := createMedicationViaAPI(t, srv, "Metformin", "Morning")

	w := srv.do(t, http.MethodGet, fmt.Sprintf("/api/medications/%d", med.ID), nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	var detail struct {
		Medication medicationPayload `json:"medication"`
	}
	decodeBody(t, w, &detail)
	if !strings.Contains(detail.Medication.InstructionsHTML, "<strong>不要空腹</strong>") {
		t.Fatalf("expected rendered markdown, got %q", detail.Medication.InstructionsHTML)
	}
	if strings.Contains(detail.Medication.InstructionsHTML, "<script>") {
		t.Fatalf("instructions must be sanitized, got %q", detail.Medication.InstructionsHTML)
	}

	if w := srv.do(t, http.MethodGet, "/api/medications/999", nil); w.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", w.Code)
	}
	if w := srv.do(t, http.MethodGet, "/api/medications/abc", nil); w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}
	if w := srv.do(t, http.MethodPost, "/api/medications", gin.H{"name": ""}); w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for blank name, got %d", w.Code)
	}
}

func TestDueMedicationsUsesReminderWindow(t *testing.T) {
	srv, cleanup := newTestServer(t, testConfig())
	defer cleanup()
	srv.api.WithClock(func() time.Time { return time.Date(2024, 1, 1, 7, 50, 0, 0, time.UTC) })
	srv.registerAndLogin(t, "alice")

	createMedicationViaAPI(t, srv, "Morning pill", "08:00")
	createMedicationViaAPI(t, srv, "Night pill", "Night")

	w := srv.do(t, http.MethodGet, "/api/medications/due", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	var resp struct {
		Due           []dueMedicationPayload `json:"due"`
		WindowMinutes int                    `json:"window_minutes"`
	}
	decodeBody(t, w, &resp)
	if len(resp.Due) != 1 || resp.Due[0].Medication.Name != "Morning pill" {
		t.Fatalf("unexpected due list: %+v", resp.Due)
	}
	if resp.WindowMinutes != 30 {
		t.Fatalf("unexpected window: %d", resp.WindowMinutes)
	}
}

func TestLogAndListDoses(t *testing.T) {
	srv, cleanup := newTestServer(t, testConfig())
	defer cleanup()
	fixed := time.Date(2024, 1, 3, 21, 0, 0, 0, time.UTC)
	srv.api.WithClock(func() time.Time { return fixed })
	srv.registerAndLogin(t, "alice")

	med := createMedicationViaAPI(t, srv, "Aspirin", "Night")

	w := srv.do(t, http.MethodPost, "/api/doses", gin.H{"medication_id": med.ID, "status": "taken"})
	if w.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", w.Code, w.Body.String())
	}
	var created struct {
		Dose dosePayload `json:"dose"`
	}
	decodeBody(t, w, &created)
	if created.Dose.Status != "Taken" || !created.Dose.OccurredAt.Equal(fixed) {
		t.Fatalf("unexpected dose: %+v", created.Dose)
	}

	w = srv.do(t, http.MethodPost, "/api/doses", gin.H{
		"medication_id": med.ID,
		"status":        "Missed",
		"occurred_at":   "2024-01-02T21:00:00Z",
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("expected 201 for backfilled dose, got %d: %s", w.Code, w.Body.String())
	}

	if w := srv.do(t, http.MethodPost, "/api/doses", gin.H{"medication_id": med.ID, "status": "Skipped"}); w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for unknown status, got %d", w.Code)
	}
	if w := srv.do(t, http.MethodPost, "/api/doses", gin.H{"medication_id": med.ID, "status": "Taken", "occurred_at": "yesterday"}); w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for bad timestamp, got %d", w.Code)
	}

	w = srv.do(t, http.MethodGet, "/api/doses", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	var list struct {
		Doses []dosePayload `json:"doses"`
	}
	decodeBody(t, w, &list)
	if len(list.Doses) != 2 {
		t.Fatalf("expected 2 doses, got %d", len(list.Doses))
	}
	if list.Doses[0].Status != "Missed" || list.Doses[1].Status != "Taken" {
		t.Fatalf("expected chronological order, got %+v", list.Doses)
	}
}

func TestLogDoseRejectsForeignMedication(t *testing.T) {
	srv, cleanup := newTestServer(t, testConfig())
	defer cleanup()

	srv.registerAndLogin(t, "alice")
	med := createMedicationViaAPI(t, srv, "Metformin", "Morning")
	srv.do(t, http.MethodPost, "/api/logout", nil)

	srv.registerAndLogin(t, "mallory")
	w := srv.do(t, http.MethodPost, "/api/doses", gin.H{"medication_id": med.ID, "status": "Taken"})
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for foreign medication, got %d: %s", w.Code, w.Body.String())
	}
}
