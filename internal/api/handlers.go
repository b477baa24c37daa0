package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"fleetcmd/internal/dispatch"
	"fleetcmd/internal/metrics"
	"fleetcmd/internal/model"
	"fleetcmd/internal/store"
)

// VehiclesHandler handles POST/GET /api/vehicles
func (s *Server) VehiclesHandler(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		p := s.getPrincipal(r)
		if !p.IsAdmin() { writeProblem(w, 403, "Forbidden", "admin required", r.URL.Path); return }
		var in model.VehicleIn
		if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
			writeProblem(w, http.StatusBadRequest, "Invalid JSON", err.Error(), r.URL.Path)
			return
		}
		if err := validateVehicleIn(in); err != nil {
			writeProblem(w, http.StatusBadRequest, "Invalid vehicle", err.Error(), r.URL.Path)
			return
		}
		v, err := s.Store.CreateVehicle(r.Context(), in)
		if err != nil {
			writeProblem(w, http.StatusInternalServerError, "Create vehicle failed", err.Error(), r.URL.Path)
			return
		}
		writeJSON(w, http.StatusCreated, v)
	case http.MethodGet:
		status := r.URL.Query().Get("status")
		cursor := r.URL.Query().Get("cursor")
		limit := 100
		if v := r.URL.Query().Get("limit"); v != "" { fmt.Sscanf(v, "%d", &limit) }
		items, next, err := s.Store.ListVehicles(r.Context(), status, cursor, limit)
		if err != nil {
			writeProblem(w, http.StatusInternalServerError, "List vehicles failed", err.Error(), r.URL.Path)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"items": items, "nextCursor": next})
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

// VehicleByIDHandler handles GET /api/vehicles/{id}
func (s *Server) VehicleByIDHandler(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimPrefix(r.URL.Path, "/api/vehicles/")
	if id == "" || strings.Contains(id, "/") { writeProblem(w, 404, "Not Found", "", r.URL.Path); return }
	if r.Method != http.MethodGet { w.WriteHeader(http.StatusMethodNotAllowed); return }
	v, err := s.Store.GetVehicle(r.Context(), id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeProblem(w, http.StatusNotFound, "Not Found", fmt.Sprintf("vehicle %s not found", id), r.URL.Path)
			return
		}
		writeProblem(w, http.StatusInternalServerError, "Get vehicle failed", err.Error(), r.URL.Path)
		return
	}
	writeJSON(w, http.StatusOK, v)
}

// DriversHandler handles POST/GET /api/drivers
func (s *Server) DriversHandler(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		p := s.getPrincipal(r)
		if !p.IsAdmin() { writeProblem(w, 403, "Forbidden", "admin required", r.URL.Path); return }
		var in model.DriverIn
		if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
			writeProblem(w, http.StatusBadRequest, "Invalid JSON", err.Error(), r.URL.Path)
			return
		}
		if err := validateDriverIn(in); err != nil {
			writeProblem(w, http.StatusBadRequest, "Invalid driver", err.Error(), r.URL.Path)
			return
		}
		d, err := s.Store.CreateDriver(r.Context(), in)
		if err != nil {
			writeProblem(w, http.StatusInternalServerError, "Create driver failed", err.Error(), r.URL.Path)
			return
		}
		writeJSON(w, http.StatusCreated, d)
	case http.MethodGet:
		cursor := r.URL.Query().Get("cursor")
		limit := 100
		if v := r.URL.Query().Get("limit"); v != "" { fmt.Sscanf(v, "%d", &limit) }
		items, next, err := s.Store.ListDrivers(r.Context(), cursor, limit)
		if err != nil {
			writeProblem(w, http.StatusInternalServerError, "List drivers failed", err.Error(), r.URL.Path)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"items": items, "nextCursor": next})
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

// DriverByIDHandler handles GET /api/drivers/{id}
func (s *Server) DriverByIDHandler(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimPrefix(r.URL.Path, "/api/drivers/")
	if id == "" || strings.Contains(id, "/") { writeProblem(w, 404, "Not Found", "", r.URL.Path); return }
	if r.Method != http.MethodGet { w.WriteHeader(http.StatusMethodNotAllowed); return }
	d, err := s.Store.GetDriver(r.Context(), id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeProblem(w, http.StatusNotFound, "Not Found", fmt.Sprintf("driver %s not found", id), r.URL.Path)
			return
		}
		writeProblem(w, http.StatusInternalServerError, "Get driver failed", err.Error(), r.URL.Path)
		return
	}
	writeJSON(w, http.StatusOK, d)
}

// ruleLabel collapses a rejection reason into a stable metric label. The
// capacity message carries per-request values and would explode cardinality.
func ruleLabel(reason string) string {
	if strings.HasPrefix(reason, "cargo exceeds capacity") { return "cargo_exceeds_capacity" }
	return strings.ReplaceAll(reason, " ", "_")
}

// TripsHandler handles POST/GET /api/trips
func (s *Server) TripsHandler(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		p := s.getPrincipal(r)
		if !p.CanDispatch() { writeProblem(w, 403, "Forbidden", "dispatcher or admin required", r.URL.Path); return }
		var req model.TripRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeProblem(w, http.StatusBadRequest, "Invalid JSON", err.Error(), r.URL.Path)
			return
		}
		trip, err := s.Dispatch.CreateTrip(r.Context(), req)
		if err != nil {
			var el *dispatch.EligibilityError
			if errors.As(err, &el) {
				for _, reason := range el.Reasons {
					metrics.EligibilityRejections.WithLabelValues(ruleLabel(reason)).Inc()
				}
			}
			writeDispatchErr(w, r, err)
			return
		}
		s.emitTripEvent(r, "trip.created", trip)
		writeJSON(w, http.StatusCreated, trip)
	case http.MethodGet:
		status := r.URL.Query().Get("status")
		cursor := r.URL.Query().Get("cursor")
		limit := 100
		if v := r.URL.Query().Get("limit"); v != "" { fmt.Sscanf(v, "%d", &limit) }
		items, next, err := s.Store.ListTrips(r.Context(), status, cursor, limit)
		if err != nil {
			writeProblem(w, http.StatusInternalServerError, "List trips failed", err.Error(), r.URL.Path)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"items": items, "nextCursor": next})
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

// TripByIDHandler handles GET /api/trips/{id}, the lifecycle actions
// POST /api/trips/{id}/start|complete|cancel, and GET /api/trips/{id}/events/stream.
func (s *Server) TripByIDHandler(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/api/trips/")
	if rest == r.URL.Path || rest == "" {
		writeProblem(w, http.StatusNotFound, "Not Found", "missing id", r.URL.Path)
		return
	}
	parts := strings.Split(rest, "/")
	id := parts[0]

	if len(parts) > 2 && parts[1] == "events" && parts[2] == "stream" {
		s.tripEventStream(w, r, id)
		return
	}
	if len(parts) > 1 {
		if r.Method != http.MethodPost { w.WriteHeader(http.StatusMethodNotAllowed); return }
		p := s.getPrincipal(r)
		if !p.CanDispatch() { writeProblem(w, 403, "Forbidden", "dispatcher or admin required", r.URL.Path); return }
		var trip model.Trip
		var err error
		var event string
		switch parts[1] {
		case "start":
			trip, err = s.Dispatch.StartTrip(r.Context(), id)
			event = "trip.started"
		case "complete":
			trip, err = s.Dispatch.CompleteTrip(r.Context(), id)
			event = "trip.completed"
		case "cancel":
			trip, err = s.Dispatch.CancelTrip(r.Context(), id)
			event = "trip.cancelled"
		default:
			writeProblem(w, http.StatusNotFound, "Not Found", "", r.URL.Path)
			return
		}
		if err != nil {
			metrics.TripTransitions.WithLabelValues(parts[1], "rejected").Inc()
			writeDispatchErr(w, r, err)
			return
		}
		metrics.TripTransitions.WithLabelValues(parts[1], "ok").Inc()
		s.emitTripEvent(r, event, trip)
		writeJSON(w, http.StatusOK, trip)
		return
	}

	if r.Method != http.MethodGet { w.WriteHeader(http.StatusMethodNotAllowed); return }
	trip, err := s.Store.GetTrip(r.Context(), id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeProblem(w, http.StatusNotFound, "Not Found", fmt.Sprintf("trip %s not found", id), r.URL.Path)
			return
		}
		writeProblem(w, http.StatusInternalServerError, "Get trip failed", err.Error(), r.URL.Path)
		return
	}
	writeJSON(w, http.StatusOK, trip)
}

func (s *Server) emitTripEvent(r *http.Request, event string, trip model.Trip) {
	data := map[string]any{
		"tripId":      trip.ID,
		"driverId":    trip.DriverID,
		"vehicleId":   trip.VehicleID,
		"cargoWeight": trip.CargoWeight,
		"status":      trip.Status,
		"ts":          time.Now().UTC().Format(time.RFC3339),
	}
	s.Broker.Publish(trip.ID, SSEEvent{Type: event, Data: data})
	s.Pub.Emit(r.Context(), event, data)
}

// tripEventStream serves the per-trip SSE feed.
func (s *Server) tripEventStream(w http.ResponseWriter, r *http.Request, id string) {
	if r.Method != http.MethodGet { w.WriteHeader(http.StatusMethodNotAllowed); return }
	if _, err := s.Store.GetTrip(r.Context(), id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeProblem(w, http.StatusNotFound, "Not Found", fmt.Sprintf("trip %s not found", id), r.URL.Path)
			return
		}
		writeProblem(w, http.StatusInternalServerError, "Get trip failed", err.Error(), r.URL.Path)
		return
	}
	flusher, ok := w.(http.Flusher)
	if !ok { writeProblem(w, 500, "Streaming unsupported", "", r.URL.Path); return }
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	ch := s.Broker.Subscribe(id)
	defer s.Broker.Unsubscribe(id, ch)
	fmt.Fprintf(w, "event: heartbeat\n")
	fmt.Fprintf(w, "data: {\"tripId\":\"%s\",\"ts\":\"%s\"}\n\n", id, time.Now().Format(time.RFC3339))
	flusher.Flush()
	notify := r.Context().Done()
	for {
		select {
		case <-notify:
			return
		case evt := <-ch:
			b, _ := json.Marshal(evt.Data)
			fmt.Fprintf(w, "event: %s\n", evt.Type)
			fmt.Fprintf(w, "data: %s\n\n", string(b))
			flusher.Flush()
		case <-time.After(15 * time.Second):
			fmt.Fprintf(w, "event: heartbeat\n")
			fmt.Fprintf(w, "data: {\"tripId\":\"%s\",\"ts\":\"%s\"}\n\n", id, time.Now().Format(time.RFC3339))
			flusher.Flush()
		}
	}
}

// MaintenanceHandler handles POST/GET /api/maintenance
func (s *Server) MaintenanceHandler(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		p := s.getPrincipal(r)
		if !p.CanMaintain() { writeProblem(w, 403, "Forbidden", "mechanic or admin required", r.URL.Path); return }
		var req model.MaintenanceRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeProblem(w, http.StatusBadRequest, "Invalid JSON", err.Error(), r.URL.Path)
			return
		}
		rec, err := s.Dispatch.OpenMaintenance(r.Context(), req)
		if err != nil {
			writeDispatchErr(w, r, err)
			return
		}
		metrics.MaintenanceEvents.WithLabelValues("opened").Inc()
		s.Pub.Emit(r.Context(), "maintenance.opened", map[string]any{
			"maintenanceId": rec.ID, "vehicleId": rec.VehicleID, "status": rec.Status,
		})
		writeJSON(w, http.StatusCreated, rec)
	case http.MethodGet:
		vehicleID := r.URL.Query().Get("vehicleId")
		cursor := r.URL.Query().Get("cursor")
		limit := 100
		if v := r.URL.Query().Get("limit"); v != "" { fmt.Sscanf(v, "%d", &limit) }
		items, next, err := s.Store.ListMaintenanceRecords(r.Context(), vehicleID, cursor, limit)
		if err != nil {
			writeProblem(w, http.StatusInternalServerError, "List maintenance failed", err.Error(), r.URL.Path)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"items": items, "nextCursor": next})
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

// MaintenanceByIDHandler handles GET /api/maintenance/{id} and POST /api/maintenance/{id}/close
func (s *Server) MaintenanceByIDHandler(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/api/maintenance/")
	if rest == r.URL.Path || rest == "" {
		writeProblem(w, http.StatusNotFound, "Not Found", "missing id", r.URL.Path)
		return
	}
	parts := strings.Split(rest, "/")
	id := parts[0]
	if len(parts) > 1 {
		if parts[1] != "close" { writeProblem(w, 404, "Not Found", "", r.URL.Path); return }
		if r.Method != http.MethodPost { w.WriteHeader(http.StatusMethodNotAllowed); return }
		p := s.getPrincipal(r)
		if !p.CanMaintain() { writeProblem(w, 403, "Forbidden", "mechanic or admin required", r.URL.Path); return }
		rec, err := s.Dispatch.CloseMaintenance(r.Context(), id)
		if err != nil {
			writeDispatchErr(w, r, err)
			return
		}
		metrics.MaintenanceEvents.WithLabelValues("closed").Inc()
		s.Pub.Emit(r.Context(), "maintenance.closed", map[string]any{
			"maintenanceId": rec.ID, "vehicleId": rec.VehicleID, "status": rec.Status,
		})
		writeJSON(w, http.StatusOK, rec)
		return
	}
	if r.Method != http.MethodGet { w.WriteHeader(http.StatusMethodNotAllowed); return }
	rec, err := s.Store.GetMaintenanceRecord(r.Context(), id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeProblem(w, http.StatusNotFound, "Not Found", fmt.Sprintf("maintenance record %s not found", id), r.URL.Path)
			return
		}
		writeProblem(w, http.StatusInternalServerError, "Get maintenance failed", err.Error(), r.URL.Path)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

// SubscriptionsHandler handles POST/GET /api/subscriptions
func (s *Server) SubscriptionsHandler(w http.ResponseWriter, r *http.Request) {
	p := s.getPrincipal(r)
	if !p.IsAdmin() { writeProblem(w, 403, "Forbidden", "admin required", r.URL.Path); return }
	switch r.Method {
	case http.MethodPost:
		var req model.SubscriptionRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeProblem(w, http.StatusBadRequest, "Invalid JSON", err.Error(), r.URL.Path)
			return
		}
		if req.URL == "" || len(req.Events) == 0 {
			writeProblem(w, http.StatusBadRequest, "Invalid subscription", "url and events required", r.URL.Path)
			return
		}
		sub, err := s.Store.CreateSubscription(r.Context(), req)
		if err != nil {
			writeProblem(w, http.StatusInternalServerError, "Create subscription failed", err.Error(), r.URL.Path)
			return
		}
		writeJSON(w, http.StatusCreated, sub)
	case http.MethodGet:
		cursor := r.URL.Query().Get("cursor")
		limit := 100
		if v := r.URL.Query().Get("limit"); v != "" { fmt.Sscanf(v, "%d", &limit) }
		items, next, err := s.Store.ListSubscriptions(r.Context(), cursor, limit)
		if err != nil { writeProblem(w, 500, "List subscriptions failed", err.Error(), r.URL.Path); return }
		writeJSON(w, 200, map[string]any{"items": items, "nextCursor": next})
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

// SubscriptionByIDHandler handles DELETE /api/subscriptions/{id}
func (s *Server) SubscriptionByIDHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodDelete { w.WriteHeader(405); return }
	p := s.getPrincipal(r)
	if !p.IsAdmin() { writeProblem(w, 403, "Forbidden", "admin required", r.URL.Path); return }
	id := strings.TrimPrefix(r.URL.Path, "/api/subscriptions/")
	if err := s.Store.DeleteSubscription(r.Context(), id); err != nil {
		if errors.Is(err, store.ErrNotFound) { writeProblem(w, 404, "Not Found", "", r.URL.Path); return }
		writeProblem(w, 500, "Delete subscription failed", err.Error(), r.URL.Path)
		return
	}
	w.WriteHeader(204)
}

// Health
func (s *Server) HealthHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, 200, map[string]string{"status": "ok"})
}

func (s *Server) ReadyHandler(w http.ResponseWriter, r *http.Request) {
	// Check DB connectivity when using the Postgres store
	if pg, ok := s.Store.(*store.Postgres); ok {
		ctx, cancel := context.WithTimeout(r.Context(), 500*time.Millisecond)
		defer cancel()
		if err := pg.Ping(ctx); err != nil { writeProblem(w, 503, "Not Ready", err.Error(), r.URL.Path); return }
	}
	writeJSON(w, 200, map[string]string{"status": "ready"})
}
