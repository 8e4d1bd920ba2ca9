// Copyright (C) NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved. This file is part of carbon-writer.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package adminapi exposes the writer's management RPCs —
// getMetadata/setMetadata for a metric's aggregationMethod — over HTTP,
// the transport spec.md §6 names but leaves to an external admin
// surface to supply.
package adminapi

import (
	"encoding/json"
	"net/http"

	cclog "github.com/ClusterCockpit/cc-lib/v2/ccLogger"
	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"

	"github.com/ClusterCockpit/carbon-writer/internal/schemaregistry"
	"github.com/ClusterCockpit/carbon-writer/internal/storage"
)

// errorRecord is what unsupported keys and backend failures are
// reported as, instead of propagating an exception to the caller.
type errorRecord struct {
	Error string `json:"error"`
}

type metadataResponse struct {
	Metric string `json:"metric"`
	Key    string `json:"key"`
	Value  string `json:"value,omitempty"`
}

// API wires the admin RPCs against a StorageBackend.
type API struct {
	Backend storage.Backend
}

// MountRoutes registers getMetadata/setMetadata under /api.
func (a *API) MountRoutes(r *mux.Router) {
	sub := r.PathPrefix("/api").Subrouter()
	sub.StrictSlash(true)

	sub.HandleFunc("/metrics/{metric}/metadata/{key}", a.getMetadata).Methods(http.MethodGet)
	sub.HandleFunc("/metrics/{metric}/metadata/{key}", a.setMetadata).Methods(http.MethodPost, http.MethodPut)
}

// NewServer wraps a mux.Router with the logging middleware the teacher
// uses for its REST surface.
func (a *API) NewServer() http.Handler {
	r := mux.NewRouter()
	a.MountRoutes(r)
	return handlers.CombinedLoggingHandler(logWriter{}, r)
}

// logWriter adapts cclog as an io.Writer for CombinedLoggingHandler.
type logWriter struct{}

func (logWriter) Write(p []byte) (int, error) {
	cclog.Debugf("[ADMINAPI]> %s", string(p))
	return len(p), nil
}

func (a *API) getMetadata(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	metric, key := vars["metric"], vars["key"]

	if key != "aggregationMethod" {
		writeJSON(w, http.StatusBadRequest, errorRecord{Error: "unsupported metadata key: " + key})
		return
	}

	info, err := a.Backend.Info(metric)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, errorRecord{Error: err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, metadataResponse{Metric: metric, Key: key, Value: info.AggregationMethod.String()})
}

func (a *API) setMetadata(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	metric, key := vars["metric"], vars["key"]

	if key != "aggregationMethod" {
		writeJSON(w, http.StatusBadRequest, errorRecord{Error: "unsupported metadata key: " + key})
		return
	}

	var body struct {
		Value string `json:"value"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeJSON(w, http.StatusBadRequest, errorRecord{Error: err.Error()})
		return
	}

	method, ok := schemaregistry.ParseAggregationMethod(body.Value)
	if !ok {
		writeJSON(w, http.StatusBadRequest, errorRecord{Error: "unknown aggregationMethod: " + body.Value})
		return
	}

	prev, err := a.Backend.SetAggregationMethod(metric, method)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, errorRecord{Error: err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, metadataResponse{Metric: metric, Key: key, Value: prev.String()})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		cclog.Errorf("[ADMINAPI]> encode response: %s", err.Error())
	}
}
