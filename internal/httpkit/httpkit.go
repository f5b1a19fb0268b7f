// Copyright (C) NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package httpkit is the small set of JSON request/response helpers
// shared by LeaderAPI and UnitAPI: a uniform error envelope, a strict
// decoder that rejects unknown fields, and a success-body writer.
package httpkit

import (
	"encoding/json"
	"io"
	"net/http"

	"github.com/pioreactor/pioreactorui-leader/pkg/log"
)

// ErrorResponse is the uniform JSON body for non-2xx responses.
type ErrorResponse struct {
	Msg   string `json:"msg,omitempty"`
	Error string `json:"error,omitempty"`
}

// WriteError logs err and writes statusCode with a {msg|error} body.
func WriteError(rw http.ResponseWriter, statusCode int, err error) {
	log.Warnf("api: %s", err.Error())
	rw.Header().Set("Content-Type", "application/json")
	rw.WriteHeader(statusCode)
	_ = json.NewEncoder(rw).Encode(ErrorResponse{Msg: err.Error(), Error: err.Error()})
}

// WriteJSON writes statusCode with val encoded as the JSON body.
func WriteJSON(rw http.ResponseWriter, statusCode int, val any) {
	rw.Header().Set("Content-Type", "application/json")
	rw.WriteHeader(statusCode)
	if val != nil {
		_ = json.NewEncoder(rw).Encode(val)
	}
}

// Decode strictly decodes r's JSON body into val, rejecting unknown
// fields per the "reject unknown fields" design note.
func Decode(r io.Reader, val any) error {
	dec := json.NewDecoder(r)
	dec.DisallowUnknownFields()
	return dec.Decode(val)
}
