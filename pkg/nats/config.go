// Copyright (C) NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.
package nats

// NatsConfig holds the connection parameters internal/bus passes to
// NewClient. Username/Password are optional; an empty Address means the
// cluster is running without a broker and NewClient is never called.
type NatsConfig struct {
	Address  string `json:"address"`
	Username string `json:"username"`
	Password string `json:"password"`
}
