// Copyright (C) NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.
package leaderapi

import (
	"fmt"
	"strings"
)

const reservedExperimentConstant = "current"

// validateExperimentName enforces the entity-boundary rules: proposed
// names are rejected if empty, too long, the reserved word "current", a
// reserved testing prefix, or containing any of the topic/path-sensitive
// characters "# + $ / % \".
func validateExperimentName(name string) error {
	switch {
	case name == "":
		return fmt.Errorf("experiment name cannot be empty")
	case len(name) >= 200:
		return fmt.Errorf("experiment name must be under 200 characters")
	case name == reservedExperimentConstant:
		return fmt.Errorf("experiment name %q is reserved", reservedExperimentConstant)
	case strings.HasPrefix(name, "_testing_"):
		return fmt.Errorf("experiment name cannot start with _testing_")
	case strings.ContainsAny(name, "#+$/%\\"):
		return fmt.Errorf(`experiment name cannot contain any of "# + $ / % \"`)
	}
	return nil
}
