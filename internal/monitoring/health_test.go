// Copyright 2026 LeIndex Project Contributors
//
// SPDX-License-Identifier: AGPL-3.0-or-later

package monitoring

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRunHealthChecksAllOK(t *testing.T) {
	report := RunHealthChecks(
		func() ComponentHealth { return ComponentHealth{Component: "a", Status: HealthOK} },
		func() ComponentHealth { return ComponentHealth{Component: "b", Status: HealthOK} },
	)
	require.Equal(t, HealthOK, report.Overall)
	require.Len(t, report.Components, 2)
}

func TestRunHealthChecksDownWins(t *testing.T) {
	report := RunHealthChecks(
		func() ComponentHealth { return ComponentHealth{Component: "a", Status: HealthDegraded} },
		func() ComponentHealth { return ComponentHealth{Component: "b", Status: HealthDown} },
	)
	require.Equal(t, HealthDown, report.Overall)
}

func TestRunHealthChecksDegradedWhenNoneDown(t *testing.T) {
	report := RunHealthChecks(
		func() ComponentHealth { return ComponentHealth{Component: "a", Status: HealthOK} },
		func() ComponentHealth { return ComponentHealth{Component: "b", Status: HealthDegraded} },
	)
	require.Equal(t, HealthDegraded, report.Overall)
}
