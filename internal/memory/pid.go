// Copyright 2026 LeIndex Project Contributors
//
// SPDX-License-Identifier: AGPL-3.0-or-later

package memory

import "os"

func currentPID() int { return os.Getpid() }
