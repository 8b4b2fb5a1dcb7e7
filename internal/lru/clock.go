// Copyright 2026 LeIndex Project Contributors
//
// SPDX-License-Identifier: AGPL-3.0-or-later

package lru

import "time"

func nowNanos() int64 { return time.Now().UnixNano() }
