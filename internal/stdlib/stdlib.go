// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (c) 2023-2026 Nicholas R. Perez

// Package stdlib holds the prelude of global procedures loaded into every
// request unless disabled.
package stdlib

import _ "embed"

//go:embed prelude.tagx
var Prelude string
