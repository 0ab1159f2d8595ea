// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Tollgate Contributors

package contract

// Version is the version of the shared contract surface. Bundles state the
// range they support in their manifest.
const Version = "1.2.0"
