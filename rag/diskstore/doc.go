// Copyright 2026 Cortex Authors. All rights reserved.
// Use of this source code is governed by the project license.

// Package diskstore persists graph and sparse index collections as JSON
// files under <root>/graph/<owner>/graph.json and <root>/sparse/<owner>/index.json.
package diskstore
