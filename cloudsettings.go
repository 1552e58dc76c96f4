// Copyright 2024 Nick White.
// Use of this source code is governed by the GPLv3
// license that can be found in the LICENSE file.

package contextfeat

// This file contains various cloud account specific stuff; change this if
// you want to use the cloud functionality on your own site.

// Queue names
const (
	queueFeature = "rescribecontext"
	queueReport  = "rescribecontextreport"
)

// Storage bucket names
const (
	storageWip = "rescribecontextwip"
)
