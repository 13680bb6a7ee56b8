// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

package publish

import "proofpress/internal/models"

// State is a step of the publish workflow for one article.
type State string

const (
	StateDraft               State = "DRAFT"
	StatePublishRequested    State = "PUBLISH_REQUESTED"
	StateUploadPending       State = "UPLOAD_PENDING"
	StateUploadDone          State = "UPLOAD_DONE"
	StateUploadFailed        State = "UPLOAD_FAILED"
	StateRegistrationPending State = "REGISTRATION_PENDING"
	StateRegistered          State = "REGISTERED"
	StateRegistrationFailed  State = "REGISTRATION_FAILED"
	// StateRegistrationUnknown means a registration transaction was submitted
	// but its outcome has not been observed. The article keeps the
	// transaction hash so a later run reconciles it instead of minting again.
	StateRegistrationUnknown State = "REGISTRATION_UNKNOWN"
)

// Terminal reports whether a run stops in s without further automatic
// progress.
func (s State) Terminal() bool {
	switch s {
	case StateDraft, StateUploadFailed, StateRegistered, StateRegistrationFailed,
		StateRegistrationUnknown, StateRegistrationPending:
		return true
	}
	return false
}

// Failed reports whether s records a failed external step.
func (s State) Failed() bool {
	return s == StateUploadFailed || s == StateRegistrationFailed
}

// StateOf derives the workflow state recorded on an article. Failed steps
// leave no trace on the row, so an article whose upload failed reads as
// UPLOAD_PENDING until a run succeeds.
func StateOf(a *models.Article) State {
	switch {
	case !a.IsPublished():
		return StateDraft
	case a.IsRegistered():
		return StateRegistered
	case a.PendingTxHash != nil && *a.PendingTxHash != "":
		return StateRegistrationUnknown
	case a.HasContentHash():
		return StateRegistrationPending
	default:
		return StateUploadPending
	}
}
