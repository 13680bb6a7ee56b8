// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

// Package ledger registers published articles as IP assets on an EVM chain.
// A Registrar mints an ownership token for the metadata document and
// attaches license terms to it. The signing key is held either by the
// service or by the end user, selected at configuration time.
package ledger

import (
	"context"
	"errors"
	"fmt"
)

// Mode selects who signs registration transactions.
type Mode string

const (
	// ModeService signs with a key held by the server.
	ModeService Mode = "service"
	// ModeUser leaves signing to the author's own wallet.
	ModeUser Mode = "user"
)

// Valid reports whether m is a known mode.
func (m Mode) Valid() bool {
	return m == ModeService || m == ModeUser
}

var (
	// ErrRequiresUserSignature is returned by registrars that cannot sign on
	// the server. The author's client is expected to register instead.
	ErrRequiresUserSignature = errors.New("registration must be signed by the author")
	// ErrPending means a submitted transaction has not been mined yet.
	ErrPending = errors.New("transaction pending")
	// ErrReverted means the transaction was mined but failed. Nothing was
	// minted, so the registration can be submitted again.
	ErrReverted = errors.New("transaction reverted")
	// ErrWrongNetwork means the RPC endpoint serves a different chain.
	ErrWrongNetwork = errors.New("connected to the wrong network")
)

// OutcomeUnknownError reports a transaction that was submitted but whose
// result could not be observed in time. It must be reconciled, never
// resubmitted, since ledger transactions cannot be revoked.
type OutcomeUnknownError struct {
	TxHash string
	Err    error
}

func (e *OutcomeUnknownError) Error() string {
	return fmt.Sprintf("outcome of transaction %s unknown: %v", e.TxHash, e.Err)
}

func (e *OutcomeUnknownError) Unwrap() error { return e.Err }

// IsOutcomeUnknown reports whether err carries an OutcomeUnknownError and
// returns its transaction hash.
func IsOutcomeUnknown(err error) (string, bool) {
	var unknown *OutcomeUnknownError
	if errors.As(err, &unknown) {
		return unknown.TxHash, true
	}
	return "", false
}

// Request describes one registration.
type Request struct {
	// MetadataURI points at the uploaded metadata document (ipfs://...).
	MetadataURI string
	// Digest is the SHA-256 of the canonical metadata document.
	Digest [32]byte
	// Title names the asset in logs.
	Title string
	// OnSubmitted, if set, is called with the transaction hash as soon as
	// the mint transaction is accepted by the node.
	OnSubmitted func(txHash string)
}

// Result holds the identifiers of a completed registration.
type Result struct {
	AssetID        string
	TokenID        string
	LicenseTermsID string
	TxHash         string
	ChainID        int64
}

// Registrar submits a registration and waits for its outcome.
type Registrar interface {
	// Name identifies the variant ("service" or "user").
	Name() string
	// Register mints the asset and attaches license terms.
	Register(ctx context.Context, req Request) (*Result, error)
}

// Reconciler resolves a previously submitted transaction without
// submitting a new mint.
type Reconciler interface {
	Reconcile(ctx context.Context, txHash string) (*Result, error)
}

// LicenseTerms describes the license attached to every registered article.
type LicenseTerms struct {
	ID                    string `json:"id"`
	Name                  string `json:"name"`
	URI                   string `json:"uri,omitempty"`
	CommercialUse         bool   `json:"commercial_use"`
	DerivativesAllowed    bool   `json:"derivatives_allowed"`
	DerivativesReciprocal bool   `json:"derivatives_reciprocal"`
	AttributionRequired   bool   `json:"attribution_required"`
}

// NonCommercialSocialRemix returns the terms used for articles: attribution
// required, no commercial use, derivatives allowed under the same license.
func NonCommercialSocialRemix(id, uri string) LicenseTerms {
	return LicenseTerms{
		ID:                    id,
		Name:                  "Non-Commercial Social Remixing",
		URI:                   uri,
		CommercialUse:         false,
		DerivativesAllowed:    true,
		DerivativesReciprocal: true,
		AttributionRequired:   true,
	}
}

// UserSigned is the registrar used when authors sign with their own wallet.
// The server never holds their key, so Register always defers to the client.
type UserSigned struct{}

// Name returns "user".
func (UserSigned) Name() string { return string(ModeUser) }

// Register always returns ErrRequiresUserSignature.
func (UserSigned) Register(context.Context, Request) (*Result, error) {
	return nil, ErrRequiresUserSignature
}
