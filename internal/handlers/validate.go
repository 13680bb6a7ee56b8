package handlers

import (
	"net/mail"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/ethereum/go-ethereum/common"
)

// Validation limits for article and profile fields.
const (
	maxTitleLen   = 300
	maxBodyLen    = 100_000
	maxExcerptLen = 1_000
	maxURLLen     = 2_048
	maxNameLen    = 100
	maxEmailLen   = 254
	maxHashLen    = 128
)

var (
	txHashPattern  = regexp.MustCompile(`^0x[0-9a-fA-F]{64}$`)
	decimalPattern = regexp.MustCompile(`^[0-9]{1,78}$`)
)

// validateArticle checks article inputs and returns the first error found.
// Nil pointers are fields the request leaves untouched.
func validateArticle(title, body, excerpt, cover *string) string {
	if title != nil && utf8.RuneCountInString(strings.TrimSpace(*title)) > maxTitleLen {
		return "Title is too long (max 300 characters)."
	}
	if body != nil && utf8.RuneCountInString(*body) > maxBodyLen {
		return "Content is too long (max 100,000 characters)."
	}
	if excerpt != nil && utf8.RuneCountInString(*excerpt) > maxExcerptLen {
		return "Excerpt is too long (max 1,000 characters)."
	}
	if cover != nil && len(*cover) > maxURLLen {
		return "Cover image URL is too long."
	}
	return ""
}

// validateProfile checks profile fields. When partial is false every field
// is required.
func validateProfile(firstName, surname, email *string, partial bool) string {
	required := []struct {
		label string
		value *string
	}{
		{"First name", firstName},
		{"Surname", surname},
		{"Email", email},
	}
	for _, f := range required {
		if f.value == nil {
			if !partial {
				return f.label + " is required."
			}
			continue
		}
		if strings.TrimSpace(*f.value) == "" {
			return f.label + " is required."
		}
	}

	if firstName != nil && utf8.RuneCountInString(*firstName) > maxNameLen {
		return "First name is too long (max 100 characters)."
	}
	if surname != nil && utf8.RuneCountInString(*surname) > maxNameLen {
		return "Surname is too long (max 100 characters)."
	}
	if email != nil {
		e := strings.TrimSpace(*email)
		if len(e) > maxEmailLen {
			return "Email is too long."
		}
		addr, err := mail.ParseAddress(e)
		if err != nil || addr.Address != e {
			return "Email is not a valid address."
		}
	}
	return ""
}

// validateWallet checks an EVM account address.
func validateWallet(address string) string {
	if !common.IsHexAddress(strings.TrimSpace(address)) {
		return "Wallet address must be a 0x-prefixed 20-byte hex address."
	}
	return ""
}

// validateRegistration checks the formats of ledger identifiers reported
// by an author. Presence is checked by the service.
func validateRegistration(contentHash, assetID, tokenID, termsID, txHash string) string {
	if len(contentHash) > maxHashLen || strings.ContainsAny(contentHash, " /?#") {
		return "Content hash is malformed."
	}
	if assetID != "" && !common.IsHexAddress(assetID) {
		return "Ledger asset id must be a 0x-prefixed address."
	}
	if tokenID != "" && !decimalPattern.MatchString(tokenID) {
		return "Ledger token id must be a decimal number."
	}
	if termsID != "" && !decimalPattern.MatchString(termsID) {
		return "License terms id must be a decimal number."
	}
	if txHash != "" && !txHashPattern.MatchString(txHash) {
		return "Transaction hash must be a 0x-prefixed 32-byte hex string."
	}
	return ""
}
