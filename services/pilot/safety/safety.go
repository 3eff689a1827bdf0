// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package safety holds the pattern database for unsafe queries and
// actions. Both risk scoring and blocker detection consult it, so a
// match always surfaces through at least one escalation path.
package safety

import "regexp"

// Rule is one named unsafe pattern.
type Rule struct {
	// Name identifies the rule in evidence strings.
	Name string

	// Pattern is the compiled detection regex.
	Pattern *regexp.Regexp

	// Description explains what the rule guards against.
	Description string
}

// Match reports which rule fired and on what text.
type Match struct {
	// Rule is the name of the rule that fired.
	Rule string

	// Text is the scanned text that matched.
	Text string

	// Description is the rule description.
	Description string
}

var rules = []Rule{
	{
		Name:        "destructive_credential_target",
		Pattern:     regexp.MustCompile(`(?i)\b(delete|drop|remove|destroy|wipe|erase)\b.*\b(admin|password|credential|database|account|user|system)`),
		Description: "destructive verb aimed at credentials or system data",
	},
	{
		Name:        "privileged_secret_access",
		Pattern:     regexp.MustCompile(`(?i)\b(admin|root)\b.*\b(password|credential|token|key)`),
		Description: "access to privileged secrets",
	},
	{
		Name:        "recursive_delete",
		Pattern:     regexp.MustCompile(`(?i)\brm\s+-rf\b`),
		Description: "recursive filesystem deletion",
	},
	{
		Name:        "privileged_shell",
		Pattern:     regexp.MustCompile(`(?i)\b(sudo|chmod\s+777|format\s+disk)\b`),
		Description: "privileged or destructive shell operation",
	},
	{
		Name:        "security_bypass",
		Pattern:     regexp.MustCompile(`(?i)\b(disable|bypass)\b.*\b(security|auth|firewall|safety)`),
		Description: "disabling a security control",
	},
	{
		Name:        "data_exfiltration",
		Pattern:     regexp.MustCompile(`(?i)\b(exfiltrate|leak)\b.*\b(data|secret)`),
		Description: "moving data or secrets out of bounds",
	},
}

// Rules returns a copy of the pattern database.
func Rules() []Rule {
	return append([]Rule(nil), rules...)
}

// Scan returns the first rule matching the text, or nil.
func Scan(text string) *Match {
	for _, r := range rules {
		if r.Pattern.MatchString(text) {
			return &Match{Rule: r.Name, Text: text, Description: r.Description}
		}
	}
	return nil
}

// ScanAll scans each text in order and returns the first match, or nil.
func ScanAll(texts ...string) *Match {
	for _, t := range texts {
		if m := Scan(t); m != nil {
			return m
		}
	}
	return nil
}
