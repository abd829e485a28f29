package guardrail

// emergencyGuardrailKeywords is Tier 1/L1's bilingual emergency keyword
// set (spec.md S2/P8 require bilingual emergency detection; SPEC_FULL's
// supplemented-features section calls out that the spec only asserts the
// requirement, not the table). Deliberately broader than
// internal/supervisor's routing keywords since a guardrail false
// positive (redirect) is far cheaper than a missed emergency.
var emergencyGuardrailKeywords = []string{
	"chest pain", "crushing pain", "can't breathe", "cannot breathe",
	"difficulty breathing", "stroke", "can't speak", "face drooping",
	"anaphylaxis", "severe bleeding", "unconscious", "suicidal", "overdose",
	"heart attack", "seizure", "not breathing",

	"đau ngực", "khó thở", "không thở được", "đột quỵ", "bất tỉnh",
	"chảy máu nhiều", "ngất xỉu", "tự tử", "nhồi máu cơ tim", "co giật",
}

// piiPatternHints lists cheap PII-mention substrings. No check in this
// package reads it: L2 in advanced.go runs its regex panel without this
// pre-check, and Tier 1 and Tier 2 do not look for PII.
var piiPatternHints = []string{"@", "ssn", "social security", "số cmnd", "số căn cước"}
