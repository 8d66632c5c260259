package domain

// System setting keys.
const (
	SettingReferralAwardCredits = "referral_award_credits"
)

// Referral code alphabet and length. Codes are uppercase alphanumerics, e.g. "ABCD1234".
const (
	ReferralCodeAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	ReferralCodeLength   = 8
)

// Websocket event types pushed to account feeds.
const (
	EventCreditAwarded = "CREDIT_AWARDED"
)
