package domain

import "time"

// OtpRecord is a short-lived verification code for a phone number. At most
// one valid record exists per number; issuance deletes all prior records.
type OtpRecord struct {
	Number    string    `bson:"number"`
	Code      string    `bson:"otp"`
	CreatedAt time.Time `bson:"created_at"`
}

// Age returns how old the record is relative to now.
func (r OtpRecord) Age(now time.Time) time.Duration {
	return now.Sub(r.CreatedAt)
}
