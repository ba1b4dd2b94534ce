package domain

import "time"

// User is the profile record kept by the document store collaborator. Primary
// authentication happens at an external identity exchange; this service only
// needs enough of the record to answer "does this subject still exist" during
// validation and to serve the profile endpoint.
type User struct {
	ID            string    `json:"user_id"`
	Username      string    `json:"username"`
	Email         string    `json:"email"`
	PreferredName string    `json:"preferred_name,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// PendingRegistration is the attribute set parked in the registration
// exchange slot while the verification link is outstanding.
type PendingRegistration struct {
	Username      string
	Email         string
	PreferredName string
}

// Payload flattens the registration into the exchange store's map form.
func (p PendingRegistration) Payload() map[string]string {
	return map[string]string{
		"username":       p.Username,
		"email":          p.Email,
		"preferred_name": p.PreferredName,
	}
}

// PendingRegistrationFromPayload is the inverse of Payload.
func PendingRegistrationFromPayload(m map[string]string) PendingRegistration {
	return PendingRegistration{
		Username:      m["username"],
		Email:         m["email"],
		PreferredName: m["preferred_name"],
	}
}
