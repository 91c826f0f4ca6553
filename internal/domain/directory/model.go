package directory

import (
	"time"

	"github.com/google/uuid"
)

// Doctor links a practitioner to the auth user that signs in as them.
type Doctor struct {
	ID             uuid.UUID  `json:"id"`
	UserID         *uuid.UUID `json:"user_id,omitempty"`
	FullName       string     `json:"full_name"`
	Specialization string     `json:"specialization"`
	CreatedAt      time.Time  `json:"created_at"`
}

type Hospital struct {
	ID        uuid.UUID `json:"id"`
	Name      string    `json:"name"`
	Address   string    `json:"address"`
	CreatedAt time.Time `json:"created_at"`
}
