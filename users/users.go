package users

import (
	"context"
	"fmt"

	"go.uber.org/fx"

	"github.com/tidepool-org/glucose-alerts/errors"
)

const CollectionName = "users"

var ErrNotFound = fmt.Errorf("user %w", errors.NotFound)

var Module = fx.Provide(
	NewRepository,
)

// User is the notification recipient profile of a patient.
type User struct {
	UserId   string  `bson:"userId" json:"userId"`
	Email    string  `bson:"email" json:"email"`
	FullName *string `bson:"fullName,omitempty" json:"fullName,omitempty"`
	// Timezone is an IANA zone name, empty when the user never configured one
	Timezone string `bson:"timezone,omitempty" json:"timezone,omitempty"`
}

//go:generate mockgen -source=./users.go -destination=./test/mock_users.go -package test

type Repository interface {
	Get(ctx context.Context, userId string) (*User, error)
}
