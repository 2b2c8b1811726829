package middleware

import (
	"testing"

	"github.com/clerk/clerk-sdk-go/v2"
	"github.com/stretchr/testify/assert"
)

func TestPrimaryEmail(t *testing.T) {
	primaryID := "idn_primary"

	tests := []struct {
		name string
		user *clerk.User
		want string
	}{
		{
			name: "nil user",
			user: nil,
			want: "",
		},
		{
			name: "no primary email designated",
			user: &clerk.User{
				EmailAddresses: []*clerk.EmailAddress{
					{ID: "idn_other", EmailAddress: "other@example.com"},
				},
			},
			want: "",
		},
		{
			name: "primary email resolved among several",
			user: &clerk.User{
				PrimaryEmailAddressID: &primaryID,
				EmailAddresses: []*clerk.EmailAddress{
					{ID: "idn_other", EmailAddress: "other@example.com"},
					{ID: "idn_primary", EmailAddress: "primary@example.com"},
				},
			},
			want: "primary@example.com",
		},
		{
			name: "primary ID points at a removed address",
			user: &clerk.User{
				PrimaryEmailAddressID: &primaryID,
				EmailAddresses: []*clerk.EmailAddress{
					{ID: "idn_other", EmailAddress: "other@example.com"},
				},
			},
			want: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, primaryEmail(tt.user))
		})
	}
}
