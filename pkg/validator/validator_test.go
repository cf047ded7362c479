package validator

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type blacklistRequest struct {
	IP            string  `validate:"required,ip_or_cidr"`
	DurationHours float64 `validate:"required,gt=0"`
}

func TestValidator_IPOrCIDR(t *testing.T) {
	v := New()

	tests := []struct {
		name    string
		req     blacklistRequest
		wantErr bool
		field   string
	}{
		{name: "valid ip", req: blacklistRequest{IP: "9.9.9.9", DurationHours: 1}, wantErr: false},
		{name: "valid cidr", req: blacklistRequest{IP: "10.0.0.0/8", DurationHours: 24}, wantErr: false},
		{name: "invalid ip", req: blacklistRequest{IP: "999.999.1.1", DurationHours: 1}, wantErr: true, field: "ip"},
		{name: "missing ip", req: blacklistRequest{DurationHours: 1}, wantErr: true, field: "ip"},
		{name: "zero duration", req: blacklistRequest{IP: "9.9.9.9"}, wantErr: true, field: "duration_hours"},
		{name: "negative duration", req: blacklistRequest{IP: "9.9.9.9", DurationHours: -2}, wantErr: true, field: "duration_hours"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := v.Validate(tt.req)
			if !tt.wantErr {
				assert.NoError(t, err)
				return
			}

			var verrs ValidationErrors
			require.ErrorAs(t, err, &verrs)
			found := false
			for _, e := range verrs {
				if e.Field == tt.field {
					found = true
				}
			}
			assert.True(t, found, "expected error on field %s, got %v", tt.field, verrs)
		})
	}
}

func TestToSnakeCase(t *testing.T) {
	assert.Equal(t, "duration_hours", toSnakeCase("DurationHours"))
	assert.Equal(t, "ip", toSnakeCase("IP"))
}
