package users

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/platinummonkey/parley/pkg/auth"
)

// Password length bounds; the upper bound is bcrypt's input limit in bytes
const (
	MinPasswordLength = 8
	MaxPasswordBytes  = auth.MaxPasswordBytes
)

// NewUser is the input to Create
type NewUser struct {
	Username string    `validate:"required,min=3,max=50"`
	Email    string    `validate:"required,max=100,email"`
	Phone    string    `validate:"omitempty,max=15"`
	Password string    `validate:"required,min=8"`
	Role     auth.Role `validate:"-"`
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// normalize trims identity fields, lower-cases the email and defaults the role
func (n NewUser) normalize() NewUser {
	n.Username = strings.TrimSpace(n.Username)
	n.Email = strings.ToLower(strings.TrimSpace(n.Email))
	n.Phone = strings.TrimSpace(n.Phone)
	if n.Role == "" {
		n.Role = auth.RoleMember
	}
	return n
}

// Validate normalizes n and checks it, returning auth.ErrInvalidInput on failure
func (n NewUser) Validate() (NewUser, error) {
	n = n.normalize()

	if err := validate.Struct(n); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			return n, auth.InvalidInputf("%s", describe(verrs[0]))
		}
		return n, auth.InvalidInputf("%v", err)
	}
	if len(n.Password) > MaxPasswordBytes {
		return n, auth.InvalidInputf("password must be at most %d bytes", MaxPasswordBytes)
	}
	if strings.Contains(n.Username, "@") {
		return n, auth.InvalidInputf("username must not contain @")
	}
	if !n.Role.Valid() {
		return n, auth.InvalidInputf("unknown role %q", n.Role)
	}
	return n, nil
}

func describe(fe validator.FieldError) string {
	field := strings.ToLower(fe.Field())
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", field)
	case "min":
		return fmt.Sprintf("%s must be at least %s characters", field, fe.Param())
	case "max":
		return fmt.Sprintf("%s must be at most %s characters", field, fe.Param())
	case "email":
		return "email is not a valid address"
	default:
		return fmt.Sprintf("%s is invalid", field)
	}
}
