package form

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"sort"
	"strings"
	"sync"
	"time"
	"unicode"

	"github.com/go-playground/validator/v10"

	"github.com/menta2k/avatar-cropper/pkg/client"
	"github.com/menta2k/avatar-cropper/pkg/types"
)

const dateLayout = "2006-01-02"

var phonePattern = regexp.MustCompile(`^[0-9]{10}$`)

// FieldErrors maps form field names to user-facing messages
type FieldErrors map[string]string

func (e FieldErrors) Error() string {
	fields := make([]string, 0, len(e))
	for f := range e {
		fields = append(fields, f)
	}
	sort.Strings(fields)

	parts := make([]string, 0, len(fields))
	for _, f := range fields {
		parts = append(parts, f+": "+e[f])
	}
	return "form: " + strings.Join(parts, "; ")
}

// RegistrationForm is the sign-up form
type RegistrationForm struct {
	Name            string `json:"name" validate:"min=5,max=50"`
	Email           string `json:"email" validate:"required,email,domain"`
	Phone           string `json:"phone" validate:"phone"`
	DateOfBirth     string `json:"dateOfBirth" validate:"required,datetime=2006-01-02,past"`
	Gender          string `json:"gender" validate:"oneof=Male Female Other"`
	UserType        string `json:"userType" validate:"oneof=Student Faculty Staff"`
	RollNo          string `json:"rollNo" validate:"required_if=UserType Student"`
	Section         string `json:"section" validate:"required_if=UserType Student"`
	Hostel          string `json:"hostel" validate:"required_if=UserType Student"`
	Block           string `json:"block" validate:"required_if=UserType Student"`
	RoomNo          string `json:"roomNo" validate:"required_if=UserType Student"`
	Password        string `json:"password" validate:"min=6,password"`
	ConfirmPassword string `json:"confirmPassword" validate:"min=6,eqfield=Password"`

	// EmailDomain restricts sign-ups to one institution, e.g. "@example.ac.in"
	EmailDomain string `json:"-" validate:"-"`

	Avatar *AvatarField `json:"-" validate:"-"`

	client client.AccountClient
	now    func() time.Time
}

// NewRegistrationForm creates an empty form submitting to c
func NewRegistrationForm(c client.AccountClient, avatar *AvatarField) *RegistrationForm {
	return &RegistrationForm{
		Avatar: avatar,
		client: c,
		now:    time.Now,
	}
}

var messages = map[string]string{
	"Name.min":                "Name must be at least 5 characters long",
	"Name.max":                "Name too long",
	"Email.required":          "Email is required",
	"Email.email":             "Invalid email address",
	"Phone.phone":             "Phone number must be exactly 10 digits",
	"DateOfBirth.required":    "Date of Birth is required",
	"DateOfBirth.datetime":    "Invalid date",
	"DateOfBirth.past":        "Date of Birth cannot be in the future",
	"Gender.oneof":            "Please select a gender",
	"UserType.oneof":          "Please select a user type",
	"RollNo.required_if":      "Roll Number is required for students",
	"Section.required_if":     "Section is required for students",
	"Hostel.required_if":      "Hostel is required for students",
	"Block.required_if":       "Block is required for students",
	"RoomNo.required_if":      "Room Number is required for students",
	"Password.min":            "Password must be at least 6 characters",
	"Password.password":       "Password must include uppercase, lowercase, number, and special character",
	"ConfirmPassword.min":     "Please confirm your password",
	"ConfirmPassword.eqfield": "Passwords don't match",
}

// formValidator is shared by every RegistrationForm. Rules that depend on
// the form (domain, past) read it back through FieldLevel.Top.
var formValidator = sync.OnceValues(newValidator)

func newValidator() (*validator.Validate, error) {
	v := validator.New(validator.WithRequiredStructEnabled())

	rules := map[string]validator.Func{
		"phone": func(fl validator.FieldLevel) bool {
			return phonePattern.MatchString(fl.Field().String())
		},
		"password": func(fl validator.FieldLevel) bool {
			return strongPassword(fl.Field().String())
		},
		"domain": func(fl validator.FieldLevel) bool {
			f, ok := fl.Top().Interface().(*RegistrationForm)
			return ok && (f.EmailDomain == "" || strings.HasSuffix(fl.Field().String(), f.EmailDomain))
		},
		"past": func(fl validator.FieldLevel) bool {
			f, ok := fl.Top().Interface().(*RegistrationForm)
			if !ok {
				return false
			}
			t, err := time.Parse(dateLayout, fl.Field().String())
			return err == nil && !t.After(f.clock())
		},
	}
	for tag, fn := range rules {
		if err := v.RegisterValidation(tag, fn); err != nil {
			return nil, fmt.Errorf("register %q rule: %w", tag, err)
		}
	}
	return v, nil
}

func (f *RegistrationForm) clock() time.Time {
	if f.now == nil {
		return time.Now()
	}
	return f.now()
}

// Validate checks every field. Text fields are trimmed first.
func (f *RegistrationForm) Validate() error {
	f.trim()

	v, err := formValidator()
	if err != nil {
		return err
	}

	err = v.Struct(f)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}

	out := FieldErrors{}
	for _, fe := range verrs {
		name := jsonName(fe.StructField())
		if _, seen := out[name]; seen {
			continue
		}
		msg, ok := messages[fe.StructField()+"."+fe.Tag()]
		switch {
		case fe.Tag() == "domain":
			msg = "Email must end with " + f.EmailDomain
		case !ok:
			msg = fmt.Sprintf("%s is invalid", name)
		}
		out[name] = msg
	}
	return out
}

// Request builds the backend payload, avatar included
func (f *RegistrationForm) Request() types.RegisterRequest {
	req := types.RegisterRequest{
		Name:            f.Name,
		Email:           f.Email,
		Phone:           f.Phone,
		DateOfBirth:     f.DateOfBirth,
		Gender:          f.Gender,
		UserType:        f.UserType,
		RollNo:          f.RollNo,
		Section:         f.Section,
		Hostel:          f.Hostel,
		Block:           f.Block,
		RoomNo:          f.RoomNo,
		Password:        f.Password,
		ConfirmPassword: f.ConfirmPassword,
	}
	if f.Avatar != nil {
		req.ProfilePic = f.Avatar.Value()
	}
	return req
}

// Submit validates the form and registers the account
func (f *RegistrationForm) Submit(ctx context.Context) (*types.User, error) {
	if err := f.Validate(); err != nil {
		return nil, err
	}
	user, err := f.client.Register(ctx, f.Request())
	if err != nil {
		return nil, fmt.Errorf("registration failed: %w", err)
	}
	return user, nil
}

func (f *RegistrationForm) trim() {
	for _, s := range []*string{
		&f.Name, &f.Email, &f.Phone, &f.DateOfBirth,
		&f.RollNo, &f.Section, &f.Hostel, &f.Block, &f.RoomNo,
	} {
		*s = strings.TrimSpace(*s)
	}
}

func strongPassword(s string) bool {
	var lower, upper, digit, special bool
	for _, r := range s {
		switch {
		case unicode.IsLower(r):
			lower = true
		case unicode.IsUpper(r):
			upper = true
		case unicode.IsDigit(r):
			digit = true
		case !unicode.IsLetter(r):
			special = true
		}
	}
	return lower && upper && digit && special
}

// jsonName converts a struct field name into its form field name
func jsonName(field string) string {
	if field == "" {
		return field
	}
	return strings.ToLower(field[:1]) + field[1:]
}
