package form

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/menta2k/avatar-cropper/pkg/client"
	"github.com/menta2k/avatar-cropper/pkg/types"
)

// ErrNotEditing is returned by Save outside of an edit session
var ErrNotEditing = errors.New("form: profile is not being edited")

// ProfileForm is the dashboard profile card. Phone, hostel, block, room and
// picture are editable; an edit session is either saved or cancelled.
type ProfileForm struct {
	Phone  string
	Hostel string
	Block  string
	RoomNo string

	Avatar *AvatarField

	saved   types.User
	editing bool
	client  client.AccountClient
}

// NewProfileForm creates the form for user
func NewProfileForm(c client.AccountClient, user types.User, avatar *AvatarField) *ProfileForm {
	f := &ProfileForm{
		Avatar: avatar,
		saved:  user,
		client: c,
	}
	f.restore()
	return f
}

// User returns the last saved profile
func (f *ProfileForm) User() types.User {
	return f.saved
}

// Editing reports whether an edit session is open
func (f *ProfileForm) Editing() bool {
	return f.editing
}

// BeginEdit opens an edit session over the saved values
func (f *ProfileForm) BeginEdit() {
	if f.editing {
		return
	}
	f.restore()
	f.editing = true
}

// CancelEdit drops the edits, restoring the saved values and picture
func (f *ProfileForm) CancelEdit() {
	f.restore()
	f.editing = false
}

// Validate checks the editable fields
func (f *ProfileForm) Validate() error {
	f.Phone = strings.TrimSpace(f.Phone)
	if f.Phone != "" && !phonePattern.MatchString(f.Phone) {
		return FieldErrors{"phone": messages["Phone.phone"]}
	}
	return nil
}

// Update builds the backend payload. The picture is only sent when it changed.
func (f *ProfileForm) Update() types.ProfileUpdate {
	u := types.ProfileUpdate{
		Phone:  f.Phone,
		Hostel: strings.TrimSpace(f.Hostel),
		Block:  strings.TrimSpace(f.Block),
		RoomNo: strings.TrimSpace(f.RoomNo),
	}
	if f.Avatar != nil {
		if pic := f.Avatar.Value(); pic != f.saved.ProfilePhotoURL {
			u.ProfilePic = &pic
		}
	}
	return u
}

// Save sends the edits and, on success, makes them the saved values
func (f *ProfileForm) Save(ctx context.Context) (*types.User, error) {
	if !f.editing {
		return nil, ErrNotEditing
	}
	if err := f.Validate(); err != nil {
		return nil, err
	}

	u := f.Update()
	if _, err := f.client.UpdateProfile(ctx, u); err != nil {
		return nil, fmt.Errorf("failed to save profile: %w", err)
	}

	f.saved.Phone = u.Phone
	f.saved.Hostel = u.Hostel
	f.saved.Block = u.Block
	f.saved.RoomNo = u.RoomNo
	if u.ProfilePic != nil {
		f.saved.ProfilePhotoURL = *u.ProfilePic
	}
	f.editing = false

	saved := f.saved
	return &saved, nil
}

func (f *ProfileForm) restore() {
	f.Phone = f.saved.Phone
	f.Hostel = f.saved.Hostel
	f.Block = f.saved.Block
	f.RoomNo = f.saved.RoomNo
	if f.Avatar != nil {
		f.Avatar.Remove()
		f.Avatar.SetValue(f.saved.ProfilePhotoURL)
	}
}
