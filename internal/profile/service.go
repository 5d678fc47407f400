package profile

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/redmonkez12/fmea-api/internal/auth"
	"github.com/redmonkez12/fmea-api/internal/logging"
	"github.com/redmonkez12/fmea-api/internal/storage"
	"github.com/redmonkez12/fmea-api/internal/user"
)

var ErrNotFound = errors.New("user not found")

// Store reads and updates profile fields
type Store interface {
	GetByID(ctx context.Context, id uuid.UUID) (*user.User, error)
	UpdateProfile(ctx context.Context, id uuid.UUID, p user.ProfileUpdate) (*user.User, error)
}

// Avatars resolves avatar references and removes replaced images
type Avatars interface {
	ResolveAvatar(ctx context.Context, ownerID uuid.UUID, ref string) (*user.Avatar, error)
	DeleteAvatar(ctx context.Context, avatar *user.Avatar) error
}

// UpdateRequest is the body of PUT /profile. Omitted fields are left unchanged;
// an empty avatar removes the current one.
type UpdateRequest struct {
	Name    *string `json:"name,omitempty" example:"Alice"`
	Phone   *string `json:"phone,omitempty"`
	Address *string `json:"address,omitempty"`
	Avatar  *string `json:"avatar,omitempty" example:"upload-3f1c.png"`
}

func (r UpdateRequest) validate() (user.ProfileUpdate, error) {
	var p user.ProfileUpdate

	if r.Name != nil {
		name := strings.TrimSpace(*r.Name)
		if name == "" {
			return p, &auth.ValidationError{Field: "name", Message: "name cannot be empty"}
		}
		if utf8.RuneCountInString(name) > user.MaxNameLen {
			return p, &auth.ValidationError{Field: "name", Message: fmt.Sprintf("name must be at most %d characters", user.MaxNameLen)}
		}
		p.Name = &name
	}

	if r.Phone != nil {
		phone := strings.TrimSpace(*r.Phone)
		if len(phone) > user.MaxPhoneLen {
			return p, &auth.ValidationError{Field: "phone", Message: fmt.Sprintf("phone must be at most %d characters", user.MaxPhoneLen)}
		}
		p.Phone = &phone
	}

	if r.Address != nil {
		address := strings.TrimSpace(*r.Address)
		if utf8.RuneCountInString(address) > user.MaxAddressLen {
			return p, &auth.ValidationError{Field: "address", Message: fmt.Sprintf("address must be at most %d characters", user.MaxAddressLen)}
		}
		p.Address = &address
	}

	return p, nil
}

// Service manages the signed-in user's profile
type Service struct {
	store   Store
	avatars Avatars
	logger  *logging.Logger
}

func NewService(store Store, avatars Avatars, logger *logging.Logger) *Service {
	return &Service{store: store, avatars: avatars, logger: logger}
}

func (s *Service) Get(ctx context.Context, userID uuid.UUID) (*user.User, error) {
	u, err := s.store.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, user.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return u, nil
}

// Update applies req. A new avatar is stored before the row is written; the
// previous image is deleted afterwards on a best-effort basis.
func (s *Service) Update(ctx context.Context, userID uuid.UUID, req UpdateRequest) (*user.User, error) {
	update, err := req.validate()
	if err != nil {
		return nil, err
	}

	current, err := s.Get(ctx, userID)
	if err != nil {
		return nil, err
	}

	if req.Avatar != nil {
		ref := strings.TrimSpace(*req.Avatar)
		if ref == "" {
			update.Avatar = &user.Avatar{}
		} else if ref != current.AvatarURL() {
			avatar, err := s.avatars.ResolveAvatar(ctx, userID, ref)
			if err != nil {
				if errors.Is(err, storage.ErrInvalidAvatar) {
					return nil, &auth.ValidationError{Field: "avatar", Message: err.Error()}
				}
				return nil, fmt.Errorf("%w: store avatar: %v", auth.ErrUpstream, err)
			}
			update.Avatar = avatar
		}
	}

	updated, err := s.store.UpdateProfile(ctx, userID, update)
	if err != nil {
		if errors.Is(err, user.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to update profile: %w", err)
	}

	if update.Avatar != nil && current.Avatar != nil && current.Avatar.Key != "" {
		if err := s.avatars.DeleteAvatar(ctx, current.Avatar); err != nil {
			s.logger.Warn("failed to delete previous avatar", "user_id", userID, "key", current.Avatar.Key, "error", err)
		}
	}

	return updated, nil
}
