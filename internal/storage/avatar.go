package storage

import (
	"context"
	"fmt"
	"net/url"

	"github.com/google/uuid"

	"github.com/redmonkez12/fmea-api/internal/logging"
	"github.com/redmonkez12/fmea-api/internal/user"
)

// Object is a stored file on the image host
type Object struct {
	Key string
	URL string
}

// ObjectStore is the external image host
type ObjectStore interface {
	Put(ctx context.Context, key, contentType string, data []byte) (Object, error)
	Delete(ctx context.Context, key string) error
}

// AvatarService resolves avatar references from requests.
//
// A reference is either an absolute http(s) URL, stored as given, or the
// name of a file in the TempStore. Temp files are normalized, uploaded to the
// image host and removed.
type AvatarService struct {
	temp    *TempStore
	objects ObjectStore
	logger  *logging.Logger
}

// NewAvatarService creates the resolver. objects may be nil when no image
// host is configured, in which case only URLs are accepted.
func NewAvatarService(temp *TempStore, objects ObjectStore, logger *logging.Logger) *AvatarService {
	return &AvatarService{temp: temp, objects: objects, logger: logger}
}

func (a *AvatarService) ResolveAvatar(ctx context.Context, ownerID uuid.UUID, ref string) (*user.Avatar, error) {
	if isHTTPURL(ref) {
		return &user.Avatar{URL: ref}, nil
	}

	if a.objects == nil || a.temp == nil {
		return nil, fmt.Errorf("%w: image uploads are disabled, use an http(s) URL", ErrInvalidAvatar)
	}

	f, err := a.temp.Open(ref)
	if err != nil {
		return nil, err
	}
	data, err := NormalizeAvatar(f)
	f.Close()
	if err != nil {
		return nil, err
	}

	key := fmt.Sprintf("avatars/%s/%s.jpg", ownerID, uuid.NewString())
	obj, err := a.objects.Put(ctx, key, "image/jpeg", data)
	if err != nil {
		return nil, err
	}

	if err := a.temp.Remove(ref); err != nil {
		a.logger.Warn("failed to remove temp upload", "ref", ref, "error", err)
	}

	return &user.Avatar{URL: obj.URL, Key: obj.Key}, nil
}

// DeleteAvatar removes an avatar from the image host. Avatars without a key
// are external URLs and are left alone.
func (a *AvatarService) DeleteAvatar(ctx context.Context, avatar *user.Avatar) error {
	if avatar == nil || avatar.Key == "" || a.objects == nil {
		return nil
	}
	return a.objects.Delete(ctx, avatar.Key)
}

func isHTTPURL(s string) bool {
	u, err := url.Parse(s)
	if err != nil {
		return false
	}
	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}
