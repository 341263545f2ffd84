package proxy

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/cvacare/gaitsession/internal/apperrors"
)

// Headers set by the gateway in front of the proxy after it has verified the
// caller.
const (
	HeaderUserID = "X-User-ID"
	HeaderRole   = "X-User-Role"
)

// ErrNoIdentity means the request carried no caller identity.
var ErrNoIdentity = errors.New("no caller identity")

// Identity is the authenticated caller.
type Identity struct {
	UserID string
	Role   string
}

// Authenticator extracts the caller identity from a request.
type Authenticator interface {
	Authenticate(r *http.Request) (Identity, error)
}

// HeaderAuthenticator trusts the X-User-ID and X-User-Role headers.
type HeaderAuthenticator struct{}

func (HeaderAuthenticator) Authenticate(r *http.Request) (Identity, error) {
	id := Identity{
		UserID: strings.TrimSpace(r.Header.Get(HeaderUserID)),
		Role:   strings.TrimSpace(r.Header.Get(HeaderRole)),
	}
	if id.UserID == "" {
		return Identity{}, ErrNoIdentity
	}
	return id, nil
}

// Authorize allows the owner of userID and holders of adminRole.
func Authorize(id Identity, userID, adminRole string) error {
	if id.UserID == userID {
		return nil
	}
	if adminRole != "" && strings.EqualFold(id.Role, adminRole) {
		return nil
	}
	return fmt.Errorf("%w: %s may not read records of %s", apperrors.ErrUnauthorized, id.UserID, userID)
}
