package auth

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/time/rate"

	"github.com/ccs-amsterdam/annotinder-server/pkg/apierror"
	"github.com/ccs-amsterdam/annotinder-server/pkg/schema"
)

// GuestUserStore is the sliver of internal/repository the guest-token flow
// needs: minting a throwaway user restricted to one job. Kept as an
// interface so internal/auth never imports internal/repository.
type GuestUserStore interface {
	CreateGuestUser(ctx context.Context, jobID int64, name string) (*schema.User, error)
}

// GuestRedeemer redeems job tokens into guest bearer tokens. A rate
// limiter guards the redemption endpoint since it is reachable without
// any prior authentication.
type GuestRedeemer struct {
	issuer  *TokenIssuer
	store   GuestUserStore
	limiter *rate.Limiter
}

func NewGuestRedeemer(issuer *TokenIssuer, store GuestUserStore) *GuestRedeemer {
	return &GuestRedeemer{
		issuer:  issuer,
		store:   store,
		limiter: rate.NewLimiter(rate.Every(time.Second), 5),
	}
}

// MintJobToken creates a job token for jobID, valid for ttl. It is a
// bearer token with no UserID and RestrictedJob=jobID; Redeem treats the
// presence of RestrictedJob without a resolvable user as "this is a job
// token, not a session token".
func (g *GuestRedeemer) MintJobToken(jobID int64, ttl time.Duration) (string, error) {
	issuer := NewTokenIssuer(string(g.issuer.secret), ttl)
	return issuer.Mint(0, "", false, &jobID)
}

// Redeem exchanges a job token for a bearer token bound to a freshly
// minted guest user with RestrictedJob = jobID: on redemption, the
// system mints a user restricted to that job and returns a bearer token.
func (g *GuestRedeemer) Redeem(ctx context.Context, rawJobToken, guestName string) (string, *schema.User, error) {
	if !g.limiter.Allow() {
		return "", nil, apierror.New(apierror.KindBadRequest, "too many guest token redemptions, slow down")
	}

	claims, err := g.issuer.Verify(rawJobToken)
	if err != nil {
		return "", nil, apierror.Wrap(apierror.KindAuthorizationDenied, "invalid or expired job token", err)
	}
	if claims.RestrictedJob == nil || claims.UserID != 0 {
		return "", nil, apierror.New(apierror.KindAuthorizationDenied, "token is not a job token")
	}

	if guestName == "" {
		guestName = fmt.Sprintf("guest-%d", time.Now().UnixNano())
	}

	user, err := g.store.CreateGuestUser(ctx, *claims.RestrictedJob, guestName)
	if err != nil {
		return "", nil, apierror.Internal(err)
	}

	bearer, err := g.issuer.Mint(user.ID, user.Name, false, user.RestrictedJob)
	if err != nil {
		return "", nil, apierror.Internal(err)
	}
	return bearer, user, nil
}
